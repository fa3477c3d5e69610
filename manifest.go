package iswaddon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

const (
	DefaultVersion          = "1.0.0"
	DefaultMinEngineVersion = "1.21.50"
	DefaultServerVersion    = "1.17.0"
	ScriptEntry             = "scripts/main.js"
	ServerModule            = "@minecraft/server"
	generatorName           = "minecraft-addon-generator"
	generatorVersion        = "1.0.0"
)

var namespacePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidNamespace reports whether ns is usable as an identifier namespace.
func ValidNamespace(ns string) bool {
	return namespacePattern.MatchString(ns)
}

// AddonConfig identifies the bundle. Empty optional fields take defaults.
type AddonConfig struct {
	Name             string   `json:"name" yaml:"name"`
	Namespace        string   `json:"namespace" yaml:"namespace"`
	Description      string   `json:"description,omitempty" yaml:"description"`
	Version          string   `json:"version,omitempty" yaml:"version"`
	MinEngineVersion string   `json:"minEngineVersion,omitempty" yaml:"minEngineVersion"`
	Authors          []string `json:"authors,omitempty" yaml:"authors"`
	PackIcon         []byte   `json:"-" yaml:"-"`
}

func (c AddonConfig) withDefaults() AddonConfig {
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.MinEngineVersion == "" {
		c.MinEngineVersion = DefaultMinEngineVersion
	}
	if len(c.Authors) == 0 {
		c.Authors = []string{"Addon Generator"}
	}
	return c
}

// Version is a major.minor.patch triple, encoded as a JSON array.
type Version [3]int

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
}

// ParseVersion reads a dotted version. Semantic versions are canonicalized
// first so "1.2" and "v1.2.0-beta" both parse; anything else is read part by
// part with missing or garbled parts treated as zero. An unreadable major
// falls back to 1.
func ParseVersion(s string) Version {
	s = strings.TrimSpace(s)
	if c := semver.Canonical("v" + strings.TrimPrefix(s, "v")); c != "" {
		c = strings.TrimSuffix(c, semver.Prerelease(c))
		parts := strings.SplitN(strings.TrimPrefix(c, "v"), ".", 3)
		var v Version
		for i, p := range parts {
			v[i], _ = strconv.Atoi(p)
		}
		return v
	}
	v := Version{1, 0, 0}
	for i, p := range strings.SplitN(s, ".", 3) {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			continue
		}
		v[i] = n
	}
	return v
}

type Manifest struct {
	FormatVersion int          `json:"format_version"`
	Header        Header       `json:"header"`
	Modules       []Module     `json:"modules"`
	Dependencies  []Dependency `json:"dependencies,omitempty"`
	Metadata      *Metadata    `json:"metadata,omitempty"`
}

type Header struct {
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	UUID             string  `json:"uuid"`
	Version          Version `json:"version"`
	MinEngineVersion Version `json:"min_engine_version"`
}

type Module struct {
	Type     string  `json:"type"`
	Language string  `json:"language,omitempty"`
	UUID     string  `json:"uuid"`
	Version  Version `json:"version"`
	Entry    string  `json:"entry,omitempty"`
}

// Dependency references either another pack by UUID or a named engine
// module.
type Dependency struct {
	UUID       string            `json:"uuid,omitempty"`
	ModuleName string            `json:"module_name,omitempty"`
	Version    DependencyVersion `json:"version"`
}

// DependencyVersion is a version triple for pack dependencies and a plain
// string for module dependencies.
type DependencyVersion struct {
	Triple *Version
	Name   string
}

func (d DependencyVersion) MarshalJSON() ([]byte, error) {
	if d.Triple != nil {
		return json.Marshal(d.Triple)
	}
	return json.Marshal(d.Name)
}

func (d *DependencyVersion) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var v Version
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		d.Triple, d.Name = &v, ""
		return nil
	}
	d.Triple = nil
	return json.Unmarshal(data, &d.Name)
}

type Metadata struct {
	Authors       []string            `json:"authors,omitempty"`
	GeneratedWith map[string][]string `json:"generated_with,omitempty"`
}

func newMetadata(authors []string) *Metadata {
	return &Metadata{
		Authors:       append([]string(nil), authors...),
		GeneratedWith: map[string][]string{generatorName: {generatorVersion}},
	}
}

// behaviorManifest declares the data module and the pairing dependency on
// the resource pack.
func behaviorManifest(cfg AddonConfig, packUUID, moduleUUID, resourceUUID string) *Manifest {
	version := ParseVersion(cfg.Version)
	description := cfg.Description
	if description == "" {
		description = cfg.Name + " Behavior Pack"
	}
	return &Manifest{
		FormatVersion: 2,
		Header: Header{
			Name:             cfg.Name,
			Description:      description,
			UUID:             packUUID,
			Version:          version,
			MinEngineVersion: ParseVersion(cfg.MinEngineVersion),
		},
		Modules: []Module{{Type: "data", UUID: moduleUUID, Version: version}},
		Dependencies: []Dependency{{
			UUID:    resourceUUID,
			Version: DependencyVersion{Triple: &version},
		}},
		Metadata: newMetadata(cfg.Authors),
	}
}

func resourceManifest(cfg AddonConfig, packUUID, moduleUUID string) *Manifest {
	version := ParseVersion(cfg.Version)
	description := cfg.Description
	if description == "" {
		description = cfg.Name + " Resource Pack"
	}
	return &Manifest{
		FormatVersion: 2,
		Header: Header{
			Name:             cfg.Name + " Resources",
			Description:      description,
			UUID:             packUUID,
			Version:          version,
			MinEngineVersion: ParseVersion(cfg.MinEngineVersion),
		},
		Modules:  []Module{{Type: "resources", UUID: moduleUUID, Version: version}},
		Metadata: newMetadata(cfg.Authors),
	}
}
