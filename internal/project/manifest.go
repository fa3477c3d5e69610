package project

import (
	"encoding/json"
	"fmt"

	"github.com/insushim/iswaddon"
)

// Manifest is the addon.yaml project file. Definitions are written inline
// in the builder's JSON field names; assets are collected by glob.
type Manifest struct {
	Name             string   `yaml:"name"`
	Namespace        string   `yaml:"namespace"`
	Description      string   `yaml:"description,omitempty"`
	Version          string   `yaml:"version,omitempty"`
	MinEngineVersion string   `yaml:"minEngineVersion,omitempty"`
	Authors          []string `yaml:"authors,omitempty"`
	Icon             string   `yaml:"icon,omitempty"`
	OutDir           string   `yaml:"outDir,omitempty"`
	WatchPaths       []string `yaml:"watchPaths,omitempty"`

	Scripting *Scripting `yaml:"scripting,omitempty"`

	Entities []map[string]any `yaml:"entities,omitempty"`
	Items    []map[string]any `yaml:"items,omitempty"`
	Blocks   []map[string]any `yaml:"blocks,omitempty"`
	Recipes  []map[string]any `yaml:"recipes,omitempty"`

	Assets Assets `yaml:"assets,omitempty"`
}

type Scripting struct {
	ServerVersion string `yaml:"serverVersion,omitempty"`
}

// Assets are doublestar patterns relative to the project root. Nil lists
// take the conventional layout.
type Assets struct {
	Textures   []string `yaml:"textures,omitempty"`
	Scripts    []string `yaml:"scripts,omitempty"`
	Animations []string `yaml:"animations,omitempty"`
	LootTables []string `yaml:"lootTables,omitempty"`
	SpawnRules []string `yaml:"spawnRules,omitempty"`
	Recipes    []string `yaml:"recipes,omitempty"`
	Sounds     []string `yaml:"sounds,omitempty"`
}

func (a Assets) withDefaults() Assets {
	def := func(v []string, p string) []string {
		if v == nil {
			return []string{p}
		}
		return v
	}
	a.Textures = def(a.Textures, "textures/**/*.png")
	a.Scripts = def(a.Scripts, "scripts/**/*.js")
	a.Animations = def(a.Animations, "animations/**/*.json")
	a.LootTables = def(a.LootTables, "loot_tables/**/*.json")
	a.SpawnRules = def(a.SpawnRules, "spawn_rules/**/*.json")
	a.Recipes = def(a.Recipes, "recipes/**/*.json")
	a.Sounds = def(a.Sounds, "sounds/sound_definitions.json")
	return a
}

func (a Assets) patterns() []string {
	var out []string
	for _, ps := range [][]string{a.Textures, a.Scripts, a.Animations, a.LootTables, a.SpawnRules, a.Recipes, a.Sounds} {
		out = append(out, ps...)
	}
	return out
}

func (m *Manifest) AddonConfig() iswaddon.AddonConfig {
	return iswaddon.AddonConfig{
		Name:             m.Name,
		Namespace:        m.Namespace,
		Description:      m.Description,
		Version:          m.Version,
		MinEngineVersion: m.MinEngineVersion,
		Authors:          m.Authors,
	}
}

func (m *Manifest) outDir() string {
	if m.OutDir == "" {
		return "dist"
	}
	return m.OutDir
}

// decodeAll converts generic YAML mappings into typed definitions through
// their JSON form, so custom JSON decoders of the definition types apply.
func decodeAll[T any](kind string, in []map[string]any) ([]T, error) {
	out := make([]T, len(in))
	for i, m := range in {
		data, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("%s %d: %w", kind, i, err)
		}
		if err := json.Unmarshal(data, &out[i]); err != nil {
			return nil, fmt.Errorf("%s %d: %w", kind, i, err)
		}
	}
	return out, nil
}
