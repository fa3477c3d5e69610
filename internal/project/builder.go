// Package project builds add-ons from an on-disk project: an addon.yaml
// manifest plus texture, script and record files found by glob.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gookit/color"
	"github.com/tidwall/gjson"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"github.com/insushim/iswaddon"
)

// ManifestFiles are tried in order.
var ManifestFiles = []string{"addon.yaml", "addon.yml", "addon.json"}

type Target int

const (
	Addon Target = 1 << iota
	BehaviorPack
	ResourcePack

	All = Addon | BehaviorPack | ResourcePack
)

type output struct {
	path string
	err  error
}

type Builder struct {
	root string
	opts []iswaddon.Option
}

func NewBuilder(root string, opts ...iswaddon.Option) (*Builder, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Builder{root: abs, opts: opts}, nil
}

func (b *Builder) Root() string {
	return b.root
}

// Result is a finished project build.
type Result struct {
	Build *iswaddon.BuildResult
	Files []string
}

// Build assembles the project and writes the selected archives to the
// output directory. Any rejected definition or asset fails the build.
func (b *Builder) Build(targets Target) (*Result, error) {
	startTime := time.Now()
	m, err := b.Manifest()
	if err != nil {
		return nil, err
	}
	color.Printf("Building <cyan>%s</>\n", m.Name)

	ab, err := b.assemble(m)
	if err != nil {
		return nil, err
	}
	res, err := ab.Build()
	if err != nil {
		return nil, err
	}

	outDir := b.outPath(m)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	name := iswaddon.FolderName(m.Name)
	writes := map[string][]byte{}
	if targets&Addon != 0 {
		writes[name+".mcaddon"] = res.Addon
	}
	if targets&BehaviorPack != 0 {
		writes[name+"_BP.mcpack"] = res.BehaviorPack
	}
	if targets&ResourcePack != 0 {
		writes[name+"_RP.mcpack"] = res.ResourcePack
	}

	results := make(chan output, len(writes))
	for file, data := range writes {
		go func(file string, data []byte) {
			p := filepath.Join(outDir, file)
			results <- output{p, os.WriteFile(p, data, 0o644)}
		}(file, data)
	}
	files := make([]string, 0, len(writes))
	var errs []error
	for range writes {
		out := <-results
		if out.err != nil {
			errs = append(errs, out.err)
			continue
		}
		files = append(files, out.path)
		color.Printf("Wrote <grey>%s</>\n", out.path)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	slices.Sort(files)
	color.Printf("Build of <cyan>%s</> finished in %s\n", m.Name, time.Since(startTime).Round(time.Millisecond))
	return &Result{Build: res, Files: files}, nil
}

func (b *Builder) assemble(m *Manifest) (*iswaddon.Builder, error) {
	cfg := m.AddonConfig()
	if m.Icon != "" {
		icon, err := os.ReadFile(filepath.Join(b.root, filepath.FromSlash(m.Icon)))
		if err != nil {
			return nil, fmt.Errorf("read icon: %w", err)
		}
		cfg.PackIcon = icon
	}
	ab, err := iswaddon.NewBuilder(cfg, b.opts...)
	if err != nil {
		return nil, err
	}
	if m.Scripting != nil {
		if err := ab.EnableScripting(m.Scripting.ServerVersion); err != nil {
			return nil, err
		}
	}

	var errs []error
	entities, err := decodeAll[iswaddon.EntityDefinition]("entity", m.Entities)
	if err != nil {
		return nil, err
	}
	items, err := decodeAll[iswaddon.ItemDefinition]("item", m.Items)
	if err != nil {
		return nil, err
	}
	blocks, err := decodeAll[iswaddon.BlockDefinition]("block", m.Blocks)
	if err != nil {
		return nil, err
	}
	recipes, err := decodeAll[iswaddon.RecipeDefinition]("recipe", m.Recipes)
	if err != nil {
		return nil, err
	}
	errs = append(errs, ab.AddEntities(entities), ab.AddItems(items), ab.AddBlocks(blocks))
	for i := range recipes {
		if err := ab.AddRecipeDefinition(&recipes[i]); err != nil {
			errs = append(errs, fmt.Errorf("recipe %d: %w", i, err))
		}
	}

	assets := m.Assets.withDefaults()
	steps := []struct {
		patterns []string
		add      func(rel string, data []byte) error
	}{
		{assets.Textures, ab.AddTextureFile},
		{assets.Scripts, func(rel string, data []byte) error {
			return ab.AddScript(scriptName(rel), string(data))
		}},
		{assets.Animations, func(_ string, data []byte) error { return ab.AddAnimation(data) }},
		{assets.LootTables, func(rel string, data []byte) error { return ab.AddLootTable(rel, data) }},
		{assets.SpawnRules, func(_ string, data []byte) error { return ab.AddSpawnRules(data) }},
		{assets.Recipes, func(_ string, data []byte) error { return ab.AddRecipe(data) }},
		{assets.Sounds, func(rel string, data []byte) error { return addSounds(ab, rel, data) }},
	}
	if m.Scripting == nil {
		steps[1].patterns = nil
	}
	skip := ""
	if rel, err := filepath.Rel(b.root, b.outPath(m)); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
		skip = filepath.ToSlash(rel)
	}
	for _, step := range steps {
		files, err := b.glob(step.patterns, skip)
		if err != nil {
			return nil, err
		}
		for _, rel := range files {
			data, err := os.ReadFile(filepath.Join(b.root, filepath.FromSlash(rel)))
			if err != nil {
				return nil, err
			}
			if err := step.add(rel, data); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", rel, err))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return ab, nil
}

// glob expands patterns relative to the project root into sorted, unique
// slash paths, leaving out files under the skip directory.
func (b *Builder) glob(patterns []string, skip string) ([]string, error) {
	fsys := os.DirFS(b.root)
	var out []string
	for _, p := range patterns {
		matches, err := doublestar.Glob(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		for _, m := range matches {
			if skip != "" && (m == skip || strings.HasPrefix(m, skip+"/")) {
				continue
			}
			if info, err := fs.Stat(fsys, m); err == nil && !info.IsDir() {
				out = append(out, m)
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// scriptName maps scripts/lib/util.js to lib/util.
func scriptName(rel string) string {
	name := strings.TrimPrefix(rel, "scripts/")
	return strings.TrimSuffix(name, path.Ext(name))
}

// addSounds registers every entry of a sound_definitions.json file.
func addSounds(ab *iswaddon.Builder, rel string, data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("%s is not valid JSON", rel)
	}
	defs := gjson.GetBytes(data, "sound_definitions")
	if !defs.Exists() {
		defs = gjson.ParseBytes(data)
	}
	var errs []error
	defs.ForEach(func(k, v gjson.Result) bool {
		if k.String() == "format_version" {
			return true
		}
		errs = append(errs, ab.AddSoundDefinition(k.String(), json.RawMessage(v.Raw)))
		return true
	})
	return errors.Join(errs...)
}

// WatchedFiles lists the manifest, the icon, the base directory of every
// asset pattern and any extra watch paths.
func (b *Builder) WatchedFiles() ([]string, error) {
	m, err := b.Manifest()
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, name := range ManifestFiles {
		p := filepath.Join(b.root, name)
		if _, err := os.Stat(p); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
			continue
		}
		paths = append(paths, p)
	}
	if m.Icon != "" {
		paths = append(paths, filepath.Join(b.root, filepath.FromSlash(m.Icon)))
	}
	for _, p := range m.Assets.withDefaults().patterns() {
		base, _ := doublestar.SplitPattern(p)
		dir := filepath.Join(b.root, filepath.FromSlash(base))
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		paths = append(paths, dir)
	}
	for _, p := range m.WatchPaths {
		paths = append(paths, filepath.Join(b.root, filepath.FromSlash(p)))
	}
	slices.Sort(paths)
	return slices.Compact(paths), nil
}

// Manifest reads the first manifest file found in the project root.
func (b *Builder) Manifest() (*Manifest, error) {
	var (
		data []byte
		err  error
	)
	for _, name := range ManifestFiles {
		data, err = os.ReadFile(filepath.Join(b.root, name))
		if err == nil || !errors.Is(err, fs.ErrNotExist) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}

// OutputDir is the absolute directory archives are written to.
func (b *Builder) OutputDir() (string, error) {
	m, err := b.Manifest()
	if err != nil {
		return "", err
	}
	return b.outPath(m), nil
}

func (b *Builder) outPath(m *Manifest) string {
	if filepath.IsAbs(m.outDir()) {
		return filepath.Clean(m.outDir())
	}
	return filepath.Join(b.root, m.outDir())
}

// Clean removes everything in the output directory.
func (b *Builder) Clean() error {
	outDir, err := b.OutputDir()
	if err != nil {
		return err
	}
	files, err := os.ReadDir(outDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, f := range files {
		if err := os.RemoveAll(filepath.Join(outDir, f.Name())); err != nil {
			return fmt.Errorf("remove output path: %w", err)
		}
	}
	return nil
}

// Init writes a starter manifest into root. An existing manifest is never
// overwritten.
func Init(root string, m *Manifest) (string, error) {
	for _, name := range ManifestFiles {
		if _, err := os.Stat(filepath.Join(root, name)); err == nil {
			return "", fmt.Errorf("%s already exists in %s", name, root)
		}
	}
	if !iswaddon.ValidNamespace(m.Namespace) {
		return "", fmt.Errorf("invalid namespace %q", m.Namespace)
	}
	for _, dir := range []string{"textures/entity", "textures/items", "textures/blocks"} {
		if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(dir)), 0o755); err != nil {
			return "", err
		}
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", err
	}
	p := filepath.Join(root, ManifestFiles[0])
	return p, os.WriteFile(p, data, 0o644)
}
