package iswaddon

import (
	"fmt"
	"strings"

	"github.com/insushim/iswaddon/internal/archive"
	"github.com/insushim/iswaddon/internal/schemas"
)

// BuildResult holds the three archives of one Build call.
type BuildResult struct {
	BehaviorPack []byte        `json:"-"`
	ResourcePack []byte        `json:"-"`
	Addon        []byte        `json:"-"`
	Metadata     BuildMetadata `json:"metadata"`
}

type BuildMetadata struct {
	Name             string `json:"name"`
	Namespace        string `json:"namespace"`
	Version          string `json:"version"`
	BehaviorUUID     string `json:"behaviorUUID"`
	ResourceUUID     string `json:"resourceUUID"`
	EntityCount      int    `json:"entityCount"`
	ItemCount        int    `json:"itemCount"`
	BlockCount       int    `json:"blockCount"`
	RecipeCount      int    `json:"recipeCount"`
	ScriptingEnabled bool   `json:"scriptingEnabled"`
}

// FolderName is the combined-archive folder prefix derived from an addon
// name.
func FolderName(name string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(strings.TrimSpace(name))
}

type packResult struct {
	pack string
	data []byte
	err  error
}

// Build serializes both packs and nests them into the combined archive.
// The two pack archives are written concurrently; the combined archive is
// built from both once they are done. Any failure aborts the whole build.
func (b *Builder) Build() (*BuildResult, error) {
	bp, err := b.behaviorTree()
	if err != nil {
		return nil, err
	}
	rp, err := b.resourceTree()
	if err != nil {
		return nil, err
	}

	trees := map[string]*archive.Tree{BehaviorPack: bp, ResourcePack: rp}
	results := make(chan packResult, len(trees))
	for name, tree := range trees {
		go func(name string, tree *archive.Tree) {
			data, err := tree.Zip(b.modTime)
			results <- packResult{pack: name, data: data, err: err}
		}(name, tree)
	}
	zipped := map[string][]byte{}
	var firstErr error
	for range trees {
		res := <-results
		if res.err != nil && firstErr == nil {
			firstErr = &BuildError{Pack: res.pack, Err: res.err}
		}
		zipped[res.pack] = res.data
	}
	if firstErr != nil {
		return nil, firstErr
	}

	folder := FolderName(b.cfg.Name)
	addon, err := archive.Nest(b.modTime,
		archive.Part{Folder: folder + "_BP", Archive: zipped[BehaviorPack]},
		archive.Part{Folder: folder + "_RP", Archive: zipped[ResourcePack]},
	)
	if err != nil {
		return nil, &BuildError{Pack: "combined", Err: err}
	}

	return &BuildResult{
		BehaviorPack: zipped[BehaviorPack],
		ResourcePack: zipped[ResourcePack],
		Addon:        addon,
		Metadata: BuildMetadata{
			Name:             b.cfg.Name,
			Namespace:        b.cfg.Namespace,
			Version:          b.cfg.Version,
			BehaviorUUID:     b.behaviorUUID,
			ResourceUUID:     b.resourceUUID,
			EntityCount:      b.counts.Entities,
			ItemCount:        b.counts.Items,
			BlockCount:       b.counts.Blocks,
			RecipeCount:      b.counts.Recipes,
			ScriptingEnabled: b.scripting,
		},
	}, nil
}

func (b *Builder) behaviorTree() (*archive.Tree, error) {
	t := archive.NewTree()
	if err := addManifest(t, BehaviorPack, b.bp.manifest); err != nil {
		return nil, err
	}
	if err := addIcon(t, BehaviorPack, b.cfg.PackIcon); err != nil {
		return nil, err
	}
	if err := addFiles(t, b.bp); err != nil {
		return nil, err
	}
	if b.scripting {
		var main []byte
		if b.mainScript != nil {
			main = []byte(*b.mainScript)
		}
		if err := t.Add(ScriptEntry, main); err != nil {
			return nil, &BuildError{Pack: BehaviorPack, Path: ScriptEntry, Err: err}
		}
	}
	return t, nil
}

func (b *Builder) resourceTree() (*archive.Tree, error) {
	t := archive.NewTree()
	if err := addManifest(t, ResourcePack, b.rp.manifest); err != nil {
		return nil, err
	}
	if err := addIcon(t, ResourcePack, b.cfg.PackIcon); err != nil {
		return nil, err
	}
	if err := addFiles(t, b.rp); err != nil {
		return nil, err
	}

	aggregates := []struct {
		path string
		kind schemas.Kind
		doc  any
		skip bool
	}{
		{terrainAtlasPath, schemas.TextureAtlas, atlas("atlas.terrain", b.terrain), len(b.terrain) == 0},
		{itemAtlasPath, schemas.TextureAtlas, atlas("atlas.items", b.itemAtlas), len(b.itemAtlas) == 0},
		{"sounds/sound_definitions.json", "", map[string]any{
			"format_version":    soundsFormatVersion,
			"sound_definitions": b.sounds,
		}, len(b.sounds) == 0},
		{"blocks.json", "", blocksDoc(b.blocks), len(b.blocks) == 0},
	}
	for _, a := range aggregates {
		if a.skip {
			continue
		}
		if a.kind != "" {
			if err := schemas.Validate(a.kind, a.doc); err != nil {
				return nil, &BuildError{Pack: ResourcePack, Path: a.path, Err: err}
			}
		}
		if err := t.AddJSON(a.path, a.doc); err != nil {
			return nil, &BuildError{Pack: ResourcePack, Path: a.path, Err: err}
		}
	}
	return t, nil
}

func addManifest(t *archive.Tree, pack string, m *Manifest) error {
	if err := schemas.Validate(schemas.Manifest, m); err != nil {
		return &BuildError{Pack: pack, Path: "manifest.json", Err: err}
	}
	if err := t.AddJSON("manifest.json", m); err != nil {
		return &BuildError{Pack: pack, Path: "manifest.json", Err: err}
	}
	return nil
}

func addIcon(t *archive.Tree, pack string, icon []byte) error {
	if len(icon) == 0 {
		return nil
	}
	if err := t.Add("pack_icon.png", icon); err != nil {
		return &BuildError{Pack: pack, Path: "pack_icon.png", Err: err}
	}
	return nil
}

func addFiles(t *archive.Tree, p *pack) error {
	for _, f := range p.files {
		if err := t.Add(f.path, f.data); err != nil {
			return &BuildError{Pack: p.name, Path: f.path, Err: fmt.Errorf("add file: %w", err)}
		}
	}
	return nil
}

func atlas(name string, entries map[string]string) map[string]any {
	data := make(map[string]atlasEntry, len(entries))
	for k, v := range entries {
		data[k] = atlasEntry{Textures: v}
	}
	return map[string]any{
		"resource_pack_name": "vanilla",
		"texture_name":       name,
		"texture_data":       data,
	}
}

func blocksDoc(blocks map[string]blockEntry) map[string]any {
	doc := make(map[string]any, len(blocks)+1)
	doc["format_version"] = []int{1, 1, 0}
	for k, v := range blocks {
		doc[k] = v
	}
	return doc
}
