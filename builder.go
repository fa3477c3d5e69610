// Package iswaddon assembles Bedrock add-ons: behavior and resource packs
// built from loosely specified entity, item and block definitions and
// serialized as .mcpack archives plus a combined .mcaddon.
//
// A Builder is single-writer. Concurrent calls on one Builder are not
// supported. Definitions passed to add calls are deep-copied, so callers may
// reuse or mutate them afterwards.
package iswaddon

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/insushim/iswaddon/internal/archive"
	"github.com/insushim/iswaddon/internal/schemas"
)

const (
	BehaviorPack = "behavior"
	ResourcePack = "resource"

	terrainAtlasPath = "textures/terrain_texture.json"
	itemAtlasPath    = "textures/item_texture.json"

	spawnRulesFormatVersion = "1.8.0"
	soundsFormatVersion     = "1.20.20"
)

type Option func(*Builder)

// WithUUIDs replaces the UUID source. Intended for reproducible output.
func WithUUIDs(next func() string) Option {
	return func(b *Builder) { b.newUUID = next }
}

// WithModTime fixes the timestamp stamped on archive entries.
func WithModTime(t time.Time) Option {
	return func(b *Builder) { b.modTime = t }
}

// Counts reports how many artifacts of each kind have been added.
type Counts struct {
	Entities   int `json:"entities"`
	Items      int `json:"items"`
	Blocks     int `json:"blocks"`
	Recipes    int `json:"recipes"`
	LootTables int `json:"lootTables"`
	SpawnRules int `json:"spawnRules"`
	Animations int `json:"animations"`
	Scripts    int `json:"scripts"`
	Textures   int `json:"textures"`
	Sounds     int `json:"sounds"`
}

type Builder struct {
	cfg     AddonConfig
	newUUID func() string
	modTime time.Time

	behaviorUUID string
	resourceUUID string

	bp *pack
	rp *pack

	terrain   map[string]string
	itemAtlas map[string]string
	blocks    map[string]blockEntry
	sounds    map[string]json.RawMessage

	scripting  bool
	mainScript *string
	counts     Counts
}

// NewBuilder seeds both packs with manifests derived from cfg. Pack UUIDs
// are generated here and kept for the builder's lifetime.
func NewBuilder(cfg AddonConfig, opts ...Option) (*Builder, error) {
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, &InputError{Kind: "addon", Field: "name", Reason: "is required"}
	}
	if strings.TrimSpace(cfg.Namespace) == "" {
		return nil, &InputError{Kind: "addon", Field: "namespace", Reason: "is required"}
	}
	b := &Builder{
		cfg:       cfg.withDefaults(),
		newUUID:   uuid.NewString,
		modTime:   time.Now(),
		terrain:   map[string]string{},
		itemAtlas: map[string]string{},
		blocks:    map[string]blockEntry{},
		sounds:    map[string]json.RawMessage{},
	}
	for _, opt := range opts {
		opt(b)
	}
	b.cfg.PackIcon = append([]byte(nil), cfg.PackIcon...)

	b.behaviorUUID = b.newUUID()
	b.resourceUUID = b.newUUID()
	b.bp = newPack(BehaviorPack, behaviorManifest(b.cfg, b.behaviorUUID, b.newUUID(), b.resourceUUID))
	b.rp = newPack(ResourcePack, resourceManifest(b.cfg, b.resourceUUID, b.newUUID()))
	return b, nil
}

func (b *Builder) Config() AddonConfig {
	return b.cfg
}

func (b *Builder) Counts() Counts {
	return b.counts
}

// EnableScripting adds the script module and the server module dependency
// to the behavior manifest. It may be called once.
func (b *Builder) EnableScripting(serverVersion string) error {
	if b.scripting {
		return &MisuseError{Op: "enable scripting", Err: ErrScriptingAlreadyEnabled}
	}
	if strings.TrimSpace(serverVersion) == "" {
		serverVersion = DefaultServerVersion
	}
	m := b.bp.manifest
	m.Modules = append(m.Modules, Module{
		Type:     "script",
		Language: "javascript",
		UUID:     b.newUUID(),
		Version:  ParseVersion(b.cfg.Version),
		Entry:    ScriptEntry,
	})
	m.Dependencies = append(m.Dependencies, Dependency{
		ModuleName: ServerModule,
		Version:    DependencyVersion{Name: strings.TrimSpace(serverVersion)},
	})
	b.scripting = true
	return nil
}

func (b *Builder) ScriptingEnabled() bool {
	return b.scripting
}

// AddScript stores a script module. The name "main" is the entry point;
// other names are written next to it as scripts/<name>.js.
func (b *Builder) AddScript(name, content string) error {
	if !b.scripting {
		return &MisuseError{Op: "add script", Err: ErrScriptingNotEnabled}
	}
	name = strings.TrimSuffix(strings.TrimSpace(name), ".js")
	if name == "" {
		return &InputError{Kind: "script", Field: "name", Reason: "is required"}
	}
	if name == "main" {
		if b.mainScript != nil {
			return fmt.Errorf("%w: %s", ErrDuplicateArtifact, ScriptEntry)
		}
		b.mainScript = &content
		b.counts.Scripts++
		return nil
	}
	p, err := archive.CleanPath("scripts/" + name + ".js")
	if err != nil || !strings.HasPrefix(p, "scripts/") {
		return &InputError{Kind: "script", Identifier: name, Field: "name", Reason: "must stay inside scripts/"}
	}
	s := newStage()
	if err := s.put(b.bp, p, []byte(content), false); err != nil {
		return err
	}
	s.commit(b)
	b.counts.Scripts++
	return nil
}

// AddEntity assembles def into a behavior entity and a client entity, and
// registers any geometry, animations, controllers, spawn rules and loot
// table it carries.
func (b *Builder) AddEntity(def *EntityDefinition) error {
	if def == nil {
		return &InputError{Kind: "entity", Reason: "definition is nil"}
	}
	if err := checkIdentifier("entity", def.Identifier); err != nil {
		return err
	}
	def, err := clone("entity", def)
	if err != nil {
		return err
	}
	behavior, client := AssembleEntity(def, b.cfg.Namespace)
	id := behavior.Entity.Description.Identifier
	base := BaseName(id)

	s := newStage()
	if err := s.putJSON(b.bp, "entities/"+base+".json", schemas.Entity, behavior, false); err != nil {
		return err
	}
	if err := s.putJSON(b.rp, "entity/"+base+".entity.json", schemas.ClientEntity, client, false); err != nil {
		return err
	}
	if len(def.Geometry) > 0 {
		if !isObject(def.Geometry) {
			return &InputError{Kind: "entity", Identifier: id, Field: "geometry", Reason: "must be an object"}
		}
		name := fileStem(gjson.GetBytes(def.Geometry, `minecraft:geometry.0.description.identifier`).String(), "geometry.")
		if name == "" {
			name = base
		}
		if err := s.putJSON(b.rp, "models/entity/"+name+".geo.json", "", def.Geometry, true); err != nil {
			return err
		}
	}
	for i, anim := range def.Animations {
		if err := b.stageAnimation(s, anim, id, fmt.Sprintf("animations[%d]", i)); err != nil {
			return err
		}
	}
	for i, ac := range def.AnimationControllers {
		name := fileStem(firstKey(ac, "animation_controllers"), "controller.animation.")
		if name == "" {
			return &InputError{Kind: "entity", Identifier: id, Field: fmt.Sprintf("animationControllers[%d]", i), Reason: "has no animation_controllers"}
		}
		if err := s.putJSON(b.rp, "animation_controllers/"+name+".json", "", ac, true); err != nil {
			return err
		}
	}
	if len(def.RenderController) > 0 {
		name := fileStem(firstKey(def.RenderController, "render_controllers"), "controller.render.")
		if name == "" {
			return &InputError{Kind: "entity", Identifier: id, Field: "renderController", Reason: "has no render_controllers"}
		}
		if err := s.putJSON(b.rp, "render_controllers/"+name+".json", "", def.RenderController, true); err != nil {
			return err
		}
	}
	spawnRules := 0
	if len(def.SpawnRules) > 0 {
		if err := b.stageSpawnRules(s, def.SpawnRules, id); err != nil {
			return err
		}
		spawnRules++
	}
	loot := 0
	if len(def.LootTable) > 0 {
		if err := s.putJSON(b.bp, entityLootPath(base), schemas.LootTable, def.LootTable, false); err != nil {
			return err
		}
		loot++
	}

	s.commit(b)
	b.counts.Entities++
	b.counts.SpawnRules += spawnRules
	b.counts.LootTables += loot
	b.counts.Animations += len(def.Animations)
	return nil
}

// AddItem assembles def and registers its icon in the item atlas.
func (b *Builder) AddItem(def *ItemDefinition) error {
	if def == nil {
		return &InputError{Kind: "item", Reason: "definition is nil"}
	}
	if err := checkIdentifier("item", def.Identifier); err != nil {
		return err
	}
	def, err := clone("item", def)
	if err != nil {
		return err
	}
	record := AssembleItem(def, b.cfg.Namespace)
	base := BaseName(record.Item.Description.Identifier)

	s := newStage()
	if err := s.putJSON(b.bp, "items/"+base+".json", schemas.Item, record, false); err != nil {
		return err
	}
	key, texture := itemIcon(def, base)
	s.items[key] = texture
	s.commit(b)
	b.counts.Items++
	return nil
}

// AddBlock assembles def and registers its terrain texture and sound.
func (b *Builder) AddBlock(def *BlockDefinition) error {
	if def == nil {
		return &InputError{Kind: "block", Reason: "definition is nil"}
	}
	if err := checkIdentifier("block", def.Identifier); err != nil {
		return err
	}
	def, err := clone("block", def)
	if err != nil {
		return err
	}
	record := AssembleBlock(def, b.cfg.Namespace)
	base := BaseName(record.Block.Description.Identifier)

	s := newStage()
	if err := s.putJSON(b.bp, "blocks/"+base+".json", schemas.Block, record, false); err != nil {
		return err
	}
	s.terrain[base] = "textures/blocks/" + base
	for _, inst := range def.MaterialInstances {
		if t := strings.TrimSpace(inst.Texture); t != "" && !strings.Contains(t, "/") {
			s.terrain[t] = "textures/blocks/" + t
		}
	}
	s.blocks[base] = blockEntry{Sound: BlockSound(def), Textures: base}
	s.commit(b)
	b.counts.Blocks++
	return nil
}

// AddRecipe stores a recipe record as given. The file is named after the
// identifier of its first minecraft:recipe_* member.
func (b *Builder) AddRecipe(raw json.RawMessage) error {
	if !json.Valid(raw) || !isObject(raw) {
		return &InputError{Kind: "recipe", Reason: "must be a JSON object"}
	}
	var recipeKey string
	gjson.ParseBytes(raw).ForEach(func(k, _ gjson.Result) bool {
		if strings.HasPrefix(k.String(), "minecraft:recipe_") {
			recipeKey = k.String()
			return false
		}
		return true
	})
	if recipeKey == "" {
		return &InputError{Kind: "recipe", Reason: "has no minecraft:recipe_* member"}
	}
	id := gjson.GetBytes(raw, escapeKey(recipeKey)+".description.identifier").String()
	if err := checkIdentifier("recipe", id); err != nil {
		return err
	}
	raw = withDefault(raw, "format_version", RecipeFormatVersion)
	s := newStage()
	if err := s.putJSON(b.bp, "recipes/"+fileStem(BaseName(id))+".json", schemas.Recipe, json.RawMessage(raw), false); err != nil {
		return err
	}
	s.commit(b)
	b.counts.Recipes++
	return nil
}

// AddRecipeDefinition assembles a typed recipe and stores it.
func (b *Builder) AddRecipeDefinition(def *RecipeDefinition) error {
	if def == nil {
		return &InputError{Kind: "recipe", Reason: "definition is nil"}
	}
	if err := checkIdentifier("recipe", def.Identifier); err != nil {
		return err
	}
	record, err := AssembleRecipe(def, b.cfg.Namespace)
	if err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: recipe %s: %v", ErrInvalidArtifact, def.Identifier, err)
	}
	return b.AddRecipe(data)
}

// AddLootTable stores a loot table. Paths are placed under loot_tables/
// and given a .json suffix when missing.
func (b *Builder) AddLootTable(path string, raw json.RawMessage) error {
	if strings.TrimSpace(path) == "" {
		return &InputError{Kind: "loot table", Field: "path", Reason: "is required"}
	}
	if !json.Valid(raw) || !isObject(raw) {
		return &InputError{Kind: "loot table", Identifier: path, Reason: "must be a JSON object"}
	}
	p, err := archive.CleanPath(lootPath(path))
	if err != nil || !strings.HasPrefix(p, "loot_tables/") {
		return &InputError{Kind: "loot table", Identifier: path, Field: "path", Reason: "must stay inside loot_tables/"}
	}
	s := newStage()
	if err := s.putJSON(b.bp, p, schemas.LootTable, json.RawMessage(raw), false); err != nil {
		return err
	}
	s.commit(b)
	b.counts.LootTables++
	return nil
}

// AddSpawnRules stores a spawn rules record named after its identifier.
func (b *Builder) AddSpawnRules(raw json.RawMessage) error {
	if !json.Valid(raw) || !isObject(raw) {
		return &InputError{Kind: "spawn rules", Reason: "must be a JSON object"}
	}
	s := newStage()
	if err := b.stageSpawnRules(s, raw, ""); err != nil {
		return err
	}
	s.commit(b)
	b.counts.SpawnRules++
	return nil
}

// stageSpawnRules fills a missing identifier with owner, when given, and a
// missing format version and condition list.
func (b *Builder) stageSpawnRules(s *stage, raw []byte, owner string) error {
	const desc = "minecraft:spawn_rules.description.identifier"
	id := gjson.GetBytes(raw, desc).String()
	if id == "" && owner != "" {
		id = owner
		raw = withDefault(raw, desc, owner)
	}
	if err := checkIdentifier("spawn rules", id); err != nil {
		return err
	}
	raw = withDefault(raw, "format_version", spawnRulesFormatVersion)
	if !gjson.GetBytes(raw, "minecraft:spawn_rules.conditions").Exists() {
		raw, _ = sjson.SetRawBytes(raw, "minecraft:spawn_rules.conditions", []byte("[]"))
	}
	return s.putJSON(b.bp, "spawn_rules/"+fileStem(BaseName(id))+".json", schemas.SpawnRules, json.RawMessage(raw), false)
}

// AddAnimation stores an animation file named after its first animation.
func (b *Builder) AddAnimation(raw json.RawMessage) error {
	s := newStage()
	if err := b.stageAnimation(s, raw, "", "animations"); err != nil {
		return err
	}
	s.commit(b)
	b.counts.Animations++
	return nil
}

func (b *Builder) stageAnimation(s *stage, raw []byte, owner, field string) error {
	if !json.Valid(raw) || !isObject(raw) {
		return &InputError{Kind: "animation", Identifier: owner, Field: field, Reason: "must be a JSON object"}
	}
	name := fileStem(firstKey(raw, "animations"), "animation.")
	if name == "" {
		return &InputError{Kind: "animation", Identifier: owner, Field: field, Reason: "has no animations"}
	}
	return s.putJSON(b.rp, "animations/"+name+".animation.json", schemas.Animation, json.RawMessage(raw), true)
}

// AddTextureFile stores image data in the resource pack. Paths outside
// textures/ are placed under it.
func (b *Builder) AddTextureFile(path string, data []byte) error {
	path = strings.TrimPrefix(strings.TrimSpace(path), "/")
	if !strings.HasPrefix(path, "textures/") {
		path = "textures/" + path
	}
	p, err := archive.CleanPath(path)
	if err != nil || !strings.HasPrefix(p, "textures/") {
		return &InputError{Kind: "texture", Identifier: path, Field: "path", Reason: "must stay inside textures/"}
	}
	if p == terrainAtlasPath || p == itemAtlasPath {
		return fmt.Errorf("%w: %s is generated", ErrDuplicateArtifact, p)
	}
	s := newStage()
	if err := s.put(b.rp, p, append([]byte(nil), data...), false); err != nil {
		return err
	}
	s.commit(b)
	b.counts.Textures++
	return nil
}

// AddSoundDefinition registers a named entry of sounds/sound_definitions.json.
func (b *Builder) AddSoundDefinition(name string, raw json.RawMessage) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &InputError{Kind: "sound", Field: "name", Reason: "is required"}
	}
	if !json.Valid(raw) || !isObject(raw) {
		return &InputError{Kind: "sound", Identifier: name, Reason: "must be a JSON object"}
	}
	if _, ok := b.sounds[name]; ok {
		return fmt.Errorf("%w: sound %s", ErrDuplicateArtifact, name)
	}
	b.sounds[name] = append(json.RawMessage(nil), raw...)
	b.counts.Sounds++
	return nil
}

// AddEntities adds each definition independently. Failures are returned
// together as a *BatchError; the other definitions are kept.
func (b *Builder) AddEntities(defs []EntityDefinition) error {
	var failures []*ArtifactError
	for i := range defs {
		if err := b.AddEntity(&defs[i]); err != nil {
			failures = append(failures, &ArtifactError{Kind: "entity", Index: i, Identifier: defs[i].Identifier, Err: err})
		}
	}
	return batchError(failures)
}

func (b *Builder) AddItems(defs []ItemDefinition) error {
	var failures []*ArtifactError
	for i := range defs {
		if err := b.AddItem(&defs[i]); err != nil {
			failures = append(failures, &ArtifactError{Kind: "item", Index: i, Identifier: defs[i].Identifier, Err: err})
		}
	}
	return batchError(failures)
}

func (b *Builder) AddBlocks(defs []BlockDefinition) error {
	var failures []*ArtifactError
	for i := range defs {
		if err := b.AddBlock(&defs[i]); err != nil {
			failures = append(failures, &ArtifactError{Kind: "block", Index: i, Identifier: defs[i].Identifier, Err: err})
		}
	}
	return batchError(failures)
}

func batchError(failures []*ArtifactError) error {
	if len(failures) == 0 {
		return nil
	}
	return &BatchError{Failures: failures}
}

func checkIdentifier(kind, id string) error {
	id = strings.TrimSpace(id)
	switch {
	case id == "":
		return &InputError{Kind: kind, Field: "identifier", Reason: "is required"}
	case strings.ContainsAny(id, " \t\r\n/\\"):
		return &InputError{Kind: kind, Identifier: id, Field: "identifier", Reason: "must not contain whitespace or path separators"}
	case strings.Count(id, ":") > 1:
		return &InputError{Kind: kind, Identifier: id, Field: "identifier", Reason: "has more than one namespace separator"}
	case strings.HasPrefix(id, ":") || strings.HasSuffix(id, ":"):
		return &InputError{Kind: kind, Identifier: id, Field: "identifier", Reason: "namespace and name must both be set"}
	}
	return nil
}

// clone deep-copies a definition through its JSON form so the builder
// never shares maps or slices with the caller.
func clone[T any](kind string, v *T) (*T, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &InputError{Kind: kind, Reason: "not JSON encodable: " + err.Error()}
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, &InputError{Kind: kind, Reason: err.Error()}
	}
	return out, nil
}

// withDefault sets path to value when it is missing.
func withDefault(raw []byte, path string, value any) []byte {
	if gjson.GetBytes(raw, path).Exists() {
		return raw
	}
	out, err := sjson.SetBytes(raw, path, value)
	if err != nil {
		return raw
	}
	return out
}

func escapeKey(k string) string {
	return strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`).Replace(k)
}
