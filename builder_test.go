package iswaddon

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/insushim/iswaddon/internal/archive"
)

var testTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func sequentialUUIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("00000000-0000-4000-8000-%012d", n)
	}
}

func newTestBuilder(t *testing.T, opts ...Option) *Builder {
	t.Helper()
	b, err := NewBuilder(AddonConfig{Name: "Test Addon", Namespace: "testns", Version: "1.0.0"}, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func build(t *testing.T, b *Builder) *BuildResult {
	t.Helper()
	res, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func readJSON(t *testing.T, archiveData []byte, path string) map[string]any {
	t.Helper()
	tree, err := archive.Read(archiveData)
	if err != nil {
		t.Fatal(err)
	}
	data, ok := tree.File(path)
	if !ok {
		t.Fatalf("archive has no %s; have %v", path, tree.Sorted())
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("%s: %v", path, err)
	}
	return out
}

func components(t *testing.T, doc map[string]any) map[string]any {
	t.Helper()
	return doc["minecraft:entity"].(map[string]any)["components"].(map[string]any)
}

func TestEndToEndGolem(t *testing.T) {
	b := newTestBuilder(t)
	err := b.AddEntity(&EntityDefinition{
		Identifier: "golem",
		Health:     &Health{Value: 50, Max: 50},
		Attack:     &Attack{Damage: 8},
	})
	if err != nil {
		t.Fatal(err)
	}
	res := build(t, b)
	if res.Metadata.EntityCount != 1 {
		t.Fatalf("entityCount = %d", res.Metadata.EntityCount)
	}
	if res.Metadata.Name != "Test Addon" || res.Metadata.Namespace != "testns" || res.Metadata.Version != "1.0.0" {
		t.Fatalf("metadata = %+v", res.Metadata)
	}

	doc := readJSON(t, res.BehaviorPack, "entities/golem.json")
	if doc["format_version"] != FormatVersion {
		t.Fatalf("format_version = %v", doc["format_version"])
	}
	desc := doc["minecraft:entity"].(map[string]any)["description"].(map[string]any)
	if desc["identifier"] != "testns:golem" {
		t.Fatalf("identifier = %v", desc["identifier"])
	}
	c := components(t, doc)
	for _, key := range []string{
		"minecraft:health",
		"minecraft:attack",
		"minecraft:behavior.melee_attack",
		"minecraft:behavior.nearest_attackable_target",
		"minecraft:behavior.hurt_by_target",
		"minecraft:behavior.random_stroll",
		"minecraft:behavior.float",
		"minecraft:behavior.random_look_around",
		"minecraft:movement.basic",
		"minecraft:navigation.walk",
	} {
		if _, ok := c[key]; !ok {
			t.Errorf("components missing %s", key)
		}
	}
	health := c["minecraft:health"].(map[string]any)
	if health["value"] != 50.0 || health["max"] != 50.0 {
		t.Fatalf("health = %v", health)
	}
	if c["minecraft:attack"].(map[string]any)["damage"] != 8.0 {
		t.Fatalf("attack = %v", c["minecraft:attack"])
	}
}

func TestCombatTriplet(t *testing.T) {
	cases := []struct {
		name   string
		attack *Attack
		want   bool
	}{
		{"no attack", nil, false},
		{"zero damage", &Attack{Damage: 0}, false},
		{"negative damage", &Attack{Damage: -3}, false},
		{"fractional damage", &Attack{Damage: 0.5}, true},
		{"damage", &Attack{Damage: 12}, true},
	}
	triplet := []string{"melee_attack", "nearest_attackable_target", "hurt_by_target"}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := AssembleEntity(&EntityDefinition{Identifier: "mob", Attack: tc.attack}, "ns")
			c := rec.Entity.Components
			for _, name := range triplet {
				if _, ok := c[behaviorPrefix+name]; ok != tc.want {
					t.Errorf("%s present = %v, want %v", name, ok, tc.want)
				}
			}
			if _, ok := c["minecraft:attack"]; ok != tc.want {
				t.Errorf("minecraft:attack present = %v, want %v", ok, tc.want)
			}
		})
	}
}

func TestCombatTripletKeepsCallerBehaviors(t *testing.T) {
	p := 9
	rec, _ := AssembleEntity(&EntityDefinition{
		Identifier: "mob",
		Attack:     &Attack{Damage: 4},
		Behaviors: []Behavior{
			{Type: "melee", Priority: &p, Params: map[string]any{"speed_multiplier": 2.0}},
		},
	}, "ns")
	melee := rec.Entity.Components[behaviorPrefix+"melee_attack"].(map[string]any)
	if melee["priority"] != 9 || melee["speed_multiplier"] != 2.0 {
		t.Fatalf("caller melee_attack overwritten: %v", melee)
	}
	if _, ok := rec.Entity.Components[behaviorPrefix+"hurt_by_target"]; !ok {
		t.Fatal("hurt_by_target not backfilled")
	}
}

func TestFlotationAndLocomotionExactlyOnce(t *testing.T) {
	cases := []struct {
		name      string
		mode      string
		behaviors []Behavior
	}{
		{"defaults walk", "", nil},
		{"defaults fly", "fly", nil},
		{"duplicates collapse", "", []Behavior{{Type: "float"}, {Name: "hover"}, {Type: "wander"}, {Type: "random_stroll"}}},
		{"walk goal on flyer", "fly", []Behavior{{Type: "random_stroll"}}},
		{"fly goal on walker", "basic", []Behavior{{Type: "fly"}}},
		{"both goals on flyer", "fly", []Behavior{{Type: "random_stroll"}, {Type: "random_fly"}}},
		{"only unknown names", "", []Behavior{{Type: "qqqq_zzzz"}, {Name: "zz"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := AssembleEntity(&EntityDefinition{
				Identifier: "mob",
				Movement:   &Movement{Type: tc.mode},
				Behaviors:  tc.behaviors,
			}, "ns")
			c := rec.Entity.Components
			floats, walk, fly := 0, 0, 0
			for k := range c {
				switch k {
				case behaviorPrefix + "float":
					floats++
				case behaviorPrefix + "random_stroll":
					walk++
				case behaviorPrefix + "random_fly":
					fly++
				}
			}
			if floats != 1 {
				t.Errorf("float count = %d", floats)
			}
			if tc.mode == "fly" {
				if fly != 1 || walk != 0 {
					t.Errorf("flyer: random_fly=%d random_stroll=%d", fly, walk)
				}
				if _, ok := c["minecraft:navigation.fly"]; !ok {
					t.Error("flyer missing navigation.fly")
				}
				nav := c["minecraft:navigation.fly"].(map[string]any)
				if nav["can_path_over_water"] != true {
					t.Errorf("navigation.fly = %v", nav)
				}
			} else {
				if walk != 1 || fly != 0 {
					t.Errorf("walker: random_stroll=%d random_fly=%d", walk, fly)
				}
				nav := c["minecraft:navigation.walk"].(map[string]any)
				if nav["avoid_water"] != true {
					t.Errorf("navigation.walk = %v", nav)
				}
			}
			if _, ok := c[behaviorPrefix+"random_look_around"]; !ok {
				t.Error("random_look_around missing")
			}
		})
	}
}

func TestBehaviorPriorities(t *testing.T) {
	p := 4
	rec, _ := AssembleEntity(&EntityDefinition{
		Identifier: "mob",
		Behaviors: []Behavior{
			{Type: "panic"},
			{Type: "totally_unknown_behavior_xyz"},
			{Type: "tempt", Priority: &p},
			{Type: "breed", Params: map[string]any{"priority": 11.0}},
			{Type: "panic", Priority: &p},
		},
	}, "ns")
	c := rec.Entity.Components
	if got := c[behaviorPrefix+"panic"].(map[string]any)["priority"]; got != 1 {
		t.Errorf("panic priority = %v", got)
	}
	if got := c[behaviorPrefix+"tempt"].(map[string]any)["priority"]; got != 4 {
		t.Errorf("tempt priority = %v", got)
	}
	if got := c[behaviorPrefix+"breed"].(map[string]any)["priority"]; got != 11 {
		t.Errorf("breed priority = %v", got)
	}
	for k := range c {
		if strings.Contains(k, "unknown") {
			t.Errorf("unresolved behavior emitted: %s", k)
		}
	}
	if _, ok := c[behaviorPrefix+"look_at_player"]; ok {
		t.Error("look_at_player is only a default when nothing resolved")
	}
}

func TestAdditionalComponentsWin(t *testing.T) {
	rec, _ := AssembleEntity(&EntityDefinition{
		Identifier:           "mob",
		AdditionalComponents: map[string]any{"minecraft:health": map[string]any{"value": 1, "max": 1}, "minecraft:scale": map[string]any{"value": 2}},
	}, "ns")
	health := rec.Entity.Components["minecraft:health"].(map[string]any)
	if health["value"] != 1 {
		t.Fatalf("override lost: %v", health)
	}
	if _, ok := rec.Entity.Components["minecraft:scale"]; !ok {
		t.Fatal("extra component dropped")
	}
}

func TestQualify(t *testing.T) {
	if got := Qualify("golem", "myns"); got != "myns:golem" {
		t.Errorf("got %q", got)
	}
	if got := Qualify("other:golem", "myns"); got != "other:golem" {
		t.Errorf("got %q", got)
	}
	rec, client := AssembleEntity(&EntityDefinition{Identifier: "other:golem"}, "myns")
	if rec.Entity.Description.Identifier != "other:golem" || client.ClientEntity.Description.Identifier != "other:golem" {
		t.Fatal("qualified identifier rewritten")
	}
}

func TestManifestCrossReference(t *testing.T) {
	b := newTestBuilder(t)
	res := build(t, b)

	bp := readJSON(t, res.BehaviorPack, "manifest.json")
	rp := readJSON(t, res.ResourcePack, "manifest.json")
	rpUUID := rp["header"].(map[string]any)["uuid"].(string)
	bpUUID := bp["header"].(map[string]any)["uuid"].(string)
	if rpUUID != res.Metadata.ResourceUUID || bpUUID != res.Metadata.BehaviorUUID {
		t.Fatalf("metadata uuids %s/%s, manifests %s/%s", res.Metadata.BehaviorUUID, res.Metadata.ResourceUUID, bpUUID, rpUUID)
	}
	deps := bp["dependencies"].([]any)
	if len(deps) != 1 || deps[0].(map[string]any)["uuid"] != rpUUID {
		t.Fatalf("behavior dependencies = %v, want uuid %s", deps, rpUUID)
	}
	if bpUUID == rpUUID {
		t.Fatal("packs share a uuid")
	}
	if rp["header"].(map[string]any)["name"] != "Test Addon Resources" {
		t.Fatalf("resource name = %v", rp["header"])
	}
	if v := bp["header"].(map[string]any)["min_engine_version"]; !reflect.DeepEqual(v, []any{1.0, 21.0, 50.0}) {
		t.Fatalf("min_engine_version = %v", v)
	}

	// uuids are fixed for the builder's lifetime
	again := build(t, b)
	if again.Metadata.BehaviorUUID != res.Metadata.BehaviorUUID {
		t.Fatal("uuid changed between builds")
	}
}

func TestManifestDecodesBack(t *testing.T) {
	b := newTestBuilder(t)
	if err := b.EnableScripting("1.11.0"); err != nil {
		t.Fatal(err)
	}
	res := build(t, b)
	tree, err := archive.Read(res.BehaviorPack)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := tree.File("manifest.json")
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if len(m.Dependencies) != 2 {
		t.Fatalf("dependencies = %+v", m.Dependencies)
	}
	if m.Dependencies[0].UUID != res.Metadata.ResourceUUID || m.Dependencies[0].Version.Triple == nil {
		t.Fatalf("pack dependency = %+v", m.Dependencies[0])
	}
	if m.Dependencies[1].ModuleName != ServerModule || m.Dependencies[1].Version.Name != "1.11.0" {
		t.Fatalf("module dependency = %+v", m.Dependencies[1])
	}
	script := m.Modules[len(m.Modules)-1]
	if script.Type != "script" || script.Entry != ScriptEntry || script.Language != "javascript" {
		t.Fatalf("script module = %+v", script)
	}
	if !tree.Has(ScriptEntry) {
		t.Fatal("scripts/main.js not written")
	}
}

func TestDefaultingIdempotent(t *testing.T) {
	run := func(opts ...Option) *BuildResult {
		b := newTestBuilder(t, opts...)
		if err := b.AddEntity(&EntityDefinition{Identifier: "blob"}); err != nil {
			t.Fatal(err)
		}
		return build(t, b)
	}

	a := run(WithUUIDs(sequentialUUIDs()), WithModTime(testTime))
	b := run(WithUUIDs(sequentialUUIDs()), WithModTime(testTime))
	if !bytes.Equal(a.BehaviorPack, b.BehaviorPack) || !bytes.Equal(a.ResourcePack, b.ResourcePack) || !bytes.Equal(a.Addon, b.Addon) {
		t.Fatal("identical inputs produced different archives")
	}

	// with fresh uuids only the manifests differ
	c, d := run(), run()
	for _, p := range []string{"entities/blob.json"} {
		if !reflect.DeepEqual(readJSON(t, c.BehaviorPack, p), readJSON(t, d.BehaviorPack, p)) {
			t.Fatalf("%s differs", p)
		}
	}
	if !reflect.DeepEqual(readJSON(t, c.ResourcePack, "entity/blob.entity.json"), readJSON(t, d.ResourcePack, "entity/blob.entity.json")) {
		t.Fatal("client entity differs")
	}
	if c.Metadata.BehaviorUUID == d.Metadata.BehaviorUUID {
		t.Fatal("fresh builders reused a uuid")
	}
}

func TestCombinedArchiveFileSet(t *testing.T) {
	b := newTestBuilder(t)
	if err := b.AddEntity(&EntityDefinition{Identifier: "golem"}); err != nil {
		t.Fatal(err)
	}
	if err := b.AddItem(&ItemDefinition{Identifier: "ruby"}); err != nil {
		t.Fatal(err)
	}
	if err := b.AddBlock(&BlockDefinition{Identifier: "ruby_ore"}); err != nil {
		t.Fatal(err)
	}
	res := build(t, b)
	paths, err := archive.List(res.Addon)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"Test Addon_BP/blocks/ruby_ore.json",
		"Test Addon_BP/entities/golem.json",
		"Test Addon_BP/items/ruby.json",
		"Test Addon_BP/manifest.json",
		"Test Addon_RP/blocks.json",
		"Test Addon_RP/entity/golem.entity.json",
		"Test Addon_RP/manifest.json",
		"Test Addon_RP/textures/item_texture.json",
		"Test Addon_RP/textures/terrain_texture.json",
	}
	if !reflect.DeepEqual(paths, want) {
		t.Fatalf("combined archive:\n got %v\nwant %v", paths, want)
	}

	// inner files are copied verbatim
	inner, _ := archive.Read(res.BehaviorPack)
	outer, _ := archive.Read(res.Addon)
	a, _ := inner.File("entities/golem.json")
	o, _ := outer.File("Test Addon_BP/entities/golem.json")
	if !bytes.Equal(a, o) {
		t.Fatal("combined archive entry differs from behavior pack entry")
	}
}

func TestScriptBeforeEnable(t *testing.T) {
	b := newTestBuilder(t)
	if err := b.AddEntity(&EntityDefinition{Identifier: "golem"}); err != nil {
		t.Fatal(err)
	}
	before := b.Counts()
	err := b.AddScript("main", "import {world} from '@minecraft/server';")
	if !errors.Is(err, ErrScriptingNotEnabled) {
		t.Fatalf("err = %v", err)
	}
	var misuse *MisuseError
	if !errors.As(err, &misuse) {
		t.Fatalf("err %T is not a MisuseError", err)
	}
	if b.Counts() != before {
		t.Fatalf("counts changed: %+v -> %+v", before, b.Counts())
	}
	res := build(t, b)
	tree, _ := archive.Read(res.BehaviorPack)
	for _, p := range tree.Paths() {
		if strings.HasPrefix(p, "scripts/") {
			t.Fatalf("unexpected script file %s", p)
		}
	}
}

func TestEnableScriptingTwice(t *testing.T) {
	b := newTestBuilder(t)
	if err := b.EnableScripting(""); err != nil {
		t.Fatal(err)
	}
	modules := len(b.bp.manifest.Modules)
	deps := len(b.bp.manifest.Dependencies)
	if err := b.EnableScripting("1.12.0"); !errors.Is(err, ErrScriptingAlreadyEnabled) {
		t.Fatalf("err = %v", err)
	}
	if len(b.bp.manifest.Modules) != modules || len(b.bp.manifest.Dependencies) != deps {
		t.Fatal("second EnableScripting mutated the manifest")
	}
	if got := b.bp.manifest.Dependencies[deps-1].Version.Name; got != DefaultServerVersion {
		t.Fatalf("server version = %q", got)
	}
}

func TestScripts(t *testing.T) {
	b := newTestBuilder(t)
	if err := b.EnableScripting(""); err != nil {
		t.Fatal(err)
	}
	if err := b.AddScript("main", "main()"); err != nil {
		t.Fatal(err)
	}
	if err := b.AddScript("main.js", "again()"); !errors.Is(err, ErrDuplicateArtifact) {
		t.Fatalf("err = %v", err)
	}
	if err := b.AddScript("lib/util", "export {}"); err != nil {
		t.Fatal(err)
	}
	if err := b.AddScript("../escape", ""); err == nil {
		t.Fatal("expected escape to be rejected")
	}
	res := build(t, b)
	tree, _ := archive.Read(res.BehaviorPack)
	main, _ := tree.File("scripts/main.js")
	if string(main) != "main()" {
		t.Fatalf("main = %q", main)
	}
	if !tree.Has("scripts/lib/util.js") {
		t.Fatal("module not written")
	}
	if b.Counts().Scripts != 2 {
		t.Fatalf("scripts = %d", b.Counts().Scripts)
	}
}

func TestInputErrors(t *testing.T) {
	if _, err := NewBuilder(AddonConfig{Namespace: "ns"}); err == nil {
		t.Fatal("missing name accepted")
	}
	b := newTestBuilder(t)
	for _, id := range []string{"", "  ", "a:b:c", ":golem", "ns:", "bad id", "a/b"} {
		err := b.AddEntity(&EntityDefinition{Identifier: id})
		var in *InputError
		if !errors.As(err, &in) {
			t.Errorf("identifier %q: err = %v", id, err)
		}
	}
	if b.Counts().Entities != 0 {
		t.Fatal("rejected entities were counted")
	}
	if err := b.AddEntity(nil); err == nil {
		t.Fatal("nil definition accepted")
	}
}

func TestDuplicateEntityRejected(t *testing.T) {
	b := newTestBuilder(t)
	if err := b.AddEntity(&EntityDefinition{Identifier: "golem"}); err != nil {
		t.Fatal(err)
	}
	err := b.AddEntity(&EntityDefinition{Identifier: "other:golem", LootTable: json.RawMessage(`{"pools":[]}`)})
	if !errors.Is(err, ErrDuplicateArtifact) {
		t.Fatalf("err = %v", err)
	}
	if b.Counts().Entities != 1 || b.Counts().LootTables != 0 {
		t.Fatalf("counts = %+v", b.Counts())
	}
	if _, ok := b.bp.file("loot_tables/entities/golem.json"); ok {
		t.Fatal("loot table of rejected entity was kept")
	}
}

func TestBatchIsolation(t *testing.T) {
	b := newTestBuilder(t)
	err := b.AddEntities([]EntityDefinition{
		{Identifier: "wolf"},
		{Identifier: ""},
		{Identifier: "bear"},
		{Identifier: "wolf"},
	})
	var batch *BatchError
	if !errors.As(err, &batch) {
		t.Fatalf("err = %v", err)
	}
	if len(batch.Failures) != 2 {
		t.Fatalf("failures = %v", batch.Failures)
	}
	if batch.Failures[0].Index != 1 || batch.Failures[1].Index != 3 || batch.Failures[1].Identifier != "wolf" {
		t.Fatalf("failures = %+v %+v", batch.Failures[0], batch.Failures[1])
	}
	if !errors.Is(err, ErrDuplicateArtifact) {
		t.Fatal("batch error does not expose the duplicate failure")
	}
	if b.Counts().Entities != 2 {
		t.Fatalf("entities = %d", b.Counts().Entities)
	}
	if err := b.AddItems([]ItemDefinition{{Identifier: "a"}, {Identifier: "b"}}); err != nil {
		t.Fatalf("clean batch returned %v", err)
	}
}

func TestDefinitionsAreCopied(t *testing.T) {
	b := newTestBuilder(t)
	def := &EntityDefinition{
		Identifier:           "golem",
		FamilyTypes:          []string{"golem"},
		AdditionalComponents: map[string]any{"minecraft:scale": map[string]any{"value": 2.0}},
	}
	if err := b.AddEntity(def); err != nil {
		t.Fatal(err)
	}
	def.FamilyTypes[0] = "mutated"
	def.AdditionalComponents["minecraft:scale"].(map[string]any)["value"] = 9.0
	def.Identifier = "golem2"
	if err := b.AddEntity(def); err != nil {
		t.Fatal(err)
	}

	res := build(t, b)
	c := components(t, readJSON(t, res.BehaviorPack, "entities/golem.json"))
	if fam := c["minecraft:type_family"].(map[string]any)["family"].([]any); fam[0] != "golem" {
		t.Fatalf("family = %v", fam)
	}
	if v := c["minecraft:scale"].(map[string]any)["value"]; v != 2.0 {
		t.Fatalf("scale = %v", v)
	}
}

func TestEntityAttachments(t *testing.T) {
	b := newTestBuilder(t)
	err := b.AddEntity(&EntityDefinition{
		Identifier:           "dragon",
		Movement:             &Movement{Type: "fly", Value: 0.5},
		Geometry:             json.RawMessage(`{"format_version":"1.12.0","minecraft:geometry":[{"description":{"identifier":"geometry.dragon"}}]}`),
		Animations:           []json.RawMessage{json.RawMessage(`{"format_version":"1.8.0","animations":{"animation.dragon.fly":{"loop":true}}}`)},
		AnimationControllers: []json.RawMessage{json.RawMessage(`{"format_version":"1.10.0","animation_controllers":{"controller.animation.dragon.move":{}}}`)},
		RenderController:     json.RawMessage(`{"format_version":"1.8.0","render_controllers":{"controller.render.dragon":{}}}`),
		SpawnRules:           json.RawMessage(`{"minecraft:spawn_rules":{"description":{"population_control":"monster"}}}`),
		LootTable:            json.RawMessage(`{"pools":[{"rolls":1,"entries":[{"type":"item","name":"minecraft:dragon_egg"}]}]}`),
		Textures:             map[string]string{"default": "textures/entity/dragon_red.png", "glow": ""},
	})
	if err != nil {
		t.Fatal(err)
	}
	res := build(t, b)
	bpPaths, _ := archive.List(res.BehaviorPack)
	rpPaths, _ := archive.List(res.ResourcePack)
	wantBP := []string{"entities/dragon.json", "loot_tables/entities/dragon.json", "manifest.json", "spawn_rules/dragon.json"}
	wantRP := []string{
		"animation_controllers/dragon.move.json",
		"animations/dragon.fly.animation.json",
		"entity/dragon.entity.json",
		"manifest.json",
		"models/entity/dragon.geo.json",
		"render_controllers/dragon.json",
	}
	if !reflect.DeepEqual(bpPaths, wantBP) {
		t.Errorf("bp = %v", bpPaths)
	}
	if !reflect.DeepEqual(rpPaths, wantRP) {
		t.Errorf("rp = %v", rpPaths)
	}

	spawn := readJSON(t, res.BehaviorPack, "spawn_rules/dragon.json")
	sr := spawn["minecraft:spawn_rules"].(map[string]any)
	if sr["description"].(map[string]any)["identifier"] != "testns:dragon" {
		t.Fatalf("spawn rules identifier = %v", sr["description"])
	}
	if spawn["format_version"] != "1.8.0" {
		t.Fatalf("spawn format = %v", spawn["format_version"])
	}

	c := components(t, readJSON(t, res.BehaviorPack, "entities/dragon.json"))
	if c["minecraft:loot"].(map[string]any)["table"] != "loot_tables/entities/dragon.json" {
		t.Fatalf("loot = %v", c["minecraft:loot"])
	}

	client := readJSON(t, res.ResourcePack, "entity/dragon.entity.json")
	tex := client["minecraft:client_entity"].(map[string]any)["description"].(map[string]any)["textures"].(map[string]any)
	if tex["default"] != "textures/entity/dragon_red" || tex["glow"] != "textures/entity/dragon/glow" {
		t.Fatalf("textures = %v", tex)
	}
	if b.Counts().SpawnRules != 1 || b.Counts().LootTables != 1 || b.Counts().Animations != 1 {
		t.Fatalf("counts = %+v", b.Counts())
	}
}

func TestSharedAnimationAcceptedOnce(t *testing.T) {
	b := newTestBuilder(t)
	anim := json.RawMessage(`{"animations":{"animation.common.idle":{}}}`)
	if err := b.AddEntity(&EntityDefinition{Identifier: "a", Animations: []json.RawMessage{anim}}); err != nil {
		t.Fatal(err)
	}
	if err := b.AddEntity(&EntityDefinition{Identifier: "b", Animations: []json.RawMessage{anim}}); err != nil {
		t.Fatalf("identical shared animation rejected: %v", err)
	}
	other := json.RawMessage(`{"animations":{"animation.common.idle":{"loop":true}}}`)
	if err := b.AddAnimation(other); !errors.Is(err, ErrDuplicateArtifact) {
		t.Fatalf("conflicting animation: err = %v", err)
	}
}

func TestPassthroughArtifacts(t *testing.T) {
	b := newTestBuilder(t)
	if err := b.AddRecipe(json.RawMessage(`{"format_version":"1.20.10","minecraft:recipe_shapeless":{"description":{"identifier":"testns:ruby_block"},"ingredients":[{"item":"testns:ruby","count":9}],"result":{"item":"testns:ruby_block"}}}`)); err != nil {
		t.Fatal(err)
	}
	if err := b.AddRecipe(json.RawMessage(`{"format_version":"1.20.10","not_a_recipe":{}}`)); err == nil {
		t.Fatal("recipe without recipe member accepted")
	}
	if err := b.AddLootTable("blocks/ruby_ore", json.RawMessage(`{"pools":[]}`)); err != nil {
		t.Fatal(err)
	}
	if err := b.AddLootTable("../../etc/passwd", json.RawMessage(`{"pools":[]}`)); err == nil {
		t.Fatal("escaping loot path accepted")
	}
	if err := b.AddSpawnRules(json.RawMessage(`{"format_version":"1.8.0","minecraft:spawn_rules":{"description":{"identifier":"testns:slime"},"conditions":[{"minecraft:brightness_filter":{"min":0,"max":7}}]}}`)); err != nil {
		t.Fatal(err)
	}
	if err := b.AddSpawnRules(json.RawMessage(`{"minecraft:spawn_rules":{"description":{}}}`)); err == nil {
		t.Fatal("spawn rules without identifier accepted")
	}
	if err := b.AddTextureFile("items/ruby.png", []byte{0x89, 'P', 'N', 'G'}); err != nil {
		t.Fatal(err)
	}
	if err := b.AddTextureFile("terrain_texture.json", []byte("{}")); !errors.Is(err, ErrDuplicateArtifact) {
		t.Fatalf("generated atlas overwritable: %v", err)
	}
	if err := b.AddSoundDefinition("mob.golem.hit", json.RawMessage(`{"category":"neutral","sounds":["sounds/mob/golem/hit"]}`)); err != nil {
		t.Fatal(err)
	}

	res := build(t, b)
	bpPaths, _ := archive.List(res.BehaviorPack)
	wantBP := []string{"loot_tables/blocks/ruby_ore.json", "manifest.json", "recipes/ruby_block.json", "spawn_rules/slime.json"}
	if !reflect.DeepEqual(bpPaths, wantBP) {
		t.Fatalf("bp = %v", bpPaths)
	}
	sounds := readJSON(t, res.ResourcePack, "sounds/sound_definitions.json")
	if _, ok := sounds["sound_definitions"].(map[string]any)["mob.golem.hit"]; !ok {
		t.Fatalf("sounds = %v", sounds)
	}
	tree, _ := archive.Read(res.ResourcePack)
	if !tree.Has("textures/items/ruby.png") {
		t.Fatal("texture file missing")
	}
	if res.Metadata.RecipeCount != 1 {
		t.Fatalf("recipeCount = %d", res.Metadata.RecipeCount)
	}
}

func TestPackIcon(t *testing.T) {
	icon := []byte{0x89, 'P', 'N', 'G', 1, 2, 3}
	b, err := NewBuilder(AddonConfig{Name: "Icons", Namespace: "ic", PackIcon: icon})
	if err != nil {
		t.Fatal(err)
	}
	icon[4] = 9
	res := build(t, b)
	for _, pack := range [][]byte{res.BehaviorPack, res.ResourcePack} {
		tree, _ := archive.Read(pack)
		got, ok := tree.File("pack_icon.png")
		if !ok || got[4] != 1 {
			t.Fatalf("pack icon = %v", got)
		}
	}
}

func TestBuildErrorOnInvalidManifest(t *testing.T) {
	b := newTestBuilder(t, WithUUIDs(func() string { return "not-a-uuid" }))
	_, err := b.Build()
	var be *BuildError
	if !errors.As(err, &be) || be.Path != "manifest.json" {
		t.Fatalf("err = %v", err)
	}
}
