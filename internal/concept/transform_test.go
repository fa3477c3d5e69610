package concept

import (
	"errors"
	"math"
	"testing"

	"github.com/tidwall/gjson"
	"golang.org/x/exp/slices"

	"github.com/insushim/iswaddon"
)

func TestTransformEntity(t *testing.T) {
	raw := []byte(`{
		"identifier": "namespace:Fire Golem",
		"entityType": "hostile",
		"properties": {
			"health": {"value": "80", "max": 100},
			"movement": {"value": 0.2},
			"attack": {"damage": 9},
			"scale": 1.5
		},
		"physics": {"hasGravity": true, "collisionBox": {"width": 1.2, "height": 2.7}},
		"familyTypes": "golem, monster",
		"aiGoals": [
			{"name": "float", "priority": 0},
			{"type": "melee_attack", "priority": "2", "params": {"speed_multiplier": 1.2}},
			"wander",
			{"priority": 4}
		],
		"loot": [
			{"item": "blaze_rod", "chance": 0.5, "count": {"min": 1, "max": 3}},
			{"item": "minecraft:iron_ingot", "chance": 1}
		],
		"spawnRules": {"biomes": ["nether"], "spawnTime": "night", "minGroupSize": 1, "maxGroupSize": 2, "weight": 20}
	}`)
	def, err := TransformEntity(raw)
	if err != nil {
		t.Fatal(err)
	}
	if def.Identifier != "fire_golem" {
		t.Errorf("identifier = %q", def.Identifier)
	}
	if def.Health == nil || def.Health.Value != 80 || def.Health.Max != 100 {
		t.Errorf("health = %+v", def.Health)
	}
	if def.Movement == nil || def.Movement.Type != "basic" || def.Movement.Value != 0.2 {
		t.Errorf("movement = %+v", def.Movement)
	}
	if def.Attack == nil || def.Attack.Damage != 9 {
		t.Errorf("attack = %+v", def.Attack)
	}
	if def.Physics == nil || !*def.Physics {
		t.Errorf("physics = %v", def.Physics)
	}
	if def.CollisionBox == nil || def.CollisionBox.Width != 1.2 || def.CollisionBox.Height != 2.7 {
		t.Errorf("collision box = %+v", def.CollisionBox)
	}
	if len(def.FamilyTypes) != 2 || def.FamilyTypes[1] != "monster" {
		t.Errorf("families = %v", def.FamilyTypes)
	}
	if _, ok := def.AdditionalComponents["minecraft:scale"]; !ok {
		t.Error("scale component missing")
	}

	if len(def.Behaviors) != 3 {
		t.Fatalf("behaviors = %+v", def.Behaviors)
	}
	if def.Behaviors[1].Type != "melee_attack" || def.Behaviors[1].Priority == nil || *def.Behaviors[1].Priority != 2 {
		t.Errorf("behavior 1 = %+v", def.Behaviors[1])
	}
	if def.Behaviors[1].Params["speed_multiplier"] != 1.2 {
		t.Errorf("params = %v", def.Behaviors[1].Params)
	}
	if def.Behaviors[2].Type != "wander" || def.Behaviors[2].Priority != nil {
		t.Errorf("behavior 2 = %+v", def.Behaviors[2])
	}

	loot := gjson.ParseBytes(def.LootTable)
	if n := len(loot.Get("pools").Array()); n != 2 {
		t.Fatalf("pools = %d", n)
	}
	if got := loot.Get("pools.0.entries.0.name").String(); got != "minecraft:blaze_rod" {
		t.Errorf("first drop = %q", got)
	}
	if got := loot.Get("pools.0.entries.0.functions.0.count.max").Int(); got != 3 {
		t.Errorf("count max = %d", got)
	}
	if got := loot.Get("pools.0.conditions.0.chance").Float(); got != 0.5 {
		t.Errorf("chance = %v", got)
	}
	if loot.Get("pools.1.conditions").Exists() {
		t.Error("certain drop got a chance condition")
	}

	rules := gjson.ParseBytes(def.SpawnRules)
	cond := rules.Get(`minecraft:spawn_rules.conditions.0`)
	if got := cond.Get(`minecraft:weight.default`).Int(); got != 20 {
		t.Errorf("weight = %d", got)
	}
	if got := cond.Get(`minecraft:brightness_filter.max`).Int(); got != 7 {
		t.Errorf("night brightness max = %d", got)
	}
	if got := cond.Get(`minecraft:biome_filter.any_of.0.value`).String(); got != "nether" {
		t.Errorf("biome = %q", got)
	}
	if got := rules.Get(`minecraft:spawn_rules.description.population_control`).String(); got != "monster" {
		t.Errorf("population = %q", got)
	}
}

func TestTransformEntityPriorityRange(t *testing.T) {
	def, err := TransformEntity([]byte(`{
		"identifier": "ns:odd",
		"aiGoals": [
			{"name": "float", "priority": 1e30},
			{"name": "panic", "priority": -5},
			{"name": "breed", "priority": 2.9}
		]
	}`))
	if err != nil {
		t.Fatal(err)
	}
	want := []int{math.MaxInt32, 0, 2}
	if len(def.Behaviors) != len(want) {
		t.Fatalf("behaviors = %+v", def.Behaviors)
	}
	for i, w := range want {
		if p := def.Behaviors[i].Priority; p == nil || *p != w {
			t.Errorf("behavior %d priority = %v, want %d", i, p, w)
		}
	}
}

func TestToInt(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{-1, 0},
		{0, 0},
		{3.7, 3},
		{1e300, math.MaxInt32},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := toInt(tt.in); got != tt.want {
			t.Errorf("toInt(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTransformEntityFlyingExpanded(t *testing.T) {
	def, err := TransformEntity([]byte(`{
		"identifier": "sky_ray",
		"stats": {"health": 30, "movementSpeed": "0.4", "damage": {"base": 0}},
		"physics": {"width": 2, "height": 0.5, "canFly": true, "canSwim": true, "hasGravity": false}
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if def.Movement == nil || def.Movement.Type != "fly" || def.Movement.Value != 0.4 {
		t.Errorf("movement = %+v", def.Movement)
	}
	if def.Health == nil || def.Health.Value != 30 || def.Health.Max != 30 {
		t.Errorf("health = %+v", def.Health)
	}
	if def.Physics == nil || *def.Physics {
		t.Errorf("physics = %v", def.Physics)
	}
	if def.CollisionBox == nil || def.CollisionBox.Width != 2 {
		t.Errorf("collision box = %+v", def.CollisionBox)
	}
	if def.Navigation == nil || !*def.Navigation.CanSwim || *def.Navigation.AvoidWater {
		t.Errorf("navigation = %+v", def.Navigation)
	}
}

func TestTransformEntityBuilds(t *testing.T) {
	def, err := TransformEntity([]byte(`{
		"identifier": "ns:ember_imp",
		"properties": {"attack": {"damage": 3}},
		"aiGoals": [{"name": "hover"}, {"name": "fireball", "priority": 2}],
		"loot": [{"item": "coal", "count": {"min": 1, "max": 2}}],
		"spawnRules": {"biomes": "nether", "weight": 10}
	}`))
	if err != nil {
		t.Fatal(err)
	}
	b, err := iswaddon.NewBuilder(iswaddon.AddonConfig{Name: "Imps", Namespace: "ns"})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.AddEntity(def); err != nil {
		t.Fatal(err)
	}
	c := b.Counts()
	if c.Entities != 1 || c.LootTables != 1 || c.SpawnRules != 1 {
		t.Errorf("counts = %+v", c)
	}
	if _, err := b.Build(); err != nil {
		t.Fatal(err)
	}
}

func TestTransformEntityMissingIdentifier(t *testing.T) {
	_, err := TransformEntity([]byte(`{"displayName": "불의 골렘", "properties": {}}`))
	var ie *iswaddon.InputError
	if !errors.As(err, &ie) || ie.Field != "identifier" {
		t.Fatalf("err = %v", err)
	}
	if _, err := TransformEntity([]byte(`[1,2]`)); !errors.As(err, &ie) {
		t.Fatalf("array accepted: %v", err)
	}
	if _, err := TransformEntity([]byte(`{"identifier":`)); !errors.As(err, &ie) {
		t.Fatalf("broken JSON accepted: %v", err)
	}
}

func TestTransformItem(t *testing.T) {
	def, rec, err := TransformItem([]byte(`{
		"identifier": "namespace:frost_blade",
		"displayName": "Frost Blade",
		"itemType": "weapon",
		"properties": {"maxStackSize": 1, "maxDurability": "1561", "damage": 8, "handEquipped": true},
		"components": [{"type": "minecraft:glint", "params": true}, {"type": "not_namespaced"}],
		"craftingRecipe": {"type": "shaped", "ingredients": ["minecraft:diamond", "ice", "stick"], "pattern": [" D ", " I ", " S "]},
		"category": "Equipment",
		"creativeGroup": "itemGroup.name.sword"
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if def.Identifier != "frost_blade" || def.DisplayName != "Frost Blade" || def.Kind != iswaddon.KindWeapon {
		t.Errorf("def = %+v", def)
	}
	if def.MaxStackSize != 1 || def.Durability == nil || def.Durability.Max != 1561 || def.Damage != 8 {
		t.Errorf("stats = %+v", def)
	}
	if def.Category != "equipment" || def.Group != "itemGroup.name.sword" {
		t.Errorf("placement = %q %q", def.Category, def.Group)
	}
	if def.AdditionalComponents["minecraft:hand_equipped"] != true || def.AdditionalComponents["minecraft:glint"] != true {
		t.Errorf("components = %v", def.AdditionalComponents)
	}
	if _, ok := def.AdditionalComponents["not_namespaced"]; ok {
		t.Error("bare component name kept")
	}

	if rec == nil {
		t.Fatal("recipe dropped")
	}
	if rec.Type != iswaddon.RecipeShaped || rec.Identifier != "frost_blade_recipe" || rec.Output.Item != "frost_blade" {
		t.Errorf("recipe = %+v", rec)
	}
	if rec.Key["D"] != "minecraft:diamond" || rec.Key["I"] != "ice" || rec.Key["S"] != "stick" {
		t.Errorf("key = %v", rec.Key)
	}
	if want := []string{" D ", " I ", " S "}; !slices.Equal(rec.Pattern, want) {
		t.Errorf("pattern = %q, want %q", rec.Pattern, want)
	}
	if _, err := iswaddon.AssembleRecipe(rec, "ns"); err != nil {
		t.Errorf("recipe does not assemble: %v", err)
	}
}

func TestTransformItemFood(t *testing.T) {
	def, rec, err := TransformItem([]byte(`{"identifier": "ns:Glow Berry Pie", "itemType": "food", "properties": {"saturation": "good"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if def.Identifier != "ns:glow_berry_pie" {
		t.Errorf("identifier = %q", def.Identifier)
	}
	if def.Food == nil || def.Food.Nutrition != 4 || def.Food.Saturation != 0.8 {
		t.Errorf("food = %+v", def.Food)
	}
	if rec != nil {
		t.Errorf("recipe = %+v", rec)
	}
}

func TestRecipeKeepsPatternSpacing(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"pickaxe", `["RRR", " S ", " S "]`, []string{"RRR", " S ", " S "}},
		{"leading column", `["R  ", "S  "]`, []string{"R  ", "S  "}},
		{"blank row kept", `["RRR", "   ", "RRR"]`, []string{"RRR", "   ", "RRR"}},
		{"empty rows dropped", `["", "R R", ""]`, []string{"R R"}},
		{"single string", `"RR\n S"`, []string{"RR", " S"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := `{"type": "shaped", "ingredients": ["ruby", "stick"], "pattern": ` + tt.raw + `}`
			rec := recipe(gjson.Parse(raw), "ruby_pickaxe")
			if rec == nil {
				t.Fatal("recipe dropped")
			}
			if !slices.Equal(rec.Pattern, tt.want) {
				t.Errorf("pattern = %q, want %q", rec.Pattern, tt.want)
			}
			if _, err := iswaddon.AssembleRecipe(rec, "ns"); err != nil {
				t.Errorf("recipe does not assemble: %v", err)
			}
		})
	}

	rec := recipe(gjson.Parse(`{"type": "shaped", "ingredients": ["ruby", "stick"], "pattern": ["RRR", " S ", " S "]}`), "ruby_pickaxe")
	if rec == nil || rec.Key["R"] != "ruby" || rec.Key["S"] != "stick" || len(rec.Key) != 2 {
		t.Errorf("key = %+v", rec)
	}
}

func TestRecipeDropsUnusable(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no ingredients", `{"type": "shaped", "pattern": ["A"]}`},
		{"more symbols than ingredients", `{"type": "shaped", "ingredients": ["a"], "pattern": ["AB"]}`},
		{"wide row", `{"type": "shaped", "ingredients": ["a"], "pattern": ["AAAA"]}`},
		{"wide padded row", `{"type": "shaped", "ingredients": ["a"], "pattern": [" A  "]}`},
		{"four rows", `{"type": "shaped", "ingredients": ["a"], "pattern": ["A", "A", "A", "A"]}`},
		{"only empty rows", `{"type": "shaped", "ingredients": ["a"], "pattern": ["", ""]}`},
		{"unknown type", `{"type": "smithing", "ingredients": ["a"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := recipe(gjson.Parse(tt.raw), "x"); rec != nil {
				t.Errorf("recipe = %+v", rec)
			}
		})
	}
	rec := recipe(gjson.Parse(`{"ingredients": "coal, stick"}`), "torch2")
	if rec == nil || rec.Type != iswaddon.RecipeShapeless || len(rec.Ingredients) != 2 {
		t.Errorf("shapeless recipe = %+v", rec)
	}
}

func TestTransformBlock(t *testing.T) {
	def, err := TransformBlock([]byte(`{
		"identifier": "namespace:glow_ore",
		"blockType": "building",
		"properties": {"hardness": 3, "blastResistance": true, "friction": "0.4", "lightLevel": 9.6, "mapColor": "#33ccff"},
		"states": [{"name": "ns:lit", "values": [false, true], "default": false}, {"name": "empty", "values": []}],
		"permutations": [{"condition": "q.block_state('ns:lit')", "components": {"minecraft:light_emission": 15}}],
		"components": {"minecraft:flammable": {"catch_chance_modifier": 5}},
		"sound": "stone",
		"category": "Nature"
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if def.Identifier != "glow_ore" {
		t.Errorf("identifier = %q", def.Identifier)
	}
	if def.DestructibleByMining == nil || def.DestructibleByMining.Value == nil || *def.DestructibleByMining.Value != 3 {
		t.Errorf("mining = %+v", def.DestructibleByMining)
	}
	if def.DestructibleByExplosion == nil || def.DestructibleByExplosion.Flag == nil || !*def.DestructibleByExplosion.Flag {
		t.Errorf("explosion = %+v", def.DestructibleByExplosion)
	}
	if def.Friction == nil || *def.Friction != 0.4 {
		t.Errorf("friction = %v", def.Friction)
	}
	if def.LightEmission != 10 || def.MapColor != "#33ccff" || def.Sound != "stone" || def.Category != "nature" {
		t.Errorf("def = %+v", def)
	}
	if len(def.States) != 1 || len(def.States["ns:lit"]) != 2 {
		t.Errorf("states = %v", def.States)
	}
	if len(def.Permutations) != 1 {
		t.Errorf("permutations = %v", def.Permutations)
	}
	if _, ok := def.AdditionalComponents["minecraft:flammable"]; !ok {
		t.Errorf("components = %v", def.AdditionalComponents)
	}
}

func TestTransformExpanded(t *testing.T) {
	bundle, err := TransformExpanded([]byte(`{
		"conceptType": "item",
		"item": {"identifier": "namespace:ember_pick", "itemType": "tool", "stats": {"durability": 250, "damage": 4},
			"craftingRecipe": {"ingredients": ["coal", "stick"], "pattern": ["CCC", " S ", " S "]}},
		"designNotes": ["balanced against iron"]
	}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(bundle.Items) != 1 || len(bundle.Recipes) != 1 {
		t.Fatalf("bundle = %+v", bundle)
	}
	if bundle.Items[0].Durability == nil || bundle.Items[0].Durability.Max != 250 {
		t.Errorf("item = %+v", bundle.Items[0])
	}

	b, err := iswaddon.NewBuilder(iswaddon.AddonConfig{Name: "Picks", Namespace: "ember"})
	if err != nil {
		t.Fatal(err)
	}
	if err := bundle.AddTo(b); err != nil {
		t.Fatal(err)
	}
	if c := b.Counts(); c.Items != 1 || c.Recipes != 1 {
		t.Errorf("counts = %+v", c)
	}
	if want := []string{"CCC", " S ", " S "}; !slices.Equal(bundle.Recipes[0].Pattern, want) {
		t.Errorf("pattern = %q, want %q", bundle.Recipes[0].Pattern, want)
	}

	if _, err := TransformExpanded([]byte(`{"conceptType": "entity"}`)); err == nil {
		t.Error("empty design accepted")
	}
}

func TestSanitize(t *testing.T) {
	tests := map[string]string{
		"Fire Golem": "fire_golem",
		"fire-golem": "fire_golem",
		"FireGolem":  "fire_golem",
		"__odd__":    "odd",
		"골렘":         "",
		"  spaced  ": "spaced",
	}
	for in, want := range tests {
		if got := sanitize(in); got != want {
			t.Errorf("sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}
