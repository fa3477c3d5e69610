package concept

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/stoewer/go-strcase"
	"github.com/tidwall/gjson"

	"github.com/insushim/iswaddon"
)

// Bundle is a set of builder definitions produced from one generator answer.
type Bundle struct {
	Entities []iswaddon.EntityDefinition `json:"entities,omitempty"`
	Items    []iswaddon.ItemDefinition   `json:"items,omitempty"`
	Blocks   []iswaddon.BlockDefinition  `json:"blocks,omitempty"`
	Recipes  []iswaddon.RecipeDefinition `json:"recipes,omitempty"`
}

// AddTo adds every definition to b. Failures of single artifacts are
// collected into one *iswaddon.BatchError; the rest are kept.
func (bd *Bundle) AddTo(b *iswaddon.Builder) error {
	var failures []*iswaddon.ArtifactError
	collect := func(err error) {
		var batch *iswaddon.BatchError
		if errors.As(err, &batch) {
			failures = append(failures, batch.Failures...)
		}
	}
	collect(b.AddEntities(bd.Entities))
	collect(b.AddItems(bd.Items))
	collect(b.AddBlocks(bd.Blocks))
	for i := range bd.Recipes {
		if err := b.AddRecipeDefinition(&bd.Recipes[i]); err != nil {
			failures = append(failures, &iswaddon.ArtifactError{Kind: "recipe", Index: i, Identifier: bd.Recipes[i].Identifier, Err: err})
		}
	}
	if len(failures) > 0 {
		return &iswaddon.BatchError{Failures: failures}
	}
	return nil
}

// TransformEntity reads an entity concept, in either the analysis or the
// expanded layout, into an entity definition. Loot and spawn data become an
// attached loot table and spawn rules.
func TransformEntity(raw []byte) (*iswaddon.EntityDefinition, error) {
	r, err := parse("entity", raw)
	if err != nil {
		return nil, err
	}
	id, err := identifier("entity", r)
	if err != nil {
		return nil, err
	}
	def := &iswaddon.EntityDefinition{Identifier: id}

	props, stats, physics := r.Get("properties"), r.Get("stats"), r.Get("physics")
	if h := first(props.Get("health"), stats.Get("health"), r.Get("health")); h.Exists() {
		if v, ok := number(h); ok {
			def.Health = &iswaddon.Health{Value: v, Max: v}
		} else if v, ok := number(first(h.Get("value"), h.Get("base"))); ok {
			hi, ok := number(h.Get("max"))
			if !ok || hi < v {
				hi = v
			}
			def.Health = &iswaddon.Health{Value: v, Max: hi}
		}
	}

	mov := first(props.Get("movement"), r.Get("movement"))
	speed, ok := number(first(mov.Get("value"), mov.Get("speed"), stats.Get("movementSpeed")))
	if v, isNum := number(mov); isNum {
		speed, ok = v, true
	}
	mode := strings.ToLower(mov.Get("type").String())
	if boolean(physics.Get("canFly"), false) {
		mode = "fly"
	}
	if ok || mode != "" {
		if !ok || speed <= 0 {
			speed = 0.25
		}
		if mode == "" {
			mode = "basic"
		}
		def.Movement = &iswaddon.Movement{Type: mode, Value: speed}
	}

	attack := first(props.Get("attack"), stats.Get("damage"), r.Get("attack"))
	if v, ok := number(attack); ok {
		def.Attack = &iswaddon.Attack{Damage: v}
	} else if v, ok := number(first(attack.Get("damage"), attack.Get("base"))); ok {
		def.Attack = &iswaddon.Attack{Damage: v}
	}

	if physics.Exists() {
		if g := physics.Get("hasGravity"); g.Exists() {
			v := boolean(g, true)
			def.Physics = &v
		}
		if swim := physics.Get("canSwim"); swim.Exists() {
			canSwim := boolean(swim, false)
			avoid := !canSwim
			def.Navigation = &iswaddon.Navigation{CanSwim: &canSwim, AvoidWater: &avoid}
		}
	}
	box := first(physics.Get("collisionBox"), r.Get("collisionBox"), physics)
	if w, ok := number(box.Get("width")); ok && w > 0 {
		if h, ok := number(box.Get("height")); ok && h > 0 {
			def.CollisionBox = &iswaddon.CollisionBox{Width: w, Height: h}
		}
	}
	if scale, ok := number(first(props.Get("scale"), physics.Get("scale"))); ok && scale > 0 && scale != 1 {
		def.AdditionalComponents = map[string]any{"minecraft:scale": map[string]any{"value": scale}}
	}

	def.FamilyTypes = stringList(r.Get("familyTypes"))
	for _, g := range first(r.Get("aiGoals"), r.Get("behaviors")).Array() {
		name := first(g.Get("name"), g.Get("type")).String()
		if g.Type == gjson.String {
			name = g.String()
		}
		if strings.TrimSpace(name) == "" {
			continue
		}
		b := iswaddon.Behavior{Type: name}
		if p, ok := number(g.Get("priority")); ok {
			n := toInt(p)
			b.Priority = &n
		}
		if params := g.Get("params"); params.IsObject() {
			b.Params = map[string]any{}
			if err := json.Unmarshal([]byte(params.Raw), &b.Params); err != nil {
				b.Params = nil
			}
		}
		def.Behaviors = append(def.Behaviors, b)
	}

	if loot := lootTable(r.Get("loot")); loot != nil {
		def.LootTable = loot
	}
	if rules := spawnRules(first(r.Get("spawnRules"), r.Get("spawn")), r.Get("entityType").String()); rules != nil {
		def.SpawnRules = rules
	}
	return def, nil
}

// TransformItem reads an item concept into an item definition and, when the
// concept carries a usable crafting recipe, a recipe definition.
func TransformItem(raw []byte) (*iswaddon.ItemDefinition, *iswaddon.RecipeDefinition, error) {
	r, err := parse("item", raw)
	if err != nil {
		return nil, nil, err
	}
	id, err := identifier("item", r)
	if err != nil {
		return nil, nil, err
	}
	def := &iswaddon.ItemDefinition{
		Identifier:  id,
		DisplayName: strings.TrimSpace(r.Get("displayName").String()),
		Group:       strings.TrimSpace(r.Get("creativeGroup").String()),
		Category:    strings.ToLower(strings.TrimSpace(r.Get("category").String())),
	}
	props := first(r.Get("properties"), r.Get("stats"))
	kind := iswaddon.ItemKind(strings.ToLower(strings.TrimSpace(first(r.Get("itemType"), r.Get("type")).String())))
	switch kind {
	case iswaddon.KindWeapon, iswaddon.KindTool, iswaddon.KindArmor, iswaddon.KindFood, iswaddon.KindThrowable, iswaddon.KindMaterial:
		def.Kind = kind
	}
	if n, ok := number(props.Get("maxStackSize")); ok && n > 0 {
		def.MaxStackSize = toInt(n)
	}
	if n, ok := number(first(props.Get("maxDurability"), props.Get("durability"))); ok && n > 0 {
		def.Durability = &iswaddon.Durability{Max: toInt(n)}
	}
	if n, ok := number(props.Get("damage")); ok && n > 0 {
		def.Damage = n
	}
	nutrition, hasNutrition := number(first(props.Get("nutrition"), r.Get("food.nutrition")))
	if hasNutrition || def.Kind == iswaddon.KindFood {
		if !hasNutrition || nutrition <= 0 {
			nutrition = 4
		}
		food := &iswaddon.Food{Nutrition: toInt(nutrition), Saturation: 0.6}
		if s := first(props.Get("saturation"), r.Get("food.saturation")); s.Exists() {
			var sat iswaddon.Saturation
			if err := json.Unmarshal([]byte(s.Raw), &sat); err == nil {
				food.Saturation = sat
			}
		}
		def.Food = food
	}
	if def.Kind == iswaddon.KindThrowable {
		def.Throwable = &iswaddon.Throwable{}
	}
	if boolean(props.Get("handEquipped"), false) {
		def.AdditionalComponents = map[string]any{"minecraft:hand_equipped": true}
	}
	def.AdditionalComponents = components(r.Get("components"), def.AdditionalComponents)

	return def, recipe(r.Get("craftingRecipe"), id), nil
}

// TransformBlock reads a block concept into a block definition.
func TransformBlock(raw []byte) (*iswaddon.BlockDefinition, error) {
	r, err := parse("block", raw)
	if err != nil {
		return nil, err
	}
	id, err := identifier("block", r)
	if err != nil {
		return nil, err
	}
	def := &iswaddon.BlockDefinition{
		Identifier: id,
		MapColor:   strings.TrimSpace(r.Get("properties.mapColor").String()),
		Sound:      strings.TrimSpace(r.Get("sound").String()),
		Category:   strings.ToLower(strings.TrimSpace(r.Get("category").String())),
	}
	props := r.Get("properties")
	def.DestructibleByMining = resistance(props.Get("hardness"))
	def.DestructibleByExplosion = resistance(props.Get("blastResistance"))
	if f, ok := number(props.Get("friction")); ok {
		def.Friction = &f
	}
	if l, ok := number(first(props.Get("lightLevel"), props.Get("lightEmission"))); ok {
		def.LightEmission = toInt(math.Round(l))
	}

	states := r.Get("states")
	if states.IsArray() {
		for _, s := range states.Array() {
			name := strings.TrimSpace(s.Get("name").String())
			values := s.Get("values").Array()
			if name == "" || len(values) == 0 {
				continue
			}
			if def.States == nil {
				def.States = map[string][]any{}
			}
			for _, v := range values {
				def.States[name] = append(def.States[name], v.Value())
			}
		}
	} else if states.IsObject() {
		states.ForEach(func(k, v gjson.Result) bool {
			if vals := v.Array(); len(vals) > 0 {
				if def.States == nil {
					def.States = map[string][]any{}
				}
				for _, val := range vals {
					def.States[k.String()] = append(def.States[k.String()], val.Value())
				}
			}
			return true
		})
	}
	for _, p := range r.Get("permutations").Array() {
		cond := strings.TrimSpace(p.Get("condition").String())
		comps, ok := p.Get("components").Value().(map[string]any)
		if cond == "" || !ok {
			continue
		}
		def.Permutations = append(def.Permutations, iswaddon.Permutation{Condition: cond, Components: comps})
	}
	def.AdditionalComponents = components(r.Get("components"), nil)
	return def, nil
}

// TransformExpanded converts an expanded design into a bundle holding the
// one entity, item or block it describes.
func TransformExpanded(raw []byte) (*Bundle, error) {
	r, err := parse("concept", raw)
	if err != nil {
		return nil, err
	}
	out := &Bundle{}
	if e := r.Get("entity"); e.IsObject() {
		def, err := TransformEntity([]byte(e.Raw))
		if err != nil {
			return nil, err
		}
		out.Entities = append(out.Entities, *def)
	}
	if i := r.Get("item"); i.IsObject() {
		def, rec, err := TransformItem([]byte(i.Raw))
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, *def)
		if rec != nil {
			out.Recipes = append(out.Recipes, *rec)
		}
	}
	if b := r.Get("block"); b.IsObject() {
		def, err := TransformBlock([]byte(b.Raw))
		if err != nil {
			return nil, err
		}
		out.Blocks = append(out.Blocks, *def)
	}
	if len(out.Entities)+len(out.Items)+len(out.Blocks) == 0 {
		return nil, &iswaddon.InputError{Kind: "concept", Reason: "describes no entity, item or block"}
	}
	return out, nil
}

func parse(kind string, raw []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, &iswaddon.InputError{Kind: kind, Reason: "is not valid JSON"}
	}
	r := gjson.ParseBytes(raw)
	if !r.IsObject() {
		return gjson.Result{}, &iswaddon.InputError{Kind: kind, Reason: "must be a JSON object"}
	}
	return r, nil
}

// identifier reads identifier, falling back to name and displayName, and
// snake-cases both segments. Characters outside [a-z0-9_] are dropped.
func identifier(kind string, r gjson.Result) (string, error) {
	raw := strings.TrimSpace(first(r.Get("identifier"), r.Get("name"), r.Get("displayName")).String())
	ns, name, found := strings.Cut(raw, ":")
	if !found {
		ns, name = "", raw
	}
	name = sanitize(name)
	if placeholderNamespaces[strings.ToLower(strings.TrimSpace(ns))] {
		ns = ""
	}
	if name == "" {
		return "", &iswaddon.InputError{Kind: kind, Identifier: raw, Field: "identifier", Reason: "is required"}
	}
	if ns = sanitize(ns); ns != "" {
		return ns + ":" + name, nil
	}
	return name, nil
}

// placeholderNamespaces are namespaces generators copy from prompt examples
// or that custom content may not use. Identifiers carrying them are treated
// as bare and get the addon namespace.
var placeholderNamespaces = map[string]bool{"namespace": true, "minecraft": true, "your_namespace": true}

func sanitize(s string) string {
	s = strcase.SnakeCase(strings.TrimSpace(s))
	var b strings.Builder
	for _, c := range s {
		if c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_' {
			b.WriteRune(c)
		}
	}
	out := strings.Trim(b.String(), "_")
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "n" + out
	}
	return out
}

func first(rs ...gjson.Result) gjson.Result {
	for _, r := range rs {
		if r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}

// number accepts JSON numbers and numeric strings.
func number(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Num, true
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func boolean(r gjson.Result, def bool) bool {
	switch r.Type {
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.String:
		if b, err := strconv.ParseBool(strings.TrimSpace(r.Str)); err == nil {
			return b
		}
	case gjson.Number:
		return r.Num != 0
	}
	return def
}

// toInt truncates a generator supplied number into [0, math.MaxInt32].
func toInt(f float64) int {
	switch {
	case math.IsNaN(f) || f <= 0:
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	}
	return int(f)
}

// stringList reads a list of strings; a single string is a one element list.
func stringList(r gjson.Result) []string {
	var out []string
	switch {
	case r.IsArray():
		for _, v := range r.Array() {
			if s := strings.TrimSpace(v.String()); s != "" && v.Type == gjson.String {
				out = append(out, s)
			}
		}
	case r.Type == gjson.String:
		for _, s := range strings.Split(r.Str, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// patternRows reads shaped recipe rows as written. Spaces are empty grid
// cells and are kept; only empty rows are dropped. It reports false when the
// pattern does not fit a 3x3 grid.
func patternRows(r gjson.Result) ([]string, bool) {
	var rows []string
	switch {
	case r.IsArray():
		for _, v := range r.Array() {
			if v.Type == gjson.String && v.Str != "" {
				rows = append(rows, v.Str)
			}
		}
	case r.Type == gjson.String:
		for _, row := range strings.Split(r.Str, "\n") {
			if row != "" {
				rows = append(rows, row)
			}
		}
	}
	if len(rows) > 3 {
		return rows, false
	}
	for _, row := range rows {
		if utf8.RuneCountInString(row) > 3 {
			return rows, false
		}
	}
	return rows, true
}

func resistance(r gjson.Result) *iswaddon.Resistance {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	if r.Type == gjson.True || r.Type == gjson.False {
		return iswaddon.ResistanceFlag(r.Bool())
	}
	v, ok := number(r)
	if !ok || v < 0 {
		return nil
	}
	return iswaddon.ResistanceValue(v)
}

// components merges a [{type, params}] list or a component object into
// into. Only namespaced component names are kept.
func components(r gjson.Result, into map[string]any) map[string]any {
	add := func(name string, params gjson.Result) {
		name = strings.TrimSpace(name)
		if !strings.Contains(name, ":") {
			return
		}
		if into == nil {
			into = map[string]any{}
		}
		v := params.Value()
		if v == nil {
			v = map[string]any{}
		}
		into[name] = v
	}
	switch {
	case r.IsArray():
		for _, c := range r.Array() {
			add(first(c.Get("type"), c.Get("name")).String(), c.Get("params"))
		}
	case r.IsObject():
		r.ForEach(func(k, v gjson.Result) bool {
			add(k.String(), v)
			return true
		})
	}
	return into
}

// lootTable converts [{item, chance, count{min,max} | minCount, maxCount}]
// into an engine loot table with one pool per drop.
func lootTable(r gjson.Result) json.RawMessage {
	var pools []map[string]any
	for _, drop := range r.Array() {
		item := strings.TrimSpace(first(drop.Get("item"), drop.Get("name")).String())
		if drop.Type == gjson.String {
			item = strings.TrimSpace(drop.Str)
		}
		if item == "" {
			continue
		}
		if !strings.Contains(item, ":") {
			item = "minecraft:" + item
		}
		lo, okLo := number(first(drop.Get("count.min"), drop.Get("minCount")))
		hi, okHi := number(first(drop.Get("count.max"), drop.Get("maxCount")))
		if !okLo || lo < 1 {
			lo = 1
		}
		if !okHi || hi < lo {
			hi = lo
		}
		entry := map[string]any{"type": "item", "name": item, "weight": 1}
		if hi > 1 {
			entry["functions"] = []any{map[string]any{
				"function": "set_count",
				"count":    map[string]any{"min": toInt(lo), "max": toInt(hi)},
			}}
		}
		pool := map[string]any{"rolls": 1, "entries": []any{entry}}
		if chance, ok := number(drop.Get("chance")); ok && chance > 0 && chance < 1 {
			pool["conditions"] = []any{map[string]any{"condition": "random_chance", "chance": chance}}
		}
		pools = append(pools, pool)
	}
	if len(pools) == 0 {
		return nil
	}
	data, err := json.Marshal(map[string]any{"pools": pools})
	if err != nil {
		return nil
	}
	return data
}

// spawnRules converts {biomes, spawnTime|time, min/maxGroupSize, weight,
// minLight, maxLight} into a spawn rules record. The identifier is filled
// in by the builder.
func spawnRules(r gjson.Result, entityType string) json.RawMessage {
	if !r.IsObject() {
		return nil
	}
	cond := map[string]any{"minecraft:spawns_on_surface": map[string]any{}}

	weight, ok := number(r.Get("weight"))
	if !ok || weight <= 0 {
		weight = 50
	}
	cond["minecraft:weight"] = map[string]any{"default": toInt(weight)}

	lo, okLo := number(first(r.Get("minGroupSize"), r.Get("minGroup")))
	hi, okHi := number(first(r.Get("maxGroupSize"), r.Get("maxGroup")))
	if !okLo || lo < 1 {
		lo = 1
	}
	if !okHi || hi < lo {
		hi = lo
	}
	cond["minecraft:herd"] = map[string]any{"min_size": toInt(lo), "max_size": toInt(hi)}

	minLight, maxLight := 0.0, 15.0
	switch strings.ToLower(first(r.Get("spawnTime"), r.Get("time")).String()) {
	case "night":
		maxLight = 7
	case "day":
		minLight = 8
	}
	if v, ok := number(r.Get("minLight")); ok {
		minLight = v
	}
	if v, ok := number(r.Get("maxLight")); ok {
		maxLight = v
	}
	if minLight > 0 || maxLight < 15 {
		cond["minecraft:brightness_filter"] = map[string]any{
			"min": toInt(minLight), "max": toInt(maxLight), "adjust_for_weather": true,
		}
	}

	if biomes := stringList(r.Get("biomes")); len(biomes) > 0 {
		tests := make([]any, 0, len(biomes))
		for _, b := range biomes {
			tests = append(tests, map[string]any{"test": "has_biome_tag", "operator": "==", "value": strings.ToLower(b)})
		}
		cond["minecraft:biome_filter"] = map[string]any{"any_of": tests}
	}

	population := "animal"
	switch strings.ToLower(entityType) {
	case "hostile", "boss":
		population = "monster"
	}
	data, err := json.Marshal(map[string]any{
		"format_version": "1.8.0",
		"minecraft:spawn_rules": map[string]any{
			"description": map[string]any{"population_control": population},
			"conditions":  []any{cond},
		},
	})
	if err != nil {
		return nil
	}
	return data
}

// recipe converts {type, ingredients, pattern} into a recipe definition.
// Pattern symbols are bound to ingredients in order of first appearance.
// Unusable recipes are dropped.
func recipe(r gjson.Result, output string) *iswaddon.RecipeDefinition {
	if !r.IsObject() {
		return nil
	}
	ingredients := stringList(r.Get("ingredients"))
	if len(ingredients) == 0 {
		return nil
	}
	def := &iswaddon.RecipeDefinition{
		Identifier: iswaddon.BaseName(output) + "_recipe",
		Output:     iswaddon.RecipeOutput{Item: output},
	}
	if n, ok := number(first(r.Get("count"), r.Get("result.count"))); ok && n > 1 {
		def.Output.Count = toInt(n)
	}
	pattern, fits := patternRows(r.Get("pattern"))
	typ := iswaddon.RecipeType(strings.ToLower(strings.TrimSpace(r.Get("type").String())))
	if typ == "" {
		typ = iswaddon.RecipeShapeless
		if len(pattern) > 0 {
			typ = iswaddon.RecipeShaped
		}
	}
	def.Type = typ
	switch typ {
	case iswaddon.RecipeShaped:
		if len(pattern) == 0 || !fits {
			return nil
		}
		def.Pattern = pattern
		def.Key = map[string]string{}
		next := 0
		for _, row := range pattern {
			for _, c := range row {
				sym := string(c)
				if c == ' ' || def.Key[sym] != "" {
					continue
				}
				if next >= len(ingredients) {
					return nil
				}
				def.Key[sym] = ingredients[next]
				next++
			}
		}
	case iswaddon.RecipeShapeless, iswaddon.RecipeFurnace, iswaddon.RecipeBrewing:
		if len(ingredients) > 9 {
			ingredients = ingredients[:9]
		}
		def.Ingredients = ingredients
	default:
		return nil
	}
	return def
}
