package iswaddon

import (
	"math"
	"strings"

	"github.com/insushim/iswaddon/internal/vocab"
)

// FormatVersion is the record format written for behavior pack records.
const FormatVersion = "1.21.50"

// ClientFormatVersion is the record format of client entity definitions.
const ClientFormatVersion = "1.10.0"

const (
	defaultHealth     = 20
	defaultSpeed      = 0.3
	defaultWidth      = 0.6
	defaultHeight     = 1.8
	defaultMaterial   = "entity_alphatest"
	defaultRender     = "controller.render.default"
	defaultEggBase    = "#4A90D9"
	defaultEggOverlay = "#87CEEB"
	behaviorPrefix    = "minecraft:behavior."
)

type EntityRecord struct {
	FormatVersion string     `json:"format_version"`
	Entity        EntityBody `json:"minecraft:entity"`
}

type EntityBody struct {
	Description     EntityDescription         `json:"description"`
	ComponentGroups map[string]map[string]any `json:"component_groups"`
	Components      map[string]any            `json:"components"`
	Events          map[string]any            `json:"events"`
}

type EntityDescription struct {
	Identifier     string `json:"identifier"`
	IsSpawnable    bool   `json:"is_spawnable"`
	IsSummonable   bool   `json:"is_summonable"`
	IsExperimental bool   `json:"is_experimental"`
}

type ClientEntityRecord struct {
	FormatVersion string           `json:"format_version"`
	ClientEntity  ClientEntityBody `json:"minecraft:client_entity"`
}

type ClientEntityBody struct {
	Description ClientEntityDescription `json:"description"`
}

type ClientEntityDescription struct {
	Identifier        string            `json:"identifier"`
	Materials         map[string]string `json:"materials"`
	Textures          map[string]string `json:"textures"`
	Geometry          map[string]string `json:"geometry"`
	Animations        map[string]string `json:"animations,omitempty"`
	Scripts           *ClientScripts    `json:"scripts,omitempty"`
	RenderControllers []string          `json:"render_controllers"`
	SpawnEgg          SpawnEgg          `json:"spawn_egg"`
}

type ClientScripts struct {
	Animate []string `json:"animate"`
}

// Qualify prefixes id with namespace unless it already carries one.
func Qualify(id, namespace string) string {
	id = strings.TrimSpace(id)
	if strings.Contains(id, ":") {
		return id
	}
	return namespace + ":" + id
}

// BaseName is the local segment of a qualified identifier, lower-cased for
// use in file names.
func BaseName(id string) string {
	if i := strings.LastIndex(id, ":"); i >= 0 {
		id = id[i+1:]
	}
	return strings.ToLower(id)
}

// AssembleEntity derives the behavior and client records for def. def must
// carry an identifier; everything else is defaulted.
func AssembleEntity(def *EntityDefinition, namespace string) (*EntityRecord, *ClientEntityRecord) {
	id := Qualify(def.Identifier, namespace)
	base := BaseName(id)

	behavior := &EntityRecord{
		FormatVersion: FormatVersion,
		Entity: EntityBody{
			Description: EntityDescription{
				Identifier:     id,
				IsSpawnable:    boolOr(def.IsSpawnable, true),
				IsSummonable:   boolOr(def.IsSummonable, true),
				IsExperimental: boolOr(def.IsExperimental, false),
			},
			ComponentGroups: def.ComponentGroups,
			Components:      entityComponents(def, base),
			Events:          def.Events,
		},
	}
	if behavior.Entity.ComponentGroups == nil {
		behavior.Entity.ComponentGroups = map[string]map[string]any{}
	}
	if behavior.Entity.Events == nil {
		behavior.Entity.Events = map[string]any{}
	}
	return behavior, clientEntity(def, id, base)
}

func entityComponents(def *EntityDefinition, base string) map[string]any {
	c := map[string]any{}

	health, maxHealth := float64(defaultHealth), float64(defaultHealth)
	if def.Health != nil && def.Health.Value > 0 {
		health, maxHealth = def.Health.Value, def.Health.Value
		if def.Health.Max > 0 {
			maxHealth = math.Max(def.Health.Max, health)
		}
	}
	c["minecraft:health"] = map[string]any{"value": health, "max": maxHealth}

	speed := defaultSpeed
	mode := ""
	if def.Movement != nil {
		if def.Movement.Value > 0 {
			speed = def.Movement.Value
		}
		mode = def.Movement.Type
	}
	c["minecraft:movement"] = map[string]any{"value": speed}
	flying := vocab.Locomotion(mode) == vocab.Fly
	if flying {
		c["minecraft:movement.fly"] = map[string]any{}
		c["minecraft:navigation.fly"] = navigation(def.Navigation, map[string]any{
			"can_path_over_water": true,
			"can_pass_doors":      true,
			"can_path_from_air":   true,
		})
	} else {
		c["minecraft:movement.basic"] = map[string]any{}
		c["minecraft:navigation.walk"] = navigation(def.Navigation, map[string]any{
			"can_path_over_water": false,
			"avoid_water":         true,
			"can_pass_doors":      true,
		})
	}

	c["minecraft:physics"] = map[string]any{
		"has_gravity":   boolOr(def.Physics, true),
		"has_collision": true,
	}

	width, height := defaultWidth, defaultHeight
	if def.CollisionBox != nil {
		if def.CollisionBox.Width > 0 {
			width = def.CollisionBox.Width
		}
		if def.CollisionBox.Height > 0 {
			height = def.CollisionBox.Height
		}
	}
	c["minecraft:collision_box"] = map[string]any{"width": width, "height": height}

	families := families(def.FamilyTypes)
	c["minecraft:type_family"] = map[string]any{"family": families}

	hostile := def.Attack != nil && def.Attack.Damage > 0
	if hostile {
		attack := map[string]any{"damage": def.Attack.Damage}
		if def.Attack.Effect != "" {
			attack["effect_name"] = def.Attack.Effect
			if def.Attack.EffectDuration > 0 {
				attack["effect_duration"] = def.Attack.EffectDuration
			}
		}
		c["minecraft:attack"] = attack
	}

	added := addBehaviors(c, def.Behaviors, vocab.Locomotion(mode))

	if !added["float"] {
		c[behaviorPrefix+"float"] = map[string]any{"priority": 0}
	}
	if flying {
		if !added[vocab.Fly] {
			c[behaviorPrefix+vocab.Fly] = map[string]any{"priority": 6, "xz_dist": 10, "y_dist": 7, "y_offset": 0}
		}
	} else if !added[vocab.Walk] {
		c[behaviorPrefix+vocab.Walk] = map[string]any{"priority": 6, "speed_multiplier": 1.0}
	}
	if !added["random_look_around"] {
		c[behaviorPrefix+"random_look_around"] = map[string]any{"priority": 7}
	}
	if len(added) == 0 {
		c[behaviorPrefix+"look_at_player"] = map[string]any{"priority": 8, "look_distance": 8.0}
	}

	if hostile {
		if !added["melee_attack"] {
			c[behaviorPrefix+"melee_attack"] = map[string]any{"priority": 2, "speed_multiplier": 1.2, "track_target": true}
		}
		if !added["nearest_attackable_target"] {
			c[behaviorPrefix+"nearest_attackable_target"] = map[string]any{
				"priority":         3,
				"must_see":         true,
				"reselect_targets": true,
				"within_radius":    25.0,
				"entity_types": []any{
					map[string]any{
						"filters":  map[string]any{"test": "is_family", "subject": "other", "value": "player"},
						"max_dist": 35,
					},
				},
			}
		}
		if !added["hurt_by_target"] {
			c[behaviorPrefix+"hurt_by_target"] = map[string]any{"priority": 1}
		}
	}

	if len(def.LootTable) > 0 {
		c["minecraft:loot"] = map[string]any{"table": entityLootPath(base)}
	}

	for k, v := range def.AdditionalComponents {
		c[k] = v
	}
	return c
}

// addBehaviors resolves requested goals into components and returns the set
// of canonical names it wrote. The first request for a name wins. Any
// locomotion goal is rewritten to the one matching the movement mode.
func addBehaviors(c map[string]any, behaviors []Behavior, locomotion string) map[string]bool {
	added := map[string]bool{}
	for _, b := range behaviors {
		name, ok := vocab.Normalize(b.label())
		if !ok {
			continue
		}
		if vocab.IsLocomotion(name) {
			name = locomotion
		}
		if added[name] {
			continue
		}
		added[name] = true

		priority := len(added)
		if b.Priority != nil && *b.Priority >= 0 {
			priority = *b.Priority
		}
		body := map[string]any{}
		for k, v := range b.Params {
			body[k] = v
		}
		if p, ok := asPriority(body["priority"]); ok {
			priority = p
		}
		body["priority"] = priority
		c[behaviorPrefix+name] = body
	}
	return added
}

func asPriority(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, n >= 0
	case float64:
		if n >= 0 && n == math.Trunc(n) {
			return int(n), true
		}
	}
	return 0, false
}

func navigation(override *Navigation, base map[string]any) map[string]any {
	if override == nil {
		return base
	}
	if override.CanPathOverWater != nil {
		base["can_path_over_water"] = *override.CanPathOverWater
	}
	if override.AvoidWater != nil {
		base["avoid_water"] = *override.AvoidWater
	}
	if override.CanSwim != nil {
		base["can_swim"] = *override.CanSwim
	}
	return base
}

func families(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, f := range in {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	if len(out) == 0 {
		out = append(out, "mob")
	}
	return out
}

func clientEntity(def *EntityDefinition, id, base string) *ClientEntityRecord {
	textures := map[string]string{}
	for key, p := range def.Textures {
		p = strings.TrimSuffix(strings.TrimSpace(p), ".png")
		if p == "" {
			p = "textures/entity/" + base + "/" + key
		}
		textures[key] = p
	}
	if len(textures) == 0 {
		textures["default"] = "textures/entity/" + base
	}

	materials := copyStrings(def.Materials)
	if len(materials) == 0 {
		materials = map[string]string{"default": defaultMaterial}
	}
	geometry := copyStrings(def.GeometryReferences)
	if len(geometry) == 0 {
		geometry = map[string]string{"default": "geometry." + base}
	}
	renders := append([]string(nil), def.RenderControllerReferences...)
	if len(renders) == 0 {
		renders = []string{defaultRender}
	}
	egg := SpawnEgg{BaseColor: defaultEggBase, OverlayColor: defaultEggOverlay}
	if def.SpawnEgg != nil {
		if def.SpawnEgg.BaseColor != "" {
			egg.BaseColor = def.SpawnEgg.BaseColor
		}
		if def.SpawnEgg.OverlayColor != "" {
			egg.OverlayColor = def.SpawnEgg.OverlayColor
		}
	}

	desc := ClientEntityDescription{
		Identifier:        id,
		Materials:         materials,
		Textures:          textures,
		Geometry:          geometry,
		Animations:        copyStrings(def.AnimationReferences),
		RenderControllers: renders,
		SpawnEgg:          egg,
	}
	if len(def.AnimationControllerReferences) > 0 {
		desc.Scripts = &ClientScripts{Animate: append([]string(nil), def.AnimationControllerReferences...)}
	}
	return &ClientEntityRecord{
		FormatVersion: ClientFormatVersion,
		ClientEntity:  ClientEntityBody{Description: desc},
	}
}

func entityLootPath(base string) string {
	return "loot_tables/entities/" + base + ".json"
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func copyStrings(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
