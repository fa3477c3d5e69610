package iswaddon

import "strings"

const (
	defaultBlockCategory = "construction"
	defaultBlockSound    = "stone"
	maxFriction          = 0.9
	maxLightEmission     = 15
)

type BlockRecord struct {
	FormatVersion string    `json:"format_version"`
	Block         BlockBody `json:"minecraft:block"`
}

type BlockBody struct {
	Description  BlockDescription `json:"description"`
	Components   map[string]any   `json:"components"`
	Permutations []Permutation    `json:"permutations,omitempty"`
}

type BlockDescription struct {
	Identifier   string           `json:"identifier"`
	MenuCategory MenuCategory     `json:"menu_category"`
	States       map[string][]any `json:"states,omitempty"`
}

// AssembleBlock derives the behavior record for def. Resistances keep their
// shape: a flag is written as-is, a number becomes a threshold object.
func AssembleBlock(def *BlockDefinition, namespace string) *BlockRecord {
	id := Qualify(def.Identifier, namespace)
	c := map[string]any{}

	if r := def.DestructibleByMining; r != nil {
		if v := resistance(r, "seconds_to_destroy"); v != nil {
			c["minecraft:destructible_by_mining"] = v
		}
	}
	if r := def.DestructibleByExplosion; r != nil {
		if v := resistance(r, "explosion_resistance"); v != nil {
			c["minecraft:destructible_by_explosion"] = v
		}
	}
	if def.Friction != nil {
		f := *def.Friction
		if f < 0 {
			f = 0
		}
		if f > maxFriction {
			f = maxFriction
		}
		c["minecraft:friction"] = f
	}
	if def.LightEmission > 0 {
		c["minecraft:light_emission"] = clamp(def.LightEmission, 0, maxLightEmission)
	}
	if def.MapColor != "" {
		c["minecraft:map_color"] = def.MapColor
	}
	if def.Geometry != "" {
		c["minecraft:geometry"] = def.Geometry
	}
	if len(def.MaterialInstances) > 0 {
		m := make(map[string]any, len(def.MaterialInstances))
		for face, inst := range def.MaterialInstances {
			m[face] = inst
		}
		c["minecraft:material_instances"] = m
	}
	if def.CollisionBox != nil {
		c["minecraft:collision_box"] = *def.CollisionBox
	}
	if def.SelectionBox != nil {
		c["minecraft:selection_box"] = *def.SelectionBox
	}
	if def.Loot != "" {
		c["minecraft:loot"] = lootPath(def.Loot)
	}
	if f := def.Flammable; f != nil {
		c["minecraft:flammable"] = map[string]any{
			"catch_chance_modifier":   f.CatchChance,
			"destroy_chance_modifier": f.DestroyChance,
		}
	}
	for k, v := range def.AdditionalComponents {
		c[k] = v
	}

	category := strings.ToLower(strings.TrimSpace(def.Category))
	if category == "" {
		category = defaultBlockCategory
	}
	return &BlockRecord{
		FormatVersion: FormatVersion,
		Block: BlockBody{
			Description: BlockDescription{
				Identifier:   id,
				MenuCategory: MenuCategory{Category: category, Group: def.Group},
				States:       def.States,
			},
			Components:   c,
			Permutations: def.Permutations,
		},
	}
}

func resistance(r *Resistance, key string) any {
	switch {
	case r.Value != nil:
		v := *r.Value
		if v < 0 {
			v = 0
		}
		return map[string]any{key: v}
	case r.Flag != nil:
		return *r.Flag
	}
	return nil
}

// BlockSound is the sound profile written to blocks.json.
func BlockSound(def *BlockDefinition) string {
	if s := strings.TrimSpace(def.Sound); s != "" {
		return s
	}
	return defaultBlockSound
}

// lootPath places p under loot_tables/ with a .json suffix.
func lootPath(p string) string {
	p = strings.TrimPrefix(strings.TrimSpace(p), "/")
	if !strings.HasPrefix(p, "loot_tables/") {
		p = "loot_tables/" + p
	}
	if !strings.HasSuffix(p, ".json") {
		p += ".json"
	}
	return p
}
