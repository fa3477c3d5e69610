package iswaddon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// EntityDefinition is a loosely filled creature template. Every field but
// Identifier is optional; the entity assembler supplies defaults.
type EntityDefinition struct {
	Identifier     string `json:"identifier"`
	IsSpawnable    *bool  `json:"isSpawnable,omitempty"`
	IsSummonable   *bool  `json:"isSummonable,omitempty"`
	IsExperimental *bool  `json:"isExperimental,omitempty"`

	Health       *Health       `json:"health,omitempty"`
	Movement     *Movement     `json:"movement,omitempty"`
	Physics      *bool         `json:"physics,omitempty"`
	CollisionBox *CollisionBox `json:"collisionBox,omitempty"`
	FamilyTypes  []string      `json:"familyTypes,omitempty"`
	Attack       *Attack       `json:"attack,omitempty"`
	Navigation   *Navigation   `json:"navigation,omitempty"`
	Behaviors    []Behavior    `json:"behaviors,omitempty"`

	ComponentGroups      map[string]map[string]any `json:"componentGroups,omitempty"`
	Events               map[string]any            `json:"events,omitempty"`
	AdditionalComponents map[string]any            `json:"additionalComponents,omitempty"`

	Materials                     map[string]string `json:"materials,omitempty"`
	Textures                      map[string]string `json:"textures,omitempty"`
	Geometry                      json.RawMessage   `json:"geometry,omitempty"`
	GeometryReferences            map[string]string `json:"geometryReferences,omitempty"`
	Animations                    []json.RawMessage `json:"animations,omitempty"`
	AnimationReferences           map[string]string `json:"animationReferences,omitempty"`
	AnimationControllers          []json.RawMessage `json:"animationControllers,omitempty"`
	AnimationControllerReferences []string          `json:"animationControllerReferences,omitempty"`
	RenderController              json.RawMessage   `json:"renderController,omitempty"`
	RenderControllerReferences    []string          `json:"renderControllerReferences,omitempty"`
	SpawnEgg                      *SpawnEgg         `json:"spawnEgg,omitempty"`

	LootTable  json.RawMessage `json:"lootTable,omitempty"`
	SpawnRules json.RawMessage `json:"spawnRules,omitempty"`
}

type Health struct {
	Value float64 `json:"value"`
	Max   float64 `json:"max,omitempty"`
}

// Movement.Type is the locomotion mode: "basic" (walk) or "fly".
type Movement struct {
	Type  string  `json:"type,omitempty"`
	Value float64 `json:"value,omitempty"`
}

type CollisionBox struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Attack struct {
	Damage         float64 `json:"damage"`
	Effect         string  `json:"effect,omitempty"`
	EffectDuration float64 `json:"effectDuration,omitempty"`
}

// Navigation overrides individual flags of the derived navigation component.
type Navigation struct {
	CanPathOverWater *bool `json:"canPathOverWater,omitempty"`
	CanSwim          *bool `json:"canSwim,omitempty"`
	AvoidWater       *bool `json:"avoidWater,omitempty"`
}

// Behavior is one requested AI goal. Type and Name are synonyms; Type wins.
type Behavior struct {
	Type     string         `json:"type,omitempty"`
	Name     string         `json:"name,omitempty"`
	Priority *int           `json:"priority,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
}

func (b Behavior) label() string {
	if b.Type != "" {
		return b.Type
	}
	return b.Name
}

type SpawnEgg struct {
	BaseColor    string `json:"base_color,omitempty"`
	OverlayColor string `json:"overlay_color,omitempty"`
}

// ItemKind drives the default menu category.
type ItemKind string

const (
	KindWeapon    ItemKind = "weapon"
	KindTool      ItemKind = "tool"
	KindArmor     ItemKind = "armor"
	KindFood      ItemKind = "food"
	KindThrowable ItemKind = "throwable"
	KindMaterial  ItemKind = "material"
)

type ItemDefinition struct {
	Identifier   string      `json:"identifier"`
	DisplayName  string      `json:"displayName,omitempty"`
	Kind         ItemKind    `json:"kind,omitempty"`
	Category     string      `json:"category,omitempty"`
	Group        string      `json:"group,omitempty"`
	Icon         string      `json:"icon,omitempty"`
	MaxStackSize int         `json:"maxStackSize,omitempty"`
	Durability   *Durability `json:"durability,omitempty"`
	Damage       float64     `json:"damage,omitempty"`
	Food         *Food       `json:"food,omitempty"`
	Cooldown     *Cooldown   `json:"cooldown,omitempty"`
	Throwable    *Throwable  `json:"throwable,omitempty"`
	Wearable     *Wearable   `json:"wearable,omitempty"`

	AdditionalComponents map[string]any `json:"additionalComponents,omitempty"`
}

type Durability struct {
	Max          int    `json:"max"`
	DamageChance *Range `json:"damageChance,omitempty"`
}

type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type Food struct {
	Nutrition    int        `json:"nutrition"`
	Saturation   Saturation `json:"saturation,omitempty"`
	CanAlwaysEat *bool      `json:"canAlwaysEat,omitempty"`
	ConvertsTo   string     `json:"convertsTo,omitempty"`
}

// Saturation accepts a modifier number or one of the named levels.
type Saturation float64

var saturationLevels = map[string]Saturation{
	"poor":         0.1,
	"low":          0.3,
	"normal":       0.6,
	"good":         0.8,
	"max":          1.0,
	"supernatural": 1.2,
}

func (s *Saturation) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		if lvl, ok := saturationLevels[strings.ToLower(strings.TrimSpace(name))]; ok {
			*s = lvl
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(name), 64)
		if err != nil {
			return fmt.Errorf("unknown saturation %q", name)
		}
		*s = Saturation(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*s = Saturation(f)
	return nil
}

type Cooldown struct {
	Category string  `json:"category"`
	Duration float64 `json:"duration"`
}

type Throwable struct {
	DoSwingAnimation *bool  `json:"doSwingAnimation,omitempty"`
	Projectile       string `json:"projectile,omitempty"`
}

type Wearable struct {
	Slot       string `json:"slot"`
	Protection int    `json:"protection,omitempty"`
}

type BlockDefinition struct {
	Identifier              string                      `json:"identifier"`
	Category                string                      `json:"category,omitempty"`
	Group                   string                      `json:"group,omitempty"`
	Geometry                string                      `json:"geometry,omitempty"`
	MaterialInstances       map[string]MaterialInstance `json:"materialInstances,omitempty"`
	DestructibleByMining    *Resistance                 `json:"destructibleByMining,omitempty"`
	DestructibleByExplosion *Resistance                 `json:"destructibleByExplosion,omitempty"`
	Friction                *float64                    `json:"friction,omitempty"`
	LightEmission           int                         `json:"lightEmission,omitempty"`
	MapColor                string                      `json:"mapColor,omitempty"`
	CollisionBox            *Box                        `json:"collisionBox,omitempty"`
	SelectionBox            *Box                        `json:"selectionBox,omitempty"`
	Loot                    string                      `json:"loot,omitempty"`
	Flammable               *Flammable                  `json:"flammable,omitempty"`
	States                  map[string][]any            `json:"states,omitempty"`
	Permutations            []Permutation               `json:"permutations,omitempty"`
	Sound                   string                      `json:"sound,omitempty"`

	AdditionalComponents map[string]any `json:"additionalComponents,omitempty"`
}

type MaterialInstance struct {
	Texture      string `json:"texture"`
	RenderMethod string `json:"render_method,omitempty"`
}

// Resistance is either a plain flag or a numeric threshold.
type Resistance struct {
	Flag  *bool
	Value *float64
}

func ResistanceFlag(b bool) *Resistance { return &Resistance{Flag: &b} }

func ResistanceValue(v float64) *Resistance { return &Resistance{Value: &v} }

func (r Resistance) MarshalJSON() ([]byte, error) {
	if r.Value != nil {
		return json.Marshal(*r.Value)
	}
	if r.Flag != nil {
		return json.Marshal(*r.Flag)
	}
	return []byte("null"), nil
}

func (r *Resistance) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		return nil
	case bytes.Equal(data, []byte("true")), bytes.Equal(data, []byte("false")):
		b := data[0] == 't'
		r.Flag, r.Value = &b, nil
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if b, err := strconv.ParseBool(s); err == nil {
			r.Flag, r.Value = &b, nil
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("resistance must be a boolean or number, got %q", s)
		}
		r.Flag, r.Value = nil, &f
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("resistance must be a boolean or number: %w", err)
	}
	r.Flag, r.Value = nil, &f
	return nil
}

// Box is either a plain enable flag or an explicit origin and size.
type Box struct {
	Enabled *bool
	Origin  [3]float64
	Size    [3]float64
}

func (b Box) MarshalJSON() ([]byte, error) {
	if b.Enabled != nil {
		return json.Marshal(*b.Enabled)
	}
	return json.Marshal(map[string][3]float64{"origin": b.Origin, "size": b.Size})
}

func (b *Box) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("true")) || bytes.Equal(data, []byte("false")) {
		v := data[0] == 't'
		b.Enabled = &v
		return nil
	}
	var shape struct {
		Origin [3]float64 `json:"origin"`
		Size   [3]float64 `json:"size"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return fmt.Errorf("box must be a boolean or {origin,size}: %w", err)
	}
	b.Enabled, b.Origin, b.Size = nil, shape.Origin, shape.Size
	return nil
}

type Flammable struct {
	CatchChance   float64 `json:"catchChance,omitempty"`
	DestroyChance float64 `json:"destroyChance,omitempty"`
}

type Permutation struct {
	Condition  string         `json:"condition"`
	Components map[string]any `json:"components"`
}

// RecipeType selects the recipe record kind.
type RecipeType string

const (
	RecipeShaped    RecipeType = "shaped"
	RecipeShapeless RecipeType = "shapeless"
	RecipeFurnace   RecipeType = "furnace"
	RecipeBrewing   RecipeType = "brewing"
)

// RecipeDefinition is the typed form of a recipe. Pattern and Key drive
// shaped recipes; Ingredients drive the others. Furnace recipes use the
// first ingredient, brewing recipes use the first two as input and reagent.
type RecipeDefinition struct {
	Type        RecipeType        `json:"type"`
	Identifier  string            `json:"identifier"`
	Tags        []string          `json:"tags,omitempty"`
	Pattern     []string          `json:"pattern,omitempty"`
	Key         map[string]string `json:"key,omitempty"`
	Ingredients []string          `json:"ingredients,omitempty"`
	Output      RecipeOutput      `json:"output"`
}

type RecipeOutput struct {
	Item  string `json:"item"`
	Count int    `json:"count,omitempty"`
	Data  int    `json:"data,omitempty"`
}
