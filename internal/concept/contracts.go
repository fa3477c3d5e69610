package concept

import (
	"encoding/json"
	"reflect"
	"sync"

	"github.com/invopop/jsonschema"
)

// The types below describe what the text generator is asked to produce.
// They are rendered to JSON Schema and embedded in prompts; answers are
// read tolerantly by the transforms and never decoded into these types
// directly.

type Analysis struct {
	ConceptType   string              `json:"conceptType" jsonschema:"required,enum=entity,enum=item,enum=block,enum=addon"`
	Name          string              `json:"name" jsonschema:"required"`
	DisplayName   string              `json:"displayName" jsonschema:"required"`
	Description   string              `json:"description"`
	Category      string              `json:"category"`
	Difficulty    string              `json:"difficulty" jsonschema:"enum=simple,enum=moderate,enum=complex"`
	EstimatedTime int                 `json:"estimatedTime"`
	Components    []ComponentSuggest  `json:"components"`
	Behaviors     []BehaviorSuggest   `json:"behaviors"`
	Resources     ResourceSuggestions `json:"resources"`
	Features      []string            `json:"features"`
	Suggestions   []string            `json:"suggestions"`
	Warnings      []string            `json:"warnings"`
	Dependencies  []string            `json:"dependencies"`
}

type ComponentSuggest struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Params      map[string]any `json:"params"`
}

type BehaviorSuggest struct {
	Type        string `json:"type"`
	Priority    int    `json:"priority"`
	Description string `json:"description"`
}

type ResourceSuggestions struct {
	Textures   []string `json:"textures"`
	Geometry   string   `json:"geometry"`
	Animations []string `json:"animations"`
	Sounds     []string `json:"sounds"`
}

type EntityConcept struct {
	Identifier  string            `json:"identifier" jsonschema:"required"`
	DisplayName string            `json:"displayName"`
	EntityType  string            `json:"entityType" jsonschema:"enum=hostile,enum=passive,enum=neutral,enum=boss,enum=npc"`
	Properties  EntityProperties  `json:"properties"`
	Physics     EntityPhysics     `json:"physics"`
	FamilyTypes []string          `json:"familyTypes"`
	AIGoals     []AIGoal          `json:"aiGoals"`
	Abilities   []Ability         `json:"specialAbilities"`
	Animations  []AnimationName   `json:"animations"`
	Texture     string            `json:"textureDescription"`
	Geometry    string            `json:"geometryType" jsonschema:"enum=humanoid,enum=quadruped,enum=custom"`
	Loot        []LootDrop        `json:"loot"`
	SpawnRules  *SpawnConcept     `json:"spawnRules,omitempty"`
	Sounds      map[string]string `json:"sounds"`
}

type EntityProperties struct {
	Health struct {
		Value float64 `json:"value"`
		Max   float64 `json:"max"`
	} `json:"health"`
	Movement struct {
		Value float64 `json:"value"`
		Type  string  `json:"type" jsonschema:"enum=basic,enum=fly,enum=swim,enum=hover"`
	} `json:"movement"`
	Attack struct {
		Damage float64 `json:"damage"`
	} `json:"attack"`
	Scale float64 `json:"scale"`
}

type EntityPhysics struct {
	HasGravity   bool `json:"hasGravity"`
	HasCollision bool `json:"hasCollision"`
	CollisionBox struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	} `json:"collisionBox"`
}

type AIGoal struct {
	Name     string         `json:"name" jsonschema:"required"`
	Priority int            `json:"priority"`
	Params   map[string]any `json:"params,omitempty"`
}

type Ability struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Cooldown    float64 `json:"cooldown"`
}

type AnimationName struct {
	Name string `json:"name"`
	Loop bool   `json:"loop"`
}

type LootDrop struct {
	Item   string  `json:"item" jsonschema:"required"`
	Chance float64 `json:"chance"`
	Count  struct {
		Min int `json:"min"`
		Max int `json:"max"`
	} `json:"count"`
}

type SpawnConcept struct {
	Biomes       []string `json:"biomes"`
	SpawnTime    string   `json:"spawnTime" jsonschema:"enum=night,enum=day,enum=always"`
	MinGroupSize int      `json:"minGroupSize"`
	MaxGroupSize int      `json:"maxGroupSize"`
	Weight       int      `json:"weight"`
}

type ItemConcept struct {
	Identifier  string         `json:"identifier" jsonschema:"required"`
	DisplayName string         `json:"displayName"`
	ItemType    string         `json:"itemType" jsonschema:"enum=weapon,enum=tool,enum=armor,enum=food,enum=throwable,enum=material"`
	Properties  ItemProperties `json:"properties"`
	Components  []ComponentRef `json:"components"`
	Abilities   []Ability      `json:"specialAbilities"`
	Recipe      *RecipeConcept `json:"craftingRecipe,omitempty"`
	Texture     string         `json:"textureDescription"`
	Category    string         `json:"category"`
	Group       string         `json:"creativeGroup"`
}

type ItemProperties struct {
	MaxStackSize  int     `json:"maxStackSize"`
	MaxDurability int     `json:"maxDurability"`
	Damage        float64 `json:"damage"`
	Nutrition     int     `json:"nutrition,omitempty"`
	Saturation    string  `json:"saturation,omitempty" jsonschema:"enum=poor,enum=low,enum=normal,enum=good,enum=max,enum=supernatural"`
	Enchantable   bool    `json:"enchantable"`
	HandEquipped  bool    `json:"handEquipped"`
}

type ComponentRef struct {
	Type   string         `json:"type" jsonschema:"required"`
	Params map[string]any `json:"params"`
}

type RecipeConcept struct {
	Type        string   `json:"type" jsonschema:"enum=shaped,enum=shapeless,enum=furnace"`
	Ingredients []string `json:"ingredients"`
	Pattern     []string `json:"pattern,omitempty"`
	Count       int      `json:"count,omitempty"`
}

type BlockConcept struct {
	Identifier   string          `json:"identifier" jsonschema:"required"`
	DisplayName  string          `json:"displayName"`
	BlockType    string          `json:"blockType" jsonschema:"enum=decorative,enum=functional,enum=building,enum=crop"`
	Properties   BlockProperties `json:"properties"`
	States       []BlockState    `json:"states"`
	Components   []ComponentRef  `json:"components"`
	Permutations []struct {
		Condition  string         `json:"condition"`
		Components map[string]any `json:"components"`
	} `json:"permutations"`
	Loot struct {
		DropsSelf    bool   `json:"dropsSelf"`
		ToolRequired string `json:"toolRequired"`
	} `json:"loot"`
	Texture struct {
		Top    string `json:"top,omitempty"`
		Side   string `json:"side,omitempty"`
		Bottom string `json:"bottom,omitempty"`
		All    string `json:"all,omitempty"`
	} `json:"textureDescription"`
	Geometry string `json:"geometryType" jsonschema:"enum=full_block,enum=slab,enum=custom"`
	Sound    string `json:"sound"`
	Category string `json:"category"`
}

type BlockProperties struct {
	Hardness        float64 `json:"hardness"`
	BlastResistance float64 `json:"blastResistance"`
	Friction        float64 `json:"friction"`
	LightLevel      int     `json:"lightLevel"`
	MapColor        string  `json:"mapColor"`
}

type BlockState struct {
	Name    string `json:"name"`
	Values  []any  `json:"values"`
	Default any    `json:"default"`
}

var (
	schemaMu    sync.Mutex
	schemaCache = map[reflect.Type]string{}
)

// Schema renders the JSON Schema of a contract type, inlined without
// definitions so it can be pasted into a prompt.
func Schema(v any) string {
	t := reflect.TypeOf(v)
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if s, ok := schemaCache[t]; ok {
		return s
	}
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	data, err := json.MarshalIndent(reflector.ReflectFromType(t), "", "  ")
	if err != nil {
		return "{}"
	}
	schemaCache[t] = string(data)
	return schemaCache[t]
}
