package iswaddon

import (
	"strings"
	"unicode/utf8"
)

// RecipeFormatVersion is the record format written for typed recipes.
const RecipeFormatVersion = "1.20.10"

var recipeKeys = map[RecipeType]string{
	RecipeShaped:    "minecraft:recipe_shaped",
	RecipeShapeless: "minecraft:recipe_shapeless",
	RecipeFurnace:   "minecraft:recipe_furnace",
	RecipeBrewing:   "minecraft:recipe_brewing_mix",
}

var recipeTags = map[RecipeType][]string{
	RecipeShaped:    {"crafting_table"},
	RecipeShapeless: {"crafting_table"},
	RecipeFurnace:   {"furnace"},
	RecipeBrewing:   {"brewing_stand"},
}

// AssembleRecipe converts a typed recipe into its engine record. Ingredient
// names without a namespace are vanilla items; the recipe identifier and
// output item are qualified with namespace.
func AssembleRecipe(def *RecipeDefinition, namespace string) (map[string]any, error) {
	typ := RecipeType(strings.ToLower(strings.TrimSpace(string(def.Type))))
	key, ok := recipeKeys[typ]
	if !ok {
		return nil, &InputError{Kind: "recipe", Identifier: def.Identifier, Field: "type", Reason: "must be shaped, shapeless, furnace or brewing"}
	}
	if strings.TrimSpace(def.Output.Item) == "" {
		return nil, &InputError{Kind: "recipe", Identifier: def.Identifier, Field: "output.item", Reason: "is required"}
	}
	id := Qualify(def.Identifier, namespace)
	tags := def.Tags
	if len(tags) == 0 {
		tags = recipeTags[typ]
	}
	body := map[string]any{
		"description": map[string]any{"identifier": id},
		"tags":        append([]string(nil), tags...),
	}
	result := map[string]any{"item": Qualify(def.Output.Item, namespace)}
	if def.Output.Count > 1 {
		result["count"] = def.Output.Count
	}
	if def.Output.Data > 0 {
		result["data"] = def.Output.Data
	}

	switch typ {
	case RecipeShaped:
		if len(def.Pattern) == 0 || len(def.Pattern) > 3 {
			return nil, &InputError{Kind: "recipe", Identifier: def.Identifier, Field: "pattern", Reason: "needs one to three rows"}
		}
		keys := map[string]any{}
		for _, row := range def.Pattern {
			if utf8.RuneCountInString(row) > 3 {
				return nil, &InputError{Kind: "recipe", Identifier: def.Identifier, Field: "pattern", Reason: "rows are at most three wide"}
			}
			for _, r := range row {
				if r == ' ' {
					continue
				}
				item, ok := def.Key[string(r)]
				if !ok {
					return nil, &InputError{Kind: "recipe", Identifier: def.Identifier, Field: "key", Reason: "no item for pattern symbol " + string(r)}
				}
				keys[string(r)] = map[string]any{"item": itemName(item)}
			}
		}
		body["pattern"] = append([]string(nil), def.Pattern...)
		body["key"] = keys
		body["result"] = result
	case RecipeShapeless:
		if len(def.Ingredients) == 0 || len(def.Ingredients) > 9 {
			return nil, &InputError{Kind: "recipe", Identifier: def.Identifier, Field: "ingredients", Reason: "needs one to nine entries"}
		}
		ingredients := make([]any, len(def.Ingredients))
		for i, in := range def.Ingredients {
			ingredients[i] = map[string]any{"item": itemName(in)}
		}
		body["ingredients"] = ingredients
		body["result"] = result
	case RecipeFurnace:
		if len(def.Ingredients) == 0 {
			return nil, &InputError{Kind: "recipe", Identifier: def.Identifier, Field: "ingredients", Reason: "furnace recipes need an input"}
		}
		body["input"] = itemName(def.Ingredients[0])
		body["output"] = result["item"]
	case RecipeBrewing:
		if len(def.Ingredients) < 2 {
			return nil, &InputError{Kind: "recipe", Identifier: def.Identifier, Field: "ingredients", Reason: "brewing recipes need an input and a reagent"}
		}
		body["input"] = itemName(def.Ingredients[0])
		body["reagent"] = itemName(def.Ingredients[1])
		body["output"] = result["item"]
	}

	return map[string]any{
		"format_version": RecipeFormatVersion,
		key:              body,
	}, nil
}

func itemName(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ":") {
		return s
	}
	return "minecraft:" + s
}
