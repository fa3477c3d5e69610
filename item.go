package iswaddon

import "strings"

const defaultStackSize = 64

type ItemRecord struct {
	FormatVersion string   `json:"format_version"`
	Item          ItemBody `json:"minecraft:item"`
}

type ItemBody struct {
	Description ItemDescription `json:"description"`
	Components  map[string]any  `json:"components"`
}

type ItemDescription struct {
	Identifier   string       `json:"identifier"`
	MenuCategory MenuCategory `json:"menu_category"`
}

type MenuCategory struct {
	Category string `json:"category"`
	Group    string `json:"group,omitempty"`
}

var menuCategories = map[string]bool{
	"construction": true,
	"equipment":    true,
	"items":        true,
	"nature":       true,
	"none":         true,
	"commands":     true,
}

// ItemCategory derives the menu category: weapons, tools and armor go to
// equipment, everything else to items. An explicit known category wins.
func ItemCategory(def *ItemDefinition) string {
	if c := strings.ToLower(strings.TrimSpace(def.Category)); menuCategories[c] {
		return c
	}
	switch ItemKind(strings.ToLower(string(def.Kind))) {
	case KindWeapon, KindTool, KindArmor:
		return "equipment"
	}
	return "items"
}

// AssembleItem derives the behavior record for def. Components appear only
// for fields that are set, apart from the icon.
func AssembleItem(def *ItemDefinition, namespace string) *ItemRecord {
	id := Qualify(def.Identifier, namespace)
	base := BaseName(id)
	c := map[string]any{}

	icon, _ := itemIcon(def, base)
	c["minecraft:icon"] = map[string]any{"texture": icon}
	if def.DisplayName != "" {
		c["minecraft:display_name"] = map[string]any{"value": def.DisplayName}
	}
	if def.MaxStackSize > 0 && def.MaxStackSize != defaultStackSize {
		c["minecraft:max_stack_size"] = clamp(def.MaxStackSize, 1, defaultStackSize)
	}
	if def.Durability != nil && def.Durability.Max > 0 {
		d := map[string]any{"max_durability": def.Durability.Max}
		if dc := def.Durability.DamageChance; dc != nil {
			d["damage_chance"] = map[string]any{"min": dc.Min, "max": dc.Max}
		}
		c["minecraft:durability"] = d
	}
	if def.Damage > 0 {
		c["minecraft:damage"] = map[string]any{"value": def.Damage}
	}
	if f := def.Food; f != nil {
		saturation := float64(f.Saturation)
		if saturation == 0 {
			saturation = float64(saturationLevels["normal"])
		}
		food := map[string]any{
			"nutrition":           f.Nutrition,
			"saturation_modifier": saturation,
			"can_always_eat":      boolOr(f.CanAlwaysEat, false),
		}
		if f.ConvertsTo != "" {
			food["using_converts_to"] = f.ConvertsTo
		}
		c["minecraft:food"] = food
	}
	if cd := def.Cooldown; cd != nil && cd.Duration > 0 {
		category := cd.Category
		if category == "" {
			category = base
		}
		c["minecraft:cooldown"] = map[string]any{"category": category, "duration": cd.Duration}
	}
	if t := def.Throwable; t != nil {
		c["minecraft:throwable"] = map[string]any{"do_swing_animation": boolOr(t.DoSwingAnimation, true)}
		if t.Projectile != "" {
			c["minecraft:projectile"] = map[string]any{"projectile_entity": Qualify(t.Projectile, namespace)}
		}
	}
	if w := def.Wearable; w != nil && w.Slot != "" {
		wearable := map[string]any{"slot": w.Slot}
		if w.Protection > 0 {
			wearable["protection"] = w.Protection
		}
		c["minecraft:wearable"] = wearable
	}
	for k, v := range def.AdditionalComponents {
		c[k] = v
	}

	return &ItemRecord{
		FormatVersion: FormatVersion,
		Item: ItemBody{
			Description: ItemDescription{
				Identifier:   id,
				MenuCategory: MenuCategory{Category: ItemCategory(def), Group: def.Group},
			},
			Components: c,
		},
	}
}

// itemIcon returns the atlas key the icon component references and the
// texture path registered under it. An icon given as a path keeps the path
// under the item's base name.
func itemIcon(def *ItemDefinition, base string) (key, texture string) {
	icon := strings.TrimSpace(def.Icon)
	switch {
	case icon == "":
		return base, "textures/items/" + base
	case strings.Contains(icon, "/"):
		return base, strings.TrimSuffix(icon, ".png")
	}
	return icon, "textures/items/" + icon
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
