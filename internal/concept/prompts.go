package concept

import (
	"fmt"
	"strings"
)

const analystSystem = `You are an expert Minecraft Bedrock Edition addon developer with deep knowledge of:
- Entity components, behaviors, and AI goals
- Item components and custom mechanics
- Block components, states, and permutations
- Animation systems (Bedrock animation format)
- Molang expressions
- Scripting API (@minecraft/server)

Your task is to analyze user concepts and generate detailed technical specifications.
Always provide accurate Minecraft Bedrock format_version 1.21.50 compatible configurations.
Respond in the language the user uses (Korean or English).`

const expertSystem = `You are a master Minecraft Bedrock addon developer.

Design rules:
1. Entities: health 20-500 for mobs and 100-1000 for bosses; movement speed 0.15-0.3 slow,
   0.3-0.5 normal, 0.5-0.8 fast; attack damage 2-6 weak, 6-12 normal, 12-25 strong, 25+ bosses;
   behavior priorities float=0, attack=1-2, target=3, wander=5-7.
2. Items: durability follows vanilla tiers (wood=59, stone=131, iron=250, diamond=1561,
   netherite=2031) and damage matches vanilla progression.
3. Blocks: mining and blast resistance match the material, light and friction are plausible.
4. Spawning: weights 10-20 rare, 50-100 common, 100+ very common; biome appropriate.

Always respond with valid JSON only. No explanations.`

func languageName(lang string) string {
	if lang == LanguageEnglish {
		return "English"
	}
	return "Korean"
}

func analysisPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Analyze the following Minecraft addon concept and provide a detailed technical specification.\n\n")
	fmt.Fprintf(&b, "User Concept: %q\n\n", req.Concept)
	if req.ConceptType != TypeAuto {
		fmt.Fprintf(&b, "Concept Type: %s\n", req.ConceptType)
	} else {
		b.WriteString("Automatically detect the concept type (entity, item, block, or full addon).\n")
	}
	fmt.Fprintf(&b, "Response Language: %s\n\n", languageName(req.Language))
	b.WriteString("Provide JSON matching this JSON Schema:\n")
	b.WriteString(Schema(Analysis{}))
	return b.String()
}

func detailPrompt(typ Type, concept string) string {
	var contract any
	switch typ {
	case TypeEntity:
		contract = EntityConcept{}
	case TypeItem:
		contract = ItemConcept{}
	default:
		contract = BlockConcept{}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this Minecraft %s concept and create a complete %s specification:\n", typ, typ)
	fmt.Fprintf(&b, "%q\n\n", concept)
	b.WriteString("Identifiers use the form namespace:name in lowercase with underscores.\n")
	b.WriteString("Provide complete JSON matching this JSON Schema:\n")
	b.WriteString(Schema(contract))
	return b.String()
}

func expandPrompt(concept, lang string) string {
	var b strings.Builder
	b.WriteString("Analyze this user's Minecraft addon concept and expand it into a professional, detailed specification.\n\n")
	fmt.Fprintf(&b, "USER'S CONCEPT: %q\n\n", concept)
	b.WriteString("First determine the concept type: a creature, mob or boss is an entity; a weapon, tool, food or item is an item; a block, ore or decoration is a block.\n")
	if lang == LanguageEnglish {
		b.WriteString("Response language: English\n\n")
	} else {
		b.WriteString("Response language: Korean for displayName, description and notes, English for identifiers\n\n")
	}
	b.WriteString(`Return this JSON structure:
{
  "originalConcept": "user's original input",
  "expandedDescription": "2-3 sentence professional description",
  "conceptType": "entity" or "item" or "block",
  "qualityScore": 1-10,
  "entity": {...} only for entities,
  "item": {...} only for items,
  "block": {...} only for blocks,
  "designNotes": ["note"],
  "balanceConsiderations": ["note"]
}

The "entity" member has this shape:
{
  "identifier": "namespace:entity_name",
  "displayName": "Display Name",
  "entityType": "hostile/passive/neutral/boss/npc",
  "stats": {
    "health": {"base": 20, "max": 20},
    "damage": {"base": 5, "type": "melee"},
    "movementSpeed": 0.3,
    "followRange": 16
  },
  "physics": {"width": 0.6, "height": 1.8, "scale": 1.0, "hasGravity": true, "canFly": false, "canSwim": false},
  "behaviors": [{"name": "float", "priority": 0, "params": {}}],
  "loot": [{"item": "minecraft:diamond", "chance": 0.1, "minCount": 1, "maxCount": 2}],
  "spawn": {"biomes": ["plains"], "time": "night", "minLight": 0, "maxLight": 7, "weight": 50, "minGroup": 1, "maxGroup": 3},
  "familyTypes": ["mob", "monster"]
}

The "item" member follows this JSON Schema:
`)
	b.WriteString(Schema(ItemConcept{}))
	b.WriteString("\n\nThe \"block\" member follows this JSON Schema:\n")
	b.WriteString(Schema(BlockConcept{}))
	return b.String()
}
