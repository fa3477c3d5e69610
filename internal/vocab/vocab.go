// Package vocab maps free-form behavior names onto the closed set of
// behavior goals the engine accepts for format 1.21.50.
package vocab

import (
	"strings"

	"github.com/stoewer/go-strcase"
	"golang.org/x/exp/slices"
)

// minFallbackLen keeps tiny inputs like "a" or "go" from matching half
// the table through substring containment.
const minFallbackLen = 3

// Behaviors is the closed behavior enumeration in declaration order.
// Declaration order is the tie breaker for fallback matching.
var Behaviors = []string{
	"float", "panic", "mount_pathing", "breed", "tempt", "follow_parent",
	"random_stroll", "random_look_around", "look_at_player", "hurt_by_target",
	"nearest_attackable_target", "melee_attack", "ranged_attack", "leap_at_target",
	"ocelot_sit_on_block", "stay_while_sitting", "follow_owner", "owner_hurt_by_target",
	"owner_hurt_target", "random_swim", "move_to_water", "avoid_mob_type",
	"flee_sun", "restrict_sun", "restrict_open_door", "door_interact", "break_door",
	"move_towards_target", "move_towards_restriction", "random_fly", "circle_around_anchor",
	"swoop_attack", "charge_attack", "stomp_attack", "knockback_roar", "stalk_and_pounce",
	"delayed_attack", "snacking", "slime_attack", "swim_idle", "swim_wander",
	"player_ride_tamed", "skeleton_horse_trap", "move_to_land", "lay_egg", "lay_down",
	"inspect_bookshelf", "explore_outskirts", "defend_trusted_target", "find_cover",
	"enderman_leave_block", "enderman_take_block", "drop_item_for", "send_event",
	"charge_held_item", "eat_carried_item", "pickup_items", "share_items", "barter",
	"admire_item", "celebrate", "celebrate_survive", "equip_item", "go_home",
	"stay_near_noteblock", "summon_entity", "timer_flag_1", "timer_flag_2", "timer_flag_3",
	"random_sitting", "follow_mob", "move_to_village", "move_to_poi", "work",
	"work_composter", "mingle", "sleep", "nap", "rise_to_liquid_level",
	"squid_idle", "squid_move_away_from_ground", "squid_flee", "squid_out_of_water",
	"guardian_attack", "silverfish_merge_with_stone", "silverfish_wake_up_friends",
	"wither_random_attack_pos_goal", "wither_target_highest_damage",
	"dragonchargeplayer", "dragondeath", "dragonflaming", "dragonholdingpattern",
	"dragonlanding", "dragonscanning", "dragonstrafeplayer", "dragontakeoff",
	"vex_copy_owner_target", "vex_random_move",
	"find_mount", "find_underwater_treasure", "move_to_block", "raid_garden",
	"ram_attack", "play", "follow_caravan", "roll", "stroll_towards_village",
	"move_indoors", "scared", "trade_interest", "trade_with_player",
}

// Aliases are synonyms the concept generator is known to emit.
var Aliases = map[string]string{
	"hover":                  "float",
	"fly":                    "random_fly",
	"fly_node_path":          "random_fly",
	"attack":                 "melee_attack",
	"melee":                  "melee_attack",
	"ranged":                 "ranged_attack",
	"fireball":               "ranged_attack",
	"fireball_attack":        "ranged_attack",
	"dragon_fireball_attack": "ranged_attack",
	"breath_attack":          "ranged_attack",
	"fire_breath":            "ranged_attack",
	"target":                 "nearest_attackable_target",
	"target_player":          "nearest_attackable_target",
	"chase":                  "nearest_attackable_target",
	"chase_player":           "nearest_attackable_target",
	"hunt_player":            "nearest_attackable_target",
	"attack_player":          "melee_attack",
	"attack_players":         "melee_attack",
	"wander":                 "random_stroll",
	"stroll":                 "random_stroll",
	"walk":                   "random_stroll",
	"look":                   "random_look_around",
	"look_around":            "random_look_around",
	"swim":                   "random_swim",
	"dragon_strafe_player":   "dragonstrafeplayer",
	"dragon_charge_player":   "dragonchargeplayer",
	"dragon_flaming":         "dragonflaming",
	"dragon_holding_pattern": "dragonholdingpattern",
	"dragon_landing":         "dragonlanding",
	"dragon_scanning":        "dragonscanning",
	"dragon_takeoff":         "dragontakeoff",
	"dragon_death":           "dragondeath",
	"retaliate":              "hurt_by_target",
	"flee":                   "panic",
}

// Locomotion goals. An entity carries exactly one of these.
const (
	Walk = "random_stroll"
	Fly  = "random_fly"
)

var valid = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Behaviors))
	for _, b := range Behaviors {
		m[b] = struct{}{}
	}
	return m
}()

// IsValid reports whether name is a canonical behavior identifier.
func IsValid(name string) bool {
	_, ok := valid[name]
	return ok
}

// Canonicalize lowercases name and collapses hyphen and whitespace runs
// into single underscores. A leading "minecraft:behavior." is dropped.
func Canonicalize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.TrimPrefix(s, "minecraft:behavior.")
	s = strings.TrimPrefix(s, "behavior.")
	var b strings.Builder
	sep := false
	for _, r := range s {
		if r == '-' || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			sep = true
			continue
		}
		if sep && b.Len() > 0 {
			b.WriteByte('_')
		}
		sep = false
		b.WriteRune(r)
	}
	return b.String()
}

// Normalize resolves raw to a canonical behavior identifier. The second
// return value is false when nothing plausible matches; callers drop the
// behavior in that case.
func Normalize(raw string) (string, bool) {
	for _, candidate := range candidates(raw) {
		if alias, ok := Aliases[candidate]; ok {
			return alias, true
		}
		if IsValid(candidate) {
			return candidate, true
		}
	}
	for _, candidate := range candidates(raw) {
		if m, ok := fallback(candidate); ok {
			return m, true
		}
	}
	return "", false
}

// candidates yields the plain canonical form, then the snake_case split
// of camelCase input when that differs.
func candidates(raw string) []string {
	c := Canonicalize(raw)
	if c == "" {
		return nil
	}
	out := []string{c}
	if snake := strcase.SnakeCase(strings.TrimSpace(raw)); snake != "" && snake != c && !strings.ContainsAny(snake, ":.") {
		out = append(out, Canonicalize(snake))
	}
	return out
}

// fallback picks among valid names that contain s or are contained by it.
// A valid name contained in s must cover whole underscore separated words.
// The candidate whose length is closest to s wins; ties go to the one
// declared first.
func fallback(s string) (string, bool) {
	if len(s) < minFallbackLen {
		return "", false
	}
	best, bestDist := -1, 0
	for i, v := range Behaviors {
		if len(v) < minFallbackLen {
			continue
		}
		if !containsWords(s, v) && !strings.Contains(v, s) {
			continue
		}
		d := len(v) - len(s)
		if d < 0 {
			d = -d
		}
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return "", false
	}
	return Behaviors[best], true
}

// containsWords reports whether sub occurs in s starting and ending on word
// boundaries, so "play" is not found in "attack_player".
func containsWords(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); {
		j := strings.Index(s[i:], sub)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(sub)
		if (start == 0 || s[start-1] == '_') && (end == len(s) || s[end] == '_') {
			return true
		}
		i = start + 1
	}
	return false
}

// Locomotion returns the locomotion goal for a movement mode.
func Locomotion(mode string) string {
	if strings.EqualFold(mode, "fly") {
		return Fly
	}
	return Walk
}

// IsLocomotion reports whether name is one of the locomotion goals.
func IsLocomotion(name string) bool {
	return slices.Contains([]string{Walk, Fly}, name)
}
