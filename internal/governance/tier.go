package governance

// parameterTiers maps a ruleset parameter name to its governance tier
// (spec.md §4.5 "For parameter changes: mapped from affected parameter
// name to {1..4}"). Game-structure parameters that change the shape of
// every game (possession counts, Elam margin, shot value) carry the
// highest tier; governance-economy knobs carry the lowest.
var parameterTiers = map[string]int{
	"quarter_possessions":    4,
	"elam_margin":            4,
	"elam_trigger_quarter":   4,
	"three_point_value":      4,
	"safety_cap_possessions": 3,
	"shot_clock_seconds":     3,
	"personal_foul_limit":    3,
	"base_foul_rate":         3,
	"stamina_drain_base":     3,
	"halftime_stamina_recovery":      2,
	"quarter_break_stamina_recovery": 2,
	"substitution_stamina_threshold": 2,
	"shot_logistic_steepness":        3,
	"value_per_bonus_pass":           2,
	"defensive_intensity_baseline":   2,
	"turnover_base_rate":             2,
	"governance_window_seconds":      1,
	"tokens_per_window":              1,
	"governance_interval_rounds":     1,
	"quarter_minutes":                3,
}

// EffectSpec is the minimal shape DetermineTier needs from a structured
// interpretation's "effects" list.
type EffectSpec struct {
	Kind      string // "parameter_change" | "hook_callback" | "meta_mutation" | "move_grant" | "narrative" | "custom_mechanic"
	Parameter string // set when Kind == "parameter_change"
}

// DetermineTier implements spec.md §4.5 "Tier detection". Compound
// interpretations (more than one effect) take the max tier across
// effects.
func DetermineTier(effects []EffectSpec, injectionFlagged bool, confidence float64) int {
	if injectionFlagged || len(effects) == 0 || confidence < 0.5 {
		return 5
	}
	max := 1
	for _, e := range effects {
		t := tierForEffect(e)
		if t > max {
			max = t
		}
	}
	return max
}

func tierForEffect(e EffectSpec) int {
	switch e.Kind {
	case "parameter_change":
		if t, ok := parameterTiers[e.Parameter]; ok {
			return t
		}
		return 2
	case "hook_callback", "meta_mutation", "move_grant":
		return 3
	case "narrative":
		return 2
	case "custom_mechanic":
		return 5
	default:
		return 5
	}
}

// NeedsAdminReview implements spec.md §4.5 "Admin flagging":
// needs_admin_review = injection_flagged ∨ confidence < 0.5 ∨ tier ≥ 5
// ∨ any effect is custom_mechanic.
func NeedsAdminReview(tier int, injectionFlagged bool, confidence float64, effects []EffectSpec) bool {
	if injectionFlagged || confidence < 0.5 || tier >= 5 {
		return true
	}
	for _, e := range effects {
		if e.Kind == "custom_mechanic" {
			return true
		}
	}
	return false
}

// ThresholdForTier implements spec.md §4.5 "Tally": 50%+ (tiers 1-2),
// 60%+ (3-4), 67%+ (5-6), 75%+ (7+).
func ThresholdForTier(tier int) float64 {
	switch {
	case tier <= 2:
		return 0.50
	case tier <= 4:
		return 0.60
	case tier <= 6:
		return 0.67
	default:
		return 0.75
	}
}
