// Package ruleset models C2: a validated, immutable bundle of numeric
// and boolean parameters bounding simulation and governance (spec.md
// §4.2). Construction validates every field; mutation always produces
// a new instance.
package ruleset

import (
	"fmt"

	"github.com/hoopsguild/leaguesim/internal/platform/apperrors"
)

// RuleSet is an immutable, validated bundle of simulation/governance
// parameters. Treat all fields as read-only after construction; use
// WithParameter to derive a modified copy.
type RuleSet struct {
	// Game structure.
	QuarterPossessions    int
	QuarterMinutes        float64
	SafetyCapPossessions  int
	ElamTriggerQuarter     int // 1-indexed quarter after which Elam activates
	ElamMargin             int
	ThreePointValue        int
	ShotClockSeconds       int

	// Stamina and substitutions.
	StaminaDrainBase            float64
	HalftimeStaminaRecovery     float64
	QuarterBreakStaminaRecovery float64
	SubstitutionStaminaThreshold float64

	// Fouls.
	PersonalFoulLimit int
	BaseFoulRate      float64

	// Shot model.
	ShotLogisticSteepness float64
	ValuePerBonusPass     float64

	// Governance.
	GovernanceWindowSeconds int
	TokensPerWindow         int
	GovernanceIntervalRounds int

	// Extension point for effect-registered numeric parameters not
	// enumerated above; kept small and explicit per spec.md's ~30 field
	// count rather than an open bag, but a handful of proposal-tunable
	// knobs (defensive_intensity baseline, turnover base rate) live here.
	DefensiveIntensityBaseline float64
	TurnoverBaseRate           float64
}

// Default returns the out-of-the-box rule set used to seed a new season.
func Default() RuleSet {
	return RuleSet{
		QuarterPossessions:           18,
		QuarterMinutes:               12,
		SafetyCapPossessions:         400,
		ElamTriggerQuarter:           3,
		ElamMargin:                   8,
		ThreePointValue:              3,
		ShotClockSeconds:             24,
		StaminaDrainBase:             0.02,
		HalftimeStaminaRecovery:      0.30,
		QuarterBreakStaminaRecovery:  0.10,
		SubstitutionStaminaThreshold: 0.35,
		PersonalFoulLimit:            6,
		BaseFoulRate:                 0.06,
		ShotLogisticSteepness:        0.12,
		ValuePerBonusPass:            0.25,
		GovernanceWindowSeconds:      900,
		TokensPerWindow:              1,
		GovernanceIntervalRounds:     1,
		DefensiveIntensityBaseline:   0.0,
		TurnoverBaseRate:             0.12,
	}
}

// field bounds, checked by Validate.
type bound struct {
	min, max float64
}

func bounds() map[string]bound {
	return map[string]bound{
		"quarter_possessions":            {4, 60},
		"quarter_minutes":                {1, 20},
		"safety_cap_possessions":         {20, 2000},
		"elam_trigger_quarter":           {1, 4},
		"elam_margin":                    {1, 30},
		"three_point_value":              {1, 10},
		"shot_clock_seconds":             {5, 60},
		"stamina_drain_base":             {0, 1},
		"halftime_stamina_recovery":      {0, 1},
		"quarter_break_stamina_recovery": {0, 1},
		"substitution_stamina_threshold": {0.15, 1},
		"personal_foul_limit":            {1, 20},
		"base_foul_rate":                 {0, 1},
		"shot_logistic_steepness":        {0.001, 5},
		"value_per_bonus_pass":           {0, 5},
		"governance_window_seconds":      {1, 86400},
		"tokens_per_window":              {0, 100},
		"governance_interval_rounds":     {1, 100},
		"defensive_intensity_baseline":   {-5, 5},
		"turnover_base_rate":             {0, 1},
	}
}

// Validate range-checks every field, returning an apperrors.Error
// naming the offending field on the first violation (spec.md §4.2).
func (r RuleSet) Validate() error {
	fields := r.asMap()
	b := bounds()
	for name, value := range fields {
		limit, ok := b[name]
		if !ok {
			continue
		}
		if value < limit.min || value > limit.max {
			return apperrors.WithMetadata(apperrors.CodeInvalidRule,
				fmt.Sprintf("rule %s = %v out of range [%v, %v]", name, value, limit.min, limit.max),
				map[string]string{"field": name})
		}
	}
	if r.ElamTriggerQuarter > 4 {
		return apperrors.WithMetadata(apperrors.CodeInvalidRule,
			"elam_trigger_quarter must be within the four quarters",
			map[string]string{"field": "elam_trigger_quarter"})
	}
	return nil
}

// asMap flattens the rule set into a name->float64 map for bounds
// checking and diffing. Keys match the bounds() table above.
func (r RuleSet) asMap() map[string]float64 {
	return map[string]float64{
		"quarter_possessions":            float64(r.QuarterPossessions),
		"quarter_minutes":                r.QuarterMinutes,
		"safety_cap_possessions":         float64(r.SafetyCapPossessions),
		"elam_trigger_quarter":           float64(r.ElamTriggerQuarter),
		"elam_margin":                    float64(r.ElamMargin),
		"three_point_value":              float64(r.ThreePointValue),
		"shot_clock_seconds":             float64(r.ShotClockSeconds),
		"stamina_drain_base":             r.StaminaDrainBase,
		"halftime_stamina_recovery":      r.HalftimeStaminaRecovery,
		"quarter_break_stamina_recovery": r.QuarterBreakStaminaRecovery,
		"substitution_stamina_threshold": r.SubstitutionStaminaThreshold,
		"personal_foul_limit":            float64(r.PersonalFoulLimit),
		"base_foul_rate":                 r.BaseFoulRate,
		"shot_logistic_steepness":        r.ShotLogisticSteepness,
		"value_per_bonus_pass":           r.ValuePerBonusPass,
		"governance_window_seconds":      float64(r.GovernanceWindowSeconds),
		"tokens_per_window":              float64(r.TokensPerWindow),
		"governance_interval_rounds":     float64(r.GovernanceIntervalRounds),
		"defensive_intensity_baseline":   r.DefensiveIntensityBaseline,
		"turnover_base_rate":             r.TurnoverBaseRate,
	}
}

// Diff enumerates parameters that differ between r and other, for
// governance audit trails (spec.md §4.2 "diff(other)").
func (r RuleSet) Diff(other RuleSet) map[string][2]float64 {
	changes := map[string][2]float64{}
	a, b := r.asMap(), other.asMap()
	for name, av := range a {
		bv := b[name]
		if av != bv {
			changes[name] = [2]float64{av, bv}
		}
	}
	return changes
}

// WithParameter returns a new, validated RuleSet with the named field
// set to value. It is the only supported mutation path: a failed
// mutation is rejected atomically and the receiver is left untouched.
func (r RuleSet) WithParameter(name string, value float64) (RuleSet, error) {
	next := r
	if err := next.setField(name, value); err != nil {
		return RuleSet{}, err
	}
	if err := next.Validate(); err != nil {
		return RuleSet{}, err
	}
	return next, nil
}

func (r *RuleSet) setField(name string, value float64) error {
	switch name {
	case "quarter_possessions":
		r.QuarterPossessions = int(value)
	case "quarter_minutes":
		r.QuarterMinutes = value
	case "safety_cap_possessions":
		r.SafetyCapPossessions = int(value)
	case "elam_trigger_quarter":
		r.ElamTriggerQuarter = int(value)
	case "elam_margin":
		r.ElamMargin = int(value)
	case "three_point_value":
		r.ThreePointValue = int(value)
	case "shot_clock_seconds":
		r.ShotClockSeconds = int(value)
	case "stamina_drain_base":
		r.StaminaDrainBase = value
	case "halftime_stamina_recovery":
		r.HalftimeStaminaRecovery = value
	case "quarter_break_stamina_recovery":
		r.QuarterBreakStaminaRecovery = value
	case "substitution_stamina_threshold":
		r.SubstitutionStaminaThreshold = value
	case "personal_foul_limit":
		r.PersonalFoulLimit = int(value)
	case "base_foul_rate":
		r.BaseFoulRate = value
	case "shot_logistic_steepness":
		r.ShotLogisticSteepness = value
	case "value_per_bonus_pass":
		r.ValuePerBonusPass = value
	case "governance_window_seconds":
		r.GovernanceWindowSeconds = int(value)
	case "tokens_per_window":
		r.TokensPerWindow = int(value)
	case "governance_interval_rounds":
		r.GovernanceIntervalRounds = int(value)
	case "defensive_intensity_baseline":
		r.DefensiveIntensityBaseline = value
	case "turnover_base_rate":
		r.TurnoverBaseRate = value
	default:
		return apperrors.WithMetadata(apperrors.CodeInvalidRule,
			fmt.Sprintf("unknown rule parameter %q", name),
			map[string]string{"field": name})
	}
	return nil
}

// FromMap constructs a RuleSet starting from Default() with overrides
// applied from a structured map, validating the result (spec.md §4.2
// "Construction from a structured map validates every field").
func FromMap(overrides map[string]float64) (RuleSet, error) {
	r := Default()
	for name, value := range overrides {
		if err := r.setField(name, value); err != nil {
			return RuleSet{}, err
		}
	}
	if err := r.Validate(); err != nil {
		return RuleSet{}, err
	}
	return r, nil
}
