// Package season models the League/Season aggregate and its lifecycle
// phase graph (spec.md §3). The transition table is grounded on the
// legal-transition-table pattern used for finite state machines across
// the retrieved corpus (e.g. a statechart's allowed-transitions map).
package season

import (
	"fmt"

	"github.com/hoopsguild/leaguesim/internal/ruleset"
)

// Phase is a season lifecycle state.
type Phase string

// The fixed lifecycle phases (spec.md §3).
const (
	PhaseSetup            Phase = "SETUP"
	PhaseActive           Phase = "ACTIVE"
	PhaseTiebreakerCheck  Phase = "TIEBREAKER_CHECK"
	PhaseTiebreakers      Phase = "TIEBREAKERS"
	PhasePlayoffs         Phase = "PLAYOFFS"
	PhaseChampionship     Phase = "CHAMPIONSHIP"
	PhaseOffseason        Phase = "OFFSEASON"
	PhaseComplete         Phase = "COMPLETE"
)

// transitions is the fixed directed graph of legal phase transitions.
var transitions = map[Phase][]Phase{
	PhaseSetup:           {PhaseActive},
	PhaseActive:          {PhaseTiebreakerCheck},
	PhaseTiebreakerCheck: {PhaseTiebreakers, PhasePlayoffs},
	PhaseTiebreakers:     {PhasePlayoffs},
	PhasePlayoffs:        {PhaseChampionship},
	PhaseChampionship:    {PhaseOffseason},
	PhaseOffseason:       {PhaseComplete},
	PhaseComplete:        {},
}

// CanTransition reports whether moving from one phase to another is legal.
func CanTransition(from, to Phase) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ErrIllegalTransition is returned by Season.Transition on an illegal edge.
type ErrIllegalTransition struct {
	From, To Phase
}

func (e ErrIllegalTransition) Error() string {
	return fmt.Sprintf("illegal season phase transition: %s -> %s", e.From, e.To)
}

// LifecycleConfig is the free-form structured attribute holding
// duration deadlines, champion id, and the offseason window.
type LifecycleConfig struct {
	RegularSeasonRounds int
	TiebreakerRounds    int
	PlayoffRounds       int
	OffseasonRounds     int
	ChampionTeamID      string
	ExtraConfig         map[string]any
}

// Season is the League/Season aggregate (spec.md §3).
type Season struct {
	ID              string
	LeagueID        string
	Index           int // ordinal position within the league's season sequence
	Phase           Phase
	StartingRuleSet ruleset.RuleSet // immutable starting copy
	CurrentRuleSet  ruleset.RuleSet // mutable current copy, derived from the event log
	TeamIDs         []string
	Lifecycle       LifecycleConfig
	CurrentRound    int
}

// Transition moves the season to a new phase, failing loudly on an
// illegal edge (spec.md §3: "illegal transitions fail loudly").
func (s *Season) Transition(to Phase) error {
	if !CanTransition(s.Phase, to) {
		return ErrIllegalTransition{From: s.Phase, To: to}
	}
	s.Phase = to
	return nil
}
