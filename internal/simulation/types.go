// Package simulation implements C5, the deterministic possession-by-
// possession game engine (spec.md §4.4 "the hardest subsystem").
// SimulateGame is a pure total function: the same Input always
// produces a byte-identical Result.
package simulation

import (
	"github.com/hoopsguild/leaguesim/internal/effect"
	"github.com/hoopsguild/leaguesim/internal/league/team"
	"github.com/hoopsguild/leaguesim/internal/metastore"
	"github.com/hoopsguild/leaguesim/internal/ruleset"
)

// Strategy biases one team's action selection and defensive posture.
// Governance proposals that register hook_callback effects are the
// usual source of bias; Strategy carries the coach-level defaults that
// apply even with no effects active.
type Strategy struct {
	ActionBias         map[string]float64 // at_rim, mid_range, three_point, drive, post_up
	DefensiveIntensity float64
}

// DefaultStrategy returns a neutral strategy (all action weights
// equal, no extra defensive intensity).
func DefaultStrategy() Strategy {
	return Strategy{
		ActionBias: map[string]float64{
			"at_rim":      1,
			"mid_range":   1,
			"three_point": 1,
			"drive":       1,
			"post_up":     1,
		},
	}
}

// Input bundles every argument to SimulateGame (spec.md §4.4 contract:
// "simulate_game(home, away, rules, seed, effects, strategies)").
type Input struct {
	Home, Away             team.Team
	Rules                  ruleset.RuleSet
	Seed                   int64
	Effects                *effect.Registry
	Meta                   map[metastore.Key]metastore.Bucket // read-only snapshot
	HomeStrategy, AwayStrategy Strategy
}

// ActionType is one offensive action selected during a possession.
type ActionType string

const (
	ActionAtRim      ActionType = "at_rim"
	ActionMidRange   ActionType = "mid_range"
	ActionThreePoint ActionType = "three_point"
	ActionDrive      ActionType = "drive"
	ActionPostUp     ActionType = "post_up"
)

// DefenseScheme is the defensive alignment chosen for a possession.
type DefenseScheme string

const (
	SchemeManTight  DefenseScheme = "man_tight"
	SchemeManSwitch DefenseScheme = "man_switch"
	SchemeZone      DefenseScheme = "zone"
	SchemePress     DefenseScheme = "press"
)

// PossessionLog is one play-by-play entry (spec.md §4.4 step 1-12).
type PossessionLog struct {
	Quarter          int
	PossessionIndex  int
	ElamPhase        bool
	OffenseTeamID    string
	DefenseScheme    DefenseScheme
	ActionType       ActionType
	HandlerPlayerID  string
	DefenderPlayerID string
	TurnoverOccurred bool
	ShotAttempted    bool
	ShotMade         bool
	PointsScored     int
	FoulOccurred     bool
	FreeThrowsAttempted int
	FreeThrowsMade      int
	ReboundTeamID    string
	OffenseScore     int
	DefenseScore     int
	ElapsedSeconds   float64
	Narratives       []string
}

// PlayerBoxStat accumulates one player's box score line.
type PlayerBoxStat struct {
	PlayerID   string
	Points     int
	Rebounds   int
	Assists    int
	Turnovers  int
	Fouls      int
	Steals     int
	FreeThrowsAttempted int
	FreeThrowsMade      int
	Possessions int
	Minutes    float64
	PlusMinus  int
}

// MetaDelta is one Meta Store bucket mutated during the game, to be
// applied by the orchestrator's Phase C flush.
type MetaDelta struct {
	Key    metastore.Key
	Bucket metastore.Bucket
}

// GameResult is SimulateGame's pure output (spec.md §4.4 "GameResult").
type GameResult struct {
	HomeScore, AwayScore int
	QuartersPlayed       int
	ElamActivated        bool
	LeadChanges          int
	TotalPossessions     int
	Possessions          []PossessionLog
	BoxScore             map[string]PlayerBoxStat
	MetaDeltas           []MetaDelta
	// RuleSetSnapshot is the RuleSet in effect when this game was
	// simulated (spec.md §3 "Game Result (durable) ... ruleset
	// snapshot at game time").
	RuleSetSnapshot ruleset.RuleSet
	// FinalChecksum is a deterministic fold over every possession
	// outcome and the last value drawn from the game's RNG. Since
	// math/rand.Rand exposes no serializable internal state, this
	// checksum stands in for "the embedded final RNG state": two
	// calls with identical Input always produce the same checksum,
	// and any divergence in draw order changes it.
	FinalChecksum uint64
}
