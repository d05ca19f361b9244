package simulation

import (
	"testing"

	"github.com/hoopsguild/leaguesim/internal/effect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSimulateGameFiresPossessionHooks proves the C3<->C5 bridge is
// live: a hook_callback effect registered on the canonical
// sim.possession.post hook must observe every possession and its
// mutate_state write must land in the Meta Store.
func TestSimulateGameFiresPossessionHooks(t *testing.T) {
	in := testInput(11)
	registry := effect.NewRegistry()
	registry.Add(effect.Effect{
		ID:         "test-possession-counter",
		Kind:       effect.KindHookCallback,
		HookPoints: []effect.HookPoint{effect.HookPossessionPost},
		Condition:  effect.Condition{Kind: effect.ConditionAlwaysTrue},
		Actions: []effect.Mutation{{
			Kind:        effect.MutationState,
			StateTarget: "team:home-team.possession_hook_fires",
			StateOp:     effect.StateOpAdd,
			StateValue:  effect.Expr{Kind: effect.ExprLiteral, Literal: 1},
		}},
	})
	in.Effects = registry

	result, err := SimulateGame(in)
	require.NoError(t, err)
	require.NotEmpty(t, result.Possessions)

	var got *float64
	for _, d := range result.MetaDeltas {
		if d.Key.EntityID == "home-team" {
			if v, ok := d.Bucket["possession_hook_fires"].(float64); ok {
				got = &v
			}
		}
	}
	require.NotNil(t, got, "expected team:home-team.possession_hook_fires to be written by the possession.post hook")
	assert.Greater(t, *got, 0.0)
}

// TestSimulateGameFreeThrowsOnForcedFoul proves spec.md §4.4 step 8's
// free-throw sequence actually runs: with the foul rate pinned to
// certainty, every possession that reaches the foul check must award
// attempted (and often made) free throws.
func TestSimulateGameFreeThrowsOnForcedFoul(t *testing.T) {
	in := testInput(5)
	in.Rules.BaseFoulRate = 1.0

	result, err := SimulateGame(in)
	require.NoError(t, err)

	sawFoul := false
	totalAttempts, totalMade := 0, 0
	for _, p := range result.Possessions {
		if p.FoulOccurred {
			sawFoul = true
			totalAttempts += p.FreeThrowsAttempted
			totalMade += p.FreeThrowsMade
			assert.Greater(t, p.FreeThrowsAttempted, 0, "fouled possession should attempt at least one free throw")
		}
	}
	require.True(t, sawFoul, "expected at least one fouled possession with BaseFoulRate pinned to 1.0")
	assert.Greater(t, totalAttempts, 0)
	assert.GreaterOrEqual(t, totalMade, 0)
}

// TestSimulateGameQuarterClockExhaustion proves a quarter ends on the
// clock (possession times summed against quarter_minutes) rather than
// only on possession count: with quarter_minutes at its one-minute
// minimum, fewer than quarter_possessions possessions should run per
// quarter (every possession takes at least four seconds).
func TestSimulateGameQuarterClockExhaustion(t *testing.T) {
	in := testInput(9)
	in.Rules.QuarterMinutes = 1

	result, err := SimulateGame(in)
	require.NoError(t, err)

	possessionsPerQuarter := float64(result.TotalPossessions) / float64(result.QuartersPlayed)
	assert.Less(t, possessionsPerQuarter, float64(in.Rules.QuarterPossessions),
		"a one-minute quarter clock should end quarters before the possession budget is exhausted")
}

// TestRegistryBlockDefaultIsPriorityRelative proves block_default
// suppresses only effects at or below the blocking effect's own
// priority, not everything below priority zero.
func TestRegistryBlockDefaultIsPriorityRelative(t *testing.T) {
	registry := effect.NewRegistry()
	registry.Add(effect.Effect{
		ID:         "blocker",
		HookPoints: []effect.HookPoint{effect.HookPossessionPre},
		Condition:  effect.Condition{Kind: effect.ConditionAlwaysTrue},
		Priority:   5,
		Actions: []effect.Mutation{
			{Kind: effect.MutationBlockDefault},
			{Kind: effect.MutationNarrative, NarrativeText: "blocker"},
		},
	})
	registry.Add(effect.Effect{
		ID:         "suppressed-follower",
		HookPoints: []effect.HookPoint{effect.HookPossessionPre},
		Condition:  effect.Condition{Kind: effect.ConditionAlwaysTrue},
		Priority:   3,
		Actions:    []effect.Mutation{{Kind: effect.MutationNarrative, NarrativeText: "suppressed"}},
	})
	registry.Add(effect.Effect{
		ID:         "unaffected-leader",
		HookPoints: []effect.HookPoint{effect.HookPossessionPre},
		Condition:  effect.Condition{Kind: effect.ConditionAlwaysTrue},
		Priority:   10,
		Actions:    []effect.Mutation{{Kind: effect.MutationNarrative, NarrativeText: "leader"}},
	})

	ctx := effect.NewContext(nil)
	result, err := registry.Fire(effect.HookPossessionPre, ctx)
	require.NoError(t, err)

	assert.Contains(t, result.Narratives, "leader")
	assert.Contains(t, result.Narratives, "blocker")
	assert.NotContains(t, result.Narratives, "suppressed")
}

// TestSimulateGameBlockEventCancelsPossession proves block_event at
// sim.possession.pre actually cancels the possession's own resolution
// rather than only stopping further hook dispatch within that Fire
// call.
func TestSimulateGameBlockEventCancelsPossession(t *testing.T) {
	in := testInput(13)
	registry := effect.NewRegistry()
	registry.Add(effect.Effect{
		ID:         "cancel-all-possessions",
		HookPoints: []effect.HookPoint{effect.HookPossessionPre},
		Condition:  effect.Condition{Kind: effect.ConditionAlwaysTrue},
		Actions:    []effect.Mutation{{Kind: effect.MutationBlockEvent}},
	})
	in.Effects = registry

	result, err := SimulateGame(in)
	require.NoError(t, err)
	require.NotEmpty(t, result.Possessions)

	assert.Equal(t, 0, result.HomeScore)
	assert.Equal(t, 0, result.AwayScore)
	for _, p := range result.Possessions {
		assert.False(t, p.ShotAttempted)
		assert.False(t, p.TurnoverOccurred)
		assert.False(t, p.FoulOccurred)
		assert.Equal(t, 0, p.PointsScored)
	}
}
