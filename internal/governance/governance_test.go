package governance

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoopsguild/leaguesim/internal/effect"
	"github.com/hoopsguild/leaguesim/internal/govevent"
	"github.com/hoopsguild/leaguesim/internal/platform/apperrors"
	"github.com/hoopsguild/leaguesim/internal/ruleset"
)

// memLog is a minimal in-process govevent.Log for exercising the
// governance kernel without a real store.
type memLog struct {
	mu     sync.Mutex
	events map[string][]govevent.Event
	seq    uint64
}

func newMemLog() *memLog {
	return &memLog{events: make(map[string][]govevent.Event)}
}

func (m *memLog) Append(ctx context.Context, seasonID string, e govevent.Event) (govevent.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	e.Seq = m.seq
	m.events[seasonID] = append(m.events[seasonID], e)
	return e, nil
}

func (m *memLog) ByType(ctx context.Context, seasonID string, t govevent.Type) ([]govevent.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []govevent.Event
	for _, e := range m.events[seasonID] {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memLog) ByAggregate(ctx context.Context, seasonID, aggregateID string) ([]govevent.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []govevent.Event
	for _, e := range m.events[seasonID] {
		if e.AggregateID == aggregateID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memLog) Range(ctx context.Context, seasonID string, t govevent.Type, fromSeq, toSeq uint64) ([]govevent.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []govevent.Event
	for _, e := range m.events[seasonID] {
		if e.Type != t || e.Seq < fromSeq {
			continue
		}
		if toSeq != 0 && e.Seq > toSeq {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memLog) Tail(ctx context.Context, seasonID string, afterSeq uint64) ([]govevent.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []govevent.Event
	for _, e := range m.events[seasonID] {
		if e.Seq > afterSeq {
			out = append(out, e)
		}
	}
	return out, nil
}

const testSeason = "season-1"

func seedProposeTokens(t *testing.T, log govevent.Log, governorID string, n int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, Regenerate(ctx, log, testSeason, governorID, govevent.TokenPropose, n, 1))
	require.NoError(t, Regenerate(ctx, log, testSeason, governorID, govevent.TokenAmend, n, 1))
	require.NoError(t, Regenerate(ctx, log, testSeason, governorID, govevent.TokenBoost, n, 1))
}

func TestSubmitChargesTokenAndConfirms(t *testing.T) {
	ctx := context.Background()
	log := newMemLog()
	seedProposeTokens(t, log, "gov-1", 2)

	p, err := Submit(ctx, log, testSeason, SubmitInput{
		ProposalID:       "prop-1",
		AuthorGovernorID: "gov-1",
		TeamID:           "team-1",
		RawText:          "raise the shot clock",
		SanitizedText:    "raise the shot clock",
		Effects:          []EffectSpec{{Kind: "parameter_change", Parameter: "shot_clock_seconds"}},
		Confidence:       0.9,
		Round:            1,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, p.Status)
	assert.Equal(t, 3, p.Tier)
	assert.False(t, p.NeedsAdminReview)

	balance, err := Balance(ctx, log, testSeason, "gov-1", govevent.TokenPropose)
	require.NoError(t, err)
	assert.Equal(t, 1, balance)
}

func TestSubmitInsufficientTokenRejected(t *testing.T) {
	ctx := context.Background()
	log := newMemLog()

	_, err := Submit(ctx, log, testSeason, SubmitInput{
		ProposalID:       "prop-2",
		AuthorGovernorID: "gov-broke",
		TeamID:           "team-1",
		RawText:          "x",
		SanitizedText:    "x",
		Round:            1,
	})
	require.Error(t, err)
	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeTokenInsufficient, appErr.Code)
}

func TestSubmitLowConfidenceFlagsForReview(t *testing.T) {
	ctx := context.Background()
	log := newMemLog()
	seedProposeTokens(t, log, "gov-1", 1)

	p, err := Submit(ctx, log, testSeason, SubmitInput{
		ProposalID:       "prop-3",
		AuthorGovernorID: "gov-1",
		TeamID:           "team-1",
		RawText:          "do something vague",
		SanitizedText:    "do something vague",
		Confidence:       0.2,
		Round:            1,
	})
	require.NoError(t, err)
	assert.True(t, p.NeedsAdminReview)
	assert.Equal(t, StatusConfirmed, p.Status)
}

func TestVotingTallyAndDeferral(t *testing.T) {
	ctx := context.Background()
	log := newMemLog()
	seedProposeTokens(t, log, "gov-1", 1)

	p, err := Submit(ctx, log, testSeason, SubmitInput{
		ProposalID:       "prop-4",
		AuthorGovernorID: "gov-1",
		TeamID:           "team-1",
		RawText:          "narrate more",
		SanitizedText:    "narrate more",
		Effects:          []EffectSpec{{Kind: "narrative"}},
		Confidence:       0.95,
		Round:            1,
	})
	require.NoError(t, err)
	require.Equal(t, 2, p.Tier)

	require.NoError(t, CastVote(ctx, log, testSeason, p, "gov-2", "team-2", "yes", 1, false, 1))
	require.NoError(t, CastVote(ctx, log, testSeason, p, "gov-3", "team-3", "no", 1, false, 1))

	p, err = Reconstruct(ctx, log, testSeason, p.ID)
	require.NoError(t, err)

	outcome, err := DeferOrTally(ctx, log, testSeason, p, 1)
	require.NoError(t, err)
	assert.Nil(t, outcome, "first tally attempt defers")

	p, err = Reconstruct(ctx, log, testSeason, p.ID)
	require.NoError(t, err)
	assert.True(t, p.FirstTallySeen)

	outcome, err = DeferOrTally(ctx, log, testSeason, p, 2)
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.False(t, outcome.Passed, "a 50/50 split fails against tier 2's strict >50%% threshold")
}

func TestDuplicateVoteRejected(t *testing.T) {
	ctx := context.Background()
	log := newMemLog()
	seedProposeTokens(t, log, "gov-1", 1)
	p, err := Submit(ctx, log, testSeason, SubmitInput{
		ProposalID: "prop-5", AuthorGovernorID: "gov-1", TeamID: "team-1",
		RawText: "x", SanitizedText: "x", Confidence: 0.9, Round: 1,
	})
	require.NoError(t, err)

	require.NoError(t, CastVote(ctx, log, testSeason, p, "gov-2", "team-2", "yes", 1, false, 1))
	err = CastVote(ctx, log, testSeason, p, "gov-2", "team-2", "no", 1, false, 1)
	require.Error(t, err)
	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeVoteDuplicate, appErr.Code)
}

func TestAmendResetsVotesAndRejectsSelfAmend(t *testing.T) {
	ctx := context.Background()
	log := newMemLog()
	seedProposeTokens(t, log, "gov-1", 2)
	seedProposeTokens(t, log, "gov-4", 2)

	p, err := Submit(ctx, log, testSeason, SubmitInput{
		ProposalID: "prop-6", AuthorGovernorID: "gov-1", TeamID: "team-1",
		RawText: "x", SanitizedText: "x", Confidence: 0.9, Round: 1,
	})
	require.NoError(t, err)

	err = Amend(ctx, log, testSeason, p, "gov-1", map[string]any{"note": "self amend"})
	require.Error(t, err)
	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeProposalSelfAmend, appErr.Code)

	require.NoError(t, CastVote(ctx, log, testSeason, p, "gov-2", "team-2", "yes", 1, false, 1))
	require.NoError(t, Amend(ctx, log, testSeason, p, "gov-4", map[string]any{"note": "revised"}))

	p, err = Reconstruct(ctx, log, testSeason, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAmended, p.Status)
	assert.Equal(t, 1, p.AmendmentCount)
	assert.False(t, p.FirstTallySeen)

	votes, err := VotesForProposal(ctx, log, testSeason, p.ID, p.LastAmendSeq)
	require.NoError(t, err)
	assert.Empty(t, votes, "vote cast before the amendment must not count")
}

func TestAmendCapEnforced(t *testing.T) {
	ctx := context.Background()
	log := newMemLog()
	seedProposeTokens(t, log, "gov-1", 1)
	seedProposeTokens(t, log, "gov-amender", 10)

	p, err := Submit(ctx, log, testSeason, SubmitInput{
		ProposalID: "prop-7", AuthorGovernorID: "gov-1", TeamID: "team-1",
		RawText: "x", SanitizedText: "x", Confidence: 0.9, Round: 1,
	})
	require.NoError(t, err)

	for i := 0; i < MaxAmendments; i++ {
		require.NoError(t, Amend(ctx, log, testSeason, p, "gov-amender", map[string]any{"i": i}))
		p, err = Reconstruct(ctx, log, testSeason, p.ID)
		require.NoError(t, err)
	}

	err = Amend(ctx, log, testSeason, p, "gov-amender", map[string]any{"i": "one too many"})
	require.Error(t, err)
	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeProposalAmendCapReached, appErr.Code)
}

func TestAdminVetoRefundsTokens(t *testing.T) {
	ctx := context.Background()
	log := newMemLog()
	seedProposeTokens(t, log, "gov-1", 1)

	p, err := Submit(ctx, log, testSeason, SubmitInput{
		ProposalID: "prop-8", AuthorGovernorID: "gov-1", TeamID: "team-1",
		RawText: "x", SanitizedText: "x", Confidence: 0.9, Round: 1,
	})
	require.NoError(t, err)

	before, err := Balance(ctx, log, testSeason, "gov-1", govevent.TokenPropose)
	require.NoError(t, err)

	require.NoError(t, AdminVeto(ctx, log, testSeason, p, "bad faith proposal", 1))

	after, err := Balance(ctx, log, testSeason, "gov-1", govevent.TokenPropose)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	p, err = Reconstruct(ctx, log, testSeason, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusVetoed, p.Status)
}

func TestResolvePassedProposalEnactsRuleAndRegistersEffect(t *testing.T) {
	ctx := context.Background()
	log := newMemLog()
	seedProposeTokens(t, log, "gov-1", 1)

	p, err := Submit(ctx, log, testSeason, SubmitInput{
		ProposalID: "prop-9", AuthorGovernorID: "gov-1", TeamID: "team-1",
		RawText: "faster shot clock", SanitizedText: "faster shot clock",
		Effects: []EffectSpec{{Kind: "parameter_change", Parameter: "shot_clock_seconds"}},
		Confidence: 0.95, Round: 1,
	})
	require.NoError(t, err)

	require.NoError(t, CastVote(ctx, log, testSeason, p, "gov-2", "team-2", "yes", 1, false, 1))
	_, err = DeferOrTally(ctx, log, testSeason, p, 1)
	require.NoError(t, err)
	p, err = Reconstruct(ctx, log, testSeason, p.ID)
	require.NoError(t, err)
	outcome, err := DeferOrTally(ctx, log, testSeason, p, 2)
	require.NoError(t, err)
	require.NotNil(t, outcome)
	require.True(t, outcome.Passed)

	rules := ruleset.Default()
	registry := effect.NewRegistry()
	newRules, err := Resolve(ctx, log, testSeason, p, *outcome, registry, rules, EnactmentInput{
		Parameter: "shot_clock_seconds",
		Value:     float64(rules.ShotClockSeconds - 2),
		Effects: []effect.Effect{{
			Kind:       effect.KindNarrative,
			HookPoints: []effect.HookPoint{effect.HookPossessionPost},
			Condition:  effect.Condition{Kind: effect.ConditionAlwaysTrue},
			Duration:   effect.DurationPermanent,
		}},
	}, 2)
	require.NoError(t, err)
	assert.Equal(t, rules.ShotClockSeconds-2, newRules.ShotClockSeconds)
	assert.Len(t, registry.Active(), 1)

	p, err = Reconstruct(ctx, log, testSeason, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPassed, p.Status)
}

func TestResolveFailedProposalNoEnactment(t *testing.T) {
	ctx := context.Background()
	log := newMemLog()
	seedProposeTokens(t, log, "gov-1", 1)

	p, err := Submit(ctx, log, testSeason, SubmitInput{
		ProposalID: "prop-10", AuthorGovernorID: "gov-1", TeamID: "team-1",
		RawText: "x", SanitizedText: "x", Confidence: 0.9, Round: 1,
	})
	require.NoError(t, err)

	require.NoError(t, CastVote(ctx, log, testSeason, p, "gov-2", "team-2", "no", 1, false, 1))
	_, err = DeferOrTally(ctx, log, testSeason, p, 1)
	require.NoError(t, err)
	p, err = Reconstruct(ctx, log, testSeason, p.ID)
	require.NoError(t, err)
	outcome, err := DeferOrTally(ctx, log, testSeason, p, 2)
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.False(t, outcome.Passed)

	rules := ruleset.Default()
	registry := effect.NewRegistry()
	newRules, err := Resolve(ctx, log, testSeason, p, *outcome, registry, rules, EnactmentInput{}, 2)
	require.NoError(t, err)
	assert.Equal(t, rules, newRules)
	assert.Empty(t, registry.Active())

	p, err = Reconstruct(ctx, log, testSeason, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, p.Status)
}
