package governance

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/hoopsguild/leaguesim/internal/effect"
	"github.com/hoopsguild/leaguesim/internal/govevent"
	"github.com/hoopsguild/leaguesim/internal/platform/apperrors"
	"github.com/hoopsguild/leaguesim/internal/ruleset"
)

// SubmitInput bundles the output of sanitization, injection
// classification, and AI-Gateway interpretation (spec.md §4.5
// "Submit") — all of which happen upstream of the governance kernel,
// in the orchestrator and AI Gateway packages respectively. The
// kernel's job starts once a proposal is ready to become an event.
type SubmitInput struct {
	ProposalID       string
	AuthorGovernorID string
	TeamID           string
	RawText          string
	SanitizedText    string
	Interpretation   map[string]any
	Effects          []EffectSpec
	InjectionFlagged bool
	Confidence       float64
	Round            int
}

// Submit charges the PROPOSE token and appends proposal.submitted.
// Token charge happens here, before the event, to prevent a
// double-spend race (spec.md §4.5 "Token charge happens at submit").
func Submit(ctx context.Context, log govevent.Log, seasonID string, in SubmitInput) (*Proposal, error) {
	if err := Spend(ctx, log, seasonID, in.AuthorGovernorID, govevent.TokenPropose, 1, "submit:"+in.ProposalID, in.Round); err != nil {
		return nil, err
	}

	tier := DetermineTier(in.Effects, in.InjectionFlagged, in.Confidence)
	payload := govevent.ProposalSubmittedPayload{
		ProposalID:       in.ProposalID,
		AuthorID:         in.AuthorGovernorID,
		TeamID:           in.TeamID,
		RawText:          in.RawText,
		SanitizedText:    in.SanitizedText,
		Tier:             tier,
		TokenCost:        1,
		Interpretation:   in.Interpretation,
		InjectionFlagged: in.InjectionFlagged,
		Confidence:       in.Confidence,
	}
	body, err := govevent.EncodePayload(payload)
	if err != nil {
		return nil, err
	}
	if _, err := log.Append(ctx, seasonID, govevent.Event{
		Type:          govevent.TypeProposalSubmitted,
		AggregateID:   in.ProposalID,
		AggregateType: govevent.AggregateProposal,
		GovernorID:    in.AuthorGovernorID,
		RoundNumber:   in.Round,
		PayloadJSON:   body,
	}); err != nil {
		return nil, err
	}

	if NeedsAdminReview(tier, in.InjectionFlagged, in.Confidence, in.Effects) {
		if err := flagForReview(ctx, log, seasonID, in.ProposalID, "tier/confidence threshold", nil); err != nil {
			return nil, err
		}
	}

	if err := confirm(ctx, log, seasonID, in.ProposalID); err != nil {
		return nil, err
	}
	return Reconstruct(ctx, log, seasonID, in.ProposalID)
}

func confirm(ctx context.Context, log govevent.Log, seasonID, proposalID string) error {
	body, err := govevent.EncodePayload(govevent.ProposalConfirmedPayload{ProposalID: proposalID})
	if err != nil {
		return err
	}
	_, err = log.Append(ctx, seasonID, govevent.Event{
		Type:          govevent.TypeProposalConfirmed,
		AggregateID:   proposalID,
		AggregateType: govevent.AggregateProposal,
		PayloadJSON:   body,
	})
	return err
}

func flagForReview(ctx context.Context, log govevent.Log, seasonID, proposalID, reason string, dump map[string]any) error {
	body, err := govevent.EncodePayload(govevent.ProposalFlaggedForReviewPayload{ProposalID: proposalID, Reason: reason, Dump: dump})
	if err != nil {
		return err
	}
	_, err = log.Append(ctx, seasonID, govevent.Event{
		Type:          govevent.TypeProposalFlaggedForReview,
		AggregateID:   proposalID,
		AggregateType: govevent.AggregateProposal,
		PayloadJSON:   body,
	})
	return err
}

// AdminClear appends proposal.review_cleared: a no-op beyond lifting
// the admin-review flag (spec.md §4.5 "clear (no-op)").
func AdminClear(ctx context.Context, log govevent.Log, seasonID string, p *Proposal) error {
	body, err := govevent.EncodePayload(govevent.ProposalReviewClearedPayload{ProposalID: p.ID})
	if err != nil {
		return err
	}
	_, err = log.Append(ctx, seasonID, govevent.Event{
		Type:          govevent.TypeProposalReviewCleared,
		AggregateID:   p.ID,
		AggregateType: govevent.AggregateProposal,
		PayloadJSON:   body,
	})
	return err
}

// AdminVeto refunds the proposer's PROPOSE token and appends
// proposal.vetoed (spec.md §4.5 "admin may veto (refund tokens)").
func AdminVeto(ctx context.Context, log govevent.Log, seasonID string, p *Proposal, reason string, round int) error {
	if p.Status == StatusVetoed || p.Status == StatusPassed || p.Status == StatusFailed || p.Status == StatusCancelled {
		return apperrors.WithMetadata(apperrors.CodeProposalInvalidState,
			"proposal cannot be vetoed from its current status", map[string]string{"status": string(p.Status)})
	}
	if err := Refund(ctx, log, seasonID, p.AuthorGovernorID, govevent.TokenPropose, p.TokenCost, round); err != nil {
		return err
	}
	body, err := govevent.EncodePayload(govevent.ProposalVetoedPayload{ProposalID: p.ID, Reason: reason, RefundAmount: p.TokenCost})
	if err != nil {
		return err
	}
	_, err = log.Append(ctx, seasonID, govevent.Event{
		Type:          govevent.TypeProposalVetoed,
		AggregateID:   p.ID,
		AggregateType: govevent.AggregateProposal,
		RoundNumber:   round,
		PayloadJSON:   body,
	})
	return err
}

// Cancel is author-initiated withdrawal; no refund (spec.md lists no
// refund for author cancellation, unlike admin veto).
func Cancel(ctx context.Context, log govevent.Log, seasonID string, p *Proposal, callerID string) error {
	if callerID != p.AuthorGovernorID {
		return apperrors.WithMetadata(apperrors.CodeProposalInvalidState,
			"only the author may cancel a proposal", map[string]string{"proposal_id": p.ID})
	}
	if !p.votable() {
		return apperrors.WithMetadata(apperrors.CodeProposalInvalidState,
			"proposal cannot be cancelled from its current status", map[string]string{"status": string(p.Status)})
	}
	body, err := govevent.EncodePayload(govevent.ProposalCancelledPayload{ProposalID: p.ID})
	if err != nil {
		return err
	}
	_, err = log.Append(ctx, seasonID, govevent.Event{
		Type:          govevent.TypeProposalCancelled,
		AggregateID:   p.ID,
		AggregateType: govevent.AggregateProposal,
		PayloadJSON:   body,
	})
	return err
}

// CastVote rejects duplicate ballots (CodeVoteDuplicate), otherwise
// appends vote.cast.
func CastVote(ctx context.Context, log govevent.Log, seasonID string, p *Proposal, governorID, teamID, direction string, activeGovernorsOnTeam int, boost bool, round int) error {
	if !p.votable() {
		return apperrors.WithMetadata(apperrors.CodeProposalInvalidState,
			"proposal is not open for voting", map[string]string{"status": string(p.Status)})
	}
	votes, err := VotesForProposal(ctx, log, seasonID, p.ID, p.LastAmendSeq)
	if err != nil {
		return err
	}
	if HasVoted(votes, governorID) {
		return apperrors.WithMetadata(apperrors.CodeVoteDuplicate,
			"governor has already voted on this proposal since the latest amendment",
			map[string]string{"governor_id": governorID})
	}
	if boost {
		if err := Spend(ctx, log, seasonID, governorID, govevent.TokenBoost, 1, "boost:"+p.ID, round); err != nil {
			return err
		}
	}
	weight := VoteWeight(activeGovernorsOnTeam, boost)
	payload := govevent.VoteCastPayload{ProposalID: p.ID, GovernorID: governorID, TeamID: teamID, Direction: direction, Weight: weight, BoostSpent: boost}
	body, err := govevent.EncodePayload(payload)
	if err != nil {
		return err
	}
	_, err = log.Append(ctx, seasonID, govevent.Event{
		Type:          govevent.TypeVoteCast,
		AggregateID:   p.ID,
		AggregateType: govevent.AggregateProposal,
		GovernorID:    governorID,
		RoundNumber:   round,
		PayloadJSON:   body,
	})
	return err
}

// DeferOrTally implements the minimum-voting-period gate (spec.md
// §4.5 "Minimum voting period"): the first tally attempt in a given
// confirmed/amended window only records proposal.first_tally_seen and
// defers; the following window actually tallies.
func DeferOrTally(ctx context.Context, log govevent.Log, seasonID string, p *Proposal, round int) (*TallyOutcome, error) {
	if !p.votable() {
		return nil, apperrors.WithMetadata(apperrors.CodeProposalInvalidState,
			"proposal is not open for tally", map[string]string{"status": string(p.Status)})
	}
	if !p.FirstTallySeen {
		body, err := govevent.EncodePayload(govevent.ProposalFirstTallySeenPayload{ProposalID: p.ID, Round: round})
		if err != nil {
			return nil, err
		}
		if _, err := log.Append(ctx, seasonID, govevent.Event{
			Type:          govevent.TypeProposalFirstTallySeen,
			AggregateID:   p.ID,
			AggregateType: govevent.AggregateProposal,
			RoundNumber:   round,
			PayloadJSON:   body,
		}); err != nil {
			return nil, err
		}
		return nil, nil
	}
	outcome, err := Tally(ctx, log, seasonID, p)
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}

// EnactmentInput is what a passed proposal needs to install: a
// parameter delta (classical rule change) and/or a list of effects to
// register (spec.md §4.5 "passed proposals call Effect Registry to
// register effects and, for parameter changes, produce a new Rule Set
// via validated application").
type EnactmentInput struct {
	Parameter string // empty if this proposal carries no parameter change
	Value     float64
	Effects   []effect.Effect
}

// Resolve finalizes a tallied proposal: on pass, applies any parameter
// change to rules (rolling back with a refund on validation failure)
// and registers any effects, then appends proposal.passed/failed. On
// fail, just appends proposal.failed. Returns the resulting rule set
// (unchanged from the input if nothing was enacted).
//
// The gov.pre/gov.post hook points (spec.md §4.3's hook hierarchy)
// bracket the whole resolution so a registered effect can react to, or
// veto state around, any proposal's outcome — not just the simulation
// engine's possession-level hooks.
func Resolve(ctx context.Context, log govevent.Log, seasonID string, p *Proposal, outcome TallyOutcome, registry *effect.Registry, rules ruleset.RuleSet, in EnactmentInput, round int) (ruleset.RuleSet, error) {
	gctx := govHookContext(seasonID, p, outcome, round)
	if _, err := registry.Fire(effect.HookGovPre, gctx); err != nil {
		return rules, apperrors.Wrap(apperrors.CodeSimulationInvalidEffect, "fire gov.pre hooks", err)
	}
	newRules, err := resolveTally(ctx, log, seasonID, p, outcome, registry, rules, in, round)
	if _, ferr := registry.Fire(effect.HookGovPost, gctx); ferr != nil && err == nil {
		return newRules, apperrors.Wrap(apperrors.CodeSimulationInvalidEffect, "fire gov.post hooks", ferr)
	}
	return newRules, err
}

// govHookContext builds the evaluation context gov.pre/gov.post
// conditions resolve against, seeded deterministically from the
// proposal and round so a "random" condition draws reproducibly.
func govHookContext(seasonID string, p *Proposal, outcome TallyOutcome, round int) *effect.Context {
	h := fnv.New64a()
	fmt.Fprintf(h, "gov|%s|%s|%d", seasonID, p.ID, round)
	gctx := effect.NewContext(rand.New(rand.NewSource(int64(h.Sum64()))))
	gctx.EventStrings["event.proposal_id"] = p.ID
	gctx.EventFields["event.round"] = float64(round)
	gctx.EventFields["event.passed"] = boolFloat(outcome.Passed)
	return gctx
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// resolveTally holds Resolve's original enactment logic.
func resolveTally(ctx context.Context, log govevent.Log, seasonID string, p *Proposal, outcome TallyOutcome, registry *effect.Registry, rules ruleset.RuleSet, in EnactmentInput, round int) (ruleset.RuleSet, error) {
	if !outcome.Passed {
		body, err := govevent.EncodePayload(outcome.TallyResult)
		if err != nil {
			return rules, err
		}
		_, err = log.Append(ctx, seasonID, govevent.Event{
			Type:          govevent.TypeProposalFailed,
			AggregateID:   p.ID,
			AggregateType: govevent.AggregateProposal,
			RoundNumber:   round,
			PayloadJSON:   body,
		})
		return rules, err
	}

	newRules := rules
	if in.Parameter != "" {
		applied, err := rules.WithParameter(in.Parameter, in.Value)
		if err != nil {
			refundErr := Refund(ctx, log, seasonID, p.AuthorGovernorID, govevent.TokenPropose, p.TokenCost, round)
			body, encErr := govevent.EncodePayload(govevent.RuleRolledBackPayload{Reason: err.Error(), ProposalID: p.ID})
			if encErr != nil {
				return rules, encErr
			}
			if _, appendErr := log.Append(ctx, seasonID, govevent.Event{
				Type:          govevent.TypeRuleRolledBack,
				AggregateID:   p.ID,
				AggregateType: govevent.AggregateRuleChange,
				RoundNumber:   round,
				PayloadJSON:   body,
			}); appendErr != nil {
				return rules, appendErr
			}
			if refundErr != nil {
				return rules, refundErr
			}
			return rules, nil
		}
		oldValue := rules.Diff(applied)[in.Parameter][0]
		enactedBody, err := govevent.EncodePayload(govevent.RuleEnactedPayload{
			Parameter:        in.Parameter,
			OldValue:         oldValue,
			NewValue:         in.Value,
			SourceProposalID: p.ID,
			Round:            round,
		})
		if err != nil {
			return rules, err
		}
		if _, err := log.Append(ctx, seasonID, govevent.Event{
			Type:          govevent.TypeRuleEnacted,
			AggregateID:   p.ID,
			AggregateType: govevent.AggregateRuleChange,
			RoundNumber:   round,
			PayloadJSON:   enactedBody,
		}); err != nil {
			return rules, err
		}
		newRules = applied
	}

	if len(in.Effects) > 0 {
		if err := registry.RegisterFromProposal(ctx, log, seasonID, p.ID, in.Effects, round); err != nil {
			return newRules, err
		}
	}

	body, err := govevent.EncodePayload(outcome.TallyResult)
	if err != nil {
		return newRules, err
	}
	_, err = log.Append(ctx, seasonID, govevent.Event{
		Type:          govevent.TypeProposalPassed,
		AggregateID:   p.ID,
		AggregateType: govevent.AggregateProposal,
		RoundNumber:   round,
		PayloadJSON:   body,
	})
	return newRules, err
}
