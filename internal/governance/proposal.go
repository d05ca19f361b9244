// Package governance implements C6: the proposal lifecycle, voting,
// tally, token economy, and amendments described in spec.md §4.5. All
// state is derived by replaying the C1 governance event log; nothing
// here is itself durable.
package governance

import (
	"context"

	"github.com/hoopsguild/leaguesim/internal/govevent"
	"github.com/hoopsguild/leaguesim/internal/platform/apperrors"
)

// Status is a proposal's lifecycle state (spec.md §3 "Proposal").
type Status string

const (
	StatusPendingInterpretation Status = "pending_interpretation"
	StatusConfirmed             Status = "confirmed"
	StatusFlaggedForReview      Status = "flagged_for_review"
	StatusVetoed                Status = "vetoed"
	StatusAmended               Status = "amended"
	StatusPassed                Status = "passed"
	StatusFailed                Status = "failed"
	StatusCancelled             Status = "cancelled"
	StatusExpired               Status = "expired"
)

// MaxAmendments bounds how many times a proposal may be amended
// (spec.md §3 "capped at 3 per proposal").
const MaxAmendments = 3

// Proposal is the C6 governance aggregate, reconstructed by replaying
// its event stream (spec.md §3 "Reconstructed by replaying its event
// stream").
type Proposal struct {
	ID               string
	SeasonID         string
	AuthorGovernorID string
	TeamID           string
	RawText          string
	SanitizedText    string
	Interpretation   map[string]any
	Tier             int
	TokenCost        int
	Status           Status
	InjectionFlagged bool
	Confidence       float64
	NeedsAdminReview bool
	AmendmentCount   int
	LastAmendSeq     uint64
	ConfirmedRound   int
	FirstTallySeen   bool
	FirstTallyRound  int
}

// Reconstruct replays every event for proposalID, in sequence order,
// into a Proposal. Returns apperrors.CodeProposalNotFound if no
// proposal.submitted event exists for the id.
func Reconstruct(ctx context.Context, log govevent.Log, seasonID, proposalID string) (*Proposal, error) {
	events, err := log.ByAggregate(ctx, seasonID, proposalID)
	if err != nil {
		return nil, err
	}
	p := &Proposal{}
	found := false
	for _, e := range events {
		if e.AggregateType != govevent.AggregateProposal {
			continue
		}
		if err := p.apply(e); err != nil {
			return nil, err
		}
		found = true
	}
	if !found {
		return nil, apperrors.New(apperrors.CodeProposalNotFound, "proposal "+proposalID+" not found")
	}
	p.ID = proposalID
	p.SeasonID = seasonID
	return p, nil
}

func (p *Proposal) apply(e govevent.Event) error {
	switch e.Type {
	case govevent.TypeProposalSubmitted:
		var payload govevent.ProposalSubmittedPayload
		if err := govevent.DecodePayload(e.PayloadJSON, &payload); err != nil {
			return err
		}
		p.AuthorGovernorID = payload.AuthorID
		p.TeamID = payload.TeamID
		p.RawText = payload.RawText
		p.SanitizedText = payload.SanitizedText
		p.Interpretation = payload.Interpretation
		p.Tier = payload.Tier
		p.TokenCost = payload.TokenCost
		p.InjectionFlagged = payload.InjectionFlagged
		p.Confidence = payload.Confidence
		p.Status = StatusPendingInterpretation
	case govevent.TypeProposalConfirmed:
		p.Status = StatusConfirmed
		p.ConfirmedRound = e.RoundNumber
	case govevent.TypeProposalFlaggedForReview:
		p.NeedsAdminReview = true
		var payload govevent.ProposalFlaggedForReviewPayload
		if err := govevent.DecodePayload(e.PayloadJSON, &payload); err == nil && len(payload.Dump) > 0 {
			p.Interpretation = payload.Dump
		}
	case govevent.TypeProposalReviewCleared:
		p.NeedsAdminReview = false
	case govevent.TypeProposalVetoed:
		p.Status = StatusVetoed
	case govevent.TypeProposalCancelled:
		p.Status = StatusCancelled
	case govevent.TypeProposalAmended:
		var payload govevent.ProposalAmendedPayload
		if err := govevent.DecodePayload(e.PayloadJSON, &payload); err != nil {
			return err
		}
		p.Status = StatusAmended
		p.Interpretation = payload.NewInterpretation
		p.AmendmentCount = payload.AmendmentIndex
		p.LastAmendSeq = e.Seq
		p.FirstTallySeen = false // votes reset; minimum voting period re-applies
	case govevent.TypeProposalFirstTallySeen:
		p.FirstTallySeen = true
		var payload govevent.ProposalFirstTallySeenPayload
		if err := govevent.DecodePayload(e.PayloadJSON, &payload); err == nil {
			p.FirstTallyRound = payload.Round
		}
	case govevent.TypeProposalPassed:
		p.Status = StatusPassed
	case govevent.TypeProposalFailed:
		p.Status = StatusFailed
	case govevent.TypeProposalInterpretationExpired:
		p.Status = StatusExpired
	}
	return nil
}

// votable reports whether the proposal currently accepts votes
// (spec.md §4.5 "Voting window": "while proposal is in {confirmed,
// amended}").
func (p *Proposal) votable() bool {
	return p.Status == StatusConfirmed || p.Status == StatusAmended
}
