package governance

import (
	"context"

	"github.com/hoopsguild/leaguesim/internal/govevent"
	"github.com/hoopsguild/leaguesim/internal/platform/apperrors"
)

// Amend appends a proposal.amended event after checking the self-amend
// and amendment-cap constraints (spec.md §3 "Amendment": "costs one
// AMEND token; resets votes; capped at 3 per proposal; the original
// author may not self-amend"). Token spend and the append must happen
// under the same writer-lock hold as the balance check the caller
// performed, matching Spend's contract.
func Amend(ctx context.Context, log govevent.Log, seasonID string, p *Proposal, amenderID string, newInterpretation map[string]any) error {
	if !p.votable() {
		return apperrors.WithMetadata(apperrors.CodeProposalInvalidState,
			"proposal is not open for amendment", map[string]string{"status": string(p.Status)})
	}
	if amenderID == p.AuthorGovernorID {
		return apperrors.WithMetadata(apperrors.CodeProposalSelfAmend,
			"author may not amend own proposal", map[string]string{"proposal_id": p.ID})
	}
	if p.AmendmentCount >= MaxAmendments {
		return apperrors.WithMetadata(apperrors.CodeProposalAmendCapReached,
			"amendment cap reached", map[string]string{"proposal_id": p.ID})
	}

	if err := Spend(ctx, log, seasonID, amenderID, govevent.TokenAmend, 1, "amend:"+p.ID, p.ConfirmedRound); err != nil {
		return err
	}

	payload := govevent.ProposalAmendedPayload{
		ProposalID:        p.ID,
		AmenderID:         amenderID,
		NewInterpretation: newInterpretation,
		AmendmentIndex:    p.AmendmentCount + 1,
	}
	body, err := govevent.EncodePayload(payload)
	if err != nil {
		return err
	}
	_, err = log.Append(ctx, seasonID, govevent.Event{
		Type:          govevent.TypeProposalAmended,
		AggregateID:   p.ID,
		AggregateType: govevent.AggregateProposal,
		GovernorID:    amenderID,
		PayloadJSON:   body,
	})
	return err
}
