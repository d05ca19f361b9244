package governance

import (
	"context"

	"github.com/hoopsguild/leaguesim/internal/govevent"
	"github.com/hoopsguild/leaguesim/internal/platform/apperrors"
)

// TallyOutcome is the result of weighing a proposal's votes against its
// tier threshold (spec.md §4.5 "Tally").
type TallyOutcome struct {
	govevent.TallyResult
	Passed bool
}

// Tally computes the weighted outcome for a confirmed/amended
// proposal. Deferral for the minimum voting period (first_tally_seen)
// is the caller's responsibility — Tally is the pure vote-counting
// step, called only once deferral has already been satisfied.
func Tally(ctx context.Context, log govevent.Log, seasonID string, p *Proposal) (TallyOutcome, error) {
	if !p.votable() {
		return TallyOutcome{}, apperrors.WithMetadata(apperrors.CodeProposalInvalidState,
			"proposal is not open for tally", map[string]string{"status": string(p.Status)})
	}
	votes, err := VotesForProposal(ctx, log, seasonID, p.ID, p.LastAmendSeq)
	if err != nil {
		return TallyOutcome{}, err
	}

	var yes, total float64
	for _, v := range votes {
		total += v.Weight
		if v.Direction == "yes" {
			yes += v.Weight
		}
	}
	threshold := ThresholdForTier(p.Tier)
	fraction := 0.0
	if total > 0 {
		fraction = yes / total
	}
	// Strict inequality: ties fail (spec.md §4.5 "Strict inequality
	// (ties fail)").
	passed := fraction > threshold

	return TallyOutcome{
		TallyResult: govevent.TallyResult{
			ProposalID:       p.ID,
			Tier:             p.Tier,
			Threshold:        threshold,
			WeightedYes:      yes,
			TotalWeight:      total,
			WeightedFraction: fraction,
		},
		Passed: passed,
	}, nil
}
