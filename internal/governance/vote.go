package governance

import (
	"context"

	"github.com/hoopsguild/leaguesim/internal/govevent"
)

// Vote is one ballot cast on a proposal (spec.md §3 "Vote").
type Vote struct {
	Seq        uint64
	ProposalID string
	GovernorID string
	TeamID     string
	Direction  string // "yes" | "no"
	Weight     float64
	BoostSpent bool
}

// VotesForProposal replays vote.cast events for a proposal, excluding
// any ballot cast before the latest amendment (spec.md §4.5 "Count
// only votes with timestamp >= the latest proposal.amended sequence
// number" — sequence number is used here rather than wall-clock time
// since the event log is sequence-ordered and re-entrant replay must
// stay deterministic).
func VotesForProposal(ctx context.Context, log govevent.Log, seasonID, proposalID string, sinceSeq uint64) ([]Vote, error) {
	events, err := log.ByAggregate(ctx, seasonID, proposalID)
	if err != nil {
		return nil, err
	}
	var votes []Vote
	for _, e := range events {
		if e.Type != govevent.TypeVoteCast || e.Seq < sinceSeq {
			continue
		}
		var payload govevent.VoteCastPayload
		if err := govevent.DecodePayload(e.PayloadJSON, &payload); err != nil {
			return nil, err
		}
		votes = append(votes, Vote{
			Seq:        e.Seq,
			ProposalID: proposalID,
			GovernorID: payload.GovernorID,
			TeamID:     payload.TeamID,
			Direction:  payload.Direction,
			Weight:     payload.Weight,
			BoostSpent: payload.BoostSpent,
		})
	}
	return votes, nil
}

// HasVoted reports whether governorID already has a ballot recorded
// since sinceSeq (spec.md duplicate-vote rejection via CodeVoteDuplicate).
func HasVoted(votes []Vote, governorID string) bool {
	for _, v := range votes {
		if v.GovernorID == governorID {
			return true
		}
	}
	return false
}

// VoteWeight computes a ballot's weight: base 1/N active governors on
// the voter's team, doubled if a BOOST token is spent (spec.md §3
// "Vote").
func VoteWeight(activeGovernorsOnTeam int, boost bool) float64 {
	if activeGovernorsOnTeam <= 0 {
		activeGovernorsOnTeam = 1
	}
	w := 1.0 / float64(activeGovernorsOnTeam)
	if boost {
		w *= 2
	}
	return w
}
