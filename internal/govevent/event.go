// Package govevent implements C1: the append-only, ordered governance
// event log that is the source of truth for all derived governance
// state (proposal status, token balances, registered effects).
//
// Grounded on the teacher's campaign event journal
// (internal/campaign/event/event.go): a typed Type enum, a flat
// per-season sequence, and a JSON payload envelope.
package govevent

import (
	"strings"
	"time"
)

// Type identifies the kind of a governance event. Dotted namespace per
// spec.md §6's taxonomy table.
type Type string

// Proposal lifecycle events.
const (
	TypeProposalSubmitted              Type = "proposal.submitted"
	TypeProposalPendingInterpretation  Type = "proposal.pending_interpretation"
	TypeProposalInterpretationRetryFailed Type = "proposal.interpretation_retry_failed"
	TypeProposalInterpretationExpired  Type = "proposal.interpretation_expired"
	TypeProposalConfirmed              Type = "proposal.confirmed"
	TypeProposalFlaggedForReview       Type = "proposal.flagged_for_review"
	TypeProposalReviewCleared          Type = "proposal.review_cleared"
	TypeProposalVetoed                 Type = "proposal.vetoed"
	TypeProposalCancelled              Type = "proposal.cancelled"
	TypeProposalAmended                Type = "proposal.amended"
	TypeProposalFirstTallySeen         Type = "proposal.first_tally_seen"
	TypeProposalPassed                 Type = "proposal.passed"
	TypeProposalFailed                 Type = "proposal.failed"
	TypeProposalRejectedConstraint     Type = "proposal.rejected_constraint"
)

// Vote events.
const (
	TypeVoteCast Type = "vote.cast"
)

// Rule change events.
const (
	TypeRuleEnacted    Type = "rule.enacted"
	TypeRuleRolledBack Type = "rule.rolled_back"
)

// Token economy events.
const (
	TypeTokenSpent       Type = "token.spent"
	TypeTokenRegenerated Type = "token.regenerated"
)

// Trade events.
const (
	TypeTradeOffered  Type = "trade.offered"
	TypeTradeAccepted Type = "trade.accepted"
	TypeTradeRejected Type = "trade.rejected"
)

// Strategy events.
const (
	TypeStrategySet         Type = "strategy.set"
	TypeStrategyInterpreted Type = "strategy.interpreted"
)

// Effect events.
const (
	TypeEffectRegistered Type = "effect.registered"
	TypeEffectExpired    Type = "effect.expired"
)

// AggregateType identifies the kind of aggregate an event belongs to.
type AggregateType string

const (
	AggregateProposal   AggregateType = "proposal"
	AggregateToken      AggregateType = "token"
	AggregateRuleChange AggregateType = "rule_change"
	AggregateTrade      AggregateType = "trade"
	AggregateStrategy   AggregateType = "strategy"
	AggregateEffect     AggregateType = "effect"
	AggregateVote       AggregateType = "vote"
)

// Event is an immutable entry in a season's append-only governance log.
type Event struct {
	ID            string
	SeasonID      string
	Seq           uint64 // strictly increasing within a season; assigned on append
	Type          Type
	AggregateID   string
	AggregateType AggregateType
	RoundNumber   int
	GovernorID    string
	TeamID        string
	Timestamp     time.Time
	PayloadJSON   []byte
}

// IsValid reports whether the event type string is non-empty.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Domain returns the dotted prefix of the event type (e.g. "proposal").
func (t Type) Domain() string {
	for i, c := range t {
		if c == '.' {
			return string(t[:i])
		}
	}
	return string(t)
}
