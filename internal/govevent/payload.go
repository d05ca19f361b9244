package govevent

// ProposalSubmittedPayload is the minimum payload for proposal.submitted
// (spec.md §6): "full proposal dump including interpretation".
type ProposalSubmittedPayload struct {
	ProposalID      string         `json:"proposal_id"`
	AuthorID        string         `json:"author_governor_id"`
	TeamID          string         `json:"team_id"`
	RawText         string         `json:"raw_text"`
	SanitizedText   string         `json:"sanitized_text"`
	Tier            int            `json:"tier"`
	TokenCost       int            `json:"token_cost"`
	Interpretation  map[string]any `json:"interpretation,omitempty"`
	InjectionFlagged bool          `json:"injection_flagged"`
	Confidence      float64        `json:"confidence"`
}

// ProposalPendingInterpretationPayload tracks async interpretation retries.
type ProposalPendingInterpretationPayload struct {
	ProposalID   string `json:"proposal_id"`
	RetryCounter int    `json:"retry_counter"`
}

// ProposalInterpretationRetryFailedPayload records a failed retry attempt.
type ProposalInterpretationRetryFailedPayload struct {
	ProposalID string `json:"proposal_id"`
	Reason     string `json:"reason"`
}

// ProposalInterpretationExpiredPayload records giving up on interpretation.
type ProposalInterpretationExpiredPayload struct {
	ProposalID    string `json:"proposal_id"`
	RefundAmount  int    `json:"refund_amount"`
}

// ProposalConfirmedPayload opens a proposal for voting.
type ProposalConfirmedPayload struct {
	ProposalID string `json:"proposal_id"`
}

// ProposalFlaggedForReviewPayload carries a full proposal dump.
type ProposalFlaggedForReviewPayload struct {
	ProposalID string         `json:"proposal_id"`
	Reason     string         `json:"reason"`
	Dump       map[string]any `json:"dump,omitempty"`
}

// ProposalReviewClearedPayload clears an admin flag with no other effect.
type ProposalReviewClearedPayload struct {
	ProposalID string `json:"proposal_id"`
}

// ProposalVetoedPayload records an admin veto with refund.
type ProposalVetoedPayload struct {
	ProposalID   string `json:"proposal_id"`
	Reason       string `json:"reason"`
	RefundAmount int    `json:"refund_amount"`
}

// ProposalCancelledPayload records author-initiated cancellation.
type ProposalCancelledPayload struct {
	ProposalID string `json:"proposal_id"`
}

// ProposalAmendedPayload records a governor-authored replacement
// interpretation, resetting votes.
type ProposalAmendedPayload struct {
	ProposalID       string         `json:"proposal_id"`
	AmenderID        string         `json:"amender_governor_id"`
	NewInterpretation map[string]any `json:"new_interpretation,omitempty"`
	AmendmentIndex   int            `json:"amendment_index"` // 1..3
}

// ProposalFirstTallySeenPayload marks the minimum-voting-period deferral.
type ProposalFirstTallySeenPayload struct {
	ProposalID string `json:"proposal_id"`
	Round      int    `json:"round"`
}

// TallyResult captures the weighted vote outcome for a proposal.
type TallyResult struct {
	ProposalID      string  `json:"proposal_id"`
	Tier            int     `json:"tier"`
	Threshold       float64 `json:"threshold"`
	WeightedYes     float64 `json:"weighted_yes"`
	TotalWeight     float64 `json:"total_weight"`
	WeightedFraction float64 `json:"weighted_fraction"`
}

// VoteCastPayload records one ballot.
type VoteCastPayload struct {
	ProposalID string  `json:"proposal_id"`
	GovernorID string  `json:"governor_id"`
	TeamID     string  `json:"team_id"`
	Direction  string  `json:"direction"` // "yes" | "no"
	Weight     float64 `json:"weight"`
	BoostSpent bool    `json:"boost_spent"`
}

// RuleEnactedPayload records a rule parameter change taking effect.
type RuleEnactedPayload struct {
	Parameter      string  `json:"parameter"`
	OldValue       float64 `json:"old_value"`
	NewValue       float64 `json:"new_value"`
	SourceProposalID string `json:"source_proposal_id"`
	Round          int     `json:"round"`
}

// RuleRolledBackPayload records a rejected rule mutation.
type RuleRolledBackPayload struct {
	Reason     string `json:"reason"`
	ProposalID string `json:"proposal_id"`
}

// TokenType identifies a governance token kind (spec.md §3).
type TokenType string

const (
	TokenPropose TokenType = "PROPOSE"
	TokenAmend   TokenType = "AMEND"
	TokenBoost   TokenType = "BOOST"
)

// TokenSpentPayload records a token debit.
type TokenSpentPayload struct {
	GovernorID string    `json:"governor_id"`
	TokenType  TokenType `json:"token_type"`
	Amount     int       `json:"amount"`
	Reason     string    `json:"reason"`
}

// TokenRegeneratedPayload records a token credit.
type TokenRegeneratedPayload struct {
	GovernorID string    `json:"governor_id"`
	TokenType  TokenType `json:"token_type"`
	Amount     int       `json:"amount"`
	Reason     string    `json:"reason"`
}

// EffectRegisteredPayload records a durable effect installed by a
// passed proposal.
type EffectRegisteredPayload struct {
	EffectID         string         `json:"effect_id"`
	SourceProposalID string         `json:"source_proposal_id"`
	Kind             string         `json:"kind"`
	HookPoints       []string       `json:"hook_points"`
	Condition        map[string]any `json:"condition,omitempty"`
	Action           map[string]any `json:"action,omitempty"`
	Scope            map[string]any `json:"scope,omitempty"`
	Duration         string         `json:"duration"`
	ActivationRound  int            `json:"activation_round"`
	ExpirationRound  int            `json:"expiration_round,omitempty"`
	Priority         int            `json:"priority"`
}

// EffectExpiredPayload records an effect falling out of the active set.
type EffectExpiredPayload struct {
	EffectID string `json:"effect_id"`
	Round    int    `json:"round"`
}
