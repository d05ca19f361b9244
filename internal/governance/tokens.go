package governance

import (
	"context"

	"github.com/hoopsguild/leaguesim/internal/govevent"
	"github.com/hoopsguild/leaguesim/internal/platform/apperrors"
)

// Balance computes a governor's current token balance of tokenType by
// replaying every token.spent and token.regenerated event for that
// governor (spec.md §3 "Token Balance (derived). Not stored."). A
// cached running total may be layered on top by the repository for
// performance, but this function is the only authoritative source.
func Balance(ctx context.Context, log govevent.Log, seasonID, governorID string, tokenType govevent.TokenType) (int, error) {
	spent, err := log.ByType(ctx, seasonID, govevent.TypeTokenSpent)
	if err != nil {
		return 0, err
	}
	regenerated, err := log.ByType(ctx, seasonID, govevent.TypeTokenRegenerated)
	if err != nil {
		return 0, err
	}

	balance := 0
	for _, e := range regenerated {
		var payload govevent.TokenRegeneratedPayload
		if err := govevent.DecodePayload(e.PayloadJSON, &payload); err != nil {
			return 0, err
		}
		if payload.GovernorID == governorID && payload.TokenType == tokenType {
			balance += payload.Amount
		}
	}
	for _, e := range spent {
		var payload govevent.TokenSpentPayload
		if err := govevent.DecodePayload(e.PayloadJSON, &payload); err != nil {
			return 0, err
		}
		if payload.GovernorID == governorID && payload.TokenType == tokenType {
			balance -= payload.Amount
		}
	}
	return balance, nil
}

// Spend appends a token.spent event for governorID, after verifying
// sufficient balance. The caller must hold the season's writer lock so
// the balance check and the append are atomic (spec.md §3 "monotonic
// non-negative invariant enforced at spend time").
func Spend(ctx context.Context, log govevent.Log, seasonID, governorID string, tokenType govevent.TokenType, amount int, reason string, round int) error {
	balance, err := Balance(ctx, log, seasonID, governorID, tokenType)
	if err != nil {
		return err
	}
	if balance < amount {
		return apperrors.WithMetadata(apperrors.CodeTokenInsufficient,
			"insufficient token balance",
			map[string]string{"governor_id": governorID, "token_type": string(tokenType)})
	}
	payload := govevent.TokenSpentPayload{GovernorID: governorID, TokenType: tokenType, Amount: amount, Reason: reason}
	body, err := govevent.EncodePayload(payload)
	if err != nil {
		return err
	}
	_, err = log.Append(ctx, seasonID, govevent.Event{
		Type:          govevent.TypeTokenSpent,
		AggregateID:   governorID,
		AggregateType: govevent.AggregateToken,
		GovernorID:    governorID,
		RoundNumber:   round,
		PayloadJSON:   body,
	})
	return err
}

// Regenerate appends a token.regenerated event, called once per
// governor per governance window (spec.md §4.5 "Regenerate per
// governance window").
func Regenerate(ctx context.Context, log govevent.Log, seasonID, governorID string, tokenType govevent.TokenType, amount int, round int) error {
	payload := govevent.TokenRegeneratedPayload{GovernorID: governorID, TokenType: tokenType, Amount: amount, Reason: "window_regeneration"}
	body, err := govevent.EncodePayload(payload)
	if err != nil {
		return err
	}
	_, err = log.Append(ctx, seasonID, govevent.Event{
		Type:          govevent.TypeTokenRegenerated,
		AggregateID:   governorID,
		AggregateType: govevent.AggregateToken,
		GovernorID:    governorID,
		RoundNumber:   round,
		PayloadJSON:   body,
	})
	return err
}

// Refund spends a negative amount by issuing a regeneration, used for
// vetoed/expired proposal refunds (spec.md §4.5). Refunds are recorded
// as regenerations rather than negative spends so Balance's
// non-negative invariant at spend time is never at risk of being
// bypassed by a refund racing a concurrent spend.
func Refund(ctx context.Context, log govevent.Log, seasonID, governorID string, tokenType govevent.TokenType, amount int, round int) error {
	payload := govevent.TokenRegeneratedPayload{GovernorID: governorID, TokenType: tokenType, Amount: amount, Reason: "refund"}
	body, err := govevent.EncodePayload(payload)
	if err != nil {
		return err
	}
	_, err = log.Append(ctx, seasonID, govevent.Event{
		Type:          govevent.TypeTokenRegenerated,
		AggregateID:   governorID,
		AggregateType: govevent.AggregateToken,
		GovernorID:    governorID,
		RoundNumber:   round,
		PayloadJSON:   body,
	})
	return err
}
