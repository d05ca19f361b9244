package aigateway

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/hoopsguild/leaguesim/internal/platform/apperrors"
)

// RetryPolicy bounds how many times a transient provider failure is
// retried and paces retries with a token-bucket limiter (spec.md §4.6
// "Transient failures retry with backoff up to a small bounded
// count").
type RetryPolicy struct {
	MaxAttempts int
	Limiter     *rate.Limiter
}

// DefaultRetryPolicy allows 3 attempts, spaced by a limiter that
// refills one token every 500ms with a burst of 1 — each retry waits
// for its own token, giving simple linear pacing without a sleep loop.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Limiter:     rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}
}

// transientError marks a Provider error as worth retrying; any other
// error from Invoke is treated as permanent.
type transientError struct{ cause error }

func (e transientError) Error() string { return e.cause.Error() }
func (e transientError) Unwrap() error { return e.cause }

// Transient wraps err so the gateway's retry loop treats it as
// recoverable instead of surfacing immediately.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return transientError{cause: err}
}

func (g *Gateway) invokeWithRetry(ctx context.Context, req Request) (text, modelID string, inTok, outTok int, err error) {
	attempts := g.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 && g.retry.Limiter != nil {
			if err := g.retry.Limiter.Wait(ctx); err != nil {
				return "", "", 0, 0, apperrors.Wrap(apperrors.CodeAIGatewayTransient, "retry limiter wait", err)
			}
		}
		text, modelID, inTok, outTok, lastErr = g.provider.Invoke(ctx, req)
		if lastErr == nil {
			return text, modelID, inTok, outTok, nil
		}
		if _, ok := lastErr.(transientError); !ok {
			return "", "", 0, 0, apperrors.Wrap(apperrors.CodeAIGatewayPermanent, "ai gateway provider call failed", lastErr)
		}
	}
	return "", "", 0, 0, apperrors.Wrap(apperrors.CodeAIGatewayTransient, "ai gateway provider call exhausted retries", lastErr)
}
