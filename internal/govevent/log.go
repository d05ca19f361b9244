package govevent

import (
	"context"
	"encoding/json"

	"github.com/hoopsguild/leaguesim/internal/platform/apperrors"
)

// ConflictError is returned by Append only on a sequence collision,
// which should be impossible under the season writer lock (spec.md §4.1).
type ConflictError struct {
	SeasonID string
	Seq      uint64
}

func (e ConflictError) Error() string {
	return "event log conflict for season " + e.SeasonID
}

// Log is the append-only, replayable event log contract (C1). A Log
// implementation is single-producer per season: callers hold the
// season's writer lock for the duration of an Append.
type Log interface {
	// Append assigns the next sequence_number atomically with
	// insertion and persists the event.
	Append(ctx context.Context, seasonID string, e Event) (Event, error)

	// ByType returns events of the given type for a season, in
	// sequence order.
	ByType(ctx context.Context, seasonID string, t Type) ([]Event, error)

	// ByAggregate returns events for a specific aggregate id, in
	// sequence order.
	ByAggregate(ctx context.Context, seasonID string, aggregateID string) ([]Event, error)

	// Range returns events of the given type within [fromSeq, toSeq]
	// (inclusive), in sequence order. toSeq == 0 means "to the end".
	Range(ctx context.Context, seasonID string, t Type, fromSeq, toSeq uint64) ([]Event, error)

	// Tail returns every event appended after afterSeq, in sequence
	// order, regardless of type.
	Tail(ctx context.Context, seasonID string, afterSeq uint64) ([]Event, error)
}

// EncodePayload marshals a typed payload into an Event's PayloadJSON.
func EncodePayload(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "encode event payload", err)
	}
	return b, nil
}

// DecodePayload unmarshals an Event's PayloadJSON into v. A map target
// receives every field of the payload; a typed struct receives only the
// fields it declares and ignores the rest. The Event's PayloadJSON is
// not modified, so fields v does not declare remain in the stored
// payload.
func DecodePayload(payload []byte, v any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, "decode event payload", err)
	}
	return nil
}
