package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hoopsguild/leaguesim/internal/govevent"
	"github.com/hoopsguild/leaguesim/internal/platform/apperrors"
	"github.com/hoopsguild/leaguesim/internal/platform/id"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Append assigns the next sequence_number atomically with insertion,
// satisfying govevent.Log (spec.md §4.1 "Each append assigns the next
// sequence_number atomically with insertion").
func (s *Store) Append(ctx context.Context, seasonID string, e govevent.Event) (govevent.Event, error) {
	if err := ctx.Err(); err != nil {
		return govevent.Event{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return govevent.Event{}, apperrors.Wrap(apperrors.CodeStorage, "begin append tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO event_seq (season_id, next_seq) VALUES (?, 1)
		 ON CONFLICT(season_id) DO NOTHING`, seasonID); err != nil {
		return govevent.Event{}, apperrors.Wrap(apperrors.CodeStorage, "init event seq", err)
	}

	var nextSeq uint64
	if err := tx.QueryRowContext(ctx,
		`SELECT next_seq FROM event_seq WHERE season_id = ?`, seasonID).Scan(&nextSeq); err != nil {
		return govevent.Event{}, apperrors.Wrap(apperrors.CodeStorage, "read event seq", err)
	}

	e.Seq = nextSeq
	if e.ID == "" {
		e.ID = id.New()
	}
	if e.SeasonID == "" {
		e.SeasonID = seasonID
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO governance_events (
			season_id, sequence_number, id, event_type, aggregate_id, aggregate_type,
			round_number, governor_id, team_id, timestamp, payload_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		seasonID, int64(e.Seq), e.ID, string(e.Type), e.AggregateID, string(e.AggregateType),
		e.RoundNumber, e.GovernorID, e.TeamID, toMillis(e.Timestamp), string(e.PayloadJSON),
	); err != nil {
		if isConstraintError(err) {
			return govevent.Event{}, apperrors.Wrap(apperrors.CodeEventConflict, "event sequence conflict", err)
		}
		return govevent.Event{}, apperrors.Wrap(apperrors.CodeStorage, "insert event", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE event_seq SET next_seq = ? WHERE season_id = ?`, nextSeq+1, seasonID); err != nil {
		return govevent.Event{}, apperrors.Wrap(apperrors.CodeStorage, "advance event seq", err)
	}

	if err := tx.Commit(); err != nil {
		return govevent.Event{}, apperrors.Wrap(apperrors.CodeStorage, "commit append tx", err)
	}
	return e, nil
}

// isConstraintError reports whether err is a sqlite constraint
// violation, which can only happen here if two writers raced past the
// season writer lock the governance kernel is supposed to hold
// exclusively (grounded on the teacher's own isConstraintError, same
// sqlite3 error code set).
func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT ||
		code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// ByType returns events of the given type for a season, in sequence order.
func (s *Store) ByType(ctx context.Context, seasonID string, t govevent.Type) ([]govevent.Event, error) {
	rows, err := s.db.QueryContext(ctx, eventSelectColumns+` WHERE season_id = ? AND event_type = ? ORDER BY sequence_number ASC`,
		seasonID, string(t))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "query events by type", err)
	}
	return scanEvents(rows)
}

// ByAggregate returns events for a specific aggregate id, in sequence order.
func (s *Store) ByAggregate(ctx context.Context, seasonID, aggregateID string) ([]govevent.Event, error) {
	rows, err := s.db.QueryContext(ctx, eventSelectColumns+` WHERE season_id = ? AND aggregate_id = ? ORDER BY sequence_number ASC`,
		seasonID, aggregateID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "query events by aggregate", err)
	}
	return scanEvents(rows)
}

// Range returns events of the given type within [fromSeq, toSeq]
// (inclusive), in sequence order. toSeq == 0 means "to the end".
func (s *Store) Range(ctx context.Context, seasonID string, t govevent.Type, fromSeq, toSeq uint64) ([]govevent.Event, error) {
	query := eventSelectColumns + ` WHERE season_id = ? AND event_type = ? AND sequence_number >= ?`
	args := []any{seasonID, string(t), int64(fromSeq)}
	if toSeq > 0 {
		query += ` AND sequence_number <= ?`
		args = append(args, int64(toSeq))
	}
	query += ` ORDER BY sequence_number ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "query event range", err)
	}
	return scanEvents(rows)
}

// Tail returns every event appended after afterSeq, in sequence order,
// regardless of type.
func (s *Store) Tail(ctx context.Context, seasonID string, afterSeq uint64) ([]govevent.Event, error) {
	rows, err := s.db.QueryContext(ctx, eventSelectColumns+` WHERE season_id = ? AND sequence_number > ? ORDER BY sequence_number ASC`,
		seasonID, int64(afterSeq))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "query event tail", err)
	}
	return scanEvents(rows)
}

const eventSelectColumns = `SELECT
	season_id, sequence_number, id, event_type, aggregate_id, aggregate_type,
	round_number, governor_id, team_id, timestamp, payload_json
	FROM governance_events`

func scanEvents(rows *sql.Rows) ([]govevent.Event, error) {
	defer rows.Close()

	var events []govevent.Event
	for rows.Next() {
		var (
			e         govevent.Event
			seq       int64
			eventType string
			aggType   string
			tsMillis  int64
			payload   string
		)
		if err := rows.Scan(&e.SeasonID, &seq, &e.ID, &eventType, &e.AggregateID, &aggType,
			&e.RoundNumber, &e.GovernorID, &e.TeamID, &tsMillis, &payload); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorage, "scan event row", err)
		}
		e.Seq = uint64(seq)
		e.Type = govevent.Type(eventType)
		e.AggregateType = govevent.AggregateType(aggType)
		e.Timestamp = fromMillis(tsMillis)
		e.PayloadJSON = []byte(payload)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "iterate events", err)
	}
	return events, nil
}
