// Package sqlite implements C12's Repository against an embedded
// modernc.org/sqlite database (pure Go, no cgo — matches the teacher's
// storage driver choice across every one of its services).
package sqlite

import (
	"database/sql"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hoopsguild/leaguesim/internal/platform/apperrors"
	"github.com/hoopsguild/leaguesim/internal/repository/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store is the sqlite-backed Repository implementation.
type Store struct {
	db *sql.DB
}

// DB returns the underlying *sql.DB, for callers that need to share a
// connection (e.g. the CLI's `ask` subcommand running ad hoc reads).
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// Open opens (creating if absent) a SQLite database at path, applies
// embedded migrations, and self-heals column drift before returning.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "open sqlite db", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, apperrors.Wrap(apperrors.CodeStorage, "ping sqlite db", err)
	}

	store := &Store{db: db}
	if err := store.runMigrations(); err != nil {
		_ = db.Close()
		return nil, apperrors.Wrap(apperrors.CodeStorage, "run migrations", err)
	}
	if err := store.healSchema(); err != nil {
		_ = db.Close()
		return nil, apperrors.Wrap(apperrors.CodeStorage, "heal schema", err)
	}

	return store, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) runMigrations() error {
	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sqlFiles := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		sqlFiles = append(sqlFiles, entry.Name())
	}
	sort.Strings(sqlFiles)

	for _, file := range sqlFiles {
		content, err := fs.ReadFile(migrations.FS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		upSQL := extractUpMigration(string(content))
		if strings.TrimSpace(upSQL) == "" {
			continue
		}
		if _, err := s.db.Exec(upSQL); err != nil {
			if !isAlreadyExistsError(err) {
				return fmt.Errorf("exec migration %s: %w", file, err)
			}
		}
	}

	return nil
}

func extractUpMigration(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, "-- +migrate Down")
	if downIdx == -1 {
		return content[upIdx+len("-- +migrate Up"):]
	}
	return content[upIdx+len("-- +migrate Up") : downIdx]
}

func isAlreadyExistsError(err error) bool {
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "already exists") || strings.Contains(value, "duplicate column name")
}

// declaredColumn is one column the repository expects a table to
// carry, with the default expression used when ALTER TABLE ADD COLUMN
// backfills a drifted (older) database file.
type declaredColumn struct {
	name    string
	ddlType string
	dflt    string
}

// declaredSchema is the set of columns each listed table must have.
// healSchema diffs this against PRAGMA table_info output and adds
// whatever is missing, so a field added to one of these tables needs no
// manual migration (spec.md §4.11 "schema self-healing... prevents the
// forgot-to-migrate bug class"). The schedule, box_scores,
// players_enrollment, governance_events, event_seq and season_archives
// tables are not listed and are not healed.
var declaredSchema = map[string][]declaredColumn{
	"leagues": {
		{"id", "TEXT", ""}, {"name", "TEXT", "''"},
		{"current_season", "INTEGER", "0"}, {"created_at", "INTEGER", "0"},
	},
	"seasons": {
		{"id", "TEXT", ""}, {"league_id", "TEXT", "''"}, {"idx", "INTEGER", "0"},
		{"phase", "TEXT", "'SETUP'"}, {"starting_ruleset_json", "TEXT", "'{}'"},
		{"current_ruleset_json", "TEXT", "'{}'"}, {"team_ids_json", "TEXT", "'[]'"},
		{"lifecycle_json", "TEXT", "'{}'"}, {"current_round", "INTEGER", "0"},
	},
	"teams": {
		{"id", "TEXT", ""}, {"season_id", "TEXT", "''"}, {"name", "TEXT", "''"},
		{"venue_json", "TEXT", "'{}'"}, {"meta_json", "TEXT", "'{}'"},
	},
	"players": {
		{"id", "TEXT", ""}, {"team_id", "TEXT", "''"}, {"season_id", "TEXT", "''"},
		{"roster_slot", "TEXT", "'bench'"}, {"data_json", "TEXT", "'{}'"},
		{"meta_json", "TEXT", "'{}'"},
	},
	"game_results": {
		{"id", "TEXT", ""}, {"season_id", "TEXT", "''"}, {"round", "INTEGER", "0"},
		{"home_team_id", "TEXT", "''"}, {"away_team_id", "TEXT", "''"},
		{"result_json", "TEXT", "'{}'"}, {"presented", "INTEGER", "0"},
		{"created_at", "INTEGER", "0"},
	},
	"reports": {
		{"id", "TEXT", ""}, {"season_id", "TEXT", "''"}, {"round", "INTEGER", "0"},
		{"game_id", "TEXT", "''"}, {"kind", "TEXT", "''"}, {"text", "TEXT", "''"},
		{"created_at", "INTEGER", "0"},
	},
	"effects_registry": {
		{"id", "TEXT", ""}, {"season_id", "TEXT", "''"}, {"source_proposal_id", "TEXT", "''"},
		{"kind", "TEXT", "''"}, {"hook_points_json", "TEXT", "'[]'"},
		{"condition_json", "TEXT", "'{}'"}, {"actions_json", "TEXT", "'[]'"},
		{"scope_json", "TEXT", "'{}'"}, {"duration", "TEXT", "''"},
		{"activation_round", "INTEGER", "0"}, {"expiration_round", "INTEGER", "0"},
		{"priority", "INTEGER", "0"}, {"expired", "INTEGER", "0"},
	},
	"ai_usage_log": {
		{"id", "TEXT", ""}, {"purpose", "TEXT", "''"}, {"model_id", "TEXT", "''"},
		{"input_tokens", "INTEGER", "0"}, {"output_tokens", "INTEGER", "0"},
		{"cache_tokens", "INTEGER", "0"}, {"latency_ms", "INTEGER", "0"},
		{"used_mock", "INTEGER", "0"}, {"generated_at", "INTEGER", "0"},
	},
	"bot_state": {
		{"key", "TEXT", ""}, {"value", "TEXT", "''"},
		{"lease_holder", "TEXT", "''"}, {"lease_expires_at", "INTEGER", "0"},
	},
}

func (s *Store) healSchema() error {
	for table, columns := range declaredSchema {
		existing, err := s.existingColumns(table)
		if err != nil {
			return fmt.Errorf("inspect %s: %w", table, err)
		}
		for _, col := range columns {
			if existing[col.name] {
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s NOT NULL DEFAULT %s", table, col.name, col.ddlType, col.dflt)
			if col.dflt == "" {
				stmt = fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, col.name, col.ddlType)
			}
			if _, err := s.db.Exec(stmt); err != nil && !isAlreadyExistsError(err) {
				return fmt.Errorf("add column %s.%s: %w", table, col.name, err)
			}
		}
	}
	return nil
}

func (s *Store) existingColumns(table string) (map[string]bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var (
			cid        int
			name       string
			ctype      string
			notnull    int
			dflt       sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &primaryKey); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
