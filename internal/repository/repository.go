// Package repository implements C12: the transactional facade every
// other component uses to reach durable storage. It is the only
// package that knows about table layout; callers operate on domain
// value types (spec.md §4.11, §7 "Cyclic references... resolved via
// repository lookups at load time, then the engine operates on value
// types").
package repository

import (
	"context"
	"time"

	"github.com/hoopsguild/leaguesim/internal/aigateway"
	"github.com/hoopsguild/leaguesim/internal/effect"
	"github.com/hoopsguild/leaguesim/internal/govevent"
	"github.com/hoopsguild/leaguesim/internal/league"
	"github.com/hoopsguild/leaguesim/internal/league/schedule"
	"github.com/hoopsguild/leaguesim/internal/league/season"
	"github.com/hoopsguild/leaguesim/internal/league/team"
	"github.com/hoopsguild/leaguesim/internal/metastore"
	"github.com/hoopsguild/leaguesim/internal/simulation"
)

// GameResultRecord wraps a pure simulation.GameResult with the
// identifying and presentation-state columns the games table carries
// (spec.md §4.8 "presented flag", §4.11 "schedule order").
type GameResultRecord struct {
	ID         string
	SeasonID   string
	Round      int
	HomeTeamID string
	AwayTeamID string
	Result     simulation.GameResult
	Presented  bool
	CreatedAt  time.Time
}

// ReportKind distinguishes the AI Gateway purpose a stored report was
// generated for (spec.md §4.6 purposes report_sim/report_gov/report_private).
type ReportKind string

const (
	ReportSim     ReportKind = "report_sim"
	ReportGov     ReportKind = "report_gov"
	ReportPrivate ReportKind = "report_private"
)

// ReportRecord is one generated narrative persisted in Phase C.
type ReportRecord struct {
	ID        string
	SeasonID  string
	Round     int
	GameID    string // empty for governance/season-level reports
	Kind      ReportKind
	Text      string
	CreatedAt time.Time
}

// EnrollmentRecord binds a governor identity to a team within a
// season (players_enrollment table).
type EnrollmentRecord struct {
	SeasonID   string
	GovernorID string
	TeamID     string
	Active     bool
	JoinedAt   time.Time
}

// SeasonArchiveRecord is a point-in-time snapshot taken when a season
// completes, kept for historical "ask" queries across seasons.
type SeasonArchiveRecord struct {
	SeasonID    string
	ArchivedAt  time.Time
	StandingsJSON []byte
	SummaryText string
}

// EventLog is the governance event log contract, re-exported so
// callers can depend on repository.Repository without also importing
// govevent for the embedded method set.
type EventLog = govevent.Log

// Repository is the full transactional facade over durable storage.
// A Repository is also a govevent.Log and an aigateway.UsageSink,
// since both are just narrower views over the same store.
type Repository interface {
	EventLog

	SaveLeague(ctx context.Context, l league.League) error
	GetLeague(ctx context.Context, id string) (league.League, error)
	ListLeagues(ctx context.Context) ([]league.League, error)

	SaveSeason(ctx context.Context, s season.Season) error
	GetSeason(ctx context.Context, id string) (season.Season, error)
	ListSeasonsByLeague(ctx context.Context, leagueID string) ([]season.Season, error)

	SaveTeam(ctx context.Context, t team.Team) error
	GetTeam(ctx context.Context, id string) (team.Team, error)
	ListTeamsBySeason(ctx context.Context, seasonID string) ([]team.Team, error)

	SaveSchedule(ctx context.Context, sched schedule.Schedule) error
	GetSchedule(ctx context.Context, seasonID string) (schedule.Schedule, error)

	SaveGameResult(ctx context.Context, rec GameResultRecord) error
	ListGameResults(ctx context.Context, seasonID string, round int) ([]GameResultRecord, error)
	MarkGamePresented(ctx context.Context, gameID string) error
	ListUnpresentedGames(ctx context.Context, seasonID string) ([]GameResultRecord, error)

	SaveReport(ctx context.Context, rec ReportRecord) error
	ListReports(ctx context.Context, seasonID string, round int) ([]ReportRecord, error)

	SaveEffect(ctx context.Context, seasonID string, e effect.Effect) error
	ListActiveEffects(ctx context.Context, seasonID string) ([]effect.Effect, error)
	ExpireEffect(ctx context.Context, seasonID, effectID string) error

	// LoadMetaBucket and SaveMetaBucket back the Meta Store's
	// load-at-round-start / flush-at-round-end durable half (spec.md
	// §4.3, §7 "loaded in Phase A and flushed in Phase C").
	LoadMetaBucket(ctx context.Context, key metastore.Key) (metastore.Bucket, error)
	SaveMetaBucket(ctx context.Context, key metastore.Key, bucket metastore.Bucket) error

	// Record satisfies aigateway.UsageSink.
	Record(ctx context.Context, rec aigateway.UsageRecord) error

	EnrollPlayer(ctx context.Context, rec EnrollmentRecord) error
	ListEnrollments(ctx context.Context, seasonID string) ([]EnrollmentRecord, error)

	ArchiveSeason(ctx context.Context, rec SeasonArchiveRecord) error
	ListSeasonArchives(ctx context.Context, seasonID string) ([]SeasonArchiveRecord, error)

	// AcquireLease implements the durable distributed-single-instance
	// guard bot_state is for (spec.md §4.10 "a key in a durable
	// bot_state table, acquired with a lease"). It returns true iff the
	// caller now holds the lease.
	AcquireLease(ctx context.Context, key, holder string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, key, holder string) error
	GetBotState(ctx context.Context, key string) (string, bool, error)
	SetBotState(ctx context.Context, key, value string) error

	Close() error
}
