package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoopsguild/leaguesim/internal/aigateway"
	"github.com/hoopsguild/leaguesim/internal/effect"
	"github.com/hoopsguild/leaguesim/internal/eventbus"
	"github.com/hoopsguild/leaguesim/internal/govevent"
	"github.com/hoopsguild/leaguesim/internal/league"
	"github.com/hoopsguild/leaguesim/internal/league/schedule"
	"github.com/hoopsguild/leaguesim/internal/league/season"
	"github.com/hoopsguild/leaguesim/internal/league/team"
	"github.com/hoopsguild/leaguesim/internal/metastore"
	"github.com/hoopsguild/leaguesim/internal/orchestrator"
	"github.com/hoopsguild/leaguesim/internal/presenter"
	"github.com/hoopsguild/leaguesim/internal/repository"
)

// fakeRepo is a minimal repository.Repository stand-in. Only the
// methods the scheduler's Tick/Start/Stop paths actually reach (the
// ones exercised by these tests, where the season list is empty) carry
// real behavior; everything else is a stub that satisfies the
// interface for compilation.
type fakeRepo struct {
	leagues []league.League
	leases  map[string]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{leases: map[string]string{}}
}

func (f *fakeRepo) Append(ctx context.Context, seasonID string, e govevent.Event) (govevent.Event, error) {
	return govevent.Event{}, nil
}
func (f *fakeRepo) ByType(ctx context.Context, seasonID string, t govevent.Type) ([]govevent.Event, error) {
	return nil, nil
}
func (f *fakeRepo) ByAggregate(ctx context.Context, seasonID, aggregateID string) ([]govevent.Event, error) {
	return nil, nil
}
func (f *fakeRepo) Range(ctx context.Context, seasonID string, t govevent.Type, fromSeq, toSeq uint64) ([]govevent.Event, error) {
	return nil, nil
}
func (f *fakeRepo) Tail(ctx context.Context, seasonID string, afterSeq uint64) ([]govevent.Event, error) {
	return nil, nil
}

func (f *fakeRepo) SaveLeague(ctx context.Context, l league.League) error { return nil }
func (f *fakeRepo) GetLeague(ctx context.Context, id string) (league.League, error) {
	return league.League{}, nil
}
func (f *fakeRepo) ListLeagues(ctx context.Context) ([]league.League, error) { return f.leagues, nil }

func (f *fakeRepo) SaveSeason(ctx context.Context, s season.Season) error { return nil }
func (f *fakeRepo) GetSeason(ctx context.Context, id string) (season.Season, error) {
	return season.Season{}, nil
}
func (f *fakeRepo) ListSeasonsByLeague(ctx context.Context, leagueID string) ([]season.Season, error) {
	return nil, nil
}

func (f *fakeRepo) SaveTeam(ctx context.Context, t team.Team) error { return nil }
func (f *fakeRepo) GetTeam(ctx context.Context, id string) (team.Team, error) {
	return team.Team{}, nil
}
func (f *fakeRepo) ListTeamsBySeason(ctx context.Context, seasonID string) ([]team.Team, error) {
	return nil, nil
}

func (f *fakeRepo) SaveSchedule(ctx context.Context, sched schedule.Schedule) error { return nil }
func (f *fakeRepo) GetSchedule(ctx context.Context, seasonID string) (schedule.Schedule, error) {
	return schedule.Schedule{}, nil
}

func (f *fakeRepo) SaveGameResult(ctx context.Context, rec repository.GameResultRecord) error {
	return nil
}
func (f *fakeRepo) ListGameResults(ctx context.Context, seasonID string, round int) ([]repository.GameResultRecord, error) {
	return nil, nil
}
func (f *fakeRepo) MarkGamePresented(ctx context.Context, gameID string) error { return nil }
func (f *fakeRepo) ListUnpresentedGames(ctx context.Context, seasonID string) ([]repository.GameResultRecord, error) {
	return nil, nil
}

func (f *fakeRepo) SaveReport(ctx context.Context, rec repository.ReportRecord) error { return nil }
func (f *fakeRepo) ListReports(ctx context.Context, seasonID string, round int) ([]repository.ReportRecord, error) {
	return nil, nil
}

func (f *fakeRepo) SaveEffect(ctx context.Context, seasonID string, e effect.Effect) error {
	return nil
}
func (f *fakeRepo) ListActiveEffects(ctx context.Context, seasonID string) ([]effect.Effect, error) {
	return nil, nil
}
func (f *fakeRepo) ExpireEffect(ctx context.Context, seasonID, effectID string) error { return nil }

func (f *fakeRepo) LoadMetaBucket(ctx context.Context, key metastore.Key) (metastore.Bucket, error) {
	return nil, nil
}
func (f *fakeRepo) SaveMetaBucket(ctx context.Context, key metastore.Key, bucket metastore.Bucket) error {
	return nil
}

func (f *fakeRepo) Record(ctx context.Context, rec aigateway.UsageRecord) error { return nil }

func (f *fakeRepo) EnrollPlayer(ctx context.Context, rec repository.EnrollmentRecord) error {
	return nil
}
func (f *fakeRepo) ListEnrollments(ctx context.Context, seasonID string) ([]repository.EnrollmentRecord, error) {
	return nil, nil
}

func (f *fakeRepo) ArchiveSeason(ctx context.Context, rec repository.SeasonArchiveRecord) error {
	return nil
}
func (f *fakeRepo) ListSeasonArchives(ctx context.Context, seasonID string) ([]repository.SeasonArchiveRecord, error) {
	return nil, nil
}

func (f *fakeRepo) AcquireLease(ctx context.Context, key, holder string, ttl time.Duration) (bool, error) {
	if existing, ok := f.leases[key]; ok && existing != holder {
		return false, nil
	}
	f.leases[key] = holder
	return true, nil
}
func (f *fakeRepo) ReleaseLease(ctx context.Context, key, holder string) error {
	if f.leases[key] == holder {
		delete(f.leases, key)
	}
	return nil
}
func (f *fakeRepo) GetBotState(ctx context.Context, key string) (string, bool, error) {
	return "", false, nil
}
func (f *fakeRepo) SetBotState(ctx context.Context, key, value string) error { return nil }

func (f *fakeRepo) Close() error { return nil }

var _ repository.Repository = (*fakeRepo)(nil)

func newTestScheduler(t *testing.T, repo *fakeRepo, pace Pace) *Scheduler {
	t.Helper()
	orch := orchestrator.New(repo, eventbus.New(), aigateway.New(aigateway.WithDisabled(true)), nil)
	pres := presenter.New(eventbus.New(), repo, presenter.NewState(), presenter.DefaultConfig(), nil)
	return New(orch, pres, pres.State, repo, Config{Pace: pace, LeaseKey: "test.lease", LeaseHolder: "holder-1", LeaseTTL: time.Hour}, nil)
}

func TestPaceCronSpec(t *testing.T) {
	assert.Equal(t, "@every 1m", PaceFast.cronSpec())
	assert.Equal(t, "@every 5m", PaceNormal.cronSpec())
	assert.Equal(t, "@every 15m", PaceSlow.cronSpec())
	assert.Equal(t, "", PaceManual.cronSpec())
}

func TestStartAcquiresLeaseAndStopReleasesIt(t *testing.T) {
	repo := newFakeRepo()
	s := newTestScheduler(t, repo, PaceManual)

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, "holder-1", repo.leases["test.lease"])

	require.NoError(t, s.Stop(context.Background()))
	_, held := repo.leases["test.lease"]
	assert.False(t, held)
}

func TestStartSkipsWhenLeaseHeldElsewhere(t *testing.T) {
	repo := newFakeRepo()
	repo.leases["test.lease"] = "other-holder"
	s := newTestScheduler(t, repo, PaceManual)

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, "other-holder", repo.leases["test.lease"])
}

func TestTickSkippedWhilePresentationActive(t *testing.T) {
	repo := newFakeRepo()
	s := newTestScheduler(t, repo, PaceManual)
	cancel, ok := s.PresentationState.TryActivate()
	require.True(t, ok)
	defer func() { _ = cancel; s.PresentationState.Deactivate() }()

	s.Tick(context.Background()) // should return immediately without touching ticking state
	assert.False(t, s.ticking)
}

func TestTickReentrancyGuard(t *testing.T) {
	repo := newFakeRepo()
	s := newTestScheduler(t, repo, PaceManual)

	s.mu.Lock()
	s.ticking = true
	s.mu.Unlock()

	s.Tick(context.Background())

	s.mu.Lock()
	stillTicking := s.ticking
	s.mu.Unlock()
	assert.True(t, stillTicking) // untouched: Tick returned early, didn't clear a flag it didn't set
}

func TestTickWithNoSeasonsIsNoop(t *testing.T) {
	repo := newFakeRepo()
	s := newTestScheduler(t, repo, PaceManual)
	s.Tick(context.Background())
	assert.False(t, s.ticking)
}
