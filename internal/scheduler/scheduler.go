// Package scheduler implements C11: the periodic tick that drives
// every season forward (spec.md §4.10). It owns nothing about
// simulation or governance itself — it just decides, on each tick,
// which seasons are due for a round and dispatches to the Orchestrator
// and Presenter, guarded by reentrancy and a durable single-instance
// lease.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hoopsguild/leaguesim/internal/league"
	"github.com/hoopsguild/leaguesim/internal/league/season"
	"github.com/hoopsguild/leaguesim/internal/orchestrator"
	"github.com/hoopsguild/leaguesim/internal/presenter"
	"github.com/hoopsguild/leaguesim/internal/repository"
)

// Pace maps to the cron interval spec.md §6 defines.
type Pace string

const (
	PaceFast   Pace = "fast"
	PaceNormal Pace = "normal"
	PaceSlow   Pace = "slow"
	PaceManual Pace = "manual"
)

// cronSpec returns the robfig/cron spec for a pace, or "" for manual
// (no ticking; tick_round must be invoked explicitly, e.g. via the
// `step` CLI) (spec.md §4.10 "pace-to-interval mapping: fast=1m,
// normal=5m, slow=15m, manual=off").
func (p Pace) cronSpec() string {
	switch p {
	case PaceFast:
		return "@every 1m"
	case PaceSlow:
		return "@every 15m"
	case PaceManual:
		return ""
	default:
		return "@every 5m"
	}
}

// Config controls scheduler pacing and its durable lease.
type Config struct {
	Pace        Pace
	LeaseKey    string        // bot_state row key guarding single-instance ticking
	LeaseHolder string        // this process's identity, e.g. hostname:pid
	LeaseTTL    time.Duration
}

// DefaultConfig matches spec.md §6's stated defaults.
func DefaultConfig() Config {
	return Config{Pace: PaceNormal, LeaseKey: "scheduler.lease", LeaseTTL: 2 * time.Minute}
}

// SeasonLister is the narrow slice of repository.Repository the
// scheduler needs to enumerate seasons across every league on a tick.
type SeasonLister interface {
	ListLeagues(ctx context.Context) ([]league.League, error)
	ListSeasonsByLeague(ctx context.Context, leagueID string) ([]season.Season, error)
}

// LeaseRepository is the narrow slice backing the durable
// single-instance guard (spec.md §4.10 "a key in a durable bot_state
// table, acquired with a lease").
type LeaseRepository interface {
	AcquireLease(ctx context.Context, key, holder string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, key, holder string) error
}

var (
	_ SeasonLister    = repository.Repository(nil)
	_ LeaseRepository = repository.Repository(nil)
)

// Scheduler fires tick_round on a cron-like interval, serializing
// round execution across every season this process is responsible
// for (spec.md §4.10).
type Scheduler struct {
	Orchestrator      *orchestrator.Orchestrator
	Presenter         *presenter.Presenter
	PresentationState *presenter.State
	Repo              interface {
		SeasonLister
		LeaseRepository
		presenter.RecoveryRepository
	}
	Config Config
	Logger *slog.Logger

	cron *cron.Cron

	mu      sync.Mutex
	ticking bool // reentrancy guard: skip a tick if the previous one is still in flight

	leaseMu   sync.Mutex
	holding   bool
	stopLease chan struct{}
}

// New constructs a Scheduler with its required collaborators.
func New(orch *orchestrator.Orchestrator, pres *presenter.Presenter, state *presenter.State, repo interface {
	SeasonLister
	LeaseRepository
	presenter.RecoveryRepository
}, cfg Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LeaseKey == "" {
		cfg.LeaseKey = DefaultConfig().LeaseKey
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = DefaultConfig().LeaseTTL
	}
	return &Scheduler{
		Orchestrator:      orch,
		Presenter:         pres,
		PresentationState: state,
		Repo:              repo,
		Config:            cfg,
		Logger:            logger,
	}
}

// Start acquires the durable single-instance lease, runs startup
// recovery for every known season, then begins cron ticking (no-op for
// PaceManual — ticks must be driven externally). Start blocks only
// long enough to perform the initial lease acquisition and recovery
// pass; ticking itself runs in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	ok, err := s.Repo.AcquireLease(ctx, s.Config.LeaseKey, s.Config.LeaseHolder, s.Config.LeaseTTL)
	if err != nil {
		return err
	}
	if !ok {
		s.Logger.Warn("scheduler lease held by another instance, not starting ticker", "key", s.Config.LeaseKey)
		return nil
	}
	s.leaseMu.Lock()
	s.holding = true
	s.stopLease = make(chan struct{})
	s.leaseMu.Unlock()
	go s.renewLease(ctx)

	s.recoverAll(ctx)

	spec := s.Config.Pace.cronSpec()
	if spec == "" {
		s.Logger.Info("scheduler started in manual pace, no automatic ticking")
		return nil
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(spec, func() { s.Tick(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	s.Logger.Info("scheduler started", "pace", s.Config.Pace, "spec", spec)
	return nil
}

// Stop halts cron ticking and releases the lease.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cron != nil {
		stopCtx := s.cron.Stop()
		<-stopCtx.Done()
	}

	s.leaseMu.Lock()
	if s.stopLease != nil {
		close(s.stopLease)
		s.stopLease = nil
	}
	holding := s.holding
	s.holding = false
	s.leaseMu.Unlock()

	if holding {
		if err := s.Repo.ReleaseLease(ctx, s.Config.LeaseKey, s.Config.LeaseHolder); err != nil {
			return err
		}
	}
	return nil
}

// renewLease re-acquires the lease at half its TTL for as long as the
// scheduler is running, so a long-lived process never loses the
// single-instance guard to its own TTL expiring.
func (s *Scheduler) renewLease(ctx context.Context) {
	ticker := time.NewTicker(s.Config.LeaseTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopLease:
			return
		case <-ticker.C:
			if _, err := s.Repo.AcquireLease(ctx, s.Config.LeaseKey, s.Config.LeaseHolder, s.Config.LeaseTTL); err != nil {
				s.Logger.Error("failed to renew scheduler lease", "error", err)
			}
		}
	}
}

func (s *Scheduler) recoverAll(ctx context.Context) {
	seasons, err := s.allSeasons(ctx)
	if err != nil {
		s.Logger.Error("scheduler recovery: failed to list seasons", "error", err)
		return
	}
	for _, se := range seasons {
		if err := presenter.Recover(ctx, s.Repo, se.ID, s.Logger); err != nil {
			s.Logger.Error("scheduler recovery failed for season", "season_id", se.ID, "error", err)
		}
	}
}

func (s *Scheduler) allSeasons(ctx context.Context) ([]season.Season, error) {
	leagues, err := s.Repo.ListLeagues(ctx)
	if err != nil {
		return nil, err
	}
	var out []season.Season
	for _, l := range leagues {
		seasons, err := s.Repo.ListSeasonsByLeague(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, seasons...)
	}
	return out, nil
}

// Tick is tick_round (spec.md §4.10): the reentrancy guard, then one
// pass over every season, dispatching a round (or a governance-only
// tally for a COMPLETE season with proposals still pending) to each
// one due for it.
func (s *Scheduler) Tick(ctx context.Context) {
	if s.PresentationState != nil && s.PresentationState.IsActive() {
		s.Logger.Debug("tick skipped: presentation active")
		return
	}

	s.mu.Lock()
	if s.ticking {
		s.mu.Unlock()
		s.Logger.Debug("tick skipped: previous tick still running")
		return
	}
	s.ticking = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.ticking = false
		s.mu.Unlock()
	}()

	seasons, err := s.allSeasons(ctx)
	if err != nil {
		s.Logger.Error("tick failed to list seasons", "error", err)
		return
	}

	for _, se := range seasons {
		s.tickSeason(ctx, se)
	}
}

func (s *Scheduler) tickSeason(ctx context.Context, se season.Season) {
	if se.Phase == season.PhaseComplete {
		pending, err := s.Orchestrator.HasPendingGovernance(ctx, se.ID)
		if err != nil {
			s.Logger.Error("tick: failed to check pending governance", "season_id", se.ID, "error", err)
			return
		}
		if !pending {
			return
		}
		if err := s.Orchestrator.TallyGovernanceOnly(ctx, se.ID); err != nil {
			s.Logger.Error("tick: governance-only tally failed", "season_id", se.ID, "error", err)
		}
		return
	}
	if se.Phase == season.PhaseSetup {
		return
	}

	summary, err := s.Orchestrator.RunRound(ctx, se.ID)
	if err != nil {
		s.Logger.Error("tick: round failed", "season_id", se.ID, "error", err)
		return
	}

	if s.Presenter == nil || s.Orchestrator.Mode != orchestrator.ModeReplay || len(summary.Games) == 0 {
		return
	}
	go func() {
		presentCtx := context.Background()
		if err := s.Presenter.Present(presentCtx, summary.SeasonID, summary.Round, summary.Games); err != nil {
			s.Logger.Error("presentation failed", "season_id", summary.SeasonID, "round", summary.Round, "error", err)
		}
	}()
}
