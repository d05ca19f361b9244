// Package server wires and runs the `serve` subcommand: scheduler,
// presenter, and event bus over a persistent SQLite store, blocking
// until the process receives a shutdown signal (spec.md §6 "serve:
// boots scheduler + presenter + event bus, blocks").
package server

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/hoopsguild/leaguesim/internal/aigateway"
	"github.com/hoopsguild/leaguesim/internal/eventbus"
	"github.com/hoopsguild/leaguesim/internal/orchestrator"
	"github.com/hoopsguild/leaguesim/internal/platform/logging"
	"github.com/hoopsguild/leaguesim/internal/platform/otelboot"
	"github.com/hoopsguild/leaguesim/internal/presenter"
	"github.com/hoopsguild/leaguesim/internal/repository/sqlite"
	"github.com/hoopsguild/leaguesim/internal/scheduler"
)

// Config holds the serve command's configuration.
type Config struct {
	DBPath               string        `env:"LEAGUESIM_DB_PATH" envDefault:"leaguesim.db"`
	LogLevel             string        `env:"LEAGUESIM_LOG_LEVEL" envDefault:"info"`
	Pace                 string        `env:"LEAGUESIM_PACE" envDefault:"normal"`
	QuarterReplaySeconds int           `env:"LEAGUESIM_QUARTER_REPLAY_SECONDS" envDefault:"300"`
	GameIntervalSeconds  int           `env:"LEAGUESIM_GAME_INTERVAL_SECONDS" envDefault:"30"`
	LeaseKey             string        `env:"LEAGUESIM_LEASE_KEY" envDefault:"scheduler.lease"`
	LeaseTTL             time.Duration `env:"LEAGUESIM_LEASE_TTL" envDefault:"2m"`
	AIDisabled           bool          `env:"LEAGUESIM_AI_DISABLED" envDefault:"true"`
	Instant              bool          `env:"LEAGUESIM_INSTANT_PRESENTATION" envDefault:"false"`
}

// ParseConfig loads Config from the environment, then lets flags
// override (the teacher's internal/cmd/auth.go composition).
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the SQLite database file")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.Pace, "pace", cfg.Pace, "scheduler pace (fast, normal, slow, manual)")
	fs.BoolVar(&cfg.Instant, "instant", cfg.Instant, "persist games immediately visible, skip replay drip")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run boots every long-lived component and blocks until ctx is
// cancelled (spec.md §4.10, §9 "in-memory singletons ... owned by the
// scheduler").
func Run(ctx context.Context, cfg Config) error {
	logger := logging.New(cfg.LogLevel)
	tracer, shutdownTracing := otelboot.Setup("leaguesim-server")
	defer func() {
		_ = shutdownTracing(context.Background())
	}()

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	bus := eventbus.New()
	ai := aigateway.New(aigateway.WithUsageSink(store), aigateway.WithDisabled(cfg.AIDisabled))

	orch := orchestrator.New(store, bus, ai, logger).WithTracer(tracer)
	if cfg.Instant {
		orch.Mode = orchestrator.ModeInstant
	}

	presState := presenter.NewState()
	pres := presenter.New(bus, store, presState, presenter.Config{
		QuarterReplaySeconds: cfg.QuarterReplaySeconds,
		GameIntervalSeconds:  cfg.GameIntervalSeconds,
	}, logger)

	holder := leaseHolder()
	sched := scheduler.New(orch, pres, presState, store, scheduler.Config{
		Pace:        scheduler.Pace(cfg.Pace),
		LeaseKey:    cfg.LeaseKey,
		LeaseHolder: holder,
		LeaseTTL:    cfg.LeaseTTL,
	}, logger)

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	logger.Info("leaguesim server started", "db", cfg.DBPath, "pace", cfg.Pace, "holder", holder)

	<-ctx.Done()
	logger.Info("leaguesim server shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return sched.Stop(stopCtx)
}

func leaseHolder() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown-host"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}
