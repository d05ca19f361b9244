// Package step implements the `step N` subcommand: advances a season
// by N rounds synchronously, with no scheduler involved (spec.md §6
// "step N: advances N rounds synchronously, no scheduler").
package step

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/caarlos0/env/v11"

	"github.com/hoopsguild/leaguesim/internal/aigateway"
	"github.com/hoopsguild/leaguesim/internal/eventbus"
	"github.com/hoopsguild/leaguesim/internal/orchestrator"
	"github.com/hoopsguild/leaguesim/internal/platform/logging"
	"github.com/hoopsguild/leaguesim/internal/repository/sqlite"
)

// Config holds the step command's configuration.
type Config struct {
	DBPath     string `env:"LEAGUESIM_DB_PATH" envDefault:"leaguesim.db"`
	LogLevel   string `env:"LEAGUESIM_LOG_LEVEL" envDefault:"warn"`
	AIDisabled bool   `env:"LEAGUESIM_AI_DISABLED" envDefault:"true"`
	SeasonID   string
	Rounds     int
}

// ParseConfig loads Config from the environment, then flags, then the
// required trailing positional arguments (season id, round count).
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the SQLite database file")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	rest := fs.Args()
	if len(rest) < 2 {
		return Config{}, fmt.Errorf("usage: step [flags] <season-id> <rounds>")
	}
	cfg.SeasonID = rest[0]
	rounds, err := strconv.Atoi(rest[1])
	if err != nil {
		return Config{}, fmt.Errorf("invalid round count %q: %w", rest[1], err)
	}
	cfg.Rounds = rounds
	if cfg.Rounds < 1 {
		return Config{}, fmt.Errorf("round count must be at least 1, got %d", cfg.Rounds)
	}
	return cfg, nil
}

// Run advances cfg.SeasonID by cfg.Rounds rounds, one RunRound call at
// a time, printing a one-line summary per round to out.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	logger := logging.New(cfg.LogLevel)

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	bus := eventbus.New()
	ai := aigateway.New(aigateway.WithUsageSink(store), aigateway.WithDisabled(cfg.AIDisabled))
	orch := orchestrator.New(store, bus, ai, logger)
	orch.Mode = orchestrator.ModeInstant // no presenter is running to drip replay events

	for i := 0; i < cfg.Rounds; i++ {
		summary, err := orch.RunRound(ctx, cfg.SeasonID)
		if err != nil {
			return fmt.Errorf("round %d: %w", i+1, err)
		}
		fmt.Fprintf(out, "round %d complete: %d games, partial=%v\n", summary.Round, len(summary.Games), summary.Partial)
	}
	return nil
}
