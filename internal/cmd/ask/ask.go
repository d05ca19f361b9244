// Package ask implements the `ask` subcommand: a natural-language
// stats query answered by the AI Gateway's evaluator purpose against a
// read-only snapshot assembled from the repository (SPEC_FULL.md §4
// "ask CLI"). With no provider configured it runs on the deterministic
// mock path, so it is testable without live network access.
package ask

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/hoopsguild/leaguesim/internal/aigateway"
	"github.com/hoopsguild/leaguesim/internal/orchestrator"
	"github.com/hoopsguild/leaguesim/internal/repository/sqlite"
)

// Config holds the ask command's configuration.
type Config struct {
	DBPath     string `env:"LEAGUESIM_DB_PATH" envDefault:"leaguesim.db"`
	AIDisabled bool   `env:"LEAGUESIM_AI_DISABLED" envDefault:"true"`
	SeasonID   string
	Question   string
}

// ParseConfig loads Config from the environment, flags, then the
// required trailing positional arguments (season id, question).
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the SQLite database file")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	rest := fs.Args()
	if len(rest) < 2 {
		return Config{}, fmt.Errorf("usage: ask [flags] <season-id> <question...>")
	}
	cfg.SeasonID = rest[0]
	cfg.Question = strings.Join(rest[1:], " ")
	return cfg, nil
}

// Run assembles a read-only statistics snapshot for cfg.SeasonID and
// answers cfg.Question against it, writing the answer to out.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	se, err := store.GetSeason(ctx, cfg.SeasonID)
	if err != nil {
		return fmt.Errorf("load season: %w", err)
	}

	orch := orchestrator.New(store, nil, nil, nil)
	standings, err := orch.ComputeStandings(ctx, cfg.SeasonID, se.CurrentRound)
	if err != nil {
		return fmt.Errorf("compute standings: %w", err)
	}

	snapshot := formatSnapshot(se.CurrentRound, standings)

	ai := aigateway.New(aigateway.WithUsageSink(store), aigateway.WithDisabled(cfg.AIDisabled))
	resp, err := ai.Generate(ctx, aigateway.Request{
		Purpose:      aigateway.PurposeEvaluator,
		SystemPrompt: "You answer factual questions about a basketball league's current standings using only the statistics snapshot provided.",
		UserPrompt:   fmt.Sprintf("Snapshot:\n%s\n\nQuestion: %s", snapshot, cfg.Question),
		MaxTokens:    512,
	})
	if err != nil {
		return fmt.Errorf("generate answer: %w", err)
	}

	fmt.Fprintln(out, resp.Text)
	return nil
}

// formatSnapshot renders standings as a compact table the AI Gateway's
// evaluator purpose can ground its answer on.
func formatSnapshot(throughRound int, standings []orchestrator.Standing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Standings through round %d:\n", throughRound)
	for i, s := range standings {
		fmt.Fprintf(&b, "%d. team=%s wins=%d losses=%d points_for=%d points_against=%d\n",
			i+1, s.TeamID, s.Wins, s.Losses, s.PointsFor, s.PointsAgainst)
	}
	return b.String()
}
