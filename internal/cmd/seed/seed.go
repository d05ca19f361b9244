// Package seed implements the `seed` subcommand: creates a league from
// a structured YAML config (spec.md §6 "seed: creates a league from a
// structured config"), per SPEC_FULL.md §4's seed config format.
package seed

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/hoopsguild/leaguesim/internal/league"
	"github.com/hoopsguild/leaguesim/internal/league/schedule"
	"github.com/hoopsguild/leaguesim/internal/league/season"
	"github.com/hoopsguild/leaguesim/internal/league/team"
	"github.com/hoopsguild/leaguesim/internal/platform/id"
	"github.com/hoopsguild/leaguesim/internal/repository/sqlite"
	"github.com/hoopsguild/leaguesim/internal/seedconfig"
)

// Config holds the seed command's configuration.
type Config struct {
	DBPath     string `env:"LEAGUESIM_DB_PATH" envDefault:"leaguesim.db"`
	Seed       int64  `env:"LEAGUESIM_SEED_RNG" envDefault:"0"` // 0 means "derive from wall clock"
	ConfigPath string
}

// ParseConfig loads Config from the environment, flags, then the
// required trailing positional argument (the YAML seed file path).
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the SQLite database file")
	fs.Int64Var(&cfg.Seed, "rng-seed", cfg.Seed, "seed for roster generation (0 = derive from wall clock)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	rest := fs.Args()
	if len(rest) < 1 {
		return Config{}, fmt.Errorf("usage: seed [flags] <config.yaml>")
	}
	cfg.ConfigPath = rest[0]
	return cfg, nil
}

// Run loads cfg.ConfigPath and writes a new league, its first season,
// teams, and round-robin schedule to the repository at cfg.DBPath.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	sc, err := seedconfig.Load(cfg.ConfigPath)
	if err != nil {
		return err
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	leagueID := id.New()
	seasonID := id.New()

	startingRules, err := sc.RuleSet()
	if err != nil {
		return fmt.Errorf("resolve starting rule set: %w", err)
	}

	teamIDs := make([]string, 0, len(sc.Teams))
	teams := make([]team.Team, 0, len(sc.Teams))
	for _, tc := range sc.Teams {
		t := seedconfig.GenerateTeam(seasonID, id.New, tc, rng)
		teamIDs = append(teamIDs, t.ID)
		teams = append(teams, t)
	}

	sched, err := schedule.RoundRobin(seasonID, teamIDs)
	if err != nil {
		return fmt.Errorf("build schedule: %w", err)
	}

	l := league.League{ID: leagueID, Name: sc.LeagueName, CurrentSeason: 1, CreatedAt: time.Now()}
	if err := store.SaveLeague(ctx, l); err != nil {
		return fmt.Errorf("save league: %w", err)
	}

	se := season.Season{
		ID:              seasonID,
		LeagueID:        leagueID,
		Index:           1,
		Phase:           season.PhaseActive,
		StartingRuleSet: startingRules,
		CurrentRuleSet:  startingRules,
		TeamIDs:         teamIDs,
		Lifecycle: season.LifecycleConfig{
			RegularSeasonRounds: sc.RegularSeasonRounds,
			TiebreakerRounds:    sc.TiebreakerRounds,
			PlayoffRounds:       sc.PlayoffRounds,
			OffseasonRounds:     sc.OffseasonRounds,
		},
	}
	if err := store.SaveSeason(ctx, se); err != nil {
		return fmt.Errorf("save season: %w", err)
	}

	for _, t := range teams {
		if err := store.SaveTeam(ctx, t); err != nil {
			return fmt.Errorf("save team %s: %w", t.Name, err)
		}
	}

	if err := store.SaveSchedule(ctx, sched); err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}

	fmt.Fprintf(out, "seeded league %q (%s): season %s, %d teams, %d rounds scheduled\n",
		l.Name, l.ID, se.ID, len(teams), len(sched.Rounds))
	return nil
}
