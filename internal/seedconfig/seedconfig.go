// Package seedconfig loads the YAML document the `seed` CLI turns into
// a brand-new league: name, season count, teams (name, venue,
// archetype mix), and starting rule set overrides (SPEC_FULL.md §4
// "seed CLI config format"). spec.md's own §6 CLI surface only says
// "creates a league from a structured config" without naming a
// format; YAML is grounded on the corpus's broad yaml.v3 usage (e.g.
// neofeeds' FeedsConfig).
package seedconfig

import (
	"fmt"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hoopsguild/leaguesim/internal/league/player"
	"github.com/hoopsguild/leaguesim/internal/league/team"
	"github.com/hoopsguild/leaguesim/internal/ruleset"
)

// VenueConfig is one team's home court, as given in YAML.
type VenueConfig struct {
	Name      string  `yaml:"name"`
	Capacity  int     `yaml:"capacity"`
	AltitudeM float64 `yaml:"altitude_m"`
	Surface   string  `yaml:"surface"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// TeamConfig is one team's seed definition: a name, a venue, and an
// archetype mix used to generate its roster. Archetypes bias
// generated attributes (e.g. "sharpshooter" raises scoring, lowers
// defense); the exact weighting lives in archetypeBias.
type TeamConfig struct {
	Name        string      `yaml:"name"`
	Venue       VenueConfig `yaml:"venue"`
	Archetypes  []string    `yaml:"archetypes"` // one entry per rostered player, active then bench
}

// Config is the root seed document.
type Config struct {
	LeagueName          string             `yaml:"league_name"`
	SeasonCount         int                `yaml:"season_count"`
	RegularSeasonRounds int                `yaml:"regular_season_rounds"`
	TiebreakerRounds    int                `yaml:"tiebreaker_rounds"`
	PlayoffRounds       int                `yaml:"playoff_rounds"`
	OffseasonRounds     int                `yaml:"offseason_rounds"`
	Teams               []TeamConfig       `yaml:"teams"`
	RuleOverrides       map[string]float64 `yaml:"rule_overrides"`
}

// Load reads and parses a seed config from path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read seed config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse seed config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SeasonCount <= 0 {
		c.SeasonCount = 1
	}
	if c.RegularSeasonRounds <= 0 {
		c.RegularSeasonRounds = 10
	}
	if c.TiebreakerRounds <= 0 {
		c.TiebreakerRounds = 1
	}
	if c.PlayoffRounds <= 0 {
		c.PlayoffRounds = 4
	}
	if c.OffseasonRounds <= 0 {
		c.OffseasonRounds = 1
	}
}

// Validate checks structural requirements before any repository calls
// are made, so a malformed seed file fails before touching storage.
func (c Config) Validate() error {
	if c.LeagueName == "" {
		return fmt.Errorf("league_name is required")
	}
	if len(c.Teams) < 2 {
		return fmt.Errorf("at least 2 teams are required, got %d", len(c.Teams))
	}
	for i, t := range c.Teams {
		if t.Name == "" {
			return fmt.Errorf("teams[%d]: name is required", i)
		}
		if len(t.Archetypes) < team.ActiveRosterSize+team.MinBenchSize {
			return fmt.Errorf("teams[%d] %q: need at least %d archetypes (%d active + %d bench), got %d",
				i, t.Name, team.ActiveRosterSize+team.MinBenchSize, team.ActiveRosterSize, team.MinBenchSize, len(t.Archetypes))
		}
	}
	return nil
}

// RuleSet resolves this config's starting rule set, applying
// RuleOverrides on top of ruleset.Default.
func (c Config) RuleSet() (ruleset.RuleSet, error) {
	if len(c.RuleOverrides) == 0 {
		return ruleset.Default(), nil
	}
	return ruleset.FromMap(c.RuleOverrides)
}

// archetypeBias nudges a generated player's base attributes by
// archetype. Archetypes not listed here generate with neutral rolls.
var archetypeBias = map[string]map[player.Attribute]int{
	"sharpshooter": {player.AttrScoring: 20, player.AttrDefense: -10},
	"lockdown":     {player.AttrDefense: 20, player.AttrScoring: -10},
	"playmaker":    {player.AttrPassing: 20, player.AttrIQ: 10},
	"enforcer":     {player.AttrDefense: 10, player.AttrEgo: 15},
	"wildcard":     {player.AttrChaoticAlignment: 30, player.AttrFate: 15},
	"grinder":      {player.AttrStamina: 20, player.AttrSpeed: -5},
}

// GenerateTeam builds a team.Team with an idGen-minted ID and rostered
// players generated from the config's archetype mix, biased by
// archetypeBias and randomized by rng (caller supplies a seeded rng
// for reproducible seed runs, or a time-seeded one for a fresh league).
func GenerateTeam(seasonID string, idGen func() string, cfg TeamConfig, rng *rand.Rand) team.Team {
	t := team.Team{
		ID:       idGen(),
		SeasonID: seasonID,
		Name:     cfg.Name,
		Venue: team.Venue{
			Name:      cfg.Venue.Name,
			Capacity:  cfg.Venue.Capacity,
			AltitudeM: cfg.Venue.AltitudeM,
			Surface:   team.Surface(cfg.Venue.Surface),
			Latitude:  cfg.Venue.Latitude,
			Longitude: cfg.Venue.Longitude,
		},
	}
	if t.Venue.Surface == "" {
		t.Venue.Surface = team.SurfaceHardwood
	}

	for i, archetype := range cfg.Archetypes {
		p := generatePlayer(idGen(), archetype, rng)
		if i < team.ActiveRosterSize {
			t.Active = append(t.Active, p)
		} else {
			t.Bench = append(t.Bench, p)
		}
	}
	return t
}

func generatePlayer(id, archetype string, rng *rand.Rand) player.Player {
	attrs := player.Attributes{}
	bias := archetypeBias[archetype]
	for _, attr := range player.AllAttributes {
		base := 40 + rng.Intn(40) // 40-79 neutral roll
		base += bias[attr]
		if base < 1 {
			base = 1
		}
		if base > 100 {
			base = 100
		}
		attrs[attr] = base
	}
	return player.Player{
		ID:                id,
		Name:              fmt.Sprintf("%s #%d", archetype, rng.Intn(10000)),
		Archetype:         archetype,
		BaseAttributes:    attrs,
		CurrentAttributes: attrs.Clone(),
		SeasonMetaKey:     id,
	}
}
