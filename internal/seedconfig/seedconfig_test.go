package seedconfig

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoopsguild/leaguesim/internal/league/team"
)

const sampleYAML = `
league_name: Hoops Guild
season_count: 2
regular_season_rounds: 8
teams:
  - name: River City Runners
    venue:
      name: Riverside Arena
      capacity: 12000
      surface: hardwood
    archetypes: [sharpshooter, lockdown, playmaker, grinder]
  - name: Highland Hawks
    venue:
      name: Highland Fieldhouse
      capacity: 9000
      altitude_m: 1800
      surface: outdoor
    archetypes: [enforcer, wildcard, playmaker, grinder]
rule_overrides:
  elam_margin: 10
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadParsesAndDefaults(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Hoops Guild", cfg.LeagueName)
	assert.Equal(t, 2, cfg.SeasonCount)
	assert.Equal(t, 8, cfg.RegularSeasonRounds)
	assert.Equal(t, 1, cfg.TiebreakerRounds) // defaulted
	assert.Equal(t, 4, cfg.PlayoffRounds)    // defaulted
	assert.Len(t, cfg.Teams, 2)
}

func TestLoadRejectsTooFewTeams(t *testing.T) {
	path := writeTempConfig(t, `
league_name: Solo League
teams:
  - name: Lonely Team
    archetypes: [sharpshooter, lockdown, playmaker, grinder]
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsShortRoster(t *testing.T) {
	path := writeTempConfig(t, `
league_name: Thin League
teams:
  - name: Team A
    archetypes: [sharpshooter, lockdown]
  - name: Team B
    archetypes: [sharpshooter, lockdown, playmaker, grinder]
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestRuleSetAppliesOverrides(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	rs, err := cfg.RuleSet()
	require.NoError(t, err)
	assert.Equal(t, 10, rs.ElamMargin)
}

func TestGenerateTeamBuildsActiveAndBenchRosters(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	counter := 0
	idGen := func() string {
		counter++
		return "id-" + string(rune('a'+counter))
	}

	tm := GenerateTeam("season-1", idGen, cfg.Teams[0], rng)
	assert.Equal(t, "River City Runners", tm.Name)
	assert.Len(t, tm.Active, team.ActiveRosterSize)
	assert.Len(t, tm.Bench, 1)
	assert.NoError(t, tm.Validate())

	for _, p := range tm.AllPlayers() {
		assert.NoError(t, p.BaseAttributes.Validate())
	}
}

func TestGenerateTeamDefaultsSurface(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.Teams[0].Venue.Surface = ""
	rng := rand.New(rand.NewSource(1))
	tm := GenerateTeam("s1", func() string { return "x" }, cfg.Teams[0], rng)
	assert.Equal(t, team.SurfaceHardwood, tm.Venue.Surface)
}
