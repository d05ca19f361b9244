package simulation

import (
	"testing"

	"github.com/hoopsguild/leaguesim/internal/league/player"
	"github.com/hoopsguild/leaguesim/internal/league/team"
	"github.com/hoopsguild/leaguesim/internal/ruleset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePlayer(id, archetype string, scoring, defense, iq, stamina int) player.Player {
	attrs := player.Attributes{
		player.AttrScoring:          scoring,
		player.AttrPassing:          50,
		player.AttrDefense:          defense,
		player.AttrSpeed:            50,
		player.AttrStamina:          stamina,
		player.AttrIQ:               iq,
		player.AttrEgo:              50,
		player.AttrChaoticAlignment: 50,
		player.AttrFate:             50,
	}
	return player.Player{
		ID:                id,
		Name:              id,
		Archetype:         archetype,
		BaseAttributes:    attrs,
		CurrentAttributes: attrs.Clone(),
	}
}

func makeTeam(id, seasonID, name string, offset int) team.Team {
	mk := func(n int, archetype string) player.Player {
		return makePlayer(name+string(rune('A'+n)), archetype, 60+offset, 55, 60, 80)
	}
	return team.Team{
		ID:       id,
		SeasonID: seasonID,
		Name:     name,
		Venue:    team.Venue{Name: name + " Arena", Surface: team.SurfaceHardwood},
		Active: []player.Player{
			mk(0, "sharpshooter"),
			mk(1, "slasher"),
			mk(2, "post_presence"),
		},
		Bench: []player.Player{
			mk(3, "sharpshooter"),
		},
	}
}

func testInput(seed int64) Input {
	home := makeTeam("home-team", "season-1", "Home", 5)
	away := makeTeam("away-team", "season-1", "Away", 0)
	return Input{
		Home:         home,
		Away:         away,
		Rules:        ruleset.Default(),
		Seed:         seed,
		HomeStrategy: DefaultStrategy(),
		AwayStrategy: DefaultStrategy(),
	}
}

func TestSimulateGameIsDeterministic(t *testing.T) {
	in := testInput(42)
	r1, err := SimulateGame(in)
	require.NoError(t, err)
	r2, err := SimulateGame(in)
	require.NoError(t, err)

	assert.Equal(t, r1.HomeScore, r2.HomeScore)
	assert.Equal(t, r1.AwayScore, r2.AwayScore)
	assert.Equal(t, r1.FinalChecksum, r2.FinalChecksum)
	assert.Equal(t, len(r1.Possessions), len(r2.Possessions))
}

func TestSimulateGameDifferentSeedsDiverge(t *testing.T) {
	r1, err := SimulateGame(testInput(1))
	require.NoError(t, err)
	r2, err := SimulateGame(testInput(2))
	require.NoError(t, err)

	assert.NotEqual(t, r1.FinalChecksum, r2.FinalChecksum)
}

func TestSimulateGameInvariants(t *testing.T) {
	result, err := SimulateGame(testInput(7))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.HomeScore, 0)
	assert.GreaterOrEqual(t, result.AwayScore, 0)
	assert.LessOrEqual(t, result.QuartersPlayed, 4)

	lastHome, lastAway := 0, 0
	for _, p := range result.Possessions {
		assert.GreaterOrEqual(t, p.OffenseScore, 0)
		assert.GreaterOrEqual(t, p.DefenseScore, 0)
		var homeScore, awayScore int
		if p.OffenseTeamID == "home-team" {
			homeScore, awayScore = p.OffenseScore, p.DefenseScore
		} else {
			homeScore, awayScore = p.DefenseScore, p.OffenseScore
		}
		assert.GreaterOrEqual(t, homeScore, lastHome)
		assert.GreaterOrEqual(t, awayScore, lastAway)
		lastHome, lastAway = homeScore, awayScore
	}

	for id, stat := range result.BoxScore {
		assert.GreaterOrEqual(t, stat.Points, 0, "player %s has negative points", id)
		assert.LessOrEqual(t, stat.Fouls, ruleset.Default().PersonalFoulLimit*2, "player %s fouled out implausibly often", id)
	}
}

func TestSimulateGameRejectsInvalidRules(t *testing.T) {
	in := testInput(3)
	bad := in.Rules
	bad.PersonalFoulLimit = 0
	in.Rules = bad

	_, err := SimulateGame(in)
	assert.Error(t, err)
}

func TestSimulateGameRejectsOversizedRoster(t *testing.T) {
	in := testInput(3)
	in.Home.Active = append(in.Home.Active, makePlayer("extra", "slasher", 60, 55, 60, 80))

	_, err := SimulateGame(in)
	assert.Error(t, err)
}
