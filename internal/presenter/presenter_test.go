package presenter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoopsguild/leaguesim/internal/eventbus"
	"github.com/hoopsguild/leaguesim/internal/league/team"
	"github.com/hoopsguild/leaguesim/internal/repository"
	"github.com/hoopsguild/leaguesim/internal/simulation"
)

type fakeRepo struct {
	teams     map[string]team.Team
	presented map[string]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		teams: map[string]team.Team{
			"home": {ID: "home", Name: "Home Hoopers"},
			"away": {ID: "away", Name: "Away Aces"},
		},
		presented: map[string]bool{},
	}
}

func (f *fakeRepo) GetTeam(ctx context.Context, id string) (team.Team, error) {
	return f.teams[id], nil
}

func (f *fakeRepo) MarkGamePresented(ctx context.Context, gameID string) error {
	f.presented[gameID] = true
	return nil
}

func (f *fakeRepo) ListUnpresentedGames(ctx context.Context, seasonID string) ([]repository.GameResultRecord, error) {
	return nil, nil
}

func testGame(id string) repository.GameResultRecord {
	return repository.GameResultRecord{
		ID: id, SeasonID: "s1", Round: 1, HomeTeamID: "home", AwayTeamID: "away",
		Result: simulation.GameResult{
			HomeScore: 4, AwayScore: 2, TotalPossessions: 2, QuartersPlayed: 1,
			Possessions: []simulation.PossessionLog{
				{Quarter: 1, PossessionIndex: 0, OffenseTeamID: "home", PointsScored: 2, ShotMade: true, OffenseScore: 2, DefenseScore: 0, Narratives: []string{"home scores"}},
				{Quarter: 1, PossessionIndex: 1, OffenseTeamID: "away", PointsScored: 2, ShotMade: true, OffenseScore: 2, DefenseScore: 2, Narratives: []string{"away answers"}},
			},
			BoxScore: map[string]simulation.PlayerBoxStat{
				"p1": {PlayerID: "p1", Points: 4, Rebounds: 1, Assists: 0},
				"p2": {PlayerID: "p2", Points: 2, Rebounds: 3, Assists: 1},
			},
		},
	}
}

func newTestPresenter(repo *fakeRepo, bus *eventbus.Bus) *Presenter {
	return New(bus, repo, NewState(), Config{QuarterReplaySeconds: 1, GameIntervalSeconds: 0}, nil)
}

func TestPresentDripsPossessionsAndMarksVisible(t *testing.T) {
	repo := newFakeRepo()
	bus := eventbus.New()
	sub := bus.Subscribe(eventbus.Wildcard)
	defer sub.Unsubscribe()

	p := newTestPresenter(repo, bus)
	err := p.Present(context.Background(), "s1", 1, []repository.GameResultRecord{testGame("g1")})
	require.NoError(t, err)

	assert.True(t, repo.presented["g1"])
	assert.False(t, p.State.IsActive())

	var types []string
	drain := true
	for drain {
		select {
		case e := <-sub.Events():
			types = append(types, e.Type)
		case <-time.After(50 * time.Millisecond):
			drain = false
		}
	}
	assert.Contains(t, types, "presentation.game_starting")
	assert.Contains(t, types, "presentation.possession")
	assert.Contains(t, types, "presentation.game_finished")
	assert.Contains(t, types, "presentation.round_finished")
}

func TestPresentRejectsConcurrentActivation(t *testing.T) {
	repo := newFakeRepo()
	state := NewState()
	cancel, ok := state.TryActivate()
	require.True(t, ok)
	defer func() {
		_ = cancel
		state.Deactivate()
	}()

	p := New(nil, repo, state, Config{QuarterReplaySeconds: 1}, nil)
	err := p.Present(context.Background(), "s1", 1, []repository.GameResultRecord{testGame("g1")})
	assert.Error(t, err)
}

func TestPresentCancelsBetweenGames(t *testing.T) {
	repo := newFakeRepo()
	bus := eventbus.New()
	p := newTestPresenter(repo, bus)
	p.Config.GameIntervalSeconds = 10

	ctx, cancelFn := context.WithCancel(context.Background())
	cancelFn()

	err := p.Present(ctx, "s1", 1, []repository.GameResultRecord{testGame("g1"), testGame("g2")})
	require.NoError(t, err)
	assert.False(t, p.State.IsActive())
}

func TestComputeLeaders(t *testing.T) {
	result := testGame("g1").Result
	leaders := computeLeaders(result)
	assert.Equal(t, "p1", leaders["points"])
	assert.Equal(t, "p2", leaders["rebounds"])
	assert.Equal(t, "p2", leaders["assists"])
}

func TestGroupByQuarter(t *testing.T) {
	log := []simulation.PossessionLog{
		{Quarter: 1, PossessionIndex: 0},
		{Quarter: 1, PossessionIndex: 1},
		{Quarter: 2, PossessionIndex: 2},
	}
	groups := groupByQuarter(log)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 2)
	assert.Len(t, groups[1], 1)
}
