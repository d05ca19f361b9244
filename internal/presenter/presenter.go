// Package presenter implements C9: replaying a round's pre-computed
// GameResults in real time over the event bus (spec.md §4.8). The
// presenter never re-simulates anything; every outcome was already
// decided by the deterministic engine in Phase A. Its only job is
// pacing — dripping possessions at a human-watchable rate and marking
// each game "visible" as it finishes.
package presenter

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hoopsguild/leaguesim/internal/eventbus"
	"github.com/hoopsguild/leaguesim/internal/league/team"
	"github.com/hoopsguild/leaguesim/internal/platform/apperrors"
	"github.com/hoopsguild/leaguesim/internal/repository"
	"github.com/hoopsguild/leaguesim/internal/simulation"
)

// Repository is the narrow slice of repository.Repository the
// presenter needs: team-name lookups for presentation payloads and the
// single-row "mark visible" update (spec.md §4.8). Any
// repository.Repository satisfies this automatically.
type Repository interface {
	GetTeam(ctx context.Context, id string) (team.Team, error)
	MarkGamePresented(ctx context.Context, gameID string) error
}

var _ Repository = repository.Repository(nil)

// Config controls the presenter's two timing knobs (spec.md §4.8,
// §6 configuration defaults).
type Config struct {
	QuarterReplaySeconds int // total budget per quarter, split across its possessions
	GameIntervalSeconds  int // gap between games within a round
}

// DefaultConfig matches spec.md §6's stated defaults.
func DefaultConfig() Config {
	return Config{QuarterReplaySeconds: 300, GameIntervalSeconds: 30}
}

// LiveGameState is the process-wide snapshot HTTP handlers read for
// server-rendered hydration while a game is being replayed (spec.md
// §4.8 "process-wide snapshot accessible to HTTP handlers").
type LiveGameState struct {
	SeasonID         string
	GameID           string
	Round            int
	HomeTeamID       string
	AwayTeamID       string
	HomeTeamName     string
	AwayTeamName     string
	Quarter          int
	HomeScore        int
	AwayScore        int
	PossessionIndex  int
	TotalPossessions int
	Narration        string
	Finished         bool
}

// State is the process-wide PresentationState singleton: only one
// presentation runs at a time, process-wide (spec.md §4.8 "Singleton
// and recovery", §9 "in-memory singletons ... owned by the scheduler,
// passed to other components as explicit references").
type State struct {
	mu     sync.Mutex
	active bool
	live   *LiveGameState
	cancel chan struct{}
}

// NewState returns an inactive PresentationState.
func NewState() *State {
	return &State{}
}

// TryActivate claims the singleton slot. ok is false if a
// presentation is already running, in which case the scheduler's tick
// must skip launching another one (spec.md §4.10 "reentrancy guard").
func (s *State) TryActivate() (cancel <-chan struct{}, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return nil, false
	}
	s.active = true
	s.cancel = make(chan struct{})
	return s.cancel, true
}

// Deactivate releases the singleton slot and clears the live snapshot.
func (s *State) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.live = nil
}

// IsActive reports whether a presentation is currently running.
func (s *State) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Cancel signals the running presentation to unwind cleanly between
// possessions (spec.md §5 "Cancellation ... exits cleanly between
// possessions, never mid-possession"). A no-op if nothing is active.
func (s *State) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || s.cancel == nil {
		return
	}
	select {
	case <-s.cancel:
	default:
		close(s.cancel)
	}
}

func (s *State) setLive(live LiveGameState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = &live
}

// Live returns a copy of the current snapshot, or nil if no
// presentation is active.
func (s *State) Live() *LiveGameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live == nil {
		return nil
	}
	cp := *s.live
	return &cp
}

// Presenter drips the games from one round's RoundSummary onto the
// event bus in real time (spec.md §4.8). It holds no durable-storage
// write lock: MarkGamePresented is the only storage call in its loop,
// and it is a single-row update, not a session spanning the replay.
type Presenter struct {
	Bus    *eventbus.Bus
	Repo   Repository
	State  *State
	Config Config
	Logger *slog.Logger
}

// New constructs a Presenter with its required collaborators.
func New(bus *eventbus.Bus, repo Repository, state *State, cfg Config, logger *slog.Logger) *Presenter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QuarterReplaySeconds <= 0 {
		cfg.QuarterReplaySeconds = DefaultConfig().QuarterReplaySeconds
	}
	if cfg.GameIntervalSeconds < 0 {
		cfg.GameIntervalSeconds = DefaultConfig().GameIntervalSeconds
	}
	return &Presenter{Bus: bus, Repo: repo, State: state, Config: cfg, Logger: logger}
}

// Present replays every game in games over real time, in order, then
// publishes presentation.round_finished. It claims the singleton slot
// itself; callers (the scheduler, after a round completes) should
// launch it as a background goroutine and not hold any lock across
// the call.
func (p *Presenter) Present(ctx context.Context, seasonID string, round int, games []repository.GameResultRecord) error {
	cancel, ok := p.State.TryActivate()
	if !ok {
		return apperrors.New(apperrors.CodeOrchestratorFatal, "a presentation is already active")
	}
	defer p.State.Deactivate()

	teamNames := p.loadTeamNames(ctx, games)

	for i, g := range games {
		if cancelled(cancel, ctx) {
			p.Logger.Info("presentation cancelled between games", "season_id", seasonID, "round", round, "game_index", i)
			return nil
		}
		p.presentGame(ctx, cancel, seasonID, round, g, teamNames)

		if i < len(games)-1 {
			if !p.sleepOrCancel(ctx, cancel, time.Duration(p.Config.GameIntervalSeconds)*time.Second) {
				return nil
			}
		}
	}

	if p.Bus != nil {
		p.Bus.Publish(eventbus.Event{Type: "presentation.round_finished", Payload: map[string]any{
			"season_id": seasonID, "round": round, "game_count": len(games),
		}})
	}
	return nil
}

func (p *Presenter) loadTeamNames(ctx context.Context, games []repository.GameResultRecord) map[string]string {
	names := map[string]string{}
	for _, g := range games {
		for _, teamID := range []string{g.HomeTeamID, g.AwayTeamID} {
			if _, ok := names[teamID]; ok {
				continue
			}
			t, err := p.Repo.GetTeam(ctx, teamID)
			if err != nil {
				names[teamID] = teamID
				continue
			}
			names[teamID] = t.Name
		}
	}
	return names
}

// presentGame drips one game's possession log, paced by
// quarter_replay_seconds, and finishes by marking the game presented
// (spec.md §4.8 "Inner loop per game").
func (p *Presenter) presentGame(ctx context.Context, cancel <-chan struct{}, seasonID string, round int, g repository.GameResultRecord, teamNames map[string]string) {
	if p.Bus != nil {
		p.Bus.Publish(eventbus.Event{Type: "presentation.game_starting", Payload: map[string]any{
			"season_id": seasonID, "round": round, "game_id": g.ID,
			"home_team_id": g.HomeTeamID, "away_team_id": g.AwayTeamID,
		}})
	}

	quarters := groupByQuarter(g.Result.Possessions)
	for _, quarter := range quarters {
		if cancelled(cancel, ctx) {
			return
		}
		perPossession := time.Duration(p.Config.QuarterReplaySeconds) * time.Second / time.Duration(maxInt(1, len(quarter)))
		for _, poss := range quarter {
			if !p.sleepOrCancel(ctx, cancel, perPossession) {
				return
			}
			p.publishPossession(seasonID, round, g, teamNames, poss)
		}
	}

	p.State.setLive(LiveGameState{
		SeasonID: seasonID, GameID: g.ID, Round: round,
		HomeTeamID: g.HomeTeamID, AwayTeamID: g.AwayTeamID,
		HomeTeamName: teamNames[g.HomeTeamID], AwayTeamName: teamNames[g.AwayTeamID],
		Quarter: g.Result.QuartersPlayed, HomeScore: g.Result.HomeScore, AwayScore: g.Result.AwayScore,
		PossessionIndex: g.Result.TotalPossessions, TotalPossessions: g.Result.TotalPossessions,
		Finished: true,
	})

	if p.Bus != nil {
		p.Bus.Publish(eventbus.Event{Type: "presentation.game_finished", Payload: map[string]any{
			"season_id": seasonID, "round": round, "game_id": g.ID,
			"home_team_id": g.HomeTeamID, "away_team_id": g.AwayTeamID,
			"home_score": g.Result.HomeScore, "away_score": g.Result.AwayScore,
			"leaders": computeLeaders(g.Result),
		}})
	}

	if err := p.Repo.MarkGamePresented(ctx, g.ID); err != nil {
		p.Logger.Error("failed to mark game presented", "game_id", g.ID, "error", err)
	}
}

func (p *Presenter) publishPossession(seasonID string, round int, g repository.GameResultRecord, teamNames map[string]string, poss simulation.PossessionLog) {
	home, away := poss.DefenseScore, poss.OffenseScore
	if poss.OffenseTeamID == g.HomeTeamID {
		home, away = poss.OffenseScore, poss.DefenseScore
	}
	narration := ""
	if len(poss.Narratives) > 0 {
		narration = poss.Narratives[len(poss.Narratives)-1]
	}

	p.State.setLive(LiveGameState{
		SeasonID: seasonID, GameID: g.ID, Round: round,
		HomeTeamID: g.HomeTeamID, AwayTeamID: g.AwayTeamID,
		HomeTeamName: teamNames[g.HomeTeamID], AwayTeamName: teamNames[g.AwayTeamID],
		Quarter: poss.Quarter, HomeScore: home, AwayScore: away,
		PossessionIndex: poss.PossessionIndex, TotalPossessions: g.Result.TotalPossessions,
		Narration: narration,
	})

	if p.Bus == nil {
		return
	}
	p.Bus.Publish(eventbus.Event{Type: "presentation.possession", Payload: map[string]any{
		"season_id":     seasonID,
		"round":         round,
		"game_id":       g.ID,
		"home_team":     teamNames[g.HomeTeamID],
		"away_team":     teamNames[g.AwayTeamID],
		"quarter":       poss.Quarter,
		"elam_phase":    poss.ElamPhase,
		"offense_team":  poss.OffenseTeamID,
		"action_type":   poss.ActionType,
		"shot_made":     poss.ShotMade,
		"points_scored": poss.PointsScored,
		"home_score":    home,
		"away_score":    away,
		"narration":     narration,
		"game_clock":    remainingClockDisplay(poss),
	})
}

// remainingClockDisplay is a presentation-only label ("Q2 #7") since
// the engine's pure PossessionLog carries possession index, not a
// literal wall clock (spec.md §4.4 models clock time only as a
// possession budget, never a durable field).
func remainingClockDisplay(poss simulation.PossessionLog) string {
	if poss.ElamPhase {
		return fmt.Sprintf("Elam #%d", poss.PossessionIndex+1)
	}
	return fmt.Sprintf("Q%d #%d", poss.Quarter, poss.PossessionIndex+1)
}

// groupByQuarter buckets a game's possession log by quarter, preserving
// order, so each quarter's pacing budget is spread over only its own
// possessions (spec.md §4.8 "quarter_replay_seconds: total budget per
// quarter").
func groupByQuarter(log []simulation.PossessionLog) [][]simulation.PossessionLog {
	var quarters [][]simulation.PossessionLog
	var current []simulation.PossessionLog
	currentQuarter := 0
	for _, p := range log {
		if p.Quarter != currentQuarter {
			if len(current) > 0 {
				quarters = append(quarters, current)
			}
			current = nil
			currentQuarter = p.Quarter
		}
		current = append(current, p)
	}
	if len(current) > 0 {
		quarters = append(quarters, current)
	}
	return quarters
}

// computeLeaders returns the top scorer, rebounder, and assist man
// from the game's box score, for the presentation.game_finished
// envelope (spec.md §4.8 "publish presentation.game_finished with
// leaders").
func computeLeaders(result simulation.GameResult) map[string]string {
	var ids []string
	for id := range result.BoxScore {
		ids = append(ids, id)
	}
	sort.Strings(ids) // stable iteration order before comparison below

	leaders := map[string]string{}
	best := func(pick func(simulation.PlayerBoxStat) int) string {
		var bestID string
		bestVal := -1
		for _, id := range ids {
			v := pick(result.BoxScore[id])
			if v > bestVal {
				bestVal = v
				bestID = id
			}
		}
		return bestID
	}
	leaders["points"] = best(func(b simulation.PlayerBoxStat) int { return b.Points })
	leaders["rebounds"] = best(func(b simulation.PlayerBoxStat) int { return b.Rebounds })
	leaders["assists"] = best(func(b simulation.PlayerBoxStat) int { return b.Assists })
	return leaders
}

func (p *Presenter) sleepOrCancel(ctx context.Context, cancel <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		return !cancelled(cancel, ctx)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-cancel:
		return false
	case <-ctx.Done():
		return false
	}
}

func cancelled(cancel <-chan struct{}, ctx context.Context) bool {
	select {
	case <-cancel:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
