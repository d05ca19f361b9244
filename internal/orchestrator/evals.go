package orchestrator

import (
	"log/slog"

	"github.com/hoopsguild/leaguesim/internal/league/schedule"
	"github.com/hoopsguild/leaguesim/internal/simulation"
)

// runEvals is the non-blocking diagnostics harness SPEC_FULL.md §4
// operationalizes "Run evaluation harness" into. Phase C runs it over
// each already-persisted GameResult and logs violations rather than
// enforcing them: negative final scores, a team score that decreases
// across possessions (spec.md §8 invariant 4), negative points,
// rebounds or turnovers in a box-score line, and a game with no
// possessions. Stamina bounds and on-court counts are not carried in
// GameResult and are not re-checked here. The
// simulation engine itself aborts on these violations mid-game
// (spec.md §4.4 "Failure semantics"); this pass exists so a violation
// that somehow slipped through is visible in the logs instead of
// silently shipping.
func runEvals(logger *slog.Logger, seasonID string, round int, m schedule.Matchup, result simulation.GameResult) {
	if result.HomeScore < 0 || result.AwayScore < 0 {
		logger.Error("eval violation: negative final score",
			"season_id", seasonID, "round", round, "home_team", m.HomeTeamID, "away_team", m.AwayTeamID)
	}

	lastHome, lastAway := 0, 0
	for _, p := range result.Possessions {
		home, away := p.DefenseScore, p.OffenseScore
		if p.OffenseTeamID == m.HomeTeamID {
			home, away = p.OffenseScore, p.DefenseScore
		}
		if home < lastHome || away < lastAway {
			logger.Error("eval violation: non-monotonic score across possessions",
				"season_id", seasonID, "round", round, "possession", p.PossessionIndex)
		}
		lastHome, lastAway = home, away
	}

	for playerID, box := range result.BoxScore {
		if box.Points < 0 || box.Rebounds < 0 || box.Turnovers < 0 {
			logger.Error("eval violation: negative box score stat",
				"season_id", seasonID, "round", round, "player_id", playerID)
		}
	}

	if result.TotalPossessions <= 0 {
		logger.Warn("eval: game produced zero possessions",
			"season_id", seasonID, "round", round, "home_team", m.HomeTeamID, "away_team", m.AwayTeamID)
	}
}
