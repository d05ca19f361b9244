package presenter

import (
	"context"
	"log/slog"

	"github.com/hoopsguild/leaguesim/internal/repository"
)

// RecoveryRepository is the narrow slice of repository.Repository
// Recover needs.
type RecoveryRepository interface {
	ListUnpresentedGames(ctx context.Context, seasonID string) ([]repository.GameResultRecord, error)
	MarkGamePresented(ctx context.Context, gameID string) error
}

// Recover implements spec.md §4.8's startup recovery: on process
// start, any games left `presented=false` from an interrupted
// presentation are marked presented immediately rather than replayed.
// The live experience for that round is lost, but results become
// visible right away (spec.md §8 Scenario E).
func Recover(ctx context.Context, repo RecoveryRepository, seasonID string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	unpresented, err := repo.ListUnpresentedGames(ctx, seasonID)
	if err != nil {
		return err
	}
	for _, g := range unpresented {
		if err := repo.MarkGamePresented(ctx, g.ID); err != nil {
			return err
		}
	}
	if len(unpresented) > 0 {
		logger.Info("recovered interrupted presentation: marked games presented without replay",
			"season_id", seasonID, "game_count", len(unpresented))
	}
	return nil
}
