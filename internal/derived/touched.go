package derived

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"polymarket-indexer/internal/store"
)

const maxTouchedMarketsPerCycle = 1000

// RecomputeTouchedMarkets refreshes MarketMetrics for every condition with
// at least one trade in the last hour — the per-cycle trigger from 4.3.4,
// distinct from Maintenance's full sweep over every active condition.
func RecomputeTouchedMarkets(ctx context.Context, s *store.Store, now time.Time, log *slog.Logger) error {
	conditionIDs, err := s.GetConditionsTouchedSince(ctx, now.Add(-time.Hour), maxTouchedMarketsPerCycle)
	if err != nil {
		return err
	}
	for _, conditionID := range conditionIDs {
		err := s.WithTx(ctx, func(tx *sqlx.Tx) error {
			return RecomputeMarketMetrics(ctx, tx, s, conditionID, now)
		})
		if err != nil {
			log.Warn("metric recompute failed for touched condition", "condition_id", conditionID, "err", err)
		}
	}
	return nil
}
