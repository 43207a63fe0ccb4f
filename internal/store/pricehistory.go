package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"polymarket-indexer/pkg/types"
)

// InsertPriceHistoryTick appends one OHLC tick. ID is a surrogate uuid since
// the table has no natural key (append-only, many rows per condition).
func (s *Store) InsertPriceHistoryTick(ctx context.Context, tx *sqlx.Tx, tick types.PriceHistory) error {
	if tick.ID == "" {
		tick.ID = uuid.NewString()
	}
	const q = `
		INSERT INTO price_history (
			id, condition_id, outcome_index, block_number, timestamp,
			open, high, low, close, volume, trade_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := tx.ExecContext(ctx, q,
		tick.ID, tick.ConditionID, tick.OutcomeIndex, tick.BlockNumber, tick.Timestamp,
		tick.Open, tick.High, tick.Low, tick.Close, tick.Volume, tick.TradeCount,
	)
	if err != nil {
		return fmt.Errorf("insert price history tick %s/%d: %w", tick.ConditionID, tick.OutcomeIndex, err)
	}
	return nil
}

// GetRecentOutcomeTrades returns up to limit price-history ticks for one
// outcome, newest first — the slice the Derived-State Engine's metrics
// recompute walks for momentum/volatility.
func (s *Store) GetRecentOutcomeTrades(ctx context.Context, conditionID string, outcomeIndex, limit int) ([]types.PriceHistory, error) {
	const q = `
		SELECT * FROM price_history
		WHERE condition_id = $1 AND outcome_index = $2
		ORDER BY timestamp DESC
		LIMIT $3`
	var out []types.PriceHistory
	if err := s.db.SelectContext(ctx, &out, q, conditionID, outcomeIndex, limit); err != nil {
		return nil, fmt.Errorf("get recent outcome trades %s/%d: %w", conditionID, outcomeIndex, err)
	}
	return out, nil
}

// PruneOldPriceHistory deletes ticks older than cutoff for resolved
// conditions only — unresolved conditions are retained regardless of age.
func (s *Store) PruneOldPriceHistory(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `
		DELETE FROM price_history
		WHERE timestamp < $1
		AND condition_id NOT IN (SELECT condition_id FROM conditions WHERE resolved = false)`
	res, err := s.db.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune price history: %w", err)
	}
	return res.RowsAffected()
}
