package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"polymarket-indexer/pkg/types"
)

// GetUserMarketPosition returns the position row, or nil if the user has
// never traded this outcome.
func (s *Store) GetUserMarketPosition(ctx context.Context, tx *sqlx.Tx, user, conditionID string, outcomeIndex int) (*types.UserMarketPosition, error) {
	const q = `
		SELECT * FROM user_market_positions
		WHERE user_address = $1 AND condition_id = $2 AND outcome_index = $3
		FOR UPDATE`
	var p types.UserMarketPosition
	err := tx.GetContext(ctx, &p, q, user, conditionID, outcomeIndex)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user market position %s/%s/%d: %w", user, conditionID, outcomeIndex, err)
	}
	return &p, nil
}

// UpsertUserMarketPosition writes the full position row, inserting on first
// touch and overwriting every mutable field on update. Callers (the
// Derived-State Engine) own the arithmetic; this method only persists.
func (s *Store) UpsertUserMarketPosition(ctx context.Context, tx *sqlx.Tx, p types.UserMarketPosition) error {
	const q = `
		INSERT INTO user_market_positions (
			user_address, condition_id, outcome_index,
			total_shares_bought, total_shares_sold, current_shares,
			total_cost_basis, total_proceeds, average_buy_price, realized_pnl,
			first_trade_at, last_trade_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_address, condition_id, outcome_index) DO UPDATE SET
			total_shares_bought = EXCLUDED.total_shares_bought,
			total_shares_sold   = EXCLUDED.total_shares_sold,
			current_shares      = EXCLUDED.current_shares,
			total_cost_basis    = EXCLUDED.total_cost_basis,
			total_proceeds      = EXCLUDED.total_proceeds,
			average_buy_price   = EXCLUDED.average_buy_price,
			realized_pnl        = EXCLUDED.realized_pnl,
			last_trade_at       = EXCLUDED.last_trade_at`
	_, err := tx.ExecContext(ctx, q,
		p.User, p.ConditionID, p.OutcomeIndex,
		p.TotalSharesBought, p.TotalSharesSold, p.CurrentShares,
		p.TotalCostBasis, p.TotalProceeds, p.AverageBuyPrice, p.RealizedPnL,
		p.FirstTradeAt, p.LastTradeAt,
	)
	if err != nil {
		return fmt.Errorf("upsert user market position %s/%s/%d: %w", p.User, p.ConditionID, p.OutcomeIndex, err)
	}
	return nil
}

// GetTopPositions returns the largest open positions in a market, ordered by
// current_shares descending.
func (s *Store) GetTopPositions(ctx context.Context, conditionID string, limit int) ([]types.UserMarketPosition, error) {
	const q = `
		SELECT * FROM user_market_positions
		WHERE condition_id = $1 AND current_shares > 0
		ORDER BY current_shares DESC
		LIMIT $2`
	var out []types.UserMarketPosition
	if err := s.db.SelectContext(ctx, &out, q, conditionID, limit); err != nil {
		return nil, fmt.Errorf("get top positions %s: %w", conditionID, err)
	}
	return out, nil
}

// GetUserStats returns a user's aggregate stats row, or nil if absent.
func (s *Store) GetUserStats(ctx context.Context, tx *sqlx.Tx, user string) (*types.UserStats, error) {
	const q = `SELECT * FROM user_stats WHERE user_address = $1 FOR UPDATE`
	var st types.UserStats
	err := tx.GetContext(ctx, &st, q, user)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user stats %s: %w", user, err)
	}
	return &st, nil
}

// UpsertUserStats writes the full user-stats row.
func (s *Store) UpsertUserStats(ctx context.Context, tx *sqlx.Tx, st types.UserStats) error {
	const q = `
		INSERT INTO user_stats (user_address, total_volume, total_trades, first_trade_at, last_trade_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_address) DO UPDATE SET
			total_volume  = EXCLUDED.total_volume,
			total_trades  = EXCLUDED.total_trades,
			last_trade_at = EXCLUDED.last_trade_at`
	_, err := tx.ExecContext(ctx, q, st.User, st.TotalVolume, st.TotalTrades, st.FirstTradeAt, st.LastTradeAt)
	if err != nil {
		return fmt.Errorf("upsert user stats %s: %w", st.User, err)
	}
	return nil
}

// GetUserAggregateStats is the read-only operator-facing accessor.
func (s *Store) GetUserAggregateStats(ctx context.Context, user string) (*types.UserStats, error) {
	const q = `SELECT * FROM user_stats WHERE user_address = $1`
	var st types.UserStats
	err := s.db.GetContext(ctx, &st, q, user)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user aggregate stats %s: %w", user, err)
	}
	return &st, nil
}
