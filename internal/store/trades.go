package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"polymarket-indexer/pkg/types"
)

// InsertTrade records a matched order fill, keyed by (tx_hash, log_index).
// Returns inserted=false when the row already existed (idempotent replay) —
// callers MUST skip derived-state updates in that case, since those updates
// are not themselves idempotent to re-application.
func (s *Store) InsertTrade(ctx context.Context, tx *sqlx.Tx, t types.Trade) (inserted bool, err error) {
	const q = `
		INSERT INTO trades (
			tx_hash, log_index, block_number, block_timestamp, exchange_address,
			trader, token_id, collateral_token, token_amount, collateral_amount,
			price, is_buy, order_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (tx_hash, log_index) DO NOTHING`
	res, err := tx.ExecContext(ctx, q,
		t.TxHash, t.LogIndex, t.BlockNumber, t.BlockTimestamp, t.ExchangeAddress,
		t.Trader, t.TokenID, t.CollateralToken, t.TokenAmount, t.CollateralAmount,
		t.Price, t.IsBuy, t.OrderID,
	)
	if err != nil {
		return false, fmt.Errorf("insert trade %s/%d: %w", t.TxHash, t.LogIndex, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert trade rows affected: %w", err)
	}
	return n > 0, nil
}

// GetMarketTrades returns the most recent trades for a condition (joined via
// position_tokens), newest first.
func (s *Store) GetMarketTrades(ctx context.Context, conditionID string, limit int) ([]types.Trade, error) {
	const q = `
		SELECT t.* FROM trades t
		JOIN position_tokens pt ON pt.position_id = t.token_id
		WHERE pt.condition_id = $1
		ORDER BY t.block_number DESC, t.log_index DESC
		LIMIT $2`
	var out []types.Trade
	if err := s.db.SelectContext(ctx, &out, q, conditionID, limit); err != nil {
		return nil, fmt.Errorf("get market trades %s: %w", conditionID, err)
	}
	return out, nil
}

// ApplyBalanceDelta adds delta (may be negative, for outgoing transfers) to
// a user's token balance, creating the row on first touch.
func (s *Store) ApplyBalanceDelta(ctx context.Context, tx *sqlx.Tx, user, tokenID string, delta decimal.Decimal, block uint64, txHash string, at time.Time) error {
	const q = `
		INSERT INTO balances (user_address, token_id, balance, last_updated_block, last_updated_tx, last_updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_address, token_id) DO UPDATE SET
			balance = balances.balance + EXCLUDED.balance,
			last_updated_block = EXCLUDED.last_updated_block,
			last_updated_tx = EXCLUDED.last_updated_tx,
			last_updated_at = EXCLUDED.last_updated_at`
	_, err := tx.ExecContext(ctx, q, user, tokenID, delta, block, txHash, at)
	if err != nil {
		return fmt.Errorf("apply balance delta %s/%s: %w", user, tokenID, err)
	}
	return nil
}
