package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"polymarket-indexer/pkg/types"
)

// WindowAggregate is the volume/trade-count/unique-trader aggregate for one
// time window, used to build a MarketMetrics row.
type WindowAggregate struct {
	Volume        decimal.Decimal `db:"volume"`
	TradeCount    int64           `db:"trade_count"`
	UniqueTraders int64           `db:"unique_traders"`
}

// GetWindowAggregate sums trades joined to a condition's position tokens
// since `since`.
func (s *Store) GetWindowAggregate(ctx context.Context, conditionID string, since time.Time) (WindowAggregate, error) {
	const q = `
		SELECT
			COALESCE(SUM(t.collateral_amount), 0) AS volume,
			COUNT(*) AS trade_count,
			COUNT(DISTINCT t.trader) AS unique_traders
		FROM trades t
		JOIN position_tokens pt ON pt.position_id = t.token_id
		WHERE pt.condition_id = $1 AND t.block_timestamp >= $2`
	var agg WindowAggregate
	if err := s.db.GetContext(ctx, &agg, q, conditionID, since); err != nil {
		return WindowAggregate{}, fmt.Errorf("get window aggregate %s: %w", conditionID, err)
	}
	return agg, nil
}

// GetTotalLiquidity sums the current balances of every position token in a
// condition — the open-interest proxy used as the turnover-ratio
// denominator.
func (s *Store) GetTotalLiquidity(ctx context.Context, conditionID string) (decimal.Decimal, error) {
	const q = `
		SELECT COALESCE(SUM(b.balance), 0)
		FROM balances b
		JOIN position_tokens pt ON pt.position_id = b.token_id
		WHERE pt.condition_id = $1`
	var total decimal.Decimal
	if err := s.db.GetContext(ctx, &total, q, conditionID); err != nil {
		return decimal.Zero, fmt.Errorf("get total liquidity %s: %w", conditionID, err)
	}
	return total, nil
}

// UpsertMarketMetrics overwrites the per-market metrics snapshot.
func (s *Store) UpsertMarketMetrics(ctx context.Context, tx *sqlx.Tx, m types.MarketMetrics) error {
	const q = `
		INSERT INTO market_metrics (
			condition_id, volume_1h, volume_4h, volume_12h, volume_24h,
			yes_price, no_price, yes_price_12h_ago, yes_price_24h_ago,
			price_12h_change_pct, price_24h_change_pct,
			total_liquidity, open_interest, trade_count_24h, unique_traders_24h,
			price_momentum, volume_momentum, turnover_ratio, adjusted_volatility,
			computed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		ON CONFLICT (condition_id) DO UPDATE SET
			volume_1h = EXCLUDED.volume_1h,
			volume_4h = EXCLUDED.volume_4h,
			volume_12h = EXCLUDED.volume_12h,
			volume_24h = EXCLUDED.volume_24h,
			yes_price = EXCLUDED.yes_price,
			no_price = EXCLUDED.no_price,
			yes_price_12h_ago = EXCLUDED.yes_price_12h_ago,
			yes_price_24h_ago = EXCLUDED.yes_price_24h_ago,
			price_12h_change_pct = EXCLUDED.price_12h_change_pct,
			price_24h_change_pct = EXCLUDED.price_24h_change_pct,
			total_liquidity = EXCLUDED.total_liquidity,
			open_interest = EXCLUDED.open_interest,
			trade_count_24h = EXCLUDED.trade_count_24h,
			unique_traders_24h = EXCLUDED.unique_traders_24h,
			price_momentum = EXCLUDED.price_momentum,
			volume_momentum = EXCLUDED.volume_momentum,
			turnover_ratio = EXCLUDED.turnover_ratio,
			adjusted_volatility = EXCLUDED.adjusted_volatility,
			computed_at = EXCLUDED.computed_at`
	_, err := tx.ExecContext(ctx, q,
		m.ConditionID, m.Volume1h, m.Volume4h, m.Volume12h, m.Volume24h,
		m.YesPrice, m.NoPrice, m.YesPrice12hAgo, m.YesPrice24hAgo,
		m.Price12hChangePct, m.Price24hChangePct,
		m.TotalLiquidity, m.OpenInterest, m.TradeCount24h, m.UniqueTraders24h,
		m.PriceMomentum, m.VolumeMomentum, m.TurnoverRatio, m.AdjustedVolatility,
		m.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert market metrics %s: %w", m.ConditionID, err)
	}
	return nil
}

// GetConditionsTouchedSince returns conditions with at least one trade since
// `since`, capped at limit — the per-cycle recompute trigger set.
func (s *Store) GetConditionsTouchedSince(ctx context.Context, since time.Time, limit int) ([]string, error) {
	const q = `
		SELECT DISTINCT pt.condition_id
		FROM trades t
		JOIN position_tokens pt ON pt.position_id = t.token_id
		WHERE t.block_timestamp >= $1
		LIMIT $2`
	var out []string
	if err := s.db.SelectContext(ctx, &out, q, since, limit); err != nil {
		return nil, fmt.Errorf("get conditions touched since: %w", err)
	}
	return out, nil
}

// GetActiveConditions returns up to limit unresolved condition ids, for the
// Maintenance pass's full recompute sweep.
func (s *Store) GetActiveConditions(ctx context.Context, limit int) ([]string, error) {
	const q = `SELECT condition_id FROM conditions WHERE resolved = false LIMIT $1`
	var out []string
	if err := s.db.SelectContext(ctx, &out, q, limit); err != nil {
		return nil, fmt.Errorf("get active conditions: %w", err)
	}
	return out, nil
}

// ActiveMarket is the joined Condition + MarketMetrics shape returned by
// GetActiveMarkets.
type ActiveMarket struct {
	types.Condition
	Metrics *types.MarketMetrics
}

// GetActiveMarkets returns up to limit unresolved conditions with their
// latest metrics snapshot, most recently created condition first.
func (s *Store) GetActiveMarkets(ctx context.Context, limit int) ([]ActiveMarket, error) {
	const condQ = `SELECT * FROM conditions WHERE resolved = false ORDER BY created_at DESC LIMIT $1`
	var conds []types.Condition
	if err := s.db.SelectContext(ctx, &conds, condQ, limit); err != nil {
		return nil, fmt.Errorf("get active markets: %w", err)
	}

	out := make([]ActiveMarket, 0, len(conds))
	for _, c := range conds {
		var m types.MarketMetrics
		err := s.db.GetContext(ctx, &m, `SELECT * FROM market_metrics WHERE condition_id = $1`, c.ConditionID)
		am := ActiveMarket{Condition: c}
		switch {
		case err == nil:
			am.Metrics = &m
		case isNoRows(err):
			// no metrics computed yet
		default:
			return nil, fmt.Errorf("get metrics for %s: %w", c.ConditionID, err)
		}
		out = append(out, am)
	}
	return out, nil
}
