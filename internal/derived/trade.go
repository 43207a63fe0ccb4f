// Package derived maintains everything computed from, rather than directly
// observed on, the chain: per-user positions and realized PnL, price-history
// ticks, and per-market rolling metrics.
package derived

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"polymarket-indexer/internal/store"
	"polymarket-indexer/pkg/types"
)

// ApplyTrade updates UserMarketPosition, UserStats, and the price-history
// tick for one matched Trade. Called by the Event Applier inside the same
// transaction as the Trade insert, so a skipped update (sell without a
// position) never leaves the fact row orphaned from its own transaction.
func ApplyTrade(ctx context.Context, tx *sqlx.Tx, s *store.Store, pt types.PositionToken, trade types.Trade) error {
	if err := applyPosition(ctx, tx, s, pt, trade); err != nil {
		var invErr *types.InvariantError
		if asInvariant(err, &invErr) {
			slog.Warn("skipping position update", "err", invErr)
		} else {
			return err
		}
	}
	if err := applyUserStats(ctx, tx, s, trade); err != nil {
		return err
	}
	return appendPriceHistoryTick(ctx, tx, s, pt, trade)
}

func applyPosition(ctx context.Context, tx *sqlx.Tx, s *store.Store, pt types.PositionToken, trade types.Trade) error {
	existing, err := s.GetUserMarketPosition(ctx, tx, trade.Trader, pt.ConditionID, pt.OutcomeIndex)
	if err != nil {
		return err
	}

	pos := types.UserMarketPosition{
		User:         trade.Trader,
		ConditionID:  pt.ConditionID,
		OutcomeIndex: pt.OutcomeIndex,
		FirstTradeAt: trade.BlockTimestamp,
		LastTradeAt:  trade.BlockTimestamp,
	}
	if existing != nil {
		pos = *existing
		pos.LastTradeAt = trade.BlockTimestamp
	}

	shares := trade.TokenAmount
	amount := trade.CollateralAmount

	if trade.IsBuy {
		pos.TotalSharesBought = pos.TotalSharesBought.Add(shares)
		pos.CurrentShares = pos.CurrentShares.Add(shares)
		pos.TotalCostBasis = pos.TotalCostBasis.Add(amount)
		if pos.TotalSharesBought.IsPositive() {
			pos.AverageBuyPrice = pos.TotalCostBasis.Div(pos.TotalSharesBought)
		}
	} else {
		if existing == nil || existing.CurrentShares.LessThan(shares) {
			return &types.InvariantError{Op: "derived.applyPosition", Err: fmt.Errorf("sell of %s shares exceeds held position for %s/%s/%d", shares, trade.Trader, pt.ConditionID, pt.OutcomeIndex)}
		}
		pos.TotalSharesSold = pos.TotalSharesSold.Add(shares)
		pos.CurrentShares = pos.CurrentShares.Sub(shares)
		pos.TotalProceeds = pos.TotalProceeds.Add(amount)
		realizedDelta := amount.Sub(pos.AverageBuyPrice.Mul(shares))
		pos.RealizedPnL = pos.RealizedPnL.Add(realizedDelta)
	}

	return s.UpsertUserMarketPosition(ctx, tx, pos)
}

func applyUserStats(ctx context.Context, tx *sqlx.Tx, s *store.Store, trade types.Trade) error {
	existing, err := s.GetUserStats(ctx, tx, trade.Trader)
	if err != nil {
		return err
	}

	st := types.UserStats{
		User:         trade.Trader,
		TotalVolume:  trade.CollateralAmount,
		TotalTrades:  1,
		FirstTradeAt: trade.BlockTimestamp,
		LastTradeAt:  trade.BlockTimestamp,
	}
	if existing != nil {
		st = *existing
		st.TotalVolume = st.TotalVolume.Add(trade.CollateralAmount)
		st.TotalTrades++
		st.LastTradeAt = trade.BlockTimestamp
	}
	return s.UpsertUserStats(ctx, tx, st)
}

func appendPriceHistoryTick(ctx context.Context, tx *sqlx.Tx, s *store.Store, pt types.PositionToken, trade types.Trade) error {
	return s.InsertPriceHistoryTick(ctx, tx, types.PriceHistory{
		ConditionID:  pt.ConditionID,
		OutcomeIndex: pt.OutcomeIndex,
		BlockNumber:  trade.BlockNumber,
		Timestamp:    trade.BlockTimestamp,
		Open:         trade.Price,
		High:         trade.Price,
		Low:          trade.Price,
		Close:        trade.Price,
		Volume:       trade.CollateralAmount,
		TradeCount:   1,
	})
}

func asInvariant(err error, target **types.InvariantError) bool {
	e, ok := err.(*types.InvariantError)
	if ok {
		*target = e
	}
	return ok
}
