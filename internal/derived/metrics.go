package derived

import (
	"context"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"polymarket-indexer/internal/store"
	"polymarket-indexer/pkg/types"
)

const recentTradesWindow = 100

// RecomputeMarketMetrics rebuilds the MarketMetrics snapshot for one
// condition from its windowed trade aggregates and its most recent ticks on
// outcome 0 (the "yes" side of a binary market).
func RecomputeMarketMetrics(ctx context.Context, tx *sqlx.Tx, s *store.Store, conditionID string, now time.Time) error {
	vol1h, err := s.GetWindowAggregate(ctx, conditionID, now.Add(-1*time.Hour))
	if err != nil {
		return err
	}
	vol4h, err := s.GetWindowAggregate(ctx, conditionID, now.Add(-4*time.Hour))
	if err != nil {
		return err
	}
	vol12h, err := s.GetWindowAggregate(ctx, conditionID, now.Add(-12*time.Hour))
	if err != nil {
		return err
	}
	vol24h, err := s.GetWindowAggregate(ctx, conditionID, now.Add(-24*time.Hour))
	if err != nil {
		return err
	}

	ticks, err := s.GetRecentOutcomeTrades(ctx, conditionID, 0, recentTradesWindow)
	if err != nil {
		return err
	}

	liquidity, err := s.GetTotalLiquidity(ctx, conditionID)
	if err != nil {
		return err
	}

	m := types.MarketMetrics{
		ConditionID:      conditionID,
		Volume1h:         vol1h.Volume,
		Volume4h:         vol4h.Volume,
		Volume12h:        vol12h.Volume,
		Volume24h:        vol24h.Volume,
		TotalLiquidity:   liquidity,
		OpenInterest:     liquidity,
		TradeCount24h:    vol24h.TradeCount,
		UniqueTraders24h: vol24h.UniqueTraders,
		ComputedAt:       now,
	}

	if len(ticks) == 0 {
		m.YesPrice = decimal.NewFromFloat(0.5)
		m.NoPrice = decimal.NewFromFloat(0.5)
		m.YesPrice12hAgo = m.YesPrice
		m.YesPrice24hAgo = m.YesPrice
		return s.UpsertMarketMetrics(ctx, tx, m)
	}

	// ticks is newest-first; oldest element is the earliest in the window.
	last := ticks[0].Close
	m.YesPrice = last
	m.NoPrice = decimal.NewFromInt(1).Sub(last)

	m.YesPrice12hAgo = priceAt(ticks, now.Add(-12*time.Hour), last)
	m.YesPrice24hAgo = priceAt(ticks, now.Add(-24*time.Hour), last)
	m.Price12hChangePct = percentChange(last, m.YesPrice12hAgo)
	m.Price24hChangePct = percentChange(last, m.YesPrice24hAgo)

	firstInWindow := ticks[len(ticks)-1].Close
	if firstInWindow.IsPositive() {
		m.PriceMomentum = last.Sub(firstInWindow).Div(firstInWindow)
	}

	m.VolumeMomentum = volumeMomentum(ticks)

	if liquidity.IsPositive() {
		m.TurnoverRatio = vol24h.Volume.Div(liquidity)
	}

	m.AdjustedVolatility = populationStdDev(ticks)

	return s.UpsertMarketMetrics(ctx, tx, m)
}

// priceAt returns the price of the oldest tick still within [since, now],
// or current if the window holds no tick that old (4.3.4 step 4).
func priceAt(ticks []types.PriceHistory, since time.Time, current decimal.Decimal) decimal.Decimal {
	oldestInWindow := current
	found := false
	for _, t := range ticks {
		if t.Timestamp.Before(since) {
			continue
		}
		oldestInWindow = t.Close
		found = true
	}
	if !found {
		return current
	}
	return oldestInWindow
}

func percentChange(now, then decimal.Decimal) decimal.Decimal {
	if !then.IsPositive() {
		return decimal.Zero
	}
	return now.Sub(then).Div(then).Mul(decimal.NewFromInt(100))
}

// volumeMomentum splits the (newest-first) slice in half by index and
// compares the recent half's volume to the older half's.
func volumeMomentum(ticks []types.PriceHistory) decimal.Decimal {
	if len(ticks) < 2 {
		return decimal.Zero // B5: single-trade window
	}
	mid := len(ticks) / 2
	recent := sumVolume(ticks[:mid])
	older := sumVolume(ticks[mid:])
	if !older.IsPositive() {
		return decimal.Zero
	}
	return recent.Sub(older).Div(older)
}

func sumVolume(ticks []types.PriceHistory) decimal.Decimal {
	total := decimal.Zero
	for _, t := range ticks {
		total = total.Add(t.Volume)
	}
	return total
}

// populationStdDev computes the population (not sample) standard deviation
// of the slice's trade prices, per 4.3.4 step 8.
func populationStdDev(ticks []types.PriceHistory) decimal.Decimal {
	if len(ticks) < 2 {
		return decimal.Zero
	}
	prices := make([]float64, len(ticks))
	for i, t := range ticks {
		f, _ := t.Close.Float64()
		prices[i] = f
	}
	mean := stat.Mean(prices, nil)
	var sumSq float64
	for _, p := range prices {
		d := p - mean
		sumSq += d * d
	}
	variance := sumSq / float64(len(prices))
	return decimal.NewFromFloat(math.Sqrt(variance))
}
