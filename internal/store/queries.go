package store

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"polymarket-indexer/pkg/types"
)

// UserPnL is the operator-facing PnL summary for one user/condition.
type UserPnL struct {
	User            string
	ConditionID     string
	OutcomeIndex    int
	CurrentShares   decimal.Decimal
	AverageBuyPrice decimal.Decimal
	RealizedPnL     decimal.Decimal
	UnrealizedPnL   decimal.Decimal
	CurrentPrice    decimal.Decimal
}

// CalculateUserPnL combines a user's stored position with the market's
// latest yes/no price to produce realized + unrealized PnL across every
// outcome the user holds in conditionID.
func (s *Store) CalculateUserPnL(ctx context.Context, user, conditionID string) ([]UserPnL, error) {
	const posQ = `
		SELECT * FROM user_market_positions
		WHERE user_address = $1 AND condition_id = $2`
	var positions []types.UserMarketPosition
	if err := s.db.SelectContext(ctx, &positions, posQ, user, conditionID); err != nil {
		return nil, fmt.Errorf("calculate user pnl %s/%s: %w", user, conditionID, err)
	}
	if len(positions) == 0 {
		return nil, nil
	}

	var metrics types.MarketMetrics
	err := s.db.GetContext(ctx, &metrics, `SELECT * FROM market_metrics WHERE condition_id = $1`, conditionID)
	haveMetrics := err == nil
	if err != nil && !isNoRows(err) {
		return nil, fmt.Errorf("calculate user pnl metrics %s: %w", conditionID, err)
	}

	out := make([]UserPnL, 0, len(positions))
	for _, p := range positions {
		price := decimal.NewFromFloat(0.5)
		if haveMetrics {
			if p.OutcomeIndex == 0 {
				price = metrics.YesPrice
			} else {
				price = metrics.NoPrice
			}
		}
		out = append(out, UserPnL{
			User:            p.User,
			ConditionID:     p.ConditionID,
			OutcomeIndex:    p.OutcomeIndex,
			CurrentShares:   p.CurrentShares,
			AverageBuyPrice: p.AverageBuyPrice,
			RealizedPnL:     p.RealizedPnL,
			UnrealizedPnL:   p.UnrealizedPnL(price),
			CurrentPrice:    price,
		})
	}
	return out, nil
}
