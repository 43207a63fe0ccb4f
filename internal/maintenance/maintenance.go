// Package maintenance runs the slow-cadence sweep: refreshing metrics for
// every active market and pruning cold data past its retention horizon.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"polymarket-indexer/internal/config"
	"polymarket-indexer/internal/derived"
	"polymarket-indexer/internal/store"
)

const maxActiveMarketsPerRun = 1000

// Maintenance recomputes metrics for active markets and prunes cold rows
// per the configured retention windows. Never blocks indexing — any error
// here is logged and the pass moves on rather than propagating to the
// Scheduler as a hard failure.
type Maintenance struct {
	store     *store.Store
	retention config.RetentionConfig
	log       *slog.Logger
}

func New(s *store.Store, retention config.RetentionConfig, log *slog.Logger) *Maintenance {
	return &Maintenance{store: s, retention: retention, log: log.With("component", "maintenance")}
}

// Run refreshes metrics for active markets, then prunes price history and
// event log rows older than their retention horizons.
func (m *Maintenance) Run(ctx context.Context, now time.Time) error {
	if err := m.refreshActiveMetrics(ctx, now); err != nil {
		m.log.Error("metric refresh pass failed", "err", err)
	}

	priceCutoff := now.AddDate(0, 0, -m.retention.PriceHistoryDays)
	pruned, err := m.store.PruneOldPriceHistory(ctx, priceCutoff)
	if err != nil {
		m.log.Error("price history prune failed", "err", err)
	} else {
		m.log.Info("pruned price history", "rows", pruned, "cutoff", priceCutoff)
	}

	eventCutoff := now.AddDate(0, 0, -m.retention.EventLogDays)
	prunedEvents, err := m.store.PruneOldEventLogs(ctx, eventCutoff)
	if err != nil {
		m.log.Error("event log prune failed", "err", err)
	} else {
		m.log.Info("pruned event log", "rows", prunedEvents, "cutoff", eventCutoff)
	}

	return nil
}

func (m *Maintenance) refreshActiveMetrics(ctx context.Context, now time.Time) error {
	conditionIDs, err := m.store.GetActiveConditions(ctx, maxActiveMarketsPerRun)
	if err != nil {
		return err
	}

	refreshed := 0
	for _, conditionID := range conditionIDs {
		err := m.store.WithTx(ctx, func(tx *sqlx.Tx) error {
			return derived.RecomputeMarketMetrics(ctx, tx, m.store, conditionID, now)
		})
		if err != nil {
			m.log.Warn("metric recompute failed for condition", "condition_id", conditionID, "err", err)
			continue
		}
		refreshed++
	}
	m.log.Info("refreshed active market metrics", "count", refreshed, "total_active", len(conditionIDs))
	return nil
}
