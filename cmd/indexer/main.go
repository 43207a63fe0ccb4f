// Command indexer continuously ingests Conditional Tokens Framework and
// CTF Exchange events off Polygon into a relational store, then serves
// derived market metrics and user PnL through the Store's query methods.
//
// Architecture:
//
//	main.go                  — entry point: loads config, wires components, waits for SIGINT/SIGTERM
//	internal/chain           — reads and decodes on-chain logs via go-ethereum
//	internal/applier         — turns decoded events into Store mutations, one tx per event
//	internal/derived         — position/PnL/price-history/market-metrics maintenance
//	internal/enrich          — off-chain metadata catalog merge
//	internal/maintenance     — periodic metric refresh + retention pruning
//	internal/orchestrator    — composes chain → applier → derived into one index cycle
//	internal/scheduler       — cron-like driver for index/enrich/maintenance
//	internal/store           — Postgres persistence via sqlx
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"polymarket-indexer/internal/applier"
	"polymarket-indexer/internal/chain"
	"polymarket-indexer/internal/config"
	"polymarket-indexer/internal/enrich"
	"polymarket-indexer/internal/maintenance"
	"polymarket-indexer/internal/orchestrator"
	"polymarket-indexer/internal/scheduler"
	"polymarket-indexer/internal/store"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("INDEXER_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.Database.URL, cfg.Database.ConnPoolSize, cfg.Database.QueryTimeout)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	reader, err := chain.NewReader(ctx, cfg.Chain)
	if err != nil {
		logger.Error("failed to create chain reader", "error", err)
		os.Exit(1)
	}
	defer reader.Close()

	app := applier.New(st, logger)
	orch := orchestrator.New(reader, app, st, cfg.Chain, logger)
	enricher := enrich.New(cfg.Enrichment, st, logger)
	maint := maintenance.New(st, cfg.Retention, logger)

	sched, err := scheduler.New(scheduler.Config{
		IntervalMinutes:  cfg.Indexer.IntervalMinutes,
		TriggerImmediate: cfg.Indexer.TriggerImmediate,
		IndexTask:        orch.RunCycle,
		EnrichTask:       enricher.Run,
		MaintenanceTask: func(taskCtx context.Context) error {
			return maint.Run(taskCtx, time.Now())
		},
	}, logger)
	if err != nil {
		logger.Error("failed to build scheduler", "error", err)
		os.Exit(1)
	}

	sched.Start(ctx)
	logger.Info("indexer started",
		"interval_minutes", cfg.Indexer.IntervalMinutes,
		"start_block", cfg.Chain.StartBlock,
		"batch_size", cfg.Chain.BatchSize,
	)

	<-ctx.Done()
	logger.Info("shutdown signal received, stopping scheduler")
	sched.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
