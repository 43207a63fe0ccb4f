// Package store provides transactional PostgreSQL persistence for the
// indexing pipeline: upserts for on-chain facts, derived-state tables, and
// the aggregation queries the operator-facing layer consumes.
//
// Every mutation that must be atomic with a fact insert runs inside one
// *sqlx.Tx, obtained via WithTx — the transactional form of the crash-safe
// write pattern "stage the change, then commit atomically".
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/lib/pq"
)

// Store wraps a PostgreSQL connection pool.
type Store struct {
	db           *sqlx.DB
	queryTimeout time.Duration
}

// Open connects to Postgres and configures the pool per the supplied
// connection_pool_size / query_timeout settings.
func Open(databaseURL string, poolSize int, queryTimeout time.Duration) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}
	db.SetMaxOpenConns(poolSize)
	db.SetMaxIdleConns(poolSize)
	return &Store{db: db, queryTimeout: queryTimeout}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// ctx applies the configured query timeout to a caller context.
func (s *Store) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, s.queryTimeout)
}

// WithTx runs fn inside one transaction, committing on success and rolling
// back on any error (including a panic, which is re-raised after rollback).
func (s *Store) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	cctx, cancel := s.ctx(ctx)
	defer cancel()

	tx, err := s.db.BeginTxx(cctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
