package store

import (
	"context"
	"fmt"

	"polymarket-indexer/pkg/types"
)

// GetIndexerState returns the checkpoint row for a named sub-indexer, or nil
// if it has never run (caller defaults to START_BLOCK).
func (s *Store) GetIndexerState(ctx context.Context, name string) (*types.IndexerState, error) {
	const q = `SELECT * FROM indexer_state WHERE name = $1`
	var st types.IndexerState
	err := s.db.GetContext(ctx, &st, q, name)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get indexer state %s: %w", name, err)
	}
	return &st, nil
}

// UpdateIndexerState advances the checkpoint on a successful batch.
// total_events_processed is additive; any prior error is cleared.
func (s *Store) UpdateIndexerState(ctx context.Context, name string, lastProcessedBlock uint64, eventsProcessedDelta int64) error {
	const q = `
		INSERT INTO indexer_state (name, last_processed_block, status, error_message, total_events_processed, updated_at)
		VALUES ($1, $2, 'RUNNING', NULL, $3, NOW())
		ON CONFLICT (name) DO UPDATE SET
			last_processed_block   = EXCLUDED.last_processed_block,
			status                 = 'RUNNING',
			error_message          = NULL,
			total_events_processed = indexer_state.total_events_processed + $3,
			updated_at             = NOW()`
	_, err := s.db.ExecContext(ctx, q, name, lastProcessedBlock, eventsProcessedDelta)
	if err != nil {
		return fmt.Errorf("update indexer state %s: %w", name, err)
	}
	return nil
}

// MarkIndexerIdle sets status IDLE without moving the checkpoint — used
// when the sub-indexer is already caught up to the chain head (B2).
func (s *Store) MarkIndexerIdle(ctx context.Context, name string) error {
	const q = `
		INSERT INTO indexer_state (name, last_processed_block, status, error_message, total_events_processed, updated_at)
		VALUES ($1, 0, 'IDLE', NULL, 0, NOW())
		ON CONFLICT (name) DO UPDATE SET status = 'IDLE', error_message = NULL, updated_at = NOW()`
	_, err := s.db.ExecContext(ctx, q, name)
	if err != nil {
		return fmt.Errorf("mark indexer idle %s: %w", name, err)
	}
	return nil
}

// MarkIndexerError records a batch failure without moving the checkpoint;
// the next cycle re-pulls the same range.
func (s *Store) MarkIndexerError(ctx context.Context, name, message string) error {
	const q = `
		INSERT INTO indexer_state (name, last_processed_block, status, error_message, total_events_processed, updated_at)
		VALUES ($1, 0, 'ERROR', $2, 0, NOW())
		ON CONFLICT (name) DO UPDATE SET status = 'ERROR', error_message = $2, updated_at = NOW()`
	_, err := s.db.ExecContext(ctx, q, name, message)
	if err != nil {
		return fmt.Errorf("mark indexer error %s: %w", name, err)
	}
	return nil
}

// GetIndexerStats returns every sub-indexer's checkpoint row, for the
// operator-facing status output.
func (s *Store) GetIndexerStats(ctx context.Context) ([]types.IndexerState, error) {
	var out []types.IndexerState
	if err := s.db.SelectContext(ctx, &out, `SELECT * FROM indexer_state ORDER BY name`); err != nil {
		return nil, fmt.Errorf("get indexer stats: %w", err)
	}
	return out, nil
}
