package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"polymarket-indexer/pkg/types"
)

// InsertEventLog archives one handled (or skipped) event. Conflicts
// (idempotent replay) are ignored — the first recording wins.
func (s *Store) InsertEventLog(ctx context.Context, tx *sqlx.Tx, e types.EventLog) error {
	const q = `
		INSERT INTO event_log (block_number, tx_hash, log_index, contract_address, event_name, event_args_json, processed, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (tx_hash, log_index) DO NOTHING`
	_, err := tx.ExecContext(ctx, q, e.BlockNumber, e.TxHash, e.LogIndex, e.ContractAddress, e.EventName, e.EventArgsJSON, e.Processed)
	if err != nil {
		return fmt.Errorf("insert event log %s/%d: %w", e.TxHash, e.LogIndex, err)
	}
	return nil
}

// PruneOldEventLogs deletes archived events older than cutoff.
func (s *Store) PruneOldEventLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM event_log WHERE recorded_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune event logs: %w", err)
	}
	return res.RowsAffected()
}
