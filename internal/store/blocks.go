package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"polymarket-indexer/pkg/types"
)

// UpsertBlock records an observed block header. Immutable thereafter, so a
// conflict on number is a no-op.
func (s *Store) UpsertBlock(ctx context.Context, tx *sqlx.Tx, b types.Block) error {
	const q = `
		INSERT INTO blocks (number, hash, parent_hash, timestamp, gas_used, gas_limit)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (number) DO NOTHING`
	_, err := tx.ExecContext(ctx, q, b.Number, b.Hash, b.ParentHash, b.Timestamp, b.GasUsed, b.GasLimit)
	if err != nil {
		return fmt.Errorf("upsert block %d: %w", b.Number, err)
	}
	return nil
}

// CreateCondition inserts a Condition on first ConditionPreparation for its
// id, leaving metadata fields NULL for the Enricher to fill later. A
// conflict on condition_id (idempotent replay) is a no-op.
func (s *Store) CreateCondition(ctx context.Context, tx *sqlx.Tx, c types.Condition) error {
	const q = `
		INSERT INTO conditions (
			condition_id, oracle, question_id, outcome_slot_count,
			created_at_block, created_at_tx, created_at, resolved
		) VALUES ($1, $2, $3, $4, $5, $6, $7, false)
		ON CONFLICT (condition_id) DO NOTHING`
	_, err := tx.ExecContext(ctx, q,
		c.ConditionID, c.Oracle, c.QuestionID, c.OutcomeSlotCount,
		c.CreatedAtBlock, c.CreatedAtTx, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create condition %s: %w", c.ConditionID, err)
	}
	return nil
}

// ResolveCondition marks a Condition resolved with its payout numerators.
// Idempotent: re-applying the same resolution leaves the row unchanged.
func (s *Store) ResolveCondition(ctx context.Context, tx *sqlx.Tx, conditionID string, payoutNumerators []int64, block uint64, txHash string, resolvedAt time.Time) error {
	const q = `
		UPDATE conditions
		SET resolved = true,
		    payout_numerators = $2,
		    resolved_at_block = $3,
		    resolved_at_tx = $4,
		    resolved_at = $5
		WHERE condition_id = $1 AND resolved = false`
	_, err := tx.ExecContext(ctx, q, conditionID, pq.Int64Array(payoutNumerators), block, txHash, resolvedAt)
	if err != nil {
		return fmt.Errorf("resolve condition %s: %w", conditionID, err)
	}
	return nil
}

// GetCondition fetches one Condition row, or nil if absent.
func (s *Store) GetCondition(ctx context.Context, conditionID string) (*types.Condition, error) {
	var c types.Condition
	err := s.db.GetContext(ctx, &c, `SELECT * FROM conditions WHERE condition_id = $1`, conditionID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get condition %s: %w", conditionID, err)
	}
	return &c, nil
}

// InsertPositionTokens creates the k PositionToken rows for a freshly
// observed condition. Conflicts (idempotent replay) are ignored.
func (s *Store) InsertPositionTokens(ctx context.Context, tx *sqlx.Tx, tokens []types.PositionToken) error {
	const q = `
		INSERT INTO position_tokens (position_id, condition_id, outcome_index, token_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (position_id) DO NOTHING`
	for _, t := range tokens {
		if _, err := tx.ExecContext(ctx, q, t.PositionID, t.ConditionID, t.OutcomeIndex, t.TokenID); err != nil {
			return fmt.Errorf("insert position token %s: %w", t.PositionID, err)
		}
	}
	return nil
}

// SetPositionTokenID backfills the on-chain integer token id once it is
// first observed via the Enricher's catalog lookup (clobTokenIds). Safe to
// call repeatedly; a no-op once a token id is already set.
func (s *Store) SetPositionTokenID(ctx context.Context, tx *sqlx.Tx, positionID, tokenID string) error {
	const q = `UPDATE position_tokens SET token_id = $2 WHERE position_id = $1 AND token_id = ''`
	_, err := tx.ExecContext(ctx, q, positionID, tokenID)
	if err != nil {
		return fmt.Errorf("set position token id %s: %w", positionID, err)
	}
	return nil
}

// GetPositionTokenByTokenID resolves the on-chain tokenId to its
// (condition_id, outcome_index) via the populated lookup table. Returns nil
// if the token id has not been linked to a condition yet.
func (s *Store) GetPositionTokenByTokenID(ctx context.Context, tokenID string) (*types.PositionToken, error) {
	var pt types.PositionToken
	err := s.db.GetContext(ctx, &pt, `SELECT * FROM position_tokens WHERE token_id = $1`, tokenID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get position token %s: %w", tokenID, err)
	}
	return &pt, nil
}
