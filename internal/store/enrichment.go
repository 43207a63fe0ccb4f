package store

import (
	"context"
	"fmt"
	"time"
)

// EnrichmentFields is the set of off-chain metadata fields the Enricher may
// merge onto an existing Condition. Any nil field is left untouched.
type EnrichmentFields struct {
	ConditionID      string
	Question         *string
	Description      *string
	EndDate          *time.Time
	Category         *string
	ImageURL         *string
	ResolutionSource *string
}

// MergeConditionMetadata applies COALESCE semantics: every field is updated
// to COALESCE(new_value, existing_value), so a non-null existing field is
// never overwritten by a null incoming one. Unknown condition ids affect
// zero rows — callers should treat that as "skip, log".
func (s *Store) MergeConditionMetadata(ctx context.Context, f EnrichmentFields) (matched bool, err error) {
	const q = `
		UPDATE conditions SET
			question          = COALESCE($2, question),
			description       = COALESCE($3, description),
			end_date          = COALESCE($4, end_date),
			category          = COALESCE($5, category),
			image_url         = COALESCE($6, image_url),
			resolution_source = COALESCE($7, resolution_source)
		WHERE condition_id = $1`
	res, execErr := s.db.ExecContext(ctx, q, f.ConditionID, f.Question, f.Description, f.EndDate, f.Category, f.ImageURL, f.ResolutionSource)
	if execErr != nil {
		return false, fmt.Errorf("merge condition metadata %s: %w", f.ConditionID, execErr)
	}
	n, rerr := res.RowsAffected()
	if rerr != nil {
		return false, fmt.Errorf("merge condition metadata rows affected: %w", rerr)
	}
	return n > 0, nil
}
