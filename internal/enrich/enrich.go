// Package enrich fetches off-chain market metadata from the public catalog
// REST API and merges it onto existing Condition rows.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jmoiron/sqlx"

	"polymarket-indexer/internal/config"
	"polymarket-indexer/internal/store"
	"polymarket-indexer/pkg/types"
)

const pageSize = 500

// catalogDescriptor is the subset of the catalog API's market shape this
// indexer cares about. The API returns many more fields (pricing, rewards,
// order-book config); only identity, metadata, and the CLOB token ids are
// relevant here.
type catalogDescriptor struct {
	ConditionID      string `json:"conditionId"`
	Question         string `json:"question"`
	Description      string `json:"description"`
	EndDate          string `json:"endDate"`
	Category         string `json:"category"`
	Image            string `json:"image"`
	ResolutionSource string `json:"resolutionSource"`

	// ClobTokenIDs is a JSON-array-encoded string (the catalog API
	// double-encodes it), one on-chain integer token id per outcome, in
	// outcome-index order — e.g. `"[\"123...\",\"456...\"]"`. This is the
	// only signal this indexer has for the tokenId -> position_id
	// correspondence; see PositionID's doc comment and DESIGN.md.
	ClobTokenIDs string `json:"clobTokenIds"`
}

// Enricher pulls catalog pages and merges non-destructive metadata onto
// Conditions. Best-effort: every failure here is logged and swallowed, per
// 4.4 — enrichment never blocks or fails the indexing checkpoint.
type Enricher struct {
	http  *resty.Client
	store *store.Store
	log   *slog.Logger
}

func New(cfg config.EnrichmentConfig, s *store.Store, log *slog.Logger) *Enricher {
	client := resty.New().
		SetBaseURL(cfg.PolymarketAPIURL).
		SetTimeout(20 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)
	return &Enricher{http: client, store: s, log: log.With("component", "enricher")}
}

// Run walks the catalog one page at a time until a short page signals the
// end, merging every descriptor with an identifiable condition id and
// linking its clobTokenIds onto the matching PositionToken rows.
func (e *Enricher) Run(ctx context.Context) error {
	merged, skipped, linked := 0, 0, 0
	for offset := 0; ; offset += pageSize {
		page, err := e.fetchPage(ctx, offset)
		if err != nil {
			e.log.Warn("catalog page fetch failed, stopping this pass", "offset", offset, "err", err)
			break
		}
		for _, d := range page {
			if d.ConditionID == "" {
				skipped++
				continue
			}
			matched, err := e.mergeDescriptor(ctx, d)
			if err != nil {
				e.log.Warn("merge failed for condition", "condition_id", d.ConditionID, "err", err)
				continue
			}
			if matched {
				merged++
			} else {
				skipped++
			}

			n, err := e.linkTokenIDs(ctx, d)
			if err != nil {
				e.log.Warn("token id linking failed for condition", "condition_id", d.ConditionID, "err", err)
				continue
			}
			linked += n
		}
		if len(page) < pageSize {
			break
		}
	}
	e.log.Info("enrichment pass complete", "merged", merged, "skipped", skipped, "tokens_linked", linked)
	return nil
}

func (e *Enricher) fetchPage(ctx context.Context, offset int) ([]catalogDescriptor, error) {
	var page []catalogDescriptor
	resp, err := e.http.R().
		SetContext(ctx).
		SetQueryParam("limit", fmt.Sprintf("%d", pageSize)).
		SetQueryParam("offset", fmt.Sprintf("%d", offset)).
		SetResult(&page).
		Get("/markets")
	if err != nil {
		return nil, fmt.Errorf("fetch catalog page offset=%d: %w", offset, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch catalog page offset=%d: status %d", offset, resp.StatusCode())
	}
	return page, nil
}

func (e *Enricher) mergeDescriptor(ctx context.Context, d catalogDescriptor) (bool, error) {
	fields := store.EnrichmentFields{ConditionID: d.ConditionID}
	if d.Question != "" {
		fields.Question = &d.Question
	}
	if d.Description != "" {
		fields.Description = &d.Description
	}
	if d.Category != "" {
		fields.Category = &d.Category
	}
	if d.Image != "" {
		fields.ImageURL = &d.Image
	}
	if d.ResolutionSource != "" {
		fields.ResolutionSource = &d.ResolutionSource
	}
	if d.EndDate != "" {
		if t, ok := parseCatalogDate(d.EndDate); ok {
			fields.EndDate = &t
		} else {
			e.log.Warn("unparseable end date, leaving existing value untouched", "condition_id", d.ConditionID, "end_date", d.EndDate)
		}
	}
	return e.store.MergeConditionMetadata(ctx, fields)
}

// linkTokenIDs decodes clobTokenIds and backfills position_tokens.token_id
// for each outcome slot, the one real signal this indexer has for the
// tokenId -> position_id correspondence (PositionID is never derived
// arithmetically from the on-chain id — see DESIGN.md). A malformed or
// absent field is skipped, not fatal: trades against that condition are
// stored without a position/PnL update, and a later pass that links the ids
// does not revisit trades already stored.
func (e *Enricher) linkTokenIDs(ctx context.Context, d catalogDescriptor) (int, error) {
	if d.ClobTokenIDs == "" {
		return 0, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(d.ClobTokenIDs), &ids); err != nil {
		e.log.Warn("unparseable clobTokenIds, leaving tokens unlinked", "condition_id", d.ConditionID, "err", err)
		return 0, nil
	}

	linked := 0
	err := e.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		for outcomeIndex, tokenID := range ids {
			if tokenID == "" {
				continue
			}
			positionID := types.PositionID(d.ConditionID, outcomeIndex)
			if err := e.store.SetPositionTokenID(ctx, tx, positionID, tokenID); err != nil {
				return err
			}
			linked++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("link token ids %s: %w", d.ConditionID, err)
	}
	return linked, nil
}

// parseCatalogDate tolerates both RFC3339 timestamps and the bare
// YYYY-MM-DD shape the catalog sometimes returns for far-future end dates.
func parseCatalogDate(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
