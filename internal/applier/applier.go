// Package applier turns a decoded on-chain event into Store mutations,
// one Store transaction per event so the fact insert and every derived
// update it triggers commit or roll back together.
package applier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"polymarket-indexer/internal/chain"
	"polymarket-indexer/internal/derived"
	"polymarket-indexer/internal/store"
	"polymarket-indexer/pkg/types"
)

// Applier applies decoded events to the Store, dispatching by event name.
type Applier struct {
	store *store.Store
	log   *slog.Logger
}

func New(s *store.Store, log *slog.Logger) *Applier {
	return &Applier{store: s, log: log}
}

// Apply handles one decoded event inside a single transaction. A
// DataShapeError or InvariantError from a handler is archived to the event
// log and swallowed — it must not abort the batch. Any other error (a DB
// failure, for instance) rolls the transaction back and propagates; the
// Orchestrator then abandons the batch without advancing the checkpoint, so
// the next cycle re-pulls it.
func (a *Applier) Apply(ctx context.Context, ev types.DecodedEvent) error {
	return a.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		argsJSON, err := json.Marshal(ev.Args)
		if err != nil {
			return fmt.Errorf("marshal event args: %w", err)
		}

		handlerErr := a.dispatch(ctx, tx, ev)

		processed := handlerErr == nil
		if handlerErr != nil {
			var invErr *types.InvariantError
			var shapeErr *types.DataShapeError
			switch {
			case asInvariant(handlerErr, &invErr):
				a.log.Warn("skipping event on invariant violation", "event", ev.Name, "tx_hash", ev.TxHash, "log_index", ev.LogIndex, "err", invErr)
			case asDataShape(handlerErr, &shapeErr):
				a.log.Warn("skipping undecodable event", "event", ev.Name, "tx_hash", ev.TxHash, "log_index", ev.LogIndex, "err", shapeErr)
			default:
				return handlerErr // transient: abort the transaction, retry the batch
			}
		}

		return a.store.InsertEventLog(ctx, tx, types.EventLog{
			BlockNumber:     ev.BlockNumber,
			TxHash:          ev.TxHash,
			LogIndex:        ev.LogIndex,
			ContractAddress: ev.ContractAddress,
			EventName:       string(ev.Name),
			EventArgsJSON:   string(argsJSON),
			Processed:       processed,
		})
	})
}

func (a *Applier) dispatch(ctx context.Context, tx *sqlx.Tx, ev types.DecodedEvent) error {
	switch ev.Name {
	case types.EventConditionPreparation:
		args, ok := ev.Args.(types.ConditionPreparationArgs)
		if !ok {
			return &types.DataShapeError{Op: "applier.ConditionPreparation", Err: fmt.Errorf("unexpected args type %T", ev.Args)}
		}
		return a.applyConditionPreparation(ctx, tx, ev, args)
	case types.EventConditionResolution:
		args, ok := ev.Args.(types.ConditionResolutionArgs)
		if !ok {
			return &types.DataShapeError{Op: "applier.ConditionResolution", Err: fmt.Errorf("unexpected args type %T", ev.Args)}
		}
		return a.applyConditionResolution(ctx, tx, ev, args)
	case types.EventTransferSingle:
		args, ok := ev.Args.(types.TransferSingleArgs)
		if !ok {
			return &types.DataShapeError{Op: "applier.TransferSingle", Err: fmt.Errorf("unexpected args type %T", ev.Args)}
		}
		return a.applyTransferSingle(ctx, tx, ev, args)
	case types.EventOrderFilled:
		args, ok := ev.Args.(types.OrderFilledArgs)
		if !ok {
			return &types.DataShapeError{Op: "applier.OrderFilled", Err: fmt.Errorf("unexpected args type %T", ev.Args)}
		}
		return a.applyOrderFilled(ctx, tx, ev, args)
	default:
		return &types.DataShapeError{Op: "applier.dispatch", Err: fmt.Errorf("unrecognized event name %q", ev.Name)}
	}
}

func (a *Applier) applyConditionPreparation(ctx context.Context, tx *sqlx.Tx, ev types.DecodedEvent, args types.ConditionPreparationArgs) error {
	if err := a.store.CreateCondition(ctx, tx, types.Condition{
		ConditionID:      args.ConditionID,
		Oracle:           args.Oracle,
		QuestionID:       args.QuestionID,
		OutcomeSlotCount: args.OutcomeSlotCount,
		CreatedAtBlock:   ev.BlockNumber,
		CreatedAtTx:      ev.TxHash,
		CreatedAt:        ev.BlockTimestamp,
	}); err != nil {
		return err
	}

	tokens := make([]types.PositionToken, args.OutcomeSlotCount)
	for i := range tokens {
		tokens[i] = types.PositionToken{
			PositionID:   types.PositionID(args.ConditionID, i),
			ConditionID:  args.ConditionID,
			OutcomeIndex: i,
			TokenID:      "", // backfilled by the Enricher's catalog lookup once the on-chain id is observed
		}
	}
	return a.store.InsertPositionTokens(ctx, tx, tokens)
}

func (a *Applier) applyConditionResolution(ctx context.Context, tx *sqlx.Tx, ev types.DecodedEvent, args types.ConditionResolutionArgs) error {
	return a.store.ResolveCondition(ctx, tx, args.ConditionID, args.PayoutNumerators, ev.BlockNumber, ev.TxHash, ev.BlockTimestamp)
}

// resolvePositionToken looks up the PositionToken linked to the raw on-chain
// token id, if the Enricher's catalog lookup has already backfilled it
// (store.SetPositionTokenID). The position_id string is what trades and
// balances key on internally — see PositionID's doc comment — so that when
// no link exists yet, the raw on-chain id is stored verbatim instead. The
// row itself is never lost, but it keeps that raw id: a later link made by
// enrichment does not rewrite it, so it never joins to a condition.
func (a *Applier) resolvePositionToken(ctx context.Context, rawTokenID string) (*types.PositionToken, string, error) {
	pt, err := a.store.GetPositionTokenByTokenID(ctx, rawTokenID)
	if err != nil {
		return nil, "", err
	}
	if pt == nil {
		return nil, rawTokenID, nil
	}
	return pt, pt.PositionID, nil
}

func (a *Applier) applyTransferSingle(ctx context.Context, tx *sqlx.Tx, ev types.DecodedEvent, args types.TransferSingleArgs) error {
	rawTokenID := args.TokenID.String()
	_, tokenID, err := a.resolvePositionToken(ctx, rawTokenID)
	if err != nil {
		return err
	}
	value := decimal.NewFromBigInt(args.Value, 0)

	if args.From != types.ZeroAddress {
		if err := a.store.ApplyBalanceDelta(ctx, tx, args.From, tokenID, value.Neg(), ev.BlockNumber, ev.TxHash, ev.BlockTimestamp); err != nil {
			return err
		}
	}
	if args.To != types.ZeroAddress {
		if err := a.store.ApplyBalanceDelta(ctx, tx, args.To, tokenID, value, ev.BlockNumber, ev.TxHash, ev.BlockTimestamp); err != nil {
			return err
		}
	}
	return nil
}

func (a *Applier) applyOrderFilled(ctx context.Context, tx *sqlx.Tx, ev types.DecodedEvent, args types.OrderFilledArgs) error {
	rawTokenID := args.TokenID.String()
	pt, tokenID, err := a.resolvePositionToken(ctx, rawTokenID)
	if err != nil {
		return err
	}

	m := decimal.NewFromBigInt(args.MakerAmount, 0)
	t := decimal.NewFromBigInt(args.TakerAmount, 0)

	price := decimal.NewFromFloat(0.5)
	if m.IsPositive() {
		price = t.Div(m)
		if price.LessThan(decimal.Zero) {
			price = decimal.Zero
		} else if price.GreaterThan(decimal.NewFromInt(1)) {
			price = decimal.NewFromInt(1)
		}
	}

	orderID := args.OrderHash
	trade := types.Trade{
		TxHash:           ev.TxHash,
		LogIndex:         ev.LogIndex,
		BlockNumber:      ev.BlockNumber,
		BlockTimestamp:   ev.BlockTimestamp,
		ExchangeAddress:  ev.ContractAddress,
		Trader:           args.Taker,
		TokenID:          tokenID,
		CollateralToken:  chain.USDCCollateralAddress,
		TokenAmount:      m,
		CollateralAmount: t,
		Price:            price,
		IsBuy:            args.Side == 0,
		OrderID:          &orderID,
	}

	inserted, err := a.store.InsertTrade(ctx, tx, trade)
	if err != nil {
		return err
	}
	if !inserted {
		return nil // idempotent replay: already applied, derived updates must not re-run
	}

	if pt == nil {
		a.log.Warn("order filled references unlinked token id, trade stored without position update", "token_id", rawTokenID, "tx_hash", ev.TxHash)
		return nil
	}

	return derived.ApplyTrade(ctx, tx, a.store, *pt, trade)
}

func asInvariant(err error, target **types.InvariantError) bool {
	e, ok := err.(*types.InvariantError)
	if ok {
		*target = e
	}
	return ok
}

func asDataShape(err error, target **types.DataShapeError) bool {
	e, ok := err.(*types.DataShapeError)
	if ok {
		*target = e
	}
	return ok
}
