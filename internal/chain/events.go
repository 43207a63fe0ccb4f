package chain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"polymarket-indexer/pkg/types"
)

// eventTopic0 maps each recognized event's signature hash to its name, so a
// raw log can be classified before being routed to its decoder.
var eventTopic0 = map[common.Hash]types.EventName{
	abiConditionPreparation.Events["ConditionPreparation"].ID: types.EventConditionPreparation,
	abiConditionResolution.Events["ConditionResolution"].ID:   types.EventConditionResolution,
	abiTransferSingle.Events["TransferSingle"].ID:             types.EventTransferSingle,
	abiOrderFilled.Events["OrderFilled"].ID:                   types.EventOrderFilled,
}

// classify returns the recognized event name for a raw log's topic0, or
// ("", false) if the log isn't one of the four events this indexer tracks.
func classify(log gethtypes.Log) (types.EventName, bool) {
	if len(log.Topics) == 0 {
		return "", false
	}
	name, ok := eventTopic0[log.Topics[0]]
	return name, ok
}

// decode converts a raw go-ethereum log into a DecodedEvent, dispatching on
// its topic0. blockTime is the timestamp of log.BlockNumber, resolved by the
// caller (Reader caches these per batch to avoid one header fetch per log).
func decode(log gethtypes.Log, blockTime time.Time) (types.DecodedEvent, error) {
	name, ok := classify(log)
	if !ok {
		return types.DecodedEvent{}, fmt.Errorf("unrecognized event topic0 %s", log.Topics[0].Hex())
	}

	base := types.DecodedEvent{
		Name:            name,
		ContractAddress: log.Address.Hex(),
		BlockNumber:     log.BlockNumber,
		BlockTimestamp:  blockTime,
		TxHash:          log.TxHash.Hex(),
		LogIndex:        int(log.Index),
	}

	var (
		args any
		err  error
	)
	switch name {
	case types.EventConditionPreparation:
		args, err = decodeConditionPreparation(log)
	case types.EventConditionResolution:
		args, err = decodeConditionResolution(log)
	case types.EventTransferSingle:
		args, err = decodeTransferSingle(log)
	case types.EventOrderFilled:
		args, err = decodeOrderFilled(log)
	}
	if err != nil {
		return types.DecodedEvent{}, fmt.Errorf("decode %s: %w", name, err)
	}
	base.Args = args
	return base, nil
}

func decodeConditionPreparation(log gethtypes.Log) (types.ConditionPreparationArgs, error) {
	if len(log.Topics) < 4 {
		return types.ConditionPreparationArgs{}, fmt.Errorf("want 4 topics, got %d", len(log.Topics))
	}
	var unpacked struct {
		OutcomeSlotCount *big.Int
	}
	if err := abiConditionPreparation.UnpackIntoInterface(&unpacked, "ConditionPreparation", log.Data); err != nil {
		return types.ConditionPreparationArgs{}, err
	}
	return types.ConditionPreparationArgs{
		ConditionID:      log.Topics[1].Hex(),
		Oracle:           topicToAddress(log.Topics[2]).Hex(),
		QuestionID:       log.Topics[3].Hex(),
		OutcomeSlotCount: int(unpacked.OutcomeSlotCount.Int64()),
	}, nil
}

func decodeConditionResolution(log gethtypes.Log) (types.ConditionResolutionArgs, error) {
	if len(log.Topics) < 4 {
		return types.ConditionResolutionArgs{}, fmt.Errorf("want 4 topics, got %d", len(log.Topics))
	}
	var unpacked struct {
		OutcomeSlotCount *big.Int
		PayoutNumerators []*big.Int
	}
	if err := abiConditionResolution.UnpackIntoInterface(&unpacked, "ConditionResolution", log.Data); err != nil {
		return types.ConditionResolutionArgs{}, err
	}
	payouts := make([]int64, len(unpacked.PayoutNumerators))
	for i, p := range unpacked.PayoutNumerators {
		payouts[i] = p.Int64()
	}
	return types.ConditionResolutionArgs{
		ConditionID:      log.Topics[1].Hex(),
		Oracle:           topicToAddress(log.Topics[2]).Hex(),
		QuestionID:       log.Topics[3].Hex(),
		PayoutNumerators: payouts,
	}, nil
}

func decodeTransferSingle(log gethtypes.Log) (types.TransferSingleArgs, error) {
	if len(log.Topics) < 4 {
		return types.TransferSingleArgs{}, fmt.Errorf("want 4 topics, got %d", len(log.Topics))
	}
	var unpacked struct {
		Id    *big.Int
		Value *big.Int
	}
	if err := abiTransferSingle.UnpackIntoInterface(&unpacked, "TransferSingle", log.Data); err != nil {
		return types.TransferSingleArgs{}, err
	}
	return types.TransferSingleArgs{
		Operator: topicToAddress(log.Topics[1]).Hex(),
		From:     topicToAddress(log.Topics[2]).Hex(),
		To:       topicToAddress(log.Topics[3]).Hex(),
		TokenID:  unpacked.Id,
		Value:    unpacked.Value,
	}, nil
}

func decodeOrderFilled(log gethtypes.Log) (types.OrderFilledArgs, error) {
	if len(log.Topics) < 4 {
		return types.OrderFilledArgs{}, fmt.Errorf("want 4 topics, got %d", len(log.Topics))
	}
	var unpacked struct {
		TokenId     *big.Int
		MakerAmount *big.Int
		TakerAmount *big.Int
		Side        uint8
	}
	if err := abiOrderFilled.UnpackIntoInterface(&unpacked, "OrderFilled", log.Data); err != nil {
		return types.OrderFilledArgs{}, err
	}
	return types.OrderFilledArgs{
		OrderHash:   log.Topics[1].Hex(),
		Maker:       topicToAddress(log.Topics[2]).Hex(),
		Taker:       topicToAddress(log.Topics[3]).Hex(),
		TokenID:     unpacked.TokenId,
		MakerAmount: unpacked.MakerAmount,
		TakerAmount: unpacked.TakerAmount,
		Side:        int(unpacked.Side),
	}, nil
}

func topicToAddress(topic common.Hash) common.Address {
	return common.BytesToAddress(topic.Bytes()[12:])
}
