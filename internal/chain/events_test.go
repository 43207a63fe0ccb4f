package chain

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"polymarket-indexer/pkg/types"
)

func TestClassifyUnrecognizedLog(t *testing.T) {
	t.Parallel()
	log := gethtypes.Log{Topics: []common.Hash{common.HexToHash("0xdeadbeef")}}
	if _, ok := classify(log); ok {
		t.Error("expected unrecognized topic0 to not classify")
	}
}

func TestClassifyNoTopics(t *testing.T) {
	t.Parallel()
	if _, ok := classify(gethtypes.Log{}); ok {
		t.Error("expected log with no topics to not classify")
	}
}

func TestClassifyTransferSingle(t *testing.T) {
	t.Parallel()
	log := gethtypes.Log{Topics: []common.Hash{abiTransferSingle.Events["TransferSingle"].ID}}
	name, ok := classify(log)
	if !ok || name != types.EventTransferSingle {
		t.Errorf("classify() = (%v, %v), want (%v, true)", name, ok, types.EventTransferSingle)
	}
}

func TestDecodeTransferSingleMint(t *testing.T) {
	t.Parallel()

	args, err := abiTransferSingle.Events["TransferSingle"].Inputs.NonIndexed().Pack(big.NewInt(42), big.NewInt(100))
	if err != nil {
		t.Fatalf("pack non-indexed args: %v", err)
	}

	operator := common.HexToAddress("0x1111111111111111111111111111111111111111")
	from := common.Address{} // zero address: mint
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")

	log := gethtypes.Log{
		Topics: []common.Hash{
			abiTransferSingle.Events["TransferSingle"].ID,
			common.BytesToHash(operator.Bytes()),
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data:        args,
		BlockNumber: 100,
		TxHash:      common.HexToHash("0xabc"),
		Index:       3,
	}

	ev, err := decode(log, time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("decode() error = %v", err)
	}
	if ev.Name != types.EventTransferSingle {
		t.Errorf("Name = %v, want %v", ev.Name, types.EventTransferSingle)
	}
	tsArgs, ok := ev.Args.(types.TransferSingleArgs)
	if !ok {
		t.Fatalf("Args type = %T, want TransferSingleArgs", ev.Args)
	}
	if tsArgs.From != types.ZeroAddress {
		t.Errorf("From = %v, want zero address", tsArgs.From)
	}
	if tsArgs.To != to.Hex() {
		t.Errorf("To = %v, want %v", tsArgs.To, to.Hex())
	}
	if tsArgs.Value.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("Value = %v, want 100", tsArgs.Value)
	}
}

func TestDecodeOrderFilled(t *testing.T) {
	t.Parallel()

	args, err := abiOrderFilled.Events["OrderFilled"].Inputs.NonIndexed().Pack(
		big.NewInt(7), big.NewInt(60), big.NewInt(100), uint8(0),
	)
	if err != nil {
		t.Fatalf("pack non-indexed args: %v", err)
	}

	maker := common.HexToAddress("0x3333333333333333333333333333333333333333")
	taker := common.HexToAddress("0x4444444444444444444444444444444444444444")

	log := gethtypes.Log{
		Topics: []common.Hash{
			abiOrderFilled.Events["OrderFilled"].ID,
			common.HexToHash("0xfeed"),
			common.BytesToHash(maker.Bytes()),
			common.BytesToHash(taker.Bytes()),
		},
		Data:        args,
		BlockNumber: 200,
		TxHash:      common.HexToHash("0xdef"),
		Index:       1,
	}

	ev, err := decode(log, time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("decode() error = %v", err)
	}
	ofArgs, ok := ev.Args.(types.OrderFilledArgs)
	if !ok {
		t.Fatalf("Args type = %T, want OrderFilledArgs", ev.Args)
	}
	if ofArgs.Maker != maker.Hex() {
		t.Errorf("Maker = %v, want %v", ofArgs.Maker, maker.Hex())
	}
	if ofArgs.Taker != taker.Hex() {
		t.Errorf("Taker = %v, want %v", ofArgs.Taker, taker.Hex())
	}
	if ofArgs.Side != 0 {
		t.Errorf("Side = %v, want 0", ofArgs.Side)
	}
	if ofArgs.MakerAmount.Cmp(big.NewInt(60)) != 0 {
		t.Errorf("MakerAmount = %v, want 60", ofArgs.MakerAmount)
	}
	if ofArgs.TakerAmount.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("TakerAmount = %v, want 100", ofArgs.TakerAmount)
	}
}

func TestDecodeOrderFilledTooFewTopics(t *testing.T) {
	t.Parallel()
	log := gethtypes.Log{
		Topics: []common.Hash{abiOrderFilled.Events["OrderFilled"].ID, common.HexToHash("0xfeed")},
	}
	if _, err := decodeOrderFilled(log); err == nil {
		t.Error("expected error for too few topics, got nil")
	}
}
