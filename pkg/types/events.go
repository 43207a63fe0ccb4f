package types

import (
	"math/big"
	"time"
)

// EventName identifies one of the four recognized on-chain events.
type EventName string

const (
	EventConditionPreparation EventName = "ConditionPreparation"
	EventConditionResolution  EventName = "ConditionResolution"
	EventTransferSingle       EventName = "TransferSingle"
	EventOrderFilled          EventName = "OrderFilled"
)

// DecodedEvent is the typed envelope the Chain Reader hands to the Event
// Applier. Args holds the event-specific argument bag; callers type-assert
// to the concrete struct matching Name.
type DecodedEvent struct {
	Name            EventName
	ContractAddress string
	BlockNumber     uint64
	BlockTimestamp  time.Time
	TxHash          string
	LogIndex        int
	Args            any
}

// ConditionPreparationArgs is the argument bag for ConditionPreparation.
type ConditionPreparationArgs struct {
	ConditionID      string
	Oracle           string
	QuestionID       string
	OutcomeSlotCount int
}

// ConditionResolutionArgs is the argument bag for ConditionResolution.
type ConditionResolutionArgs struct {
	ConditionID      string
	Oracle           string
	QuestionID       string
	PayoutNumerators []int64
}

// TransferSingleArgs is the argument bag for the ERC-1155-style
// TransferSingle event. From/To of the zero address mark mint/burn.
type TransferSingleArgs struct {
	Operator string
	From     string
	To       string
	TokenID  *big.Int
	Value    *big.Int
}

// ZeroAddress is the canonical null address used to signal mint/burn in
// TransferSingle.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// OrderFilledArgs is the argument bag for the CTF Exchange's OrderFilled.
type OrderFilledArgs struct {
	OrderHash   string
	Maker       string
	Taker       string
	TokenID     *big.Int
	MakerAmount *big.Int
	TakerAmount *big.Int
	Side        int // 0 = buy, 1 = sell
}
