package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// These are the minimal single-event ABI fragments needed to decode the
// four recognized log types. Each is parsed once at package init.
const (
	conditionPreparationABI = `[{"anonymous":false,"inputs":[
		{"indexed":true,"name":"conditionId","type":"bytes32"},
		{"indexed":true,"name":"oracle","type":"address"},
		{"indexed":true,"name":"questionId","type":"bytes32"},
		{"indexed":false,"name":"outcomeSlotCount","type":"uint256"}
	],"name":"ConditionPreparation","type":"event"}]`

	conditionResolutionABI = `[{"anonymous":false,"inputs":[
		{"indexed":true,"name":"conditionId","type":"bytes32"},
		{"indexed":true,"name":"oracle","type":"address"},
		{"indexed":true,"name":"questionId","type":"bytes32"},
		{"indexed":false,"name":"outcomeSlotCount","type":"uint256"},
		{"indexed":false,"name":"payoutNumerators","type":"uint256[]"}
	],"name":"ConditionResolution","type":"event"}]`

	transferSingleABI = `[{"anonymous":false,"inputs":[
		{"indexed":true,"name":"operator","type":"address"},
		{"indexed":true,"name":"from","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":false,"name":"id","type":"uint256"},
		{"indexed":false,"name":"value","type":"uint256"}
	],"name":"TransferSingle","type":"event"}]`

	orderFilledABI = `[{"anonymous":false,"inputs":[
		{"indexed":true,"name":"orderHash","type":"bytes32"},
		{"indexed":true,"name":"maker","type":"address"},
		{"indexed":true,"name":"taker","type":"address"},
		{"indexed":false,"name":"tokenId","type":"uint256"},
		{"indexed":false,"name":"makerAmount","type":"uint256"},
		{"indexed":false,"name":"takerAmount","type":"uint256"},
		{"indexed":false,"name":"side","type":"uint8"}
	],"name":"OrderFilled","type":"event"}]`
)

var (
	abiConditionPreparation abi.ABI
	abiConditionResolution  abi.ABI
	abiTransferSingle       abi.ABI
	abiOrderFilled          abi.ABI
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("chain: invalid embedded ABI: " + err.Error())
	}
	return parsed
}

func init() {
	abiConditionPreparation = mustParseABI(conditionPreparationABI)
	abiConditionResolution = mustParseABI(conditionResolutionABI)
	abiTransferSingle = mustParseABI(transferSingleABI)
	abiOrderFilled = mustParseABI(orderFilledABI)
}
