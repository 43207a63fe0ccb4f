// Package types defines the durable record shapes persisted by the Store
// and passed between the Chain Reader, Event Applier, and Derived-State
// Engine. All monetary and share-count fields use decimal.Decimal — binary
// floating point is never used for cost basis or realized PnL.
package types

import (
	"strconv"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Block is an observed chain block header. Immutable once inserted.
type Block struct {
	Number     uint64    `db:"number"`
	Hash       string    `db:"hash"`
	ParentHash string    `db:"parent_hash"`
	Timestamp  time.Time `db:"timestamp"`
	GasUsed    uint64    `db:"gas_used"`
	GasLimit   uint64    `db:"gas_limit"`
}

// Condition is a prediction market defined by an oracle and a question with
// k mutually exclusive outcomes. Metadata fields are filled by the Enricher
// and are never overwritten with null once set.
type Condition struct {
	ConditionID      string     `db:"condition_id"`
	Oracle           string     `db:"oracle"`
	QuestionID       string     `db:"question_id"`
	OutcomeSlotCount int        `db:"outcome_slot_count"`
	CreatedAtBlock   uint64     `db:"created_at_block"`
	CreatedAtTx      string     `db:"created_at_tx"`
	CreatedAt        time.Time  `db:"created_at"`
	Resolved         bool       `db:"resolved"`
	ResolvedAtBlock  *uint64    `db:"resolved_at_block"`
	ResolvedAtTx     *string    `db:"resolved_at_tx"`
	ResolvedAt       *time.Time `db:"resolved_at"`
	PayoutNumerators pq.Int64Array `db:"payout_numerators"`
	Question         *string    `db:"question"`
	Description      *string    `db:"description"`
	EndDate          *time.Time `db:"end_date"`
	Category         *string    `db:"category"`
	ImageURL         *string    `db:"image_url"`
	ResolutionSource *string    `db:"resolution_source"`
}

// PositionID returns the derived key "<condition_id>_<outcome_index>" used
// as the PositionToken primary key. The on-chain integer tokenId is joined
// to this id via a populated PositionToken lookup row, never derived
// arithmetically from the integer id itself (see DESIGN.md).
func PositionID(conditionID string, outcomeIndex int) string {
	return conditionID + "_" + strconv.Itoa(outcomeIndex)
}

// PositionToken is one of the k outcome slots of a Condition. Never deleted.
type PositionToken struct {
	PositionID   string `db:"position_id"`
	ConditionID  string `db:"condition_id"`
	OutcomeIndex int    `db:"outcome_index"`
	TokenID      string `db:"token_id"`
}

// Trade is one matched OrderFilled event, keyed by (tx_hash, log_index).
type Trade struct {
	TxHash           string          `db:"tx_hash"`
	LogIndex         int             `db:"log_index"`
	BlockNumber      uint64          `db:"block_number"`
	BlockTimestamp   time.Time       `db:"block_timestamp"`
	ExchangeAddress  string          `db:"exchange_address"`
	Trader           string          `db:"trader"`
	TokenID          string          `db:"token_id"`
	CollateralToken  string          `db:"collateral_token"`
	TokenAmount      decimal.Decimal `db:"token_amount"`
	CollateralAmount decimal.Decimal `db:"collateral_amount"`
	Price            decimal.Decimal `db:"price"`
	IsBuy            bool            `db:"is_buy"`
	OrderID          *string         `db:"order_id"`
}

// Balance is a user's holding of one position token. Updates are additive
// deltas; balance is non-negative in equilibrium.
type Balance struct {
	User             string          `db:"user_address"`
	TokenID          string          `db:"token_id"`
	Balance          decimal.Decimal `db:"balance"`
	LastUpdatedBlock uint64          `db:"last_updated_block"`
	LastUpdatedTx    string          `db:"last_updated_tx"`
	LastUpdatedAt    time.Time       `db:"last_updated_at"`
}

// UserMarketPosition tracks one user's accumulated position in one outcome
// of one market, including average entry price and realized PnL.
type UserMarketPosition struct {
	User              string          `db:"user_address"`
	ConditionID       string          `db:"condition_id"`
	OutcomeIndex      int             `db:"outcome_index"`
	TotalSharesBought decimal.Decimal `db:"total_shares_bought"`
	TotalSharesSold   decimal.Decimal `db:"total_shares_sold"`
	CurrentShares     decimal.Decimal `db:"current_shares"`
	TotalCostBasis    decimal.Decimal `db:"total_cost_basis"`
	TotalProceeds     decimal.Decimal `db:"total_proceeds"`
	AverageBuyPrice   decimal.Decimal `db:"average_buy_price"`
	RealizedPnL       decimal.Decimal `db:"realized_pnl"`
	FirstTradeAt      time.Time       `db:"first_trade_at"`
	LastTradeAt       time.Time       `db:"last_trade_at"`
}

// UnrealizedPnL computes current_shares * (currentPrice - average_buy_price).
func (p UserMarketPosition) UnrealizedPnL(currentPrice decimal.Decimal) decimal.Decimal {
	return p.CurrentShares.Mul(currentPrice.Sub(p.AverageBuyPrice))
}

// UserStats is a per-user trading aggregate.
type UserStats struct {
	User         string          `db:"user_address"`
	TotalVolume  decimal.Decimal `db:"total_volume"`
	TotalTrades  int64           `db:"total_trades"`
	FirstTradeAt time.Time       `db:"first_trade_at"`
	LastTradeAt  time.Time       `db:"last_trade_at"`
}

// PriceHistory is one OHLC tick recorded per trade. Append-only, subject to
// retention pruning for resolved conditions.
type PriceHistory struct {
	ID           string          `db:"id"`
	ConditionID  string          `db:"condition_id"`
	OutcomeIndex int             `db:"outcome_index"`
	BlockNumber  uint64          `db:"block_number"`
	Timestamp    time.Time       `db:"timestamp"`
	Open         decimal.Decimal `db:"open"`
	High         decimal.Decimal `db:"high"`
	Low          decimal.Decimal `db:"low"`
	Close        decimal.Decimal `db:"close"`
	Volume       decimal.Decimal `db:"volume"`
	TradeCount   int             `db:"trade_count"`
}

// MarketMetrics is the per-market derived-state snapshot, rewritten on
// every recompute.
type MarketMetrics struct {
	ConditionID        string          `db:"condition_id"`
	Volume1h           decimal.Decimal `db:"volume_1h"`
	Volume4h           decimal.Decimal `db:"volume_4h"`
	Volume12h          decimal.Decimal `db:"volume_12h"`
	Volume24h          decimal.Decimal `db:"volume_24h"`
	YesPrice           decimal.Decimal `db:"yes_price"`
	NoPrice            decimal.Decimal `db:"no_price"`
	YesPrice12hAgo     decimal.Decimal `db:"yes_price_12h_ago"`
	YesPrice24hAgo     decimal.Decimal `db:"yes_price_24h_ago"`
	Price12hChangePct  decimal.Decimal `db:"price_12h_change_pct"`
	Price24hChangePct  decimal.Decimal `db:"price_24h_change_pct"`
	TotalLiquidity     decimal.Decimal `db:"total_liquidity"`
	OpenInterest       decimal.Decimal `db:"open_interest"`
	TradeCount24h      int64           `db:"trade_count_24h"`
	UniqueTraders24h   int64           `db:"unique_traders_24h"`
	PriceMomentum      decimal.Decimal `db:"price_momentum"`
	VolumeMomentum     decimal.Decimal `db:"volume_momentum"`
	TurnoverRatio      decimal.Decimal `db:"turnover_ratio"`
	AdjustedVolatility decimal.Decimal `db:"adjusted_volatility"`
	ComputedAt         time.Time       `db:"computed_at"`
}

// IndexerStatus is the lifecycle state of one named sub-indexer.
type IndexerStatus string

const (
	StatusIdle    IndexerStatus = "IDLE"
	StatusRunning IndexerStatus = "RUNNING"
	StatusError   IndexerStatus = "ERROR"
)

// IndexerState is the checkpoint row for one named sub-indexer.
type IndexerState struct {
	Name                 string        `db:"name"`
	LastProcessedBlock   uint64        `db:"last_processed_block"`
	Status               IndexerStatus `db:"status"`
	ErrorMessage         *string       `db:"error_message"`
	TotalEventsProcessed int64         `db:"total_events_processed"`
	UpdatedAt            time.Time     `db:"updated_at"`
}

// Sub-indexer names, matching the two named pipelines.
const (
	SubIndexerConditionalTokens = "conditional_tokens"
	SubIndexerCTFExchange       = "ctf_exchange"
)

// EventLog is the raw archived copy of every handled (or skipped) event,
// keyed by (tx_hash, log_index). Processed=false marks data-shape failures
// that were archived instead of applied.
type EventLog struct {
	BlockNumber     uint64    `db:"block_number"`
	TxHash          string    `db:"tx_hash"`
	LogIndex        int       `db:"log_index"`
	ContractAddress string    `db:"contract_address"`
	EventName       string    `db:"event_name"`
	EventArgsJSON   string    `db:"event_args_json"`
	Processed       bool      `db:"processed"`
	RecordedAt      time.Time `db:"recorded_at"`
}
