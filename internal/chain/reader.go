// Package chain wraps go-ethereum's ethclient.Client for reading
// Conditional Tokens Framework and CTF Exchange events off a Polygon
// archive node, tolerating that chain's proof-of-authority block headers
// along the way.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"polymarket-indexer/internal/config"
	"polymarket-indexer/pkg/types"
)

// maxLogsPerCall bounds a single eth_getLogs request; ranges wider than
// this are split before the RPC node has a chance to reject them.
const maxLogsPerCall = 2000

// USDCCollateralAddress is the bridged USDC (USDC.e) contract on Polygon,
// the sole collateral token this deployment trades against. Hardcoded
// rather than configured: the protocol's CTF Exchange instance is deployed
// once per collateral, so picking a different one means pointing the whole
// indexer at a different exchange address, not swapping a config value.
const USDCCollateralAddress = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"

// Reader reads and decodes on-chain events from the configured Conditional
// Tokens and CTF Exchange contracts. The NEG_RISK adapter address is
// validated at config load but intentionally carries no event handlers and
// is never included in a log filter here.
type Reader struct {
	ec                *ethclient.Client
	rc                *rpc.Client
	limiter           *tokenBucket
	maxRetryAttempts  int
	conditionalTokens common.Address
	ctfExchange       common.Address
	topics            []common.Hash
}

// NewReader dials the configured RPC endpoint and prepares the log filter
// for the two tracked contract addresses.
func NewReader(ctx context.Context, cfg config.ChainConfig) (*Reader, error) {
	ec, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, &types.ConfigError{Op: "chain.NewReader", Err: fmt.Errorf("dial %s: %w", cfg.RPCURL, err)}
	}

	topics := make([]common.Hash, 0, len(eventTopic0))
	for topic := range eventTopic0 {
		topics = append(topics, topic)
	}

	return &Reader{
		ec:                ec,
		rc:                ec.Client(),
		limiter:           newTokenBucket(20, 10), // archive nodes are generous but not infinite
		maxRetryAttempts:  cfg.MaxRetryAttempts,
		conditionalTokens: common.HexToAddress(cfg.ConditionalTokens),
		ctfExchange:       common.HexToAddress(cfg.CTFExchange),
		topics:            topics,
	}, nil
}

// ConditionalTokensAddress returns the contract address the
// "conditional_tokens" sub-indexer reads logs from.
func (r *Reader) ConditionalTokensAddress() common.Address { return r.conditionalTokens }

// CTFExchangeAddress returns the contract address the "ctf_exchange"
// sub-indexer reads logs from.
func (r *Reader) CTFExchangeAddress() common.Address { return r.ctfExchange }

// Close releases the underlying RPC connection.
func (r *Reader) Close() { r.ec.Close() }

// CurrentHeight returns the chain's latest block number.
func (r *Reader) CurrentHeight(ctx context.Context) (uint64, error) {
	var height uint64
	err := r.withRetry(ctx, "chain.CurrentHeight", func(ctx context.Context) error {
		h, err := blockNumber(ctx, r.rc)
		if err != nil {
			return err
		}
		height = h
		return nil
	})
	return height, err
}

// GetLogs returns every decoded event from one contract address between
// fromBlock and toBlock, inclusive, sub-batching transparently if the range
// is wider than an RPC node is willing to answer in one call.
func (r *Reader) GetLogs(ctx context.Context, contract common.Address, fromBlock, toBlock uint64) ([]types.DecodedEvent, error) {
	if fromBlock > toBlock {
		return nil, nil
	}

	var out []types.DecodedEvent
	timestamps := make(map[uint64]time.Time)

	for start := fromBlock; start <= toBlock; start += maxLogsPerCall {
		end := start + maxLogsPerCall - 1
		if end > toBlock {
			end = toBlock
		}

		logs, err := r.filterRange(ctx, contract, start, end)
		if err != nil {
			return nil, err
		}

		for _, log := range logs {
			if log.Removed {
				continue // reorged out; the next cycle will re-see the canonical log
			}
			name, ok := classify(log)
			if !ok {
				continue
			}
			ts, ok := timestamps[log.BlockNumber]
			if !ok {
				var ferr error
				ts, ferr = r.blockTimestampWithRetry(ctx, log.BlockNumber)
				if ferr != nil {
					return nil, ferr
				}
				timestamps[log.BlockNumber] = ts
			}
			ev, derr := decode(log, ts)
			if derr != nil {
				// Undecodable arguments: pass the event on without an argument
				// bag, so the Applier archives it unprocessed and the batch goes on.
				ev = types.DecodedEvent{
					Name:            name,
					ContractAddress: log.Address.Hex(),
					BlockNumber:     log.BlockNumber,
					BlockTimestamp:  ts,
					TxHash:          log.TxHash.Hex(),
					LogIndex:        int(log.Index),
				}
			}
			out = append(out, ev)
		}
	}
	return out, nil
}

// filterRange fetches raw logs for one sub-range, halving the range and
// retrying if the node rejects it as too large — a common response from
// public RPC providers regardless of what maxLogsPerCall already assumes.
func (r *Reader) filterRange(ctx context.Context, contract common.Address, from, to uint64) ([]gethtypes.Log, error) {
	if from > to {
		return nil, nil
	}

	var logs []gethtypes.Log
	err := r.withRetry(ctx, "chain.filterRange", func(ctx context.Context) error {
		q := ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(from),
			ToBlock:   new(big.Int).SetUint64(to),
			Addresses: []common.Address{contract},
			Topics:    [][]common.Hash{r.topics},
		}
		fetched, err := r.ec.FilterLogs(ctx, q)
		if err != nil {
			if from < to && isRangeTooLargeErr(err) {
				mid := from + (to-from)/2
				left, lerr := r.filterRange(ctx, contract, from, mid)
				if lerr != nil {
					return lerr
				}
				right, rerr := r.filterRange(ctx, contract, mid+1, to)
				if rerr != nil {
					return rerr
				}
				logs = append(left, right...)
				return nil
			}
			return err
		}
		logs = fetched
		return nil
	})
	return logs, err
}

func (r *Reader) blockTimestampWithRetry(ctx context.Context, number uint64) (time.Time, error) {
	var ts time.Time
	err := r.withRetry(ctx, "chain.blockTimestamp", func(ctx context.Context) error {
		t, err := blockTimestamp(ctx, r.rc, number)
		if err != nil {
			return err
		}
		ts = t
		return nil
	})
	return ts, err
}

// withRetry runs fn with the rate limiter applied, retrying transient
// failures with exponential backoff up to maxRetryAttempts before giving up.
func (r *Reader) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < r.maxRetryAttempts; attempt++ {
		if err := r.limiter.wait(ctx); err != nil {
			return err
		}
		if err := fn(ctx); err != nil {
			lastErr = err
			if attempt < r.maxRetryAttempts-1 {
				backoff := time.Duration(math.Pow(2, float64(attempt))) * 250 * time.Millisecond
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(backoff):
				}
				continue
			}
			return &types.TransientError{Op: op, Err: lastErr}
		}
		return nil
	}
	return &types.TransientError{Op: op, Err: lastErr}
}

func isRangeTooLargeErr(err error) bool {
	msg := err.Error()
	for _, needle := range []string{"too many", "too large", "limit exceeded", "block range", "query returned more"} {
		if contains(msg, needle) {
			return true
		}
	}
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr)
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		match := true
		for j := 0; j < len(substr); j++ {
			c1, c2 := s[i+j], substr[j]
			if 'A' <= c1 && c1 <= 'Z' {
				c1 += 'a' - 'A'
			}
			if 'A' <= c2 && c2 <= 'Z' {
				c2 += 'a' - 'A'
			}
			if c1 != c2 {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
