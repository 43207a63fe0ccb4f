package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// rpcHeader is a local, tolerant shape for eth_getBlockByNumber responses.
// go-ethereum's core/types.Header rejects Polygon's extra-data field, which
// carries a validator-set signature longer than the 32 bytes the mainnet
// header format allows (the same obstacle web3.py's geth_poa_middleware
// papers over on the client side). Decoding into this shape instead of
// types.Header sidesteps that rejection entirely.
type rpcHeader struct {
	Number     hexutil.Big    `json:"number"`
	Hash       string         `json:"hash"`
	ParentHash string         `json:"parentHash"`
	Timestamp  hexutil.Uint64 `json:"timestamp"`
	GasUsed    hexutil.Uint64 `json:"gasUsed"`
	GasLimit   hexutil.Uint64 `json:"gasLimit"`
}

// blockTimestamp fetches the timestamp of a single block via a raw RPC call,
// bypassing ethclient.HeaderByNumber's strict types.Header unmarshalling.
func blockTimestamp(ctx context.Context, rc *rpc.Client, number uint64) (time.Time, error) {
	var raw json.RawMessage
	if err := rc.CallContext(ctx, &raw, "eth_getBlockByNumber", hexutil.EncodeUint64(number), false); err != nil {
		return time.Time{}, fmt.Errorf("eth_getBlockByNumber(%d): %w", number, err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, fmt.Errorf("eth_getBlockByNumber(%d): no such block", number)
	}
	var h rpcHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		return time.Time{}, fmt.Errorf("unmarshal block header %d: %w", number, err)
	}
	return time.Unix(int64(h.Timestamp), 0).UTC(), nil
}

// blockNumber returns the chain's current head height via raw RPC, for
// symmetry with blockTimestamp (ethclient.BlockNumber works fine here, but
// routing both through the same raw client keeps one failure surface).
func blockNumber(ctx context.Context, rc *rpc.Client) (uint64, error) {
	var raw hexutil.Big
	if err := rc.CallContext(ctx, &raw, "eth_blockNumber"); err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %w", err)
	}
	return (*big.Int)(&raw).Uint64(), nil
}
