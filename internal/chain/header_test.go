package chain

import (
	"encoding/json"
	"strings"
	"testing"
)

// TestRPCHeaderToleratesOversizedExtraData proves the thing rpcHeader
// exists for: go-ethereum's core/types.Header rejects an extraData field
// longer than 32 bytes (Polygon's validator-set signature routinely is),
// but rpcHeader has no extraData field to reject it with.
func TestRPCHeaderToleratesOversizedExtraData(t *testing.T) {
	t.Parallel()

	oversizedExtraData := "0x" + strings.Repeat("ab", 97) // far past 32 bytes
	raw := []byte(`{
		"number": "0x64",
		"hash": "0xabc",
		"parentHash": "0xdef",
		"timestamp": "0x6540f000",
		"gasUsed": "0x5208",
		"gasLimit": "0x1c9c380",
		"extraData": "` + oversizedExtraData + `"
	}`)

	var h rpcHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		t.Fatalf("rpcHeader unmarshal failed on oversized extraData: %v", err)
	}
	if h.Number.ToInt().Int64() != 0x64 {
		t.Errorf("Number = %v, want 100", h.Number.ToInt())
	}
	if uint64(h.Timestamp) != 0x6540f000 {
		t.Errorf("Timestamp = %v, want %v", uint64(h.Timestamp), uint64(0x6540f000))
	}
}

func TestRPCHeaderToleratesMissingFields(t *testing.T) {
	t.Parallel()
	var h rpcHeader
	if err := json.Unmarshal([]byte(`{}`), &h); err != nil {
		t.Fatalf("unexpected error on empty object: %v", err)
	}
	if h.Number.ToInt().Sign() != 0 {
		t.Errorf("Number on empty object = %v, want 0", h.Number.ToInt())
	}
}
