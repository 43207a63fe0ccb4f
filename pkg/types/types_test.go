package types

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestPositionID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		conditionID string
		outcome     int
		want        string
	}{
		{"0xC", 0, "0xC_0"},
		{"0xC", 1, "0xC_1"},
		{"0xabc", 5, "0xabc_5"},
	}

	for _, tt := range tests {
		if got := PositionID(tt.conditionID, tt.outcome); got != tt.want {
			t.Errorf("PositionID(%q, %d) = %q, want %q", tt.conditionID, tt.outcome, got, tt.want)
		}
	}
}

func TestUserMarketPositionUnrealizedPnL(t *testing.T) {
	t.Parallel()

	pos := UserMarketPosition{
		CurrentShares:   decimal.NewFromFloat(100),
		AverageBuyPrice: decimal.NewFromFloat(0.6),
	}
	got := pos.UnrealizedPnL(decimal.NewFromFloat(0.8))
	want := decimal.NewFromFloat(20) // 100 * (0.8 - 0.6)
	if !got.Equal(want) {
		t.Errorf("UnrealizedPnL = %s, want %s", got, want)
	}
}
