package store

import (
	"testing"

	"polymarket-indexer/pkg/types"
)

func TestActiveMarketEmbedsCondition(t *testing.T) {
	t.Parallel()

	am := ActiveMarket{
		Condition: types.Condition{ConditionID: "0xC"},
	}
	if am.ConditionID != "0xC" {
		t.Errorf("ConditionID = %q, want 0xC", am.ConditionID)
	}
	if am.Metrics != nil {
		t.Errorf("expected nil Metrics when unset, got %+v", am.Metrics)
	}
}

func TestUserPnLCarriesOutcomeIndex(t *testing.T) {
	t.Parallel()

	p := UserPnL{User: "0xU", ConditionID: "0xC", OutcomeIndex: 1}
	if p.OutcomeIndex != 1 {
		t.Errorf("OutcomeIndex = %d, want 1", p.OutcomeIndex)
	}
}
