package budget

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/codewarden/internal/config"
	"github.com/sevigo/codewarden/internal/core"
	"github.com/sevigo/codewarden/internal/storage"
	"github.com/sevigo/codewarden/internal/storagefake"
)

func newTestLedger(t *testing.T, monthlyUSD, spendUSD float64) (*Ledger, *storagefake.Store) {
	t.Helper()
	store := storagefake.New()
	ctx := context.Background()
	require.NoError(t, store.RecordSpend(ctx, spendUSD, time.Now()))

	cfg := config.BudgetConfig{MonthlyUSD: monthlyUSD, Timezone: "UTC"}
	return New(store, cfg, nil), store
}

func TestCheck_RefusesWhenProjectedCostExceedsCeiling(t *testing.T) {
	ledger, store := newTestLedger(t, 1.00, 0.999)

	err := ledger.Check(context.Background(), "refactor", 0.01)

	require.Error(t, err)
	assert.True(t, core.IsBudgetExceeded(err))

	state, err := store.GetBudgetState(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.999, state.SpendUSD, 0.0001, "refused call must not record spend")
}

func TestCheck_AllowsWhenUnderCeiling(t *testing.T) {
	ledger, _ := newTestLedger(t, 10.00, 1.00)

	err := ledger.Check(context.Background(), "refactor", 0.01)
	assert.NoError(t, err)
}

func TestRecord_AddsWeightedTokenCost(t *testing.T) {
	ledger, store := newTestLedger(t, 10.00, 0)
	require.NoError(t, store.SetModelPrice(context.Background(), &storage.ModelPrice{
		Model: "m-A", InputPerMTok: 1.0, OutputPerMTok: 2.0,
	}))

	require.NoError(t, ledger.Record(context.Background(), "m-A", 1_000_000, 500_000))

	state, err := store.GetBudgetState(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 2.0, state.SpendUSD, 0.0001)
}

func TestCheck_InitializesStateWhenNoRowExistsYet(t *testing.T) {
	store := storagefake.New()
	store.ClearBudgetState()
	cfg := config.BudgetConfig{MonthlyUSD: 10.00, Timezone: "UTC"}
	ledger := New(store, cfg, nil)

	err := ledger.Check(context.Background(), "refactor", 0.01)
	assert.NoError(t, err)

	state, err := store.GetBudgetState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, state.SpendUSD)
}

func TestRecord_InitializesStateWhenNoRowExistsYet(t *testing.T) {
	store := storagefake.New()
	store.ClearBudgetState()
	require.NoError(t, store.SetModelPrice(context.Background(), &storage.ModelPrice{
		Model: "m-A", InputPerMTok: 1.0, OutputPerMTok: 2.0,
	}))
	cfg := config.BudgetConfig{MonthlyUSD: 10.00, Timezone: "UTC"}
	ledger := New(store, cfg, nil)

	require.NoError(t, ledger.Record(context.Background(), "m-A", 1_000_000, 0))

	state, err := store.GetBudgetState(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, state.SpendUSD, 0.0001)
}

func TestSeedPrices_PersistsConfiguredModelPrices(t *testing.T) {
	store := storagefake.New()
	prices := map[string]config.ModelPrice{
		"m-A": {InputPerMTok: 1.0, OutputPerMTok: 2.0},
		"m-B": {InputPerMTok: 3.0, OutputPerMTok: 4.0},
	}

	require.NoError(t, SeedPrices(context.Background(), store, prices))

	got, err := store.GetModelPrice(context.Background(), "m-A")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.InputPerMTok)
	assert.Equal(t, 2.0, got.OutputPerMTok)

	got, err = store.GetModelPrice(context.Background(), "m-B")
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.InputPerMTok)
}

func TestStatus_ReportsOKWarnExceeded(t *testing.T) {
	cases := []struct {
		spend    float64
		expected State
	}{
		{spend: 1.0, expected: StateOK},
		{spend: 8.5, expected: StateWarn},
		{spend: 10.0, expected: StateExceeded},
	}

	for _, tc := range cases {
		ledger, _ := newTestLedger(t, 10.00, tc.spend)
		status, err := ledger.Status(context.Background())
		require.NoError(t, err)
		assert.Equal(t, tc.expected, status.State)
	}
}
