package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volharvest/internal/domain"
	"volharvest/internal/storage"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var baseTime = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func createTestRun(runID string, createdAt time.Time, metrics *domain.BacktestMetrics) *domain.BacktestRun {
	return &domain.BacktestRun{
		RunID:         runID,
		CreatedAt:     createdAt,
		Symbols:       []string{"BTC-USDT-PERP", "ETH-USDT-PERP"},
		StartDate:     baseTime,
		EndDate:       baseTime.AddDate(0, 1, 0),
		InitialEquity: d("100000"),
		SlippageBps:   d("2"),
		FeeBps:        d("4"),
		Metrics:       metrics,
	}
}

func createTestMetrics() *domain.BacktestMetrics {
	return &domain.BacktestMetrics{
		StartDate:             baseTime,
		EndDate:               baseTime.AddDate(0, 1, 0),
		TotalTrades:           42,
		WinningTrades:         25,
		LosingTrades:          17,
		WinRate:               d("0.5952"),
		TotalPnL:              d("1234.56"),
		TotalReturnPct:        d("1.23"),
		MaxDrawdownPct:        d("4.2"),
		MaxRunupPct:           d("6.8"),
		SharpeRatio:           d("1.41"),
		SortinoRatio:          d("1.9"),
		AvgTradeDurationHours: d("7.5"),
		AvgWinningTradePct:    d("0.8"),
		AvgLosingTradePct:     d("-0.5"),
		ProfitFactor:          d("1.7"),
		Expectancy:            d("29.39"),
		TotalFees:             d("168"),
		TotalFundingCost:      d("23.4"),
		TotalSlippage:         d("84"),
	}
}

func TestBacktestRunStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBacktestRunStore(pool)

	run := createTestRun("run-001", baseTime, createTestMetrics())

	err := store.Insert(ctx, run)
	require.NoError(t, err)

	retrieved, err := store.GetByID(ctx, "run-001")
	require.NoError(t, err)

	assert.Equal(t, run.RunID, retrieved.RunID)
	assert.True(t, retrieved.CreatedAt.Equal(run.CreatedAt))
	assert.Equal(t, run.Symbols, retrieved.Symbols)
	assert.True(t, retrieved.StartDate.Equal(run.StartDate))
	assert.True(t, retrieved.EndDate.Equal(run.EndDate))
	assert.True(t, retrieved.InitialEquity.Equal(run.InitialEquity))
	assert.True(t, retrieved.SlippageBps.Equal(run.SlippageBps))
	assert.True(t, retrieved.FeeBps.Equal(run.FeeBps))

	require.NotNil(t, retrieved.Metrics)
	m, want := retrieved.Metrics, run.Metrics
	assert.Equal(t, want.TotalTrades, m.TotalTrades)
	assert.Equal(t, want.WinningTrades, m.WinningTrades)
	assert.Equal(t, want.LosingTrades, m.LosingTrades)
	assert.True(t, m.WinRate.Equal(want.WinRate))
	assert.True(t, m.TotalPnL.Equal(want.TotalPnL))
	assert.True(t, m.TotalReturnPct.Equal(want.TotalReturnPct))
	assert.True(t, m.MaxDrawdownPct.Equal(want.MaxDrawdownPct))
	assert.True(t, m.MaxRunupPct.Equal(want.MaxRunupPct))
	assert.True(t, m.SharpeRatio.Equal(want.SharpeRatio))
	assert.True(t, m.SortinoRatio.Equal(want.SortinoRatio))
	assert.True(t, m.AvgTradeDurationHours.Equal(want.AvgTradeDurationHours))
	assert.True(t, m.AvgWinningTradePct.Equal(want.AvgWinningTradePct))
	assert.True(t, m.AvgLosingTradePct.Equal(want.AvgLosingTradePct))
	assert.True(t, m.ProfitFactor.Equal(want.ProfitFactor))
	assert.True(t, m.Expectancy.Equal(want.Expectancy))
	assert.True(t, m.TotalFees.Equal(want.TotalFees))
	assert.True(t, m.TotalFundingCost.Equal(want.TotalFundingCost))
	assert.True(t, m.TotalSlippage.Equal(want.TotalSlippage))

	// Metrics date range comes from the run itself.
	assert.True(t, m.StartDate.Equal(run.StartDate))
	assert.True(t, m.EndDate.Equal(run.EndDate))
}

func TestBacktestRunStore_NilMetrics(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBacktestRunStore(pool)

	run := createTestRun("run-no-metrics", baseTime, nil)

	err := store.Insert(ctx, run)
	require.NoError(t, err)

	retrieved, err := store.GetByID(ctx, "run-no-metrics")
	require.NoError(t, err)

	assert.Nil(t, retrieved.Metrics)
	assert.True(t, retrieved.InitialEquity.Equal(run.InitialEquity))
}

func TestBacktestRunStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBacktestRunStore(pool)

	run := createTestRun("run-dup", baseTime, nil)

	err := store.Insert(ctx, run)
	require.NoError(t, err)

	err = store.Insert(ctx, run)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestBacktestRunStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBacktestRunStore(pool)

	_, err := store.GetByID(ctx, "no-such-run")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBacktestRunStore_GetAllOrdered(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBacktestRunStore(pool)

	// Insert out of creation order.
	for _, r := range []*domain.BacktestRun{
		createTestRun("run-c", baseTime.Add(2*time.Hour), nil),
		createTestRun("run-a", baseTime, createTestMetrics()),
		createTestRun("run-b", baseTime.Add(time.Hour), nil),
	} {
		require.NoError(t, store.Insert(ctx, r))
	}

	runs, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	assert.Equal(t, "run-a", runs[0].RunID)
	assert.Equal(t, "run-b", runs[1].RunID)
	assert.Equal(t, "run-c", runs[2].RunID)
	assert.NotNil(t, runs[0].Metrics)
	assert.Nil(t, runs[1].Metrics)
}

func TestBacktestRunStore_InsertInvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBacktestRunStore(pool)

	run := createTestRun("", baseTime, nil)

	err := store.Insert(ctx, run)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
