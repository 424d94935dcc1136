package clickhouse

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

func testCandle(symbol string, ts time.Time, close string) *domain.Candle {
	return &domain.Candle{
		Symbol:     symbol,
		Timestamp:  ts,
		Open:       d("50000"),
		High:       d("50500"),
		Low:        d("49800"),
		Close:      d(close),
		Volume:     d("123.45"),
		TradeCount: 678,
	}
}

func TestCandleStore_InsertBulkAndGetBySymbol(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCandleStore(conn)

	candles := []*domain.Candle{
		testCandle("BTC-USDT-PERP", baseTime, "50200"),
		testCandle("BTC-USDT-PERP", baseTime.Add(time.Minute), "50300.5"),
		testCandle("BTC-USDT-PERP", baseTime.Add(2*time.Minute), "50150.25"),
	}

	err := store.InsertBulk(ctx, candles)
	require.NoError(t, err)

	retrieved, err := store.GetBySymbol(ctx, "BTC-USDT-PERP", baseTime, baseTime.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, retrieved, 3)

	got := retrieved[1]
	want := candles[1]
	assert.Equal(t, want.Symbol, got.Symbol)
	assert.True(t, got.Timestamp.Equal(want.Timestamp), "timestamp: got %s want %s", got.Timestamp, want.Timestamp)
	assert.True(t, got.Open.Equal(want.Open))
	assert.True(t, got.High.Equal(want.High))
	assert.True(t, got.Low.Equal(want.Low))
	assert.True(t, got.Close.Equal(want.Close), "close: got %s want %s", got.Close, want.Close)
	assert.True(t, got.Volume.Equal(want.Volume))
	assert.Equal(t, want.TradeCount, got.TradeCount)
}

func TestCandleStore_OrderedByTimestamp(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCandleStore(conn)

	// Insert out of chronological order.
	err := store.InsertBulk(ctx, []*domain.Candle{
		testCandle("ETH-USDT-PERP", baseTime.Add(2*time.Minute), "3020"),
		testCandle("ETH-USDT-PERP", baseTime, "3000"),
		testCandle("ETH-USDT-PERP", baseTime.Add(time.Minute), "3010"),
	})
	require.NoError(t, err)

	retrieved, err := store.GetBySymbol(ctx, "ETH-USDT-PERP", baseTime, baseTime.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, retrieved, 3)

	assert.True(t, retrieved[0].Close.Equal(d("3000")))
	assert.True(t, retrieved[1].Close.Equal(d("3010")))
	assert.True(t, retrieved[2].Close.Equal(d("3020")))
}

func TestCandleStore_RangeAndSymbolFilter(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCandleStore(conn)

	err := store.InsertBulk(ctx, []*domain.Candle{
		testCandle("BTC-USDT-PERP", baseTime, "50000"),
		testCandle("BTC-USDT-PERP", baseTime.Add(time.Minute), "50100"),
		testCandle("BTC-USDT-PERP", baseTime.Add(2*time.Minute), "50200"),
		testCandle("ETH-USDT-PERP", baseTime.Add(time.Minute), "3000"),
	})
	require.NoError(t, err)

	// Inclusive range keeps both endpoints.
	retrieved, err := store.GetBySymbol(ctx, "BTC-USDT-PERP", baseTime, baseTime.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, retrieved, 2)
	assert.True(t, retrieved[0].Close.Equal(d("50000")))
	assert.True(t, retrieved[1].Close.Equal(d("50100")))

	// Other symbol untouched by the range scan.
	retrieved, err = store.GetBySymbol(ctx, "ETH-USDT-PERP", baseTime, baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, retrieved, 1)
}

func TestCandleStore_DuplicateRejected(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCandleStore(conn)

	candle := testCandle("BTC-USDT-PERP", baseTime, "50000")

	err := store.Insert(ctx, candle)
	require.NoError(t, err)

	// Same (symbol, timestamp) again.
	err = store.Insert(ctx, testCandle("BTC-USDT-PERP", baseTime, "50999"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Same timestamp on another symbol is fine.
	err = store.Insert(ctx, testCandle("ETH-USDT-PERP", baseTime, "3000"))
	assert.NoError(t, err)
}

func TestCandleStore_IntraBatchDuplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCandleStore(conn)

	err := store.InsertBulk(ctx, []*domain.Candle{
		testCandle("BTC-USDT-PERP", baseTime, "50000"),
		testCandle("BTC-USDT-PERP", baseTime, "50111"),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Nothing from the batch was written.
	count, err := store.Count(ctx, "BTC-USDT-PERP")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestCandleStore_Count(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCandleStore(conn)

	err := store.InsertBulk(ctx, []*domain.Candle{
		testCandle("BTC-USDT-PERP", baseTime, "50000"),
		testCandle("BTC-USDT-PERP", baseTime.Add(time.Minute), "50100"),
		testCandle("ETH-USDT-PERP", baseTime, "3000"),
	})
	require.NoError(t, err)

	count, err := store.Count(ctx, "BTC-USDT-PERP")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = store.Count(ctx, "SOL-USDT-PERP")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestCandleStore_InvalidInput(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCandleStore(conn)

	err := store.Insert(ctx, testCandle("", baseTime, "50000"))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.Insert(ctx, testCandle("BTC-USDT-PERP", time.Time{}, "50000"))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	assert.NoError(t, store.InsertBulk(ctx, nil))
}
