package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"funding-arb-lab/internal/domain"
	"funding-arb-lab/internal/storage"
)

func testMetricRow(pair string, date domain.Date, r1d float64) *domain.ReturnMetricRow {
	roi := r1d * 365
	return &domain.ReturnMetricRow{
		TradingPair: pair,
		Date:        date,
		Return1D:    ptr(r1d),
		ROI1D:       ptr(roi),
		Return7D:    ptr(r1d * 7),
		ROI7D:       ptr(r1d * 365),
	}
}

func TestReturnMetricStore_UpsertRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewReturnMetricStore(pool)
	ctx := context.Background()
	date := domain.NewDate(2024, 3, 1)

	row := testMetricRow("BTCUSDT_binance_bybit", date, 0.001)
	require.NoError(t, store.Upsert(ctx, row))

	got, err := store.GetByPairDate(ctx, "BTCUSDT_binance_bybit", date)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT_binance_bybit", got.TradingPair)
	assert.True(t, got.Date.Equal(date))
	require.NotNil(t, got.Return1D)
	assert.InDelta(t, 0.001, *got.Return1D, 1e-12)
	assert.InDelta(t, 0.365, *got.ROI1D, 1e-12)

	// NULL horizons survive the round trip as nil, never zero.
	assert.Nil(t, got.Return30D)
	assert.Nil(t, got.ROI30D)
	assert.Nil(t, got.ReturnAll)
}

func TestReturnMetricStore_UpsertLastWriterWins(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewReturnMetricStore(pool)
	ctx := context.Background()
	date := domain.NewDate(2024, 3, 1)

	require.NoError(t, store.Upsert(ctx, testMetricRow("BTCUSDT_binance_bybit", date, 0.001)))
	require.NoError(t, store.Upsert(ctx, testMetricRow("BTCUSDT_binance_bybit", date, 0.009)))

	got, err := store.GetByPairDate(ctx, "BTCUSDT_binance_bybit", date)
	require.NoError(t, err)
	assert.InDelta(t, 0.009, *got.Return1D, 1e-12)
}

func TestReturnMetricStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewReturnMetricStore(pool)
	ctx := context.Background()

	_, err := store.GetByPairDate(ctx, "BTCUSDT_binance_bybit", domain.NewDate(2024, 3, 1))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReturnMetricStore_GetByDateOrdered(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewReturnMetricStore(pool)
	ctx := context.Background()
	date := domain.NewDate(2024, 3, 1)

	for _, pair := range []string{"SOLUSDT_binance_okx", "BTCUSDT_binance_bybit", "ETHUSDT_binance_bybit"} {
		require.NoError(t, store.Upsert(ctx, testMetricRow(pair, date, 0.001)))
	}
	require.NoError(t, store.Upsert(ctx, testMetricRow("BTCUSDT_binance_bybit", date.Next(), 0.002)))

	rows, err := store.GetByDate(ctx, date)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "BTCUSDT_binance_bybit", rows[0].TradingPair)
	assert.Equal(t, "ETHUSDT_binance_bybit", rows[1].TradingPair)
	assert.Equal(t, "SOLUSDT_binance_okx", rows[2].TradingPair)

	pairs, err := store.ListPairsByDate(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT_binance_bybit", "ETHUSDT_binance_bybit", "SOLUSDT_binance_okx"}, pairs)
}
