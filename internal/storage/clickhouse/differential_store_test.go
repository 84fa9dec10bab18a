package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"funding-arb-lab/internal/domain"
	"funding-arb-lab/internal/storage"
)

func testObs(symbol string, ts time.Time, diff *float64) *domain.DifferentialObservation {
	return &domain.DifferentialObservation{
		Symbol:    symbol,
		ExchangeA: "binance",
		ExchangeB: "bybit",
		Timestamp: ts,
		RateDiff:  diff,
	}
}

func TestDifferentialStore_InsertAndQuery(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDifferentialStore(conn)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	obs := []*domain.DifferentialObservation{
		testObs("BTCUSDT", base.Add(1*time.Hour), ptr(0.0001)),
		testObs("BTCUSDT", base.Add(2*time.Hour), nil),
		testObs("BTCUSDT", base.Add(3*time.Hour), ptr(-0.0002)),
		testObs("ETHUSDT", base.Add(1*time.Hour), ptr(0.0005)),
	}
	require.NoError(t, store.InsertBulk(ctx, obs))

	got, err := store.GetByPairRange(ctx, "BTCUSDT_binance_bybit", base, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Nil(t, got[1].RateDiff, "NULL rate diff must survive the round trip")
	require.NotNil(t, got[0].RateDiff)
	assert.InDelta(t, 0.0001, *got[0].RateDiff, 1e-12)
	assert.True(t, got[0].Timestamp.Before(got[1].Timestamp))
}

func TestDifferentialStore_DuplicateRejected(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDifferentialStore(conn)
	ctx := context.Background()

	ts := time.Date(2024, 3, 1, 5, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertBulk(ctx, []*domain.DifferentialObservation{testObs("BTCUSDT", ts, ptr(1.0))}))

	err := store.InsertBulk(ctx, []*domain.DifferentialObservation{testObs("BTCUSDT", ts, ptr(2.0))})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestDifferentialStore_DailyReturn(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDifferentialStore(conn)
	ctx := context.Background()

	day := domain.NewDate(2024, 3, 2)
	require.NoError(t, store.InsertBulk(ctx, []*domain.DifferentialObservation{
		testObs("BTCUSDT", day.Time().Add(1*time.Hour), ptr(0.001)),
		testObs("BTCUSDT", day.Time().Add(9*time.Hour), ptr(0.002)),
		testObs("BTCUSDT", day.Time().Add(17*time.Hour), nil),
		testObs("BTCUSDT", day.End().Add(time.Hour), ptr(100.0)),
		testObs("ETHUSDT", day.Time().Add(1*time.Hour), nil),
	}))

	got, err := store.DailyReturn(ctx, "BTCUSDT_binance_bybit", day)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 0.003, *got, 1e-12)

	// All-NULL day yields nil, not zero.
	got, err = store.DailyReturn(ctx, "ETHUSDT_binance_bybit", day)
	require.NoError(t, err)
	assert.Nil(t, got)

	// No data at all yields nil as well.
	got, err = store.DailyReturn(ctx, "SOLUSDT_binance_bybit", day)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDifferentialStore_PairsAndTimestamps(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDifferentialStore(conn)
	ctx := context.Background()

	_, err := store.LatestTimestamp(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertBulk(ctx, []*domain.DifferentialObservation{
		testObs("ETHUSDT", base, ptr(1.0)),
		testObs("BTCUSDT", base.Add(2*time.Hour), ptr(1.0)),
		testObs("BTCUSDT", base.Add(6*time.Hour), ptr(1.0)),
		testObs("SOLUSDT", base.Add(72*time.Hour), ptr(1.0)),
	}))

	pairs, err := store.ListPairs(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT_binance_bybit", "ETHUSDT_binance_bybit"}, pairs)

	// The bound is exclusive: an observation stamped exactly at until
	// does not make its pair expected yet.
	pairs, err = store.ListPairs(ctx, base.Add(72*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT_binance_bybit", "ETHUSDT_binance_bybit"}, pairs)

	first, err := store.FirstTimestamp(ctx, "BTCUSDT_binance_bybit")
	require.NoError(t, err)
	assert.True(t, first.Equal(base.Add(2*time.Hour)))

	latest, err := store.LatestTimestamp(ctx)
	require.NoError(t, err)
	assert.True(t, latest.Equal(base.Add(72*time.Hour)))

	_, err = store.FirstTimestamp(ctx, "XRPUSDT_binance_bybit")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
