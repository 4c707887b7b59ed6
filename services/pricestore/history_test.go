package pricestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_watchlist_backend/models"
)

func openTestHistory(t *testing.T) *SQLiteHistory {
	t.Helper()
	h, err := OpenSQLiteHistory(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestSQLiteHistory_RecentNewestFirst(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()

	for i, price := range []float64{10, 10.5, 11, 11.5} {
		require.NoError(t, h.Append(ctx, models.PriceHistoryPoint{Ticker: "F", Price: price, FetchedAt: int64(1000 * (i + 1))}))
	}
	require.NoError(t, h.Append(ctx, models.PriceHistoryPoint{Ticker: "AAPL", Price: 190, FetchedAt: 5000}))

	points, err := h.Recent(ctx, "F", 3)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, []float64{11.5, 11, 10.5}, []float64{points[0].Price, points[1].Price, points[2].Price})
	assert.Equal(t, int64(4000), points[0].FetchedAt)

	none, err := h.Recent(ctx, "MSFT", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteHistory_PruneBefore(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()
	now := time.UnixMilli(10 * 24 * int64(time.Hour/time.Millisecond))

	require.NoError(t, h.Append(ctx, models.PriceHistoryPoint{Ticker: "F", Price: 1, FetchedAt: now.Add(-72 * time.Hour).UnixMilli()}))
	require.NoError(t, h.Append(ctx, models.PriceHistoryPoint{Ticker: "F", Price: 2, FetchedAt: now.Add(-48 * time.Hour).UnixMilli()}))
	require.NoError(t, h.Append(ctx, models.PriceHistoryPoint{Ticker: "F", Price: 3, FetchedAt: now.UnixMilli()}))

	removed, err := h.PruneBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	points, err := h.Recent(ctx, "F", 0)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 3.0, points[0].Price)
}

func TestOpenSQLiteHistory_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	h, err := OpenSQLiteHistory(path)
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.Ping(context.Background()))
	assert.FileExists(t, path)
}
