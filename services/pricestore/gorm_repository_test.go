package pricestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"stock_watchlist_backend/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.MigrateStockModels(db))
	return db
}

func TestGormRepository_FindMissing(t *testing.T) {
	repo := NewGormRepository(newTestDB(t))

	_, err := repo.Find(context.Background(), "AAPL")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormRepository_UpsertOverwrites(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &models.StockPrice{Ticker: "AAPL", Price: 190, FetchedAt: 1}))
	require.NoError(t, repo.Upsert(ctx, &models.StockPrice{Ticker: "AAPL", Price: 191.5, FetchedAt: 2}))
	require.NoError(t, repo.Upsert(ctx, &models.StockPrice{Ticker: "MSFT", Price: 410, FetchedAt: 3}))

	rec, err := repo.Find(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, models.StockPrice{Ticker: "AAPL", Price: 191.5, FetchedAt: 2}, *rec)

	var count int64
	require.NoError(t, db.Model(&models.StockPrice{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestGormRepository_WithStore(t *testing.T) {
	src := newStubSource()
	src.queue("F", 10.5, 12)
	repo := NewGormRepository(newTestDB(t))
	store := New(repo, src)

	_, err := store.Refresh(context.Background(), "f")
	require.NoError(t, err)
	_, err = store.Refresh(context.Background(), "F")
	require.NoError(t, err)
	_, err = store.Refresh(context.Background(), "F")
	require.ErrorIs(t, err, ErrUnavailable)

	rec, err := store.Lookup(context.Background(), "F")
	require.NoError(t, err)
	assert.Equal(t, 12.0, rec.Price)
}
