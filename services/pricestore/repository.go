package pricestore

import (
	"context"
	"errors"
	"sync"

	"stock_watchlist_backend/models"
)

// ErrNotFound is returned by a Repository when no record exists for a ticker.
var ErrNotFound = errors.New("price record not found")

// Repository persists one StockPrice per uppercase ticker.
// Upsert must replace the whole record atomically per key.
type Repository interface {
	Find(ctx context.Context, ticker string) (*models.StockPrice, error)
	Upsert(ctx context.Context, rec *models.StockPrice) error
}

// MemoryRepository keeps records in a map. Used when PRICE_BACKEND=memory and in tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]models.StockPrice
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]models.StockPrice)}
}

func (r *MemoryRepository) Find(_ context.Context, ticker string) (*models.StockPrice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[ticker]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (r *MemoryRepository) Upsert(_ context.Context, rec *models.StockPrice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[rec.Ticker] = *rec
	return nil
}

// Len returns the number of stored tickers
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
