package pricestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"stock_watchlist_backend/models"
	"stock_watchlist_backend/services/metrics"
)

var (
	// ErrUnavailable means no price could be obtained from the quote source.
	ErrUnavailable = errors.New("price unavailable")
	// ErrInvalidTicker is returned for a blank ticker.
	ErrInvalidTicker = errors.New("ticker must not be blank")
)

// PriceSource fetches a live price. *pricefetcher.Fetcher satisfies it.
type PriceSource interface {
	Fetch(ctx context.Context, ticker string) (float64, error)
}

// Store is the cache-aside price store: one record per uppercase ticker,
// overwritten on every successful fetch.
type Store struct {
	repo    Repository
	source  PriceSource
	history HistoryRecorder
	clock   clockwork.Clock
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithHistory records every successful refresh in h.
func WithHistory(h HistoryRecorder) Option {
	return func(s *Store) {
		s.history = h
	}
}

// WithClock sets the clock used to stamp refreshed records.
func WithClock(c clockwork.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithMetrics counts refreshes by result.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// New creates a Store that persists to repo and fetches missing prices from source.
func New(repo Repository, source PriceSource, options ...Option) *Store {
	s := &Store{
		repo:   repo,
		source: source,
		clock:  clockwork.NewRealClock(),
		logger: zap.NewNop(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Lookup returns the stored record, fetching only on a miss.
func (s *Store) Lookup(ctx context.Context, ticker string) (*models.StockPrice, error) {
	return s.GetOrRefresh(ctx, ticker, false)
}

// Refresh always fetches and overwrites the stored record on success.
func (s *Store) Refresh(ctx context.Context, ticker string) (*models.StockPrice, error) {
	return s.GetOrRefresh(ctx, ticker, true)
}

// GetOrRefresh returns the price record for ticker. With force=false a stored record
// is returned as-is; otherwise, or on a miss, the price is fetched and persisted.
// A failed fetch leaves the stored record untouched and returns ErrUnavailable.
func (s *Store) GetOrRefresh(ctx context.Context, ticker string, force bool) (*models.StockPrice, error) {
	key := models.NormalizeTicker(ticker)
	if key == "" {
		return nil, ErrInvalidTicker
	}

	if !force {
		rec, err := s.repo.Find(ctx, key)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("price lookup failed, fetching live", zap.String("ticker", key), zap.Error(err))
		}
	}

	price, err := s.source.Fetch(ctx, key)
	if err != nil {
		s.metrics.Refresh(false)
		return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, key, err)
	}

	rec := &models.StockPrice{
		Ticker:    key,
		Price:     price,
		FetchedAt: s.clock.Now().UnixMilli(),
	}
	if err := s.repo.Upsert(ctx, rec); err != nil {
		s.metrics.Refresh(false)
		return nil, err
	}
	s.metrics.Refresh(true)

	if s.history != nil {
		point := models.PriceHistoryPoint{Ticker: rec.Ticker, Price: rec.Price, FetchedAt: rec.FetchedAt}
		if err := s.history.Append(ctx, point); err != nil {
			s.logger.Warn("failed to record price history", zap.String("ticker", key), zap.Error(err))
		}
	}

	return rec, nil
}
