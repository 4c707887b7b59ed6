package pricestore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_watchlist_backend/models"
	"stock_watchlist_backend/services/metrics"
)

// stubSource returns queued results per ticker; an empty queue is a failure.
type stubSource struct {
	mu      sync.Mutex
	prices  map[string][]float64
	calls   map[string]int
	failure error
}

func newStubSource() *stubSource {
	return &stubSource{
		prices:  make(map[string][]float64),
		calls:   make(map[string]int),
		failure: errors.New("upstream down"),
	}
}

func (s *stubSource) queue(ticker string, prices ...float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[ticker] = append(s.prices[ticker], prices...)
}

func (s *stubSource) Fetch(_ context.Context, ticker string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[ticker]++
	q := s.prices[ticker]
	if len(q) == 0 {
		return 0, s.failure
	}
	s.prices[ticker] = q[1:]
	return q[0], nil
}

func (s *stubSource) callCount(ticker string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[ticker]
}

type recordingHistory struct {
	points []models.PriceHistoryPoint
	err    error
}

func (h *recordingHistory) Append(_ context.Context, p models.PriceHistoryPoint) error {
	if h.err != nil {
		return h.err
	}
	h.points = append(h.points, p)
	return nil
}

func TestLookup_StoresUnderUppercaseKey(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	repo := NewMemoryRepository()
	src := newStubSource()
	src.queue("AAPL", 190.25)

	store := New(repo, src, WithClock(clock))

	rec, err := store.Lookup(context.Background(), " aapl ")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", rec.Ticker)
	assert.Equal(t, 190.25, rec.Price)
	assert.Equal(t, int64(1_700_000_000_000), rec.FetchedAt)

	stored, err := repo.Find(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, *rec, *stored)

	_, err = repo.Find(context.Background(), "aapl")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookup_ReturnsStoredRecordWithoutFetching(t *testing.T) {
	repo := NewMemoryRepository()
	require.NoError(t, repo.Upsert(context.Background(), &models.StockPrice{Ticker: "MSFT", Price: 410, FetchedAt: 1}))
	src := newStubSource()

	rec, err := New(repo, src).Lookup(context.Background(), "msft")
	require.NoError(t, err)
	assert.Equal(t, 410.0, rec.Price)
	assert.Zero(t, src.callCount("MSFT"))
}

func TestRefresh_OverwritesInPlace(t *testing.T) {
	clock := clockwork.NewFakeClock()
	repo := NewMemoryRepository()
	src := newStubSource()
	src.queue("F", 10.5, 11.0)
	store := New(repo, src, WithClock(clock))

	first, err := store.Refresh(context.Background(), "F")
	require.NoError(t, err)
	clock.Advance(5 * time.Second)
	second, err := store.Refresh(context.Background(), "f")
	require.NoError(t, err)

	assert.Equal(t, 10.5, first.Price)
	assert.Equal(t, 11.0, second.Price)
	assert.Equal(t, int64(5000), second.FetchedAt-first.FetchedAt)
	assert.Equal(t, 1, repo.Len())

	stored, err := repo.Find(context.Background(), "F")
	require.NoError(t, err)
	assert.Equal(t, 11.0, stored.Price)
}

func TestRefresh_FailureKeepsPreviousRecord(t *testing.T) {
	repo := NewMemoryRepository()
	prev := &models.StockPrice{Ticker: "F", Price: 10.5, FetchedAt: 42}
	require.NoError(t, repo.Upsert(context.Background(), prev))

	src := newStubSource()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	store := New(repo, src, WithMetrics(m))

	_, err := store.Refresh(context.Background(), "F")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, src.failure)

	stored, err := repo.Find(context.Background(), "F")
	require.NoError(t, err)
	assert.Equal(t, *prev, *stored)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Refreshes.WithLabelValues("failure")))
}

func TestLookup_MissAndFetchFailure(t *testing.T) {
	store := New(NewMemoryRepository(), newStubSource())

	_, err := store.Lookup(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGetOrRefresh_BlankTicker(t *testing.T) {
	src := newStubSource()
	store := New(NewMemoryRepository(), src)

	for _, ticker := range []string{"", "   "} {
		_, err := store.GetOrRefresh(context.Background(), ticker, true)
		assert.ErrorIs(t, err, ErrInvalidTicker)
	}
	assert.Empty(t, src.calls)
}

func TestRefresh_RecordsHistory(t *testing.T) {
	src := newStubSource()
	src.queue("F", 10.5)
	h := &recordingHistory{}
	store := New(NewMemoryRepository(), src, WithHistory(h), WithClock(clockwork.NewFakeClockAt(time.UnixMilli(1000))))

	_, err := store.Refresh(context.Background(), "F")
	require.NoError(t, err)
	require.Len(t, h.points, 1)
	assert.Equal(t, models.PriceHistoryPoint{Ticker: "F", Price: 10.5, FetchedAt: 1000}, h.points[0])
}

func TestRefresh_HistoryFailureDoesNotFailRefresh(t *testing.T) {
	src := newStubSource()
	src.queue("F", 10.5)
	store := New(NewMemoryRepository(), src, WithHistory(&recordingHistory{err: errors.New("disk full")}))

	rec, err := store.Refresh(context.Background(), "F")
	require.NoError(t, err)
	assert.Equal(t, 10.5, rec.Price)
}

type failingRepo struct{ *MemoryRepository }

func (failingRepo) Upsert(context.Context, *models.StockPrice) error {
	return errors.New("database is locked")
}

func TestRefresh_PersistFailureIsNotUnavailable(t *testing.T) {
	src := newStubSource()
	src.queue("F", 10.5)
	repo := failingRepo{NewMemoryRepository()}

	_, err := New(repo, src).Refresh(context.Background(), "F")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
}
