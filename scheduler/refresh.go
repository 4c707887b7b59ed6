package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"stock_watchlist_backend/models"
	"stock_watchlist_backend/services/metrics"
	"stock_watchlist_backend/services/realtime"
)

// DefaultRefreshInterval is the delay between the end of one tick and the start of the next
const DefaultRefreshInterval = 5 * time.Second

// WatchlistSource lists the tickers to refresh
type WatchlistSource interface {
	ListTracked(ctx context.Context) ([]models.TrackedTicker, error)
}

// PriceRefresher force-fetches a ticker and persists the result
type PriceRefresher interface {
	Refresh(ctx context.Context, ticker string) (*models.StockPrice, error)
}

// Broadcaster delivers a text payload to every live subscriber
type Broadcaster interface {
	Broadcast(payload string) int
}

// RefreshScheduler refreshes every watched ticker, then publishes the batch of
// successful updates to the prices topic and broadcasts it to subscribers.
// Ticks never overlap: the next one is armed only after the current one returns.
type RefreshScheduler struct {
	watchlist   WatchlistSource
	store       PriceRefresher
	topic       realtime.TopicPublisher
	broadcaster Broadcaster

	interval time.Duration
	clock    clockwork.Clock
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// RefreshOption configures a RefreshScheduler.
type RefreshOption func(*RefreshScheduler)

// WithInterval sets the delay between the end of one tick and the start of the next.
// Non-positive values keep the default.
func WithInterval(d time.Duration) RefreshOption {
	return func(s *RefreshScheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock sets the clock that drives the delay and stamps updates.
func WithClock(c clockwork.Clock) RefreshOption {
	return func(s *RefreshScheduler) {
		s.clock = c
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(l *zap.Logger) RefreshOption {
	return func(s *RefreshScheduler) {
		s.logger = l
	}
}

// WithMetrics records tick duration and batch size.
func WithMetrics(m *metrics.Metrics) RefreshOption {
	return func(s *RefreshScheduler) {
		s.metrics = m
	}
}

// NewRefreshScheduler wires the loop. topic may be nil when no structured sink is configured.
func NewRefreshScheduler(watchlist WatchlistSource, store PriceRefresher, topic realtime.TopicPublisher, broadcaster Broadcaster, opts ...RefreshOption) *RefreshScheduler {
	s := &RefreshScheduler{
		watchlist:   watchlist,
		store:       store,
		topic:       topic,
		broadcaster: broadcaster,
		interval:    DefaultRefreshInterval,
		clock:       clockwork.NewRealClock(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the loop in the background until Stop is called
func (s *RefreshScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		s.Run(ctx)
	}(s.done)
}

// Stop cancels the loop and waits for the current tick to return
func (s *RefreshScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Run ticks immediately, then again interval after each tick completes, until ctx is done.
func (s *RefreshScheduler) Run(ctx context.Context) {
	s.logger.Info("price refresh loop started", zap.Duration("interval", s.interval))
	for {
		if ctx.Err() != nil {
			s.logger.Info("price refresh loop stopped")
			return
		}
		s.safeTick(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("price refresh loop stopped")
			return
		case <-s.clock.After(s.interval):
		}
	}
}

func (s *RefreshScheduler) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("price refresh tick panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	s.Tick(ctx)
}

// Tick runs one refresh pass and returns the published batch, in watchlist order.
// A ticker that fails to refresh is logged and left out of the batch.
func (s *RefreshScheduler) Tick(ctx context.Context) []models.PriceUpdate {
	start := s.clock.Now()

	tracked, err := s.watchlist.ListTracked(ctx)
	if err != nil {
		s.logger.Error("failed to list watchlist", zap.Error(err))
		return nil
	}
	if len(tracked) == 0 {
		return nil
	}

	batch := make([]models.PriceUpdate, 0, len(tracked))
	for _, t := range tracked {
		if ctx.Err() != nil {
			s.logger.Info("refresh tick interrupted", zap.Int("refreshed", len(batch)), zap.Int("tracked", len(tracked)))
			return nil
		}

		rec, err := s.refreshOne(ctx, t.Ticker)
		if err != nil {
			s.logger.Warn("failed to refresh price", zap.String("ticker", t.Ticker), zap.Uint("id", t.ID), zap.Error(err))
			continue
		}
		batch = append(batch, models.PriceUpdate{
			ID:        t.ID,
			Ticker:    rec.Ticker,
			Price:     rec.Price,
			Timestamp: s.clock.Now().UnixMilli(),
		})
	}

	s.metrics.Tick(s.clock.Since(start), len(batch))
	if len(batch) == 0 {
		return batch
	}

	s.publish(ctx, batch)
	s.broadcast(batch)

	s.logger.Debug("price refresh tick complete",
		zap.Int("tracked", len(tracked)),
		zap.Int("refreshed", len(batch)),
		zap.Duration("took", s.clock.Since(start)),
	)
	return batch
}

func (s *RefreshScheduler) refreshOne(ctx context.Context, ticker string) (rec *models.StockPrice, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh panicked: %v", r)
		}
	}()
	return s.store.Refresh(ctx, ticker)
}

// publish never unwinds into the broadcast that follows it
func (s *RefreshScheduler) publish(ctx context.Context, batch []models.PriceUpdate) {
	if s.topic == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("price batch publish panicked", zap.String("topic", realtime.PricesTopic), zap.Any("panic", r))
		}
	}()
	if err := s.topic.Publish(ctx, realtime.PricesTopic, batch); err != nil {
		s.logger.Warn("failed to publish price batch", zap.String("topic", realtime.PricesTopic), zap.Error(err))
	}
}

func (s *RefreshScheduler) broadcast(batch []models.PriceUpdate) {
	payload, err := json.Marshal(batch)
	if err != nil {
		s.logger.Error("failed to encode price batch", zap.Error(err))
		return
	}
	delivered := s.broadcaster.Broadcast(string(payload))
	s.logger.Debug("broadcast price batch", zap.Int("delivered", delivered), zap.Int("updates", len(batch)))
}
