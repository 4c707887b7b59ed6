package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"stock_watchlist_backend/services/metrics"
)

// HistoryPruner deletes history points older than a cutoff
type HistoryPruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SubscriberCounter reports the number of live subscribers
type SubscriberCounter interface {
	Count() int
}

// Jobs manages housekeeping jobs
type Jobs struct {
	cron        *gocron.Scheduler
	history     HistoryPruner
	retention   time.Duration
	subscribers SubscriberCounter
	clock       clockwork.Clock
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// NewJobs creates the housekeeping scheduler. history may be nil when the price log is disabled.
func NewJobs(history HistoryPruner, retention time.Duration, subscribers SubscriberCounter, logger *zap.Logger, m *metrics.Metrics) *Jobs {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Jobs{
		cron:        gocron.NewScheduler(time.UTC),
		history:     history,
		retention:   retention,
		subscribers: subscribers,
		clock:       clockwork.NewRealClock(),
		logger:      logger,
		metrics:     m,
	}
}

// Every schedules task at a fixed interval. Call before Start.
func (j *Jobs) Every(interval time.Duration, task func()) error {
	_, err := j.cron.Every(interval).Do(task)
	return err
}

// Start starts all scheduled jobs
func (j *Jobs) Start() error {
	j.logger.Info("starting housekeeping scheduler")

	// Prune price history daily at 03:00
	if j.history != nil && j.retention > 0 {
		if _, err := j.cron.Every(1).Day().At("03:00").Do(j.pruneHistory); err != nil {
			return err
		}
	}

	// Log subscriber stats every minute
	if j.subscribers != nil {
		if _, err := j.cron.Every(1).Minute().Do(j.logSubscribers); err != nil {
			return err
		}
	}

	j.cron.StartAsync()
	j.logger.Info("housekeeping scheduler started", zap.Int("jobs", len(j.cron.Jobs())))
	return nil
}

// Stop stops the scheduler
func (j *Jobs) Stop() {
	j.cron.Stop()
	j.logger.Info("housekeeping scheduler stopped")
}

// pruneHistory removes history points older than the retention window
func (j *Jobs) pruneHistory() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := j.clock.Now().Add(-j.retention)
	removed, err := j.history.PruneBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("failed to prune price history", zap.Error(err))
		return
	}
	j.metrics.Pruned(removed)
	j.logger.Info("pruned price history", zap.Int64("removed", removed), zap.Time("cutoff", cutoff))
}

func (j *Jobs) logSubscribers() {
	n := j.subscribers.Count()
	j.metrics.SetSubscribers(n)
	j.logger.Debug("subscriber stats", zap.Int("subscribers", n))
}
