package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stock_watchlist_backend/services/metrics"
)

type stubPruner struct {
	cutoff  time.Time
	removed int64
	err     error
}

func (p *stubPruner) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	p.cutoff = cutoff
	return p.removed, p.err
}

type stubCounter int

func (c stubCounter) Count() int { return int(c) }

func TestJobs_PruneHistory(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	pruner := &stubPruner{removed: 7}
	j := NewJobs(pruner, 30*24*time.Hour, nil, zap.NewNop(), m)
	now := time.Date(2024, 3, 31, 3, 0, 0, 0, time.UTC)
	j.clock = clockwork.NewFakeClockAt(now)

	j.pruneHistory()

	assert.Equal(t, now.Add(-30*24*time.Hour), pruner.cutoff)
	assert.Equal(t, 7.0, testutil.ToFloat64(m.HistoryPruned))
}

func TestJobs_PruneHistoryError(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	j := NewJobs(&stubPruner{err: errors.New("locked")}, time.Hour, nil, zap.NewNop(), m)

	j.pruneHistory()

	assert.Zero(t, testutil.ToFloat64(m.HistoryPruned))
}

func TestJobs_LogSubscribers(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	j := NewJobs(nil, 0, stubCounter(4), zap.NewNop(), m)

	j.logSubscribers()

	assert.Equal(t, 4.0, testutil.ToFloat64(m.Subscribers))
}

func TestJobs_StartRegistersConfiguredJobs(t *testing.T) {
	tests := []struct {
		name    string
		history HistoryPruner
		counter SubscriberCounter
		want    int
	}{
		{"all", &stubPruner{}, stubCounter(0), 2},
		{"history disabled", nil, stubCounter(0), 1},
		{"none", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := NewJobs(tt.history, time.Hour, tt.counter, nil, nil)
			require.NoError(t, j.Start())
			defer j.Stop()
			assert.Len(t, j.cron.Jobs(), tt.want)
		})
	}
}

func TestJobs_Every(t *testing.T) {
	j := NewJobs(nil, 0, nil, nil, nil)
	require.NoError(t, j.Every(time.Minute, func() {}))
	require.NoError(t, j.Start())
	defer j.Stop()
	assert.Len(t, j.cron.Jobs(), 1)
}
