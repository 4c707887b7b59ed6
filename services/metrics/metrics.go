package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors of the price refresh pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	FetchAttempts  *prometheus.CounterVec
	Refreshes      *prometheus.CounterVec
	TickDuration   prometheus.Histogram
	TickBatchSize  prometheus.Histogram
	Deliveries     *prometheus.CounterVec
	TopicPublishes *prometheus.CounterVec
	Subscribers    prometheus.Gauge
	HistoryPruned  prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FetchAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quote_fetch_attempts_total",
				Help: "Quote source fetch attempts by result",
			},
			[]string{"result"},
		),
		Refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "price_refresh_total",
				Help: "Price store refreshes by result",
			},
			[]string{"result"},
		),
		TickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "refresh_tick_duration_seconds",
				Help:    "Duration of a refresh scheduler tick",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		TickBatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "refresh_tick_batch_size",
				Help:    "Number of price updates produced per tick",
				Buckets: prometheus.LinearBuckets(0, 5, 10),
			},
		),
		Deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subscriber_deliveries_total",
				Help: "Websocket subscriber deliveries by result",
			},
			[]string{"result"},
		),
		TopicPublishes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "topic_publishes_total",
				Help: "Structured topic publishes by sink and result",
			},
			[]string{"sink", "result"},
		),
		Subscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "subscribers_current",
				Help: "Currently registered websocket subscribers",
			},
		),
		HistoryPruned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "price_history_pruned_total",
				Help: "Price history rows removed by retention",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.FetchAttempts,
			m.Refreshes,
			m.TickDuration,
			m.TickBatchSize,
			m.Deliveries,
			m.TopicPublishes,
			m.Subscribers,
			m.HistoryPruned,
		)
	}
	return m
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func (m *Metrics) FetchAttempt(ok bool) {
	if m == nil {
		return
	}
	m.FetchAttempts.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) Refresh(ok bool) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) Tick(d time.Duration, batch int) {
	if m == nil {
		return
	}
	m.TickDuration.Observe(d.Seconds())
	m.TickBatchSize.Observe(float64(batch))
}

func (m *Metrics) Delivery(ok bool) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) TopicPublish(sink string, ok bool) {
	if m == nil {
		return
	}
	m.TopicPublishes.WithLabelValues(sink, result(ok)).Inc()
}

func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.Subscribers.Set(float64(n))
}

func (m *Metrics) Pruned(n int64) {
	if m == nil {
		return
	}
	m.HistoryPruned.Add(float64(n))
}
