package realtime

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"stock_watchlist_backend/services/metrics"
)

// ErrDeliveryFailed is returned when a message could not be handed to one
// subscriber or one topic sink.
var ErrDeliveryFailed = errors.New("delivery failed")

// Subscriber is one live connection that can receive text frames.
type Subscriber interface {
	ID() string
	IsOpen() bool
	SendText(payload string) error
}

// Registry is the set of live subscribers. Register and Unregister are idempotent.
type Registry struct {
	mu      sync.Mutex
	subs    map[string]Subscriber
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewRegistry(logger *zap.Logger, m *metrics.Metrics) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		subs:    make(map[string]Subscriber),
		logger:  logger,
		metrics: m,
	}
}

// Register adds s to the set; registering the same subscriber twice is a no-op
func (r *Registry) Register(s Subscriber) {
	r.mu.Lock()
	r.subs[s.ID()] = s
	n := len(r.subs)
	r.mu.Unlock()

	r.metrics.SetSubscribers(n)
	r.logger.Debug("subscriber registered", zap.String("id", s.ID()), zap.Int("total", n))
}

// Unregister removes s; unknown subscribers are ignored
func (r *Registry) Unregister(s Subscriber) {
	r.mu.Lock()
	_, ok := r.subs[s.ID()]
	delete(r.subs, s.ID())
	n := len(r.subs)
	r.mu.Unlock()

	if ok {
		r.metrics.SetSubscribers(n)
		r.logger.Debug("subscriber unregistered", zap.String("id", s.ID()), zap.Int("total", n))
	}
}

// Count returns the number of registered subscribers
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Snapshot returns the current members in no particular order
func (r *Registry) Snapshot() []Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	return out
}

// Broadcast sends payload to every open subscriber and returns how many accepted it.
// Closed subscribers are skipped but stay registered until their connection unregisters them.
// A failing subscriber never stops delivery to the rest.
func (r *Registry) Broadcast(payload string) int {
	delivered := 0
	for _, s := range r.Snapshot() {
		if !s.IsOpen() {
			continue
		}
		if err := deliver(s, payload); err != nil {
			r.metrics.Delivery(false)
			r.logger.Debug("failed to deliver to subscriber", zap.String("id", s.ID()), zap.Error(err))
			continue
		}
		r.metrics.Delivery(true)
		delivered++
	}
	return delivered
}

func deliver(s Subscriber, payload string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: panic: %v", ErrDeliveryFailed, rec)
		}
	}()
	return s.SendText(payload)
}
