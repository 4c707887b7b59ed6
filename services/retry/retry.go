package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// Policy describes a bounded retry loop with exponential backoff.
// The caller sleeps after every failed attempt, the last one included, so a fully
// failed loop of 3 attempts at 500ms/x2 blocks for 500+1000+2000ms.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   int
	OnRetry      func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy is 3 attempts starting at 500ms and doubling.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, InitialDelay: 500 * time.Millisecond, Multiplier: 2}
}

type Operation[T any] func(ctx context.Context, attempt int) (T, error)

// Do runs op until it succeeds or MaxAttempts is exhausted. Waits go through clock.
func Do[T any](ctx context.Context, clock clockwork.Clock, p Policy, op Operation[T]) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		return zero, fmt.Errorf("retry: MaxAttempts must be >= 1, got %d", p.MaxAttempts)
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	delay := p.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		val, err := op(ctx, attempt)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}

		if delay > 0 {
			select {
			case <-clock.After(delay):
			case <-ctx.Done():
				return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
			}
		}
		delay *= time.Duration(multiplier)
	}

	return zero, fmt.Errorf("failed after %d attempts: %w", p.MaxAttempts, lastErr)
}
