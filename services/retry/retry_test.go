package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	clock := clockwork.NewFakeClock()
	calls := 0

	val, err := Do(context.Background(), clock, DefaultPolicy(), func(context.Context, int) (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 1, calls)
}

func TestDo_BackoffDoublesAndSleepsAfterEveryFailure(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var delays []time.Duration
	p := DefaultPolicy()
	p.OnRetry = func(_ int, _ error, d time.Duration) { delays = append(delays, d) }

	done := make(chan error, 1)
	go func() {
		_, err := Do(context.Background(), clock, p, func(context.Context, int) (int, error) {
			return 0, errTransient
		})
		done <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, d := range []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second} {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(d)
	}

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, errTransient)
		assert.Contains(t, err.Error(), "failed after 3 attempts")
	case <-ctx.Done():
		t.Fatal("retry loop did not finish")
	}
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}, delays)
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, clock, DefaultPolicy(), func(context.Context, int) (int, error) {
			return 0, errTransient
		})
		done <- err
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-waitCtx.Done():
		t.Fatal("retry loop ignored cancellation")
	}
}

func TestDo_InvalidPolicy(t *testing.T) {
	_, err := Do(context.Background(), clockwork.NewFakeClock(), Policy{}, func(context.Context, int) (int, error) {
		return 1, nil
	})
	require.Error(t, err)
}
