// Package clock provides waiting helpers for the polling loops.
package clock

import (
	"context"
	"time"
)

// SleepWithContext waits for the duration or returns early if the context is canceled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	return SleepOrSignal(ctx, d, nil)
}

// SleepOrSignal waits for the duration, a value on signal or context
// cancellation, whichever comes first. A nil signal is never ready.
func SleepOrSignal(ctx context.Context, d time.Duration, signal <-chan struct{}) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-signal:
		return nil
	case <-timer.C:
		return nil
	}
}

// Backoff doubles base for every failed attempt after the first and caps
// the result at limit.
func Backoff(attempt int, base, limit time.Duration) time.Duration {
	if attempt <= 1 {
		return min(base, limit)
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= limit || d <= 0 {
			return limit
		}
	}
	return d
}
