package resilience

import (
	"context"
	"time"
)

// Clock provides the current time. Inject a fake in tests to drive the
// breaker's recovery timeout and the limiter's window deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Sleeper abstracts time-based waiting for deterministic testing.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// realSleeper uses actual time.
type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
