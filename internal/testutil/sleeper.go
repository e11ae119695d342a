package testutil

import (
	"context"
	"sync"
	"time"
)

// FakeSleeper records sleep calls without actually sleeping.
// Use this in tests to verify retry and rate-limit timing without real
// delays. When bound to a FakeClock it advances the clock by each slept
// duration, so iterative wait loops make progress.
type FakeSleeper struct {
	mu    sync.Mutex
	calls []time.Duration
	clock *FakeClock
}

// NewClockSleeper returns a FakeSleeper that advances clock on every Sleep.
func NewClockSleeper(clock *FakeClock) *FakeSleeper {
	return &FakeSleeper{clock: clock}
}

// Sleep records the duration without actually sleeping.
// Returns ctx.Err() if the context is already cancelled.
func (f *FakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	f.mu.Lock()
	f.calls = append(f.calls, d)
	clock := f.clock
	f.mu.Unlock()
	if clock != nil {
		clock.Advance(d)
	}
	return nil
}

// Calls returns all recorded sleep durations.
func (f *FakeSleeper) Calls() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration{}, f.calls...)
}

// TotalDuration returns the sum of all sleep durations.
func (f *FakeSleeper) TotalDuration() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total time.Duration
	for _, d := range f.calls {
		total += d
	}
	return total
}

// CallCount returns the number of sleep calls.
func (f *FakeSleeper) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// LastCall returns the most recent sleep duration.
// Returns 0 if no calls have been made.
func (f *FakeSleeper) LastCall() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return 0
	}
	return f.calls[len(f.calls)-1]
}

// Reset clears all recorded calls.
func (f *FakeSleeper) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = f.calls[:0]
}
