package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimiter paces calls to at most maxCalls per sliding window of length
// period. It tracks individual grant timestamps, so bursts are bounded
// exactly at maxCalls with no token-bucket burst credit.
type RateLimiter struct {
	maxCalls int
	period   time.Duration
	clock    Clock
	sleeper  Sleeper

	mu    sync.Mutex
	calls []time.Time
}

// LimiterOption configures a RateLimiter.
type LimiterOption func(*RateLimiter)

// WithLimiterClock sets the time source (useful for testing).
func WithLimiterClock(c Clock) LimiterOption {
	return func(l *RateLimiter) { l.clock = c }
}

// WithLimiterSleeper sets the blocking sleep implementation (useful for testing).
func WithLimiterSleeper(s Sleeper) LimiterOption {
	return func(l *RateLimiter) { l.sleeper = s }
}

// NewRateLimiter creates a limiter allowing maxCalls per period.
func NewRateLimiter(maxCalls int, period time.Duration, opts ...LimiterOption) *RateLimiter {
	if maxCalls <= 0 {
		maxCalls = 1
	}
	if period <= 0 {
		period = time.Second
	}
	l := &RateLimiter{
		maxCalls: maxCalls,
		period:   period,
		clock:    SystemClock{},
		sleeper:  realSleeper{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire blocks until a call may legally proceed, then records the grant.
// It returns early only when ctx is cancelled. The wait is an iterative
// sleep-and-recheck loop: when the window is full it sleeps until the oldest
// retained grant exits the window, then re-evaluates.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.clock.Now()
		l.prune(now)
		if len(l.calls) < l.maxCalls {
			l.calls = append(l.calls, now)
			l.mu.Unlock()
			return nil
		}
		wait := l.calls[0].Add(l.period).Sub(now)
		l.mu.Unlock()

		if err := l.sleeper.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// TryAcquire reports whether a call may proceed without blocking,
// recording the grant only on success.
func (l *RateLimiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	l.prune(now)
	if len(l.calls) >= l.maxCalls {
		return false
	}
	l.calls = append(l.calls, now)
	return true
}

// Remaining returns how many calls may still proceed in the current window.
func (l *RateLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.clock.Now())
	return l.maxCalls - len(l.calls)
}

// prune discards grants that have exited the trailing window.
// Caller holds l.mu.
func (l *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-l.period)
	i := 0
	for i < len(l.calls) && !l.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}
