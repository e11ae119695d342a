package resilience

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// RetryPolicy computes bounded, jittered backoff delays. It is a pure value:
// the same policy may be shared by any number of callers.
type RetryPolicy struct {
	// MaxAttempts is the total number of invocations, including the first.
	MaxAttempts int

	// BaseDelay is the delay before the second attempt (attempt index 0).
	BaseDelay time.Duration

	// MaxDelay caps the computed delay when Exponential is set.
	MaxDelay time.Duration

	// Exponential doubles the delay each attempt.
	Exponential bool

	// Jitter randomizes delays to avoid synchronized retry storms.
	// Exponential delays use full jitter (uniform factor in [0,1));
	// constant delays are scaled by a uniform factor in [0.5,1.5].
	Jitter bool
}

// DefaultRetryPolicy returns production-ready defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Exponential: true,
		Jitter:      true,
	}
}

// Delay returns the backoff delay for the given zero-based attempt index.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if !p.Exponential {
		d := float64(p.BaseDelay)
		if p.Jitter {
			d *= 0.5 + randomFloat()
		}
		return time.Duration(d)
	}

	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if max := float64(p.MaxDelay); p.MaxDelay > 0 && d > max {
		d = max
	}
	if p.Jitter {
		d *= randomFloat()
	}
	return time.Duration(d)
}

// Retry invokes op up to policy.MaxAttempts times, returning on first
// success. Each failed non-final attempt sleeps the policy delay for its
// attempt index; after the final attempt the last failure is returned
// unchanged. Sleeps honor ctx cancellation.
func Retry[T any](ctx context.Context, policy RetryPolicy, sleeper Sleeper, op func() (T, error)) (T, error) {
	var zero T
	if sleeper == nil {
		sleeper = realSleeper{}
	}
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := op()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}
		if err := sleeper.Sleep(ctx, policy.Delay(attempt)); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

// randomFloat returns a uniform value in [0,1) using crypto/rand.
func randomFloat() float64 {
	const precision = 1 << 53
	n, err := rand.Int(rand.Reader, big.NewInt(precision))
	if err != nil {
		return 0.5
	}
	return float64(n.Int64()) / precision
}
