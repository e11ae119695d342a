package resilience

import (
	"context"
	"log/slog"
)

// Invoker composes rate limiting, circuit breaking, and retry around one
// operation, in that fixed order: the limiter paces first so retries cannot
// bypass the call budget, and the whole retry loop runs as a single logical
// unit inside the breaker. An operation that succeeds on its third retry
// counts as one success toward the breaker, not three.
type Invoker struct {
	name    string
	limiter *RateLimiter
	breaker *CircuitBreaker
	policy  RetryPolicy
	sleeper Sleeper
	logger  *slog.Logger

	// onAttempt observes every raw attempt, successful or not.
	onAttempt func(name string, attempt int, err error)
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithInvokerLogger sets a custom logger.
func WithInvokerLogger(logger *slog.Logger) InvokerOption {
	return func(inv *Invoker) { inv.logger = logger }
}

// WithInvokerSleeper sets the sleep implementation used between retries.
func WithInvokerSleeper(s Sleeper) InvokerOption {
	return func(inv *Invoker) { inv.sleeper = s }
}

// WithAttemptObserver registers a callback invoked after every raw attempt.
// Used to feed metrics without coupling this package to a metrics backend.
func WithAttemptObserver(fn func(name string, attempt int, err error)) InvokerOption {
	return func(inv *Invoker) { inv.onAttempt = fn }
}

// NewInvoker builds an Invoker named for its upstream source. Any of
// limiter or breaker may be nil to skip that layer.
func NewInvoker(name string, limiter *RateLimiter, breaker *CircuitBreaker, policy RetryPolicy, opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		name:    name,
		limiter: limiter,
		breaker: breaker,
		policy:  policy,
		sleeper: realSleeper{},
	}
	for _, opt := range opts {
		opt(inv)
	}
	if inv.logger == nil {
		inv.logger = slog.Default()
	}
	return inv
}

// Breaker returns the composed circuit breaker, or nil.
func (inv *Invoker) Breaker() *CircuitBreaker { return inv.breaker }

// Limiter returns the composed rate limiter, or nil.
func (inv *Invoker) Limiter() *RateLimiter { return inv.limiter }

// Do runs op through the invoker's protection layers. A call rejected by an
// open circuit returns ErrCircuitOpen without invoking op; when all retries
// are exhausted, the final failure is returned unchanged.
func Do[T any](ctx context.Context, inv *Invoker, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if inv.limiter != nil {
		if err := inv.limiter.Acquire(ctx); err != nil {
			return zero, err
		}
	}

	attempt := 0
	run := func() (T, error) {
		result, err := op(ctx)
		if inv.onAttempt != nil {
			inv.onAttempt(inv.name, attempt, err)
		}
		if err != nil {
			inv.logger.Warn("upstream call failed",
				"source", inv.name,
				"attempt", attempt+1,
				"max_attempts", inv.policy.MaxAttempts,
				"error", err,
			)
		}
		attempt++
		return result, err
	}

	if inv.breaker == nil {
		return Retry(ctx, inv.policy, inv.sleeper, run)
	}

	var result T
	err := inv.breaker.Call(func() error {
		r, err := Retry(ctx, inv.policy, inv.sleeper, run)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return zero, err
	}
	return result, nil
}

// Call runs an operation with no result value through Do.
func (inv *Invoker) Call(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Do(ctx, inv, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
