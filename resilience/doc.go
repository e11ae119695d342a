// Package resilience shields calls to flaky upstream trading and market-data
// APIs. It provides a failure-isolating circuit breaker, a sliding-window
// rate limiter, bounded jittered retry, and an Invoker that composes the
// three around a single operation.
//
// Each upstream source owns its own CircuitBreaker, RateLimiter, and
// RetryPolicy so one misbehaving source cannot throttle or trip an unrelated
// one. The components own no goroutines or timers; the only suspension points
// are RateLimiter.Acquire and the sleeps between retry attempts, both of
// which honor context cancellation.
package resilience
