// Package metrics defines the instrumentation surface for tradekit. The
// Noop recorder is the default; the Prometheus recorder is opt-in so
// library users without a metrics pipeline pay nothing.
package metrics

import "time"

// Recorder receives instrumentation events from the collector and its
// resilience layers. Implementations must be safe for concurrent use.
type Recorder interface {
	// CollectOutcome records one completed collect operation.
	CollectOutcome(source, symbol string, err error, elapsed time.Duration)

	// BreakerStateChange records a circuit breaker transition.
	BreakerStateChange(source, from, to string)

	// RetryAttempt records one raw attempt against an upstream.
	RetryAttempt(source string, attempt int, err error)

	// RateLimitWait records time spent blocked waiting for limiter capacity.
	RateLimitWait(source string, waited time.Duration)

	// HealthCheck records one health probe outcome.
	HealthCheck(source string, healthy bool)
}

// Noop is a Recorder that discards every event.
type Noop struct{}

func (Noop) CollectOutcome(string, string, error, time.Duration) {}
func (Noop) BreakerStateChange(string, string, string)           {}
func (Noop) RetryAttempt(string, int, error)                     {}
func (Noop) RateLimitWait(string, time.Duration)                 {}
func (Noop) HealthCheck(string, bool)                            {}
