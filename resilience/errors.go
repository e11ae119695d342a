package resilience

import "errors"

// Sentinel errors - use with errors.Is()
// ErrCircuitOpen is returned when a call is rejected because the circuit
// breaker is open. It is distinguishable from any failure of the wrapped
// operation so callers can skip the source instead of waiting on it.
var ErrCircuitOpen = errors.New("tradekit: circuit breaker open")
