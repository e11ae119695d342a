package resilience

import (
	"log/slog"
	"sync"
	"time"
)

// CircuitState is the state of a CircuitBreaker.
type CircuitState int

const (
	// StateClosed passes calls through and counts consecutive failures.
	StateClosed CircuitState = iota
	// StateOpen rejects calls immediately without invoking the operation.
	StateOpen
	// StateHalfOpen permits exactly one trial call to probe recovery.
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerSettings configures a CircuitBreaker.
type BreakerSettings struct {
	// Name identifies the breaker in logs and state-change callbacks.
	Name string

	// FailureThreshold is the number of consecutive failures that opens
	// the circuit. Default: 5.
	FailureThreshold int

	// RecoveryTimeout is how long the circuit stays open before the next
	// call is admitted as a recovery probe. Default: 60s.
	RecoveryTimeout time.Duration

	// IsFailure classifies which errors count toward the threshold.
	// If nil, every non-nil error counts. Context cancellation is a
	// typical exclusion: it reflects the caller, not the upstream.
	IsFailure func(error) bool

	// OnStateChange is called after every state transition.
	OnStateChange func(name string, from, to CircuitState)

	// Logger for state transitions. Default: slog.Default().
	Logger *slog.Logger

	// Clock for recovery timing. Default: SystemClock.
	Clock Clock
}

// CircuitBreaker sheds load from a known-bad upstream: after
// FailureThreshold consecutive failures it rejects calls outright, then
// probes recovery with a single trial call once RecoveryTimeout has elapsed.
//
// The open-to-half-open transition is evaluated lazily on the next attempted
// call; no timer goroutine is owned.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	isFailure        func(error) bool
	onStateChange    func(name string, from, to CircuitState)
	logger           *slog.Logger
	clock            Clock

	mu           sync.Mutex
	state        CircuitState
	failureCount int
	lastFailure  time.Time
	probing      bool // trial call in flight while half-open
}

// NewCircuitBreaker creates a CircuitBreaker from settings, applying
// defaults for any zero field.
func NewCircuitBreaker(s BreakerSettings) *CircuitBreaker {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = 5
	}
	if s.RecoveryTimeout <= 0 {
		s.RecoveryTimeout = 60 * time.Second
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	if s.Clock == nil {
		s.Clock = SystemClock{}
	}
	return &CircuitBreaker{
		name:             s.Name,
		failureThreshold: s.FailureThreshold,
		recoveryTimeout:  s.RecoveryTimeout,
		isFailure:        s.IsFailure,
		onStateChange:    s.OnStateChange,
		logger:           s.Logger,
		clock:            s.Clock,
	}
}

// Call invokes op unless the circuit rejects it. The operation's own failure
// is recorded and propagated unchanged; a rejection returns ErrCircuitOpen
// without invoking op. Call wraps exactly one invocation - retry is composed
// one layer out, in the Invoker.
func (cb *CircuitBreaker) Call(op func() error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}
	err := op()
	cb.afterCall(err)
	return err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.clock.Now().Sub(cb.lastFailure) < cb.recoveryTimeout {
			return ErrCircuitOpen
		}
		cb.setState(StateHalfOpen)
		cb.probing = true
		return nil
	case StateHalfOpen:
		// A trial is already in flight; only one probe is admitted.
		if cb.probing {
			return ErrCircuitOpen
		}
		cb.probing = true
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil && (cb.isFailure == nil || cb.isFailure(err)) {
		cb.onFailure()
		return
	}
	cb.onSuccess()
}

func (cb *CircuitBreaker) onSuccess() {
	cb.failureCount = 0
	if cb.state == StateHalfOpen {
		cb.probing = false
		cb.setState(StateClosed)
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.failureCount++
	cb.lastFailure = cb.clock.Now()

	switch cb.state {
	case StateHalfOpen:
		cb.probing = false
		cb.setState(StateOpen)
	case StateClosed:
		if cb.failureCount >= cb.failureThreshold {
			cb.setState(StateOpen)
		}
	}
}

// setState transitions and notifies. Caller holds cb.mu.
func (cb *CircuitBreaker) setState(to CircuitState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.logger.Info("circuit breaker state changed",
		"name", cb.name,
		"from", from.String(),
		"to", to.String(),
		"failures", cb.failureCount,
	)
	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, from, to)
	}
}

// Reset forces the breaker closed unconditionally and clears its history.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failureCount = 0
	cb.lastFailure = time.Time{}
	cb.probing = false
	cb.setState(StateClosed)
}

// IsOpen reports whether the circuit is currently open.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state == StateOpen
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// FailureCount returns the current consecutive-failure count.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}
