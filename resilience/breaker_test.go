package resilience_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prilive-com/tradekit/internal/testutil"
	"github.com/prilive-com/tradekit/resilience"
)

var errUpstream = errors.New("upstream failed")

func newTestBreaker(threshold int, recovery time.Duration, opts ...func(*resilience.BreakerSettings)) (*resilience.CircuitBreaker, *testutil.FakeClock) {
	clock := testutil.NewFakeClock(time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC))
	s := resilience.BreakerSettings{
		Name:             "test",
		FailureThreshold: threshold,
		RecoveryTimeout:  recovery,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:            clock,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return resilience.NewCircuitBreaker(s), clock
}

func fail(cb *resilience.CircuitBreaker) error {
	return cb.Call(func() error { return errUpstream })
}

func succeed(cb *resilience.CircuitBreaker) error {
	return cb.Call(func() error { return nil })
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)

	require.ErrorIs(t, fail(cb), errUpstream)
	require.ErrorIs(t, fail(cb), errUpstream)
	assert.Equal(t, resilience.StateClosed, cb.State())
	assert.Equal(t, 2, cb.FailureCount())

	require.ErrorIs(t, fail(cb), errUpstream)
	assert.Equal(t, resilience.StateOpen, cb.State())
	assert.True(t, cb.IsOpen())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)

	require.Error(t, fail(cb))
	require.Error(t, fail(cb))
	require.NoError(t, succeed(cb))
	assert.Equal(t, 0, cb.FailureCount())

	// The streak starts over: two more failures still do not open.
	require.Error(t, fail(cb))
	require.Error(t, fail(cb))
	assert.Equal(t, resilience.StateClosed, cb.State())
}

func TestOpenRejectsWithoutInvoking(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Minute)
	require.Error(t, fail(cb))

	invoked := false
	err := cb.Call(func() error {
		invoked = true
		return nil
	})
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.NotErrorIs(t, err, errUpstream)
	assert.False(t, invoked)
}

func TestRecoveryProbeSuccessCloses(t *testing.T) {
	cb, clock := newTestBreaker(3, time.Minute)
	for i := 0; i < 3; i++ {
		require.Error(t, fail(cb))
	}
	require.ErrorIs(t, succeed(cb), resilience.ErrCircuitOpen)

	clock.Advance(time.Minute + time.Second)
	require.NoError(t, succeed(cb))
	assert.Equal(t, resilience.StateClosed, cb.State())
	assert.Equal(t, 0, cb.FailureCount())
}

func TestRecoveryProbeFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(3, time.Minute)
	for i := 0; i < 3; i++ {
		require.Error(t, fail(cb))
	}

	clock.Advance(time.Minute + time.Second)
	require.ErrorIs(t, fail(cb), errUpstream)
	assert.Equal(t, resilience.StateOpen, cb.State())

	// The failed probe restarts the recovery clock.
	require.ErrorIs(t, succeed(cb), resilience.ErrCircuitOpen)
	clock.Advance(time.Minute + time.Second)
	require.NoError(t, succeed(cb))
	assert.Equal(t, resilience.StateClosed, cb.State())
}

func TestHalfOpenAdmitsExactlyOneProbe(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Minute)
	require.Error(t, fail(cb))
	clock.Advance(time.Minute + time.Second)

	probeStarted := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = cb.Call(func() error {
			close(probeStarted)
			<-release
			return nil
		})
	}()

	<-probeStarted
	// While the trial call is in flight, every other call is rejected.
	err := succeed(cb)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)

	close(release)
	wg.Wait()
	assert.Equal(t, resilience.StateClosed, cb.State())
}

func TestResetForcesClosed(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Minute)
	require.Error(t, fail(cb))
	require.True(t, cb.IsOpen())

	cb.Reset()
	assert.Equal(t, resilience.StateClosed, cb.State())
	assert.Equal(t, 0, cb.FailureCount())
	require.NoError(t, succeed(cb))
}

func TestIsFailureClassifier(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Minute, func(s *resilience.BreakerSettings) {
		s.IsFailure = func(err error) bool {
			return !errors.Is(err, context.Canceled)
		}
	})

	// A cancelled caller is not an upstream failure.
	err := cb.Call(func() error { return context.Canceled })
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, resilience.StateClosed, cb.State())
	assert.Equal(t, 0, cb.FailureCount())

	require.Error(t, fail(cb))
	assert.True(t, cb.IsOpen())
}

func TestOnStateChangeCallback(t *testing.T) {
	type transition struct{ from, to resilience.CircuitState }
	var transitions []transition

	cb, clock := newTestBreaker(1, time.Minute, func(s *resilience.BreakerSettings) {
		s.OnStateChange = func(name string, from, to resilience.CircuitState) {
			transitions = append(transitions, transition{from, to})
		}
	})

	require.Error(t, fail(cb))
	clock.Advance(time.Minute + time.Second)
	require.NoError(t, succeed(cb))

	require.Len(t, transitions, 3)
	assert.Equal(t, transition{resilience.StateClosed, resilience.StateOpen}, transitions[0])
	assert.Equal(t, transition{resilience.StateOpen, resilience.StateHalfOpen}, transitions[1])
	assert.Equal(t, transition{resilience.StateHalfOpen, resilience.StateClosed}, transitions[2])
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", resilience.StateClosed.String())
	assert.Equal(t, "open", resilience.StateOpen.String())
	assert.Equal(t, "half-open", resilience.StateHalfOpen.String())
}
