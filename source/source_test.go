package source_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prilive-com/tradekit/market"
	"github.com/prilive-com/tradekit/resilience"
	"github.com/prilive-com/tradekit/source"
)

func TestWithDefaults(t *testing.T) {
	cfg := source.Config{Name: "ig"}.WithDefaults()

	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 30, cfg.RateLimitCalls)
	assert.Equal(t, time.Minute, cfg.RateLimitPeriod)
	assert.Equal(t, 5, cfg.BreakerThreshold)
	assert.Equal(t, 60*time.Second, cfg.BreakerRecovery)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.RetryBaseDelay)
	assert.Equal(t, 30*time.Second, cfg.RetryMaxDelay)
	assert.NotNil(t, cfg.Logger)
}

func TestWithDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := source.Config{
		RateLimitCalls:  2,
		RateLimitPeriod: 10 * time.Second,
		MaxAttempts:     1,
	}.WithDefaults()

	assert.Equal(t, 2, cfg.RateLimitCalls)
	assert.Equal(t, 10*time.Second, cfg.RateLimitPeriod)
	assert.Equal(t, 1, cfg.MaxAttempts)
}

func TestNewInvokerWiresBreakerAndLimiter(t *testing.T) {
	inv := source.NewInvoker(source.Config{Name: "test"})
	assert.NotNil(t, inv.Breaker())
	assert.NotNil(t, inv.Limiter())
}

func TestNewInvokerObserverHooks(t *testing.T) {
	var attempts []int
	var transitions []string
	inv := source.NewInvoker(source.Config{
		Name:             "test",
		MaxAttempts:      1,
		BreakerThreshold: 1,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnAttempt: func(name string, attempt int, err error) {
			attempts = append(attempts, attempt)
		},
		OnBreakerChange: func(name string, from, to resilience.CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	upstream := market.NewAPIError("test", "/prices", 500, "down")
	err := inv.Call(context.Background(), func(ctx context.Context) error { return upstream })
	require.Error(t, err)

	assert.Equal(t, []int{0}, attempts)
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestBreakerFailureClassification(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		failure bool
	}{
		{"nil", nil, false},
		{"context cancelled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"rate limited", market.NewAPIError("ig", "/p", 429, ""), false},
		{"bad request", market.NewAPIError("ig", "/p", 400, ""), false},
		{"unauthorized", market.NewAPIError("ig", "/p", 401, ""), false},
		{"server error", market.NewAPIError("ig", "/p", 500, ""), true},
		{"bad gateway", market.NewAPIError("ig", "/p", 502, ""), true},
		{"network error", errors.New("connection refused"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.failure, source.BreakerFailure(tt.err))
		})
	}
}

func TestRegistry(t *testing.T) {
	r := source.NewRegistry()
	assert.Empty(t, r.Kinds())

	r.Register("fake", func(cfg source.Config) (source.DataSource, error) {
		return nil, errors.New("factory ran")
	})
	r.Register("other", func(cfg source.Config) (source.DataSource, error) {
		return nil, errors.New("other factory ran")
	})

	assert.Equal(t, []string{"fake", "other"}, r.Kinds())

	_, err := r.New("fake", source.Config{})
	require.EqualError(t, err, "factory ran")

	_, err = r.New("missing", source.Config{})
	assert.ErrorIs(t, err, market.ErrUnknownSource)
	assert.Contains(t, err.Error(), "fake")
}

func TestRegistryReplaceLastWins(t *testing.T) {
	r := source.NewRegistry()
	r.Register("fake", func(cfg source.Config) (source.DataSource, error) {
		return nil, errors.New("first")
	})
	r.Register("fake", func(cfg source.Config) (source.DataSource, error) {
		return nil, errors.New("second")
	})

	_, err := r.New("fake", source.Config{})
	assert.EqualError(t, err, "second")
	assert.Equal(t, []string{"fake"}, r.Kinds())
}
