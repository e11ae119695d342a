// Package source defines the contract every upstream market-data or
// brokerage source implements, plus the registry used to construct sources
// from configuration by a stable kind key.
package source

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prilive-com/tradekit/market"
	"github.com/prilive-com/tradekit/resilience"
)

// DataSource is one upstream market-data or brokerage API. Every outbound
// call an implementation makes goes through its own resilience.Invoker;
// implementations never embed their own ad-hoc retry loops.
//
// The IsConnected/AvailableSymbols/AvailableTimeframes trio doubles as the
// liveness-probe surface consumed by health monitoring.
type DataSource interface {
	Name() string
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool
	AvailableSymbols(ctx context.Context) ([]string, error)
	AvailableTimeframes(ctx context.Context) ([]string, error)
	FetchHistorical(ctx context.Context, req market.FetchRequest) (*market.Data, error)
	FetchLatest(ctx context.Context, symbol, timeframe string) (*market.Data, error)
}

// Config holds construction parameters common to all source kinds.
// Kind-specific fields are simply ignored by sources that do not use them.
type Config struct {
	Name        string
	BaseURL     string
	APIKey      market.APIKey
	Identifier  string
	Password    string
	AccountType string // ig: "demo" or "live"

	RequestTimeout time.Duration

	// Rate limiting (sliding window)
	RateLimitCalls  int
	RateLimitPeriod time.Duration

	// Circuit breaker
	BreakerThreshold int
	BreakerRecovery  time.Duration

	// Retry
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// Optional observability hooks. OnAttempt fires after every raw attempt
	// against the upstream; OnBreakerChange fires after every breaker state
	// transition.
	OnAttempt       func(name string, attempt int, err error)
	OnBreakerChange func(name string, from, to resilience.CircuitState)

	Logger *slog.Logger
}

// WithDefaults returns a copy of c with zero fields filled in.
func (c Config) WithDefaults() Config {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.RateLimitCalls <= 0 {
		c.RateLimitCalls = 30
	}
	if c.RateLimitPeriod <= 0 {
		c.RateLimitPeriod = time.Minute
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = 5
	}
	if c.BreakerRecovery <= 0 {
		c.BreakerRecovery = 60 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = time.Second
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// NewInvoker builds the per-source protection stack from config: a
// sliding-window limiter, a consecutive-failure breaker with the standard
// upstream failure classifier, and an exponential jittered retry policy.
// Never share the returned Invoker across sources.
func NewInvoker(cfg Config, opts ...resilience.InvokerOption) *resilience.Invoker {
	cfg = cfg.WithDefaults()
	limiter := resilience.NewRateLimiter(cfg.RateLimitCalls, cfg.RateLimitPeriod)
	breaker := resilience.NewCircuitBreaker(resilience.BreakerSettings{
		Name:             cfg.Name,
		FailureThreshold: cfg.BreakerThreshold,
		RecoveryTimeout:  cfg.BreakerRecovery,
		IsFailure:        BreakerFailure,
		OnStateChange:    cfg.OnBreakerChange,
		Logger:           cfg.Logger,
	})
	policy := resilience.RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
		Exponential: true,
		Jitter:      true,
	}
	base := []resilience.InvokerOption{resilience.WithInvokerLogger(cfg.Logger)}
	if cfg.OnAttempt != nil {
		base = append(base, resilience.WithAttemptObserver(cfg.OnAttempt))
	}
	opts = append(base, opts...)
	return resilience.NewInvoker(cfg.Name, limiter, breaker, policy, opts...)
}

// BreakerFailure classifies which errors count toward tripping a source's
// circuit breaker. Client errors (4xx) including 429 do not trip it: 429 is
// rate pressure, not service degradation, and other 4xx are our own request
// being wrong. Server errors, network errors, and timeouts do.
func BreakerFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *market.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code < 400 || apiErr.Code >= 500
	}
	return true
}
