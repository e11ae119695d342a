package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prilive-com/tradekit/resilience"
)

// Probe is the liveness surface an upstream source exposes to health
// monitoring. An empty symbol or timeframe listing counts as a probe failure.
type Probe interface {
	IsConnected() bool
	AvailableSymbols(ctx context.Context) ([]string, error)
	AvailableTimeframes(ctx context.Context) ([]string, error)
}

// Status is a point-in-time health record for one source.
type Status struct {
	Name                string    `json:"name"`
	Connected           bool      `json:"connected"`
	Healthy             bool      `json:"healthy"`
	LastSuccess         time.Time `json:"last_success,omitzero"`
	LastCheck           time.Time `json:"last_check,omitzero"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	TotalChecks         int       `json:"total_checks"`
	TotalFailures       int       `json:"total_failures"`
	SuccessRate         float64   `json:"success_rate"`
}

// SourceHealth tracks rolling success/failure statistics for one upstream
// source. It is mutated only by Check; a SourceHealth is never shared across
// sources.
type SourceHealth struct {
	name   string
	probe  Probe
	clock  resilience.Clock
	logger *slog.Logger

	mu                  sync.Mutex
	lastSuccess         time.Time
	lastCheck           time.Time
	consecutiveFailures int
	totalChecks         int
	totalFailures       int
}

// NewSourceHealth creates health tracking for one source.
func NewSourceHealth(name string, probe Probe, clock resilience.Clock, logger *slog.Logger) *SourceHealth {
	if clock == nil {
		clock = resilience.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SourceHealth{name: name, probe: probe, clock: clock, logger: logger}
}

// Check runs a lightweight liveness probe: connection status, then the
// symbol and timeframe catalogs. Probe errors are converted to the boolean
// outcome and never propagated.
func (h *SourceHealth) Check(ctx context.Context) bool {
	h.mu.Lock()
	h.totalChecks++
	h.lastCheck = h.clock.Now()
	h.mu.Unlock()

	err := h.runProbe(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.consecutiveFailures++
		h.totalFailures++
		h.logger.Warn("health check failed",
			"source", h.name,
			"error", err,
			"consecutive_failures", h.consecutiveFailures,
		)
		return false
	}
	h.lastSuccess = h.clock.Now()
	h.consecutiveFailures = 0
	h.logger.Debug("health check passed", "source", h.name)
	return true
}

func (h *SourceHealth) runProbe(ctx context.Context) error {
	if !h.probe.IsConnected() {
		return fmt.Errorf("source not connected")
	}
	symbols, err := h.probe.AvailableSymbols(ctx)
	if err != nil {
		return fmt.Errorf("listing symbols: %w", err)
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols available")
	}
	timeframes, err := h.probe.AvailableTimeframes(ctx)
	if err != nil {
		return fmt.Errorf("listing timeframes: %w", err)
	}
	if len(timeframes) == 0 {
		return fmt.Errorf("no timeframes available")
	}
	return nil
}

// Healthy reports whether the source should still be considered usable:
// false once consecutive failures exceed maxConsecutiveFailures, no success
// was ever recorded, or the last success is older than maxAge. A single late
// failure inside the error budget does not declare the source dead.
func (h *SourceHealth) Healthy(maxConsecutiveFailures int, maxAge time.Duration) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.consecutiveFailures > maxConsecutiveFailures {
		return false
	}
	if h.lastSuccess.IsZero() {
		return false
	}
	return h.clock.Now().Sub(h.lastSuccess) <= maxAge
}

// SuccessRate returns (checks-failures)/checks, or 0 before any check.
func (h *SourceHealth) SuccessRate() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.successRateLocked()
}

func (h *SourceHealth) successRateLocked() float64 {
	if h.totalChecks == 0 {
		return 0
	}
	return float64(h.totalChecks-h.totalFailures) / float64(h.totalChecks)
}

// Status returns a snapshot record using the given health thresholds.
func (h *SourceHealth) Status(maxConsecutiveFailures int, maxAge time.Duration) Status {
	healthy := h.Healthy(maxConsecutiveFailures, maxAge)
	h.mu.Lock()
	defer h.mu.Unlock()
	return Status{
		Name:                h.name,
		Connected:           h.probe.IsConnected(),
		Healthy:             healthy,
		LastSuccess:         h.lastSuccess,
		LastCheck:           h.lastCheck,
		ConsecutiveFailures: h.consecutiveFailures,
		TotalChecks:         h.totalChecks,
		TotalFailures:       h.totalFailures,
		SuccessRate:         h.successRateLocked(),
	}
}

// ResetStats clears the rolling statistics.
func (h *SourceHealth) ResetStats() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutiveFailures = 0
	h.totalChecks = 0
	h.totalFailures = 0
	h.logger.Info("health statistics reset", "source", h.name)
}
