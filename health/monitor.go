package health

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/prilive-com/tradekit/resilience"
)

// Monitor aggregates SourceHealth across registered sources and runs batch
// health checks. Sources are registered at collector construction and not
// removed during normal operation.
type Monitor struct {
	maxConsecutiveFailures int
	maxAge                 time.Duration
	clock                  resilience.Clock
	logger                 *slog.Logger

	// onCheck observes every probe outcome, for metrics.
	onCheck func(source string, healthy bool)

	mu      sync.Mutex
	sources map[string]*SourceHealth
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithThresholds sets the usability verdict thresholds.
// Defaults: 3 consecutive failures, 1 hour since last success.
func WithThresholds(maxConsecutiveFailures int, maxAge time.Duration) MonitorOption {
	return func(m *Monitor) {
		m.maxConsecutiveFailures = maxConsecutiveFailures
		m.maxAge = maxAge
	}
}

// WithClock sets the time source (useful for testing).
func WithClock(c resilience.Clock) MonitorOption {
	return func(m *Monitor) { m.clock = c }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) MonitorOption {
	return func(m *Monitor) { m.logger = logger }
}

// WithCheckObserver registers a callback invoked after every probe.
func WithCheckObserver(fn func(source string, healthy bool)) MonitorOption {
	return func(m *Monitor) { m.onCheck = fn }
}

// NewMonitor creates an empty Monitor.
func NewMonitor(opts ...MonitorOption) *Monitor {
	m := &Monitor{
		maxConsecutiveFailures: 3,
		maxAge:                 time.Hour,
		clock:                  resilience.SystemClock{},
		sources:                make(map[string]*SourceHealth),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// AddSource registers a source under a unique name. Re-registering a name
// replaces its tracking.
func (m *Monitor) AddSource(name string, probe Probe) {
	m.mu.Lock()
	m.sources[name] = NewSourceHealth(name, probe, m.clock, m.logger)
	m.mu.Unlock()
	m.logger.Info("source added to health monitoring", "source", name)
}

// Source returns the health tracking for a named source.
func (m *Monitor) Source(name string) (*SourceHealth, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.sources[name]
	return h, ok
}

// CheckAll probes every registered source sequentially and returns the
// per-source outcome. One source's probe failure never prevents the others
// from being checked.
func (m *Monitor) CheckAll(ctx context.Context) map[string]bool {
	results := make(map[string]bool, len(m.sources))
	for _, name := range m.names() {
		h, ok := m.Source(name)
		if !ok {
			continue
		}
		healthy := h.Check(ctx)
		results[name] = healthy
		if m.onCheck != nil {
			m.onCheck(name, healthy)
		}
	}
	return results
}

// AllStatus returns a status record for every registered source.
func (m *Monitor) AllStatus() map[string]Status {
	statuses := make(map[string]Status, len(m.sources))
	for _, name := range m.names() {
		h, ok := m.Source(name)
		if !ok {
			continue
		}
		statuses[name] = h.Status(m.maxConsecutiveFailures, m.maxAge)
	}
	return statuses
}

// UnhealthySources returns the names of sources whose usability verdict is
// false, sorted for stable output.
func (m *Monitor) UnhealthySources() []string {
	var unhealthy []string
	for _, name := range m.names() {
		h, ok := m.Source(name)
		if !ok {
			continue
		}
		if !h.Healthy(m.maxConsecutiveFailures, m.maxAge) {
			unhealthy = append(unhealthy, name)
		}
	}
	return unhealthy
}

// AllHealthy reports whether every registered source is usable.
func (m *Monitor) AllHealthy() bool {
	return len(m.UnhealthySources()) == 0
}

// names returns registered source names in sorted order.
func (m *Monitor) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.sources))
	for name := range m.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
