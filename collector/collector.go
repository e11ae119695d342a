// Package collector orchestrates market-data collection across registered
// sources: global pacing with golang.org/x/time/rate, per-source resilience
// inside each DataSource, health monitoring, alerting, and storage.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/prilive-com/tradekit/alert"
	"github.com/prilive-com/tradekit/health"
	"github.com/prilive-com/tradekit/market"
	"github.com/prilive-com/tradekit/metrics"
	"github.com/prilive-com/tradekit/source"
	"github.com/prilive-com/tradekit/storage"
)

// ErrNoStorage indicates a store operation on a collector built without a
// storage backend.
var ErrNoStorage = errors.New("collector: no storage configured")

// Collector coordinates collection across named data sources. Each source
// carries its own resilience stack; the collector adds a global rate limiter
// so bulk collection cannot stampede even across healthy sources.
type Collector struct {
	cfg      Config
	logger   *slog.Logger
	store    storage.Storage
	alerts   *alert.Service
	recorder metrics.Recorder
	monitor  *health.Monitor
	global   *rate.Limiter

	mu      sync.RWMutex
	sources map[string]source.DataSource
}

// Option configures a Collector.
type Option func(*Collector)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) { c.logger = logger }
}

// WithStorage sets the storage backend for Store and CollectAndStore.
func WithStorage(s storage.Storage) Option {
	return func(c *Collector) { c.store = s }
}

// WithAlertService sets the alert service notified of failures.
func WithAlertService(s *alert.Service) Option {
	return func(c *Collector) { c.alerts = s }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Collector) { c.recorder = r }
}

// New creates a Collector.
func New(cfg Config, opts ...Option) *Collector {
	if cfg.DefaultTimeframe == "" {
		cfg.DefaultTimeframe = "1H"
	}
	if cfg.GlobalRPS <= 0 {
		cfg.GlobalRPS = DefaultConfig().GlobalRPS
	}
	if cfg.GlobalBurst <= 0 {
		cfg.GlobalBurst = DefaultConfig().GlobalBurst
	}
	if cfg.HealthMaxFailures <= 0 {
		cfg.HealthMaxFailures = DefaultConfig().HealthMaxFailures
	}
	if cfg.HealthMaxAge <= 0 {
		cfg.HealthMaxAge = DefaultConfig().HealthMaxAge
	}

	c := &Collector{
		cfg:     cfg,
		global:  rate.NewLimiter(rate.Limit(cfg.GlobalRPS), cfg.GlobalBurst),
		sources: make(map[string]source.DataSource),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.alerts == nil {
		c.alerts = alert.NewService(alert.WithLogger(c.logger))
	}
	if c.recorder == nil {
		c.recorder = metrics.Noop{}
	}
	c.monitor = health.NewMonitor(
		health.WithThresholds(cfg.HealthMaxFailures, cfg.HealthMaxAge),
		health.WithLogger(c.logger),
		health.WithCheckObserver(c.recorder.HealthCheck),
	)
	return c
}

// AddSource connects a source and registers it for collection and health
// monitoring. Adding a source under an existing name replaces it.
func (c *Collector) AddSource(ctx context.Context, src source.DataSource) error {
	if err := src.Connect(ctx); err != nil {
		c.alerts.Escalate(err, "collector."+src.Name()+".connect", alert.SeverityHigh)
		return fmt.Errorf("collector: connect %s: %w", src.Name(), err)
	}

	c.mu.Lock()
	c.sources[src.Name()] = src
	c.mu.Unlock()

	c.monitor.AddSource(src.Name(), src)
	c.logger.Info("source added", "source", src.Name())
	return nil
}

// Sources returns registered source names, sorted.
func (c *Collector) Sources() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.sources))
	for name := range c.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Collector) source(name string) (source.DataSource, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	src, ok := c.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", market.ErrUnknownSource, name)
	}
	return src, nil
}

// SourceInfo describes a registered source.
type SourceInfo struct {
	Name       string   `json:"name"`
	Connected  bool     `json:"connected"`
	Symbols    []string `json:"symbols,omitempty"`
	Timeframes []string `json:"timeframes,omitempty"`
}

// SourceInfo returns capability and connection details for one source.
func (c *Collector) SourceInfo(ctx context.Context, name string) (*SourceInfo, error) {
	src, err := c.source(name)
	if err != nil {
		return nil, err
	}

	info := &SourceInfo{Name: name, Connected: src.IsConnected()}
	if info.Connected {
		if symbols, err := src.AvailableSymbols(ctx); err == nil {
			info.Symbols = symbols
		}
		if tfs, err := src.AvailableTimeframes(ctx); err == nil {
			info.Timeframes = tfs
		}
	}
	return info, nil
}

// Collect fetches historical data for one symbol from one source.
func (c *Collector) Collect(ctx context.Context, sourceName, symbol, timeframe string) (*market.Data, error) {
	return c.collect(ctx, sourceName, symbol, timeframe, false)
}

// CollectLatest fetches only the most recent candles for one symbol.
func (c *Collector) CollectLatest(ctx context.Context, sourceName, symbol, timeframe string) (*market.Data, error) {
	return c.collect(ctx, sourceName, symbol, timeframe, true)
}

func (c *Collector) collect(ctx context.Context, sourceName, symbol, timeframe string, latest bool) (*market.Data, error) {
	src, err := c.source(sourceName)
	if err != nil {
		return nil, err
	}
	if timeframe == "" {
		timeframe = c.cfg.DefaultTimeframe
	}

	waitStart := time.Now()
	if err := c.global.Wait(ctx); err != nil {
		return nil, err
	}
	c.recorder.RateLimitWait("global", time.Since(waitStart))

	start := time.Now()
	var data *market.Data
	if latest {
		data, err = src.FetchLatest(ctx, symbol, timeframe)
	} else {
		data, err = src.FetchHistorical(ctx, market.FetchRequest{Symbol: symbol, Timeframe: timeframe})
	}
	c.recorder.CollectOutcome(sourceName, symbol, err, time.Since(start))

	if err != nil {
		c.alerts.Escalate(err, "collector."+sourceName+"."+symbol, collectSeverity(err))
		return nil, err
	}
	return data, nil
}

// collectSeverity grades a collect failure. Circuit rejections and server
// errors mean the source is degraded; a symbol with no data is routine.
func collectSeverity(err error) alert.Severity {
	switch {
	case errors.Is(err, market.ErrNoData), errors.Is(err, market.ErrNotFound):
		return alert.SeverityLow
	case errors.Is(err, market.ErrUnsupportedTimeframe):
		return alert.SeverityLow
	case errors.Is(err, market.ErrTooManyRequests):
		return alert.SeverityMedium
	default:
		return alert.SeverityHigh
	}
}

// CollectAll fetches every configured symbol from one source. It never
// short-circuits: the returned map holds each symbol that succeeded, and the
// returned error joins every failure.
func (c *Collector) CollectAll(ctx context.Context, sourceName, timeframe string) (map[string]*market.Data, error) {
	results := make(map[string]*market.Data, len(c.cfg.Symbols))
	var errs []error
	for _, symbol := range c.cfg.Symbols {
		data, err := c.Collect(ctx, sourceName, symbol, timeframe)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
			continue
		}
		results[symbol] = data
	}
	return results, errors.Join(errs...)
}

// Store persists collected data through the configured storage backend.
func (c *Collector) Store(data *market.Data) error {
	if c.store == nil {
		return ErrNoStorage
	}
	if err := c.store.Store(data); err != nil {
		c.alerts.Escalate(err, "collector.store", alert.SeverityHigh)
		return err
	}
	c.logger.Info("data stored",
		"symbol", data.Symbol, "timeframe", data.Timeframe, "source", data.Source, "candles", len(data.Candles))
	return nil
}

// CollectAndStore collects one symbol and persists the result.
func (c *Collector) CollectAndStore(ctx context.Context, sourceName, symbol, timeframe string) (*market.Data, error) {
	data, err := c.Collect(ctx, sourceName, symbol, timeframe)
	if err != nil {
		return nil, err
	}
	if err := c.Store(data); err != nil {
		return nil, err
	}
	return data, nil
}

// CollectAndStoreAll collects every configured symbol from one source and
// persists each success. Failures are joined, successes still stored.
func (c *Collector) CollectAndStoreAll(ctx context.Context, sourceName, timeframe string) (map[string]*market.Data, error) {
	results, err := c.CollectAll(ctx, sourceName, timeframe)
	errs := []error{}
	if err != nil {
		errs = append(errs, err)
	}
	for symbol, data := range results {
		if storeErr := c.Store(data); storeErr != nil {
			errs = append(errs, fmt.Errorf("store %s: %w", symbol, storeErr))
		}
	}
	return results, errors.Join(errs...)
}

// CheckHealth probes every registered source and returns name → healthy.
// Sources that fail their probe raise a medium-severity alert.
func (c *Collector) CheckHealth(ctx context.Context) map[string]bool {
	results := c.monitor.CheckAll(ctx)
	for name, healthy := range results {
		if !healthy {
			c.alerts.Raise(alert.SeverityMedium, "collector.health", name+" failed health check")
		}
	}
	return results
}

// HealthStatus returns a point-in-time status snapshot per source.
func (c *Collector) HealthStatus() map[string]health.Status {
	return c.monitor.AllStatus()
}

// UnhealthySources returns the names of sources currently failing the
// health verdict, sorted.
func (c *Collector) UnhealthySources() []string {
	return c.monitor.UnhealthySources()
}

// Monitor exposes the underlying health monitor.
func (c *Collector) Monitor() *health.Monitor {
	return c.monitor
}

// Alerts exposes the alert service, for registering handlers and reading
// recent alerts.
func (c *Collector) Alerts() *alert.Service {
	return c.alerts
}

// Close disconnects every registered source. All sources are attempted;
// errors are joined.
func (c *Collector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for name, src := range c.sources {
		if err := src.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("disconnect %s: %w", name, err))
		}
	}
	c.sources = make(map[string]source.DataSource)
	return errors.Join(errs...)
}
