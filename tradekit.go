package tradekit

import (
	"context"
	"log/slog"

	"github.com/prilive-com/tradekit/alert"
	"github.com/prilive-com/tradekit/collector"
	"github.com/prilive-com/tradekit/metrics"
	"github.com/prilive-com/tradekit/resilience"
	"github.com/prilive-com/tradekit/source"
	"github.com/prilive-com/tradekit/source/ig"
	"github.com/prilive-com/tradekit/source/yahoo"
	"github.com/prilive-com/tradekit/storage"
)

// DefaultRegistry returns a source registry with the built-in kinds
// registered: "ig" and "yahoo".
func DefaultRegistry() *source.Registry {
	r := source.NewRegistry()
	ig.Register(r)
	yahoo.Register(r)
	return r
}

type facadeConfig struct {
	registry  *source.Registry
	logger    *slog.Logger
	store     storage.Storage
	alerts    *alert.Service
	recorder  metrics.Recorder
	sources   []sourceSpec
	collector collector.Config
}

type sourceSpec struct {
	kind string
	cfg  source.Config
}

// Option configures the facade.
type Option func(*facadeConfig)

// WithLogger sets a custom logger, propagated to every component that does
// not carry its own.
func WithLogger(logger *slog.Logger) Option {
	return func(c *facadeConfig) { c.logger = logger }
}

// WithRegistry replaces the default source registry.
func WithRegistry(r *source.Registry) Option {
	return func(c *facadeConfig) { c.registry = r }
}

// WithSource adds a source of the given registered kind, built from cfg and
// connected during New.
func WithSource(kind string, cfg source.Config) Option {
	return func(c *facadeConfig) { c.sources = append(c.sources, sourceSpec{kind: kind, cfg: cfg}) }
}

// WithStorage sets the storage backend.
func WithStorage(s storage.Storage) Option {
	return func(c *facadeConfig) { c.store = s }
}

// WithAlertService sets the alert service.
func WithAlertService(s *alert.Service) Option {
	return func(c *facadeConfig) { c.alerts = s }
}

// WithRecorder sets the metrics recorder. Sources added through WithSource
// also report their breaker transitions and raw attempts to it.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *facadeConfig) { c.recorder = r }
}

// New builds a ready Collector: sources are constructed through the
// registry, connected, and registered for health monitoring. On any source
// failure the already-connected sources are disconnected before returning.
func New(ctx context.Context, cfg collector.Config, opts ...Option) (*collector.Collector, error) {
	fc := facadeConfig{collector: cfg}
	for _, opt := range opts {
		opt(&fc)
	}
	if fc.registry == nil {
		fc.registry = DefaultRegistry()
	}
	if fc.logger == nil {
		fc.logger = slog.Default()
	}

	collectorOpts := []collector.Option{collector.WithLogger(fc.logger)}
	if fc.store != nil {
		collectorOpts = append(collectorOpts, collector.WithStorage(fc.store))
	}
	if fc.alerts != nil {
		collectorOpts = append(collectorOpts, collector.WithAlertService(fc.alerts))
	}
	if fc.recorder != nil {
		collectorOpts = append(collectorOpts, collector.WithRecorder(fc.recorder))
	}

	c := collector.New(fc.collector, collectorOpts...)
	for _, spec := range fc.sources {
		if spec.cfg.Logger == nil {
			spec.cfg.Logger = fc.logger
		}
		if rec := fc.recorder; rec != nil {
			if spec.cfg.OnAttempt == nil {
				spec.cfg.OnAttempt = rec.RetryAttempt
			}
			if spec.cfg.OnBreakerChange == nil {
				spec.cfg.OnBreakerChange = func(name string, from, to resilience.CircuitState) {
					rec.BreakerStateChange(name, from.String(), to.String())
				}
			}
		}
		src, err := fc.registry.New(spec.kind, spec.cfg)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		if err := c.AddSource(ctx, src); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	return c, nil
}
