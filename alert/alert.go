// Package alert raises operational alerts for collection and health
// failures. A Service is constructed explicitly and injected where needed;
// there is no package-level default.
package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Severity grades how urgent an alert is.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the severity name.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// level maps a severity to the slog level alerts are logged at.
func (s Severity) level() slog.Level {
	switch s {
	case SeverityLow:
		return slog.LevelInfo
	case SeverityMedium:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// Alert is one raised alert.
type Alert struct {
	Time     time.Time `json:"time"`
	Severity Severity  `json:"severity"`
	Context  string    `json:"context"`
	Message  string    `json:"message"`
}

// Handler receives every alert raised through a Service. Handlers must not
// block; slow delivery belongs in the handler's own goroutine.
type Handler func(Alert)

const defaultRecentSize = 100

// Service raises alerts, fans them out to registered handlers, and keeps a
// bounded buffer of the most recent ones for inspection.
type Service struct {
	logger     *slog.Logger
	recentSize int

	mu       sync.Mutex
	handlers []Handler
	recent   []Alert
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithRecentSize sets how many recent alerts are retained.
func WithRecentSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.recentSize = n
		}
	}
}

// NewService creates an alert service.
func NewService(opts ...Option) *Service {
	s := &Service{recentSize: defaultRecentSize}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// AddHandler registers a handler for all subsequent alerts.
func (s *Service) AddHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

// Escalate raises an alert for an error. A nil error is ignored.
func (s *Service) Escalate(err error, context string, severity Severity) {
	if err == nil {
		return
	}
	s.raise(Alert{Severity: severity, Context: context, Message: err.Error()})
}

// Raise raises an alert with an explicit message.
func (s *Service) Raise(severity Severity, context, message string) {
	s.raise(Alert{Severity: severity, Context: context, Message: message})
}

func (s *Service) raise(a Alert) {
	a.Time = time.Now().UTC()

	s.logger.Log(context.Background(), a.Severity.level(), "alert raised",
		"severity", a.Severity.String(),
		"context", a.Context,
		"message", a.Message,
	)

	s.mu.Lock()
	s.recent = append(s.recent, a)
	if len(s.recent) > s.recentSize {
		s.recent = s.recent[len(s.recent)-s.recentSize:]
	}
	handlers := append([]Handler(nil), s.handlers...)
	s.mu.Unlock()

	for _, h := range handlers {
		h(a)
	}
}

// Recent returns the retained alerts, oldest first.
func (s *Service) Recent() []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Alert(nil), s.recent...)
}

// RecentBySeverity returns retained alerts at or above the given severity.
func (s *Service) RecentBySeverity(min Severity) []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Alert
	for _, a := range s.recent {
		if a.Severity >= min {
			out = append(out, a)
		}
	}
	return out
}
