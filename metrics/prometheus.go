package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus is a Recorder backed by prometheus/client_golang collectors.
type Prometheus struct {
	collects      *prometheus.CounterVec
	collectTime   *prometheus.HistogramVec
	breakerStates *prometheus.CounterVec
	retries       *prometheus.CounterVec
	limiterWait   *prometheus.HistogramVec
	healthChecks  *prometheus.CounterVec
}

// NewPrometheus creates a Prometheus recorder and registers its collectors
// with the given registerer. Pass prometheus.DefaultRegisterer to use the
// process-global registry.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		collects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradekit",
			Name:      "collects_total",
			Help:      "Completed collect operations by source, symbol, and outcome.",
		}, []string{"source", "symbol", "outcome"}),
		collectTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tradekit",
			Name:      "collect_duration_seconds",
			Help:      "Collect operation latency by source.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		breakerStates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradekit",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions by source.",
		}, []string{"source", "from", "to"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradekit",
			Name:      "attempts_total",
			Help:      "Raw upstream attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		limiterWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tradekit",
			Name:      "ratelimit_wait_seconds",
			Help:      "Time spent blocked on rate limiter capacity by source.",
			Buckets:   []float64{.001, .01, .1, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"source"}),
		healthChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradekit",
			Name:      "health_checks_total",
			Help:      "Health probe outcomes by source.",
		}, []string{"source", "outcome"}),
	}

	for _, c := range []prometheus.Collector{
		p.collects, p.collectTime, p.breakerStates, p.retries, p.limiterWait, p.healthChecks,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (p *Prometheus) CollectOutcome(source, symbol string, err error, elapsed time.Duration) {
	p.collects.WithLabelValues(source, symbol, outcome(err)).Inc()
	p.collectTime.WithLabelValues(source).Observe(elapsed.Seconds())
}

func (p *Prometheus) BreakerStateChange(source, from, to string) {
	p.breakerStates.WithLabelValues(source, from, to).Inc()
}

func (p *Prometheus) RetryAttempt(source string, attempt int, err error) {
	p.retries.WithLabelValues(source, outcome(err)).Inc()
}

func (p *Prometheus) RateLimitWait(source string, waited time.Duration) {
	p.limiterWait.WithLabelValues(source).Observe(waited.Seconds())
}

func (p *Prometheus) HealthCheck(source string, healthy bool) {
	label := "unhealthy"
	if healthy {
		label = "healthy"
	}
	p.healthChecks.WithLabelValues(source, label).Inc()
}
