package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prilive-com/tradekit/metrics"
)

func TestNoopImplementsRecorder(t *testing.T) {
	var r metrics.Recorder = metrics.Noop{}
	r.CollectOutcome("ig", "NDX", nil, time.Second)
	r.BreakerStateChange("ig", "CLOSED", "OPEN")
	r.RetryAttempt("ig", 1, errors.New("boom"))
	r.RateLimitWait("ig", time.Millisecond)
	r.HealthCheck("ig", true)
}

func TestPrometheusCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewPrometheus(reg)
	require.NoError(t, err)

	rec.CollectOutcome("ig", "NDX", nil, 200*time.Millisecond)
	rec.CollectOutcome("ig", "NDX", errors.New("boom"), 50*time.Millisecond)
	rec.BreakerStateChange("ig", "CLOSED", "OPEN")
	rec.RetryAttempt("ig", 0, nil)
	rec.RetryAttempt("ig", 1, errors.New("boom"))
	rec.HealthCheck("yahoo", false)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["tradekit_collects_total"])
	assert.True(t, names["tradekit_collect_duration_seconds"])
	assert.True(t, names["tradekit_breaker_transitions_total"])
	assert.True(t, names["tradekit_attempts_total"])
	assert.True(t, names["tradekit_health_checks_total"])

	for _, f := range families {
		if f.GetName() == "tradekit_collects_total" {
			total := 0.0
			for _, m := range f.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			assert.InDelta(t, 2.0, total, 1e-9)
		}
	}
}

func TestPrometheusDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.NewPrometheus(reg)
	require.NoError(t, err)

	_, err = metrics.NewPrometheus(reg)
	assert.Error(t, err)
}
