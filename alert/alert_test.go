package alert_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prilive-com/tradekit/alert"
)

func discardService(opts ...alert.Option) *alert.Service {
	opts = append([]alert.Option{alert.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return alert.NewService(opts...)
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "low", alert.SeverityLow.String())
	assert.Equal(t, "medium", alert.SeverityMedium.String())
	assert.Equal(t, "high", alert.SeverityHigh.String())
	assert.Equal(t, "critical", alert.SeverityCritical.String())
}

func TestEscalateDeliversToHandlers(t *testing.T) {
	svc := discardService()

	var got []alert.Alert
	svc.AddHandler(func(a alert.Alert) { got = append(got, a) })

	svc.Escalate(errors.New("fetch failed"), "collector.ig", alert.SeverityHigh)

	require.Len(t, got, 1)
	assert.Equal(t, alert.SeverityHigh, got[0].Severity)
	assert.Equal(t, "collector.ig", got[0].Context)
	assert.Equal(t, "fetch failed", got[0].Message)
	assert.False(t, got[0].Time.IsZero())
}

func TestEscalateNilErrorIgnored(t *testing.T) {
	svc := discardService()

	called := false
	svc.AddHandler(func(alert.Alert) { called = true })

	svc.Escalate(nil, "collector.ig", alert.SeverityCritical)
	assert.False(t, called)
	assert.Empty(t, svc.Recent())
}

func TestRecentBounded(t *testing.T) {
	svc := discardService(alert.WithRecentSize(3))

	for i := 0; i < 5; i++ {
		svc.Raise(alert.SeverityLow, "test", string(rune('a'+i)))
	}

	recent := svc.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, "c", recent[0].Message)
	assert.Equal(t, "e", recent[2].Message)
}

func TestRecentBySeverity(t *testing.T) {
	svc := discardService()

	svc.Raise(alert.SeverityLow, "a", "info")
	svc.Raise(alert.SeverityMedium, "b", "warning")
	svc.Raise(alert.SeverityCritical, "c", "outage")

	high := svc.RecentBySeverity(alert.SeverityMedium)
	require.Len(t, high, 2)
	assert.Equal(t, "warning", high[0].Message)
	assert.Equal(t, "outage", high[1].Message)
}
