package collector

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds collector configuration.
type Config struct {
	// Symbols collected by CollectAll when the caller passes none.
	Symbols []string

	// DefaultTimeframe applies when a collect call passes an empty timeframe.
	DefaultTimeframe string

	// Global pacing across all sources during bulk collection.
	GlobalRPS   float64
	GlobalBurst int

	// Health verdict thresholds
	HealthMaxFailures int
	HealthMaxAge      time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Symbols:           []string{"NDX", "SPX", "DJI"},
		DefaultTimeframe:  "1H",
		GlobalRPS:         5,
		GlobalBurst:       10,
		HealthMaxFailures: 3,
		HealthMaxAge:      time.Hour,
	}
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if symbols := getEnv("TRADEKIT_SYMBOLS", ""); symbols != "" {
		cfg.Symbols = splitList(symbols)
	}

	if tf := getEnv("TRADEKIT_DEFAULT_TIMEFRAME", ""); tf != "" {
		cfg.DefaultTimeframe = tf
	}

	if f, err := strconv.ParseFloat(getEnv("TRADEKIT_GLOBAL_RPS", "5"), 64); err == nil {
		cfg.GlobalRPS = f
	}

	if i, err := strconv.Atoi(getEnv("TRADEKIT_GLOBAL_BURST", "10")); err == nil {
		cfg.GlobalBurst = i
	}

	if i, err := strconv.Atoi(getEnv("TRADEKIT_HEALTH_MAX_FAILURES", "3")); err == nil {
		cfg.HealthMaxFailures = i
	}

	if d, err := time.ParseDuration(getEnv("TRADEKIT_HEALTH_MAX_AGE", "1h")); err == nil {
		cfg.HealthMaxAge = d
	}

	return &cfg, nil
}

// getEnv retrieves an environment variable or returns a fallback.
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
