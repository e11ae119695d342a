// Package tradekit provides a resilient Go client library for market-data
// and brokerage APIs.
//
// tradekit combines upstream sources (IG, Yahoo Finance), per-source
// resilience (sliding-window rate limiting, circuit breaking, jittered
// retries), health monitoring, alerting, and storage into a single
// collection pipeline.
//
// # Quick Start
//
//	store, _ := storage.NewCSV("./data")
//	c, err := tradekit.New(ctx, collector.DefaultConfig(),
//	    tradekit.WithSource("yahoo", source.Config{Name: "yahoo"}),
//	    tradekit.WithStorage(store),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	data, err := c.CollectAndStore(ctx, "yahoo", "NDX", "1H")
//
// # Individual Packages
//
// Each layer is usable on its own:
//
//	// Resilience primitives around any operation
//	import "github.com/prilive-com/tradekit/resilience"
//	inv := resilience.NewInvoker("ig", limiter, breaker, policy)
//
//	// Health monitoring over any probe
//	import "github.com/prilive-com/tradekit/health"
//	mon := health.NewMonitor()
//
// # Shared Types
//
// Market data types are in the market subpackage:
//
//	import "github.com/prilive-com/tradekit/market"
//	var candle market.Candle
//	var data market.Data
//
// # Features
//
//   - Sliding-window rate limiting with a hard per-window call cap
//   - Consecutive-failure circuit breaker with half-open trial probes
//   - Retry with exponential backoff and crypto jitter
//   - Source health tracking: success rate, staleness, failure streaks
//   - Global collection pacing with golang.org/x/time/rate
//   - TLS 1.2+ enforcement
//   - API key auto-redaction in logs and errors
//   - Structured logging with slog
//   - Optional Prometheus metrics
package tradekit
