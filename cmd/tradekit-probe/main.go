// tradekit-probe is a manual verification tool: it connects real sources
// from environment configuration, runs health checks, and optionally
// collects one symbol, printing everything it does.
//
// Usage:
//
//	TRADEKIT_SYMBOLS=NDX,SPX tradekit-probe -source yahoo -symbol NDX -timeframe 1H
//	IG_API_KEY=... IG_IDENTIFIER=... IG_PASSWORD=... tradekit-probe -source ig -symbol IX.D.NASDAQ.IFD.IP
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prilive-com/tradekit"
	"github.com/prilive-com/tradekit/collector"
	"github.com/prilive-com/tradekit/market"
	"github.com/prilive-com/tradekit/source"
)

var (
	sourceKind = flag.String("source", "yahoo", "Source kind: ig or yahoo")
	symbol     = flag.String("symbol", "", "Symbol to collect (omit for health check only)")
	timeframe  = flag.String("timeframe", "1H", "Timeframe to collect")
	latest     = flag.Bool("latest", false, "Fetch only the most recent candles")
	timeout    = flag.Duration("timeout", time.Minute, "Overall timeout")
)

func main() {
	flag.Parse()

	logLevel := slog.LevelInfo
	if os.Getenv("TRADEKIT_LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	cfg, err := collector.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	srcCfg := source.Config{Name: *sourceKind, Logger: logger}
	if *sourceKind == "ig" {
		srcCfg.APIKey = market.APIKey(os.Getenv("IG_API_KEY"))
		srcCfg.Identifier = os.Getenv("IG_IDENTIFIER")
		srcCfg.Password = os.Getenv("IG_PASSWORD")
		srcCfg.AccountType = os.Getenv("IG_ACCOUNT_TYPE")
	}

	c, err := tradekit.New(ctx, *cfg,
		tradekit.WithLogger(logger),
		tradekit.WithSource(*sourceKind, srcCfg),
	)
	if err != nil {
		logger.Error("failed to build collector", "error", err)
		os.Exit(1)
	}
	defer c.Close()

	info, err := c.SourceInfo(ctx, *sourceKind)
	if err != nil {
		logger.Error("failed to read source info", "error", err)
		os.Exit(1)
	}
	printJSON("source info", info)

	health := c.CheckHealth(ctx)
	printJSON("health", health)
	printJSON("status", c.HealthStatus())

	if *symbol == "" {
		return
	}

	var data *market.Data
	if *latest {
		data, err = c.CollectLatest(ctx, *sourceKind, *symbol, *timeframe)
	} else {
		data, err = c.Collect(ctx, *sourceKind, *symbol, *timeframe)
	}
	if err != nil {
		logger.Error("collect failed", "symbol", *symbol, "error", err)
		os.Exit(1)
	}

	fmt.Println(data)
	if candle := data.Latest(); candle != nil {
		printJSON("latest candle", candle)
	}
	printJSON("price range", data.Range())
}

func printJSON(label string, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%s: %v\n", label, v)
		return
	}
	fmt.Printf("%s:\n%s\n", label, b)
}
