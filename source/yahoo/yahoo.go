// Package yahoo implements the Yahoo Finance chart API as a tradekit data
// source. The chart endpoint is public and sessionless, so Connect only
// verifies reachability. Candles carry a single trade price per field; Bid
// and Ask are zero.
package yahoo

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prilive-com/tradekit/market"
	"github.com/prilive-com/tradekit/resilience"
	"github.com/prilive-com/tradekit/source"
)

// Kind is the registry key for this source.
const Kind = "yahoo"

const (
	defaultBaseURL = "https://query1.finance.yahoo.com"

	maxResponseSize = 10 << 20 // 10MB

	chartPath = "/v8/finance/chart/"
)

// intervals maps tradekit timeframes to Yahoo chart intervals. Yahoo has no
// 4-hour interval.
var intervals = map[string]string{
	"1min":  "1m",
	"5min":  "5m",
	"15min": "15m",
	"30min": "30m",
	"1H":    "1h",
	"1D":    "1d",
	"1W":    "1wk",
	"1M":    "1mo",
}

// defaultRanges picks how far back to ask when the caller gives no explicit
// window. Yahoo caps intraday history hard, daily and up go much further.
var defaultRanges = map[string]string{
	"1m":  "5d",
	"5m":  "5d",
	"15m": "5d",
	"30m": "5d",
	"1h":  "1mo",
	"1d":  "3mo",
	"1wk": "2y",
	"1mo": "10y",
}

// indexAliases maps bare index tickers to Yahoo's caret-prefixed symbols.
var indexAliases = map[string]string{
	"NDX":  "^NDX",
	"SPX":  "^GSPC",
	"DJI":  "^DJI",
	"IXIC": "^IXIC",
}

// Source is a Yahoo Finance data source. Create with New, register with
// Register.
type Source struct {
	cfg        source.Config
	name       string
	baseURL    string
	httpClient *http.Client
	invoker    *resilience.Invoker

	mu        sync.Mutex
	connected bool
}

// New creates a Yahoo source from config. No credentials are required.
func New(cfg source.Config) (source.DataSource, error) {
	cfg = cfg.WithDefaults()
	if cfg.Name == "" {
		cfg.Name = Kind
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Source{
		cfg:     cfg,
		name:    cfg.Name,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 10 * time.Second,
				ForceAttemptHTTP2:     true,
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
		},
		invoker: source.NewInvoker(cfg),
	}, nil
}

// Register adds this source kind to a registry.
func Register(r *source.Registry) {
	r.Register(Kind, New)
}

// Name returns the configured source name.
func (s *Source) Name() string { return s.name }

// Connect probes the chart endpoint with a minimal request to confirm the
// API is reachable, then marks the source connected.
func (s *Source) Connect(ctx context.Context) error {
	if s.IsConnected() {
		return nil
	}
	err := s.invoker.Call(ctx, func(ctx context.Context) error {
		query := url.Values{"interval": {"1d"}, "range": {"1d"}}
		_, err := s.fetchChart(ctx, "^GSPC", query)
		return err
	})
	if err != nil {
		return fmt.Errorf("yahoo: connect probe failed: %w", err)
	}
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	s.cfg.Logger.Info("connected to Yahoo Finance", "source", s.name)
	return nil
}

// Disconnect marks the source disconnected and closes idle connections.
func (s *Source) Disconnect() error {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	if t, ok := s.httpClient.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	s.cfg.Logger.Info("disconnected from Yahoo Finance", "source", s.name)
	return nil
}

// IsConnected reports whether Connect has succeeded.
func (s *Source) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// AvailableSymbols lists the index symbols this source resolves by alias.
// Yahoo has no listing endpoint; any valid ticker also works directly.
func (s *Source) AvailableSymbols(ctx context.Context) ([]string, error) {
	symbols := make([]string, 0, len(indexAliases))
	for alias := range indexAliases {
		symbols = append(symbols, alias)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// AvailableTimeframes lists the supported timeframes, sorted.
func (s *Source) AvailableTimeframes(ctx context.Context) ([]string, error) {
	tfs := make([]string, 0, len(intervals))
	for tf := range intervals {
		tfs = append(tfs, tf)
	}
	sort.Strings(tfs)
	return tfs, nil
}

// NormalizeSymbol resolves bare index tickers (NDX, SPX, DJI, IXIC) to
// Yahoo's caret-prefixed form. Other symbols pass through unchanged.
func NormalizeSymbol(symbol string) string {
	if mapped, ok := indexAliases[strings.ToUpper(symbol)]; ok {
		return mapped
	}
	return symbol
}

// FetchHistorical fetches OHLC candles for a symbol.
func (s *Source) FetchHistorical(ctx context.Context, req market.FetchRequest) (*market.Data, error) {
	if !s.IsConnected() {
		return nil, market.ErrNotConnected
	}
	interval, ok := intervals[req.Timeframe]
	if !ok {
		return nil, fmt.Errorf("%w: %q", market.ErrUnsupportedTimeframe, req.Timeframe)
	}
	symbol := NormalizeSymbol(req.Symbol)

	query := url.Values{"interval": {interval}}
	if !req.From.IsZero() || !req.To.IsZero() {
		from := req.From
		to := req.To
		if to.IsZero() {
			to = time.Now()
		}
		query.Set("period1", strconv.FormatInt(from.Unix(), 10))
		query.Set("period2", strconv.FormatInt(to.Unix(), 10))
	} else {
		query.Set("range", defaultRanges[interval])
	}

	return resilience.Do(ctx, s.invoker, func(ctx context.Context) (*market.Data, error) {
		result, err := s.fetchChart(ctx, symbol, query)
		if err != nil {
			return nil, err
		}
		candles := result.candles()
		if len(candles) == 0 {
			return nil, fmt.Errorf("%w: %s %s", market.ErrNoData, req.Symbol, req.Timeframe)
		}
		if req.Limit > 0 && len(candles) > req.Limit {
			candles = candles[len(candles)-req.Limit:]
		}
		s.cfg.Logger.Info("fetched candles",
			"source", s.name, "symbol", req.Symbol, "timeframe", req.Timeframe, "candles", len(candles))
		return &market.Data{
			Symbol:      req.Symbol,
			Timeframe:   req.Timeframe,
			Source:      s.name,
			CollectedAt: time.Now().UTC(),
			Candles:     candles,
		}, nil
	})
}

// FetchLatest fetches the two most recent candles for a symbol.
func (s *Source) FetchLatest(ctx context.Context, symbol, timeframe string) (*market.Data, error) {
	return s.FetchHistorical(ctx, market.FetchRequest{
		Symbol:    symbol,
		Timeframe: timeframe,
		Limit:     2,
	})
}

func (s *Source) fetchChart(ctx context.Context, symbol string, query url.Values) (*chartResult, error) {
	u := s.baseURL + chartPath + url.PathEscape(symbol) + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("yahoo: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tradekit/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo: request failed: %w", err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, maxResponseSize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("yahoo: failed to read response: %w", err)
	}
	if int64(len(body)) > maxResponseSize {
		return nil, market.ErrResponseTooLarge
	}

	var envelope chartEnvelope
	if jsonErr := json.Unmarshal(body, &envelope); jsonErr != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, market.NewAPIError(s.name, chartPath+symbol, resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		return nil, fmt.Errorf("yahoo: failed to parse response: %w", jsonErr)
	}
	if envelope.Chart.Error != nil {
		code := resp.StatusCode
		if code == http.StatusOK {
			code = http.StatusBadRequest
		}
		return nil, market.NewAPIError(s.name, chartPath+symbol, code, envelope.Chart.Error.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, market.NewAPIError(s.name, chartPath+symbol, resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if len(envelope.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", market.ErrNoData, symbol)
	}
	return &envelope.Chart.Result[0], nil
}

// Wire types

type chartEnvelope struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol             string  `json:"symbol"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// candles converts the parallel chart arrays into candles, skipping slots
// where Yahoo published a null close (halted or pre-listing periods).
func (r *chartResult) candles() []market.Candle {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	quote := r.Indicators.Quote[0]
	candles := make([]market.Candle, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}
		c := market.Candle{
			Time:  time.Unix(ts, 0).UTC(),
			Close: market.MidPrice(*quote.Close[i]),
		}
		if i < len(quote.Open) && quote.Open[i] != nil {
			c.Open = market.MidPrice(*quote.Open[i])
		}
		if i < len(quote.High) && quote.High[i] != nil {
			c.High = market.MidPrice(*quote.High[i])
		}
		if i < len(quote.Low) && quote.Low[i] != nil {
			c.Low = market.MidPrice(*quote.Low[i])
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			c.Volume = *quote.Volume[i]
		}
		candles = append(candles, c)
	}
	return candles
}
