// Package ig implements the IG brokerage REST API as a tradekit data source.
//
// IG sessions are header-based: a POST /session login yields CST and
// X-SECURITY-TOKEN headers that authenticate every subsequent request
// alongside the account API key. Credentials never appear in logs or error
// strings.
package ig

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
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

	"github.com/prilive-com/tradekit/internal/scrub"
	"github.com/prilive-com/tradekit/market"
	"github.com/prilive-com/tradekit/resilience"
	"github.com/prilive-com/tradekit/source"
)

// Kind is the registry key for this source.
const Kind = "ig"

const (
	demoBaseURL = "https://demo-api.ig.com/gateway/deal"
	liveBaseURL = "https://api.ig.com/gateway/deal"

	maxResponseSize = 10 << 20 // 10MB

	snapshotTimeLayout = "2006-01-02T15:04:05"
)

// resolutions maps tradekit timeframes to IG price resolutions.
var resolutions = map[string]string{
	"1min":  "MINUTE",
	"5min":  "MINUTE_5",
	"15min": "MINUTE_15",
	"30min": "MINUTE_30",
	"1H":    "HOUR",
	"4H":    "HOUR_4",
	"1D":    "DAY",
	"1W":    "WEEK",
	"1M":    "MONTH",
}

// Source is an IG data source. Create with New, register with Register.
type Source struct {
	cfg        source.Config
	name       string
	baseURL    string
	httpClient *http.Client
	invoker    *resilience.Invoker

	mu        sync.Mutex
	cst       string
	xst       string
	connected bool
}

// New creates an IG source from config. AccountType selects the demo or
// live gateway when BaseURL is not set explicitly.
func New(cfg source.Config) (source.DataSource, error) {
	cfg = cfg.WithDefaults()
	if cfg.Name == "" {
		cfg.Name = Kind
	}
	if cfg.APIKey.IsEmpty() {
		return nil, fmt.Errorf("%w: ig: missing API key", market.ErrInvalidConfig)
	}
	if cfg.Identifier == "" || cfg.Password == "" {
		return nil, fmt.Errorf("%w: ig: missing identifier or password", market.ErrInvalidConfig)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		if cfg.AccountType == "live" {
			baseURL = liveBaseURL
		} else {
			baseURL = demoBaseURL
		}
	}

	return &Source{
		cfg:        cfg,
		name:       cfg.Name,
		baseURL:    baseURL,
		httpClient: newHTTPClient(cfg.RequestTimeout),
		invoker:    source.NewInvoker(cfg),
	}, nil
}

// Register adds this source kind to a registry.
func Register(r *source.Registry) {
	r.Register(Kind, New)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
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
	}
}

// Name returns the configured source name.
func (s *Source) Name() string { return s.name }

// Connect logs in and stores the session tokens. It runs through the
// source's full protection stack.
func (s *Source) Connect(ctx context.Context) error {
	if s.IsConnected() {
		return nil
	}
	if err := s.invoker.Call(ctx, s.login); err != nil {
		return err
	}
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	s.cfg.Logger.Info("connected to IG", "source", s.name, "account_type", s.cfg.AccountType)
	return nil
}

// Disconnect drops the session tokens and closes idle connections.
func (s *Source) Disconnect() error {
	s.mu.Lock()
	s.cst = ""
	s.xst = ""
	s.connected = false
	s.mu.Unlock()
	if t, ok := s.httpClient.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	s.cfg.Logger.Info("disconnected from IG", "source", s.name)
	return nil
}

// IsConnected reports whether a session has been established.
func (s *Source) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// AvailableSymbols lists epics from the top level of the IG market
// navigation tree.
func (s *Source) AvailableSymbols(ctx context.Context) ([]string, error) {
	if !s.IsConnected() {
		return nil, market.ErrNotConnected
	}
	return resilience.Do(ctx, s.invoker, func(ctx context.Context) ([]string, error) {
		var nav marketNavigation
		if err := s.get(ctx, "1", "/marketnavigation", nil, &nav); err != nil {
			return nil, err
		}
		epics := make([]string, 0, len(nav.Markets))
		for _, m := range nav.Markets {
			if m.Epic != "" {
				epics = append(epics, m.Epic)
			}
		}
		return epics, nil
	})
}

// AvailableTimeframes lists the supported timeframes, sorted.
func (s *Source) AvailableTimeframes(ctx context.Context) ([]string, error) {
	tfs := make([]string, 0, len(resolutions))
	for tf := range resolutions {
		tfs = append(tfs, tf)
	}
	sort.Strings(tfs)
	return tfs, nil
}

// FetchHistorical fetches OHLC candles for an epic.
func (s *Source) FetchHistorical(ctx context.Context, req market.FetchRequest) (*market.Data, error) {
	if !s.IsConnected() {
		return nil, market.ErrNotConnected
	}
	resolution, ok := resolutions[req.Timeframe]
	if !ok {
		return nil, fmt.Errorf("%w: %q", market.ErrUnsupportedTimeframe, req.Timeframe)
	}

	query := url.Values{"resolution": {resolution}}
	switch {
	case !req.From.IsZero() || !req.To.IsZero():
		if !req.From.IsZero() {
			query.Set("from", req.From.UTC().Format(snapshotTimeLayout))
		}
		if !req.To.IsZero() {
			query.Set("to", req.To.UTC().Format(snapshotTimeLayout))
		}
	case req.Limit > 0:
		query.Set("max", strconv.Itoa(req.Limit))
	default:
		query.Set("max", "100")
	}

	return resilience.Do(ctx, s.invoker, func(ctx context.Context) (*market.Data, error) {
		var resp pricesResponse
		if err := s.get(ctx, "3", "/prices/"+url.PathEscape(req.Symbol), query, &resp); err != nil {
			return nil, err
		}
		if len(resp.Prices) == 0 {
			return nil, fmt.Errorf("%w: %s %s", market.ErrNoData, req.Symbol, req.Timeframe)
		}
		data, err := resp.toData(req.Symbol, req.Timeframe, s.name)
		if err != nil {
			return nil, err
		}
		if req.Limit > 0 && len(data.Candles) > req.Limit {
			data.Candles = data.Candles[len(data.Candles)-req.Limit:]
		}
		s.cfg.Logger.Info("fetched candles",
			"source", s.name, "symbol", req.Symbol, "timeframe", req.Timeframe, "candles", len(data.Candles))
		return data, nil
	})
}

// FetchLatest fetches the two most recent candles for an epic.
func (s *Source) FetchLatest(ctx context.Context, symbol, timeframe string) (*market.Data, error) {
	return s.FetchHistorical(ctx, market.FetchRequest{
		Symbol:    symbol,
		Timeframe: timeframe,
		Limit:     2,
	})
}

// login establishes an IG session and captures the auth headers.
func (s *Source) login(ctx context.Context) error {
	body := fmt.Sprintf(`{"identifier":%q,"password":%q}`, s.cfg.Identifier, s.cfg.Password)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/session", strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("ig: failed to create login request: %w", err)
	}
	s.setHeaders(req, "2")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ig: login failed: %w", scrub.KeyFromError(err, s.cfg.APIKey))
	}
	defer resp.Body.Close()
	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize)); err != nil {
		return fmt.Errorf("ig: failed to drain login response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return market.NewAPIError(s.name, "/session", resp.StatusCode, "login rejected")
	}

	s.mu.Lock()
	s.cst = resp.Header.Get("CST")
	s.xst = resp.Header.Get("X-SECURITY-TOKEN")
	s.mu.Unlock()
	return nil
}

// get performs an authenticated GET. On a 401 it re-establishes the session
// once and replays the request; expired IG sessions are routine.
func (s *Source) get(ctx context.Context, version, path string, query url.Values, out any) error {
	err := s.getOnce(ctx, version, path, query, out)
	if err != nil && errors.Is(err, market.ErrUnauthorized) && s.IsConnected() {
		s.cfg.Logger.Info("IG session expired, re-authenticating", "source", s.name)
		if loginErr := s.login(ctx); loginErr != nil {
			return loginErr
		}
		return s.getOnce(ctx, version, path, query, out)
	}
	return err
}

func (s *Source) getOnce(ctx context.Context, version, path string, query url.Values, out any) error {
	u := s.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("ig: failed to create request: %w", err)
	}
	s.setHeaders(req, version)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ig: request failed: %w", scrub.KeyFromError(err, s.cfg.APIKey))
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, maxResponseSize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return fmt.Errorf("ig: failed to read response: %w", err)
	}
	if int64(len(body)) > maxResponseSize {
		return market.ErrResponseTooLarge
	}

	if resp.StatusCode != http.StatusOK {
		var vendor struct {
			ErrorCode string `json:"errorCode"`
		}
		_ = json.Unmarshal(body, &vendor)
		desc := vendor.ErrorCode
		if desc == "" {
			desc = http.StatusText(resp.StatusCode)
		}
		if retryAfter := parseRetryAfter(resp); retryAfter > 0 {
			return market.NewAPIErrorWithRetry(s.name, path, resp.StatusCode, desc, retryAfter)
		}
		return market.NewAPIError(s.name, path, resp.StatusCode, desc)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("ig: failed to parse response: %w", err)
	}
	return nil
}

func (s *Source) setHeaders(req *http.Request, version string) {
	req.Header.Set("X-IG-API-KEY", s.cfg.APIKey.Value())
	req.Header.Set("Version", version)
	req.Header.Set("Accept", "application/json; charset=UTF-8")
	s.mu.Lock()
	if s.cst != "" {
		req.Header.Set("CST", s.cst)
	}
	if s.xst != "" {
		req.Header.Set("X-SECURITY-TOKEN", s.xst)
	}
	s.mu.Unlock()
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}

// Wire types

type marketNavigation struct {
	Nodes []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"nodes"`
	Markets []struct {
		Epic string `json:"epic"`
	} `json:"markets"`
}

type igPrice struct {
	Bid *float64 `json:"bid"`
	Ask *float64 `json:"ask"`
}

func (p igPrice) toPrice() market.Price {
	if p.Bid != nil && p.Ask != nil {
		return market.NewPrice(*p.Bid, *p.Ask)
	}
	if p.Bid != nil {
		return market.MidPrice(*p.Bid)
	}
	if p.Ask != nil {
		return market.MidPrice(*p.Ask)
	}
	return market.Price{}
}

type pricesResponse struct {
	Prices []struct {
		SnapshotTimeUTC  string  `json:"snapshotTimeUTC"`
		OpenPrice        igPrice `json:"openPrice"`
		HighPrice        igPrice `json:"highPrice"`
		LowPrice         igPrice `json:"lowPrice"`
		ClosePrice       igPrice `json:"closePrice"`
		LastTradedVolume float64 `json:"lastTradedVolume"`
	} `json:"prices"`
	InstrumentType string `json:"instrumentType"`
}

func (r *pricesResponse) toData(symbol, timeframe, sourceName string) (*market.Data, error) {
	candles := make([]market.Candle, 0, len(r.Prices))
	for _, p := range r.Prices {
		ts, err := time.Parse(snapshotTimeLayout, p.SnapshotTimeUTC)
		if err != nil {
			return nil, fmt.Errorf("ig: bad snapshot time %q: %w", p.SnapshotTimeUTC, err)
		}
		candles = append(candles, market.Candle{
			Time:   ts.UTC(),
			Open:   p.OpenPrice.toPrice(),
			High:   p.HighPrice.toPrice(),
			Low:    p.LowPrice.toPrice(),
			Close:  p.ClosePrice.toPrice(),
			Volume: p.LastTradedVolume,
		})
	}
	return &market.Data{
		Symbol:      symbol,
		Timeframe:   timeframe,
		Source:      sourceName,
		CollectedAt: time.Now().UTC(),
		Candles:     candles,
	}, nil
}
