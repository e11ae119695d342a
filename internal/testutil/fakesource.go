package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/prilive-com/tradekit/market"
)

// FakeSource is a scripted in-memory data source. It satisfies both the
// source.DataSource and health.Probe surfaces.
type FakeSource struct {
	SourceName string
	Symbols    []string
	Timeframes []string

	// ConnectErr, when set, fails Connect.
	ConnectErr error

	// FetchErr, when set, fails every fetch.
	FetchErr error

	// FetchData is returned by fetches when FetchErr is nil. When nil, a
	// minimal dataset is synthesized from the request.
	FetchData *market.Data

	mu           sync.Mutex
	connected    bool
	fetchCalls   int
	connectCalls int
}

// NewFakeSource creates a fake source with a small symbol catalog.
func NewFakeSource(name string) *FakeSource {
	return &FakeSource{
		SourceName: name,
		Symbols:    []string{"NDX", "SPX"},
		Timeframes: []string{"1H", "1D"},
	}
}

func (f *FakeSource) Name() string { return f.SourceName }

func (f *FakeSource) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.connected = true
	return nil
}

func (f *FakeSource) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *FakeSource) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// SetConnected forces the connection state, bypassing Connect.
func (f *FakeSource) SetConnected(connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = connected
}

func (f *FakeSource) AvailableSymbols(ctx context.Context) ([]string, error) {
	return append([]string(nil), f.Symbols...), nil
}

func (f *FakeSource) AvailableTimeframes(ctx context.Context) ([]string, error) {
	return append([]string(nil), f.Timeframes...), nil
}

func (f *FakeSource) FetchHistorical(ctx context.Context, req market.FetchRequest) (*market.Data, error) {
	return f.fetch(req.Symbol, req.Timeframe, 3)
}

func (f *FakeSource) FetchLatest(ctx context.Context, symbol, timeframe string) (*market.Data, error) {
	return f.fetch(symbol, timeframe, 2)
}

func (f *FakeSource) fetch(symbol, timeframe string, n int) (*market.Data, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if !f.connected {
		return nil, market.ErrNotConnected
	}
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	if f.FetchData != nil {
		return f.FetchData, nil
	}

	candles := make([]market.Candle, n)
	base := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		candles[i] = market.Candle{
			Time:   base.Add(time.Duration(i) * time.Hour),
			Close:  market.MidPrice(100 + float64(i)),
			Volume: 1000,
		}
	}
	return &market.Data{
		Symbol:      symbol,
		Timeframe:   timeframe,
		Source:      f.SourceName,
		CollectedAt: time.Now().UTC(),
		Candles:     candles,
	}, nil
}

// FetchCalls returns how many fetches were attempted.
func (f *FakeSource) FetchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

// ConnectCalls returns how many times Connect was invoked.
func (f *FakeSource) ConnectCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectCalls
}
