package yahoo_test

import (
	"io"
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prilive-com/tradekit/internal/testutil"
	"github.com/prilive-com/tradekit/market"
	"github.com/prilive-com/tradekit/source"
	"github.com/prilive-com/tradekit/source/yahoo"
)

func testConfig(srv *testutil.MockAPIServer) source.Config {
	return source.Config{
		Name:        "yahoo",
		BaseURL:     srv.BaseURL(),
		MaxAttempts: 1,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func connectedSource(t *testing.T, srv *testutil.MockAPIServer) source.DataSource {
	t.Helper()

	srv.On(http.MethodGet, "/v8/finance/chart/^GSPC", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(testutil.YahooChartBody("^GSPC", []int64{1717401600}, []float64{5300})))
	})

	src, err := yahoo.New(testConfig(srv))
	require.NoError(t, err)
	require.NoError(t, src.Connect(context.Background()))
	return src
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "^NDX", yahoo.NormalizeSymbol("NDX"))
	assert.Equal(t, "^GSPC", yahoo.NormalizeSymbol("SPX"))
	assert.Equal(t, "^DJI", yahoo.NormalizeSymbol("DJI"))
	assert.Equal(t, "^IXIC", yahoo.NormalizeSymbol("ixic"))
	assert.Equal(t, "^FTSE", yahoo.NormalizeSymbol("^FTSE"))
	assert.Equal(t, "AAPL", yahoo.NormalizeSymbol("AAPL"))
}

func TestConnectProbesChartEndpoint(t *testing.T) {
	srv := testutil.NewMockServer(t)
	src := connectedSource(t, srv)

	assert.True(t, src.IsConnected())
	probe := srv.LastCapture()
	require.NotNil(t, probe)
	assert.Equal(t, "/v8/finance/chart/^GSPC", probe.Path)
	assert.Equal(t, "1d", probe.Query.Get("interval"))
}

func TestConnectUnreachable(t *testing.T) {
	srv := testutil.NewMockServer(t)
	srv.On(http.MethodGet, "/v8/finance/chart/^GSPC", func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyJSON(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
	})

	src, err := yahoo.New(testConfig(srv))
	require.NoError(t, err)

	err = src.Connect(context.Background())
	require.Error(t, err)
	assert.False(t, src.IsConnected())
}

func TestFetchHistorical(t *testing.T) {
	srv := testutil.NewMockServer(t)
	src := connectedSource(t, srv)

	srv.On(http.MethodGet, "/v8/finance/chart/^NDX", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(testutil.YahooChartBody("^NDX",
			[]int64{1717401600, 1717405200, 1717408800},
			[]float64{18500, 18550, 18600},
		)))
	})

	data, err := src.FetchHistorical(context.Background(), market.FetchRequest{
		Symbol:    "NDX",
		Timeframe: "1H",
	})
	require.NoError(t, err)

	require.Len(t, data.Candles, 3)
	assert.Equal(t, "NDX", data.Symbol)
	assert.Equal(t, "1H", data.Timeframe)
	assert.Equal(t, "yahoo", data.Source)

	first := data.Candles[0]
	assert.Equal(t, time.Unix(1717401600, 0).UTC(), first.Time)
	assert.InDelta(t, 18500.0, first.Close.Mid, 1e-9)
	assert.Zero(t, first.Close.Bid)
	assert.InDelta(t, 18499.5, first.Open.Mid, 1e-9)
	assert.InDelta(t, 1000.0, first.Volume, 1e-9)

	fetch := srv.LastCapture()
	require.NotNil(t, fetch)
	assert.Equal(t, "1h", fetch.Query.Get("interval"))
	assert.Equal(t, "1mo", fetch.Query.Get("range"))
}

func TestFetchHistoricalDateRange(t *testing.T) {
	srv := testutil.NewMockServer(t)
	src := connectedSource(t, srv)

	srv.On(http.MethodGet, "/v8/finance/chart/AAPL", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(testutil.YahooChartBody("AAPL", []int64{1717401600}, []float64{195})))
	})

	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	_, err := src.FetchHistorical(context.Background(), market.FetchRequest{
		Symbol:    "AAPL",
		Timeframe: "1D",
		From:      from,
		To:        to,
	})
	require.NoError(t, err)

	fetch := srv.LastCapture()
	require.NotNil(t, fetch)
	assert.Equal(t, "1d", fetch.Query.Get("interval"))
	assert.Equal(t, "1717200000", fetch.Query.Get("period1"))
	assert.Equal(t, "1717372800", fetch.Query.Get("period2"))
	assert.Empty(t, fetch.Query.Get("range"))
}

func TestFetchHistoricalLimit(t *testing.T) {
	srv := testutil.NewMockServer(t)
	src := connectedSource(t, srv)

	srv.On(http.MethodGet, "/v8/finance/chart/^GSPC", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(testutil.YahooChartBody("^GSPC",
			[]int64{1717401600, 1717405200, 1717408800, 1717412400},
			[]float64{5300, 5301, 5302, 5303},
		)))
	})

	data, err := src.FetchHistorical(context.Background(), market.FetchRequest{
		Symbol:    "SPX",
		Timeframe: "1H",
		Limit:     2,
	})
	require.NoError(t, err)

	require.Len(t, data.Candles, 2)
	assert.InDelta(t, 5302.0, data.Candles[0].Close.Mid, 1e-9)
	assert.InDelta(t, 5303.0, data.Candles[1].Close.Mid, 1e-9)
}

func TestFetchHistoricalSkipsNullCloses(t *testing.T) {
	srv := testutil.NewMockServer(t)
	src := connectedSource(t, srv)

	srv.On(http.MethodGet, "/v8/finance/chart/AAPL", func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyJSON(w, http.StatusOK, map[string]any{
			"chart": map[string]any{
				"result": []map[string]any{{
					"meta":      map[string]any{"symbol": "AAPL"},
					"timestamp": []int64{1717401600, 1717405200, 1717408800},
					"indicators": map[string]any{
						"quote": []map[string]any{{
							"open":   []any{195.0, nil, 197.0},
							"high":   []any{196.0, nil, 198.0},
							"low":    []any{194.0, nil, 196.0},
							"close":  []any{195.5, nil, 197.5},
							"volume": []any{1000, nil, 3000},
						}},
					},
				}},
				"error": nil,
			},
		})
	})

	data, err := src.FetchHistorical(context.Background(), market.FetchRequest{
		Symbol:    "AAPL",
		Timeframe: "1H",
	})
	require.NoError(t, err)

	require.Len(t, data.Candles, 2)
	assert.InDelta(t, 195.5, data.Candles[0].Close.Mid, 1e-9)
	assert.InDelta(t, 197.5, data.Candles[1].Close.Mid, 1e-9)
}

func TestFetchHistoricalUnknownSymbol(t *testing.T) {
	srv := testutil.NewMockServer(t)
	src := connectedSource(t, srv)

	srv.On(http.MethodGet, "/v8/finance/chart/NOPE", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(testutil.YahooChartError("Not Found", "No data found, symbol may be delisted")))
	})

	_, err := src.FetchHistorical(context.Background(), market.FetchRequest{
		Symbol:    "NOPE",
		Timeframe: "1D",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, market.ErrNotFound)

	var apiErr *market.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "No data found, symbol may be delisted", apiErr.Description)
}

func TestFetchHistoricalUnsupportedTimeframe(t *testing.T) {
	srv := testutil.NewMockServer(t)
	src := connectedSource(t, srv)
	before := srv.CaptureCount()

	_, err := src.FetchHistorical(context.Background(), market.FetchRequest{
		Symbol:    "AAPL",
		Timeframe: "4H",
	})
	assert.ErrorIs(t, err, market.ErrUnsupportedTimeframe)
	assert.Equal(t, before, srv.CaptureCount())
}

func TestFetchHistoricalNotConnected(t *testing.T) {
	srv := testutil.NewMockServer(t)
	src, err := yahoo.New(testConfig(srv))
	require.NoError(t, err)

	_, err = src.FetchHistorical(context.Background(), market.FetchRequest{Symbol: "AAPL", Timeframe: "1D"})
	assert.ErrorIs(t, err, market.ErrNotConnected)
}

func TestFetchLatest(t *testing.T) {
	srv := testutil.NewMockServer(t)
	src := connectedSource(t, srv)

	srv.On(http.MethodGet, "/v8/finance/chart/^DJI", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(testutil.YahooChartBody("^DJI",
			[]int64{1717401600, 1717405200, 1717408800},
			[]float64{38000, 38100, 38200},
		)))
	})

	data, err := src.FetchLatest(context.Background(), "DJI", "1H")
	require.NoError(t, err)
	require.Len(t, data.Candles, 2)
	assert.InDelta(t, 38200.0, data.Candles[1].Close.Mid, 1e-9)
}

func TestAvailableSymbolsAndTimeframes(t *testing.T) {
	srv := testutil.NewMockServer(t)
	src, err := yahoo.New(testConfig(srv))
	require.NoError(t, err)

	symbols, err := src.AvailableSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"DJI", "IXIC", "NDX", "SPX"}, symbols)

	tfs, err := src.AvailableTimeframes(context.Background())
	require.NoError(t, err)
	assert.Contains(t, tfs, "1H")
	assert.Contains(t, tfs, "1D")
	assert.NotContains(t, tfs, "4H")
}
