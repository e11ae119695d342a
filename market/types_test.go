package market_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prilive-com/tradekit/market"
)

func candleAt(hour int, close float64) market.Candle {
	return market.Candle{
		Time:  time.Date(2024, 6, 3, hour, 0, 0, 0, time.UTC),
		Open:  market.MidPrice(close - 0.5),
		High:  market.MidPrice(close + 1),
		Low:   market.MidPrice(close - 1),
		Close: market.MidPrice(close),
	}
}

func TestNewPrice(t *testing.T) {
	p := market.NewPrice(100, 102)
	assert.InDelta(t, 100.0, p.Bid, 1e-9)
	assert.InDelta(t, 102.0, p.Ask, 1e-9)
	assert.InDelta(t, 101.0, p.Mid, 1e-9)
	assert.InDelta(t, 2.0, p.Spread(), 1e-9)
}

func TestMidPriceHasNoSpread(t *testing.T) {
	p := market.MidPrice(100)
	assert.InDelta(t, 100.0, p.Mid, 1e-9)
	assert.Zero(t, p.Spread())
}

func TestDataLatest(t *testing.T) {
	d := &market.Data{
		Candles: []market.Candle{candleAt(10, 101), candleAt(12, 103), candleAt(11, 102)},
	}

	latest := d.Latest()
	require.NotNil(t, latest)
	assert.Equal(t, 12, latest.Time.Hour())
	assert.InDelta(t, 103.0, latest.Close.Mid, 1e-9)
}

func TestDataLatestEmpty(t *testing.T) {
	d := &market.Data{}
	assert.Nil(t, d.Latest())
	assert.Equal(t, 0, d.Len())
}

func TestDataRange(t *testing.T) {
	d := &market.Data{
		Candles: []market.Candle{candleAt(10, 100), candleAt(11, 110)},
	}

	r := d.Range()
	assert.InDelta(t, 99.0, r.Min, 1e-9)  // low of the 100-close candle
	assert.InDelta(t, 111.0, r.Max, 1e-9) // high of the 110-close candle
	assert.Greater(t, r.Avg, r.Min)
	assert.Less(t, r.Avg, r.Max)
}

func TestDataRangeEmpty(t *testing.T) {
	d := &market.Data{}
	assert.Equal(t, market.PriceRange{}, d.Range())
}

func TestDataString(t *testing.T) {
	d := &market.Data{Symbol: "NDX", Timeframe: "1H", Source: "yahoo", Candles: []market.Candle{candleAt(10, 100)}}
	assert.Equal(t, "Data(symbol=NDX, timeframe=1H, source=yahoo, candles=1)", d.String())
}
