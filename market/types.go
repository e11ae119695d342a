package market

import (
	"fmt"
	"time"
)

// Price holds bid/ask/mid quotes for a single point.
// Mid is derived from bid and ask when not supplied by the upstream source.
type Price struct {
	Bid float64 `json:"bid,omitempty"`
	Ask float64 `json:"ask,omitempty"`
	Mid float64 `json:"mid,omitempty"`
}

// NewPrice builds a Price, deriving the mid point from bid and ask.
func NewPrice(bid, ask float64) Price {
	return Price{Bid: bid, Ask: ask, Mid: (bid + ask) / 2}
}

// MidPrice builds a Price carrying only a mid value. Sources that publish a
// single trade price (Yahoo, most equity feeds) use this form.
func MidPrice(mid float64) Price {
	return Price{Mid: mid}
}

// Spread returns the ask-bid spread, or 0 when either side is missing.
func (p Price) Spread() float64 {
	if p.Bid == 0 || p.Ask == 0 {
		return 0
	}
	return p.Ask - p.Bid
}

// Candle is a single OHLC bar.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   Price     `json:"open"`
	High   Price     `json:"high"`
	Low    Price     `json:"low"`
	Close  Price     `json:"close"`
	Volume float64   `json:"volume,omitempty"`
}

// Data is a collected series of candles for one symbol and timeframe.
type Data struct {
	Symbol      string    `json:"symbol"`
	Timeframe   string    `json:"timeframe"`
	Source      string    `json:"source"`
	CollectedAt time.Time `json:"collected_at"`
	Candles     []Candle  `json:"candles"`
}

// Len returns the number of candles.
func (d *Data) Len() int { return len(d.Candles) }

// Latest returns the most recent candle, or nil for an empty series.
func (d *Data) Latest() *Candle {
	if len(d.Candles) == 0 {
		return nil
	}
	latest := &d.Candles[0]
	for i := range d.Candles {
		if d.Candles[i].Time.After(latest.Time) {
			latest = &d.Candles[i]
		}
	}
	return latest
}

// PriceRange summarizes the mid-price range of a series.
type PriceRange struct {
	Min float64
	Max float64
	Avg float64
}

// Range returns min/max/avg over all candle mid prices.
// Returns the zero PriceRange for an empty series.
func (d *Data) Range() PriceRange {
	if len(d.Candles) == 0 {
		return PriceRange{}
	}
	var sum float64
	var n int
	r := PriceRange{Min: d.Candles[0].Close.Mid, Max: d.Candles[0].Close.Mid}
	for _, c := range d.Candles {
		for _, p := range [4]float64{c.Open.Mid, c.High.Mid, c.Low.Mid, c.Close.Mid} {
			if p < r.Min {
				r.Min = p
			}
			if p > r.Max {
				r.Max = p
			}
			sum += p
			n++
		}
	}
	r.Avg = sum / float64(n)
	return r
}

func (d *Data) String() string {
	return fmt.Sprintf("Data(symbol=%s, timeframe=%s, source=%s, candles=%d)",
		d.Symbol, d.Timeframe, d.Source, len(d.Candles))
}

// FetchRequest bounds a historical data request.
// Zero From/To mean "source default range"; Limit 0 means no cap.
type FetchRequest struct {
	Symbol    string
	Timeframe string
	From      time.Time
	To        time.Time
	Limit     int
}
