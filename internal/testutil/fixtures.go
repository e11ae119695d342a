package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// ReplyJSON writes a JSON body with the given status code.
func ReplyJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// ReplyVendorError writes a vendor-style error body with the given HTTP status.
func ReplyVendorError(w http.ResponseWriter, status int, code string) {
	ReplyJSON(w, status, map[string]string{"errorCode": code})
}

// ReplyRateLimited writes a 429 with a Retry-After header.
func ReplyRateLimited(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	ReplyVendorError(w, http.StatusTooManyRequests, "exceeded-api-key-allowance")
}

// ReplyIGSession writes a successful IG session response with auth headers.
func ReplyIGSession(w http.ResponseWriter, cst, securityToken string) {
	w.Header().Set("CST", cst)
	w.Header().Set("X-SECURITY-TOKEN", securityToken)
	ReplyJSON(w, http.StatusOK, map[string]any{
		"accountId":       "ABC123",
		"currencyIsoCode": "GBP",
	})
}

// IGPricesBody builds an IG /prices response with n hourly candles starting
// at the given bid/ask and stepping both by 1.0 per candle.
func IGPricesBody(n int, bid, ask float64) string {
	var prices []string
	for i := 0; i < n; i++ {
		b := bid + float64(i)
		a := ask + float64(i)
		prices = append(prices, fmt.Sprintf(`{
			"snapshotTimeUTC": "2024-06-03T%02d:00:00",
			"openPrice":  {"bid": %.1f, "ask": %.1f},
			"highPrice":  {"bid": %.1f, "ask": %.1f},
			"lowPrice":   {"bid": %.1f, "ask": %.1f},
			"closePrice": {"bid": %.1f, "ask": %.1f},
			"lastTradedVolume": %d
		}`, i, b, a, b+1, a+1, b-1, a-1, b, a, 100+i))
	}
	return `{"prices":[` + strings.Join(prices, ",") + `],"instrumentType":"CURRENCIES"}`
}

// YahooChartBody builds a Yahoo /v8/finance/chart response with the given
// unix timestamps and close prices (open/high/low derived from close).
func YahooChartBody(symbol string, timestamps []int64, closes []float64) string {
	ts, _ := json.Marshal(timestamps)
	cl, _ := json.Marshal(closes)
	opens := make([]float64, len(closes))
	highs := make([]float64, len(closes))
	lows := make([]float64, len(closes))
	vols := make([]int64, len(closes))
	for i, c := range closes {
		opens[i] = c - 0.5
		highs[i] = c + 1
		lows[i] = c - 1
		vols[i] = 1000 + int64(i)
	}
	op, _ := json.Marshal(opens)
	hi, _ := json.Marshal(highs)
	lo, _ := json.Marshal(lows)
	vo, _ := json.Marshal(vols)
	return fmt.Sprintf(`{
		"chart": {
			"result": [{
				"meta": {"symbol": %q, "regularMarketPrice": %v},
				"timestamp": %s,
				"indicators": {"quote": [{"open": %s, "high": %s, "low": %s, "close": %s, "volume": %s}]}
			}],
			"error": null
		}
	}`, symbol, closes[len(closes)-1], ts, op, hi, lo, cl, vo)
}

// YahooChartError builds a Yahoo chart error envelope.
func YahooChartError(code, description string) string {
	return fmt.Sprintf(`{"chart":{"result":null,"error":{"code":%q,"description":%q}}}`, code, description)
}
