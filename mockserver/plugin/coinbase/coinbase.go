// Package coinbase implements plugin.ExchangePlugin for Coinbase Exchange spot, bit-exact to
// adapter/coinbase's parsing so the two round-trip (spec §8 property 10). Coinbase has no public
// candle WebSocket feed, so WSRoute returns "" and ParseWSSubscription/FormatWSCandleMessage are
// unreachable in practice; the mock server skips WS route registration when WSRoute() == "".
package coinbase

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/candlefeed/candles-feed/candle"
	"github.com/candlefeed/candles-feed/mockserver/plugin"
)

var secondsByGranularity = map[int64]string{
	60: "1m", 300: "5m", 900: "15m", 3600: "1h", 21600: "6h", 86400: "1d",
}

var granularityByInterval = map[string]int64{
	"1m": 60, "5m": 300, "15m": 900, "1h": 3600, "6h": 21600, "1d": 86400,
}

// Plugin implements plugin.ExchangePlugin for Coinbase Exchange spot.
type Plugin struct{}

// New constructs a Coinbase plugin. Satisfies plugin.Factory.
func New() plugin.ExchangePlugin { return &Plugin{} }

func (p *Plugin) ExchangeType() plugin.ExchangeType { return plugin.Coinbase }

func (p *Plugin) RESTRoutes() map[string]string {
	return map[string]string{"/products/{productId}/candles": http.MethodGet}
}

// WSRoute returns "": Coinbase's real exchange has no public candle WebSocket feed.
func (p *Plugin) WSRoute() string { return "" }

// FormatRESTCandles renders Coinbase's documented [ts,low,high,open,close,volume] rows
// (float64 fields, descending/newest-first order, unlike the string-encoded exchanges).
func (p *Plugin) FormatRESTCandles(candles []candle.Data, pair, intervalToken string) (interface{}, error) {
	rows := make([][]float64, len(candles))
	for i, c := range candles {
		rows[len(candles)-1-i] = []float64{
			float64(c.Timestamp), c.Low, c.High, c.Open, c.Close, c.Volume,
		}
	}
	return rows, nil
}

// FormatWSCandleMessage is unreachable: Coinbase has no candle WS channel. Returns an error if
// ever called.
func (p *Plugin) FormatWSCandleMessage(c candle.Data, pair, intervalToken string, isFinal bool) (interface{}, error) {
	return nil, fmt.Errorf("coinbase plugin: no websocket candle channel")
}

// ParseRESTCandlesParams decodes Coinbase's productId path segment and
// granularity/start/end query params. start/end are RFC3339.
func (p *Plugin) ParseRESTCandlesParams(r *http.Request) (plugin.CandleRequest, error) {
	productID := r.URL.Query().Get("productId")
	if productID == "" {
		productID = pathSegment(r.URL.Path, "products")
	}
	q := r.URL.Query()
	canonicalInterval := ""
	if v := q.Get("granularity"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return plugin.CandleRequest{}, fmt.Errorf("coinbase plugin: bad granularity: %w", err)
		}
		tok, ok := secondsByGranularity[n]
		if !ok {
			return plugin.CandleRequest{}, fmt.Errorf("coinbase plugin: unsupported granularity %d", n)
		}
		canonicalInterval = tok
	}
	req := plugin.CandleRequest{Symbol: productID, Interval: canonicalInterval}
	if v := q.Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return plugin.CandleRequest{}, fmt.Errorf("coinbase plugin: bad start: %w", err)
		}
		req.StartTime = t.Unix()
	}
	if v := q.Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return plugin.CandleRequest{}, fmt.Errorf("coinbase plugin: bad end: %w", err)
		}
		req.EndTime = t.Unix()
	}
	return req, nil
}

// ParseWSSubscription always returns (nil, nil): Coinbase has no candle WS channel to subscribe
// to.
func (p *Plugin) ParseWSSubscription(raw interface{}) ([]plugin.WSSubscription, error) {
	return nil, nil
}

// NormalizeTradingPair returns Coinbase's native "BASE-QUOTE" unchanged: it already matches
// canonical form.
func (p *Plugin) NormalizeTradingPair(nativeSymbol string) (string, error) {
	if !strings.Contains(nativeSymbol, "-") {
		return "", fmt.Errorf("coinbase plugin: invalid native symbol %q", nativeSymbol)
	}
	return strings.ToUpper(nativeSymbol), nil
}

// CreateWSSubscriptionKey still produces the canonical key form for internal bookkeeping, even
// though Coinbase has no WS channel to key.
func (p *Plugin) CreateWSSubscriptionKey(pair, intervalToken string) string {
	return fmt.Sprintf("%s_%s", pair, intervalToken)
}

func (p *Plugin) IntervalToSeconds(nativeToken string) (int64, error) {
	if n, err := strconv.ParseInt(nativeToken, 10, 64); err == nil {
		if _, ok := secondsByGranularity[n]; ok {
			return n, nil
		}
	}
	if n, ok := granularityByInterval[nativeToken]; ok {
		return n, nil
	}
	return 0, fmt.Errorf("coinbase plugin: unrecognized interval token %q", nativeToken)
}

func pathSegment(path, after string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, part := range parts {
		if part == after && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}
