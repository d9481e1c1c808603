// Package kucoin implements plugin.ExchangePlugin for KuCoin spot, bit-exact to
// adapter/kucoin's parsing so the two round-trip (spec §8 property 10). KuCoin's public candle
// feed is pull-based REST only, not WS, so WSRoute returns "" like coinbase.
package kucoin

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/candlefeed/candles-feed/candle"
	"github.com/candlefeed/candles-feed/mockserver/plugin"
)

var nativeInterval = map[string]string{
	"1m": "1min", "5m": "5min", "15m": "15min", "30m": "30min",
	"1h": "1hour", "4h": "4hour", "8h": "8hour", "1d": "1day", "1w": "1week",
}

var secondsByNative = map[string]int64{
	"1min": 60, "5min": 300, "15min": 900, "30min": 1800,
	"1hour": 3600, "4hour": 14400, "8hour": 28800, "1day": 86400, "1week": 604800,
}

// errCode is KuCoin's documented error code for an unsupported symbol/type combination.
const errCode = "400100"

// Plugin implements plugin.ExchangePlugin for KuCoin spot.
type Plugin struct{}

// New constructs a KuCoin plugin. Satisfies plugin.Factory.
func New() plugin.ExchangePlugin { return &Plugin{} }

func (p *Plugin) ExchangeType() plugin.ExchangeType { return plugin.KuCoin }

func (p *Plugin) RESTRoutes() map[string]string {
	return map[string]string{"/api/v1/market/candles": http.MethodGet}
}

// WSRoute returns "": this deployment only mocks KuCoin's REST candles endpoint.
func (p *Plugin) WSRoute() string { return "" }

// FormatRESTCandles renders KuCoin's documented {code,data:[[time,open,close,high,low,volume,
// turnover]]} envelope, descending/newest-first, string-encoded fields. Note the close-before-
// high/low field order, unlike every other plugin in this package.
func (p *Plugin) FormatRESTCandles(candles []candle.Data, pair, intervalToken string) (interface{}, error) {
	rows := make([][]string, len(candles))
	for i, c := range candles {
		rows[len(candles)-1-i] = []string{
			strconv.FormatInt(c.Timestamp, 10),
			formatFloat(c.Open), formatFloat(c.Close), formatFloat(c.High), formatFloat(c.Low),
			formatFloat(c.Volume), formatFloat(c.QuoteAssetVolume),
		}
	}
	return map[string]interface{}{"code": "200000", "data": rows}, nil
}

// FormatWSCandleMessage is unreachable: this deployment doesn't mock KuCoin's WS surface. Returns
// an error if ever called.
func (p *Plugin) FormatWSCandleMessage(c candle.Data, pair, intervalToken string, isFinal bool) (interface{}, error) {
	return nil, fmt.Errorf("kucoin plugin: no websocket candle channel mocked")
}

// ParseRESTCandlesParams decodes KuCoin's symbol/type/startAt/endAt query params. KuCoin has no
// limit param; it always returns the full requested window.
func (p *Plugin) ParseRESTCandlesParams(r *http.Request) (plugin.CandleRequest, error) {
	q := r.URL.Query()
	canonicalInterval := ""
	for canon, nativeTok := range nativeInterval {
		if nativeTok == q.Get("type") {
			canonicalInterval = canon
			break
		}
	}
	req := plugin.CandleRequest{Symbol: q.Get("symbol"), Interval: canonicalInterval}
	if v := q.Get("startAt"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return plugin.CandleRequest{}, fmt.Errorf("kucoin plugin: bad startAt: %w", err)
		}
		req.StartTime = n
	}
	if v := q.Get("endAt"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return plugin.CandleRequest{}, fmt.Errorf("kucoin plugin: bad endAt: %w", err)
		}
		req.EndTime = n
	}
	return req, nil
}

// ParseWSSubscription always returns (nil, nil): this deployment doesn't mock KuCoin's WS surface.
func (p *Plugin) ParseWSSubscription(raw interface{}) ([]plugin.WSSubscription, error) {
	return nil, nil
}

// NormalizeTradingPair returns KuCoin's native "BASE-QUOTE" unchanged: it already matches
// canonical form.
func (p *Plugin) NormalizeTradingPair(nativeSymbol string) (string, error) {
	if !strings.Contains(nativeSymbol, "-") {
		return "", fmt.Errorf("kucoin plugin: invalid native symbol %q", nativeSymbol)
	}
	return strings.ToUpper(nativeSymbol), nil
}

func (p *Plugin) CreateWSSubscriptionKey(pair, intervalToken string) string {
	nativeTok := nativeInterval[intervalToken]
	return fmt.Sprintf("%s_%s", pair, nativeTok)
}

func (p *Plugin) IntervalToSeconds(nativeToken string) (int64, error) {
	if s, ok := secondsByNative[nativeToken]; ok {
		return s, nil
	}
	return 0, fmt.Errorf("kucoin plugin: unrecognized interval token %q", nativeToken)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ErrCode exposes KuCoin's unsupported-symbol error code for fault-injection scenarios that need
// to return a realistic error envelope.
func ErrCode() string { return errCode }
