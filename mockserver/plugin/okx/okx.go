// Package okx implements plugin.ExchangePlugin for OKX spot, bit-exact to adapter/okx's parsing
// of the documented /market/candles endpoint so the two round-trip (spec §8 property 10).
package okx

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/candlefeed/candles-feed/candle"
	"github.com/candlefeed/candles-feed/mockserver/plugin"
)

var nativeInterval = map[string]string{
	"1m": "1m", "5m": "5m", "15m": "15m", "1h": "1H", "4h": "4H", "1d": "1D",
}

var secondsByNative = map[string]int64{
	"1m": 60, "5m": 300, "15m": 900, "1H": 3600, "4H": 14400, "1D": 86400,
}

// Plugin implements plugin.ExchangePlugin for OKX spot.
type Plugin struct{}

// New constructs an OKX plugin. Satisfies plugin.Factory.
func New() plugin.ExchangePlugin { return &Plugin{} }

func (p *Plugin) ExchangeType() plugin.ExchangeType { return plugin.OKX }

func (p *Plugin) RESTRoutes() map[string]string {
	return map[string]string{"/api/v5/market/candles": http.MethodGet}
}

func (p *Plugin) WSRoute() string { return "/ws/v5/public" }

// FormatRESTCandles renders OKX's {code,msg,data:[[ts,o,h,l,c,vol,volCcy]]} envelope,
// newest-first (OKX's documented order).
func (p *Plugin) FormatRESTCandles(candles []candle.Data, pair, intervalToken string) (interface{}, error) {
	rows := make([][]string, len(candles))
	for i, c := range candles {
		rows[len(candles)-1-i] = []string{
			strconv.FormatInt(c.TimestampMs(), 10),
			formatFloat(c.Open), formatFloat(c.High), formatFloat(c.Low), formatFloat(c.Close),
			formatFloat(c.Volume), formatFloat(c.QuoteAssetVolume),
		}
	}
	return map[string]interface{}{"code": "0", "msg": "", "data": rows}, nil
}

// FormatWSCandleMessage renders OKX's public channel push {arg:{channel,instId},data:[[...]]}.
func (p *Plugin) FormatWSCandleMessage(c candle.Data, pair, intervalToken string, isFinal bool) (interface{}, error) {
	bar, ok := nativeInterval[intervalToken]
	if !ok {
		return nil, fmt.Errorf("okx plugin: unsupported interval %q", intervalToken)
	}
	nativeSymbol, err := nativeSymbolFor(pair)
	if err != nil {
		return nil, err
	}
	confirm := "0"
	if isFinal {
		confirm = "1"
	}
	row := []string{
		strconv.FormatInt(c.TimestampMs(), 10),
		formatFloat(c.Open), formatFloat(c.High), formatFloat(c.Low), formatFloat(c.Close),
		formatFloat(c.Volume), formatFloat(c.QuoteAssetVolume), confirm,
	}
	return map[string]interface{}{
		"arg":  map[string]string{"channel": "candle" + bar, "instId": nativeSymbol},
		"data": [][]string{row},
	}, nil
}

// ParseRESTCandlesParams decodes OKX's instId/bar/limit/after/before query params.
func (p *Plugin) ParseRESTCandlesParams(r *http.Request) (plugin.CandleRequest, error) {
	q := r.URL.Query()
	canonicalInterval := ""
	for canon, bar := range nativeInterval {
		if bar == q.Get("bar") {
			canonicalInterval = canon
			break
		}
	}
	req := plugin.CandleRequest{Symbol: q.Get("instId"), Interval: canonicalInterval}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return plugin.CandleRequest{}, fmt.Errorf("okx plugin: bad limit: %w", err)
		}
		req.Limit = n
	}
	// OKX's "after"/"before" are exclusive pagination cursors on the opposite sides of the
	// interval the adapter encodes them (see adapter/okx.GetRESTParams): after->start, before->end.
	if v := q.Get("after"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return plugin.CandleRequest{}, fmt.Errorf("okx plugin: bad after: %w", err)
		}
		req.StartTime = (ms + 1) / 1000
	}
	if v := q.Get("before"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return plugin.CandleRequest{}, fmt.Errorf("okx plugin: bad before: %w", err)
		}
		req.EndTime = (ms - 1) / 1000
	}
	return req, nil
}

// ParseWSSubscription decodes {"op":"subscribe","args":[{"channel":"candle1m","instId":"BTC-USDT"}]}.
func (p *Plugin) ParseWSSubscription(raw interface{}) ([]plugin.WSSubscription, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, nil
	}
	op, _ := m["op"].(string)
	if op != "subscribe" {
		return nil, nil
	}
	rawArgs, ok := m["args"].([]interface{})
	if !ok {
		return nil, nil
	}

	out := make([]plugin.WSSubscription, 0, len(rawArgs))
	for _, a := range rawArgs {
		arg, ok := a.(map[string]interface{})
		if !ok {
			continue
		}
		channel, _ := arg["channel"].(string)
		instID, _ := arg["instId"].(string)
		bar := strings.TrimPrefix(channel, "candle")
		canon := ""
		for c, b := range nativeInterval {
			if b == bar {
				canon = c
				break
			}
		}
		if canon == "" || instID == "" {
			continue
		}
		out = append(out, plugin.WSSubscription{Symbol: instID, Interval: canon})
	}
	return out, nil
}

// NormalizeTradingPair returns OKX's native "BASE-QUOTE" unchanged: it already matches canonical
// form.
func (p *Plugin) NormalizeTradingPair(nativeSymbol string) (string, error) {
	if !strings.Contains(nativeSymbol, "-") {
		return "", fmt.Errorf("okx plugin: invalid native symbol %q", nativeSymbol)
	}
	return strings.ToUpper(nativeSymbol), nil
}

func (p *Plugin) CreateWSSubscriptionKey(pair, intervalToken string) string {
	bar := nativeInterval[intervalToken]
	return fmt.Sprintf("%s_%s", pair, bar)
}

func (p *Plugin) IntervalToSeconds(nativeToken string) (int64, error) {
	if s, ok := secondsByNative[nativeToken]; ok {
		return s, nil
	}
	// OKX accepts a lowercase "1d" alias in addition to the documented uppercase "1D".
	if s, ok := secondsByNative[strings.ToUpper(nativeToken)]; ok {
		return s, nil
	}
	return 0, fmt.Errorf("okx plugin: unrecognized interval token %q", nativeToken)
}

func nativeSymbolFor(pair string) (string, error) {
	if !strings.Contains(pair, "-") {
		return "", fmt.Errorf("okx plugin: invalid canonical pair %q", pair)
	}
	return strings.ToUpper(pair), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
