// Package bybit implements plugin.ExchangePlugin for Bybit v5 spot, bit-exact to
// adapter/bybit's parsing so the two round-trip (spec §8 property 10).
package bybit

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/candlefeed/candles-feed/candle"
	"github.com/candlefeed/candles-feed/mockserver/plugin"
)

var nativeInterval = map[string]string{
	"1m": "1", "3m": "3", "5m": "5", "15m": "15", "30m": "30",
	"1h": "60", "2h": "120", "4h": "240", "6h": "360", "12h": "720",
	"1d": "D", "1w": "W", "1M": "M",
}

var secondsByNative = map[string]int64{
	"1": 60, "3": 180, "5": 300, "15": 900, "30": 1800,
	"60": 3600, "120": 7200, "240": 14400, "360": 21600, "720": 43200,
	"D": 86400, "W": 604800, "M": 2592000,
}

// Plugin implements plugin.ExchangePlugin for Bybit v5 spot.
type Plugin struct{}

// New constructs a Bybit plugin. Satisfies plugin.Factory.
func New() plugin.ExchangePlugin { return &Plugin{} }

func (p *Plugin) ExchangeType() plugin.ExchangeType { return plugin.Bybit }

func (p *Plugin) RESTRoutes() map[string]string {
	return map[string]string{"/v5/market/kline": http.MethodGet}
}

func (p *Plugin) WSRoute() string { return "/v5/public/spot" }

// FormatRESTCandles renders Bybit's {retCode,retMsg,result:{list}} envelope, newest-first.
func (p *Plugin) FormatRESTCandles(candles []candle.Data, pair, intervalToken string) (interface{}, error) {
	nativeSymbol, err := nativeSymbolFor(pair)
	if err != nil {
		return nil, err
	}
	list := make([][]string, len(candles))
	for i, c := range candles {
		list[len(candles)-1-i] = []string{
			strconv.FormatInt(c.TimestampMs(), 10),
			formatFloat(c.Open), formatFloat(c.High), formatFloat(c.Low), formatFloat(c.Close),
			formatFloat(c.Volume), formatFloat(c.QuoteAssetVolume),
		}
	}
	return map[string]interface{}{
		"retCode": 0, "retMsg": "OK",
		"result": map[string]interface{}{"category": "spot", "symbol": nativeSymbol, "list": list},
	}, nil
}

// FormatWSCandleMessage renders Bybit's public kline topic push
// {topic,type,data:[{start,open,high,low,close,volume,turnover,confirm}]}.
func (p *Plugin) FormatWSCandleMessage(c candle.Data, pair, intervalToken string, isFinal bool) (interface{}, error) {
	nativeTok, ok := nativeInterval[intervalToken]
	if !ok {
		return nil, fmt.Errorf("bybit plugin: unsupported interval %q", intervalToken)
	}
	nativeSymbol, err := nativeSymbolFor(pair)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"topic": fmt.Sprintf("kline.%s.%s", nativeTok, nativeSymbol),
		"type":  "snapshot",
		"ts":    c.TimestampMs(),
		"data": []map[string]interface{}{{
			"start":    c.TimestampMs(),
			"open":     formatFloat(c.Open),
			"high":     formatFloat(c.High),
			"low":      formatFloat(c.Low),
			"close":    formatFloat(c.Close),
			"volume":   formatFloat(c.Volume),
			"turnover": formatFloat(c.QuoteAssetVolume),
			"confirm":  isFinal,
		}},
	}, nil
}

// ParseRESTCandlesParams decodes Bybit's category/symbol/interval/limit/start/end query params.
func (p *Plugin) ParseRESTCandlesParams(r *http.Request) (plugin.CandleRequest, error) {
	q := r.URL.Query()
	canonicalInterval := ""
	for canon, nativeTok := range nativeInterval {
		if nativeTok == q.Get("interval") {
			canonicalInterval = canon
			break
		}
	}
	req := plugin.CandleRequest{Symbol: q.Get("symbol"), Interval: canonicalInterval}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return plugin.CandleRequest{}, fmt.Errorf("bybit plugin: bad limit: %w", err)
		}
		req.Limit = n
	}
	if v := q.Get("start"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return plugin.CandleRequest{}, fmt.Errorf("bybit plugin: bad start: %w", err)
		}
		req.StartTime = ms / 1000
	}
	if v := q.Get("end"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return plugin.CandleRequest{}, fmt.Errorf("bybit plugin: bad end: %w", err)
		}
		req.EndTime = ms / 1000
	}
	return req, nil
}

// ParseWSSubscription decodes {"op":"subscribe","args":["kline.1.BTCUSDT"]}.
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
		topic, ok := a.(string)
		if !ok {
			continue
		}
		parts := strings.SplitN(topic, ".", 3)
		if len(parts) != 3 || parts[0] != "kline" {
			continue
		}
		canon := ""
		for c, nativeTok := range nativeInterval {
			if nativeTok == parts[1] {
				canon = c
				break
			}
		}
		if canon == "" {
			continue
		}
		out = append(out, plugin.WSSubscription{Symbol: parts[2], Interval: canon})
	}
	return out, nil
}

// NormalizeTradingPair splits Bybit's concatenated symbol using the shared known-quote-suffix
// heuristic (Bybit's wire format, like Binance's, carries no base/quote separator).
func (p *Plugin) NormalizeTradingPair(nativeSymbol string) (string, error) {
	return splitConcatenatedSymbol(nativeSymbol)
}

func (p *Plugin) CreateWSSubscriptionKey(pair, intervalToken string) string {
	nativeSymbol, _ := nativeSymbolFor(pair)
	nativeTok := nativeInterval[intervalToken]
	return fmt.Sprintf("%s_%s", nativeSymbol, nativeTok)
}

func (p *Plugin) IntervalToSeconds(nativeToken string) (int64, error) {
	if s, ok := secondsByNative[nativeToken]; ok {
		return s, nil
	}
	return 0, fmt.Errorf("bybit plugin: unrecognized interval token %q", nativeToken)
}

func nativeSymbolFor(pair string) (string, error) {
	base, quote, ok := strings.Cut(pair, "-")
	if !ok {
		return "", fmt.Errorf("bybit plugin: invalid canonical pair %q", pair)
	}
	return strings.ToUpper(base) + strings.ToUpper(quote), nil
}

var knownQuoteAssets = []string{"USDT", "BUSD", "USDC", "BTC", "ETH", "USD"}

func splitConcatenatedSymbol(nativeSymbol string) (string, error) {
	upper := strings.ToUpper(nativeSymbol)
	for _, quote := range knownQuoteAssets {
		if strings.HasSuffix(upper, quote) && len(upper) > len(quote) {
			return upper[:len(upper)-len(quote)] + "-" + quote, nil
		}
	}
	return "", fmt.Errorf("bybit plugin: cannot split symbol %q into base/quote", nativeSymbol)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
