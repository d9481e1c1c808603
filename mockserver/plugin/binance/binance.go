// Package binance implements plugin.ExchangePlugin for Binance spot, bit-exact to
// adapter/binance's parsing so the two round-trip (spec §8 property 10).
package binance

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/candlefeed/candles-feed/candle"
	"github.com/candlefeed/candles-feed/interval"
	"github.com/candlefeed/candles-feed/mockserver/plugin"
)

// Plugin implements plugin.ExchangePlugin for Binance spot.
type Plugin struct{}

// New constructs a Binance plugin. Satisfies plugin.Factory.
func New() plugin.ExchangePlugin { return &Plugin{} }

func (p *Plugin) ExchangeType() plugin.ExchangeType { return plugin.Binance }

func (p *Plugin) RESTRoutes() map[string]string {
	return map[string]string{"/api/v3/klines": http.MethodGet}
}

func (p *Plugin) WSRoute() string { return "/ws" }

// FormatRESTCandles renders Binance's documented
// [[openTime,o,h,l,c,v,closeTime,quoteVolume,trades,takerBase,takerQuote,ignore]] array.
func (p *Plugin) FormatRESTCandles(candles []candle.Data, pair, intervalToken string) (interface{}, error) {
	secs, err := interval.Seconds(intervalToken)
	if err != nil {
		return nil, err
	}
	rows := make([][]interface{}, 0, len(candles))
	for _, c := range candles {
		closeTimeMs := c.TimestampMs() + secs*1000 - 1
		rows = append(rows, []interface{}{
			c.TimestampMs(),
			formatFloat(c.Open),
			formatFloat(c.High),
			formatFloat(c.Low),
			formatFloat(c.Close),
			formatFloat(c.Volume),
			closeTimeMs,
			formatFloat(c.QuoteAssetVolume),
			c.NTrades,
			formatFloat(c.TakerBuyBaseVolume),
			formatFloat(c.TakerBuyQuoteVolume),
			"0",
		})
	}
	return rows, nil
}

// FormatWSCandleMessage renders Binance's combined-stream kline push {e,E,s,k:{...}}.
func (p *Plugin) FormatWSCandleMessage(c candle.Data, pair, intervalToken string, isFinal bool) (interface{}, error) {
	nativeSymbol, err := nativeSymbolFor(pair)
	if err != nil {
		return nil, err
	}
	secs, err := interval.Seconds(intervalToken)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"e": "kline",
		"E": c.TimestampMs(),
		"s": nativeSymbol,
		"k": map[string]interface{}{
			"t": c.TimestampMs(),
			"T": c.TimestampMs() + secs*1000 - 1,
			"s": nativeSymbol,
			"i": intervalToken,
			"o": formatFloat(c.Open),
			"h": formatFloat(c.High),
			"l": formatFloat(c.Low),
			"c": formatFloat(c.Close),
			"v": formatFloat(c.Volume),
			"n": c.NTrades,
			"x": isFinal,
			"q": formatFloat(c.QuoteAssetVolume),
			"V": formatFloat(c.TakerBuyBaseVolume),
			"Q": formatFloat(c.TakerBuyQuoteVolume),
		},
	}, nil
}

// ParseRESTCandlesParams decodes Binance's symbol/interval/limit/startTime/endTime query params.
func (p *Plugin) ParseRESTCandlesParams(r *http.Request) (plugin.CandleRequest, error) {
	q := r.URL.Query()
	req := plugin.CandleRequest{Symbol: q.Get("symbol"), Interval: q.Get("interval")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return plugin.CandleRequest{}, fmt.Errorf("binance plugin: bad limit: %w", err)
		}
		req.Limit = n
	}
	if v := q.Get("startTime"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return plugin.CandleRequest{}, fmt.Errorf("binance plugin: bad startTime: %w", err)
		}
		req.StartTime = ms / 1000
	}
	if v := q.Get("endTime"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return plugin.CandleRequest{}, fmt.Errorf("binance plugin: bad endTime: %w", err)
		}
		req.EndTime = ms / 1000
	}
	return req, nil
}

// ParseWSSubscription decodes {"method":"SUBSCRIBE","params":["btcusdt@kline_1m"],"id":1}.
func (p *Plugin) ParseWSSubscription(raw interface{}) ([]plugin.WSSubscription, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, nil
	}
	method, _ := m["method"].(string)
	if !strings.EqualFold(method, "SUBSCRIBE") {
		return nil, nil
	}
	rawParams, ok := m["params"].([]interface{})
	if !ok {
		return nil, nil
	}

	out := make([]plugin.WSSubscription, 0, len(rawParams))
	for _, rp := range rawParams {
		stream, ok := rp.(string)
		if !ok {
			continue
		}
		parts := strings.SplitN(stream, "@kline_", 2)
		if len(parts) != 2 {
			continue
		}
		out = append(out, plugin.WSSubscription{Symbol: strings.ToUpper(parts[0]), Interval: parts[1]})
	}
	return out, nil
}

// NormalizeTradingPair splits Binance's concatenated symbol (e.g. "BTCUSDT") using the
// known-quote-suffix heuristic (this package's own knownQuoteAssets list; the bybit plugin keeps
// a similar list of its own), since Binance's wire format carries no separator.
func (p *Plugin) NormalizeTradingPair(nativeSymbol string) (string, error) {
	return splitConcatenatedSymbol(nativeSymbol)
}

func (p *Plugin) CreateWSSubscriptionKey(pair, intervalToken string) string {
	nativeSymbol, _ := nativeSymbolFor(pair)
	return fmt.Sprintf("%s_%s", strings.ToLower(nativeSymbol), intervalToken)
}

func (p *Plugin) IntervalToSeconds(nativeToken string) (int64, error) {
	return interval.Seconds(nativeToken)
}

func nativeSymbolFor(pair string) (string, error) {
	base, quote, ok := strings.Cut(pair, "-")
	if !ok {
		return "", fmt.Errorf("binance plugin: invalid canonical pair %q", pair)
	}
	return strings.ToUpper(base) + strings.ToUpper(quote), nil
}

// knownQuoteAssets lists quote assets long enough, and common enough, to disambiguate Binance's
// concatenated BASEQUOTE symbols without a separator. Longest first so e.g. "USDT" is preferred
// over "USD" when both would match.
var knownQuoteAssets = []string{"USDT", "BUSD", "USDC", "BTC", "ETH", "BNB", "USD"}

func splitConcatenatedSymbol(nativeSymbol string) (string, error) {
	upper := strings.ToUpper(nativeSymbol)
	for _, quote := range knownQuoteAssets {
		if strings.HasSuffix(upper, quote) && len(upper) > len(quote) {
			base := upper[:len(upper)-len(quote)]
			return base + "-" + quote, nil
		}
	}
	return "", fmt.Errorf("binance plugin: cannot split symbol %q into base/quote", nativeSymbol)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
