// Package bybit adapts Bybit's v5 spot REST/WS kline API to the adapter.Adapter contract.
//
// Grounded on the teacher library's candles/bybit/api_klines.go: same {retCode,retMsg,result}
// envelope, same numeric/letter interval-code table, same newest-first list requiring reversal.
// Bybit is modeled as AsyncOnly (SPEC_FULL.md §4.2b): FetchRESTCandlesSynchronous rejects
// eagerly rather than dispatching to a worker, mirroring the teacher's WS-first bias for Bybit
// in the rest of the corpus.
package bybit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/candlefeed/candles-feed/adapter"
	"github.com/candlefeed/candles-feed/candle"
	"github.com/candlefeed/candles-feed/network"
	"github.com/candlefeed/candles-feed/symbol"
)

const (
	restProductionURL = "https://api.bybit.com/v5/"
	restTestnetURL     = "https://api-testnet.bybit.com/v5/"
	wsProductionURL    = "wss://stream.bybit.com/v5/public/spot"
	wsTestnetURL        = "wss://stream-testnet.bybit.com/v5/public/spot"

	retCodeNotSupportedSymbols = 10001
	retCodeInvalidCategory     = 10002

	// MaxLimit is Bybit's documented maximum candles per request.
	MaxLimit = 1000

	// RateLimitRequestsPerWindow and RateLimitWindowDuration approximate Bybit's documented
	// public-endpoint IP rate limit.
	RateLimitRequestsPerWindow = 600
	RateLimitWindowDuration    = 5 * time.Second
)

var intervals = map[string]time.Duration{
	"1m": time.Minute, "3m": 3 * time.Minute, "5m": 5 * time.Minute, "15m": 15 * time.Minute,
	"30m": 30 * time.Minute, "1h": time.Hour, "2h": 2 * time.Hour, "4h": 4 * time.Hour,
	"6h": 6 * time.Hour, "12h": 12 * time.Hour, "1d": 24 * time.Hour, "1w": 7 * 24 * time.Hour,
	"1M": 30 * 24 * time.Hour,
}

// nativeInterval maps canonical tokens to Bybit's numeric/letter interval codes.
var nativeInterval = map[string]string{
	"1m": "1", "3m": "3", "5m": "5", "15m": "15", "30m": "30",
	"1h": "60", "2h": "120", "4h": "240", "6h": "360", "12h": "720",
	"1d": "D", "1w": "W", "1M": "M",
}

// wsIntervals are the tokens Bybit streams over its public kline WS channel in this deployment
// (SPEC_FULL.md §4.2b): a narrower set than the REST interval table.
var wsIntervals = []string{"1m", "5m", "15m", "1h", "1d"}

// Bybit adapts the Bybit v5 spot exchange.
type Bybit struct {
	adapter.Base
}

// New constructs a Bybit adapter.
func New(opts ...adapter.Option) *Bybit {
	return &Bybit{Base: adapter.NewBase("bybit_spot", adapter.AsyncOnly, opts...)}
}

// GetIntervals returns Bybit's supported REST interval tokens.
func (b *Bybit) GetIntervals() map[string]time.Duration { return intervals }

// GetWSIntervals returns the narrower set of intervals streamed over WS.
func (b *Bybit) GetWSIntervals() []string { return wsIntervals }

// GetTradingPairFormat converts "BTC-USDT" to "BTCUSDT".
func (b *Bybit) GetTradingPairFormat(pair string) (string, error) {
	p, err := symbol.Parse(pair)
	if err != nil {
		return "", err
	}
	return p.Base + p.Quote, nil
}

// GetRESTURL returns the REST base URL for kind, honoring any test-time URL patch first.
func (b *Bybit) GetRESTURL(kind network.EndpointKind) string {
	if url, ok := b.RESTURLOverride(kind); ok {
		return url
	}
	if b.NetworkConfig().IsTestnetFor(kind) {
		return restTestnetURL
	}
	return restProductionURL
}

// GetWSURL returns the WebSocket base URL, honoring any test-time URL patch first.
func (b *Bybit) GetWSURL() string {
	if url, ok := b.WSURLOverride(); ok {
		return url
	}
	if b.NetworkConfig().IsTestnetFor(network.EndpointCandles) {
		return wsTestnetURL
	}
	return wsProductionURL
}

// GetRESTParams builds Bybit's /market/kline query parameters.
func (b *Bybit) GetRESTParams(pair, intervalToken string, start, end *time.Time, limit int) (map[string]string, error) {
	nativeTok, ok := nativeInterval[intervalToken]
	if !ok {
		return nil, fmt.Errorf("%w: %s", adapter.ErrUnsupportedInterval, intervalToken)
	}
	if start != nil && end != nil && start.After(*end) {
		return nil, adapter.ErrInvalidTimeRange
	}
	nativeSymbol, err := b.GetTradingPairFormat(pair)
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}
	params := map[string]string{
		"category": "spot", "symbol": nativeSymbol, "interval": nativeTok,
		"limit": strconv.Itoa(limit),
	}
	if start != nil {
		params["start"] = strconv.FormatInt(start.UnixMilli(), 10)
	}
	if end != nil {
		params["end"] = strconv.FormatInt(end.UnixMilli(), 10)
	}
	return params, nil
}

type bybitResult struct {
	Category string     `json:"category"`
	List     [][]string `json:"list"`
	Symbol   string     `json:"symbol"`
}

// ParseRESTResponse normalizes Bybit's {retCode,retMsg,result:{list:[[startTime,o,h,l,c,v,turnover]]}}
// envelope into ascending candles (Bybit returns newest-first).
func (b *Bybit) ParseRESTResponse(raw interface{}) ([]candle.Data, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: expected an object envelope", network.ErrProtocol)
	}
	retCode, _ := m["retCode"].(float64)
	if retCode != 0 {
		return nil, classifyBybitError(int(retCode), m)
	}
	result, ok := m["result"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: missing result object", network.ErrProtocol)
	}
	rawList, _ := result["list"].([]interface{})

	out := make([]candle.Data, 0, len(rawList))
	for _, r := range rawList {
		row, ok := r.([]interface{})
		if !ok || len(row) != 7 {
			return nil, fmt.Errorf("%w: kline row must have 7 fields", network.ErrProtocol)
		}
		strRow := make([]string, 7)
		for i, v := range row {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: kline field must be a string", network.ErrProtocol)
			}
			strRow[i] = s
		}
		d, err := rowToCandle(strRow)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func classifyBybitError(retCode int, m map[string]interface{}) error {
	retMsg, _ := m["retMsg"].(string)
	if retCode == retCodeNotSupportedSymbols || retCode == retCodeInvalidCategory {
		return fmt.Errorf("%w: bybit %d: %s", adapter.ErrInvalidTradingPair, retCode, retMsg)
	}
	return fmt.Errorf("%w: bybit %d: %s", network.ErrTransport, retCode, retMsg)
}

func rowToCandle(row []string) (candle.Data, error) {
	tsMs, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return candle.Data{}, fmt.Errorf("%w: %v", network.ErrProtocol, err)
	}
	vals := make([]float64, 5)
	for i := 1; i <= 5; i++ {
		f, err := strconv.ParseFloat(row[i], 64)
		if err != nil {
			return candle.Data{}, fmt.Errorf("%w: %v", network.ErrProtocol, err)
		}
		vals[i-1] = f
	}
	turnover, err := strconv.ParseFloat(row[6], 64)
	if err != nil {
		return candle.Data{}, fmt.Errorf("%w: %v", network.ErrProtocol, err)
	}
	return candle.New(tsMs, vals[0], vals[1], vals[2], vals[3], vals[4], turnover, 0, 0, 0)
}

// GetWSSubscriptionPayload builds Bybit's public kline topic subscribe message.
func (b *Bybit) GetWSSubscriptionPayload(pair, intervalToken string) (interface{}, error) {
	nativeTok, ok := nativeInterval[intervalToken]
	if !ok {
		return nil, fmt.Errorf("%w: %s", adapter.ErrUnsupportedInterval, intervalToken)
	}
	nativeSymbol, err := b.GetTradingPairFormat(pair)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"op":   "subscribe",
		"args": []string{fmt.Sprintf("kline.%s.%s", nativeTok, nativeSymbol)},
	}, nil
}

// ParseWSMessage normalizes a Bybit kline push {topic,type,data:[{start,open,high,low,close,volume,turnover}]}.
func (b *Bybit) ParseWSMessage(raw interface{}) ([]candle.Data, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, nil
	}
	rawData, ok := m["data"].([]interface{})
	if !ok {
		return nil, nil
	}

	out := make([]candle.Data, 0, len(rawData))
	for _, r := range rawData {
		entry, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		startMs, _ := entry["start"].(float64)
		open, err1 := parseNumericField(entry["open"])
		high, err2 := parseNumericField(entry["high"])
		low, err3 := parseNumericField(entry["low"])
		closePx, err4 := parseNumericField(entry["close"])
		volume, err5 := parseNumericField(entry["volume"])
		turnover, err6 := parseNumericField(entry["turnover"])
		if err := firstErr(err1, err2, err3, err4, err5, err6); err != nil {
			return nil, err
		}
		d, err := candle.New(int64(startMs), open, high, low, closePx, volume, turnover, 0, 0, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func parseNumericField(v interface{}) (float64, error) {
	switch t := v.(type) {
	case string:
		return strconv.ParseFloat(t, 64)
	case float64:
		return t, nil
	default:
		return 0, fmt.Errorf("%w: expected numeric field", network.ErrProtocol)
	}
}

func firstErr(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// FetchRESTCandles composes url+params+GET+parse, honoring ctx cancellation.
func (b *Bybit) FetchRESTCandles(ctx context.Context, pair, intervalToken string, start, end *time.Time, limit int) ([]candle.Data, error) {
	params, err := b.GetRESTParams(pair, intervalToken, start, end, limit)
	if err != nil {
		return nil, err
	}
	req := adapter.RESTCandleRequest{URL: b.GetRESTURL(network.EndpointCandles) + "market/kline", Params: params}
	return adapter.FetchAsync(ctx, b.NetworkClient(), req, b.ParseRESTResponse)
}

// FetchRESTCandlesSynchronous rejects eagerly: Bybit is modeled AsyncOnly in this deployment.
func (b *Bybit) FetchRESTCandlesSynchronous(pair, intervalToken string, start, end *time.Time, limit int) ([]candle.Data, error) {
	return adapter.RejectSynchronous(b.Name())
}

// RateLimit returns Bybit's approximated REST rate limit.
func (b *Bybit) RateLimit() (int, time.Duration) {
	return RateLimitRequestsPerWindow, RateLimitWindowDuration
}
