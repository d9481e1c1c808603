// Package binance adapts the Binance spot REST/WS kline API to the adapter.Adapter contract.
//
// Grounded on the teacher library's candles/binance/{binance.go,api_klines.go}: same base URL,
// same interval-token switch, same 12-field kline array shape — generalized to parse all 12
// fields (the teacher discarded fields 7-11; spec's CandleData wants quote_asset_volume,
// n_trades and the two taker-buy volumes) and to add the WebSocket half the teacher never had.
package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/candlefeed/candles-feed/adapter"
	"github.com/candlefeed/candles-feed/candle"
	"github.com/candlefeed/candles-feed/network"
	"github.com/candlefeed/candles-feed/symbol"
)

const (
	restProductionURL = "https://api.binance.com/api/v3/"
	restTestnetURL     = "https://testnet.binance.vision/api/v3/"
	wsProductionURL    = "wss://stream.binance.com:9443/ws"
	wsTestnetURL        = "wss://testnet.binance.vision/ws"

	// RateLimitRequestsPerWindow and RateLimitWindowDuration are Binance's documented REST
	// weight-based limit collapsed to a request-count approximation for strategy pacing.
	RateLimitRequestsPerWindow = 1200
	RateLimitWindowDuration    = time.Minute
)

var intervals = map[string]time.Duration{
	"1s": time.Second, "1m": time.Minute, "3m": 3 * time.Minute, "5m": 5 * time.Minute,
	"15m": 15 * time.Minute, "30m": 30 * time.Minute, "1h": time.Hour, "2h": 2 * time.Hour,
	"4h": 4 * time.Hour, "6h": 6 * time.Hour, "8h": 8 * time.Hour, "12h": 12 * time.Hour,
	"1d": 24 * time.Hour, "3d": 3 * 24 * time.Hour, "1w": 7 * 24 * time.Hour, "1M": 30 * 24 * time.Hour,
}

// Binance adapts the Binance spot exchange.
type Binance struct {
	adapter.Base
}

// New constructs a Binance adapter. See adapter.Option for construction contract.
func New(opts ...adapter.Option) *Binance {
	return &Binance{Base: adapter.NewBase("binance_spot", adapter.Hybrid, opts...)}
}

// GetIntervals returns Binance's supported interval tokens.
func (b *Binance) GetIntervals() map[string]time.Duration { return intervals }

// GetWSIntervals returns every interval Binance streams over WS: all of them.
func (b *Binance) GetWSIntervals() []string {
	out := make([]string, 0, len(intervals))
	for token := range intervals {
		out = append(out, token)
	}
	return out
}

// GetTradingPairFormat converts "BTC-USDT" to "BTCUSDT".
func (b *Binance) GetTradingPairFormat(pair string) (string, error) {
	p, err := symbol.Parse(pair)
	if err != nil {
		return "", err
	}
	return p.Base + p.Quote, nil
}

// GetRESTURL returns the REST base URL for kind, honoring any test-time URL patch first.
func (b *Binance) GetRESTURL(kind network.EndpointKind) string {
	if url, ok := b.RESTURLOverride(kind); ok {
		return url
	}
	if b.NetworkConfig().IsTestnetFor(kind) {
		return restTestnetURL
	}
	return restProductionURL
}

// GetWSURL returns the WebSocket base URL, honoring any test-time URL patch first.
func (b *Binance) GetWSURL() string {
	if url, ok := b.WSURLOverride(); ok {
		return url
	}
	if b.NetworkConfig().IsTestnetFor(network.EndpointCandles) {
		return wsTestnetURL
	}
	return wsProductionURL
}

// GetRESTParams builds Binance's klines query parameters.
func (b *Binance) GetRESTParams(pair, intervalToken string, start, end *time.Time, limit int) (map[string]string, error) {
	if _, ok := intervals[intervalToken]; !ok {
		return nil, fmt.Errorf("%w: %s", adapter.ErrUnsupportedInterval, intervalToken)
	}
	if start != nil && end != nil && start.After(*end) {
		return nil, adapter.ErrInvalidTimeRange
	}
	nativeSymbol, err := b.GetTradingPairFormat(pair)
	if err != nil {
		return nil, err
	}

	params := map[string]string{"symbol": nativeSymbol, "interval": intervalToken}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	if start != nil {
		params["startTime"] = strconv.FormatInt(start.UnixMilli(), 10)
	}
	if end != nil {
		params["endTime"] = strconv.FormatInt(end.UnixMilli(), 10)
	}
	return params, nil
}

// ParseRESTResponse normalizes Binance's [[openTime,o,h,l,c,v,closeTime,qv,trades,tbb,tbq,ignore]]
// klines array into ordered candles.
func (b *Binance) ParseRESTResponse(raw interface{}) ([]candle.Data, error) {
	rows, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON array of klines", network.ErrProtocol)
	}

	out := make([]candle.Data, 0, len(rows))
	for _, r := range rows {
		row, ok := r.([]interface{})
		if !ok || len(row) != 12 {
			return nil, fmt.Errorf("%w: kline row must have 12 fields", network.ErrProtocol)
		}
		d, err := parseRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func parseRow(row []interface{}) (candle.Data, error) {
	openTimeMs, ok := row[0].(float64)
	if !ok {
		return candle.Data{}, fmt.Errorf("%w: non-numeric open time", network.ErrProtocol)
	}
	open, err1 := parseFloatField(row[1])
	high, err2 := parseFloatField(row[2])
	low, err3 := parseFloatField(row[3])
	close, err4 := parseFloatField(row[4])
	volume, err5 := parseFloatField(row[5])
	quoteVolume, err6 := parseFloatField(row[7])
	takerBase, err7 := parseFloatField(row[9])
	takerQuote, err8 := parseFloatField(row[10])
	if err := firstErr(err1, err2, err3, err4, err5, err6, err7, err8); err != nil {
		return candle.Data{}, err
	}
	trades, ok := row[8].(float64)
	if !ok {
		return candle.Data{}, fmt.Errorf("%w: non-numeric trade count", network.ErrProtocol)
	}

	return candle.New(int64(openTimeMs), open, high, low, close, volume, quoteVolume, int64(trades), takerBase, takerQuote)
}

func parseFloatField(v interface{}) (float64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("%w: expected string numeric field", network.ErrProtocol)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", network.ErrProtocol, err)
	}
	return f, nil
}

func firstErr(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// GetWSSubscriptionPayload builds Binance's combined-stream subscribe message.
func (b *Binance) GetWSSubscriptionPayload(pair, intervalToken string) (interface{}, error) {
	nativeSymbol, err := b.GetTradingPairFormat(pair)
	if err != nil {
		return nil, err
	}
	stream := fmt.Sprintf("%s@kline_%s", strings.ToLower(nativeSymbol), intervalToken)
	return map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": []string{stream},
		"id":     1,
	}, nil
}

// ParseWSMessage normalizes one Binance combined-stream kline push. Returns an empty slice for
// subscription acks and any other non-kline message (keepalives).
func (b *Binance) ParseWSMessage(raw interface{}) ([]candle.Data, error) {
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, nil
	}
	k, ok := obj["k"].(map[string]interface{})
	if !ok {
		return nil, nil
	}

	openTimeMs, _ := k["t"].(float64)
	open, err1 := parseFloatField(k["o"])
	high, err2 := parseFloatField(k["h"])
	low, err3 := parseFloatField(k["l"])
	close, err4 := parseFloatField(k["c"])
	volume, err5 := parseFloatField(k["v"])
	quoteVolume, err6 := parseFloatField(k["q"])
	takerBase, err7 := parseFloatField(k["V"])
	takerQuote, err8 := parseFloatField(k["Q"])
	if err := firstErr(err1, err2, err3, err4, err5, err6, err7, err8); err != nil {
		return nil, err
	}
	trades, _ := k["n"].(float64)

	d, err := candle.New(int64(openTimeMs), open, high, low, close, volume, quoteVolume, int64(trades), takerBase, takerQuote)
	if err != nil {
		return nil, err
	}
	return []candle.Data{d}, nil
}

// FetchRESTCandles composes url+params+GET+parse, honoring ctx cancellation.
func (b *Binance) FetchRESTCandles(ctx context.Context, pair, intervalToken string, start, end *time.Time, limit int) ([]candle.Data, error) {
	params, err := b.GetRESTParams(pair, intervalToken, start, end, limit)
	if err != nil {
		return nil, err
	}
	req := adapter.RESTCandleRequest{URL: b.GetRESTURL(network.EndpointCandles) + "klines", Params: params}
	return adapter.FetchAsync(ctx, b.NetworkClient(), req, b.ParseRESTResponse)
}

// FetchRESTCandlesSynchronous is Binance's genuine synchronous variant (Binance is a Hybrid
// adapter: both paths are real).
func (b *Binance) FetchRESTCandlesSynchronous(pair, intervalToken string, start, end *time.Time, limit int) ([]candle.Data, error) {
	params, err := b.GetRESTParams(pair, intervalToken, start, end, limit)
	if err != nil {
		return nil, err
	}
	req := adapter.RESTCandleRequest{URL: b.GetRESTURL(network.EndpointCandles) + "klines", Params: params}
	return adapter.FetchSync(b.NetworkClient(), req, b.ParseRESTResponse)
}

// RateLimit returns Binance's documented REST rate limit.
func (b *Binance) RateLimit() (int, time.Duration) {
	return RateLimitRequestsPerWindow, RateLimitWindowDuration
}
