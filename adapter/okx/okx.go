// Package okx adapts OKX's spot REST/WS candle API to the adapter.Adapter contract.
//
// Grounded on the teacher library's candles/okx/api_klines.go for the {code,msg,data} envelope
// shape, error-code handling and interval-token switch, but targets OKX's documented
// `/market/candles` endpoint (spec §6) rather than the teacher's `history-index-candles`, since
// the former carries volume and is what spec.md calls out bit-exactly:
// {code,msg,data:[[ts,o,h,l,c,vol,volCcy], …]}.
package okx

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
	restProductionURL = "https://www.okx.com/api/v5/"
	restTestnetURL     = "https://www.okx.com/api/v5/" // OKX testnet shares the same public market-data host.
	wsProductionURL    = "wss://ws.okx.com:8443/ws/v5/public"
	wsTestnetURL        = "wss://wspap.okx.com:8443/ws/v5/public"

	// RateLimitRequestsPerWindow and RateLimitWindowDuration are documented in the OKX API:
	// "Rate Limit: 20 requests per 2 seconds" for the public candles endpoint.
	RateLimitRequestsPerWindow = 20
	RateLimitWindowDuration    = 2 * time.Second

	// MaxLimit is OKX's documented maximum candles per request.
	MaxLimit = 100
)

var intervals = map[string]time.Duration{
	"1m": time.Minute, "5m": 5 * time.Minute, "15m": 15 * time.Minute,
	"1h": time.Hour, "4h": 4 * time.Hour, "1d": 24 * time.Hour,
}

// nativeInterval maps canonical tokens to OKX's "bar" values (hour/day/week/month letters are
// uppercase on OKX).
var nativeInterval = map[string]string{
	"1m": "1m", "5m": "5m", "15m": "15m", "1h": "1H", "4h": "4H", "1d": "1D",
}

// OKX adapts the OKX spot exchange.
type OKX struct {
	adapter.Base
}

// New constructs an OKX adapter.
func New(opts ...adapter.Option) *OKX {
	return &OKX{Base: adapter.NewBase("okx_spot", adapter.Hybrid, opts...)}
}

// GetIntervals returns OKX's supported interval tokens.
func (o *OKX) GetIntervals() map[string]time.Duration { return intervals }

// GetWSIntervals returns the intervals OKX streams over WS: all supported intervals.
func (o *OKX) GetWSIntervals() []string {
	out := make([]string, 0, len(intervals))
	for token := range intervals {
		out = append(out, token)
	}
	return out
}

// GetTradingPairFormat converts "BTC-USDT" to OKX's native "BTC-USDT" (OKX already uses
// hyphen-delimited symbols).
func (o *OKX) GetTradingPairFormat(pair string) (string, error) {
	p, err := symbol.Parse(pair)
	if err != nil {
		return "", err
	}
	return p.Base + "-" + p.Quote, nil
}

// GetRESTURL returns the REST base URL for kind, honoring any test-time URL patch first.
func (o *OKX) GetRESTURL(kind network.EndpointKind) string {
	if url, ok := o.RESTURLOverride(kind); ok {
		return url
	}
	if o.NetworkConfig().IsTestnetFor(kind) {
		return restTestnetURL
	}
	return restProductionURL
}

// GetWSURL returns the WebSocket base URL, honoring any test-time URL patch first.
func (o *OKX) GetWSURL() string {
	if url, ok := o.WSURLOverride(); ok {
		return url
	}
	if o.NetworkConfig().IsTestnetFor(network.EndpointCandles) {
		return wsTestnetURL
	}
	return wsProductionURL
}

// GetRESTParams builds OKX's /market/candles query parameters.
func (o *OKX) GetRESTParams(pair, intervalToken string, start, end *time.Time, limit int) (map[string]string, error) {
	bar, ok := nativeInterval[intervalToken]
	if !ok {
		return nil, fmt.Errorf("%w: %s", adapter.ErrUnsupportedInterval, intervalToken)
	}
	if start != nil && end != nil && start.After(*end) {
		return nil, adapter.ErrInvalidTimeRange
	}
	nativeSymbol, err := o.GetTradingPairFormat(pair)
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}
	params := map[string]string{"instId": nativeSymbol, "bar": bar, "limit": strconv.Itoa(limit)}
	if start != nil {
		params["after"] = strconv.FormatInt(start.UnixMilli()-1, 10)
	}
	if end != nil {
		params["before"] = strconv.FormatInt(end.UnixMilli()+1, 10)
	}
	return params, nil
}

type okxEnvelope struct {
	Code string     `json:"code"`
	Msg  string     `json:"msg"`
	Data [][]string `json:"data"`
}

// ParseRESTResponse normalizes OKX's {code,msg,data:[[ts,o,h,l,c,vol,volCcy]]} envelope into
// ordered-ascending candles (OKX returns newest-first).
func (o *OKX) ParseRESTResponse(raw interface{}) ([]candle.Data, error) {
	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, err
	}

	out := make([]candle.Data, 0, len(env.Data))
	for _, row := range env.Data {
		if len(row) < 7 {
			return nil, fmt.Errorf("%w: candle row must have at least 7 fields", network.ErrProtocol)
		}
		d, err := rowToCandle(row)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	// reverse: OKX returns newest-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func decodeEnvelope(raw interface{}) (okxEnvelope, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return okxEnvelope{}, fmt.Errorf("%w: expected an object envelope", network.ErrProtocol)
	}
	code, _ := m["code"].(string)
	if code != "" && code != "0" {
		msg, _ := m["msg"].(string)
		return okxEnvelope{}, fmt.Errorf("%w: okx error %s: %s", network.ErrTransport, code, msg)
	}
	rawData, _ := m["data"].([]interface{})
	data := make([][]string, 0, len(rawData))
	for _, r := range rawData {
		row, ok := r.([]interface{})
		if !ok {
			return okxEnvelope{}, fmt.Errorf("%w: candle row must be an array", network.ErrProtocol)
		}
		strRow := make([]string, len(row))
		for i, v := range row {
			s, ok := v.(string)
			if !ok {
				return okxEnvelope{}, fmt.Errorf("%w: candle field must be a string", network.ErrProtocol)
			}
			strRow[i] = s
		}
		data = append(data, strRow)
	}
	return okxEnvelope{Code: code, Data: data}, nil
}

func rowToCandle(row []string) (candle.Data, error) {
	tsMs, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return candle.Data{}, fmt.Errorf("%w: %v", network.ErrProtocol, err)
	}
	vals := make([]float64, 6)
	for i, idx := range []int{1, 2, 3, 4, 5} {
		f, err := strconv.ParseFloat(row[idx], 64)
		if err != nil {
			return candle.Data{}, fmt.Errorf("%w: %v", network.ErrProtocol, err)
		}
		vals[i] = f
	}
	volCcy, err := strconv.ParseFloat(row[6], 64)
	if err != nil {
		return candle.Data{}, fmt.Errorf("%w: %v", network.ErrProtocol, err)
	}
	return candle.New(tsMs, vals[0], vals[1], vals[2], vals[3], vals[4], volCcy, 0, 0, 0)
}

// GetWSSubscriptionPayload builds OKX's public-channel subscribe message.
func (o *OKX) GetWSSubscriptionPayload(pair, intervalToken string) (interface{}, error) {
	bar, ok := nativeInterval[intervalToken]
	if !ok {
		return nil, fmt.Errorf("%w: %s", adapter.ErrUnsupportedInterval, intervalToken)
	}
	nativeSymbol, err := o.GetTradingPairFormat(pair)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"op": "subscribe",
		"args": []map[string]string{
			{"channel": "candle" + bar, "instId": nativeSymbol},
		},
	}, nil
}

// ParseWSMessage normalizes an OKX candle push {arg:{channel,instId}, data:[[...]]}. Returns an
// empty slice for subscribe acks and pings.
func (o *OKX) ParseWSMessage(raw interface{}) ([]candle.Data, error) {
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
		row, ok := r.([]interface{})
		if !ok || len(row) < 7 {
			continue
		}
		strRow := make([]string, len(row))
		for i, v := range row {
			s, _ := v.(string)
			strRow[i] = s
		}
		d, err := rowToCandle(strRow)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// FetchRESTCandles composes url+params+GET+parse, honoring ctx cancellation.
func (o *OKX) FetchRESTCandles(ctx context.Context, pair, intervalToken string, start, end *time.Time, limit int) ([]candle.Data, error) {
	params, err := o.GetRESTParams(pair, intervalToken, start, end, limit)
	if err != nil {
		return nil, err
	}
	req := adapter.RESTCandleRequest{URL: o.GetRESTURL(network.EndpointCandles) + "market/candles", Params: params}
	return adapter.FetchAsync(ctx, o.NetworkClient(), req, o.ParseRESTResponse)
}

// FetchRESTCandlesSynchronous is OKX's genuine synchronous variant (OKX is Hybrid).
func (o *OKX) FetchRESTCandlesSynchronous(pair, intervalToken string, start, end *time.Time, limit int) ([]candle.Data, error) {
	params, err := o.GetRESTParams(pair, intervalToken, start, end, limit)
	if err != nil {
		return nil, err
	}
	req := adapter.RESTCandleRequest{URL: o.GetRESTURL(network.EndpointCandles) + "market/candles", Params: params}
	return adapter.FetchSync(o.NetworkClient(), req, o.ParseRESTResponse)
}

// RateLimit returns OKX's documented REST rate limit.
func (o *OKX) RateLimit() (int, time.Duration) { return RateLimitRequestsPerWindow, RateLimitWindowDuration }
