// Package kucoin adapts KuCoin's spot REST candle API to the adapter.Adapter contract.
//
// Grounded on the teacher library's candles/kucoin/api_klines.go: same {code,msg,data} envelope,
// same "type" interval-token vocabulary (1min, 5min, 1hour, 1day, …), same
// [time,open,close,high,low,volume,turnover] row order (note: close precedes high/low, unlike
// Binance's [open,high,low,close] order) and same descending-order response. KuCoin is modeled
// SyncOnly (SPEC_FULL.md §4.2b): no candle WebSocket channel in this deployment.
package kucoin

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
	restProductionURL = "https://api.kucoin.com/api/v1/"
	restTestnetURL     = "https://openapi-sandbox.kucoin.com/api/v1/"

	// successCode is KuCoin's documented success response code.
	successCode = "200000"

	// RateLimitRequestsPerWindow and RateLimitWindowDuration approximate KuCoin's documented
	// public-endpoint rate limit.
	RateLimitRequestsPerWindow = 30
	RateLimitWindowDuration    = 3 * time.Second
)

var intervals = map[string]time.Duration{
	"1m": time.Minute, "3m": 3 * time.Minute, "5m": 5 * time.Minute, "15m": 15 * time.Minute,
	"30m": 30 * time.Minute, "1h": time.Hour, "2h": 2 * time.Hour, "4h": 4 * time.Hour,
	"6h": 6 * time.Hour, "8h": 8 * time.Hour, "12h": 12 * time.Hour, "1d": 24 * time.Hour,
	"1w": 7 * 24 * time.Hour,
}

var nativeInterval = map[string]string{
	"1m": "1min", "3m": "3min", "5m": "5min", "15m": "15min", "30m": "30min",
	"1h": "1hour", "2h": "2hour", "4h": "4hour", "6h": "6hour", "8h": "8hour", "12h": "12hour",
	"1d": "1day", "1w": "1week",
}

// KuCoin adapts the KuCoin spot exchange.
type KuCoin struct {
	adapter.Base
}

// New constructs a KuCoin adapter.
func New(opts ...adapter.Option) *KuCoin {
	return &KuCoin{Base: adapter.NewBase("kucoin_spot", adapter.SyncOnly, opts...)}
}

// GetIntervals returns KuCoin's supported interval tokens.
func (k *KuCoin) GetIntervals() map[string]time.Duration { return intervals }

// GetWSIntervals returns no intervals: KuCoin has no candle WebSocket channel in this deployment.
func (k *KuCoin) GetWSIntervals() []string { return nil }

// GetTradingPairFormat converts "BTC-USDT" to KuCoin's native "BTC-USDT" (already matches).
func (k *KuCoin) GetTradingPairFormat(pair string) (string, error) {
	p, err := symbol.Parse(pair)
	if err != nil {
		return "", err
	}
	return p.Base + "-" + p.Quote, nil
}

// GetRESTURL returns the REST base URL for kind, honoring any test-time URL patch first.
func (k *KuCoin) GetRESTURL(kind network.EndpointKind) string {
	if url, ok := k.RESTURLOverride(kind); ok {
		return url
	}
	if k.NetworkConfig().IsTestnetFor(kind) {
		return restTestnetURL
	}
	return restProductionURL
}

// GetWSURL always returns an empty string: KuCoin is SyncOnly.
func (k *KuCoin) GetWSURL() string { return "" }

// GetRESTParams builds KuCoin's /market/candles query parameters.
func (k *KuCoin) GetRESTParams(pair, intervalToken string, start, end *time.Time, limit int) (map[string]string, error) {
	nativeTok, ok := nativeInterval[intervalToken]
	if !ok {
		return nil, fmt.Errorf("%w: %s", adapter.ErrUnsupportedInterval, intervalToken)
	}
	if start != nil && end != nil && start.After(*end) {
		return nil, adapter.ErrInvalidTimeRange
	}
	nativeSymbol, err := k.GetTradingPairFormat(pair)
	if err != nil {
		return nil, err
	}
	params := map[string]string{"symbol": nativeSymbol, "type": nativeTok}
	if start != nil {
		params["startAt"] = strconv.FormatInt(start.Unix(), 10)
	}
	if end != nil {
		params["endAt"] = strconv.FormatInt(end.Unix(), 10)
	}
	return params, nil
}

type kucoinEnvelope struct {
	Code string     `json:"code"`
	Msg  string     `json:"msg"`
	Data [][]string `json:"data"`
}

// ParseRESTResponse normalizes KuCoin's {code,msg,data:[[time,open,close,high,low,volume,turnover]]}
// envelope (seconds epoch, descending order) into ascending candles.
func (k *KuCoin) ParseRESTResponse(raw interface{}) ([]candle.Data, error) {
	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, err
	}

	out := make([]candle.Data, 0, len(env.Data))
	for _, row := range env.Data {
		if len(row) != 7 {
			return nil, fmt.Errorf("%w: candle row must have 7 fields", network.ErrProtocol)
		}
		d, err := rowToCandle(row)
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

func decodeEnvelope(raw interface{}) (kucoinEnvelope, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return kucoinEnvelope{}, fmt.Errorf("%w: expected an object envelope", network.ErrProtocol)
	}
	code, _ := m["code"].(string)
	if code != "" && code != successCode {
		msg, _ := m["msg"].(string)
		if code == "400100" {
			return kucoinEnvelope{}, fmt.Errorf("%w: kucoin %s: %s", adapter.ErrInvalidTradingPair, code, msg)
		}
		return kucoinEnvelope{}, fmt.Errorf("%w: kucoin %s: %s", network.ErrTransport, code, msg)
	}
	rawData, _ := m["data"].([]interface{})
	data := make([][]string, 0, len(rawData))
	for _, r := range rawData {
		row, ok := r.([]interface{})
		if !ok {
			return kucoinEnvelope{}, fmt.Errorf("%w: candle row must be an array", network.ErrProtocol)
		}
		strRow := make([]string, len(row))
		for i, v := range row {
			s, ok := v.(string)
			if !ok {
				return kucoinEnvelope{}, fmt.Errorf("%w: candle field must be a string", network.ErrProtocol)
			}
			strRow[i] = s
		}
		data = append(data, strRow)
	}
	return kucoinEnvelope{Code: code, Data: data}, nil
}

// rowToCandle parses KuCoin's [time,open,close,high,low,volume,turnover] row order — note close
// precedes high/low, unlike most other adapters in this package.
func rowToCandle(row []string) (candle.Data, error) {
	tsSec, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return candle.Data{}, fmt.Errorf("%w: %v", network.ErrProtocol, err)
	}
	vals := make([]float64, 6)
	for i := 1; i <= 6; i++ {
		f, err := strconv.ParseFloat(row[i], 64)
		if err != nil {
			return candle.Data{}, fmt.Errorf("%w: %v", network.ErrProtocol, err)
		}
		vals[i-1] = f
	}
	open, closePx, high, low, volume, turnover := vals[0], vals[1], vals[2], vals[3], vals[4], vals[5]
	return candle.New(tsSec, open, high, low, closePx, volume, turnover, 0, 0, 0)
}

// GetWSSubscriptionPayload always errors: KuCoin is SyncOnly.
func (k *KuCoin) GetWSSubscriptionPayload(pair, intervalToken string) (interface{}, error) {
	return nil, fmt.Errorf("%w: kucoin_spot has no candle WebSocket channel", adapter.ErrCapabilityUnsupported)
}

// ParseWSMessage always errors: KuCoin is SyncOnly.
func (k *KuCoin) ParseWSMessage(raw interface{}) ([]candle.Data, error) {
	return nil, fmt.Errorf("%w: kucoin_spot has no candle WebSocket channel", adapter.ErrCapabilityUnsupported)
}

// FetchRESTCandles dispatches the genuine synchronous call onto a worker goroutine: KuCoin is
// SyncOnly so this is never a real ctx-cancelable network call (spec §4.2/§8 property 7).
func (k *KuCoin) FetchRESTCandles(ctx context.Context, pair, intervalToken string, start, end *time.Time, limit int) ([]candle.Data, error) {
	return adapter.FetchViaWorker(ctx, func() ([]candle.Data, error) {
		return k.FetchRESTCandlesSynchronous(pair, intervalToken, start, end, limit)
	})
}

// FetchRESTCandlesSynchronous is KuCoin's genuine synchronous variant.
func (k *KuCoin) FetchRESTCandlesSynchronous(pair, intervalToken string, start, end *time.Time, limit int) ([]candle.Data, error) {
	params, err := k.GetRESTParams(pair, intervalToken, start, end, limit)
	if err != nil {
		return nil, err
	}
	req := adapter.RESTCandleRequest{URL: k.GetRESTURL(network.EndpointCandles) + "market/candles", Params: params}
	return adapter.FetchSync(k.NetworkClient(), req, k.ParseRESTResponse)
}

// RateLimit returns KuCoin's approximated REST rate limit.
func (k *KuCoin) RateLimit() (int, time.Duration) {
	return RateLimitRequestsPerWindow, RateLimitWindowDuration
}
