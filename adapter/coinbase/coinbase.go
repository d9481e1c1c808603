// Package coinbase adapts Coinbase Exchange's REST candle API to the adapter.Adapter contract.
//
// Grounded on the teacher library's candles/coinbase/api_klines.go: same [][]interface{} row
// shape {ts,low,high,open,close,volume} (note low/high precede open/close, unlike Binance), same
// granularity-seconds validity set, same descending-order response requiring reversal. Coinbase
// is modeled SyncOnly (SPEC_FULL.md §4.2b): it has no candle WebSocket channel, so
// FetchRESTCandles dispatches the genuine synchronous call onto a worker goroutine
// (adapter.FetchViaWorker) rather than performing a real ctx-cancelable request.
package coinbase

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
	restProductionURL = "https://api.exchange.coinbase.com/"
	restTestnetURL     = "https://api-public.sandbox.exchange.coinbase.com/"

	// RateLimitRequestsPerWindow and RateLimitWindowDuration are Coinbase Exchange's documented
	// public-endpoint rate limit.
	RateLimitRequestsPerWindow = 10
	RateLimitWindowDuration    = time.Second
)

var intervals = map[string]time.Duration{
	"1m": time.Minute, "5m": 5 * time.Minute, "15m": 15 * time.Minute,
	"1h": time.Hour, "6h": 6 * time.Hour, "1d": 24 * time.Hour,
}

var granularitySeconds = map[string]int64{
	"1m": 60, "5m": 300, "15m": 900, "1h": 3600, "6h": 21600, "1d": 86400,
}

// Coinbase adapts the Coinbase Exchange spot market.
type Coinbase struct {
	adapter.Base
}

// New constructs a Coinbase adapter.
func New(opts ...adapter.Option) *Coinbase {
	return &Coinbase{Base: adapter.NewBase("coinbase_spot", adapter.SyncOnly, opts...)}
}

// GetIntervals returns Coinbase's supported interval tokens.
func (c *Coinbase) GetIntervals() map[string]time.Duration { return intervals }

// GetWSIntervals returns no intervals: Coinbase has no candle WebSocket channel in this
// deployment.
func (c *Coinbase) GetWSIntervals() []string { return nil }

// GetTradingPairFormat converts "BTC-USDT" to Coinbase's native "BTC-USDT" (already matches).
func (c *Coinbase) GetTradingPairFormat(pair string) (string, error) {
	p, err := symbol.Parse(pair)
	if err != nil {
		return "", err
	}
	return p.Base + "-" + p.Quote, nil
}

// GetRESTURL returns the REST base URL for kind, honoring any test-time URL patch first.
func (c *Coinbase) GetRESTURL(kind network.EndpointKind) string {
	if url, ok := c.RESTURLOverride(kind); ok {
		return url
	}
	if c.NetworkConfig().IsTestnetFor(kind) {
		return restTestnetURL
	}
	return restProductionURL
}

// GetWSURL always returns an empty string: Coinbase is SyncOnly.
func (c *Coinbase) GetWSURL() string { return "" }

// GetRESTParams builds Coinbase's /products/{pair}/candles query parameters.
func (c *Coinbase) GetRESTParams(pair, intervalToken string, start, end *time.Time, limit int) (map[string]string, error) {
	granularity, ok := granularitySeconds[intervalToken]
	if !ok {
		return nil, fmt.Errorf("%w: %s", adapter.ErrUnsupportedInterval, intervalToken)
	}
	if start != nil && end != nil && start.After(*end) {
		return nil, adapter.ErrInvalidTimeRange
	}
	// GetTradingPairFormat is only used for the URL path segment, built by the caller
	// (FetchRESTCandles); GetRESTParams supplies the query string alone.
	params := map[string]string{"granularity": strconv.FormatInt(granularity, 10)}
	if start != nil {
		params["start"] = start.UTC().Format(time.RFC3339)
	}
	if end != nil {
		params["end"] = end.UTC().Format(time.RFC3339)
	}
	return params, nil
}

// ParseRESTResponse normalizes Coinbase's [[ts,low,high,open,close,volume]] array (seconds epoch,
// descending order) into ascending candles.
func (c *Coinbase) ParseRESTResponse(raw interface{}) ([]candle.Data, error) {
	rows, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON array of candles", network.ErrProtocol)
	}

	out := make([]candle.Data, 0, len(rows))
	for _, r := range rows {
		row, ok := r.([]interface{})
		if !ok || len(row) != 6 {
			return nil, fmt.Errorf("%w: candle row must have 6 fields", network.ErrProtocol)
		}
		d, err := parseRow(row)
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

func parseRow(row []interface{}) (candle.Data, error) {
	tsSec, ok := row[0].(float64)
	if !ok {
		return candle.Data{}, fmt.Errorf("%w: non-numeric timestamp", network.ErrProtocol)
	}
	low, ok1 := row[1].(float64)
	high, ok2 := row[2].(float64)
	open, ok3 := row[3].(float64)
	close, ok4 := row[4].(float64)
	volume, ok5 := row[5].(float64)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return candle.Data{}, fmt.Errorf("%w: non-numeric price/volume field", network.ErrProtocol)
	}
	return candle.New(int64(tsSec), open, high, low, close, volume, 0, 0, 0, 0)
}

// GetWSSubscriptionPayload always errors: Coinbase is SyncOnly.
func (c *Coinbase) GetWSSubscriptionPayload(pair, intervalToken string) (interface{}, error) {
	return nil, fmt.Errorf("%w: coinbase_spot has no candle WebSocket channel", adapter.ErrCapabilityUnsupported)
}

// ParseWSMessage always errors: Coinbase is SyncOnly.
func (c *Coinbase) ParseWSMessage(raw interface{}) ([]candle.Data, error) {
	return nil, fmt.Errorf("%w: coinbase_spot has no candle WebSocket channel", adapter.ErrCapabilityUnsupported)
}

// FetchRESTCandles dispatches the genuine synchronous call onto a worker goroutine: Coinbase is
// SyncOnly so this is never a real ctx-cancelable network call (spec §4.2/§8 property 7).
func (c *Coinbase) FetchRESTCandles(ctx context.Context, pair, intervalToken string, start, end *time.Time, limit int) ([]candle.Data, error) {
	return adapter.FetchViaWorker(ctx, func() ([]candle.Data, error) {
		return c.FetchRESTCandlesSynchronous(pair, intervalToken, start, end, limit)
	})
}

// FetchRESTCandlesSynchronous is Coinbase's genuine synchronous variant.
func (c *Coinbase) FetchRESTCandlesSynchronous(pair, intervalToken string, start, end *time.Time, limit int) ([]candle.Data, error) {
	params, err := c.GetRESTParams(pair, intervalToken, start, end, limit)
	if err != nil {
		return nil, err
	}
	nativeSymbol, err := c.GetTradingPairFormat(pair)
	if err != nil {
		return nil, err
	}
	req := adapter.RESTCandleRequest{
		URL:    c.GetRESTURL(network.EndpointCandles) + "products/" + nativeSymbol + "/candles",
		Params: params,
	}
	return adapter.FetchSync(c.NetworkClient(), req, c.ParseRESTResponse)
}

// RateLimit returns Coinbase's documented REST rate limit.
func (c *Coinbase) RateLimit() (int, time.Duration) {
	return RateLimitRequestsPerWindow, RateLimitWindowDuration
}
