// Package plugin defines the ExchangePlugin contract (spec §4.6.2) that shapes
// MockedExchangeServer's wire traffic per exchange, plus the process-wide registry
// (spec §4.6.3) mapping an ExchangeType to its plugin factory. Grounded on the adapter
// package's per-exchange subpackage-plus-registry split (adapter.Registry, exchanges.go): the
// mock side mirrors that shape so each (adapter, plugin) pair can be exercised side by side
// (spec §8 property 10, round-trip).
package plugin

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/candlefeed/candles-feed/candle"
)

// ErrUnknownExchangeType means the registry has no plugin registered under the given type.
var ErrUnknownExchangeType = errors.New("plugin: unknown exchange type")

// ExchangeType names one (exchange, market) pair a plugin implements.
type ExchangeType string

const (
	Binance  ExchangeType = "binance_spot"
	OKX      ExchangeType = "okx_spot"
	Bybit    ExchangeType = "bybit_spot"
	Coinbase ExchangeType = "coinbase_spot"
	KuCoin   ExchangeType = "kucoin_spot"
)

// CandleRequest is the canonical, plugin-decoded form of a REST candle request
// (spec §4.6.2 "parse_rest_candles_params").
type CandleRequest struct {
	Symbol    string
	Interval  string
	StartTime int64 // unix seconds, 0 if unset
	EndTime   int64 // unix seconds, 0 if unset
	Limit     int
}

// WSSubscription is one {symbol, interval} pair parsed out of a subscribe message
// (spec §4.6.2 "parse_ws_subscription").
type WSSubscription struct {
	Symbol   string
	Interval string
}

// RouteHandler serves one plugin-registered REST route. req is the already-decoded canonical
// form; candles holds the server's candles for that (pair, interval).
type RouteHandler func(w http.ResponseWriter, r *http.Request, req CandleRequest, candles []candle.Data)

// ExchangePlugin shapes one exchange's wire format, both directions (spec §4.6.2).
type ExchangePlugin interface {
	// ExchangeType names this plugin's registration key.
	ExchangeType() ExchangeType

	// RESTRoutes returns the URL paths this plugin serves, mapped to their HTTP method. Route
	// bodies are resolved through FormatRESTCandles/ParseRESTCandlesParams, not per-route
	// handlers, since every plugin in this deployment serves exactly one candles endpoint.
	RESTRoutes() map[string]string

	// WSRoute returns the URL path this plugin's WebSocket endpoint is served on.
	WSRoute() string

	// FormatRESTCandles renders candles in this exchange's documented REST response shape.
	FormatRESTCandles(candles []candle.Data, pair, intervalToken string) (interface{}, error)

	// FormatWSCandleMessage renders one candle as this exchange's WS push message. isFinal marks
	// the candle as closed (vs. still accumulating), mirrored in the message where the exchange
	// protocol models it; ignored where it doesn't.
	FormatWSCandleMessage(c candle.Data, pair, intervalToken string, isFinal bool) (interface{}, error)

	// ParseRESTCandlesParams decodes an inbound REST request into the canonical form. Must not
	// block.
	ParseRESTCandlesParams(r *http.Request) (CandleRequest, error)

	// ParseWSSubscription decodes an inbound WS subscribe message. An unrecognized message
	// yields (nil, nil): the caller replies with an error frame rather than treating it as a
	// protocol violation.
	ParseWSSubscription(raw interface{}) ([]WSSubscription, error)

	// NormalizeTradingPair converts this exchange's native symbol notation to canonical
	// "BASE-QUOTE", the server's internal store key.
	NormalizeTradingPair(nativeSymbol string) (string, error)

	// CreateWSSubscriptionKey builds the server's internal subscriber-set key for (pair,
	// interval), in the form "<symbol>_<interval>" with each plugin writing the symbol and the
	// interval in its own exchange's notation (e.g. "btcusdt_1m" for binance, "BTC-USDT_1H" for okx).
	CreateWSSubscriptionKey(pair, intervalToken string) string

	// IntervalToSeconds parses this exchange's native interval token into its width in seconds,
	// accepting exchange-specific aliases a plugin may recognize beyond the canonical tokens.
	IntervalToSeconds(nativeToken string) (int64, error)
}

// Factory constructs a fresh ExchangePlugin instance.
type Factory func() ExchangePlugin

// Registry is the process-wide ExchangeType -> plugin factory map (spec §4.6.3).
type Registry struct {
	mu        sync.RWMutex
	factories map[ExchangeType]Factory
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[ExchangeType]Factory)}
}

// Register adds a plugin factory under the given type, overwriting any previous registration.
func (r *Registry) Register(t ExchangeType, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[t] = f
}

// New constructs a fresh plugin instance for t.
func (r *Registry) New(t ExchangeType) (ExchangePlugin, error) {
	r.mu.RLock()
	f, ok := r.factories[t]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExchangeType, t)
	}
	return f(), nil
}

// Types returns every registered ExchangeType, sorted.
func (r *Registry) Types() []ExchangeType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ExchangeType, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
