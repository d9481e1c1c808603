// Package adapter defines the capability contract every per-exchange adapter implements: a
// uniform surface over REST pagination, WebSocket subscriptions, interval/symbol encodings and
// timestamp units (spec §4.2).
//
// Grounded on the teacher library's common.CandlestickProvider/common.Exchange interfaces
// (candles/common/types.go), generalized from a REST-only, synchronous contract to one that
// declares its sync/async capability and carries an optional WebSocket surface.
package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/candlefeed/candles-feed/candle"
	"github.com/candlefeed/candles-feed/network"
)

var (
	// ErrUnknownExchange means ExchangeRegistry has no factory registered under the given name.
	ErrUnknownExchange = errors.New("adapter: unknown exchange")

	// ErrUnsupportedInterval means the requested interval is not in this adapter's GetIntervals().
	ErrUnsupportedInterval = errors.New("adapter: unsupported interval")

	// ErrInvalidTradingPair means the supplied pair is not in canonical BASE-QUOTE form.
	ErrInvalidTradingPair = errors.New("adapter: invalid trading pair")

	// ErrInvalidTimeRange means start > end was supplied to a REST candle request.
	ErrInvalidTimeRange = errors.New("adapter: invalid time range")

	// ErrCapabilityUnsupported means a synchronous call was made against an async-only adapter,
	// or a WebSocket operation was requested from an adapter with no candle WebSocket channel.
	// Sync-only adapters never return it for async calls: those run on a worker. Raised eagerly;
	// never retried (spec §7, property 7).
	ErrCapabilityUnsupported = errors.New("adapter: capability unsupported")
)

// Capability declares an adapter's I/O surface (spec §4.2).
type Capability int

const (
	// Hybrid adapters implement both FetchRESTCandles and FetchRESTCandlesSynchronous genuinely.
	Hybrid Capability = iota
	// AsyncOnly adapters fail FetchRESTCandlesSynchronous with ErrCapabilityUnsupported.
	AsyncOnly
	// SyncOnly adapters implement FetchRESTCandles by dispatching the sync call on a worker.
	SyncOnly
)

func (c Capability) String() string {
	switch c {
	case AsyncOnly:
		return "async-only"
	case SyncOnly:
		return "sync-only"
	default:
		return "hybrid"
	}
}

// SupportsAsync reports whether this capability allows genuine asynchronous REST calls, which
// CollectionStrategy selection (spec §4.4.1 tie-break) uses to decide WS eligibility.
func (c Capability) SupportsAsync() bool { return c == Hybrid || c == AsyncOnly }

// Adapter is the capability contract every per-exchange, per-market adapter implements.
type Adapter interface {
	// Name is the adapter's registration name, e.g. "binance_spot".
	Name() string

	// Capability declares this adapter's sync/async I/O surface.
	Capability() Capability

	// GetIntervals returns this adapter's supported interval tokens mapped to their width.
	GetIntervals() map[string]time.Duration

	// GetWSIntervals returns the subset of GetIntervals() streamable over WebSocket.
	GetWSIntervals() []string

	// GetTradingPairFormat converts a canonical "BASE-QUOTE" pair into this exchange's native
	// symbol notation. Pure.
	GetTradingPairFormat(pair string) (string, error)

	// GetRESTURL returns the REST base URL for the given endpoint-kind, routed through this
	// adapter's NetworkConfig for production/testnet selection.
	GetRESTURL(kind network.EndpointKind) string

	// GetWSURL returns the WebSocket base URL, routed through NetworkConfig.
	GetWSURL() string

	// GetRESTParams builds the exchange-native query parameters for a candle REST request. Pure.
	GetRESTParams(pair, interval string, start, end *time.Time, limit int) (map[string]string, error)

	// ParseRESTResponse normalizes a decoded REST JSON body into an ordered list of candles.
	ParseRESTResponse(raw interface{}) ([]candle.Data, error)

	// GetWSSubscriptionPayload builds the message to send after connect to subscribe to a
	// (pair, interval) candle stream.
	GetWSSubscriptionPayload(pair, interval string) (interface{}, error)

	// ParseWSMessage normalizes a decoded WS JSON message into zero or more candles. Returns an
	// empty slice for keepalives/non-candle messages.
	ParseWSMessage(raw interface{}) ([]candle.Data, error)

	// FetchRESTCandles composes url+params+GET+parse, asynchronously. It is always implemented;
	// FetchRESTCandlesSynchronous is the one that fails with ErrCapabilityUnsupported for
	// AsyncOnly adapters.
	FetchRESTCandles(ctx context.Context, pair, interval string, start, end *time.Time, limit int) ([]candle.Data, error)

	// FetchRESTCandlesSynchronous is the synchronous variant. Fails with
	// ErrCapabilityUnsupported if Capability() == AsyncOnly.
	FetchRESTCandlesSynchronous(pair, interval string, start, end *time.Time, limit int) ([]candle.Data, error)

	// RateLimit returns the exchange-documented REST rate limit as (requests, window).
	// RESTPollingStrategy does not consult it; no code in this module throttles requests by it.
	RateLimit() (requests int, window time.Duration)
}

// URLPatchable is implemented by every Base-embedding adapter, letting test setup rebind REST/WS
// URLs to a mock server for the lifetime of a test (spec §4.6.4). This is the only place tests
// cross the adapter abstraction.
type URLPatchable interface {
	PatchRESTURL(kind network.EndpointKind, url string)
	PatchWSURL(url string)
}
