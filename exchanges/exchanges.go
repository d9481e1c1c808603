// Package exchanges is the single place that imports every concrete adapter package, so that
// adapter.Registry itself never needs to import any exchange and new exchanges can be added
// without touching the registry type (spec §4.2 "Registration", generalized from the teacher
// library's candles.buildExchanges() hardcoded map literal in candles/candles.go).
package exchanges

import (
	"github.com/candlefeed/candles-feed/adapter"
	"github.com/candlefeed/candles-feed/adapter/binance"
	"github.com/candlefeed/candles-feed/adapter/bybit"
	"github.com/candlefeed/candles-feed/adapter/coinbase"
	"github.com/candlefeed/candles-feed/adapter/kucoin"
	"github.com/candlefeed/candles-feed/adapter/okx"
)

// BuiltinFactories returns every adapter this deployment ships, keyed by registration name.
func BuiltinFactories() map[string]adapter.Factory {
	return map[string]adapter.Factory{
		"binance_spot":  func(opts ...adapter.Option) adapter.Adapter { return binance.New(opts...) },
		"okx_spot":      func(opts ...adapter.Option) adapter.Adapter { return okx.New(opts...) },
		"bybit_spot":    func(opts ...adapter.Option) adapter.Adapter { return bybit.New(opts...) },
		"coinbase_spot": func(opts ...adapter.Option) adapter.Adapter { return coinbase.New(opts...) },
		"kucoin_spot":   func(opts ...adapter.Option) adapter.Adapter { return kucoin.New(opts...) },
	}
}

// NewRegistry constructs an adapter.Registry pre-populated with every builtin adapter.
func NewRegistry() *adapter.Registry {
	r := adapter.NewRegistry()
	r.Discover(BuiltinFactories())
	return r
}
