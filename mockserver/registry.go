package mockserver

import (
	"github.com/candlefeed/candles-feed/mockserver/plugin"
	"github.com/candlefeed/candles-feed/mockserver/plugin/binance"
	"github.com/candlefeed/candles-feed/mockserver/plugin/bybit"
	"github.com/candlefeed/candles-feed/mockserver/plugin/coinbase"
	"github.com/candlefeed/candles-feed/mockserver/plugin/kucoin"
	"github.com/candlefeed/candles-feed/mockserver/plugin/okx"
)

// DefaultRegistry returns a fresh plugin.Registry with every plugin in this module registered
// (spec §4.6.3: "a separate, process-wide registry ... populated at import"). Constructed
// on demand rather than a package-level global, so tests can register additional fakes without
// mutating shared state across the suite (spec §9 "dynamic registration from tests is supported
// via an explicit register(name, factory) call, not via import side effects").
func DefaultRegistry() *plugin.Registry {
	r := plugin.NewRegistry()
	r.Register(plugin.Binance, binance.New)
	r.Register(plugin.OKX, okx.New)
	r.Register(plugin.Bybit, bybit.New)
	r.Register(plugin.Coinbase, coinbase.New)
	r.Register(plugin.KuCoin, kucoin.New)
	return r
}
