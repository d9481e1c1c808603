package network

// Environment selects which of an exchange's environments an endpoint-kind is routed to.
type Environment int

const (
	// Production is the exchange's live trading environment.
	Production Environment = iota
	// Testnet is the exchange's non-production environment, where one exists.
	Testnet
)

func (e Environment) String() string {
	if e == Testnet {
		return "testnet"
	}
	return "production"
}

// EndpointKind names a class of exchange endpoint that may be routed independently to
// production or testnet.
type EndpointKind string

const (
	// EndpointCandles is the OHLCV candlestick REST/WS endpoint kind.
	EndpointCandles EndpointKind = "candles"
	// EndpointTicker is the ticker/price endpoint kind.
	EndpointTicker EndpointKind = "ticker"
	// EndpointOrders is the order-placement endpoint kind.
	EndpointOrders EndpointKind = "orders"
	// EndpointAccount is the account-information endpoint kind.
	EndpointAccount EndpointKind = "account"
)

// Config is a per-endpoint-kind production/testnet routing table, plus a default environment used
// for any endpoint-kind without an explicit override. A "for_testing" mode forces production
// routing regardless of overrides, used by integration tests that run mock servers bound to
// production URLs.
type Config struct {
	Default    Environment
	Overrides  map[EndpointKind]Environment
	forTesting bool
}

// NewConfig constructs a Config with the given default environment and no overrides.
func NewConfig(def Environment) Config {
	return Config{Default: def}
}

// Hybrid constructs a Config whose default is Production, with the supplied endpoint-kind
// overrides applied on top. Mirrors spec scenario S6:
// NetworkConfig.hybrid(candles="production", orders="testnet").
func Hybrid(overrides map[EndpointKind]Environment) Config {
	return Config{Default: Production, Overrides: overrides}
}

// ForTesting returns a copy of c with for_testing mode enabled: IsTestnetFor always reports
// production regardless of overrides, so adapters can be pointed at a mock server bound to
// "production" URLs during integration tests.
func (c Config) ForTesting() Config {
	c.forTesting = true
	return c
}

// IsTestnetFor returns whether the given endpoint-kind should be routed to testnet: the override
// for kind if one exists, otherwise the default environment. Always returns false when the config
// is in for_testing mode.
func (c Config) IsTestnetFor(kind EndpointKind) bool {
	if c.forTesting {
		return false
	}
	if env, ok := c.Overrides[kind]; ok {
		return env == Testnet
	}
	return c.Default == Testnet
}
