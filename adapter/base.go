package adapter

import (
	"sync"

	"github.com/candlefeed/candles-feed/network"
)

// Option configures a Base at construction time. Per the normative construction contract
// (spec §4.2/§9 Open Question): "Adapter(*positional, network_config=None, network_client=None,
// **kw)", every concrete adapter constructor is `New(exchangeArgs..., opts ...adapter.Option)`,
// never a base-constructor-forwarding inheritance chain, since there is no shared base
// constructor to forward extra arguments to.
type Option func(*Base)

// WithNetworkConfig sets the adapter's NetworkConfig. An adapter without one still functions in
// production mode (Base's zero value is network.Config{} whose Default is network.Production).
func WithNetworkConfig(cfg network.Config) Option {
	return func(b *Base) { b.networkConfig = cfg }
}

// WithNetworkClient sets the adapter's shared NetworkClient.
func WithNetworkClient(c *network.Client) Option {
	return func(b *Base) { b.networkClient = c }
}

// Base is the embeddable compositional unit every concrete adapter carries: its NetworkConfig,
// NetworkClient, capability declaration, and a URL-override table for test-time URL patching
// (spec §4.6.4). Adapters hold a NetworkConfig value and consult it in their own GetRESTURL/
// GetWSURL implementations — testnet support is a compositional concern, never an inheritance
// concern (spec §9 Design Notes).
type Base struct {
	name          string
	capability    Capability
	networkConfig network.Config
	networkClient *network.Client

	mu            sync.RWMutex
	restOverrides map[network.EndpointKind]string
	wsOverride    string
}

// NewBase constructs a Base for an adapter named name with the given capability, applying opts.
func NewBase(name string, capability Capability, opts ...Option) Base {
	b := Base{
		name:          name,
		capability:    capability,
		restOverrides: make(map[network.EndpointKind]string),
	}
	for _, opt := range opts {
		opt(&b)
	}
	if b.networkClient == nil {
		b.networkClient = network.New()
	}
	return b
}

// Name returns the adapter's registration name.
func (b *Base) Name() string { return b.name }

// Capability returns the adapter's declared I/O surface.
func (b *Base) Capability() Capability { return b.capability }

// NetworkConfig returns the adapter's NetworkConfig.
func (b *Base) NetworkConfig() network.Config { return b.networkConfig }

// NetworkClient returns the adapter's shared NetworkClient.
func (b *Base) NetworkClient() *network.Client { return b.networkClient }

// PatchRESTURL rebinds this adapter's REST base URL for the given endpoint-kind, overriding
// whatever the concrete adapter's GetRESTURL would otherwise return. Used only by test setup.
func (b *Base) PatchRESTURL(kind network.EndpointKind, url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.restOverrides[kind] = url
}

// PatchWSURL rebinds this adapter's WebSocket base URL. Used only by test setup.
func (b *Base) PatchWSURL(url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wsOverride = url
}

// RESTURLOverride returns the patched URL for kind, if any, and whether one was set. Concrete
// adapters call this first in their GetRESTURL implementation before falling back to their own
// production/testnet routing logic.
func (b *Base) RESTURLOverride(kind network.EndpointKind) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	url, ok := b.restOverrides[kind]
	return url, ok
}

// WSURLOverride returns the patched WS URL, if any, and whether one was set.
func (b *Base) WSURLOverride() (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.wsOverride == "" {
		return "", false
	}
	return b.wsOverride, true
}
