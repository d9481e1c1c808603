package adapter

import (
	"fmt"
	"sort"
	"sync"
)

// Factory constructs an Adapter instance for one exchange/market from adapter.Options only; it
// takes no exchange-specific positional arguments.
type Factory func(opts ...Option) Adapter

// Registry is a process-wide name->adapter-factory map (spec §4.2 "Registration"). It is
// initialized once at startup via an explicit discovery pass (Discover), then only read;
// dynamic registration from tests is supported via Register, never import side effects beyond
// the initial discovery pass (spec §9).
//
// Grounded on the teacher library's candles.buildExchanges() map literal
// (candles/candles.go), generalized from a closed, hardcoded map into an explicit registry type
// supporting runtime registration.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for the given canonical exchange name (e.g.
// "binance_spot", "okx_perpetual").
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Discover registers every factory in the supplied map in one pass, meant to be called once at
// process startup by a package that imports every adapter it ships.
func (r *Registry) Discover(factories map[string]Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, f := range factories {
		r.factories[name] = f
	}
}

// Names returns the sorted list of registered exchange names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetAdapterInstance constructs a new Adapter for name using its registered factory.
//
// Fails with ErrUnknownExchange if name has no registered factory.
func (r *Registry) GetAdapterInstance(name string, opts ...Option) (Adapter, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExchange, name)
	}
	return factory(opts...), nil
}
