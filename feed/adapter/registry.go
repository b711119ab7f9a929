package adapter

import (
	"fmt"
	"sort"
	"sync"

	"github.com/marianogappa/crypto-feeds/feed/common"
)

// Registry maps canonical exchange names (e.g. "binance_spot") to adapter
// factories. It is populated once at startup by an explicit discovery pass;
// dynamic registration from tests goes through Register, not import side
// effects.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register binds a canonical exchange name to an adapter factory, replacing
// any previous binding for that name.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Instance constructs an adapter for the given canonical exchange name.
//
// * Fails with common.ErrUnknownExchange if the name is not registered.
func (r *Registry) Instance(name string, opts Options) (Adapter, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", common.ErrUnknownExchange, name, r.Names())
	}
	return factory(opts)
}

// Names lists the registered canonical exchange names, sorted.
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
