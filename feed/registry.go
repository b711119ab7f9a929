package feed

import (
	"sync"

	"github.com/marianogappa/crypto-feeds/feed/adapter"
	"github.com/marianogappa/crypto-feeds/feed/adapter/binance"
	"github.com/marianogappa/crypto-feeds/feed/adapter/bybit"
	"github.com/marianogappa/crypto-feeds/feed/adapter/gate"
	"github.com/marianogappa/crypto-feeds/feed/adapter/kucoin"
	"github.com/marianogappa/crypto-feeds/feed/adapter/mexc"
	"github.com/marianogappa/crypto-feeds/feed/adapter/mockexchange"
	"github.com/marianogappa/crypto-feeds/feed/adapter/okx"
)

var (
	defaultRegistryOnce sync.Once
	defaultRegistry     *adapter.Registry
)

// DefaultRegistry returns the registry holding every built-in adapter.
func DefaultRegistry() *adapter.Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = adapter.NewRegistry()
		defaultRegistry.Register(binance.Name, binance.Factory)
		defaultRegistry.Register(bybit.Name, bybit.Factory)
		defaultRegistry.Register(gate.Name, gate.Factory)
		defaultRegistry.Register(kucoin.Name, kucoin.Factory)
		defaultRegistry.Register(mexc.Name, mexc.Factory)
		defaultRegistry.Register(mockexchange.Name, mockexchange.Factory)
		defaultRegistry.Register(okx.Name, okx.Factory)
	})
	return defaultRegistry
}

// Register binds a custom adapter factory into the default registry.
func Register(name string, factory adapter.Factory) {
	DefaultRegistry().Register(name, factory)
}

// Exchanges lists the canonical names registered in the default registry.
func Exchanges() []string {
	return DefaultRegistry().Names()
}
