package common

// Environment selects between an exchange's production and testnet URL sets.
type Environment string

const (
	// EnvProduction routes to the exchange's production endpoints.
	EnvProduction Environment = "production"
	// EnvTestnet routes to the exchange's testnet endpoints.
	EnvTestnet Environment = "testnet"
)

// EndpointKind namespaces an exchange's endpoints for per-kind
// production/testnet routing.
type EndpointKind string

const (
	// EndpointCandles is the candlestick/kline endpoint kind.
	EndpointCandles EndpointKind = "candles"
	// EndpointTicker is the ticker endpoint kind.
	EndpointTicker EndpointKind = "ticker"
	// EndpointOrders is the order management endpoint kind.
	EndpointOrders EndpointKind = "orders"
	// EndpointAccount is the account endpoint kind.
	EndpointAccount EndpointKind = "account"
)

// NetworkConfig routes each endpoint kind to production or testnet. A zero
// value routes everything to production.
type NetworkConfig struct {
	// DefaultEnvironment applies to every endpoint kind without an override.
	DefaultEnvironment Environment

	// Overrides maps an endpoint kind to an environment, taking precedence
	// over DefaultEnvironment.
	Overrides map[EndpointKind]Environment

	// ForTesting forces production routing regardless of overrides. Used by
	// integration tests whose mock servers are bound to production URLs.
	ForTesting bool
}

// NewNetworkConfig constructs a NetworkConfig with the given default environment.
func NewNetworkConfig(defaultEnv Environment) NetworkConfig {
	return NetworkConfig{DefaultEnvironment: defaultEnv}
}

// HybridNetworkConfig constructs a NetworkConfig with per-endpoint-kind overrides.
func HybridNetworkConfig(defaultEnv Environment, overrides map[EndpointKind]Environment) NetworkConfig {
	return NetworkConfig{DefaultEnvironment: defaultEnv, Overrides: overrides}
}

// IsTestnetFor decides whether the given endpoint kind routes to testnet.
func (nc NetworkConfig) IsTestnetFor(kind EndpointKind) bool {
	if nc.ForTesting {
		return false
	}
	if env, ok := nc.Overrides[kind]; ok {
		return env == EnvTestnet
	}
	return nc.DefaultEnvironment == EnvTestnet
}
