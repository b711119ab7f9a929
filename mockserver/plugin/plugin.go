// Package plugin defines the per-exchange personality contract of the mock
// server. A plugin owns everything exchange-shaped about a mock: the REST
// route and query dialect, the response envelope, the error and rate-limit
// bodies, and the WebSocket subscription protocol. The server owns everything
// else (listening, candle state, rate limiting, broadcasting).
package plugin

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/marianogappa/crypto-feeds/feed/common"
)

// Params is a parsed candles request in canonical terms.
type Params struct {
	Pair      common.TradingPair
	Interval  common.Interval
	StartTime int
	EndTime   int
	Limit     int
}

// Subscription is a parsed WebSocket candle subscription.
type Subscription struct {
	Pair     common.TradingPair
	Interval common.Interval
}

// Key addresses one broadcast group.
func (s Subscription) Key() string {
	return fmt.Sprintf("%v_%v", s.Pair, s.Interval)
}

// Plugin is one exchange personality. Implementations are stateless; all
// candle state lives in the server.
type Plugin interface {
	// Name is the exchange type this plugin imitates, e.g. "binance".
	Name() string

	// CandlesPath is the REST route of the candles endpoint, e.g. "/api/v3/klines".
	CandlesPath() string

	// ParseCandlesParams decodes a native candles request into canonical Params.
	ParseCandlesParams(r *http.Request) (Params, error)

	// RenderCandles serializes candlesticks into the native response body for
	// the given request. Params is passed because some envelopes are keyed by
	// the requested symbol.
	RenderCandles(p Params, css []common.Candlestick) ([]byte, error)

	// ErrorBody renders a native error envelope for the given status code.
	ErrorBody(statusCode int, msg string) []byte

	// RateLimitBody renders the native 429 body and its status code. Some
	// exchanges signal rate limiting with a different status (e.g. 418).
	RateLimitBody() ([]byte, int)

	// WSPath is the WebSocket route; empty means the exchange mock has no
	// WebSocket surface.
	WSPath() string

	// ParseSubscription decodes an incoming WebSocket frame. A nil
	// Subscription with a nil error means the frame is a ping or other
	// non-subscribe message to ignore; ack is the frame to send back on a
	// successful subscribe (nil means no ack).
	ParseSubscription(raw []byte) (sub *Subscription, ack []byte, err error)

	// RenderWSCandle serializes one candle push frame for the subscription.
	RenderWSCandle(sub Subscription, cs common.Candlestick) ([]byte, error)
}

// Factory constructs a plugin.
type Factory func() Plugin

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// ErrUnknownExchangeType is returned by New for unregistered exchange types.
var ErrUnknownExchangeType = errors.New("unknown mock exchange type")

// Register binds an exchange type to a plugin factory. Called from plugin
// package init functions.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// New constructs the plugin for the given exchange type.
func New(name string) (Plugin, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownExchangeType, name, Names())
	}
	return factory(), nil
}

// Names lists the registered exchange types, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
