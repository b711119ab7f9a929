// Package adapter defines the capability contract that normalizes
// per-exchange REST endpoints, WebSocket subscription protocols, interval
// encodings, symbol formats and timestamp units behind one interface, plus the
// registry through which feeds obtain adapter instances by exchange name.
package adapter

import (
	"context"
	"net/url"

	"github.com/marianogappa/crypto-feeds/feed/common"
	"github.com/marianogappa/crypto-feeds/feed/netclient"
)

// IOCapability declares an adapter's I/O surface. The feed engine branches on
// it to choose a compatible collection strategy.
type IOCapability int

const (
	// IOAsync adapters only serve the context-aware fetch path; FetchCandlesSync
	// fails with common.ErrSyncNotSupported.
	IOAsync IOCapability = iota

	// IOSync adapters only genuinely serve the blocking path; FetchCandles
	// dispatches the sync call on a worker goroutine.
	IOSync

	// IOHybrid adapters serve both paths genuinely.
	IOHybrid
)

func (c IOCapability) String() string {
	switch c {
	case IOAsync:
		return "async"
	case IOSync:
		return "sync"
	case IOHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// AsyncCapable reports whether the adapter can serve the context-aware fetch
// path genuinely, which is what the WebSocket strategy requires.
func (c IOCapability) AsyncCapable() bool { return c == IOAsync || c == IOHybrid }

// FetchOptions bounds a candlestick request. Zero values mean unset.
type FetchOptions struct {
	// StartTime is the inclusive lower bound in UNIX seconds.
	StartTime int
	// EndTime is the inclusive upper bound in UNIX seconds.
	EndTime int
	// Limit caps how many candlesticks to return.
	Limit int
}

// Adapter is a stateful collaborator bound to one exchange market, e.g.
// "binance spot". Implementations translate between the canonical types in
// feed/common and the exchange's native wire formats.
type Adapter interface {
	// Name is the canonical registry name, e.g. "binance_spot".
	Name() string

	// Capability declares the adapter's I/O surface.
	Capability() IOCapability

	// Intervals is the adapter's supported subset of canonical interval tokens,
	// mapped to their width in seconds.
	Intervals() map[common.Interval]int

	// WSIntervals lists the interval tokens streamable over WebSocket. May be a
	// subset of Intervals; empty means no WebSocket support.
	WSIntervals() []common.Interval

	// TradingPairFormat translates the canonical pair into the exchange-native
	// symbol, e.g. BTC-USDT -> "BTCUSDT". Pure.
	TradingPairFormat(pair common.TradingPair) string

	// RESTURL returns the full URL for the given endpoint kind, routed through
	// the adapter's NetworkConfig for production/testnet selection.
	RESTURL(kind common.EndpointKind) string

	// WSURL returns the WebSocket URL, routed as above.
	WSURL() string

	// RESTParams maps canonical request arguments into the exchange-native
	// query parameters. Pure.
	//
	// * Fails with common.ErrUnsupportedInterval on an interval outside Intervals().
	RESTParams(pair common.TradingPair, interval common.Interval, opts FetchOptions) (url.Values, error)

	// ParseRESTResponse parses a raw candles response body into an ascending
	// list of candlesticks, normalizing field order, timestamp units and
	// numeric encoding.
	ParseRESTResponse(raw []byte) ([]common.Candlestick, error)

	// WSSubscriptionPayload is the JSON-serializable message to send after the
	// WebSocket connection opens.
	WSSubscriptionPayload(pair common.TradingPair, interval common.Interval) (interface{}, error)

	// ParseWSMessage parses a raw WebSocket frame into candlesticks. Returns an
	// empty list for keepalives, subscription acks and other non-candle frames.
	ParseWSMessage(raw []byte) ([]common.Candlestick, error)

	// FetchCandles composes RESTURL + RESTParams + GET + ParseRESTResponse.
	FetchCandles(ctx context.Context, pair common.TradingPair, interval common.Interval, opts FetchOptions) ([]common.Candlestick, error)

	// FetchCandlesSync is the blocking variant of FetchCandles.
	//
	// * Fails with common.ErrSyncNotSupported on async-only adapters.
	FetchCandlesSync(pair common.TradingPair, interval common.Interval, opts FetchOptions) ([]common.Candlestick, error)

	// SetDebug toggles debug logging of request/response traffic.
	SetDebug(debug bool)
}

// Options is the uniform construction contract for every adapter: the feed
// engine and the mock framework instantiate any adapter identically.
type Options struct {
	// NetworkConfig routes endpoint kinds to production or testnet. The zero
	// value routes everything to production.
	NetworkConfig common.NetworkConfig

	// NetworkClient is the I/O facade adapters issue requests through. Nil
	// constructs a default client.
	NetworkClient *netclient.Client
}

// Factory constructs an adapter from uniform Options.
type Factory func(Options) (Adapter, error)
