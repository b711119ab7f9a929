package adapter

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"

	"github.com/marianogappa/crypto-feeds/feed/common"
	"github.com/marianogappa/crypto-feeds/feed/netclient"
	"github.com/rs/zerolog/log"
)

// Endpoints is the URL table a concrete adapter is constructed with: one host
// per environment plus the per-kind REST paths of the exchange.
type Endpoints struct {
	// ProductionHost is the REST base, e.g. "https://api.binance.com".
	ProductionHost string
	// TestnetHost is the REST testnet base; empty means the exchange has no
	// testnet and production is used regardless of NetworkConfig.
	TestnetHost string

	// RESTPaths maps endpoint kinds to paths, e.g. candles -> "/api/v3/klines".
	RESTPaths map[common.EndpointKind]string

	// ProductionWSHost is the WebSocket base, e.g. "wss://stream.binance.com:9443".
	ProductionWSHost string
	// TestnetWSHost is the WebSocket testnet base; empty means none.
	TestnetWSHost string
	// WSPath is the WebSocket path, e.g. "/ws".
	WSPath string
}

// WireCodec is the subset of Adapter that Base.DoFetch composes: the pure
// request/response translation a concrete adapter implements.
type WireCodec interface {
	RESTParams(pair common.TradingPair, interval common.Interval, opts FetchOptions) (url.Values, error)
	ParseRESTResponse(raw []byte) ([]common.Candlestick, error)
}

// Base carries the state and behavior shared by every adapter: name,
// capability, URL routing through NetworkConfig, the network client, interval
// table, debug flag, and the fetch composition helper. Concrete adapters embed
// it and implement the wire codec methods.
type Base struct {
	name       string
	capability IOCapability
	endpoints  Endpoints
	intervals  map[common.Interval]int
	wsIntervals []common.Interval

	networkConfig common.NetworkConfig
	client        *netclient.Client
	debug         bool

	mu          sync.RWMutex
	patchedREST string
	patchedWS   string
}

// NewBase constructs the shared adapter state. A nil Options.NetworkClient
// falls back to a default netclient.Client.
func NewBase(name string, capability IOCapability, endpoints Endpoints, intervals map[common.Interval]int, wsIntervals []common.Interval, opts Options) Base {
	client := opts.NetworkClient
	if client == nil {
		client = netclient.New(netclient.Config{})
	}
	return Base{
		name:          name,
		capability:    capability,
		endpoints:     endpoints,
		intervals:     intervals,
		wsIntervals:   wsIntervals,
		networkConfig: opts.NetworkConfig,
		client:        client,
	}
}

// Name is the canonical registry name, e.g. "binance_spot".
func (b *Base) Name() string { return b.name }

// Capability declares the adapter's I/O surface.
func (b *Base) Capability() IOCapability { return b.capability }

// Intervals returns a copy of the adapter's supported interval table.
func (b *Base) Intervals() map[common.Interval]int {
	out := make(map[common.Interval]int, len(b.intervals))
	for k, v := range b.intervals {
		out[k] = v
	}
	return out
}

// WSIntervals lists the interval tokens streamable over WebSocket.
func (b *Base) WSIntervals() []common.Interval {
	out := make([]common.Interval, len(b.wsIntervals))
	copy(out, b.wsIntervals)
	return out
}

// SupportsWSInterval reports whether the interval is streamable over WebSocket.
func (b *Base) SupportsWSInterval(interval common.Interval) bool {
	for _, i := range b.wsIntervals {
		if i == interval {
			return true
		}
	}
	return false
}

// SetDebug toggles debug logging of request/response traffic.
func (b *Base) SetDebug(debug bool) { b.debug = debug }

// Debug reports whether debug logging is on.
func (b *Base) Debug() bool { return b.debug }

// Client is the adapter's network client.
func (b *Base) Client() *netclient.Client { return b.client }

// NetworkConfig is the adapter's routing configuration.
func (b *Base) NetworkConfig() common.NetworkConfig { return b.networkConfig }

// RESTURL returns the full URL for the endpoint kind: patched host if a test
// rebind is active, otherwise the production or testnet host per NetworkConfig.
func (b *Base) RESTURL(kind common.EndpointKind) string {
	b.mu.RLock()
	patched := b.patchedREST
	b.mu.RUnlock()

	host := b.endpoints.ProductionHost
	if patched != "" {
		host = patched
	} else if b.endpoints.TestnetHost != "" && b.networkConfig.IsTestnetFor(kind) {
		host = b.endpoints.TestnetHost
	}
	return host + b.endpoints.RESTPaths[kind]
}

// WSURL returns the full WebSocket URL, routed like RESTURL. WebSocket candle
// streams route on the candles endpoint kind.
func (b *Base) WSURL() string {
	b.mu.RLock()
	patched := b.patchedWS
	b.mu.RUnlock()

	host := b.endpoints.ProductionWSHost
	if patched != "" {
		host = patched
	} else if b.endpoints.TestnetWSHost != "" && b.networkConfig.IsTestnetFor(common.EndpointCandles) {
		host = b.endpoints.TestnetWSHost
	}
	return host + b.endpoints.WSPath
}

// PatchURLs rebinds the adapter's REST and WS hosts (e.g. to a mock server's
// bound address) and returns a restore func undoing the rebind. This is the
// only supported way tests cross the adapter abstraction.
func (b *Base) PatchURLs(restHost, wsHost string) (restore func()) {
	b.mu.Lock()
	prevREST, prevWS := b.patchedREST, b.patchedWS
	b.patchedREST, b.patchedWS = restHost, wsHost
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		b.patchedREST, b.patchedWS = prevREST, prevWS
		b.mu.Unlock()
	}
}

// DoFetch composes RESTURL + RESTParams + GET + ParseRESTResponse, validating
// arguments and sorting the result ascending by timestamp.
//
// * Fails with common.ErrInvalidTimeRange if opts.StartTime > opts.EndTime.
//
// * Fails with common.ErrUnsupportedInterval on an interval outside Intervals().
func (b *Base) DoFetch(ctx context.Context, codec WireCodec, pair common.TradingPair, interval common.Interval, opts FetchOptions) ([]common.Candlestick, error) {
	if opts.StartTime != 0 && opts.EndTime != 0 && opts.StartTime > opts.EndTime {
		return nil, fmt.Errorf("%w: start %v > end %v", common.ErrInvalidTimeRange, opts.StartTime, opts.EndTime)
	}
	if _, ok := b.intervals[interval]; !ok {
		return nil, fmt.Errorf("%w: %q on %v", common.ErrUnsupportedInterval, interval, b.name)
	}

	params, err := codec.RESTParams(pair, interval, opts)
	if err != nil {
		return nil, err
	}

	raw, err := b.client.GetRESTData(ctx, b.RESTURL(common.EndpointCandles), params, nil, "GET", nil)
	if err != nil {
		return nil, err
	}

	css, err := codec.ParseRESTResponse(raw)
	if err != nil {
		return nil, err
	}
	sort.Slice(css, func(i, j int) bool { return css[i].Timestamp < css[j].Timestamp })

	if b.debug {
		log.Info().Str("exchange", b.name).Str("market", pair.String()).Int("candlestick_count", len(css)).Msg("Candlestick request successful!")
	}
	return css, nil
}

// DispatchSync runs the blocking fetch of a sync-only adapter on a worker
// goroutine so the context-aware path stays cancellable.
func (b *Base) DispatchSync(ctx context.Context, fn func() ([]common.Candlestick, error)) ([]common.Candlestick, error) {
	type result struct {
		css []common.Candlestick
		err error
	}
	ch := make(chan result, 1)
	go func() {
		css, err := fn()
		ch <- result{css, err}
	}()
	select {
	case r := <-ch:
		return r.css, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
