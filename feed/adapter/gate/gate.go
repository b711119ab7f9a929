// Package gate implements the Gate.io spot adapter.
package gate

import (
	"context"
	"errors"

	"github.com/marianogappa/crypto-feeds/feed/adapter"
	"github.com/marianogappa/crypto-feeds/feed/common"
)

// Name is the canonical registry name of this adapter.
const Name = "gate_spot"

// ErrNoWebsocket is returned from the WebSocket surface: this adapter only
// models the v4 REST candlesticks endpoint.
var ErrNoWebsocket = errors.New("gate_spot has no WebSocket candle stream")

// Gate is the Gate.io spot adapter. It is sync-only: the blocking fetch path
// is genuine and the context-aware path dispatches it on a worker goroutine.
type Gate struct {
	adapter.Base
}

// New constructs a Gate.io spot adapter.
func New(opts adapter.Options) (*Gate, error) {
	e := &Gate{Base: adapter.NewBase(Name, adapter.IOSync, endpoints(), intervals(), nil, opts)}
	return e, nil
}

// Factory is the registry factory for this adapter.
func Factory(opts adapter.Options) (adapter.Adapter, error) { return New(opts) }

func endpoints() adapter.Endpoints {
	return adapter.Endpoints{
		ProductionHost: "https://api.gateio.ws",
		RESTPaths: map[common.EndpointKind]string{
			common.EndpointCandles: "/api/v4/spot/candlesticks",
			common.EndpointTicker:  "/api/v4/spot/tickers",
			common.EndpointOrders:  "/api/v4/spot/orders",
			common.EndpointAccount: "/api/v4/spot/accounts",
		},
	}
}

func intervals() map[common.Interval]int {
	out := map[common.Interval]int{}
	for _, i := range []common.Interval{
		common.Interval1m, common.Interval5m, common.Interval15m, common.Interval30m,
		common.Interval1h, common.Interval4h, common.Interval8h, common.Interval1d,
	} {
		secs, _ := i.Seconds()
		out[i] = secs
	}
	return out
}

// TradingPairFormat returns the Gate currency pair, e.g. BTC-USDT -> "BTC_USDT".
func (e *Gate) TradingPairFormat(pair common.TradingPair) string {
	return pair.Base + "_" + pair.Quote
}

// FetchCandles dispatches the blocking fetch on a worker goroutine so it
// stays cancellable.
func (e *Gate) FetchCandles(ctx context.Context, pair common.TradingPair, interval common.Interval, opts adapter.FetchOptions) ([]common.Candlestick, error) {
	return e.DispatchSync(ctx, func() ([]common.Candlestick, error) {
		return e.FetchCandlesSync(pair, interval, opts)
	})
}

// FetchCandlesSync requests and parses a window of candlesticks.
func (e *Gate) FetchCandlesSync(pair common.TradingPair, interval common.Interval, opts adapter.FetchOptions) ([]common.Candlestick, error) {
	return e.DoFetch(context.Background(), e, pair, interval, opts)
}

// WSSubscriptionPayload fails with ErrNoWebsocket.
func (e *Gate) WSSubscriptionPayload(pair common.TradingPair, interval common.Interval) (interface{}, error) {
	return nil, ErrNoWebsocket
}

// ParseWSMessage fails with ErrNoWebsocket.
func (e *Gate) ParseWSMessage(raw []byte) ([]common.Candlestick, error) {
	return nil, ErrNoWebsocket
}
