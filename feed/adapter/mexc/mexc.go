// Package mexc implements the MEXC spot adapter.
package mexc

import (
	"context"
	"fmt"
	"strings"

	"github.com/marianogappa/crypto-feeds/feed/adapter"
	"github.com/marianogappa/crypto-feeds/feed/common"
)

// Name is the canonical registry name of this adapter.
const Name = "mexc_spot"

// Mexc is the MEXC spot adapter. It is async-only: the blocking fetch path
// fails with common.ErrSyncNotSupported. MEXC streams candles over a
// protobuf channel this adapter does not model, so there is no WebSocket
// surface either.
type Mexc struct {
	adapter.Base
}

// New constructs a MEXC spot adapter.
func New(opts adapter.Options) (*Mexc, error) {
	e := &Mexc{Base: adapter.NewBase(Name, adapter.IOAsync, endpoints(), intervals(), nil, opts)}
	return e, nil
}

// Factory is the registry factory for this adapter.
func Factory(opts adapter.Options) (adapter.Adapter, error) { return New(opts) }

func endpoints() adapter.Endpoints {
	return adapter.Endpoints{
		ProductionHost: "https://api.mexc.com",
		RESTPaths: map[common.EndpointKind]string{
			common.EndpointCandles: "/api/v3/klines",
			common.EndpointTicker:  "/api/v3/ticker/24hr",
			common.EndpointOrders:  "/api/v3/order",
			common.EndpointAccount: "/api/v3/account",
		},
	}
}

// nativeIntervals maps canonical interval tokens to the MEXC interval
// parameter, which writes the hour as "60m".
var nativeIntervals = map[common.Interval]string{
	common.Interval1m:  "1m",
	common.Interval5m:  "5m",
	common.Interval15m: "15m",
	common.Interval30m: "30m",
	common.Interval1h:  "60m",
	common.Interval4h:  "4h",
	common.Interval1d:  "1d",
	common.Interval1M:  "1M",
}

func intervals() map[common.Interval]int {
	out := map[common.Interval]int{}
	for i := range nativeIntervals {
		secs, _ := i.Seconds()
		out[i] = secs
	}
	return out
}

// TradingPairFormat returns the MEXC symbol, e.g. BTC-USDT -> "BTCUSDT".
func (e *Mexc) TradingPairFormat(pair common.TradingPair) string {
	return strings.ToUpper(pair.Base + pair.Quote)
}

// FetchCandles requests and parses a window of candlesticks.
func (e *Mexc) FetchCandles(ctx context.Context, pair common.TradingPair, interval common.Interval, opts adapter.FetchOptions) ([]common.Candlestick, error) {
	return e.DoFetch(ctx, e, pair, interval, opts)
}

// FetchCandlesSync fails: MEXC is served on the async path only.
func (e *Mexc) FetchCandlesSync(pair common.TradingPair, interval common.Interval, opts adapter.FetchOptions) ([]common.Candlestick, error) {
	return nil, fmt.Errorf("%w: %v", common.ErrSyncNotSupported, Name)
}

// WSSubscriptionPayload fails: MEXC candle streams are protobuf-only.
func (e *Mexc) WSSubscriptionPayload(pair common.TradingPair, interval common.Interval) (interface{}, error) {
	return nil, fmt.Errorf("%v has no JSON WebSocket candle stream", Name)
}

// ParseWSMessage fails: MEXC candle streams are protobuf-only.
func (e *Mexc) ParseWSMessage(raw []byte) ([]common.Candlestick, error) {
	return nil, fmt.Errorf("%v has no JSON WebSocket candle stream", Name)
}
