// Package okx implements the OKX spot adapter.
package okx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/marianogappa/crypto-feeds/feed/adapter"
	"github.com/marianogappa/crypto-feeds/feed/common"
)

// Name is the canonical registry name of this adapter.
const Name = "okx_spot"

// Okx is the OKX spot adapter. It is async-only: the blocking fetch path
// fails with common.ErrSyncNotSupported.
type Okx struct {
	adapter.Base
}

// New constructs an OKX spot adapter.
func New(opts adapter.Options) (*Okx, error) {
	e := &Okx{Base: adapter.NewBase(Name, adapter.IOAsync, endpoints(), intervals(), wsIntervals(), opts)}
	return e, nil
}

// Factory is the registry factory for this adapter.
func Factory(opts adapter.Options) (adapter.Adapter, error) { return New(opts) }

func endpoints() adapter.Endpoints {
	return adapter.Endpoints{
		ProductionHost: "https://www.okx.com",
		RESTPaths: map[common.EndpointKind]string{
			common.EndpointCandles: "/api/v5/market/candles",
			common.EndpointTicker:  "/api/v5/market/ticker",
			common.EndpointOrders:  "/api/v5/trade/order",
			common.EndpointAccount: "/api/v5/account/balance",
		},
		ProductionWSHost: "wss://ws.okx.com:8443",
		WSPath:           "/ws/v5/business",
	}
}

// nativeBars maps canonical interval tokens to the OKX bar parameter, which
// uppercases the hour-and-above suffixes.
var nativeBars = map[common.Interval]string{
	common.Interval1s:  "1s",
	common.Interval1m:  "1m",
	common.Interval3m:  "3m",
	common.Interval5m:  "5m",
	common.Interval15m: "15m",
	common.Interval30m: "30m",
	common.Interval1h:  "1H",
	common.Interval2h:  "2H",
	common.Interval4h:  "4H",
	common.Interval6h:  "6H",
	common.Interval12h: "12H",
	common.Interval1d:  "1D",
	common.Interval3d:  "3D",
	common.Interval1w:  "1W",
	common.Interval1M:  "1M",
}

func intervals() map[common.Interval]int {
	out := map[common.Interval]int{}
	for i := range nativeBars {
		secs, _ := i.Seconds()
		out[i] = secs
	}
	return out
}

func wsIntervals() []common.Interval {
	return []common.Interval{
		common.Interval1s, common.Interval1m, common.Interval3m, common.Interval5m,
		common.Interval15m, common.Interval30m, common.Interval1h, common.Interval2h,
		common.Interval4h, common.Interval6h, common.Interval12h, common.Interval1d,
		common.Interval3d, common.Interval1w, common.Interval1M,
	}
}

// TradingPairFormat returns the OKX instId, e.g. BTC-USDT -> "BTC-USDT".
func (e *Okx) TradingPairFormat(pair common.TradingPair) string {
	return pair.Base + "-" + pair.Quote
}

// FetchCandles requests and parses a window of candlesticks.
func (e *Okx) FetchCandles(ctx context.Context, pair common.TradingPair, interval common.Interval, opts adapter.FetchOptions) ([]common.Candlestick, error) {
	return e.DoFetch(ctx, e, pair, interval, opts)
}

// FetchCandlesSync fails: OKX is served on the async path only.
func (e *Okx) FetchCandlesSync(pair common.TradingPair, interval common.Interval, opts adapter.FetchOptions) ([]common.Candlestick, error) {
	return nil, fmt.Errorf("%w: %v", common.ErrSyncNotSupported, Name)
}

// wsSubscription is the OKX subscribe message, e.g.
// {"op":"subscribe","args":[{"channel":"candle1m","instId":"BTC-USDT"}]}
type wsSubscription struct {
	Op   string  `json:"op"`
	Args []wsArg `json:"args"`
}

type wsArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

// WSSubscriptionPayload returns the candle channel subscribe message.
func (e *Okx) WSSubscriptionPayload(pair common.TradingPair, interval common.Interval) (interface{}, error) {
	bar, ok := nativeBars[interval]
	if !ok {
		return nil, fmt.Errorf("%w: %q on %v", common.ErrUnsupportedInterval, interval, Name)
	}
	return wsSubscription{Op: "subscribe", Args: []wsArg{{Channel: "candle" + bar, InstID: e.TradingPairFormat(pair)}}}, nil
}

// OKX candle push message:
//
//	{
//	  "arg": { "channel": "candle1m", "instId": "BTC-USDT" },
//	  "data": [
//	    ["1597026383085","8533.02","8553.74","8527.17","8548.26","45247","386870091.2","386870091.2","1"]
//	  ]
//	}
type wsCandleMessage struct {
	Arg struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Event string     `json:"event"`
	Data  [][]string `json:"data"`
}

// ParseWSMessage parses candle pushes; subscribe acks and error events yield
// an empty result.
func (e *Okx) ParseWSMessage(raw []byte) ([]common.Candlestick, error) {
	var msg wsCandleMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidJSONResponse, err)
	}
	if msg.Event != "" || len(msg.Data) == 0 {
		return nil, nil
	}
	return candlesticksFromRows(msg.Data)
}
