// Package kucoin implements the KuCoin spot adapter.
package kucoin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/marianogappa/crypto-feeds/feed/adapter"
	"github.com/marianogappa/crypto-feeds/feed/common"
)

// Name is the canonical registry name of this adapter.
const Name = "kucoin_spot"

// Kucoin is the KuCoin spot adapter. It is hybrid: both the context-aware and
// the blocking fetch paths are genuine.
type Kucoin struct {
	adapter.Base
}

// New constructs a KuCoin spot adapter.
func New(opts adapter.Options) (*Kucoin, error) {
	e := &Kucoin{Base: adapter.NewBase(Name, adapter.IOHybrid, endpoints(), intervals(), wsIntervals(), opts)}
	return e, nil
}

// Factory is the registry factory for this adapter.
func Factory(opts adapter.Options) (adapter.Adapter, error) { return New(opts) }

func endpoints() adapter.Endpoints {
	return adapter.Endpoints{
		ProductionHost: "https://api.kucoin.com",
		TestnetHost:    "https://openapi-sandbox.kucoin.com",
		RESTPaths: map[common.EndpointKind]string{
			common.EndpointCandles: "/api/v1/market/candles",
			common.EndpointTicker:  "/api/v1/market/orderbook/level1",
			common.EndpointOrders:  "/api/v1/orders",
			common.EndpointAccount: "/api/v1/accounts",
		},
		ProductionWSHost: "wss://ws-api-spot.kucoin.com",
		WSPath:           "/",
	}
}

// nativeTypes maps canonical interval tokens to the KuCoin type parameter.
var nativeTypes = map[common.Interval]string{
	common.Interval1m:  "1min",
	common.Interval3m:  "3min",
	common.Interval5m:  "5min",
	common.Interval15m: "15min",
	common.Interval30m: "30min",
	common.Interval1h:  "1hour",
	common.Interval2h:  "2hour",
	common.Interval4h:  "4hour",
	common.Interval6h:  "6hour",
	common.Interval8h:  "8hour",
	common.Interval12h: "12hour",
	common.Interval1d:  "1day",
	common.Interval1w:  "1week",
}

func intervals() map[common.Interval]int {
	out := map[common.Interval]int{}
	for i := range nativeTypes {
		secs, _ := i.Seconds()
		out[i] = secs
	}
	return out
}

func wsIntervals() []common.Interval {
	return []common.Interval{
		common.Interval1m, common.Interval3m, common.Interval5m, common.Interval15m,
		common.Interval30m, common.Interval1h, common.Interval2h, common.Interval4h,
		common.Interval6h, common.Interval8h, common.Interval12h, common.Interval1d,
		common.Interval1w,
	}
}

// TradingPairFormat returns the KuCoin symbol, e.g. BTC-USDT -> "BTC-USDT".
func (e *Kucoin) TradingPairFormat(pair common.TradingPair) string {
	return pair.Base + "-" + pair.Quote
}

// FetchCandles requests and parses a window of candlesticks.
func (e *Kucoin) FetchCandles(ctx context.Context, pair common.TradingPair, interval common.Interval, opts adapter.FetchOptions) ([]common.Candlestick, error) {
	return e.DoFetch(ctx, e, pair, interval, opts)
}

// FetchCandlesSync is the blocking variant of FetchCandles.
func (e *Kucoin) FetchCandlesSync(pair common.TradingPair, interval common.Interval, opts adapter.FetchOptions) ([]common.Candlestick, error) {
	return e.DoFetch(context.Background(), e, pair, interval, opts)
}

// wsSubscription is the KuCoin subscribe message, e.g.
// {"id":1,"type":"subscribe","topic":"/market/candles:BTC-USDT_1min","response":true}
//
// Production KuCoin requires a bullet token handshake before connecting; the
// candle topic protocol itself is the same either way, so the adapter only
// models the topic layer.
type wsSubscription struct {
	ID       int    `json:"id"`
	Type     string `json:"type"`
	Topic    string `json:"topic"`
	Response bool   `json:"response"`
}

// WSSubscriptionPayload returns the candles topic subscribe message.
func (e *Kucoin) WSSubscriptionPayload(pair common.TradingPair, interval common.Interval) (interface{}, error) {
	native, ok := nativeTypes[interval]
	if !ok {
		return nil, fmt.Errorf("%w: %q on %v", common.ErrUnsupportedInterval, interval, Name)
	}
	topic := fmt.Sprintf("/market/candles:%v_%v", e.TradingPairFormat(pair), native)
	return wsSubscription{ID: 1, Type: "subscribe", Topic: topic, Response: true}, nil
}

// KuCoin candle push message:
//
//	{
//	  "type": "message",
//	  "topic": "/market/candles:BTC-USDT_1hour",
//	  "subject": "trade.candles.update",
//	  "data": {
//	    "symbol": "BTC-USDT",
//	    "candles": ["1589968800", "9786.9", "9740.8", "9806.1", "9732", "27.4", "268280.1"],
//	    "time": 1589970010253893337
//	  }
//	}
type wsCandleMessage struct {
	Type    string `json:"type"`
	Topic   string `json:"topic"`
	Subject string `json:"subject"`
	Data    struct {
		Symbol  string   `json:"symbol"`
		Candles []string `json:"candles"`
	} `json:"data"`
}

// ParseWSMessage parses candle pushes; welcome, ack and pong frames yield an
// empty result.
func (e *Kucoin) ParseWSMessage(raw []byte) ([]common.Candlestick, error) {
	var msg wsCandleMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidJSONResponse, err)
	}
	if msg.Type != "message" || !strings.HasPrefix(msg.Subject, "trade.candles") {
		return nil, nil
	}

	cs, err := candlestickFromRow(msg.Data.Candles)
	if err != nil {
		return nil, err
	}
	return []common.Candlestick{cs}, nil
}
