// Package binance implements the Binance spot adapter.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/marianogappa/crypto-feeds/feed/adapter"
	"github.com/marianogappa/crypto-feeds/feed/common"
)

// Name is the canonical registry name of this adapter.
const Name = "binance_spot"

// Binance is the Binance spot adapter. It is hybrid: both the context-aware
// and the blocking fetch paths are genuine.
type Binance struct {
	adapter.Base
}

// New constructs a Binance spot adapter.
func New(opts adapter.Options) (*Binance, error) {
	e := &Binance{Base: adapter.NewBase(Name, adapter.IOHybrid, endpoints(), intervals(), wsIntervals(), opts)}
	return e, nil
}

// Factory is the registry factory for this adapter.
func Factory(opts adapter.Options) (adapter.Adapter, error) { return New(opts) }

func endpoints() adapter.Endpoints {
	return adapter.Endpoints{
		ProductionHost: "https://api.binance.com",
		TestnetHost:    "https://testnet.binance.vision",
		RESTPaths: map[common.EndpointKind]string{
			common.EndpointCandles: "/api/v3/klines",
			common.EndpointTicker:  "/api/v3/ticker/24hr",
			common.EndpointOrders:  "/api/v3/order",
			common.EndpointAccount: "/api/v3/account",
		},
		ProductionWSHost: "wss://stream.binance.com:9443",
		TestnetWSHost:    "wss://stream.testnet.binance.vision",
		WSPath:           "/ws",
	}
}

func intervals() map[common.Interval]int {
	out := map[common.Interval]int{}
	for _, i := range []common.Interval{
		common.Interval1s, common.Interval1m, common.Interval3m, common.Interval5m,
		common.Interval15m, common.Interval30m, common.Interval1h, common.Interval2h,
		common.Interval4h, common.Interval6h, common.Interval8h, common.Interval12h,
		common.Interval1d, common.Interval3d, common.Interval1w, common.Interval1M,
	} {
		secs, _ := i.Seconds()
		out[i] = secs
	}
	return out
}

func wsIntervals() []common.Interval {
	return []common.Interval{
		common.Interval1s, common.Interval1m, common.Interval3m, common.Interval5m,
		common.Interval15m, common.Interval30m, common.Interval1h, common.Interval2h,
		common.Interval4h, common.Interval6h, common.Interval8h, common.Interval12h,
		common.Interval1d, common.Interval3d, common.Interval1w, common.Interval1M,
	}
}

// TradingPairFormat returns the Binance symbol, e.g. BTC-USDT -> "BTCUSDT".
func (e *Binance) TradingPairFormat(pair common.TradingPair) string {
	return strings.ToUpper(pair.Base + pair.Quote)
}

// FetchCandles requests and parses a window of candlesticks.
func (e *Binance) FetchCandles(ctx context.Context, pair common.TradingPair, interval common.Interval, opts adapter.FetchOptions) ([]common.Candlestick, error) {
	return e.DoFetch(ctx, e, pair, interval, opts)
}

// FetchCandlesSync is the blocking variant of FetchCandles.
func (e *Binance) FetchCandlesSync(pair common.TradingPair, interval common.Interval, opts adapter.FetchOptions) ([]common.Candlestick, error) {
	return e.DoFetch(context.Background(), e, pair, interval, opts)
}

// wsSubscription is the Binance stream subscribe message, e.g.
// {"method":"SUBSCRIBE","params":["btcusdt@kline_1m"],"id":1}
type wsSubscription struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

// WSSubscriptionPayload returns the kline stream subscribe message.
func (e *Binance) WSSubscriptionPayload(pair common.TradingPair, interval common.Interval) (interface{}, error) {
	if _, ok := e.Intervals()[interval]; !ok {
		return nil, fmt.Errorf("%w: %q on %v", common.ErrUnsupportedInterval, interval, Name)
	}
	stream := fmt.Sprintf("%v@kline_%v", strings.ToLower(e.TradingPairFormat(pair)), interval)
	return wsSubscription{Method: "SUBSCRIBE", Params: []string{stream}, ID: 1}, nil
}

// Binance kline push message:
//
//	{
//	  "e": "kline", "E": 1672515782136, "s": "BTCUSDT",
//	  "k": {
//	    "t": 1672515780000, "T": 1672515839999, "s": "BTCUSDT", "i": "1m",
//	    "o": "16568.51", "c": "16570.00", "h": "16571.20", "l": "16568.00",
//	    "v": "12.3", "n": 100, "x": false, "q": "203801.3", "V": "6.1", "Q": "101100.0"
//	  }
//	}
type wsKlineMessage struct {
	EventType string `json:"e"`
	// EventTime must be declared: without it, encoding/json's case-insensitive
	// fallback maps the numeric "E" onto the "e" string field.
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Kline     struct {
		OpenTime            int64  `json:"t"`
		// CloseTime must be declared: without it, encoding/json's case-insensitive
		// fallback maps the numeric "T" onto the "t" field, overwriting OpenTime.
		CloseTime           int64  `json:"T"`
		Open                string `json:"o"`
		Close               string `json:"c"`
		High                string `json:"h"`
		Low                 string `json:"l"`
		Volume              string `json:"v"`
		TradeCount          int    `json:"n"`
		IsFinal             bool   `json:"x"`
		QuoteVolume         string `json:"q"`
		TakerBuyBaseVolume  string `json:"V"`
		TakerBuyQuoteVolume string `json:"Q"`
	} `json:"k"`
}

// ParseWSMessage parses a kline push into a single candlestick; any other
// frame (subscription ack, keepalive) yields an empty result.
func (e *Binance) ParseWSMessage(raw []byte) ([]common.Candlestick, error) {
	var msg wsKlineMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidJSONResponse, err)
	}
	if msg.EventType != "kline" {
		return nil, nil
	}

	cs, err := candlestickFromStrings(
		msg.Kline.OpenTime,
		msg.Kline.Open, msg.Kline.High, msg.Kline.Low, msg.Kline.Close,
		msg.Kline.Volume, msg.Kline.QuoteVolume, msg.Kline.TakerBuyBaseVolume, msg.Kline.TakerBuyQuoteVolume,
		msg.Kline.TradeCount,
	)
	if err != nil {
		return nil, err
	}
	return []common.Candlestick{cs}, nil
}
