// Package bybit implements the Bybit spot adapter.
package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/marianogappa/crypto-feeds/feed/adapter"
	"github.com/marianogappa/crypto-feeds/feed/common"
)

// Name is the canonical registry name of this adapter.
const Name = "bybit_spot"

// Bybit is the Bybit v5 spot adapter. It is async-only: the blocking fetch
// path fails with common.ErrSyncNotSupported.
type Bybit struct {
	adapter.Base
}

// New constructs a Bybit spot adapter.
func New(opts adapter.Options) (*Bybit, error) {
	e := &Bybit{Base: adapter.NewBase(Name, adapter.IOAsync, endpoints(), intervals(), wsIntervals(), opts)}
	return e, nil
}

// Factory is the registry factory for this adapter.
func Factory(opts adapter.Options) (adapter.Adapter, error) { return New(opts) }

func endpoints() adapter.Endpoints {
	return adapter.Endpoints{
		ProductionHost: "https://api.bybit.com",
		TestnetHost:    "https://api-testnet.bybit.com",
		RESTPaths: map[common.EndpointKind]string{
			common.EndpointCandles: "/v5/market/kline",
			common.EndpointTicker:  "/v5/market/tickers",
			common.EndpointOrders:  "/v5/order/create",
			common.EndpointAccount: "/v5/account/wallet-balance",
		},
		ProductionWSHost: "wss://stream.bybit.com",
		TestnetWSHost:    "wss://stream-testnet.bybit.com",
		WSPath:           "/v5/public/spot",
	}
}

// nativeIntervals maps canonical interval tokens to the Bybit interval
// parameter, which counts minutes up to 12h and letters above.
var nativeIntervals = map[common.Interval]string{
	common.Interval1m:  "1",
	common.Interval3m:  "3",
	common.Interval5m:  "5",
	common.Interval15m: "15",
	common.Interval30m: "30",
	common.Interval1h:  "60",
	common.Interval2h:  "120",
	common.Interval4h:  "240",
	common.Interval6h:  "360",
	common.Interval12h: "720",
	common.Interval1d:  "D",
	common.Interval1w:  "W",
	common.Interval1M:  "M",
}

func intervals() map[common.Interval]int {
	out := map[common.Interval]int{}
	for i := range nativeIntervals {
		secs, _ := i.Seconds()
		out[i] = secs
	}
	return out
}

func wsIntervals() []common.Interval {
	return []common.Interval{
		common.Interval1m, common.Interval3m, common.Interval5m, common.Interval15m,
		common.Interval30m, common.Interval1h, common.Interval2h, common.Interval4h,
		common.Interval6h, common.Interval12h, common.Interval1d, common.Interval1w,
		common.Interval1M,
	}
}

// TradingPairFormat returns the Bybit symbol, e.g. BTC-USDT -> "BTCUSDT".
func (e *Bybit) TradingPairFormat(pair common.TradingPair) string {
	return strings.ToUpper(pair.Base + pair.Quote)
}

// FetchCandles requests and parses a window of candlesticks.
func (e *Bybit) FetchCandles(ctx context.Context, pair common.TradingPair, interval common.Interval, opts adapter.FetchOptions) ([]common.Candlestick, error) {
	return e.DoFetch(ctx, e, pair, interval, opts)
}

// FetchCandlesSync fails: Bybit is served on the async path only.
func (e *Bybit) FetchCandlesSync(pair common.TradingPair, interval common.Interval, opts adapter.FetchOptions) ([]common.Candlestick, error) {
	return nil, fmt.Errorf("%w: %v", common.ErrSyncNotSupported, Name)
}

// wsSubscription is the Bybit subscribe message, e.g.
// {"op":"subscribe","args":["kline.1.BTCUSDT"]}
type wsSubscription struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

// WSSubscriptionPayload returns the kline topic subscribe message.
func (e *Bybit) WSSubscriptionPayload(pair common.TradingPair, interval common.Interval) (interface{}, error) {
	native, ok := nativeIntervals[interval]
	if !ok {
		return nil, fmt.Errorf("%w: %q on %v", common.ErrUnsupportedInterval, interval, Name)
	}
	topic := fmt.Sprintf("kline.%v.%v", native, e.TradingPairFormat(pair))
	return wsSubscription{Op: "subscribe", Args: []string{topic}}, nil
}

// Bybit kline push message:
//
//	{
//	  "topic": "kline.5.BTCUSDT",
//	  "type": "snapshot",
//	  "ts": 1672324988882,
//	  "data": [
//	    {
//	      "start": 1672324800000, "end": 1672325099999, "interval": "5",
//	      "open": "16649.5", "close": "16677", "high": "16677", "low": "16608",
//	      "volume": "2.081", "turnover": "34666.4005", "confirm": false,
//	      "timestamp": 1672324988882
//	    }
//	  ]
//	}
type wsKlineMessage struct {
	Topic string `json:"topic"`
	Data  []struct {
		Start    int64  `json:"start"`
		Open     string `json:"open"`
		Close    string `json:"close"`
		High     string `json:"high"`
		Low      string `json:"low"`
		Volume   string `json:"volume"`
		Turnover string `json:"turnover"`
		Confirm  bool   `json:"confirm"`
	} `json:"data"`
}

// ParseWSMessage parses kline pushes; subscribe acks and pong frames yield an
// empty result.
func (e *Bybit) ParseWSMessage(raw []byte) ([]common.Candlestick, error) {
	var msg wsKlineMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidJSONResponse, err)
	}
	if !strings.HasPrefix(msg.Topic, "kline.") || len(msg.Data) == 0 {
		return nil, nil
	}

	css := make([]common.Candlestick, len(msg.Data))
	for i, d := range msg.Data {
		cs, err := candlestickFromRow([]string{"", d.Open, d.High, d.Low, d.Close, d.Volume, d.Turnover})
		if err != nil {
			return nil, err
		}
		ts, err := common.ParseTimestamp(d.Start)
		if err != nil {
			return nil, err
		}
		cs.Timestamp = ts
		css[i] = cs
	}
	return css, nil
}
