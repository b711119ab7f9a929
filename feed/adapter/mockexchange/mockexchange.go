// Package mockexchange implements the adapter for the built-in mock exchange,
// which speaks the canonical wire format directly. It exists so feed-level
// behavior can be exercised end to end without any per-exchange translation
// in the way.
package mockexchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/marianogappa/crypto-feeds/feed/adapter"
	"github.com/marianogappa/crypto-feeds/feed/common"
)

// Name is the canonical registry name of this adapter.
const Name = "mockexchange"

// MaxLimit caps how many candlesticks one request returns.
const MaxLimit = 1000

// MockExchange is the mock exchange adapter. It is hybrid and its URLs point
// at localhost; callers rebind them to a live mock server with PatchURLs.
type MockExchange struct {
	adapter.Base
}

// New constructs a mock exchange adapter.
func New(opts adapter.Options) (*MockExchange, error) {
	e := &MockExchange{Base: adapter.NewBase(Name, adapter.IOHybrid, endpoints(), intervals(), common.Intervals(), opts)}
	return e, nil
}

// Factory is the registry factory for this adapter.
func Factory(opts adapter.Options) (adapter.Adapter, error) { return New(opts) }

func endpoints() adapter.Endpoints {
	return adapter.Endpoints{
		ProductionHost: "http://127.0.0.1:7870",
		RESTPaths: map[common.EndpointKind]string{
			common.EndpointCandles: "/api/v1/candles",
			common.EndpointTicker:  "/api/v1/ticker",
		},
		ProductionWSHost: "ws://127.0.0.1:7870",
		WSPath:           "/ws",
	}
}

func intervals() map[common.Interval]int {
	out := map[common.Interval]int{}
	for _, i := range common.Intervals() {
		secs, _ := i.Seconds()
		out[i] = secs
	}
	return out
}

// TradingPairFormat returns the canonical form, e.g. BTC-USDT -> "BTC-USDT".
func (e *MockExchange) TradingPairFormat(pair common.TradingPair) string {
	return pair.String()
}

// FetchCandles requests and parses a window of candlesticks.
func (e *MockExchange) FetchCandles(ctx context.Context, pair common.TradingPair, interval common.Interval, opts adapter.FetchOptions) ([]common.Candlestick, error) {
	return e.DoFetch(ctx, e, pair, interval, opts)
}

// FetchCandlesSync is the blocking variant of FetchCandles.
func (e *MockExchange) FetchCandlesSync(pair common.TradingPair, interval common.Interval, opts adapter.FetchOptions) ([]common.Candlestick, error) {
	return e.DoFetch(context.Background(), e, pair, interval, opts)
}

// RESTParams maps canonical arguments onto the canonical candles query, e.g.
// /api/v1/candles?symbol=BTC-USDT&interval=1m&start_time=1642329960&limit=1000
func (e *MockExchange) RESTParams(pair common.TradingPair, interval common.Interval, opts adapter.FetchOptions) (url.Values, error) {
	q := url.Values{}
	q.Add("symbol", e.TradingPairFormat(pair))
	q.Add("interval", string(interval))
	limit := opts.Limit
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}
	q.Add("limit", strconv.Itoa(limit))
	if opts.StartTime != 0 {
		q.Add("start_time", strconv.Itoa(opts.StartTime))
	}
	if opts.EndTime != 0 {
		q.Add("end_time", strconv.Itoa(opts.EndTime))
	}
	return q, nil
}

// ParseRESTResponse parses the canonical candles response, a plain JSON array
// of candlestick objects in ascending order.
func (e *MockExchange) ParseRESTResponse(raw []byte) ([]common.Candlestick, error) {
	var css []common.Candlestick
	if err := json.Unmarshal(raw, &css); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidJSONResponse, err)
	}
	return css, nil
}

// WSSubscription is the canonical subscribe message, e.g.
// {"op":"subscribe","symbol":"BTC-USDT","interval":"1m"}
type WSSubscription struct {
	Op       string `json:"op"`
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
}

// WSSubscriptionPayload returns the canonical subscribe message.
func (e *MockExchange) WSSubscriptionPayload(pair common.TradingPair, interval common.Interval) (interface{}, error) {
	if _, ok := e.Intervals()[interval]; !ok {
		return nil, fmt.Errorf("%w: %q on %v", common.ErrUnsupportedInterval, interval, Name)
	}
	return WSSubscription{Op: "subscribe", Symbol: e.TradingPairFormat(pair), Interval: string(interval)}, nil
}

// WSCandleMessage is the canonical candle push frame.
type WSCandleMessage struct {
	Type     string             `json:"type"`
	Symbol   string             `json:"symbol"`
	Interval string             `json:"interval"`
	Candle   common.Candlestick `json:"candle"`
}

// ParseWSMessage parses candle pushes; ack frames yield an empty result.
func (e *MockExchange) ParseWSMessage(raw []byte) ([]common.Candlestick, error) {
	var msg WSCandleMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidJSONResponse, err)
	}
	if msg.Type != "candle" {
		return nil, nil
	}
	return []common.Candlestick{msg.Candle}, nil
}
