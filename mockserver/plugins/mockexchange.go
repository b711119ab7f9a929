package plugins

import (
	"encoding/json"
	"net/http"

	"github.com/marianogappa/crypto-feeds/feed/common"
	"github.com/marianogappa/crypto-feeds/mockserver/plugin"
)

// MockExchange is the canonical-format personality: plain JSON candlestick
// arrays over REST and a minimal subscribe protocol over WebSocket. It is the
// fastest personality to test feed behavior against because nothing is
// translated.
type MockExchange struct{}

func (MockExchange) Name() string        { return "mockexchange" }
func (MockExchange) CandlesPath() string { return "/api/v1/candles" }
func (MockExchange) WSPath() string      { return "/ws" }

func (MockExchange) ParseCandlesParams(r *http.Request) (plugin.Params, error) {
	pair, err := plugin.SplitSeparatedSymbol(r.URL.Query().Get("symbol"), "-")
	if err != nil {
		return plugin.Params{}, err
	}
	interval := common.Interval(r.URL.Query().Get("interval"))
	if _, err := interval.Seconds(); err != nil {
		return plugin.Params{}, err
	}
	start, err := queryInt(r, "start_time")
	if err != nil {
		return plugin.Params{}, err
	}
	end, err := queryInt(r, "end_time")
	if err != nil {
		return plugin.Params{}, err
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		return plugin.Params{}, err
	}
	return plugin.Params{Pair: pair, Interval: interval, StartTime: start, EndTime: end, Limit: limit}, nil
}

func (MockExchange) RenderCandles(_ plugin.Params, css []common.Candlestick) ([]byte, error) {
	return json.Marshal(css)
}

func (MockExchange) ErrorBody(statusCode int, msg string) []byte {
	bs, _ := json.Marshal(map[string]string{"error": msg})
	return bs
}

func (MockExchange) RateLimitBody() ([]byte, int) {
	bs, _ := json.Marshal(map[string]string{"error": "rate limit exceeded"})
	return bs, http.StatusTooManyRequests
}

func (MockExchange) ParseSubscription(raw []byte) (*plugin.Subscription, []byte, error) {
	var msg struct {
		Op       string `json:"op"`
		Symbol   string `json:"symbol"`
		Interval string `json:"interval"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, nil, err
	}
	if msg.Op != "subscribe" {
		return nil, nil, nil
	}
	pair, err := plugin.SplitSeparatedSymbol(msg.Symbol, "-")
	if err != nil {
		return nil, nil, err
	}
	interval := common.Interval(msg.Interval)
	if _, err := interval.Seconds(); err != nil {
		return nil, nil, err
	}

	ack, _ := json.Marshal(map[string]string{"type": "subscribed", "symbol": msg.Symbol, "interval": msg.Interval})
	return &plugin.Subscription{Pair: pair, Interval: interval}, ack, nil
}

func (MockExchange) RenderWSCandle(sub plugin.Subscription, cs common.Candlestick) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"type":     "candle",
		"symbol":   sub.Pair.String(),
		"interval": string(sub.Interval),
		"candle":   cs,
	})
}
