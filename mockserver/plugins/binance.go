package plugins

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/marianogappa/crypto-feeds/feed/common"
	"github.com/marianogappa/crypto-feeds/mockserver/plugin"
)

// Binance imitates the Binance spot API: /api/v3/klines with 12-element
// array rows and the /ws kline stream.
type Binance struct{}

func (Binance) Name() string        { return "binance" }
func (Binance) CandlesPath() string { return "/api/v3/klines" }
func (Binance) WSPath() string      { return "/ws" }

func (Binance) ParseCandlesParams(r *http.Request) (plugin.Params, error) {
	pair, err := plugin.SplitConcatenatedSymbol(r.URL.Query().Get("symbol"))
	if err != nil {
		return plugin.Params{}, err
	}
	interval := common.Interval(r.URL.Query().Get("interval"))
	if _, err := interval.Seconds(); err != nil {
		return plugin.Params{}, err
	}
	start, err := queryMillis(r, "startTime")
	if err != nil {
		return plugin.Params{}, err
	}
	end, err := queryMillis(r, "endTime")
	if err != nil {
		return plugin.Params{}, err
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		return plugin.Params{}, err
	}
	return plugin.Params{Pair: pair, Interval: interval, StartTime: start, EndTime: end, Limit: limit}, nil
}

func (Binance) RenderCandles(_ plugin.Params, css []common.Candlestick) ([]byte, error) {
	rows := make([][]interface{}, len(css))
	for i, cs := range css {
		rows[i] = []interface{}{
			int64(cs.Timestamp) * 1000,
			dec(cs.OpenPrice), dec(cs.HighestPrice), dec(cs.LowestPrice), dec(cs.ClosePrice),
			dec(cs.Volume),
			int64(cs.Timestamp)*1000 + 59999,
			dec(cs.QuoteAssetVolume),
			cs.TradeCount,
			dec(cs.TakerBuyBaseVolume), dec(cs.TakerBuyQuoteVolume),
			"0",
		}
	}
	return json.Marshal(rows)
}

func (Binance) ErrorBody(statusCode int, msg string) []byte {
	bs, _ := json.Marshal(map[string]interface{}{"code": -1100, "msg": msg})
	return bs
}

func (Binance) RateLimitBody() ([]byte, int) {
	bs, _ := json.Marshal(map[string]interface{}{"code": -1003, "msg": "Too many requests."})
	return bs, http.StatusTooManyRequests
}

func (Binance) ParseSubscription(raw []byte) (*plugin.Subscription, []byte, error) {
	var msg struct {
		Method string   `json:"method"`
		Params []string `json:"params"`
		ID     int      `json:"id"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, nil, err
	}
	if msg.Method != "SUBSCRIBE" || len(msg.Params) == 0 {
		return nil, nil, nil
	}

	// Streams look like "btcusdt@kline_1m".
	parts := strings.SplitN(msg.Params[0], "@kline_", 2)
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("invalid stream name %q", msg.Params[0])
	}
	pair, err := plugin.SplitConcatenatedSymbol(parts[0])
	if err != nil {
		return nil, nil, err
	}
	interval := common.Interval(parts[1])
	if _, err := interval.Seconds(); err != nil {
		return nil, nil, err
	}

	ack, _ := json.Marshal(map[string]interface{}{"result": nil, "id": msg.ID})
	return &plugin.Subscription{Pair: pair, Interval: interval}, ack, nil
}

func (Binance) RenderWSCandle(sub plugin.Subscription, cs common.Candlestick) ([]byte, error) {
	symbol := strings.ToUpper(sub.Pair.Base + sub.Pair.Quote)
	return json.Marshal(map[string]interface{}{
		"e": "kline",
		"E": int64(cs.Timestamp)*1000 + 500,
		"s": symbol,
		"k": map[string]interface{}{
			"t": int64(cs.Timestamp) * 1000,
			"T": int64(cs.Timestamp)*1000 + 59999,
			"s": symbol,
			"i": string(sub.Interval),
			"o": dec(cs.OpenPrice), "c": dec(cs.ClosePrice), "h": dec(cs.HighestPrice), "l": dec(cs.LowestPrice),
			"v": dec(cs.Volume), "n": cs.TradeCount, "x": true,
			"q": dec(cs.QuoteAssetVolume), "V": dec(cs.TakerBuyBaseVolume), "Q": dec(cs.TakerBuyQuoteVolume),
		},
	})
}
