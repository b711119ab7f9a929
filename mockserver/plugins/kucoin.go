package plugins

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/marianogappa/crypto-feeds/feed/common"
	"github.com/marianogappa/crypto-feeds/mockserver/plugin"
)

var kucoinTypes = map[common.Interval]string{
	common.Interval1m: "1min", common.Interval3m: "3min", common.Interval5m: "5min",
	common.Interval15m: "15min", common.Interval30m: "30min", common.Interval1h: "1hour",
	common.Interval2h: "2hour", common.Interval4h: "4hour", common.Interval6h: "6hour",
	common.Interval8h: "8hour", common.Interval12h: "12hour", common.Interval1d: "1day",
	common.Interval1w: "1week",
}

var kucoinTypesReverse = reverse(kucoinTypes)

// Kucoin imitates the KuCoin API: /api/v1/market/candles with a {code, data}
// envelope, newest-first seconds-string rows in open-close-high-low order and
// the candles WebSocket topic.
type Kucoin struct{}

func (Kucoin) Name() string        { return "kucoin" }
func (Kucoin) CandlesPath() string { return "/api/v1/market/candles" }
func (Kucoin) WSPath() string      { return "/" }

func (Kucoin) ParseCandlesParams(r *http.Request) (plugin.Params, error) {
	pair, err := plugin.SplitSeparatedSymbol(r.URL.Query().Get("symbol"), "-")
	if err != nil {
		return plugin.Params{}, err
	}
	interval, ok := kucoinTypesReverse[r.URL.Query().Get("type")]
	if !ok {
		return plugin.Params{}, fmt.Errorf("invalid type %q", r.URL.Query().Get("type"))
	}
	start, err := queryInt(r, "startAt")
	if err != nil {
		return plugin.Params{}, err
	}
	end, err := queryInt(r, "endAt")
	if err != nil {
		return plugin.Params{}, err
	}
	return plugin.Params{Pair: pair, Interval: interval, StartTime: start, EndTime: end}, nil
}

func kucoinRow(cs common.Candlestick) []string {
	return []string{
		fmt.Sprint(cs.Timestamp),
		dec(cs.OpenPrice), dec(cs.ClosePrice), dec(cs.HighestPrice), dec(cs.LowestPrice),
		dec(cs.Volume), dec(cs.QuoteAssetVolume),
	}
}

func (Kucoin) RenderCandles(_ plugin.Params, css []common.Candlestick) ([]byte, error) {
	rows := make([][]string, len(css))
	for i, cs := range css {
		rows[len(css)-1-i] = kucoinRow(cs)
	}
	return json.Marshal(map[string]interface{}{"code": "200000", "data": rows})
}

func (Kucoin) ErrorBody(statusCode int, msg string) []byte {
	bs, _ := json.Marshal(map[string]interface{}{"code": "400100", "msg": msg})
	return bs
}

func (Kucoin) RateLimitBody() ([]byte, int) {
	bs, _ := json.Marshal(map[string]interface{}{"code": "429000", "msg": "Too Many Requests"})
	return bs, http.StatusTooManyRequests
}

func (Kucoin) ParseSubscription(raw []byte) (*plugin.Subscription, []byte, error) {
	var msg struct {
		ID    interface{} `json:"id"`
		Type  string      `json:"type"`
		Topic string      `json:"topic"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, nil, err
	}
	if msg.Type != "subscribe" {
		return nil, nil, nil
	}

	// Topics look like "/market/candles:BTC-USDT_1min".
	rest := strings.TrimPrefix(msg.Topic, "/market/candles:")
	parts := strings.SplitN(rest, "_", 2)
	if rest == msg.Topic || len(parts) != 2 {
		return nil, nil, fmt.Errorf("invalid topic %q", msg.Topic)
	}
	pair, err := plugin.SplitSeparatedSymbol(parts[0], "-")
	if err != nil {
		return nil, nil, err
	}
	interval, ok := kucoinTypesReverse[parts[1]]
	if !ok {
		return nil, nil, fmt.Errorf("invalid topic interval %q", parts[1])
	}

	ack, _ := json.Marshal(map[string]interface{}{"id": fmt.Sprint(msg.ID), "type": "ack"})
	return &plugin.Subscription{Pair: pair, Interval: interval}, ack, nil
}

func (Kucoin) RenderWSCandle(sub plugin.Subscription, cs common.Candlestick) ([]byte, error) {
	symbol := sub.Pair.Base + "-" + sub.Pair.Quote
	return json.Marshal(map[string]interface{}{
		"type":    "message",
		"topic":   fmt.Sprintf("/market/candles:%v_%v", symbol, kucoinTypes[sub.Interval]),
		"subject": "trade.candles.update",
		"data": map[string]interface{}{
			"symbol":  symbol,
			"candles": kucoinRow(cs),
			"time":    int64(cs.Timestamp) * 1_000_000_000,
		},
	})
}
