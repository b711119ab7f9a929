package plugins

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/marianogappa/crypto-feeds/feed/common"
	"github.com/marianogappa/crypto-feeds/mockserver/plugin"
)

var bybitIntervals = map[common.Interval]string{
	common.Interval1m: "1", common.Interval3m: "3", common.Interval5m: "5",
	common.Interval15m: "15", common.Interval30m: "30", common.Interval1h: "60",
	common.Interval2h: "120", common.Interval4h: "240", common.Interval6h: "360",
	common.Interval12h: "720", common.Interval1d: "D", common.Interval1w: "W",
	common.Interval1M: "M",
}

var bybitIntervalsReverse = reverse(bybitIntervals)

// Bybit imitates the Bybit v5 API: /v5/market/kline with a {retCode, retMsg,
// result} envelope, newest-first string rows and the kline WebSocket topic.
type Bybit struct{}

func (Bybit) Name() string        { return "bybit" }
func (Bybit) CandlesPath() string { return "/v5/market/kline" }
func (Bybit) WSPath() string      { return "/v5/public/spot" }

func (Bybit) ParseCandlesParams(r *http.Request) (plugin.Params, error) {
	pair, err := plugin.SplitConcatenatedSymbol(r.URL.Query().Get("symbol"))
	if err != nil {
		return plugin.Params{}, err
	}
	interval, ok := bybitIntervalsReverse[r.URL.Query().Get("interval")]
	if !ok {
		return plugin.Params{}, fmt.Errorf("invalid interval %q", r.URL.Query().Get("interval"))
	}
	start, err := queryMillis(r, "start")
	if err != nil {
		return plugin.Params{}, err
	}
	end, err := queryMillis(r, "end")
	if err != nil {
		return plugin.Params{}, err
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		return plugin.Params{}, err
	}
	return plugin.Params{Pair: pair, Interval: interval, StartTime: start, EndTime: end, Limit: limit}, nil
}

func (Bybit) RenderCandles(_ plugin.Params, css []common.Candlestick) ([]byte, error) {
	rows := make([][]string, len(css))
	for i, cs := range css {
		rows[len(css)-1-i] = []string{
			fmt.Sprint(int64(cs.Timestamp) * 1000),
			dec(cs.OpenPrice), dec(cs.HighestPrice), dec(cs.LowestPrice), dec(cs.ClosePrice),
			dec(cs.Volume), dec(cs.QuoteAssetVolume),
		}
	}
	return json.Marshal(map[string]interface{}{
		"retCode": 0,
		"retMsg":  "OK",
		"result":  map[string]interface{}{"category": "spot", "list": rows},
	})
}

func (Bybit) ErrorBody(statusCode int, msg string) []byte {
	bs, _ := json.Marshal(map[string]interface{}{"retCode": 10001, "retMsg": msg})
	return bs
}

func (Bybit) RateLimitBody() ([]byte, int) {
	bs, _ := json.Marshal(map[string]interface{}{"retCode": 10006, "retMsg": "Too many visits!"})
	return bs, http.StatusTooManyRequests
}

func (Bybit) ParseSubscription(raw []byte) (*plugin.Subscription, []byte, error) {
	var msg struct {
		Op   string   `json:"op"`
		Args []string `json:"args"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, nil, err
	}
	if msg.Op != "subscribe" || len(msg.Args) == 0 {
		return nil, nil, nil
	}

	// Topics look like "kline.1.BTCUSDT".
	parts := strings.SplitN(msg.Args[0], ".", 3)
	if len(parts) != 3 || parts[0] != "kline" {
		return nil, nil, fmt.Errorf("invalid topic %q", msg.Args[0])
	}
	interval, ok := bybitIntervalsReverse[parts[1]]
	if !ok {
		return nil, nil, fmt.Errorf("invalid topic interval %q", parts[1])
	}
	pair, err := plugin.SplitConcatenatedSymbol(parts[2])
	if err != nil {
		return nil, nil, err
	}

	ack, _ := json.Marshal(map[string]interface{}{"success": true, "op": "subscribe"})
	return &plugin.Subscription{Pair: pair, Interval: interval}, ack, nil
}

func (Bybit) RenderWSCandle(sub plugin.Subscription, cs common.Candlestick) ([]byte, error) {
	native := bybitIntervals[sub.Interval]
	symbol := strings.ToUpper(sub.Pair.Base + sub.Pair.Quote)
	return json.Marshal(map[string]interface{}{
		"topic": fmt.Sprintf("kline.%v.%v", native, symbol),
		"type":  "snapshot",
		"ts":    int64(cs.Timestamp)*1000 + 500,
		"data": []map[string]interface{}{{
			"start": int64(cs.Timestamp) * 1000, "end": int64(cs.Timestamp)*1000 + 59999,
			"interval": native,
			"open":     dec(cs.OpenPrice), "close": dec(cs.ClosePrice),
			"high": dec(cs.HighestPrice), "low": dec(cs.LowestPrice),
			"volume": dec(cs.Volume), "turnover": dec(cs.QuoteAssetVolume),
			"confirm": true, "timestamp": int64(cs.Timestamp)*1000 + 500,
		}},
	})
}
