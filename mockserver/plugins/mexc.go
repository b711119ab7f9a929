package plugins

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/marianogappa/crypto-feeds/feed/common"
	"github.com/marianogappa/crypto-feeds/mockserver/plugin"
)

var mexcIntervals = map[common.Interval]string{
	common.Interval1m: "1m", common.Interval5m: "5m", common.Interval15m: "15m",
	common.Interval30m: "30m", common.Interval1h: "60m", common.Interval4h: "4h",
	common.Interval1d: "1d", common.Interval1M: "1M",
}

var mexcIntervalsReverse = reverse(mexcIntervals)

// Mexc imitates the MEXC API: /api/v3/klines with Binance-like 8-element
// array rows. REST only; the real candle stream is protobuf.
type Mexc struct{}

func (Mexc) Name() string        { return "mexc" }
func (Mexc) CandlesPath() string { return "/api/v3/klines" }
func (Mexc) WSPath() string      { return "" }

func (Mexc) ParseCandlesParams(r *http.Request) (plugin.Params, error) {
	pair, err := plugin.SplitConcatenatedSymbol(r.URL.Query().Get("symbol"))
	if err != nil {
		return plugin.Params{}, err
	}
	interval, ok := mexcIntervalsReverse[r.URL.Query().Get("interval")]
	if !ok {
		return plugin.Params{}, fmt.Errorf("invalid interval %q", r.URL.Query().Get("interval"))
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

func (Mexc) RenderCandles(_ plugin.Params, css []common.Candlestick) ([]byte, error) {
	rows := make([][]interface{}, len(css))
	for i, cs := range css {
		rows[i] = []interface{}{
			int64(cs.Timestamp) * 1000,
			dec(cs.OpenPrice), dec(cs.HighestPrice), dec(cs.LowestPrice), dec(cs.ClosePrice),
			dec(cs.Volume),
			int64(cs.Timestamp)*1000 + 60000,
			dec(cs.QuoteAssetVolume),
		}
	}
	return json.Marshal(rows)
}

func (Mexc) ErrorBody(statusCode int, msg string) []byte {
	bs, _ := json.Marshal(map[string]interface{}{"code": 700002, "msg": msg})
	return bs
}

func (Mexc) RateLimitBody() ([]byte, int) {
	bs, _ := json.Marshal(map[string]interface{}{"code": 429, "msg": "Too Many Requests"})
	return bs, http.StatusTooManyRequests
}

func (Mexc) ParseSubscription(raw []byte) (*plugin.Subscription, []byte, error) {
	return nil, nil, nil
}

func (Mexc) RenderWSCandle(sub plugin.Subscription, cs common.Candlestick) ([]byte, error) {
	return nil, fmt.Errorf("mexc mock has no WebSocket surface")
}
