package plugins

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/marianogappa/crypto-feeds/feed/common"
	"github.com/marianogappa/crypto-feeds/mockserver/plugin"
)

var okxBars = map[common.Interval]string{
	common.Interval1s: "1s", common.Interval1m: "1m", common.Interval3m: "3m",
	common.Interval5m: "5m", common.Interval15m: "15m", common.Interval30m: "30m",
	common.Interval1h: "1H", common.Interval2h: "2H", common.Interval4h: "4H",
	common.Interval6h: "6H", common.Interval12h: "12H", common.Interval1d: "1D",
	common.Interval3d: "3D", common.Interval1w: "1W", common.Interval1M: "1M",
}

var okxBarsReverse = reverse(okxBars)

// Okx imitates the OKX v5 API: /api/v5/market/candles with a {code, msg,
// data} envelope, newest-first string rows and the candle WebSocket channel.
type Okx struct{}

func (Okx) Name() string        { return "okx" }
func (Okx) CandlesPath() string { return "/api/v5/market/candles" }
func (Okx) WSPath() string      { return "/ws/v5/business" }

func (Okx) ParseCandlesParams(r *http.Request) (plugin.Params, error) {
	pair, err := plugin.SplitSeparatedSymbol(r.URL.Query().Get("instId"), "-")
	if err != nil {
		return plugin.Params{}, err
	}
	interval, ok := okxBarsReverse[r.URL.Query().Get("bar")]
	if !ok {
		return plugin.Params{}, fmt.Errorf("invalid bar %q", r.URL.Query().Get("bar"))
	}

	// OKX cursors are exclusive milliseconds: before means newer-than,
	// after means older-than.
	before, err := queryInt(r, "before")
	if err != nil {
		return plugin.Params{}, err
	}
	after, err := queryInt(r, "after")
	if err != nil {
		return plugin.Params{}, err
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		return plugin.Params{}, err
	}

	p := plugin.Params{Pair: pair, Interval: interval, Limit: limit}
	if before > 0 {
		p.StartTime = (before + 1) / 1000
	}
	if after > 0 {
		p.EndTime = (after - 1) / 1000
	}
	return p, nil
}

func okxRow(cs common.Candlestick) []string {
	return []string{
		fmt.Sprint(int64(cs.Timestamp) * 1000),
		dec(cs.OpenPrice), dec(cs.HighestPrice), dec(cs.LowestPrice), dec(cs.ClosePrice),
		dec(cs.Volume), dec(cs.QuoteAssetVolume), dec(cs.QuoteAssetVolume),
		"1",
	}
}

func (Okx) RenderCandles(_ plugin.Params, css []common.Candlestick) ([]byte, error) {
	rows := make([][]string, len(css))
	for i, cs := range css {
		rows[len(css)-1-i] = okxRow(cs)
	}
	return json.Marshal(map[string]interface{}{"code": "0", "msg": "", "data": rows})
}

func (Okx) ErrorBody(statusCode int, msg string) []byte {
	bs, _ := json.Marshal(map[string]interface{}{"code": "51000", "msg": msg, "data": []string{}})
	return bs
}

func (Okx) RateLimitBody() ([]byte, int) {
	bs, _ := json.Marshal(map[string]interface{}{"code": "50011", "msg": "Too Many Requests", "data": []string{}})
	return bs, http.StatusTooManyRequests
}

func (Okx) ParseSubscription(raw []byte) (*plugin.Subscription, []byte, error) {
	var msg struct {
		Op   string `json:"op"`
		Args []struct {
			Channel string `json:"channel"`
			InstID  string `json:"instId"`
		} `json:"args"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, nil, err
	}
	if msg.Op != "subscribe" || len(msg.Args) == 0 {
		return nil, nil, nil
	}

	bar := strings.TrimPrefix(msg.Args[0].Channel, "candle")
	interval, ok := okxBarsReverse[bar]
	if !ok {
		return nil, nil, fmt.Errorf("invalid channel %q", msg.Args[0].Channel)
	}
	pair, err := plugin.SplitSeparatedSymbol(msg.Args[0].InstID, "-")
	if err != nil {
		return nil, nil, err
	}

	ack, _ := json.Marshal(map[string]interface{}{
		"event": "subscribe",
		"arg":   map[string]string{"channel": msg.Args[0].Channel, "instId": msg.Args[0].InstID},
	})
	return &plugin.Subscription{Pair: pair, Interval: interval}, ack, nil
}

func (Okx) RenderWSCandle(sub plugin.Subscription, cs common.Candlestick) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"arg": map[string]string{
			"channel": "candle" + okxBars[sub.Interval],
			"instId":  sub.Pair.Base + "-" + sub.Pair.Quote,
		},
		"data": [][]string{okxRow(cs)},
	})
}
