package plugins

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/marianogappa/crypto-feeds/feed/common"
	"github.com/marianogappa/crypto-feeds/mockserver/plugin"
)

var gateIntervals = map[common.Interval]bool{
	common.Interval1m: true, common.Interval5m: true, common.Interval15m: true,
	common.Interval30m: true, common.Interval1h: true, common.Interval4h: true,
	common.Interval8h: true, common.Interval1d: true,
}

// Gate imitates the Gate.io v4 API: /api/v4/spot/candlesticks with ascending
// string rows in quote-volume-close-high-low-open-base-volume order. REST
// only.
type Gate struct{}

func (Gate) Name() string        { return "gate" }
func (Gate) CandlesPath() string { return "/api/v4/spot/candlesticks" }
func (Gate) WSPath() string      { return "" }

func (Gate) ParseCandlesParams(r *http.Request) (plugin.Params, error) {
	pair, err := plugin.SplitSeparatedSymbol(r.URL.Query().Get("currency_pair"), "_")
	if err != nil {
		return plugin.Params{}, err
	}
	interval := common.Interval(r.URL.Query().Get("interval"))
	if !gateIntervals[interval] {
		return plugin.Params{}, fmt.Errorf("invalid interval %q", interval)
	}
	start, err := queryInt(r, "from")
	if err != nil {
		return plugin.Params{}, err
	}
	end, err := queryInt(r, "to")
	if err != nil {
		return plugin.Params{}, err
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		return plugin.Params{}, err
	}
	return plugin.Params{Pair: pair, Interval: interval, StartTime: start, EndTime: end, Limit: limit}, nil
}

func (Gate) RenderCandles(_ plugin.Params, css []common.Candlestick) ([]byte, error) {
	rows := make([][]string, len(css))
	for i, cs := range css {
		rows[i] = []string{
			fmt.Sprint(cs.Timestamp),
			dec(cs.QuoteAssetVolume),
			dec(cs.ClosePrice), dec(cs.HighestPrice), dec(cs.LowestPrice), dec(cs.OpenPrice),
			dec(cs.Volume),
			"true",
		}
	}
	return json.Marshal(rows)
}

func (Gate) ErrorBody(statusCode int, msg string) []byte {
	bs, _ := json.Marshal(map[string]string{"label": "INVALID_PARAM_VALUE", "message": msg})
	return bs
}

func (Gate) RateLimitBody() ([]byte, int) {
	bs, _ := json.Marshal(map[string]string{"label": "TOO_MANY_REQUESTS", "message": "Request rate limit exceeded"})
	return bs, http.StatusTooManyRequests
}

func (Gate) ParseSubscription(raw []byte) (*plugin.Subscription, []byte, error) {
	return nil, nil, nil
}

func (Gate) RenderWSCandle(sub plugin.Subscription, cs common.Candlestick) ([]byte, error) {
	return nil, fmt.Errorf("gate mock has no WebSocket surface")
}
