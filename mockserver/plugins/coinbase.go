package plugins

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/marianogappa/crypto-feeds/feed/common"
	"github.com/marianogappa/crypto-feeds/mockserver/plugin"
)

var coinbaseGranularities = map[common.Interval]string{
	common.Interval1m: "ONE_MINUTE", common.Interval5m: "FIVE_MINUTE",
	common.Interval15m: "FIFTEEN_MINUTE", common.Interval30m: "THIRTY_MINUTE",
	common.Interval1h: "ONE_HOUR", common.Interval2h: "TWO_HOUR",
	common.Interval6h: "SIX_HOUR", common.Interval1d: "ONE_DAY",
}

var coinbaseGranularitiesReverse = reverse(coinbaseGranularities)

// Coinbase imitates the Coinbase Advanced Trade API: a product-scoped candles
// route returning {candles: [...]} objects with seconds-string fields, newest
// first. REST only.
type Coinbase struct{}

func (Coinbase) Name() string { return "coinbase" }
func (Coinbase) CandlesPath() string {
	return "/api/v3/brokerage/market/products/{product_id}/candles"
}
func (Coinbase) WSPath() string { return "" }

func (Coinbase) ParseCandlesParams(r *http.Request) (plugin.Params, error) {
	pair, err := plugin.SplitSeparatedSymbol(mux.Vars(r)["product_id"], "-")
	if err != nil {
		return plugin.Params{}, err
	}
	interval, ok := coinbaseGranularitiesReverse[r.URL.Query().Get("granularity")]
	if !ok {
		return plugin.Params{}, fmt.Errorf("invalid granularity %q", r.URL.Query().Get("granularity"))
	}
	start, err := queryInt(r, "start")
	if err != nil {
		return plugin.Params{}, err
	}
	end, err := queryInt(r, "end")
	if err != nil {
		return plugin.Params{}, err
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		return plugin.Params{}, err
	}
	return plugin.Params{Pair: pair, Interval: interval, StartTime: start, EndTime: end, Limit: limit}, nil
}

func (Coinbase) RenderCandles(_ plugin.Params, css []common.Candlestick) ([]byte, error) {
	rows := make([]map[string]string, len(css))
	for i, cs := range css {
		rows[len(css)-1-i] = map[string]string{
			"start":  fmt.Sprint(cs.Timestamp),
			"open":   dec(cs.OpenPrice),
			"high":   dec(cs.HighestPrice),
			"low":    dec(cs.LowestPrice),
			"close":  dec(cs.ClosePrice),
			"volume": dec(cs.Volume),
		}
	}
	return json.Marshal(map[string]interface{}{"candles": rows})
}

func (Coinbase) ErrorBody(statusCode int, msg string) []byte {
	bs, _ := json.Marshal(map[string]string{"error": "INVALID_ARGUMENT", "error_details": msg, "message": msg})
	return bs
}

func (Coinbase) RateLimitBody() ([]byte, int) {
	bs, _ := json.Marshal(map[string]string{"error": "RATE_LIMIT_EXCEEDED", "message": "rate limit exceeded"})
	return bs, http.StatusTooManyRequests
}

func (Coinbase) ParseSubscription(raw []byte) (*plugin.Subscription, []byte, error) {
	return nil, nil, nil
}

func (Coinbase) RenderWSCandle(sub plugin.Subscription, cs common.Candlestick) ([]byte, error) {
	return nil, fmt.Errorf("coinbase mock has no WebSocket surface")
}
