package plugins

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/marianogappa/crypto-feeds/feed/common"
	"github.com/marianogappa/crypto-feeds/mockserver/plugin"
)

var krakenMinutes = map[common.Interval]string{
	common.Interval1m: "1", common.Interval5m: "5", common.Interval15m: "15",
	common.Interval30m: "30", common.Interval1h: "60", common.Interval4h: "240",
	common.Interval1d: "1440", common.Interval1w: "10080",
}

var krakenMinutesReverse = reverse(krakenMinutes)

// Kraken imitates the Kraken public API: /0/public/OHLC with an {error,
// result} envelope keyed by pair name, ascending rows carrying a vwap column.
// REST only.
type Kraken struct{}

func (Kraken) Name() string        { return "kraken" }
func (Kraken) CandlesPath() string { return "/0/public/OHLC" }
func (Kraken) WSPath() string      { return "" }

func (Kraken) ParseCandlesParams(r *http.Request) (plugin.Params, error) {
	pair, err := plugin.SplitConcatenatedSymbol(r.URL.Query().Get("pair"))
	if err != nil {
		return plugin.Params{}, err
	}
	interval, ok := krakenMinutesReverse[r.URL.Query().Get("interval")]
	if !ok {
		return plugin.Params{}, fmt.Errorf("invalid interval %q", r.URL.Query().Get("interval"))
	}
	// The since cursor is exclusive.
	since, err := queryInt(r, "since")
	if err != nil {
		return plugin.Params{}, err
	}
	p := plugin.Params{Pair: pair, Interval: interval}
	if since > 0 {
		p.StartTime = since + 1
	}
	return p, nil
}

func (Kraken) RenderCandles(p plugin.Params, css []common.Candlestick) ([]byte, error) {
	rows := make([][]interface{}, len(css))
	last := 0
	for i, cs := range css {
		vwap := (float64(cs.HighestPrice) + float64(cs.LowestPrice) + float64(cs.ClosePrice)) / 3
		rows[i] = []interface{}{
			cs.Timestamp,
			dec(cs.OpenPrice), dec(cs.HighestPrice), dec(cs.LowestPrice), dec(cs.ClosePrice),
			dec(common.JSONFloat64(vwap)), dec(cs.Volume),
			cs.TradeCount,
		}
		last = cs.Timestamp
	}
	symbol := strings.ToUpper(p.Pair.Base + p.Pair.Quote)
	return json.Marshal(map[string]interface{}{
		"error":  []string{},
		"result": map[string]interface{}{symbol: rows, "last": last},
	})
}

func (Kraken) ErrorBody(statusCode int, msg string) []byte {
	bs, _ := json.Marshal(map[string]interface{}{"error": []string{"EGeneral:Invalid arguments: " + msg}})
	return bs
}

func (Kraken) RateLimitBody() ([]byte, int) {
	bs, _ := json.Marshal(map[string]interface{}{"error": []string{"EAPI:Rate limit exceeded"}})
	return bs, http.StatusTooManyRequests
}

func (Kraken) ParseSubscription(raw []byte) (*plugin.Subscription, []byte, error) {
	return nil, nil, nil
}

func (Kraken) RenderWSCandle(sub plugin.Subscription, cs common.Candlestick) ([]byte, error) {
	return nil, fmt.Errorf("kraken mock has no WebSocket surface")
}
