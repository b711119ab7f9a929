package gate

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/marianogappa/crypto-feeds/feed/adapter"
	"github.com/marianogappa/crypto-feeds/feed/common"
)

// MaxLimit is the maximum number of candlesticks that can be requested per
// API call, as documented in the Gate.io v4 API.
const MaxLimit = 1000

// RESTParams maps canonical arguments onto the Gate candlesticks query, e.g.
// /api/v4/spot/candlesticks?currency_pair=BTC_USDT&interval=1m&from=1642329924&to=1642419924
//
// Gate rejects requests carrying limit together with from/to, so limit is
// only sent on unbounded requests.
func (e *Gate) RESTParams(pair common.TradingPair, interval common.Interval, opts adapter.FetchOptions) (url.Values, error) {
	if _, ok := e.Intervals()[interval]; !ok {
		return nil, fmt.Errorf("%w: %q on %v", common.ErrUnsupportedInterval, interval, Name)
	}

	q := url.Values{}
	q.Add("currency_pair", e.TradingPairFormat(pair))
	q.Add("interval", string(interval))
	if opts.StartTime != 0 {
		q.Add("from", strconv.Itoa(opts.StartTime))
	}
	if opts.EndTime != 0 {
		q.Add("to", strconv.Itoa(opts.EndTime))
	}
	if opts.StartTime == 0 && opts.EndTime == 0 {
		limit := opts.Limit
		if limit <= 0 || limit > MaxLimit {
			limit = MaxLimit
		}
		q.Add("limit", strconv.Itoa(limit))
	}
	return q, nil
}

// Gate candlesticks response format (ascending, timestamps in seconds, quote
// volume before prices, close-high-low-open order):
//
//	[
//	  [
//	    "1642329924",       // Start time (s)
//	    "91591841.92",      // Quote volume
//	    "43061.48",         // Close
//	    "43099.24",         // High
//	    "42969.39",         // Low
//	    "43063.17",         // Open
//	    "2128.75",          // Base volume
//	    "true"              // Window closed
//	  ]
//	]
func (e *Gate) ParseRESTResponse(raw []byte) ([]common.Candlestick, error) {
	var rows [][]string
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidJSONResponse, err)
	}

	css := make([]common.Candlestick, len(rows))
	for i, row := range rows {
		if len(row) < 7 {
			return nil, fmt.Errorf("%w: candlestick %v has len < 7", common.ErrInvalidJSONResponse, i)
		}
		ts, err := common.ParseTimestamp(row[0])
		if err != nil {
			return nil, err
		}
		fields := [6]float64{}
		for j, s := range row[1:7] {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: unparseable decimal %q", common.ErrInvalidJSONResponse, s)
			}
			fields[j] = f
		}
		css[i] = common.Candlestick{
			Timestamp:        ts,
			QuoteAssetVolume: common.JSONFloat64(fields[0]),
			ClosePrice:       common.JSONFloat64(fields[1]),
			HighestPrice:     common.JSONFloat64(fields[2]),
			LowestPrice:      common.JSONFloat64(fields[3]),
			OpenPrice:        common.JSONFloat64(fields[4]),
			Volume:           common.JSONFloat64(fields[5]),
		}
	}
	return css, nil
}
