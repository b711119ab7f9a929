package okx

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/marianogappa/crypto-feeds/feed/adapter"
	"github.com/marianogappa/crypto-feeds/feed/common"
)

// MaxLimit is the maximum number of candlesticks that can be requested per
// API call, as documented in the OKX API.
const MaxLimit = 300

// RESTParams maps canonical arguments onto the OKX candles query, e.g.
// /api/v5/market/candles?instId=BTC-USDT&bar=1m&limit=300
//
// OKX paginates with exclusive millisecond cursors: "before" returns records
// newer than the cursor and "after" returns records older than it.
func (e *Okx) RESTParams(pair common.TradingPair, interval common.Interval, opts adapter.FetchOptions) (url.Values, error) {
	bar, ok := nativeBars[interval]
	if !ok {
		return nil, fmt.Errorf("%w: %q on %v", common.ErrUnsupportedInterval, interval, Name)
	}

	q := url.Values{}
	q.Add("instId", e.TradingPairFormat(pair))
	q.Add("bar", bar)
	limit := opts.Limit
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}
	q.Add("limit", strconv.Itoa(limit))
	if opts.StartTime != 0 {
		q.Add("before", strconv.FormatInt(int64(opts.StartTime)*1000-1, 10))
	}
	if opts.EndTime != 0 {
		q.Add("after", strconv.FormatInt(int64(opts.EndTime)*1000+1, 10))
	}
	return q, nil
}

// OKX candles response format (newest first):
//
//	{
//	  "code": "0",
//	  "msg": "",
//	  "data": [
//	    [
//	      "1597026383085", // Open time (ms)
//	      "8533.02",       // Open
//	      "8553.74",       // High
//	      "8527.17",       // Low
//	      "8548.26",       // Close
//	      "45247",         // Volume (base ccy)
//	      "529.5858061",   // Volume (quote ccy)
//	      "529.5858061",   // volCcyQuote
//	      "0"              // Confirm flag
//	    ]
//	  ]
//	}
type restResponse struct {
	Code string     `json:"code"`
	Msg  string     `json:"msg"`
	Data [][]string `json:"data"`
}

func (e *Okx) ParseRESTResponse(raw []byte) ([]common.Candlestick, error) {
	var resp restResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidJSONResponse, err)
	}
	if resp.Code != "0" {
		return nil, fmt.Errorf("%w: code %v: %v", common.ErrInvalidJSONResponse, resp.Code, resp.Msg)
	}

	css, err := candlesticksFromRows(resp.Data)
	if err != nil {
		return nil, err
	}
	sort.Slice(css, func(i, j int) bool { return css[i].Timestamp < css[j].Timestamp })
	return css, nil
}

func candlesticksFromRows(rows [][]string) ([]common.Candlestick, error) {
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
			OpenPrice:        common.JSONFloat64(fields[0]),
			HighestPrice:     common.JSONFloat64(fields[1]),
			LowestPrice:      common.JSONFloat64(fields[2]),
			ClosePrice:       common.JSONFloat64(fields[3]),
			Volume:           common.JSONFloat64(fields[4]),
			QuoteAssetVolume: common.JSONFloat64(fields[5]),
		}
	}
	return css, nil
}
