package mexc

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/marianogappa/crypto-feeds/feed/adapter"
	"github.com/marianogappa/crypto-feeds/feed/common"
)

// MaxLimit is the maximum number of candlesticks that can be requested per
// API call, as documented in the MEXC API.
const MaxLimit = 1000

// RESTParams maps canonical arguments onto the MEXC klines query, e.g.
// /api/v3/klines?symbol=BTCUSDT&interval=60m&limit=1000
func (e *Mexc) RESTParams(pair common.TradingPair, interval common.Interval, opts adapter.FetchOptions) (url.Values, error) {
	native, ok := nativeIntervals[interval]
	if !ok {
		return nil, fmt.Errorf("%w: %q on %v", common.ErrUnsupportedInterval, interval, Name)
	}

	q := url.Values{}
	q.Add("symbol", e.TradingPairFormat(pair))
	q.Add("interval", native)
	limit := opts.Limit
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}
	q.Add("limit", strconv.Itoa(limit))
	if opts.StartTime != 0 {
		q.Add("startTime", strconv.FormatInt(int64(opts.StartTime)*1000, 10))
	}
	if opts.EndTime != 0 {
		q.Add("endTime", strconv.FormatInt(int64(opts.EndTime)*1000, 10))
	}
	return q, nil
}

// MEXC klines response format, a Binance-like array without trade counts or
// taker volumes:
//
//	[
//	  [
//	    1640804880000,      // Open time (ms)
//	    "47482.36",         // Open
//	    "47482.36",         // High
//	    "47416.57",         // Low
//	    "47429.28",         // Close
//	    "5.05127",          // Volume
//	    1640804940000,      // Close time (ms)
//	    "239585.43"         // Quote asset volume
//	  ]
//	]
func (e *Mexc) ParseRESTResponse(raw []byte) ([]common.Candlestick, error) {
	var rows [][]interface{}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidJSONResponse, err)
	}

	css := make([]common.Candlestick, len(rows))
	for i, row := range rows {
		if len(row) != 8 {
			return nil, fmt.Errorf("%w: candlestick %v has len != 8", common.ErrInvalidJSONResponse, i)
		}
		openTime, ok := row[0].(float64)
		if !ok {
			return nil, fmt.Errorf("%w: candlestick %v has non-numeric open time", common.ErrInvalidJSONResponse, i)
		}
		ts, err := common.ParseTimestamp(int64(openTime))
		if err != nil {
			return nil, err
		}
		fields := [6]float64{}
		for j, idx := range []int{1, 2, 3, 4, 5, 7} {
			s, ok := row[idx].(string)
			if !ok {
				return nil, fmt.Errorf("%w: candlestick %v has non-string field %v", common.ErrInvalidJSONResponse, i, idx)
			}
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
