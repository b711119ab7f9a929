package bybit

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
// API call, as documented in the Bybit v5 API.
const MaxLimit = 1000

// RESTParams maps canonical arguments onto the Bybit kline query, e.g.
// /v5/market/kline?category=spot&symbol=BTCUSDT&interval=1&limit=1000
func (e *Bybit) RESTParams(pair common.TradingPair, interval common.Interval, opts adapter.FetchOptions) (url.Values, error) {
	native, ok := nativeIntervals[interval]
	if !ok {
		return nil, fmt.Errorf("%w: %q on %v", common.ErrUnsupportedInterval, interval, Name)
	}

	q := url.Values{}
	q.Add("category", "spot")
	q.Add("symbol", e.TradingPairFormat(pair))
	q.Add("interval", native)
	limit := opts.Limit
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}
	q.Add("limit", strconv.Itoa(limit))
	if opts.StartTime != 0 {
		q.Add("start", strconv.FormatInt(int64(opts.StartTime)*1000, 10))
	}
	if opts.EndTime != 0 {
		q.Add("end", strconv.FormatInt(int64(opts.EndTime)*1000, 10))
	}
	return q, nil
}

// Bybit kline response format (newest first):
//
//	{
//	  "retCode": 0,
//	  "retMsg": "OK",
//	  "result": {
//	    "category": "spot",
//	    "symbol": "BTCUSDT",
//	    "list": [
//	      [
//	        "1670608800000", // Start time (ms)
//	        "17071",         // Open
//	        "17073",         // High
//	        "17027",         // Low
//	        "17055.5",       // Close
//	        "268611",        // Volume
//	        "15.74462667"    // Turnover (quote)
//	      ]
//	    ]
//	  }
//	}
type restResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		Category string     `json:"category"`
		Symbol   string     `json:"symbol"`
		List     [][]string `json:"list"`
	} `json:"result"`
}

func (e *Bybit) ParseRESTResponse(raw []byte) ([]common.Candlestick, error) {
	var resp restResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidJSONResponse, err)
	}
	if resp.RetCode != 0 {
		return nil, fmt.Errorf("%w: retCode %v: %v", common.ErrInvalidJSONResponse, resp.RetCode, resp.RetMsg)
	}

	css := make([]common.Candlestick, len(resp.Result.List))
	for i, row := range resp.Result.List {
		if len(row) != 7 {
			return nil, fmt.Errorf("%w: candlestick %v has len != 7", common.ErrInvalidJSONResponse, i)
		}
		cs, err := candlestickFromRow(row)
		if err != nil {
			return nil, err
		}
		ts, err := common.ParseTimestamp(row[0])
		if err != nil {
			return nil, err
		}
		cs.Timestamp = ts
		css[i] = cs
	}
	sort.Slice(css, func(i, j int) bool { return css[i].Timestamp < css[j].Timestamp })
	return css, nil
}

// candlestickFromRow parses the [_, o, h, l, c, vol, turnover] tail of a row;
// the caller fills Timestamp.
func candlestickFromRow(row []string) (common.Candlestick, error) {
	fields := [6]float64{}
	for i, s := range row[1:7] {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return common.Candlestick{}, fmt.Errorf("%w: unparseable decimal %q", common.ErrInvalidJSONResponse, s)
		}
		fields[i] = f
	}
	return common.Candlestick{
		OpenPrice:        common.JSONFloat64(fields[0]),
		HighestPrice:     common.JSONFloat64(fields[1]),
		LowestPrice:      common.JSONFloat64(fields[2]),
		ClosePrice:       common.JSONFloat64(fields[3]),
		Volume:           common.JSONFloat64(fields[4]),
		QuoteAssetVolume: common.JSONFloat64(fields[5]),
	}, nil
}
