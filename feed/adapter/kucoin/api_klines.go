package kucoin

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/marianogappa/crypto-feeds/feed/adapter"
	"github.com/marianogappa/crypto-feeds/feed/common"
)

// MaxLimit is the maximum number of candlesticks returned per API call, as
// documented in the KuCoin API. The endpoint has no limit parameter; windows
// are bounded with startAt/endAt instead.
const MaxLimit = 1500

// RESTParams maps canonical arguments onto the KuCoin candles query, e.g.
// /api/v1/market/candles?type=1min&symbol=BTC-USDT&startAt=1566703297&endAt=1566789757
func (e *Kucoin) RESTParams(pair common.TradingPair, interval common.Interval, opts adapter.FetchOptions) (url.Values, error) {
	native, ok := nativeTypes[interval]
	if !ok {
		return nil, fmt.Errorf("%w: %q on %v", common.ErrUnsupportedInterval, interval, Name)
	}

	q := url.Values{}
	q.Add("symbol", e.TradingPairFormat(pair))
	q.Add("type", native)
	if opts.StartTime != 0 {
		q.Add("startAt", strconv.Itoa(opts.StartTime))
	}
	if opts.EndTime != 0 {
		q.Add("endAt", strconv.Itoa(opts.EndTime))
	}
	return q, nil
}

// KuCoin candles response format (newest first, timestamps in seconds,
// field order is open-close-high-low):
//
//	{
//	  "code": "200000",
//	  "data": [
//	    [
//	      "1589739000", // Start time (s)
//	      "9658.6",     // Open
//	      "9659.3",     // Close
//	      "9659.3",     // High
//	      "9658.6",     // Low
//	      "0.1291",     // Volume (base)
//	      "1247.18"     // Turnover (quote)
//	    ]
//	  ]
//	}
type restResponse struct {
	Code string     `json:"code"`
	Msg  string     `json:"msg"`
	Data [][]string `json:"data"`
}

func (e *Kucoin) ParseRESTResponse(raw []byte) ([]common.Candlestick, error) {
	var resp restResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidJSONResponse, err)
	}
	if resp.Code != "200000" {
		return nil, fmt.Errorf("%w: code %v: %v", common.ErrInvalidJSONResponse, resp.Code, resp.Msg)
	}

	css := make([]common.Candlestick, len(resp.Data))
	for i, row := range resp.Data {
		cs, err := candlestickFromRow(row)
		if err != nil {
			return nil, err
		}
		css[i] = cs
	}
	sort.Slice(css, func(i, j int) bool { return css[i].Timestamp < css[j].Timestamp })
	return css, nil
}

// candlestickFromRow parses a [ts, open, close, high, low, volume, turnover]
// row, shared between the REST and the WebSocket wire formats.
func candlestickFromRow(row []string) (common.Candlestick, error) {
	if len(row) < 7 {
		return common.Candlestick{}, fmt.Errorf("%w: candlestick row has len < 7", common.ErrInvalidJSONResponse)
	}
	ts, err := common.ParseTimestamp(row[0])
	if err != nil {
		return common.Candlestick{}, err
	}
	fields := [6]float64{}
	for i, s := range row[1:7] {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return common.Candlestick{}, fmt.Errorf("%w: unparseable decimal %q", common.ErrInvalidJSONResponse, s)
		}
		fields[i] = f
	}
	return common.Candlestick{
		Timestamp:        ts,
		OpenPrice:        common.JSONFloat64(fields[0]),
		ClosePrice:       common.JSONFloat64(fields[1]),
		HighestPrice:     common.JSONFloat64(fields[2]),
		LowestPrice:      common.JSONFloat64(fields[3]),
		Volume:           common.JSONFloat64(fields[4]),
		QuoteAssetVolume: common.JSONFloat64(fields[5]),
	}, nil
}
