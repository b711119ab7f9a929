package binance

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/marianogappa/crypto-feeds/feed/adapter"
	"github.com/marianogappa/crypto-feeds/feed/common"
)

// MaxLimit is the maximum number of candlesticks that can be requested per
// API call, as documented in the Binance API.
const MaxLimit = 1000

// RESTParams maps canonical arguments onto the Binance klines query, e.g.
// /api/v3/klines?symbol=BTCUSDT&interval=1m&limit=500&startTime=1642329924000
func (e *Binance) RESTParams(pair common.TradingPair, interval common.Interval, opts adapter.FetchOptions) (url.Values, error) {
	if _, ok := e.Intervals()[interval]; !ok {
		return nil, fmt.Errorf("%w: %q on %v", common.ErrUnsupportedInterval, interval, Name)
	}

	q := url.Values{}
	q.Add("symbol", e.TradingPairFormat(pair))
	q.Add("interval", string(interval))
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

// Binance klines response format:
//
//	[
//	  [
//	    1499040000000,      // Open time (ms)
//	    "0.01634790",       // Open
//	    "0.80000000",       // High
//	    "0.01575800",       // Low
//	    "0.01577100",       // Close
//	    "148976.11427815",  // Volume
//	    1499644799999,      // Close time (ms)
//	    "2434.19055334",    // Quote asset volume
//	    308,                // Number of trades
//	    "1756.87402397",    // Taker buy base asset volume
//	    "28.46694368",      // Taker buy quote asset volume
//	    "17928899.62484339" // Ignore.
//	  ]
//	]
func (e *Binance) ParseRESTResponse(raw []byte) ([]common.Candlestick, error) {
	var rows [][]interface{}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidJSONResponse, err)
	}

	css := make([]common.Candlestick, len(rows))
	for i, row := range rows {
		if len(row) != 12 {
			return nil, fmt.Errorf("%w: candlestick %v has len != 12", common.ErrInvalidJSONResponse, i)
		}
		openTime, ok := row[0].(float64)
		if !ok {
			return nil, fmt.Errorf("%w: candlestick %v has non-numeric open time", common.ErrInvalidJSONResponse, i)
		}
		tradeCount, ok := row[8].(float64)
		if !ok {
			return nil, fmt.Errorf("%w: candlestick %v has non-numeric trade count", common.ErrInvalidJSONResponse, i)
		}
		strs := make([]string, 0, 8)
		for _, idx := range []int{1, 2, 3, 4, 5, 7, 9, 10} {
			s, ok := row[idx].(string)
			if !ok {
				return nil, fmt.Errorf("%w: candlestick %v has non-string field %v", common.ErrInvalidJSONResponse, i, idx)
			}
			strs = append(strs, s)
		}

		cs, err := candlestickFromStrings(
			int64(openTime),
			strs[0], strs[1], strs[2], strs[3], // o, h, l, c
			strs[4], strs[5], strs[6], strs[7], // vol, quote vol, taker base, taker quote
			int(tradeCount),
		)
		if err != nil {
			return nil, err
		}
		css[i] = cs
	}
	return css, nil
}

func candlestickFromStrings(openTimeRaw int64, o, h, l, c, vol, quoteVol, takerBase, takerQuote string, tradeCount int) (common.Candlestick, error) {
	ts, err := common.ParseTimestamp(openTimeRaw)
	if err != nil {
		return common.Candlestick{}, err
	}
	fields := [8]float64{}
	for i, s := range []string{o, h, l, c, vol, quoteVol, takerBase, takerQuote} {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return common.Candlestick{}, fmt.Errorf("%w: unparseable decimal %q", common.ErrInvalidJSONResponse, s)
		}
		fields[i] = f
	}
	return common.Candlestick{
		Timestamp:           ts,
		OpenPrice:           common.JSONFloat64(fields[0]),
		HighestPrice:        common.JSONFloat64(fields[1]),
		LowestPrice:         common.JSONFloat64(fields[2]),
		ClosePrice:          common.JSONFloat64(fields[3]),
		Volume:              common.JSONFloat64(fields[4]),
		QuoteAssetVolume:    common.JSONFloat64(fields[5]),
		TakerBuyBaseVolume:  common.JSONFloat64(fields[6]),
		TakerBuyQuoteVolume: common.JSONFloat64(fields[7]),
		TradeCount:          tradeCount,
	}, nil
}
