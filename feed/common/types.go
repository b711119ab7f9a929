// Package common contains shared types and code across the feed super-package.
package common

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrUnknownExchange means: exchange name is not registered
	ErrUnknownExchange = errors.New("unknown exchange")

	// ErrUnsupportedInterval means: adapter does not support the candlestick interval
	ErrUnsupportedInterval = errors.New("unsupported candlestick interval")

	// ErrInvalidTradingPair means: trading pair is not in BASE-QUOTE format
	ErrInvalidTradingPair = errors.New("invalid trading pair")

	// ErrInvalidTimeRange means: start time is after end time
	ErrInvalidTimeRange = errors.New("start time is after end time")

	// ErrSyncNotSupported means: synchronous fetch requested on an async-only adapter
	ErrSyncNotSupported = errors.New("synchronous fetch not supported by this adapter")

	// ErrExecutingRequest means: error executing client.Do() http request method
	ErrExecutingRequest = errors.New("error executing client.Do() http request method")

	// ErrBrokenBodyResponse means: exchange returned broken body response
	ErrBrokenBodyResponse = errors.New("exchange returned broken body response")

	// ErrInvalidJSONResponse means: exchange returned invalid JSON response
	ErrInvalidJSONResponse = errors.New("exchange returned invalid JSON response")

	// ErrRateLimit means: exchange asked us to enhance our calm
	ErrRateLimit = errors.New("exchange asked us to enhance our calm")

	// ErrInvalidCandlestick means: candlestick violates its own invariants
	ErrInvalidCandlestick = errors.New("candlestick violates invariants")

	// ErrOutOfCandlesticks means: exchange ran out of candlesticks
	ErrOutOfCandlesticks = errors.New("exchange ran out of candlesticks")
)

// Candlestick is the generic OHLCV record for all supported exchanges.
//
// Two candlesticks with the same Timestamp describe the same interval bucket:
// a later arrival supersedes an earlier one. All merging in this module keys
// on Timestamp alone.
type Candlestick struct {
	// Timestamp is the UNIX timestamp (i.e. seconds since UTC Epoch) at which the candlestick started.
	Timestamp int `json:"timestamp"`

	// OpenPrice is the price at which the candlestick opened.
	OpenPrice JSONFloat64 `json:"open"`

	// HighestPrice is the highest price reached during the candlestick duration.
	HighestPrice JSONFloat64 `json:"high"`

	// LowestPrice is the lowest price reached during the candlestick duration.
	LowestPrice JSONFloat64 `json:"low"`

	// ClosePrice is the price at which the candlestick closed.
	ClosePrice JSONFloat64 `json:"close"`

	// Volume is the base asset volume traded during the candlestick duration.
	Volume JSONFloat64 `json:"volume"`

	// QuoteAssetVolume is the quote asset volume traded during the candlestick duration.
	QuoteAssetVolume JSONFloat64 `json:"quote_asset_volume"`

	// TradeCount is the number of trades during the candlestick duration.
	TradeCount int `json:"n_trades"`

	// TakerBuyBaseVolume is the taker buy base asset volume.
	TakerBuyBaseVolume JSONFloat64 `json:"taker_buy_base_volume"`

	// TakerBuyQuoteVolume is the taker buy quote asset volume.
	TakerBuyQuoteVolume JSONFloat64 `json:"taker_buy_quote_volume"`
}

// TimestampMillis is the candlestick's timestamp in Javascript-style milliseconds.
func (c Candlestick) TimestampMillis() int64 {
	return int64(c.Timestamp) * 1000
}

// Validate checks the candlestick's invariants: low <= open,close <= high,
// and all price/volume fields finite and non-negative.
func (c Candlestick) Validate() error {
	if c.Timestamp < 0 {
		return fmt.Errorf("%w: negative timestamp %v", ErrInvalidCandlestick, c.Timestamp)
	}
	for _, f := range []JSONFloat64{
		c.OpenPrice, c.HighestPrice, c.LowestPrice, c.ClosePrice,
		c.Volume, c.QuoteAssetVolume, c.TakerBuyBaseVolume, c.TakerBuyQuoteVolume,
	} {
		v := float64(f)
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: non-finite or negative value %v", ErrInvalidCandlestick, v)
		}
	}
	if c.TradeCount < 0 {
		return fmt.Errorf("%w: negative trade count %v", ErrInvalidCandlestick, c.TradeCount)
	}
	if c.LowestPrice > c.OpenPrice || c.LowestPrice > c.ClosePrice || c.LowestPrice > c.HighestPrice {
		return fmt.Errorf("%w: low %v above open/close/high", ErrInvalidCandlestick, c.LowestPrice)
	}
	if c.HighestPrice < c.OpenPrice || c.HighestPrice < c.ClosePrice {
		return fmt.Errorf("%w: high %v below open/close", ErrInvalidCandlestick, c.HighestPrice)
	}
	return nil
}

// JSONFloat64 exists only for the purpose of marshalling floats in a nicer way.
type JSONFloat64 float64

// MarshalJSON overrides the marshalling of floats in a nicer way.
func (jf JSONFloat64) MarshalJSON() ([]byte, error) {
	f := float64(jf)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, errors.New("unsupported value")
	}
	bs := []byte(fmt.Sprintf("%.12f", f))
	var i int
	for i = len(bs) - 1; i >= 0; i-- {
		if bs[i] == '0' {
			continue
		}
		if bs[i] == '.' {
			return bs[:i], nil
		}
		break
	}
	return bs[:i+1], nil
}

// TradingPair is the canonical BASE-QUOTE market pair, e.g. BTC-USDT.
// Adapters and plugins translate to/from exchange-native forms.
type TradingPair struct {
	Base  string // e.g. "BTC" in BTC-USDT
	Quote string // e.g. "USDT" in BTC-USDT
}

// ParseTradingPair parses the canonical uppercase hyphen-delimited form, e.g. "BTC-USDT".
func ParseTradingPair(s string) (TradingPair, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return TradingPair{}, fmt.Errorf("%w: %q is not in BASE-QUOTE format", ErrInvalidTradingPair, s)
	}
	return TradingPair{Base: strings.ToUpper(parts[0]), Quote: strings.ToUpper(parts[1])}, nil
}

func (p TradingPair) String() string {
	return fmt.Sprintf("%v-%v", p.Base, p.Quote)
}
