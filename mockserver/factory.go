package mockserver

import (
	"hash/fnv"
	"math"
	"math/rand"

	"github.com/marianogappa/crypto-feeds/feed/common"
)

// CandleFactory generates deterministic candlestick windows: the same seed,
// pair, interval and timestamp always produce bit-identical candles, so tests
// can assert exact values across runs and across REST/WS surfaces.
type CandleFactory struct {
	seed int64
}

// NewCandleFactory constructs a factory with the given seed.
func NewCandleFactory(seed int64) CandleFactory {
	return CandleFactory{seed: seed}
}

// Window generates count subsequent candlesticks starting at startTimestamp,
// which is normalized down to an interval boundary.
func (f CandleFactory) Window(pair common.TradingPair, interval common.Interval, startTimestamp, count int) []common.Candlestick {
	intervalSecs, err := interval.Seconds()
	if err != nil || count <= 0 {
		return nil
	}
	startTimestamp = startTimestamp / intervalSecs * intervalSecs

	css := make([]common.Candlestick, count)
	open := f.basePrice(pair)
	for i := 0; i < count; i++ {
		ts := startTimestamp + i*intervalSecs
		css[i] = f.candleAt(pair, interval, ts, open)
		open = float64(css[i].ClosePrice)
	}
	return css
}

// CandleAt generates the single candle at the given timestamp, walking the
// price from the start of its 500-candle window so that overlapping Window
// calls agree on values.
func (f CandleFactory) CandleAt(pair common.TradingPair, interval common.Interval, timestamp int) common.Candlestick {
	intervalSecs, err := interval.Seconds()
	if err != nil {
		return common.Candlestick{}
	}
	timestamp = timestamp / intervalSecs * intervalSecs
	windowSpan := intervalSecs * 500
	windowStart := timestamp / windowSpan * windowSpan

	open := f.basePrice(pair)
	for ts := windowStart; ; ts += intervalSecs {
		cs := f.candleAt(pair, interval, ts, open)
		if ts == timestamp {
			return cs
		}
		open = float64(cs.ClosePrice)
	}
}

func (f CandleFactory) candleAt(pair common.TradingPair, interval common.Interval, timestamp int, open float64) common.Candlestick {
	rng := rand.New(rand.NewSource(f.seed ^ pairIntervalHash(pair, interval) ^ int64(timestamp)))

	drift := (rng.Float64() - 0.5) * 0.01
	closePrice := round2(open * (1 + drift))
	high := round2(math.Max(open, closePrice) * (1 + rng.Float64()*0.002))
	low := round2(math.Min(open, closePrice) * (1 - rng.Float64()*0.002))
	volume := round2(1 + rng.Float64()*100)

	return common.Candlestick{
		Timestamp:        timestamp,
		OpenPrice:        common.JSONFloat64(round2(open)),
		HighestPrice:     common.JSONFloat64(high),
		LowestPrice:      common.JSONFloat64(low),
		ClosePrice:       common.JSONFloat64(closePrice),
		Volume:           common.JSONFloat64(volume),
		QuoteAssetVolume: common.JSONFloat64(round2(volume * closePrice)),
		TradeCount:       1 + rng.Intn(500),
	}
}

// basePrice derives a stable starting price in [10, 50010) from the pair name.
func (f CandleFactory) basePrice(pair common.TradingPair) float64 {
	h := fnv.New64a()
	h.Write([]byte(pair.String()))
	return 10 + float64(h.Sum64()%50000)
}

func pairIntervalHash(pair common.TradingPair, interval common.Interval) int64 {
	h := fnv.New64a()
	h.Write([]byte(pair.String()))
	h.Write([]byte{':'})
	h.Write([]byte(interval))
	return int64(h.Sum64())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
