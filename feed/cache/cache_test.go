package cache

import (
	"sync"
	"testing"

	"github.com/marianogappa/crypto-feeds/feed/common"
	"github.com/stretchr/testify/require"
)

var btcUSDT1m = Metric{Exchange: "binance_spot", Pair: common.TradingPair{Base: "BTC", Quote: "USDT"}, Interval: common.Interval1m}

func cs(ts int) common.Candlestick {
	return common.Candlestick{Timestamp: ts, OpenPrice: 1, HighestPrice: 1, LowestPrice: 1, ClosePrice: 1}
}

func newTestCache() *MemoryCache {
	return NewMemoryCache(map[common.Interval]int{common.Interval1m: 10})
}

func TestPutThenGet(t *testing.T) {
	c := newTestCache()
	css := []common.Candlestick{cs(1700000040), cs(1700000100), cs(1700000160)}
	require.NoError(t, c.Put(btcUSDT1m, css))

	got, err := c.Get(btcUSDT1m, 1700000040)
	require.NoError(t, err)
	require.Equal(t, css, got)
}

func TestGetFromMiddleOfWindow(t *testing.T) {
	c := newTestCache()
	css := []common.Candlestick{cs(1700000040), cs(1700000100), cs(1700000160)}
	require.NoError(t, c.Put(btcUSDT1m, css))

	got, err := c.Get(btcUSDT1m, 1700000100)
	require.NoError(t, err)
	require.Equal(t, css[1:], got)
}

func TestGetNormalizesStartTimestamp(t *testing.T) {
	c := newTestCache()
	require.NoError(t, c.Put(btcUSDT1m, []common.Candlestick{cs(1700000040), cs(1700000100)}))

	// 1700000041 normalizes up to the next minute multiple, 1700000100.
	got, err := c.Get(btcUSDT1m, 1700000041)
	require.NoError(t, err)
	require.Equal(t, []common.Candlestick{cs(1700000100)}, got)
}

func TestGetCacheMiss(t *testing.T) {
	c := newTestCache()
	_, err := c.Get(btcUSDT1m, 1700000040)
	require.ErrorIs(t, err, ErrCacheMiss)
	require.Equal(t, 1, c.CacheMisses)
}

func TestGetStopsAtGap(t *testing.T) {
	c := newTestCache()
	require.NoError(t, c.Put(btcUSDT1m, []common.Candlestick{cs(1700000040), cs(1700000100)}))
	require.NoError(t, c.Put(btcUSDT1m, []common.Candlestick{cs(1700000220)}))

	got, err := c.Get(btcUSDT1m, 1700000040)
	require.NoError(t, err)
	require.Equal(t, []common.Candlestick{cs(1700000040), cs(1700000100)}, got)
}

func TestPutRejectsNonSubsequent(t *testing.T) {
	c := newTestCache()
	err := c.Put(btcUSDT1m, []common.Candlestick{cs(1700000040), cs(1700000220)})
	require.ErrorIs(t, err, ErrReceivedNonSubsequentCandlestick)
}

func TestPutRejectsNonMultipleTimestamps(t *testing.T) {
	c := newTestCache()
	err := c.Put(btcUSDT1m, []common.Candlestick{cs(1700000041)})
	require.ErrorIs(t, err, ErrTimestampMustBeMultipleOfInterval)
}

func TestUnconfiguredInterval(t *testing.T) {
	c := newTestCache()
	metric := btcUSDT1m
	metric.Interval = common.Interval1h

	require.ErrorIs(t, c.Put(metric, []common.Candlestick{cs(1700000400)}), ErrCacheNotConfiguredForInterval)
	_, err := c.Get(metric, 1700000400)
	require.ErrorIs(t, err, ErrCacheNotConfiguredForInterval)
}

func TestPutEmptyIsNoop(t *testing.T) {
	c := newTestCache()
	require.NoError(t, c.Put(btcUSDT1m, nil))
}

func TestHitRatio(t *testing.T) {
	c := newTestCache()
	require.NoError(t, c.Put(btcUSDT1m, []common.Candlestick{cs(1700000040)}))

	_, _ = c.Get(btcUSDT1m, 1700000040) // hit
	_, _ = c.Get(btcUSDT1m, 1800000000) // miss
	require.Equal(t, 50.0, c.HitRatio())
}

// One cache instance is shared across concurrently running feeds; interleaved
// Puts on the same window and Gets must not lose writes or corrupt counters.
func TestConcurrentPutGet(t *testing.T) {
	c := newTestCache()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				ts := 1700000040 + (g*50+i)*60
				require.NoError(t, c.Put(btcUSDT1m, []common.Candlestick{cs(ts)}))
				_, _ = c.Get(btcUSDT1m, ts)
			}
		}(g)
	}
	wg.Wait()

	require.Equal(t, 400, c.CacheRequests)
	got, err := c.Get(btcUSDT1m, 1700000040)
	require.NoError(t, err)
	require.Equal(t, cs(1700000040), got[0])
}
