// Package cache implements an in-memory LRU cache layer between exchange REST
// endpoints and feed backfills.
//
// It solves this problem: when many feeds (or repeated gap backfills within
// one feed) need the same historical window, requesting it from the exchange
// every time both wastes a network round-trip and burns rate-limit budget.
// Backfill paths consult the cache first and store whatever they fetch.
//
// Internally, it is composed of one LRU cache per candlestick interval. Each
// cache entry spans a window of 500 subsequent candlesticks.
package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/marianogappa/crypto-feeds/feed/common"
)

// windowSize is the number of subsequent candlesticks per cache entry.
const windowSize = 500

var (
	// ErrCacheNotConfiguredForInterval is returned when an operation involves a
	// candlestick interval not configured in the cache constructor.
	ErrCacheNotConfiguredForInterval = errors.New("cache not configured for candlestick interval")

	// ErrTimestampMustBeMultipleOfInterval is returned when a Put operation
	// supplies candlesticks whose timestamps are not multiples of the interval.
	ErrTimestampMustBeMultipleOfInterval = errors.New("timestamp must be multiple of candlestick interval")

	// ErrReceivedNonSubsequentCandlestick is returned when a Put operation
	// supplies candlesticks with gaps or out-of-order timestamps.
	ErrReceivedNonSubsequentCandlestick = errors.New("received non-subsequent candlestick")

	// ErrCacheMiss is returned by Get to signify that there are no cached
	// candlesticks for the requested metric and timestamp. Clients must handle
	// it; misses are completely normal.
	ErrCacheMiss = errors.New("cache miss")
)

// Metric is the namespace for one cached candlestick sequence: a feed identity
// (exchange, pair) plus the candlestick interval.
type Metric struct {
	Exchange string
	Pair     common.TradingPair
	Interval common.Interval
}

func (m Metric) String() string {
	return fmt.Sprintf("%v:%v:%v", m.Exchange, m.Pair, m.Interval)
}

// MemoryCache is the in-memory LRU cache layer that this package exposes.
// Safe for concurrent use; one instance is shared across feeds.
type MemoryCache struct {
	caches map[common.Interval]*lru.Cache

	// mu guards the hit counters and makes each window read-modify-write in
	// Put atomic with respect to concurrent Puts on the same key.
	mu            sync.Mutex
	CacheMisses   int
	CacheRequests int
}

// NewMemoryCache instantiates the cache. cacheSizes configures which intervals
// are supported and how many window entries each interval's cache holds.
func NewMemoryCache(cacheSizes map[common.Interval]int) *MemoryCache {
	caches := map[common.Interval]*lru.Cache{}
	for interval, size := range cacheSizes {
		if size <= 0 {
			size = 1
		}
		c, _ := lru.New(size)
		caches[interval] = c
	}
	return &MemoryCache{caches: caches}
}

// Put pushes a slice of subsequent candlesticks for the given metric into the
// cache. May evict older windows.
//
// * Fails with ErrReceivedNonSubsequentCandlestick if candlesticks are not
//   sorted ascending exactly one interval apart.
//
// * Fails with ErrTimestampMustBeMultipleOfInterval if timestamps are not
//   multiples of the interval.
//
// * Fails with ErrCacheNotConfiguredForInterval if the interval was not
//   configured at construction time.
func (c *MemoryCache) Put(metric Metric, css []common.Candlestick) error {
	cache, ok := c.caches[metric.Interval]
	if !ok {
		return ErrCacheNotConfiguredForInterval
	}
	if len(css) == 0 {
		return nil
	}
	intervalSecs, err := metric.Interval.Seconds()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	lastTimestamp := 0
	for _, cs := range css {
		if lastTimestamp != 0 && cs.Timestamp-lastTimestamp != intervalSecs {
			return fmt.Errorf("%w: %v followed %v on a %v interval", ErrReceivedNonSubsequentCandlestick, cs.Timestamp, lastTimestamp, metric.Interval)
		}
		if cs.Timestamp%intervalSecs != 0 {
			return ErrTimestampMustBeMultipleOfInterval
		}

		key, index := windowKey(metric, intervalSecs, cs.Timestamp)
		elem, ok := cache.Get(key)
		if !ok {
			elem = [windowSize]common.Candlestick{}
		}
		window := elem.([windowSize]common.Candlestick)
		window[index] = cs
		cache.Add(key, window)

		lastTimestamp = cs.Timestamp
	}
	return nil
}

// Get retrieves cached candlesticks for the metric starting exactly at
// startTimestamp and up to the first gap or the end of the window entry.
//
// * Fails with ErrCacheMiss if nothing is cached at that timestamp.
//
// * Fails with ErrCacheNotConfiguredForInterval if the interval was not
//   configured at construction time.
func (c *MemoryCache) Get(metric Metric, startTimestamp int) ([]common.Candlestick, error) {
	cache, ok := c.caches[metric.Interval]
	if !ok {
		return nil, ErrCacheNotConfiguredForInterval
	}
	intervalSecs, err := metric.Interval.Seconds()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CacheRequests++

	startTimestamp = common.NormalizeTimestamp(time.Unix(int64(startTimestamp), 0), time.Duration(intervalSecs)*time.Second, false)
	key, index := windowKey(metric, intervalSecs, startTimestamp)

	elem, ok := cache.Get(key)
	if !ok {
		c.CacheMisses++
		return nil, ErrCacheMiss
	}
	window := elem.([windowSize]common.Candlestick)

	css := []common.Candlestick{}
	for i := index; i < windowSize; i++ {
		if window[i] == (common.Candlestick{}) {
			break
		}
		css = append(css, window[i])
	}
	if len(css) == 0 {
		c.CacheMisses++
		return nil, ErrCacheMiss
	}
	return css, nil
}

// HitRatio returns the percentage of Get requests served from the cache.
func (c *MemoryCache) HitRatio() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.CacheRequests == 0 {
		return 0
	}
	return float64(c.CacheRequests-c.CacheMisses) / float64(c.CacheRequests) * 100
}

func windowKey(metric Metric, intervalSecs, timestamp int) (string, int) {
	windowSpan := intervalSecs * windowSize
	windowStart := timestamp / windowSpan * windowSpan
	return fmt.Sprintf("%v-%v", metric, windowStart), (timestamp - windowStart) / intervalSecs
}
