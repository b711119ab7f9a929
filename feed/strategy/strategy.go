// Package strategy implements the collection strategies that keep a feed
// store current: REST polling and WebSocket streaming. A strategy owns the
// collection loop only; the store, the cache and the adapter are injected and
// shared with the feed that supervises it.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/marianogappa/crypto-feeds/feed/adapter"
	"github.com/marianogappa/crypto-feeds/feed/cache"
	"github.com/marianogappa/crypto-feeds/feed/common"
	"github.com/marianogappa/crypto-feeds/feed/store"
)

// Polling cadence and reconnect backoff bounds.
const (
	MinPollInterval = time.Second
	MaxPollInterval = time.Minute

	MinBackoff = time.Second
	MaxBackoff = time.Minute

	// BackoffResetAfter is how long a connection or strategy must stay healthy
	// before the retry backoff resets to its minimum.
	BackoffResetAfter = time.Minute
)

var (
	// ErrStoreRequired is returned by constructors when no store is supplied.
	ErrStoreRequired = errors.New("strategy requires a store")

	// ErrAsyncAdapterRequired is returned by the WebSocket strategy constructor
	// for adapters that cannot serve the context-aware fetch path.
	ErrAsyncAdapterRequired = errors.New("websocket strategy requires an async-capable adapter")

	// ErrWSIntervalUnsupported is returned by the WebSocket strategy constructor
	// when the adapter cannot stream the requested interval.
	ErrWSIntervalUnsupported = errors.New("adapter does not stream this interval over WebSocket")
)

// Strategy is a supervised collection loop. Run blocks until ctx is cancelled
// or the loop fails irrecoverably; the supervising feed restarts crashed
// strategies.
type Strategy interface {
	// Name identifies the strategy kind, e.g. "rest_polling".
	Name() string

	// Run executes the collection loop until ctx is done.
	Run(ctx context.Context) error
}

// Config carries the collaborators every strategy shares.
type Config struct {
	Adapter  adapter.Adapter
	Pair     common.TradingPair
	Interval common.Interval
	Store    *store.Bounded

	// Cache, when non-nil, is consulted before issuing backfill requests and
	// fed with whatever they fetch.
	Cache *cache.MemoryCache

	// PollInterval is the REST polling cadence; zero derives it from Interval.
	// Clamped to [MinPollInterval, MaxPollInterval] either way.
	PollInterval time.Duration

	// now is the clock; nil means time.Now. Tests inject a fake.
	now func() time.Time
}

func (c *Config) validate() error {
	if c.Store == nil {
		return ErrStoreRequired
	}
	if c.Adapter == nil {
		return errors.New("strategy requires an adapter")
	}
	if _, ok := c.Adapter.Intervals()[c.Interval]; !ok {
		return fmt.Errorf("%w: %q on %v", common.ErrUnsupportedInterval, c.Interval, c.Adapter.Name())
	}
	if c.now == nil {
		c.now = time.Now
	}
	return nil
}

// cadence derives the effective polling cadence from the config.
func (c Config) cadence() time.Duration {
	d := c.PollInterval
	if d == 0 {
		d, _ = c.Interval.Duration()
	}
	if d < MinPollInterval {
		d = MinPollInterval
	}
	if d > MaxPollInterval {
		d = MaxPollInterval
	}
	return d
}

// NextBackoff doubles the delay up to MaxBackoff and applies ±20% jitter so
// that a fleet of feeds does not retry in lockstep. The feed supervisor uses
// the same policy for crash restarts.
func NextBackoff(current time.Duration) (wait, next time.Duration) {
	jitter := 1 + (rand.Float64()*0.4 - 0.2)
	wait = time.Duration(float64(current) * jitter)
	next = current * 2
	if next > MaxBackoff {
		next = MaxBackoff
	}
	return wait, next
}

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
