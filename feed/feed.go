// Package feed implements the candle feed engine: a supervised collection
// strategy writing into a bounded ordered store, addressed by (exchange,
// trading pair, interval).
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marianogappa/crypto-feeds/feed/adapter"
	"github.com/marianogappa/crypto-feeds/feed/cache"
	"github.com/marianogappa/crypto-feeds/feed/common"
	"github.com/marianogappa/crypto-feeds/feed/netclient"
	"github.com/marianogappa/crypto-feeds/feed/store"
	"github.com/marianogappa/crypto-feeds/feed/strategy"
	"github.com/marianogappa/crypto-feeds/feed/telemetry"
	"github.com/rs/zerolog/log"
)

// Mode selects the collection strategy.
type Mode string

const (
	// ModeAuto streams over WebSocket when the adapter supports it and falls
	// back to REST polling otherwise.
	ModeAuto Mode = "auto"
	// ModeREST forces REST polling.
	ModeREST Mode = "rest"
	// ModeWebsocket forces WebSocket streaming.
	ModeWebsocket Mode = "websocket"
)

// stopDeadline bounds how long Stop waits for the collection loop to wind down.
const stopDeadline = 5 * time.Second

var (
	// ErrAlreadyStarted is returned by Start on a started feed.
	ErrAlreadyStarted = errors.New("feed already started")

	// ErrWebsocketUnavailable is returned by Start in ModeWebsocket when the
	// adapter cannot stream the configured interval.
	ErrWebsocketUnavailable = errors.New("websocket collection unavailable for this exchange and interval")

	// ErrStopTimeout is returned by Stop when the collection loop does not wind
	// down within the deadline.
	ErrStopTimeout = errors.New("feed did not stop within deadline")
)

// Config addresses and tunes one feed.
type Config struct {
	// Exchange is the canonical registry name, e.g. "binance_spot".
	Exchange string
	Pair     common.TradingPair
	Interval common.Interval

	// MaxRecords bounds the store; non-positive falls back to the default.
	MaxRecords int

	// Mode selects the collection strategy; empty means ModeAuto.
	Mode Mode

	// PollInterval tunes the REST cadence; zero derives it from Interval.
	PollInterval time.Duration

	// NetworkConfig routes endpoint kinds to production or testnet.
	NetworkConfig common.NetworkConfig

	// Cache, when non-nil, is shared across feeds to dedupe backfill reads.
	Cache *cache.MemoryCache

	// Registry resolves Exchange to an adapter; nil means DefaultRegistry().
	Registry *adapter.Registry

	// NetworkClient is shared by the adapter and the WebSocket strategy; nil
	// constructs a default client.
	NetworkClient *netclient.Client

	// Debug toggles adapter request/response logging.
	Debug bool
}

// Feed is one supervised candle feed. Construct with New, then Start; reads
// are safe at any point.
type Feed struct {
	cfg     Config
	adapter adapter.Adapter
	store   *store.Bounded
	client  *netclient.Client

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	strat   strategy.Strategy
}

// New resolves the adapter and builds the feed.
//
// * Fails with common.ErrUnknownExchange on an unregistered exchange name.
func New(cfg Config) (*Feed, error) {
	reg := cfg.Registry
	if reg == nil {
		reg = DefaultRegistry()
	}
	client := cfg.NetworkClient
	if client == nil {
		client = netclient.New(netclient.Config{})
	}

	a, err := reg.Instance(cfg.Exchange, adapter.Options{NetworkConfig: cfg.NetworkConfig, NetworkClient: client})
	if err != nil {
		return nil, err
	}
	if _, ok := a.Intervals()[cfg.Interval]; !ok {
		return nil, fmt.Errorf("%w: %q on %v", common.ErrUnsupportedInterval, cfg.Interval, cfg.Exchange)
	}
	a.SetDebug(cfg.Debug)

	if cfg.Mode == "" {
		cfg.Mode = ModeAuto
	}
	return &Feed{cfg: cfg, adapter: a, store: store.NewBounded(cfg.MaxRecords), client: client}, nil
}

// Adapter is the feed's resolved adapter; tests use it to rebind URLs.
func (f *Feed) Adapter() adapter.Adapter { return f.adapter }

// Start selects a collection strategy per the configured mode and launches
// the supervised collection loop.
//
// * Fails with ErrAlreadyStarted on a started feed.
//
// * Fails with ErrWebsocketUnavailable in ModeWebsocket when the adapter
//   cannot stream the interval.
func (f *Feed) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return ErrAlreadyStarted
	}

	strat, err := f.selectStrategy()
	if err != nil {
		return err
	}
	f.strat = strat

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.done = make(chan struct{})
	f.started = true
	go f.supervise(ctx, strat)

	log.Info().Str("exchange", f.cfg.Exchange).Str("market", f.cfg.Pair.String()).Str("interval", f.cfg.Interval.String()).Str("strategy", strat.Name()).Msg("Feed started")
	return nil
}

func (f *Feed) selectStrategy() (strategy.Strategy, error) {
	cfg := strategy.Config{
		Adapter:      f.adapter,
		Pair:         f.cfg.Pair,
		Interval:     f.cfg.Interval,
		Store:        f.store,
		Cache:        f.cfg.Cache,
		PollInterval: f.cfg.PollInterval,
	}

	wsCapable := f.adapter.Capability().AsyncCapable() && supportsWSInterval(f.adapter, f.cfg.Interval)
	switch f.cfg.Mode {
	case ModeREST:
		return strategy.NewRESTPolling(cfg)
	case ModeWebsocket:
		if !wsCapable {
			return nil, fmt.Errorf("%w: %v %v", ErrWebsocketUnavailable, f.cfg.Exchange, f.cfg.Interval)
		}
		return strategy.NewWebsocket(cfg, f.client)
	default:
		if wsCapable {
			return strategy.NewWebsocket(cfg, f.client)
		}
		return strategy.NewRESTPolling(cfg)
	}
}

func supportsWSInterval(a adapter.Adapter, interval common.Interval) bool {
	for _, i := range a.WSIntervals() {
		if i == interval {
			return true
		}
	}
	return false
}

// supervise runs the strategy until ctx is done, restarting it after crashes
// with the same jittered exponential backoff the WebSocket strategy uses to
// reconnect. The backoff resets after a run stays healthy for a minute.
func (f *Feed) supervise(ctx context.Context, strat strategy.Strategy) {
	defer close(f.done)
	backoff := strategy.MinBackoff
	for {
		startedAt := time.Now()
		err := f.runRecovered(ctx, strat)
		if ctx.Err() != nil {
			return
		}
		if time.Since(startedAt) >= strategy.BackoffResetAfter {
			backoff = strategy.MinBackoff
		}
		telemetry.StrategyRestarts.WithLabelValues(f.cfg.Exchange).Inc()
		log.Error().Str("exchange", f.cfg.Exchange).Str("strategy", strat.Name()).Err(err).Dur("backoff", backoff).Msg("Collection strategy crashed, restarting")
		var wait time.Duration
		wait, backoff = strategy.NextBackoff(backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (f *Feed) runRecovered(ctx context.Context, strat strategy.Strategy) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return strat.Run(ctx)
}

// Stop winds down the collection loop. Idempotent; a feed that was never
// started stops trivially.
//
// * Fails with ErrStopTimeout when the loop does not exit within 5 seconds.
func (f *Feed) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.started {
		return nil
	}
	f.started = false
	f.cancel()

	select {
	case <-f.done:
		log.Info().Str("exchange", f.cfg.Exchange).Str("market", f.cfg.Pair.String()).Msg("Feed stopped")
		return nil
	case <-time.After(stopDeadline):
		return ErrStopTimeout
	}
}

// Candles returns a snapshot of the feed's store, ascending by timestamp.
func (f *Feed) Candles() []common.Candlestick { return f.store.Snapshot() }

// First returns the oldest held candlestick; ok is false when empty.
func (f *Feed) First() (common.Candlestick, bool) {
	css := f.store.Snapshot()
	if len(css) == 0 {
		return common.Candlestick{}, false
	}
	return css[0], true
}

// Last returns the newest held candlestick; ok is false when empty.
func (f *Feed) Last() (common.Candlestick, bool) {
	css := f.store.Snapshot()
	if len(css) == 0 {
		return common.Candlestick{}, false
	}
	return css[len(css)-1], true
}

// Len returns how many candlesticks the feed holds.
func (f *Feed) Len() int { return f.store.Len() }

// Ready reports whether the feed's store has filled to capacity.
func (f *Feed) Ready() bool { return f.store.Ready() }

// CheckNetwork issues a one-candle read to verify the exchange is reachable
// with the configured routing.
func (f *Feed) CheckNetwork(ctx context.Context) error {
	_, err := f.adapter.FetchCandles(ctx, f.cfg.Pair, f.cfg.Interval, adapter.FetchOptions{Limit: 1})
	return err
}
