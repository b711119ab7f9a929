package strategy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/marianogappa/crypto-feeds/feed/netclient"
	"github.com/marianogappa/crypto-feeds/feed/telemetry"
	"github.com/rs/zerolog/log"
)

// ConnState is the WebSocket strategy's connection state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateSubscribing
	StateStreaming
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribing:
		return "subscribing"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// minLiveness is the floor for the stream liveness deadline; below it, wide
// candle intervals would tolerate multi-hour silent connections.
const minLiveness = 30 * time.Second

// Websocket keeps a feed store current by streaming candle pushes from the
// exchange. Each (re)connection is seeded with a REST catch-up read so
// candles missed while disconnected are recovered; a connection that stays
// silent past the liveness deadline is torn down and redialed with backoff.
type Websocket struct {
	cfg          Config
	intervalSecs int
	client       *netclient.Client
	seeder       *RESTPolling

	mu    sync.RWMutex
	state ConnState
}

// NewWebsocket constructs the WebSocket streaming strategy.
//
// * Fails with ErrAsyncAdapterRequired for sync-only adapters.
//
// * Fails with ErrWSIntervalUnsupported when the adapter cannot stream the
//   configured interval.
func NewWebsocket(cfg Config, client *netclient.Client) (*Websocket, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if !cfg.Adapter.Capability().AsyncCapable() {
		return nil, ErrAsyncAdapterRequired
	}
	supported := false
	for _, i := range cfg.Adapter.WSIntervals() {
		if i == cfg.Interval {
			supported = true
			break
		}
	}
	if !supported {
		return nil, ErrWSIntervalUnsupported
	}
	if client == nil {
		client = netclient.New(netclient.Config{})
	}
	seeder, err := NewRESTPolling(cfg)
	if err != nil {
		return nil, err
	}
	intervalSecs, _ := cfg.Interval.Seconds()
	return &Websocket{cfg: cfg, intervalSecs: intervalSecs, client: client, seeder: seeder}, nil
}

// Name identifies the strategy kind.
func (s *Websocket) Name() string { return "websocket" }

// State is the current connection state.
func (s *Websocket) State() ConnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Websocket) setState(state ConnState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// liveness is the longest the stream may stay silent before the connection is
// considered dead: three interval widths, floored at 30 seconds.
func (s *Websocket) liveness() time.Duration {
	d := 3 * time.Duration(s.intervalSecs) * time.Second
	if d < minLiveness {
		d = minLiveness
	}
	return d
}

// Run streams until ctx is done, reconnecting with jittered exponential
// backoff. The backoff resets after a connection stays up for a minute.
func (s *Websocket) Run(ctx context.Context) error {
	defer s.setState(StateDisconnected)
	backoff := MinBackoff
	for {
		connectedAt := time.Now()
		err := s.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.setState(StateDisconnected)
		if time.Since(connectedAt) >= BackoffResetAfter {
			backoff = MinBackoff
		}
		telemetry.WSReconnects.WithLabelValues(s.cfg.Adapter.Name()).Inc()
		log.Warn().Str("exchange", s.cfg.Adapter.Name()).Str("market", s.cfg.Pair.String()).Err(err).Dur("backoff", backoff).Msg("WebSocket connection lost, reconnecting")

		var wait time.Duration
		wait, backoff = NextBackoff(backoff)
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

// runConnection runs one connection lifecycle: seed, dial, subscribe, stream.
func (s *Websocket) runConnection(ctx context.Context) error {
	if err := s.seeder.PollOnce(ctx); err != nil {
		// A failed seed is not fatal; the stream itself still advances the
		// store and the next reconnect retries the seed.
		log.Warn().Str("exchange", s.cfg.Adapter.Name()).Err(err).Msg("Seed backfill failed")
	}

	s.setState(StateConnecting)
	ws, err := s.client.EstablishWSConnection(ctx, s.cfg.Adapter.WSURL())
	if err != nil {
		return err
	}
	defer ws.Disconnect()

	s.setState(StateSubscribing)
	payload, err := s.cfg.Adapter.WSSubscriptionPayload(s.cfg.Pair, s.cfg.Interval)
	if err != nil {
		return err
	}
	if err := ws.Send(payload); err != nil {
		return err
	}

	s.setState(StateStreaming)
	return s.stream(ctx, ws)
}

func (s *Websocket) stream(ctx context.Context, ws *netclient.WSAssistant) error {
	exchange := s.cfg.Adapter.Name()
	liveness := time.NewTimer(s.liveness())
	defer liveness.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-liveness.C:
			return errStreamStalled
		case raw, ok := <-ws.Messages():
			if !ok {
				return errStreamClosed
			}
			if !liveness.Stop() {
				<-liveness.C
			}
			liveness.Reset(s.liveness())

			css, err := s.cfg.Adapter.ParseWSMessage(raw)
			if err != nil {
				telemetry.MessagesDropped.WithLabelValues(exchange).Inc()
				log.Debug().Str("exchange", exchange).Err(err).Msg("Dropping unparseable WebSocket frame")
				continue
			}
			if len(css) == 0 {
				continue
			}
			telemetry.CandlesIngested.WithLabelValues(exchange).Add(float64(len(css)))
			s.cfg.Store.Merge(css)
		}
	}
}

var (
	errStreamStalled = errors.New("stream stalled past liveness deadline")
	errStreamClosed  = errors.New("stream closed by peer")
)

var _ Strategy = (*Websocket)(nil)
