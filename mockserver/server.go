// Package mockserver implements a configurable mock exchange: an HTTP and
// WebSocket server whose exchange personality (routes, payload dialects,
// error envelopes) is supplied by a plugin, and whose candle state, rate
// limiting, latency simulation and broadcasting are shared machinery. It
// exists so adapters and feeds can be exercised end to end against
// byte-faithful exchange behavior without touching a real exchange.
package mockserver

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/marianogappa/crypto-feeds/feed/common"
	"github.com/marianogappa/crypto-feeds/feed/processor"
	"github.com/marianogappa/crypto-feeds/mockserver/plugin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Config tunes one mock server instance.
type Config struct {
	// Host to bind; empty means "127.0.0.1".
	Host string
	// Port to bind; zero means an ephemeral port.
	Port int

	// Plugin supplies the exchange personality. Required.
	Plugin plugin.Plugin

	// Latency is the simulated base response delay; Jitter adds up to ± that
	// much randomness on top.
	Latency time.Duration
	Jitter  time.Duration

	// RESTRate and WSRate are per-client-IP token bucket rates; zero means
	// unlimited. Bursts default to the rate rounded up, minimum 1.
	RESTRate  rate.Limit
	RESTBurst int
	WSRate    rate.Limit
	WSBurst   int

	// FaultRate, DropRate and MalformedRate are independent probabilities in
	// [0, 1] of injecting a transient 500 response, closing the connection
	// without responding, and returning a truncated JSON body. All off by
	// default.
	FaultRate     float64
	DropRate      float64
	MalformedRate float64

	// Seed drives the deterministic candle factory.
	Seed int64

	// Clock is the server's time source; nil means time.Now. Tests inject a
	// fake to pin generated windows.
	Clock func() time.Time
}

// ErrNotStarted is returned by URL and WSURL before Start.
var ErrNotStarted = errors.New("mock server not started")

// Server is one mock exchange instance. Safe for concurrent use.
type Server struct {
	cfg     Config
	factory CandleFactory
	httpSrv *http.Server

	mu          sync.RWMutex
	listener    net.Listener
	candles     map[string][]common.Candlestick
	subscribers map[string]map[*wsClient]struct{}
	limiters    map[string]*ipLimiter

	rngMu sync.Mutex
	rng   *rand.Rand
}

type ipLimiter struct {
	rest *rate.Limiter
	ws   *rate.Limiter
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(bs []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, bs)
}

// New constructs a mock server; Start binds it.
func New(cfg Config) (*Server, error) {
	if cfg.Plugin == nil {
		return nil, errors.New("mock server requires a plugin")
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.RESTBurst <= 0 {
		cfg.RESTBurst = burstFor(cfg.RESTRate)
	}
	if cfg.WSBurst <= 0 {
		cfg.WSBurst = burstFor(cfg.WSRate)
	}

	s := &Server{
		cfg:         cfg,
		factory:     NewCandleFactory(cfg.Seed),
		candles:     map[string][]common.Candlestick{},
		subscribers: map[string]map[*wsClient]struct{}{},
		limiters:    map[string]*ipLimiter{},
		rng:         rand.New(rand.NewSource(cfg.Seed)),
	}

	r := mux.NewRouter()
	r.HandleFunc(cfg.Plugin.CandlesPath(), s.handleCandles).Methods(http.MethodGet)
	if wsPath := cfg.Plugin.WSPath(); wsPath != "" {
		r.HandleFunc(wsPath, s.handleWS)
	}
	s.httpSrv = &http.Server{Handler: r}
	return s, nil
}

func burstFor(r rate.Limit) int {
	b := int(r)
	if b < 1 {
		b = 1
	}
	return b
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%v:%v", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Str("exchange_type", s.cfg.Plugin.Name()).Err(err).Msg("Mock server terminated")
		}
	}()
	log.Info().Str("exchange_type", s.cfg.Plugin.Name()).Str("addr", ln.Addr().String()).Msg("Mock server started")
	return nil
}

// Stop disconnects all WebSocket clients and shuts the server down, bounded
// by ctx. Idempotent.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for _, clients := range s.subscribers {
		for c := range clients {
			_ = c.conn.Close()
		}
	}
	s.subscribers = map[string]map[*wsClient]struct{}{}
	s.mu.Unlock()
	return s.httpSrv.Shutdown(ctx)
}

// Addr is the bound host:port.
func (s *Server) Addr() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return "", ErrNotStarted
	}
	return s.listener.Addr().String(), nil
}

// URL is the http:// base of the running server.
func (s *Server) URL() (string, error) {
	addr, err := s.Addr()
	if err != nil {
		return "", err
	}
	return "http://" + addr, nil
}

// WSURL is the ws:// base of the running server.
func (s *Server) WSURL() (string, error) {
	addr, err := s.Addr()
	if err != nil {
		return "", err
	}
	return "ws://" + addr, nil
}

func candleKey(pair common.TradingPair, interval common.Interval) string {
	return fmt.Sprintf("%v_%v", pair, interval)
}

// SetCandles replaces the stored window for (pair, interval).
func (s *Server) SetCandles(pair common.TradingPair, interval common.Interval, css []common.Candlestick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles[candleKey(pair, interval)] = processor.Merge(nil, css)
}

// Candles returns a copy of the stored window for (pair, interval).
func (s *Server) Candles(pair common.TradingPair, interval common.Interval) []common.Candlestick {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.candles[candleKey(pair, interval)]
	out := make([]common.Candlestick, len(stored))
	copy(out, stored)
	return out
}

// SeedWindow generates and stores count deterministic candles for (pair,
// interval) ending at the server clock's current interval boundary.
func (s *Server) SeedWindow(pair common.TradingPair, interval common.Interval, count int) {
	intervalSecs, err := interval.Seconds()
	if err != nil {
		return
	}
	now := int(s.cfg.Clock().Unix()) / intervalSecs * intervalSecs
	start := now - (count-1)*intervalSecs
	s.SetCandles(pair, interval, s.factory.Window(pair, interval, start, count))
}

// PushCandle merges the candle into the stored window and broadcasts it to
// every subscriber of (pair, interval).
func (s *Server) PushCandle(pair common.TradingPair, interval common.Interval, cs common.Candlestick) {
	key := candleKey(pair, interval)
	sub := plugin.Subscription{Pair: pair, Interval: interval}

	s.mu.Lock()
	s.candles[key] = processor.Merge(s.candles[key], []common.Candlestick{cs})
	clients := make([]*wsClient, 0, len(s.subscribers[sub.Key()]))
	for c := range s.subscribers[sub.Key()] {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	if len(clients) == 0 {
		return
	}
	frame, err := s.cfg.Plugin.RenderWSCandle(sub, cs)
	if err != nil {
		log.Error().Str("exchange_type", s.cfg.Plugin.Name()).Err(err).Msg("Cannot render candle push")
		return
	}
	for _, c := range clients {
		if err := c.write(frame); err != nil {
			log.Debug().Err(err).Msg("Dropping dead WebSocket subscriber")
		}
	}
}

func (s *Server) limiterFor(remoteAddr string) *ipLimiter {
	ip, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		ip = remoteAddr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[ip]
	if !ok {
		l = &ipLimiter{
			rest: rate.NewLimiter(s.cfg.RESTRate, s.cfg.RESTBurst),
			ws:   rate.NewLimiter(s.cfg.WSRate, s.cfg.WSBurst),
		}
		s.limiters[ip] = l
	}
	return l
}

func (s *Server) chance(p float64) bool {
	if p <= 0 {
		return false
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64() < p
}

func (s *Server) simulateLatency() {
	if s.cfg.Latency == 0 && s.cfg.Jitter == 0 {
		return
	}
	d := s.cfg.Latency
	if s.cfg.Jitter > 0 {
		s.rngMu.Lock()
		d += time.Duration((s.rng.Float64()*2 - 1) * float64(s.cfg.Jitter))
		s.rngMu.Unlock()
	}
	if d > 0 {
		time.Sleep(d)
	}
}

func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	p := s.cfg.Plugin
	s.simulateLatency()

	if s.cfg.RESTRate > 0 && !s.limiterFor(r.RemoteAddr).rest.Allow() {
		body, status := p.RateLimitBody()
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(status)
		w.Write(body)
		return
	}
	if s.chance(s.cfg.DropRate) {
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				conn.Close()
			}
		}
		return
	}
	if s.chance(s.cfg.MalformedRate) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"truncated":`))
		return
	}
	if s.chance(s.cfg.FaultRate) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write(p.ErrorBody(http.StatusInternalServerError, "injected fault"))
		return
	}

	params, err := p.ParseCandlesParams(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		w.Write(p.ErrorBody(http.StatusBadRequest, err.Error()))
		return
	}

	css := s.window(params)
	body, err := p.RenderCandles(params, css)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write(p.ErrorBody(http.StatusInternalServerError, err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// maxSynthesis bounds how many buckets one request may generate on demand.
const maxSynthesis = 1000

// window filters the stored candles by the request's time bounds and limit,
// synthesizing any bounded-window buckets the store does not hold yet so that
// every historical window is answered consistently.
func (s *Server) window(params plugin.Params) []common.Candlestick {
	s.synthesize(params)
	stored := s.Candles(params.Pair, params.Interval)
	out := make([]common.Candlestick, 0, len(stored))
	for _, cs := range stored {
		if params.StartTime != 0 && cs.Timestamp < params.StartTime {
			continue
		}
		if params.EndTime != 0 && cs.Timestamp > params.EndTime {
			continue
		}
		out = append(out, cs)
		if params.Limit > 0 && len(out) >= params.Limit {
			break
		}
	}
	return out
}

// synthesize generates the factory candles for every [StartTime, EndTime]
// bucket not held in the store and merges them in. Unbounded requests serve
// the stored window as-is, and nothing past the server clock is generated.
func (s *Server) synthesize(params plugin.Params) {
	if params.StartTime == 0 || params.EndTime == 0 {
		return
	}
	intervalSecs, err := params.Interval.Seconds()
	if err != nil {
		return
	}

	start := (params.StartTime + intervalSecs - 1) / intervalSecs * intervalSecs
	end := params.EndTime / intervalSecs * intervalSecs
	if now := int(s.cfg.Clock().Unix()) / intervalSecs * intervalSecs; end > now {
		end = now
	}
	if params.Limit > 0 && start+(params.Limit-1)*intervalSecs < end {
		end = start + (params.Limit-1)*intervalSecs
	}
	if end < start {
		return
	}
	if (end-start)/intervalSecs+1 > maxSynthesis {
		end = start + (maxSynthesis-1)*intervalSecs
	}

	key := candleKey(params.Pair, params.Interval)
	s.mu.Lock()
	defer s.mu.Unlock()
	held := map[int]struct{}{}
	for _, cs := range s.candles[key] {
		held[cs.Timestamp] = struct{}{}
	}
	var generated []common.Candlestick
	for ts := start; ts <= end; ts += intervalSecs {
		if _, ok := held[ts]; ok {
			continue
		}
		generated = append(generated, s.factory.CandleAt(params.Pair, params.Interval, ts))
	}
	if len(generated) > 0 {
		s.candles[key] = processor.Merge(s.candles[key], generated)
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &wsClient{conn: conn}
	limiter := s.limiterFor(r.RemoteAddr)
	var keys []string
	defer func() {
		s.mu.Lock()
		for _, key := range keys {
			delete(s.subscribers[key], client)
		}
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if s.cfg.WSRate > 0 && !limiter.ws.Allow() {
			body, _ := s.cfg.Plugin.RateLimitBody()
			_ = client.write(body)
			continue
		}

		sub, ack, err := s.cfg.Plugin.ParseSubscription(raw)
		if err != nil {
			_ = client.write(s.cfg.Plugin.ErrorBody(http.StatusBadRequest, err.Error()))
			continue
		}
		if sub == nil {
			continue
		}

		s.mu.Lock()
		if s.subscribers[sub.Key()] == nil {
			s.subscribers[sub.Key()] = map[*wsClient]struct{}{}
		}
		s.subscribers[sub.Key()][client] = struct{}{}
		s.mu.Unlock()
		keys = append(keys, sub.Key())

		if ack != nil {
			_ = client.write(ack)
		}
	}
}
