package mockserver

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/marianogappa/crypto-feeds/feed/adapter"
	"github.com/marianogappa/crypto-feeds/feed/adapter/binance"
	"github.com/marianogappa/crypto-feeds/feed/adapter/bybit"
	"github.com/marianogappa/crypto-feeds/feed/adapter/gate"
	"github.com/marianogappa/crypto-feeds/feed/adapter/kucoin"
	"github.com/marianogappa/crypto-feeds/feed/adapter/mexc"
	"github.com/marianogappa/crypto-feeds/feed/adapter/mockexchange"
	"github.com/marianogappa/crypto-feeds/feed/adapter/okx"
	"github.com/marianogappa/crypto-feeds/feed/common"
	"github.com/marianogappa/crypto-feeds/mockserver/plugin"
	"github.com/stretchr/testify/require"
)

var btcUSDT = common.TradingPair{Base: "BTC", Quote: "USDT"}

const t0 = 1642329960 // aligned to 1m

// seedCandles carry only the fields every wire format preserves, so the
// round-trip comparison below can be exact across all exchange types.
var seedCandles = []common.Candlestick{
	{Timestamp: t0, OpenPrice: 43086.22, HighestPrice: 43099.5, LowestPrice: 43069.48, ClosePrice: 43070, Volume: 8.65, QuoteAssetVolume: 372709.68},
	{Timestamp: t0 + 60, OpenPrice: 43070, HighestPrice: 43079.63, LowestPrice: 43069.99, ClosePrice: 43072.6, Volume: 5.54, QuoteAssetVolume: 238872.65},
	{Timestamp: t0 + 120, OpenPrice: 43072.6, HighestPrice: 43080.11, LowestPrice: 43060.2, ClosePrice: 43065.9, Volume: 3.11, QuoteAssetVolume: 133942.51},
}

func startServer(t *testing.T, exchangeType string, mutate func(*Config)) *Server {
	t.Helper()
	p, err := plugin.New(exchangeType)
	require.NoError(t, err)
	cfg := Config{Plugin: p}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	t.Cleanup(func() { s.Stop(context.Background()) })
	s.SetCandles(btcUSDT, common.Interval1m, seedCandles)
	return s
}

// Every adapter fetching from its matching mock personality must recover the
// seeded candles exactly: the translation layers cancel out.
func TestAdapterPluginRoundTrip(t *testing.T) {
	cases := []struct {
		exchangeType string
		factory      adapter.Factory
	}{
		{"binance", binance.Factory},
		{"bybit", bybit.Factory},
		{"gate", gate.Factory},
		{"kucoin", kucoin.Factory},
		{"mexc", mexc.Factory},
		{"mockexchange", mockexchange.Factory},
		{"okx", okx.Factory},
	}

	for _, tc := range cases {
		t.Run(tc.exchangeType, func(t *testing.T) {
			s := startServer(t, tc.exchangeType, nil)

			a, err := tc.factory(adapter.Options{})
			require.NoError(t, err)
			restore, err := BindAdapter(a, s)
			require.NoError(t, err)
			defer restore()

			actual, err := a.FetchCandles(context.Background(), btcUSDT, common.Interval1m, adapter.FetchOptions{StartTime: t0})
			require.NoError(t, err)
			require.Equal(t, seedCandles, actual)
		})
	}
}

func TestWindowFiltering(t *testing.T) {
	s := startServer(t, "mockexchange", nil)

	a, err := mockexchange.New(adapter.Options{})
	require.NoError(t, err)
	restore, err := BindAdapter(a, s)
	require.NoError(t, err)
	defer restore()

	css, err := a.FetchCandles(context.Background(), btcUSDT, common.Interval1m, adapter.FetchOptions{StartTime: t0 + 60, EndTime: t0 + 60})
	require.NoError(t, err)
	require.Equal(t, seedCandles[1:2], css)

	css, err = a.FetchCandles(context.Background(), btcUSDT, common.Interval1m, adapter.FetchOptions{Limit: 2})
	require.NoError(t, err)
	require.Equal(t, seedCandles[:2], css)
}

func TestRESTRateLimiting(t *testing.T) {
	s := startServer(t, "binance", func(cfg *Config) {
		cfg.RESTRate = 1
		cfg.RESTBurst = 1
	})

	a, err := binance.New(adapter.Options{})
	require.NoError(t, err)
	restore, err := BindAdapter(a, s)
	require.NoError(t, err)
	defer restore()

	_, err = a.FetchCandles(context.Background(), btcUSDT, common.Interval1m, adapter.FetchOptions{})
	require.NoError(t, err)

	// The second immediate request exceeds the 1 req/s budget and surfaces
	// the exchange-native 429 body as ErrRateLimit.
	_, err = a.FetchCandles(context.Background(), btcUSDT, common.Interval1m, adapter.FetchOptions{})
	require.ErrorIs(t, err, common.ErrRateLimit)
}

func TestFaultInjection(t *testing.T) {
	s := startServer(t, "mockexchange", func(cfg *Config) {
		cfg.FaultRate = 1
	})

	a, err := mockexchange.New(adapter.Options{})
	require.NoError(t, err)
	restore, err := BindAdapter(a, s)
	require.NoError(t, err)
	defer restore()

	_, err = a.FetchCandles(context.Background(), btcUSDT, common.Interval1m, adapter.FetchOptions{})
	require.Error(t, err)
}

func TestPushCandleBroadcast(t *testing.T) {
	s := startServer(t, "mockexchange", nil)
	wsURL, err := s.WSURL()
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"op": "subscribe", "symbol": "BTC-USDT", "interval": "1m"}))

	var ack map[string]string
	require.NoError(t, conn.ReadJSON(&ack))
	require.Equal(t, "subscribed", ack["type"])

	pushed := common.Candlestick{Timestamp: t0 + 180, OpenPrice: 43065.9, HighestPrice: 43070, LowestPrice: 43060, ClosePrice: 43068.2, Volume: 1.5, QuoteAssetVolume: 64602.3}
	s.PushCandle(btcUSDT, common.Interval1m, pushed)

	a, err := mockexchange.New(adapter.Options{})
	require.NoError(t, err)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	css, err := a.ParseWSMessage(raw)
	require.NoError(t, err)
	require.Equal(t, []common.Candlestick{pushed}, css)

	// The pushed candle is also merged into the REST window.
	require.Len(t, s.Candles(btcUSDT, common.Interval1m), 4)
}

func TestDeterministicSeeding(t *testing.T) {
	f1 := NewCandleFactory(42)
	f2 := NewCandleFactory(42)
	w1 := f1.Window(btcUSDT, common.Interval1m, t0, 50)
	w2 := f2.Window(btcUSDT, common.Interval1m, t0, 50)
	require.Equal(t, w1, w2)
	require.Len(t, w1, 50)

	// Subsequent candles chain: each open equals the previous close, and
	// invariants hold throughout.
	for i, cs := range w1 {
		require.NoError(t, cs.Validate())
		if i > 0 {
			require.Equal(t, w1[i-1].ClosePrice, cs.OpenPrice)
			require.Equal(t, w1[i-1].Timestamp+60, cs.Timestamp)
		}
	}

	// A different seed produces a different walk.
	w3 := NewCandleFactory(43).Window(btcUSDT, common.Interval1m, t0, 50)
	require.NotEqual(t, w1, w3)
}

func TestCreateMockServer(t *testing.T) {
	s, err := CreateMockServer("mockexchange", "127.0.0.1", 0)
	require.NoError(t, err)
	defer s.Stop(context.Background())

	url, err := s.URL()
	require.NoError(t, err)
	require.Contains(t, url, "http://127.0.0.1:")

	for _, pair := range DefaultPairs {
		require.Len(t, s.Candles(pair, common.Interval1m), 150)
	}

	_, err = CreateMockServer("hyperliquid", "127.0.0.1", 0)
	require.ErrorIs(t, err, plugin.ErrUnknownExchangeType)
}

// Bounded windows outside the seeded range are synthesized on demand from the
// deterministic factory, so any historical window is answered consistently.
func TestOnDemandSynthesis(t *testing.T) {
	s := startServer(t, "mockexchange", func(cfg *Config) {
		cfg.Clock = func() time.Time { return time.Unix(t0+3600, 0) }
	})

	a, err := mockexchange.New(adapter.Options{})
	require.NoError(t, err)
	restore, err := BindAdapter(a, s)
	require.NoError(t, err)
	defer restore()

	// [t0+600, t0+840] lies entirely outside the three seeded candles.
	opts := adapter.FetchOptions{StartTime: t0 + 600, EndTime: t0 + 840}
	css, err := a.FetchCandles(context.Background(), btcUSDT, common.Interval1m, opts)
	require.NoError(t, err)
	require.Len(t, css, 5)
	for i, cs := range css {
		require.Equal(t, t0+600+i*60, cs.Timestamp)
		require.NoError(t, cs.Validate())
	}

	// Repeating the request serves identical data.
	again, err := a.FetchCandles(context.Background(), btcUSDT, common.Interval1m, opts)
	require.NoError(t, err)
	require.Equal(t, css, again)

	// Seeded candles keep being served verbatim.
	stored, err := a.FetchCandles(context.Background(), btcUSDT, common.Interval1m, adapter.FetchOptions{StartTime: t0, EndTime: t0 + 120})
	require.NoError(t, err)
	require.Equal(t, seedCandles, stored)

	// Nothing past the server clock is synthesized.
	future, err := a.FetchCandles(context.Background(), btcUSDT, common.Interval1m, adapter.FetchOptions{StartTime: t0 + 7200, EndTime: t0 + 7260})
	require.NoError(t, err)
	require.Empty(t, future)
}

func TestDropFaultInjection(t *testing.T) {
	s := startServer(t, "mockexchange", func(cfg *Config) {
		cfg.DropRate = 1
	})

	a, err := mockexchange.New(adapter.Options{})
	require.NoError(t, err)
	restore, err := BindAdapter(a, s)
	require.NoError(t, err)
	defer restore()

	_, err = a.FetchCandles(context.Background(), btcUSDT, common.Interval1m, adapter.FetchOptions{})
	require.Error(t, err)
}

func TestMalformedFaultInjection(t *testing.T) {
	s := startServer(t, "mockexchange", func(cfg *Config) {
		cfg.MalformedRate = 1
	})

	a, err := mockexchange.New(adapter.Options{})
	require.NoError(t, err)
	restore, err := BindAdapter(a, s)
	require.NoError(t, err)
	defer restore()

	_, err = a.FetchCandles(context.Background(), btcUSDT, common.Interval1m, adapter.FetchOptions{})
	require.ErrorIs(t, err, common.ErrInvalidJSONResponse)
}

// Simulated latency applies before throttling, so even 429 responses take at
// least the configured delay.
func TestLatencyDelaysThrottledResponses(t *testing.T) {
	s := startServer(t, "binance", func(cfg *Config) {
		cfg.RESTRate = 1
		cfg.RESTBurst = 1
		cfg.Latency = 50 * time.Millisecond
	})

	a, err := binance.New(adapter.Options{})
	require.NoError(t, err)
	restore, err := BindAdapter(a, s)
	require.NoError(t, err)
	defer restore()

	_, err = a.FetchCandles(context.Background(), btcUSDT, common.Interval1m, adapter.FetchOptions{})
	require.NoError(t, err)

	begin := time.Now()
	_, err = a.FetchCandles(context.Background(), btcUSDT, common.Interval1m, adapter.FetchOptions{})
	require.ErrorIs(t, err, common.ErrRateLimit)
	require.GreaterOrEqual(t, time.Since(begin), 50*time.Millisecond)
}
