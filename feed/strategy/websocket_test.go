package strategy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/marianogappa/crypto-feeds/feed/adapter"
	"github.com/marianogappa/crypto-feeds/feed/adapter/gate"
	"github.com/marianogappa/crypto-feeds/feed/adapter/mexc"
	"github.com/marianogappa/crypto-feeds/feed/adapter/mockexchange"
	"github.com/marianogappa/crypto-feeds/feed/common"
	"github.com/marianogappa/crypto-feeds/feed/store"
	"github.com/stretchr/testify/require"
)

func TestWebsocketConstructorGuards(t *testing.T) {
	st := store.NewBounded(10)

	syncOnly, err := gate.New(adapter.Options{})
	require.NoError(t, err)
	_, err = NewWebsocket(Config{Adapter: syncOnly, Pair: btcUSDT, Interval: common.Interval1m, Store: st}, nil)
	require.ErrorIs(t, err, ErrAsyncAdapterRequired)

	noWS, err := mexc.New(adapter.Options{})
	require.NoError(t, err)
	_, err = NewWebsocket(Config{Adapter: noWS, Pair: btcUSDT, Interval: common.Interval1m, Store: st}, nil)
	require.ErrorIs(t, err, ErrWSIntervalUnsupported)
}

func TestWebsocketLivenessFloor(t *testing.T) {
	e, err := mockexchange.New(adapter.Options{})
	require.NoError(t, err)

	s, err := NewWebsocket(Config{Adapter: e, Pair: btcUSDT, Interval: common.Interval1m, Store: store.NewBounded(10)}, nil)
	require.NoError(t, err)
	require.Equal(t, 3*time.Minute, s.liveness())

	s, err = NewWebsocket(Config{Adapter: e, Pair: btcUSDT, Interval: common.Interval1s, Store: store.NewBounded(10)}, nil)
	require.NoError(t, err)
	require.Equal(t, minLiveness, s.liveness())
}

func TestWebsocketStreamsIntoStore(t *testing.T) {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/candles", func(w http.ResponseWriter, r *http.Request) {
		// REST seed on (re)connect.
		fmt.Fprintf(w, "[%v]", candleJSON(t0))
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub mockexchange.WSSubscription
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		if sub.Op != "subscribe" || sub.Symbol != "BTC-USDT" || sub.Interval != "1m" {
			return
		}
		_ = conn.WriteJSON(map[string]string{"type": "subscribed"})
		_ = conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf(
			`{"type": "candle", "symbol": "BTC-USDT", "interval": "1m", "candle": %v}`, candleJSON(t1),
		)))
		// Hold the connection open so the strategy keeps streaming.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	e, err := mockexchange.New(adapter.Options{})
	require.NoError(t, err)
	defer e.PatchURLs(ts.URL, wsURL)()

	st := store.NewBounded(10)
	s, err := NewWebsocket(Config{Adapter: e, Pair: btcUSDT, Interval: common.Interval1m, Store: st}, nil)
	require.NoError(t, err)
	require.Equal(t, StateDisconnected, s.State())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Both the REST seed (t0) and the streamed push (t1) must land.
	require.Eventually(t, func() bool { return st.Len() == 2 }, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, StateStreaming, s.State())

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestWebsocketReconnectsAfterClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var dials int
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/candles", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "[]")
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		dials++
		if dials == 1 {
			// First connection dies right after subscribing.
			conn.Close()
			return
		}
		defer conn.Close()
		var sub mockexchange.WSSubscription
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf(
			`{"type": "candle", "symbol": "BTC-USDT", "interval": "1m", "candle": %v}`, candleJSON(t2),
		)))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	e, err := mockexchange.New(adapter.Options{})
	require.NoError(t, err)
	defer e.PatchURLs(ts.URL, wsURL)()

	st := store.NewBounded(10)
	s, err := NewWebsocket(Config{Adapter: e, Pair: btcUSDT, Interval: common.Interval1m, Store: st}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	require.Eventually(t, func() bool { return st.Len() == 1 }, 10*time.Second, 10*time.Millisecond)
}
