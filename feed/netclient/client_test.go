package netclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/marianogappa/crypto-feeds/feed/common"
	"github.com/stretchr/testify/require"
)

func TestGetRESTDataHappyCase(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		require.Equal(t, "test-value", r.Header.Get("X-Test"))
		fmt.Fprintln(w, `{"hello": "world"}`)
	}))
	defer ts.Close()

	c := New(Config{})
	raw, err := c.GetRESTData(context.Background(), ts.URL, url.Values{"symbol": {"BTCUSDT"}}, map[string]string{"X-Test": "test-value"}, "GET", nil)
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "world", decoded["hello"])
}

func TestGetRESTDataPostBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "subscribe", body["op"])
		fmt.Fprintln(w, `{}`)
	}))
	defer ts.Close()

	c := New(Config{})
	_, err := c.GetRESTData(context.Background(), ts.URL, nil, nil, "POST", map[string]string{"op": "subscribe"})
	require.NoError(t, err)
}

func TestGetRESTDataNon2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintln(w, `{"error": "boom"}`)
	}))
	defer ts.Close()

	c := New(Config{})
	_, err := c.GetRESTData(context.Background(), ts.URL, nil, nil, "GET", nil)
	require.Error(t, err)

	te, ok := err.(TransportError)
	require.True(t, ok)
	require.Equal(t, http.StatusInternalServerError, te.StatusCode)
	require.Contains(t, string(te.Body), "boom")
}

func TestGetRESTDataRateLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprintln(w, `{"code": -1003}`)
	}))
	defer ts.Close()

	c := New(Config{})
	_, err := c.GetRESTData(context.Background(), ts.URL, nil, nil, "GET", nil)
	te, ok := err.(TransportError)
	require.True(t, ok)
	require.ErrorIs(t, te.Err, common.ErrRateLimit)
	require.Equal(t, "3s", te.RetryAfter.String())
}

func TestGetRESTDataInvalidJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `<html>not json</html>`)
	}))
	defer ts.Close()

	c := New(Config{})
	_, err := c.GetRESTData(context.Background(), ts.URL, nil, nil, "GET", nil)
	te, ok := err.(TransportError)
	require.True(t, ok)
	require.ErrorIs(t, te.Err, common.ErrInvalidJSONResponse)
}

func TestGetRESTDataConnectionRefused(t *testing.T) {
	c := New(Config{})
	_, err := c.GetRESTData(context.Background(), "http://127.0.0.1:1", nil, nil, "GET", nil)
	te, ok := err.(TransportError)
	require.True(t, ok)
	require.ErrorIs(t, te.Err, common.ErrExecutingRequest)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	c := New(Config{BreakerEnabled: true})
	for i := 0; i < 5; i++ {
		_, err := c.GetRESTData(context.Background(), ts.URL, nil, nil, "GET", nil)
		require.Error(t, err)
	}
	// Circuit is now open: the request fails without reaching the server.
	_, err := c.GetRESTData(context.Background(), ts.URL, nil, nil, "GET", nil)
	require.Error(t, err)
}

func TestEstablishWSConnection(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		// Echo one message back, then push one more.
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, msg)
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"n": 2}`))
	}))
	defer ts.Close()

	c := New(Config{})
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	ws, err := c.EstablishWSConnection(context.Background(), wsURL)
	require.NoError(t, err)
	defer ws.Disconnect()

	require.NoError(t, ws.Send(map[string]int{"n": 1}))

	first := <-ws.Messages()
	require.JSONEq(t, `{"n": 1}`, string(first))
	second := <-ws.Messages()
	require.JSONEq(t, `{"n": 2}`, string(second))
}

func TestWSDisconnectIsIdempotent(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer ts.Close()

	c := New(Config{})
	ws, err := c.EstablishWSConnection(context.Background(), "ws"+strings.TrimPrefix(ts.URL, "http"))
	require.NoError(t, err)

	require.NoError(t, ws.Disconnect())
	require.NoError(t, ws.Disconnect())
	require.True(t, ws.Closed())
}

func TestWSDisconnectUnblocksPendingFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		// Burst well past the client's channel buffer while nobody consumes.
		for i := 0; i < 200; i++ {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf(`{"n": %d}`, i))); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer ts.Close()

	c := New(Config{})
	ws, err := c.EstablishWSConnection(context.Background(), "ws"+strings.TrimPrefix(ts.URL, "http"))
	require.NoError(t, err)

	require.NoError(t, ws.Disconnect())

	// The read pump must wind down and close the channel instead of staying
	// blocked on a send nobody will receive.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ws.Messages():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("read pump stayed blocked after Disconnect")
		}
	}
}
