package netclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/marianogappa/crypto-feeds/feed/common"
)

// WSAssistant is a live WebSocket connection handle. Messages() yields decoded
// JSON frames until the connection closes; Disconnect() is idempotent.
type WSAssistant struct {
	conn     *websocket.Conn
	messages chan json.RawMessage
	done     chan struct{}

	mu     sync.Mutex
	closed bool
}

// EstablishWSConnection dials the given ws:// or wss:// URL and starts pumping
// incoming frames. Non-JSON frames are dropped; ping/pong control frames are
// handled by the underlying connection.
func (c *Client) EstablishWSConnection(ctx context.Context, rawURL string) (*WSAssistant, error) {
	dialer := websocket.Dialer{HandshakeTimeout: defaultConnectTimeout}
	conn, _, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, TransportError{Err: fmt.Errorf("%w: ws dial: %v", common.ErrExecutingRequest, err)}
	}

	ws := &WSAssistant{
		conn:     conn,
		messages: make(chan json.RawMessage, 64),
		done:     make(chan struct{}),
	}
	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})
	go ws.readPump()
	return ws, nil
}

func (ws *WSAssistant) readPump() {
	defer close(ws.messages)
	defer ws.markClosed()
	for {
		_, bs, err := ws.conn.ReadMessage()
		if err != nil {
			return
		}
		if !json.Valid(bs) {
			continue
		}
		// The consumer may have stopped reading; never stay blocked on the
		// channel send past a Disconnect.
		select {
		case ws.messages <- json.RawMessage(bs):
		case <-ws.done:
			return
		}
	}
}

// Send marshals v to JSON and writes it as a text frame.
func (ws *WSAssistant) Send(v interface{}) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.closed {
		return TransportError{Err: fmt.Errorf("ws connection closed")}
	}
	if err := ws.conn.WriteJSON(v); err != nil {
		return TransportError{Err: err}
	}
	return nil
}

// Messages is the lazy, possibly infinite sequence of decoded incoming frames.
// The channel is closed when the connection terminates.
func (ws *WSAssistant) Messages() <-chan json.RawMessage {
	return ws.messages
}

// Disconnect sends a close frame and tears down the connection. Idempotent.
func (ws *WSAssistant) Disconnect() error {
	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		return nil
	}
	ws.closed = true
	close(ws.done)
	ws.mu.Unlock()

	_ = ws.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return ws.conn.Close()
}

// Closed reports whether the connection has terminated.
func (ws *WSAssistant) Closed() bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.closed
}

func (ws *WSAssistant) markClosed() {
	ws.mu.Lock()
	ws.closed = true
	ws.mu.Unlock()
}
