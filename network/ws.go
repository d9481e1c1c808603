package network

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// WSAssistant is a handle to one live WebSocket connection. iter_messages is a lazy, possibly
// infinite sequence of decoded messages delivered over a channel; it terminates (the channel is
// closed) when the connection closes.
//
// Grounded on the dial/read-loop shape of yitech-candles/adapter/binance/ws.go, generalized into
// an explicit handle rather than a callback so CollectionStrategy owns its own read loop and
// reconnect/backoff state machine (spec §4.4.2) instead of the adapter owning it.
type WSAssistant interface {
	Send(ctx context.Context, v interface{}) error
	Messages() <-chan WSMessage
	Disconnect() error
	Closed() bool
}

// WSMessage is one decoded inbound WebSocket message, or a terminal error.
type WSMessage struct {
	Data interface{}
	Err  error
}

type wsConn struct {
	conn     *websocket.Conn
	messages chan WSMessage
	mu       sync.Mutex
	closed   bool
}

type websocketDialer struct {
	dialer *websocket.Dialer
}

func newWebsocketDialer() *websocketDialer {
	return &websocketDialer{dialer: websocket.DefaultDialer}
}

func (wd *websocketDialer) dial(ctx context.Context, url string) (WSAssistant, error) {
	conn, _, err := wd.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: ws dial: %v", ErrTransport, err)
	}

	wc := &wsConn{conn: conn, messages: make(chan WSMessage, 64)}
	go wc.readLoop()
	return wc, nil
}

func (wc *wsConn) readLoop() {
	defer close(wc.messages)
	for {
		_, raw, err := wc.conn.ReadMessage()
		if err != nil {
			wc.mu.Lock()
			alreadyClosed := wc.closed
			wc.mu.Unlock()
			if !alreadyClosed {
				wc.messages <- WSMessage{Err: fmt.Errorf("%w: ws read: %v", ErrTransport, err)}
			}
			return
		}

		var decoded interface{}
		if err := jsonFast.Unmarshal(raw, &decoded); err != nil {
			wc.messages <- WSMessage{Err: fmt.Errorf("%w: %v", ErrProtocol, err)}
			continue
		}
		wc.messages <- WSMessage{Data: decoded}
	}
}

func (wc *wsConn) Send(ctx context.Context, v interface{}) error {
	raw, err := jsonFast.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encoding ws message: %v", ErrProtocol, err)
	}
	if err := wc.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("%w: ws write: %v", ErrTransport, err)
	}
	return nil
}

func (wc *wsConn) Messages() <-chan WSMessage { return wc.messages }

func (wc *wsConn) Disconnect() error {
	wc.mu.Lock()
	if wc.closed {
		wc.mu.Unlock()
		return nil
	}
	wc.closed = true
	wc.mu.Unlock()

	_ = wc.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return wc.conn.Close()
}

func (wc *wsConn) Closed() bool {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return wc.closed
}
