package bridge

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum envelope size accepted from the peer.
	maxMessageSize = 65536 // 64KB
)

// WSServerTransport adapts an upgraded gorilla connection (the shell side of
// the bridge) to the Transport interface. A single WebSocket connection is
// the one logical channel; TCP ordering gives FIFO per direction.
type WSServerTransport struct {
	conn *websocket.Conn

	writeMu   sync.Mutex // serializes writes, gorilla allows one writer
	closeOnce sync.Once
}

// NewWSServerTransport wraps an upgraded server-side connection.
func NewWSServerTransport(conn *websocket.Conn) *WSServerTransport {
	conn.SetReadLimit(maxMessageSize)
	return &WSServerTransport{conn: conn}
}

// Send writes one text message to the peer.
func (t *WSServerTransport) Send(ctx context.Context, msg []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	t.conn.SetWriteDeadline(deadline)
	if err := t.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("bridge: ws write: %w", err)
	}
	return nil
}

// Receive reads the next text message from the peer.
func (t *WSServerTransport) Receive(ctx context.Context) ([]byte, error) {
	if d, ok := ctx.Deadline(); ok {
		t.conn.SetReadDeadline(d)
	} else {
		t.conn.SetReadDeadline(time.Time{})
	}
	_, msg, err := t.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, ErrTransportClosed
		}
		return nil, fmt.Errorf("bridge: ws read: %w", err)
	}
	return msg, nil
}

// Close closes the underlying connection.
func (t *WSServerTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = t.conn.Close()
	})
	return err
}

// WSClientTransport is the web-content side of the bridge channel, dialed
// out to the shell's bridge endpoint.
type WSClientTransport struct {
	conn net.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// DialWS connects to the shell's bridge endpoint at url (ws://...).
func DialWS(ctx context.Context, url string) (*WSClientTransport, error) {
	conn, _, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("bridge: ws dial: %w", err)
	}
	return &WSClientTransport{conn: conn}, nil
}

// Send writes one text message to the shell.
func (t *WSClientTransport) Send(ctx context.Context, msg []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	t.conn.SetWriteDeadline(deadline)
	if err := wsutil.WriteClientText(t.conn, msg); err != nil {
		return fmt.Errorf("bridge: ws write: %w", err)
	}
	return nil
}

// Receive reads the next text message from the shell.
func (t *WSClientTransport) Receive(ctx context.Context) ([]byte, error) {
	if d, ok := ctx.Deadline(); ok {
		t.conn.SetReadDeadline(d)
	} else {
		t.conn.SetReadDeadline(time.Time{})
	}
	msg, err := wsutil.ReadServerText(t.conn)
	if err != nil {
		return nil, fmt.Errorf("bridge: ws read: %w", err)
	}
	return msg, nil
}

// Close closes the underlying connection.
func (t *WSClientTransport) Close() error {
	var err error
	t.closeOnce.Do(func() { err = t.conn.Close() })
	return err
}
