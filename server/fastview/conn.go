package fastview

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

// ErrConnBusy is returned when a read or write waits too long for its turn on the socket.
var ErrConnBusy = errors.New("websocket busy")

const (
	turnTimeout      = time.Second
	closeGracePeriod = time.Second
)

// serialConn admits one reader and one writer at a time, which is all a
// gorilla connection supports.
type serialConn struct {
	ws     *websocket.Conn
	reader chan struct{}
	writer chan struct{}
}

func newSerialConn(ws *websocket.Conn) *serialConn {
	return &serialConn{
		ws:     ws,
		reader: make(chan struct{}, 1),
		writer: make(chan struct{}, 1),
	}
}

// Raw exposes the connection for setup and for calls that gorilla allows
// concurrently, such as setting deadlines from a handler.
func (c *serialConn) Raw() *websocket.Conn {
	return c.ws
}

func (c *serialConn) Read(ctx context.Context, fn func(*websocket.Conn) error) error {
	return c.exclusive(ctx, c.reader, fn)
}

func (c *serialConn) Write(ctx context.Context, fn func(*websocket.Conn) error) error {
	return c.exclusive(ctx, c.writer, fn)
}

// exclusive runs fn while holding turn. A done ctx skips fn and returns nil.
func (c *serialConn) exclusive(
	ctx context.Context,
	turn chan struct{},
	fn func(*websocket.Conn) error,
) error {
	timer := time.NewTimer(turnTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil
	case <-timer.C:
		return ErrConnBusy
	case turn <- struct{}{}:
	}
	defer func() { <-turn }()
	return fn(c.ws)
}

// Close sends a normal-closure frame, waits closeGracePeriod for the peer,
// then drops the connection, which fails any read still in flight.
func (c *serialConn) Close() {
	_ = c.Write(context.Background(), func(ws *websocket.Conn) error {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		return ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
	})
	time.Sleep(closeGracePeriod)
	c.ws.Close()
}
