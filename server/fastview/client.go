package fastview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

const (
	writeTimeout    = time.Second
	readLimit       = 8192
	publishInterval = 100 * time.Millisecond
	pingInterval    = 200 * time.Millisecond
	// A peer that misses four pings in a row is gone.
	pongTimeout = 4 * pingInterval
)

var upgrader = websocket.Upgrader{}

// ErrPeerUnresponsive is returned by Sync when the browser stops answering pings.
var ErrPeerUnresponsive = errors.New("websocket peer stopped answering pings")

var errUpdatesClosed = errors.New("updates channel closed")

// Client streams values from an update channel to one browser. Inbound frames
// are read only so that pongs and close frames get processed.
type Client[T any] struct {
	updates <-chan T
	pongs   chan struct{}
	conn    *serialConn
	ctx     context.Context
}

// NewClient upgrades r to a websocket. Each value on updates must describe the
// whole client state: values arriving within publishInterval of the previous
// send are dropped.
func NewClient[T any](
	updates <-chan T,
	w http.ResponseWriter,
	r *http.Request,
) (*Client[T], error) {
	// On failure Upgrade has already written the http error.
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade: %w", err)
	}
	ws.SetReadLimit(readLimit)

	cli := &Client[T]{
		updates: updates,
		pongs:   make(chan struct{}, 1),
		conn:    newSerialConn(ws),
		ctx:     r.Context(),
	}
	ws.SetPongHandler(cli.onPong)
	return cli, nil
}

// Sync blocks until the peer leaves, the request ends, or updates is closed,
// then closes the socket. A clean shutdown returns nil.
func (cli *Client[T]) Sync() error {
	defer cli.conn.Close()

	group, ctx := errgroup.WithContext(cli.ctx)
	group.Go(func() error {
		return cli.drain(ctx)
	})
	group.Go(func() error {
		return cli.keepAlive(ctx)
	})
	group.Go(func() error {
		if err := cli.publish(ctx); err != nil {
			return err
		}
		return errUpdatesClosed
	})

	if err := group.Wait(); !errors.Is(err, errUpdatesClosed) {
		return err
	}
	return nil
}

// onPong runs on the reading goroutine.
func (cli *Client[T]) onPong(string) error {
	select {
	case cli.pongs <- struct{}{}:
	default:
	}
	return cli.conn.Raw().SetReadDeadline(time.Now().Add(pongTimeout))
}

// keepAlive pings every pingInterval. Pongs only arrive while drain is reading.
func (cli *Client[T]) keepAlive(ctx context.Context) error {
	ticks := channerics.NewTicker(ctx.Done(), pingInterval)
	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-cli.pongs:
			lastPong = time.Now()
		case <-ticks:
			if time.Since(lastPong) > pongTimeout {
				return ErrPeerUnresponsive
			}
			err := cli.conn.Write(ctx, func(ws *websocket.Conn) error {
				return ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			})
			if err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

// drain discards inbound messages. Any read error is permanent.
func (cli *Client[T]) drain(ctx context.Context) error {
	if err := cli.conn.Raw().SetReadDeadline(time.Now().Add(pongTimeout)); err != nil {
		return err
	}
	for ctx.Err() == nil {
		err := cli.conn.Read(ctx, func(ws *websocket.Conn) error {
			_, _, err := ws.ReadMessage()
			return err
		})
		if isClosure(err) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (cli *Client[T]) publish(ctx context.Context) error {
	var sent time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-cli.updates:
			if !ok {
				return nil
			}
			if time.Since(sent) < publishInterval {
				continue
			}
			sent = time.Now()

			err := cli.send(ctx, update)
			if isClosure(err) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("publish: %w", err)
			}
		}
	}
}

func (cli *Client[T]) send(ctx context.Context, update T) error {
	return cli.conn.Write(ctx, func(ws *websocket.Conn) error {
		if err := ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return err
		}
		return ws.WriteJSON(update)
	})
}

func isClosure(err error) bool {
	return err != nil && websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}
