package signaling

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	// pingInterval and pongWait drive the heartbeat that detects a dead peer
	// without waiting on a TCP-level timeout.
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	readLimit    = 65536
	sendBuffer   = 256
)

// ErrClosed is returned by Recv once the channel has been closed, either by
// the remote peer disconnecting or by a local Close call.
var ErrClosed = errors.New("signaling: channel closed")

// Inbound is one decoded message frame: its sniffed type tag plus the raw
// bytes for full unmarshalling into a concrete message struct.
type Inbound struct {
	Type string
	Raw  []byte
}

// Channel is the Signal Channel capability: a framed bidirectional transport
// with a single-owner, frame-atomic writer and a lazy sequence of inbound
// frames. Send is always best-effort: a slow or dead peer drops messages
// rather than blocking its sender (see spec §7, broadcast failure isolation).
type Channel interface {
	Send(v interface{})
	Recv() (Inbound, error)
	Done() <-chan struct{}
	Close() error
}

// WSChannel implements Channel over a gorilla/websocket connection, mirroring
// the teacher's read/write pump split: one goroutine owns the socket for
// writes (serialized, heartbeat-ticked), one owns it for reads (decodes and
// forwards frames), so the connection itself never sees concurrent access.
type WSChannel struct {
	connID string
	conn   *websocket.Conn
	log    *zap.Logger

	out       chan []byte
	in        chan Inbound
	done      chan struct{}
	closeOnce sync.Once
}

// NewWSChannel wraps an accepted WebSocket connection and starts its pumps.
// Every channel gets a random correlation id purely for log correlation
// across the readPump/writePump goroutine pair — it never appears on the
// wire and plays no role in any protocol decision.
func NewWSChannel(conn *websocket.Conn, log *zap.Logger) *WSChannel {
	connID := uuid.NewString()
	c := &WSChannel{
		connID: connID,
		conn:   conn,
		log:    log.With(zap.String("conn_id", connID)),
		out:    make(chan []byte, sendBuffer),
		in:     make(chan Inbound, sendBuffer),
		done:   make(chan struct{}),
	}
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	go c.readPump()
	go c.writePump()
	return c
}

// Send marshals v and enqueues it for delivery. Best-effort: if the outbound
// buffer is full the frame is dropped rather than blocking the caller.
func (c *WSChannel) Send(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Error("marshal outbound message", zap.Error(err))
		return
	}
	select {
	case c.out <- data:
	default:
		c.log.Warn("dropping outbound message, send buffer full")
	}
}

// Recv returns the next inbound frame, blocking until one arrives or the
// channel closes.
func (c *WSChannel) Recv() (Inbound, error) {
	select {
	case msg, ok := <-c.in:
		if !ok {
			return Inbound{}, ErrClosed
		}
		return msg, nil
	case <-c.done:
		return Inbound{}, ErrClosed
	}
}

// Done reports channel teardown, so a caller blocked waiting on something
// else (e.g. an admission gate) can unblock on disconnect.
func (c *WSChannel) Done() <-chan struct{} {
	return c.done
}

// Close tears down the channel. Idempotent: closing an already-closed
// connection is not reported as an error.
func (c *WSChannel) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (c *WSChannel) readPump() {
	defer func() {
		close(c.in)
		c.closeOnce.Do(func() { close(c.done) })
	}()
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		typ := gjson.GetBytes(raw, "type").String()
		if typ == "" {
			continue // unknown/malformed shape, ignored per spec §7
		}
		select {
		case c.in <- Inbound{Type: typ, Raw: raw}:
		case <-c.done:
			return
		}
	}
}

func (c *WSChannel) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.closeOnce.Do(func() { close(c.done) })
		_ = c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.out:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
