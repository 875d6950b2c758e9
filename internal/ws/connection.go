package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Harshcreator/live-attendance-system/pkg/types"
)

const (
	writeTimeout   = 5 * time.Second
	sendBufferSize = 100
)

// Connection wraps one WebSocket link with its authenticated identity.
// The identity is fixed at construction and never mutated. All writes
// are serialized through a single writer goroutine because gorilla
// connections allow only one concurrent writer.
type Connection struct {
	id        string
	identity  types.Identity
	conn      *websocket.Conn
	writeCh   chan []byte
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection wraps an upgraded WebSocket connection with identity
// and starts its writer goroutine. The connection handle is a fresh
// opaque id, so two connections for the same user stay distinct.
func NewConnection(conn *websocket.Conn, identity types.Identity) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:       uuid.New().String(),
		identity: identity,
		conn:     conn,
		writeCh:  make(chan []byte, sendBufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}

	go c.writeLoop()

	return c
}

// ID returns the opaque connection handle.
func (c *Connection) ID() string {
	return c.id
}

// Identity returns the authenticated identity attached at creation.
func (c *Connection) Identity() types.Identity {
	return c.identity
}

// Done is closed when the connection shuts down.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON queues an event for delivery as one JSON text frame.
func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(writeTimeout):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close tears down the writer goroutine and the transport. Safe to
// call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}
