package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

// connWriter is the write surface SafeConn guards. *websocket.Conn
// satisfies it.
type connWriter interface {
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// SafeConn serializes writes to one websocket connection.
// gorilla/websocket allows a single concurrent writer, and a tracking
// session is written from two goroutines: the hub's broadcast fan-out
// and the handler's read loop replying to ping/refresh.
type SafeConn struct {
	mu sync.Mutex
	w  connWriter
}

func NewSafeConn(conn *websocket.Conn) *SafeConn {
	return &SafeConn{w: conn}
}

func (c *SafeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w.WriteJSON(v)
}

func (c *SafeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w.WriteMessage(messageType, data)
}

func (c *SafeConn) Close() error {
	return c.w.Close()
}
