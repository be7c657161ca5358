package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn wraps a browser-facing websocket connection. Reads stay with a
// single goroutine (the coordinator's client pump); writes come from
// the agent pump and the teardown path, so they are serialized here.
// Close is idempotent because teardown may race a failing pump.
type Conn struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func NewConn(conn *websocket.Conn) *Conn {
	return &Conn{conn: conn}
}

// ReadMessage returns the next frame from the browser. The returned
// error is terminal: websocket close, network error, or deadline.
func (c *Conn) ReadMessage() (int, []byte, error) {
	return c.conn.ReadMessage()
}

// SetReadDeadline bounds the next read. Used for the init handshake.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// WriteJSON marshals v and sends it as a text frame.
func (c *Conn) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
