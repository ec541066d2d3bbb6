package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// clientConn serialises writes to one websocket; gorilla allows a single
// concurrent writer.
type clientConn struct {
	rawConn   *websocket.Conn
	mu        sync.Mutex
	closeOnce sync.Once
}

func (c *clientConn) Write(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.rawConn.WriteMessage(websocket.TextMessage, frame)
}

func (c *clientConn) ping() error {
	return c.rawConn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *clientConn) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.rawConn.Close() })
	return err
}
