package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// member is anything the hub can deliver a frame to. The real
// implementation is clientConn; tests substitute their own.
type member interface {
	send(data []byte) error
	close()
}

type clientConn struct {
	rawConn *websocket.Conn
	mu      sync.Mutex
}

func (c *clientConn) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(data)
}

// sendLocked writes one frame; the caller must hold c.mu. The
// join-time replay locks once around member registration, the history
// read and the whole batch, so a concurrent broadcast queues on the
// lock instead of landing ahead of (or inside) the history.
func (c *clientConn) sendLocked(data []byte) error {
	_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.rawConn.WriteMessage(websocket.TextMessage, data)
}

func (c *clientConn) close() {
	_ = c.rawConn.Close()
}
