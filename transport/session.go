package transport

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/websocket"
)

// WriteTimeout bounds a single frame write so an unresponsive front-end
// cannot stall a broadcast.
const WriteTimeout = 10 * time.Second

var errSessionClosed = errors.New("session closed")

// wsSession adapts one WebSocket connection to bridge.Session.
type wsSession struct {
	id     string
	conn   *websocket.Conn
	closed atomic.Bool

	mu sync.Mutex // serializes writes
}

func newWSSession(id string, conn *websocket.Conn) *wsSession {
	return &wsSession{id: id, conn: conn}
}

func (s *wsSession) ID() string {
	return s.id
}

func (s *wsSession) IsOpen() bool {
	return !s.closed.Load()
}

// Send writes data as one binary frame.
func (s *wsSession) Send(data []byte) error {
	if s.closed.Load() {
		return errSessionClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	return websocket.Message.Send(s.conn, data)
}

func (s *wsSession) close() {
	if s.closed.CompareAndSwap(false, true) {
		_ = s.conn.Close()
	}
}
