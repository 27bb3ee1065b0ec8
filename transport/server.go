// Package transport serves the WebSocket endpoint front-ends connect to and
// feeds connection lifecycle events and binary frames to a Handler.
package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/zhubert/agent-assistant/bridge"
	"github.com/zhubert/agent-assistant/logger"
)

// DefaultPath is the WebSocket endpoint path.
const DefaultPath = "/ws"

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Handler receives transport events. Implementations must not block.
type Handler interface {
	OnOpen(s bridge.Session)
	OnClose(s bridge.Session)
	OnBinaryMessage(s bridge.Session, data []byte)
}

// Server accepts WebSocket connections and forwards their events to a Handler.
type Server struct {
	handler Handler
	path    string
	log     *slog.Logger
	newID   func() string

	mu    sync.Mutex
	conns map[*wsSession]struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithPath sets the WebSocket endpoint path.
func WithPath(path string) Option {
	return func(s *Server) {
		s.path = path
	}
}

// WithLogger sets the server logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// NewServer creates a Server that reports to handler.
func NewServer(handler Handler, opts ...Option) *Server {
	s := &Server{
		handler: handler,
		path:    DefaultPath,
		newID:   uuid.NewString,
		conns:   make(map[*wsSession]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.WithComponent("transport")
	}
	return s
}

// Handler returns the HTTP routes: the WebSocket endpoint and /healthz.
func (s *Server) Handler() http.Handler {
	// Any origin may connect; the front-end is a local desktop app.
	ws := websocket.Server{
		Handler:   s.handleConn,
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc(s.path, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ws.ServeHTTP(w, r)
	})
	return mux
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done. Open WebSocket
// connections are closed on shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("shutdown error", "error", err)
		}
		s.closeAll()
	}()

	s.log.Info("listening", "addr", ln.Addr().String(), "path", s.path)
	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-stopped
		return nil
	}
	return err
}

func (s *Server) handleConn(conn *websocket.Conn) {
	sess := newWSSession(s.newID(), conn)
	conn.PayloadType = websocket.BinaryFrame
	log := s.log.With("sessionID", sess.ID())

	s.track(sess)
	s.handler.OnOpen(sess)
	defer func() {
		sess.close()
		s.untrack(sess)
		s.handler.OnClose(sess)
	}()

	log.Debug("connection accepted", "remote", conn.Request().RemoteAddr)

	for {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			if errors.Is(err, io.EOF) || !sess.IsOpen() {
				log.Debug("connection closed")
			} else {
				log.Warn("read error", "error", err)
			}
			return
		}
		s.handler.OnBinaryMessage(sess, data)
	}
}

func (s *Server) track(sess *wsSession) {
	s.mu.Lock()
	s.conns[sess] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(sess *wsSession) {
	s.mu.Lock()
	delete(s.conns, sess)
	s.mu.Unlock()
}

// closeAll closes every tracked connection; their read loops then exit.
func (s *Server) closeAll() {
	s.mu.Lock()
	conns := make([]*wsSession, 0, len(s.conns))
	for sess := range s.conns {
		conns = append(conns, sess)
	}
	s.mu.Unlock()

	for _, sess := range conns {
		sess.close()
	}
}
