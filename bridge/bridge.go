package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zhubert/agent-assistant/logger"
	"github.com/zhubert/agent-assistant/wire"
)

// DefaultConnectWait bounds how long a request waits for the first
// front-end connection before it is broadcast anyway.
const DefaultConnectWait = 30 * time.Second

var (
	// ErrRequestTimeout is returned by SendAndAwait when no reply arrives in time.
	ErrRequestTimeout = errors.New("request timeout")
	// ErrDuplicateRequest is returned when a request ID is already pending.
	ErrDuplicateRequest = errors.New("duplicate request id")
)

// Bridge routes request messages to every connected front-end and matches
// replies back to the caller waiting on the request ID.
//
// Transport callbacks (OnOpen, OnClose, OnBinaryMessage) never block on a
// waiter; only SendAndAwait and WaitForAny block, and only their caller.
type Bridge struct {
	sessions    Registry
	gate        Gate
	pending     *pendingTable
	connectWait time.Duration
	log         *slog.Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithConnectWait sets the maximum time SendAndAwait waits for a first
// connection before broadcasting.
func WithConnectWait(d time.Duration) Option {
	return func(b *Bridge) {
		b.connectWait = d
	}
}

// WithLogger sets the bridge logger.
func WithLogger(log *slog.Logger) Option {
	return func(b *Bridge) {
		b.log = log
	}
}

// New creates a Bridge with no sessions.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		pending:     newPendingTable(),
		connectWait: DefaultConnectWait,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = logger.WithComponent("bridge")
	}
	return b
}

// OnOpen registers a newly connected session and satisfies the connect gate.
func (b *Bridge) OnOpen(s Session) {
	if !b.sessions.Add(s) {
		b.log.Debug("session already registered", "sessionID", s.ID())
		return
	}
	b.gate.Signal()
	b.log.Info("client connected", "sessionID", s.ID(), "sessions", b.sessions.Len())
}

// OnClose unregisters a session. The connect gate stays satisfied.
func (b *Bridge) OnClose(s Session) {
	if b.sessions.Remove(s) {
		b.log.Info("client disconnected", "sessionID", s.ID(), "sessions", b.sessions.Len())
	}
}

// OnBinaryMessage decodes a frame received from s and routes it.
// Undecodable frames are logged and dropped.
func (b *Bridge) OnBinaryMessage(s Session, data []byte) {
	msg, err := wire.Unmarshal(data)
	if err != nil {
		b.log.Warn("dropping undecodable frame", "sessionID", s.ID(), "bytes", len(data), "error", err)
		return
	}
	b.OnMessage(msg)
}

// OnMessage completes the pending request matching a reply. Requests,
// replies without an identifier and replies nobody is waiting for are
// ignored.
func (b *Bridge) OnMessage(msg *wire.Message) {
	id, ok := msg.ReplyID()
	if !ok {
		b.log.Debug("ignoring non-reply message", "cmd", msg.Cmd)
		return
	}
	if !b.pending.complete(id, msg) {
		b.log.Debug("no pending request for reply", "cmd", msg.Cmd, "requestID", id)
		return
	}
	b.log.Debug("reply matched", "cmd", msg.Cmd, "requestID", id)
}

// Broadcast sends msg to every open session. A failed send is logged and
// does not stop delivery to the others; the session stays registered until
// the transport reports it closed. Only encoding errors are returned.
func (b *Bridge) Broadcast(msg *wire.Message) error {
	data, err := wire.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Cmd, err)
	}

	sent := 0
	b.sessions.Each(func(s Session) bool {
		if !s.IsOpen() {
			return true
		}
		if err := s.Send(data); err != nil {
			b.log.Warn("send failed", "sessionID", s.ID(), "cmd", msg.Cmd, "error", err)
			return true
		}
		sent++
		return true
	})
	b.log.Debug("broadcast", "cmd", msg.Cmd, "delivered", sent)
	return nil
}

// WaitForAny returns once a session is registered, a session has ever
// connected, timeout elapses or ctx is done, whichever comes first.
func (b *Bridge) WaitForAny(ctx context.Context, timeout time.Duration) {
	if b.sessions.Len() > 0 || b.gate.Satisfied() {
		return
	}
	if timeout <= 0 {
		return
	}

	b.log.Info("waiting for a client to connect", "timeout", timeout)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-b.gate.Done():
	case <-timer.C:
		b.log.Warn("no client connected, sending anyway", "waited", timeout)
	case <-ctx.Done():
	}
}

// SendAndAwait registers requestID, broadcasts msg and blocks until the
// matching reply arrives, timeout elapses or ctx is done. The timeout
// covers the connect wait too. The pending entry is gone when it returns.
func (b *Bridge) SendAndAwait(ctx context.Context, msg *wire.Message, requestID string, timeout time.Duration) (*wire.Message, error) {
	deadline := time.Now().Add(timeout)

	replyCh, ok := b.pending.register(requestID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateRequest, requestID)
	}
	defer b.pending.abandon(requestID, replyCh)

	b.WaitForAny(ctx, min(b.connectWait, time.Until(deadline)))

	if err := b.Broadcast(msg); err != nil {
		return nil, err
	}
	b.log.Info("request sent", "cmd", msg.Cmd, "requestID", requestID)

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-timer.C:
		select {
		case reply := <-replyCh:
			return reply, nil
		default:
		}
		b.log.Warn("request timed out", "cmd", msg.Cmd, "requestID", requestID, "timeout", timeout)
		return nil, fmt.Errorf("%w after %s waiting for %s reply", ErrRequestTimeout, timeout, msg.Cmd)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Sessions returns the number of connected sessions.
func (b *Bridge) Sessions() int {
	return b.sessions.Len()
}

// Pending returns the number of requests awaiting a reply.
func (b *Bridge) Pending() int {
	return b.pending.len()
}
