package bridge

import (
	"sync"
	"sync/atomic"
)

// Session is one connected front-end as seen by the bridge. The transport
// layer owns the underlying connection and assigns the ID.
type Session interface {
	ID() string
	IsOpen() bool
	Send(data []byte) error
}

// Registry tracks the currently connected sessions by ID.
type Registry struct {
	sessions sync.Map // id -> Session
	count    atomic.Int64
}

// Add registers s. It returns false if a session with the same ID is
// already registered, in which case the registry is unchanged.
func (r *Registry) Add(s Session) bool {
	if _, loaded := r.sessions.LoadOrStore(s.ID(), s); loaded {
		return false
	}
	r.count.Add(1)
	return true
}

// Remove unregisters s. Removing an unknown session is a no-op.
func (r *Registry) Remove(s Session) bool {
	if _, loaded := r.sessions.LoadAndDelete(s.ID()); !loaded {
		return false
	}
	r.count.Add(-1)
	return true
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	return int(r.count.Load())
}

// Each calls fn for every registered session until fn returns false.
// Sessions added or removed during iteration may or may not be visited.
func (r *Registry) Each(fn func(Session) bool) {
	r.sessions.Range(func(_, v any) bool {
		return fn(v.(Session))
	})
}
