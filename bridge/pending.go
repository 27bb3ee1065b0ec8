package bridge

import (
	"sync"

	"github.com/zhubert/agent-assistant/wire"
)

// pendingTable maps request IDs to single-use reply slots. An entry leaves
// the table exactly once: when a reply completes it, or when its waiter
// abandons it.
type pendingTable struct {
	mu      sync.Mutex
	waiters map[string]chan *wire.Message
}

func newPendingTable() *pendingTable {
	return &pendingTable{waiters: make(map[string]chan *wire.Message)}
}

// register creates a slot for id. It returns false if id is already pending.
func (p *pendingTable) register(id string) (<-chan *wire.Message, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.waiters[id]; exists {
		return nil, false
	}
	ch := make(chan *wire.Message, 1)
	p.waiters[id] = ch
	return ch, true
}

// complete delivers msg to the waiter for id and removes the entry.
// It returns false if nothing is waiting for id.
func (p *pendingTable) complete(id string, msg *wire.Message) bool {
	p.mu.Lock()
	ch, ok := p.waiters[id]
	if ok {
		delete(p.waiters, id)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}
	// Buffered with capacity 1 and removed under the lock: never blocks.
	ch <- msg
	return true
}

// abandon removes the entry for id if it still holds ch.
func (p *pendingTable) abandon(id string, ch <-chan *wire.Message) {
	p.mu.Lock()
	if cur, ok := p.waiters[id]; ok && (<-chan *wire.Message)(cur) == ch {
		delete(p.waiters, id)
	}
	p.mu.Unlock()
}

func (p *pendingTable) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}
