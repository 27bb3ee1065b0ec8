package bridge

import "sync"

// Gate is a one-shot "a front-end has connected at least once" signal.
// Once signalled it stays satisfied for the life of the process.
type Gate struct {
	once     sync.Once
	done     chan struct{}
	initOnce sync.Once
}

func (g *Gate) ch() chan struct{} {
	g.initOnce.Do(func() { g.done = make(chan struct{}) })
	return g.done
}

// Signal satisfies the gate. Only the first call has any effect.
func (g *Gate) Signal() {
	ch := g.ch()
	g.once.Do(func() { close(ch) })
}

// Done returns a channel that is closed once the gate is satisfied.
func (g *Gate) Done() <-chan struct{} {
	return g.ch()
}

// Satisfied reports whether Signal has been called.
func (g *Gate) Satisfied() bool {
	select {
	case <-g.ch():
		return true
	default:
		return false
	}
}
