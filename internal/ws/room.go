package ws

import (
	"sync"
)

type room struct {
	mu    sync.RWMutex
	conns map[member]struct{}
}

func newRoom() *room { return &room{conns: map[member]struct{}{}} }

func (r *room) add(m member) {
	r.mu.Lock()
	r.conns[m] = struct{}{}
	r.mu.Unlock()
}

func (r *room) remove(m member) {
	r.mu.Lock()
	delete(r.conns, m)
	r.mu.Unlock()
	m.close()
}

func (r *room) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// broadcast delivers msg to every current member, sender included.
// A failed send evicts that member only; the rest still receive.
func (r *room) broadcast(msg []byte) {
	// Take a quick snapshot of the current connections
	r.mu.RLock()
	conns := make([]member, 0, len(r.conns))
	for m := range r.conns {
		conns = append(conns, m)
	}
	r.mu.RUnlock()

	// Do the I/O outside the lock
	var failed []member
	for _, m := range conns {
		if err := m.send(msg); err != nil {
			failed = append(failed, m)
		}
	}
	for _, m := range failed {
		r.remove(m)
	}
}
