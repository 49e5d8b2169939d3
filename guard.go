package loom

import (
	"sync"

	"github.com/google/uuid"
)

// threadGuard serializes work per thread identity. Waiters on the same
// thread run one at a time in arrival order; distinct threads never
// contend. Entries are reference counted so idle threads hold no
// memory.
type threadGuard struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*guardEntry
}

type guardEntry struct {
	mu   sync.Mutex
	refs int
}

func newThreadGuard() *threadGuard {
	return &threadGuard{entries: make(map[uuid.UUID]*guardEntry)}
}

func (g *threadGuard) acquire(id uuid.UUID) *guardEntry {
	g.mu.Lock()
	e, ok := g.entries[id]
	if !ok {
		e = &guardEntry{}
		g.entries[id] = e
	}
	e.refs++
	g.mu.Unlock()

	e.mu.Lock()
	return e
}

func (g *threadGuard) release(id uuid.UUID, e *guardEntry) {
	e.mu.Unlock()

	g.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(g.entries, id)
	}
	g.mu.Unlock()
}

// do runs fn inside the thread's exclusive section.
func (g *threadGuard) do(id uuid.UUID, fn func()) {
	e := g.acquire(id)
	defer g.release(id, e)
	fn()
}
