package scraper

import "sync"

// Guard is a non-blocking mutual-exclusion flag. The scheduled cycle and the
// manual trigger endpoints contend on the same guard; whoever loses gets told
// a run is already in progress instead of queueing behind it.
type Guard struct {
	mu   sync.Mutex
	busy bool
}

// TryAcquire claims the guard, reporting false when it is already held.
func (g *Guard) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy {
		return false
	}
	g.busy = true
	return true
}

// Release frees the guard.
func (g *Guard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.busy = false
}

// Busy reports whether the guard is currently held.
func (g *Guard) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}
