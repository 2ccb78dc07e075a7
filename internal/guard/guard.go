// Package guard provides the optional mutual-exclusion primitive that
// coordinates access to a transfer engine shared by a background worker and
// the loop goroutine.
//
// Every engine call from either side acquires the guard and releases it as
// soon as the call returns. The guard is never held across a readiness wait,
// which can block for a full poll interval.
//
// A nil *Guard is valid and means the caller owns the engine exclusively for
// the duration of an async run: Do simply runs the function.
package guard

import (
	"sync"
	"sync/atomic"
)

// Guard is a mutex with a holder count exposed for diagnostics.
// The zero value is ready to use.
type Guard struct {
	mu      sync.Mutex
	holders atomic.Int32
}

// New returns a new Guard.
func New() *Guard {
	return &Guard{}
}

// Lock acquires the guard. Lock on a nil Guard is a no-op.
func (g *Guard) Lock() {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.holders.Add(1)
}

// Unlock releases the guard. Unlock on a nil Guard is a no-op.
func (g *Guard) Unlock() {
	if g == nil {
		return
	}
	g.holders.Add(-1)
	g.mu.Unlock()
}

// Do runs fn with the guard held and releases it when fn returns,
// including when fn panics.
func (g *Guard) Do(fn func()) {
	g.Lock()
	defer g.Unlock()
	fn()
}

// Held reports whether some goroutine currently holds the guard.
func (g *Guard) Held() bool {
	return g != nil && g.holders.Load() > 0
}

// Holders returns how many goroutines believe they hold the guard. It can
// only ever be 0 or 1; tests use it to check mutual exclusion.
func (g *Guard) Holders() int {
	if g == nil {
		return 0
	}
	return int(g.holders.Load())
}
