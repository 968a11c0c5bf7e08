package dedup

import (
	"context"
	"sync"
	"time"
)

// MemoryGuard keeps event ids for the lifetime of the process. Restarting loses the window.
type MemoryGuard struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

// NewMemoryGuard returns a guard with the given window; zero means Window.
func NewMemoryGuard(window time.Duration) *MemoryGuard {
	if window <= 0 {
		window = Window
	}
	return &MemoryGuard{
		seen:   make(map[string]time.Time),
		window: window,
		now:    time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (g *MemoryGuard) WithClock(now func() time.Time) *MemoryGuard {
	g.now = now
	return g
}

// Seen sweeps expired ids and then tests and records eventID under one lock.
func (g *MemoryGuard) Seen(_ context.Context, eventID string) bool {
	if eventID == "" {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for id, first := range g.seen {
		if now.Sub(first) >= g.window {
			delete(g.seen, id)
		}
	}
	if _, ok := g.seen[eventID]; ok {
		return true
	}
	g.seen[eventID] = now
	return false
}

// Len returns the number of ids currently remembered
func (g *MemoryGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}
