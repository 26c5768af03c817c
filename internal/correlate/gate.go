package correlate

import (
	"context"
	"sync"
)

// Gate counts subscribers and lets callers block until at least one is
// present.
type Gate struct {
	mu    sync.Mutex
	n     int
	ready chan struct{}
}

// NewGate returns a gate with no subscribers.
func NewGate() *Gate {
	return &Gate{ready: make(chan struct{})}
}

// Enter registers a subscriber.
func (g *Gate) Enter() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	if g.n == 1 {
		close(g.ready)
	}
}

// Leave removes a subscriber registered with Enter.
func (g *Gate) Leave() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.n == 0 {
		return
	}
	g.n--
	if g.n == 0 {
		g.ready = make(chan struct{})
	}
}

// Count reports the number of subscribers.
func (g *Gate) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// Wait blocks until the gate has a subscriber or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	return g.waitOr(ctx, nil)
}

// waitOr is Wait that also returns, with a nil error, once done is closed.
func (g *Gate) waitOr(ctx context.Context, done <-chan struct{}) error {
	g.mu.Lock()
	ready := g.ready
	g.mu.Unlock()
	select {
	case <-ready:
		return nil
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
