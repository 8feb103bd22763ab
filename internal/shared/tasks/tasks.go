// Package tasks provides a reference-counted completion tracker for
// fire-and-forget goroutines, so a dispatcher can launch unboundedly many
// concurrent units of work and still wait for all of them on shutdown.
package tasks

import (
	"sync"

	"modmail/internal/shared/goroutine"
	"modmail/internal/shared/logger"
)

// Tracker counts in-flight units of work and signals when the count reaches
// zero. It knows nothing about what the units do.
type Tracker struct {
	mu       sync.Mutex
	inflight int
	drain    chan struct{}
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Go launches fn as a tracked goroutine through goroutine.SafeGo. The
// in-flight count is decremented exactly once when fn returns or panics;
// the decrement itself cannot fail.
func (t *Tracker) Go(log logger.Interface, name string, fn func()) {
	t.mu.Lock()
	t.inflight++
	t.mu.Unlock()

	goroutine.SafeGo(log, name, func() {
		// Deferred before fn so it runs even while a panic unwinds,
		// ahead of SafeGo's recovery.
		defer t.done()
		fn()
	})
}

// Drain returns a channel that is closed the next time the in-flight count
// transitions to zero. If nothing is in flight, the returned channel is
// already closed. Only one outstanding Drain caller is supported.
func (t *Tracker) Drain() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.inflight == 0 {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	if t.drain == nil {
		t.drain = make(chan struct{})
	}
	return t.drain
}

// InFlight returns the current number of tracked units.
func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inflight
}

func (t *Tracker) done() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.inflight--
	if t.inflight == 0 && t.drain != nil {
		close(t.drain)
		t.drain = nil
	}
}
