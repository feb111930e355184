package app

import (
	"context"
	"sync"
	"time"
)

// waiter is one pending long-poll registration. The channel is buffered
// so Resolve never blocks on a waiter that is concurrently timing out.
type waiter struct {
	version int
	ch      chan Snapshot
}

// LongPollGate parks conditional reads until the record set moves past
// the version the client already knows, or a deadline passes. Each
// waiter resolves exactly once: removal from the registry decides the
// winner between an update and the timeout.
type LongPollGate struct {
	records *RecordStore

	mu      sync.Mutex
	waiters map[*waiter]struct{}
}

func NewLongPollGate(records *RecordStore) *LongPollGate {
	return &LongPollGate{
		records: records,
		waiters: make(map[*waiter]struct{}),
	}
}

// Wait implements the conditional read. When the current version
// already differs from knownVersion the snapshot comes back
// immediately. A non-positive timeout never registers: the caller
// answers 304 on the spot. Otherwise the call blocks until the next
// update, the timeout, or ctx cancellation (client gone); the second
// return is false when there was no change to report.
func (g *LongPollGate) Wait(ctx context.Context, knownVersion int, timeout time.Duration) (Snapshot, bool) {
	g.mu.Lock()
	snap := g.records.Snapshot()
	if snap.Version != knownVersion {
		g.mu.Unlock()
		return snap, true
	}
	if timeout <= 0 {
		g.mu.Unlock()
		return Snapshot{}, false
	}
	w := &waiter{version: knownVersion, ch: make(chan Snapshot, 1)}
	g.waiters[w] = struct{}{}
	g.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resolved := <-w.ch:
		return resolved, true
	case <-timer.C:
		if g.remove(w) {
			return Snapshot{}, false
		}
		// Resolve won the race: the snapshot is already buffered.
		return <-w.ch, true
	case <-ctx.Done():
		if g.remove(w) {
			return Snapshot{}, false
		}
		return <-w.ch, true
	}
}

// Resolve releases every pending waiter registered against a version
// older than the snapshot's. All of them get the same snapshot; none is
// starved by another's resolution. Waiters at or past the snapshot's
// version stay parked, so a delayed resolve carrying an older snapshot
// can never hand a client a version decrease.
func (g *LongPollGate) Resolve(snap Snapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for w := range g.waiters {
		if w.version >= snap.Version {
			continue
		}
		delete(g.waiters, w)
		w.ch <- snap
	}
}

// Pending reports the number of registered waiters.
func (g *LongPollGate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.waiters)
}

// remove reports whether the waiter was still registered, in which case
// the caller owns its resolution.
func (g *LongPollGate) remove(w *waiter) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.waiters[w]; !ok {
		return false
	}
	delete(g.waiters, w)
	return true
}
