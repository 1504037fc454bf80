// Package monitor wraps a mutex and condition variable into an explicit
// monitor: one lock guarding one state object, with predicate-based waiting
// and a scoped way to drop the lock around calls that may re-enter it.
package monitor

import "sync"

// Monitor is a mutex paired with a single condition variable. The zero
// value is not usable; call New.
type Monitor struct {
	mu   sync.Mutex
	cond *sync.Cond
}

func New() *Monitor {
	m := &Monitor{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *Monitor) Lock()   { m.mu.Lock() }
func (m *Monitor) Unlock() { m.mu.Unlock() }

// WaitWhile blocks until pred returns false, releasing the lock while
// waiting. The lock must be held on entry and is held again on return.
// pred is evaluated with the lock held.
func (m *Monitor) WaitWhile(pred func() bool) {
	for pred() {
		m.cond.Wait()
	}
}

// Broadcast wakes every goroutine blocked in WaitWhile. Callers should hold
// the lock so the state change and the wakeup cannot be reordered.
func (m *Monitor) Broadcast() {
	m.cond.Broadcast()
}

// Unlocked runs fn with the lock temporarily released and re-acquires it
// before returning. This is for calls into a backend that may take its own
// locks and call back into the monitored object; holding our lock across
// such a call would deadlock.
func (m *Monitor) Unlocked(fn func()) {
	m.mu.Unlock()
	defer m.mu.Lock()
	fn()
}
