package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitWhile(t *testing.T) {
	m := New()
	ready := false
	woke := make(chan struct{})

	go func() {
		m.Lock()
		m.WaitWhile(func() bool { return !ready })
		m.Unlock()
		close(woke)
	}()

	// The waiter must not wake before the state changes.
	select {
	case <-woke:
		t.Fatal("woke without state change")
	case <-time.After(10 * time.Millisecond):
	}

	m.Lock()
	ready = true
	m.Broadcast()
	m.Unlock()

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("waiter never woke")
	}
}

func TestWaitWhileFalsePredicate(t *testing.T) {
	m := New()
	m.Lock()
	defer m.Unlock()

	// Must return immediately without a Broadcast.
	m.WaitWhile(func() bool { return false })
}

func TestUnlockedReleasesLock(t *testing.T) {
	m := New()
	m.Lock()

	reentered := false
	m.Unlocked(func() {
		// If Unlocked did not release the lock, this would deadlock.
		m.Lock()
		reentered = true
		m.Unlock()
	})

	assert.True(t, reentered)
	m.Unlock()
}
