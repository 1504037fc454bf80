package instream

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drainLoop posts a no-op task and waits for it, draining everything
// queued before it.
func drainLoop(t *testing.T, l *Loop) {
	t.Helper()
	done := make(chan struct{})
	l.Post(func() { close(done) })
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not drain")
	}
}

func TestLoopRunsPostsInOrder(t *testing.T) {
	l := NewLoop()
	defer l.Close()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		l.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	drainLoop(t, l)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoopCloseDrainsQueuedTasks(t *testing.T) {
	l := NewLoop()

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 10; i++ {
		l.Post(func() {
			mu.Lock()
			ran++
			mu.Unlock()
		})
	}
	require.NoError(t, l.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 10, ran)
}

func TestLoopPostAfterCloseIsDropped(t *testing.T) {
	l := NewLoop()
	require.NoError(t, l.Close())

	// Must neither panic nor run.
	l.Post(func() { t.Error("task ran after Close") })
	require.NoError(t, l.Close()) // idempotent
}

func TestTaskCoalescing(t *testing.T) {
	l := NewLoop()
	defer l.Close()

	var mu sync.Mutex
	runs := 0
	task := l.NewTask(func() {
		mu.Lock()
		runs++
		mu.Unlock()
	})

	// Schedule repeatedly from a stalled loop so all requests land while
	// the run is still pending.
	gate := make(chan struct{})
	l.Post(func() { <-gate })
	for i := 0; i < 50; i++ {
		task.Schedule()
	}
	close(gate)
	drainLoop(t, l)

	mu.Lock()
	assert.Equal(t, 1, runs, "coalesced schedules must run once")
	mu.Unlock()

	// A later schedule runs again.
	task.Schedule()
	drainLoop(t, l)
	mu.Lock()
	assert.Equal(t, 2, runs)
	mu.Unlock()
}

func TestTaskCancel(t *testing.T) {
	l := NewLoop()
	defer l.Close()

	task := l.NewTask(func() { t.Error("canceled task ran") })

	gate := make(chan struct{})
	l.Post(func() { <-gate })
	task.Schedule()
	task.Cancel()
	close(gate)
	drainLoop(t, l)
}

func TestTaskMayRescheduleItself(t *testing.T) {
	l := NewLoop()
	defer l.Close()

	var mu sync.Mutex
	runs := 0
	var task *Task
	task = l.NewTask(func() {
		mu.Lock()
		runs++
		again := runs < 3
		mu.Unlock()
		if again {
			task.Schedule()
		}
	})
	task.Schedule()

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		done := runs >= 3
		mu.Unlock()
		if done {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("task did not reschedule itself")
		}
		time.Sleep(time.Millisecond)
	}
}
