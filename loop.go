//////////////////////////////////////////////////////////////////////////////
//
// Loop runs backend callbacks and deferred tasks on a single goroutine
//
// Copyright 2024 Tidefall Labs. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package instream

import (
	"sync"

	"github.com/eapache/queue"
)

// Loop is a cooperative event loop: a single goroutine executing posted
// functions strictly in FIFO order, one at a time. All Source methods and
// Sink callbacks run here, so backend state never needs its own locking.
type Loop struct {
	mu      sync.Mutex
	cond    *sync.Cond
	tasks   *queue.Queue // of func()
	closing bool
	done    chan struct{}
}

// NewLoop starts the loop goroutine. Call Close to stop it.
func NewLoop() *Loop {
	l := &Loop{
		tasks: queue.New(),
		done:  make(chan struct{}),
	}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.done)

	l.mu.Lock()
	for {
		for l.tasks.Length() == 0 && !l.closing {
			l.cond.Wait()
		}
		if l.tasks.Length() == 0 {
			break // closing and drained
		}
		fn := l.tasks.Remove().(func())

		l.mu.Unlock()
		fn()
		l.mu.Lock()
	}
	l.mu.Unlock()
}

// Post schedules fn to run on the loop goroutine. May be called from any
// goroutine, including the loop itself. Posts after Close are dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closing {
		log.Debugw("dropping post to closing loop")
		return
	}
	l.tasks.Add(fn)
	l.cond.Signal()
}

// Close stops the loop after draining already queued tasks and waits for
// the goroutine to exit. Safe to call more than once.
func (l *Loop) Close() error {
	l.mu.Lock()
	if !l.closing {
		l.closing = true
		l.cond.Signal()
	}
	l.mu.Unlock()

	<-l.done
	return nil
}

// Task is a function that can be scheduled to run once on the loop.
// Redundant Schedule calls while a run is pending coalesce into a single
// execution.
type Task struct {
	loop *Loop
	fn   func()

	mu      sync.Mutex
	pending bool
}

// NewTask wraps fn for deferred execution on the loop.
func (l *Loop) NewTask(fn func()) *Task {
	return &Task{loop: l, fn: fn}
}

// Schedule arranges for the task to run once on the loop. A no-op while a
// previous Schedule has not executed yet.
func (t *Task) Schedule() {
	t.mu.Lock()
	if t.pending {
		t.mu.Unlock()
		return
	}
	t.pending = true
	t.mu.Unlock()

	t.loop.Post(t.invoke)
}

// Cancel drops a pending schedule. A run that has already started is not
// interrupted.
func (t *Task) Cancel() {
	t.mu.Lock()
	t.pending = false
	t.mu.Unlock()
}

func (t *Task) invoke() {
	t.mu.Lock()
	if !t.pending { // canceled after posting
		t.mu.Unlock()
		return
	}
	// Cleared before running so the task may reschedule itself.
	t.pending = false
	t.mu.Unlock()

	t.fn()
}
