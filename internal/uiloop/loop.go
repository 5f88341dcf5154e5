// Package uiloop provides the single sequential execution context that owns a
// map surface. Every surface mutation for one map runs on its loop; work that
// may block (image fetches) runs elsewhere and hands back with Do.
package uiloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrStopped is returned when work is submitted to a loop that has been stopped.
var ErrStopped = errors.New("ui loop stopped")

// Loop runs submitted functions one at a time, in submission order. The queue
// is unbounded so that code running on the loop may Post to it without
// blocking.
type Loop struct {
	name string
	done chan struct{}

	mu      sync.Mutex
	cond    *sync.Cond
	tasks   []func()
	stopped bool
}

// New starts a loop.
func New(name string) *Loop {
	l := &Loop{
		name: name,
		done: make(chan struct{}),
	}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for len(l.tasks) == 0 && !l.stopped {
			l.cond.Wait()
		}
		if len(l.tasks) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.tasks[0]
		l.tasks[0] = nil
		l.tasks = l.tasks[1:]
		l.mu.Unlock()

		l.exec(fn)
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Recovered panic on ui loop", "loop", l.name, "panic", r)
		}
	}()
	fn()
}

// Post enqueues fn without waiting for it to run.
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return ErrStopped
	}
	l.tasks = append(l.tasks, fn)
	l.cond.Signal()
	return nil
}

const (
	jobPending int32 = iota
	jobRunning
	jobAbandoned
)

// Do runs fn on the loop and waits for it to return. It fails with ErrStopped
// when the loop no longer accepts work, and with ctx.Err() if ctx ends before
// fn starts; fn is then never run. Once fn has started Do waits for it.
// Do must not be called from the loop itself.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var state atomic.Int32
	result := make(chan error, 1)
	err := l.Post(func() {
		if ctx.Err() != nil || !state.CompareAndSwap(jobPending, jobRunning) {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("panic on ui loop %s: %v", l.name, r)
			}
		}()
		result <- fn()
	})
	if err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		if state.CompareAndSwap(jobPending, jobAbandoned) {
			return ctx.Err()
		}
		return <-result
	}
}

// Stopped reports whether Stop has been called.
func (l *Loop) Stopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.stopped
}

// Stop refuses new work, drains what is already queued and waits for the loop
// goroutine to exit. It must not be called from the loop itself.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.cond.Broadcast()
	l.mu.Unlock()

	<-l.done
}
