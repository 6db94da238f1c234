// Package hostloop provides the host's single-threaded task loop.
//
// Work produced on other goroutines, such as property change notifications
// and the results of offloaded requests, is posted to the loop and executed
// in posting order by the one goroutine that runs it.
package hostloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dogmatiq/dodeca/logging"
)

// ErrClosed is returned by Loop.Post() after the loop has been closed.
var ErrClosed = errors.New("host loop is closed")

// ErrRunning is returned by Loop.Run() if the loop is already being run by
// another goroutine.
var ErrRunning = errors.New("host loop is already running")

// Task is a unit of work executed on the host loop.
type Task func() error

// Poster is an interface for posting tasks to a host loop.
type Poster interface {
	Post(Task) error
}

// Loop is a FIFO queue of tasks that is drained by one goroutine at a time.
//
// The zero value is ready to use.
type Loop struct {
	// OnError is called on the loop's goroutine with the error from any task
	// that fails or panics. If it is nil the error is logged.
	OnError func(error)

	// Logger is the target for unhandled task errors when OnError is nil.
	// If it is nil, logging.DefaultLogger is used.
	Logger logging.Logger

	running int32 // atomic

	m      sync.Mutex
	tasks  []Task
	ready  chan struct{}
	closed bool
}

var _ Poster = (*Loop)(nil)

// Post enqueues t for execution on the loop.
//
// It is safe to call from any goroutine and never blocks. It returns
// ErrClosed if the loop has been closed.
func (l *Loop) Post(t Task) error {
	if t == nil {
		panic("task must not be nil")
	}

	l.m.Lock()
	defer l.m.Unlock()

	if l.closed {
		return ErrClosed
	}

	l.tasks = append(l.tasks, t)
	l.wake()

	return nil
}

// Len returns the number of tasks waiting to be executed.
func (l *Loop) Len() int {
	l.m.Lock()
	defer l.m.Unlock()

	return len(l.tasks)
}

// Run executes tasks on the calling goroutine until ctx is canceled or the
// loop is closed.
//
// After Close() is called, Run() executes the tasks that were already queued
// and then returns nil.
func (l *Loop) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&l.running, 0, 1) {
		return ErrRunning
	}
	defer atomic.StoreInt32(&l.running, 0)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		t, ready, closed := l.next()

		if t != nil {
			l.execute(t)
			continue
		}

		if closed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ready:
		}
	}
}

// RunPending executes the tasks that are queued at the time it is called,
// then returns the number of tasks executed.
//
// It is intended for hosts that pump the loop from their own event loop.
// Tasks posted while RunPending() is executing are left for the next call.
//
// It panics if the loop is already being run by another goroutine.
func (l *Loop) RunPending() int {
	if !atomic.CompareAndSwapInt32(&l.running, 0, 1) {
		panic(ErrRunning)
	}
	defer atomic.StoreInt32(&l.running, 0)

	n := l.Len()

	for i := 0; i < n; i++ {
		t, _, _ := l.next()
		if t == nil {
			return i
		}

		l.execute(t)
	}

	return n
}

// Close stops the loop from accepting new tasks.
//
// Tasks that are already queued are still executed by Run() or
// RunPending().
func (l *Loop) Close() {
	l.m.Lock()
	defer l.m.Unlock()

	if !l.closed {
		l.closed = true
		l.wake()
	}
}

// next dequeues the next task. If the queue is empty it returns a channel
// that is closed when a task is posted or the loop is closed.
func (l *Loop) next() (Task, <-chan struct{}, bool) {
	l.m.Lock()
	defer l.m.Unlock()

	if len(l.tasks) > 0 {
		t := l.tasks[0]
		l.tasks[0] = nil
		l.tasks = l.tasks[1:]

		if len(l.tasks) == 0 {
			l.tasks = nil
		}

		return t, nil, false
	}

	if l.closed {
		return nil, nil, true
	}

	if l.ready == nil {
		l.ready = make(chan struct{})
	}

	return nil, l.ready, false
}

// wake closes the ready channel, if any. l.m must be held.
func (l *Loop) wake() {
	if l.ready != nil {
		close(l.ready)
		l.ready = nil
	}
}

func (l *Loop) execute(t Task) {
	if err := call(t); err != nil {
		l.report(err)
	}
}

func (l *Loop) report(err error) {
	if l.OnError != nil {
		l.OnError(err)
		return
	}

	logger := l.Logger
	if logger == nil {
		logger = logging.DefaultLogger
	}

	logging.Log(logger, "unhandled error on host loop: %s", err)
}

func call(t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	return t()
}
