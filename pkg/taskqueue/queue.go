// Package taskqueue provides a FIFO executor that runs submitted tasks
// strictly one at a time, in submission order. The queue is an explicit list
// of pending closures plus a visible running flag, so the single-flight
// guarantee is a checkable invariant rather than an emergent property of
// chained calls.
package taskqueue

import (
	"context"
	"fmt"
	"sync"
)

// Task is a unit of work executed by the queue.
type Task func(ctx context.Context) error

type entry struct {
	ctx  context.Context
	task Task
	done chan error
}

// Queue executes tasks sequentially. The zero value is not usable; call New.
type Queue struct {
	mu      sync.Mutex
	pending []*entry
	running bool
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{}
}

// Push appends task to the queue and blocks until the task has finished,
// returning the task's error. Tasks execute one at a time in submission
// order; a failing or panicking task is reported to its own Push caller and
// never blocks subsequent tasks.
//
// If ctx is cancelled while waiting, Push returns ctx.Err() but the task
// still runs in its turn: execution order belongs to the queue, not to the
// waiter.
func (q *Queue) Push(ctx context.Context, task Task) error {
	e := &entry{ctx: ctx, task: task, done: make(chan error, 1)}

	q.mu.Lock()
	q.pending = append(q.pending, e)
	if !q.running {
		q.running = true
		go q.drain()
	}
	q.mu.Unlock()

	select {
	case err := <-e.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain runs queued tasks until the queue is empty, then clears the running
// flag and exits.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		e := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		e.done <- runTask(e.ctx, e.task)
	}
}

// runTask executes a single task, converting a panic into an error so one
// bad task cannot take down the drain goroutine.
func runTask(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return task(ctx)
}

// Len returns the number of tasks waiting to run, excluding any task
// currently running.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Running reports whether a task is currently executing or about to.
func (q *Queue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}
