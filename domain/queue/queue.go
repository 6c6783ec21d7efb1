// Package queue provides serial FIFO work queues. Each Queue runs its tasks
// one at a time on its own goroutine, in submission order.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned when submitting to a closed queue.
var ErrClosed = errors.New("queue closed")

// ErrFull is returned by TryAsync when the backlog is at capacity.
var ErrFull = errors.New("queue full")

// Task is a unit of work. ctx identifies the queue the task runs on and is
// canceled when the queue is closed.
type Task func(ctx context.Context)

type tokenKey struct{ q *Queue }

// Queue is a serial executor.
type Queue struct {
	name   string
	logger *slog.Logger
	tasks  chan Task
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	closed bool

	executed atomic.Uint64
	panics   atomic.Uint64
}

// New starts a queue holding at most depth pending tasks.
func New(name string, depth int, logger *slog.Logger) *Queue {
	if depth <= 0 {
		depth = 64
	}
	q := &Queue{
		name:   name,
		logger: logger,
		tasks:  make(chan Task, depth),
		done:   make(chan struct{}),
	}
	q.ctx, q.cancel = context.WithCancel(context.WithValue(context.Background(), tokenKey{q}, q.name))
	go q.loop()
	return q
}

// Name returns the queue label.
func (q *Queue) Name() string { return q.name }

func (q *Queue) loop() {
	defer close(q.done)
	for task := range q.tasks {
		q.run(task)
	}
}

func (q *Queue) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			q.panics.Add(1)
			if q.logger != nil {
				q.logger.Error("queue task panic", "queue", q.name, "error", r, "stack", string(debug.Stack()))
			}
		}
	}()
	task(q.ctx)
	q.executed.Add(1)
}

// OnQueue reports whether ctx was handed out by q to a running task.
func (q *Queue) OnQueue(ctx context.Context) bool {
	return ctx != nil && ctx.Value(tokenKey{q}) != nil
}

// Async enqueues task, blocking while the backlog is full.
func (q *Queue) Async(task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	q.tasks <- task
	return nil
}

// TryAsync enqueues task unless the backlog is full.
func (q *Queue) TryAsync(task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.tasks <- task:
		return nil
	default:
		return ErrFull
	}
}

// Sync runs task on the queue and waits for it to finish. When ctx already
// belongs to a task of q, task runs inline instead of deadlocking.
func (q *Queue) Sync(ctx context.Context, task Task) error {
	if q.OnQueue(ctx) {
		task(ctx)
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	finished := make(chan struct{})
	err := q.Async(func(qctx context.Context) {
		defer close(finished)
		task(qctx)
	})
	if err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued tasks not yet started.
func (q *Queue) Pending() int { return len(q.tasks) }

// Executed returns the number of tasks completed without panicking.
func (q *Queue) Executed() uint64 { return q.executed.Load() }

// Close stops accepting tasks, runs the backlog and waits for the worker to
// exit. It must not be called from a task of q.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()
	<-q.done
	q.cancel()
}
