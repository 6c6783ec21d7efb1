package events

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Executor runs posted functions on one designated goroutine.
type Executor interface {
	Post(fn func())
}

// MainLoop is an Executor backed by an unbounded FIFO. Functions run either
// from Run on a dedicated goroutine, or from Drain called periodically by a
// UI tick. Only one of the two may be used.
type MainLoop struct {
	logger *slog.Logger

	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
}

// NewMainLoop returns an empty loop.
func NewMainLoop(logger *slog.Logger) *MainLoop {
	return &MainLoop{logger: logger, wake: make(chan struct{}, 1)}
}

// Post appends fn. It never blocks.
func (l *MainLoop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.pending = append(l.pending, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of functions waiting to run.
func (l *MainLoop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Drain runs every function posted so far and returns how many ran.
func (l *MainLoop) Drain() int {
	l.mu.Lock()
	batch := l.pending
	l.pending = nil
	l.mu.Unlock()
	for _, fn := range batch {
		l.call(fn)
	}
	return len(batch)
}

// Run drains the loop until ctx is done, then runs whatever is left.
func (l *MainLoop) Run(ctx context.Context) {
	for {
		l.Drain()
		select {
		case <-ctx.Done():
			l.Drain()
			return
		case <-l.wake:
		}
	}
}

func (l *MainLoop) call(fn func()) {
	defer func() {
		if r := recover(); r != nil && l.logger != nil {
			l.logger.Error("observer panic", "error", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}
