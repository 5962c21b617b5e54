package watcher

import (
	"context"
	"log/slog"
	"runtime/debug"
)

// Task is a handle on a handler running in the background.
type Task struct {
	Name   string
	cancel context.CancelFunc
	done   chan struct{}
}

// Go runs fn in its own goroutine with a context derived from parent. A
// panic in fn is logged, not propagated.
func Go(parent context.Context, logger *slog.Logger, name string, fn func(ctx context.Context)) *Task {
	ctx, cancel := context.WithCancel(parent)
	t := &Task{Name: name, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("watcher: task panicked", "task", name, "panic", r, "stack", string(debug.Stack()))
			}
		}()
		fn(ctx)
	}()
	return t
}

// Cancel asks the task to stop. Safe to call on a nil or finished task.
func (t *Task) Cancel() {
	if t != nil {
		t.cancel()
	}
}

// Done is closed when the task returns.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task returns.
func (t *Task) Wait() {
	if t != nil {
		<-t.done
	}
}
