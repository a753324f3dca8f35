// Package bridge runs engine operations on a private pool of background
// workers and lets synchronous callers block until they complete.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrRuntimeClosed is returned by Execute after Close
var ErrRuntimeClosed = errors.New("runtime is closed")

// PanicError is returned when a task panics
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in engine task: %v", e.Value)
}

// task is a unit of work for the worker pool
type task struct {
	ctx      context.Context
	run      func(context.Context)
	queuedAt time.Time
}

// Stats tracks runtime activity
type Stats struct {
	TasksCompleted int64
	TasksPanicked  int64
	ActiveWorkers  int32
	TotalWaitTime  time.Duration
}

// Runtime is a fixed pool of workers owned by one engine handle. It does
// not serialize tasks; with more than one worker they run concurrently.
type Runtime struct {
	mu        sync.RWMutex
	closed    bool
	workers   int
	taskQueue chan task
	wg        sync.WaitGroup
	logger    *zap.Logger

	completed atomic.Int64
	panicked  atomic.Int64
	active    atomic.Int32
	waitNanos atomic.Int64
}

// NewRuntime starts a runtime with the given number of workers. A
// non-positive count uses GOMAXPROCS.
func NewRuntime(workers int, logger *zap.Logger) *Runtime {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Runtime{
		workers:   workers,
		taskQueue: make(chan task, workers),
		logger:    logger,
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

// Workers returns the size of the pool
func (r *Runtime) Workers() int {
	return r.workers
}

func (r *Runtime) worker() {
	defer r.wg.Done()
	r.active.Add(1)
	defer r.active.Add(-1)

	for t := range r.taskQueue {
		r.waitNanos.Add(int64(time.Since(t.queuedAt)))
		t.run(t.ctx)
		r.completed.Add(1)
	}
}

func (r *Runtime) submit(ctx context.Context, run func(context.Context)) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRuntimeClosed
	}
	r.taskQueue <- task{ctx: ctx, run: run, queuedAt: time.Now()}
	return nil
}

// Close stops accepting tasks, waits for queued tasks to finish and stops
// the workers. It is safe to call more than once.
func (r *Runtime) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.taskQueue)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Debug("runtime stopped", zap.Int64("tasks_completed", r.completed.Load()))
}

// Stats returns a snapshot of runtime activity
func (r *Runtime) Stats() Stats {
	return Stats{
		TasksCompleted: r.completed.Load(),
		TasksPanicked:  r.panicked.Load(),
		ActiveWorkers:  r.active.Load(),
		TotalWaitTime:  time.Duration(r.waitNanos.Load()),
	}
}

// Execute runs fn on the runtime and blocks until it returns. The call is
// not abandoned when ctx is done; ctx is only handed to fn. A panic in fn
// is returned as a *PanicError.
func Execute[T any](ctx context.Context, r *Runtime, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)

	err := r.submit(ctx, func(ctx context.Context) {
		var res result
		defer func() {
			if p := recover(); p != nil {
				r.panicked.Add(1)
				res = result{err: &PanicError{Value: p, Stack: debug.Stack()}}
				r.logger.Error("engine task panicked", zap.Any("panic", p))
			}
			done <- res
		}()
		res.value, res.err = fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}

	res := <-done
	return res.value, res.err
}
