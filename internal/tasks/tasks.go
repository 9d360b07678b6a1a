// Package tasks provides the fire-and-forget side-effect queue.
//
// Handlers submit persistence and memory-forwarding work here so the request
// path never blocks on a slow collaborator. Each task runs at most twice:
// the first attempt and one retry after a fixed delay. Failures after the
// retry are logged and dropped.
package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// TaskFunc is the unit of deferred work.
type TaskFunc func(ctx context.Context) error

// Default queue tuning.
const (
	DefaultQueueSize  = 256
	DefaultRetryDelay = 2 * time.Second
)

type task struct {
	name    string
	fn      TaskFunc
	attempt int
}

// Queue runs submitted tasks on a single worker goroutine with at-most-one
// retry semantics.
type Queue struct {
	ch         chan task
	retryDelay time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	retries    sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// NewQueue creates and starts a task queue. Size and retryDelay fall back to
// defaults when non-positive.
func NewQueue(size int, retryDelay time.Duration) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		ch:         make(chan task, size),
		retryDelay: retryDelay,
		ctx:        ctx,
		cancel:     cancel,
	}
	q.wg.Add(1)
	go q.run()
	slog.Debug("tasks.Queue started", "size", size, "retry_delay", retryDelay)
	return q
}

// Submit enqueues a task without blocking. It reports false when the queue
// is full or stopped, in which case the task is dropped and logged.
func (q *Queue) Submit(name string, fn TaskFunc) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		slog.Warn("tasks.Queue Submit after stop, dropping task", "task", name)
		return false
	}
	select {
	case q.ch <- task{name: name, fn: fn}:
		slog.Debug("tasks.Queue Submit accepted", "task", name)
		return true
	default:
		slog.Warn("tasks.Queue full, dropping task", "task", name)
		return false
	}
}

// Stop drains queued tasks, waits for pending retries, and shuts the worker
// down. Safe to call once.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.ch)
	q.mu.Unlock()

	q.wg.Wait()
	q.retries.Wait()
	q.cancel()
	slog.Debug("tasks.Queue stopped")
}

func (q *Queue) run() {
	defer q.wg.Done()
	for t := range q.ch {
		q.execute(t)
	}
}

func (q *Queue) execute(t task) {
	err := t.fn(q.ctx)
	if err == nil {
		slog.Debug("tasks.Queue task succeeded", "task", t.name, "attempt", t.attempt)
		return
	}

	if t.attempt >= 1 {
		slog.Error("tasks.Queue task failed after retry, dropping", "task", t.name, "error", err)
		return
	}

	slog.Warn("tasks.Queue task failed, scheduling retry", "task", t.name, "error", err, "retry_delay", q.retryDelay)
	retry := task{name: t.name, fn: t.fn, attempt: t.attempt + 1}
	q.retries.Add(1)
	go func() {
		defer q.retries.Done()
		select {
		case <-time.After(q.retryDelay):
			q.execute(retry)
		case <-q.ctx.Done():
			slog.Warn("tasks.Queue retry cancelled by shutdown", "task", retry.name)
		}
	}()
}
