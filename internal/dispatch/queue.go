package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Defaults used when Options leaves a field at zero.
const (
	DefaultWorkers = 1
	DefaultSize    = 64
)

// Options configures a Queue.
type Options struct {
	// Workers is the number of goroutines draining the queue.
	Workers int

	// Size is the buffer capacity.
	Size int

	// OnPanic is called with the recovered value when the handler panics.
	// The worker keeps running.
	OnPanic func(recovered any)
}

// Stats is a point-in-time snapshot of queue counters.
type Stats struct {
	Depth     int    `json:"depth"`
	Capacity  int    `json:"capacity"`
	Workers   int    `json:"workers"`
	Processed uint64 `json:"processed"`
	Dropped   uint64 `json:"dropped"`
	Panics    uint64 `json:"panics"`
}

// Queue is a bounded buffer drained by a fixed worker pool.
//
// Thread Safety:
//   - Submit, Len, Stats and Close are safe for concurrent use.
type Queue[T any] struct {
	items   chan T
	handler func(T)
	workers int
	onPanic func(any)

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup

	processed atomic.Uint64
	dropped   atomic.Uint64
	panics    atomic.Uint64
}

// New creates a queue that passes each item to handler.
//
// Returns:
//   - *Queue: Ready to Start
//   - error: ErrInvalidOptions for negative sizes or a nil handler
func New[T any](opts Options, handler func(T)) (*Queue[T], error) {
	if handler == nil {
		return nil, fmt.Errorf("%w: handler is required", ErrInvalidOptions)
	}
	if opts.Workers < 0 || opts.Size < 0 {
		return nil, fmt.Errorf("%w: workers=%d size=%d", ErrInvalidOptions, opts.Workers, opts.Size)
	}
	if opts.Workers == 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Size == 0 {
		opts.Size = DefaultSize
	}

	return &Queue[T]{
		items:   make(chan T, opts.Size),
		handler: handler,
		workers: opts.Workers,
		onPanic: opts.OnPanic,
	}, nil
}

// Start launches the workers. Calling Start more than once, or after
// Close, has no effect.
func (q *Queue[T]) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started || q.closed {
		return
	}
	q.started = true

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
}

// Submit enqueues item without blocking.
//
// Returns:
//   - error: ErrQueueFull when the buffer is full, ErrQueueClosed after Close
func (q *Queue[T]) Submit(item T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.items <- item:
		return nil
	default:
		q.dropped.Add(1)
		return ErrQueueFull
	}
}

// Close stops intake and waits for queued items to be processed.
//
// Items still queued when ctx expires are abandoned and ctx.Err() is
// returned. If the queue was never started, queued items are discarded.
func (q *Queue[T]) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.items)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatch: drain: %w", ctx.Err())
	}
}

// Len returns the number of items waiting.
func (q *Queue[T]) Len() int {
	return len(q.items)
}

// Stats returns a snapshot of the queue counters.
func (q *Queue[T]) Stats() Stats {
	return Stats{
		Depth:     len(q.items),
		Capacity:  cap(q.items),
		Workers:   q.workers,
		Processed: q.processed.Load(),
		Dropped:   q.dropped.Load(),
		Panics:    q.panics.Load(),
	}
}

func (q *Queue[T]) worker() {
	defer q.wg.Done()

	for item := range q.items {
		q.run(item)
	}
}

// run invokes the handler, recovering panics so one bad item cannot stop
// the worker.
func (q *Queue[T]) run(item T) {
	defer func() {
		if r := recover(); r != nil {
			q.panics.Add(1)
			if q.onPanic != nil {
				q.onPanic(r)
			}
		}
	}()

	q.handler(item)
	q.processed.Add(1)
}
