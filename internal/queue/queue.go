package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned when the queue is at capacity
	ErrQueueFull = errors.New("queue is full")

	// ErrQueueClosed is returned when operations are attempted on a closed queue
	ErrQueueClosed = errors.New("queue is closed")

	// ErrQueueEmpty is returned by Peek on an empty queue
	ErrQueueEmpty = errors.New("queue is empty")
)

// Queue is a thread-safe FIFO. Enqueue never blocks; Dequeue blocks until an
// item is available. Items enqueued before Close are still delivered.
type Queue[T any] struct {
	items   []T
	maxSize int // 0 means unbounded

	mu       sync.Mutex
	notEmpty *sync.Cond

	closed bool
	stats  Stats
}

// Stats tracks queue throughput.
type Stats struct {
	TotalEnqueued int64
	TotalDequeued int64
	TotalDropped  int64
	CurrentSize   int
	PeakSize      int
	LastEnqueue   time.Time
	LastDequeue   time.Time
}

// New creates a queue holding at most maxSize items. A maxSize of zero or
// less leaves it unbounded.
func New[T any](maxSize int) *Queue[T] {
	if maxSize < 0 {
		maxSize = 0
	}
	q := &Queue[T]{maxSize: maxSize}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends item. A bounded queue that is full drops the item and
// returns ErrQueueFull.
func (q *Queue[T]) Enqueue(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.maxSize > 0 && len(q.items) >= q.maxSize {
		q.stats.TotalDropped++
		return ErrQueueFull
	}

	q.items = append(q.items, item)
	q.stats.TotalEnqueued++
	q.stats.LastEnqueue = time.Now()
	q.stats.CurrentSize = len(q.items)
	if q.stats.CurrentSize > q.stats.PeakSize {
		q.stats.PeakSize = q.stats.CurrentSize
	}

	q.notEmpty.Signal()
	return nil
}

// Dequeue removes and returns the oldest item, waiting while the queue is
// empty. It returns ErrQueueClosed once the queue is closed and drained.
func (q *Queue[T]) Dequeue() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	return q.pop()
}

// DequeueContext is Dequeue with cancellation.
func (q *Queue[T]) DequeueContext(ctx context.Context) (T, error) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.notEmpty.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}
		q.notEmpty.Wait()
	}
	return q.pop()
}

// pop must be called with mu held.
func (q *Queue[T]) pop() (T, error) {
	var zero T
	if len(q.items) == 0 {
		return zero, ErrQueueClosed
	}

	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]

	q.stats.TotalDequeued++
	q.stats.LastDequeue = time.Now()
	q.stats.CurrentSize = len(q.items)
	return item, nil
}

// Peek returns the oldest item without removing it.
func (q *Queue[T]) Peek() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		var zero T
		if q.closed {
			return zero, ErrQueueClosed
		}
		return zero, ErrQueueEmpty
	}
	return q.items[0], nil
}

// Size returns the number of queued items.
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// Clear drops every queued item.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.stats.TotalDropped += int64(len(q.items))
	q.items = nil
	q.stats.CurrentSize = 0
}

// GetStats returns a snapshot of the queue statistics.
func (q *Queue[T]) GetStats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.stats
}

// Close stops accepting items and wakes all waiting consumers.
func (q *Queue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.closed = true
	q.notEmpty.Broadcast()
	return nil
}
