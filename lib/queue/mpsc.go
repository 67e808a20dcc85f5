// Package queue provides a bounded Multi-Producer Single-Consumer (MPSC) queue.
//
// Features and Guarantees:
//
//   - Bounded: the queue holds at most Cap() items, Push() blocks while it is full
//   - Context aware: a blocked Push() gives up as soon as its context is done
//   - Thread-Safe writes: Allows any number of goroutines to safely Push() concurrently
//   - Single Consumer: Designed for a single goroutine to consume values (via the Recv() channel).
//   - Per-Producer FIFO: values pushed by one goroutine are received in the order they were pushed.
//     Across producers the order is determined by which Push() completes first.
//   - Drain on Close: values accepted before Close() are still delivered, afterward the Recv()
//     channel is closed.
package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Push if the queue was closed.
var ErrClosed = errors.New("queue: closed")

// MPSC is a bounded multi-producer single-consumer queue backed by a buffered channel.
type MPSC[T any] struct {
	items chan T

	// closing is closed first by Close() to wake up producers blocked on a full queue
	closing chan struct{}
	once    sync.Once

	// producers hold the read lock while sending, Close() takes the write lock before
	// closing items so no send can ever hit a closed channel
	mu     sync.RWMutex
	closed bool
}

// NewMPSC creates a new queue that holds up to capacity items.
// A capacity below 1 is raised to 1.
func NewMPSC[T any](capacity int) *MPSC[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &MPSC[T]{
		items:   make(chan T, capacity),
		closing: make(chan struct{}),
	}
}

// Push adds a value to the queue. If the queue is full, Push blocks until there is space,
// the queue is closed (ErrClosed) or ctx is done (ctx.Err()).
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *MPSC[T]) Push(ctx context.Context, value T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}

	// fast path, don't bother with ctx if there is room
	select {
	case q.items <- value:
		return nil
	default:
	}

	select {
	case q.items <- value:
		return nil
	case <-q.closing:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv returns a receive-only channel for consuming from the queue.
// This allows the queue to be used with the '<-' operator in select statements.
// The channel is closed once the queue is closed and drained.
func (q *MPSC[T]) Recv() <-chan T {
	return q.items
}

// Close closes the queue, preventing further writes. Producers blocked in Push() return ErrClosed.
// Any items already in the queue will still be delivered to the consumer.
// Calling Close more than once is a no-op.
func (q *MPSC[T]) Close() {
	q.once.Do(func() {
		close(q.closing)

		q.mu.Lock()
		q.closed = true
		close(q.items)
		q.mu.Unlock()
	})
}

// IsClosed returns true if the queue is closed.
func (q *MPSC[T]) IsClosed() bool {
	select {
	case <-q.closing:
		return true
	default:
		return false
	}
}

// Len returns the number of items waiting to be consumed.
func (q *MPSC[T]) Len() int {
	return len(q.items)
}

// Cap returns the maximum number of items the queue can hold.
func (q *MPSC[T]) Cap() int {
	return cap(q.items)
}
