package xfer

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Push once the consumer has torn the queue down.
var ErrQueueClosed = errors.New("receiving end of queue is closed")

// Queue is an unbounded multi-producer, single-consumer FIFO.
//
// Push never blocks, so producers are never subject to backpressure; flow
// control belongs to higher layers. The zero value is not usable, construct
// with NewQueue.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	ready  chan struct{}
	done   chan struct{}
}

// NewQueue returns an empty, open queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Push appends v. It fails only when the queue has been closed.
func (q *Queue[T]) Push(v T) error {
	if q == nil {
		return ErrQueueClosed
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

// Ready signals that items may be available. A receive is a hint, not a
// guarantee: always follow it with TryPop.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.ready
}

// Closed is closed once Close has been called.
func (q *Queue[T]) Closed() <-chan struct{} {
	return q.done
}

// TryPop removes and returns the oldest item without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	var zero T
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return v, true
}

// Pop blocks until an item is available, the queue is closed and drained,
// or ctx is done.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	for {
		if v, ok := q.TryPop(); ok {
			return v, nil
		}
		select {
		case <-q.ready:
		case <-q.done:
			if v, ok := q.TryPop(); ok {
				return v, nil
			}
			var zero T
			return zero, ErrQueueClosed
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Len reports the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close tears down the receiving end. Subsequent pushes fail, and the items
// that were never delivered are returned so the consumer can settle them.
// Closing twice returns nil the second time.
func (q *Queue[T]) Close() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.done)
	rest := q.items
	q.items = nil
	return rest
}
