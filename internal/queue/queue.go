package queue

import (
	"context"
	"sync"
)

// Queue is an unbounded FIFO work queue with task accounting.
//
// Every item handed out by Take must be acknowledged with Done. The queue
// is drained when nothing is pending and nothing is in flight. It is safe
// for concurrent use.
type Queue[T any] struct {
	mu       sync.Mutex
	items    []T
	inFlight int
	changed  chan struct{} // closed and replaced on every state change
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{changed: make(chan struct{})}
}

// Put appends an item. It never blocks.
func (q *Queue[T]) Put(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.notify()
	q.mu.Unlock()
}

// Take removes and returns the oldest item, blocking while the queue is
// empty. Once ctx is done it returns the context error and leaves queued
// items in place.
func (q *Queue[T]) Take(ctx context.Context) (T, error) {
	for {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			var zero T
			q.items[0] = zero
			q.items = q.items[1:]
			q.inFlight++
			q.notify()
			q.mu.Unlock()
			return item, nil
		}
		changed := q.changed
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-changed:
		}
	}
}

// Done acknowledges one item returned by Take. Calling Done more often
// than Take panics.
func (q *Queue[T]) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inFlight == 0 {
		panic("queue: Done called more times than Take")
	}
	q.inFlight--
	q.notify()
}

// Join blocks until the queue is drained or ctx is done.
func (q *Queue[T]) Join(ctx context.Context) error {
	for {
		q.mu.Lock()
		if len(q.items) == 0 && q.inFlight == 0 {
			q.mu.Unlock()
			return nil
		}
		changed := q.changed
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// Pending returns the number of items waiting to be taken.
func (q *Queue[T]) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// InFlight returns the number of taken but unacknowledged items.
func (q *Queue[T]) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

// notify wakes every waiter. Callers hold q.mu.
func (q *Queue[T]) notify() {
	close(q.changed)
	q.changed = make(chan struct{})
}
