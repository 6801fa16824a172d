package queue

import (
	"sync"
)

// Queue is a generic thread-safe FIFO. A queue with a limit drops its
// oldest items when a push would exceed it.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	limit int
}

// New creates a new empty, unbounded queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		items: make([]T, 0),
	}
}

// NewBounded creates a queue holding at most limit items.
func NewBounded[T any](limit int) *Queue[T] {
	if limit < 1 {
		limit = 1
	}
	return &Queue[T]{
		items: make([]T, 0, limit),
		limit: limit,
	}
}

// Push appends items to the queue and returns how many old items were
// dropped to stay within the limit.
func (q *Queue[T]) Push(items ...T) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	if q.limit == 0 || len(q.items) <= q.limit {
		return 0
	}
	dropped := len(q.items) - q.limit
	q.items = append(q.items[:0:0], q.items[dropped:]...)
	return dropped
}

// Pop removes and returns the first item. Returns zero value if empty.
func (q *Queue[T]) Pop() T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		var zero T
		return zero
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item
}

// Empty returns true if the queue has no items.
func (q *Queue[T]) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// Len returns the number of items in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear removes all items from the queue.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
}

// Snapshot returns a copy of the items, oldest first, leaving the queue
// untouched.
func (q *Queue[T]) Snapshot() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]T, len(q.items))
	copy(out, q.items)
	return out
}

// GetAndEmpty returns all items and clears the queue.
func (q *Queue[T]) GetAndEmpty() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := q.items
	q.items = make([]T, 0, cap(q.items))
	return result
}
