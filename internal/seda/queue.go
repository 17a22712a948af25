package seda

import (
	"context"
	"fmt"
	"sync"

	"github.com/Iron-Ham/seda/internal/errors"
)

// Queue is the input queue of a stage. Implementations must be safe for
// concurrent producers and consumers without external locking.
type Queue[T any] interface {
	// Put appends msg. It never blocks.
	Put(msg T)

	// Take removes the head, waiting until one is available or ctx ends.
	// A queued message is preferred over an already cancelled ctx.
	Take(ctx context.Context) (T, error)

	// Poll removes the head without waiting.
	Poll() (T, bool)

	// Len returns the number of queued messages.
	Len() int
}

// LinkedQueue is an unbounded FIFO Queue.
type LinkedQueue[T any] struct {
	mu    sync.Mutex
	items []T
	head  int
	// ready holds at most one pending wake-up for blocked consumers.
	ready chan struct{}
}

// NewLinkedQueue creates an empty unbounded queue.
func NewLinkedQueue[T any]() *LinkedQueue[T] {
	return &LinkedQueue[T]{ready: make(chan struct{}, 1)}
}

// Put appends msg and wakes one waiting consumer.
func (q *LinkedQueue[T]) Put(msg T) {
	q.mu.Lock()
	q.items = append(q.items, msg)
	q.mu.Unlock()
	q.signal()
}

// Take removes the head, blocking until a message arrives or ctx ends.
func (q *LinkedQueue[T]) Take(ctx context.Context) (T, error) {
	for {
		if msg, ok := q.Poll(); ok {
			return msg, nil
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, fmt.Errorf("%w: %w", errors.ErrInterrupted, ctx.Err())
		case <-q.ready:
		}
	}
}

// Poll removes the head without blocking.
func (q *LinkedQueue[T]) Poll() (T, bool) {
	q.mu.Lock()
	var zero T
	if q.head == len(q.items) {
		q.mu.Unlock()
		return zero, false
	}
	msg := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	remaining := len(q.items) - q.head
	q.compact()
	q.mu.Unlock()

	// Pass the wake-up on so another blocked consumer sees the rest.
	if remaining > 0 {
		q.signal()
	}
	return msg, true
}

// Len returns the number of queued messages.
func (q *LinkedQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// compact releases the consumed prefix once it dominates the slice.
// Callers hold q.mu.
func (q *LinkedQueue[T]) compact() {
	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head >= 64 && q.head*2 >= len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
}

func (q *LinkedQueue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
