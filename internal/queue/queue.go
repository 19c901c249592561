// Package queue provides the bounded in-memory queue feeding crawl jobs to
// the dispatcher. Enqueue never blocks: a full queue is reported to the
// caller so the API can shed load instead of stalling request handlers.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/campusdata/admissions-crawler/internal/jobs"
)

// Queue operation errors.
var (
	ErrFull   = errors.New("queue is full")
	ErrClosed = errors.New("queue is closed")
)

// Item wraps a job ready to run.
type Item struct {
	JobID  string
	Params jobs.Parameters
}

// Queue is a bounded in-memory job queue.
type Queue struct {
	ch     chan Item
	mu     sync.Mutex
	closed bool
}

// New constructs a queue with the provided capacity. Capacity below one is
// raised to one so the queue can always hold a job.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan Item, capacity)}
}

// Enqueue adds an item without blocking. It returns ErrFull when the buffer
// is at capacity and ErrClosed after Close.
func (q *Queue) Enqueue(ctx context.Context, item Item) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("enqueue canceled: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.ch <- item:
		return nil
	default:
		return ErrFull
	}
}

// Dequeue pops the next item, blocking until one is available, the context
// ends, or the queue is closed and drained.
func (q *Queue) Dequeue(ctx context.Context) (Item, error) {
	select {
	case <-ctx.Done():
		return Item{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item, ok := <-q.ch:
		if !ok {
			return Item{}, ErrClosed
		}
		return item, nil
	}
}

// Len reports the number of buffered items.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops the queue. Buffered items remain dequeueable; Dequeue returns
// ErrClosed once they are drained. Closing twice is safe.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
