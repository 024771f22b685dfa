package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"wascrape/internal/store"
)

// ErrQueueClosed is returned by Enqueue after Close. Enqueueing into a
// closed queue is a programming error in the owning scope, not a
// condition to retry.
var ErrQueueClosed = errors.New("pipeline: queue closed")

// Item is the envelope carried by the persistence queue. Exactly one of
// Msg or Chat is set: chat discovery updates ride the same queue so that
// every durable write funnels through the single batch writer.
type Item struct {
	Msg  *store.Message
	Chat *store.Chat
	// Seen is the seen-set that accepted Msg; the writer rolls the mark
	// back if the flush carrying this item fails. Nil for chat items.
	Seen       *SeenSet
	EnqueuedAt time.Time
}

// Queue is the FIFO channel between producers (one per chat being
// walked) and the single batch writer. Capacity is the soft high-water
// mark: Enqueue blocks once the writer falls that far behind, which is
// backpressure, not an error.
type Queue struct {
	ch   chan Item
	done chan struct{}
	once sync.Once
}

// NewQueue creates a queue with the given high-water mark.
func NewQueue(highWater int) *Queue {
	if highWater <= 0 {
		highWater = 1024
	}
	return &Queue{
		ch:   make(chan Item, highWater),
		done: make(chan struct{}),
	}
}

// Enqueue appends an item, blocking while the queue is at its high-water
// mark. Returns ErrQueueClosed after Close, or ctx.Err() if the caller
// is cancelled while blocked.
func (q *Queue) Enqueue(ctx context.Context, item Item) error {
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now()
	}
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.ch <- item:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new items. Items already buffered remain
// available to the consumer. Safe to call more than once.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.done) })
}

// Len returns the number of pending items (monitoring only).
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the configured high-water mark.
func (q *Queue) Cap() int { return cap(q.ch) }

// items exposes the consumer side to the batch writer.
func (q *Queue) items() <-chan Item { return q.ch }

// closed exposes the shutdown signal to the batch writer.
func (q *Queue) closed() <-chan struct{} { return q.done }
