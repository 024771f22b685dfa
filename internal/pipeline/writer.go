package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"wascrape/internal/bus"
	"wascrape/internal/store"
)

// BatchStorage is the slice of the storage engine the writer needs.
type BatchStorage interface {
	UpsertBatch(chats []*store.Chat, msgs []*store.Message) error
}

// WriterConfig carries the batching thresholds.
type WriterConfig struct {
	// BatchSize flushes the batch once it holds this many items.
	BatchSize int
	// FlushInterval flushes a non-empty batch this long after it opened,
	// even when below BatchSize.
	FlushInterval time.Duration
}

// Writer is the single consumer of the persistence queue. It accumulates
// items into batches (by size or time, whichever first) and performs one
// atomic bulk upsert per batch. Producers never write to storage.
//
// On queue close it drains whatever is buffered and performs a final
// flush before exiting, so a clean scope exit loses nothing. A flush
// failure is fatal to the writer: the affected seen-set marks are rolled
// back and the error is surfaced through Wait.
type Writer struct {
	db     BatchStorage
	q      *Queue
	bus    *bus.Bus
	logger *zap.Logger
	cfg    WriterConfig

	stopped chan struct{}
	mu      sync.Mutex
	err     error
}

// NewWriter creates a batch writer. Start must be called to run it.
func NewWriter(db BatchStorage, q *Queue, b *bus.Bus, logger *zap.Logger, cfg WriterConfig) *Writer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		db:      db,
		q:       q,
		bus:     b,
		logger:  logger,
		cfg:     cfg,
		stopped: make(chan struct{}),
	}
}

// Start launches the writer goroutine.
func (w *Writer) Start(ctx context.Context) {
	go w.loop(ctx)
}

// Wait blocks until the writer has exited and returns its sticky error,
// nil after a clean drain.
func (w *Writer) Wait() error {
	<-w.stopped
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *Writer) loop(ctx context.Context) {
	defer close(w.stopped)

	var batch []Item
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case item := <-w.q.items():
			if len(batch) == 0 {
				timer.Reset(w.cfg.FlushInterval)
			}
			batch = append(batch, item)
			if len(batch) >= w.cfg.BatchSize {
				stopTimer(timer)
				if !w.flushBatch(&batch) {
					return
				}
			}

		case <-timer.C:
			if !w.flushBatch(&batch) {
				return
			}

		case <-w.q.closed():
			w.drain(&batch)
			return

		case <-ctx.Done():
			w.drain(&batch)
			return
		}
	}
}

// drain consumes everything still buffered and performs the final flush.
func (w *Writer) drain(batch *[]Item) {
	for {
		select {
		case item := <-w.q.items():
			*batch = append(*batch, item)
			if len(*batch) >= w.cfg.BatchSize {
				if !w.flushBatch(batch) {
					return
				}
			}
		default:
			w.flushBatch(batch)
			return
		}
	}
}

// flushBatch writes the accumulated batch. Reports false when the writer
// must stop because the flush failed.
func (w *Writer) flushBatch(batch *[]Item) bool {
	if len(*batch) == 0 {
		return true
	}

	var (
		chats  []*store.Chat
		msgs   []*store.Message
		oldest = (*batch)[0].EnqueuedAt
	)
	for _, it := range *batch {
		switch {
		case it.Chat != nil:
			chats = append(chats, it.Chat)
		case it.Msg != nil:
			msgs = append(msgs, it.Msg)
		}
	}

	if err := w.db.UpsertBatch(chats, msgs); err != nil {
		// Roll the seen-set marks back so a later pass re-attempts
		// persistence for these messages.
		for _, it := range *batch {
			if it.Msg != nil && it.Seen != nil {
				it.Seen.Forget(it.Msg.MessageID)
			}
		}
		w.setErr(err)
		w.logger.Error("batch flush failed",
			zap.Error(err),
			zap.Int("messages", len(msgs)),
			zap.Int("chats", len(chats)))
		if w.bus != nil {
			w.bus.Publish(bus.Event{Kind: "storage.flush_failed", Payload: err.Error()})
		}
		*batch = (*batch)[:0]
		return false
	}

	w.logger.Info("batch flushed",
		zap.Int("messages", len(msgs)),
		zap.Int("chats", len(chats)),
		zap.Duration("oldest_item_age", time.Since(oldest)))
	if w.bus != nil {
		w.bus.Publish(bus.Event{
			Kind:    "storage.batch_flushed",
			Payload: bus.FlushResult{Messages: len(msgs), Chats: len(chats)},
		})
	}
	*batch = (*batch)[:0]
	return true
}

func (w *Writer) setErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
	}
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
