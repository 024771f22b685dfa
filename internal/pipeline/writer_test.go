package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"wascrape/internal/bus"
	"wascrape/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// failStorage fails every flush.
type failStorage struct{ err error }

func (f *failStorage) UpsertBatch([]*store.Chat, []*store.Message) error { return f.err }

func TestWriterFlushesBySize(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	q := NewQueue(300)

	ch, unsub := b.Subscribe("storage.", 10)
	defer unsub()

	ctx := context.Background()
	for i := 0; i < 250; i++ {
		item := msgItem("c1", fmt.Sprintf("m%03d", i))
		item.Msg.DataType = "text"
		item.Msg.Direction = "in"
		item.Msg.ExtractedAt = int64(i)
		if err := q.Enqueue(ctx, item); err != nil {
			t.Fatal(err)
		}
	}
	q.Close()

	// No time pressure: interval far beyond test runtime.
	w := NewWriter(db, q, b, nil, WriterConfig{BatchSize: 100, FlushInterval: time.Hour})
	w.Start(ctx)
	if err := w.Wait(); err != nil {
		t.Fatal(err)
	}

	// Exactly 3 flushes: 100, 100, 50.
	wantSizes := []int{100, 100, 50}
	for i, want := range wantSizes {
		select {
		case evt := <-ch:
			res, ok := evt.Payload.(bus.FlushResult)
			if !ok {
				t.Fatalf("payload type %T", evt.Payload)
			}
			if res.Messages != want {
				t.Errorf("flush %d: %d messages, want %d", i, res.Messages, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for flush %d", i)
		}
	}
	select {
	case evt := <-ch:
		t.Errorf("unexpected extra flush event: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}

	n, err := db.CountMessages("c1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 250 {
		t.Errorf("stored %d messages, want 250", n)
	}
}

func TestWriterFlushesByTime(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	q := NewQueue(10)

	ch, unsub := b.Subscribe("storage.batch_flushed", 10)
	defer unsub()

	w := NewWriter(db, q, b, nil, WriterConfig{BatchSize: 1000, FlushInterval: 50 * time.Millisecond})
	ctx := context.Background()
	w.Start(ctx)

	item := msgItem("c1", "m1")
	item.Msg.DataType = "text"
	item.Msg.Direction = "in"
	if err := q.Enqueue(ctx, item); err != nil {
		t.Fatal(err)
	}

	// Batch far below size threshold still flushes once the interval
	// elapses.
	select {
	case evt := <-ch:
		res := evt.Payload.(bus.FlushResult)
		if res.Messages != 1 {
			t.Errorf("flushed %d messages, want 1", res.Messages)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for interval flush")
	}

	q.Close()
	if err := w.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestWriterGracefulDrain(t *testing.T) {
	db := testDB(t)
	q := NewQueue(50)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		item := msgItem("c1", fmt.Sprintf("m%d", i))
		item.Msg.DataType = "text"
		item.Msg.Direction = "in"
		if err := q.Enqueue(ctx, item); err != nil {
			t.Fatal(err)
		}
	}
	q.Close()

	// Everything enqueued before close must reach storage even though no
	// threshold was hit.
	w := NewWriter(db, q, nil, nil, WriterConfig{BatchSize: 100, FlushInterval: time.Hour})
	w.Start(ctx)
	if err := w.Wait(); err != nil {
		t.Fatal(err)
	}

	n, err := db.CountMessages("c1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 7 {
		t.Errorf("stored %d messages, want 7", n)
	}
}

func TestWriterFlushFailureRollsBackSeenSet(t *testing.T) {
	b := bus.New()
	q := NewQueue(10)
	ctx := context.Background()

	failCh, unsub := b.Subscribe("storage.flush_failed", 10)
	defer unsub()

	seen := NewSeenSet(nil)
	for _, id := range []string{"m1", "m2"} {
		if !seen.MarkIfNew(id) {
			t.Fatal("mark failed")
		}
		item := msgItem("c1", id)
		item.Seen = seen
		if err := q.Enqueue(ctx, item); err != nil {
			t.Fatal(err)
		}
	}
	q.Close()

	boom := errors.New("disk full")
	w := NewWriter(&failStorage{err: boom}, q, b, nil, WriterConfig{BatchSize: 100, FlushInterval: time.Hour})
	w.Start(ctx)

	if err := w.Wait(); !errors.Is(err, boom) {
		t.Fatalf("Wait() = %v, want %v", err, boom)
	}

	// The failed batch's identifiers are eligible again: a later pass
	// will re-attempt persistence.
	if seen.Len() != 0 {
		t.Errorf("seen-set len = %d after failed flush, want 0", seen.Len())
	}
	if !seen.MarkIfNew("m1") {
		t.Error("m1 still marked after rollback")
	}

	select {
	case <-failCh:
	case <-time.After(time.Second):
		t.Fatal("no storage.flush_failed event")
	}
}

func TestWriterFlushesChatUpdates(t *testing.T) {
	db := testDB(t)
	q := NewQueue(10)
	ctx := context.Background()

	err := q.Enqueue(ctx, Item{Chat: &store.Chat{ChatID: "c1", DisplayName: "Alice", UnreadCount: 2, LastSeenAt: 1000}})
	if err != nil {
		t.Fatal(err)
	}
	q.Close()

	w := NewWriter(db, q, nil, nil, WriterConfig{BatchSize: 10, FlushInterval: time.Hour})
	w.Start(ctx)
	if err := w.Wait(); err != nil {
		t.Fatal(err)
	}

	c, err := db.GetChat("c1")
	if err != nil {
		t.Fatal(err)
	}
	if c == nil || c.DisplayName != "Alice" {
		t.Errorf("chat not persisted via writer: %v", c)
	}
}

func TestWriterContextCancelDrains(t *testing.T) {
	db := testDB(t)
	q := NewQueue(10)

	ctx, cancel := context.WithCancel(context.Background())
	item := msgItem("c1", "m1")
	item.Msg.DataType = "text"
	item.Msg.Direction = "in"
	if err := q.Enqueue(ctx, item); err != nil {
		t.Fatal(err)
	}

	w := NewWriter(db, q, nil, nil, WriterConfig{BatchSize: 100, FlushInterval: time.Hour})
	w.Start(ctx)
	cancel()

	if err := w.Wait(); err != nil {
		t.Fatal(err)
	}
	n, err := db.CountMessages("c1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("stored %d messages after cancel, want 1", n)
	}
}
