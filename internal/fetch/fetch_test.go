package fetch

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"wascrape/internal/pipeline"
	"wascrape/internal/platform"
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

// fakeClient scripts ListChats and Extract responses.
type fakeClient struct {
	chats        []platform.ChatInfo
	listErr      error
	extracts     [][]platform.RawRecord
	extractErrs  []error
	extractCalls int
}

func (f *fakeClient) ListChats(context.Context) ([]platform.ChatInfo, error) {
	return f.chats, f.listErr
}

func (f *fakeClient) Extract(context.Context, platform.ChatInfo) ([]platform.RawRecord, error) {
	i := f.extractCalls
	f.extractCalls++
	var recs []platform.RawRecord
	if i < len(f.extracts) {
		recs = f.extracts[i]
	}
	var err error
	if i < len(f.extractErrs) {
		err = f.extractErrs[i]
	}
	return recs, err
}

func textRecord(content string) platform.RawRecord {
	return platform.RawRecord{Content: content, Direction: platform.Inbound, DataType: platform.DataText}
}

func fastBackoff() Backoff {
	return Backoff{Base: time.Millisecond, Cap: 4 * time.Millisecond}
}

var chatA = platform.ChatInfo{ID: "chat-a", DisplayName: "Alice", Handle: "row-0"}

func TestChatsBoundedByMaxChats(t *testing.T) {
	client := &fakeClient{chats: []platform.ChatInfo{
		{ID: "c1", DisplayName: "One"},
		{ID: "c2", DisplayName: "Two"},
		{ID: "c3", DisplayName: "Three"},
	}}
	q := pipeline.NewQueue(10)
	f := NewChatFetcher(client, q, nil, nil)

	var got []string
	for c, name := range f.Chats(context.Background(), 2) {
		if c.DisplayName != name {
			t.Errorf("name mismatch: %q vs %q", c.DisplayName, name)
		}
		got = append(got, c.ID)
	}
	if len(got) != 2 || got[0] != "c1" || got[1] != "c2" {
		t.Errorf("got %v, want [c1 c2]", got)
	}
	// One discovery update enqueued per visited chat.
	if q.Len() != 2 {
		t.Errorf("queue len = %d, want 2", q.Len())
	}
}

func TestChatsLazyStopsOnBreak(t *testing.T) {
	client := &fakeClient{chats: []platform.ChatInfo{
		{ID: "c1"}, {ID: "c2"}, {ID: "c3"},
	}}
	q := pipeline.NewQueue(10)
	f := NewChatFetcher(client, q, nil, nil)

	for range f.Chats(context.Background(), 0) {
		break
	}
	// Breaking after the first chat means later chats were never visited.
	if q.Len() != 1 {
		t.Errorf("queue len = %d, want 1 (lazy)", q.Len())
	}
}

func TestChatsListFailureYieldsNothing(t *testing.T) {
	client := &fakeClient{listErr: errors.New("page gone")}
	q := pipeline.NewQueue(10)
	f := NewChatFetcher(client, q, nil, nil)

	for range f.Chats(context.Background(), 0) {
		t.Fatal("yielded a chat despite listing failure")
	}
}

func TestMessagesRetryCeiling(t *testing.T) {
	// Extraction returns empty every time: at most retry attempts, then
	// an empty result without error.
	client := &fakeClient{}
	q := pipeline.NewQueue(10)
	f := NewMessageFetcher(client, testDB(t), q, nil, nil, fastBackoff())

	msgs, err := f.Messages(context.Background(), chatA, 3)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("got %d messages, want 0", len(msgs))
	}
	if client.extractCalls != 3 {
		t.Errorf("extraction attempts = %d, want 3", client.extractCalls)
	}
}

func TestMessagesRetriesTransientThenSucceeds(t *testing.T) {
	client := &fakeClient{
		extracts:    [][]platform.RawRecord{nil, {textRecord("hello")}},
		extractErrs: []error{platform.TransientErr("messages", errors.New("render pending")), nil},
	}
	q := pipeline.NewQueue(10)
	f := NewMessageFetcher(client, testDB(t), q, nil, nil, fastBackoff())

	msgs, err := f.Messages(context.Background(), chatA, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].RawPayload != "hello" {
		t.Errorf("got %+v, want one hello", msgs)
	}
	if client.extractCalls != 2 {
		t.Errorf("extraction attempts = %d, want 2", client.extractCalls)
	}
}

func TestMessagesNonTransientErrorDegrades(t *testing.T) {
	client := &fakeClient{
		extractErrs: []error{errors.New("selector changed")},
	}
	q := pipeline.NewQueue(10)
	f := NewMessageFetcher(client, testDB(t), q, nil, nil, fastBackoff())

	msgs, err := f.Messages(context.Background(), chatA, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Errorf("got %d messages, want 0", len(msgs))
	}
	// Non-transient failures are not worth the rest of the budget.
	if client.extractCalls != 1 {
		t.Errorf("extraction attempts = %d, want 1", client.extractCalls)
	}
}

func TestMessagesDedupWithinPass(t *testing.T) {
	// Overlapping extraction windows surface the same record twice in
	// one pass; it must be accepted once.
	client := &fakeClient{extracts: [][]platform.RawRecord{{
		textRecord("hello"),
		textRecord("hello"),
		textRecord("other"),
	}}}
	q := pipeline.NewQueue(10)
	f := NewMessageFetcher(client, testDB(t), q, nil, nil, fastBackoff())

	msgs, err := f.Messages(context.Background(), chatA, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if q.Len() != 2 {
		t.Errorf("queue len = %d, want 2", q.Len())
	}
}

func TestMessagesDedupAcrossPasses(t *testing.T) {
	db := testDB(t)
	records := []platform.RawRecord{
		textRecord("one"), textRecord("two"), textRecord("three"),
	}
	client := &fakeClient{extracts: [][]platform.RawRecord{records, records}}
	q := pipeline.NewQueue(10)
	f := NewMessageFetcher(client, db, q, nil, nil, fastBackoff())

	// First pass accepts all three; persist them as the writer would.
	first, err := f.Messages(context.Background(), chatA, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 3 {
		t.Fatalf("first pass: got %d, want 3", len(first))
	}
	if err := db.UpsertBatch(nil, first); err != nil {
		t.Fatal(err)
	}

	// Second pass re-extracts the same records: nothing is new.
	second, err := f.Messages(context.Background(), chatA, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 0 {
		t.Errorf("second pass: got %d, want 0", len(second))
	}

	n, err := db.CountMessages(chatA.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("stored %d messages, want 3", n)
	}
}

func TestMessagesPreservesExtractionOrder(t *testing.T) {
	client := &fakeClient{extracts: [][]platform.RawRecord{{
		textRecord("first"), textRecord("second"), textRecord("third"),
	}}}
	q := pipeline.NewQueue(10)
	f := NewMessageFetcher(client, testDB(t), q, nil, nil, fastBackoff())

	msgs, err := f.Messages(context.Background(), chatA, 1)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"first", "second", "third"}
	for i, m := range msgs {
		if m.RawPayload != want[i] {
			t.Errorf("returned[%d] = %q, want %q", i, m.RawPayload, want[i])
		}
	}
}

func TestMessagesSkipsWhitespaceRecords(t *testing.T) {
	client := &fakeClient{extracts: [][]platform.RawRecord{{
		textRecord("   \t"), textRecord("real content"),
	}}}
	q := pipeline.NewQueue(10)
	f := NewMessageFetcher(client, testDB(t), q, nil, nil, fastBackoff())

	msgs, err := f.Messages(context.Background(), chatA, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].RawPayload != "real content" {
		t.Errorf("got %+v, want only real content", msgs)
	}
	if q.Len() != 1 {
		t.Errorf("queue len = %d, want 1 (skip never enqueued)", q.Len())
	}
}

func TestMessagesClosedQueueSurfaces(t *testing.T) {
	client := &fakeClient{extracts: [][]platform.RawRecord{{textRecord("hello")}}}
	q := pipeline.NewQueue(10)
	q.Close()
	f := NewMessageFetcher(client, testDB(t), q, nil, nil, fastBackoff())

	_, err := f.Messages(context.Background(), chatA, 1)
	if !errors.Is(err, pipeline.ErrQueueClosed) {
		t.Errorf("err = %v, want ErrQueueClosed", err)
	}
}

func TestMessagesCancelAbortsBackoff(t *testing.T) {
	client := &fakeClient{} // always empty → would retry
	q := pipeline.NewQueue(10)
	f := NewMessageFetcher(client, testDB(t), q, nil, nil, Backoff{Base: time.Hour, Cap: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	msgs, err := f.Messages(ctx, chatA, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Errorf("got %d messages, want 0", len(msgs))
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("backoff not aborted promptly: took %v", elapsed)
	}
}
