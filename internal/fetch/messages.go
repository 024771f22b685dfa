package fetch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"wascrape/internal/bus"
	"wascrape/internal/pipeline"
	"wascrape/internal/platform"
	"wascrape/internal/store"
)

// SeenSource is the slice of the storage engine used to hydrate
// per-chat seen-sets.
type SeenSource interface {
	SeenIDs(chatID string) ([]string, error)
}

// Backoff configures the extraction retry schedule: the delay starts at
// Base and doubles per attempt, capped at Cap.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

// MessageFetcher re-extracts the rendered messages of one chat and
// returns only the newly-seen survivors of deduplication.
type MessageFetcher struct {
	client  platform.Client
	seen    SeenSource
	q       *pipeline.Queue
	bus     *bus.Bus
	logger  *zap.Logger
	backoff Backoff
}

// NewMessageFetcher creates a message fetch sequencer.
func NewMessageFetcher(client platform.Client, seen SeenSource, q *pipeline.Queue, b *bus.Bus, logger *zap.Logger, backoff Backoff) *MessageFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if backoff.Base <= 0 {
		backoff.Base = 500 * time.Millisecond
	}
	if backoff.Cap <= 0 {
		backoff.Cap = 8 * time.Second
	}
	return &MessageFetcher{client: client, seen: seen, q: q, bus: b, logger: logger, backoff: backoff}
}

// Messages returns the newly-seen messages of chat at call time, in
// extraction order. It issues at most retry extraction attempts, backing
// off exponentially on empty results and transient errors; exhausting
// the budget degrades to "no new messages this pass" rather than
// failing, since a later pass will retry. Accepted messages are both
// enqueued for persistence and returned.
//
// The returned error is nil except for scope misuse or cancellation
// (enqueue into a closed queue, context done), which must surface.
func (f *MessageFetcher) Messages(ctx context.Context, chat platform.ChatInfo, retry int) ([]*store.Message, error) {
	if retry <= 0 {
		retry = 1
	}

	seenIDs, err := f.seen.SeenIDs(chat.ID)
	if err != nil {
		// Proceed with an empty set: the idempotent batch upsert absorbs
		// any re-accepted duplicates.
		f.logger.Warn("seen-set hydration failed", zap.String("chat_id", chat.ID), zap.Error(err))
	}
	seen := pipeline.NewSeenSet(seenIDs)

	records := f.extractWithRetry(ctx, chat, retry)

	var accepted []*store.Message
	now := time.Now()
	for _, rec := range records {
		msg, skip := pipeline.Normalize(chat.ID, rec, now)
		if skip != pipeline.SkipNone {
			f.logger.Debug("record skipped",
				zap.String("chat_id", chat.ID),
				zap.String("reason", string(skip)))
			continue
		}
		if !seen.MarkIfNew(msg.MessageID) {
			continue
		}
		if err := f.q.Enqueue(ctx, pipeline.Item{Msg: msg, Seen: seen}); err != nil {
			seen.Forget(msg.MessageID)
			return accepted, err
		}
		accepted = append(accepted, msg)
		if f.bus != nil {
			f.bus.Publish(bus.Event{Kind: "message.accepted", Payload: msg.MessageID})
		}
	}
	return accepted, nil
}

// extractWithRetry returns the first non-empty extraction, or nil after
// the retry budget is spent. Cancellation aborts the backoff schedule
// promptly.
func (f *MessageFetcher) extractWithRetry(ctx context.Context, chat platform.ChatInfo, retry int) []platform.RawRecord {
	delay := f.backoff.Base
	for attempt := 1; attempt <= retry; attempt++ {
		records, err := f.client.Extract(ctx, chat)
		switch {
		case err == nil && len(records) > 0:
			return records
		case err == nil:
			f.logger.Debug("extraction returned nothing",
				zap.String("chat_id", chat.ID), zap.Int("attempt", attempt))
		case platform.IsTransient(err):
			f.logger.Debug("transient extraction failure",
				zap.String("chat_id", chat.ID), zap.Int("attempt", attempt), zap.Error(err))
		default:
			f.logger.Warn("extraction failed", zap.String("chat_id", chat.ID), zap.Error(err))
			return nil
		}

		if attempt == retry {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil
		}
		delay *= 2
		if delay > f.backoff.Cap {
			delay = f.backoff.Cap
		}
	}
	return nil
}
