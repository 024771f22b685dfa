// Package fetch walks the live chat list and re-extracts rendered
// messages, feeding survivors of deduplication into the persistence
// queue.
package fetch

import (
	"context"
	"iter"
	"time"

	"go.uber.org/zap"

	"wascrape/internal/bus"
	"wascrape/internal/pipeline"
	"wascrape/internal/platform"
	"wascrape/internal/store"
)

// ChatFetcher iterates the chats the platform currently exposes.
type ChatFetcher struct {
	client platform.Client
	q      *pipeline.Queue
	bus    *bus.Bus
	logger *zap.Logger
}

// NewChatFetcher creates a chat fetch sequencer.
func NewChatFetcher(client platform.Client, q *pipeline.Queue, b *bus.Bus, logger *zap.Logger) *ChatFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatFetcher{client: client, q: q, bus: b, logger: logger}
}

// Chats returns a lazy, finite sequence of (chat, displayName) pairs,
// bounded by maxChats (unbounded when <= 0, limited by what the lister
// exposes). Each chat is visited at most once per call; a fresh call
// re-walks from the top of the currently visible list. At yield time a
// discovery update (display name, unread count, last-seen) is enqueued
// through the persistence queue, so chat rows go through the single
// writer like everything else.
func (f *ChatFetcher) Chats(ctx context.Context, maxChats int) iter.Seq2[platform.ChatInfo, string] {
	return func(yield func(platform.ChatInfo, string) bool) {
		chats, err := f.client.ListChats(ctx)
		if err != nil {
			f.logger.Warn("chat listing failed", zap.Error(err))
			return
		}
		if maxChats > 0 && len(chats) > maxChats {
			chats = chats[:maxChats]
		}

		for _, c := range chats {
			item := pipeline.Item{Chat: &store.Chat{
				ChatID:      c.ID,
				DisplayName: c.DisplayName,
				UnreadCount: c.UnreadCount,
				LastSeenAt:  time.Now().UnixMilli(),
			}}
			if err := f.q.Enqueue(ctx, item); err != nil {
				f.logger.Warn("chat update enqueue failed", zap.String("chat_id", c.ID), zap.Error(err))
				return
			}
			if f.bus != nil {
				f.bus.Publish(bus.Event{Kind: "chat.visited", Payload: c.ID})
			}
			if !yield(c, c.DisplayName) {
				return
			}
		}
	}
}
