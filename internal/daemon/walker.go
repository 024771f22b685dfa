package daemon

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wascrape/internal/bus"
	"wascrape/internal/config"
	"wascrape/internal/fetch"
	"wascrape/internal/status"
)

// Walker runs walk passes over the visible chat list: one pass visits
// each chat once, extracts its rendered messages, and lets the pipeline
// dedup and persist the survivors. Chats are visited sequentially — the
// browser page is single-threaded — while the batch writer drains the
// queue concurrently.
type Walker struct {
	chats   *fetch.ChatFetcher
	msgs    *fetch.MessageFetcher
	machine *status.Machine
	bus     *bus.Bus
	logger  *zap.Logger
	cfg     config.Scrape

	cancel context.CancelFunc
	done   chan struct{}
}

// PassResult summarizes one completed walk pass.
type PassResult struct {
	RunID    string
	Chats    int
	Messages int
}

// NewWalker creates a walker.
func NewWalker(chats *fetch.ChatFetcher, msgs *fetch.MessageFetcher, machine *status.Machine, b *bus.Bus, logger *zap.Logger, cfg config.Scrape) *Walker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Walker{
		chats:   chats,
		msgs:    msgs,
		machine: machine,
		bus:     b,
		logger:  logger,
		cfg:     cfg,
		done:    make(chan struct{}),
	}
}

// Start launches the periodic walk loop: one pass immediately, then one
// per configured interval.
func (w *Walker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	go w.loop(ctx)
}

// Stop cancels the loop and waits for the in-flight pass to wind down.
// Calling Stop on a walker that never started is a no-op.
func (w *Walker) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
}

func (w *Walker) loop(ctx context.Context) {
	defer close(w.done)

	interval := w.cfg.WalkInterval()
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := w.RunPass(ctx); err != nil {
		w.logger.Error("walk pass aborted", zap.Error(err))
		return
	}
	for {
		select {
		case <-ticker.C:
			if _, err := w.RunPass(ctx); err != nil {
				w.logger.Error("walk pass aborted", zap.Error(err))
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// RunPass walks the chat list once. A failing chat is skipped with a
// logged warning; the pass aborts only on cancellation or when the
// pipeline scope has shut down underneath it.
func (w *Walker) RunPass(ctx context.Context) (PassResult, error) {
	res := PassResult{RunID: uuid.New().String()}
	log := w.logger.With(zap.String("run_id", res.RunID))

	if w.machine != nil {
		_ = w.machine.Transition(status.Walking)
	}
	log.Info("walk pass started", zap.Int("max_chats", w.cfg.MaxChats))

	for chat, name := range w.chats.Chats(ctx, w.cfg.MaxChats) {
		msgs, err := w.msgs.Messages(ctx, chat, w.cfg.Retry)
		if err != nil {
			return res, err
		}
		res.Chats++
		res.Messages += len(msgs)
		log.Debug("chat visited",
			zap.String("chat_id", chat.ID),
			zap.String("name", name),
			zap.Int("new_messages", len(msgs)))
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
	}

	if w.machine != nil {
		_ = w.machine.Transition(status.Ready)
	}
	if w.bus != nil {
		w.bus.Publish(bus.Event{Kind: "run.pass_completed", Payload: res})
	}
	log.Info("walk pass completed", zap.Int("chats", res.Chats), zap.Int("new_messages", res.Messages))
	return res, nil
}
