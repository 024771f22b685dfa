package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"wascrape/internal/bus"
	"wascrape/internal/daemon"
	"wascrape/internal/fetch"
	"wascrape/internal/lock"
	"wascrape/internal/logging"
	"wascrape/internal/pipeline"
	"wascrape/internal/platform/whatsapp"
	"wascrape/internal/profile"
	"wascrape/internal/status"
)

// newRunCommand performs a single walk pass in the foreground: visit
// the chat list once, persist what is new, and exit. The long-running
// equivalent is the wascraped daemon.
func newRunCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Walk the chat list once and store new messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := cc.profileName()
			if err != nil {
				return err
			}
			if err := profile.EnsureDir(name); err != nil {
				return err
			}
			lk, err := lock.Acquire(profile.Dir(name))
			if err != nil {
				return err
			}
			defer func() { _ = lk.Release() }()

			logger, err := logging.New(profile.LogPath(name), name)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			db, err := cc.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			cfg := cc.loadConfig()
			b := bus.New()
			machine := status.NewMachine(b)

			q := pipeline.NewQueue(cfg.Queue.HighWater)
			writer := pipeline.NewWriter(db, q, b, logger, pipeline.WriterConfig{
				BatchSize:     cfg.Writer.BatchSize,
				FlushInterval: cfg.Writer.FlushInterval(),
			})
			writer.Start(context.Background())

			client, err := whatsapp.New(whatsapp.Options{
				UserDataDir: profile.BrowserDataDir(name),
				Headless:    cfg.Browser.Headless,
				NavTimeout:  cfg.Browser.NavTimeout(),
				Logger:      logger,
			})
			if err != nil {
				return err
			}
			defer client.Close()

			ctx := cmd.Context()
			if err := client.Open(ctx); err != nil {
				return err
			}
			loggedIn, err := client.IsLoggedIn(ctx)
			if err != nil {
				return err
			}
			if !loggedIn {
				return fmt.Errorf("profile %q is not logged in, run 'wascrape login' first", name)
			}
			_ = machine.Transition(status.Connecting)
			_ = machine.Transition(status.Ready)

			chats := fetch.NewChatFetcher(client, q, b, logger)
			msgs := fetch.NewMessageFetcher(client, db, q, b, logger, fetch.Backoff{
				Base: cfg.Scrape.BackoffBase(),
				Cap:  cfg.Scrape.BackoffCap(),
			})
			walker := daemon.NewWalker(chats, msgs, machine, b, logger, cfg.Scrape)

			res, passErr := walker.RunPass(ctx)

			q.Close()
			if err := writer.Wait(); err != nil {
				return fmt.Errorf("final flush: %w", err)
			}
			if passErr != nil {
				return passErr
			}

			fmt.Printf("visited %d chats, stored %d new messages\n", res.Chats, res.Messages)
			return nil
		},
	}
}
