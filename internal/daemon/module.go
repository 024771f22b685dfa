// Package daemon composes the collector: browser client, fetchers,
// persistence pipeline, and the periodic walker, wired together as an
// fx application.
package daemon

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"wascrape/internal/bus"
	"wascrape/internal/config"
	"wascrape/internal/fetch"
	"wascrape/internal/lock"
	"wascrape/internal/logging"
	"wascrape/internal/pipeline"
	"wascrape/internal/platform/whatsapp"
	"wascrape/internal/profile"
	"wascrape/internal/status"
	"wascrape/internal/store"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
}

// Module returns the fx module for the collector daemon, composing all
// providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideQueue,
			provideWriter,
			provideClient,
			provideChatFetcher,
			provideMessageFetcher,
			provideWalker,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() *config.Config {
	return config.LoadOrDefault(profile.ConfigPath())
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.ProfileName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideQueue(cfg *config.Config) *pipeline.Queue {
	return pipeline.NewQueue(cfg.Queue.HighWater)
}

func provideWriter(db *store.DB, q *pipeline.Queue, b *bus.Bus, logger *zap.Logger, cfg *config.Config) *pipeline.Writer {
	return pipeline.NewWriter(db, q, b, logger, pipeline.WriterConfig{
		BatchSize:     cfg.Writer.BatchSize,
		FlushInterval: cfg.Writer.FlushInterval(),
	})
}

func provideClient(p Params, cfg *config.Config, logger *zap.Logger) (*whatsapp.Client, error) {
	return whatsapp.New(whatsapp.Options{
		UserDataDir: profile.BrowserDataDir(p.ProfileName),
		Headless:    cfg.Browser.Headless,
		NavTimeout:  cfg.Browser.NavTimeout(),
		Logger:      logger,
	})
}

func provideChatFetcher(client *whatsapp.Client, q *pipeline.Queue, b *bus.Bus, logger *zap.Logger) *fetch.ChatFetcher {
	return fetch.NewChatFetcher(client, q, b, logger)
}

func provideMessageFetcher(client *whatsapp.Client, db *store.DB, q *pipeline.Queue, b *bus.Bus, logger *zap.Logger, cfg *config.Config) *fetch.MessageFetcher {
	return fetch.NewMessageFetcher(client, db, q, b, logger, fetch.Backoff{
		Base: cfg.Scrape.BackoffBase(),
		Cap:  cfg.Scrape.BackoffCap(),
	})
}

func provideWalker(chats *fetch.ChatFetcher, msgs *fetch.MessageFetcher, machine *status.Machine, b *bus.Bus, logger *zap.Logger, cfg *config.Config) *Walker {
	return NewWalker(chats, msgs, machine, b, logger, cfg.Scrape)
}

func registerLifecycle(lc fx.Lifecycle, db *store.DB, lk *lock.Lock, client *whatsapp.Client, writer *pipeline.Writer, q *pipeline.Queue, walker *Walker, machine *status.Machine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			writer.Start(context.Background())

			if err := client.Open(ctx); err != nil {
				return err
			}

			loggedIn, err := client.IsLoggedIn(ctx)
			if err != nil {
				return err
			}
			if !loggedIn {
				logger.Info("no session found, run 'wascrape login' to authenticate")
				_ = machine.Transition(status.AuthRequired)
				return nil
			}

			_ = machine.Transition(status.Connecting)
			_ = machine.Transition(status.Ready)
			walker.Start(context.Background())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			walker.Stop()
			_ = machine.Transition(status.Draining)

			// Closing the queue lets the writer flush whatever made it
			// in before the cutoff, then stop.
			q.Close()
			if err := writer.Wait(); err != nil {
				logger.Error("final flush failed", zap.Error(err))
			}

			client.Close()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			_ = machine.Transition(status.Stopped)
			logger.Info("daemon stopped")
			return nil
		},
	})
}
