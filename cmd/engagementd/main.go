package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/engagement/config"
	"github.com/d60-Lab/engagement/internal/cache"
	"github.com/d60-Lab/engagement/internal/event"
	"github.com/d60-Lab/engagement/internal/lock"
	"github.com/d60-Lab/engagement/internal/notification"
	"github.com/d60-Lab/engagement/internal/reaction"
	"github.com/d60-Lab/engagement/internal/repository"
	"github.com/d60-Lab/engagement/internal/store"
	"github.com/d60-Lab/engagement/pkg/database"
	"github.com/d60-Lab/engagement/pkg/logger"
	"github.com/d60-Lab/engagement/pkg/tracing"
)

func main() {
	if err := run(); err != nil {
		logger.Error("engagementd exited", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.Sentry.Environment}); err != nil {
			return err
		}
		defer sentry.Flush(2 * time.Second)
	}

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	db, err := database.InitDB(cfg)
	if err != nil {
		return err
	}

	registry := repository.NewRegistry()
	opts := []reaction.Option{
		reaction.WithQueueSize(cfg.Dispatcher.QueueSize),
		reaction.WithFatalHook(reportFatal),
	}
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		opts = append(opts,
			reaction.WithLocker(lock.NewRedisLocker(client, cfg.Redis.LockTTL)),
			reaction.WithCache(cache.NewCounterCache(client, cfg.Cache.TTL)),
		)
	}

	dispatcher := reaction.NewDispatcher(db, registry, opts...)
	engagement := store.New(db, registry, store.WithPublisher(dispatcher))
	if cfg.Dispatcher.FanoutNotifications {
		notification.NewFanout(engagement).Register(dispatcher)
	}

	// workers 不随信号退出，由 stopDispatcher 排空后再停
	stopDispatcher := dispatcher.Start(context.WithoutCancel(ctx), cfg.Dispatcher.Workers)
	relay := reaction.NewRelay(db, dispatcher, reaction.RelayConfig{
		PollInterval:  cfg.Relay.PollInterval,
		Grace:         cfg.Relay.Grace,
		BatchSize:     cfg.Relay.BatchSize,
		MaxAttempts:   cfg.Relay.MaxAttempts,
		RatePerSecond: cfg.Relay.RatePerSecond,
	})
	stopRelay := relay.Start(ctx)

	logger.Info("engagementd started",
		zap.String("driver", cfg.Database.Driver),
		zap.Int("workers", cfg.Dispatcher.Workers),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Bool("fanout", cfg.Dispatcher.FanoutNotifications))

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	_ = stopRelay(shutdownCtx)
	if err := stopDispatcher(shutdownCtx); err != nil {
		logger.Warn("dispatcher did not drain", zap.Error(err))
	}
	return nil
}

func reportFatal(evt event.Event, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("event_id", evt.ID)
		scope.SetTag("route", evt.Route().String())
		sentry.CaptureException(err)
	})
}
