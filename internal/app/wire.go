package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/arbalest-labs/ticktrader/internal/blob/s3"
	"github.com/arbalest-labs/ticktrader/internal/cache/redis"
	"github.com/arbalest-labs/ticktrader/internal/config"
	"github.com/arbalest-labs/ticktrader/internal/domain"
	"github.com/arbalest-labs/ticktrader/internal/notify"
	"github.com/arbalest-labs/ticktrader/internal/store/postgres"
)

// Dependencies bundles the optional infrastructure backends. Any field may be
// nil when its backend is disabled; the engine degrades to in-memory
// operation.
type Dependencies struct {
	OrderStore domain.OrderStore
	FillStore  domain.FillStore
	RoundStore domain.RoundStore

	BookCache domain.BookCache
	Bus       *redis.EventBus
	Lock      *redis.TradingLock

	Blob domain.BlobWriter

	Notifier *notify.Notifier
}

// Wire constructs the configured infrastructure clients and returns them with
// a cleanup function to be called on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.OrderStore = postgres.NewOrderStore(pool)
		deps.FillStore = postgres.NewFillStore(pool)
		deps.RoundStore = postgres.NewRoundStore(pool)
	}

	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.BookCache = redis.NewBookCache(redisClient)
		deps.Bus = redis.NewEventBus(redisClient)
		deps.Lock = redis.NewTradingLock(redisClient)
	}

	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, cfg.S3)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Blob = s3blob.NewWriter(s3Client)
	}

	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhook != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhook))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
