package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/blob/s3"
	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/cache/redis"
	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/config"
	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"
	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/notify"
	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/store/postgres"
	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/store/sqlite"
)

// Dependencies bundles the infrastructure built from configuration. History,
// Events and Locks are nil when their backend is not configured.
type Dependencies struct {
	KV       domain.KVStore
	History  domain.FlipHistory
	Events   *redis.EventBus
	Locks    domain.LockManager
	Notifier *notify.Notifier
}

// Wire connects every configured backend and returns a cleanup func that
// releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{}
	backend := strings.ToLower(cfg.Store.Backend)

	// --- Redis ---
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		c, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = c.Close() })
		redisClient = c
		deps.Events = redis.NewEventBus(c, cfg.Redis.EventsChannel, cfg.Redis.EventsStream)
		deps.Locks = redis.NewLockManager(c)
	}

	// --- Ledger store and flip history ---
	switch backend {
	case "sqlite":
		st, err := sqlite.Open(cfg.Store.SQLitePath)
		if err != nil {
			return fail(fmt.Errorf("wire: sqlite: %w", err))
		}
		closers = append(closers, func() { _ = st.Close() })
		deps.KV = st
		deps.History = st

	case "postgres":
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pg.Close)
		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		deps.KV = postgres.NewKVStore(pg.Pool())
		deps.History = postgres.NewFlipStore(pg.Pool())

	case "redis":
		if redisClient == nil {
			return fail(fmt.Errorf("wire: redis backend requires redis.enabled"))
		}
		deps.KV = redis.NewKVStore(redisClient, cfg.Redis.KeyPrefix)

	case "s3":
		c, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		if err := c.Health(ctx); err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.KV = s3blob.NewKVStore(c, cfg.S3.Prefix)

	default:
		return fail(fmt.Errorf("wire: unknown store backend %q", cfg.Store.Backend))
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	logger.InfoContext(ctx, "dependencies wired",
		slog.String("store", backend),
		slog.Bool("history", deps.History != nil),
		slog.Bool("redis", redisClient != nil),
		slog.Int("notify_senders", len(senders)),
	)
	return deps, cleanup, nil
}
