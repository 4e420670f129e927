package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/teamspace-hq/teamspace/common/database"
	"github.com/teamspace-hq/teamspace/common/messaging"
	amqpclient "github.com/teamspace-hq/teamspace/common/messaging/amqp"
	natsclient "github.com/teamspace-hq/teamspace/common/messaging/nats"
	"github.com/teamspace-hq/teamspace/workspace/internal/applications"
	"github.com/teamspace-hq/teamspace/workspace/internal/channels"
	"github.com/teamspace-hq/teamspace/workspace/internal/config"
	"github.com/teamspace-hq/teamspace/workspace/internal/messages"
	"github.com/teamspace-hq/teamspace/workspace/internal/pagination"
	"github.com/teamspace-hq/teamspace/workspace/internal/ratelimit"
	"github.com/teamspace-hq/teamspace/workspace/internal/realtime"
	"github.com/teamspace-hq/teamspace/workspace/internal/server"
	"github.com/teamspace-hq/teamspace/workspace/migrations"
)

// components are the long-lived dependencies shared by serve and seed.
type components struct {
	logger    *slog.Logger
	codec     *pagination.Codec
	signer    *realtime.Signer
	hub       *realtime.Hub
	notifier  realtime.Notifier
	readiness map[string]server.ReadinessCheck

	catalog      applications.Catalog
	installs     applications.Repository
	channelRepo  channels.Repository
	messageStore messages.Store
	index        messages.Index

	closers []func()
}

func (c *components) onClose(fn func()) {
	c.closers = append(c.closers, fn)
}

// Close releases dependencies in reverse order of acquisition.
func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func openComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*components, error) {
	keys, err := cfg.DeriveKeys()
	if err != nil {
		return nil, err
	}
	c := &components{
		logger:    logger,
		codec:     pagination.NewCodec(keys.Cursor, cfg.Pagination.DefaultLimit, cfg.Pagination.MaxLimit),
		signer:    realtime.NewSigner(keys.Room, cfg.Realtime.Issuer, cfg.Realtime.RoomTokenTTL()),
		hub:       realtime.NewHub(),
		readiness: map[string]server.ReadinessCheck{},
	}

	steps := []func(context.Context, *config.Config) error{
		c.openStorage,
		c.openIndex,
		c.openNotifier,
		c.importCatalog,
	}
	for _, step := range steps {
		if err := step(ctx, cfg); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *components) openStorage(ctx context.Context, cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		c.logger.Warn("database_url not set, keeping workspace data in memory")
		apps := applications.NewMemoryStore()
		c.catalog, c.installs = apps, apps
		c.channelRepo = channels.NewMemoryRepository()
		c.messageStore = messages.NewMemoryStore()
		return nil
	}

	if cfg.Migrate {
		c.logger.Info("running database migrations")
		if err := database.Migrate(migrations.FS, ".", cfg.DatabaseURL, database.Up); err != nil {
			return err
		}
		c.logger.Info("database migrations completed")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	c.onClose(pool.Close)
	c.readiness["postgres"] = pool.Ping

	apps := applications.NewPostgresStore(pool)
	c.catalog, c.installs = apps, apps
	c.channelRepo = channels.NewPostgresRepository(pool)
	c.messageStore = messages.NewPostgresStore(pool)
	return nil
}

func (c *components) openIndex(ctx context.Context, cfg *config.Config) error {
	if cfg.OpenSearch.URL == "" {
		if cfg.DatabaseURL != "" {
			c.logger.Warn("opensearch.url not set, messages stored before this start are not searchable")
		}
		c.index = messages.NewMemoryIndex()
		return nil
	}

	idx, err := messages.NewOpenSearchIndex(ctx, messages.OpenSearchConfig{
		URL:      cfg.OpenSearch.URL,
		Username: cfg.OpenSearch.Username,
		Password: cfg.OpenSearch.Password,
		Insecure: cfg.OpenSearch.Insecure,
		Index:    cfg.OpenSearch.Index,
		Refresh:  cfg.OpenSearch.Refresh,
	})
	if err != nil {
		return err
	}
	c.logger.Info("connected to OpenSearch",
		slog.String("url", cfg.OpenSearch.URL),
		slog.String("index", cfg.OpenSearch.Index))
	c.index = idx
	c.readiness["opensearch"] = idx.Ping
	return nil
}

// openNotifier publishes realtime events through the configured broker and
// relays them back into the local hub, so every instance serves every room.
func (c *components) openNotifier(ctx context.Context, cfg *config.Config) error {
	var (
		client messaging.Client
		err    error
	)
	switch cfg.Realtime.Transport {
	case "nats":
		client, err = natsclient.NewClient(natsclient.Config{
			URL:           cfg.NATS.URL,
			Name:          "workspace",
			MaxReconnects: cfg.NATS.MaxReconnects,
			ReconnectWait: cfg.NATS.ReconnectWaitDuration(),
			Timeout:       5 * time.Second,
		}, c.logger)
	case "amqp":
		client, err = amqpclient.NewClient(ctx, amqpclient.Config{
			URL:           cfg.AMQP.URL,
			Exchange:      cfg.AMQP.Exchange,
			RetryAttempts: cfg.AMQP.RetryAttempts,
			Delay:         500 * time.Millisecond,
		}, c.logger)
	default:
		c.notifier = realtime.NewLocalNotifier(c.hub)
		return nil
	}
	if err != nil {
		return err
	}
	c.onClose(func() { client.Close() })

	sub, err := realtime.Relay(client, c.hub)
	if err != nil {
		return fmt.Errorf("subscribe realtime relay: %w", err)
	}
	c.onClose(func() { sub.Unsubscribe() })

	c.readiness[cfg.Realtime.Transport] = func(ctx context.Context) error {
		if status := messaging.CheckClientHealth(ctx, client); status.Error != "" {
			return errors.New(status.Error)
		}
		return nil
	}
	c.notifier = realtime.NewBrokerNotifier(client, c.logger)
	c.logger.Info("realtime events relayed through broker", slog.String("transport", cfg.Realtime.Transport))
	return nil
}

func (c *components) importCatalog(ctx context.Context, cfg *config.Config) error {
	if cfg.CatalogPath == "" {
		return nil
	}
	apps, err := applications.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}
	if err := applications.ImportCatalog(ctx, c.catalog, apps); err != nil {
		return err
	}
	c.logger.Info("application catalog imported",
		slog.String("path", cfg.CatalogPath),
		slog.Int("applications", len(apps)))
	return nil
}

// services builds the domain services over the opened components.
func (c *components) services() (*applications.Service, *channels.Service, *messages.Service) {
	apps := applications.NewService(c.catalog, c.installs, c.codec, c.notifier, c.logger)
	chans := channels.NewService(c.channelRepo, c.codec, c.notifier, c.logger)
	msgs := messages.NewService(c.messageStore, c.index, chans, c.codec, c.notifier, c.logger)
	return apps, chans, msgs
}

func openSearchLimiter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ratelimit.Limiter, error) {
	if cfg.Redis.Addr == "" || cfg.Search.RateLimit <= 0 {
		logger.Info("search rate limiting disabled")
		return ratelimit.NoOpLimiter{}, nil
	}
	limiter, err := ratelimit.NewRedisLimiter(ctx, &redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, "search", cfg.Search.RateLimit, cfg.Search.RateWindow())
	if err != nil {
		return nil, err
	}
	logger.Info("search rate limiting enabled",
		slog.Int("limit", cfg.Search.RateLimit),
		slog.Duration("window", cfg.Search.RateWindow()))
	return limiter, nil
}
