// Package app wires the billing services from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	billingApp "github.com/amora-chat/amora/internal/billing/application"
	billingDomain "github.com/amora-chat/amora/internal/billing/domain"
	"github.com/amora-chat/amora/internal/billing/infrastructure/catalog"
	"github.com/amora-chat/amora/internal/billing/infrastructure/delivery"
	"github.com/amora-chat/amora/internal/billing/infrastructure/providers"
	"github.com/amora-chat/amora/internal/billing/infrastructure/providers/mobilestore"
	"github.com/amora-chat/amora/internal/billing/infrastructure/providers/webcheckout"
	sharedApplication "github.com/amora-chat/amora/internal/shared/application"
	"github.com/amora-chat/amora/internal/shared/infrastructure/database"
	_ "github.com/amora-chat/amora/internal/shared/infrastructure/database/postgres" // register driver
	_ "github.com/amora-chat/amora/internal/shared/infrastructure/database/sqlite"   // register driver
	"github.com/amora-chat/amora/internal/shared/infrastructure/eventbus"
	"github.com/amora-chat/amora/internal/shared/infrastructure/outbox"
	"github.com/amora-chat/amora/pkg/config"
	"github.com/amora-chat/amora/pkg/observability"
	"github.com/redis/go-redis/v9"
)

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics observability.Metrics
	Health  *observability.HealthRegistry

	// Database
	DBConn   database.Connection
	DBDriver database.Driver
	factory  *RepositoryFactory

	// Redis
	RedisClient *redis.Client

	// Repositories
	SubscriptionRepo billingDomain.SubscriptionRepository
	OrderRepo        billingDomain.OrderRepository
	ProfileRepo      billingDomain.ProfileRepository
	OutboxRepo       outbox.Repository
	UnitOfWork       sharedApplication.UnitOfWork

	// Billing collaborators
	Catalog    billingDomain.ProductCatalog
	Deliveries billingDomain.DeliveryLog
	Adapters   *providers.Registry

	// Publishers
	EventPublisher  eventbus.Publisher
	OutboxProcessor *outbox.Processor

	BillingService *billingApp.Service
}

// NewContainer connects to the configured backends and wires the billing service.
// Without DATABASE_URL it runs in local mode on SQLite and migrates on startup.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewInMemoryMetrics(),
		Health:  observability.NewHealthRegistry(),
	}

	conn, err := database.Open(ctx, database.Config{
		URL:        cfg.DatabaseURL,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	c.DBConn = conn
	c.DBDriver = conn.Driver()
	c.factory = NewRepositoryFactory(conn)
	c.Health.Register("database", observability.PingChecker("database", observability.HealthStatusUnhealthy, conn.Ping))
	logger.Info("connected to database", "driver", c.DBDriver.String())

	if cfg.LocalMode() {
		applied, err := c.factory.Migrate(ctx)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to migrate local database: %w", err)
		}
		if len(applied) > 0 {
			logger.Info("applied migrations", "count", len(applied))
		}
	}

	if err := c.initRepositories(); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initRedis(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initCatalog(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initPublisher(); err != nil {
		c.Close()
		return nil, err
	}

	c.Adapters = providers.NewRegistry(
		webcheckout.New(webcheckout.Config{
			Secret:    cfg.WebCheckoutWebhookSecret,
			Tolerance: cfg.WebhookSignatureTolerance,
		}),
		mobilestore.New(mobilestore.Config{Secret: cfg.MobileStoreWebhookSecret}),
	)
	if cfg.WebCheckoutWebhookSecret == "" || cfg.MobileStoreWebhookSecret == "" {
		logger.Warn("webhook secret missing, deliveries for that provider will be rejected")
	}

	bonus := billingApp.BonusPolicy{
		Weekly:  cfg.BonusCreditsWeekly,
		Monthly: cfg.BonusCreditsMonthly,
		Yearly:  cfg.BonusCreditsYearly,
	}
	c.BillingService = billingApp.NewService(billingApp.ServiceDeps{
		Subscriptions: c.SubscriptionRepo,
		Orders:        c.OrderRepo,
		Profiles:      c.ProfileRepo,
		Catalog:       c.Catalog,
		Outbox:        c.OutboxRepo,
		UnitOfWork:    c.UnitOfWork,
		Bonus:         bonus.WithLogger(logger),
	},
		billingApp.WithLogger(logger),
		billingApp.WithMetrics(c.Metrics),
	)

	c.OutboxProcessor = outbox.NewProcessor(c.OutboxRepo, c.EventPublisher, outbox.ProcessorConfig{
		PollInterval:     cfg.OutboxPollInterval,
		BatchSize:        cfg.OutboxBatchSize,
		MaxRetries:       cfg.OutboxMaxRetries,
		RetryBackoffBase: outbox.DefaultProcessorConfig().RetryBackoffBase,
		RetryBackoffMax:  outbox.DefaultProcessorConfig().RetryBackoffMax,
		RetentionDays:    cfg.OutboxRetentionDays,
		CleanupInterval:  cfg.OutboxCleanupInterval,
	}, logger, c.Metrics)

	return c, nil
}

func (c *Container) initRepositories() error {
	var err error
	if c.SubscriptionRepo, err = c.factory.SubscriptionRepository(); err != nil {
		return fmt.Errorf("failed to create subscription repository: %w", err)
	}
	if c.OrderRepo, err = c.factory.OrderRepository(); err != nil {
		return fmt.Errorf("failed to create order repository: %w", err)
	}
	if c.ProfileRepo, err = c.factory.ProfileRepository(); err != nil {
		return fmt.Errorf("failed to create profile repository: %w", err)
	}
	if c.OutboxRepo, err = c.factory.OutboxRepository(); err != nil {
		return fmt.Errorf("failed to create outbox repository: %w", err)
	}
	if c.UnitOfWork, err = c.factory.UnitOfWork(); err != nil {
		return fmt.Errorf("failed to create unit of work: %w", err)
	}
	return nil
}

// initRedis connects the delivery receipt log. Redis is optional outside
// production; without it receipts live in process memory.
func (c *Container) initRedis(ctx context.Context) error {
	cfg := c.Config
	if cfg.RedisURL == "" {
		c.Deliveries = delivery.NewMemoryLog(cfg.DeliveryReceiptTTL)
		return nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		if cfg.IsProduction() {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		c.Logger.Warn("invalid Redis URL, delivery receipts kept in memory", "error", err)
		c.Deliveries = delivery.NewMemoryLog(cfg.DeliveryReceiptTTL)
		return nil
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if cfg.IsProduction() {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		c.Logger.Warn("Redis not available, delivery receipts kept in memory", "error", err)
		c.Deliveries = delivery.NewMemoryLog(cfg.DeliveryReceiptTTL)
		return nil
	}

	c.RedisClient = client
	c.Deliveries = delivery.NewRedisLog(client, cfg.DeliveryReceiptTTL)
	c.Health.Register("redis", observability.PingChecker("redis", observability.HealthStatusDegraded,
		func(ctx context.Context) error { return client.Ping(ctx).Err() }))
	c.Logger.Info("connected to Redis")
	return nil
}

func (c *Container) initCatalog(ctx context.Context) error {
	cfg := c.Config
	switch {
	case cfg.CatalogURL != "":
		var client *http.Client
		creds := catalog.ClientCredentials{
			ClientID:     cfg.CatalogClientID,
			ClientSecret: cfg.CatalogClientSecret,
			TokenURL:     cfg.CatalogTokenURL,
		}
		if creds.Enabled() {
			// Token refreshes outlive the startup context.
			client = catalog.NewAuthenticatedClient(context.WithoutCancel(ctx), creds, cfg.CatalogTimeout)
		}
		c.Catalog = catalog.NewHTTPCatalog(catalog.HTTPConfig{
			BaseURL: cfg.CatalogURL,
			Timeout: cfg.CatalogTimeout,
		}, client, c.Logger, c.Metrics)
		c.Logger.Info("using remote product catalog", "url", cfg.CatalogURL, "authenticated", creds.Enabled())
	case cfg.CatalogFile != "":
		static, err := catalog.LoadFile(cfg.CatalogFile)
		if err != nil {
			return err
		}
		c.Catalog = static
		c.Logger.Info("loaded product catalog", "file", cfg.CatalogFile, "products", static.Len())
	default:
		c.Logger.Warn("no product catalog configured, one-time purchases will be rejected")
	}
	return nil
}

func (c *Container) initPublisher() error {
	cfg := c.Config
	if cfg.RabbitMQURL == "" {
		c.EventPublisher = eventbus.NewNoopPublisher(c.Logger)
		return nil
	}

	publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange, c.Logger)
	if err != nil {
		if cfg.IsProduction() {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		c.Logger.Warn("RabbitMQ not available, using noop publisher", "error", err)
		c.EventPublisher = eventbus.NewNoopPublisher(c.Logger)
		return nil
	}
	c.EventPublisher = publisher
	return nil
}

// Migrate applies pending schema migrations.
func (c *Container) Migrate(ctx context.Context) ([]string, error) {
	if c.factory == nil {
		return nil, errors.New("no database connection")
	}
	return c.factory.Migrate(ctx)
}

// Close releases every connection the container opened.
func (c *Container) Close() {
	if c.OutboxProcessor != nil {
		c.OutboxProcessor.Stop()
	}

	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		}
	}

	if c.DBConn != nil {
		if err := c.DBConn.Close(); err != nil {
			c.Logger.Warn("error closing database connection", "error", err)
		} else {
			c.Logger.Info("database connection closed", "driver", c.DBDriver.String())
		}
	}
}
