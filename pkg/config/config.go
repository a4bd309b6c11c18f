package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv    string
	LogLevel  string
	LogFormat string
	Version   string

	// Database. DatabaseURL takes precedence; SQLitePath is used otherwise.
	DatabaseURL string
	SQLitePath  string

	// Redis backs the delivery receipt log. Empty disables it.
	RedisURL           string
	DeliveryReceiptTTL time.Duration

	// RabbitMQ
	RabbitMQURL      string
	RabbitMQExchange string

	// HTTP ingress
	HTTPAddr       string
	WebhookTimeout time.Duration

	// Provider secrets
	WebCheckoutWebhookSecret  string
	MobileStoreWebhookSecret  string
	WebhookSignatureTolerance time.Duration

	// Product catalog. CatalogURL wins over CatalogFile.
	CatalogURL          string
	CatalogFile         string
	CatalogTimeout      time.Duration
	CatalogClientID     string
	CatalogClientSecret string
	CatalogTokenURL     string

	// Subscription bonus credits per plan.
	BonusCreditsWeekly  int64
	BonusCreditsMonthly int64
	BonusCreditsYearly  int64

	// Outbox
	OutboxPollInterval     time.Duration
	OutboxBatchSize        int
	OutboxMaxRetries       int
	OutboxStatsInterval    time.Duration
	OutboxRetentionDays    int
	OutboxCleanupInterval  time.Duration
	OutboxProcessorEnabled bool

	// Worker
	WorkerHealthAddr string

	// MCP tool server for the chat agent
	MCPAddr      string
	MCPAuthToken string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", ""),
		Version:   getEnv("AMORA_VERSION", "dev"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", ""),

		RedisURL:           getEnv("REDIS_URL", ""),
		DeliveryReceiptTTL: getDurationEnv("DELIVERY_RECEIPT_TTL", 72*time.Hour),

		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQExchange: getEnv("RABBITMQ_EXCHANGE", "amora.billing.events"),

		HTTPAddr:       getEnv("HTTP_ADDR", "0.0.0.0:8080"),
		WebhookTimeout: getDurationEnv("WEBHOOK_TIMEOUT", 10*time.Second),

		WebCheckoutWebhookSecret:  getEnv("WEB_CHECKOUT_WEBHOOK_SECRET", ""),
		MobileStoreWebhookSecret:  getEnv("MOBILE_STORE_WEBHOOK_SECRET", ""),
		WebhookSignatureTolerance: getDurationEnv("WEBHOOK_SIGNATURE_TOLERANCE", 5*time.Minute),

		CatalogURL:          getEnv("CATALOG_URL", ""),
		CatalogFile:         getEnv("CATALOG_FILE", ""),
		CatalogTimeout:      getDurationEnv("CATALOG_TIMEOUT", 2*time.Second),
		CatalogClientID:     getEnv("CATALOG_CLIENT_ID", ""),
		CatalogClientSecret: getEnv("CATALOG_CLIENT_SECRET", ""),
		CatalogTokenURL:     getEnv("CATALOG_TOKEN_URL", ""),

		BonusCreditsWeekly:  getInt64Env("BONUS_CREDITS_WEEKLY", 10),
		BonusCreditsMonthly: getInt64Env("BONUS_CREDITS_MONTHLY", 30),
		BonusCreditsYearly:  getInt64Env("BONUS_CREDITS_YEARLY", 400),

		OutboxPollInterval:     getDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond),
		OutboxBatchSize:        getIntEnv("OUTBOX_BATCH_SIZE", 100),
		OutboxMaxRetries:       getIntEnv("OUTBOX_MAX_RETRIES", 8),
		OutboxStatsInterval:    getDurationEnv("OUTBOX_STATS_INTERVAL", 30*time.Second),
		OutboxRetentionDays:    getIntEnv("OUTBOX_RETENTION_DAYS", 14),
		OutboxCleanupInterval:  getDurationEnv("OUTBOX_CLEANUP_INTERVAL", 24*time.Hour),
		OutboxProcessorEnabled: getBoolEnv("OUTBOX_PROCESSOR_ENABLED", true),

		WorkerHealthAddr: getEnv("WORKER_HEALTH_ADDR", "0.0.0.0:8081"),

		MCPAddr:      getEnv("MCP_ADDR", "127.0.0.1:8090"),
		MCPAuthToken: getEnv("MCP_AUTH_TOKEN", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the services cannot run with.
func (c *Config) Validate() error {
	if c.BonusCreditsWeekly < 0 || c.BonusCreditsMonthly < 0 || c.BonusCreditsYearly < 0 {
		return fmt.Errorf("config: bonus credits must not be negative")
	}
	if c.WebhookTimeout <= 0 {
		return fmt.Errorf("config: WEBHOOK_TIMEOUT must be positive")
	}
	if c.IsProduction() {
		if c.WebCheckoutWebhookSecret == "" || c.MobileStoreWebhookSecret == "" {
			return fmt.Errorf("config: webhook secrets are required in production")
		}
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required in production")
		}
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// LocalMode reports whether the service runs on an embedded SQLite database.
func (c *Config) LocalMode() bool {
	return c.DatabaseURL == ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
