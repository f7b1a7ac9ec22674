// Package config reads the bid service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/floroz/gembid/services/bid-service/internal/domain/bids"
)

// Lock backends
const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

// Config is shared by the API and the worker. Each binary checks only what it uses.
type Config struct {
	DatabaseURL string `env:"BID_DB_URL"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
	Exchange    string `env:"EVENTS_EXCHANGE" envDefault:"bid.events"`

	HTTPAddr         string `env:"HTTP_ADDR" envDefault:":8080"`
	JWTPublicKeyPath string `env:"JWT_PUBLIC_KEY_PATH"`
	JWTIssuer        string `env:"JWT_ISSUER"`

	RedisURL     string        `env:"REDIS_URL"`
	LockBackend  string        `env:"LOCK_BACKEND" envDefault:"local"`
	LockTTL      time.Duration `env:"LOCK_TTL" envDefault:"10s"`
	LedgerWait   time.Duration `env:"LEDGER_LOCK_WAIT" envDefault:"3s"`
	DBLockWait   time.Duration `env:"DB_LOCK_TIMEOUT" envDefault:"3s"`
	WithdrawMode string        `env:"WITHDRAW_POLICY" envDefault:"none"`

	OutboxBatchSize   int           `env:"OUTBOX_BATCH_SIZE" envDefault:"50"`
	OutboxInterval    time.Duration `env:"OUTBOX_INTERVAL" envDefault:"1s"`
	OutboxMaxAttempts int           `env:"OUTBOX_MAX_ATTEMPTS" envDefault:"10"`

	// Optional delivery sinks; each is enabled by setting its address
	KafkaBrokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic      string   `env:"KAFKA_TOPIC" envDefault:"bid-notifications"`
	NATSURL         string   `env:"NATS_URL"`
	RedisSinkPrefix string   `env:"REDIS_NOTIFY_PREFIX" envDefault:"notifications"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads .env.local and .env when present (local overrides .env), then the environment
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("BID_DB_URL is not set")
	}
	switch c.LockBackend {
	case LockBackendLocal:
	case LockBackendRedis:
		if c.RedisURL == "" {
			return errors.New("LOCK_BACKEND=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown LOCK_BACKEND %q", c.LockBackend)
	}
	if _, err := c.WithdrawPolicy(); err != nil {
		return err
	}
	return nil
}

// WithdrawPolicy returns the typed WITHDRAW_POLICY
func (c *Config) WithdrawPolicy() (bids.WithdrawPolicy, error) {
	switch p := bids.WithdrawPolicy(c.WithdrawMode); p {
	case bids.WithdrawPolicyNone, bids.WithdrawPolicyNotifySeller:
		return p, nil
	default:
		return "", fmt.Errorf("unknown WITHDRAW_POLICY %q", c.WithdrawMode)
	}
}

// RequireAPI checks the settings only the API needs
func (c *Config) RequireAPI() error {
	if c.JWTPublicKeyPath == "" {
		return errors.New("JWT_PUBLIC_KEY_PATH is not set")
	}
	if c.JWTIssuer == "" {
		return errors.New("JWT_ISSUER is not set")
	}
	return nil
}

// RequireWorker checks the settings only the worker needs
func (c *Config) RequireWorker() error {
	if c.RabbitMQURL == "" {
		return errors.New("RABBITMQ_URL is not set")
	}
	return nil
}

// RedisOptions accepts either a redis:// URL or a bare host:port
func (c *Config) RedisOptions() (*redis.Options, error) {
	if strings.Contains(c.RedisURL, "://") {
		opts, err := redis.ParseURL(c.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: c.RedisURL}, nil
}
