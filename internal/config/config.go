// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the full configuration surface of server, worker and seed.
type Config struct {
	App       AppConfig
	Storage   StorageConfig
	Redis     RedisConfig
	Lock      LockConfig
	Auth      AuthConfig
	Domain    DomainConfig
	Scheduler SchedulerConfig
}

type AppConfig struct {
	Env             string
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration
}

// Development reports whether the process runs with development logging.
func (c AppConfig) Development() bool {
	return c.Env == "development"
}

type StorageConfig struct {
	Driver      string
	DatabaseURL string
	MaxConns    int32
	MinConns    int32
}

// RedisConfig selects distributed locks. An empty Addr keeps locks in-process.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LockConfig struct {
	TTL        time.Duration
	Retries    int
	RetryDelay time.Duration
}

type AuthConfig struct {
	JWTSecret  string
	JWTIssuer  string
	PolicyFile string
}

type DomainConfig struct {
	ConflictRetries int
	ExpiryAlertDays int
	IdempotencyTTL  time.Duration
}

type SchedulerConfig struct {
	OutboxSchedule  string
	OutboxBatchSize int
	ExpirySchedule  string
	CleanupSchedule string
}

// Load reads envFile when given (a missing file is fine), then the
// environment, and validates the result.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	var p parser
	cfg := &Config{
		App: AppConfig{
			Env:             p.str("APP_ENV", "development"),
			Port:            p.str("APP_PORT", "8080"),
			LogLevel:        p.str("LOG_LEVEL", "info"),
			ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Storage: StorageConfig{
			Driver:      p.str("STORAGE_DRIVER", DriverPostgres),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			MaxConns:    int32(p.integer("DB_MAX_CONNS", 25)),
			MinConns:    int32(p.integer("DB_MIN_CONNS", 2)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       p.integer("REDIS_DB", 0),
		},
		Lock: LockConfig{
			TTL:        p.duration("LOCK_TTL", 10*time.Second),
			Retries:    p.integer("LOCK_RETRIES", 50),
			RetryDelay: p.duration("LOCK_RETRY_DELAY", 100*time.Millisecond),
		},
		Auth: AuthConfig{
			JWTSecret:  p.str("JWT_SECRET", "change-me-in-production"),
			JWTIssuer:  p.str("JWT_ISSUER", "pharmaflow"),
			PolicyFile: os.Getenv("POLICY_FILE"),
		},
		Domain: DomainConfig{
			ConflictRetries: p.integer("CONFLICT_RETRIES", 3),
			ExpiryAlertDays: p.integer("EXPIRY_ALERT_DAYS", 30),
			IdempotencyTTL:  p.duration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Scheduler: SchedulerConfig{
			OutboxSchedule:  p.str("OUTBOX_SCHEDULE", "@every 5s"),
			OutboxBatchSize: p.integer("OUTBOX_BATCH_SIZE", 100),
			ExpirySchedule:  p.str("EXPIRY_SCHEDULE", "15 0 * * *"),
			CleanupSchedule: p.str("CLEANUP_SCHEDULE", "@hourly"),
		},
	}
	if p.err != nil {
		return nil, p.err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the processes cannot start with.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.App.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be provided for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER %q is not one of postgres, memory", c.Storage.Driver)
	}
	if c.Storage.MinConns > c.Storage.MaxConns {
		return errors.New("DB_MIN_CONNS must not exceed DB_MAX_CONNS")
	}

	switch {
	case c.Domain.ConflictRetries <= 0:
		return errors.New("CONFLICT_RETRIES must be positive")
	case c.Lock.Retries <= 0:
		return errors.New("LOCK_RETRIES must be positive")
	case c.Lock.TTL <= 0:
		return errors.New("LOCK_TTL must be positive")
	case c.Domain.ExpiryAlertDays < 0:
		return errors.New("EXPIRY_ALERT_DAYS must not be negative")
	case c.Scheduler.OutboxBatchSize <= 0:
		return errors.New("OUTBOX_BATCH_SIZE must be positive")
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET must be provided")
	}
	return nil
}

// parser keeps the first malformed value so Load can report it.
type parser struct {
	err error
}

func (p *parser) str(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (p *parser) integer(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return n
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return fallback
	}
	return d
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s=%q: %w", key, value, err)
	}
}
