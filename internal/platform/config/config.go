package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	platformstrings "dronewatch/pkg/platform/strings"
)

// DefaultDronesAPIURL is the public drone feed used when DRONES_API_URL is unset.
const DefaultDronesAPIURL = "https://drones-api.hive.fi/drones"

// Config is built once at process start and handed to constructors. Nothing
// below cmd/ reads the environment.
type Config struct {
	Server    Server
	Feed      Feed
	Owner     OwnerDirectory
	NFZ       NFZ
	Reconcile Reconcile
	Database  Database
	Redis     RedisConfig
	Kafka     Kafka
	Log       Log
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `validate:"required"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
}

// Feed configures the drone position source.
type Feed struct {
	URL     string        `validate:"omitempty,url"`
	Timeout time.Duration `validate:"gt=0"`
}

// OwnerDirectory configures owner lookups. URLTemplate either contains
// {owner_id} or gets the id appended as a path segment.
type OwnerDirectory struct {
	URLTemplate string
	Timeout     time.Duration `validate:"gt=0"`
	Concurrency int           `validate:"min=1,max=64"`
	// RatePerSecond of 0 disables client-side rate limiting.
	RatePerSecond float64 `validate:"gte=0"`
}

// NFZ describes the no-fly zone and the /nfz query.
type NFZ struct {
	Radius      float64       `validate:"gt=0"`
	QueryWindow time.Duration `validate:"gt=0"`
	Secret      string
}

// Reconcile configures the scheduled job.
type Reconcile struct {
	Interval time.Duration `validate:"gt=0"`
	Timeout  time.Duration `validate:"gt=0"`
}

// Database holds the Postgres connection string. Empty selects the in-memory store.
type Database struct {
	URL             string
	ConnectAttempts int           `validate:"min=1"`
	ConnectDelay    time.Duration `validate:"gt=0"`
}

// RedisConfig configures the optional Redis client used for tick locks.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the optional violation event relay.
type Kafka struct {
	Brokers            []string
	ViolationsTopic    string        `validate:"required"`
	OutboxPollInterval time.Duration `validate:"gt=0"`
	OutboxBatchSize    int           `validate:"min=1"`
}

// Log configures the process logger.
type Log struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=json text"`
}

var validate = validator.New()

// FromEnv loads .env (if present) and builds a validated Config.
func FromEnv() (Config, error) {
	_ = godotenv.Load()
	return Load(os.Getenv)
}

// Load builds a Config from a lookup function so tests can supply their own environment.
func Load(getenv func(string) string) (Config, error) {
	p := parser{getenv: getenv}

	cfg := Config{
		Server: Server{
			Addr:            p.str("DRONEWATCH_ADDR", ":8080"),
			ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Feed: Feed{
			URL:     p.str("DRONES_API_URL", DefaultDronesAPIURL),
			Timeout: p.duration("FEED_TIMEOUT", 10*time.Second),
		},
		Owner: OwnerDirectory{
			URLTemplate:   p.str("USERS_API_URL_TEMPLATE", ""),
			Timeout:       p.duration("OWNER_LOOKUP_TIMEOUT", 5*time.Second),
			Concurrency:   p.integer("OWNER_LOOKUP_CONCURRENCY", 4),
			RatePerSecond: p.float("OWNER_LOOKUP_RPS", 0),
		},
		NFZ: NFZ{
			Radius:      p.float("NFZ_RADIUS", 1000),
			QueryWindow: p.duration("NFZ_QUERY_WINDOW", 24*time.Hour),
			Secret:      p.str("NFZ_SECRET_KEY", ""),
		},
		Reconcile: Reconcile{
			Interval: p.duration("RECONCILE_INTERVAL", 10*time.Second),
			Timeout:  p.duration("RECONCILE_TIMEOUT", 30*time.Second),
		},
		Database: Database{
			URL:             p.str("DATABASE_URL", ""),
			ConnectAttempts: p.integer("DATABASE_CONNECT_ATTEMPTS", 10),
			ConnectDelay:    p.duration("DATABASE_CONNECT_DELAY", 2*time.Second),
		},
		Redis: RedisConfig{
			URL:          p.str("REDIS_URL", ""),
			PoolSize:     p.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.integer("REDIS_MIN_IDLE_CONNS", 1),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:            p.list("KAFKA_BROKERS"),
			ViolationsTopic:    p.str("KAFKA_VIOLATIONS_TOPIC", "nfz.violations"),
			OutboxPollInterval: p.duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			OutboxBatchSize:    p.integer("OUTBOX_BATCH_SIZE", 100),
		},
		Log: Log{
			Level:  strings.ToLower(p.str("LOG_LEVEL", "info")),
			Format: strings.ToLower(p.str("LOG_FORMAT", "json")),
		},
	}

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// OutboxEnabled reports whether violation events should be relayed to Kafka.
func (c Config) OutboxEnabled() bool {
	return len(c.Kafka.Brokers) > 0 && c.Database.URL != ""
}

type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (p *parser) integer(key string, def int) int {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (p *parser) list(key string) []string {
	return platformstrings.SplitList(p.getenv(key), ",")
}
