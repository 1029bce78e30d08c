package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App      App      `yaml:"app"`
	HTTP     HTTP     `yaml:"http"`
	Log      Log      `yaml:"log"`
	Postgres Postgres `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	Kafka    Kafka    `yaml:"kafka"`
	Cache    Cache    `yaml:"cache"`
	Consumer Consumer `yaml:"consumer"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"event-dedup-cache"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

type HTTP struct {
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"9091"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"user"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-default:"password"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB" env-default:"eventcache_db"`
}

type Redis struct {
	Addr string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"integration-events"`
	GroupID string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"event-consumer-group-1"`
	// StartLatest makes a group with no committed offset begin at the end of
	// the topic instead of the beginning.
	StartLatest bool `yaml:"start_latest" env:"KAFKA_START_LATEST" env-default:"false"`
}

// Supported cache backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Cache configures the dedup cache and its cleanup job. Values are read once
// at startup and never reloaded; changing them requires a process restart.
type Cache struct {
	Enabled         bool          `yaml:"enabled" env:"CACHE_ENABLED" env-default:"true"`
	EntryTimeout    time.Duration `yaml:"entry_timeout" env:"CACHE_ENTRY_TIMEOUT" env-default:"60s"`
	CleanupEnabled  bool          `yaml:"cleanup_enabled" env:"CACHE_CLEANUP_ENABLED" env-default:"true"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" env:"CACHE_CLEANUP_INTERVAL" env-default:"30s"`
	Backend         string        `yaml:"backend" env:"CACHE_BACKEND" env-default:"postgres"`
	StoreName       string        `yaml:"store_name" env:"CACHE_STORE_NAME" env-default:"event_handling_records"`
}

type Consumer struct {
	Name string `yaml:"name" env:"CONSUMER_NAME" env-default:"event-consumer"`
	// FailOpen controls degradation when the dedup store is unavailable:
	// true processes the message anyway, false retries it in place with
	// bounded backoff before it is dropped.
	FailOpen bool `yaml:"fail_open" env:"CONSUMER_FAIL_OPEN" env-default:"false"`
}

// storeNamePattern constrains the backend identity field, which is spliced
// into SQL statements and key prefixes.
var storeNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Validate rejects option combinations the cache cannot run with. It runs
// once at startup, before any component using these options starts; a
// failure here is fatal.
func (c Cache) Validate() error {
	if c.Enabled && c.EntryTimeout <= 0 {
		return fmt.Errorf("cache enabled but entry_timeout is %s", c.EntryTimeout)
	}
	if c.CleanupEnabled && c.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup enabled but cleanup_interval is %s", c.CleanupInterval)
	}
	if c.Enabled {
		if c.StoreName == "" {
			return fmt.Errorf("store_name must not be blank")
		}
		if !storeNamePattern.MatchString(c.StoreName) {
			return fmt.Errorf("invalid store_name %q", c.StoreName)
		}
		if c.Backend != BackendPostgres && c.Backend != BackendRedis {
			return fmt.Errorf("unknown cache backend %q", c.Backend)
		}
	}
	return nil
}

func New() (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		// fallback to env vars if file not found
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	} else {
		// Allow env vars to override config file
		cleanenv.ReadEnv(cfg)
	}

	if err := cfg.Cache.Validate(); err != nil {
		return nil, fmt.Errorf("cache options: %w", err)
	}

	return cfg, nil
}
