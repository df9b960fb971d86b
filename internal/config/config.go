package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xraph/marketplace"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Store   StoreConfig         `yaml:"store"`
	Redis   RedisConfig         `yaml:"redis"`
	Mongo   MongoConfig         `yaml:"mongo"`
	Server  ServerConfig        `yaml:"server"`
	Engine  EngineConfig        `yaml:"engine"`
	Log     LogConfig           `yaml:"log"`
	Plugins PluginConfig        `yaml:"plugins"`
	Policy  *marketplace.Policy `yaml:"policy,omitempty"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
	// URL is the postgres DSN or the sqlite file path.
	URL string `yaml:"url"`
}

// RedisConfig enables the event stream sink when URL is set.
type RedisConfig struct {
	URL    string `yaml:"url"`
	Stream string `yaml:"stream"`
	MaxLen int64  `yaml:"max_len"`
}

// MongoConfig enables the event archive sink when URI is set.
type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type EngineConfig struct {
	RelayInterval    time.Duration `yaml:"relay_interval"`
	RelayBatchSize   int           `yaml:"relay_batch_size"`
	RelayBackoff     time.Duration `yaml:"relay_backoff"`
	RelayMaxBackoff  time.Duration `yaml:"relay_max_backoff"`
	MaxRelayAttempts int           `yaml:"max_relay_attempts"`
	PluginTimeout    time.Duration `yaml:"plugin_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type PluginConfig struct {
	Audit   bool `yaml:"audit"`
	Metrics bool `yaml:"metrics"`
}

// Load reads the configuration from the environment, then overlays the
// YAML file named by MARKETPLACE_CONFIG when set.
func Load() (*Config, error) {
	cfg := &Config{
		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", DriverMemory),
			URL:    getEnv("STORE_URL", ""),
		},
		Redis: RedisConfig{
			URL:    getEnv("REDIS_URL", ""),
			Stream: getEnv("REDIS_STREAM", "marketplace:events"),
			MaxLen: int64(getEnvInt("REDIS_STREAM_MAX_LEN", 100_000)),
		},
		Mongo: MongoConfig{
			URI:        getEnv("MONGO_URI", ""),
			Database:   getEnv("MONGO_DATABASE", "marketplace"),
			Collection: getEnv("MONGO_COLLECTION", "events"),
		},
		Server: ServerConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Engine: EngineConfig{
			RelayInterval:    getEnvDuration("RELAY_INTERVAL", 10*time.Second),
			RelayBatchSize:   getEnvInt("RELAY_BATCH_SIZE", 100),
			RelayBackoff:     getEnvDuration("RELAY_BACKOFF", time.Second),
			RelayMaxBackoff:  getEnvDuration("RELAY_MAX_BACKOFF", 5*time.Minute),
			MaxRelayAttempts: getEnvInt("MAX_RELAY_ATTEMPTS", 10),
			PluginTimeout:    getEnvDuration("PLUGIN_TIMEOUT", 5*time.Second),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Plugins: PluginConfig{
			Audit:   getEnvBool("AUDIT_ENABLED", true),
			Metrics: getEnvBool("METRICS_ENABLED", true),
		},
	}

	if path := getEnv("MARKETPLACE_CONFIG", ""); path != "" {
		if err := cfg.overlay(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlay decodes the YAML file at path over cfg. Keys absent from the
// file keep their current values.
func (c *Config) overlay(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	c.Store.Driver = strings.ToLower(c.Store.Driver)
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if c.Store.URL == "" {
			return fmt.Errorf("STORE_URL is required for the %s driver", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Mongo.URI != "" && (c.Mongo.Database == "" || c.Mongo.Collection == "") {
		return fmt.Errorf("MONGO_DATABASE and MONGO_COLLECTION are required when MONGO_URI is set")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if c.Engine.RelayBatchSize <= 0 {
		return fmt.Errorf("RELAY_BATCH_SIZE must be positive")
	}
	if c.Engine.RelayBackoff <= 0 || c.Engine.RelayMaxBackoff < c.Engine.RelayBackoff {
		return fmt.Errorf("RELAY_BACKOFF must be positive and not above RELAY_MAX_BACKOFF")
	}
	if c.Engine.MaxRelayAttempts < 0 {
		return fmt.Errorf("MAX_RELAY_ATTEMPTS must not be negative")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
