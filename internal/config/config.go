package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type ScraperConfig struct {
	// Marketplaces is the domain allow-list; empty means the built-in list.
	Marketplaces []string      `mapstructure:"marketplaces"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	MaxRedirects int           `mapstructure:"max_redirects"`
	UserAgent    string        `mapstructure:"user_agent"`
	USDToINRRate float64       `mapstructure:"usd_to_inr_rate"`
	// HostPerMinute throttles outbound fetches per marketplace host; 0 disables it.
	HostPerMinute float64 `mapstructure:"host_per_minute"`
}

type StorageConfig struct {
	Type         string `mapstructure:"type"` // "memory" or "postgres"
	SnapshotFile string `mapstructure:"snapshot_file"`
}

type DatabaseConfig struct {
	// DSN, when set, takes precedence over the individual fields.
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type CacheConfig struct {
	Type string        `mapstructure:"type"` // "none", "memory" or "redis"
	TTL  time.Duration `mapstructure:"ttl"`
}

type RateLimitConfig struct {
	PerMinute float64 `mapstructure:"per_minute"`
	Burst     int     `mapstructure:"burst"`
}

type OutboxConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	StreamMaxLen int64         `mapstructure:"stream_max_len"`
	Retention    time.Duration `mapstructure:"retention"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from defaults, an optional YAML file and
// CARTSMITH_* environment variables, in increasing precedence. An empty path
// searches the usual locations for config.yaml and tolerates its absence.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/cartsmith/")
	}

	v.SetEnvPrefix("CARTSMITH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*", "https://localhost:*"})
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("scraper.marketplaces", []string{})
	v.SetDefault("scraper.fetch_timeout", "10s")
	v.SetDefault("scraper.max_redirects", 5)
	v.SetDefault("scraper.user_agent", "")
	v.SetDefault("scraper.usd_to_inr_rate", 83.0)
	v.SetDefault("scraper.host_per_minute", 0)

	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.snapshot_file", "")

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "cartsmith")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "cartsmith")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("redis.url", "")

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", "1h")

	v.SetDefault("ratelimit.per_minute", 30)
	v.SetDefault("ratelimit.burst", 10)

	v.SetDefault("outbox.enabled", false)
	v.SetDefault("outbox.poll_interval", "5s")
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.stream_max_len", 10000)
	v.SetDefault("outbox.retention", "168h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Storage.Type != "memory" && c.Storage.Type != "postgres" {
		return fmt.Errorf("storage type must be 'memory' or 'postgres', got: %s", c.Storage.Type)
	}

	switch c.Cache.Type {
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("cache type must be 'none', 'memory' or 'redis', got: %s", c.Cache.Type)
	}

	if c.Cache.Type == "redis" && c.Redis.URL == "" {
		return fmt.Errorf("redis url is required when cache type is 'redis' (set CARTSMITH_REDIS_URL)")
	}

	if c.Outbox.Enabled {
		if c.Storage.Type != "postgres" {
			return fmt.Errorf("outbox requires storage type 'postgres'")
		}
		if c.Redis.URL == "" {
			return fmt.Errorf("redis url is required when the outbox is enabled (set CARTSMITH_REDIS_URL)")
		}
	}

	if c.Scraper.USDToINRRate <= 0 {
		return fmt.Errorf("usd_to_inr_rate must be positive, got: %v", c.Scraper.USDToINRRate)
	}

	if c.Scraper.MaxRedirects < 0 {
		return fmt.Errorf("max_redirects must not be negative, got: %d", c.Scraper.MaxRedirects)
	}

	if c.Scraper.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be positive, got: %s", c.Scraper.FetchTimeout)
	}

	if c.RateLimit.Burst < 1 {
		return fmt.Errorf("ratelimit burst must be at least 1, got: %d", c.RateLimit.Burst)
	}

	return nil
}
