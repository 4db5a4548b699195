// Package config provides application configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers supported by the snapshot repository.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverWAL      = "wal"
)

// Config holds the complete application configuration.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Provider  ProviderConfig
	Cache     CacheConfig
	Render    RenderConfig
	Worker    WorkerConfig
	Telegram  TelegramConfig
	Scheduler SchedulerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port          int  `mapstructure:"port"`
	ServeSwagger  bool `mapstructure:"serve_swagger"`
	ServeAsynqmon bool `mapstructure:"serve_asynqmon"`
}

// StoreConfig selects the snapshot store backend.
type StoreConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
	WALDir     string `mapstructure:"wal_dir"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	Name               string `mapstructure:"name"`
	SSLMode            string `mapstructure:"sslmode"`
	MaxOpenConns       int    `mapstructure:"max_open_conns"`
	MaxIdleConns       int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSec int    `mapstructure:"conn_max_lifetime_sec"`
	DSN                string
}

// RedisConfig holds connection settings for both Redis instances.
type RedisConfig struct {
	AsynqAddr string `mapstructure:"asynq_addr"` // Redis instance for Asynq task queue (required).
	CacheAddr string `mapstructure:"cache_addr"` // Redis instance for rate cache and artifact registry (required).
}

// ProviderConfig holds settings for the openexchangerates.org API.
type ProviderConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	AppID      string `mapstructure:"app_id"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

// CacheConfig holds rate cache settings.
type CacheConfig struct {
	FreshnessWindowSec int `mapstructure:"freshness_window_sec"`
}

// RenderConfig holds chart rendering settings.
type RenderConfig struct {
	OutputDir   string  `mapstructure:"output_dir"`
	Concurrency int     `mapstructure:"concurrency"`
	TimeoutSec  int     `mapstructure:"timeout_sec"` // 0 disables the timeout.
	WidthInch   float64 `mapstructure:"width_inch"`
	HeightInch  float64 `mapstructure:"height_inch"`
}

// WorkerConfig holds background worker and task queue settings.
type WorkerConfig struct {
	Concurrency      int `mapstructure:"concurrency"`
	MaxRetry         int `mapstructure:"max_retry"`
	TimeoutSec       int `mapstructure:"timeout_sec"`
	CheckIntervalSec int `mapstructure:"check_interval_sec"`
}

// TelegramConfig holds Telegram Bot API settings.
type TelegramConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BotToken       string `mapstructure:"bot_token"`
	APIURL         string `mapstructure:"api_url"`
	PollTimeoutSec int    `mapstructure:"poll_timeout_sec"`
}

// SchedulerConfig holds cron settings. An empty WarmCron disables cache warming.
type SchedulerConfig struct {
	WarmCron string `mapstructure:"warm_cron"`
}

// LoadConfig reads configuration from config files, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Printf("No .env file found or error loading it: %v\n", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./internal/config")

	v.SetEnvPrefix("FXBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// It's okay if no config file, we have defaults and env
		fmt.Printf("Config file not found: %v\n", err)
	}

	return fromViper(v)
}

// SetDefaults registers default values for every known key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.serve_swagger", true)
	v.SetDefault("server.serve_asynqmon", false)
	v.SetDefault("store.driver", StoreDriverPostgres)
	v.SetDefault("store.sqlite_path", "data/db.db")
	v.SetDefault("store.wal_dir", "data/wal")
	v.SetDefault("database.host", "db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "fxbot")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime_sec", 300)
	v.SetDefault("redis.asynq_addr", "redis_asynq:6380")
	v.SetDefault("redis.cache_addr", "redis_cache:6381")
	v.SetDefault("provider.base_url", "https://openexchangerates.org/api")
	v.SetDefault("provider.app_id", "")
	v.SetDefault("provider.timeout_sec", 10)
	v.SetDefault("cache.freshness_window_sec", 600)
	v.SetDefault("render.output_dir", "data/charts")
	v.SetDefault("render.concurrency", 1)
	v.SetDefault("render.timeout_sec", 0)
	v.SetDefault("render.width_inch", 8.0)
	v.SetDefault("render.height_inch", 4.5)
	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.max_retry", 0)
	v.SetDefault("worker.timeout_sec", 300)
	v.SetDefault("worker.check_interval_sec", 1)
	v.SetDefault("telegram.enabled", true)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.api_url", "https://api.telegram.org")
	v.SetDefault("telegram.poll_timeout_sec", 30)
	v.SetDefault("scheduler.warm_cron", "")
}

func fromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.Database.MaxOpenConns <= 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns <= 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeSec <= 0 {
		cfg.Database.ConnMaxLifetimeSec = 300
	}

	cfg.Database.DSN = fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.User, cfg.Database.Password,
		cfg.Database.Host, cfg.Database.Port,
		cfg.Database.Name, cfg.Database.SSLMode)

	return &cfg, nil
}

// Validate checks that all required configuration fields are set and valid.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be positive, got %d", c.Server.Port))
	}

	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Database.Host == "" {
			errs = append(errs, fmt.Errorf("database.host is required"))
		}
		if c.Database.Port <= 0 {
			errs = append(errs, fmt.Errorf("database.port must be positive, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, fmt.Errorf("database.user is required"))
		}
		if c.Database.Name == "" {
			errs = append(errs, fmt.Errorf("database.name is required"))
		}
	case StoreDriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, fmt.Errorf("store.sqlite_path is required for the sqlite driver"))
		}
	case StoreDriverWAL:
		if c.Store.WALDir == "" {
			errs = append(errs, fmt.Errorf("store.wal_dir is required for the wal driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver must be one of postgres, sqlite, wal, got %q", c.Store.Driver))
	}

	if c.Redis.AsynqAddr == "" {
		errs = append(errs, fmt.Errorf("redis.asynq_addr is required (set FXBOT_REDIS_ASYNQ_ADDR)"))
	}
	if c.Redis.CacheAddr == "" {
		errs = append(errs, fmt.Errorf("redis.cache_addr is required (set FXBOT_REDIS_CACHE_ADDR)"))
	}

	if c.Provider.BaseURL == "" {
		errs = append(errs, fmt.Errorf("provider.base_url is required"))
	}
	if c.Provider.AppID == "" {
		errs = append(errs, fmt.Errorf("provider.app_id is required (set FXBOT_PROVIDER_APP_ID)"))
	}
	if c.Provider.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("provider.timeout_sec must be positive, got %d", c.Provider.TimeoutSec))
	}

	if c.Cache.FreshnessWindowSec <= 0 {
		errs = append(errs, fmt.Errorf("cache.freshness_window_sec must be positive, got %d", c.Cache.FreshnessWindowSec))
	}

	if c.Render.OutputDir == "" {
		errs = append(errs, fmt.Errorf("render.output_dir is required"))
	}
	if c.Render.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("render.concurrency must be positive, got %d", c.Render.Concurrency))
	}
	if c.Render.TimeoutSec < 0 {
		errs = append(errs, fmt.Errorf("render.timeout_sec must be non-negative, got %d", c.Render.TimeoutSec))
	}

	if c.Worker.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("worker.concurrency must be positive, got %d", c.Worker.Concurrency))
	}
	if c.Worker.MaxRetry < 0 {
		errs = append(errs, fmt.Errorf("worker.max_retry must be non-negative, got %d", c.Worker.MaxRetry))
	}
	if c.Worker.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("worker.timeout_sec must be positive, got %d", c.Worker.TimeoutSec))
	}
	if c.Worker.CheckIntervalSec <= 0 {
		errs = append(errs, fmt.Errorf("worker.check_interval_sec must be positive, got %d", c.Worker.CheckIntervalSec))
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			errs = append(errs, fmt.Errorf("telegram.bot_token is required when telegram is enabled (set FXBOT_TELEGRAM_BOT_TOKEN)"))
		}
		if c.Telegram.PollTimeoutSec <= 0 {
			errs = append(errs, fmt.Errorf("telegram.poll_timeout_sec must be positive, got %d", c.Telegram.PollTimeoutSec))
		}
	}

	return errors.Join(errs...)
}
