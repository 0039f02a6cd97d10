// Package config defines the flipper configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration. Fields come from a TOML file and are
// then overridden by FLIPPIDY_* environment variables.
type Config struct {
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
	Log      LogConfig      `toml:"log"`
	Bazaar   BazaarConfig   `toml:"bazaar"`
	Engine   EngineConfig   `toml:"engine"`
	Scoring  ScoringConfig  `toml:"scoring"`
	Budget   BudgetConfig   `toml:"budget"`
	Paper    PaperConfig    `toml:"paper"`
	Store    StoreConfig    `toml:"store"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
}

// LogConfig enables a rotating log file next to stdout when File is set.
type LogConfig struct {
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// BazaarConfig points at the market snapshot API.
type BazaarConfig struct {
	APIURL       string   `toml:"api_url"`
	APIKey       string   `toml:"api_key"`
	UserAgent    string   `toml:"user_agent"`
	FetchTimeout duration `toml:"fetch_timeout"`
}

// EngineConfig holds the scan and lifecycle schedule.
type EngineConfig struct {
	ScanInterval       duration `toml:"scan_interval"`
	CheckInterval      duration `toml:"check_interval"`
	OrderTimeout       duration `toml:"order_timeout"`
	MaxItems           int      `toml:"max_items"`
	MaxConcurrentFlips int      `toml:"max_concurrent_flips"`
	MaxItemAmount      int      `toml:"max_item_amount"`
	AutoStart          bool     `toml:"auto_start"`
	ShutdownTimeout    duration `toml:"shutdown_timeout"`
}

// ScoringConfig holds the opportunity filters.
type ScoringConfig struct {
	MinProfitPercentage          float64 `toml:"min_profit_percentage"`
	MinProfitAmount              float64 `toml:"min_profit_amount"`
	MinItemVolume                float64 `toml:"min_item_volume"`
	FeeRate                      float64 `toml:"fee_rate"`
	EnableManipulationProtection bool    `toml:"enable_manipulation_protection"`
	MaxPriceGap                  float64 `toml:"max_price_gap"`
}

// BudgetConfig controls the purse check on admission.
type BudgetConfig struct {
	UseBudgetCheck bool    `toml:"use_budget_check"`
	MinPurseSafety float64 `toml:"min_purse_safety"`
}

// PaperConfig configures the simulated venue.
type PaperConfig struct {
	StartingPurse float64  `toml:"starting_purse"`
	FillDelay     duration `toml:"fill_delay"`
}

// StoreConfig selects where the profit ledger lives. Completed-flip history
// is kept by the sqlite and postgres backends only.
type StoreConfig struct {
	Backend    string `toml:"backend"`
	Key        string `toml:"key"`
	SQLitePath string `toml:"sqlite_path"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters and the names used for the
// event bus, the key prefix and the engine lock.
type RedisConfig struct {
	Enabled       bool     `toml:"enabled"`
	Addr          string   `toml:"addr"`
	Password      string   `toml:"password"`
	DB            int      `toml:"db"`
	PoolSize      int      `toml:"pool_size"`
	MaxRetries    int      `toml:"max_retries"`
	TLSEnabled    bool     `toml:"tls_enabled"`
	KeyPrefix     string   `toml:"key_prefix"`
	EventsChannel string   `toml:"events_channel"`
	EventsStream  string   `toml:"events_stream"`
	LockTTL       duration `toml:"lock_ttl"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration lets TOML carry strings like "10s" or "5m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the configuration used when a key is absent. It matches
// config.example.toml.
func Defaults() Config {
	return Config{
		Mode:     "paper",
		LogLevel: "info",
		Log: LogConfig{
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 14,
			Compress:   true,
		},
		Bazaar: BazaarConfig{
			APIURL:       "https://api.hypixel.net/skyblock/bazaar",
			UserAgent:    "flippidy/1.0",
			FetchTimeout: duration{8 * time.Second},
		},
		Engine: EngineConfig{
			ScanInterval:       duration{10 * time.Second},
			CheckInterval:      duration{5 * time.Second},
			OrderTimeout:       duration{60 * time.Second},
			MaxItems:           50,
			MaxConcurrentFlips: 13,
			MaxItemAmount:      1024,
			AutoStart:          true,
			ShutdownTimeout:    duration{10 * time.Second},
		},
		Scoring: ScoringConfig{
			MinProfitPercentage:          3,
			MinProfitAmount:              1000,
			MinItemVolume:                10,
			FeeRate:                      0.0125,
			EnableManipulationProtection: true,
			MaxPriceGap:                  1e6,
		},
		Budget: BudgetConfig{
			UseBudgetCheck: true,
			MinPurseSafety: 100_000,
		},
		Paper: PaperConfig{
			StartingPurse: 10_000_000,
			FillDelay:     duration{15 * time.Second},
		},
		Store: StoreConfig{
			Backend:    "sqlite",
			Key:        "statistics.json",
			SQLitePath: "flippidy.db",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "flippidy",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:          "localhost:6379",
			PoolSize:      10,
			MaxRetries:    3,
			KeyPrefix:     "flippidy:",
			EventsChannel: "flippidy:events",
			EventsStream:  "flippidy:events:stream",
			LockTTL:       duration{30 * time.Second},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "flippidy",
			Prefix:         "ledger",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Host:        "127.0.0.1",
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{"flip_completed", "order_expired", "engine_started", "engine_stopped"},
		},
	}
}

var validModes = map[string]bool{
	"paper":   true,
	"monitor": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validBackends = map[string]bool{
	"sqlite":   true,
	"postgres": true,
	"redis":    true,
	"s3":       true,
}

// Validate checks every section and returns one error listing all problems.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if !validModes[strings.ToLower(c.Mode)] {
		add("unknown mode %q (valid: paper, monitor)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	if c.Bazaar.APIURL == "" {
		add("bazaar: api_url must not be empty")
	}
	if c.Bazaar.FetchTimeout.Duration <= 0 {
		add("bazaar: fetch_timeout must be > 0")
	}

	e := c.Engine
	if e.ScanInterval.Duration <= 0 {
		add("engine: scan_interval must be > 0")
	}
	if e.CheckInterval.Duration <= 0 {
		add("engine: check_interval must be > 0")
	}
	if e.OrderTimeout.Duration <= 0 {
		add("engine: order_timeout must be > 0")
	}
	if e.MaxItems < 1 {
		add("engine: max_items must be >= 1")
	}
	if e.MaxConcurrentFlips < 1 {
		add("engine: max_concurrent_flips must be >= 1")
	}
	if e.MaxItemAmount < 1 {
		add("engine: max_item_amount must be >= 1")
	}

	s := c.Scoring
	if s.MinProfitPercentage <= 0 {
		add("scoring: min_profit_percentage must be > 0")
	}
	if s.MinProfitAmount <= 0 {
		add("scoring: min_profit_amount must be > 0")
	}
	if s.MinItemVolume < 0 {
		add("scoring: min_item_volume must be >= 0")
	}
	if s.FeeRate < 0 || s.FeeRate >= 1 {
		add("scoring: fee_rate must be in [0, 1), got %g", s.FeeRate)
	}
	if s.MaxPriceGap <= 0 {
		add("scoring: max_price_gap must be > 0")
	}

	if c.Budget.MinPurseSafety < 0 {
		add("budget: min_purse_safety must be >= 0")
	}
	if strings.EqualFold(c.Mode, "paper") {
		if c.Paper.StartingPurse < 0 {
			add("paper: starting_purse must be >= 0")
		}
		if c.Paper.FillDelay.Duration < 0 {
			add("paper: fill_delay must be >= 0")
		}
	}

	if c.Store.Key == "" {
		add("store: key must not be empty")
	}
	switch backend := strings.ToLower(c.Store.Backend); {
	case !validBackends[backend]:
		add("store: unknown backend %q (valid: sqlite, postgres, redis, s3)", c.Store.Backend)
	case backend == "sqlite" && c.Store.SQLitePath == "":
		add("store: sqlite_path must not be empty for the sqlite backend")
	case backend == "postgres" && strings.TrimSpace(c.Postgres.DSN) == "" && c.Postgres.Host == "":
		add("postgres: host or dsn is required for the postgres backend")
	case backend == "redis" && !c.Redis.Enabled:
		add("redis: enabled must be true for the redis backend")
	case backend == "s3" && (c.S3.Bucket == "" || c.S3.Region == ""):
		add("s3: bucket and region are required for the s3 backend")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			add("redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			add("redis: pool_size must be >= 1")
		}
		if c.Redis.LockTTL.Duration < time.Second {
			add("redis: lock_ttl must be >= 1s")
		}
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		add("server: port must be 1-65535, got %d", c.Server.Port)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
