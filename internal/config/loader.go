package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FLIPPIDY_"

// Load merges the TOML file at path over Defaults, loads .env if present, and
// applies FLIPPIDY_* overrides. A missing file is not an error. The result is
// not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "MODE")
	setStr(&cfg.LogLevel, "LOG_LEVEL")
	setStr(&cfg.Log.File, "LOG_FILE")

	setStr(&cfg.Bazaar.APIURL, "BAZAAR_API_URL")
	setStr(&cfg.Bazaar.APIKey, "BAZAAR_API_KEY")
	setDuration(&cfg.Bazaar.FetchTimeout, "BAZAAR_FETCH_TIMEOUT")

	setDuration(&cfg.Engine.ScanInterval, "ENGINE_SCAN_INTERVAL")
	setDuration(&cfg.Engine.CheckInterval, "ENGINE_CHECK_INTERVAL")
	setDuration(&cfg.Engine.OrderTimeout, "ENGINE_ORDER_TIMEOUT")
	setInt(&cfg.Engine.MaxItems, "ENGINE_MAX_ITEMS")
	setInt(&cfg.Engine.MaxConcurrentFlips, "ENGINE_MAX_CONCURRENT_FLIPS")
	setInt(&cfg.Engine.MaxItemAmount, "ENGINE_MAX_ITEM_AMOUNT")
	setBool(&cfg.Engine.AutoStart, "ENGINE_AUTO_START")

	setFloat64(&cfg.Scoring.MinProfitPercentage, "SCORING_MIN_PROFIT_PERCENTAGE")
	setFloat64(&cfg.Scoring.MinProfitAmount, "SCORING_MIN_PROFIT_AMOUNT")
	setFloat64(&cfg.Scoring.MinItemVolume, "SCORING_MIN_ITEM_VOLUME")
	setFloat64(&cfg.Scoring.FeeRate, "SCORING_FEE_RATE")
	setBool(&cfg.Scoring.EnableManipulationProtection, "SCORING_ENABLE_MANIPULATION_PROTECTION")
	setFloat64(&cfg.Scoring.MaxPriceGap, "SCORING_MAX_PRICE_GAP")

	setBool(&cfg.Budget.UseBudgetCheck, "BUDGET_USE_BUDGET_CHECK")
	setFloat64(&cfg.Budget.MinPurseSafety, "BUDGET_MIN_PURSE_SAFETY")

	setFloat64(&cfg.Paper.StartingPurse, "PAPER_STARTING_PURSE")
	setDuration(&cfg.Paper.FillDelay, "PAPER_FILL_DELAY")

	setStr(&cfg.Store.Backend, "STORE_BACKEND")
	setStr(&cfg.Store.Key, "STORE_KEY")
	setStr(&cfg.Store.SQLitePath, "STORE_SQLITE_PATH")

	setStr(&cfg.Postgres.DSN, "POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POSTGRES_SSL_MODE")

	setBool(&cfg.Redis.Enabled, "REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "REDIS_ADDR")
	setStr(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.LockTTL, "REDIS_LOCK_TTL")

	setStr(&cfg.S3.Endpoint, "S3_ENDPOINT")
	setStr(&cfg.S3.Region, "S3_REGION")
	setStr(&cfg.S3.Bucket, "S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "S3_SECRET_KEY")

	setBool(&cfg.Server.Enabled, "SERVER_ENABLED")
	setStr(&cfg.Server.Host, "SERVER_HOST")
	setInt(&cfg.Server.Port, "SERVER_PORT")
	setStr(&cfg.Server.APIKey, "SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "SERVER_CORS_ORIGINS")

	setStr(&cfg.Notify.TelegramToken, "NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "NOTIFY_EVENTS")
}

// Each helper mutates dst only when the variable is set and parses.

func lookup(key string) (string, bool) {
	v := os.Getenv(EnvPrefix + key)
	return v, v != ""
}

func setStr(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v, ok := lookup(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v, ok := lookup(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	var cleaned []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) > 0 {
		*dst = cleaned
	}
}
