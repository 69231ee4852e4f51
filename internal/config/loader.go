package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TICKTRADER_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TICKTRADER_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "TICKTRADER_MODE")
	setStr(&cfg.LogLevel, "TICKTRADER_LOG_LEVEL")

	setStr(&cfg.Polymarket.GammaHost, "TICKTRADER_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.ClobHost, "TICKTRADER_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.WsHost, "TICKTRADER_POLYMARKET_WS_HOST")
	setStr(&cfg.Polymarket.UserWsHost, "TICKTRADER_POLYMARKET_USER_WS_HOST")
	setStr(&cfg.Polymarket.SeriesSlug, "TICKTRADER_POLYMARKET_SERIES_SLUG")
	setStr(&cfg.Polymarket.APIKey, "TICKTRADER_POLYMARKET_API_KEY")
	setStr(&cfg.Polymarket.APISecret, "TICKTRADER_POLYMARKET_API_SECRET")
	setStr(&cfg.Polymarket.APIPassphrase, "TICKTRADER_POLYMARKET_API_PASSPHRASE")

	setStr(&cfg.Oracle.WsHost, "TICKTRADER_ORACLE_WS_HOST")
	setStr(&cfg.Oracle.ProductID, "TICKTRADER_ORACLE_PRODUCT_ID")

	setBool(&cfg.Postgres.Enabled, "TICKTRADER_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "TICKTRADER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TICKTRADER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TICKTRADER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TICKTRADER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TICKTRADER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TICKTRADER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TICKTRADER_POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "TICKTRADER_POSTGRES_RUN_MIGRATIONS")

	setBool(&cfg.Redis.Enabled, "TICKTRADER_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "TICKTRADER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TICKTRADER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TICKTRADER_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "TICKTRADER_REDIS_TLS_ENABLED")

	setBool(&cfg.S3.Enabled, "TICKTRADER_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "TICKTRADER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TICKTRADER_S3_REGION")
	setStr(&cfg.S3.Bucket, "TICKTRADER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TICKTRADER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TICKTRADER_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "TICKTRADER_S3_FORCE_PATH_STYLE")

	setBool(&cfg.Recorder.Enabled, "TICKTRADER_RECORDER_ENABLED")
	setStr(&cfg.Recorder.Dir, "TICKTRADER_RECORDER_DIR")
	setBool(&cfg.Recorder.Archive, "TICKTRADER_RECORDER_ARCHIVE")

	setStr(&cfg.Notify.TelegramToken, "TICKTRADER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TICKTRADER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhook, "TICKTRADER_NOTIFY_DISCORD_WEBHOOK")

	setBool(&cfg.Server.Enabled, "TICKTRADER_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "TICKTRADER_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "TICKTRADER_SERVER_API_KEY")

	setFloat64(&cfg.Engine.MaxShares, "TICKTRADER_ENGINE_MAX_SHARES")
	setFloat64(&cfg.Engine.MaxPosition, "TICKTRADER_ENGINE_MAX_POSITION")
	setFloat64(&cfg.Engine.BaseSize, "TICKTRADER_ENGINE_BASE_SIZE")
	setFloat64(&cfg.Engine.CircuitBreakerUSD, "TICKTRADER_ENGINE_CIRCUIT_BREAKER_USD")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
