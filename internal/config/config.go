// Package config defines the top-level configuration for the ticktrader
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by TICKTRADER_* environment
// variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Oracle     OracleConfig     `toml:"oracle"`
	Engine     EngineConfig     `toml:"engine"`
	Execution  ExecutionConfig  `toml:"execution"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Recorder   RecorderConfig   `toml:"recorder"`
	Notify     NotifyConfig     `toml:"notify"`
	Server     ServerConfig     `toml:"server"`
	Mode       string           `toml:"mode"` // "sim" or "live"
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds venue endpoints and the market series to trade.
type PolymarketConfig struct {
	GammaHost  string `toml:"gamma_host"`
	ClobHost   string `toml:"clob_host"`
	WsHost     string `toml:"ws_host"`
	UserWsHost string `toml:"user_ws_host"`
	// SeriesSlug is the recurring 15-minute series prefix; window slugs are
	// "<series>-<window start epoch>", e.g. "btc-updown-15m-1767126600".
	SeriesSlug string `toml:"series_slug"`
	// RolloverCheck is how often discovery polls for the next window.
	RolloverCheck duration `toml:"rollover_check"`

	// CLOB API credentials, required in live mode. Plain key auth; order
	// signing happens upstream of this process.
	APIKey        string `toml:"api_key"`
	APISecret     string `toml:"api_secret"`
	APIPassphrase string `toml:"api_passphrase"`
}

// OracleConfig holds the reference price feed parameters.
type OracleConfig struct {
	WsHost    string `toml:"ws_host"`
	ProductID string `toml:"product_id"` // e.g. "BTC-USD"
}

// EngineConfig holds every strategy and pricing tunable. All prices are in
// ticks (0.1 cent units) unless the name says otherwise.
type EngineConfig struct {
	// Exposure and sizing.
	MaxShares    float64 `toml:"max_shares"`   // per-order share cap
	MaxPosition  float64 `toml:"max_position"` // net-position bound per side
	BaseSize     float64 `toml:"base_size"`    // ladder rung size at neutral inventory
	MinOrderSize float64 `toml:"min_order_size"`

	// Triple Gate pricing.
	BaseMarginTicks  int     `toml:"base_margin_ticks"`
	Gamma            float64 `toml:"gamma"` // skew ticks per share of net position
	MaxSkewTicks     int     `toml:"max_skew_ticks"`
	SlippageTolTicks int     `toml:"slippage_tol_ticks"`
	MinPriceTicks    int     `toml:"min_price_ticks"`
	TickSizeTicks    int     `toml:"tick_size_ticks"` // maker offset, one venue cent

	// Ladder shape.
	LadderDepth     int `toml:"ladder_depth"`
	LadderStepTicks int `toml:"ladder_step_ticks"`

	// Reconciliation.
	Hysteresis float64 `toml:"hysteresis"`

	// Stage thresholds.
	TargetPairTicks   int     `toml:"target_pair_ticks"` // arb fires below this YES+NO sum
	StopLoss          float64 `toml:"stop_loss"`         // dollars, panic-sell level
	FloorThresh       float64 `toml:"floor_thresh"`      // dollars, no averaging down below
	ProfitLockMinUSD  float64 `toml:"profit_lock_min_usd"`
	CircuitBreakerUSD float64 `toml:"circuit_breaker_usd"`
	BalancePad        float64 `toml:"balance_pad"` // shares of tolerated imbalance

	// Oracle model.
	BaseSense      float64 `toml:"base_sense"`       // oracle sensitivity divisor
	OracleBlockYes float64 `toml:"oracle_block_yes"` // block YES buys below this model price, dollars
	OracleBlockNo  float64 `toml:"oracle_block_no"`  // block NO buys above this model price, dollars

	// Bootstrap time zones, minutes remaining.
	BootstrapThresholdHigh float64 `toml:"bootstrap_threshold_high"` // dollars
	BootstrapThresholdLow  float64 `toml:"bootstrap_threshold_low"`  // dollars
	BootstrapKillZoneMin   float64 `toml:"bootstrap_kill_zone_min"`
	BootstrapHighVolMin    float64 `toml:"bootstrap_high_vol_min"`
}

// ExecutionConfig holds execution adapter parameters.
type ExecutionConfig struct {
	// Latency is the simulated network round trip.
	Latency duration `toml:"latency"`
	// PartialFillFraction is the share of a partially-coverable order
	// filled on the first simulated print.
	PartialFillFraction float64 `toml:"partial_fill_fraction"`
	// PartialFillDelay separates the first and second simulated prints.
	PartialFillDelay duration `toml:"partial_fill_delay"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// RecorderConfig holds session recording parameters.
type RecorderConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
	// Archive uploads finished window recordings to S3 at rollover.
	Archive bool `toml:"archive"`
}

// NotifyConfig holds notification channel credentials. Events limits which
// alert types are delivered ("halt", "rollover", "error"); empty means all.
type NotifyConfig struct {
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
	DiscordWebhook string   `toml:"discord_webhook"`
	Events         []string `toml:"events"`
}

// ServerConfig holds the status API parameters. An empty APIKey disables
// authentication.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "150ms", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config with the built-in defaults applied.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			GammaHost:     "https://gamma-api.polymarket.com",
			ClobHost:      "https://clob.polymarket.com",
			WsHost:        "wss://ws-subscriptions-clob.polymarket.com/ws/market",
			UserWsHost:    "wss://ws-subscriptions-clob.polymarket.com/ws/user",
			SeriesSlug:    "btc-updown-15m",
			RolloverCheck: duration{30 * time.Second},
		},
		Oracle: OracleConfig{
			WsHost:    "wss://ws-feed.exchange.coinbase.com",
			ProductID: "BTC-USD",
		},
		Engine: EngineConfig{
			MaxShares:    100,
			MaxPosition:  75,
			BaseSize:     10,
			MinOrderSize: 5,

			BaseMarginTicks:  20,
			Gamma:            0.5,
			MaxSkewTicks:     50,
			SlippageTolTicks: 20,
			MinPriceTicks:    10,
			TickSizeTicks:    10,

			LadderDepth:     5,
			LadderStepTicks: 10,

			Hysteresis: 0.5,

			TargetPairTicks:   980,
			StopLoss:          0.25,
			FloorThresh:       0.20,
			ProfitLockMinUSD:  0.50,
			CircuitBreakerUSD: 50,
			BalancePad:        10,

			BaseSense:      50,
			OracleBlockYes: 0.30,
			OracleBlockNo:  0.70,

			BootstrapThresholdHigh: 0.50,
			BootstrapThresholdLow:  0.30,
			BootstrapKillZoneMin:   2,
			BootstrapHighVolMin:    5,
		},
		Execution: ExecutionConfig{
			Latency:             duration{150 * time.Millisecond},
			PartialFillFraction: 0.3,
			PartialFillDelay:    duration{300 * time.Millisecond},
		},
		Postgres: PostgresConfig{
			Port:          5432,
			SSLMode:       "disable",
			PoolMaxConns:  4,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 8,
		},
		Recorder: RecorderConfig{
			Dir: "recordings",
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Mode:     "sim",
		LogLevel: "info",
	}
}

// Validate checks the configuration for inconsistencies that would make the
// engine misbehave. It returns the first problem found.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "sim", "live":
	default:
		return fmt.Errorf("config: unsupported mode %q", c.Mode)
	}

	e := c.Engine
	if e.MaxPosition <= 0 {
		return fmt.Errorf("config: max_position must be positive, got %v", e.MaxPosition)
	}
	if e.BaseSize <= 0 {
		return fmt.Errorf("config: base_size must be positive, got %v", e.BaseSize)
	}
	if e.MinOrderSize < 0 {
		return fmt.Errorf("config: min_order_size must be non-negative, got %v", e.MinOrderSize)
	}
	if e.LadderDepth < 1 {
		return fmt.Errorf("config: ladder_depth must be at least 1, got %d", e.LadderDepth)
	}
	if e.LadderStepTicks < 1 {
		return fmt.Errorf("config: ladder_step_ticks must be at least 1, got %d", e.LadderStepTicks)
	}
	if e.MinPriceTicks < 0 || e.MinPriceTicks > 990 {
		return fmt.Errorf("config: min_price_ticks out of range: %d", e.MinPriceTicks)
	}
	if e.Hysteresis < 0 {
		return fmt.Errorf("config: hysteresis must be non-negative, got %v", e.Hysteresis)
	}
	if e.TargetPairTicks <= 0 || e.TargetPairTicks > 1000 {
		return fmt.Errorf("config: target_pair_ticks out of range: %d", e.TargetPairTicks)
	}
	if e.StopLoss <= 0 || e.StopLoss >= 1 {
		return fmt.Errorf("config: stop_loss must be in (0,1) dollars, got %v", e.StopLoss)
	}
	if e.FloorThresh < 0 || e.FloorThresh >= 1 {
		return fmt.Errorf("config: floor_thresh must be in [0,1) dollars, got %v", e.FloorThresh)
	}

	if c.Execution.PartialFillFraction <= 0 || c.Execution.PartialFillFraction >= 1 {
		return fmt.Errorf("config: partial_fill_fraction must be in (0,1), got %v", c.Execution.PartialFillFraction)
	}

	if strings.ToLower(c.Mode) == "live" {
		if c.Polymarket.ClobHost == "" {
			return fmt.Errorf("config: clob_host required in live mode")
		}
		if c.Polymarket.UserWsHost == "" {
			return fmt.Errorf("config: user_ws_host required in live mode")
		}
		if c.Polymarket.APIKey == "" {
			return fmt.Errorf("config: polymarket.api_key required in live mode")
		}
	}

	if c.Recorder.Archive && !c.S3.Enabled {
		return fmt.Errorf("config: recorder.archive requires s3.enabled")
	}

	return nil
}
