// Package config defines the top-level configuration for the prediction bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POLYBOT_* environment variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Tavily     TavilyConfig     `toml:"tavily"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Sentiment  SentimentConfig  `toml:"sentiment"`
	Predict    PredictConfig    `toml:"predict"`
	Risk       RiskConfig       `toml:"risk"`
	Engine     EngineConfig     `toml:"engine"`
	Archive    ArchiveConfig    `toml:"archive"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds Polymarket API endpoints and CLOB credentials.
type PolymarketConfig struct {
	ClobHost      string `toml:"clob_host"`
	GammaHost     string `toml:"gamma_host"`
	WsHost        string `toml:"ws_host"`
	Address       string `toml:"address"`
	ApiKey        string `toml:"api_key"`
	ApiSecret     string `toml:"api_secret"`
	ApiPassphrase string `toml:"api_passphrase"`
}

// TavilyConfig holds the news search API parameters.
type TavilyConfig struct {
	BaseURL    string `toml:"base_url"`
	ApiKey     string `toml:"api_key"`
	MaxResults int    `toml:"max_results"`
	Days       int    `toml:"days"`
	// RateLimited routes searches through the shared Redis rate limiter so
	// concurrent evaluations stay inside the API quota.
	RateLimited bool `toml:"rate_limited"`
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
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// SentimentConfig holds evidence aggregation parameters.
type SentimentConfig struct {
	RecencyHalfLife duration `toml:"recency_half_life"`
	StrengthScale   float64  `toml:"strength_scale"`
}

// PredictConfig holds the probability estimator parameters.
type PredictConfig struct {
	MaxLogOddsShift float64 `toml:"max_log_odds_shift"`
	MinProbability  float64 `toml:"min_probability"`
	MaxProbability  float64 `toml:"max_probability"`
}

// RiskConfig holds trade admission limits.
type RiskConfig struct {
	MaxTradeSizeUSD      float64 `toml:"max_trade_size_usd"`
	MinConfidence        float64 `toml:"min_confidence"`
	MaxOpenPositions     int     `toml:"max_open_positions"`
	DailyLossLimitR      float64 `toml:"daily_loss_limit_r"`
	ApprovalThresholdUSD float64 `toml:"approval_threshold_usd"`
	AutoExecute          bool    `toml:"auto_execute"`
	MagnitudeRef         float64 `toml:"magnitude_ref"`
}

// EngineConfig holds scan-loop and evaluation parameters.
type EngineConfig struct {
	ScanInterval           duration `toml:"scan_interval"`
	MarketLimit            int      `toml:"market_limit"`
	Concurrency            int      `toml:"concurrency"`
	ListTimeout            duration `toml:"list_timeout"`
	MaxDaysAhead           int      `toml:"max_days_ahead"`
	MinVolumeUSD           float64  `toml:"min_volume_usd"`
	NewsTimeout            duration `toml:"news_timeout"`
	EvidenceTTL            duration `toml:"evidence_ttl"`
	ResolutionPollInterval duration `toml:"resolution_poll_interval"`
}

// ArchiveConfig holds cold-storage archival parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	BatchSize     int      `toml:"batch_size"`
	Interval      duration `toml:"interval"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			ClobHost:  "https://clob.polymarket.com",
			GammaHost: "https://gamma-api.polymarket.com",
			WsHost:    "wss://ws-subscriptions-clob.polymarket.com",
		},
		Tavily: TavilyConfig{
			BaseURL:     "https://api.tavily.com",
			MaxResults:  5,
			Days:        7,
			RateLimited: true,
		},
		Postgres: PostgresConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polybot-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Sentiment: SentimentConfig{
			RecencyHalfLife: duration{24 * time.Hour},
			StrengthScale:   3.0,
		},
		Predict: PredictConfig{
			MaxLogOddsShift: 1.9,
			MinProbability:  0.01,
			MaxProbability:  0.99,
		},
		Risk: RiskConfig{
			MaxTradeSizeUSD:      50,
			MinConfidence:        0.65,
			MaxOpenPositions:     5,
			DailyLossLimitR:      3,
			ApprovalThresholdUSD: 25,
			AutoExecute:          false,
			MagnitudeRef:         0.25,
		},
		Engine: EngineConfig{
			ScanInterval:           duration{10 * time.Minute},
			MarketLimit:            20,
			Concurrency:            4,
			ListTimeout:            duration{30 * time.Second},
			MaxDaysAhead:           30,
			MinVolumeUSD:           10_000,
			NewsTimeout:            duration{15 * time.Second},
			EvidenceTTL:            duration{30 * time.Minute},
			ResolutionPollInterval: duration{30 * time.Minute},
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			BatchSize:     500,
			Interval:      duration{24 * time.Hour},
		},
		Notify: NotifyConfig{
			Events: []string{"trade_executed", "approval_required", "execution_failed", "market_resolved", "day_stopped"},
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"scan":    true,
	"monitor": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, scan, monitor, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Polymarket endpoints
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}

	// CLOB credentials must be set together, or all empty.
	ck := c.Polymarket.ApiKey != ""
	cs := c.Polymarket.ApiSecret != ""
	cp := c.Polymarket.ApiPassphrase != ""
	if ck || cs || cp {
		if !(ck && cs && cp) {
			errs = append(errs, "polymarket: api_key, api_secret, and api_passphrase must all be set together")
		}
	}

	// Tavily is required for modes that evaluate markets.
	needsNews := c.Mode == "trade" || c.Mode == "scan" || c.Mode == "full"
	if needsNews {
		if c.Tavily.ApiKey == "" {
			errs = append(errs, "tavily: api_key is required for mode "+c.Mode)
		}
		if c.Tavily.BaseURL == "" {
			errs = append(errs, "tavily: base_url must not be empty")
		}
	}
	if c.Tavily.MaxResults < 1 {
		errs = append(errs, "tavily: max_results must be >= 1")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 is only reached when archival is on.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archive is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Sentiment
	if c.Sentiment.RecencyHalfLife.Duration <= 0 {
		errs = append(errs, "sentiment: recency_half_life must be > 0")
	}
	if c.Sentiment.StrengthScale <= 0 {
		errs = append(errs, "sentiment: strength_scale must be > 0")
	}

	// Predict
	if c.Predict.MaxLogOddsShift <= 0 {
		errs = append(errs, "predict: max_log_odds_shift must be > 0")
	}
	if c.Predict.MinProbability <= 0 || c.Predict.MaxProbability >= 1 ||
		c.Predict.MinProbability >= c.Predict.MaxProbability {
		errs = append(errs, fmt.Sprintf("predict: probability clamp must satisfy 0 < min < max < 1, got [%g, %g]",
			c.Predict.MinProbability, c.Predict.MaxProbability))
	}

	// Risk
	if c.Risk.MaxTradeSizeUSD <= 0 {
		errs = append(errs, "risk: max_trade_size_usd must be > 0")
	}
	if c.Risk.MinConfidence < 0 || c.Risk.MinConfidence > 1 {
		errs = append(errs, fmt.Sprintf("risk: min_confidence must be in [0,1], got %g", c.Risk.MinConfidence))
	}
	if c.Risk.MaxOpenPositions < 1 {
		errs = append(errs, "risk: max_open_positions must be >= 1")
	}
	if c.Risk.DailyLossLimitR <= 0 {
		errs = append(errs, "risk: daily_loss_limit_r must be > 0")
	}
	if c.Risk.ApprovalThresholdUSD < 0 {
		errs = append(errs, "risk: approval_threshold_usd must be >= 0")
	}

	// Engine
	if c.Engine.ScanInterval.Duration <= 0 {
		errs = append(errs, "engine: scan_interval must be > 0")
	}
	if c.Engine.MarketLimit < 1 {
		errs = append(errs, "engine: market_limit must be >= 1")
	}
	if c.Engine.Concurrency < 1 {
		errs = append(errs, "engine: concurrency must be >= 1")
	}
	if c.Engine.NewsTimeout.Duration <= 0 {
		errs = append(errs, "engine: news_timeout must be > 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
