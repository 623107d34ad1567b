package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
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

// applyEnvOverrides reads well-known POLYBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "POLYBOT_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "POLYBOT_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.WsHost, "POLYBOT_POLYMARKET_WS_HOST")
	setStr(&cfg.Polymarket.Address, "POLYBOT_POLYMARKET_ADDRESS")
	setStr(&cfg.Polymarket.ApiKey, "POLYBOT_POLYMARKET_API_KEY")
	setStr(&cfg.Polymarket.ApiSecret, "POLYBOT_POLYMARKET_API_SECRET")
	setStr(&cfg.Polymarket.ApiPassphrase, "POLYBOT_POLYMARKET_API_PASSPHRASE")

	// ── Tavily ──
	setStr(&cfg.Tavily.BaseURL, "POLYBOT_TAVILY_BASE_URL")
	setStr(&cfg.Tavily.ApiKey, "POLYBOT_TAVILY_API_KEY")
	setInt(&cfg.Tavily.MaxResults, "POLYBOT_TAVILY_MAX_RESULTS")
	setInt(&cfg.Tavily.Days, "POLYBOT_TAVILY_DAYS")
	setBool(&cfg.Tavily.RateLimited, "POLYBOT_TAVILY_RATE_LIMITED")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "POLYBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "POLYBOT_DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "POLYBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POLYBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POLYBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POLYBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POLYBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POLYBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POLYBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POLYBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POLYBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "POLYBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "POLYBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYBOT_S3_FORCE_PATH_STYLE")

	// ── Sentiment ──
	setDuration(&cfg.Sentiment.RecencyHalfLife, "POLYBOT_SENTIMENT_RECENCY_HALF_LIFE")
	setFloat64(&cfg.Sentiment.StrengthScale, "POLYBOT_SENTIMENT_STRENGTH_SCALE")

	// ── Predict ──
	setFloat64(&cfg.Predict.MaxLogOddsShift, "POLYBOT_PREDICT_MAX_LOG_ODDS_SHIFT")
	setFloat64(&cfg.Predict.MinProbability, "POLYBOT_PREDICT_MIN_PROBABILITY")
	setFloat64(&cfg.Predict.MaxProbability, "POLYBOT_PREDICT_MAX_PROBABILITY")

	// ── Risk ──
	setFloat64(&cfg.Risk.MaxTradeSizeUSD, "POLYBOT_RISK_MAX_TRADE_SIZE_USD")
	setFloat64(&cfg.Risk.MinConfidence, "POLYBOT_RISK_MIN_CONFIDENCE")
	setInt(&cfg.Risk.MaxOpenPositions, "POLYBOT_RISK_MAX_OPEN_POSITIONS")
	setFloat64(&cfg.Risk.DailyLossLimitR, "POLYBOT_RISK_DAILY_LOSS_LIMIT_R")
	setFloat64(&cfg.Risk.ApprovalThresholdUSD, "POLYBOT_RISK_APPROVAL_THRESHOLD_USD")
	setBool(&cfg.Risk.AutoExecute, "POLYBOT_RISK_AUTO_EXECUTE")
	setFloat64(&cfg.Risk.MagnitudeRef, "POLYBOT_RISK_MAGNITUDE_REF")

	// ── Engine ──
	setDuration(&cfg.Engine.ScanInterval, "POLYBOT_ENGINE_SCAN_INTERVAL")
	setInt(&cfg.Engine.MarketLimit, "POLYBOT_ENGINE_MARKET_LIMIT")
	setInt(&cfg.Engine.Concurrency, "POLYBOT_ENGINE_CONCURRENCY")
	setDuration(&cfg.Engine.ListTimeout, "POLYBOT_ENGINE_LIST_TIMEOUT")
	setInt(&cfg.Engine.MaxDaysAhead, "POLYBOT_ENGINE_MAX_DAYS_AHEAD")
	setFloat64(&cfg.Engine.MinVolumeUSD, "POLYBOT_ENGINE_MIN_VOLUME_USD")
	setDuration(&cfg.Engine.NewsTimeout, "POLYBOT_ENGINE_NEWS_TIMEOUT")
	setDuration(&cfg.Engine.EvidenceTTL, "POLYBOT_ENGINE_EVIDENCE_TTL")
	setDuration(&cfg.Engine.ResolutionPollInterval, "POLYBOT_ENGINE_RESOLUTION_POLL_INTERVAL")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "POLYBOT_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "POLYBOT_ARCHIVE_RETENTION_DAYS")
	setInt(&cfg.Archive.BatchSize, "POLYBOT_ARCHIVE_BATCH_SIZE")
	setDuration(&cfg.Archive.Interval, "POLYBOT_ARCHIVE_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYBOT_MODE")
	setStr(&cfg.LogLevel, "POLYBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
