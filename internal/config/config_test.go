package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	cfg.Tavily.ApiKey = "tvly-test"

	assert.NoError(t, cfg.Validate())
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "yolo"
	cfg.Risk.MaxTradeSizeUSD = 0
	cfg.Engine.Concurrency = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "max_trade_size_usd")
	assert.Contains(t, err.Error(), "concurrency")
}

func TestValidate_CredentialsSetTogether(t *testing.T) {
	cfg := Defaults()
	cfg.Tavily.ApiKey = "tvly-test"
	cfg.Polymarket.ApiKey = "key-only"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must all be set together")
}

func TestLoad_MergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
mode = "scan"

[risk]
max_trade_size_usd = 20.0

[engine]
scan_interval = "5m"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "scan", cfg.Mode)
	assert.Equal(t, 20.0, cfg.Risk.MaxTradeSizeUSD)
	assert.Equal(t, 5*time.Minute, cfg.Engine.ScanInterval.Duration)
	// Untouched sections keep their defaults.
	assert.Equal(t, 0.65, cfg.Risk.MinConfidence)
	assert.Equal(t, "https://gamma-api.polymarket.com", cfg.Polymarket.GammaHost)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("mode = \"trade\"\n"), 0o600))

	t.Setenv("POLYBOT_TAVILY_API_KEY", "tvly-env")
	t.Setenv("POLYBOT_RISK_AUTO_EXECUTE", "true")
	t.Setenv("POLYBOT_ENGINE_SCAN_INTERVAL", "2m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tvly-env", cfg.Tavily.ApiKey)
	assert.True(t, cfg.Risk.AutoExecute)
	assert.Equal(t, 2*time.Minute, cfg.Engine.ScanInterval.Duration)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Tavily.ApiKey = "tvly-secret"
	cfg.Postgres.Password = "hunter2"
	cfg.Notify.TelegramToken = "123:abc"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Tavily.ApiKey)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Notify.TelegramToken)
	// Non-secret fields pass through.
	assert.Equal(t, cfg.Redis.Addr, red.Redis.Addr)
	// The original is untouched.
	assert.Equal(t, "tvly-secret", cfg.Tavily.ApiKey)
}
