package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom("", env(nil))
	require.NoError(t, err)

	assert.Equal(t, "9095", cfg.Port)
	assert.Equal(t, "usd", cfg.ReferenceCurrency)
	assert.Equal(t, 2*time.Minute, cfg.RefreshInterval.Duration)
	assert.Equal(t, 5, cfg.CoinGecko.RatePerSecond)
	assert.Equal(t, "Australia/Sydney", cfg.DisplayTimezone)
}

func TestLoadFromFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.toml")
	body := `
port = "8080"
reference_currency = "EUR"
refresh_interval = "30s"

[coingecko]
api_key = "from-file"
rate_per_second = 2
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadFrom(path, env(map[string]string{
		"COINGECKO_API_KEY": "from-env",
		"DB_PATH":           "/tmp/x.db",
	}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "eur", cfg.ReferenceCurrency)
	assert.Equal(t, 30*time.Second, cfg.RefreshInterval.Duration)
	assert.Equal(t, "from-env", cfg.CoinGecko.APIKey)
	assert.Equal(t, 2, cfg.CoinGecko.RatePerSecond)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
}

func TestLoadFromRejectsBadValues(t *testing.T) {
	_, err := LoadFrom("", env(map[string]string{"REFRESH_INTERVAL": "soon"}))
	assert.Error(t, err)

	_, err = LoadFrom("", env(map[string]string{"REFRESH_INTERVAL": "-1m"}))
	assert.Error(t, err)

	_, err = LoadFrom("", env(map[string]string{"RATE_LIMIT_PER_SEC": "many"}))
	assert.Error(t, err)

	_, err = LoadFrom(filepath.Join(t.TempDir(), "missing.toml"), env(nil))
	assert.Error(t, err)
}
