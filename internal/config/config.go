package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	TelegramToken     string        `toml:"telegram_token"`
	WebhookPublicURL  string        `toml:"webhook_public_url"`
	OpenAIKey         string        `toml:"openai_key"`
	Port              string        `toml:"port"`
	DBPath            string        `toml:"db_path"`
	LogLevel          string        `toml:"log_level"`
	ReferenceCurrency string        `toml:"reference_currency"`
	// DisplayTimezone only affects labels and timestamps shown to users.
	// Day buckets stay UTC, so west of UTC the newest bucket reads as
	// yesterday's date for most of the local day.
	DisplayTimezone   string        `toml:"display_timezone"`
	RefreshInterval   Duration      `toml:"refresh_interval"`
	CoinGecko         CoinGecko     `toml:"coingecko"`
}

// Duration lets TOML files use strings such as "2m".
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

type CoinGecko struct {
	BaseURL       string `toml:"base_url"`
	APIKey        string `toml:"api_key"`
	RatePerSecond int    `toml:"rate_per_second"`
}

func defaults() Config {
	return Config{
		Port:              "9095",
		DBPath:            "/app/data/portfolio.db",
		LogLevel:          "info",
		ReferenceCurrency: "usd",
		DisplayTimezone:   "Australia/Sydney",
		RefreshInterval:   Duration{2 * time.Minute},
		CoinGecko: CoinGecko{
			BaseURL:       "https://api.coingecko.com/api/v3",
			RatePerSecond: 5,
		},
	}
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing env %s", k)
	}
	return v
}

// Load reads CONFIG_FILE (if set) and applies environment overrides.
// The Telegram token and webhook URL are mandatory for the bot binary.
func Load() Config {
	cfg, err := LoadFrom(os.Getenv("CONFIG_FILE"), os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.TelegramToken == "" {
		cfg.TelegramToken = mustEnv("TELEGRAM_BOT_TOKEN")
	}
	if cfg.WebhookPublicURL == "" {
		cfg.WebhookPublicURL = mustEnv("WEBHOOK_PUBLIC_URL")
	}
	return cfg
}

// LoadFrom builds a Config from an optional TOML file and a getenv function.
func LoadFrom(path string, getenv func(string) string) (Config, error) {
	cfg := defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
		if err := toml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("TELEGRAM_BOT_TOKEN", &cfg.TelegramToken)
	str("WEBHOOK_PUBLIC_URL", &cfg.WebhookPublicURL)
	str("OPENAI_API_KEY", &cfg.OpenAIKey)
	str("PORT", &cfg.Port)
	str("DB_PATH", &cfg.DBPath)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("REFERENCE_CURRENCY", &cfg.ReferenceCurrency)
	str("DISPLAY_TIMEZONE", &cfg.DisplayTimezone)
	str("COINGECKO_BASE_URL", &cfg.CoinGecko.BaseURL)
	str("COINGECKO_API_KEY", &cfg.CoinGecko.APIKey)

	if v := getenv("REFRESH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("REFRESH_INTERVAL: %w", err)
		}
		cfg.RefreshInterval.Duration = d
	}
	if v := getenv("RATE_LIMIT_PER_SEC"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("RATE_LIMIT_PER_SEC: %w", err)
		}
		cfg.CoinGecko.RatePerSecond = n
	}

	cfg.ReferenceCurrency = strings.ToLower(cfg.ReferenceCurrency)
	if cfg.RefreshInterval.Duration <= 0 {
		return cfg, fmt.Errorf("refresh interval must be positive, got %s", cfg.RefreshInterval.Duration)
	}
	if cfg.CoinGecko.RatePerSecond <= 0 {
		cfg.CoinGecko.RatePerSecond = 1
	}
	return cfg, nil
}
