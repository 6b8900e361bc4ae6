package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"cryptoPortfolioBot/internal/common"
	"cryptoPortfolioBot/internal/config"
	"cryptoPortfolioBot/internal/events"
	"cryptoPortfolioBot/internal/finance"
	"cryptoPortfolioBot/internal/market"
	"cryptoPortfolioBot/internal/openai"
	"cryptoPortfolioBot/internal/portfolio"
	"cryptoPortfolioBot/internal/server"
	"cryptoPortfolioBot/internal/storage"
	"cryptoPortfolioBot/internal/telegram"
)

func main() {
	cfg := config.Load()
	logger := common.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Ensure parent directory for the DB exists
	_ = os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755)
	db, err := storage.OpenSQLite("file:" + cfg.DBPath + "?_fk=1")
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()
	if err := storage.InitSchema(db); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ensure schema")
	}
	logger.Info().Str("path", cfg.DBPath).Msg("Database ready")
	store := storage.NewStore(db)

	gecko := market.NewClient(
		market.WithBaseURL(cfg.CoinGecko.BaseURL),
		market.WithAPIKey(cfg.CoinGecko.APIKey),
		market.WithRateLimit(cfg.CoinGecko.RatePerSecond),
		market.WithLogger(logger.WithComponent("coingecko")),
	)

	bus := events.NewBus(logger.WithComponent("events"))
	svc := portfolio.NewService(store, gecko, cfg.ReferenceCurrency, logger.WithComponent("portfolio"))
	refresher := portfolio.NewRefresher(svc, store, bus, 7, logger.WithComponent("refresher"))
	go refresher.Run(ctx, cfg.RefreshInterval.Duration)

	loc := finance.LoadDisplayLocation(cfg.DisplayTimezone)
	deps := telegram.Deps{
		Ledger:    store,
		Snapshots: svc,
		Pricer:    gecko,
		Cache:     refresher,
		Bus:       bus,
		Reference: cfg.ReferenceCurrency,
		Location:  loc,
		Logger:    logger.WithComponent("telegram"),
	}
	if cfg.OpenAIKey != "" {
		deps.Briefer = openai.NewBriefer(cfg.OpenAIKey)
	} else {
		logger.Warn().Msg("OPENAI_API_KEY not set, /brief disabled")
	}

	tg, err := telegram.NewBot(cfg.TelegramToken, cfg.WebhookPublicURL, deps)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialise Telegram bot")
	}

	api := server.NewAPI(svc, refresher.Latest, cfg.RefreshInterval.Duration, loc, logger.WithComponent("api"))
	mux := server.NewHTTPMux(tg.WebhookHandler, api) // registers /telegram/webhook
	if err := server.ListenAndServe(ctx, ":"+cfg.Port, mux, logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("Server error")
		os.Exit(1)
	}
}
