// Command pnlctl manages a portfolio from the command line: it records
// trades in the bot's database and prints or draws the profit series.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/google/subcommands"

	"cryptoPortfolioBot/internal/common"
	"cryptoPortfolioBot/internal/config"
	"cryptoPortfolioBot/internal/market"
	"cryptoPortfolioBot/internal/portfolio"
	"cryptoPortfolioBot/internal/storage"
)

var (
	dbPath   = flag.String("db", "", "SQLite database path (defaults to DB_PATH)")
	userID   = flag.String("user", "cli", "portfolio owner id; Telegram chats use their chat id")
	logLevel = flag.String("log-level", "warn", "log level")
)

// env is the shared state of all subcommands, created lazily.
type env struct {
	cfg    config.Config
	logger *common.Logger
	store  *storage.Store
	gecko  *market.Client
	svc    *portfolio.Service
	close  func()
}

func setup() (*env, error) {
	cfg, err := config.LoadFrom(os.Getenv("CONFIG_FILE"), os.Getenv)
	if err != nil {
		return nil, err
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	logger := common.NewLogger(*logLevel)

	db, err := storage.OpenSQLite("file:" + cfg.DBPath + "?_fk=1")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBPath, err)
	}
	if err := storage.InitSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	store := storage.NewStore(db)
	gecko := market.NewClient(
		market.WithBaseURL(cfg.CoinGecko.BaseURL),
		market.WithAPIKey(cfg.CoinGecko.APIKey),
		market.WithRateLimit(cfg.CoinGecko.RatePerSecond),
		market.WithLogger(logger.WithComponent("coingecko")),
	)
	return &env{
		cfg:    cfg,
		logger: logger,
		store:  store,
		gecko:  gecko,
		svc:    portfolio.NewService(store, gecko, cfg.ReferenceCurrency, logger),
		close:  func() { db.Close() },
	}, nil
}

// run wraps a subcommand body with env setup and error reporting.
func run(fn func(ctx context.Context, e *env) error) subcommands.ExitStatus {
	e, err := setup()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer e.close()
	if err := fn(context.Background(), e); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&tradeCmd{side: storage.Buy}, "ledger")
	commander.Register(&tradeCmd{side: storage.Sell}, "ledger")
	commander.Register(&holdingsCmd{}, "ledger")
	commander.Register(&historyCmd{}, "ledger")
	commander.Register(&resetCmd{}, "ledger")
	commander.Register(&deleteTxCmd{}, "ledger")
	commander.Register(&watchCmd{add: true}, "ledger")
	commander.Register(&watchCmd{}, "ledger")
	commander.Register(&seriesCmd{}, "reports")
	commander.Register(&chartCmd{}, "reports")
	commander.Register(&priceCmd{}, "market")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
