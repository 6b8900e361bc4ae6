package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"cryptoPortfolioBot/internal/finance"
	"cryptoPortfolioBot/internal/portfolio"
	"cryptoPortfolioBot/internal/storage"
)

// --- tradeCmd ---

type tradeCmd struct {
	side     storage.Side
	coin     string
	qty      string
	price    string
	currency string
}

func (c *tradeCmd) Name() string { return string(c.side) }
func (c *tradeCmd) Synopsis() string {
	return fmt.Sprintf("records a %s of a coin", c.side)
}
func (c *tradeCmd) Usage() string {
	return fmt.Sprintf(`pnlctl %s -coin <id> -qty <quantity> [-price <price>] [-currency <code>]

Records a %s. Without -price the current CoinGecko price is used. The price
is read in -currency, or the user's display currency, and stored in the
reference currency.
`, c.side, c.side)
}
func (c *tradeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.coin, "coin", "", "CoinGecko coin id, e.g. bitcoin")
	f.StringVar(&c.qty, "qty", "", "quantity")
	f.StringVar(&c.price, "price", "", "unit price")
	f.StringVar(&c.currency, "currency", "", "currency of -price (defaults to the user's display currency)")
}

func (c *tradeCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.coin == "" || c.qty == "" {
		fmt.Fprintln(os.Stderr, "Error: -coin and -qty flags are required.")
		return subcommands.ExitUsageError
	}
	qty, err := decimal.NewFromString(c.qty)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid -qty %q\n", c.qty)
		return subcommands.ExitUsageError
	}
	return run(func(ctx context.Context, e *env) error {
		ref := e.cfg.ReferenceCurrency
		cur := strings.ToLower(c.currency)
		if cur == "" {
			if cur, err = e.store.Currency(ctx, *userID); err != nil {
				return err
			}
		}
		if cur == "" {
			cur = strings.ToLower(ref)
		}

		var price decimal.Decimal
		if c.price != "" {
			if price, err = decimal.NewFromString(c.price); err != nil {
				return fmt.Errorf("invalid -price %q", c.price)
			}
		} else {
			p, err := e.gecko.PriceAt(ctx, strings.ToLower(c.coin), cur, time.Now())
			if err != nil {
				return fmt.Errorf("price lookup: %w", err)
			}
			price = decimal.NewFromFloat(p)
		}
		stored, err := portfolio.ToReference(ctx, e.gecko, price, cur, ref)
		if err != nil {
			return err
		}

		var tx storage.Transaction
		if c.side == storage.Buy {
			tx, err = e.store.Buy(ctx, *userID, c.coin, qty, stored, ref)
		} else {
			tx, err = e.store.Sell(ctx, *userID, c.coin, qty, stored)
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s %s %s @ %s (id %s)\n", strings.ToUpper(string(tx.Side)), tx.Quantity, tx.AssetID,
			finance.FormatMoney(tx.Price.InexactFloat64(), ref), tx.ID)
		if tx.Side == storage.Sell {
			fmt.Println("realized", finance.FormatSignedMoney(tx.Realized.InexactFloat64(), ref))
		}
		return nil
	})
}

// --- holdingsCmd ---

type holdingsCmd struct{}

func (*holdingsCmd) Name() string     { return "holdings" }
func (*holdingsCmd) Synopsis() string { return "lists recorded holdings and realized profit" }
func (*holdingsCmd) Usage() string {
	return "pnlctl holdings\n\nLists holdings with quantity and average acquisition price.\n"
}
func (*holdingsCmd) SetFlags(*flag.FlagSet) {}

func (*holdingsCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(func(ctx context.Context, e *env) error {
		positions, err := e.store.Positions(ctx, *userID)
		if err != nil {
			return err
		}
		realized, err := e.store.RealizedTotal(ctx, *userID)
		if err != nil {
			return err
		}
		ref := e.cfg.ReferenceCurrency
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ASSET\tQUANTITY\tAVG PRICE\tINVESTED")
		for _, p := range positions {
			fmt.Fprintf(w, "%s\t%g\t%s\t%s\n", p.AssetID, p.Quantity,
				finance.FormatMoney(p.AverageAcquisitionPrice, ref),
				finance.FormatMoney(p.Quantity*p.AverageAcquisitionPrice, ref))
		}
		w.Flush()
		fmt.Println("realized", finance.FormatSignedMoney(realized, ref))
		return nil
	})
}

// --- historyCmd ---

type historyCmd struct {
	limit int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "lists recorded trades, newest first" }
func (*historyCmd) Usage() string    { return "pnlctl history [-n <count>]\n" }
func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 20, "number of trades to show, 0 for all")
}

func (c *historyCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(func(ctx context.Context, e *env) error {
		txs, err := e.store.Transactions(ctx, *userID, c.limit)
		if err != nil {
			return err
		}
		ref := e.cfg.ReferenceCurrency
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tSIDE\tASSET\tQUANTITY\tPRICE\tREALIZED\tID")
		for _, t := range txs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", t.At.Format(time.RFC3339), t.Side, t.AssetID, t.Quantity,
				finance.FormatMoney(t.Price.InexactFloat64(), ref),
				finance.FormatSignedMoney(t.Realized.InexactFloat64(), ref), t.ID)
		}
		return w.Flush()
	})
}

// --- resetCmd ---

type resetCmd struct {
	yes bool
}

func (*resetCmd) Name() string     { return "reset" }
func (*resetCmd) Synopsis() string { return "deletes all holdings and trades of the user" }
func (*resetCmd) Usage() string    { return "pnlctl reset -yes\n" }
func (c *resetCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.yes, "yes", false, "confirm the reset")
}

func (c *resetCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.yes {
		fmt.Fprintln(os.Stderr, "Error: pass -yes to confirm.")
		return subcommands.ExitUsageError
	}
	return run(func(ctx context.Context, e *env) error {
		if err := e.store.Reset(ctx, *userID); err != nil {
			return err
		}
		fmt.Println("portfolio cleared")
		return nil
	})
}

// --- deleteTxCmd ---

type deleteTxCmd struct {
	id string
}

func (*deleteTxCmd) Name() string     { return "deltx" }
func (*deleteTxCmd) Synopsis() string { return "removes one trade from the history" }
func (*deleteTxCmd) Usage() string {
	return `pnlctl deltx -id <id>

Removes a trade by id, or a unique prefix of at least 8 characters.
Holdings are not changed.
`
}
func (c *deleteTxCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "transaction id as printed by history")
}

func (c *deleteTxCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id == "" {
		fmt.Fprintln(os.Stderr, "Error: -id is required.")
		return subcommands.ExitUsageError
	}
	return run(func(ctx context.Context, e *env) error {
		tx, err := e.store.DeleteTransaction(ctx, *userID, c.id)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %s %s %s (id %s)\n", tx.Side, tx.Quantity, tx.AssetID, tx.ID)
		return nil
	})
}

// --- watchCmd ---

type watchCmd struct {
	add  bool
	coin string
}

func (c *watchCmd) Name() string {
	if c.add {
		return "watch"
	}
	return "unwatch"
}
func (c *watchCmd) Synopsis() string {
	if c.add {
		return "adds a coin to the watchlist"
	}
	return "removes a coin from the watchlist"
}
func (c *watchCmd) Usage() string { return fmt.Sprintf("pnlctl %s -coin <id>\n", c.Name()) }
func (c *watchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.coin, "coin", "", "CoinGecko coin id")
}

func (c *watchCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.coin == "" {
		fmt.Fprintln(os.Stderr, "Error: -coin is required.")
		return subcommands.ExitUsageError
	}
	return run(func(ctx context.Context, e *env) error {
		if c.add {
			return e.store.Watch(ctx, *userID, c.coin)
		}
		return e.store.Unwatch(ctx, *userID, c.coin)
	})
}

var errNoHoldings = errors.New("no holdings recorded")
