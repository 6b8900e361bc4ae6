package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"cryptoPortfolioBot/internal/finance"
)

// --- seriesCmd ---

type seriesCmd struct {
	days     int
	absolute bool
}

func (*seriesCmd) Name() string     { return "series" }
func (*seriesCmd) Synopsis() string { return "prints the daily unrealized profit series" }
func (*seriesCmd) Usage() string {
	return `pnlctl series [-days <n>] [-absolute]

Prints one line per day. By default values are relative to today (the last
line is 0); -absolute prints plain unrealized profit.
`
}
func (c *seriesCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.days, "days", 7, "window in days")
	f.BoolVar(&c.absolute, "absolute", false, "print absolute unrealized profit")
}

func (c *seriesCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(func(ctx context.Context, e *env) error {
		snap, err := e.svc.Snapshot(ctx, *userID, c.days)
		if err != nil {
			return err
		}
		if snap.Empty() {
			return errNoHoldings
		}
		points := snap.Points
		if c.absolute {
			points = snap.Absolute
		}
		loc := finance.LoadDisplayLocation(e.cfg.DisplayTimezone)
		now := time.Now()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
		for _, p := range points {
			fmt.Fprintf(w, "%s\t%s\t\n", finance.FormatDayLabel(p.Timestamp, now, loc),
				finance.FormatSignedMoney(p.UnrealizedProfit, snap.Currency))
		}
		w.Flush()

		s := snap.Summary
		fmt.Printf("\nvalue %s  invested %s  unrealized %s (%.2f%%)  realized %s\n",
			finance.FormatMoney(s.TotalValue, snap.Currency), finance.FormatMoney(s.TotalInvested, snap.Currency),
			finance.FormatSignedMoney(s.UnrealizedProfit, snap.Currency), s.UnrealizedProfitPct,
			finance.FormatSignedMoney(s.RealizedProfit, snap.Currency))
		fmt.Printf("high %s  low %s  max drawdown %s\n",
			finance.FormatSignedMoney(snap.Stats.High, snap.Currency), finance.FormatSignedMoney(snap.Stats.Low, snap.Currency),
			finance.FormatMoney(snap.Stats.MaxDrawdown, snap.Currency))
		return nil
	})
}

// --- chartCmd ---

type chartCmd struct {
	days int
	out  string
}

func (*chartCmd) Name() string     { return "chart" }
func (*chartCmd) Synopsis() string { return "writes the profit chart as PNG" }
func (*chartCmd) Usage() string    { return "pnlctl chart -out <file.png> [-days <n>]\n" }
func (c *chartCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.days, "days", 7, "window in days")
	f.StringVar(&c.out, "out", "portfolio.png", "output file")
}

func (c *chartCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(func(ctx context.Context, e *env) error {
		snap, err := e.svc.Snapshot(ctx, *userID, c.days)
		if err != nil {
			return err
		}
		img, err := finance.RenderProfitChart(snap.Points, finance.ChartOptions{
			Title:    fmt.Sprintf("Unrealized profit vs today (%dd)", c.days),
			Subtitle: strings.ToUpper(snap.Currency),
			Location: finance.LoadDisplayLocation(e.cfg.DisplayTimezone),
		})
		if err != nil {
			return err
		}
		if err := os.WriteFile(c.out, img, 0o644); err != nil {
			return err
		}
		fmt.Println("wrote", c.out)
		return nil
	})
}

// --- priceCmd ---

type priceCmd struct {
	coin string
	at   string
}

func (*priceCmd) Name() string     { return "price" }
func (*priceCmd) Synopsis() string { return "looks up a coin price at a point in time" }
func (*priceCmd) Usage() string {
	return "pnlctl price -coin <id> [-at 2024-05-01T12:00:00Z]\n\nUses the CoinGecko sample closest to the time, within two hours.\n"
}
func (c *priceCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.coin, "coin", "", "CoinGecko coin id")
	f.StringVar(&c.at, "at", "", "RFC 3339 time or YYYY-MM-DD, default now")
}

func (c *priceCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.coin == "" {
		fmt.Fprintln(os.Stderr, "Error: -coin is required.")
		return subcommands.ExitUsageError
	}
	at := time.Now()
	if c.at != "" {
		t, err := parseTime(c.at)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return subcommands.ExitUsageError
		}
		at = t
	}
	return run(func(ctx context.Context, e *env) error {
		ref := e.cfg.ReferenceCurrency
		p, err := e.gecko.PriceAt(ctx, strings.ToLower(c.coin), ref, at)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s %s\n", c.coin, at.UTC().Format(time.RFC3339), finance.FormatMoney(p, ref))
		return nil
	})
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, want RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}
