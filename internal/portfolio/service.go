// Package portfolio assembles portfolio snapshots from the position store
// and the market provider, and keeps them refreshed in the background.
package portfolio

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"cryptoPortfolioBot/internal/common"
	"cryptoPortfolioBot/internal/finance"
)

// maxConcurrentHistory bounds parallel price-history requests per snapshot.
const maxConcurrentHistory = 4

// PositionStore is the subset of the storage layer a snapshot needs.
type PositionStore interface {
	Positions(ctx context.Context, userID string) ([]finance.Position, error)
	RealizedTotal(ctx context.Context, userID string) (float64, error)
	Currency(ctx context.Context, userID string) (string, error)
	Watchlist(ctx context.Context, userID string) ([]string, error)
}

// MarketProvider supplies quotes, price history and FX rates.
type MarketProvider interface {
	Quotes(ctx context.Context, ids []string, currency string) (map[string]finance.MarketQuote, error)
	History(ctx context.Context, id string, days int, currency string) ([]finance.TimestampedSample, error)
	ExchangeRate(ctx context.Context, from, to string) (float64, error)
}

// Snapshot is everything needed to present one user's portfolio. Amounts
// are in Currency. Points is relative to the latest point, Absolute is the
// plain unrealized profit per day. Watchlist has one quote per watched
// coin, without a price when none is known.
type Snapshot struct {
	UserID      string                    `json:"user_id"`
	Holdings    []finance.EnrichedHolding `json:"holdings"`
	Points      []finance.ProfitPoint     `json:"points"`
	Absolute    []finance.ProfitPoint     `json:"absolute_points"`
	Summary     finance.Summary           `json:"summary"`
	Stats       finance.Stats             `json:"stats"`
	WindowDays  int                       `json:"window_days"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Currency    string                    `json:"currency"`
	Watchlist   []finance.MarketQuote     `json:"watchlist"`
}

// Empty reports whether the user holds nothing.
func (s Snapshot) Empty() bool { return len(s.Holdings) == 0 }

type Service struct {
	store     PositionStore
	market    MarketProvider
	reference string
	logger    *common.Logger
	now       func() time.Time
}

// NewService creates a snapshot service. reference is the currency
// positions are recorded in.
func NewService(store PositionStore, market MarketProvider, reference string, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{
		store:     store,
		market:    market,
		reference: strings.ToLower(reference),
		logger:    logger,
		now:       time.Now,
	}
}

// Reference returns the currency positions are recorded in.
func (s *Service) Reference() string { return s.reference }

// Snapshot computes the user's holdings, profit series and totals over the
// last windowDays. A failed quote or history request degrades the affected
// assets instead of failing the snapshot.
func (s *Service) Snapshot(ctx context.Context, userID string, windowDays int) (Snapshot, error) {
	if windowDays <= 0 {
		return Snapshot{}, fmt.Errorf("%w: %d", finance.ErrInvalidWindow, windowDays)
	}
	now := s.now()

	all, err := s.store.Positions(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load positions: %w", err)
	}
	positions := make([]finance.Position, 0, len(all))
	ids := make([]string, 0, len(all))
	for _, p := range all {
		if p.Quantity <= 0 {
			continue
		}
		positions = append(positions, p)
		ids = append(ids, p.AssetID)
	}

	realized, err := s.store.RealizedTotal(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load realized profit: %w", err)
	}

	watched, err := s.store.Watchlist(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user", userID).Msg("Failed to read watchlist")
	}

	quotes := map[string]finance.MarketQuote{}
	if quoteIDs := withWatched(ids, watched); len(quoteIDs) > 0 {
		q, err := s.market.Quotes(ctx, quoteIDs, s.reference)
		if err != nil {
			s.logger.Warn().Err(err).Str("user", userID).Msg("Quotes unavailable, using acquisition prices")
		} else {
			quotes = q
		}
	}

	history := s.fetchHistories(ctx, ids, windowDays)

	holdings := finance.MergeHoldingsWithMarket(positions, quotes, 1)
	for _, h := range holdings {
		if !h.HasLivePrice {
			s.logger.Warn().Str("user", userID).Str("asset", h.AssetID).Msg("No live price for holding")
		}
	}

	absolute, err := finance.ReconstructProfitSeries(holdings, history, windowDays, now.UnixMilli(), finance.AbsoluteProfit())
	if err != nil {
		return Snapshot{}, err
	}

	currency, rate := s.displayCurrency(ctx, userID)
	return Snapshot{
		UserID:      userID,
		Holdings:    finance.ScaleHoldings(holdings, rate),
		Points:      finance.ScalePoints(finance.Rebaseline(absolute), rate),
		Absolute:    finance.ScalePoints(absolute, rate),
		Summary:     finance.Summarize(holdings, realized).Scaled(rate),
		Stats:       finance.SeriesStats(absolute).Scaled(rate),
		WindowDays:  windowDays,
		GeneratedAt: now,
		Currency:    currency,
		Watchlist:   finance.ScaleQuotes(watchQuotes(watched, quotes), rate),
	}, nil
}

// withWatched appends the watched ids that are not already held.
func withWatched(ids, watched []string) []string {
	out := append([]string(nil), ids...)
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, id := range watched {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func watchQuotes(watched []string, quotes map[string]finance.MarketQuote) []finance.MarketQuote {
	out := make([]finance.MarketQuote, 0, len(watched))
	for _, id := range watched {
		q, ok := quotes[id]
		if !ok {
			q = finance.MarketQuote{AssetID: id}
		}
		q.AssetID = id
		out = append(out, q)
	}
	return out
}

// fetchHistories loads price history for every id concurrently. Results are
// collected by index; a failed request leaves that asset without history.
func (s *Service) fetchHistories(ctx context.Context, ids []string, windowDays int) map[string][]finance.TimestampedSample {
	results := make([][]finance.TimestampedSample, len(ids))
	var g errgroup.Group
	g.SetLimit(maxConcurrentHistory)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			samples, err := s.market.History(ctx, id, windowDays, s.reference)
			if err != nil {
				s.logger.Warn().Err(err).Str("asset", id).Msg("Price history unavailable")
				return nil
			}
			results[i] = samples
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string][]finance.TimestampedSample, len(ids))
	for i, id := range ids {
		out[id] = results[i]
	}
	return out
}

// displayCurrency resolves the user's currency and its rate against the
// reference currency, falling back to the reference on any failure.
func (s *Service) displayCurrency(ctx context.Context, userID string) (string, float64) {
	cur, err := s.store.Currency(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user", userID).Msg("Failed to read currency setting")
		return s.reference, 1
	}
	if cur == "" || cur == s.reference {
		return s.reference, 1
	}
	rate, err := s.market.ExchangeRate(ctx, s.reference, cur)
	if err != nil {
		s.logger.Warn().Err(err).Str("currency", cur).Msg("Exchange rate unavailable, showing reference currency")
		return s.reference, 1
	}
	return cur, rate
}
