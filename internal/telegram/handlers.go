package telegram

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"cryptoPortfolioBot/internal/common"
	"cryptoPortfolioBot/internal/events"
	"cryptoPortfolioBot/internal/finance"
	"cryptoPortfolioBot/internal/portfolio"
	"cryptoPortfolioBot/internal/storage"
)

var (
	// /portfolio [days]
	rePortfolio = regexp.MustCompile(`^/portfolio(?:@[\w_]+)?(?:\s+(\d+))?$`)
	// /chart [days]
	reChart = regexp.MustCompile(`^/chart(?:@[\w_]+)?(?:\s+(\d+))?$`)
	// /buy COIN QTY [PRICE]
	reBuy = regexp.MustCompile(`^/buy(?:@[\w_]+)?\s+([a-zA-Z0-9\-]+)\s+([0-9]*\.?[0-9]+)(?:\s+([0-9]*\.?[0-9]+))?$`)
	// /sell COIN QTY [PRICE]
	reSell = regexp.MustCompile(`^/sell(?:@[\w_]+)?\s+([a-zA-Z0-9\-]+)\s+([0-9]*\.?[0-9]+)(?:\s+([0-9]*\.?[0-9]+))?$`)
	// /history [n]
	reHistory = regexp.MustCompile(`^/history(?:@[\w_]+)?(?:\s+(\d+))?$`)
	// /currency [CODE]
	reCurrency = regexp.MustCompile(`^/currency(?:@[\w_]+)?(?:\s+([a-zA-Z]{3,4}))?$`)
	// /brief [days]
	reBrief = regexp.MustCompile(`^/brief(?:@[\w_]+)?(?:\s+(\d+))?$`)
	// /watch COIN, /unwatch COIN
	reWatch   = regexp.MustCompile(`^/watch(?:@[\w_]+)?\s+([a-zA-Z0-9\-]+)$`)
	reUnwatch = regexp.MustCompile(`^/unwatch(?:@[\w_]+)?\s+([a-zA-Z0-9\-]+)$`)
	// /deletetx ID
	reDeleteTx = regexp.MustCompile(`^/deletetx(?:@[\w_]+)?\s+([a-fA-F0-9\-]+)$`)
	reReset    = regexp.MustCompile(`^/reset(?:@[\w_]+)?$`)
	reHelp     = regexp.MustCompile(`^/(help|start)(?:@[\w_]+)?$`)
)

const (
	defaultWindowDays = 7
	maxWindowDays     = 365
)

// Sender is the part of the Telegram API the handlers use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Ledger records trades and per-chat settings.
type Ledger interface {
	Buy(ctx context.Context, userID, assetID string, qty, price decimal.Decimal, currency string) (storage.Transaction, error)
	Sell(ctx context.Context, userID, assetID string, qty, price decimal.Decimal) (storage.Transaction, error)
	Transactions(ctx context.Context, userID string, limit int) ([]storage.Transaction, error)
	SetCurrency(ctx context.Context, userID, currency string) error
	Currency(ctx context.Context, userID string) (string, error)
	Reset(ctx context.Context, userID string) error
	DeleteTransaction(ctx context.Context, userID, id string) (storage.Transaction, error)
	Watch(ctx context.Context, userID, assetID string) error
	Unwatch(ctx context.Context, userID, assetID string) error
}

// Pricer looks up a coin price at a point in time and converts prices
// between currencies.
type Pricer interface {
	PriceAt(ctx context.Context, id, currency string, t time.Time) (float64, error)
	ExchangeRate(ctx context.Context, from, to string) (float64, error)
}

// SnapshotCache drops precomputed snapshots of a user.
type SnapshotCache interface {
	Forget(userID string)
}

// Briefer writes a short commentary on a snapshot.
type Briefer interface {
	Brief(ctx context.Context, snap portfolio.Snapshot) (string, error)
}

type Handlers struct {
	api       Sender
	ledger    Ledger
	snapshots portfolio.Snapshotter
	pricer    Pricer
	briefer   Briefer // nil when no OpenAI key is configured
	cache     SnapshotCache
	bus       *events.Bus
	reference string
	loc       *time.Location
	logger    *common.Logger
	now       func() time.Time
}

// Deps groups the collaborators of Handlers.
type Deps struct {
	Ledger    Ledger
	Snapshots portfolio.Snapshotter
	Pricer    Pricer
	Briefer   Briefer
	Cache     SnapshotCache
	Bus       *events.Bus
	Reference string
	Location  *time.Location
	Logger    *common.Logger
}

func NewHandlers(api Sender, d Deps) *Handlers {
	if d.Logger == nil {
		d.Logger = common.NewSilentLogger()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Bus == nil {
		d.Bus = events.NewBus(d.Logger)
	}
	return &Handlers{
		api:       api,
		ledger:    d.Ledger,
		snapshots: d.Snapshots,
		pricer:    d.Pricer,
		briefer:   d.Briefer,
		cache:     d.Cache,
		bus:       d.Bus,
		reference: strings.ToLower(d.Reference),
		loc:       d.Location,
		logger:    d.Logger,
		now:       time.Now,
	}
}

func (h *Handlers) HandleMessage(m *tgbotapi.Message) {
	txt := strings.TrimSpace(m.Text)
	chatID := m.Chat.ID
	user := strconv.FormatInt(chatID, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	switch {
	case rePortfolio.MatchString(txt):
		g := rePortfolio.FindStringSubmatch(txt)
		h.handlePortfolio(ctx, chatID, user, parseDays(g[1]))

	case reChart.MatchString(txt):
		g := reChart.FindStringSubmatch(txt)
		h.handleChart(ctx, chatID, user, parseDays(g[1]))

	case reBuy.MatchString(txt):
		g := reBuy.FindStringSubmatch(txt)
		h.handleTrade(ctx, chatID, user, storage.Buy, g[1], g[2], g[3])

	case reSell.MatchString(txt):
		g := reSell.FindStringSubmatch(txt)
		h.handleTrade(ctx, chatID, user, storage.Sell, g[1], g[2], g[3])

	case reHistory.MatchString(txt):
		g := reHistory.FindStringSubmatch(txt)
		limit := 10
		if g[1] != "" {
			limit, _ = strconv.Atoi(g[1])
			if limit < 1 {
				limit = 1
			}
			if limit > 50 {
				limit = 50
			}
		}
		h.handleHistory(ctx, chatID, user, limit)

	case reCurrency.MatchString(txt):
		g := reCurrency.FindStringSubmatch(txt)
		h.handleCurrency(ctx, chatID, user, g[1])

	case reBrief.MatchString(txt):
		g := reBrief.FindStringSubmatch(txt)
		h.handleBrief(ctx, chatID, user, parseDays(g[1]))

	case reWatch.MatchString(txt):
		g := reWatch.FindStringSubmatch(txt)
		h.handleWatch(ctx, chatID, user, g[1], true)

	case reUnwatch.MatchString(txt):
		g := reUnwatch.FindStringSubmatch(txt)
		h.handleWatch(ctx, chatID, user, g[1], false)

	case reDeleteTx.MatchString(txt):
		g := reDeleteTx.FindStringSubmatch(txt)
		h.handleDeleteTx(ctx, chatID, user, g[1])

	case reReset.MatchString(txt):
		if err := h.ledger.Reset(ctx, user); err != nil {
			h.reply(chatID, "Reset failed: "+err.Error())
			return
		}
		if h.cache != nil {
			h.cache.Forget(user)
		}
		h.bus.Publish(events.Event{Name: events.PositionsChanged, UserID: user})
		h.reply(chatID, "Portfolio cleared.")

	case reHelp.MatchString(txt):
		h.handleHelp(chatID)

	case strings.HasPrefix(txt, "/buy") || strings.HasPrefix(txt, "/sell"):
		h.reply(chatID, "Usage: /buy COIN QTY [PRICE] or /sell COIN QTY [PRICE], e.g. /buy bitcoin 0.5 42000")
	}
}

func parseDays(s string) int {
	if s == "" {
		return defaultWindowDays
	}
	d, err := strconv.Atoi(s)
	if err != nil || d < 1 {
		return defaultWindowDays
	}
	if d > maxWindowDays {
		return maxWindowDays
	}
	return d
}

func (h *Handlers) handlePortfolio(ctx context.Context, chatID int64, user string, days int) {
	snap, err := h.snapshots.Snapshot(ctx, user, days)
	if err != nil {
		h.reply(chatID, "Portfolio failed: "+err.Error())
		return
	}
	if snap.Empty() {
		msg := "Your portfolio is empty. Use /buy COIN QTY [PRICE] to add a holding."
		if len(snap.Watchlist) > 0 {
			msg += "\n\n" + FormatWatchlist(snap.Watchlist, snap.Currency)
		}
		h.reply(chatID, msg)
		return
	}
	h.reply(chatID, FormatSnapshot(snap))
}

func (h *Handlers) handleChart(ctx context.Context, chatID int64, user string, days int) {
	snap, err := h.snapshots.Snapshot(ctx, user, days)
	if err != nil {
		h.reply(chatID, "Chart failed: "+err.Error())
		return
	}
	cur := snap.Currency
	img, err := finance.RenderProfitChart(snap.Points, finance.ChartOptions{
		Title:    fmt.Sprintf("Unrealized profit vs today (%dd)", days),
		Subtitle: strings.ToUpper(cur),
		Location: h.loc,
		Now:      h.now(),
	})
	if errors.Is(err, finance.ErrNotEnoughPoints) {
		h.reply(chatID, "Not enough price history to draw a chart yet.")
		return
	}
	if err != nil {
		h.reply(chatID, "Chart failed: "+err.Error())
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: fmt.Sprintf("portfolio_%dd.png", days), Bytes: img})
	photo.Caption = fmt.Sprintf("Profit %s • %dD • %s\nHigh %s • Low %s • Max DD %s",
		finance.FormatSignedMoney(snap.Summary.UnrealizedProfit, cur), days, strings.ToUpper(cur),
		finance.FormatSignedMoney(snap.Stats.High, cur), finance.FormatSignedMoney(snap.Stats.Low, cur),
		finance.FormatMoney(snap.Stats.MaxDrawdown, cur))
	h.send(photo)
}

// handleTrade records a trade. Prices are entered, or looked up, in the
// chat's display currency and stored in the reference currency.
func (h *Handlers) handleTrade(ctx context.Context, chatID int64, user string, side storage.Side, coin, qtyText, priceText string) {
	coin = strings.ToLower(coin)
	qty, err := decimal.NewFromString(qtyText)
	if err != nil {
		h.reply(chatID, "Invalid quantity: "+qtyText)
		return
	}
	display := h.displayCurrency(ctx, user)

	var price decimal.Decimal
	if priceText != "" {
		price, err = decimal.NewFromString(priceText)
		if err != nil {
			h.reply(chatID, "Invalid price: "+priceText)
			return
		}
	} else {
		p, err := h.pricer.PriceAt(ctx, coin, display, h.now())
		if err != nil {
			h.logger.Warn().Err(err).Str("coin", coin).Msg("Price lookup failed")
			h.reply(chatID, fmt.Sprintf("Couldn’t look up a price for %s, please pass one: /%s %s %s PRICE", coin, side, coin, qtyText))
			return
		}
		price = decimal.NewFromFloat(p)
	}

	stored, err := portfolio.ToReference(ctx, h.pricer, price, display, h.reference)
	if err != nil {
		h.logger.Warn().Err(err).Str("user", user).Msg("Price conversion failed")
		h.reply(chatID, fmt.Sprintf("Couldn’t convert %s to %s right now, please try again later.",
			strings.ToUpper(display), strings.ToUpper(h.reference)))
		return
	}

	var tx storage.Transaction
	if side == storage.Buy {
		tx, err = h.ledger.Buy(ctx, user, coin, qty, stored, h.reference)
	} else {
		tx, err = h.ledger.Sell(ctx, user, coin, qty, stored)
	}
	switch {
	case errors.Is(err, storage.ErrHoldingNotFound):
		h.reply(chatID, fmt.Sprintf("You don’t hold any %s.", coin))
		return
	case errors.Is(err, storage.ErrInsufficientQuantity):
		h.reply(chatID, fmt.Sprintf("You don’t hold enough %s to sell %s.", coin, qtyText))
		return
	case errors.Is(err, storage.ErrInvalidAmount):
		h.reply(chatID, "Quantity and price must be greater than zero.")
		return
	case err != nil:
		h.reply(chatID, "Trade failed: "+err.Error())
		return
	}

	h.bus.Publish(events.Event{Name: events.PositionsChanged, UserID: user, Payload: tx})
	verb := "Bought"
	if side == storage.Sell {
		verb = "Sold"
	}
	msg := fmt.Sprintf("%s %s %s @ %s", verb, tx.Quantity, coin, finance.FormatMoney(price.InexactFloat64(), display))
	if display != h.reference {
		msg += fmt.Sprintf(" (%s)", finance.FormatMoney(tx.Price.InexactFloat64(), h.reference))
	}
	if side == storage.Sell {
		// realized is stored in the reference currency; price/stored is the display rate
		realized := tx.Realized.Mul(price).Div(stored)
		msg += "\nRealized: " + finance.FormatSignedMoney(realized.InexactFloat64(), display)
	}
	h.reply(chatID, msg)
}

// displayCurrency is the chat's currency setting, or the reference currency.
func (h *Handlers) displayCurrency(ctx context.Context, user string) string {
	cur, err := h.ledger.Currency(ctx, user)
	if err != nil {
		h.logger.Warn().Err(err).Str("user", user).Msg("Failed to read currency setting")
		return h.reference
	}
	if cur == "" {
		return h.reference
	}
	return strings.ToLower(cur)
}

func (h *Handlers) handleWatch(ctx context.Context, chatID int64, user, coin string, add bool) {
	coin = strings.ToLower(coin)
	var err error
	if add {
		err = h.ledger.Watch(ctx, user, coin)
	} else {
		err = h.ledger.Unwatch(ctx, user, coin)
	}
	switch {
	case errors.Is(err, storage.ErrAlreadyWatching):
		h.reply(chatID, fmt.Sprintf("%s is already on your watchlist.", coin))
		return
	case errors.Is(err, storage.ErrNotWatching):
		h.reply(chatID, fmt.Sprintf("%s is not on your watchlist.", coin))
		return
	case err != nil:
		h.reply(chatID, "Watchlist update failed: "+err.Error())
		return
	}
	h.bus.Publish(events.Event{Name: events.WatchlistChanged, UserID: user, Payload: coin})
	if add {
		h.reply(chatID, fmt.Sprintf("Watching %s. It shows up in /portfolio.", coin))
	} else {
		h.reply(chatID, fmt.Sprintf("Stopped watching %s.", coin))
	}
}

func (h *Handlers) handleDeleteTx(ctx context.Context, chatID int64, user, id string) {
	tx, err := h.ledger.DeleteTransaction(ctx, user, id)
	switch {
	case errors.Is(err, storage.ErrTransactionNotFound):
		h.reply(chatID, fmt.Sprintf("No trade with id %s. Ids are listed by /history.", id))
		return
	case errors.Is(err, storage.ErrAmbiguousID):
		h.reply(chatID, fmt.Sprintf("Several trades start with %s, please send more of the id.", id))
		return
	case err != nil:
		h.reply(chatID, "Delete failed: "+err.Error())
		return
	}
	h.bus.Publish(events.Event{Name: events.PositionsChanged, UserID: user, Payload: tx})
	h.reply(chatID, fmt.Sprintf("Deleted %s %s %s from the history. Holdings are unchanged.",
		strings.ToUpper(string(tx.Side)), tx.Quantity, tx.AssetID))
}

func (h *Handlers) handleHistory(ctx context.Context, chatID int64, user string, limit int) {
	txs, err := h.ledger.Transactions(ctx, user, limit)
	if err != nil {
		h.reply(chatID, "History failed: "+err.Error())
		return
	}
	if len(txs) == 0 {
		h.reply(chatID, "No trades recorded yet.")
		return
	}
	var sb strings.Builder
	sb.WriteString("Recent trades\n")
	for _, t := range txs {
		fmt.Fprintf(&sb, "\n%s  %s  %s %s %s @ %s", shortID(t.ID), t.At.In(h.loc).Format("Jan 2 15:04"), strings.ToUpper(string(t.Side)),
			t.Quantity, t.AssetID, finance.FormatMoney(t.Price.InexactFloat64(), h.reference))
		if t.Side == storage.Sell {
			sb.WriteString("  " + finance.FormatSignedMoney(t.Realized.InexactFloat64(), h.reference))
		}
	}
	h.reply(chatID, sb.String())
}

func shortID(id string) string {
	if len(id) > storage.MinIDPrefix {
		return id[:storage.MinIDPrefix]
	}
	return id
}

func (h *Handlers) handleCurrency(ctx context.Context, chatID int64, user, code string) {
	if code == "" {
		cur, err := h.ledger.Currency(ctx, user)
		if err != nil {
			h.reply(chatID, "Currency lookup failed: "+err.Error())
			return
		}
		if cur == "" {
			cur = h.reference
		}
		h.reply(chatID, "Display currency: "+strings.ToUpper(cur))
		return
	}
	code = strings.ToLower(code)
	if err := h.ledger.SetCurrency(ctx, user, code); err != nil {
		h.reply(chatID, "Currency change failed: "+err.Error())
		return
	}
	h.bus.Publish(events.Event{Name: events.CurrencyChanged, UserID: user, Payload: code})
	h.reply(chatID, "Display currency set to "+strings.ToUpper(code))
}

func (h *Handlers) handleBrief(ctx context.Context, chatID int64, user string, days int) {
	if h.briefer == nil {
		h.reply(chatID, "Briefs are disabled: no OpenAI key configured.")
		return
	}
	snap, err := h.snapshots.Snapshot(ctx, user, days)
	if err != nil {
		h.reply(chatID, "Brief failed: "+err.Error())
		return
	}
	out, err := h.briefer.Brief(ctx, snap)
	if err != nil {
		h.reply(chatID, "Brief failed: "+err.Error())
		return
	}
	msg := tgbotapi.NewMessage(chatID, out)
	msg.ParseMode = "Markdown"
	h.send(msg)
}

func (h *Handlers) handleHelp(chatID int64) {
	help := "Commands\n\n" +
		"- /portfolio [days] - Holdings, value and profit (default 7 days)\n" +
		"- /chart [days] - Unrealized profit chart relative to today\n" +
		"- /buy COIN QTY [PRICE] - Record a buy; price defaults to the current market price\n" +
		"- /sell COIN QTY [PRICE] - Record a sell and its realized profit\n" +
		"- /history [n] - Last n trades (default 10, max 50)\n" +
		"- /deletetx ID - Remove a trade from the history by the id shown in /history\n" +
		"- /watch COIN, /unwatch COIN - Follow a coin's price without holding it\n" +
		"- /currency [CODE] - Show or set the display currency, e.g. /currency eur\n" +
		"- /brief [days] - Short AI commentary on the portfolio\n" +
		"- /reset - Delete all holdings and trades\n" +
		"\nCoins use CoinGecko ids (bitcoin, ethereum, solana…). Trade prices are in your display currency and stored in " + strings.ToUpper(h.reference) + "."
	h.reply(chatID, help)
}

// FormatSnapshot renders the text reply of /portfolio.
func FormatSnapshot(snap portfolio.Snapshot) string {
	cur := snap.Currency
	s := snap.Summary
	var sb strings.Builder
	fmt.Fprintf(&sb, "Portfolio • %dD • %s\n\n", snap.WindowDays, strings.ToUpper(cur))
	fmt.Fprintf(&sb, "Value: %s\n", finance.FormatMoney(s.TotalValue, cur))
	fmt.Fprintf(&sb, "Invested: %s\n", finance.FormatMoney(s.TotalInvested, cur))
	fmt.Fprintf(&sb, "Unrealized: %s (%+.2f%%)\n", finance.FormatSignedMoney(s.UnrealizedProfit, cur), s.UnrealizedProfitPct)
	fmt.Fprintf(&sb, "Realized: %s\n", finance.FormatSignedMoney(s.RealizedProfit, cur))
	fmt.Fprintf(&sb, "Lifetime: %s\n", finance.FormatSignedMoney(s.LifetimeProfit, cur))
	fmt.Fprintf(&sb, "24h: %s\n", finance.FormatSignedMoney(s.Change24h, cur))
	if n := len(snap.Points); n > 0 {
		fmt.Fprintf(&sb, "Since %dD ago: %s\n", snap.WindowDays, finance.FormatSignedMoney(snap.Points[0].UnrealizedProfit, cur))
	}

	sb.WriteString("\n")
	for _, h := range snap.Holdings {
		profit := h.Value() - h.Invested()
		marker := ""
		if !h.HasLivePrice {
			marker = " (no live price)"
		}
		fmt.Fprintf(&sb, "%s: %g @ %s = %s, %s%s\n", h.AssetID, h.Quantity,
			finance.FormatMoney(h.CurrentPrice, cur), finance.FormatMoney(h.Value(), cur),
			finance.FormatSignedMoney(profit, cur), marker)
	}
	if s.HoldingsWithoutPrices > 0 {
		fmt.Fprintf(&sb, "\n%d holding(s) have no price data.\n", s.HoldingsWithoutPrices)
	}
	if len(snap.Watchlist) > 0 {
		sb.WriteString("\n" + FormatWatchlist(snap.Watchlist, cur))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatWatchlist renders one line per watched coin.
func FormatWatchlist(quotes []finance.MarketQuote, currency string) string {
	var sb strings.Builder
	sb.WriteString("Watchlist")
	for _, q := range quotes {
		price := "no price"
		if q.CurrentPrice != nil {
			price = finance.FormatMoney(*q.CurrentPrice, currency)
		}
		fmt.Fprintf(&sb, "\n%s: %s", q.AssetID, price)
		if q.Change24hPercent != nil {
			fmt.Fprintf(&sb, " (%+.2f%% 24h)", *q.Change24hPercent)
		}
	}
	return sb.String()
}

func (h *Handlers) reply(chatID int64, text string) {
	h.send(tgbotapi.NewMessage(chatID, text))
}

func (h *Handlers) send(c tgbotapi.Chattable) {
	if _, err := h.api.Send(c); err != nil {
		h.logger.Warn().Err(err).Msg("Telegram send failed")
	}
}
