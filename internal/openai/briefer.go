package openai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	oa "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"cryptoPortfolioBot/internal/finance"
	"cryptoPortfolioBot/internal/portfolio"
)

const defaultModel = "gpt-4o-mini"

const systemPrompt = `You are a concise crypto portfolio assistant. You receive a plain text snapshot of one user's holdings and their unrealized profit trend.

Reply in at most 120 words, text only, with these sections:

**Overview:** one or two sentences on total value and profit.
**Movers:** the holdings that drove the change.
**Watch:** concentration or missing price data worth checking.

Do not give buy or sell advice and do not invent numbers that are not in the snapshot.`

type Briefer struct {
	cli oa.Client
}

// NewBriefer creates a briefer. Extra request options (base URL, retries)
// are passed through to the client.
func NewBriefer(apiKey string, opts ...option.RequestOption) *Briefer {
	client := oa.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &Briefer{cli: client}
}

// Brief asks the model for a short commentary on the snapshot.
func (b *Briefer) Brief(ctx context.Context, snap portfolio.Snapshot) (string, error) {
	if snap.Empty() {
		return "Your portfolio is empty. Add a holding with /buy first.", nil
	}
	resp, err := b.cli.Chat.Completions.New(ctx, oa.ChatCompletionNewParams{
		Model: defaultModel,
		Messages: []oa.ChatCompletionMessageParamUnion{
			oa.SystemMessage(systemPrompt),
			oa.UserMessage(DescribeSnapshot(snap)),
		},
		MaxTokens: oa.Int(400),
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// DescribeSnapshot renders the snapshot as the compact text sent to the model.
func DescribeSnapshot(snap portfolio.Snapshot) string {
	cur := snap.Currency
	var sb strings.Builder
	fmt.Fprintf(&sb, "Snapshot at %s, window %d days, currency %s\n",
		snap.GeneratedAt.UTC().Format(time.RFC3339), snap.WindowDays, strings.ToUpper(cur))
	s := snap.Summary
	fmt.Fprintf(&sb, "Total value %s, invested %s, unrealized %s (%.2f%%), realized %s, 24h change %s\n",
		finance.FormatMoney(s.TotalValue, cur), finance.FormatMoney(s.TotalInvested, cur),
		finance.FormatSignedMoney(s.UnrealizedProfit, cur), s.UnrealizedProfitPct,
		finance.FormatSignedMoney(s.RealizedProfit, cur), finance.FormatSignedMoney(s.Change24h, cur))
	if s.HoldingsWithoutPrices > 0 {
		fmt.Fprintf(&sb, "%d holdings have no price\n", s.HoldingsWithoutPrices)
	}

	holdings := append([]finance.EnrichedHolding(nil), snap.Holdings...)
	sort.SliceStable(holdings, func(i, j int) bool { return holdings[i].Value() > holdings[j].Value() })
	sb.WriteString("Holdings:\n")
	for _, h := range holdings {
		share := 0.0
		if s.TotalValue > 0 {
			share = h.Value() / s.TotalValue * 100
		}
		live := ""
		if !h.HasLivePrice {
			live = " (no live price)"
		}
		fmt.Fprintf(&sb, "- %s qty %g avg %s now %s%s, 24h %.2f%%, 7d %.2f%%, %.1f%% of portfolio\n",
			h.AssetID, h.Quantity, finance.FormatMoney(h.AverageAcquisitionPrice, cur),
			finance.FormatMoney(h.CurrentPrice, cur), live, h.Change24h, h.Change7d, share)
	}

	if n := len(snap.Points); n > 0 {
		first := snap.Points[0]
		fmt.Fprintf(&sb, "Profit trend: %d daily points; change over the window %s\n",
			n, finance.FormatSignedMoney(first.UnrealizedProfit, cur))
		fmt.Fprintf(&sb, "Window high %s, low %s, max drawdown %s\n",
			finance.FormatSignedMoney(snap.Stats.High, cur), finance.FormatSignedMoney(snap.Stats.Low, cur),
			finance.FormatMoney(snap.Stats.MaxDrawdown, cur))
	}
	return sb.String()
}
