package market

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"cryptoPortfolioBot/internal/finance"
)

// Quotes returns live quotes keyed by coin id. Coins missing from the
// markets listing are looked up through /simple/price, then one by one
// through the /coins/{id} details. Coins unknown to all three are absent
// from the result.
func (c *Client) Quotes(ctx context.Context, ids []string, currency string) (map[string]finance.MarketQuote, error) {
	out := make(map[string]finance.MarketQuote, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur := strings.ToLower(currency)

	rows, marketsErr := c.markets(ctx, ids, cur)
	for _, r := range rows {
		out[r.ID] = quoteFromRow(r)
	}

	missing := missingIDs(ids, out)
	if len(missing) == 0 {
		return out, nil
	}

	simple, err := c.simplePrices(ctx, missing, cur)
	if err != nil {
		if marketsErr != nil {
			return nil, fmt.Errorf("quotes: markets: %v; simple price: %w", marketsErr, err)
		}
		c.logger.Warn().Err(err).Strs("ids", missing).Msg("Simple price fallback failed")
	}
	for id, q := range simple {
		out[id] = q
	}

	for _, id := range missingIDs(missing, out) {
		price, err := c.CoinPrice(ctx, id, cur)
		if err != nil {
			c.logger.Debug().Err(err).Str("coin", id).Msg("No quote for coin")
			continue
		}
		out[id] = finance.MarketQuote{AssetID: id, CurrentPrice: &price}
	}
	return out, nil
}

func missingIDs(ids []string, have map[string]finance.MarketQuote) []string {
	var missing []string
	for _, id := range ids {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func (c *Client) markets(ctx context.Context, ids []string, currency string) ([]marketRow, error) {
	params := url.Values{}
	params.Set("vs_currency", currency)
	params.Set("ids", strings.Join(ids, ","))
	params.Set("order", "market_cap_desc")
	params.Set("per_page", fmt.Sprint(min(len(ids), 250)))
	params.Set("page", "1")
	params.Set("sparkline", "true")
	params.Set("price_change_percentage", "24h,7d")

	var rows []marketRow
	if err := c.get(ctx, "/coins/markets", params, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func quoteFromRow(r marketRow) finance.MarketQuote {
	q := finance.MarketQuote{
		AssetID:          r.ID,
		CurrentPrice:     finitePtr(r.CurrentPrice),
		Change24hPercent: finitePtr(r.PriceChangePercentage24hInCurrency),
		Change7dPercent:  finitePtr(r.PriceChangePercentage7dInCurrency),
	}
	if q.Change24hPercent == nil {
		q.Change24hPercent = finitePtr(r.PriceChangePercentage24h)
	}
	for _, p := range r.SparklineIn7d.Price {
		if v, ok := finance.ToFinite(p); ok {
			q.RecentSeries = append(q.RecentSeries, v)
		}
	}
	return q
}

func (c *Client) simplePrices(ctx context.Context, ids []string, currency string) (map[string]finance.MarketQuote, error) {
	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("vs_currencies", currency)
	params.Set("include_24hr_change", "true")

	var doc map[string]any
	if err := c.get(ctx, "/simple/price", params, &doc); err != nil {
		return nil, err
	}
	out := make(map[string]finance.MarketQuote, len(ids))
	for _, id := range ids {
		if _, ok := doc[id]; !ok {
			continue
		}
		q := finance.MarketQuote{AssetID: id}
		if v, ok := finance.FirstOf(any(doc), finance.PriceExtractors(id, currency)...); ok {
			q.CurrentPrice = &v
		}
		if v, ok := finance.FirstOf(any(doc), finance.Change24hExtractors(id, currency)...); ok {
			q.Change24hPercent = &v
		}
		out[id] = q
	}
	return out, nil
}

// CoinPrice reads the current price from the /coins/{id} details payload,
// trying each known location in turn.
func (c *Client) CoinPrice(ctx context.Context, id, currency string) (float64, error) {
	params := url.Values{}
	params.Set("localization", "false")
	params.Set("tickers", "false")
	params.Set("market_data", "true")
	params.Set("community_data", "false")
	params.Set("developer_data", "false")

	var doc any
	if err := c.get(ctx, "/coins/"+url.PathEscape(id), params, &doc); err != nil {
		return 0, err
	}
	v, ok := finance.FirstOf(doc, finance.PriceExtractors(id, currency)...)
	if !ok {
		return 0, fmt.Errorf("%s: %w", id, ErrNoPrice)
	}
	return v, nil
}

func finitePtr(p *float64) *float64 {
	v, ok := finance.ToFinite(p)
	if !ok {
		return nil
	}
	return &v
}
