package market

import (
	"context"
	"fmt"
	"strings"
)

type exchangeRatesResp struct {
	Rates map[string]struct {
		Value *float64 `json:"value"`
		Type  string   `json:"type"`
	} `json:"rates"`
}

// ExchangeRate returns how many units of to one unit of from is worth,
// derived from CoinGecko's BTC-denominated /exchange_rates table.
func (c *Client) ExchangeRate(ctx context.Context, from, to string) (float64, error) {
	from, to = strings.ToLower(from), strings.ToLower(to)
	if from == to {
		return 1, nil
	}
	var resp exchangeRatesResp
	if err := c.get(ctx, "/exchange_rates", nil, &resp); err != nil {
		return 0, err
	}
	f, okF := resp.Rates[from]
	t, okT := resp.Rates[to]
	if !okF || !okT || f.Value == nil || t.Value == nil || *f.Value <= 0 || *t.Value <= 0 {
		return 0, fmt.Errorf("%s/%s: %w", from, to, ErrNoPrice)
	}
	return *t.Value / *f.Value, nil
}
