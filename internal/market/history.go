package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"cryptoPortfolioBot/internal/finance"
)

// ErrNoPrice is returned when CoinGecko has no usable price for a request.
var ErrNoPrice = errors.New("no price available")

// History returns price samples for the last days with non-finite and
// negative prices dropped. Every other sample is kept as reported, sharp
// moves included. An empty slice is a valid answer.
func (c *Client) History(ctx context.Context, id string, days int, currency string) ([]finance.TimestampedSample, error) {
	params := url.Values{}
	params.Set("vs_currency", strings.ToLower(currency))
	params.Set("days", fmt.Sprint(days))

	var resp marketChartResp
	if err := c.get(ctx, "/coins/"+url.PathEscape(id)+"/market_chart", params, &resp); err != nil {
		return nil, err
	}
	samples := finance.CleanSamples(toSamples(resp.Prices))
	c.logger.Debug().Str("coin", id).Int("days", days).Int("points", len(samples)).Msg("Fetched market chart")
	return samples, nil
}

// PriceAt returns the sample closest to t within a ±2h window.
func (c *Client) PriceAt(ctx context.Context, id, currency string, t time.Time) (float64, error) {
	ts := t.Unix()
	params := url.Values{}
	params.Set("vs_currency", strings.ToLower(currency))
	params.Set("from", fmt.Sprint(ts-2*3600))
	params.Set("to", fmt.Sprint(ts+2*3600))

	var resp marketChartResp
	if err := c.get(ctx, "/coins/"+url.PathEscape(id)+"/market_chart/range", params, &resp); err != nil {
		return 0, err
	}

	target := t.UnixMilli()
	best, bestDist := 0.0, int64(math.MaxInt64)
	found := false
	for _, s := range finance.CleanSamples(toSamples(resp.Prices)) {
		d := s.Timestamp - target
		if d < 0 {
			d = -d
		}
		if d < bestDist {
			best, bestDist, found = s.Price, d, true
		}
	}
	if !found {
		return 0, fmt.Errorf("%s at %s: %w", id, t.Format(time.RFC3339), ErrNoPrice)
	}
	return best, nil
}

func toSamples(raw [][]*float64) []finance.TimestampedSample {
	out := make([]finance.TimestampedSample, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			continue
		}
		ts, ok := finance.ToFinite(pair[0])
		if !ok {
			continue
		}
		price, ok := finance.ToFinite(pair[1])
		if !ok {
			continue
		}
		out = append(out, finance.TimestampedSample{Timestamp: int64(ts), Price: price})
	}
	return out
}
