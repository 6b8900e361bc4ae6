package finance

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidWindow is returned when the requested window is not a positive day count.
var ErrInvalidWindow = errors.New("window must be a positive number of days")

type reconstructConfig struct {
	absolute bool
}

// ReconstructOption tunes ReconstructProfitSeries.
type ReconstructOption func(*reconstructConfig)

// AbsoluteProfit skips the re-baseline step and returns unrealized profit
// per bucket as is.
func AbsoluteProfit() ReconstructOption {
	return func(c *reconstructConfig) { c.absolute = true }
}

// ReconstructProfitSeries builds one day-bucketed unrealized profit series
// for the holdings over [now-windowDays, now] (now in ms).
//
// Each holding uses its own history, or its NormalizedSeries spread evenly
// over the window when the history is empty. A holding with fewer than two
// usable samples and no current price contributes nothing.
// Within a holding the latest sample of a bucket wins; across holdings
// contributions are summed. The current bucket is always priced from the
// live CurrentPrice. By default the result is re-baselined so the last
// point is zero, see Rebaseline.
func ReconstructProfitSeries(holdings []EnrichedHolding, historyByAsset map[string][]TimestampedSample, windowDays int, now int64, opts ...ReconstructOption) ([]ProfitPoint, error) {
	if windowDays <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindow, windowDays)
	}
	var cfg reconstructConfig
	for _, o := range opts {
		o(&cfg)
	}

	windowStart := now - int64(windowDays)*DayMs
	nowBucket := BucketDay(now)
	inWindow := func(b int64) bool { return b >= windowStart && b <= nowBucket }

	acc := make(map[int64]float64)
	for _, h := range holdings {
		if !isFinite(h.Quantity) || h.Quantity <= 0 {
			continue
		}
		samples := usableSamples(historyByAsset[h.AssetID])
		if len(samples) < 2 && h.CurrentPrice <= 0 {
			continue
		}
		if len(samples) == 0 {
			samples = spreadBackward(h.NormalizedSeries, windowDays, now)
		}

		prices := make(map[int64]float64)
		for _, s := range samples {
			if b := BucketDay(s.Timestamp); inWindow(b) {
				prices[b] = s.Price
			}
		}
		if h.CurrentPrice > 0 && isFinite(h.CurrentPrice) {
			prices[nowBucket] = h.CurrentPrice
		}

		for b, p := range prices {
			acc[b] += h.Quantity * (p - h.AverageAcquisitionPrice)
		}
	}

	if len(acc) == 0 {
		acc = aggregateFallback(holdings, historyByAsset, windowDays, now, inWindow)
	}

	points := make([]ProfitPoint, 0, len(acc))
	for b, v := range acc {
		points = append(points, ProfitPoint{Timestamp: b, UnrealizedProfit: v})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp < points[j].Timestamp })

	if cfg.absolute {
		return points, nil
	}
	return Rebaseline(points), nil
}

// Rebaseline rewrites an ascending absolute profit series as the change
// still to come until the last point: out[i] = last - v[i]. The last point
// becomes exactly zero.
func Rebaseline(points []ProfitPoint) []ProfitPoint {
	out := make([]ProfitPoint, len(points))
	if len(points) == 0 {
		return out
	}
	last := points[len(points)-1].UnrealizedProfit
	for i, p := range points {
		out[i] = ProfitPoint{Timestamp: p.Timestamp, UnrealizedProfit: last - p.UnrealizedProfit}
	}
	out[len(out)-1].UnrealizedProfit = 0
	return out
}

// aggregateFallback combines every eligible holding's NormalizedSeries,
// resampled to a common length, into one portfolio value curve and
// subtracts the total invested amount.
func aggregateFallback(holdings []EnrichedHolding, historyByAsset map[string][]TimestampedSample, windowDays int, now int64, inWindow func(int64) bool) map[int64]float64 {
	type part struct {
		qty    float64
		series []float64
	}
	var parts []part
	n := 0
	invested := 0.0
	for _, h := range holdings {
		if !isFinite(h.Quantity) || h.Quantity <= 0 || len(h.NormalizedSeries) == 0 {
			continue
		}
		if h.CurrentPrice <= 0 && len(usableSamples(historyByAsset[h.AssetID])) < 2 {
			continue
		}
		parts = append(parts, part{qty: h.Quantity, series: h.NormalizedSeries})
		invested += h.Invested()
		if len(h.NormalizedSeries) > n {
			n = len(h.NormalizedSeries)
		}
	}
	out := make(map[int64]float64)
	if n == 0 {
		return out
	}

	values := make([]float64, n)
	for _, p := range parts {
		for i, v := range ResampleNearest(p.series, n) {
			values[i] += p.qty * v
		}
	}
	for _, s := range spreadBackward(values, windowDays, now) {
		if b := BucketDay(s.Timestamp); inWindow(b) {
			out[b] = s.Price - invested
		}
	}
	return out
}

// usableSamples drops non-finite prices and returns the rest ordered by time.
func usableSamples(in []TimestampedSample) []TimestampedSample {
	out := make([]TimestampedSample, 0, len(in))
	for _, s := range in {
		if isFinite(s.Price) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}
