package finance

// MergeHoldingsWithMarket joins positions with their quotes.
//
// referenceRate is the number of quote-currency units per reference-currency
// unit; quote prices are divided by it so every price in the result is in
// the reference currency. A non-finite or non-positive rate is treated as 1.
// Missing quotes behave as quotes with every field unset.
func MergeHoldingsWithMarket(positions []Position, quotes map[string]MarketQuote, referenceRate float64) []EnrichedHolding {
	rate := referenceRate
	if !isFinite(rate) || rate <= 0 {
		rate = 1
	}

	out := make([]EnrichedHolding, 0, len(positions))
	for _, p := range positions {
		p.Quantity = finiteOr(&p.Quantity, 0)
		p.AverageAcquisitionPrice = finiteOr(&p.AverageAcquisitionPrice, 0)
		q := quotes[p.AssetID]

		h := EnrichedHolding{
			Position:  p,
			Change24h: finiteOr(q.Change24hPercent, 0),
			Change7d:  finiteOr(q.Change7dPercent, 0),
		}

		switch live, ok := ToFinite(q.CurrentPrice); {
		case ok && live > 0:
			h.CurrentPrice = live / rate
			h.HasLivePrice = true
		case p.AverageAcquisitionPrice > 0:
			h.CurrentPrice = p.AverageAcquisitionPrice
		}

		recent := make([]float64, len(q.RecentSeries))
		for i, v := range q.RecentSeries {
			recent[i] = v / rate
		}
		var fallback *float64
		if h.CurrentPrice > 0 {
			cp := h.CurrentPrice
			fallback = &cp
		}
		h.NormalizedSeries = BuildSeries(recent, fallback)

		out = append(out, h)
	}
	return out
}
