package finance

// Scaled returns the summary with every money amount multiplied by rate,
// used to present reference-currency totals in a display currency.
func (s Summary) Scaled(rate float64) Summary {
	if !isFinite(rate) || rate <= 0 || rate == 1 {
		return s
	}
	s.TotalValue *= rate
	s.TotalInvested *= rate
	s.UnrealizedProfit *= rate
	s.Change24h *= rate
	s.RealizedProfit *= rate
	s.LifetimeProfit *= rate
	return s
}

// Scaled multiplies the high, low and drawdown by rate.
func (st Stats) Scaled(rate float64) Stats {
	if !isFinite(rate) || rate <= 0 || rate == 1 {
		return st
	}
	st.High *= rate
	st.Low *= rate
	st.MaxDrawdown *= rate
	return st
}

// ScalePoints returns a copy of points with profits multiplied by rate.
func ScalePoints(points []ProfitPoint, rate float64) []ProfitPoint {
	out := make([]ProfitPoint, len(points))
	copy(out, points)
	if !isFinite(rate) || rate <= 0 || rate == 1 {
		return out
	}
	for i := range out {
		out[i].UnrealizedProfit *= rate
	}
	return out
}

// ScaleHoldings returns copies of the holdings with prices multiplied by rate.
func ScaleHoldings(holdings []EnrichedHolding, rate float64) []EnrichedHolding {
	out := make([]EnrichedHolding, len(holdings))
	copy(out, holdings)
	if !isFinite(rate) || rate <= 0 || rate == 1 {
		return out
	}
	for i := range out {
		h := &out[i]
		h.CurrentPrice *= rate
		h.AverageAcquisitionPrice *= rate
		series := make([]float64, len(h.NormalizedSeries))
		for j, v := range h.NormalizedSeries {
			series[j] = v * rate
		}
		h.NormalizedSeries = series
	}
	return out
}

// ScaleQuotes returns copies of the quotes with prices multiplied by rate.
// Percent changes are left alone.
func ScaleQuotes(quotes []MarketQuote, rate float64) []MarketQuote {
	out := make([]MarketQuote, len(quotes))
	copy(out, quotes)
	if !isFinite(rate) || rate <= 0 || rate == 1 {
		return out
	}
	for i := range out {
		q := &out[i]
		if q.CurrentPrice != nil {
			v := *q.CurrentPrice * rate
			q.CurrentPrice = &v
		}
		if q.RecentSeries != nil {
			series := make([]float64, len(q.RecentSeries))
			for j, v := range q.RecentSeries {
				series[j] = v * rate
			}
			q.RecentSeries = series
		}
	}
	return out
}
