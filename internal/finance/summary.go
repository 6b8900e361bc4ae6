package finance

// Summary holds portfolio-level totals in the reference currency.
type Summary struct {
	TotalValue            float64 `json:"total_value"`
	TotalInvested         float64 `json:"total_invested"`
	UnrealizedProfit      float64 `json:"unrealized_profit"`
	UnrealizedProfitPct   float64 `json:"unrealized_profit_pct"`
	Change24h             float64 `json:"change_24h"`
	RealizedProfit        float64 `json:"realized_profit"`
	LifetimeProfit        float64 `json:"lifetime_profit"`
	HoldingsWithoutPrices int     `json:"holdings_without_prices"`
}

// Summarize reduces holdings to totals. realized is supplied by the position store.
func Summarize(holdings []EnrichedHolding, realized float64) Summary {
	var s Summary
	for _, h := range holdings {
		if h.Quantity <= 0 {
			continue
		}
		s.TotalValue += h.Value()
		s.TotalInvested += h.Invested()
		s.Change24h += h.Value() * h.Change24h / 100
		if h.CurrentPrice <= 0 {
			s.HoldingsWithoutPrices++
		}
	}
	s.UnrealizedProfit = s.TotalValue - s.TotalInvested
	if s.TotalInvested > 0 {
		s.UnrealizedProfitPct = s.UnrealizedProfit / s.TotalInvested * 100
	}
	if isFinite(realized) {
		s.RealizedProfit = realized
	}
	s.LifetimeProfit = s.RealizedProfit + s.UnrealizedProfit
	return s
}
