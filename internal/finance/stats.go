package finance

// Stats describes an absolute profit curve.
type Stats struct {
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	MaxDrawdown float64 `json:"max_drawdown"` // largest peak-to-trough fall, in currency units
	NumPoints   int     `json:"num_points"`
}

// SeriesStats computes high, low and max drawdown over an absolute series.
func SeriesStats(points []ProfitPoint) Stats {
	if len(points) == 0 {
		return Stats{}
	}
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.UnrealizedProfit
	}
	st := Stats{High: values[0], Low: values[0], NumPoints: len(values)}
	for _, v := range values {
		if v > st.High {
			st.High = v
		}
		if v < st.Low {
			st.Low = v
		}
	}
	st.MaxDrawdown = calculateMaxDrawdown(values)
	return st
}

// calculateMaxDrawdown works on profit, which may be negative, so the
// drawdown is an absolute difference rather than a percentage of the peak.
func calculateMaxDrawdown(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	maxDrawdown := 0.0
	peak := values[0]
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if dd := peak - v; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}
