package finance

// DayMs is the width of one alignment bucket in milliseconds.
const DayMs int64 = 24 * 60 * 60 * 1000

// Position is a holding as kept by the position store.
// Amounts are in the reference currency.
type Position struct {
	AssetID                 string  `json:"asset_id"`
	Quantity                float64 `json:"quantity"`
	AverageAcquisitionPrice float64 `json:"average_acquisition_price"`
	AcquisitionCurrency     string  `json:"acquisition_currency"`
}

// MarketQuote is a live quote for one asset. Nil pointers mean the
// provider did not supply the field. RecentSeries carries no timestamps
// and is only used as a fallback.
type MarketQuote struct {
	AssetID          string    `json:"asset_id"`
	CurrentPrice     *float64  `json:"current_price"`
	Change24hPercent *float64  `json:"change_24h_percent"`
	Change7dPercent  *float64  `json:"change_7d_percent"`
	RecentSeries     []float64 `json:"recent_series"`
}

// EnrichedHolding is a Position merged with its market quote.
type EnrichedHolding struct {
	Position
	CurrentPrice     float64   `json:"current_price"`
	HasLivePrice     bool      `json:"has_live_price"`
	NormalizedSeries []float64 `json:"normalized_series"`
	Change24h        float64   `json:"change_24h"`
	Change7d         float64   `json:"change_7d"`
}

// Value is quantity times the resolved current price.
func (h EnrichedHolding) Value() float64 { return h.Quantity * h.CurrentPrice }

// Invested is quantity times the average acquisition price.
func (h EnrichedHolding) Invested() float64 { return h.Quantity * h.AverageAcquisitionPrice }

// TimestampedSample is one raw provider sample.
type TimestampedSample struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
}

// ProfitPoint is one element of the reconstructed series.
type ProfitPoint struct {
	Timestamp        int64   `json:"timestamp"`
	UnrealizedProfit float64 `json:"unrealized_profit"`
}
