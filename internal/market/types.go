package market

// marketRow mirrors one /coins/markets entry (trimmed to needed fields).
type marketRow struct {
	ID                                 string   `json:"id"`
	Symbol                             string   `json:"symbol"`
	CurrentPrice                       *float64 `json:"current_price"`
	PriceChangePercentage24h           *float64 `json:"price_change_percentage_24h"`
	PriceChangePercentage24hInCurrency *float64 `json:"price_change_percentage_24h_in_currency"`
	PriceChangePercentage7dInCurrency  *float64 `json:"price_change_percentage_7d_in_currency"`
	SparklineIn7d                      struct {
		Price []*float64 `json:"price"`
	} `json:"sparkline_in_7d"`
}

// marketChartResp mirrors /coins/{id}/market_chart and /market_chart/range.
type marketChartResp struct {
	Prices [][]*float64 `json:"prices"`
}
