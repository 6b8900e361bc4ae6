package finance

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var doc any
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	return doc
}

func TestFirstOfPriceExtractors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want float64
		ok   bool
	}{
		{"coin details", `{"market_data":{"current_price":{"usd":64000.5,"eur":59000}}}`, 64000.5, true},
		{"simple price", `{"bitcoin":{"usd":63999,"usd_24h_change":1.2}}`, 63999, true},
		{"markets row", `{"id":"bitcoin","current_price":63000}`, 63000, true},
		{"null in details falls through", `{"market_data":{"current_price":{"usd":null}},"current_price":"62000"}`, 62000, true},
		{"nothing usable", `{"market_data":{}}`, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := FirstOf(decode(t, tc.raw), PriceExtractors("bitcoin", "USD")...)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestChange24hExtractors(t *testing.T) {
	doc := decode(t, `{"usd-coin":{"usd":1,"usd_24h_change":-0.02}}`)
	got, ok := FirstOf(doc, Change24hExtractors("usd-coin", "usd")...)
	assert.True(t, ok)
	assert.Equal(t, -0.02, got)
}

func TestFirstOfEmpty(t *testing.T) {
	_, ok := FirstOf(map[string]any{})
	assert.False(t, ok)
}
