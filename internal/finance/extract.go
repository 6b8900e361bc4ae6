package finance

import (
	"strings"

	"github.com/PaesslerAG/jsonpath"
)

// Extractor pulls one number out of a decoded JSON document.
type Extractor func(doc any) (float64, bool)

// PathExtractor evaluates a JSONPath expression against the document.
func PathExtractor(path string) Extractor {
	return func(doc any) (float64, bool) {
		v, err := jsonpath.Get(path, doc)
		if err != nil {
			return 0, false
		}
		return ToFinite(v)
	}
}

// FirstOf tries the extractors in order and returns the first finite hit.
func FirstOf(doc any, extractors ...Extractor) (float64, bool) {
	for _, e := range extractors {
		if v, ok := e(doc); ok {
			return v, true
		}
	}
	return 0, false
}

// PriceExtractors lists the places a coin price can hide in CoinGecko
// payloads for the given coin and currency, most specific first.
func PriceExtractors(coinID, currency string) []Extractor {
	cur := strings.ToLower(currency)
	return []Extractor{
		PathExtractor(`$.market_data.current_price.` + cur),
		PathExtractor(`$["` + coinID + `"].` + cur),
		PathExtractor(`$.current_price`),
		PathExtractor(`$.` + cur),
	}
}

// Change24hExtractors mirrors PriceExtractors for the 24h change percentage.
func Change24hExtractors(coinID, currency string) []Extractor {
	cur := strings.ToLower(currency)
	return []Extractor{
		PathExtractor(`$.market_data.price_change_percentage_24h`),
		PathExtractor(`$["` + coinID + `"].` + cur + `_24h_change`),
		PathExtractor(`$.price_change_percentage_24h`),
	}
}
