package portfolio

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RateSource converts amounts between currencies.
type RateSource interface {
	ExchangeRate(ctx context.Context, from, to string) (float64, error)
}

// ToReference converts a unit price entered in currency into the reference
// currency positions are recorded in.
func ToReference(ctx context.Context, rates RateSource, price decimal.Decimal, currency, reference string) (decimal.Decimal, error) {
	currency = strings.ToLower(currency)
	reference = strings.ToLower(reference)
	if currency == "" || currency == reference {
		return price, nil
	}
	rate, err := rates.ExchangeRate(ctx, currency, reference)
	if err != nil {
		return decimal.Zero, fmt.Errorf("convert %s to %s: %w", currency, reference, err)
	}
	if rate <= 0 {
		return decimal.Zero, fmt.Errorf("convert %s to %s: invalid rate %v", currency, reference, rate)
	}
	return price.Mul(decimal.NewFromFloat(rate)), nil
}
