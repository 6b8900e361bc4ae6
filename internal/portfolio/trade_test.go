package portfolio

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestToReference(t *testing.T) {
	market := new(MockMarket)
	market.On("ExchangeRate", mock.Anything, "eur", "usd").Return(1.25, nil).Once()

	got, err := ToReference(context.Background(), market, decimal.NewFromInt(40000), "EUR", "usd")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(50000).Equal(got), got.String())

	same, err := ToReference(context.Background(), market, decimal.NewFromInt(7), "USD", "usd")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(7).Equal(same))

	market.AssertExpectations(t)
}

func TestToReference_RateFailure(t *testing.T) {
	market := new(MockMarket)
	market.On("ExchangeRate", mock.Anything, "gbp", "usd").Return(0.0, errors.New("down"))

	_, err := ToReference(context.Background(), market, decimal.NewFromInt(1), "gbp", "usd")
	assert.ErrorContains(t, err, "convert gbp to usd")
}
