package common

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceToTicks(t *testing.T) {
	cent := decimal.RequireFromString("0.01")

	ticks, err := PriceToTicks(decimal.RequireFromString("100.25"), cent)
	require.NoError(t, err)
	assert.Equal(t, uint64(10025), ticks)

	ticks, err = PriceToTicks(decimal.NewFromInt(7), decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), ticks)

	_, err = PriceToTicks(decimal.RequireFromString("100.255"), cent)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = PriceToTicks(decimal.Zero, cent)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = PriceToTicks(decimal.NewFromInt(-5), cent)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = PriceToTicks(decimal.NewFromInt(1), decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidTickSize)
}

func TestTicksToPrice(t *testing.T) {
	price := TicksToPrice(10025, decimal.RequireFromString("0.01"))
	assert.True(t, price.Equal(decimal.RequireFromString("100.25")), price.String())
}

func TestOrderValidate(t *testing.T) {
	assert.NoError(t, NewLimitOrder(Buy, 1, 1, "o").Validate())
	assert.NoError(t, NewMarketOrder(Sell, 1, "o").Validate())
	assert.ErrorIs(t, NewMarketOrder(Sell, 0, "o").Validate(), ErrInvalidQuantity)
	assert.ErrorIs(t, NewLimitOrder(Sell, 0, 1, "o").Validate(), ErrInvalidPrice)
	assert.ErrorIs(t, Order{Side: Side(3), Quantity: 1}.Validate(), ErrInvalidSide)
}

func TestSide(t *testing.T) {
	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, Buy, Sell.Opposite())
	assert.Equal(t, "BUY", Buy.String())
	assert.Equal(t, "MARKET", MarketOrder.String())
}
