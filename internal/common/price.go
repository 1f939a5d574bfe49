package common

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// PriceToTicks converts a decimal price into an integer number of ticks.
// The price must be positive and an exact multiple of tickSize.
func PriceToTicks(price, tickSize decimal.Decimal) (uint64, error) {
	if !tickSize.IsPositive() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidTickSize, tickSize)
	}
	if !price.IsPositive() {
		return 0, fmt.Errorf("%w: %s is not positive", ErrInvalidPrice, price)
	}
	ticks := price.Div(tickSize)
	if !ticks.Equal(ticks.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s is not a multiple of tick %s", ErrInvalidPrice, price, tickSize)
	}
	if ticks.GreaterThan(fromUint64(math.MaxUint64)) {
		return 0, fmt.Errorf("%w: %s overflows", ErrInvalidPrice, price)
	}
	return ticks.BigInt().Uint64(), nil
}

// TicksToPrice converts ticks back into a decimal price.
func TicksToPrice(ticks uint64, tickSize decimal.Decimal) decimal.Decimal {
	return fromUint64(ticks).Mul(tickSize)
}

func fromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
