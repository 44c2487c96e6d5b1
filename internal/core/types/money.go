// Package types provides value types shared by the domain packages.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// MoneyScale is the number of fractional digits kept in reported totals.
const MoneyScale int32 = 2

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// LineValue is unit cost times a whole-unit quantity.
func LineValue(unitCost Money, quantity int64) Money {
	return unitCost.Mul(decimal.NewFromInt(quantity))
}

// RoundTotal rounds a reported total to MoneyScale digits.
func RoundTotal(m Money) Money {
	return m.Round(MoneyScale)
}
