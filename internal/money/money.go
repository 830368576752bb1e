// Package money holds the fixed-point arithmetic primitives shared by the
// pricing and collections engines. Monetary values are shopspring decimals
// with at least two fractional digits; float64 is never used for money.
package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidStep is returned when a rounding step is zero or negative.
var ErrInvalidStep = errors.New("money: rounding step must be positive")

// DefaultStep is the customer-facing rounding step in currency units.
var DefaultStep = decimal.NewFromInt(10)

// RoundUpToStep rounds amount strictly upward to the next multiple of step.
// Amounts already on an exact multiple are returned unchanged, so the
// operation is idempotent. Rounding is applied per line item only; callers
// must never round an aggregate of already-rounded lines.
func RoundUpToStep(amount, step decimal.Decimal) (decimal.Decimal, error) {
	if step.Sign() <= 0 {
		return decimal.Zero, ErrInvalidStep
	}
	quotient := amount.Div(step)
	floor := quotient.Floor()
	if quotient.Equal(floor) {
		return amount, nil
	}
	return floor.Add(decimal.NewFromInt(1)).Mul(step), nil
}

// Percent converts a percentage rate into its multiplier, e.g. 16 -> 1.16.
func Percent(rate decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Add(rate.Div(decimal.NewFromInt(100)))
}

// MaxZero floors a balance at zero.
func MaxZero(v decimal.Decimal) decimal.Decimal {
	if v.Sign() < 0 {
		return decimal.Zero
	}
	return v
}
