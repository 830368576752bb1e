package money

import "github.com/shopspring/decimal"

// ISR withholding constants. The withholding base is the VAT-exclusive
// amount at the 16% rate and the withheld fraction is 1.25% of that base.
var (
	isrVATDivisor = decimal.RequireFromString("1.16")
	isrRate       = decimal.RequireFromString("0.0125")
)

// ISRWithholding returns the fiscal withholding for a total. The figure is
// computed on the exact (unrounded) VAT-exclusive base because withholding
// must reconcile against the government-reportable amount, not the rounded
// customer-facing one.
func ISRWithholding(total decimal.Decimal) decimal.Decimal {
	return total.Div(isrVATDivisor).Mul(isrRate)
}

// EffectiveTotalWithISR returns the exact total net of ISR withholding.
func EffectiveTotalWithISR(total decimal.Decimal) decimal.Decimal {
	return total.Sub(ISRWithholding(total))
}
