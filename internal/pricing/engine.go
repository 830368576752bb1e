package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-cotiza/internal/money"
)

var (
	// ErrInvalidCatalogData indicates the snapshot carries no usable price.
	// Callers must surface the error instead of defaulting the price.
	ErrInvalidCatalogData = errors.New("pricing: catalog entry has no usable price")
	// ErrUnknownKind is returned for a snapshot kind outside service/product.
	ErrUnknownKind = errors.New("pricing: unknown catalog entry kind")
	// ErrInvalidQuantity is returned for non-positive quantities.
	ErrInvalidQuantity = errors.New("pricing: quantity must be positive")
)

// Kind distinguishes the two cascade variants.
type Kind string

const (
	KindService Kind = "service"
	KindProduct Kind = "product"
)

// purchaseVATRate is the fixed 16% purchase VAT applied to product cost.
// It is independent of the entry's configured sales VAT rate; bookkeeping
// extraction still uses the sales rate.
var purchaseVATRate = decimal.NewFromInt(16)

// defaultMarginPercent applies when no margin tier matches the quantity.
var defaultMarginPercent = decimal.NewFromInt(30)

// MarginTier maps a quantity range to a profit margin percentage.
type MarginTier struct {
	MinQty        int             `json:"minQty"`
	MaxQty        int             `json:"maxQty"`
	MarginPercent decimal.Decimal `json:"marginPercent"`
}

// CatalogSnapshot is a point-in-time copy of a sellable catalog entry.
// The engine only ever reads snapshots; it has no access to the catalog
// store and cannot observe later edits.
type CatalogSnapshot struct {
	EntryID          string
	Kind             Kind
	CostPrice        decimal.Decimal
	BasePrice        decimal.Decimal
	SalesVATRate     decimal.Decimal
	MarginTiers      []MarginTier
	CashbackEligible bool
}

// CashbackSettings is the explicit configuration value passed into every
// pricing call. It is never read from ambient state.
type CashbackSettings struct {
	Enabled      bool
	Percent      decimal.Decimal
	ApplyToItems bool
}

// applies reports whether the cashback multiplier participates in the
// cascade for the given snapshot.
func (c CashbackSettings) applies(snap CatalogSnapshot) bool {
	return c.Enabled && c.ApplyToItems && snap.CashbackEligible && c.Percent.Sign() > 0
}

// selectMargin picks the margin tier matching quantity, defaulting to 30%.
func selectMargin(tiers []MarginTier, quantity int) decimal.Decimal {
	for _, tier := range tiers {
		if quantity >= tier.MinQty && quantity <= tier.MaxQty {
			return tier.MarginPercent
		}
	}
	return defaultMarginPercent
}

// UnroundedUnitPrice computes the cascade result before rounding.
//
// Service: base (base price, cost price fallback) -> sales VAT -> cashback.
// Product: cost -> fixed 16% purchase VAT -> margin tier -> sales VAT -> cashback.
func UnroundedUnitPrice(snap CatalogSnapshot, quantity int, cashback CashbackSettings) (decimal.Decimal, error) {
	if quantity <= 0 {
		return decimal.Zero, ErrInvalidQuantity
	}
	var final decimal.Decimal
	switch snap.Kind {
	case KindService:
		base := snap.BasePrice
		if base.IsZero() {
			base = snap.CostPrice
		}
		if base.IsZero() {
			return decimal.Zero, ErrInvalidCatalogData
		}
		final = base.Mul(money.Percent(snap.SalesVATRate))
	case KindProduct:
		if snap.CostPrice.IsZero() {
			return decimal.Zero, ErrInvalidCatalogData
		}
		withPurchaseVAT := snap.CostPrice.Mul(money.Percent(purchaseVATRate))
		withMargin := withPurchaseVAT.Mul(money.Percent(selectMargin(snap.MarginTiers, quantity)))
		final = withMargin.Mul(money.Percent(snap.SalesVATRate))
	default:
		return decimal.Zero, ErrUnknownKind
	}
	if cashback.applies(snap) {
		final = final.Mul(money.Percent(cashback.Percent))
	}
	return final, nil
}

// ExtractVAT splits a rounded unit price into its VAT-exclusive subtotal
// and VAT amount using the sales VAT rate. The subtotal is rounded to the
// currency's minimal unit and the VAT amount is the exact remainder, so
// subtotal + vat always reconstructs the unit price to the cent. Extracting
// after rounding is load-bearing: rounding subtotal and VAT independently
// does not guarantee they sum back to the charged price.
func ExtractVAT(unitPrice, vatRate decimal.Decimal) (subtotal, vat decimal.Decimal) {
	subtotal = unitPrice.Div(money.Percent(vatRate)).Round(2)
	vat = unitPrice.Sub(subtotal)
	return subtotal, vat
}
