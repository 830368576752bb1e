package pricing

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-cotiza/internal/money"
)

// ErrStaleReprice is returned when a reprice is attempted against a line
// that belongs to an already approved or settled quote.
var ErrStaleReprice = errors.New("pricing: line belongs to a locked quote and cannot be repriced")

// ErrMissingStoredTotal is returned by the legacy fallback when it is
// invoked for a line that actually has a stored total.
var ErrMissingStoredTotal = errors.New("pricing: line already has a stored total")

// PricedLineItem is the frozen result of pricing one catalog entry at one
// moment. Once created, the stored total is the sole source of truth for
// downstream summation; the source catalog entry may change freely without
// affecting it. SubtotalBeforeVAT and VATAmount are per unit.
type PricedLineItem struct {
	ID                uuid.UUID       `json:"id"`
	EntryID           string          `json:"entryId"`
	Quantity          int             `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unitPrice"`
	SubtotalBeforeVAT decimal.Decimal `json:"subtotalBeforeVat"`
	VATAmount         decimal.Decimal `json:"vatAmount"`
	VATRate           decimal.Decimal `json:"vatRate"`
	Total             decimal.Decimal `json:"total"`
	Locked            bool            `json:"locked"`
	Pending           bool            `json:"pending"`
	PricedAt          time.Time       `json:"pricedAt"`
}

// PriceCatalogEntry runs the cascade once and freezes the result. The
// returned line is locked: later catalog or tax changes never retroactively
// alter it. This is the single entry point for deriving a price from
// catalog data; no caller re-derives prices after line creation.
func PriceCatalogEntry(snap CatalogSnapshot, quantity int, cashback CashbackSettings, now time.Time) (PricedLineItem, error) {
	unrounded, err := UnroundedUnitPrice(snap, quantity, cashback)
	if err != nil {
		return PricedLineItem{}, err
	}
	unitPrice, err := money.RoundUpToStep(unrounded, money.DefaultStep)
	if err != nil {
		return PricedLineItem{}, err
	}
	subtotal, vat := ExtractVAT(unitPrice, snap.SalesVATRate)
	return PricedLineItem{
		ID:                uuid.New(),
		EntryID:           snap.EntryID,
		Quantity:          quantity,
		UnitPrice:         unitPrice,
		SubtotalBeforeVAT: subtotal,
		VATAmount:         vat,
		VATRate:           snap.SalesVATRate,
		Total:             unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
		Locked:            true,
		PricedAt:          now,
	}, nil
}

// LineTotal returns the authoritative stored total. It takes no catalog
// argument; a locked line is never recomputed from catalog data.
func LineTotal(item PricedLineItem) decimal.Decimal {
	return item.Total
}

// Reprice re-runs the cascade for an explicit user-driven quantity edit on
// an unsent quote. The line identity survives; every monetary field is
// replaced. Callers must reject the edit with ErrStaleReprice when the
// owning quote is no longer open.
func Reprice(item PricedLineItem, newQuantity int, snap CatalogSnapshot, cashback CashbackSettings, now time.Time) (PricedLineItem, error) {
	repriced, err := PriceCatalogEntry(snap, newQuantity, cashback, now)
	if err != nil {
		return PricedLineItem{}, err
	}
	repriced.ID = item.ID
	repriced.Pending = item.Pending
	return repriced, nil
}

// LegacyRecomputedTotal recomputes a line total from catalog data for rows
// persisted before totals were stored. This is a migration-only path: it
// refuses to run when a stored total exists, keeping the locked figure
// authoritative everywhere else.
func LegacyRecomputedTotal(item PricedLineItem, snap CatalogSnapshot, cashback CashbackSettings) (decimal.Decimal, error) {
	if !item.Total.IsZero() {
		return decimal.Zero, ErrMissingStoredTotal
	}
	unrounded, err := UnroundedUnitPrice(snap, item.Quantity, cashback)
	if err != nil {
		return decimal.Zero, err
	}
	unitPrice, err := money.RoundUpToStep(unrounded, money.DefaultStep)
	if err != nil {
		return decimal.Zero, err
	}
	return unitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))), nil
}
