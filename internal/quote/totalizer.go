package quote

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-cotiza/internal/money"
	"github.com/noah-isme/backend-cotiza/internal/pricing"
)

// Total aggregates a quote's priced lines. It is recomputed on every read
// and never mutated directly; the stored line totals are the inputs.
type Total struct {
	Subtotal         decimal.Decimal `json:"subtotal"`
	VATTotal         decimal.Decimal `json:"vatTotal"`
	WithholdingTotal decimal.Decimal `json:"withholdingTotal"`
	GrandTotal       decimal.Decimal `json:"grandTotal"`
	PendingTotal     decimal.Decimal `json:"pendingTotal"`
	PendingCount     int             `json:"pendingCount"`
}

// ComputeTotal sums stored line totals over locked, non-pending lines.
// Pending lines (a later modification awaiting client approval) are
// surfaced via PendingTotal/PendingCount for the approval workflow but
// excluded from the authoritative customer-facing figures. An empty quote
// is valid and totals zero. WithholdingTotal is the prospective ISR figure
// for the grand total, shown so collections can anticipate withheld
// settlements; the reconciler only applies it when a withheld payment
// actually exists.
func ComputeTotal(items, pending []pricing.PricedLineItem) Total {
	total := Total{
		Subtotal:         decimal.Zero,
		VATTotal:         decimal.Zero,
		WithholdingTotal: decimal.Zero,
		GrandTotal:       decimal.Zero,
		PendingTotal:     decimal.Zero,
	}
	for _, item := range items {
		if !item.Locked || item.Pending {
			continue
		}
		qty := decimal.NewFromInt(int64(item.Quantity))
		total.Subtotal = total.Subtotal.Add(item.SubtotalBeforeVAT.Mul(qty))
		total.VATTotal = total.VATTotal.Add(item.VATAmount.Mul(qty))
		total.GrandTotal = total.GrandTotal.Add(item.Total)
	}
	for _, item := range pending {
		total.PendingTotal = total.PendingTotal.Add(item.Total)
		total.PendingCount++
	}
	if total.GrandTotal.Sign() > 0 {
		total.WithholdingTotal = money.ISRWithholding(total.GrandTotal)
	}
	return total
}
