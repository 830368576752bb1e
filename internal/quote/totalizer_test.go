package quote

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-cotiza/internal/pricing"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func lockedLine(total string) pricing.PricedLineItem {
	return pricing.PricedLineItem{
		Quantity:          1,
		UnitPrice:         dec(total),
		SubtotalBeforeVAT: dec(total),
		VATAmount:         decimal.Zero,
		Total:             dec(total),
		Locked:            true,
	}
}

func TestComputeTotalExcludesPending(t *testing.T) {
	locked := []pricing.PricedLineItem{lockedLine("100"), lockedLine("200")}
	pendingLine := lockedLine("50")
	pendingLine.Pending = true
	pending := []pricing.PricedLineItem{pendingLine}

	total := ComputeTotal(locked, pending)
	if !total.GrandTotal.Equal(dec("300")) {
		t.Fatalf("expected grand total 300, got %s", total.GrandTotal)
	}
	if !total.PendingTotal.Equal(dec("50")) || total.PendingCount != 1 {
		t.Fatalf("pending figures wrong: %s / %d", total.PendingTotal, total.PendingCount)
	}

	// Approval promotes the pending line into the locked set.
	pendingLine.Pending = false
	approved := ComputeTotal(append(locked, pendingLine), nil)
	if !approved.GrandTotal.Equal(dec("350")) {
		t.Fatalf("expected grand total 350 after approval, got %s", approved.GrandTotal)
	}

	// Rejection discards the pending line entirely; the total returns to
	// 300 and stays there.
	rejected := ComputeTotal(locked, nil)
	if !rejected.GrandTotal.Equal(dec("300")) {
		t.Fatalf("expected grand total 300 after rejection, got %s", rejected.GrandTotal)
	}
	if rejected.PendingCount != 0 {
		t.Fatalf("rejected pending line still tracked")
	}
}

func TestComputeTotalSumsStoredLineTotals(t *testing.T) {
	// Line-level rounded totals are what gets summed; the aggregate is
	// never rounded again.
	line1 := pricing.PricedLineItem{
		Quantity:          3,
		UnitPrice:         dec("880"),
		SubtotalBeforeVAT: dec("758.62"),
		VATAmount:         dec("121.38"),
		Total:             dec("2640"),
		Locked:            true,
	}
	line2 := pricing.PricedLineItem{
		Quantity:          1,
		UnitPrice:         dec("1160"),
		SubtotalBeforeVAT: dec("1000"),
		VATAmount:         dec("160"),
		Total:             dec("1160"),
		Locked:            true,
	}
	total := ComputeTotal([]pricing.PricedLineItem{line1, line2}, nil)
	if !total.GrandTotal.Equal(dec("3800")) {
		t.Fatalf("expected 3800, got %s", total.GrandTotal)
	}
	if !total.Subtotal.Equal(dec("3275.86")) {
		t.Fatalf("expected subtotal 3275.86, got %s", total.Subtotal)
	}
	if !total.VATTotal.Equal(dec("524.14")) {
		t.Fatalf("expected vat total 524.14, got %s", total.VATTotal)
	}
	if !total.Subtotal.Add(total.VATTotal).Equal(total.GrandTotal) {
		t.Fatalf("subtotal + vat must equal grand total")
	}
}

func TestComputeTotalEmptyQuoteIsValid(t *testing.T) {
	total := ComputeTotal(nil, nil)
	if !total.GrandTotal.IsZero() || !total.Subtotal.IsZero() || !total.WithholdingTotal.IsZero() {
		t.Fatalf("empty quote must total zero, got %+v", total)
	}
}

func TestComputeTotalSkipsUnlockedLines(t *testing.T) {
	unlocked := lockedLine("500")
	unlocked.Locked = false
	total := ComputeTotal([]pricing.PricedLineItem{lockedLine("100"), unlocked}, nil)
	if !total.GrandTotal.Equal(dec("100")) {
		t.Fatalf("unlocked line leaked into total: %s", total.GrandTotal)
	}
}
