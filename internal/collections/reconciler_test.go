package collections

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-cotiza/internal/money"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var appliedAt = time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)

func payment(amount string) PaymentRecord {
	return PaymentRecord{Amount: dec(amount), AppliedAt: appliedAt}
}

func TestReconcilePartialPayments(t *testing.T) {
	// total 880, payments 300 + 300 -> 280 remaining.
	summary := Reconcile(dec("880"), []PaymentRecord{payment("300"), payment("300")})
	if !summary.TotalPaid.Equal(dec("600")) {
		t.Fatalf("expected total paid 600, got %s", summary.TotalPaid)
	}
	if !summary.RemainingBalance.Equal(dec("280")) {
		t.Fatalf("expected remaining 280, got %s", summary.RemainingBalance)
	}
	if summary.IsFullyPaid {
		t.Fatal("should not be fully paid")
	}
	if summary.PaymentCount != 2 {
		t.Fatalf("expected 2 payments, got %d", summary.PaymentCount)
	}
}

func TestReconcileISRException(t *testing.T) {
	total := dec("880")
	withheld := payment("300")
	withheld.ISRWithheld = true
	summary := Reconcile(total, []PaymentRecord{withheld, payment("300")})

	// One withheld payment switches the effective total to the exact
	// figure net of 1.25% of the VAT-exclusive base, not the rounded 880.
	wantEffective := total.Sub(total.Div(dec("1.16")).Mul(dec("0.0125")))
	if !summary.EffectiveTotal.Equal(wantEffective) {
		t.Fatalf("expected effective total %s, got %s", wantEffective, summary.EffectiveTotal)
	}
	if summary.EffectiveTotal.Equal(total) {
		t.Fatal("ISR reconciliation must not use the rounded total")
	}
	if !summary.RemainingBalance.Equal(wantEffective.Sub(dec("600"))) {
		t.Fatalf("remaining balance must use the exact figure, got %s", summary.RemainingBalance)
	}
	if !summary.ISRApplied {
		t.Fatal("expected ISRApplied flag")
	}
}

func TestReconcileExcludesTombstonedPayments(t *testing.T) {
	voided := payment("500")
	deletedAt := appliedAt.Add(time.Hour)
	voided.DeletedAt = &deletedAt
	voided.DeletedReason = "captured twice"

	summary := Reconcile(dec("880"), []PaymentRecord{voided, payment("300")})
	if !summary.TotalPaid.Equal(dec("300")) {
		t.Fatalf("tombstoned payment counted: %s", summary.TotalPaid)
	}
	if summary.PaymentCount != 1 {
		t.Fatalf("expected 1 live payment, got %d", summary.PaymentCount)
	}
}

func TestReconcileConsistency(t *testing.T) {
	totals := []string{"0", "10", "880", "123456.78"}
	paymentSets := [][]PaymentRecord{
		nil,
		{payment("10")},
		{payment("300"), payment("300")},
		{payment("0.01"), payment("879.99")},
	}
	for _, ts := range totals {
		total := dec(ts)
		for _, ps := range paymentSets {
			summary := Reconcile(total, ps)
			if summary.RemainingBalance.Sign() < 0 {
				t.Fatalf("total %s: remaining balance went negative: %s", ts, summary.RemainingBalance)
			}
			if summary.TotalPaid.LessThanOrEqual(summary.EffectiveTotal) {
				reconstructed := summary.TotalPaid.Add(summary.RemainingBalance)
				if !reconstructed.Equal(summary.EffectiveTotal) {
					t.Fatalf("total %s: paid %s + remaining %s != effective %s",
						ts, summary.TotalPaid, summary.RemainingBalance, summary.EffectiveTotal)
				}
			}
		}
	}
}

func TestReconcileZeroTotalIsFullyPaid(t *testing.T) {
	summary := Reconcile(decimal.Zero, nil)
	if !summary.IsFullyPaid {
		t.Fatal("a zero-line quote with no payments owes nothing")
	}
}

func TestValidateAdmission(t *testing.T) {
	current := Reconcile(dec("880"), []PaymentRecord{payment("600")})

	if err := ValidateAdmission(dec("280"), current); err != nil {
		t.Fatalf("exact remainder must be admitted: %v", err)
	}
	if err := ValidateAdmission(dec("280.01"), current); !errors.Is(err, ErrOverpayment) {
		t.Fatalf("expected ErrOverpayment, got %v", err)
	}
	if err := ValidateAdmission(decimal.Zero, current); !errors.Is(err, ErrNegativePayment) {
		t.Fatalf("expected ErrNegativePayment, got %v", err)
	}
	if err := ValidateAdmission(dec("-5"), current); !errors.Is(err, ErrNegativePayment) {
		t.Fatalf("expected ErrNegativePayment for negative amount, got %v", err)
	}
}

func TestISRSettlementUsesExactRemainder(t *testing.T) {
	// A withheld settlement of the exact effective total fully pays the
	// quote even though it is short of the rounded 880.
	total := dec("880")
	exact := money.EffectiveTotalWithISR(total)
	withheld := PaymentRecord{Amount: exact, AppliedAt: appliedAt, ISRWithheld: true}
	summary := Reconcile(total, []PaymentRecord{withheld})
	if !summary.IsFullyPaid {
		t.Fatalf("expected fully paid at exact figure %s, remaining %s", exact, summary.RemainingBalance)
	}
	if !summary.RemainingBalance.IsZero() {
		t.Fatalf("expected zero remaining, got %s", summary.RemainingBalance)
	}
}
