package collections

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-cotiza/internal/money"
)

var (
	// ErrNegativePayment rejects a submission with a non-positive amount.
	ErrNegativePayment = errors.New("collections: payment amount must be positive")
	// ErrOverpayment rejects a submission exceeding the remaining balance.
	// Admission control enforces this before a PaymentRecord exists; the
	// reconciler itself assumes it only ever sees valid historical payments.
	ErrOverpayment = errors.New("collections: payment exceeds remaining balance")
)

// PaymentRecord is one collection event against a quote. Records are
// append-only; the only mutation is the soft-delete tombstone, which
// excludes the record from reconciliation while preserving it for audit.
type PaymentRecord struct {
	ID            uuid.UUID       `json:"id"`
	QuoteID       uuid.UUID       `json:"quoteId"`
	Amount        decimal.Decimal `json:"amount"`
	AppliedAt     time.Time       `json:"appliedAt"`
	ISRWithheld   bool            `json:"isrWithheld"`
	DeletedAt     *time.Time      `json:"deletedAt,omitempty"`
	DeletedReason string          `json:"deletedReason,omitempty"`
}

// Deleted reports whether the record has been tombstoned.
func (p PaymentRecord) Deleted() bool {
	return p.DeletedAt != nil
}

// BalanceSummary is derived, never stored as truth. Every read recomputes
// it from the quote total and the payment list.
type BalanceSummary struct {
	TotalPaid        decimal.Decimal `json:"totalPaid"`
	EffectiveTotal   decimal.Decimal `json:"effectiveTotal"`
	RemainingBalance decimal.Decimal `json:"remainingBalance"`
	IsFullyPaid      bool            `json:"isFullyPaid"`
	PaymentCount     int             `json:"paymentCount"`
	ISRApplied       bool            `json:"isrApplied"`
}

// Reconcile folds an ordered payment list against a total.
//
// When any live payment carries ISR withholding, the effective total
// switches to the exact figure net of 1.25% of the VAT-exclusive base,
// bypassing the customer-facing round-up-to-10. Fiscal withholding must
// reconcile against the government-reportable exact amount; the asymmetry
// with the rounded total is intentional and covered by tests.
func Reconcile(total decimal.Decimal, payments []PaymentRecord) BalanceSummary {
	summary := BalanceSummary{
		TotalPaid:      decimal.Zero,
		EffectiveTotal: total,
	}
	for _, p := range payments {
		if p.Deleted() {
			continue
		}
		summary.TotalPaid = summary.TotalPaid.Add(p.Amount)
		summary.PaymentCount++
		if p.ISRWithheld {
			summary.ISRApplied = true
		}
	}
	if summary.ISRApplied {
		summary.EffectiveTotal = money.EffectiveTotalWithISR(total)
	}
	summary.RemainingBalance = money.MaxZero(summary.EffectiveTotal.Sub(summary.TotalPaid))
	summary.IsFullyPaid = summary.RemainingBalance.Sign() <= 0
	return summary
}

// ValidateAdmission applies the input constraints the reconciler itself
// does not enforce: a submission must be positive and must not exceed the
// remaining balance at submission time. Callers run this against a fresh
// Reconcile result before creating the PaymentRecord.
func ValidateAdmission(amount decimal.Decimal, current BalanceSummary) error {
	if amount.Sign() <= 0 {
		return ErrNegativePayment
	}
	if amount.GreaterThan(current.RemainingBalance) {
		return ErrOverpayment
	}
	return nil
}
