package collections

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PortfolioEntry pairs a reconciled balance with its due date for
// portfolio-level rollups.
type PortfolioEntry struct {
	QuoteID uuid.UUID
	Summary BalanceSummary
	DueDate *time.Time
}

// PortfolioStats is the portfolio-level rollup of remaining balances.
type PortfolioStats struct {
	TotalPending  decimal.Decimal `json:"totalPending"`
	OverdueAmount decimal.Decimal `json:"overdueAmount"`
	OpenCount     int             `json:"openCount"`
	OverdueCount  int             `json:"overdueCount"`
	ComputedAt    time.Time       `json:"computedAt"`
}

// Aggregate is a pure fold over reconciler outputs. An entry contributes
// to TotalPending while its remaining balance is positive, and to the
// overdue figures when its due date has passed relative to now. Entries
// without a due date can be pending but never overdue.
func Aggregate(entries []PortfolioEntry, now time.Time) PortfolioStats {
	stats := PortfolioStats{
		TotalPending:  decimal.Zero,
		OverdueAmount: decimal.Zero,
		ComputedAt:    now,
	}
	for _, e := range entries {
		remaining := e.Summary.RemainingBalance
		if remaining.Sign() <= 0 {
			continue
		}
		stats.TotalPending = stats.TotalPending.Add(remaining)
		stats.OpenCount++
		if e.DueDate != nil && e.DueDate.Before(now) {
			stats.OverdueAmount = stats.OverdueAmount.Add(remaining)
			stats.OverdueCount++
		}
	}
	return stats
}
