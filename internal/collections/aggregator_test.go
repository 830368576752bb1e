package collections

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestAggregate(t *testing.T) {
	now := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -3)
	future := now.AddDate(0, 0, 14)

	entries := []PortfolioEntry{
		{Summary: BalanceSummary{RemainingBalance: dec("280")}, DueDate: &past},
		{Summary: BalanceSummary{RemainingBalance: dec("1000")}, DueDate: &future},
		{Summary: BalanceSummary{RemainingBalance: decimal.Zero, IsFullyPaid: true}, DueDate: &past},
		{Summary: BalanceSummary{RemainingBalance: dec("50")}}, // no due date
	}
	stats := Aggregate(entries, now)
	if !stats.TotalPending.Equal(dec("1330")) {
		t.Fatalf("expected pending 1330, got %s", stats.TotalPending)
	}
	if !stats.OverdueAmount.Equal(dec("280")) {
		t.Fatalf("expected overdue 280, got %s", stats.OverdueAmount)
	}
	if stats.OpenCount != 3 || stats.OverdueCount != 1 {
		t.Fatalf("unexpected counts: open %d overdue %d", stats.OpenCount, stats.OverdueCount)
	}
}

func TestAggregateEmpty(t *testing.T) {
	stats := Aggregate(nil, time.Now())
	if !stats.TotalPending.IsZero() || !stats.OverdueAmount.IsZero() {
		t.Fatalf("empty portfolio must be zero, got %+v", stats)
	}
}

func TestAggregateDueTodayIsNotOverdue(t *testing.T) {
	now := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	entries := []PortfolioEntry{
		{Summary: BalanceSummary{RemainingBalance: dec("100")}, DueDate: &now},
	}
	stats := Aggregate(entries, now)
	if stats.OverdueCount != 0 {
		t.Fatal("a balance due exactly now is not yet overdue")
	}
	if !stats.TotalPending.Equal(dec("100")) {
		t.Fatalf("expected pending 100, got %s", stats.TotalPending)
	}
}
