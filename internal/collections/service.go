package collections

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-cotiza/internal/events"
	"github.com/noah-isme/backend-cotiza/internal/quote"
)

// ErrQuoteNotPayable is returned when a payment targets a canceled quote.
var ErrQuoteNotPayable = errors.New("collections: quote does not accept payments")

// Store is the persistence surface the service works against.
type Store interface {
	WithTx(tx pgx.Tx) Store
	InsertPayment(ctx context.Context, p PaymentRecord) error
	GetPayment(ctx context.Context, id uuid.UUID) (PaymentRecord, error)
	ListPayments(ctx context.Context, quoteID uuid.UUID) ([]PaymentRecord, error)
	VoidPayment(ctx context.Context, id uuid.UUID, reason string, at time.Time) (PaymentRecord, error)
	LockQuote(ctx context.Context, quoteID uuid.UUID) (DueQuote, error)
	GetQuoteHeader(ctx context.Context, quoteID uuid.UUID) (DueQuote, error)
	QuoteGrandTotal(ctx context.Context, quoteID uuid.UUID) (decimal.Decimal, error)
	SetQuoteStatus(ctx context.Context, quoteID uuid.UUID, status quote.Status) error
	ListCollectableQuotes(ctx context.Context) ([]DueQuote, error)
}

// Balance pairs a reconciled summary with the payment history it was
// derived from.
type Balance struct {
	QuoteID  uuid.UUID       `json:"quoteId"`
	Summary  BalanceSummary  `json:"summary"`
	Payments []PaymentRecord `json:"payments"`
}

// Service records and voids payments and serves derived balances. All
// derived figures are recomputed on read; only payment rows are stored.
type Service struct {
	Pool  *pgxpool.Pool
	Store Store
	Cache *Cache
	Bus   *events.Bus
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) inTx(ctx context.Context, fn func(Store) error) error {
	if s.Pool == nil {
		return fn(s.Store)
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("collections: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(s.Store.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("collections: commit: %w", err)
	}
	return nil
}

// RecordPayment validates and appends a payment under the quote's row
// lock, so two concurrent submissions cannot both pass admission against
// the same remaining balance. A payment that settles the quote flips it
// to SETTLED in the same transaction.
func (s *Service) RecordPayment(ctx context.Context, quoteID uuid.UUID, amount decimal.Decimal, isrWithheld bool) (PaymentRecord, BalanceSummary, error) {
	if s == nil || s.Store == nil {
		return PaymentRecord{}, BalanceSummary{}, errors.New("collections: service not configured")
	}
	var (
		record  PaymentRecord
		summary BalanceSummary
		settled bool
	)
	err := s.inTx(ctx, func(store Store) error {
		q, err := store.LockQuote(ctx, quoteID)
		if err != nil {
			return err
		}
		if q.Status == quote.StatusCanceled {
			return ErrQuoteNotPayable
		}
		total, err := store.QuoteGrandTotal(ctx, quoteID)
		if err != nil {
			return fmt.Errorf("collections: quote total: %w", err)
		}
		history, err := store.ListPayments(ctx, quoteID)
		if err != nil {
			return fmt.Errorf("collections: list payments: %w", err)
		}
		current := Reconcile(total, history)
		if err := ValidateAdmission(amount, current); err != nil {
			return err
		}
		record = PaymentRecord{
			ID:          uuid.New(),
			QuoteID:     quoteID,
			Amount:      amount,
			AppliedAt:   s.now(),
			ISRWithheld: isrWithheld,
		}
		if err := store.InsertPayment(ctx, record); err != nil {
			return fmt.Errorf("collections: insert payment: %w", err)
		}
		summary = Reconcile(total, append(history, record))
		if summary.IsFullyPaid && q.Status != quote.StatusSettled {
			if err := store.SetQuoteStatus(ctx, quoteID, quote.StatusSettled); err != nil {
				return fmt.Errorf("collections: settle quote: %w", err)
			}
			settled = true
		}
		return nil
	})
	if err != nil {
		return PaymentRecord{}, BalanceSummary{}, err
	}

	s.Cache.InvalidatePortfolio(ctx)
	if s.Bus != nil {
		_, _ = s.Bus.Emit(ctx, events.TopicPaymentRecorded, quoteID, map[string]any{
			"paymentId":   record.ID,
			"amount":      record.Amount,
			"isrWithheld": record.ISRWithheld,
		})
		if settled {
			_, _ = s.Bus.Emit(ctx, events.TopicQuoteSettled, quoteID, map[string]any{
				"quoteId": quoteID,
			})
		}
	}
	return record, summary, nil
}

// VoidPayment tombstones a payment. If that reopens a settled quote's
// balance, the quote returns to OPEN in the same transaction.
func (s *Service) VoidPayment(ctx context.Context, paymentID uuid.UUID, reason string) (PaymentRecord, BalanceSummary, error) {
	if s == nil || s.Store == nil {
		return PaymentRecord{}, BalanceSummary{}, errors.New("collections: service not configured")
	}
	var (
		record  PaymentRecord
		summary BalanceSummary
	)
	err := s.inTx(ctx, func(store Store) error {
		existing, err := store.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		q, err := store.LockQuote(ctx, existing.QuoteID)
		if err != nil {
			return err
		}
		record, err = store.VoidPayment(ctx, paymentID, reason, s.now())
		if err != nil {
			return err
		}
		total, err := store.QuoteGrandTotal(ctx, record.QuoteID)
		if err != nil {
			return fmt.Errorf("collections: quote total: %w", err)
		}
		history, err := store.ListPayments(ctx, record.QuoteID)
		if err != nil {
			return fmt.Errorf("collections: list payments: %w", err)
		}
		summary = Reconcile(total, history)
		if q.Status == quote.StatusSettled && !summary.IsFullyPaid {
			if err := store.SetQuoteStatus(ctx, record.QuoteID, quote.StatusOpen); err != nil {
				return fmt.Errorf("collections: reopen quote: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return PaymentRecord{}, BalanceSummary{}, err
	}

	s.Cache.InvalidatePortfolio(ctx)
	if s.Bus != nil {
		_, _ = s.Bus.Emit(ctx, events.TopicPaymentVoided, record.QuoteID, map[string]any{
			"paymentId": record.ID,
			"reason":    reason,
		})
	}
	return record, summary, nil
}

// Balance recomputes the quote's reconciled state from scratch.
func (s *Service) Balance(ctx context.Context, quoteID uuid.UUID) (Balance, error) {
	if s == nil || s.Store == nil {
		return Balance{}, errors.New("collections: service not configured")
	}
	if _, err := s.Store.GetQuoteHeader(ctx, quoteID); err != nil {
		return Balance{}, err
	}
	total, err := s.Store.QuoteGrandTotal(ctx, quoteID)
	if err != nil {
		return Balance{}, fmt.Errorf("collections: quote total: %w", err)
	}
	history, err := s.Store.ListPayments(ctx, quoteID)
	if err != nil {
		return Balance{}, fmt.Errorf("collections: list payments: %w", err)
	}
	return Balance{
		QuoteID:  quoteID,
		Summary:  Reconcile(total, history),
		Payments: history,
	}, nil
}

// Portfolio serves the cached rollup, recomputing on miss.
func (s *Service) Portfolio(ctx context.Context) (PortfolioStats, error) {
	if stats, ok := s.Cache.GetPortfolio(ctx); ok {
		return stats, nil
	}
	return s.RefreshPortfolio(ctx)
}

// RefreshPortfolio recomputes the rollup across every collectable quote
// and rewarms the cache. The background worker calls this on schedule;
// the read path calls it on cache miss.
func (s *Service) RefreshPortfolio(ctx context.Context) (PortfolioStats, error) {
	if s == nil || s.Store == nil {
		return PortfolioStats{}, errors.New("collections: service not configured")
	}
	quotes, err := s.Store.ListCollectableQuotes(ctx)
	if err != nil {
		return PortfolioStats{}, fmt.Errorf("collections: list quotes: %w", err)
	}
	entries := make([]PortfolioEntry, 0, len(quotes))
	for _, q := range quotes {
		total, err := s.Store.QuoteGrandTotal(ctx, q.ID)
		if err != nil {
			return PortfolioStats{}, fmt.Errorf("collections: quote total: %w", err)
		}
		history, err := s.Store.ListPayments(ctx, q.ID)
		if err != nil {
			return PortfolioStats{}, fmt.Errorf("collections: list payments: %w", err)
		}
		entries = append(entries, PortfolioEntry{
			QuoteID: q.ID,
			Summary: Reconcile(total, history),
			DueDate: q.DueDate,
		})
	}
	stats := Aggregate(entries, s.now())
	s.Cache.SetPortfolio(ctx, stats)
	return stats, nil
}
