package collections

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-cotiza/internal/quote"
)

var (
	// ErrPaymentNotFound indicates the payment id does not exist.
	ErrPaymentNotFound = errors.New("collections: payment not found")
	// ErrPaymentVoided indicates the payment is already tombstoned.
	ErrPaymentVoided = errors.New("collections: payment already voided")
)

// DueQuote is the collections view of a quote header.
type DueQuote struct {
	ID      uuid.UUID
	Status  quote.Status
	DueDate *time.Time
}

// DBTX abstracts a pgx pool or transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists payments and reads the quote figures that
// reconciliation needs.
type Repository struct {
	db DBTX
}

// NewRepository constructs a collections repository.
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx pgx.Tx) Store {
	return &Repository{db: tx}
}

const paymentColumns = `id, quote_id, amount, applied_at, isr_withheld, deleted_at, deleted_reason`

// InsertPayment appends one payment record.
func (r *Repository) InsertPayment(ctx context.Context, p PaymentRecord) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("collections repo not initialised")
	}
	const query = `
INSERT INTO payments (id, quote_id, amount, applied_at, isr_withheld)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Exec(ctx, query, p.ID, p.QuoteID, p.Amount, p.AppliedAt, p.ISRWithheld)
	return err
}

// GetPayment fetches one payment, tombstoned or not.
func (r *Repository) GetPayment(ctx context.Context, id uuid.UUID) (PaymentRecord, error) {
	if r == nil || r.db == nil {
		return PaymentRecord{}, fmt.Errorf("collections repo not initialised")
	}
	const query = `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	p, err := scanPayment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PaymentRecord{}, ErrPaymentNotFound
		}
		return PaymentRecord{}, err
	}
	return p, nil
}

// ListPayments returns every payment for the quote in application order,
// tombstones included. The reconciler skips them itself.
func (r *Repository) ListPayments(ctx context.Context, quoteID uuid.UUID) ([]PaymentRecord, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("collections repo not initialised")
	}
	const query = `SELECT ` + paymentColumns + ` FROM payments WHERE quote_id = $1 ORDER BY applied_at, id`
	rows, err := r.db.Query(ctx, query, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// VoidPayment tombstones a live payment. The row survives for audit; it
// simply stops counting toward the balance.
func (r *Repository) VoidPayment(ctx context.Context, id uuid.UUID, reason string, at time.Time) (PaymentRecord, error) {
	if r == nil || r.db == nil {
		return PaymentRecord{}, fmt.Errorf("collections repo not initialised")
	}
	const query = `
UPDATE payments SET deleted_at = $2, deleted_reason = $3
WHERE id = $1 AND deleted_at IS NULL
RETURNING ` + paymentColumns
	p, err := scanPayment(r.db.QueryRow(ctx, query, id, at, reason))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return PaymentRecord{}, err
	}
	existing, getErr := r.GetPayment(ctx, id)
	if getErr != nil {
		return PaymentRecord{}, getErr
	}
	if existing.Deleted() {
		return PaymentRecord{}, ErrPaymentVoided
	}
	return PaymentRecord{}, ErrPaymentNotFound
}

// LockQuote reads the quote header while holding a row lock, serializing
// concurrent payment submissions against the same quote.
func (r *Repository) LockQuote(ctx context.Context, quoteID uuid.UUID) (DueQuote, error) {
	if r == nil || r.db == nil {
		return DueQuote{}, fmt.Errorf("collections repo not initialised")
	}
	const query = `SELECT id, status, due_date FROM quotes WHERE id = $1 FOR UPDATE`
	var (
		q      DueQuote
		status string
	)
	if err := r.db.QueryRow(ctx, query, quoteID).Scan(&q.ID, &status, &q.DueDate); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DueQuote{}, quote.ErrQuoteNotFound
		}
		return DueQuote{}, err
	}
	q.Status = quote.Status(status)
	return q, nil
}

// GetQuoteHeader reads the quote header without locking it.
func (r *Repository) GetQuoteHeader(ctx context.Context, quoteID uuid.UUID) (DueQuote, error) {
	if r == nil || r.db == nil {
		return DueQuote{}, fmt.Errorf("collections repo not initialised")
	}
	const query = `SELECT id, status, due_date FROM quotes WHERE id = $1`
	var (
		q      DueQuote
		status string
	)
	if err := r.db.QueryRow(ctx, query, quoteID).Scan(&q.ID, &status, &q.DueDate); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DueQuote{}, quote.ErrQuoteNotFound
		}
		return DueQuote{}, err
	}
	q.Status = quote.Status(status)
	return q, nil
}

// QuoteGrandTotal sums the stored totals of the quote's locked,
// non-pending lines. Stored totals are authoritative; nothing is
// re-derived from the catalog here.
func (r *Repository) QuoteGrandTotal(ctx context.Context, quoteID uuid.UUID) (decimal.Decimal, error) {
	if r == nil || r.db == nil {
		return decimal.Zero, fmt.Errorf("collections repo not initialised")
	}
	const query = `
SELECT COALESCE(SUM(total), 0) FROM quote_lines
WHERE quote_id = $1 AND locked AND NOT pending`
	var total decimal.Decimal
	if err := r.db.QueryRow(ctx, query, quoteID).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// SetQuoteStatus transitions the quote, used for settle and reopen.
func (r *Repository) SetQuoteStatus(ctx context.Context, quoteID uuid.UUID, status quote.Status) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("collections repo not initialised")
	}
	tag, err := r.db.Exec(ctx, `UPDATE quotes SET status = $2, updated_at = now() WHERE id = $1`, quoteID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return quote.ErrQuoteNotFound
	}
	return nil
}

// ListCollectableQuotes returns every quote that can still owe money,
// i.e. anything not canceled.
func (r *Repository) ListCollectableQuotes(ctx context.Context) ([]DueQuote, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("collections repo not initialised")
	}
	const query = `SELECT id, status, due_date FROM quotes WHERE status <> $1 ORDER BY created_at`
	rows, err := r.db.Query(ctx, query, string(quote.StatusCanceled))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var quotes []DueQuote
	for rows.Next() {
		var (
			q      DueQuote
			status string
		)
		if err := rows.Scan(&q.ID, &status, &q.DueDate); err != nil {
			return nil, err
		}
		q.Status = quote.Status(status)
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

func scanPayment(row pgx.Row) (PaymentRecord, error) {
	var (
		p      PaymentRecord
		reason *string
	)
	if err := row.Scan(&p.ID, &p.QuoteID, &p.Amount, &p.AppliedAt, &p.ISRWithheld, &p.DeletedAt, &reason); err != nil {
		return PaymentRecord{}, err
	}
	if reason != nil {
		p.DeletedReason = *reason
	}
	return p, nil
}
