package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/backend-cotiza/internal/pricing"
)

// Status is the quote lifecycle state.
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusSettled  Status = "SETTLED"
	StatusCanceled Status = "CANCELED"
)

var (
	// ErrQuoteNotFound indicates the quote id does not exist.
	ErrQuoteNotFound = errors.New("quote: not found")
	// ErrLineNotFound indicates the line id does not exist on the quote.
	ErrLineNotFound = errors.New("quote: line not found")
)

// Quote is the order/quote aggregate header. Totals are never stored on
// it; they are recomputed from the lines on every read.
type Quote struct {
	ID           uuid.UUID  `json:"id"`
	CustomerName string     `json:"customerName"`
	Status       Status     `json:"status"`
	DueDate      *time.Time `json:"dueDate,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// DBTX abstracts a pgx pool or transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides persistence for quotes and their priced lines.
type Repository struct {
	db DBTX
}

// NewRepository constructs a quote repository.
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx pgx.Tx) Store {
	return &Repository{db: tx}
}

// InsertQuote creates a quote header in OPEN state.
func (r *Repository) InsertQuote(ctx context.Context, customerName string, dueDate *time.Time) (Quote, error) {
	if r == nil || r.db == nil {
		return Quote{}, fmt.Errorf("quote repo not initialised")
	}
	const query = `
INSERT INTO quotes (customer_name, status, due_date)
VALUES ($1, $2, $3)
RETURNING id, customer_name, status, due_date, created_at, updated_at`
	return scanQuote(r.db.QueryRow(ctx, query, customerName, string(StatusOpen), dueDate))
}

// GetQuote fetches one quote header.
func (r *Repository) GetQuote(ctx context.Context, id uuid.UUID) (Quote, error) {
	if r == nil || r.db == nil {
		return Quote{}, fmt.Errorf("quote repo not initialised")
	}
	const query = `
SELECT id, customer_name, status, due_date, created_at, updated_at
FROM quotes WHERE id = $1`
	q, err := scanQuote(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quote{}, ErrQuoteNotFound
		}
		return Quote{}, err
	}
	return q, nil
}

// UpdateQuoteStatus transitions the quote state.
func (r *Repository) UpdateQuoteStatus(ctx context.Context, id uuid.UUID, status Status) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("quote repo not initialised")
	}
	tag, err := r.db.Exec(ctx, `UPDATE quotes SET status = $2, updated_at = now() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrQuoteNotFound
	}
	return nil
}

const lineColumns = `id, quote_id, entry_id, quantity, unit_price, subtotal_before_vat, vat_amount, vat_rate, total, locked, pending, priced_at`

// InsertLine persists a priced line for the quote.
func (r *Repository) InsertLine(ctx context.Context, quoteID uuid.UUID, item pricing.PricedLineItem) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("quote repo not initialised")
	}
	const query = `
INSERT INTO quote_lines (id, quote_id, entry_id, quantity, unit_price, subtotal_before_vat, vat_amount, vat_rate, total, locked, pending, priced_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.Exec(ctx, query,
		item.ID, quoteID, item.EntryID, item.Quantity,
		item.UnitPrice, item.SubtotalBeforeVAT, item.VATAmount, item.VATRate,
		item.Total, item.Locked, item.Pending, item.PricedAt)
	return err
}

// UpdateLine replaces the monetary fields of a repriced line.
func (r *Repository) UpdateLine(ctx context.Context, quoteID uuid.UUID, item pricing.PricedLineItem) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("quote repo not initialised")
	}
	const query = `
UPDATE quote_lines
SET quantity = $3, unit_price = $4, subtotal_before_vat = $5, vat_amount = $6, vat_rate = $7, total = $8, priced_at = $9
WHERE id = $1 AND quote_id = $2`
	tag, err := r.db.Exec(ctx, query,
		item.ID, quoteID, item.Quantity,
		item.UnitPrice, item.SubtotalBeforeVAT, item.VATAmount, item.VATRate,
		item.Total, item.PricedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

// GetLine fetches one line of the quote.
func (r *Repository) GetLine(ctx context.Context, quoteID, lineID uuid.UUID) (pricing.PricedLineItem, error) {
	if r == nil || r.db == nil {
		return pricing.PricedLineItem{}, fmt.Errorf("quote repo not initialised")
	}
	const query = `SELECT ` + lineColumns + ` FROM quote_lines WHERE id = $1 AND quote_id = $2`
	item, err := scanLine(r.db.QueryRow(ctx, query, lineID, quoteID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricing.PricedLineItem{}, ErrLineNotFound
		}
		return pricing.PricedLineItem{}, err
	}
	return item, nil
}

// ListLines returns every line of the quote, pending included, in
// insertion order.
func (r *Repository) ListLines(ctx context.Context, quoteID uuid.UUID) ([]pricing.PricedLineItem, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("quote repo not initialised")
	}
	const query = `SELECT ` + lineColumns + ` FROM quote_lines WHERE quote_id = $1 ORDER BY priced_at, id`
	rows, err := r.db.Query(ctx, query, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []pricing.PricedLineItem
	for rows.Next() {
		item, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// PromotePendingLines flips the quote's pending lines into the locked set.
func (r *Repository) PromotePendingLines(ctx context.Context, quoteID uuid.UUID) (int64, error) {
	if r == nil || r.db == nil {
		return 0, fmt.Errorf("quote repo not initialised")
	}
	tag, err := r.db.Exec(ctx, `UPDATE quote_lines SET pending = FALSE WHERE quote_id = $1 AND pending`, quoteID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeletePendingLines discards the quote's pending lines entirely. A
// rejected modification is removed, not hidden.
func (r *Repository) DeletePendingLines(ctx context.Context, quoteID uuid.UUID) (int64, error) {
	if r == nil || r.db == nil {
		return 0, fmt.Errorf("quote repo not initialised")
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM quote_lines WHERE quote_id = $1 AND pending`, quoteID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanQuote(row pgx.Row) (Quote, error) {
	var (
		q      Quote
		status string
	)
	if err := row.Scan(&q.ID, &q.CustomerName, &status, &q.DueDate, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return Quote{}, err
	}
	q.Status = Status(status)
	return q, nil
}

func scanLine(row pgx.Row) (pricing.PricedLineItem, error) {
	var item pricing.PricedLineItem
	if err := row.Scan(
		&item.ID, new(uuid.UUID), &item.EntryID, &item.Quantity,
		&item.UnitPrice, &item.SubtotalBeforeVAT, &item.VATAmount, &item.VATRate,
		&item.Total, &item.Locked, &item.Pending, &item.PricedAt,
	); err != nil {
		return pricing.PricedLineItem{}, err
	}
	return item, nil
}
