package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-cotiza/internal/events"
	"github.com/noah-isme/backend-cotiza/internal/pricing"
)

var (
	// ErrQuoteClosed is returned when a mutation targets a quote that has
	// left the OPEN state.
	ErrQuoteClosed = errors.New("quote: quote is no longer open")
	// ErrNoLines is returned when a quote would be created without lines.
	ErrNoLines = errors.New("quote: at least one line is required")
	// ErrNoPendingLines is returned when an approval or rejection finds
	// nothing pending.
	ErrNoPendingLines = errors.New("quote: no pending lines")
)

// Store is the persistence surface the service works against.
type Store interface {
	WithTx(tx pgx.Tx) Store
	InsertQuote(ctx context.Context, customerName string, dueDate *time.Time) (Quote, error)
	GetQuote(ctx context.Context, id uuid.UUID) (Quote, error)
	UpdateQuoteStatus(ctx context.Context, id uuid.UUID, status Status) error
	InsertLine(ctx context.Context, quoteID uuid.UUID, item pricing.PricedLineItem) error
	UpdateLine(ctx context.Context, quoteID uuid.UUID, item pricing.PricedLineItem) error
	GetLine(ctx context.Context, quoteID, lineID uuid.UUID) (pricing.PricedLineItem, error)
	ListLines(ctx context.Context, quoteID uuid.UUID) ([]pricing.PricedLineItem, error)
	PromotePendingLines(ctx context.Context, quoteID uuid.UUID) (int64, error)
	DeletePendingLines(ctx context.Context, quoteID uuid.UUID) (int64, error)
}

// CatalogSource yields pricing snapshots for catalog entries.
type CatalogSource interface {
	Snapshot(ctx context.Context, id uuid.UUID) (pricing.CatalogSnapshot, error)
}

// LineInput identifies a catalog entry and the quantity to price.
type LineInput struct {
	EntryID  uuid.UUID `json:"entryId" validate:"required"`
	Quantity int       `json:"quantity" validate:"required,gt=0"`
}

// CreateInput describes a new quote.
type CreateInput struct {
	CustomerName string      `json:"customerName" validate:"required,max=200"`
	DueDate      *time.Time  `json:"dueDate,omitempty"`
	Lines        []LineInput `json:"lines" validate:"required,min=1,dive"`
}

// View is a quote with its lines and freshly computed totals.
type View struct {
	Quote        Quote                    `json:"quote"`
	Lines        []pricing.PricedLineItem `json:"lines"`
	PendingLines []pricing.PricedLineItem `json:"pendingLines,omitempty"`
	Total        Total                    `json:"total"`
}

// Service coordinates quote lifecycle operations. All pricing flows
// through the cascade exactly once per line; stored totals are the only
// figures ever summed afterwards.
type Service struct {
	Pool     *pgxpool.Pool
	Store    Store
	Catalog  CatalogSource
	Bus      *events.Bus
	Cashback pricing.CashbackSettings
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// inTx runs fn against a transaction-bound store when a pool is
// configured, and directly against the store otherwise.
func (s *Service) inTx(ctx context.Context, fn func(Store) error) error {
	if s.Pool == nil {
		return fn(s.Store)
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("quote: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(s.Store.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("quote: commit: %w", err)
	}
	return nil
}

// Create prices every requested line against the current catalog and
// persists the quote atomically. Lines are locked at this moment; later
// catalog edits never touch them.
func (s *Service) Create(ctx context.Context, input CreateInput) (View, error) {
	if s == nil || s.Store == nil || s.Catalog == nil {
		return View{}, errors.New("quote: service not configured")
	}
	if len(input.Lines) == 0 {
		return View{}, ErrNoLines
	}
	items, err := s.priceLines(ctx, input.Lines, false)
	if err != nil {
		return View{}, err
	}

	var q Quote
	err = s.inTx(ctx, func(store Store) error {
		var txErr error
		q, txErr = store.InsertQuote(ctx, input.CustomerName, input.DueDate)
		if txErr != nil {
			return fmt.Errorf("quote: insert quote: %w", txErr)
		}
		for _, item := range items {
			if txErr = store.InsertLine(ctx, q.ID, item); txErr != nil {
				return fmt.Errorf("quote: insert line: %w", txErr)
			}
		}
		return nil
	})
	if err != nil {
		return View{}, err
	}

	if s.Bus != nil {
		_, _ = s.Bus.Emit(ctx, events.TopicQuoteCreated, q.ID, map[string]any{
			"quoteId":   q.ID,
			"lineCount": len(items),
		})
	}
	return View{Quote: q, Lines: items, Total: ComputeTotal(items, nil)}, nil
}

// Get returns the quote with totals recomputed from its stored lines.
// Pending lines are reported separately and never enter the totals.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (View, error) {
	if s == nil || s.Store == nil {
		return View{}, errors.New("quote: service not configured")
	}
	q, err := s.Store.GetQuote(ctx, id)
	if err != nil {
		return View{}, err
	}
	all, err := s.Store.ListLines(ctx, id)
	if err != nil {
		return View{}, fmt.Errorf("quote: list lines: %w", err)
	}
	var lines, pending []pricing.PricedLineItem
	for _, item := range all {
		if item.Pending {
			pending = append(pending, item)
		} else {
			lines = append(lines, item)
		}
	}
	return View{
		Quote:        q,
		Lines:        lines,
		PendingLines: pending,
		Total:        ComputeTotal(lines, pending),
	}, nil
}

// AddPendingLines prices new lines for an open quote and stores them in
// the pending-approval state. They are visible on the quote but carry no
// weight in its totals until approved.
func (s *Service) AddPendingLines(ctx context.Context, quoteID uuid.UUID, inputs []LineInput) (View, error) {
	if s == nil || s.Store == nil || s.Catalog == nil {
		return View{}, errors.New("quote: service not configured")
	}
	if len(inputs) == 0 {
		return View{}, ErrNoLines
	}
	q, err := s.Store.GetQuote(ctx, quoteID)
	if err != nil {
		return View{}, err
	}
	if q.Status != StatusOpen {
		return View{}, ErrQuoteClosed
	}
	items, err := s.priceLines(ctx, inputs, true)
	if err != nil {
		return View{}, err
	}
	err = s.inTx(ctx, func(store Store) error {
		for _, item := range items {
			if err := store.InsertLine(ctx, quoteID, item); err != nil {
				return fmt.Errorf("quote: insert pending line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return View{}, err
	}
	return s.Get(ctx, quoteID)
}

// ApprovePending promotes every pending line into the totalled set.
func (s *Service) ApprovePending(ctx context.Context, quoteID uuid.UUID) (View, error) {
	if s == nil || s.Store == nil {
		return View{}, errors.New("quote: service not configured")
	}
	q, err := s.Store.GetQuote(ctx, quoteID)
	if err != nil {
		return View{}, err
	}
	if q.Status != StatusOpen {
		return View{}, ErrQuoteClosed
	}
	promoted, err := s.Store.PromotePendingLines(ctx, quoteID)
	if err != nil {
		return View{}, fmt.Errorf("quote: promote pending: %w", err)
	}
	if promoted == 0 {
		return View{}, ErrNoPendingLines
	}
	if s.Bus != nil {
		_, _ = s.Bus.Emit(ctx, events.TopicQuoteApproved, quoteID, map[string]any{
			"quoteId":       quoteID,
			"promotedLines": promoted,
		})
	}
	return s.Get(ctx, quoteID)
}

// RejectPending deletes every pending line. Rejection removes the rows;
// a rejected modification leaves no residue on the quote.
func (s *Service) RejectPending(ctx context.Context, quoteID uuid.UUID) (View, error) {
	if s == nil || s.Store == nil {
		return View{}, errors.New("quote: service not configured")
	}
	q, err := s.Store.GetQuote(ctx, quoteID)
	if err != nil {
		return View{}, err
	}
	if q.Status != StatusOpen {
		return View{}, ErrQuoteClosed
	}
	removed, err := s.Store.DeletePendingLines(ctx, quoteID)
	if err != nil {
		return View{}, fmt.Errorf("quote: delete pending: %w", err)
	}
	if removed == 0 {
		return View{}, ErrNoPendingLines
	}
	return s.Get(ctx, quoteID)
}

// RepriceLine re-runs the cascade for an explicit quantity edit. Only
// open quotes accept edits; anything later returns ErrStaleReprice so a
// sent quote can never drift from what the customer saw.
func (s *Service) RepriceLine(ctx context.Context, quoteID, lineID uuid.UUID, newQuantity int) (View, error) {
	if s == nil || s.Store == nil || s.Catalog == nil {
		return View{}, errors.New("quote: service not configured")
	}
	q, err := s.Store.GetQuote(ctx, quoteID)
	if err != nil {
		return View{}, err
	}
	if q.Status != StatusOpen {
		return View{}, pricing.ErrStaleReprice
	}
	item, err := s.Store.GetLine(ctx, quoteID, lineID)
	if err != nil {
		return View{}, err
	}
	entryID, err := uuid.Parse(item.EntryID)
	if err != nil {
		return View{}, fmt.Errorf("quote: line has invalid entry id: %w", err)
	}
	snap, err := s.Catalog.Snapshot(ctx, entryID)
	if err != nil {
		return View{}, fmt.Errorf("quote: load catalog snapshot: %w", err)
	}
	repriced, err := pricing.Reprice(item, newQuantity, snap, s.Cashback, s.now())
	if err != nil {
		return View{}, err
	}
	if err := s.Store.UpdateLine(ctx, quoteID, repriced); err != nil {
		return View{}, fmt.Errorf("quote: update line: %w", err)
	}
	return s.Get(ctx, quoteID)
}

// Cancel transitions an open quote to CANCELED.
func (s *Service) Cancel(ctx context.Context, quoteID uuid.UUID) (View, error) {
	if s == nil || s.Store == nil {
		return View{}, errors.New("quote: service not configured")
	}
	q, err := s.Store.GetQuote(ctx, quoteID)
	if err != nil {
		return View{}, err
	}
	if q.Status != StatusOpen {
		return View{}, ErrQuoteClosed
	}
	if err := s.Store.UpdateQuoteStatus(ctx, quoteID, StatusCanceled); err != nil {
		return View{}, err
	}
	return s.Get(ctx, quoteID)
}

func (s *Service) priceLines(ctx context.Context, inputs []LineInput, pending bool) ([]pricing.PricedLineItem, error) {
	now := s.now()
	items := make([]pricing.PricedLineItem, 0, len(inputs))
	for _, in := range inputs {
		snap, err := s.Catalog.Snapshot(ctx, in.EntryID)
		if err != nil {
			return nil, fmt.Errorf("quote: entry %s: %w", in.EntryID, err)
		}
		item, err := pricing.PriceCatalogEntry(snap, in.Quantity, s.Cashback, now)
		if err != nil {
			return nil, fmt.Errorf("quote: entry %s: %w", in.EntryID, err)
		}
		item.Pending = pending
		items = append(items, item)
	}
	return items, nil
}
