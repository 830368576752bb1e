package quote

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-cotiza/internal/pricing"
)

type fakeStore struct {
	quotes map[uuid.UUID]Quote
	lines  map[uuid.UUID][]pricing.PricedLineItem
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		quotes: map[uuid.UUID]Quote{},
		lines:  map[uuid.UUID][]pricing.PricedLineItem{},
	}
}

func (f *fakeStore) WithTx(pgx.Tx) Store { return f }

func (f *fakeStore) InsertQuote(_ context.Context, customerName string, dueDate *time.Time) (Quote, error) {
	q := Quote{
		ID:           uuid.New(),
		CustomerName: customerName,
		Status:       StatusOpen,
		DueDate:      dueDate,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	f.quotes[q.ID] = q
	return q, nil
}

func (f *fakeStore) GetQuote(_ context.Context, id uuid.UUID) (Quote, error) {
	q, ok := f.quotes[id]
	if !ok {
		return Quote{}, ErrQuoteNotFound
	}
	return q, nil
}

func (f *fakeStore) UpdateQuoteStatus(_ context.Context, id uuid.UUID, status Status) error {
	q, ok := f.quotes[id]
	if !ok {
		return ErrQuoteNotFound
	}
	q.Status = status
	f.quotes[id] = q
	return nil
}

func (f *fakeStore) InsertLine(_ context.Context, quoteID uuid.UUID, item pricing.PricedLineItem) error {
	f.lines[quoteID] = append(f.lines[quoteID], item)
	return nil
}

func (f *fakeStore) UpdateLine(_ context.Context, quoteID uuid.UUID, item pricing.PricedLineItem) error {
	for i, existing := range f.lines[quoteID] {
		if existing.ID == item.ID {
			f.lines[quoteID][i] = item
			return nil
		}
	}
	return ErrLineNotFound
}

func (f *fakeStore) GetLine(_ context.Context, quoteID, lineID uuid.UUID) (pricing.PricedLineItem, error) {
	for _, item := range f.lines[quoteID] {
		if item.ID == lineID {
			return item, nil
		}
	}
	return pricing.PricedLineItem{}, ErrLineNotFound
}

func (f *fakeStore) ListLines(_ context.Context, quoteID uuid.UUID) ([]pricing.PricedLineItem, error) {
	return append([]pricing.PricedLineItem(nil), f.lines[quoteID]...), nil
}

func (f *fakeStore) PromotePendingLines(_ context.Context, quoteID uuid.UUID) (int64, error) {
	var n int64
	for i, item := range f.lines[quoteID] {
		if item.Pending {
			f.lines[quoteID][i].Pending = false
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) DeletePendingLines(_ context.Context, quoteID uuid.UUID) (int64, error) {
	var kept []pricing.PricedLineItem
	var n int64
	for _, item := range f.lines[quoteID] {
		if item.Pending {
			n++
			continue
		}
		kept = append(kept, item)
	}
	f.lines[quoteID] = kept
	return n, nil
}

type fakeCatalog struct {
	snaps map[uuid.UUID]pricing.CatalogSnapshot
}

func (f *fakeCatalog) Snapshot(_ context.Context, id uuid.UUID) (pricing.CatalogSnapshot, error) {
	snap, ok := f.snaps[id]
	if !ok {
		return pricing.CatalogSnapshot{}, ErrQuoteNotFound
	}
	return snap, nil
}

func serviceSnap(id uuid.UUID, base string) pricing.CatalogSnapshot {
	return pricing.CatalogSnapshot{
		EntryID:      id.String(),
		Kind:         pricing.KindService,
		BasePrice:    decimal.RequireFromString(base),
		SalesVATRate: decimal.NewFromInt(16),
	}
}

func newTestService(store *fakeStore, cat *fakeCatalog) *Service {
	return &Service{
		Store:   store,
		Catalog: cat,
		Now:     func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) },
	}
}

func TestCreatePricesAndPersistsLines(t *testing.T) {
	entryID := uuid.New()
	store := newFakeStore()
	cat := &fakeCatalog{snaps: map[uuid.UUID]pricing.CatalogSnapshot{
		entryID: serviceSnap(entryID, "1000"),
	}}
	svc := newTestService(store, cat)

	view, err := svc.Create(context.Background(), CreateInput{
		CustomerName: "Constructora Delta",
		Lines:        []LineInput{{EntryID: entryID, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusOpen, view.Quote.Status)
	require.Len(t, view.Lines, 1)
	require.True(t, view.Lines[0].Locked)
	require.Equal(t, "1160", view.Lines[0].UnitPrice.String())
	require.Equal(t, "2320", view.Total.GrandTotal.String())
	require.Len(t, store.lines[view.Quote.ID], 1)
}

func TestCreateRequiresLines(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeCatalog{})
	_, err := svc.Create(context.Background(), CreateInput{CustomerName: "x"})
	require.ErrorIs(t, err, ErrNoLines)
}

func TestPendingLinesExcludedUntilApproved(t *testing.T) {
	entryID := uuid.New()
	store := newFakeStore()
	cat := &fakeCatalog{snaps: map[uuid.UUID]pricing.CatalogSnapshot{
		entryID: serviceSnap(entryID, "300"),
	}}
	svc := newTestService(store, cat)

	view, err := svc.Create(context.Background(), CreateInput{
		CustomerName: "Acme",
		Lines:        []LineInput{{EntryID: entryID, Quantity: 1}},
	})
	require.NoError(t, err)
	quoteID := view.Quote.ID
	require.Equal(t, "350", view.Total.GrandTotal.String())

	view, err = svc.AddPendingLines(context.Background(), quoteID, []LineInput{{EntryID: entryID, Quantity: 1}})
	require.NoError(t, err)
	require.Len(t, view.PendingLines, 1)
	require.Equal(t, "350", view.Total.GrandTotal.String())
	require.Equal(t, 1, view.Total.PendingCount)

	view, err = svc.ApprovePending(context.Background(), quoteID)
	require.NoError(t, err)
	require.Empty(t, view.PendingLines)
	require.Equal(t, "700", view.Total.GrandTotal.String())
}

func TestRejectPendingDeletesLines(t *testing.T) {
	entryID := uuid.New()
	store := newFakeStore()
	cat := &fakeCatalog{snaps: map[uuid.UUID]pricing.CatalogSnapshot{
		entryID: serviceSnap(entryID, "300"),
	}}
	svc := newTestService(store, cat)

	view, err := svc.Create(context.Background(), CreateInput{
		CustomerName: "Acme",
		Lines:        []LineInput{{EntryID: entryID, Quantity: 1}},
	})
	require.NoError(t, err)
	quoteID := view.Quote.ID

	_, err = svc.AddPendingLines(context.Background(), quoteID, []LineInput{{EntryID: entryID, Quantity: 3}})
	require.NoError(t, err)

	view, err = svc.RejectPending(context.Background(), quoteID)
	require.NoError(t, err)
	require.Empty(t, view.PendingLines)
	require.Len(t, store.lines[quoteID], 1)
	require.Equal(t, "350", view.Total.GrandTotal.String())

	_, err = svc.RejectPending(context.Background(), quoteID)
	require.ErrorIs(t, err, ErrNoPendingLines)
}

func TestRepriceLineRequiresOpenQuote(t *testing.T) {
	entryID := uuid.New()
	store := newFakeStore()
	cat := &fakeCatalog{snaps: map[uuid.UUID]pricing.CatalogSnapshot{
		entryID: serviceSnap(entryID, "500"),
	}}
	svc := newTestService(store, cat)

	view, err := svc.Create(context.Background(), CreateInput{
		CustomerName: "Acme",
		Lines:        []LineInput{{EntryID: entryID, Quantity: 3}},
	})
	require.NoError(t, err)
	quoteID := view.Quote.ID
	lineID := view.Lines[0].ID
	require.Equal(t, "1740", view.Total.GrandTotal.String())

	view, err = svc.RepriceLine(context.Background(), quoteID, lineID, 4)
	require.NoError(t, err)
	require.Equal(t, lineID, view.Lines[0].ID)
	require.Equal(t, 4, view.Lines[0].Quantity)
	require.Equal(t, "2320", view.Total.GrandTotal.String())

	require.NoError(t, store.UpdateQuoteStatus(context.Background(), quoteID, StatusSettled))
	_, err = svc.RepriceLine(context.Background(), quoteID, lineID, 5)
	require.ErrorIs(t, err, pricing.ErrStaleReprice)
}

func TestPriceLockSurvivesCatalogEdit(t *testing.T) {
	entryID := uuid.New()
	store := newFakeStore()
	cat := &fakeCatalog{snaps: map[uuid.UUID]pricing.CatalogSnapshot{
		entryID: serviceSnap(entryID, "1000"),
	}}
	svc := newTestService(store, cat)

	view, err := svc.Create(context.Background(), CreateInput{
		CustomerName: "Acme",
		Lines:        []LineInput{{EntryID: entryID, Quantity: 1}},
	})
	require.NoError(t, err)

	// Catalog price doubles after the quote is created.
	cat.snaps[entryID] = serviceSnap(entryID, "2000")

	got, err := svc.Get(context.Background(), view.Quote.ID)
	require.NoError(t, err)
	require.Equal(t, "1160", got.Lines[0].UnitPrice.String())
	require.Equal(t, "1160", got.Total.GrandTotal.String())
}

func TestCancelOnlyFromOpen(t *testing.T) {
	entryID := uuid.New()
	store := newFakeStore()
	cat := &fakeCatalog{snaps: map[uuid.UUID]pricing.CatalogSnapshot{
		entryID: serviceSnap(entryID, "100"),
	}}
	svc := newTestService(store, cat)

	view, err := svc.Create(context.Background(), CreateInput{
		CustomerName: "Acme",
		Lines:        []LineInput{{EntryID: entryID, Quantity: 1}},
	})
	require.NoError(t, err)

	view, err = svc.Cancel(context.Background(), view.Quote.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, view.Quote.Status)

	_, err = svc.Cancel(context.Background(), view.Quote.ID)
	require.ErrorIs(t, err, ErrQuoteClosed)
}
