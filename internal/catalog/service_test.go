package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-cotiza/internal/pricing"
)

type fakeCatalogStore struct {
	entries map[uuid.UUID]Entry
	gets    int
}

func newFakeCatalogStore() *fakeCatalogStore {
	return &fakeCatalogStore{entries: map[uuid.UUID]Entry{}}
}

func (s *fakeCatalogStore) Create(_ context.Context, e Entry) (Entry, error) {
	for _, existing := range s.entries {
		if existing.Name == e.Name {
			return Entry{}, ErrDuplicateName
		}
	}
	e.ID = uuid.New()
	s.entries[e.ID] = e
	return e, nil
}

func (s *fakeCatalogStore) Update(_ context.Context, e Entry) (Entry, error) {
	if _, ok := s.entries[e.ID]; !ok {
		return Entry{}, ErrEntryNotFound
	}
	s.entries[e.ID] = e
	return e, nil
}

func (s *fakeCatalogStore) Get(_ context.Context, id uuid.UUID) (Entry, error) {
	s.gets++
	e, ok := s.entries[id]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return e, nil
}

func (s *fakeCatalogStore) List(_ context.Context, limit, offset int32) ([]Entry, int64, error) {
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	total := int64(len(out))
	if int(offset) >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if int(limit) < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func newTestCatalogService(t *testing.T, store Store) (*Service, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc, err := NewService(ServiceConfig{
		Store: store,
		Cache: NewCache(client, time.Minute),
	})
	require.NoError(t, err)
	return svc, client
}

func serviceEntry(name string) Entry {
	return Entry{
		Name:         name,
		Kind:         pricing.KindService,
		BasePrice:    decimal.NewFromInt(1000),
		SalesVATRate: decimal.NewFromInt(16),
	}
}

func TestServiceRequiresStore(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	require.Error(t, err)
}

func TestEntryCachesReads(t *testing.T) {
	store := newFakeCatalogStore()
	svc, _ := newTestCatalogService(t, store)
	ctx := context.Background()

	created, err := svc.Create(ctx, serviceEntry("Consulting"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err := svc.Entry(ctx, created.ID)
		require.NoError(t, err)
		require.Equal(t, created.ID, got.ID)
	}
	require.Equal(t, 1, store.gets, "repeat reads should come from cache")
}

func TestUpdateInvalidatesCache(t *testing.T) {
	store := newFakeCatalogStore()
	svc, _ := newTestCatalogService(t, store)
	ctx := context.Background()

	created, err := svc.Create(ctx, serviceEntry("Hosting"))
	require.NoError(t, err)

	_, err = svc.Entry(ctx, created.ID)
	require.NoError(t, err)

	created.BasePrice = decimal.NewFromInt(2000)
	_, err = svc.Update(ctx, created)
	require.NoError(t, err)

	got, err := svc.Entry(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, got.BasePrice.Equal(decimal.NewFromInt(2000)))
}

func TestSnapshotFreezesPricingInputs(t *testing.T) {
	store := newFakeCatalogStore()
	svc, _ := newTestCatalogService(t, store)
	ctx := context.Background()

	entry := serviceEntry("Audit")
	entry.CashbackEligible = true
	created, err := svc.Create(ctx, entry)
	require.NoError(t, err)

	snap, err := svc.Snapshot(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID.String(), snap.EntryID)
	require.Equal(t, pricing.KindService, snap.Kind)
	require.True(t, snap.BasePrice.Equal(decimal.NewFromInt(1000)))
	require.True(t, snap.CashbackEligible)
}

func TestCreateRejectsBadEntries(t *testing.T) {
	store := newFakeCatalogStore()
	svc, _ := newTestCatalogService(t, store)
	ctx := context.Background()

	bad := serviceEntry("Broken")
	bad.Kind = pricing.Kind("subscription")
	_, err := svc.Create(ctx, bad)
	require.ErrorIs(t, err, pricing.ErrUnknownKind)

	negative := serviceEntry("Negative")
	negative.BasePrice = decimal.NewFromInt(-5)
	_, err = svc.Create(ctx, negative)
	require.Error(t, err)

	inverted := Entry{
		Name:         "Inverted",
		Kind:         pricing.KindProduct,
		CostPrice:    decimal.NewFromInt(100),
		SalesVATRate: decimal.NewFromInt(16),
		MarginTiers: []pricing.MarginTier{
			{MinQty: 10, MaxQty: 2, MarginPercent: decimal.NewFromInt(30)},
		},
	}
	_, err = svc.Create(ctx, inverted)
	require.Error(t, err)

	_, err = svc.Create(ctx, serviceEntry("Dup"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, serviceEntry("Dup"))
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestListClampsLimits(t *testing.T) {
	store := newFakeCatalogStore()
	svc, _ := newTestCatalogService(t, store)
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C"} {
		_, err := svc.Create(ctx, serviceEntry(name))
		require.NoError(t, err)
	}

	entries, total, err := svc.List(ctx, 0, -5)
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, entries, 3)

	entries, _, err = svc.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}
