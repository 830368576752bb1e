package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-cotiza/internal/pricing"
)

// Store captures the persistence operations required by the service.
type Store interface {
	Create(ctx context.Context, e Entry) (Entry, error)
	Update(ctx context.Context, e Entry) (Entry, error)
	Get(ctx context.Context, id uuid.UUID) (Entry, error)
	List(ctx context.Context, limit, offset int32) ([]Entry, int64, error)
}

// Service orchestrates catalog reads and writes plus snapshot caching.
type Service struct {
	store        Store
	cache        *Cache
	defaultLimit int32
	maxLimit     int32
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        Store
	Cache        *Cache
	DefaultLimit int32
	MaxLimit     int32
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		store:        cfg.Store,
		cache:        cfg.Cache,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// Snapshot returns the point-in-time pricing inputs for an entry. This is
// the only surface the pricing call sites use; they never hold a live row.
func (s *Service) Snapshot(ctx context.Context, id uuid.UUID) (pricing.CatalogSnapshot, error) {
	entry, err := s.Entry(ctx, id)
	if err != nil {
		return pricing.CatalogSnapshot{}, err
	}
	return entry.Snapshot(), nil
}

// Entry returns one entry, cache first.
func (s *Service) Entry(ctx context.Context, id uuid.UUID) (Entry, error) {
	if s == nil || s.store == nil {
		return Entry{}, errors.New("catalog service not configured")
	}
	if entry, ok := s.cache.Get(ctx, id); ok {
		return entry, nil
	}
	entry, err := s.store.Get(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	s.cache.Set(ctx, entry)
	return entry, nil
}

// Create validates and persists a new entry.
func (s *Service) Create(ctx context.Context, e Entry) (Entry, error) {
	if s == nil || s.store == nil {
		return Entry{}, errors.New("catalog service not configured")
	}
	if err := validateEntry(e); err != nil {
		return Entry{}, err
	}
	return s.store.Create(ctx, e)
}

// Update persists entry edits and drops the stale cached snapshot.
func (s *Service) Update(ctx context.Context, e Entry) (Entry, error) {
	if s == nil || s.store == nil {
		return Entry{}, errors.New("catalog service not configured")
	}
	if err := validateEntry(e); err != nil {
		return Entry{}, err
	}
	updated, err := s.store.Update(ctx, e)
	if err != nil {
		return Entry{}, err
	}
	s.cache.Invalidate(ctx, e.ID)
	return updated, nil
}

// List pages through entries.
func (s *Service) List(ctx context.Context, limit, offset int32) ([]Entry, int64, error) {
	if s == nil || s.store == nil {
		return nil, 0, errors.New("catalog service not configured")
	}
	if limit < 1 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.List(ctx, limit, offset)
}

func validateEntry(e Entry) error {
	switch e.Kind {
	case pricing.KindService, pricing.KindProduct:
	default:
		return pricing.ErrUnknownKind
	}
	if e.CostPrice.Sign() < 0 || e.BasePrice.Sign() < 0 || e.SalesVATRate.Sign() < 0 {
		return errors.New("catalog: prices and rates must not be negative")
	}
	for _, tier := range e.MarginTiers {
		if tier.MinQty > tier.MaxQty {
			return errors.New("catalog: margin tier range is inverted")
		}
	}
	return nil
}
