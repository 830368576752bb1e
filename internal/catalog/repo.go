package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-cotiza/internal/pricing"
)

// ErrEntryNotFound indicates the requested catalog entry does not exist.
var ErrEntryNotFound = errors.New("catalog: entry not found")

// ErrDuplicateName indicates an entry with the same name already exists.
var ErrDuplicateName = errors.New("catalog: entry name already exists")

// Entry is a sellable service or product. The pricing engine never reads
// rows directly; it receives point-in-time snapshots built from them.
type Entry struct {
	ID               uuid.UUID            `json:"id"`
	Name             string               `json:"name"`
	Kind             pricing.Kind         `json:"kind"`
	CostPrice        decimal.Decimal      `json:"costPrice"`
	BasePrice        decimal.Decimal      `json:"basePrice"`
	SalesVATRate     decimal.Decimal      `json:"salesVatRate"`
	MarginTiers      []pricing.MarginTier `json:"marginTiers,omitempty"`
	CashbackEligible bool                 `json:"cashbackEligible"`
	CreatedAt        time.Time            `json:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt"`
}

// Snapshot freezes the entry's pricing inputs for one pricing call.
func (e Entry) Snapshot() pricing.CatalogSnapshot {
	return pricing.CatalogSnapshot{
		EntryID:          e.ID.String(),
		Kind:             e.Kind,
		CostPrice:        e.CostPrice,
		BasePrice:        e.BasePrice,
		SalesVATRate:     e.SalesVATRate,
		MarginTiers:      e.MarginTiers,
		CashbackEligible: e.CashbackEligible,
	}
}

// Repository provides persistence for catalog entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a catalog repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryColumns = `id, name, kind, cost_price, base_price, sales_vat_rate, margin_tiers, cashback_eligible, created_at, updated_at`

// Create inserts a new catalog entry.
func (r *Repository) Create(ctx context.Context, e Entry) (Entry, error) {
	if r == nil || r.pool == nil {
		return Entry{}, fmt.Errorf("catalog repo not initialised")
	}
	tiers, err := encodeTiers(e.MarginTiers)
	if err != nil {
		return Entry{}, err
	}
	const query = `
INSERT INTO catalog_entries (name, kind, cost_price, base_price, sales_vat_rate, margin_tiers, cashback_eligible)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + entryColumns
	row := r.pool.QueryRow(ctx, query, e.Name, string(e.Kind), e.CostPrice, e.BasePrice, e.SalesVATRate, tiers, e.CashbackEligible)
	created, err := scanEntry(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Entry{}, ErrDuplicateName
		}
		return Entry{}, err
	}
	return created, nil
}

// Update replaces the mutable fields of an entry. Catalog entries are
// long-lived and mutable; already priced lines are unaffected.
func (r *Repository) Update(ctx context.Context, e Entry) (Entry, error) {
	if r == nil || r.pool == nil {
		return Entry{}, fmt.Errorf("catalog repo not initialised")
	}
	tiers, err := encodeTiers(e.MarginTiers)
	if err != nil {
		return Entry{}, err
	}
	const query = `
UPDATE catalog_entries
SET name = $2, kind = $3, cost_price = $4, base_price = $5, sales_vat_rate = $6, margin_tiers = $7, cashback_eligible = $8, updated_at = now()
WHERE id = $1
RETURNING ` + entryColumns
	row := r.pool.QueryRow(ctx, query, e.ID, e.Name, string(e.Kind), e.CostPrice, e.BasePrice, e.SalesVATRate, tiers, e.CashbackEligible)
	updated, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	return updated, nil
}

// Get fetches one entry by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Entry, error) {
	if r == nil || r.pool == nil {
		return Entry{}, fmt.Errorf("catalog repo not initialised")
	}
	const query = `SELECT ` + entryColumns + ` FROM catalog_entries WHERE id = $1`
	entry, err := scanEntry(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	return entry, nil
}

// List returns entries ordered by name with limit/offset paging.
func (r *Repository) List(ctx context.Context, limit, offset int32) ([]Entry, int64, error) {
	if r == nil || r.pool == nil {
		return nil, 0, fmt.Errorf("catalog repo not initialised")
	}
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM catalog_entries`).Scan(&total); err != nil {
		return nil, 0, err
	}
	const query = `SELECT ` + entryColumns + ` FROM catalog_entries ORDER BY name LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}
	return entries, total, rows.Err()
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		e     Entry
		kind  string
		tiers []byte
	)
	if err := row.Scan(&e.ID, &e.Name, &kind, &e.CostPrice, &e.BasePrice, &e.SalesVATRate, &tiers, &e.CashbackEligible, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return Entry{}, err
	}
	e.Kind = pricing.Kind(kind)
	if len(tiers) > 0 {
		if err := json.Unmarshal(tiers, &e.MarginTiers); err != nil {
			return Entry{}, fmt.Errorf("decode margin tiers: %w", err)
		}
	}
	return e, nil
}

func encodeTiers(tiers []pricing.MarginTier) ([]byte, error) {
	if len(tiers) == 0 {
		return []byte("[]"), nil
	}
	data, err := json.Marshal(tiers)
	if err != nil {
		return nil, fmt.Errorf("encode margin tiers: %w", err)
	}
	return data, nil
}
