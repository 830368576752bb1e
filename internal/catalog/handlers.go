package catalog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-cotiza/internal/common"
	"github.com/noah-isme/backend-cotiza/internal/pricing"
)

// Handler exposes catalog entry endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// NewHandler constructs a catalog handler with its own validator.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc, Validate: validator.New()}
}

type marginTierPayload struct {
	MinQty        int    `json:"minQty" validate:"gte=0"`
	MaxQty        int    `json:"maxQty" validate:"gtefield=MinQty"`
	MarginPercent string `json:"marginPercent" validate:"required"`
}

type entryPayload struct {
	Name             string              `json:"name" validate:"required,min=2,max=200"`
	Kind             string              `json:"kind" validate:"required,oneof=service product"`
	CostPrice        string              `json:"costPrice"`
	BasePrice        string              `json:"basePrice"`
	SalesVATRate     string              `json:"salesVatRate" validate:"required"`
	MarginTiers      []marginTierPayload `json:"marginTiers" validate:"dive"`
	CashbackEligible bool                `json:"cashbackEligible"`
}

// List returns paginated catalog entries.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	offset := int32((page - 1) * perPage)
	entries, total, err := h.Svc.List(r.Context(), int32(perPage), offset)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list catalog entries", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       entries,
		"pagination": common.NewPagination(page, perPage, int(total)),
	})
}

// Get returns one entry by id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "entryId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid entry id", nil)
		return
	}
	entry, err := h.Svc.Entry(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "catalog entry not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load catalog entry", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": entry})
}

// Create inserts a new catalog entry.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.decodeEntry(w, r)
	if !ok {
		return
	}
	created, err := h.Svc.Create(r.Context(), entry)
	if err != nil {
		h.writeEntryError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// Update replaces an existing catalog entry.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "entryId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid entry id", nil)
		return
	}
	entry, ok := h.decodeEntry(w, r)
	if !ok {
		return
	}
	entry.ID = id
	updated, err := h.Svc.Update(r.Context(), entry)
	if err != nil {
		h.writeEntryError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

func (h *Handler) decodeEntry(w http.ResponseWriter, r *http.Request) (Entry, bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return Entry{}, false
	}
	var payload entryPayload
	if !common.DecodeJSON(w, r, &payload) {
		return Entry{}, false
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "payload validation failed", err.Error())
		return Entry{}, false
	}
	entry := Entry{
		Name:             payload.Name,
		Kind:             pricing.Kind(payload.Kind),
		CashbackEligible: payload.CashbackEligible,
	}
	var err error
	if entry.CostPrice, err = decimalOrZero(payload.CostPrice); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid costPrice", nil)
		return Entry{}, false
	}
	if entry.BasePrice, err = decimalOrZero(payload.BasePrice); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid basePrice", nil)
		return Entry{}, false
	}
	if entry.SalesVATRate, err = decimalOrZero(payload.SalesVATRate); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid salesVatRate", nil)
		return Entry{}, false
	}
	for _, tier := range payload.MarginTiers {
		margin, err := decimal.NewFromString(tier.MarginPercent)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid marginPercent", nil)
			return Entry{}, false
		}
		entry.MarginTiers = append(entry.MarginTiers, pricing.MarginTier{
			MinQty:        tier.MinQty,
			MaxQty:        tier.MaxQty,
			MarginPercent: margin,
		})
	}
	return entry, true
}

func (h *Handler) writeEntryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEntryNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "catalog entry not found", nil)
	case errors.Is(err, ErrDuplicateName):
		common.JSONError(w, http.StatusConflict, "CONFLICT", "catalog entry name already exists", nil)
	case errors.Is(err, pricing.ErrUnknownKind):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "unknown catalog entry kind", nil)
	default:
		common.WriteError(w, err)
	}
}

func decimalOrZero(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}
