package quote

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-cotiza/internal/catalog"
	"github.com/noah-isme/backend-cotiza/internal/common"
	"github.com/noah-isme/backend-cotiza/internal/pricing"
)

// Handler exposes the quote lifecycle over HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// NewHandler constructs a quote handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc, Validate: validator.New()}
}

type repricePayload struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

type pendingLinesPayload struct {
	Lines []LineInput `json:"lines" validate:"required,min=1,dive"`
}

// Create handles POST /quotes.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	var input CreateInput
	if !common.DecodeJSON(w, r, &input) {
		return
	}
	if err := h.Validate.Struct(input); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "payload validation failed", err.Error())
		return
	}
	view, err := h.Svc.Create(r.Context(), input)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": view})
}

// Get handles GET /quotes/{quoteId}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// AddPendingLines handles POST /quotes/{quoteId}/pending-lines.
func (h *Handler) AddPendingLines(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	var payload pendingLinesPayload
	if !common.DecodeJSON(w, r, &payload) {
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "payload validation failed", err.Error())
		return
	}
	view, err := h.Svc.AddPendingLines(r.Context(), id, payload.Lines)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// ApprovePending handles POST /quotes/{quoteId}/pending-lines/approve.
func (h *Handler) ApprovePending(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.ApprovePending(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// RejectPending handles DELETE /quotes/{quoteId}/pending-lines.
func (h *Handler) RejectPending(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.RejectPending(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// RepriceLine handles PATCH /quotes/{quoteId}/lines/{lineId}.
func (h *Handler) RepriceLine(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	lineID, err := uuid.Parse(chi.URLParam(r, "lineId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid line id", nil)
		return
	}
	var payload repricePayload
	if !common.DecodeJSON(w, r, &payload) {
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "payload validation failed", err.Error())
		return
	}
	view, err := h.Svc.RepriceLine(r.Context(), id, lineID, payload.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// Cancel handles POST /quotes/{quoteId}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.quoteID(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.Cancel(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

func (h *Handler) quoteID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "quoteId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid quote id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrQuoteNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "quote not found", nil)
	case errors.Is(err, ErrLineNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "quote line not found", nil)
	case errors.Is(err, catalog.ErrEntryNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "catalog entry not found", nil)
	case errors.Is(err, ErrQuoteClosed):
		common.JSONError(w, http.StatusConflict, "QUOTE_CLOSED", "quote is no longer open", nil)
	case errors.Is(err, pricing.ErrStaleReprice):
		common.JSONError(w, http.StatusConflict, "STALE_REPRICE", "quote is locked; lines cannot be repriced", nil)
	case errors.Is(err, ErrNoPendingLines):
		common.JSONError(w, http.StatusConflict, "NO_PENDING_LINES", "quote has no pending lines", nil)
	case errors.Is(err, ErrNoLines):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "at least one line is required", nil)
	case errors.Is(err, pricing.ErrInvalidQuantity):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "quantity must be positive", nil)
	case errors.Is(err, pricing.ErrInvalidCatalogData):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_CATALOG_DATA", "catalog entry has no usable price", nil)
	case errors.Is(err, pricing.ErrUnknownKind):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_CATALOG_DATA", "unknown catalog entry kind", nil)
	default:
		common.WriteError(w, err)
	}
}
