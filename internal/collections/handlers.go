package collections

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-cotiza/internal/common"
	"github.com/noah-isme/backend-cotiza/internal/quote"
)

// Handler exposes payments and balances over HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// NewHandler constructs a collections handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc, Validate: validator.New()}
}

type paymentPayload struct {
	Amount      string `json:"amount" validate:"required"`
	ISRWithheld bool   `json:"isrWithheld"`
}

type voidPayload struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// RecordPayment handles POST /quotes/{quoteId}/payments.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	quoteID, ok := h.pathID(w, r, "quoteId")
	if !ok {
		return
	}
	var payload paymentPayload
	if !common.DecodeJSON(w, r, &payload) {
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "payload validation failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(payload.Amount)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid amount", nil)
		return
	}
	record, summary, err := h.Svc.RecordPayment(r.Context(), quoteID, amount, payload.ISRWithheld)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"data": map[string]any{
			"payment": record,
			"balance": summary,
		},
	})
}

// VoidPayment handles DELETE /payments/{paymentId}.
func (h *Handler) VoidPayment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := h.pathID(w, r, "paymentId")
	if !ok {
		return
	}
	var payload voidPayload
	if !common.DecodeJSON(w, r, &payload) {
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "payload validation failed", err.Error())
		return
	}
	record, summary, err := h.Svc.VoidPayment(r.Context(), paymentID, payload.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"payment": record,
			"balance": summary,
		},
	})
}

// Balance handles GET /quotes/{quoteId}/balance.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	quoteID, ok := h.pathID(w, r, "quoteId")
	if !ok {
		return
	}
	balance, err := h.Svc.Balance(r.Context(), quoteID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": balance})
}

// Portfolio handles GET /collections/portfolio.
func (h *Handler) Portfolio(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "collections service not configured", nil)
		return
	}
	stats, err := h.Svc.Portfolio(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": stats})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "collections service not configured", nil)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, quote.ErrQuoteNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "quote not found", nil)
	case errors.Is(err, ErrPaymentNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "payment not found", nil)
	case errors.Is(err, ErrPaymentVoided):
		common.JSONError(w, http.StatusConflict, "PAYMENT_VOIDED", "payment already voided", nil)
	case errors.Is(err, ErrQuoteNotPayable):
		common.JSONError(w, http.StatusConflict, "QUOTE_NOT_PAYABLE", "quote does not accept payments", nil)
	case errors.Is(err, ErrNegativePayment):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "payment amount must be positive", nil)
	case errors.Is(err, ErrOverpayment):
		common.JSONError(w, http.StatusUnprocessableEntity, "OVERPAYMENT", "payment exceeds remaining balance", nil)
	default:
		common.WriteError(w, err)
	}
}
