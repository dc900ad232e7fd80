package rest

import (
	"errors"
	"net/http"

	"github.com/gatherly/events-api/internal/domain"
	"github.com/gatherly/events-api/internal/transport/rest/response"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

type createOrderRequest struct {
	EventID     string `json:"event_id" validate:"required,uuid"`
	TicketCount int    `json:"ticket_count" validate:"min=0,max=10"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.invalid(w, r, err)
		return
	}
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid event_id", nil)
		return
	}

	quote, err := h.payments.CreateOrder(r.Context(), auth.UserID, eventID, req.TicketCount)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusCreated, map[string]any{
		"payment_id":       quote.Payment.ID,
		"gateway_order_id": quote.GatewayOrderID,
		"amount":           quote.AmountMinor, // minor units, what the checkout widget expects
		"currency":         quote.Currency,
		"key_id":           quote.KeyID,
		"breakdown": map[string]float64{
			"ticket_amount": quote.Breakdown.TicketAmount,
			"platform_fee":  quote.Breakdown.PlatformFee,
			"total":         quote.Breakdown.Total,
		},
	})
}

type verifyPaymentRequest struct {
	GatewayOrderID   string `json:"razorpay_order_id" validate:"required"`
	GatewayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	GatewaySignature string `json:"razorpay_signature" validate:"required"`
}

func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	var req verifyPaymentRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.invalid(w, r, err)
		return
	}

	p, completedNow, err := h.payments.VerifyPayment(r.Context(), traceID(r), auth.UserID,
		req.GatewayOrderID, req.GatewayPaymentID, req.GatewaySignature)
	if err != nil {
		if errors.Is(err, domain.ErrSignatureMismatch) {
			h.audit.PaymentFailed(r.Context(), auth.UserID, req.GatewayOrderID)
		}
		handleErr(w, r, err)
		return
	}

	// Replays of an already settled payment are not audited again.
	if completedNow {
		h.audit.PaymentCompleted(r.Context(), p.ID, auth.UserID, p.Amount)
	}
	response.Data(w, http.StatusOK, map[string]any{
		"payment_id": p.ID,
		"status":     p.Status,
		"amount":     p.Amount,
	})
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}
	paymentID, ok := pathUUID(w, r, "paymentID")
	if !ok {
		return
	}

	p, err := h.payments.Get(r.Context(), paymentID, auth.UserID)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, map[string]any{
		"payment_id":       p.ID,
		"gateway_order_id": p.GatewayOrderID,
		"status":           p.Status,
		"amount":           p.Amount,
		"currency":         p.Currency,
		"created_at":       p.CreatedAt,
	})
}
