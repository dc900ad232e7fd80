package rest

import (
	"net/http"
	"strings"
	"time"

	"github.com/gatherly/events-api/internal/domain"
	"github.com/gatherly/events-api/internal/transport/rest/response"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

type createBookingRequest struct {
	EventID     string `json:"event_id" validate:"required,uuid"`
	PaymentID   string `json:"payment_id" validate:"required,uuid"`
	TicketCount int    `json:"ticket_count" validate:"min=0,max=10"`
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}
	key, ok := idempotencyKey(w, r)
	if !ok {
		return
	}

	var req createBookingRequest
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
	paymentID, err := uuid.Parse(req.PaymentID)
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid payment_id", nil)
		return
	}

	b, err := h.bookings.Create(r.Context(), traceID(r), key, auth.UserID, eventID, paymentID, req.TicketCount)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	h.audit.BookingConfirmed(r.Context(), b.ID, b.EventID, auth.UserID, b.Amount)
	response.Data(w, http.StatusCreated, toBookingResponse(b))
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}
	bookingID, ok := pathUUID(w, r, "bookingID")
	if !ok {
		return
	}
	key, ok := idempotencyKey(w, r)
	if !ok {
		return
	}

	quote, err := h.bookings.Cancel(r.Context(), traceID(r), key, auth.UserID, bookingID)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	h.audit.BookingCancelled(r.Context(), bookingID, auth.UserID, quote.Percent)
	response.Data(w, http.StatusOK, map[string]any{
		"status":         "cancelled",
		"refund_percent": quote.Percent,
		"refund_amount":  quote.Amount,
	})
}

type refundRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *Handler) RequestRefund(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}
	bookingID, ok := pathUUID(w, r, "bookingID")
	if !ok {
		return
	}

	var req refundRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
			return
		}
		if err := h.validate.Struct(req); err != nil {
			h.invalid(w, r, err)
			return
		}
	}

	quote, err := h.payments.RequestRefund(r.Context(), traceID(r), bookingID, auth.UserID, strings.TrimSpace(req.Reason))
	if err != nil {
		handleErr(w, r, err)
		return
	}

	h.audit.RefundIssued(r.Context(), bookingID, auth.UserID, quote.Amount, quote.Percent)
	response.Data(w, http.StatusOK, map[string]any{
		"status":         "refunded",
		"refund_percent": quote.Percent,
		"refund_amount":  quote.Amount,
	})
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}
	bookingID, ok := pathUUID(w, r, "bookingID")
	if !ok {
		return
	}

	b, err := h.bookings.Get(r.Context(), bookingID, auth.UserID)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, toBookingResponse(b))
}

func (h *Handler) MyBookings(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	var status *domain.BookingStatus
	if s := strings.TrimSpace(q.Get("status")); s != "" {
		st := domain.BookingStatus(s)
		switch st {
		case domain.BookingConfirmed, domain.BookingCancelled, domain.BookingRefunded, domain.BookingAttended:
			status = &st
		default:
			fail(w, r, http.StatusBadRequest, "request.invalid", "invalid status", nil)
			return
		}
	}

	limit := parseLimit(q.Get("limit"))
	offset := parseOffset(q.Get("offset"))

	items, total, err := h.bookings.ListMine(r.Context(), auth.UserID, status, limit, offset)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	out := make([]bookingResponse, 0, len(items))
	for _, b := range items {
		out = append(out, toBookingResponse(b))
	}
	response.Data(w, http.StatusOK, map[string]any{
		"items": out,
		"total": total,
	})
}

type bookingResponse struct {
	ID          uuid.UUID            `json:"id"`
	EventID     uuid.UUID            `json:"event_id"`
	PaymentID   uuid.UUID            `json:"payment_id"`
	Status      domain.BookingStatus `json:"status"`
	Amount      float64              `json:"amount"`
	PlatformFee float64              `json:"platform_fee"`
	TicketCount int                  `json:"ticket_count"`
	CancelledAt *time.Time           `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

func toBookingResponse(b domain.Booking) bookingResponse {
	return bookingResponse{
		ID:          b.ID,
		EventID:     b.EventID,
		PaymentID:   b.PaymentID,
		Status:      b.Status,
		Amount:      b.Amount,
		PlatformFee: b.PlatformFee,
		TicketCount: b.TicketCount,
		CancelledAt: b.CancelledAt,
		CreatedAt:   b.CreatedAt,
	}
}
