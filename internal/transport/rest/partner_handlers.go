package rest

import (
	"net/http"

	"github.com/gatherly/events-api/internal/transport/rest/response"
)

func (h *Handler) PartnerAnalytics(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	a, err := h.partners.Analytics(r.Context(), auth.UserID)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, map[string]any{
		"events": map[string]int{
			"total":     a.EventsTotal,
			"completed": a.EventsCompleted,
			"upcoming":  a.EventsUpcoming,
		},
		"bookings": map[string]int{
			"total":     a.BookingsTotal,
			"confirmed": a.BookingsConfirmed,
			"cancelled": a.BookingsCancelled,
		},
		"revenue":        a.Revenue,
		"pending_payout": a.PendingPayout,
	})
}

func (h *Handler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	payouts, err := h.partners.ListPayouts(r.Context(), auth.UserID)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, map[string]any{"items": payouts})
}

func (h *Handler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	payout, err := h.partners.RequestPayout(r.Context(), traceID(r), auth.UserID)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	h.audit.PayoutRequested(r.Context(), payout.ID, payout.PartnerID, payout.Amount)
	response.Data(w, http.StatusCreated, map[string]any{
		"payout_id":    payout.ID,
		"amount":       payout.Amount,
		"status":       payout.Status,
		"requested_at": payout.RequestedAt,
	})
}
