package rest

import (
	"errors"
	"net/http"

	"github.com/gatherly/events-api/internal/domain"
	appCtx "github.com/gatherly/events-api/internal/pkg/context"
	"github.com/gatherly/events-api/internal/transport/rest/response"
)

// handleErr maps domain errors onto the API contract: missing resources are
// 404, ownership failures 403, broken business rules 400, everything else 500.
func handleErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrEventNotFound):
		fail(w, r, http.StatusNotFound, "event.not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrClubNotFound):
		fail(w, r, http.StatusNotFound, "club.not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrRSVPNotFound):
		fail(w, r, http.StatusNotFound, "rsvp.not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrBookingNotFound):
		fail(w, r, http.StatusNotFound, "booking.not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrPaymentNotFound):
		fail(w, r, http.StatusNotFound, "payment.not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrPartnerNotFound):
		fail(w, r, http.StatusNotFound, "partner.not_found", err.Error(), nil)

	case errors.Is(err, domain.ErrNotOwner):
		fail(w, r, http.StatusForbidden, "auth.forbidden", err.Error(), nil)

	case errors.Is(err, domain.ErrIdempotencyKeyMismatch):
		fail(w, r, http.StatusConflict, "idempotency_key_mismatch", err.Error(), nil)

	case errors.Is(err, domain.ErrEventNotPublished):
		fail(w, r, http.StatusBadRequest, "event.not_open", err.Error(), nil)
	case errors.Is(err, domain.ErrEventStarted):
		fail(w, r, http.StatusBadRequest, "event.started", err.Error(), nil)
	case errors.Is(err, domain.ErrPaidEventRSVP):
		fail(w, r, http.StatusBadRequest, "event.paid_requires_booking", err.Error(), nil)
	case errors.Is(err, domain.ErrFreeEventBooking):
		fail(w, r, http.StatusBadRequest, "event.free_requires_rsvp", err.Error(), nil)
	case errors.Is(err, domain.ErrCapacityExceeded):
		fail(w, r, http.StatusBadRequest, "event.full", err.Error(), nil)
	case errors.Is(err, domain.ErrAlreadyConfirmed):
		fail(w, r, http.StatusBadRequest, "rsvp.already_confirmed", err.Error(), nil)
	case errors.Is(err, domain.ErrDuplicateBooking):
		fail(w, r, http.StatusBadRequest, "booking.duplicate", err.Error(), nil)
	case errors.Is(err, domain.ErrPaymentNotCompleted):
		fail(w, r, http.StatusBadRequest, "payment.not_completed", err.Error(), nil)
	case errors.Is(err, domain.ErrPaymentNotPending):
		fail(w, r, http.StatusBadRequest, "payment.not_pending", err.Error(), nil)
	case errors.Is(err, domain.ErrSignatureMismatch):
		fail(w, r, http.StatusBadRequest, "payment.verification_failed", err.Error(), nil)
	case errors.Is(err, domain.ErrAlreadyCancelled):
		fail(w, r, http.StatusBadRequest, "booking.already_cancelled", err.Error(), nil)
	case errors.Is(err, domain.ErrBookingNotCancelled):
		fail(w, r, http.StatusBadRequest, "booking.not_cancelled", err.Error(), nil)
	case errors.Is(err, domain.ErrNoRefundAvailable):
		fail(w, r, http.StatusBadRequest, "refund.not_available", err.Error(), nil)
	case errors.Is(err, domain.ErrCheckInTooEarly):
		fail(w, r, http.StatusBadRequest, "checkin.too_early", err.Error(), nil)
	case errors.Is(err, domain.ErrNotRSVPed):
		fail(w, r, http.StatusBadRequest, "checkin.no_rsvp", err.Error(), nil)
	case errors.Is(err, domain.ErrAlreadyCheckedIn):
		fail(w, r, http.StatusBadRequest, "checkin.duplicate", err.Error(), nil)
	case errors.Is(err, domain.ErrPartnerNotVerified):
		fail(w, r, http.StatusBadRequest, "partner.not_verified", err.Error(), nil)
	case errors.Is(err, domain.ErrBankDetailsMissing):
		fail(w, r, http.StatusBadRequest, "partner.bank_details_missing", err.Error(), nil)
	case errors.Is(err, domain.ErrPayoutBelowMin):
		fail(w, r, http.StatusBadRequest, "payout.below_minimum", err.Error(), nil)

	default:
		// Do not leak internal details.
		fail(w, r, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}

func fail(w http.ResponseWriter, r *http.Request, status int, code, message string, meta map[string]string) {
	reqID := appCtx.GetRequestID(r.Context())
	if reqID == "" {
		reqID = "no-request-id"
	}
	response.Fail(w, status, code, message, meta, reqID)
}
