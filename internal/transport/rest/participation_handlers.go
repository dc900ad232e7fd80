package rest

import (
	"net/http"
	"time"

	"github.com/gatherly/events-api/internal/domain"
	"github.com/gatherly/events-api/internal/transport/rest/response"
	"github.com/google/uuid"
)

func (h *Handler) RSVP(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}
	key, ok := idempotencyKey(w, r)
	if !ok {
		return
	}

	status, err := h.participation.RSVP(r.Context(), traceID(r), key, eventID, auth.UserID)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	h.audit.RSVPCreated(r.Context(), eventID, auth.UserID, status)
	response.Data(w, http.StatusOK, map[string]string{
		"status": string(status), // "confirmed" | "waitlist"
	})
}

func (h *Handler) CancelRSVP(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}
	key, ok := idempotencyKey(w, r)
	if !ok {
		return
	}

	if err := h.participation.Cancel(r.Context(), traceID(r), key, eventID, auth.UserID); err != nil {
		handleErr(w, r, err)
		return
	}

	h.audit.RSVPCancelled(r.Context(), eventID, auth.UserID)
	response.Data(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *Handler) GetMyParticipation(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}

	rec, err := h.participation.GetMyParticipation(r.Context(), eventID, auth.UserID)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, map[string]any{
		"event_id":      rec.EventID,
		"user_id":       rec.UserID,
		"status":        rec.Status,
		"checked_in":    rec.CheckedIn,
		"checked_in_at": rec.CheckedInAt,
		"rsvp_at":       rec.CreatedAt,
	})
}

func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}

	if err := h.participation.CheckIn(r.Context(), traceID(r), eventID, auth.UserID); err != nil {
		handleErr(w, r, err)
		return
	}

	h.audit.CheckedIn(r.Context(), eventID, auth.UserID)
	response.Data(w, http.StatusOK, map[string]string{"status": "checked_in"})
}

func (h *Handler) MyRSVPs(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"))
	offset := parseOffset(r.URL.Query().Get("offset"))

	items, total, err := h.participation.ListMyRSVPs(r.Context(), auth.UserID, limit, offset)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	type rsvpItem struct {
		EventID     uuid.UUID         `json:"event_id"`
		Status      domain.RSVPStatus `json:"status"`
		CheckedIn   bool              `json:"checked_in"`
		CheckedInAt *time.Time        `json:"checked_in_at,omitempty"`
		RSVPAt      time.Time         `json:"rsvp_at"`
	}
	out := make([]rsvpItem, 0, len(items))
	for _, rec := range items {
		out = append(out, rsvpItem{
			EventID:     rec.EventID,
			Status:      rec.Status,
			CheckedIn:   rec.CheckedIn,
			CheckedInAt: rec.CheckedInAt,
			RSVPAt:      rec.CreatedAt,
		})
	}
	response.Data(w, http.StatusOK, map[string]any{
		"items": out,
		"total": total,
	})
}
