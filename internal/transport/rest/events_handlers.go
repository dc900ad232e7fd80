package rest

import (
	"net/http"
	"strings"
	"time"

	"github.com/gatherly/events-api/internal/domain"
	"github.com/gatherly/events-api/internal/service"
	"github.com/gatherly/events-api/internal/transport/rest/response"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

type createEventRequest struct {
	ClubID             string  `json:"club_id" validate:"required,uuid"`
	Title              string  `json:"title" validate:"required,min=3,max=200"`
	Description        string  `json:"description" validate:"max=5000"`
	EventType          string  `json:"event_type" validate:"required,oneof=free paid"`
	StartsAt           string  `json:"starts_at" validate:"required"`
	EndsAt             string  `json:"ends_at"`
	LocationName       string  `json:"location_name" validate:"max=300"`
	Capacity           int     `json:"capacity" validate:"min=0,max=100000"`
	Price              float64 `json:"price" validate:"min=0"`
	CancellationPolicy string  `json:"cancellation_policy" validate:"max=2000"`
	Publish            bool    `json:"publish"`
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}

	var req createEventRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.invalid(w, r, err)
		return
	}

	clubID, err := uuid.Parse(req.ClubID)
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid club_id", nil)
		return
	}
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid starts_at", map[string]string{
			"starts_at": "must be RFC3339",
		})
		return
	}
	var endsAt *time.Time
	if strings.TrimSpace(req.EndsAt) != "" {
		t, err := time.Parse(time.RFC3339, req.EndsAt)
		if err != nil {
			fail(w, r, http.StatusBadRequest, "request.invalid", "invalid ends_at", nil)
			return
		}
		tt := t.UTC()
		endsAt = &tt
	}

	ev, err := h.events.Create(r.Context(), auth.UserID, service.CreateEventInput{
		ClubID:             clubID,
		Title:              req.Title,
		Description:        req.Description,
		Type:               domain.EventType(req.EventType),
		StartsAt:           startsAt.UTC(),
		EndsAt:             endsAt,
		LocationName:       req.LocationName,
		Capacity:           req.Capacity,
		Price:              req.Price,
		CancellationPolicy: req.CancellationPolicy,
		Publish:            req.Publish,
	})
	if err != nil {
		handleErr(w, r, err)
		return
	}

	response.Data(w, http.StatusCreated, toEventResponse(ev))
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}

	ev, err := h.events.Get(r.Context(), eventID)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, toEventResponse(ev))
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var f domain.EventFilter
	if s := strings.TrimSpace(q.Get("club_id")); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			fail(w, r, http.StatusBadRequest, "request.invalid", "invalid club_id", nil)
			return
		}
		f.ClubID = &id
	}
	if s := strings.TrimSpace(q.Get("type")); s != "" {
		t := domain.EventType(s)
		if t != domain.EventFree && t != domain.EventPaid {
			fail(w, r, http.StatusBadRequest, "request.invalid", "invalid type", nil)
			return
		}
		f.Type = &t
	}
	f.Upcoming = q.Get("upcoming") == "true"
	f.Featured = q.Get("featured") == "true"

	limit := parseLimit(q.Get("limit"))
	offset := parseOffset(q.Get("offset"))

	events, total, err := h.events.List(r.Context(), f, limit, offset)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	items := make([]eventResponse, 0, len(events))
	for _, ev := range events {
		items = append(items, toEventResponse(ev))
	}
	response.Data(w, http.StatusOK, map[string]any{
		"items": items,
		"total": total,
	})
}

type updateEventRequest struct {
	Title              *string  `json:"title" validate:"omitempty,min=3,max=200"`
	Description        *string  `json:"description" validate:"omitempty,max=5000"`
	StartsAt           *string  `json:"starts_at"`
	EndsAt             *string  `json:"ends_at"`
	LocationName       *string  `json:"location_name" validate:"omitempty,max=300"`
	Capacity           *int     `json:"capacity" validate:"omitempty,min=1,max=100000"`
	Price              *float64 `json:"price" validate:"omitempty,min=0"`
	CancellationPolicy *string  `json:"cancellation_policy" validate:"omitempty,max=2000"`
	Status             *string  `json:"status" validate:"omitempty,oneof=draft published"`
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}

	var req updateEventRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.invalid(w, r, err)
		return
	}

	upd := domain.EventUpdate{
		Title:              req.Title,
		Description:        req.Description,
		LocationName:       req.LocationName,
		Capacity:           req.Capacity,
		Price:              req.Price,
		CancellationPolicy: req.CancellationPolicy,
	}
	if req.StartsAt != nil {
		t, err := time.Parse(time.RFC3339, *req.StartsAt)
		if err != nil {
			fail(w, r, http.StatusBadRequest, "request.invalid", "invalid starts_at", nil)
			return
		}
		tt := t.UTC()
		upd.StartsAt = &tt
	}
	if req.EndsAt != nil {
		t, err := time.Parse(time.RFC3339, *req.EndsAt)
		if err != nil {
			fail(w, r, http.StatusBadRequest, "request.invalid", "invalid ends_at", nil)
			return
		}
		tt := t.UTC()
		upd.EndsAt = &tt
	}
	if req.Status != nil {
		st := domain.EventStatus(*req.Status)
		upd.Status = &st
	}

	ev, err := h.events.Update(r.Context(), eventID, auth.UserID, auth.Role, upd)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, toEventResponse(ev))
}

func (h *Handler) CancelEvent(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}

	if err := h.events.Cancel(r.Context(), traceID(r), eventID, auth.UserID, auth.Role); err != nil {
		handleErr(w, r, err)
		return
	}

	h.audit.EventCancelled(r.Context(), eventID, auth.UserID)
	response.Data(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *Handler) Attendees(w http.ResponseWriter, r *http.Request) {
	auth, ok := mustAuth(w, r)
	if !ok {
		return
	}
	eventID, ok := pathUUID(w, r, "eventID")
	if !ok {
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"))
	offset := parseOffset(r.URL.Query().Get("offset"))

	items, total, err := h.events.Attendees(r.Context(), eventID, auth.UserID, auth.Role, limit, offset)
	if err != nil {
		handleErr(w, r, err)
		return
	}

	type attendee struct {
		UserID      uuid.UUID  `json:"user_id"`
		CheckedIn   bool       `json:"checked_in"`
		CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
		RSVPAt      time.Time  `json:"rsvp_at"`
	}
	out := make([]attendee, 0, len(items))
	for _, a := range items {
		out = append(out, attendee{
			UserID:      a.UserID,
			CheckedIn:   a.CheckedIn,
			CheckedInAt: a.CheckedInAt,
			RSVPAt:      a.RSVPAt,
		})
	}
	response.Data(w, http.StatusOK, map[string]any{
		"items": out,
		"total": total,
	})
}
