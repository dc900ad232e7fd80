package rest

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gatherly/events-api/internal/audit"
	"github.com/gatherly/events-api/internal/domain"
	appCtx "github.com/gatherly/events-api/internal/pkg/context"
	"github.com/gatherly/events-api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type Handler struct {
	events        *service.EventService
	participation *service.ParticipationService
	bookings      *service.BookingService
	payments      *service.PaymentService
	partners      *service.PartnerService
	audit         *audit.Logger
	validate      *validator.Validate
}

func NewHandler(
	events *service.EventService,
	participation *service.ParticipationService,
	bookings *service.BookingService,
	payments *service.PaymentService,
	partners *service.PartnerService,
	auditLog *audit.Logger,
) *Handler {
	return &Handler{
		events:        events,
		participation: participation,
		bookings:      bookings,
		payments:      payments,
		partners:      partners,
		audit:         auditLog,
		validate:      validator.New(),
	}
}

func traceID(r *http.Request) string {
	tid := appCtx.GetRequestID(r.Context())
	if tid == "" {
		tid = "no-request-id"
	}
	return tid
}

// idempotencyKey is REQUIRED for seat-mutating writes.
func idempotencyKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := r.Header.Get("X-Idempotency-Key")
	if key == "" {
		key = r.Header.Get("Idempotency-Key") // legacy fallback
	}
	if key == "" {
		fail(w, r, http.StatusBadRequest, "idempotency_key.required",
			"X-Idempotency-Key header is required for this operation", nil)
		return "", false
	}
	return key, true
}

func mustAuth(w http.ResponseWriter, r *http.Request) (AuthContext, bool) {
	auth, ok := GetAuth(r.Context())
	if !ok {
		fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized", nil)
	}
	return auth, ok
}

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		fail(w, r, http.StatusBadRequest, "request.invalid", "invalid "+param, map[string]string{
			param: "must be a valid uuid",
		})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) invalid(w http.ResponseWriter, r *http.Request, err error) {
	meta := map[string]string{}
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			meta[strings.ToLower(fe.Field())] = "failed on '" + fe.Tag() + "'"
		}
	}
	fail(w, r, http.StatusBadRequest, "request.invalid", "validation failed", meta)
}

func parseLimit(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 20
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 20
	}
	if n < 1 {
		return 1
	}
	if n > 100 {
		return 100
	}
	return n
}

func parseOffset(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

type eventResponse struct {
	ID                 uuid.UUID          `json:"id"`
	HostID             uuid.UUID          `json:"host_id"`
	ClubID             uuid.UUID          `json:"club_id"`
	Title              string             `json:"title"`
	Description        string             `json:"description,omitempty"`
	Status             domain.EventStatus `json:"status"`
	Type               domain.EventType   `json:"event_type"`
	StartsAt           time.Time          `json:"starts_at"`
	EndsAt             *time.Time         `json:"ends_at,omitempty"`
	LocationName       string             `json:"location_name,omitempty"`
	Capacity           int                `json:"capacity"`
	SpotsRemaining     int                `json:"spots_remaining"`
	Price              float64            `json:"price"`
	CancellationPolicy string             `json:"cancellation_policy,omitempty"`
	IsFeatured         bool               `json:"is_featured"`
	CreatedAt          time.Time          `json:"created_at"`
}

func toEventResponse(ev domain.Event) eventResponse {
	return eventResponse{
		ID:                 ev.ID,
		HostID:             ev.HostID,
		ClubID:             ev.ClubID,
		Title:              ev.Title,
		Description:        ev.Description,
		Status:             ev.Status,
		Type:               ev.Type,
		StartsAt:           ev.StartsAt,
		EndsAt:             ev.EndsAt,
		LocationName:       ev.LocationName,
		Capacity:           ev.Capacity,
		SpotsRemaining:     ev.SpotsRemaining(),
		Price:              ev.Price,
		CancellationPolicy: ev.CancellationPolicy,
		IsFeatured:         ev.IsFeatured,
		CreatedAt:          ev.CreatedAt,
	}
}
