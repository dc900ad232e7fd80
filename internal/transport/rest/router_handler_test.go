package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gatherly/events-api/internal/audit"
	"github.com/gatherly/events-api/internal/domain"
	"github.com/gatherly/events-api/internal/security"
	"github.com/gatherly/events-api/internal/service"
	"github.com/gatherly/events-api/internal/transport/rest/response"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	claims security.TokenClaims
	err    error
}

func (f fakeVerifier) VerifyAccessToken(token string) (security.TokenClaims, error) {
	return f.claims, f.err
}

type fakeCache struct {
	allow bool
	snaps map[uuid.UUID]domain.EventSnapshot
}

func newFakeCache() *fakeCache {
	return &fakeCache{allow: true, snaps: map[uuid.UUID]domain.EventSnapshot{}}
}

func (c *fakeCache) GetEventSnapshot(ctx context.Context, eventID uuid.UUID) (domain.EventSnapshot, error) {
	snap, ok := c.snaps[eventID]
	if !ok {
		return domain.EventSnapshot{}, domain.ErrCacheMiss
	}
	return snap, nil
}

func (c *fakeCache) SetEventSnapshot(ctx context.Context, eventID uuid.UUID, snap domain.EventSnapshot) error {
	c.snaps[eventID] = snap
	return nil
}

func (c *fakeCache) AllowRequest(ctx context.Context, ip string, limit int, window time.Duration) (bool, error) {
	return c.allow, nil
}

var errNotImpl = errors.New("not implemented")

type fakeEventRepo struct {
	getFn    func(ctx context.Context, id uuid.UUID) (domain.Event, error)
	updateFn func(ctx context.Context, id uuid.UUID, upd domain.EventUpdate) (domain.Event, error)
	cancelFn func(ctx context.Context, traceID string, id uuid.UUID) error
}

func (r *fakeEventRepo) CreateEvent(ctx context.Context, ev *domain.Event) error { return errNotImpl }
func (r *fakeEventRepo) GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	if r.getFn == nil {
		return domain.Event{}, errNotImpl
	}
	return r.getFn(ctx, id)
}
func (r *fakeEventRepo) ListEvents(ctx context.Context, f domain.EventFilter, limit, offset int) ([]domain.Event, int, error) {
	return nil, 0, errNotImpl
}
func (r *fakeEventRepo) UpdateEvent(ctx context.Context, id uuid.UUID, upd domain.EventUpdate) (domain.Event, error) {
	if r.updateFn == nil {
		return domain.Event{}, errNotImpl
	}
	return r.updateFn(ctx, id, upd)
}
func (r *fakeEventRepo) CancelEvent(ctx context.Context, traceID string, id uuid.UUID) error {
	if r.cancelFn == nil {
		return errNotImpl
	}
	return r.cancelFn(ctx, traceID, id)
}
func (r *fakeEventRepo) ListAttendees(ctx context.Context, eventID uuid.UUID, limit, offset int) ([]domain.Attendee, int, error) {
	return nil, 0, errNotImpl
}
func (r *fakeEventRepo) CompleteEndedEvents(ctx context.Context, now time.Time) (int64, error) {
	return 0, errNotImpl
}

type fakeParticipationRepo struct {
	rsvpFn   func(ctx context.Context, traceID, key string, eventID, userID uuid.UUID) (domain.RSVPStatus, error)
	cancelFn func(ctx context.Context, traceID, key string, eventID, userID uuid.UUID) error
}

func (r *fakeParticipationRepo) RSVP(ctx context.Context, traceID, key string, eventID, userID uuid.UUID) (domain.RSVPStatus, error) {
	if r.rsvpFn == nil {
		return "", errNotImpl
	}
	return r.rsvpFn(ctx, traceID, key, eventID, userID)
}
func (r *fakeParticipationRepo) CancelRSVP(ctx context.Context, traceID, key string, eventID, userID uuid.UUID) error {
	if r.cancelFn == nil {
		return errNotImpl
	}
	return r.cancelFn(ctx, traceID, key, eventID, userID)
}
func (r *fakeParticipationRepo) GetRSVP(ctx context.Context, eventID, userID uuid.UUID) (domain.RSVP, error) {
	return domain.RSVP{}, errNotImpl
}
func (r *fakeParticipationRepo) CheckIn(ctx context.Context, traceID string, eventID, userID uuid.UUID, now time.Time) error {
	return errNotImpl
}
func (r *fakeParticipationRepo) ListMyRSVPs(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.RSVP, int, error) {
	return []domain.RSVP{}, 0, nil
}

type fakeBookingRepo struct{}

func (r *fakeBookingRepo) CreateBooking(ctx context.Context, tid, key string, uid, eid, pid uuid.UUID, n int) (domain.Booking, error) {
	return domain.Booking{}, errNotImpl
}
func (r *fakeBookingRepo) CancelBooking(ctx context.Context, tid, key string, uid, bid uuid.UUID, now time.Time) (domain.RefundQuote, error) {
	return domain.RefundQuote{}, errNotImpl
}
func (r *fakeBookingRepo) GetBooking(ctx context.Context, bid, uid uuid.UUID) (domain.Booking, error) {
	return domain.Booking{}, errNotImpl
}
func (r *fakeBookingRepo) ListMyBookings(ctx context.Context, uid uuid.UUID, status *domain.BookingStatus, limit, offset int) ([]domain.Booking, int, error) {
	return []domain.Booking{}, 0, nil
}

type fakePaymentRepo struct {
	byOrderFn    func(ctx context.Context, orderID string, uid uuid.UUID) (domain.Payment, error)
	markFailedFn func(ctx context.Context, id uuid.UUID) error
}

func (r *fakePaymentRepo) InsertPending(ctx context.Context, p *domain.Payment) error {
	return errNotImpl
}
func (r *fakePaymentRepo) GetPayment(ctx context.Context, id, uid uuid.UUID) (domain.Payment, error) {
	return domain.Payment{}, errNotImpl
}
func (r *fakePaymentRepo) GetByOrderID(ctx context.Context, orderID string, uid uuid.UUID) (domain.Payment, error) {
	if r.byOrderFn == nil {
		return domain.Payment{}, errNotImpl
	}
	return r.byOrderFn(ctx, orderID, uid)
}
func (r *fakePaymentRepo) MarkCompleted(ctx context.Context, tid string, id uuid.UUID, paymentID, sig string) error {
	return errNotImpl
}
func (r *fakePaymentRepo) MarkFailed(ctx context.Context, id uuid.UUID) error {
	if r.markFailedFn == nil {
		return errNotImpl
	}
	return r.markFailedFn(ctx, id)
}
func (r *fakePaymentRepo) RefundBooking(ctx context.Context, tid string, bid, uid uuid.UUID, reason string) (domain.RefundQuote, error) {
	return domain.RefundQuote{}, errNotImpl
}

type fakePartnerRepo struct{}

func (r *fakePartnerRepo) GetPartnerByUser(ctx context.Context, uid uuid.UUID) (domain.Partner, error) {
	return domain.Partner{}, domain.ErrPartnerNotFound
}
func (r *fakePartnerRepo) Analytics(ctx context.Context, hostID uuid.UUID) (domain.PartnerAnalytics, error) {
	return domain.PartnerAnalytics{}, errNotImpl
}
func (r *fakePartnerRepo) ListPayouts(ctx context.Context, partnerID uuid.UUID) ([]domain.Payout, error) {
	return nil, errNotImpl
}
func (r *fakePartnerRepo) RequestPayout(ctx context.Context, tid string, partner domain.Partner, hostID uuid.UUID) (domain.Payout, error) {
	return domain.Payout{}, errNotImpl
}

type fakeGateway struct {
	verifyFn func(orderID, paymentID, signature string) bool
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes domain.OrderNotes) (domain.GatewayOrder, error) {
	return domain.GatewayOrder{}, errNotImpl
}
func (g *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	if g.verifyFn == nil {
		return false
	}
	return g.verifyFn(orderID, paymentID, signature)
}
func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

type testDeps struct {
	events        *fakeEventRepo
	participation *fakeParticipationRepo
	bookings      *fakeBookingRepo
	payments      *fakePaymentRepo
	partners      *fakePartnerRepo
	gateway       *fakeGateway
	cache         *fakeCache
	rlDisabled    bool
}

func defaultDeps() *testDeps {
	return &testDeps{
		events:        &fakeEventRepo{},
		participation: &fakeParticipationRepo{},
		bookings:      &fakeBookingRepo{},
		payments:      &fakePaymentRepo{},
		partners:      &fakePartnerRepo{},
		gateway:       &fakeGateway{},
		cache:         newFakeCache(),
	}
}

func newTestRouter(d *testDeps, claims security.TokenClaims) http.Handler {
	h := NewHandler(
		service.NewEventService(d.events, d.cache),
		service.NewParticipationService(d.participation, d.cache),
		service.NewBookingService(d.bookings, d.cache),
		service.NewPaymentService(d.events, d.payments, d.gateway, "INR"),
		service.NewPartnerService(d.partners),
		audit.New(zerolog.Nop()),
	)
	return NewRouter(RouterDeps{
		Cache:             d.cache,
		Handler:           h,
		Verifier:          fakeVerifier{claims: claims},
		JWTIssuer:         claims.Issuer,
		RateLimitDisabled: d.rlDisabled,
	})
}

func userClaims(uid uuid.UUID) security.TokenClaims {
	return security.TokenClaims{UserID: uid.String(), Role: "user", Issuer: "auth-service"}
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) response.ErrorBody {
	t.Helper()
	var errBody response.ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errBody))
	return errBody
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	m, ok := env.Data.(map[string]any)
	require.True(t, ok, "data must be an object")
	return m
}

func TestNewRouter_PanicsOnNilDeps(t *testing.T) {
	d := defaultDeps()
	h := NewHandler(
		service.NewEventService(d.events, d.cache),
		service.NewParticipationService(d.participation, d.cache),
		service.NewBookingService(d.bookings, d.cache),
		service.NewPaymentService(d.events, d.payments, d.gateway, "INR"),
		service.NewPartnerService(d.partners),
		audit.New(zerolog.Nop()),
	)

	require.Panics(t, func() {
		_ = NewRouter(RouterDeps{Cache: nil, Handler: h, Verifier: fakeVerifier{}, JWTIssuer: "x"})
	})
	require.Panics(t, func() {
		_ = NewRouter(RouterDeps{Cache: d.cache, Handler: nil, Verifier: fakeVerifier{}, JWTIssuer: "x"})
	})
	require.Panics(t, func() {
		_ = NewRouter(RouterDeps{Cache: d.cache, Handler: h, Verifier: nil, JWTIssuer: "x"})
	})
}

func TestRouter_RSVP_RequiresIdempotencyKey(t *testing.T) {
	d := defaultDeps()
	uid := uuid.New()
	r := newTestRouter(d, userClaims(uid))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/"+uuid.NewString()+"/rsvp", nil)
	req.Header.Set("Authorization", "Bearer ok")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	errBody := decodeError(t, rr)
	require.Equal(t, "idempotency_key.required", errBody.Error.Code)
}

func TestRouter_RSVP_Waitlisted_200(t *testing.T) {
	d := defaultDeps()
	ev := uuid.New()
	uid := uuid.New()

	d.participation.rsvpFn = func(ctx context.Context, traceID, key string, eventID, userID uuid.UUID) (domain.RSVPStatus, error) {
		require.Equal(t, ev, eventID)
		require.Equal(t, uid, userID)
		require.Equal(t, "key-1", key)
		return domain.RSVPWaitlist, nil
	}

	r := newTestRouter(d, userClaims(uid))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/"+ev.String()+"/rsvp", nil)
	req.Header.Set("Authorization", "Bearer ok")
	req.Header.Set("X-Idempotency-Key", "key-1")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	m := decodeData(t, rr)
	require.Equal(t, "waitlist", m["status"])
}

func TestRouter_RSVP_PaidEvent_400(t *testing.T) {
	d := defaultDeps()
	uid := uuid.New()

	d.participation.rsvpFn = func(ctx context.Context, traceID, key string, eventID, userID uuid.UUID) (domain.RSVPStatus, error) {
		return "", domain.ErrPaidEventRSVP
	}

	r := newTestRouter(d, userClaims(uid))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/"+uuid.NewString()+"/rsvp", nil)
	req.Header.Set("Authorization", "Bearer ok")
	req.Header.Set("X-Idempotency-Key", "key-1")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	errBody := decodeError(t, rr)
	require.Equal(t, "event.paid_requires_booking", errBody.Error.Code)
}

func TestRouter_GetEvent_NotFound_404(t *testing.T) {
	d := defaultDeps()
	uid := uuid.New()

	d.events.getFn = func(ctx context.Context, id uuid.UUID) (domain.Event, error) {
		return domain.Event{}, domain.ErrEventNotFound
	}

	r := newTestRouter(d, userClaims(uid))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer ok")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
	errBody := decodeError(t, rr)
	require.Equal(t, "event.not_found", errBody.Error.Code)
}

func TestRouter_UpdateEvent_NotOwner_403(t *testing.T) {
	d := defaultDeps()
	uid := uuid.New()
	ev := uuid.New()

	d.events.getFn = func(ctx context.Context, id uuid.UUID) (domain.Event, error) {
		return domain.Event{ID: ev, HostID: uuid.New(), Status: domain.EventPublished}, nil
	}

	r := newTestRouter(d, userClaims(uid))

	body := `{"title":"new title"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/events/"+ev.String(), bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer ok")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusForbidden, rr.Code)
	errBody := decodeError(t, rr)
	require.Equal(t, "auth.forbidden", errBody.Error.Code)
}

func TestRouter_VerifyPayment_BadSignature_400(t *testing.T) {
	d := defaultDeps()
	uid := uuid.New()
	paymentID := uuid.New()

	d.payments.byOrderFn = func(ctx context.Context, orderID string, userID uuid.UUID) (domain.Payment, error) {
		require.Equal(t, "order_123", orderID)
		return domain.Payment{ID: paymentID, UserID: userID, GatewayOrderID: orderID, Status: domain.PaymentPending}, nil
	}
	var failed bool
	d.payments.markFailedFn = func(ctx context.Context, id uuid.UUID) error {
		require.Equal(t, paymentID, id)
		failed = true
		return nil
	}
	d.gateway.verifyFn = func(orderID, pid, sig string) bool { return false }

	r := newTestRouter(d, userClaims(uid))

	body := `{"razorpay_order_id":"order_123","razorpay_payment_id":"pay_x","razorpay_signature":"bad"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/verify", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer ok")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	errBody := decodeError(t, rr)
	require.Equal(t, "payment.verification_failed", errBody.Error.Code)
	require.True(t, failed, "payment must be marked failed")
}

func TestRouter_CreateOrder_AcceptsAnyUUIDVersion(t *testing.T) {
	d := defaultDeps()
	d.events.getFn = func(ctx context.Context, id uuid.UUID) (domain.Event, error) {
		return domain.Event{}, domain.ErrEventNotFound
	}
	r := newTestRouter(d, userClaims(uuid.New()))

	// time-based v1 id must pass validation and reach the lookup
	body := `{"event_id":"6ba7b810-9dad-11d1-80b4-00c04fd430c8","ticket_count":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/orders", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer ok")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_CancelBooking_InvalidID_400(t *testing.T) {
	d := defaultDeps()
	uid := uuid.New()
	r := newTestRouter(d, userClaims(uid))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/bookings/not-a-uuid", nil)
	req.Header.Set("Authorization", "Bearer ok")
	req.Header.Set("X-Idempotency-Key", "key-1")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	errBody := decodeError(t, rr)
	require.Equal(t, "request.invalid", errBody.Error.Code)
}

func TestRouter_Unauthorized_401(t *testing.T) {
	d := defaultDeps()
	r := newTestRouter(d, userClaims(uuid.New()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/rsvps", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRouter_RateLimit_429(t *testing.T) {
	d := defaultDeps()
	d.cache.allow = false
	r := newTestRouter(d, userClaims(uuid.New()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/rsvps", nil)
	req.Header.Set("Authorization", "Bearer ok")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestRouter_RateLimitDisabled_SkipsLimiter(t *testing.T) {
	d := defaultDeps()
	d.cache.allow = false
	d.rlDisabled = true
	r := newTestRouter(d, userClaims(uuid.New()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/rsvps", nil)
	req.Header.Set("Authorization", "Bearer ok")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_SecurityHeaders_PresentOnOK(t *testing.T) {
	d := defaultDeps()
	uid := uuid.New()
	r := newTestRouter(d, userClaims(uid))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/rsvps", nil)
	req.Header.Set("Authorization", "Bearer ok")
	req.Header.Set("X-Request-Id", "rid-1")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	require.Contains(t, rr.Header().Get("Content-Security-Policy"), "default-src")
	require.Equal(t, "rid-1", rr.Header().Get("X-Request-Id"))
}
