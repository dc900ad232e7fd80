package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/gatherly/events-api/internal/domain"
	"github.com/gatherly/events-api/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEventRepo struct{ mock.Mock }

func (m *MockEventRepo) CreateEvent(ctx context.Context, ev *domain.Event) error {
	return m.Called(ctx, ev).Error(0)
}
func (m *MockEventRepo) GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Event), args.Error(1)
}
func (m *MockEventRepo) ListEvents(ctx context.Context, f domain.EventFilter, limit, offset int) ([]domain.Event, int, error) {
	args := m.Called(ctx, f, limit, offset)
	var evs []domain.Event
	if v := args.Get(0); v != nil {
		evs = v.([]domain.Event)
	}
	return evs, args.Int(1), args.Error(2)
}
func (m *MockEventRepo) UpdateEvent(ctx context.Context, id uuid.UUID, upd domain.EventUpdate) (domain.Event, error) {
	args := m.Called(ctx, id, upd)
	return args.Get(0).(domain.Event), args.Error(1)
}
func (m *MockEventRepo) CancelEvent(ctx context.Context, traceID string, id uuid.UUID) error {
	return m.Called(ctx, traceID, id).Error(0)
}
func (m *MockEventRepo) ListAttendees(ctx context.Context, eventID uuid.UUID, limit, offset int) ([]domain.Attendee, int, error) {
	args := m.Called(ctx, eventID, limit, offset)
	var out []domain.Attendee
	if v := args.Get(0); v != nil {
		out = v.([]domain.Attendee)
	}
	return out, args.Int(1), args.Error(2)
}
func (m *MockEventRepo) CompleteEndedEvents(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type MockParticipationRepo struct{ mock.Mock }

func (m *MockParticipationRepo) RSVP(ctx context.Context, tid, key string, eid, uid uuid.UUID) (domain.RSVPStatus, error) {
	args := m.Called(ctx, tid, key, eid, uid)
	return args.Get(0).(domain.RSVPStatus), args.Error(1)
}
func (m *MockParticipationRepo) CancelRSVP(ctx context.Context, tid, key string, eid, uid uuid.UUID) error {
	return m.Called(ctx, tid, key, eid, uid).Error(0)
}
func (m *MockParticipationRepo) GetRSVP(ctx context.Context, eid, uid uuid.UUID) (domain.RSVP, error) {
	args := m.Called(ctx, eid, uid)
	return args.Get(0).(domain.RSVP), args.Error(1)
}
func (m *MockParticipationRepo) CheckIn(ctx context.Context, tid string, eid, uid uuid.UUID, now time.Time) error {
	return m.Called(ctx, tid, eid, uid, now).Error(0)
}
func (m *MockParticipationRepo) ListMyRSVPs(ctx context.Context, uid uuid.UUID, limit, offset int) ([]domain.RSVP, int, error) {
	args := m.Called(ctx, uid, limit, offset)
	var out []domain.RSVP
	if v := args.Get(0); v != nil {
		out = v.([]domain.RSVP)
	}
	return out, args.Int(1), args.Error(2)
}

type MockBookingRepo struct{ mock.Mock }

func (m *MockBookingRepo) CreateBooking(ctx context.Context, tid, key string, uid, eid, pid uuid.UUID, n int) (domain.Booking, error) {
	args := m.Called(ctx, tid, key, uid, eid, pid, n)
	return args.Get(0).(domain.Booking), args.Error(1)
}
func (m *MockBookingRepo) CancelBooking(ctx context.Context, tid, key string, uid, bid uuid.UUID, now time.Time) (domain.RefundQuote, error) {
	args := m.Called(ctx, tid, key, uid, bid, now)
	return args.Get(0).(domain.RefundQuote), args.Error(1)
}
func (m *MockBookingRepo) GetBooking(ctx context.Context, bid, uid uuid.UUID) (domain.Booking, error) {
	args := m.Called(ctx, bid, uid)
	return args.Get(0).(domain.Booking), args.Error(1)
}
func (m *MockBookingRepo) ListMyBookings(ctx context.Context, uid uuid.UUID, status *domain.BookingStatus, limit, offset int) ([]domain.Booking, int, error) {
	args := m.Called(ctx, uid, status, limit, offset)
	var out []domain.Booking
	if v := args.Get(0); v != nil {
		out = v.([]domain.Booking)
	}
	return out, args.Int(1), args.Error(2)
}

type MockPaymentRepo struct{ mock.Mock }

func (m *MockPaymentRepo) InsertPending(ctx context.Context, p *domain.Payment) error {
	return m.Called(ctx, p).Error(0)
}
func (m *MockPaymentRepo) GetPayment(ctx context.Context, id, uid uuid.UUID) (domain.Payment, error) {
	args := m.Called(ctx, id, uid)
	return args.Get(0).(domain.Payment), args.Error(1)
}
func (m *MockPaymentRepo) GetByOrderID(ctx context.Context, orderID string, uid uuid.UUID) (domain.Payment, error) {
	args := m.Called(ctx, orderID, uid)
	return args.Get(0).(domain.Payment), args.Error(1)
}
func (m *MockPaymentRepo) MarkCompleted(ctx context.Context, tid string, id uuid.UUID, paymentID, sig string) error {
	return m.Called(ctx, tid, id, paymentID, sig).Error(0)
}
func (m *MockPaymentRepo) MarkFailed(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}
func (m *MockPaymentRepo) RefundBooking(ctx context.Context, tid string, bid, uid uuid.UUID, reason string) (domain.RefundQuote, error) {
	args := m.Called(ctx, tid, bid, uid, reason)
	return args.Get(0).(domain.RefundQuote), args.Error(1)
}

type MockPartnerRepo struct{ mock.Mock }

func (m *MockPartnerRepo) GetPartnerByUser(ctx context.Context, uid uuid.UUID) (domain.Partner, error) {
	args := m.Called(ctx, uid)
	return args.Get(0).(domain.Partner), args.Error(1)
}
func (m *MockPartnerRepo) Analytics(ctx context.Context, hostID uuid.UUID) (domain.PartnerAnalytics, error) {
	args := m.Called(ctx, hostID)
	return args.Get(0).(domain.PartnerAnalytics), args.Error(1)
}
func (m *MockPartnerRepo) ListPayouts(ctx context.Context, partnerID uuid.UUID) ([]domain.Payout, error) {
	args := m.Called(ctx, partnerID)
	var out []domain.Payout
	if v := args.Get(0); v != nil {
		out = v.([]domain.Payout)
	}
	return out, args.Error(1)
}
func (m *MockPartnerRepo) RequestPayout(ctx context.Context, tid string, partner domain.Partner, hostID uuid.UUID) (domain.Payout, error) {
	args := m.Called(ctx, tid, partner, hostID)
	return args.Get(0).(domain.Payout), args.Error(1)
}

type MockCache struct{ mock.Mock }

func (m *MockCache) GetEventSnapshot(ctx context.Context, eventID uuid.UUID) (domain.EventSnapshot, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).(domain.EventSnapshot), args.Error(1)
}
func (m *MockCache) SetEventSnapshot(ctx context.Context, eventID uuid.UUID, snap domain.EventSnapshot) error {
	return m.Called(ctx, eventID, snap).Error(0)
}
func (m *MockCache) AllowRequest(ctx context.Context, ip string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, ip, limit, window)
	return args.Bool(0), args.Error(1)
}

type MockGateway struct{ mock.Mock }

func (m *MockGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes domain.OrderNotes) (domain.GatewayOrder, error) {
	args := m.Called(ctx, amountMinor, currency, receipt, notes)
	return args.Get(0).(domain.GatewayOrder), args.Error(1)
}
func (m *MockGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return m.Called(orderID, paymentID, signature).Bool(0)
}
func (m *MockGateway) KeyID() string {
	return m.Called().String(0)
}

func publishedPaidEvent(price float64, capacity, rsvpCount int) domain.Event {
	return domain.Event{
		ID:        uuid.New(),
		HostID:    uuid.New(),
		Status:    domain.EventPublished,
		Type:      domain.EventPaid,
		StartsAt:  time.Now().Add(48 * time.Hour),
		Capacity:  capacity,
		RSVPCount: rsvpCount,
		Price:     price,
	}
}

func TestEventService_Create_FreeEventPriceZeroed(t *testing.T) {
	repo := new(MockEventRepo)
	svc := service.NewEventService(repo, nil)
	ctx := context.Background()

	repo.On("CreateEvent", ctx, mock.MatchedBy(func(ev *domain.Event) bool {
		return ev.Type == domain.EventFree && ev.Price == 0 && ev.Capacity == 20 && ev.Status == domain.EventDraft
	})).Return(nil)

	_, err := svc.Create(ctx, uuid.New(), service.CreateEventInput{
		ClubID:   uuid.New(),
		Title:    "Morning run",
		Type:     domain.EventFree,
		StartsAt: time.Now().Add(24 * time.Hour),
		Price:    499, // ignored for free events
	})
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestEventService_Update_NotOwner(t *testing.T) {
	repo := new(MockEventRepo)
	svc := service.NewEventService(repo, nil)
	ctx := context.Background()

	ev := publishedPaidEvent(500, 50, 0)
	repo.On("GetEvent", ctx, ev.ID).Return(ev, nil)

	title := "new title"
	_, err := svc.Update(ctx, ev.ID, uuid.New(), "partner", domain.EventUpdate{Title: &title})
	assert.ErrorIs(t, err, domain.ErrNotOwner)
	repo.AssertNotCalled(t, "UpdateEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestEventService_Cancel_ClosesSnapshot(t *testing.T) {
	repo := new(MockEventRepo)
	cache := new(MockCache)
	svc := service.NewEventService(repo, cache)
	ctx := context.Background()

	ev := publishedPaidEvent(500, 50, 0)
	repo.On("GetEvent", ctx, ev.ID).Return(ev, nil)
	repo.On("CancelEvent", ctx, "trace", ev.ID).Return(nil)
	cache.On("SetEventSnapshot", ctx, ev.ID, domain.EventSnapshot{
		Capacity: -1, Status: domain.EventCancelled,
	}).Return(nil)

	err := svc.Cancel(ctx, "trace", ev.ID, ev.HostID, "partner")
	assert.NoError(t, err)
	cache.AssertExpectations(t)
}

func TestParticipationService_RSVP_CacheFastFail(t *testing.T) {
	repo := new(MockParticipationRepo)
	cache := new(MockCache)
	svc := service.NewParticipationService(repo, cache)
	ctx := context.Background()
	eID := uuid.New()
	uID := uuid.New()

	cache.On("GetEventSnapshot", ctx, eID).Return(domain.EventSnapshot{
		Capacity: -1, Status: domain.EventCancelled,
	}, nil)

	_, err := svc.RSVP(ctx, "trace", "", eID, uID)
	assert.ErrorIs(t, err, domain.ErrEventNotPublished)
	repo.AssertNotCalled(t, "RSVP", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestParticipationService_RSVP_CacheMissFallsThrough(t *testing.T) {
	repo := new(MockParticipationRepo)
	cache := new(MockCache)
	svc := service.NewParticipationService(repo, cache)
	ctx := context.Background()
	eID := uuid.New()
	uID := uuid.New()

	cache.On("GetEventSnapshot", ctx, eID).Return(domain.EventSnapshot{}, domain.ErrCacheMiss)
	repo.On("RSVP", ctx, "trace", "key-1", eID, uID).Return(domain.RSVPWaitlist, nil)

	status, err := svc.RSVP(ctx, "trace", "key-1", eID, uID)
	assert.NoError(t, err)
	assert.Equal(t, domain.RSVPWaitlist, status)
	repo.AssertExpectations(t)
}

func TestPaymentService_CreateOrder(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("prices tickets with the platform fee", func(t *testing.T) {
		events := new(MockEventRepo)
		payments := new(MockPaymentRepo)
		gw := new(MockGateway)
		svc := service.NewPaymentService(events, payments, gw, "INR")

		ev := publishedPaidEvent(500, 50, 10)
		events.On("GetEvent", ctx, ev.ID).Return(ev, nil)

		// 2 x 500 = 1000, fee clamp(100) = 100, total 1100 => 110000 paise
		gw.On("CreateOrder", ctx, int64(110000), "INR", mock.AnythingOfType("string"), domain.OrderNotes{
			EventID: ev.ID, UserID: userID, TicketCount: 2,
		}).Return(domain.GatewayOrder{ID: "order_123", Amount: 110000, Currency: "INR"}, nil)
		gw.On("KeyID").Return("rzp_test_key")

		payments.On("InsertPending", ctx, mock.MatchedBy(func(p *domain.Payment) bool {
			return p.GatewayOrderID == "order_123" &&
				p.Amount == 1100 &&
				p.Status == domain.PaymentPending &&
				p.Metadata.PlatformFee == 100 &&
				p.Metadata.TicketCount == 2
		})).Return(nil)

		quote, err := svc.CreateOrder(ctx, userID, ev.ID, 2)
		require.NoError(t, err)
		assert.Equal(t, "order_123", quote.GatewayOrderID)
		assert.Equal(t, int64(110000), quote.AmountMinor)
		assert.Equal(t, "rzp_test_key", quote.KeyID)
		assert.Equal(t, float64(100), quote.Breakdown.PlatformFee)
	})

	t.Run("free event is rejected", func(t *testing.T) {
		events := new(MockEventRepo)
		payments := new(MockPaymentRepo)
		gw := new(MockGateway)
		svc := service.NewPaymentService(events, payments, gw, "INR")

		ev := publishedPaidEvent(0, 50, 0)
		ev.Type = domain.EventFree
		events.On("GetEvent", ctx, ev.ID).Return(ev, nil)

		_, err := svc.CreateOrder(ctx, userID, ev.ID, 1)
		assert.ErrorIs(t, err, domain.ErrFreeEventBooking)
		gw.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("full event is rejected before the gateway call", func(t *testing.T) {
		events := new(MockEventRepo)
		payments := new(MockPaymentRepo)
		gw := new(MockGateway)
		svc := service.NewPaymentService(events, payments, gw, "INR")

		ev := publishedPaidEvent(500, 10, 9)
		events.On("GetEvent", ctx, ev.ID).Return(ev, nil)

		_, err := svc.CreateOrder(ctx, userID, ev.ID, 2)
		assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
		gw.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPaymentService_VerifyPayment(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	pending := func() domain.Payment {
		return domain.Payment{
			ID:             uuid.New(),
			UserID:         userID,
			GatewayOrderID: "order_123",
			Amount:         1100,
			Status:         domain.PaymentPending,
		}
	}

	t.Run("valid signature completes the payment", func(t *testing.T) {
		payments := new(MockPaymentRepo)
		gw := new(MockGateway)
		svc := service.NewPaymentService(nil, payments, gw, "INR")

		p := pending()
		completed := p
		completed.Status = domain.PaymentCompleted
		completed.GatewayPaymentID = "pay_abc"

		payments.On("GetByOrderID", ctx, "order_123", userID).Return(p, nil).Once()
		gw.On("VerifySignature", "order_123", "pay_abc", "sig").Return(true)
		payments.On("MarkCompleted", ctx, "trace", p.ID, "pay_abc", "sig").Return(nil)
		payments.On("GetPayment", ctx, p.ID, userID).Return(completed, nil)

		got, completedNow, err := svc.VerifyPayment(ctx, "trace", userID, "order_123", "pay_abc", "sig")
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentCompleted, got.Status)
		assert.True(t, completedNow)
		payments.AssertExpectations(t)
	})

	t.Run("replay for a completed payment is a no-op success", func(t *testing.T) {
		payments := new(MockPaymentRepo)
		gw := new(MockGateway)
		svc := service.NewPaymentService(nil, payments, gw, "INR")

		p := pending()
		p.Status = domain.PaymentCompleted
		payments.On("GetByOrderID", ctx, "order_123", userID).Return(p, nil)

		got, completedNow, err := svc.VerifyPayment(ctx, "trace", userID, "order_123", "pay_abc", "sig")
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentCompleted, got.Status)
		assert.False(t, completedNow)
		gw.AssertNotCalled(t, "VerifySignature", mock.Anything, mock.Anything, mock.Anything)
		payments.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("bad signature fails the payment permanently", func(t *testing.T) {
		payments := new(MockPaymentRepo)
		gw := new(MockGateway)
		svc := service.NewPaymentService(nil, payments, gw, "INR")

		p := pending()
		payments.On("GetByOrderID", ctx, "order_123", userID).Return(p, nil)
		gw.On("VerifySignature", "order_123", "pay_abc", "bad").Return(false)
		payments.On("MarkFailed", ctx, p.ID).Return(nil)

		_, _, err := svc.VerifyPayment(ctx, "trace", userID, "order_123", "pay_abc", "bad")
		assert.ErrorIs(t, err, domain.ErrSignatureMismatch)
		payments.AssertExpectations(t)
	})

	t.Run("failed payment cannot be verified again", func(t *testing.T) {
		payments := new(MockPaymentRepo)
		gw := new(MockGateway)
		svc := service.NewPaymentService(nil, payments, gw, "INR")

		p := pending()
		p.Status = domain.PaymentFailed
		payments.On("GetByOrderID", ctx, "order_123", userID).Return(p, nil)

		_, _, err := svc.VerifyPayment(ctx, "trace", userID, "order_123", "pay_abc", "sig")
		assert.ErrorIs(t, err, domain.ErrPaymentNotPending)
		gw.AssertNotCalled(t, "VerifySignature", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestBookingService_Create_CacheFastFail(t *testing.T) {
	repo := new(MockBookingRepo)
	cache := new(MockCache)
	svc := service.NewBookingService(repo, cache)
	ctx := context.Background()
	eID := uuid.New()

	cache.On("GetEventSnapshot", ctx, eID).Return(domain.EventSnapshot{
		Capacity: -1, Status: domain.EventCancelled,
	}, nil)

	_, err := svc.Create(ctx, "trace", "", uuid.New(), eID, uuid.New(), 1)
	assert.ErrorIs(t, err, domain.ErrEventNotPublished)
	repo.AssertNotCalled(t, "CreateBooking",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPartnerService_RequestPayout_Gates(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("unverified partner is rejected", func(t *testing.T) {
		repo := new(MockPartnerRepo)
		svc := service.NewPartnerService(repo)

		repo.On("GetPartnerByUser", ctx, userID).Return(domain.Partner{
			ID: uuid.New(), UserID: userID, IsVerified: false, BankDetails: "acct",
		}, nil)

		_, err := svc.RequestPayout(ctx, "trace", userID)
		assert.ErrorIs(t, err, domain.ErrPartnerNotVerified)
		repo.AssertNotCalled(t, "RequestPayout", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing bank details is rejected", func(t *testing.T) {
		repo := new(MockPartnerRepo)
		svc := service.NewPartnerService(repo)

		repo.On("GetPartnerByUser", ctx, userID).Return(domain.Partner{
			ID: uuid.New(), UserID: userID, IsVerified: true, BankDetails: "  ",
		}, nil)

		_, err := svc.RequestPayout(ctx, "trace", userID)
		assert.ErrorIs(t, err, domain.ErrBankDetailsMissing)
	})

	t.Run("eligible partner goes through", func(t *testing.T) {
		repo := new(MockPartnerRepo)
		svc := service.NewPartnerService(repo)

		partner := domain.Partner{ID: uuid.New(), UserID: userID, IsVerified: true, BankDetails: "acct"}
		repo.On("GetPartnerByUser", ctx, userID).Return(partner, nil)
		repo.On("RequestPayout", ctx, "trace", partner, userID).Return(domain.Payout{
			ID: uuid.New(), PartnerID: partner.ID, Amount: 900, Status: domain.PayoutPending,
		}, nil)

		payout, err := svc.RequestPayout(ctx, "trace", userID)
		require.NoError(t, err)
		assert.Equal(t, float64(900), payout.Amount)
		repo.AssertExpectations(t)
	})
}
