package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventCancelled EventStatus = "cancelled"
	EventCompleted EventStatus = "completed"
)

type EventType string

const (
	EventFree EventType = "free"
	EventPaid EventType = "paid"
)

type RSVPStatus string

const (
	RSVPConfirmed RSVPStatus = "confirmed"
	RSVPWaitlist  RSVPStatus = "waitlist"
	RSVPCancelled RSVPStatus = "cancelled"
	RSVPExpired   RSVPStatus = "expired"
)

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingRefunded  BookingStatus = "refunded"
	BookingAttended  BookingStatus = "attended"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type PayoutStatus string

const (
	PayoutPending PayoutStatus = "pending"
	PayoutPaid    PayoutStatus = "paid"
)

var (
	// Not found
	ErrEventNotFound   = errors.New("event not found")
	ErrClubNotFound    = errors.New("club not found")
	ErrRSVPNotFound    = errors.New("rsvp not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrPartnerNotFound = errors.New("partner not found")

	// Invalid state
	ErrEventNotPublished   = errors.New("event is not open")
	ErrEventStarted        = errors.New("event has already started")
	ErrPaidEventRSVP       = errors.New("paid event: use the booking flow")
	ErrFreeEventBooking    = errors.New("free event: use the rsvp flow")
	ErrBookingNotCancelled = errors.New("booking must be cancelled first")
	ErrPaymentNotPending   = errors.New("payment is not pending")

	// Admission
	ErrCapacityExceeded = errors.New("not enough spots")
	ErrDuplicateBooking = errors.New("an active booking already exists")
	ErrAlreadyConfirmed = errors.New("rsvp already confirmed")

	// Payments and refunds
	ErrPaymentNotCompleted = errors.New("payment not completed")
	ErrSignatureMismatch   = errors.New("payment verification failed")
	ErrAlreadyCancelled    = errors.New("booking already cancelled")
	ErrNoRefundAvailable   = errors.New("no refund available")

	// Check-in
	ErrCheckInTooEarly  = errors.New("check-in not yet available")
	ErrNotRSVPed        = errors.New("no confirmed rsvp found")
	ErrAlreadyCheckedIn = errors.New("already checked in")

	// Authorization and partner state
	ErrNotOwner           = errors.New("not the owner")
	ErrPartnerNotVerified = errors.New("partner must be verified")
	ErrBankDetailsMissing = errors.New("bank details required")
	ErrPayoutBelowMin     = errors.New("available balance below payout minimum")

	// Infrastructure
	ErrCacheMiss              = errors.New("cache miss")
	ErrIdempotencyKeyMismatch = errors.New("idempotency key was used with a different request")
)

type Event struct {
	ID                 uuid.UUID
	HostID             uuid.UUID
	ClubID             uuid.UUID
	Title              string
	Description        string
	Status             EventStatus
	Type               EventType
	StartsAt           time.Time
	EndsAt             *time.Time
	LocationName       string
	Capacity           int
	RSVPCount          int
	Price              float64
	CancellationPolicy string
	IsFeatured         bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SpotsRemaining never reports negative even if counters drift.
func (e Event) SpotsRemaining() int {
	if n := e.Capacity - e.RSVPCount; n > 0 {
		return n
	}
	return 0
}

type RSVP struct {
	ID          uuid.UUID
	EventID     uuid.UUID
	UserID      uuid.UUID
	Status      RSVPStatus
	CheckedIn   bool
	CheckedInAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PaymentMetadata is stored as jsonb on the payment row and carries the order
// breakdown for reconciliation, plus refund details once refunded.
type PaymentMetadata struct {
	EventID      uuid.UUID `json:"event_id"`
	TicketCount  int       `json:"ticket_count"`
	TicketAmount float64   `json:"ticket_amount"`
	PlatformFee  float64   `json:"platform_fee"`
	RefundAmount float64   `json:"refund_amount,omitempty"`
	RefundPct    int       `json:"refund_percent,omitempty"`
	RefundReason string    `json:"refund_reason,omitempty"`
}

type Payment struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	GatewayOrderID   string
	GatewayPaymentID string
	GatewaySignature string
	Amount           float64
	Currency         string
	Status           PaymentStatus
	Metadata         PaymentMetadata
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Booking struct {
	ID          uuid.UUID
	EventID     uuid.UUID
	UserID      uuid.UUID
	PaymentID   uuid.UUID
	Status      BookingStatus
	Amount      float64
	PlatformFee float64
	TicketCount int
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Partner struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	IsVerified  bool
	BankDetails string
}

type Payout struct {
	ID          uuid.UUID
	PartnerID   uuid.UUID
	Amount      float64
	Status      PayoutStatus
	RequestedAt time.Time
}

type Attendee struct {
	RSVPID      uuid.UUID
	UserID      uuid.UUID
	CheckedIn   bool
	CheckedInAt *time.Time
	RSVPAt      time.Time
}

type EventFilter struct {
	ClubID   *uuid.UUID
	Type     *EventType
	Upcoming bool
	Featured bool
}

// EventUpdate carries only the allowlisted mutable fields; nil means "leave as is".
type EventUpdate struct {
	Title              *string
	Description        *string
	StartsAt           *time.Time
	EndsAt             *time.Time
	LocationName       *string
	Capacity           *int
	Price              *float64
	CancellationPolicy *string
	Status             *EventStatus
}

type PartnerAnalytics struct {
	EventsTotal       int
	EventsCompleted   int
	EventsUpcoming    int
	BookingsTotal     int
	BookingsConfirmed int
	BookingsCancelled int
	Revenue           float64
	PendingPayout     float64
}

// RefundQuote is advisory: money movement is an asynchronous gateway concern.
type RefundQuote struct {
	Percent int
	Amount  float64
}

type EventRepository interface {
	CreateEvent(ctx context.Context, ev *Event) error
	GetEvent(ctx context.Context, id uuid.UUID) (Event, error)
	ListEvents(ctx context.Context, f EventFilter, limit, offset int) ([]Event, int, error)
	UpdateEvent(ctx context.Context, id uuid.UUID, upd EventUpdate) (Event, error)
	CancelEvent(ctx context.Context, traceID string, id uuid.UUID) error
	ListAttendees(ctx context.Context, eventID uuid.UUID, limit, offset int) ([]Attendee, int, error)
	CompleteEndedEvents(ctx context.Context, now time.Time) (int64, error)
}

// ParticipationRepository owns the RSVP rows and the capacity counters. All
// admission decisions happen inside its transactions with the event row locked.
type ParticipationRepository interface {
	RSVP(ctx context.Context, traceID, idempotencyKey string, eventID, userID uuid.UUID) (RSVPStatus, error)
	CancelRSVP(ctx context.Context, traceID, idempotencyKey string, eventID, userID uuid.UUID) error
	GetRSVP(ctx context.Context, eventID, userID uuid.UUID) (RSVP, error)
	CheckIn(ctx context.Context, traceID string, eventID, userID uuid.UUID, now time.Time) error
	ListMyRSVPs(ctx context.Context, userID uuid.UUID, limit, offset int) ([]RSVP, int, error)
}

type BookingRepository interface {
	CreateBooking(ctx context.Context, traceID, idempotencyKey string, userID, eventID, paymentID uuid.UUID, ticketCount int) (Booking, error)
	CancelBooking(ctx context.Context, traceID, idempotencyKey string, userID, bookingID uuid.UUID, now time.Time) (RefundQuote, error)
	GetBooking(ctx context.Context, bookingID, userID uuid.UUID) (Booking, error)
	ListMyBookings(ctx context.Context, userID uuid.UUID, status *BookingStatus, limit, offset int) ([]Booking, int, error)
}

type PaymentRepository interface {
	InsertPending(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, id, userID uuid.UUID) (Payment, error)
	GetByOrderID(ctx context.Context, gatewayOrderID string, userID uuid.UUID) (Payment, error)
	MarkCompleted(ctx context.Context, traceID string, id uuid.UUID, gatewayPaymentID, gatewaySignature string) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
	RefundBooking(ctx context.Context, traceID string, bookingID, userID uuid.UUID, reason string) (RefundQuote, error)
}

type PartnerRepository interface {
	GetPartnerByUser(ctx context.Context, userID uuid.UUID) (Partner, error)
	Analytics(ctx context.Context, hostID uuid.UUID) (PartnerAnalytics, error)
	ListPayouts(ctx context.Context, partnerID uuid.UUID) ([]Payout, error)
	// RequestPayout sums attended net revenue and inserts the payout row in one
	// transaction; it fails with ErrPayoutBelowMin under the threshold.
	RequestPayout(ctx context.Context, traceID string, partner Partner, hostID uuid.UUID) (Payout, error)
}

// EventSnapshot is the cached fast-fail view of an event. A negative capacity
// marks the event closed (cancelled or completed).
type EventSnapshot struct {
	Capacity int
	Status   EventStatus
}

type CacheRepository interface {
	GetEventSnapshot(ctx context.Context, eventID uuid.UUID) (EventSnapshot, error)
	SetEventSnapshot(ctx context.Context, eventID uuid.UUID, snap EventSnapshot) error

	AllowRequest(ctx context.Context, ip string, limit int, window time.Duration) (bool, error)
}

// GatewayOrder is the externally issued payment-intent handle.
type GatewayOrder struct {
	ID       string
	Amount   int64 // minor units
	Currency string
	Receipt  string
}

type OrderNotes struct {
	EventID     uuid.UUID
	UserID      uuid.UUID
	TicketCount int
}

type PaymentGateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes OrderNotes) (GatewayOrder, error)
	// VerifySignature checks the callback signature locally with the shared secret.
	VerifySignature(orderID, gatewayPaymentID, signature string) bool
	KeyID() string
}
