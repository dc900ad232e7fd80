package audit

import (
	"context"

	"github.com/gatherly/events-api/internal/domain"
	appctx "github.com/gatherly/events-api/internal/pkg/context"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Logger provides structured audit logging for business events
type Logger struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

// RSVPCreated logs an admission decision for a free event
func (l *Logger) RSVPCreated(ctx context.Context, eventID, userID uuid.UUID, status domain.RSVPStatus) {
	l.log.Info().
		Str("action", "rsvp_created").
		Str("event_id", eventID.String()).
		Str("user_id", userID.String()).
		Str("status", string(status)).
		Str("request_id", appctx.GetRequestID(ctx)).
		Msg("User RSVPed to event")
}

func (l *Logger) RSVPCancelled(ctx context.Context, eventID, userID uuid.UUID) {
	l.log.Info().
		Str("action", "rsvp_cancelled").
		Str("event_id", eventID.String()).
		Str("user_id", userID.String()).
		Str("request_id", appctx.GetRequestID(ctx)).
		Msg("User cancelled RSVP")
}

func (l *Logger) CheckedIn(ctx context.Context, eventID, userID uuid.UUID) {
	l.log.Info().
		Str("action", "checked_in").
		Str("event_id", eventID.String()).
		Str("user_id", userID.String()).
		Str("request_id", appctx.GetRequestID(ctx)).
		Msg("User checked in")
}

func (l *Logger) BookingConfirmed(ctx context.Context, bookingID, eventID, userID uuid.UUID, amount float64) {
	l.log.Info().
		Str("action", "booking_confirmed").
		Str("booking_id", bookingID.String()).
		Str("event_id", eventID.String()).
		Str("user_id", userID.String()).
		Float64("amount", amount).
		Str("request_id", appctx.GetRequestID(ctx)).
		Msg("Booking confirmed")
}

func (l *Logger) BookingCancelled(ctx context.Context, bookingID, userID uuid.UUID, refundPercent int) {
	l.log.Info().
		Str("action", "booking_cancelled").
		Str("booking_id", bookingID.String()).
		Str("user_id", userID.String()).
		Int("refund_percent", refundPercent).
		Str("request_id", appctx.GetRequestID(ctx)).
		Msg("Booking cancelled")
}

func (l *Logger) PaymentCompleted(ctx context.Context, paymentID, userID uuid.UUID, amount float64) {
	l.log.Info().
		Str("action", "payment_completed").
		Str("payment_id", paymentID.String()).
		Str("user_id", userID.String()).
		Float64("amount", amount).
		Str("request_id", appctx.GetRequestID(ctx)).
		Msg("Payment verified and completed")
}

// PaymentFailed logs a verification failure; the signature itself is never logged
func (l *Logger) PaymentFailed(ctx context.Context, userID uuid.UUID, gatewayOrderID string) {
	l.log.Warn().
		Str("action", "payment_failed").
		Str("user_id", userID.String()).
		Str("gateway_order_id", gatewayOrderID).
		Str("request_id", appctx.GetRequestID(ctx)).
		Msg("Payment verification failed")
}

func (l *Logger) RefundIssued(ctx context.Context, bookingID, userID uuid.UUID, amount float64, percent int) {
	l.log.Info().
		Str("action", "refund_issued").
		Str("booking_id", bookingID.String()).
		Str("user_id", userID.String()).
		Float64("amount", amount).
		Int("percent", percent).
		Str("request_id", appctx.GetRequestID(ctx)).
		Msg("Refund issued")
}

func (l *Logger) PayoutRequested(ctx context.Context, payoutID, partnerID uuid.UUID, amount float64) {
	l.log.Info().
		Str("action", "payout_requested").
		Str("payout_id", payoutID.String()).
		Str("partner_id", partnerID.String()).
		Float64("amount", amount).
		Str("request_id", appctx.GetRequestID(ctx)).
		Msg("Payout requested")
}

func (l *Logger) EventCancelled(ctx context.Context, eventID, actorID uuid.UUID) {
	l.log.Warn().
		Str("action", "event_cancelled").
		Str("event_id", eventID.String()).
		Str("actor_user_id", actorID.String()).
		Str("request_id", appctx.GetRequestID(ctx)).
		Msg("Event cancelled by host")
}
