package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gatherly/events-api/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const bookingColumns = `id, event_id, user_id, payment_id, status, amount, platform_fee,
	ticket_count, cancelled_at, created_at, updated_at`

func scanBooking(row pgx.Row) (domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.EventID, &b.UserID, &b.PaymentID, &b.Status, &b.Amount, &b.PlatformFee,
		&b.TicketCount, &b.CancelledAt, &b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

// CreateBooking admits a paid booking under the event row lock: the capacity
// read, duplicate check, payment check, booking insert, RSVP upsert and
// counter update all commit or roll back together.
func (r *Repository) CreateBooking(ctx context.Context, traceID, idempotencyKey string, userID, eventID, paymentID uuid.UUID, ticketCount int) (domain.Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := r.claimIdempotencyKey(ctx, tx, idempotencyKey, userID, eventID, "booking"); err != nil {
		return domain.Booking{}, err
	}

	var (
		status    string
		eventType string
		startsAt  time.Time
		capacity  int
		rsvpCount int
		price     float64
	)
	err = tx.QueryRow(ctx, `
		SELECT status, event_type, starts_at, capacity, rsvp_count, price
		FROM events
		WHERE id = $1
		FOR UPDATE
	`, eventID).Scan(&status, &eventType, &startsAt, &capacity, &rsvpCount, &price)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Booking{}, domain.ErrEventNotFound
	}
	if err != nil {
		return domain.Booking{}, err
	}

	if status != string(domain.EventPublished) {
		return domain.Booking{}, domain.ErrEventNotPublished
	}
	if eventType != string(domain.EventPaid) {
		return domain.Booking{}, domain.ErrFreeEventBooking
	}
	if !startsAt.After(time.Now()) {
		return domain.Booking{}, domain.ErrEventStarted
	}

	var hasActive bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM bookings
			WHERE event_id = $1 AND user_id = $2
			  AND status NOT IN ('cancelled', 'refunded')
		)
	`, eventID, userID).Scan(&hasActive)
	if err != nil {
		return domain.Booking{}, err
	}

	if err := domain.AdmitBooking(rsvpCount, capacity, ticketCount, hasActive); err != nil {
		return domain.Booking{}, err
	}

	// The seat is only granted against confirmed funds.
	var paymentStatus string
	err = tx.QueryRow(ctx, `
		SELECT status FROM payments WHERE id = $1 AND user_id = $2 FOR UPDATE
	`, paymentID, userID).Scan(&paymentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Booking{}, domain.ErrPaymentNotCompleted
	}
	if err != nil {
		return domain.Booking{}, err
	}
	if paymentStatus != string(domain.PaymentCompleted) {
		return domain.Booking{}, domain.ErrPaymentNotCompleted
	}

	var consumed bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM bookings WHERE payment_id = $1 AND status NOT IN ('cancelled', 'refunded')
		)
	`, paymentID).Scan(&consumed)
	if err != nil {
		return domain.Booking{}, err
	}
	if consumed {
		return domain.Booking{}, domain.ErrDuplicateBooking
	}

	amount := price * float64(ticketCount)
	fee := domain.PlatformFee(amount)

	booking, err := scanBooking(tx.QueryRow(ctx, `
		INSERT INTO bookings (id, event_id, user_id, payment_id, status, amount, platform_fee,
			ticket_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'confirmed', $5, $6, $7, NOW(), NOW())
		RETURNING `+bookingColumns,
		uuid.New(), eventID, userID, paymentID, amount, fee, ticketCount,
	))
	if err != nil {
		return domain.Booking{}, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO rsvps (id, event_id, user_id, status, checked_in, created_at, updated_at)
		VALUES ($1, $2, $3, 'confirmed', false, NOW(), NOW())
		ON CONFLICT (event_id, user_id) DO UPDATE
		SET status = 'confirmed',
		    checked_in = false,
		    checked_in_at = NULL,
		    updated_at = NOW()
	`, uuid.New(), eventID, userID)
	if err != nil {
		return domain.Booking{}, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE events SET rsvp_count = rsvp_count + $2, updated_at = NOW() WHERE id = $1
	`, eventID, ticketCount); err != nil {
		return domain.Booking{}, err
	}

	if err := enqueueOutbox(ctx, tx, traceID, "booking.confirmed", map[string]any{
		"booking_id":   booking.ID.String(),
		"event_id":     eventID.String(),
		"user_id":      userID.String(),
		"ticket_count": ticketCount,
		"amount":       amount,
	}); err != nil {
		return domain.Booking{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Booking{}, err
	}
	return booking, nil
}

// CancelBooking records cancelled_at (the refund-policy anchor), cascades the
// RSVP cancellation and releases the seats, all in one transaction. The quote
// it returns is advisory; money moves only through RequestRefund.
func (r *Repository) CancelBooking(ctx context.Context, traceID, idempotencyKey string, userID, bookingID uuid.UUID, now time.Time) (domain.RefundQuote, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.RefundQuote{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := r.claimIdempotencyKey(ctx, tx, idempotencyKey, userID, bookingID, "booking_cancel"); err != nil {
		return domain.RefundQuote{}, err
	}

	// Resolve the event first so the lock order stays event -> booking.
	var eventID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT event_id FROM bookings WHERE id = $1 AND user_id = $2
	`, bookingID, userID).Scan(&eventID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RefundQuote{}, domain.ErrBookingNotFound
	}
	if err != nil {
		return domain.RefundQuote{}, err
	}

	var eventStatus string
	var startsAt time.Time
	err = tx.QueryRow(ctx, `
		SELECT status, starts_at FROM events WHERE id = $1 FOR UPDATE
	`, eventID).Scan(&eventStatus, &startsAt)
	if err != nil {
		return domain.RefundQuote{}, err
	}

	var bookingStatus string
	var amount float64
	var ticketCount int
	err = tx.QueryRow(ctx, `
		SELECT status, amount, ticket_count
		FROM bookings
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`, bookingID, userID).Scan(&bookingStatus, &amount, &ticketCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RefundQuote{}, domain.ErrBookingNotFound
	}
	if err != nil {
		return domain.RefundQuote{}, err
	}

	if bookingStatus == string(domain.BookingCancelled) || bookingStatus == string(domain.BookingRefunded) {
		return domain.RefundQuote{}, domain.ErrAlreadyCancelled
	}

	pct := domain.RefundPercent(startsAt, now)
	quote := domain.RefundQuote{Percent: pct, Amount: domain.RefundAmount(amount, pct)}

	if _, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status = 'cancelled', cancelled_at = $2, updated_at = NOW()
		WHERE id = $1
	`, bookingID, now); err != nil {
		return domain.RefundQuote{}, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE rsvps SET status = 'cancelled', updated_at = NOW()
		WHERE event_id = $1 AND user_id = $2 AND status IN ('confirmed', 'waitlist')
	`, eventID, userID); err != nil {
		return domain.RefundQuote{}, err
	}

	if eventStatus == string(domain.EventPublished) {
		if _, err := tx.Exec(ctx, `
			UPDATE events SET rsvp_count = GREATEST(rsvp_count - $2, 0), updated_at = NOW() WHERE id = $1
		`, eventID, ticketCount); err != nil {
			return domain.RefundQuote{}, err
		}
	}

	if err := enqueueOutbox(ctx, tx, traceID, "booking.cancelled", map[string]any{
		"booking_id":     bookingID.String(),
		"event_id":       eventID.String(),
		"user_id":        userID.String(),
		"refund_percent": pct,
	}); err != nil {
		return domain.RefundQuote{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.RefundQuote{}, err
	}
	return quote, nil
}

func (r *Repository) GetBooking(ctx context.Context, bookingID, userID uuid.UUID) (domain.Booking, error) {
	b, err := scanBooking(r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+` FROM bookings WHERE id = $1 AND user_id = $2
	`, bookingID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Booking{}, domain.ErrBookingNotFound
	}
	return b, err
}

func (r *Repository) ListMyBookings(ctx context.Context, userID uuid.UUID, status *domain.BookingStatus, limit, offset int) ([]domain.Booking, int, error) {
	q := `SELECT ` + bookingColumns + `, COUNT(*) OVER() AS total FROM bookings WHERE user_id = $1`
	args := []any{userID}
	if status != nil {
		q += ` AND status = $2`
		args = append(args, string(*status))
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.Booking
	var total int
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(
			&b.ID, &b.EventID, &b.UserID, &b.PaymentID, &b.Status, &b.Amount, &b.PlatformFee,
			&b.TicketCount, &b.CancelledAt, &b.CreatedAt, &b.UpdatedAt, &total,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}
