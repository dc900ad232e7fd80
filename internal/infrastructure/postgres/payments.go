package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gatherly/events-api/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const paymentColumns = `id, user_id, gateway_order_id, COALESCE(gateway_payment_id, ''),
	COALESCE(gateway_signature, ''), amount, currency, status, metadata, created_at, updated_at`

func scanPayment(row pgx.Row) (domain.Payment, error) {
	var p domain.Payment
	var meta []byte
	err := row.Scan(
		&p.ID, &p.UserID, &p.GatewayOrderID, &p.GatewayPaymentID, &p.GatewaySignature,
		&p.Amount, &p.Currency, &p.Status, &meta, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return p, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &p.Metadata); err != nil {
			return p, err
		}
	}
	return p, nil
}

func (r *Repository) InsertPending(ctx context.Context, p *domain.Payment) error {
	meta, err := json.Marshal(p.Metadata)
	if err != nil {
		return err
	}
	created, err := scanPayment(r.pool.QueryRow(ctx, `
		INSERT INTO payments (id, user_id, gateway_order_id, amount, currency, status, metadata,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6, NOW(), NOW())
		RETURNING `+paymentColumns,
		p.ID, p.UserID, p.GatewayOrderID, p.Amount, p.Currency, meta,
	))
	if err != nil {
		return err
	}
	*p = created
	return nil
}

func (r *Repository) GetPayment(ctx context.Context, id, userID uuid.UUID) (domain.Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM payments WHERE id = $1 AND user_id = $2
	`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return p, err
}

func (r *Repository) GetByOrderID(ctx context.Context, gatewayOrderID string, userID uuid.UUID) (domain.Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM payments WHERE gateway_order_id = $1 AND user_id = $2
	`, gatewayOrderID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return p, err
}

// MarkCompleted captures the verified gateway ids on the pending row. The
// status guard makes concurrent verifications settle on exactly one winner.
func (r *Repository) MarkCompleted(ctx context.Context, traceID string, id uuid.UUID, gatewayPaymentID, gatewaySignature string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var userID uuid.UUID
	var amount float64
	err = tx.QueryRow(ctx, `
		UPDATE payments
		SET status = 'completed',
		    gateway_payment_id = $2,
		    gateway_signature = $3,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING user_id, amount
	`, id, gatewayPaymentID, gatewaySignature).Scan(&userID, &amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrPaymentNotPending
	}
	if err != nil {
		return err
	}

	if err := enqueueOutbox(ctx, tx, traceID, "payment.completed", map[string]any{
		"payment_id": id.String(),
		"user_id":    userID.String(),
		"amount":     amount,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// MarkFailed is terminal: a failed payment is never retried, the client must
// create a fresh order.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payments SET status = 'failed', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotPending
	}
	return nil
}

// RefundBooking settles the refund for a cancelled booking. The percentage is
// anchored on cancelled_at, so retrying the call later never changes the
// amount. Payment and booking flip to refunded together.
func (r *Repository) RefundBooking(ctx context.Context, traceID string, bookingID, userID uuid.UUID, reason string) (domain.RefundQuote, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.RefundQuote{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

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

	var startsAt time.Time
	err = tx.QueryRow(ctx, `
		SELECT starts_at FROM events WHERE id = $1 FOR UPDATE
	`, eventID).Scan(&startsAt)
	if err != nil {
		return domain.RefundQuote{}, err
	}

	var (
		bookingStatus string
		paymentID     uuid.UUID
		bookingAmount float64
		cancelledAt   *time.Time
	)
	err = tx.QueryRow(ctx, `
		SELECT status, payment_id, amount, cancelled_at
		FROM bookings
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`, bookingID, userID).Scan(&bookingStatus, &paymentID, &bookingAmount, &cancelledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RefundQuote{}, domain.ErrBookingNotFound
	}
	if err != nil {
		return domain.RefundQuote{}, err
	}

	if bookingStatus != string(domain.BookingCancelled) || cancelledAt == nil {
		return domain.RefundQuote{}, domain.ErrBookingNotCancelled
	}

	p, err := scanPayment(tx.QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE
	`, paymentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RefundQuote{}, domain.ErrPaymentNotFound
	}
	if err != nil {
		return domain.RefundQuote{}, err
	}
	if p.Status != domain.PaymentCompleted {
		return domain.RefundQuote{}, domain.ErrPaymentNotCompleted
	}

	// Refund base is the booking amount (tickets only); the platform fee on
	// the payment total is not returned.
	quote, err := domain.SettleRefund(bookingAmount, startsAt, *cancelledAt)
	if err != nil {
		return domain.RefundQuote{}, err
	}

	p.Metadata.RefundAmount = quote.Amount
	p.Metadata.RefundPct = quote.Percent
	p.Metadata.RefundReason = reason
	meta, err := json.Marshal(p.Metadata)
	if err != nil {
		return domain.RefundQuote{}, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE payments SET status = 'refunded', metadata = $2, updated_at = NOW() WHERE id = $1
	`, paymentID, meta); err != nil {
		return domain.RefundQuote{}, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE bookings SET status = 'refunded', updated_at = NOW() WHERE id = $1
	`, bookingID); err != nil {
		return domain.RefundQuote{}, err
	}

	if err := enqueueOutbox(ctx, tx, traceID, "payment.refunded", map[string]any{
		"payment_id":     paymentID.String(),
		"booking_id":     bookingID.String(),
		"user_id":        userID.String(),
		"refund_amount":  quote.Amount,
		"refund_percent": quote.Percent,
	}); err != nil {
		return domain.RefundQuote{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.RefundQuote{}, err
	}
	return quote, nil
}
