package postgres

import (
	"context"
	"errors"

	"github.com/gatherly/events-api/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (r *Repository) GetPartnerByUser(ctx context.Context, userID uuid.UUID) (domain.Partner, error) {
	var p domain.Partner
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, is_verified, COALESCE(bank_details, '')
		FROM partners
		WHERE user_id = $1
	`, userID).Scan(&p.ID, &p.UserID, &p.IsVerified, &p.BankDetails)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Partner{}, domain.ErrPartnerNotFound
	}
	return p, err
}

// Analytics aggregates the host's events and bookings in two queries. Revenue
// and pending payout count only attended bookings, net of the platform fee.
func (r *Repository) Analytics(ctx context.Context, hostID uuid.UUID) (domain.PartnerAnalytics, error) {
	var a domain.PartnerAnalytics
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COUNT(*) FILTER (WHERE status = 'published' AND starts_at >= NOW())
		FROM events
		WHERE host_id = $1
	`, hostID).Scan(&a.EventsTotal, &a.EventsCompleted, &a.EventsUpcoming)
	if err != nil {
		return domain.PartnerAnalytics{}, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE b.status IN ('confirmed', 'attended')),
		       COUNT(*) FILTER (WHERE b.status IN ('cancelled', 'refunded')),
		       COALESCE(SUM(b.amount) FILTER (WHERE b.status IN ('confirmed', 'attended')), 0),
		       COALESCE(SUM(b.amount - b.platform_fee) FILTER (WHERE b.status = 'attended'), 0)
		FROM bookings b
		JOIN events e ON e.id = b.event_id
		WHERE e.host_id = $1
	`, hostID).Scan(
		&a.BookingsTotal, &a.BookingsConfirmed, &a.BookingsCancelled,
		&a.Revenue, &a.PendingPayout,
	)
	if err != nil {
		return domain.PartnerAnalytics{}, err
	}
	return a, nil
}

func (r *Repository) ListPayouts(ctx context.Context, partnerID uuid.UUID) ([]domain.Payout, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, partner_id, amount, status, requested_at
		FROM payouts
		WHERE partner_id = $1
		ORDER BY requested_at DESC
	`, partnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payout
	for rows.Next() {
		var p domain.Payout
		if err := rows.Scan(&p.ID, &p.PartnerID, &p.Amount, &p.Status, &p.RequestedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RequestPayout sums the unclaimed attended bookings' net revenue into a
// pending payout and tags each booking with the payout id, so the same booking
// can never fund two payouts.
func (r *Repository) RequestPayout(ctx context.Context, traceID string, partner domain.Partner, hostID uuid.UUID) (domain.Payout, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Payout{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Lock the eligible bookings so a concurrent request cannot double count.
	rows, err := tx.Query(ctx, `
		SELECT b.id, b.amount - b.platform_fee
		FROM bookings b
		JOIN events e ON e.id = b.event_id
		WHERE e.host_id = $1 AND b.status = 'attended' AND b.payout_id IS NULL
		FOR UPDATE OF b
	`, hostID)
	if err != nil {
		return domain.Payout{}, err
	}

	var (
		bookingIDs []uuid.UUID
		available  float64
	)
	for rows.Next() {
		var id uuid.UUID
		var net float64
		if err := rows.Scan(&id, &net); err != nil {
			rows.Close()
			return domain.Payout{}, err
		}
		bookingIDs = append(bookingIDs, id)
		available += net
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.Payout{}, err
	}

	if available < domain.MinPayoutAmount {
		return domain.Payout{}, domain.ErrPayoutBelowMin
	}

	payout := domain.Payout{
		ID:        uuid.New(),
		PartnerID: partner.ID,
		Amount:    available,
		Status:    domain.PayoutPending,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO payouts (id, partner_id, amount, status, requested_at)
		VALUES ($1, $2, $3, 'pending', NOW())
		RETURNING requested_at
	`, payout.ID, payout.PartnerID, payout.Amount).Scan(&payout.RequestedAt)
	if err != nil {
		return domain.Payout{}, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE bookings SET payout_id = $2, updated_at = NOW()
		WHERE id = ANY($1)
	`, bookingIDs, payout.ID); err != nil {
		return domain.Payout{}, err
	}

	if err := enqueueOutbox(ctx, tx, traceID, "payout.requested", map[string]any{
		"payout_id":  payout.ID.String(),
		"partner_id": partner.ID.String(),
		"amount":     available,
	}); err != nil {
		return domain.Payout{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Payout{}, err
	}
	return payout, nil
}
