package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/gatherly/events-api/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RSVP runs the free-event admission inside one transaction: the event row is
// locked first so the capacity read and the counter update cannot race.
func (r *Repository) RSVP(ctx context.Context, traceID, idempotencyKey string, eventID, userID uuid.UUID) (domain.RSVPStatus, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := r.claimIdempotencyKey(ctx, tx, idempotencyKey, userID, eventID, "rsvp"); err != nil {
		return "", err
	}

	var (
		status    string
		eventType string
		startsAt  time.Time
		capacity  int
		rsvpCount int
	)
	err = tx.QueryRow(ctx, `
		SELECT status, event_type, starts_at, capacity, rsvp_count
		FROM events
		WHERE id = $1
		FOR UPDATE
	`, eventID).Scan(&status, &eventType, &startsAt, &capacity, &rsvpCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrEventNotFound
	}
	if err != nil {
		return "", err
	}

	if status != string(domain.EventPublished) {
		return "", domain.ErrEventNotPublished
	}
	if eventType == string(domain.EventPaid) {
		return "", domain.ErrPaidEventRSVP
	}
	if !startsAt.After(time.Now()) {
		return "", domain.ErrEventStarted
	}

	// Lock the (event,user) rsvp row second.
	var existing *domain.RSVPStatus
	var existingRaw string
	err = tx.QueryRow(ctx, `
		SELECT status
		FROM rsvps
		WHERE event_id = $1 AND user_id = $2
		FOR UPDATE
	`, eventID, userID).Scan(&existingRaw)
	if err == nil {
		s := domain.RSVPStatus(existingRaw)
		existing = &s
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}

	newStatus, admitErr := domain.AdmitRSVP(rsvpCount, capacity, existing)
	if admitErr != nil {
		return "", admitErr
	}

	if existing != nil {
		_, err = tx.Exec(ctx, `
			UPDATE rsvps
			SET status = $3,
			    checked_in = false,
			    checked_in_at = NULL,
			    created_at = NOW(),
			    updated_at = NOW()
			WHERE event_id = $1 AND user_id = $2
		`, eventID, userID, string(newStatus))
	} else {
		_, err = tx.Exec(ctx, `
			INSERT INTO rsvps (id, event_id, user_id, status, checked_in, created_at, updated_at)
			VALUES ($1, $2, $3, $4, false, NOW(), NOW())
		`, uuid.New(), eventID, userID, string(newStatus))
	}
	if err != nil {
		return "", err
	}

	if newStatus == domain.RSVPConfirmed {
		if _, err := tx.Exec(ctx, `
			UPDATE events SET rsvp_count = rsvp_count + 1, updated_at = NOW() WHERE id = $1
		`, eventID); err != nil {
			return "", err
		}
	}

	rk := "rsvp.confirmed"
	if newStatus == domain.RSVPWaitlist {
		rk = "rsvp.waitlisted"
	}
	if err := enqueueOutbox(ctx, tx, traceID, rk, map[string]any{
		"event_id": eventID.String(),
		"user_id":  userID.String(),
		"status":   string(newStatus),
	}); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return newStatus, nil
}

// CancelRSVP cancels the caller's RSVP and, when a confirmed seat frees up,
// promotes the earliest waitlisted attendee in the same transaction.
func (r *Repository) CancelRSVP(ctx context.Context, traceID, idempotencyKey string, eventID, userID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := r.claimIdempotencyKey(ctx, tx, idempotencyKey, userID, eventID, "rsvp_cancel"); err != nil {
		return err
	}

	var eventStatus string
	err = tx.QueryRow(ctx, `SELECT status FROM events WHERE id = $1 FOR UPDATE`, eventID).Scan(&eventStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrEventNotFound
	}
	if err != nil {
		return err
	}

	var oldStatus string
	err = tx.QueryRow(ctx, `
		SELECT status
		FROM rsvps
		WHERE event_id = $1 AND user_id = $2
		FOR UPDATE
	`, eventID, userID).Scan(&oldStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrRSVPNotFound
	}
	if err != nil {
		return err
	}

	// idempotent: cancelling a cancelled/expired rsvp is a no-op
	if oldStatus == string(domain.RSVPCancelled) || oldStatus == string(domain.RSVPExpired) {
		return tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx, `
		UPDATE rsvps
		SET status = 'cancelled', updated_at = NOW()
		WHERE event_id = $1 AND user_id = $2
	`, eventID, userID)
	if err != nil {
		return err
	}

	if oldStatus == string(domain.RSVPConfirmed) {
		if _, err := tx.Exec(ctx, `
			UPDATE events SET rsvp_count = GREATEST(rsvp_count - 1, 0), updated_at = NOW() WHERE id = $1
		`, eventID); err != nil {
			return err
		}

		if eventStatus == string(domain.EventPublished) {
			if err := r.promoteFromWaitlist(ctx, tx, traceID, eventID); err != nil {
				return err
			}
		}
	}

	if err := enqueueOutbox(ctx, tx, traceID, "rsvp.cancelled", map[string]any{
		"event_id":    eventID.String(),
		"user_id":     userID.String(),
		"prev_status": oldStatus,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) promoteFromWaitlist(ctx context.Context, tx pgx.Tx, traceID string, eventID uuid.UUID) error {
	var promoUserID uuid.UUID
	err := tx.QueryRow(ctx, `
		SELECT user_id
		FROM rsvps
		WHERE event_id = $1 AND status = 'waitlist'
		ORDER BY created_at ASC, id ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, eventID).Scan(&promoUserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE rsvps SET status = 'confirmed', updated_at = NOW()
		WHERE event_id = $1 AND user_id = $2
	`, eventID, promoUserID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE events SET rsvp_count = rsvp_count + 1, updated_at = NOW() WHERE id = $1
	`, eventID); err != nil {
		return err
	}

	return enqueueOutbox(ctx, tx, traceID, "rsvp.promoted", map[string]any{
		"event_id": eventID.String(),
		"user_id":  promoUserID.String(),
		"reason":   "slot_freed",
	})
}

func (r *Repository) GetRSVP(ctx context.Context, eventID, userID uuid.UUID) (domain.RSVP, error) {
	var rec domain.RSVP
	err := r.pool.QueryRow(ctx, `
		SELECT id, event_id, user_id, status, checked_in, checked_in_at, created_at, updated_at
		FROM rsvps
		WHERE event_id = $1 AND user_id = $2
	`, eventID, userID).Scan(
		&rec.ID, &rec.EventID, &rec.UserID, &rec.Status, &rec.CheckedIn, &rec.CheckedInAt,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RSVP{}, domain.ErrRSVPNotFound
	}
	return rec, err
}

// CheckIn flips the confirmed RSVP to checked in and, for paid events, marks
// the confirmed booking attended so payout eligibility accrues.
func (r *Repository) CheckIn(ctx context.Context, traceID string, eventID, userID uuid.UUID, now time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var startsAt time.Time
	err = tx.QueryRow(ctx, `SELECT starts_at FROM events WHERE id = $1 FOR UPDATE`, eventID).Scan(&startsAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrEventNotFound
	}
	if err != nil {
		return err
	}

	if !domain.CheckInOpen(startsAt, now) {
		return domain.ErrCheckInTooEarly
	}

	var rsvpID uuid.UUID
	var checkedIn bool
	err = tx.QueryRow(ctx, `
		SELECT id, checked_in
		FROM rsvps
		WHERE event_id = $1 AND user_id = $2 AND status = 'confirmed'
		FOR UPDATE
	`, eventID, userID).Scan(&rsvpID, &checkedIn)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotRSVPed
	}
	if err != nil {
		return err
	}
	if checkedIn {
		return domain.ErrAlreadyCheckedIn
	}

	if _, err := tx.Exec(ctx, `
		UPDATE rsvps SET checked_in = true, checked_in_at = $2, updated_at = NOW() WHERE id = $1
	`, rsvpID, now); err != nil {
		return err
	}

	// paid event: the confirmed booking becomes attended
	if _, err := tx.Exec(ctx, `
		UPDATE bookings SET status = 'attended', updated_at = NOW()
		WHERE event_id = $1 AND user_id = $2 AND status = 'confirmed'
	`, eventID, userID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) ListMyRSVPs(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.RSVP, int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, user_id, status, checked_in, checked_in_at, created_at, updated_at,
		       COUNT(*) OVER() AS total
		FROM rsvps
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.RSVP
	var total int
	for rows.Next() {
		var rec domain.RSVP
		if err := rows.Scan(
			&rec.ID, &rec.EventID, &rec.UserID, &rec.Status, &rec.CheckedIn, &rec.CheckedInAt,
			&rec.CreatedAt, &rec.UpdatedAt, &total,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}
