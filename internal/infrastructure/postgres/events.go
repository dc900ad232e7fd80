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

const eventColumns = `id, host_id, club_id, title, COALESCE(description, ''), status, event_type,
	starts_at, ends_at, COALESCE(location_name, ''), capacity, rsvp_count, price,
	COALESCE(cancellation_policy, ''), is_featured, created_at, updated_at`

func scanEvent(row pgx.Row) (domain.Event, error) {
	var ev domain.Event
	err := row.Scan(
		&ev.ID, &ev.HostID, &ev.ClubID, &ev.Title, &ev.Description, &ev.Status, &ev.Type,
		&ev.StartsAt, &ev.EndsAt, &ev.LocationName, &ev.Capacity, &ev.RSVPCount, &ev.Price,
		&ev.CancellationPolicy, &ev.IsFeatured, &ev.CreatedAt, &ev.UpdatedAt,
	)
	return ev, err
}

func (r *Repository) CreateEvent(ctx context.Context, ev *domain.Event) error {
	var clubExists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM clubs WHERE id = $1)`, ev.ClubID).Scan(&clubExists)
	if err != nil {
		return err
	}
	if !clubExists {
		return domain.ErrClubNotFound
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO events (id, host_id, club_id, title, description, status, event_type,
			starts_at, ends_at, location_name, capacity, rsvp_count, price,
			cancellation_policy, is_featured, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, NULLIF($10, ''), $11, 0, $12, NULLIF($13, ''), false, NOW(), NOW())
		RETURNING `+eventColumns,
		ev.ID, ev.HostID, ev.ClubID, ev.Title, ev.Description, string(ev.Status), string(ev.Type),
		ev.StartsAt, ev.EndsAt, ev.LocationName, ev.Capacity, ev.Price, ev.CancellationPolicy,
	)

	created, err := scanEvent(row)
	if err != nil {
		return err
	}
	*ev = created
	return nil
}

func (r *Repository) GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error) {
	ev, err := scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Event{}, domain.ErrEventNotFound
	}
	return ev, err
}

func (r *Repository) ListEvents(ctx context.Context, f domain.EventFilter, limit, offset int) ([]domain.Event, int, error) {
	q := `SELECT ` + eventColumns + `, COUNT(*) OVER() AS total FROM events WHERE status = 'published'`
	args := []any{}
	i := 1

	if f.ClubID != nil {
		q += fmt.Sprintf(" AND club_id = $%d", i)
		args = append(args, *f.ClubID)
		i++
	}
	if f.Type != nil {
		q += fmt.Sprintf(" AND event_type = $%d", i)
		args = append(args, string(*f.Type))
		i++
	}
	if f.Upcoming {
		q += " AND starts_at >= NOW()"
	}
	if f.Featured {
		q += " AND is_featured"
	}
	if f.Upcoming {
		q += " ORDER BY starts_at ASC"
	} else {
		q += " ORDER BY starts_at DESC"
	}
	q += fmt.Sprintf(" LIMIT $%d OFFSET $%d", i, i+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []domain.Event
	var total int
	for rows.Next() {
		var ev domain.Event
		if err := rows.Scan(
			&ev.ID, &ev.HostID, &ev.ClubID, &ev.Title, &ev.Description, &ev.Status, &ev.Type,
			&ev.StartsAt, &ev.EndsAt, &ev.LocationName, &ev.Capacity, &ev.RSVPCount, &ev.Price,
			&ev.CancellationPolicy, &ev.IsFeatured, &ev.CreatedAt, &ev.UpdatedAt, &total,
		); err != nil {
			return nil, 0, err
		}
		events = append(events, ev)
	}
	return events, total, rows.Err()
}

func (r *Repository) UpdateEvent(ctx context.Context, id uuid.UUID, upd domain.EventUpdate) (domain.Event, error) {
	set := []string{"updated_at = NOW()"}
	args := []any{id}
	i := 2

	add := func(col string, v any) {
		set = append(set, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, v)
		i++
	}

	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.StartsAt != nil {
		add("starts_at", *upd.StartsAt)
	}
	if upd.EndsAt != nil {
		add("ends_at", *upd.EndsAt)
	}
	if upd.LocationName != nil {
		add("location_name", *upd.LocationName)
	}
	if upd.Capacity != nil {
		add("capacity", *upd.Capacity)
	}
	if upd.Price != nil {
		add("price", *upd.Price)
	}
	if upd.CancellationPolicy != nil {
		add("cancellation_policy", *upd.CancellationPolicy)
	}
	if upd.Status != nil {
		add("status", string(*upd.Status))
	}

	q := "UPDATE events SET " + joinSet(set) + " WHERE id = $1 RETURNING " + eventColumns
	ev, err := scanEvent(r.pool.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Event{}, domain.ErrEventNotFound
	}
	return ev, err
}

func joinSet(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}

// CancelEvent marks the event cancelled and expires every active or waitlisted
// RSVP in the same transaction, with a notification outbox row per attendee.
func (r *Repository) CancelEvent(ctx context.Context, traceID string, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM events WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrEventNotFound
	}
	if err != nil {
		return err
	}
	if status == string(domain.EventCancelled) {
		// idempotent
		return tx.Commit(ctx)
	}

	type affected struct {
		UserID     uuid.UUID
		PrevStatus string
	}
	var users []affected

	rows, err := tx.Query(ctx, `
		SELECT user_id, status
		FROM rsvps
		WHERE event_id = $1 AND status IN ('confirmed', 'waitlist')
		FOR UPDATE
	`, id)
	if err != nil {
		return err
	}
	for rows.Next() {
		var a affected
		if err := rows.Scan(&a.UserID, &a.PrevStatus); err == nil {
			users = append(users, a)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if len(users) > 0 {
		_, err = tx.Exec(ctx, `
			UPDATE rsvps
			SET status = 'expired', updated_at = NOW()
			WHERE event_id = $1 AND status IN ('confirmed', 'waitlist')
		`, id)
		if err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE events
		SET status = 'cancelled', rsvp_count = 0, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, u := range users {
		if err := enqueueOutbox(ctx, tx, traceID, "notify.event_cancelled", map[string]any{
			"event_id":    id.String(),
			"user_id":     u.UserID.String(),
			"prev_status": u.PrevStatus,
			"occurred_at": now.Format(time.RFC3339Nano),
		}); err != nil {
			return err
		}
	}
	if err := enqueueOutbox(ctx, tx, traceID, "event.cancelled", map[string]any{
		"event_id": id.String(),
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) ListAttendees(ctx context.Context, eventID uuid.UUID, limit, offset int) ([]domain.Attendee, int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, checked_in, checked_in_at, created_at, COUNT(*) OVER() AS total
		FROM rsvps
		WHERE event_id = $1 AND status = 'confirmed'
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`, eventID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.Attendee
	var total int
	for rows.Next() {
		var a domain.Attendee
		if err := rows.Scan(&a.RSVPID, &a.UserID, &a.CheckedIn, &a.CheckedInAt, &a.RSVPAt, &total); err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (r *Repository) CompleteEndedEvents(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE events
		SET status = 'completed', updated_at = NOW()
		WHERE status = 'published' AND ends_at IS NOT NULL AND ends_at < $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
