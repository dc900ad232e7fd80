package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gatherly/events-api/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements the domain repository interfaces on a single pgx pool.
//
// Deadlock policy: for any transaction touching an event's seats, lock in this
// order:
//  1. events row (FOR UPDATE)
//  2. rsvps row for (event_id, user_id) if needed (FOR UPDATE)
//  3. bookings / payments rows (FOR UPDATE)
//  4. optional waitlist candidate (FOR UPDATE SKIP LOCKED)
//
// This keeps RSVP, booking creation, cancellation and event cancellation from
// cycling against each other.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// claimIdempotencyKey inserts the key once per (key) and verifies the payload
// on replays. A mismatched replay is a client bug, not a retry.
func (r *Repository) claimIdempotencyKey(ctx context.Context, tx pgx.Tx, key string, userID, scopeID uuid.UUID, action string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}

	var insertedKey string
	err := tx.QueryRow(ctx, `
		INSERT INTO idempotency_keys (key, user_id, scope_id, action, created_at, expires_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW() + INTERVAL '24 hours')
		ON CONFLICT (key) DO NOTHING
		RETURNING key
	`, key, userID, scopeID, action).Scan(&insertedKey)

	if errors.Is(err, pgx.ErrNoRows) {
		var existUser, existScope uuid.UUID
		var existAction string
		err := tx.QueryRow(ctx, `
			SELECT user_id, scope_id, action FROM idempotency_keys WHERE key = $1
		`, key).Scan(&existUser, &existScope, &existAction)
		if err != nil {
			return err
		}
		if existUser != userID || existScope != scopeID || existAction != action {
			return domain.ErrIdempotencyKeyMismatch
		}
		// Same payload: fall through, the operation itself is idempotent.
		return nil
	}
	return err
}

func enqueueOutbox(ctx context.Context, tx pgx.Tx, traceID, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox (id, message_id, trace_id, routing_key, payload, occurred_at, status, attempt, next_retry_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), 'pending', 0, NOW())
	`, uuid.New(), uuid.New(), strings.TrimSpace(traceID), routingKey, body)
	return err
}
