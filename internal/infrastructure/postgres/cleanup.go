package postgres

import (
	"context"
	"time"

	"github.com/gatherly/events-api/internal/pkg/logger"
)

// StartIdempotencyKeyCleanup deletes expired idempotency keys hourly so the
// fence table does not grow without bound.
func (r *Repository) StartIdempotencyKeyCleanup(ctx context.Context) {
	go func() {
		log := logger.Logger.With().Str("component", "idempotency_cleanup").Logger()
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		r.cleanupExpiredKeys(ctx)

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("stopped")
				return
			case <-ticker.C:
				r.cleanupExpiredKeys(ctx)
			}
		}
	}()
}

func (r *Repository) cleanupExpiredKeys(ctx context.Context) {
	result, err := r.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at < NOW()`)
	if err != nil {
		logger.Logger.Warn().Err(err).Msg("idempotency key cleanup failed")
		return
	}
	if n := result.RowsAffected(); n > 0 {
		logger.Logger.Info().Int64("deleted", n).Msg("idempotency keys cleaned up")
	}
}
