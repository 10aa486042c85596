package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/ailawyer-pro/ailawyer/internal/tasks"
)

// SessionPurger deletes expired sessions
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// HandlePurgeExpiredSessions processes a session:purge_expired task
func HandlePurgeExpiredSessions(ctx context.Context, t *asynq.Task, purger SessionPurger, logger zerolog.Logger) error {
	payload, err := tasks.ParsePurgePayload(t)
	if err != nil {
		// A malformed payload will never succeed; don't retry it.
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	log := logger.With().
		Str("task", t.Type()).
		Time("requested_at", payload.RequestedAt).
		Str("requested_by", payload.RequestedBy).
		Logger()

	start := time.Now()
	removed, err := purger.PurgeExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to purge expired sessions")
		return err
	}

	log.Info().
		Int64("removed", removed).
		Dur("duration", time.Since(start)).
		Msg("Expired sessions purged")
	return nil
}
