package auth

import (
	"context"
	"time"

	"github.com/ailawyer-pro/ailawyer/internal/models"
)

// SessionStore persists sessions. Implementations must be safe for
// concurrent use.
type SessionStore interface {
	// Create persists a session, assigning an ID when empty
	Create(ctx context.Context, session *models.Session) error
	// Get returns ErrSessionNotFound for unknown IDs
	Get(ctx context.Context, id string) (*models.Session, error)
	// Delete is idempotent
	Delete(ctx context.Context, id string) error
	// DeleteExpired removes sessions that expired before now and reports how many
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
