package port

import (
	"context"
	"time"

	"github.com/odysseycup/admin-gate/internal/core/domain"
)

// SessionRepository deals with session storage.
type SessionRepository interface {
	Create(ctx context.Context, session domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)

	// Touch extends the idle expiry only when the session is still usable
	// at the supplied moment; the usability predicate and the extension
	// must be a single atomic store operation so a touch racing a logout
	// or expiry can never resurrect a dead session. Returns the refreshed
	// session, or repository.ErrNotFound when the predicate failed.
	Touch(ctx context.Context, sessionID string, at time.Time, idleTTL, absoluteCap time.Duration) (*domain.Session, error)

	// Revoke tombstones the session. Unknown IDs are treated as already
	// revoked and do not error.
	Revoke(ctx context.Context, sessionID string, at time.Time) error
}
