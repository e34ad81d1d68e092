package presence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPresenceNotFound = errors.New("presence record not found")
)

type Repository interface {
	Upsert(ctx context.Context, userID uuid.UUID, online bool, at time.Time) (*Record, error)
	Get(ctx context.Context, userID uuid.UUID) (*Record, error)
	List(ctx context.Context) ([]Record, error)

	// MarkStaleOffline flips online rows whose last heartbeat is older than
	// the cutoff, returning the affected users.
	MarkStaleOffline(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}
