package presence

import (
	"time"

	"github.com/google/uuid"
)

// Record is the raw stored heartbeat state of one user. The Online flag is
// what the client last wrote; it is never read without a staleness check,
// because a crashed client leaves it true forever.
type Record struct {
	UserID    uuid.UUID
	Online    bool
	LastSeen  time.Time
	UpdatedAt time.Time
}

// OnlineAt applies the staleness threshold: a user counts as online only if
// the flag is set and the last heartbeat is recent enough.
func (r *Record) OnlineAt(now time.Time, ttl time.Duration) bool {
	return r.Online && now.Sub(r.LastSeen) <= ttl
}

// Status is the staleness-adjusted view handed to readers.
type Status struct {
	UserID   uuid.UUID `json:"user_id"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"last_seen"`
}
