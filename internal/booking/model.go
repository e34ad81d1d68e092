package booking

import (
	"time"

	"github.com/google/uuid"
)

type SlotMode string

const (
	ModeOnline  SlotMode = "online"
	ModeOffline SlotMode = "offline"
)

func (m SlotMode) Valid() bool {
	return m == ModeOnline || m == ModeOffline
}

// Slot is a single bookable therapist time unit.
//
// Invariant: Booked is true exactly when BookedBy is non-nil. Every write
// path keeps the two in step and the schema carries a CHECK for it.
type Slot struct {
	ID          uuid.UUID
	TherapistID uuid.UUID
	StartAt     time.Time
	Mode        SlotMode
	Booked      bool
	BookedBy    *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type EventLog struct {
	ID        int64
	EventType string
	SlotID    *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}
