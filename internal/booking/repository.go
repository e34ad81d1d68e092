package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/memorybox/coordination-server/internal/mailbox"
)

var (
	ErrSlotNotFound = errors.New("slot not found")
)

// Repository contains all DB interactions needed by the booking service.
type Repository interface {
	CreateSlot(ctx context.Context, therapistID uuid.UUID, startAt time.Time, mode SlotMode) (*Slot, error)
	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)

	// UpdateSlotDetails is conditional on the slot being unbooked.
	UpdateSlotDetails(ctx context.Context, id uuid.UUID, startAt time.Time, mode SlotMode) (*Slot, error)

	// DeleteSlot is conditional on the slot being unbooked; a booked slot
	// surfaces as ErrSlotNotFound so the caller re-reads and cascades.
	DeleteSlot(ctx context.Context, id uuid.UUID) (*Slot, error)

	ListByTherapist(ctx context.Context, therapistID uuid.UUID) ([]Slot, error)
	ListAvailable(ctx context.Context, therapistID uuid.UUID, after time.Time) ([]Slot, error)

	// ClaimSlot marks the slot booked and writes the booking confirmation in
	// one transaction. The claim is conditional on booked = false; a lost
	// race surfaces as ErrSlotNotFound from the conditional update.
	ClaimSlot(ctx context.Context, slotID, patientID uuid.UUID, confirmation *mailbox.ChangeRequest) (*Slot, error)

	// DeleteSlotWithNotice is the cascade for deleting a booked slot: the delete and
	// the cancellation notice to the patient commit together. The delete is
	// conditional on the slot still being booked by the notice's patient.
	DeleteSlotWithNotice(ctx context.Context, id uuid.UUID, notice *mailbox.ChangeRequest) (*Slot, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
