package mailbox

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrRequestNotFound = errors.New("change request not found")
)

// Repository contains all DB interactions needed by the mailbox service.
type Repository interface {
	Insert(ctx context.Context, cr *ChangeRequest) (*ChangeRequest, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ChangeRequest, error)

	// UpdateStatus is conditional on the current kind and status, so a
	// request cannot be resolved twice or resolved by the wrong operation.
	UpdateStatus(ctx context.Context, id uuid.UUID, kind Kind, from, to Status) (*ChangeRequest, error)

	// Inbox queries: pending rows addressed to one party, newest first.
	ListForTherapist(ctx context.Context, therapistID uuid.UUID) ([]ChangeRequest, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID) ([]ChangeRequest, error)
}
