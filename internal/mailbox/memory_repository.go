package mailbox

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository used by tests and tooling.
type MemoryRepository struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]ChangeRequest
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{requests: make(map[uuid.UUID]ChangeRequest)}
}

func (r *MemoryRepository) Insert(_ context.Context, cr *ChangeRequest) (*ChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *cr
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	r.requests[stored.ID] = stored
	out := stored
	return &out, nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*ChangeRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cr, ok := r.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	out := cr
	return &out, nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, kind Kind, from, to Status) (*ChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cr, ok := r.requests[id]
	if !ok || cr.Kind != kind || cr.Status != from {
		return nil, ErrRequestNotFound
	}

	cr.Status = to
	cr.UpdatedAt = time.Now().UTC()
	r.requests[id] = cr

	out := cr
	return &out, nil
}

func (r *MemoryRepository) ListForTherapist(_ context.Context, therapistID uuid.UUID) ([]ChangeRequest, error) {
	return r.list(func(cr ChangeRequest) bool {
		return cr.TherapistID == therapistID &&
			(cr.Kind == KindRescheduleRequest || cr.Kind == KindBookingConfirmation) &&
			cr.Status == StatusPending
	}), nil
}

func (r *MemoryRepository) ListForPatient(_ context.Context, patientID uuid.UUID) ([]ChangeRequest, error) {
	return r.list(func(cr ChangeRequest) bool {
		return cr.PatientID == patientID &&
			cr.Kind == KindTherapistNotice &&
			cr.Status == StatusPending
	}), nil
}

func (r *MemoryRepository) list(match func(ChangeRequest) bool) []ChangeRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []ChangeRequest
	for _, cr := range r.requests {
		if match(cr) {
			result = append(result, cr)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result
}
