package profile

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository used by tests.
type MemoryRepository struct {
	mu         sync.RWMutex
	therapists map[uuid.UUID]TherapistProfile
	caregivers map[uuid.UUID]Caregiver
	patients   map[uuid.UUID]PatientRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		therapists: make(map[uuid.UUID]TherapistProfile),
		caregivers: make(map[uuid.UUID]Caregiver),
		patients:   make(map[uuid.UUID]PatientRecord),
	}
}

func (r *MemoryRepository) UpsertTherapist(_ context.Context, p *TherapistProfile) (*TherapistProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *p
	now := time.Now().UTC()
	if existing, ok := r.therapists[stored.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	r.therapists[stored.ID] = stored

	out := stored
	return &out, nil
}

func (r *MemoryRepository) GetTherapist(_ context.Context, id uuid.UUID) (*TherapistProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.therapists[id]
	if !ok {
		return nil, ErrTherapistNotFound
	}
	out := p
	return &out, nil
}

func (r *MemoryRepository) ListTherapists(_ context.Context) ([]TherapistProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]TherapistProfile, 0, len(r.therapists))
	for _, p := range r.therapists {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *MemoryRepository) UpsertCaregiver(_ context.Context, c *Caregiver) (*Caregiver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *c
	now := time.Now().UTC()
	if existing, ok := r.caregivers[stored.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	r.caregivers[stored.ID] = stored

	out := stored
	return &out, nil
}

func (r *MemoryRepository) GetCaregiver(_ context.Context, id uuid.UUID) (*Caregiver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.caregivers[id]
	if !ok {
		return nil, ErrCaregiverNotFound
	}
	out := c
	return &out, nil
}

func (r *MemoryRepository) CreatePatient(_ context.Context, p *PatientRecord) (*PatientRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *p
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.patients[stored.ID] = stored

	out := stored
	return &out, nil
}

func (r *MemoryRepository) UpdatePatient(_ context.Context, p *PatientRecord) (*PatientRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.patients[p.ID]
	if !ok {
		return nil, ErrPatientNotFound
	}

	stored := *p
	stored.CaregiverID = existing.CaregiverID
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now().UTC()
	r.patients[stored.ID] = stored

	out := stored
	return &out, nil
}

func (r *MemoryRepository) DeletePatient(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patients[id]; !ok {
		return ErrPatientNotFound
	}
	delete(r.patients, id)
	return nil
}

func (r *MemoryRepository) GetPatient(_ context.Context, id uuid.UUID) (*PatientRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	out := p
	return &out, nil
}

func (r *MemoryRepository) ListPatientsByCaregiver(_ context.Context, caregiverID uuid.UUID) ([]PatientRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []PatientRecord
	for _, p := range r.patients {
		if p.CaregiverID == caregiverID {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}
