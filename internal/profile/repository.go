package profile

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrTherapistNotFound = errors.New("therapist profile not found")
	ErrCaregiverNotFound = errors.New("caregiver not found")
	ErrPatientNotFound   = errors.New("patient record not found")
)

type Repository interface {
	UpsertTherapist(ctx context.Context, p *TherapistProfile) (*TherapistProfile, error)
	GetTherapist(ctx context.Context, id uuid.UUID) (*TherapistProfile, error)
	ListTherapists(ctx context.Context) ([]TherapistProfile, error)

	UpsertCaregiver(ctx context.Context, c *Caregiver) (*Caregiver, error)
	GetCaregiver(ctx context.Context, id uuid.UUID) (*Caregiver, error)

	CreatePatient(ctx context.Context, p *PatientRecord) (*PatientRecord, error)
	UpdatePatient(ctx context.Context, p *PatientRecord) (*PatientRecord, error)
	DeletePatient(ctx context.Context, id uuid.UUID) error
	GetPatient(ctx context.Context, id uuid.UUID) (*PatientRecord, error)
	ListPatientsByCaregiver(ctx context.Context, caregiverID uuid.UUID) ([]PatientRecord, error)
}
