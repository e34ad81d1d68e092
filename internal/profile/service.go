package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ErrValidation wraps validator failures so the API layer can map them to a
// 400 with the field details.
var ErrValidation = errors.New("validation failed")

var validate = validator.New()

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("%w: %s", ErrValidation, verrs.Error())
		}
		return err
	}
	return nil
}

func (s *Service) UpsertTherapist(ctx context.Context, p *TherapistProfile) (*TherapistProfile, error) {
	if p.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: therapist id is required", ErrValidation)
	}
	if err := validateStruct(p); err != nil {
		return nil, err
	}

	saved, err := s.repo.UpsertTherapist(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("upsert therapist: %w", err)
	}
	return saved, nil
}

func (s *Service) GetTherapist(ctx context.Context, id uuid.UUID) (*TherapistProfile, error) {
	return s.repo.GetTherapist(ctx, id)
}

func (s *Service) ListTherapists(ctx context.Context) ([]TherapistProfile, error) {
	therapists, err := s.repo.ListTherapists(ctx)
	if err != nil {
		return nil, fmt.Errorf("list therapists: %w", err)
	}
	return therapists, nil
}

func (s *Service) UpsertCaregiver(ctx context.Context, c *Caregiver) (*Caregiver, error) {
	if c.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: caregiver id is required", ErrValidation)
	}
	if err := validateStruct(c); err != nil {
		return nil, err
	}

	saved, err := s.repo.UpsertCaregiver(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("upsert caregiver: %w", err)
	}
	return saved, nil
}

func (s *Service) GetCaregiver(ctx context.Context, id uuid.UUID) (*Caregiver, error) {
	return s.repo.GetCaregiver(ctx, id)
}

func (s *Service) CreatePatient(ctx context.Context, p *PatientRecord) (*PatientRecord, error) {
	if err := validateStruct(p); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetCaregiver(ctx, p.CaregiverID); err != nil {
		return nil, err
	}

	saved, err := s.repo.CreatePatient(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create patient record: %w", err)
	}
	return saved, nil
}

func (s *Service) UpdatePatient(ctx context.Context, p *PatientRecord) (*PatientRecord, error) {
	if err := validateStruct(p); err != nil {
		return nil, err
	}

	saved, err := s.repo.UpdatePatient(ctx, p)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update patient record: %w", err)
	}
	return saved, nil
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeletePatient(ctx, id)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*PatientRecord, error) {
	return s.repo.GetPatient(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, caregiverID uuid.UUID) ([]PatientRecord, error) {
	patients, err := s.repo.ListPatientsByCaregiver(ctx, caregiverID)
	if err != nil {
		return nil, fmt.Errorf("list patient records: %w", err)
	}
	return patients, nil
}
