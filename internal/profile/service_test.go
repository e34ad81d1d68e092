package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func validTherapist() *TherapistProfile {
	return &TherapistProfile{
		ID:             uuid.New(),
		Name:           "Dr. Meera Nair",
		Email:          "meera@example.com",
		Degree:         "M.Phil. Clinical Psychology",
		Specialization: "Dementia care",
		Rate:           1500,
	}
}

func validCaregiver() *Caregiver {
	return &Caregiver{
		ID:    uuid.New(),
		Name:  "Asha Rao",
		Email: "asha@example.com",
	}
}

func validPatient(caregiverID uuid.UUID) *PatientRecord {
	return &PatientRecord{
		CaregiverID: caregiverID,
		Name:        "Raghav Rao",
		Age:         74,
		Stage:       "middle",
		Email:       "raghav@example.com",
	}
}

func TestUpsertTherapist(t *testing.T) {
	ctx := context.Background()

	t.Run("valid profile round-trips", func(t *testing.T) {
		svc := NewService(NewMemoryRepository())
		p := validTherapist()

		saved, err := svc.UpsertTherapist(ctx, p)
		if err != nil {
			t.Fatalf("UpsertTherapist: %v", err)
		}

		got, err := svc.GetTherapist(ctx, saved.ID)
		if err != nil {
			t.Fatalf("GetTherapist: %v", err)
		}
		if got.Name != p.Name || got.Rate != p.Rate {
			t.Errorf("profile mismatch: %+v", got)
		}
	})

	t.Run("bad email rejected", func(t *testing.T) {
		svc := NewService(NewMemoryRepository())
		p := validTherapist()
		p.Email = "not-an-email"

		if _, err := svc.UpsertTherapist(ctx, p); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("missing id rejected", func(t *testing.T) {
		svc := NewService(NewMemoryRepository())
		p := validTherapist()
		p.ID = uuid.Nil

		if _, err := svc.UpsertTherapist(ctx, p); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("upsert preserves creation time", func(t *testing.T) {
		svc := NewService(NewMemoryRepository())
		p := validTherapist()

		first, err := svc.UpsertTherapist(ctx, p)
		if err != nil {
			t.Fatalf("first UpsertTherapist: %v", err)
		}

		p.Rate = 2000
		second, err := svc.UpsertTherapist(ctx, p)
		if err != nil {
			t.Fatalf("second UpsertTherapist: %v", err)
		}
		if !second.CreatedAt.Equal(first.CreatedAt) {
			t.Error("upsert rewrote created_at")
		}
		if second.Rate != 2000 {
			t.Errorf("rate not updated: %v", second.Rate)
		}
	})
}

func TestUpsertCaregiver(t *testing.T) {
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		svc := NewService(NewMemoryRepository())
		c := validCaregiver()

		if _, err := svc.UpsertCaregiver(ctx, c); err != nil {
			t.Fatalf("UpsertCaregiver: %v", err)
		}
		if _, err := svc.GetCaregiver(ctx, c.ID); err != nil {
			t.Fatalf("GetCaregiver: %v", err)
		}
	})

	t.Run("short name rejected", func(t *testing.T) {
		svc := NewService(NewMemoryRepository())
		c := validCaregiver()
		c.Name = "A"

		if _, err := svc.UpsertCaregiver(ctx, c); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})
}

func TestCreatePatient(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*Service, uuid.UUID) {
		t.Helper()
		svc := NewService(NewMemoryRepository())
		c := validCaregiver()
		if _, err := svc.UpsertCaregiver(ctx, c); err != nil {
			t.Fatalf("UpsertCaregiver: %v", err)
		}
		return svc, c.ID
	}

	t.Run("valid record", func(t *testing.T) {
		svc, caregiverID := setup(t)

		saved, err := svc.CreatePatient(ctx, validPatient(caregiverID))
		if err != nil {
			t.Fatalf("CreatePatient: %v", err)
		}
		if saved.ID == uuid.Nil {
			t.Error("patient record got no id")
		}

		list, err := svc.ListPatients(ctx, caregiverID)
		if err != nil {
			t.Fatalf("ListPatients: %v", err)
		}
		if len(list) != 1 {
			t.Fatalf("expected 1 patient, got %d", len(list))
		}
	})

	t.Run("unknown caregiver rejected", func(t *testing.T) {
		svc := NewService(NewMemoryRepository())

		_, err := svc.CreatePatient(ctx, validPatient(uuid.New()))
		if !errors.Is(err, ErrCaregiverNotFound) {
			t.Fatalf("expected ErrCaregiverNotFound, got %v", err)
		}
	})

	t.Run("age bounds", func(t *testing.T) {
		svc, caregiverID := setup(t)

		for _, age := range []int{0, -3, 121} {
			p := validPatient(caregiverID)
			p.Age = age
			if _, err := svc.CreatePatient(ctx, p); !errors.Is(err, ErrValidation) {
				t.Errorf("age %d: expected ErrValidation, got %v", age, err)
			}
		}
	})

	t.Run("missing email rejected", func(t *testing.T) {
		svc, caregiverID := setup(t)

		p := validPatient(caregiverID)
		p.Email = ""
		if _, err := svc.CreatePatient(ctx, p); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})
}

func TestUpdatePatient(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository())
	c := validCaregiver()
	if _, err := svc.UpsertCaregiver(ctx, c); err != nil {
		t.Fatalf("UpsertCaregiver: %v", err)
	}

	saved, err := svc.CreatePatient(ctx, validPatient(c.ID))
	if err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}

	saved.Stage = "late"
	updated, err := svc.UpdatePatient(ctx, saved)
	if err != nil {
		t.Fatalf("UpdatePatient: %v", err)
	}
	if updated.Stage != "late" {
		t.Errorf("stage not updated: %s", updated.Stage)
	}

	missing := validPatient(c.ID)
	missing.ID = uuid.New()
	if _, err := svc.UpdatePatient(ctx, missing); !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
}

func TestDeletePatient(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository())
	c := validCaregiver()
	if _, err := svc.UpsertCaregiver(ctx, c); err != nil {
		t.Fatalf("UpsertCaregiver: %v", err)
	}

	saved, err := svc.CreatePatient(ctx, validPatient(c.ID))
	if err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}

	if err := svc.DeletePatient(ctx, saved.ID); err != nil {
		t.Fatalf("DeletePatient: %v", err)
	}
	if _, err := svc.GetPatient(ctx, saved.ID); !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
	if err := svc.DeletePatient(ctx, saved.ID); !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("second delete: expected ErrPatientNotFound, got %v", err)
	}
}
