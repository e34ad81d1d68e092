package profile

import (
	"time"

	"github.com/google/uuid"
)

// TherapistProfile is the public card shown on the booking board.
type TherapistProfile struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name" validate:"required,min=2"`
	Email          string    `json:"email" validate:"required,email"`
	Phone          string    `json:"phone" validate:"omitempty,min=7"`
	Degree         string    `json:"degree"`
	Specialization string    `json:"specialization"`
	Rate           float64   `json:"rate" validate:"gte=0"`
	PhotoURL       string    `json:"photo_url" validate:"omitempty,url"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Caregiver is the account booking on behalf of a patient.
type Caregiver struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name" validate:"required,min=2"`
	Email     string    `json:"email" validate:"required,email"`
	Phone     string    `json:"phone" validate:"omitempty,min=7"`
	Address   string    `json:"address"`
	PhotoURL  string    `json:"photo_url" validate:"omitempty,url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PatientRecord is the attribute bag a caregiver maintains for a patient.
type PatientRecord struct {
	ID          uuid.UUID `json:"id"`
	CaregiverID uuid.UUID `json:"caregiver_id" validate:"required"`
	Name        string    `json:"name" validate:"required,min=2"`
	Age         int       `json:"age" validate:"gte=1,lte=120"`
	Gender      string    `json:"gender"`
	Height      string    `json:"height"`
	Weight      string    `json:"weight"`
	Stage       string    `json:"stage"`
	History     string    `json:"history"`
	BloodGroup  string    `json:"blood_group"`
	Address     string    `json:"address"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email" validate:"required,email"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
