package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/memorybox/coordination-server/internal/booking"
	"github.com/memorybox/coordination-server/internal/mailbox"
)

type CreateSlotRequest struct {
	StartAt time.Time `json:"start_at"`
	Mode    string    `json:"mode"`
}

type UpdateSlotRequest struct {
	StartAt time.Time `json:"start_at"`
	Mode    string    `json:"mode"`
}

type SlotResponse struct {
	ID          uuid.UUID  `json:"id"`
	TherapistID uuid.UUID  `json:"therapist_id"`
	StartAt     time.Time  `json:"start_at"`
	Mode        string     `json:"mode"`
	Booked      bool       `json:"booked"`
	BookedBy    *uuid.UUID `json:"booked_by,omitempty"`
}

func toSlotResponse(s *booking.Slot) SlotResponse {
	return SlotResponse{
		ID:          s.ID,
		TherapistID: s.TherapistID,
		StartAt:     s.StartAt,
		Mode:        string(s.Mode),
		Booked:      s.Booked,
		BookedBy:    s.BookedBy,
	}
}

func toSlotResponses(slots []booking.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for i := range slots {
		out = append(out, toSlotResponse(&slots[i]))
	}
	return out
}

type SendMessageRequest struct {
	TherapistID string `json:"therapist_id,omitempty"`
	PatientID   string `json:"patient_id,omitempty"`
	Message     string `json:"message"`
}

type ResolveRequest struct {
	Decision string `json:"decision"`
}

type ChangeRequestResponse struct {
	ID          uuid.UUID `json:"id"`
	Kind        string    `json:"kind"`
	TherapistID uuid.UUID `json:"therapist_id"`
	PatientID   uuid.UUID `json:"patient_id"`
	Message     string    `json:"message"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func toChangeRequestResponse(cr *mailbox.ChangeRequest) ChangeRequestResponse {
	return ChangeRequestResponse{
		ID:          cr.ID,
		Kind:        string(cr.Kind),
		TherapistID: cr.TherapistID,
		PatientID:   cr.PatientID,
		Message:     cr.Message,
		Status:      string(cr.Status),
		CreatedAt:   cr.CreatedAt,
	}
}

func toChangeRequestResponses(items []mailbox.ChangeRequest) []ChangeRequestResponse {
	out := make([]ChangeRequestResponse, 0, len(items))
	for i := range items {
		out = append(out, toChangeRequestResponse(&items[i]))
	}
	return out
}

type TranscribeRequest struct {
	AudioData string `json:"audioData"`
	MimeType  string `json:"mimeType"`
}

type TranscribeResponse struct {
	Transcript string `json:"transcript"`
}
