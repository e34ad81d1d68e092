package mailbox

import (
	"time"

	"github.com/google/uuid"
)

// Kind discriminates what a change request is, instead of overloading a
// single status enum with three different message types.
type Kind string

const (
	KindRescheduleRequest   Kind = "reschedule_request"   // patient asks to move an appointment
	KindTherapistNotice     Kind = "therapist_notice"     // therapist cancels or proposes a change
	KindBookingConfirmation Kind = "booking_confirmation" // written when a slot is booked
)

// Status is the per-kind lifecycle. Every kind starts pending; reschedule
// requests resolve to accepted/declined by the therapist, notices and booking
// confirmations resolve to acknowledged/ignored by the receiving party.
type Status string

const (
	StatusPending      Status = "pending"
	StatusAccepted     Status = "accepted"
	StatusDeclined     Status = "declined"
	StatusAcknowledged Status = "acknowledged"
	StatusIgnored      Status = "ignored"
)

type ChangeRequest struct {
	ID          uuid.UUID
	Kind        Kind
	TherapistID uuid.UUID
	PatientID   uuid.UUID
	Message     string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Resolved reports whether the request has left its inbox.
func (c *ChangeRequest) Resolved() bool {
	return c.Status != StatusPending
}
