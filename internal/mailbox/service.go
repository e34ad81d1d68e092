package mailbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/memorybox/coordination-server/internal/realtime"
)

var (
	ErrEmptyMessage      = errors.New("message must not be empty")
	ErrInvalidTransition = errors.New("request is not in a resolvable state")
	ErrNotAddressee      = errors.New("request is not addressed to this user")
)

// Decision is a therapist's resolution of a reschedule request.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionDecline Decision = "decline"
)

// Ack is the receiving party's resolution of a notice or booking confirmation.
type Ack string

const (
	AckConfirm Ack = "confirm"
	AckIgnore  Ack = "ignore"
)

type Service struct {
	repo     Repository
	notifier realtime.Notifier
	log      *zap.Logger
}

func NewService(repo Repository, notifier realtime.Notifier, log *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		log:      log,
	}
}

// SendRescheduleRequest records a patient's free-text ask to move an
// appointment. It lands in the therapist's inbox as pending.
func (s *Service) SendRescheduleRequest(ctx context.Context, therapistID, patientID uuid.UUID, message string) (*ChangeRequest, error) {
	return s.send(ctx, KindRescheduleRequest, therapistID, patientID, message)
}

// SendTherapistNotice records a therapist-initiated cancellation or change
// proposal. It lands in the patient's inbox as pending.
func (s *Service) SendTherapistNotice(ctx context.Context, therapistID, patientID uuid.UUID, message string) (*ChangeRequest, error) {
	return s.send(ctx, KindTherapistNotice, therapistID, patientID, message)
}

func (s *Service) send(ctx context.Context, kind Kind, therapistID, patientID uuid.UUID, message string) (*ChangeRequest, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	cr, err := s.repo.Insert(ctx, &ChangeRequest{
		Kind:        kind,
		TherapistID: therapistID,
		PatientID:   patientID,
		Message:     message,
		Status:      StatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("insert change request: %w", err)
	}

	s.publish(ctx, realtime.ActionInsert, cr.ID)
	return cr, nil
}

// NewBookingConfirmation builds the record written alongside a slot claim.
// The booking repository inserts it inside the claim transaction, so it never
// goes through Insert here.
func NewBookingConfirmation(therapistID, patientID uuid.UUID, patientName string, startAt time.Time, mode string) *ChangeRequest {
	msg := fmt.Sprintf("%s booked your %s slot on %s at %s.",
		patientName,
		mode,
		startAt.Format("Monday, January 2, 2006"),
		startAt.Format("15:04"),
	)

	return &ChangeRequest{
		ID:          uuid.New(),
		Kind:        KindBookingConfirmation,
		TherapistID: therapistID,
		PatientID:   patientID,
		Message:     msg,
		Status:      StatusPending,
	}
}

// Respond resolves a pending reschedule request with the therapist's
// decision. Only the addressed therapist may resolve it.
func (s *Service) Respond(ctx context.Context, id, therapistID uuid.UUID, decision Decision) (*ChangeRequest, error) {
	var to Status
	switch decision {
	case DecisionAccept:
		to = StatusAccepted
	case DecisionDecline:
		to = StatusDeclined
	default:
		return nil, fmt.Errorf("%w: unknown decision %q", ErrInvalidTransition, decision)
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.TherapistID != therapistID {
		return nil, ErrNotAddressee
	}

	cr, err := s.repo.UpdateStatus(ctx, id, KindRescheduleRequest, StatusPending, to)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return nil, s.classifyMiss(ctx, id)
		}
		return nil, fmt.Errorf("resolve reschedule request: %w", err)
	}

	s.publish(ctx, realtime.ActionUpdate, cr.ID)
	return cr, nil
}

// Acknowledge resolves a pending therapist notice or booking confirmation on
// the receiving side. Notices are acknowledged by the addressed patient,
// booking confirmations by the addressed therapist.
func (s *Service) Acknowledge(ctx context.Context, id, actorID uuid.UUID, ack Ack) (*ChangeRequest, error) {
	var to Status
	switch ack {
	case AckConfirm:
		to = StatusAcknowledged
	case AckIgnore:
		to = StatusIgnored
	default:
		return nil, fmt.Errorf("%w: unknown acknowledgement %q", ErrInvalidTransition, ack)
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch existing.Kind {
	case KindTherapistNotice:
		if existing.PatientID != actorID {
			return nil, ErrNotAddressee
		}
	case KindBookingConfirmation:
		if existing.TherapistID != actorID {
			return nil, ErrNotAddressee
		}
	default:
		return nil, ErrInvalidTransition
	}

	cr, err := s.repo.UpdateStatus(ctx, id, existing.Kind, StatusPending, to)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			// Row existed a moment ago, so the status check is what failed.
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("acknowledge notice: %w", err)
	}

	s.publish(ctx, realtime.ActionUpdate, cr.ID)
	return cr, nil
}

// TherapistInbox lists pending reschedule requests and booking confirmations
// addressed to the therapist, newest first.
func (s *Service) TherapistInbox(ctx context.Context, therapistID uuid.UUID) ([]ChangeRequest, error) {
	items, err := s.repo.ListForTherapist(ctx, therapistID)
	if err != nil {
		return nil, fmt.Errorf("list therapist inbox: %w", err)
	}
	return items, nil
}

// PatientInbox lists pending therapist notices addressed to the patient.
func (s *Service) PatientInbox(ctx context.Context, patientID uuid.UUID) ([]ChangeRequest, error) {
	items, err := s.repo.ListForPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list patient inbox: %w", err)
	}
	return items, nil
}

// classifyMiss distinguishes a missing row from a row in the wrong state, so
// the API can return 404 vs 409.
func (s *Service) classifyMiss(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrInvalidTransition
}

func (s *Service) publish(ctx context.Context, action string, id uuid.UUID) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(ctx, realtime.Event{
		Table:  realtime.TableChangeRequests,
		Action: action,
		RowID:  id,
	})
}
