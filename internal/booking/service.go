package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/memorybox/coordination-server/internal/mailbox"
	"github.com/memorybox/coordination-server/internal/notify"
	"github.com/memorybox/coordination-server/internal/realtime"
	redisclient "github.com/memorybox/coordination-server/internal/redis"
)

const (
	EventSlotCreated   = "SLOT_CREATED"
	EventSlotUpdated   = "SLOT_UPDATED"
	EventSlotDeleted   = "SLOT_DELETED"
	EventSlotBooked    = "SLOT_BOOKED"
	EventSlotCancelled = "SLOT_CANCELLED"
)

var (
	ErrSlotAlreadyBooked = errors.New("slot is already booked")
	ErrSlotBeingBooked   = errors.New("slot is currently being booked, please retry")
	ErrSlotBooked        = errors.New("booked slots cannot be edited")
	ErrSlotInPast        = errors.New("slot start time is in the past")
	ErrInvalidMode       = errors.New("mode must be online or offline")
	ErrPatientNotFound   = errors.New("patient not found")
	ErrNotSlotOwner      = errors.New("slot belongs to another therapist")
)

// PatientDirectory resolves the caregiver identity behind a booking. Backed
// by the profile store in production.
type PatientDirectory interface {
	PatientInfo(ctx context.Context, id uuid.UUID) (name, email string, err error)
}

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	patients PatientDirectory
	notifier realtime.Notifier
	mailer   notify.Mailer
	log      *zap.Logger
}

func NewService(repo Repository, locker redisclient.Locker, patients PatientDirectory, notifier realtime.Notifier, mailer notify.Mailer, log *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		locker:   locker,
		patients: patients,
		notifier: notifier,
		mailer:   mailer,
		log:      log,
	}
}

// CreateSlot adds an open availability slot. Past start times are rejected.
func (s *Service) CreateSlot(ctx context.Context, therapistID uuid.UUID, startAt time.Time, mode SlotMode) (*Slot, error) {
	if !mode.Valid() {
		return nil, ErrInvalidMode
	}
	if !startAt.After(time.Now()) {
		return nil, ErrSlotInPast
	}

	slot, err := s.repo.CreateSlot(ctx, therapistID, startAt.UTC(), mode)
	if err != nil {
		return nil, fmt.Errorf("create slot: %w", err)
	}

	s.logEvent(ctx, slot.ID, EventSlotCreated, map[string]any{
		"therapist_id": therapistID.String(),
		"start_at":     slot.StartAt,
		"mode":         string(mode),
	})
	s.publishSlot(ctx, realtime.ActionInsert, slot.ID)

	return slot, nil
}

// UpdateSlot edits date/time/mode of a slot while it is still unbooked. Only
// the owning therapist may edit.
func (s *Service) UpdateSlot(ctx context.Context, id, therapistID uuid.UUID, startAt time.Time, mode SlotMode) (*Slot, error) {
	if !mode.Valid() {
		return nil, ErrInvalidMode
	}
	if !startAt.After(time.Now()) {
		return nil, ErrSlotInPast
	}

	existing, err := s.repo.GetSlotByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.TherapistID != therapistID {
		return nil, ErrNotSlotOwner
	}

	slot, err := s.repo.UpdateSlotDetails(ctx, id, startAt.UTC(), mode)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			// Distinguish a missing slot from a booked one.
			existing, getErr := s.repo.GetSlotByID(ctx, id)
			if getErr != nil {
				return nil, getErr
			}
			if existing.Booked {
				return nil, ErrSlotBooked
			}
			return nil, err
		}
		return nil, fmt.Errorf("update slot: %w", err)
	}

	s.logEvent(ctx, slot.ID, EventSlotUpdated, map[string]any{
		"start_at": slot.StartAt,
		"mode":     string(slot.Mode),
	})
	s.publishSlot(ctx, realtime.ActionUpdate, slot.ID)

	return slot, nil
}

// DeleteSlot removes a slot owned by the therapist. Deleting a booked slot
// cascades: a cancellation notice is written to the booked patient in the
// same transaction, so the booking never silently disappears. Both delete
// paths are conditional on the booked state they were chosen for; when a
// concurrent booking lands between the read and the delete, the conditional
// misses and the loop re-reads to take the cascade path instead.
func (s *Service) DeleteSlot(ctx context.Context, id, therapistID uuid.UUID) error {
	for {
		existing, err := s.repo.GetSlotByID(ctx, id)
		if err != nil {
			return err
		}
		if existing.TherapistID != therapistID {
			return ErrNotSlotOwner
		}

		if existing.Booked && existing.BookedBy != nil {
			msg := fmt.Sprintf("Your %s session on %s at %s was cancelled by the therapist.",
				existing.Mode,
				existing.StartAt.Format("Monday, January 2, 2006"),
				existing.StartAt.Format("15:04"),
			)
			notice := &mailbox.ChangeRequest{
				ID:          uuid.New(),
				Kind:        mailbox.KindTherapistNotice,
				TherapistID: existing.TherapistID,
				PatientID:   *existing.BookedBy,
				Message:     msg,
				Status:      mailbox.StatusPending,
			}

			slot, err := s.repo.DeleteSlotWithNotice(ctx, id, notice)
			if err != nil {
				if errors.Is(err, ErrSlotNotFound) {
					// Deleted concurrently; the next read settles it.
					continue
				}
				return fmt.Errorf("delete booked slot: %w", err)
			}

			s.logEvent(ctx, slot.ID, EventSlotCancelled, map[string]any{
				"patient_id": existing.BookedBy.String(),
			})
			s.publishSlot(ctx, realtime.ActionDelete, slot.ID)
			s.publishChangeRequest(ctx, realtime.ActionInsert, notice.ID)

			return nil
		}

		slot, err := s.repo.DeleteSlot(ctx, id)
		if err != nil {
			if errors.Is(err, ErrSlotNotFound) {
				// The slot was booked or removed after the read. A slot never
				// goes back to unbooked, so the retry terminates.
				continue
			}
			return fmt.Errorf("delete slot: %w", err)
		}

		s.logEvent(ctx, slot.ID, EventSlotDeleted, nil)
		s.publishSlot(ctx, realtime.ActionDelete, slot.ID)

		return nil
	}
}

// ListAvailable returns the unbooked future slots of a therapist, soonest
// first. This is what a patient sees on the booking board.
func (s *Service) ListAvailable(ctx context.Context, therapistID uuid.UUID) ([]Slot, error) {
	slots, err := s.repo.ListAvailable(ctx, therapistID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	return slots, nil
}

// ListByTherapist returns every slot of a therapist for the dashboard view.
func (s *Service) ListByTherapist(ctx context.Context, therapistID uuid.UUID) ([]Slot, error) {
	slots, err := s.repo.ListByTherapist(ctx, therapistID)
	if err != nil {
		return nil, fmt.Errorf("list therapist slots: %w", err)
	}
	return slots, nil
}

// Book reserves a slot for a patient. The per-slot Redis lock keeps
// concurrent attempts out of the critical section; inside it, the claim is a
// conditional update so exactly one writer wins and the loser gets an
// explicit rejection. The slot flip and the booking confirmation commit in
// one transaction.
func (s *Service) Book(ctx context.Context, slotID, patientID uuid.UUID) (*Slot, error) {
	patientName, patientEmail, err := s.patients.PatientInfo(ctx, patientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	slot, err := s.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("load slot: %w", err)
	}
	if slot.Booked {
		return nil, ErrSlotAlreadyBooked
	}
	if !slot.StartAt.After(time.Now()) {
		return nil, ErrSlotInPast
	}

	var claimed *Slot

	err = s.locker.WithSlotLock(ctx, slotID, func(lockCtx context.Context) error {
		confirmation := mailbox.NewBookingConfirmation(
			slot.TherapistID, patientID, patientName, slot.StartAt, string(slot.Mode))

		got, err := s.repo.ClaimSlot(lockCtx, slotID, patientID, confirmation)
		if err != nil {
			if errors.Is(err, ErrSlotNotFound) {
				// The row was there before the lock, so the conditional
				// update failed on booked = false.
				return ErrSlotAlreadyBooked
			}
			return fmt.Errorf("claim slot: %w", err)
		}

		claimed = got

		s.logEvent(lockCtx, slotID, EventSlotBooked, map[string]any{
			"patient_id": patientID.String(),
		})
		s.publishSlot(lockCtx, realtime.ActionUpdate, slotID)
		s.publishChangeRequest(lockCtx, realtime.ActionInsert, confirmation.ID)

		if s.mailer != nil {
			if mailErr := s.mailer.SendBookingConfirmation(lockCtx, notify.BookingConfirmation{
				PatientName:  patientName,
				PatientEmail: patientEmail,
				TherapistID:  slot.TherapistID,
				StartAt:      slot.StartAt,
				Mode:         string(slot.Mode),
			}); mailErr != nil {
				s.log.Warn("booking confirmation mail failed",
					zap.String("slot_id", slotID.String()),
					zap.Error(mailErr),
				)
			}
		}

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return claimed, nil
}

func (s *Service) logEvent(ctx context.Context, slotID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	id := slotID
	ev := EventLog{
		EventType: eventType,
		SlotID:    &id,
		Payload:   data,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error("insert event log",
			zap.String("event", eventType),
			zap.String("slot_id", slotID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) publishSlot(ctx context.Context, action string, id uuid.UUID) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(ctx, realtime.Event{
		Table:  realtime.TableAvailability,
		Action: action,
		RowID:  id,
	})
}

func (s *Service) publishChangeRequest(ctx context.Context, action string, id uuid.UUID) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(ctx, realtime.Event{
		Table:  realtime.TableChangeRequests,
		Action: action,
		RowID:  id,
	})
}
