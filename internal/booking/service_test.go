package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/memorybox/coordination-server/internal/mailbox"
	"github.com/memorybox/coordination-server/internal/notify"
	"github.com/memorybox/coordination-server/internal/realtime"
	redisclient "github.com/memorybox/coordination-server/internal/redis"
)

// memoryLocker mimics the per-slot Redis lock with an in-process map: a
// second caller on a held slot gets ErrLockNotAcquired instead of blocking.
type memoryLocker struct {
	mu   sync.Mutex
	held map[uuid.UUID]bool
}

func newMemoryLocker() *memoryLocker {
	return &memoryLocker{held: make(map[uuid.UUID]bool)}
}

func (l *memoryLocker) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if l.held[slotID] {
		l.mu.Unlock()
		return redisclient.ErrLockNotAcquired
	}
	l.held[slotID] = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, slotID)
		l.mu.Unlock()
	}()

	return fn(ctx)
}

// contendedLocker always reports the lock as taken by someone else.
type contendedLocker struct{}

func (contendedLocker) WithSlotLock(context.Context, uuid.UUID, func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

type fakeDirectory struct {
	patients map[uuid.UUID][2]string
}

func (d *fakeDirectory) PatientInfo(_ context.Context, id uuid.UUID) (string, string, error) {
	info, ok := d.patients[id]
	if !ok {
		return "", "", ErrPatientNotFound
	}
	return info[0], info[1], nil
}

type captureNotifier struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (n *captureNotifier) Publish(_ context.Context, ev realtime.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *captureNotifier) byTable(table string) []realtime.Event {
	n.mu.Lock()
	defer n.mu.Unlock()

	var out []realtime.Event
	for _, ev := range n.events {
		if ev.Table == table {
			out = append(out, ev)
		}
	}
	return out
}

type captureMailer struct {
	mu   sync.Mutex
	sent []notify.BookingConfirmation
}

func (m *captureMailer) SendBookingConfirmation(_ context.Context, bc notify.BookingConfirmation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, bc)
	return nil
}

type fixture struct {
	svc      *Service
	repo     *MemoryRepository
	mailbox  *mailbox.MemoryRepository
	notifier *captureNotifier
	mailer   *captureMailer
	dir      *fakeDirectory
}

func newFixture() *fixture {
	mb := mailbox.NewMemoryRepository()
	repo := NewMemoryRepository(mb)
	notifier := &captureNotifier{}
	mailer := &captureMailer{}
	dir := &fakeDirectory{patients: make(map[uuid.UUID][2]string)}

	return &fixture{
		svc:      NewService(repo, newMemoryLocker(), dir, notifier, mailer, zap.NewNop()),
		repo:     repo,
		mailbox:  mb,
		notifier: notifier,
		mailer:   mailer,
		dir:      dir,
	}
}

func (f *fixture) addPatient(name, email string) uuid.UUID {
	id := uuid.New()
	f.dir.patients[id] = [2]string{name, email}
	return id
}

func (f *fixture) mustCreateSlot(t *testing.T, therapistID uuid.UUID, startAt time.Time, mode SlotMode) *Slot {
	t.Helper()
	slot, err := f.svc.CreateSlot(context.Background(), therapistID, startAt, mode)
	if err != nil {
		t.Fatalf("CreateSlot: %v", err)
	}
	return slot
}

func TestCreateSlot(t *testing.T) {
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		f := newFixture()
		therapistID := uuid.New()
		startAt := time.Now().Add(24 * time.Hour)

		slot, err := f.svc.CreateSlot(ctx, therapistID, startAt, ModeOnline)
		if err != nil {
			t.Fatalf("CreateSlot: %v", err)
		}
		if slot.Booked || slot.BookedBy != nil {
			t.Error("new slot must be unbooked")
		}
		if slot.TherapistID != therapistID {
			t.Errorf("therapist id mismatch: got %s", slot.TherapistID)
		}
	})

	t.Run("past start time rejected", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.CreateSlot(ctx, uuid.New(), time.Now().Add(-time.Hour), ModeOnline)
		if !errors.Is(err, ErrSlotInPast) {
			t.Fatalf("expected ErrSlotInPast, got %v", err)
		}
	})

	t.Run("unknown mode rejected", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.CreateSlot(ctx, uuid.New(), time.Now().Add(time.Hour), SlotMode("hybrid"))
		if !errors.Is(err, ErrInvalidMode) {
			t.Fatalf("expected ErrInvalidMode, got %v", err)
		}
	})
}

func TestUpdateSlot(t *testing.T) {
	ctx := context.Background()

	t.Run("unbooked slot edits", func(t *testing.T) {
		f := newFixture()
		slot := f.mustCreateSlot(t, uuid.New(), time.Now().Add(24*time.Hour), ModeOnline)

		newStart := time.Now().Add(48 * time.Hour)
		updated, err := f.svc.UpdateSlot(ctx, slot.ID, slot.TherapistID, newStart, ModeOffline)
		if err != nil {
			t.Fatalf("UpdateSlot: %v", err)
		}
		if updated.Mode != ModeOffline {
			t.Errorf("mode not updated: got %s", updated.Mode)
		}
		if !updated.StartAt.Equal(newStart.UTC()) {
			t.Errorf("start not updated: got %s", updated.StartAt)
		}
	})

	t.Run("booked slot rejected", func(t *testing.T) {
		f := newFixture()
		patientID := f.addPatient("Asha Rao", "asha@example.com")
		slot := f.mustCreateSlot(t, uuid.New(), time.Now().Add(24*time.Hour), ModeOnline)

		if _, err := f.svc.Book(ctx, slot.ID, patientID); err != nil {
			t.Fatalf("Book: %v", err)
		}

		_, err := f.svc.UpdateSlot(ctx, slot.ID, slot.TherapistID, time.Now().Add(48*time.Hour), ModeOnline)
		if !errors.Is(err, ErrSlotBooked) {
			t.Fatalf("expected ErrSlotBooked, got %v", err)
		}
	})

	t.Run("another therapist rejected", func(t *testing.T) {
		f := newFixture()
		slot := f.mustCreateSlot(t, uuid.New(), time.Now().Add(24*time.Hour), ModeOnline)

		_, err := f.svc.UpdateSlot(ctx, slot.ID, uuid.New(), time.Now().Add(48*time.Hour), ModeOffline)
		if !errors.Is(err, ErrNotSlotOwner) {
			t.Fatalf("expected ErrNotSlotOwner, got %v", err)
		}

		got, err := f.repo.GetSlotByID(ctx, slot.ID)
		if err != nil {
			t.Fatalf("GetSlotByID: %v", err)
		}
		if got.Mode != ModeOnline {
			t.Error("slot was edited by a non-owner")
		}
	})

	t.Run("missing slot", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.UpdateSlot(ctx, uuid.New(), uuid.New(), time.Now().Add(time.Hour), ModeOnline)
		if !errors.Is(err, ErrSlotNotFound) {
			t.Fatalf("expected ErrSlotNotFound, got %v", err)
		}
	})
}

func TestListAvailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	therapistID := uuid.New()
	patientID := f.addPatient("Asha Rao", "asha@example.com")

	later := f.mustCreateSlot(t, therapistID, time.Now().Add(72*time.Hour), ModeOnline)
	sooner := f.mustCreateSlot(t, therapistID, time.Now().Add(24*time.Hour), ModeOffline)
	booked := f.mustCreateSlot(t, therapistID, time.Now().Add(48*time.Hour), ModeOnline)
	f.mustCreateSlot(t, uuid.New(), time.Now().Add(24*time.Hour), ModeOnline) // other therapist

	if _, err := f.svc.Book(ctx, booked.ID, patientID); err != nil {
		t.Fatalf("Book: %v", err)
	}

	slots, err := f.svc.ListAvailable(ctx, therapistID)
	if err != nil {
		t.Fatalf("ListAvailable: %v", err)
	}

	if len(slots) != 2 {
		t.Fatalf("expected 2 open slots, got %d", len(slots))
	}
	if slots[0].ID != sooner.ID || slots[1].ID != later.ID {
		t.Error("slots not ordered soonest first")
	}
	for _, s := range slots {
		if s.Booked {
			t.Errorf("booked slot %s leaked into availability", s.ID)
		}
	}
}

func TestBook(t *testing.T) {
	ctx := context.Background()

	t.Run("claims slot and writes confirmation", func(t *testing.T) {
		f := newFixture()
		therapistID := uuid.New()
		patientID := f.addPatient("Asha Rao", "asha@example.com")
		slot := f.mustCreateSlot(t, therapistID, time.Now().Add(24*time.Hour), ModeOnline)

		claimed, err := f.svc.Book(ctx, slot.ID, patientID)
		if err != nil {
			t.Fatalf("Book: %v", err)
		}
		if !claimed.Booked || claimed.BookedBy == nil || *claimed.BookedBy != patientID {
			t.Errorf("claim not recorded: booked=%v booked_by=%v", claimed.Booked, claimed.BookedBy)
		}

		inbox, err := f.mailbox.ListForTherapist(ctx, therapistID)
		if err != nil {
			t.Fatalf("ListForTherapist: %v", err)
		}
		if len(inbox) != 1 {
			t.Fatalf("expected 1 booking confirmation, got %d", len(inbox))
		}
		if inbox[0].Kind != mailbox.KindBookingConfirmation || inbox[0].Status != mailbox.StatusPending {
			t.Errorf("unexpected confirmation: kind=%s status=%s", inbox[0].Kind, inbox[0].Status)
		}

		if len(f.mailer.sent) != 1 || f.mailer.sent[0].PatientEmail != "asha@example.com" {
			t.Errorf("confirmation mail not sent: %+v", f.mailer.sent)
		}

		var bookedEvent bool
		for _, ev := range f.repo.Events() {
			if ev.EventType == EventSlotBooked {
				bookedEvent = true
			}
		}
		if !bookedEvent {
			t.Error("SLOT_BOOKED event not logged")
		}
	})

	t.Run("already booked", func(t *testing.T) {
		f := newFixture()
		first := f.addPatient("Asha Rao", "asha@example.com")
		second := f.addPatient("Vikram Shah", "vikram@example.com")
		slot := f.mustCreateSlot(t, uuid.New(), time.Now().Add(24*time.Hour), ModeOnline)

		if _, err := f.svc.Book(ctx, slot.ID, first); err != nil {
			t.Fatalf("first Book: %v", err)
		}

		_, err := f.svc.Book(ctx, slot.ID, second)
		if !errors.Is(err, ErrSlotAlreadyBooked) {
			t.Fatalf("expected ErrSlotAlreadyBooked, got %v", err)
		}

		got, err := f.repo.GetSlotByID(ctx, slot.ID)
		if err != nil {
			t.Fatalf("GetSlotByID: %v", err)
		}
		if got.BookedBy == nil || *got.BookedBy != first {
			t.Error("first booking was overwritten")
		}
	})

	t.Run("lock contention", func(t *testing.T) {
		f := newFixture()
		f.svc = NewService(f.repo, contendedLocker{}, f.dir, f.notifier, f.mailer, zap.NewNop())
		patientID := f.addPatient("Asha Rao", "asha@example.com")
		slot := f.mustCreateSlot(t, uuid.New(), time.Now().Add(24*time.Hour), ModeOnline)

		_, err := f.svc.Book(ctx, slot.ID, patientID)
		if !errors.Is(err, ErrSlotBeingBooked) {
			t.Fatalf("expected ErrSlotBeingBooked, got %v", err)
		}
	})

	t.Run("unknown patient", func(t *testing.T) {
		f := newFixture()
		slot := f.mustCreateSlot(t, uuid.New(), time.Now().Add(24*time.Hour), ModeOnline)

		_, err := f.svc.Book(ctx, slot.ID, uuid.New())
		if !errors.Is(err, ErrPatientNotFound) {
			t.Fatalf("expected ErrPatientNotFound, got %v", err)
		}
	})

	t.Run("past slot", func(t *testing.T) {
		f := newFixture()
		patientID := f.addPatient("Asha Rao", "asha@example.com")
		slot, err := f.repo.CreateSlot(ctx, uuid.New(), time.Now().Add(-time.Hour), ModeOnline)
		if err != nil {
			t.Fatalf("CreateSlot: %v", err)
		}

		_, err = f.svc.Book(ctx, slot.ID, patientID)
		if !errors.Is(err, ErrSlotInPast) {
			t.Fatalf("expected ErrSlotInPast, got %v", err)
		}
	})
}

func TestBookConcurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	therapistID := uuid.New()
	slot := f.mustCreateSlot(t, therapistID, time.Now().Add(24*time.Hour), ModeOnline)

	const attempts = 16
	patients := make([]uuid.UUID, attempts)
	for i := range patients {
		patients[i] = f.addPatient("Caregiver", "caregiver@example.com")
	}

	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(patientID uuid.UUID) {
			defer wg.Done()
			_, err := f.svc.Book(ctx, slot.ID, patientID)
			results <- err
		}(patients[i])
	}
	wg.Wait()
	close(results)

	var wins, rejections int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotAlreadyBooked), errors.Is(err, ErrSlotBeingBooked):
			rejections++
		default:
			t.Errorf("unexpected booking error: %v", err)
		}
	}

	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	if wins+rejections != attempts {
		t.Errorf("lost results: wins=%d rejections=%d", wins, rejections)
	}

	inbox, err := f.mailbox.ListForTherapist(ctx, therapistID)
	if err != nil {
		t.Fatalf("ListForTherapist: %v", err)
	}
	if len(inbox) != 1 {
		t.Errorf("expected 1 confirmation after the race, got %d", len(inbox))
	}
}

func TestDeleteSlot(t *testing.T) {
	ctx := context.Background()

	t.Run("unbooked slot just disappears", func(t *testing.T) {
		f := newFixture()
		slot := f.mustCreateSlot(t, uuid.New(), time.Now().Add(24*time.Hour), ModeOnline)

		if err := f.svc.DeleteSlot(ctx, slot.ID, slot.TherapistID); err != nil {
			t.Fatalf("DeleteSlot: %v", err)
		}
		if _, err := f.repo.GetSlotByID(ctx, slot.ID); !errors.Is(err, ErrSlotNotFound) {
			t.Fatalf("slot still present: %v", err)
		}
	})

	t.Run("booked slot cascades a cancellation notice", func(t *testing.T) {
		f := newFixture()
		therapistID := uuid.New()
		patientID := f.addPatient("Asha Rao", "asha@example.com")
		slot := f.mustCreateSlot(t, therapistID, time.Now().Add(24*time.Hour), ModeOnline)

		if _, err := f.svc.Book(ctx, slot.ID, patientID); err != nil {
			t.Fatalf("Book: %v", err)
		}
		if err := f.svc.DeleteSlot(ctx, slot.ID, therapistID); err != nil {
			t.Fatalf("DeleteSlot: %v", err)
		}

		if _, err := f.repo.GetSlotByID(ctx, slot.ID); !errors.Is(err, ErrSlotNotFound) {
			t.Fatalf("slot still present: %v", err)
		}

		inbox, err := f.mailbox.ListForPatient(ctx, patientID)
		if err != nil {
			t.Fatalf("ListForPatient: %v", err)
		}
		if len(inbox) != 1 {
			t.Fatalf("expected 1 cancellation notice, got %d", len(inbox))
		}
		if inbox[0].Kind != mailbox.KindTherapistNotice || inbox[0].Status != mailbox.StatusPending {
			t.Errorf("unexpected notice: kind=%s status=%s", inbox[0].Kind, inbox[0].Status)
		}

		if events := f.notifier.byTable(realtime.TableChangeRequests); len(events) == 0 {
			t.Error("cancellation notice published no realtime event")
		}
	})

	t.Run("another therapist rejected", func(t *testing.T) {
		f := newFixture()
		slot := f.mustCreateSlot(t, uuid.New(), time.Now().Add(24*time.Hour), ModeOnline)

		if err := f.svc.DeleteSlot(ctx, slot.ID, uuid.New()); !errors.Is(err, ErrNotSlotOwner) {
			t.Fatalf("expected ErrNotSlotOwner, got %v", err)
		}
		if _, err := f.repo.GetSlotByID(ctx, slot.ID); err != nil {
			t.Fatalf("slot deleted by a non-owner: %v", err)
		}
	})

	t.Run("missing slot", func(t *testing.T) {
		f := newFixture()
		if err := f.svc.DeleteSlot(ctx, uuid.New(), uuid.New()); !errors.Is(err, ErrSlotNotFound) {
			t.Fatalf("expected ErrSlotNotFound, got %v", err)
		}
	})
}

// bookBehindReads wraps the repository so the slot gets claimed immediately
// after the first read, modelling a caregiver whose booking commits between
// the delete's read and its conditional delete.
type bookBehindReads struct {
	*MemoryRepository
	confirmation *mailbox.ChangeRequest
	patientID    uuid.UUID
	once         sync.Once
}

func (r *bookBehindReads) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	slot, err := r.MemoryRepository.GetSlotByID(ctx, id)
	if err != nil {
		return nil, err
	}
	snapshot := *slot

	r.once.Do(func() {
		if _, err := r.MemoryRepository.ClaimSlot(ctx, id, r.patientID, r.confirmation); err != nil {
			panic(err)
		}
	})

	return &snapshot, nil
}

func TestDeleteSlotRacingBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	therapistID := uuid.New()
	patientID := f.addPatient("Asha Rao", "asha@example.com")
	slot := f.mustCreateSlot(t, therapistID, time.Now().Add(24*time.Hour), ModeOnline)

	racing := &bookBehindReads{
		MemoryRepository: f.repo,
		confirmation:     mailbox.NewBookingConfirmation(therapistID, patientID, "Asha Rao", slot.StartAt, string(slot.Mode)),
		patientID:        patientID,
	}
	f.svc = NewService(racing, newMemoryLocker(), f.dir, f.notifier, f.mailer, zap.NewNop())

	// The delete reads an unbooked snapshot, but by the time it acts the
	// claim has landed. It must notice and cascade, not drop the slot
	// silently out from under the booking.
	if err := f.svc.DeleteSlot(ctx, slot.ID, therapistID); err != nil {
		t.Fatalf("DeleteSlot: %v", err)
	}

	if _, err := f.repo.GetSlotByID(ctx, slot.ID); !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("slot still present: %v", err)
	}

	inbox, err := f.mailbox.ListForPatient(ctx, patientID)
	if err != nil {
		t.Fatalf("ListForPatient: %v", err)
	}
	var notices int
	for _, cr := range inbox {
		if cr.Kind == mailbox.KindTherapistNotice {
			notices++
		}
	}
	if notices != 1 {
		t.Fatalf("expected 1 cancellation notice for the displaced booking, got %d", notices)
	}
}
