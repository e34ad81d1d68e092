package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/memorybox/coordination-server/internal/mailbox"
)

// MemoryRepository is an in-memory Repository used by tests. Confirmation and
// cancellation records written by the transactional methods are forwarded to
// an optional mailbox repository so inbox assertions can run against it.
type MemoryRepository struct {
	mu      sync.Mutex
	slots   map[uuid.UUID]Slot
	events  []EventLog
	Mailbox *mailbox.MemoryRepository
}

func NewMemoryRepository(mb *mailbox.MemoryRepository) *MemoryRepository {
	return &MemoryRepository{
		slots:   make(map[uuid.UUID]Slot),
		Mailbox: mb,
	}
}

func (r *MemoryRepository) CreateSlot(_ context.Context, therapistID uuid.UUID, startAt time.Time, mode SlotMode) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	s := Slot{
		ID:          uuid.New(),
		TherapistID: therapistID,
		StartAt:     startAt,
		Mode:        mode,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.slots[s.ID] = s

	out := s
	return &out, nil
}

func (r *MemoryRepository) GetSlotByID(_ context.Context, id uuid.UUID) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	out := s
	return &out, nil
}

func (r *MemoryRepository) UpdateSlotDetails(_ context.Context, id uuid.UUID, startAt time.Time, mode SlotMode) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[id]
	if !ok || s.Booked {
		return nil, ErrSlotNotFound
	}

	s.StartAt = startAt
	s.Mode = mode
	s.UpdatedAt = time.Now().UTC()
	r.slots[id] = s

	out := s
	return &out, nil
}

func (r *MemoryRepository) DeleteSlot(_ context.Context, id uuid.UUID) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[id]
	if !ok || s.Booked {
		return nil, ErrSlotNotFound
	}
	delete(r.slots, id)

	out := s
	return &out, nil
}

func (r *MemoryRepository) ListByTherapist(_ context.Context, therapistID uuid.UUID) ([]Slot, error) {
	return r.list(func(s Slot) bool {
		return s.TherapistID == therapistID
	}), nil
}

func (r *MemoryRepository) ListAvailable(_ context.Context, therapistID uuid.UUID, after time.Time) ([]Slot, error) {
	return r.list(func(s Slot) bool {
		return s.TherapistID == therapistID && !s.Booked && s.StartAt.After(after)
	}), nil
}

func (r *MemoryRepository) ClaimSlot(ctx context.Context, slotID, patientID uuid.UUID, confirmation *mailbox.ChangeRequest) (*Slot, error) {
	r.mu.Lock()

	s, ok := r.slots[slotID]
	if !ok || s.Booked {
		r.mu.Unlock()
		return nil, ErrSlotNotFound
	}

	p := patientID
	s.Booked = true
	s.BookedBy = &p
	s.UpdatedAt = time.Now().UTC()
	r.slots[slotID] = s
	r.mu.Unlock()

	if r.Mailbox != nil {
		if _, err := r.Mailbox.Insert(ctx, confirmation); err != nil {
			return nil, err
		}
	}

	out := s
	return &out, nil
}

func (r *MemoryRepository) DeleteSlotWithNotice(ctx context.Context, id uuid.UUID, notice *mailbox.ChangeRequest) (*Slot, error) {
	r.mu.Lock()

	s, ok := r.slots[id]
	if !ok || !s.Booked || s.BookedBy == nil || *s.BookedBy != notice.PatientID {
		r.mu.Unlock()
		return nil, ErrSlotNotFound
	}
	delete(r.slots, id)
	r.mu.Unlock()

	if r.Mailbox != nil {
		if _, err := r.Mailbox.Insert(ctx, notice); err != nil {
			return nil, err
		}
	}

	out := s
	return &out, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded event log.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]EventLog, len(r.events))
	copy(out, r.events)
	return out
}

func (r *MemoryRepository) list(match func(Slot) bool) []Slot {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Slot
	for _, s := range r.slots {
		if match(s) {
			result = append(result, s)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartAt.Before(result[j].StartAt)
	})

	return result
}
