package presence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository used by tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[uuid.UUID]Record
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[uuid.UUID]Record)}
}

func (r *MemoryRepository) Upsert(_ context.Context, userID uuid.UUID, online bool, at time.Time) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := Record{
		UserID:    userID,
		Online:    online,
		LastSeen:  at,
		UpdatedAt: at,
	}
	r.records[userID] = rec

	out := rec
	return &out, nil
}

func (r *MemoryRepository) Get(_ context.Context, userID uuid.UUID) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[userID]
	if !ok {
		return nil, ErrPresenceNotFound
	}
	out := rec
	return &out, nil
}

func (r *MemoryRepository) List(_ context.Context) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		result = append(result, rec)
	}
	return result, nil
}

func (r *MemoryRepository) MarkStaleOffline(_ context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var users []uuid.UUID
	for id, rec := range r.records {
		if rec.Online && rec.LastSeen.Before(cutoff) {
			rec.Online = false
			rec.UpdatedAt = time.Now().UTC()
			r.records[id] = rec
			users = append(users, id)
		}
	}
	return users, nil
}
