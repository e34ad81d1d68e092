package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/memorybox/coordination-server/internal/realtime"
)

// Clients heartbeat on this cadence; the staleness TTL must be a comfortable
// multiple of it so one missed beat does not flip a user offline.
const HeartbeatInterval = 30 * time.Second

type Service struct {
	repo     Repository
	notifier realtime.Notifier
	ttl      time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewService(repo Repository, notifier realtime.Notifier, ttl time.Duration, log *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		ttl:      ttl,
		log:      log,
		now:      time.Now,
	}
}

// Heartbeat records a keep-alive. Clients call it on session start, every 30
// seconds while active, and when a hidden tab becomes visible again.
func (s *Service) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.repo.Upsert(ctx, userID, true, s.now().UTC()); err != nil {
		return fmt.Errorf("presence heartbeat: %w", err)
	}

	s.publish(ctx, userID)
	return nil
}

// Disconnect is the best-effort offline write on page unload. A crashed
// client never sends it; the sweeper covers that case.
func (s *Service) Disconnect(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.repo.Upsert(ctx, userID, false, s.now().UTC()); err != nil {
		return fmt.Errorf("presence disconnect: %w", err)
	}

	s.publish(ctx, userID)
	return nil
}

// Get returns the staleness-adjusted status of one user. Unknown users read
// as offline.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (Status, error) {
	rec, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrPresenceNotFound) {
			return Status{UserID: userID, Online: false}, nil
		}
		return Status{}, fmt.Errorf("get presence: %w", err)
	}

	return Status{
		UserID:   rec.UserID,
		Online:   rec.OnlineAt(s.now(), s.ttl),
		LastSeen: rec.LastSeen,
	}, nil
}

// List returns the staleness-adjusted status of every known user.
func (s *Service) List(ctx context.Context) ([]Status, error) {
	recs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list presence: %w", err)
	}

	now := s.now()
	result := make([]Status, 0, len(recs))
	for _, rec := range recs {
		result = append(result, Status{
			UserID:   rec.UserID,
			Online:   rec.OnlineAt(now, s.ttl),
			LastSeen: rec.LastSeen,
		})
	}
	return result, nil
}

// SweepStale flips stored online flags whose heartbeat has lapsed. Readers
// already apply the TTL, so the sweep only keeps the stored rows honest and
// pushes a realtime event for each flipped user.
func (s *Service) SweepStale(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.ttl)

	users, err := s.repo.MarkStaleOffline(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("mark stale presence offline: %w", err)
	}

	for _, id := range users {
		s.publish(ctx, id)
	}

	if len(users) > 0 {
		s.log.Info("presence sweep flipped stale users", zap.Int("count", len(users)))
	}

	return len(users), nil
}

func (s *Service) publish(ctx context.Context, userID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(ctx, realtime.Event{
		Table:  realtime.TablePresence,
		Action: realtime.ActionUpdate,
		RowID:  userID,
	})
}
