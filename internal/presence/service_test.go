package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/memorybox/coordination-server/internal/realtime"
)

const testTTL = 90 * time.Second

type captureNotifier struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (n *captureNotifier) Publish(_ context.Context, ev realtime.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

// newTestService returns a service whose clock is the returned setter, so
// tests can move time forward without sleeping.
func newTestService() (*Service, *captureNotifier, func(time.Time)) {
	notifier := &captureNotifier{}
	svc := NewService(NewMemoryRepository(), notifier, testTTL, zap.NewNop())

	current := time.Now().UTC()
	var mu sync.Mutex
	svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	setNow := func(t time.Time) {
		mu.Lock()
		defer mu.Unlock()
		current = t
	}

	return svc, notifier, setNow
}

func TestHeartbeat(t *testing.T) {
	ctx := context.Background()
	svc, notifier, _ := newTestService()
	userID := uuid.New()

	if err := svc.Heartbeat(ctx, userID); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	status, err := svc.Get(ctx, userID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !status.Online {
		t.Error("user should read online right after a heartbeat")
	}
	if notifier.count() == 0 {
		t.Error("heartbeat published no realtime event")
	}
}

func TestDisconnect(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	userID := uuid.New()

	if err := svc.Heartbeat(ctx, userID); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if err := svc.Disconnect(ctx, userID); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	status, err := svc.Get(ctx, userID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if status.Online {
		t.Error("user should read offline after disconnect")
	}
}

func TestStaleHeartbeatReadsOffline(t *testing.T) {
	ctx := context.Background()
	svc, _, setNow := newTestService()
	userID := uuid.New()
	base := time.Now().UTC()
	setNow(base)

	if err := svc.Heartbeat(ctx, userID); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	// Just inside the TTL the user is still online.
	setNow(base.Add(testTTL))
	status, err := svc.Get(ctx, userID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !status.Online {
		t.Error("user flipped offline before the TTL lapsed")
	}

	// One tick past the TTL the stored flag no longer counts.
	setNow(base.Add(testTTL + time.Second))
	status, err = svc.Get(ctx, userID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if status.Online {
		t.Error("stale heartbeat still reads online")
	}

	all, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, s := range all {
		if s.UserID == userID && s.Online {
			t.Error("stale heartbeat reads online in the list view")
		}
	}
}

func TestUnknownUserReadsOffline(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	userID := uuid.New()

	status, err := svc.Get(ctx, userID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if status.Online {
		t.Error("unknown user should read offline")
	}
	if status.UserID != userID {
		t.Errorf("status carries wrong user id: %s", status.UserID)
	}
}

func TestSweepStale(t *testing.T) {
	ctx := context.Background()
	svc, notifier, setNow := newTestService()
	stale, fresh := uuid.New(), uuid.New()
	base := time.Now().UTC()

	setNow(base)
	if err := svc.Heartbeat(ctx, stale); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	setNow(base.Add(testTTL))
	if err := svc.Heartbeat(ctx, fresh); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	setNow(base.Add(testTTL + time.Second))
	before := notifier.count()

	flipped, err := svc.SweepStale(ctx)
	if err != nil {
		t.Fatalf("SweepStale: %v", err)
	}
	if flipped != 1 {
		t.Fatalf("expected 1 flipped user, got %d", flipped)
	}
	if notifier.count() != before+1 {
		t.Error("sweep did not publish an event for the flipped user")
	}

	// Sweeping again is a no-op; the row is already offline.
	flipped, err = svc.SweepStale(ctx)
	if err != nil {
		t.Fatalf("second SweepStale: %v", err)
	}
	if flipped != 0 {
		t.Errorf("second sweep flipped %d users", flipped)
	}

	status, err := svc.Get(ctx, fresh)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !status.Online {
		t.Error("fresh user was swept offline")
	}
}
