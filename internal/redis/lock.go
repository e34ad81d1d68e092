package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("availability slot is locked by another booking")

const lockKeyPrefix = "lock:availability:"

// Locker serializes booking attempts per availability slot, so two caregivers
// racing for the same slot cannot both reach the claim query.
type Locker interface {
	WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error
}

type slotLocker struct {
	client *redis.Client
	hold   time.Duration
}

// NewSlotLocker returns a Locker backed by a per-slot Redis key. The hold
// duration bounds both the lock TTL and the critical section, so a crashed
// holder frees the slot for the next attempt.
func NewSlotLocker(client *redis.Client, hold time.Duration) Locker {
	return &slotLocker{client: client, hold: hold}
}

func (l *slotLocker) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	key := lockKeyPrefix + slotID.String()
	token := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, key, token, l.hold).Result()
	if err != nil {
		return fmt.Errorf("acquire availability lock: %w", err)
	}
	if !acquired {
		return ErrLockNotAcquired
	}

	// Release on a detached context: a caller that gave up mid-claim must
	// still return the slot instead of leaving the key to expire.
	defer l.release(context.WithoutCancel(ctx), key, token)

	runCtx, cancel := context.WithTimeout(ctx, l.hold)
	defer cancel()

	return fn(runCtx)
}

// releaseScript deletes the key only while our token is still in it, so a
// lock that expired and was reacquired by another attempt is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *slotLocker) release(ctx context.Context, key, token string) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	// Best effort: if the DEL fails the TTL reaps the key.
	_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
}
