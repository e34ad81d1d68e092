package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Table names clients can subscribe to. They mirror the storage tables so a
// client knows which list to re-fetch when an event arrives.
const (
	TableAvailability   = "therapist_availability"
	TableChangeRequests = "change_requests"
	TablePresence       = "user_presence"
)

const (
	ActionInsert = "INSERT"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// Event is a row-change notification. It carries no row payload: consumers
// re-fetch the affected list, which is the accepted design at this volume.
type Event struct {
	Table  string    `json:"table"`
	Action string    `json:"action"`
	RowID  uuid.UUID `json:"row_id"`
	At     time.Time `json:"at"`
}

// Notifier fans row-change events out to connected clients.
type Notifier interface {
	Publish(ctx context.Context, ev Event)
}

type redisNotifier struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisNotifier(client *redis.Client, log *zap.Logger) Notifier {
	return &redisNotifier{client: client, log: log}
}

func channelFor(table string) string {
	return "realtime:" + table
}

// Publish is best effort. A dropped event only delays a client re-fetch until
// its next poll, so failures are logged and not propagated to the caller.
func (n *redisNotifier) Publish(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		n.log.Error("marshal realtime event", zap.Error(err))
		return
	}

	if err := n.client.Publish(ctx, channelFor(ev.Table), data).Err(); err != nil {
		n.log.Warn("publish realtime event",
			zap.String("table", ev.Table),
			zap.String("action", ev.Action),
			zap.Error(err),
		)
	}
}

// Subscriber delivers events for a set of tables to a single consumer.
type Subscriber struct {
	pubsub *redis.PubSub
	log    *zap.Logger
}

func NewSubscriber(ctx context.Context, client *redis.Client, log *zap.Logger, tables ...string) (*Subscriber, error) {
	channels := make([]string, 0, len(tables))
	for _, t := range tables {
		channels = append(channels, channelFor(t))
	}

	pubsub := client.Subscribe(ctx, channels...)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe realtime channels: %w", err)
	}

	return &Subscriber{pubsub: pubsub, log: log}, nil
}

// Events decodes the subscription into a channel of Event. The channel closes
// when the subscription is closed or the underlying connection drops.
func (s *Subscriber) Events(ctx context.Context) <-chan Event {
	out := make(chan Event, 16)
	msgs := s.pubsub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					s.log.Warn("decode realtime event", zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

func (s *Subscriber) Close() error {
	return s.pubsub.Close()
}
