package infra

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Event is the message published on an owner's channel and relayed to SSE clients.
type Event struct {
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt string          `json:"occurred_at"`
}

func ownerChannel(ownerID uuid.UUID) string { return "events:owner:" + ownerID.String() }

// EventBus fans out domain events per tenant over Redis pub/sub.
type EventBus struct {
	rdb *redis.Client
}

func NewEventBus(rdb *redis.Client) *EventBus { return &EventBus{rdb: rdb} }

// Publish is best-effort: events are notifications, the database is the record.
func (b *EventBus) Publish(ctx context.Context, ownerID uuid.UUID, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(Event{
		Type:       eventType,
		Payload:    data,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, ownerChannel(ownerID), msg).Err()
}

// Subscribe returns a channel of events for ownerID, closed when ctx ends.
func (b *EventBus) Subscribe(ctx context.Context, ownerID uuid.UUID) <-chan Event {
	sub := b.rdb.Subscribe(ctx, ownerChannel(ownerID))
	// wait for the subscribe ack so events published right after are not missed
	if _, err := sub.Receive(ctx); err != nil {
		log.Warn().Err(err).Str("owner_id", ownerID.String()).Msg("events: subscribe not confirmed")
	}
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					log.Warn().Err(err).Str("channel", m.Channel).Msg("events: dropping malformed message")
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
