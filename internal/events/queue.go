// internal/events/queue.go
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/eminemrre/cafeduo/internal/duel"
)

// DefaultQueueName is the Redis list the historian service drains.
const DefaultQueueName = "cafeduo_events"

// EventRecord is the wire form pushed onto the queue; it carries what the
// historian needs to persist the event and settle session history rows.
type EventRecord struct {
	SessionID uuid.UUID       `json:"session_id"`
	EventType string          `json:"event_type"`
	Actor     string          `json:"actor"`
	Session   json.RawMessage `json:"session"`
	Timestamp int64           `json:"timestamp"`
}

// QueuePublisher pushes lifecycle events onto a Redis list for asynchronous
// consumers. Only a quick network send on the calling path.
type QueuePublisher struct {
	rdb   *redis.Client
	queue string
}

func NewQueuePublisher(rdb *redis.Client, queue string) *QueuePublisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &QueuePublisher{rdb: rdb, queue: queue}
}

// Publish serializes the event and RPushes it onto the queue.
func (q *QueuePublisher) Publish(ctx context.Context, ev duel.Event) error {
	view, err := json.Marshal(ev.Session)
	if err != nil {
		return fmt.Errorf("marshal session view: %w", err)
	}
	rec := EventRecord{
		SessionID: ev.Session.ID,
		EventType: ev.Type,
		Actor:     ev.Actor,
		Session:   view,
		Timestamp: ev.At.UnixMilli(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal event record: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.queue, data).Err(); err != nil {
		return fmt.Errorf("rpush to '%s': %w", q.queue, err)
	}
	return nil
}
