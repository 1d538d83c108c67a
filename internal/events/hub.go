// internal/events/hub.go
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/eminemrre/cafeduo/internal/duel"
)

// subscriber buffer; a feed that falls this far behind starts dropping.
const subscriberBuffer = 32

// publishTimeout caps the fire-and-forget queue push.
const publishTimeout = 2 * time.Second

// Hub fans lifecycle events out to live websocket subscribers and, when a
// queue publisher is configured, onto the Redis queue for the historian.
// Publish never blocks the request path: slow subscribers drop events and
// the queue push runs on its own goroutine.
type Hub struct {
	mu    sync.Mutex
	subs  map[uuid.UUID]chan duel.Event
	queue *QueuePublisher
}

func NewHub(queue *QueuePublisher) *Hub {
	return &Hub{
		subs:  make(map[uuid.UUID]chan duel.Event),
		queue: queue,
	}
}

// Publish is the Manager's EmitFunc.
func (h *Hub) Publish(ev duel.Event) {
	h.mu.Lock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			log.Warnf("event subscriber %s is behind, dropped %s", id, ev.Type)
		}
	}
	h.mu.Unlock()

	if h.queue != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			defer cancel()
			if err := h.queue.Publish(ctx, ev); err != nil {
				log.Warnf("event queue publish %s: %v", ev.Type, err)
			}
		}()
	}
}

// Subscribe registers a new event feed and returns its id and channel.
func (h *Hub) Subscribe() (uuid.UUID, <-chan duel.Event) {
	id := uuid.New()
	ch := make(chan duel.Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a feed and closes its channel.
func (h *Hub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}
