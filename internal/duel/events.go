// internal/duel/events.go
package duel

import (
	"time"

	"github.com/eminemrre/cafeduo/internal/models"
)

// Event names emitted by the Manager for downstream real-time transport.
const (
	EventSessionCreated  = "session.created"
	EventSessionJoined   = "session.joined"
	EventSessionMove     = "session.move"
	EventSessionFinished = "session.finished"
)

// Event carries a lifecycle notification. Session is the public view after
// the mutation was applied.
type Event struct {
	Type    string              `json:"type"`
	Actor   string              `json:"actor"`
	Session *models.GameSession `json:"session"`
	At      time.Time           `json:"at"`
}

// EmitFunc receives lifecycle events. Implementations must not block; slow
// consumers drop rather than stall the request path.
type EmitFunc func(Event)

func (m *Manager) emitEvent(typ, actor string, s *models.GameSession) {
	if m.emit == nil {
		return
	}
	m.emit(Event{
		Type:    typ,
		Actor:   actor,
		Session: s,
		At:      time.Now().UTC(),
	})
}
