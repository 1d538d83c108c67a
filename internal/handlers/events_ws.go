// internal/handlers/events_ws.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Custom close codes for the event feed, beyond the standard set.
const (
	BadSubprotocolError   = 3000 // client connected with an unsupported subprotocol
	InvalidAuthTokenError = 3001 // auth token invalid or expired
)

const eventWriteTimeout = 5 * time.Second

// EventsWS streams lifecycle events (session.created, session.joined,
// session.move, session.finished) to the client over a websocket. The feed
// is read-only; client frames are drained and ignored.
func (s *Server) EventsWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"cafeduo"},
			OriginPatterns: []string{"*"}, // tighten in production
		})
		if err != nil {
			s.Logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "cafeduo" {
			c.Close(BadSubprotocolError, "client must speak the cafeduo subprotocol")
			return
		}
		if _, err := callerIdentity(r); err != nil {
			c.Close(InvalidAuthTokenError, "authentication failed")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		subID, eventCh := s.Hub.Subscribe()
		defer s.Hub.Unsubscribe(subID)
		s.Logger.WithField("subscriber", subID).Info("event feed connected")

		// Drain client frames so pings are answered and closure is noticed.
		go func() {
			for {
				if _, _, err := c.Read(ctx); err != nil {
					cancel()
					return
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				c.Close(websocket.StatusNormalClosure, "bye")
				return
			case ev, ok := <-eventCh:
				if !ok {
					c.Close(websocket.StatusNormalClosure, "feed closed")
					return
				}
				writeCtx, writeCancel := context.WithTimeout(ctx, eventWriteTimeout)
				err := wsjson.Write(writeCtx, c, ev)
				writeCancel()
				if err != nil {
					s.Logger.Warnf("event feed write to %s: %v", subID, err)
					return
				}
			}
		}
	}
}
