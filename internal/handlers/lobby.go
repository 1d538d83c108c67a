// internal/handlers/lobby.go
package handlers

import (
	"net/http"

	"github.com/eminemrre/cafeduo/internal/models"
)

// ListLobby serves the waiting-session listing for a scope through the
// cache-aside lobby service. ?scope=all|table|cafe, ?key= for the latter two.
func (s *Server) ListLobby() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := callerIdentity(r); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		scope := models.LobbyScope{
			Kind: r.URL.Query().Get("scope"),
			Key:  r.URL.Query().Get("key"),
		}
		if scope.Kind == "" {
			scope.Kind = models.ScopeAll
		}
		if !scope.Valid() {
			http.Error(w, "invalid lobby scope", http.StatusBadRequest)
			return
		}
		sessions, err := s.Lobby.List(r.Context(), scope)
		if err != nil {
			s.Logger.Errorf("lobby list %s: %v", scope.CacheKey(), err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if sessions == nil {
			sessions = []*models.GameSession{}
		}
		writeJSON(w, http.StatusOK, sessions)
	}
}

// LobbyStats reports the cache's key count and remaining TTLs.
func (s *Server) LobbyStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := callerIdentity(r); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, s.Lobby.Stats(r.Context()))
	}
}
