// internal/handlers/utils.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/eminemrre/cafeduo/internal/auth"
	"github.com/eminemrre/cafeduo/internal/duel"
)

// extractCookieToken extracts a named cookie value from the Cookie header,
// or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}

// callerIdentity authenticates the request and returns the player identity.
// Accepts "Authorization: Bearer <jwt>" or the auth_token cookie. The body
// is never trusted for identity.
func callerIdentity(r *http.Request) (string, error) {
	token := ""
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		token = strings.TrimPrefix(h, "Bearer ")
	} else if cookie := r.Header.Get("Cookie"); strings.Contains(cookie, "auth_token=") {
		token = extractCookieToken(cookie, "auth_token")
	}
	if token == "" {
		return "", errors.New("missing auth token")
	}
	return auth.Authenticate(token)
}

// sessionID parses the {id} path segment.
func sessionID(raw string) (uuid.UUID, error) {
	return uuid.Parse(raw)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeDomainError maps the manager's typed failures to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, duel.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, duel.ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, duel.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, duel.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
