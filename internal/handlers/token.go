// internal/handlers/token.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/eminemrre/cafeduo/internal/auth"
)

type mintTokenRequest struct {
	Player string `json:"player"`
}

// MintToken issues an identity token for a player name. Stands in for the
// venue check-in gateway, which owns real identity; everything past this
// endpoint trusts only the token, never request bodies.
func (s *Server) MintToken() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req mintTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Player == "" {
			http.Error(w, "player is required", http.StatusBadRequest)
			return
		}
		token, err := auth.CreateToken(req.Player)
		if err != nil {
			s.Logger.Errorf("mint token: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}
