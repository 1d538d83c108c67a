// internal/handlers/session.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eminemrre/cafeduo/internal/duel"
)

type createSessionRequest struct {
	GameType    string `json:"gameType"`
	WagerPoints int    `json:"wagerPoints"`
	TableCode   string `json:"tableCode"`
	CafeID      string `json:"cafeId"`
}

// CreateSession opens a waiting session hosted by the authenticated caller.
func (s *Server) CreateSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host, err := callerIdentity(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request payload", http.StatusBadRequest)
			return
		}
		sess, err := s.Manager.Create(r.Context(), host, req.GameType, req.WagerPoints, req.TableCode, req.CafeID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

// JoinSession claims the session's guest slot for the caller. A join race
// loser gets 409 with an explicit "already joined" message.
func (s *Server) JoinSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guest, err := callerIdentity(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		id, err := sessionID(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "invalid session id", http.StatusBadRequest)
			return
		}
		sess, err := s.Manager.Join(r.Context(), id, guest)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

// SubmitMove records the caller's own score submission, live or final.
func (s *Server) SubmitMove() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		submitter, err := callerIdentity(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		id, err := sessionID(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "invalid session id", http.StatusBadRequest)
			return
		}
		var move duel.MoveSubmission
		if err := json.NewDecoder(r.Body).Decode(&move); err != nil {
			http.Error(w, "bad request payload", http.StatusBadRequest)
			return
		}
		sess, err := s.Manager.SubmitMove(r.Context(), id, submitter, move)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

// ResignSession forfeits on behalf of the caller; the opponent wins.
func (s *Server) ResignSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resigner, err := callerIdentity(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		id, err := sessionID(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "invalid session id", http.StatusBadRequest)
			return
		}
		sess, err := s.Manager.Resign(r.Context(), id, resigner)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

type finishSessionRequest struct {
	// Winner is the client's claim. Accepted, then discarded: the server
	// resolves the real winner from the ledger.
	Winner string `json:"winner"`
}

// FinishSession settles the session. The response carries the resolver's
// winner, which may differ from the claim in the request body.
func (s *Server) FinishSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerIdentity(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		id, err := sessionID(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "invalid session id", http.StatusBadRequest)
			return
		}
		var req finishSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
			http.Error(w, "bad request payload", http.StatusBadRequest)
			return
		}
		sess, err := s.Manager.Finish(r.Context(), id, caller, req.Winner)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

// GetSession returns the session's public view.
func (s *Server) GetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := callerIdentity(r); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		id, err := sessionID(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "invalid session id", http.StatusBadRequest)
			return
		}
		sess, err := s.Manager.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

// DeleteSession removes an open session; only its host may do so.
func (s *Server) DeleteSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := callerIdentity(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		id, err := sessionID(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "invalid session id", http.StatusBadRequest)
			return
		}
		if err := s.Manager.Delete(r.Context(), id, caller); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
