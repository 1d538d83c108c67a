// internal/handlers/api_server.go
package handlers

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/eminemrre/cafeduo/internal/duel"
	"github.com/eminemrre/cafeduo/internal/events"
	"github.com/eminemrre/cafeduo/internal/lobby"
	"github.com/eminemrre/cafeduo/internal/middleware"
)

// Server bundles the lifecycle manager, lobby service and event hub behind
// the HTTP boundary. Handlers stay thin: decode, authenticate, call the
// manager, map typed failures to status codes.
type Server struct {
	Manager *duel.Manager
	Lobby   *lobby.Service
	Hub     *events.Hub
	Logger  *logrus.Logger
}

func NewServer(m *duel.Manager, ls *lobby.Service, hub *events.Hub, logger *logrus.Logger) *Server {
	return &Server{Manager: m, Lobby: ls, Hub: hub, Logger: logger}
}

// Routes builds the chi router. The websocket feed is mounted outside the
// logging middleware because the status recorder there breaks hijacking.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/events/ws", s.EventsWS())
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Logger(s.Logger))

		r.Post("/auth/token", s.MintToken())

		r.Post("/session/create", s.CreateSession())
		r.Post("/session/join/{id}", s.JoinSession())
		r.Post("/session/move/{id}", s.SubmitMove())
		r.Post("/session/resign/{id}", s.ResignSession())
		r.Post("/session/finish/{id}", s.FinishSession())
		r.Get("/session/{id}", s.GetSession())
		r.Delete("/session/{id}", s.DeleteSession())

		r.Get("/lobby/list", s.ListLobby())
		r.Get("/lobby/stats", s.LobbyStats())
	})

	return r
}
