package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/DoyleJ11/cardtable-backend/internal/ws"
)

func SetupRoutes(s *ws.Server) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/ws", s.Handler())
	return r
}
