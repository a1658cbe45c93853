// Package server wires the gateway handlers into an HTTP router.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nnnkkk7/bytehouse-bridge/server/handlers"
)

// NewRouter returns the gateway routes.
func NewRouter(h *handlers.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/statements", h.SubmitStatement)
		r.Get("/warehouses", h.ListWarehouses)
		r.Post("/warehouses/{warehouse}:resume", h.ResumeWarehouse)
	})
	return r
}
