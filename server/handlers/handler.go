// Package handlers provides HTTP handlers for the statement gateway.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/nnnkkk7/bytehouse-bridge/pkg/query"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/warehouse"
	"github.com/nnnkkk7/bytehouse-bridge/server/apierror"
	"github.com/nnnkkk7/bytehouse-bridge/server/types"
)

// Handler serves one session. The session's connection handles one
// statement at a time, so every handler that touches it holds mu.
type Handler struct {
	mu         sync.Mutex
	dispatcher query.StatementDispatcher
	warehouses *warehouse.Manager
	health     types.HealthResponse
	logger     *slog.Logger
}

// NewHandler creates a handler. warehouses may be nil, in which case the
// warehouse endpoints report not found.
func NewHandler(dispatcher query.StatementDispatcher, warehouses *warehouse.Manager, health types.HealthResponse, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if health.Status == "" {
		health.Status = "ok"
	}
	return &Handler{
		dispatcher: dispatcher,
		warehouses: warehouses,
		health:     health,
		logger:     logger,
	}
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, http.StatusOK, h.health)
}

func sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func sendError(w http.ResponseWriter, err *apierror.APIError) {
	sendJSON(w, apierror.HTTPStatus(err.Code), err.ToResponse())
}
