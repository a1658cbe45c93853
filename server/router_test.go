package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nnnkkk7/bytehouse-bridge/internal/enginetest"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/query"
	"github.com/nnnkkk7/bytehouse-bridge/server/handlers"
	"github.com/nnnkkk7/bytehouse-bridge/server/types"
)

func TestNewRouter(t *testing.T) {
	engine := enginetest.New()
	h := handlers.NewHandler(query.NewDispatcher(engine), nil, types.HealthResponse{}, nil)
	router := NewRouter(h)

	tests := []struct {
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{method: http.MethodGet, path: "/health", wantStatus: http.StatusOK},
		{method: http.MethodPost, path: "/v1/statements", body: `{"sql": "select 1"}`, wantStatus: http.StatusOK},
		{method: http.MethodGet, path: "/v1/warehouses", wantStatus: http.StatusOK},
		{method: http.MethodPost, path: "/v1/warehouses/wh:resume", wantStatus: http.StatusNotFound},
		{method: http.MethodGet, path: "/v1/statements", wantStatus: http.StatusMethodNotAllowed},
		{method: http.MethodGet, path: "/nope", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, r)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if id := w.Header().Get("Content-Type"); tt.wantStatus == http.StatusOK && !strings.HasPrefix(id, "application/json") {
				t.Errorf("Content-Type = %q", id)
			}
		})
	}
}
