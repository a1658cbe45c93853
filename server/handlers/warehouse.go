package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/warehouse"
	"github.com/nnnkkk7/bytehouse-bridge/server/apierror"
	"github.com/nnnkkk7/bytehouse-bridge/server/types"
)

// ListWarehouses handles GET /v1/warehouses.
func (h *Handler) ListWarehouses(w http.ResponseWriter, r *http.Request) {
	if h.warehouses == nil {
		sendJSON(w, http.StatusOK, types.WarehouseListResponse{Success: true, Data: []types.WarehouseInfo{}})
		return
	}

	h.mu.Lock()
	list, err := h.warehouses.ListWarehouses(r.Context())
	h.mu.Unlock()
	if err != nil {
		sendError(w, apierror.FromError(err))
		return
	}

	data := make([]types.WarehouseInfo, len(list))
	for i, wh := range list {
		data[i] = warehouseInfo(wh)
	}
	sendJSON(w, http.StatusOK, types.WarehouseListResponse{Success: true, Data: data})
}

// ResumeWarehouse handles POST /v1/warehouses/{warehouse}:resume.
// Resuming a warehouse that is already up does nothing.
func (h *Handler) ResumeWarehouse(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "warehouse")
	if h.warehouses == nil {
		sendError(w, apierror.NewObjectNotFoundError("warehouse", name))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	list, err := h.warehouses.ListWarehouses(r.Context())
	if err != nil {
		sendError(w, apierror.FromError(err))
		return
	}
	for _, wh := range list {
		if wh.Name != name {
			continue
		}
		if !wh.IsUp() {
			if err := h.warehouses.ResumeWarehouse(r.Context(), name); err != nil {
				sendError(w, apierror.FromError(err))
				return
			}
			wh.State = warehouse.StateUp
		}
		info := warehouseInfo(wh)
		sendJSON(w, http.StatusOK, types.WarehouseResponse{Success: true, Data: &info})
		return
	}
	sendError(w, apierror.NewObjectNotFoundError("warehouse", name))
}

func warehouseInfo(wh warehouse.Warehouse) types.WarehouseInfo {
	return types.WarehouseInfo{Name: wh.Name, State: string(wh.State)}
}
