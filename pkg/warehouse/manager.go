// Package warehouse activates the compute resource a session runs on.
package warehouse

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nnnkkk7/bytehouse-bridge/pkg/config"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/connection"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/dberror"
)

// State is the activation state reported by SHOW WAREHOUSES.
type State string

// StateUp is the only state in which a warehouse accepts queries.
const StateUp State = "up"

// Warehouse is one row of SHOW WAREHOUSES.
type Warehouse struct {
	Name  string
	State State
}

// IsUp reports whether the warehouse is running.
func (w Warehouse) IsUp() bool {
	return w.State == StateUp
}

// Manager inspects and activates warehouses over one connection.
type Manager struct {
	exec   connection.Executor
	logger *slog.Logger
}

// NewManager creates a warehouse manager. A nil logger discards output.
func NewManager(exec connection.Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{exec: exec, logger: logger}
}

// ListWarehouses returns every warehouse visible to the session.
func (m *Manager) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	res, err := m.exec.Query(ctx, "SHOW WAREHOUSES")
	if err != nil {
		return nil, err
	}

	warehouses := make([]Warehouse, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) <= config.ShowWarehousesStateIndex {
			continue
		}
		warehouses = append(warehouses, Warehouse{
			Name:  fmt.Sprint(row[config.ShowWarehousesNameIndex]),
			State: State(fmt.Sprint(row[config.ShowWarehousesStateIndex])),
		})
	}
	return warehouses, nil
}

// IsUp reports whether the named warehouse is listed and running.
// An unlisted warehouse is reported as not up.
func (m *Manager) IsUp(ctx context.Context, name string) (bool, error) {
	warehouses, err := m.ListWarehouses(ctx)
	if err != nil {
		return false, err
	}
	for _, wh := range warehouses {
		if wh.Name == name && wh.IsUp() {
			return true, nil
		}
	}
	return false, nil
}

// ResumeWarehouse starts a suspended warehouse.
func (m *Manager) ResumeWarehouse(ctx context.Context, name string) error {
	return m.exec.Exec(ctx, "resume warehouse "+name)
}

// UseWarehouse makes name the session's active warehouse.
func (m *Manager) UseWarehouse(ctx context.Context, name string) error {
	return m.exec.Exec(ctx, "set warehouse "+name)
}

// Activate resumes the warehouse if it is not up and then selects it.
// An empty name is a no-op. Any failure is a ConnectError since the
// session cannot run queries without its warehouse.
func (m *Manager) Activate(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}

	up, err := m.IsUp(ctx, name)
	if err != nil {
		return dberror.NewConnectError("failed to inspect warehouse "+name, err)
	}
	if !up {
		m.logger.Info("resuming warehouse", slog.String("warehouse", name))
		if err := m.ResumeWarehouse(ctx, name); err != nil {
			return dberror.NewConnectError("failed to resume warehouse "+name, err)
		}
	}
	if err := m.UseWarehouse(ctx, name); err != nil {
		return dberror.NewConnectError("failed to set warehouse "+name, err)
	}
	return nil
}
