// Package types defines the gateway's request and response bodies.
package types

// Statement API Types

// StatementRequest submits one logical statement.
type StatementRequest struct {
	SQL   string `json:"sql"`
	Fetch bool   `json:"fetch"`
}

type StatementResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Code    string         `json:"code,omitempty"`
	Data    *StatementData `json:"data,omitempty"`
}

// StatementData is the normalized outcome of a statement. Rows are
// positional in Columns order; Scalar is set in command mode only.
type StatementData struct {
	QueryID   string           `json:"queryId"`
	Status    string           `json:"status"`
	ElapsedMs int64            `json:"elapsedMs"`
	Columns   []ColumnMetadata `json:"columns"`
	Rows      [][]any          `json:"rows"`
	Scalar    any              `json:"scalar,omitempty"`
}

type ColumnMetadata struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Warehouse API Types

type WarehouseInfo struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

type WarehouseListResponse struct {
	Success bool            `json:"success"`
	Data    []WarehouseInfo `json:"data"`
}

type WarehouseResponse struct {
	Success bool           `json:"success"`
	Data    *WarehouseInfo `json:"data,omitempty"`
}

// HealthResponse reports the session the gateway serves.
type HealthResponse struct {
	Status        string `json:"status"`
	Schema        string `json:"schema,omitempty"`
	ServerVersion string `json:"serverVersion,omitempty"`
}
