// Package connection runs physical statements against the engine.
package connection

import (
	"context"
)

// Column describes one column of an engine response.
type Column struct {
	Name string
	Type string
}

// Result is a raw engine response: ordered rows plus column descriptors.
// It is transient and consumed by the normalizer.
type Result struct {
	Columns []Column
	Rows    [][]any
}

// ColumnNames returns the descriptor names in order.
func (r *Result) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// FirstCell returns the first value of the first row.
func (r *Result) FirstCell() (any, bool) {
	if r == nil || len(r.Rows) == 0 || len(r.Rows[0]) == 0 {
		return nil, false
	}
	return r.Rows[0][0], true
}

// Executor issues physical statements. Implementations block until the
// engine responds or the transport times out.
type Executor interface {
	// Exec runs a statement whose response is not row-shaped.
	Exec(ctx context.Context, sql string) error

	// Query runs a statement and returns its rows with column descriptors.
	Query(ctx context.Context, sql string) (*Result, error)

	// InsertBatch runs one bulk insert of rows using the insert statement sql.
	InsertBatch(ctx context.Context, sql string, rows [][]any) error
}

// Conn is an Executor bound to one physical connection.
type Conn interface {
	Executor
	Close() error
}
