package query

import (
	"context"
)

// SQLRewriter defines the interface for dialect rewriting.
type SQLRewriter interface {
	// Rewrite converts a statement to the server dialect. It must be pure.
	Rewrite(sql string) string
}

// StatementClassifier defines the interface for statement classification.
type StatementClassifier interface {
	// Classify analyzes a rewritten statement and returns its dispatch path.
	Classify(sql string) Statement
}

// StatementDispatcher is the entry point used by hosts and the gateway.
type StatementDispatcher interface {
	// Dispatch runs sql in fetch or command mode and returns its table.
	Dispatch(ctx context.Context, sql string, fetch bool) (*Table, error)

	// Query runs sql in fetch mode.
	Query(ctx context.Context, sql string) (*Table, error)

	// Command runs sql in command mode and returns the first cell, if any.
	Command(ctx context.Context, sql string) (any, error)

	// Insert runs one bulk insert of a typed batch.
	Insert(ctx context.Context, batch *Batch) error
}
