package connection

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/go-cmp/cmp"

	_ "github.com/duckdb/duckdb-go/v2"
)

// setupTestDuckDB creates an in-memory DuckDB database for testing.
func setupTestDuckDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("failed to open DuckDB: %v", err)
	}
	return db
}

// TestManager_DuckDB runs the manager against a real engine: DDL, a batch
// insert and a query on the same pinned connection.
func TestManager_DuckDB(t *testing.T) {
	ctx := context.Background()
	mgr, err := NewManager(ctx, setupTestDuckDB(t), nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	t.Cleanup(func() {
		if err := mgr.Close(); err != nil {
			t.Errorf("failed to close manager: %v", err)
		}
	})

	if err := mgr.Exec(ctx, "CREATE TEMP TABLE seed (id INTEGER, name VARCHAR)"); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}

	rows := [][]any{{1, "alice"}, {2, "bob"}, {3, "carol"}}
	if err := mgr.InsertBatch(ctx, "INSERT INTO seed VALUES (?, ?)", rows); err != nil {
		t.Fatalf("InsertBatch() error = %v", err)
	}

	// TEMP tables are connection-local, so this only passes if the manager
	// stayed on one connection.
	res, err := mgr.Query(ctx, "SELECT id, name FROM seed ORDER BY id")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}

	if diff := cmp.Diff([]string{"id", "name"}, res.ColumnNames()); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	want := [][]any{{int32(1), "alice"}, {int32(2), "bob"}, {int32(3), "carol"}}
	if diff := cmp.Diff(want, res.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	if res.Columns[0].Type != "INTEGER" {
		t.Errorf("id type = %q, want INTEGER", res.Columns[0].Type)
	}
}

func TestManager_DuckDB_EmptyResult(t *testing.T) {
	ctx := context.Background()
	mgr, err := NewManager(ctx, setupTestDuckDB(t), nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer func() { _ = mgr.Close() }()

	res, err := mgr.Query(ctx, "SELECT 1 AS a, 'x' AS b WHERE false")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(res.Rows) != 0 {
		t.Errorf("rows = %d, want 0", len(res.Rows))
	}
	if diff := cmp.Diff([]string{"a", "b"}, res.ColumnNames()); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
}
