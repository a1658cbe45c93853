package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nnnkkk7/bytehouse-bridge/pkg/config"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/connection"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/sqltoken"
)

// Scratch relation definitions. They are written with the local engine
// name; the executor handed to Ensure rewrites it for the server.
var (
	databasesDDL = fmt.Sprintf(
		"CREATE TABLE %s.%s (name String, engine String, comment String) engine = %s() order by tuple()",
		config.MetadataDatabase, config.MetadataDatabasesTable, config.LocalEngine)
	tablesDDL = fmt.Sprintf(
		"CREATE TABLE %s.%s (name String, database String, engine String, comment String, type String) engine = %s() order by tuple()",
		config.MetadataDatabase, config.MetadataTablesTable, config.LocalEngine)
	columnsDDL = fmt.Sprintf(
		"CREATE TABLE %s.%s (database String, table String, name String, position Int, type String, comment String) engine = %s() order by tuple()",
		config.MetadataDatabase, config.MetadataColumnsTable, config.LocalEngine)
)

// Builder rebuilds the scratch catalog from introspection statements.
// Every call starts from an empty schema; nothing is cached between calls.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder creates a Builder. A nil logger discards output.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{logger: logger}
}

type tableRef struct {
	database string
	name     string
}

// Ensure drops and recreates the scratch relations refs needs, in
// dependency order: databases, then tables, then columns. The first
// failure aborts the rebuild and leaves the schema partially populated.
func (b *Builder) Ensure(ctx context.Context, exec connection.Executor, refs Refs) error {
	if !refs.Any() {
		return nil
	}
	start := time.Now()

	databases, err := b.buildDatabases(ctx, exec)
	if err != nil {
		return err
	}
	if !refs.Tables && !refs.Columns {
		b.logDone(start, len(databases), 0, 0)
		return nil
	}

	tables, err := b.buildTables(ctx, exec, databases)
	if err != nil {
		return err
	}
	if !refs.Columns {
		b.logDone(start, len(databases), len(tables), 0)
		return nil
	}

	columns, err := b.buildColumns(ctx, exec, tables)
	if err != nil {
		return err
	}
	b.logDone(start, len(databases), len(tables), columns)
	return nil
}

func (b *Builder) buildDatabases(ctx context.Context, exec connection.Executor) ([]string, error) {
	for _, stmt := range []string{
		"DROP DATABASE IF EXISTS " + config.MetadataDatabase,
		"CREATE DATABASE " + config.MetadataDatabase,
		databasesDDL,
	} {
		if err := exec.Exec(ctx, stmt); err != nil {
			return nil, err
		}
	}

	res, err := exec.Query(ctx, "SHOW DATABASES")
	if err != nil {
		return nil, err
	}

	var names []string
	var rows [][]any
	for _, row := range res.Rows {
		name := cell(row, config.ShowDatabasesNameIndex)
		if !strings.HasPrefix(name, config.DatabasePrefix) {
			continue
		}
		names = append(names, name)
		rows = append(rows, []any{
			name,
			cell(row, config.ShowDatabasesEngineIndex),
			cell(row, config.ShowDatabasesCommentIndex),
		})
	}
	if err := insert(ctx, exec, config.MetadataDatabasesTable, rows); err != nil {
		return nil, err
	}
	return names, nil
}

func (b *Builder) buildTables(ctx context.Context, exec connection.Executor, databases []string) ([]tableRef, error) {
	if err := exec.Exec(ctx, tablesDDL); err != nil {
		return nil, err
	}

	var tables []tableRef
	for _, db := range databases {
		res, err := exec.Query(ctx, "SHOW TABLES FROM "+sqltoken.QuoteIdent(db))
		if err != nil {
			return nil, err
		}
		rows := make([][]any, 0, len(res.Rows))
		for _, row := range res.Rows {
			name := cell(row, config.ShowTablesNameIndex)
			tables = append(tables, tableRef{database: db, name: name})
			rows = append(rows, []any{
				name,
				db,
				config.ClusterEngine,
				cell(row, config.ShowTablesCommentIndex),
				cell(row, config.ShowTablesKindIndex),
			})
		}
		if err := insert(ctx, exec, config.MetadataTablesTable, rows); err != nil {
			return nil, err
		}
	}
	return tables, nil
}

func (b *Builder) buildColumns(ctx context.Context, exec connection.Executor, tables []tableRef) (int, error) {
	if err := exec.Exec(ctx, columnsDDL); err != nil {
		return 0, err
	}

	total := 0
	for _, t := range tables {
		res, err := exec.Query(ctx, fmt.Sprintf("DESCRIBE TABLE %s.%s",
			sqltoken.QuoteIdent(t.database), sqltoken.QuoteIdent(t.name)))
		if err != nil {
			return 0, err
		}
		rows := make([][]any, 0, len(res.Rows))
		for i, row := range res.Rows {
			rows = append(rows, []any{
				t.database,
				t.name,
				cell(row, config.DescribeNameIndex),
				int32(i),
				cell(row, config.DescribeTypeIndex),
				cell(row, config.DescribeCommentIndex),
			})
		}
		if err := insert(ctx, exec, config.MetadataColumnsTable, rows); err != nil {
			return 0, err
		}
		total += len(rows)
	}
	return total, nil
}

func (b *Builder) logDone(start time.Time, databases, tables, columns int) {
	b.logger.Debug("metadata snapshot rebuilt",
		slog.Int("databases", databases),
		slog.Int("tables", tables),
		slog.Int("columns", columns),
		slog.Duration("elapsed", time.Since(start)))
}

// insert bulk-loads rows into a scratch table. Empty batches are skipped.
func insert(ctx context.Context, exec connection.Executor, table string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	return exec.InsertBatch(ctx, fmt.Sprintf("INSERT INTO %s.%s VALUES", config.MetadataDatabase, table), rows)
}

// cell returns row[i] as text, or "" when the row is shorter.
func cell(row []any, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	if s, ok := row[i].(string); ok {
		return s
	}
	return fmt.Sprint(row[i])
}
