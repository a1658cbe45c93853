package connection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/dberror"
)

// Manager runs statements on one pinned connection of a *sql.DB.
//
// Session state such as the active warehouse lives on the server side of a
// single connection, so every statement goes through the same *sql.Conn.
// A Manager is owned by one logical session and is not safe for concurrent use.
type Manager struct {
	db     *sql.DB
	conn   *sql.Conn
	logger *slog.Logger
	closed atomic.Bool

	// done is canceled by Close so in-flight calls abort their socket.
	done   context.Context
	cancel context.CancelFunc
}

// NewManager pins a connection of db. A nil logger discards output.
func NewManager(ctx context.Context, db *sql.DB, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	done, cancel := context.WithCancel(context.Background())
	return &Manager{db: db, conn: conn, logger: logger, done: done, cancel: cancel}, nil
}

// Exec runs a statement that returns no rows.
func (m *Manager) Exec(ctx context.Context, query string) error {
	if m.closed.Load() {
		return dberror.NewStatementError(query, sql.ErrConnDone)
	}
	ctx, release := m.bind(ctx)
	defer release()
	id := uuid.NewString()
	start := time.Now()
	if _, err := m.conn.ExecContext(withQueryID(ctx, id), query); err != nil {
		m.logger.Debug("exec failed", slog.String("query_id", id), slog.String("error", err.Error()))
		return dberror.NewStatementError(query, err)
	}
	m.logger.Debug("exec", slog.String("query_id", id), slog.Duration("elapsed", time.Since(start)))
	return nil
}

// Query runs a statement and collects every row.
func (m *Manager) Query(ctx context.Context, query string) (*Result, error) {
	if m.closed.Load() {
		return nil, dberror.NewStatementError(query, sql.ErrConnDone)
	}
	ctx, release := m.bind(ctx)
	defer release()
	id := uuid.NewString()
	start := time.Now()

	rows, err := m.conn.QueryContext(withQueryID(ctx, id), query)
	if err != nil {
		m.logger.Debug("query failed", slog.String("query_id", id), slog.String("error", err.Error()))
		return nil, dberror.NewStatementError(query, err)
	}
	defer func() { _ = rows.Close() }()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, dberror.NewStatementError(query, err)
	}
	columns := make([]Column, len(columnTypes))
	for i, ct := range columnTypes {
		columns[i] = Column{Name: ct.Name(), Type: ct.DatabaseTypeName()}
	}

	var resultRows [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, dberror.NewStatementError(query, err)
		}
		row := make([]any, len(columns))
		for i, val := range values {
			row[i] = convertValue(val)
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, dberror.NewStatementError(query, err)
	}

	m.logger.Debug("query",
		slog.String("query_id", id),
		slog.Int("rows", len(resultRows)),
		slog.Duration("elapsed", time.Since(start)))

	return &Result{Columns: columns, Rows: resultRows}, nil
}

// InsertBatch sends rows as one block. The driver batches prepared-statement
// executions inside a transaction scope and flushes them on commit; the
// engine does not give that scope transactional semantics.
func (m *Manager) InsertBatch(ctx context.Context, query string, rows [][]any) error {
	if m.closed.Load() {
		return dberror.NewStatementError(query, sql.ErrConnDone)
	}
	ctx, release := m.bind(ctx)
	defer release()
	id := uuid.NewString()
	ctx = withQueryID(ctx, id)
	start := time.Now()

	tx, err := m.conn.BeginTx(ctx, nil)
	if err != nil {
		return dberror.NewStatementError(query, err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return dberror.NewStatementError(query, err)
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = tx.Rollback()
			return dberror.NewStatementError(query, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return dberror.NewStatementError(query, err)
	}

	m.logger.Debug("insert batch",
		slog.String("query_id", id),
		slog.Int("rows", len(rows)),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// Close releases the pinned connection and closes the pool. Closing aborts
// any in-flight call, which then surfaces as a transport error.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.cancel()
	return errors.Join(m.conn.Close(), m.db.Close())
}

// bind derives a context that is also canceled when the Manager closes.
func (m *Manager) bind(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(m.done, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// DB returns the underlying pool.
func (m *Manager) DB() *sql.DB {
	return m.db
}

// withQueryID tags the statement so it can be found in the server query log.
func withQueryID(ctx context.Context, id string) context.Context {
	return clickhouse.Context(ctx, clickhouse.WithQueryID(id))
}

// convertValue converts driver values to plain Go types.
func convertValue(val any) any {
	switch v := val.(type) {
	case nil:
		return nil
	case []byte:
		return string(v)
	default:
		return v
	}
}

var _ Conn = (*Manager)(nil)
