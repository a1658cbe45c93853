package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/nnnkkk7/bytehouse-bridge/pkg/config"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/connection"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/dberror"
)

// Handle owns one physical connection plus what was negotiated on open:
// the target schema, the engine version and the atomic exchange flag.
//
// A Handle belongs to one logical session. Close may be called from another
// goroutine to abort an in-flight statement.
type Handle struct {
	creds  config.Credentials
	schema string
	dial   dialFunc
	logger *slog.Logger

	mu             sync.Mutex
	conn           connection.Conn
	version        string
	atomicExchange bool
	closed         atomic.Bool
}

// Conn returns the current physical connection.
func (h *Handle) Conn() connection.Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn
}

// Schema returns the schema the connection is scoped to.
func (h *Handle) Schema() string {
	return h.schema
}

// ServerVersion returns the engine version as major.minor.patch.
func (h *Handle) ServerVersion() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.version
}

// AtomicExchange reports whether EXCHANGE TABLES was confirmed on open.
func (h *Handle) AtomicExchange() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.atomicExchange
}

// Credentials returns the validated credentials the handle was opened with.
func (h *Handle) Credentials() config.Credentials {
	return h.creds
}

// Exec implements connection.Executor on the current connection.
func (h *Handle) Exec(ctx context.Context, sql string) error {
	conn, err := h.live(sql)
	if err != nil {
		return err
	}
	return conn.Exec(ctx, sql)
}

// Query implements connection.Executor on the current connection.
func (h *Handle) Query(ctx context.Context, sql string) (*connection.Result, error) {
	conn, err := h.live(sql)
	if err != nil {
		return nil, err
	}
	return conn.Query(ctx, sql)
}

// InsertBatch implements connection.Executor on the current connection.
func (h *Handle) InsertBatch(ctx context.Context, sql string, rows [][]any) error {
	conn, err := h.live(sql)
	if err != nil {
		return err
	}
	return conn.InsertBatch(ctx, sql, rows)
}

func (h *Handle) live(sql string) (connection.Conn, error) {
	if h.closed.Load() {
		return nil, dberror.NewStatementError(sql, errHandleClosed)
	}
	return h.Conn(), nil
}

// Close disconnects the transport. Calling it more than once is a no-op.
func (h *Handle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	conn := h.Conn()
	if conn == nil {
		return nil
	}
	h.logger.Debug("session closed", slog.String("schema", h.schema))
	return conn.Close()
}

// Reset closes the connection and opens a new one with the same
// credentials, repeating post-connect setup.
func (h *Handle) Reset(ctx context.Context) error {
	_ = h.Close()
	return h.connect(ctx)
}

var _ connection.Conn = (*Handle)(nil)
