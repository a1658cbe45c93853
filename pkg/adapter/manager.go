// Package adapter is the host-facing side of the bridge: a connection
// manager for transformation tools plus the helpers their SQL templates use.
package adapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nnnkkk7/bytehouse-bridge/pkg/config"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/connection"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/dberror"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/query"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/session"
)

// StatusOK is the only status the engine reports for a statement.
const StatusOK = "OK"

// Session is an open connection with the values negotiated on open.
type Session interface {
	connection.Conn
	Schema() string
	ServerVersion() string
	AtomicExchange() bool
}

// OpenFunc opens a session for creds.
type OpenFunc func(ctx context.Context, creds config.Credentials) (Session, error)

// Response describes one executed statement.
type Response struct {
	Status  string
	Elapsed time.Duration
}

// ConnectionManager owns one session for a host thread: it opens it once
// with retry, runs statements through a dispatcher and closes it on cancel.
type ConnectionManager struct {
	creds   config.Credentials
	open    OpenFunc
	logger  *slog.Logger
	comment string
	viewTTL time.Duration
	cache   bool

	mu         sync.Mutex
	sess       Session
	dispatcher *query.Dispatcher
}

// Option configures a ConnectionManager.
type Option func(*ConnectionManager)

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(m *ConnectionManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithOpenFunc replaces session.OpenWithRetry.
func WithOpenFunc(open OpenFunc) Option {
	return func(m *ConnectionManager) {
		if open != nil {
			m.open = open
		}
	}
}

// WithQueryComment prefixes every statement with a block comment.
func WithQueryComment(comment string) Option {
	return func(m *ConnectionManager) {
		m.comment = comment
	}
}

// WithViewCache caches view lookups of the dispatcher for ttl.
func WithViewCache(ttl time.Duration) Option {
	return func(m *ConnectionManager) {
		m.cache = true
		m.viewTTL = ttl
	}
}

// NewConnectionManager creates a manager for creds. Nothing is opened
// until Open is called.
func NewConnectionManager(creds config.Credentials, opts ...Option) *ConnectionManager {
	m := &ConnectionManager{
		creds:  creds,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.open == nil {
		logger := m.logger
		m.open = func(ctx context.Context, creds config.Credentials) (Session, error) {
			return session.OpenWithRetry(ctx, creds, session.WithLogger(logger))
		}
	}
	return m
}

// Open connects unless a session is already open.
func (m *ConnectionManager) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess != nil {
		m.logger.Debug("connection is already open, skipping open")
		return nil
	}

	sess, err := m.open(ctx, m.creds)
	if err != nil {
		return err
	}
	opts := []query.Option{
		query.WithLogger(m.logger),
		query.WithDatabase(sess.Schema()),
	}
	if m.cache {
		opts = append(opts, query.WithViewCache(m.viewTTL))
	}
	m.sess = sess
	m.dispatcher = query.NewDispatcher(sess, opts...)
	m.logger.Info("connection opened",
		slog.String("schema", sess.Schema()),
		slog.String("server_version", sess.ServerVersion()))
	return nil
}

// Execute runs sql and returns its status and table. DDL never fetches,
// because clustered DDL responses are not row-shaped.
func (m *ConnectionManager) Execute(ctx context.Context, sql string, fetch bool) (Response, *query.Table, error) {
	if fetch && query.IsDDL(sql) {
		fetch = false
	}
	sql = m.addQueryComment(sql)
	d, err := m.current()
	if err != nil {
		return Response{}, nil, err
	}

	m.logger.Debug("executing statement", slog.String("sql", sql), slog.Bool("fetch", fetch))
	start := time.Now()
	var table *query.Table
	if fetch {
		table, err = d.Query(ctx, sql)
	} else {
		_, err = d.Command(ctx, sql)
		table = query.Normalize(nil)
	}
	if err != nil {
		m.logger.Debug("error running statement", slog.String("sql", sql))
		return Response{}, nil, err
	}

	resp := Response{Status: StatusOK, Elapsed: time.Since(start)}
	m.logger.Debug("statement status",
		slog.String("status", resp.Status),
		slog.Duration("elapsed", resp.Elapsed))
	return resp, table, nil
}

// AddQuery runs sql in command mode.
func (m *ConnectionManager) AddQuery(ctx context.Context, sql string) (Response, error) {
	resp, _, err := m.Execute(ctx, sql, false)
	return resp, err
}

// Insert sends a typed batch as one bulk insert.
func (m *ConnectionManager) Insert(ctx context.Context, batch *query.Batch) error {
	d, err := m.current()
	if err != nil {
		return err
	}
	return d.Insert(ctx, batch)
}

// Cancel closes the session, which aborts any in-flight statement. The
// next Open reconnects.
func (m *ConnectionManager) Cancel() error {
	m.mu.Lock()
	sess := m.sess
	m.sess = nil
	m.dispatcher = nil
	m.mu.Unlock()

	if sess == nil {
		return nil
	}
	m.logger.Debug("cancelling session")
	return sess.Close()
}

// Close is Cancel.
func (m *ConnectionManager) Close() error {
	return m.Cancel()
}

// Session returns the open session, or nil.
func (m *ConnectionManager) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess
}

// Dispatcher returns the dispatcher of the open session, or nil.
func (m *ConnectionManager) Dispatcher() *query.Dispatcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dispatcher
}

// Credentials returns the credentials the manager connects with.
func (m *ConnectionManager) Credentials() config.Credentials {
	return m.creds
}

func (m *ConnectionManager) current() (*query.Dispatcher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dispatcher == nil {
		return nil, dberror.NewConnectError("connection is not open", errors.New("open was not called"))
	}
	return m.dispatcher, nil
}

func (m *ConnectionManager) addQueryComment(sql string) string {
	if m.comment == "" {
		return sql
	}
	comment := strings.ReplaceAll(m.comment, "*/", "* /")
	return "/* " + comment + " */ " + sql
}

var _ Session = (*session.Handle)(nil)
