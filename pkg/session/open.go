package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/config"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/connection"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/dberror"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/warehouse"
)

// Option configures Open.
type Option func(*openConfig)

type openConfig struct {
	logger  *slog.Logger
	opener  Opener
	backOff backoff.BackOff
	dial    dialFunc
}

// WithLogger sets the logger used by the session and its connections.
func WithLogger(logger *slog.Logger) Option {
	return func(c *openConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithOpener replaces clickhouse.OpenDB, mainly for tests.
func WithOpener(open Opener) Option {
	return func(c *openConfig) {
		if open != nil {
			c.opener = open
		}
	}
}

// WithBackOff sets the wait policy between OpenWithRetry attempts.
func WithBackOff(b backoff.BackOff) Option {
	return func(c *openConfig) {
		c.backOff = b
	}
}

func newOpenConfig(opts []Option) *openConfig {
	cfg := &openConfig{
		logger: slog.New(slog.DiscardHandler),
		opener: clickhouse.OpenDB,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.dial == nil {
		cfg.dial = dialer(cfg.opener, cfg)
	}
	return cfg
}

// Open validates creds, connects and runs post-connect setup.
//
// Transport failures while connecting are RetryableConnectErrors. Failures
// of warehouse activation, schema creation or version lookup are
// ConnectErrors. The returned Handle must be closed by its owner.
func Open(ctx context.Context, creds config.Credentials, opts ...Option) (*Handle, error) {
	return newOpenConfig(opts).open(ctx, creds)
}

func (c *openConfig) open(ctx context.Context, creds config.Credentials) (*Handle, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	h := &Handle{
		creds:  creds,
		schema: creds.Schema,
		dial:   c.dial,
		logger: c.logger,
	}
	if err := h.connect(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

// connect establishes the connection and fills the negotiated fields.
func (h *Handle) connect(ctx context.Context) error {
	conn, err := h.dialAndActivate(ctx, "")
	if err != nil {
		return err
	}
	conn, err = h.ensureSchema(ctx, conn)
	if err != nil {
		return err
	}

	version, err := serverVersion(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return err
	}
	exchange := h.probeExchange(ctx, conn)

	h.mu.Lock()
	h.conn = conn
	h.version = version
	h.atomicExchange = exchange
	h.mu.Unlock()
	h.closed.Store(false)

	h.logger.Debug("session opened",
		slog.String("address", h.creds.Address()),
		slog.String("schema", h.schema),
		slog.String("server_version", version),
		slog.Bool("atomic_exchange", exchange))
	return nil
}

func (h *Handle) dialAndActivate(ctx context.Context, database string) (connection.Conn, error) {
	conn, err := h.dial(ctx, h.creds, database)
	if err != nil {
		return nil, err
	}
	if err := warehouse.NewManager(conn, h.logger).Activate(ctx, h.creds.Warehouse); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// ensureSchema creates the target schema and reconnects scoped to it when
// the server placed the session elsewhere. It closes conn on failure.
func (h *Handle) ensureSchema(ctx context.Context, conn connection.Conn) (connection.Conn, error) {
	if h.schema == "" {
		return conn, nil
	}
	if err := conn.Exec(ctx, "CREATE DATABASE IF NOT EXISTS "+h.schema); err != nil {
		_ = conn.Close()
		return nil, dberror.NewConnectError("failed to create schema "+h.schema, err)
	}

	res, err := conn.Query(ctx, "SELECT currentDatabase()")
	if err != nil {
		_ = conn.Close()
		return nil, dberror.NewConnectError("failed to resolve current database", err)
	}
	if cell, ok := res.FirstCell(); ok && fmt.Sprint(cell) == h.schema {
		return conn, nil
	}

	h.logger.Info("reconnecting scoped to schema", slog.String("schema", h.schema))
	_ = conn.Close()
	return h.dialAndActivate(ctx, h.schema)
}

func serverVersion(ctx context.Context, conn connection.Executor) (string, error) {
	res, err := conn.Query(ctx, "SELECT version()")
	if err != nil {
		return "", dberror.NewConnectError("failed to resolve server version", err)
	}
	cell, ok := res.FirstCell()
	if !ok {
		return "", dberror.NewConnectError("server returned no version", nil)
	}
	version, err := NormalizeVersion(fmt.Sprint(cell))
	if err != nil {
		return "", dberror.NewConnectError("failed to parse server version", err)
	}
	return version, nil
}

// Names of the throwaway tables used by the exchange probe.
const (
	exchangeProbeA = "__bridge_exchange_probe_a"
	exchangeProbeB = "__bridge_exchange_probe_b"
)

// probeExchange reports whether EXCHANGE TABLES works in the target schema.
// Any failure reports false; the probe never fails the open.
func (h *Handle) probeExchange(ctx context.Context, conn connection.Executor) bool {
	if !h.creds.CheckExchange || h.creds.ClusterMode || h.schema == "" {
		return false
	}

	res, err := conn.Query(ctx, fmt.Sprintf(
		"SELECT engine FROM system.databases WHERE name = '%s'", escapeLiteral(h.schema)))
	if err != nil {
		h.logger.Debug("exchange probe skipped", slog.String("error", err.Error()))
		return false
	}
	engine, ok := res.FirstCell()
	if !ok {
		return false
	}
	switch fmt.Sprint(engine) {
	case config.EngineAtomic, config.EngineReplicated:
	default:
		return false
	}

	a := h.schema + "." + exchangeProbeA
	b := h.schema + "." + exchangeProbeB
	defer func() {
		for _, name := range []string{a, b} {
			if err := conn.Exec(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
				h.logger.Warn("failed to clean up exchange probe table",
					slog.String("table", name), slog.String("error", err.Error()))
			}
		}
	}()
	for _, name := range []string{a, b} {
		create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id Int32) ENGINE = %s() ORDER BY id",
			name, config.ClusterEngine)
		if err := conn.Exec(ctx, create); err != nil {
			return false
		}
	}
	return conn.Exec(ctx, fmt.Sprintf("EXCHANGE TABLES %s AND %s", a, b)) == nil
}

func escapeLiteral(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
