package session

import (
	"context"
	"database/sql"
	"errors"
	"syscall"
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/nnnkkk7/bytehouse-bridge/internal/enginetest"
	"github.com/nnnkkk7/bytehouse-bridge/internal/testutil"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/config"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/connection"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/dberror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withDial replaces the physical dial with a scripted one.
func withDial(d dialFunc) Option {
	return func(c *openConfig) {
		c.dial = d
	}
}

// scriptedDial hands out engines in order and records the requested database.
type scriptedDial struct {
	engines   []*enginetest.Engine
	errs      []error
	databases []string
}

func (s *scriptedDial) dial(_ context.Context, _ config.Credentials, database string) (connection.Conn, error) {
	i := len(s.databases)
	s.databases = append(s.databases, database)
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return s.engines[i], nil
}

func testCreds() config.Credentials {
	creds := config.DefaultCredentials()
	creds.Schema = "dbt_x"
	return creds
}

func TestClickhouseOptions(t *testing.T) {
	creds := testCreds()
	creds.Account = "acme"
	creds.Password = "secret"
	creds.Secure = true
	creds.Verify = false
	creds.Compression = "lz4"
	creds.ClusterMode = true
	creds.CustomSettings = map[string]any{"max_threads": 4}

	opts := clickhouseOptions(creds, "dbt_x")

	assert.Equal(t, []string{"localhost:19000"}, opts.Addr)
	assert.Equal(t, clickhouse.Auth{Database: "dbt_x", Username: "acme::default", Password: "secret"}, opts.Auth)
	require.NotNil(t, opts.TLS)
	assert.True(t, opts.TLS.InsecureSkipVerify)
	require.NotNil(t, opts.Compression)
	assert.Equal(t, clickhouse.CompressionLZ4, opts.Compression.Method)
	assert.Equal(t, 1048576, opts.MaxCompressionBuffer)
	assert.Equal(t, clickhouse.Settings{
		"max_threads": 4,
		"database_replicated_enforce_synchronous_settings": "1",
		"insert_quorum": "auto",
	}, opts.Settings)
	assert.Equal(t, config.ClientName, opts.ClientInfo.Products[0].Name)
}

func TestClickhouseOptions_Plain(t *testing.T) {
	opts := clickhouseOptions(testCreds(), "")

	assert.Nil(t, opts.TLS)
	assert.Nil(t, opts.Compression)
	assert.Equal(t, "default", opts.Auth.Username)
}

func TestDial_ClassifiesPingErrors(t *testing.T) {
	tests := []struct {
		name     string
		pingErr  error
		wantKind dberror.Kind
	}{
		{name: "ConnectionRefused", pingErr: syscall.ECONNREFUSED, wantKind: dberror.KindRetryableConnect},
		{name: "DeadlineExceeded", pingErr: context.DeadlineExceeded, wantKind: dberror.KindRetryableConnect},
		{
			name:     "ServerException",
			pingErr:  &clickhouse.Exception{Code: 516, Message: "Authentication failed"},
			wantKind: dberror.KindConnect,
		},
		{name: "Other", pingErr: errors.New("bad handshake"), wantKind: dberror.KindConnect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
			require.NoError(t, err)
			mock.ExpectPing().WillReturnError(tt.pingErr)
			mock.ExpectClose()

			cfg := newOpenConfig([]Option{
				WithLogger(testutil.NewTestLogger(t)),
				WithOpener(func(*clickhouse.Options) *sql.DB { return db }),
			})
			_, err = cfg.dial(context.Background(), testCreds(), "")

			require.Error(t, err)
			assert.Equal(t, tt.wantKind, dberror.KindOf(err))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDial_Success(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing()
	mock.ExpectClose()

	var got *clickhouse.Options
	cfg := newOpenConfig([]Option{WithOpener(func(opts *clickhouse.Options) *sql.DB {
		got = opts
		return db
	})})
	conn, err := cfg.dial(context.Background(), testCreds(), "dbt_x")
	require.NoError(t, err)
	assert.Equal(t, "dbt_x", got.Auth.Database)

	require.NoError(t, conn.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_ReconnectsToSchema(t *testing.T) {
	first := enginetest.New().
		OnQuery("SHOW WAREHOUSES", enginetest.Rows(nil, enginetest.Row(7, map[int]any{1: "wh", 6: "suspended"}))).
		OnQuery("SELECT currentDatabase()", enginetest.Rows([]string{"db"}, []any{"default"}))
	second := enginetest.New().
		OnQuery("SHOW WAREHOUSES", enginetest.Rows(nil, enginetest.Row(7, map[int]any{1: "wh", 6: "up"}))).
		OnQuery("SELECT version()", enginetest.Rows([]string{"v"}, []any{"21.8.7.1"})).
		OnQuery("SELECT engine FROM system.databases", enginetest.Rows([]string{"engine"}, []any{"Atomic"}))
	dial := &scriptedDial{engines: []*enginetest.Engine{first, second}}

	creds := testCreds()
	creds.Warehouse = "wh"
	h, err := Open(context.Background(), creds, withDial(dial.dial), WithLogger(testutil.NewTestLogger(t)))
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"", "dbt_x"}, dial.databases); diff != "" {
		t.Errorf("dial databases mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{
		"SHOW WAREHOUSES",
		"resume warehouse wh",
		"set warehouse wh",
		"CREATE DATABASE IF NOT EXISTS dbt_x",
		"SELECT currentDatabase()",
	}, first.SQL()); diff != "" {
		t.Errorf("first connection statements mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{
		"SHOW WAREHOUSES",
		"set warehouse wh",
		"SELECT version()",
		"SELECT engine FROM system.databases WHERE name = 'dbt_x'",
		"CREATE TABLE IF NOT EXISTS dbt_x.__bridge_exchange_probe_a (id Int32) ENGINE = CnchMergeTree() ORDER BY id",
		"CREATE TABLE IF NOT EXISTS dbt_x.__bridge_exchange_probe_b (id Int32) ENGINE = CnchMergeTree() ORDER BY id",
		"EXCHANGE TABLES dbt_x.__bridge_exchange_probe_a AND dbt_x.__bridge_exchange_probe_b",
		"DROP TABLE IF EXISTS dbt_x.__bridge_exchange_probe_a",
		"DROP TABLE IF EXISTS dbt_x.__bridge_exchange_probe_b",
	}, second.SQL()); diff != "" {
		t.Errorf("second connection statements mismatch (-want +got):\n%s", diff)
	}

	assert.True(t, first.Closed())
	assert.False(t, second.Closed())
	assert.Equal(t, "21.8.7", h.ServerVersion())
	assert.True(t, h.AtomicExchange())
	assert.Equal(t, "dbt_x", h.Schema())
	assert.Same(t, connection.Conn(second), h.Conn())
}

func TestOpen_ExchangeNegotiation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Credentials)
		setup   func(*enginetest.Engine)
		want    bool
		probing bool
	}{
		{
			name:   "CheckDisabled",
			mutate: func(c *config.Credentials) { c.CheckExchange = false },
			setup:  func(*enginetest.Engine) {},
		},
		{
			name:   "ClusterMode",
			mutate: func(c *config.Credentials) { c.ClusterMode = true },
			setup:  func(*enginetest.Engine) {},
		},
		{
			name:   "UnsupportedEngine",
			mutate: func(*config.Credentials) {},
			setup: func(e *enginetest.Engine) {
				e.OnQuery("SELECT engine", enginetest.Rows([]string{"engine"}, []any{"Cnch"}))
			},
			probing: true,
		},
		{
			name:   "ExchangeRejected",
			mutate: func(*config.Credentials) {},
			setup: func(e *enginetest.Engine) {
				e.OnQuery("SELECT engine", enginetest.Rows([]string{"engine"}, []any{"Replicated"})).
					OnError("EXCHANGE TABLES", errors.New("Code: 48. Not implemented"))
			},
			probing: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := enginetest.New().
				OnQuery("SELECT currentDatabase()", enginetest.Rows([]string{"db"}, []any{"dbt_x"})).
				OnQuery("SELECT version()", enginetest.Rows([]string{"v"}, []any{"23.1.2"}))
			tt.setup(engine)
			dial := &scriptedDial{engines: []*enginetest.Engine{engine}}

			creds := testCreds()
			tt.mutate(&creds)
			h, err := Open(context.Background(), creds, withDial(dial.dial))
			require.NoError(t, err)

			assert.Equal(t, tt.want, h.AtomicExchange())
			assert.Equal(t, tt.probing, engine.Count("SELECT engine FROM system.databases") == 1)
		})
	}
}

func TestOpen_ConfigurationError(t *testing.T) {
	dial := &scriptedDial{}
	creds := testCreds()
	creds.Database = "other"

	_, err := Open(context.Background(), creds, withDial(dial.dial))

	assert.True(t, errors.Is(err, dberror.ErrConfiguration))
	assert.Empty(t, dial.databases, "no connection may be attempted")
}

func TestOpen_SetupFailureClosesConnection(t *testing.T) {
	tests := []struct {
		name   string
		failOn string
	}{
		{name: "SchemaCreation", failOn: "CREATE DATABASE"},
		{name: "Version", failOn: "SELECT version()"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := enginetest.New().
				OnError(tt.failOn, errors.New("Code: 497. Access denied")).
				OnQuery("SELECT currentDatabase()", enginetest.Rows([]string{"db"}, []any{"dbt_x"}))
			dial := &scriptedDial{engines: []*enginetest.Engine{engine}}

			_, err := Open(context.Background(), testCreds(), withDial(dial.dial))

			assert.True(t, errors.Is(err, dberror.ErrConnect), "got %v", err)
			assert.True(t, engine.Closed())
		})
	}
}

func TestHandle_CloseAndReset(t *testing.T) {
	newEngine := func() *enginetest.Engine {
		return enginetest.New().
			OnQuery("SELECT currentDatabase()", enginetest.Rows([]string{"db"}, []any{"dbt_x"})).
			OnQuery("SELECT version()", enginetest.Rows([]string{"v"}, []any{"21.0.0"}))
	}
	first, second := newEngine(), newEngine()
	dial := &scriptedDial{engines: []*enginetest.Engine{first, second}}

	creds := testCreds()
	creds.CheckExchange = false
	h, err := Open(context.Background(), creds, withDial(dial.dial))
	require.NoError(t, err)

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	assert.True(t, first.Closed())

	err = h.Exec(context.Background(), "SELECT 1")
	assert.True(t, errors.Is(err, dberror.ErrStatement))

	require.NoError(t, h.Reset(context.Background()))
	require.NoError(t, h.Exec(context.Background(), "SELECT 1"))
	assert.Equal(t, 1, second.Count("SELECT 1"))
	assert.Equal(t, 0, first.Count("SELECT 1"))
}

func enginetestRows(cell any) *connection.Result {
	return enginetest.Rows([]string{"c"}, []any{cell})
}
