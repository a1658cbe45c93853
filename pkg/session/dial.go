// Package session opens and owns the physical connection of one logical
// session: transport setup, warehouse activation, schema scoping, version
// and capability negotiation.
package session

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/config"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/connection"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/dberror"
)

// Opener creates a connection pool from driver options. The default is
// clickhouse.OpenDB, which does not touch the network until first use.
type Opener func(opts *clickhouse.Options) *sql.DB

// dialFunc connects and pins a connection scoped to database.
type dialFunc func(ctx context.Context, creds config.Credentials, database string) (connection.Conn, error)

// clickhouseOptions maps credentials onto native protocol options.
func clickhouseOptions(creds config.Credentials, database string) *clickhouse.Options {
	user := creds.User
	if creds.Account != "" {
		// Multi-tenant deployments authenticate as account::user.
		user = creds.Account + "::" + creds.User
	}

	opts := &clickhouse.Options{
		Addr: []string{creds.Address()},
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: creds.Password,
		},
		DialTimeout:          creds.ConnectTimeoutDuration(),
		ReadTimeout:          creds.SendReceiveTimeoutDuration(),
		Settings:             clickhouse.Settings(creds.ConnectionSettings()),
		MaxCompressionBuffer: creds.CompressBlockSize,
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{
				{Name: config.ClientName, Version: config.Version},
			},
		},
	}
	if creds.Secure {
		opts.TLS = &tls.Config{InsecureSkipVerify: !creds.Verify} //nolint:gosec // verify is user-controlled
	}
	if method, ok := compressionMethod(creds.Compression); ok {
		opts.Compression = &clickhouse.Compression{Method: method}
	}
	return opts
}

func compressionMethod(name string) (clickhouse.CompressionMethod, bool) {
	switch name {
	case "lz4":
		return clickhouse.CompressionLZ4, true
	case "zstd":
		return clickhouse.CompressionZSTD, true
	case "gzip":
		return clickhouse.CompressionGZIP, true
	case "deflate":
		return clickhouse.CompressionDeflate, true
	case "br":
		return clickhouse.CompressionBrotli, true
	default:
		return clickhouse.CompressionNone, false
	}
}

// dialer returns a dialFunc that opens pools with open.
func dialer(open Opener, cfg *openConfig) dialFunc {
	return func(ctx context.Context, creds config.Credentials, database string) (connection.Conn, error) {
		db := open(clickhouseOptions(creds, database))

		// The first ping dials, so it gets the connect timeout plus one
		// synchronous round trip.
		pingCtx, cancel := context.WithTimeout(ctx,
			creds.ConnectTimeoutDuration()+creds.SyncRequestTimeoutDuration())
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return nil, classifyConnectError("failed to connect to "+creds.Address(), err)
		}

		mgr, err := connection.NewManager(ctx, db, cfg.logger)
		if err != nil {
			_ = db.Close()
			return nil, classifyConnectError("failed to acquire connection to "+creds.Address(), err)
		}
		return mgr, nil
	}
}

// classifyConnectError separates transport failures, which a retry policy
// may re-attempt, from everything else.
func classifyConnectError(message string, err error) error {
	if isNetworkError(err) {
		return dberror.NewRetryableConnectError(message, err)
	}
	return dberror.NewConnectError(message, err)
}

func isNetworkError(err error) bool {
	var exception *clickhouse.Exception
	if errors.As(err, &exception) {
		// The server answered; authentication and similar failures do not
		// improve on retry.
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, context.DeadlineExceeded)
}
