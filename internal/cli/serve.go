package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/nnnkkk7/bytehouse-bridge/pkg/adapter"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/warehouse"
	"github.com/nnnkkk7/bytehouse-bridge/server"
	"github.com/nnnkkk7/bytehouse-bridge/server/handlers"
	"github.com/nnnkkk7/bytehouse-bridge/server/types"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *options) *cobra.Command {
	var (
		addr     string
		viewTTL  time.Duration
		useCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the statement gateway over HTTP",
		Long: `Open one session and expose it over HTTP. Statements from all clients
run one at a time on that session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := opts.logger(cmd.ErrOrStderr())
			var extra []adapter.Option
			if useCache {
				extra = append(extra, adapter.WithViewCache(viewTTL))
			}
			m, err := opts.connect(ctx, logger, extra...)
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			srv := &http.Server{
				Addr:         addr,
				Handler:      newGateway(m, logger),
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 10 * time.Minute,
				IdleTimeout:  120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("starting gateway", slog.String("addr", addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server failed: %w", err)
			case <-ctx.Done():
			}

			logger.Info("shutting down gateway")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVar(&useCache, "view-cache", false, "cache view lookups")
	cmd.Flags().DurationVar(&viewTTL, "view-cache-ttl", time.Minute, "view lookup cache TTL (0 keeps entries until invalidated)")
	return cmd
}

// newGateway builds the HTTP handler for an open connection manager.
func newGateway(m *adapter.ConnectionManager, logger *slog.Logger) http.Handler {
	sess := m.Session()
	health := types.HealthResponse{
		Schema:        sess.Schema(),
		ServerVersion: sess.ServerVersion(),
	}
	h := handlers.NewHandler(m.Dispatcher(), warehouse.NewManager(sess, logger), health, logger)
	return server.NewRouter(h)
}
