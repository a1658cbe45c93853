// Package cli provides the bhsql command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nnnkkk7/bytehouse-bridge/pkg/adapter"
	"github.com/nnnkkk7/bytehouse-bridge/pkg/config"
	"github.com/spf13/cobra"
)

type options struct {
	profile string
	verbose bool

	// open replaces session.OpenWithRetry in tests.
	open adapter.OpenFunc
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&options{})
}

func newRootCmd(opts *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bhsql",
		Short: "bhsql - ByteHouse statement client",
		Long: `bhsql runs statements against ByteHouse through the bridge: engine names
are rewritten, views are renamed and dropped correctly and inline seed
payloads are sent as bulk inserts.`,
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.profile, "profile", "", "profile file (default: ./"+config.ProfileFileName+")")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(
		newExecCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (o *options) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// connect loads the profile and opens a connection manager on it.
func (o *options) connect(ctx context.Context, logger *slog.Logger, extra ...adapter.Option) (*adapter.ConnectionManager, error) {
	creds, err := config.Load(o.profile)
	if err != nil {
		return nil, err
	}

	mgrOpts := []adapter.Option{adapter.WithLogger(logger)}
	if o.open != nil {
		mgrOpts = append(mgrOpts, adapter.WithOpenFunc(o.open))
	}
	mgrOpts = append(mgrOpts, extra...)

	m := adapter.NewConnectionManager(*creds, mgrOpts...)
	if err := m.Open(ctx); err != nil {
		return nil, err
	}
	return m, nil
}
