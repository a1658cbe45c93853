package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newExecCmd(opts *options) *cobra.Command {
	var (
		fetch  bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "exec [SQL|-]",
		Short: "Run one statement",
		Long: `Run one statement and print its result. Use "-" to read the statement
from stdin. Without --fetch the statement runs in command mode and only its
status is printed. DDL never fetches rows.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			sql := args[0]
			if sql == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read statement: %w", err)
				}
				sql = string(b)
			}
			if strings.TrimSpace(sql) == "" {
				return fmt.Errorf("empty statement")
			}

			ctx := cmd.Context()
			m, err := opts.connect(ctx, opts.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer func() { _ = m.Close() }()

			resp, table, err := m.Execute(ctx, sql, fetch)
			if err != nil {
				return err
			}
			if !fetch {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s in %s\n", resp.Status, resp.Elapsed.Round(time.Millisecond))
				return nil
			}
			return renderTable(cmd.OutOrStdout(), table, format)
		},
	}

	cmd.Flags().BoolVar(&fetch, "fetch", false, "fetch and print result rows")
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format (table, json)")
	return cmd
}
