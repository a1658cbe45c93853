package cli

import (
	"fmt"

	"github.com/nnnkkk7/bytehouse-bridge/pkg/config"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "bhsql v%s\n", config.Version)
		},
	}
}
