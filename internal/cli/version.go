package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pyve/pkg/pyve"
)

const modulePath = "github.com/mesh-intelligence/pyve"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pyve version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "pyve v%s\nmodule: %s\n", pyve.Version, modulePath)
			return nil
		},
	}
}
