package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pyve/internal/index"
	"github.com/mesh-intelligence/pyve/internal/paths"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List environments recorded for this user",
		Long: "List shows every environment pyve has created on this machine, across\n" +
			"all projects. Environments whose directory has since been deleted are\n" +
			"marked missing.",
		Args: cobra.NoArgs,
		RunE: runList,
	}
}

func runList(cmd *cobra.Command, args []string) error {
	pctx, err := paths.NewContext(flags.projectDir)
	if err != nil {
		return err
	}

	ix, err := index.Open(pctx.IndexPath)
	if err != nil {
		return err
	}
	defer func() { _ = ix.Close() }()

	entries, err := ix.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no environments recorded")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BACKEND\tNAME\tPYTHON\tPROJECT\tPREFIX")
	for _, e := range entries {
		python := e.Python
		if python == "" {
			python = "-"
		}
		prefix := e.Prefix
		if _, err := os.Stat(e.Prefix); err != nil {
			prefix += " (missing)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Backend, e.Name, python, e.ProjectPath, prefix)
	}
	return w.Flush()
}
