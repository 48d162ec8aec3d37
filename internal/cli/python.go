package cli

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pyve/internal/config"
	"github.com/mesh-intelligence/pyve/internal/paths"
	"github.com/mesh-intelligence/pyve/internal/tool"
)

// versionPattern accepts dotted numeric pins like "3", "3.11", "3.11.4".
var versionPattern = regexp.MustCompile(`^\d+(\.\d+){0,2}$`)

func newPythonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "python [version]",
		Short: "Show or set the project's Python version pin",
		Long: "Without arguments, python prints the pinned interpreter version. With a\n" +
			"version argument it writes .python-version and records the pin in the\n" +
			"project config. The pin is honored by the next 'pyve init'.",
		Args: cobra.RangeArgs(0, 1),
		RunE: runPython,
	}
}

func runPython(cmd *cobra.Command, args []string) error {
	pctx, err := paths.NewContext(flags.projectDir)
	if err != nil {
		return err
	}
	cfg, err := config.Load(pctx)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		pin := tool.PythonPin(pctx, cfg)
		if pin == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "no python version pinned")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), pin)
		return nil
	}

	version := args[0]
	if !versionPattern.MatchString(version) {
		return fmt.Errorf("invalid python version %q (want something like 3.11 or 3.11.4)", version)
	}

	// Both pin locations are written so the config stays authoritative
	// while .python-version remains visible to pyenv and asdf users.
	if err := paths.WriteFileAtomic(pctx.PinPath, []byte(version+"\n"), 0o644); err != nil {
		return err
	}
	cfg.Python.Version = version
	if err := config.Save(pctx, cfg); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "pinned python %s\n", version)
	return nil
}
