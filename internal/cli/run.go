package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pyve/internal/config"
	"github.com/mesh-intelligence/pyve/internal/detect"
	"github.com/mesh-intelligence/pyve/internal/paths"
	"github.com/mesh-intelligence/pyve/internal/registry"
	"github.com/mesh-intelligence/pyve/internal/runner"
	"github.com/mesh-intelligence/pyve/pkg/types"
)

type runFlags struct {
	backend          string
	allowCrossFamily bool
}

func newRunCmd() *cobra.Command {
	var opts runFlags
	cmd := &cobra.Command{
		Use:   "run [flags] -- command [args...]",
		Short: "Run a command inside the project environment",
		Long: "Run executes a command with the project environment active: the\n" +
			"environment's bin directory leads PATH and the family's activation\n" +
			"variables are set, without touching the calling shell.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, opts, args)
		},
	}

	// The first non-flag argument starts the child command line, so
	// flags like "pyve run pytest -v" reach pytest, not pyve.
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVar(&opts.backend, "backend", "", "force a backend (venv or micromamba)")
	cmd.Flags().BoolVar(&opts.allowCrossFamily, "allow-cross-family", false, "permit package managers of the other backend family")

	return cmd
}

func runRun(cmd *cobra.Command, opts runFlags, args []string) error {
	pctx, err := paths.NewContext(flags.projectDir)
	if err != nil {
		return err
	}
	cfg, err := config.Load(pctx)
	if err != nil {
		return err
	}
	resolved, err := detect.Resolve(opts.backend, cfg, detect.Scan(pctx.ProjectDir), logger)
	if err != nil {
		return err
	}

	handle, err := registry.Get(pctx, resolved.Backend)
	if err != nil {
		if errors.Is(err, types.ErrEnvNotFound) {
			return fmt.Errorf("%w: no %s environment for this project (run 'pyve init')", types.ErrNotInitialized, resolved.Backend)
		}
		return err
	}
	if !registry.Intact(handle) {
		return fmt.Errorf("%w: environment at %s is gone (run 'pyve init')", types.ErrNotInitialized, displayPath(pctx, handle.Prefix))
	}

	// The runner forwards terminal signals to the child itself, so it
	// gets a context detached from the root's signal cancellation.
	code, err := runner.Run(context.WithoutCancel(cmd.Context()), runner.Invocation{
		Handle:           handle,
		Resolved:         resolved,
		Argv:             args,
		MambaRoot:        pctx.UserDir,
		AllowCrossFamily: opts.allowCrossFamily,
		Stdin:            cmd.InOrStdin(),
		Stdout:           cmd.OutOrStdout(),
		Stderr:           cmd.ErrOrStderr(),
	}, logger)
	if err != nil {
		if errors.Is(err, types.ErrFamilyIsolation) {
			return err
		}
		return errWithCode(code, err)
	}
	if code != 0 {
		// The child already reported its failure on stderr.
		return silentExit(code)
	}
	return nil
}
