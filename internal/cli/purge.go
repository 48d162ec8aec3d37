package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/pyve/internal/config"
	"github.com/mesh-intelligence/pyve/internal/detect"
	"github.com/mesh-intelligence/pyve/internal/index"
	"github.com/mesh-intelligence/pyve/internal/paths"
	"github.com/mesh-intelligence/pyve/internal/registry"
	"github.com/mesh-intelligence/pyve/pkg/types"
)

type purgeFlags struct {
	backend string
	all     bool
	yes     bool
}

func newPurgeCmd() *cobra.Command {
	var opts purgeFlags
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove the project's environment",
		Long: "Purge deletes the environment directory and its registry record. The\n" +
			"project config and version pin are kept, so 'pyve init' can recreate\n" +
			"the environment later.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPurge(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.backend, "backend", "", "purge this backend instead of the resolved one")
	cmd.Flags().BoolVar(&opts.all, "all", false, "purge every backend recorded for the project")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "do not ask for confirmation")

	return cmd
}

func runPurge(cmd *cobra.Command, opts purgeFlags) error {
	pctx, err := paths.NewContext(flags.projectDir)
	if err != nil {
		return err
	}

	targets, err := purgeTargets(pctx, opts)
	if err != nil {
		return err
	}

	stdin := bufio.NewReader(cmd.InOrStdin())
	removed := 0
	for _, backend := range targets {
		handle, err := registry.Get(pctx, backend)
		if errors.Is(err, types.ErrEnvNotFound) {
			continue
		}
		if err != nil {
			return err
		}

		if !opts.yes && !confirm(cmd, stdin, fmt.Sprintf("Remove %s environment at %s?", backend, displayPath(pctx, handle.Prefix))) {
			fmt.Fprintln(cmd.OutOrStdout(), "aborted (use --yes to skip confirmation)")
			return silentExit(exitUserError)
		}

		if _, err := registry.Remove(pctx, backend); err != nil {
			return err
		}
		dropFromIndex(pctx, backend)
		fmt.Fprintf(cmd.OutOrStdout(), "removed %s environment at %s\n", backend, displayPath(pctx, handle.Prefix))
		removed++
	}

	if removed == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "nothing to purge")
	}
	return nil
}

// purgeTargets decides which backends to remove: all recorded ones, or
// the single backend the usual resolution picks.
func purgeTargets(pctx paths.Context, opts purgeFlags) ([]types.Backend, error) {
	if opts.all {
		handles, err := registry.List(pctx)
		if err != nil {
			return nil, err
		}
		targets := make([]types.Backend, 0, len(handles))
		for _, h := range handles {
			targets = append(targets, h.Backend)
		}
		return targets, nil
	}

	cfg, err := config.Load(pctx)
	if err != nil {
		return nil, err
	}
	resolved, err := detect.Resolve(opts.backend, cfg, detect.Scan(pctx.ProjectDir), logger)
	if err != nil {
		return nil, err
	}
	return []types.Backend{resolved.Backend}, nil
}

// confirm asks a yes/no question on stderr and reads the answer from
// stdin. Anything but an explicit yes declines.
func confirm(cmd *cobra.Command, stdin *bufio.Reader, question string) bool {
	fmt.Fprintf(cmd.ErrOrStderr(), "%s [y/N] ", question)
	line, _ := stdin.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// dropFromIndex removes the project's row from the user-level index.
// Like recording, failures only warn.
func dropFromIndex(pctx paths.Context, backend types.Backend) {
	ix, err := index.Open(pctx.IndexPath)
	if err != nil {
		logger.Warn("environment index unavailable", zap.Error(err))
		return
	}
	defer func() { _ = ix.Close() }()
	if err := ix.Delete(pctx.ProjectDir, backend); err != nil {
		logger.Warn("could not drop environment from index", zap.Error(err))
	}
}
