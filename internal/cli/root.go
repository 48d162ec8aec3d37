// Package cli implements the pyve command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/pyve/pkg/types"
)

// Exit codes. Zero is success, one covers user and system errors that
// carry no more specific meaning. "pyve run" propagates the child's own
// exit code, so the codes below stay clear of the shell conventions
// (126, 127, 128+signal) that the runner reports for child failures.
const (
	exitSuccess    = 0
	exitUserError  = 1
	exitResolution = 3
	exitNoTool     = 4
	exitBootstrap  = 5
	exitIsolation  = 6
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	projectDir string
	verbose    bool
}

var flags rootFlags

// logger is configured by the root command's PersistentPreRun and used
// by subcommands for diagnostic output on stderr.
var logger = zap.NewNop()

// NewRootCmd creates the top-level "pyve" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	flags = rootFlags{}

	root := &cobra.Command{
		Use:   "pyve",
		Short: "Project-local Python environments without activation",
		Long: "Pyve provisions and runs project-local Python environments. It detects\n" +
			"whether a project wants a pip-style virtualenv or a conda-style micromamba\n" +
			"environment, creates it on demand, and runs commands inside it without\n" +
			"requiring shell activation.",
		// Subcommands report their own errors; do not repeat usage.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = newLogger(flags.verbose)
		},
	}

	root.PersistentFlags().StringVarP(&flags.projectDir, "project-dir", "C", "", "project directory (default: current directory)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newInitCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newPythonCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newPurgeCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// Execute runs the root command and returns the process exit code.
// SIGINT and SIGTERM cancel the command context, so downloads and
// environment creation in flight abort and clean up their partial
// state.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	defer func() { _ = logger.Sync() }()
	if err == nil {
		return exitSuccess
	}

	var coded *codedError
	if errors.As(err, &coded) {
		if coded.err != nil {
			fmt.Fprintf(os.Stderr, "pyve: %v\n", coded.err)
		}
		return coded.code
	}

	fmt.Fprintf(os.Stderr, "pyve: %v\n", err)
	return exitCodeFor(err)
}

// exitCodeFor maps sentinel errors to their documented exit codes.
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, types.ErrBackendUnknown), errors.Is(err, types.ErrBackendEmpty):
		return exitResolution
	case errors.Is(err, types.ErrToolNotFound), errors.Is(err, types.ErrBootstrapDeclined):
		return exitNoTool
	case errors.Is(err, types.ErrBootstrapFailed), errors.Is(err, types.ErrPlatformUnknown):
		return exitBootstrap
	case errors.Is(err, types.ErrFamilyIsolation):
		return exitIsolation
	default:
		return exitUserError
	}
}

// codedError carries an explicit exit code through cobra's error return.
// A nil inner error means the failure was already reported, for example
// by a child process that printed its own diagnostics.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit status %d", e.code)
}

func (e *codedError) Unwrap() error { return e.err }

// errWithCode wraps err so that Execute reports it and exits with code.
func errWithCode(code int, err error) error {
	return &codedError{code: code, err: err}
}

// silentExit produces the given exit code without printing anything.
func silentExit(code int) error {
	return &codedError{code: code}
}
