// Package runner executes commands inside a managed environment
// without shell activation: the child gets a rewritten environment and
// the parent's terminal, signals are forwarded to the child's process
// group, and the child's exit code is reported verbatim.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/pyve/pkg/types"
)

// Shell-convention exit codes for commands that never ran.
const (
	exitNotExecutable = 126
	exitNotFound      = 127
)

// Package managers per family. Invoking a manager from the family
// opposite to the environment's is blocked unless the caller overrides.
var (
	pipManagers   = map[string]bool{"pip": true, "pip3": true, "pipenv": true, "poetry": true}
	condaManagers = map[string]bool{"conda": true, "mamba": true, "micromamba": true}
)

// Invocation describes one command run inside an environment.
type Invocation struct {
	Handle   types.EnvironmentHandle
	Resolved types.ResolvedBackend
	Argv     []string
	Dir      string

	// BaseEnv is the parent environment to derive from; nil means
	// os.Environ().
	BaseEnv []string

	// MambaRoot is injected as MAMBA_ROOT_PREFIX for conda-family
	// environments.
	MambaRoot string

	// AllowCrossFamily disables the family-isolation guard.
	AllowCrossFamily bool

	Stdin          io.Reader
	Stdout, Stderr io.Writer
}

// Run executes the invocation and returns the child's exit code. A
// non-zero child exit is not an error; err is non-nil only when the
// command never ran (family violation, lookup failure, start failure).
// Cancelling ctx terminates the child's process group.
func Run(ctx context.Context, in Invocation, log *zap.Logger) (int, error) {
	if len(in.Argv) == 0 {
		return 1, fmt.Errorf("no command given")
	}

	if err := guardFamily(in); err != nil {
		return 1, err
	}

	base := in.BaseEnv
	if base == nil {
		base = os.Environ()
	}
	env := BuildEnv(base, in.Handle, in.MambaRoot)

	path, code, err := resolveArgv0(in.Argv[0], pathValue(env))
	if err != nil {
		return code, err
	}

	cmd := exec.Command(path, in.Argv[1:]...)
	cmd.Dir = in.Dir
	cmd.Env = env
	cmd.Stdin = in.Stdin
	cmd.Stdout = in.Stdout
	cmd.Stderr = in.Stderr
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	cmd.SysProcAttr = sysProcAttr()

	log.Debug("running command in environment",
		zap.Strings("argv", in.Argv),
		zap.String("prefix", in.Handle.Prefix))

	if err := cmd.Start(); err != nil {
		if os.IsPermission(err) {
			return exitNotExecutable, fmt.Errorf("%s: %w", in.Argv[0], err)
		}
		return exitNotFound, fmt.Errorf("%s: %w", in.Argv[0], err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, forwardedSignals()...)
	defer signal.Stop(sigc)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	for {
		select {
		case sig := <-sigc:
			forward(cmd, sig)
		case <-ctx.Done():
			terminate(cmd)
			err := <-done
			return exitStatus(err), nil
		case err := <-done:
			return exitStatus(err), nil
		}
	}
}

// guardFamily blocks package managers of the opposite family from
// mutating the environment. The environment's own tools (its python,
// its pip on PATH) pass through; only cross-family managers are caught.
func guardFamily(in Invocation) error {
	if in.Resolved.Backend != "" && in.Resolved.Backend != in.Handle.Backend {
		return fmt.Errorf("%w: resolved backend %s but environment is %s",
			types.ErrFamilyIsolation, in.Resolved.Backend, in.Handle.Backend)
	}
	if in.AllowCrossFamily {
		return nil
	}

	name := strings.TrimSuffix(filepath.Base(in.Argv[0]), ".exe")
	family := in.Handle.Backend.Family()
	switch {
	case family == types.FamilyConda && pipManagers[name]:
		return fmt.Errorf("%w: %s targets pip-family environments but %s is conda-family (use --allow-cross-family to override)",
			types.ErrFamilyIsolation, name, in.Handle.Prefix)
	case family == types.FamilyPip && condaManagers[name]:
		return fmt.Errorf("%w: %s targets conda-family environments but %s is a venv (use --allow-cross-family to override)",
			types.ErrFamilyIsolation, name, in.Handle.Prefix)
	}
	return nil
}

// resolveArgv0 locates the command on the environment's PATH. Names
// containing a separator bypass lookup, matching shell behavior.
func resolveArgv0(argv0, pathEnv string) (string, int, error) {
	if strings.ContainsRune(argv0, os.PathSeparator) {
		return argv0, 0, nil
	}
	for _, dir := range filepath.SplitList(pathEnv) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, argv0)
		if isExecutable(candidate) {
			return candidate, 0, nil
		}
	}
	return "", exitNotFound, fmt.Errorf("%s: command not found in environment", argv0)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0o111 != 0
}
