package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/pyve/internal/config"
	"github.com/mesh-intelligence/pyve/internal/detect"
	"github.com/mesh-intelligence/pyve/internal/index"
	"github.com/mesh-intelligence/pyve/internal/lockfile"
	"github.com/mesh-intelligence/pyve/internal/paths"
	"github.com/mesh-intelligence/pyve/internal/registry"
	"github.com/mesh-intelligence/pyve/internal/tool"
	"github.com/mesh-intelligence/pyve/pkg/pyve"
	"github.com/mesh-intelligence/pyve/pkg/types"
)

type initFlags struct {
	backend          string
	python           string
	autoBootstrap    bool
	bootstrapTo      string
	bootstrapVersion string
	force            bool
	noGitignore      bool
}

func newInitCmd() *cobra.Command {
	var opts initFlags
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the project's Python environment",
		Long: "Init detects which backend the project wants, provisions the environment\n" +
			"if it does not exist yet, and records the choice in .pyve/config so later\n" +
			"invocations skip detection.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.backend, "backend", "", "force a backend (venv or micromamba)")
	cmd.Flags().StringVar(&opts.python, "python", "", "pin the interpreter version and write .python-version")
	cmd.Flags().BoolVar(&opts.autoBootstrap, "auto-bootstrap", false, "download micromamba without prompting when it is missing")
	cmd.Flags().StringVar(&opts.bootstrapTo, "bootstrap-to", "project", "where to install a bootstrapped binary: project or user")
	cmd.Flags().StringVar(&opts.bootstrapVersion, "bootstrap-version", "", "micromamba release tag to download (default: latest)")
	cmd.Flags().BoolVar(&opts.force, "force", false, "discard any existing environment and create a fresh one")
	cmd.Flags().BoolVar(&opts.noGitignore, "no-gitignore", false, "do not update .gitignore")

	return cmd
}

func runInit(cmd *cobra.Command, opts initFlags) error {
	pctx, err := paths.NewContext(flags.projectDir)
	if err != nil {
		return err
	}

	cfg, err := config.Load(pctx)
	if err != nil {
		return err
	}
	if opts.python != "" {
		cfg.Python.Version = opts.python
	}

	resolved, err := detect.Resolve(opts.backend, cfg, detect.Scan(pctx.ProjectDir), logger)
	if err != nil {
		return err
	}

	for _, state := range lockfile.Stale(lockfile.Check(pctx.ProjectDir)) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", state.Message())
	}

	loc, pin, err := resolveTool(cmd, pctx, cfg, resolved.Backend, opts)
	if err != nil {
		return err
	}

	if opts.force {
		if _, err := registry.Remove(pctx, resolved.Backend); err != nil && !errors.Is(err, types.ErrEnvNotFound) {
			return err
		}
	}

	req := registry.CreateRequest{
		Backend: resolved.Backend,
		Tool:    loc,
		Config:  cfg,
		Python:  pin,
	}
	handle, created, err := registry.GetOrCreate(cmd.Context(), pctx, req, logger)
	if err != nil {
		return err
	}

	// Record the decision so later runs skip detection. The config is
	// written after environment creation so a failed init leaves no
	// half-initialized project behind.
	cfg.PyveVersion = pyve.Version
	cfg.Backend = resolved.Backend.String()
	if err := config.Save(pctx, cfg); err != nil {
		return err
	}
	if opts.python != "" {
		if err := paths.WriteFileAtomic(pctx.PinPath, []byte(opts.python+"\n"), 0o644); err != nil {
			return err
		}
	}

	if !opts.noGitignore {
		if err := ensureGitignore(pctx, ignoredPaths(cfg, resolved.Backend)); err != nil {
			logger.Warn("could not update .gitignore", zap.Error(err))
		}
	}

	recordInIndex(pctx, handle)

	verb := "Created"
	if !created {
		verb = "Reusing"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s environment at %s (%s)\n",
		verb, handle.Backend, displayPath(pctx, handle.Prefix), resolved.Provenance())
	if handle.Python != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "python %s via %s\n", handle.Python, loc.Origin)
	}
	return nil
}

// resolveTool locates the backend's provisioning tool. For venv that is
// a Python interpreter honoring the version pin; for micromamba it is
// the micromamba binary, bootstrapped on demand when missing.
func resolveTool(cmd *cobra.Command, pctx paths.Context, cfg types.ProjectConfig, backend types.Backend, opts initFlags) (types.ToolLocation, string, error) {
	if backend == types.BackendMicromamba {
		loc, err := tool.Micromamba(pctx)
		if errors.Is(err, types.ErrToolNotFound) {
			loc, err = bootstrapMicromamba(cmd, pctx, cfg, opts)
		}
		if err != nil {
			return types.ToolLocation{}, "", err
		}
		return loc, "", nil
	}

	pin := tool.PythonPin(pctx, cfg)
	loc, err := tool.Python(pctx, pin, logger)
	if err != nil {
		return types.ToolLocation{}, "", err
	}
	return loc, pin, nil
}

// bootstrapMicromamba downloads the standalone binary after getting
// consent: from the --auto-bootstrap flag, or interactively when stdin
// is a terminal. Non-interactive runs without the flag fail instead of
// downloading silently.
func bootstrapMicromamba(cmd *cobra.Command, pctx paths.Context, cfg types.ProjectConfig, opts initFlags) (types.ToolLocation, error) {
	target, err := parseSandboxTarget(opts.bootstrapTo)
	if err != nil {
		return types.ToolLocation{}, err
	}

	var prompter tool.Prompter
	switch {
	case opts.autoBootstrap:
		prompter = tool.StaticPrompter{Accept: true, Target: target}
	case isatty.IsTerminal(os.Stdin.Fd()):
		prompter = tool.NewTerminalPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
	default:
		return types.ToolLocation{}, fmt.Errorf("%w: micromamba is not installed (re-run with --auto-bootstrap to download it)", types.ErrToolNotFound)
	}

	ok, err := prompter.ConfirmBootstrap(tool.MicromambaName)
	if err != nil {
		return types.ToolLocation{}, err
	}
	if !ok {
		return types.ToolLocation{}, fmt.Errorf("%w: micromamba", types.ErrBootstrapDeclined)
	}
	if !cmd.Flags().Changed("bootstrap-to") {
		if target, err = prompter.ChooseTarget(); err != nil {
			return types.ToolLocation{}, err
		}
	}

	return tool.Bootstrap(cmd.Context(), pctx, tool.BootstrapOptions{
		Target:  target,
		Version: opts.bootstrapVersion,
		BaseURL: cfg.Micromamba.BootstrapURL,
	}, logger)
}

func parseSandboxTarget(s string) (types.SandboxTarget, error) {
	switch types.SandboxTarget(s) {
	case types.SandboxProject, types.SandboxUser:
		return types.SandboxTarget(s), nil
	default:
		return "", fmt.Errorf("invalid --bootstrap-to %q (want project or user)", s)
	}
}

// ignoredPaths lists the machine-local files under the project that
// should not be committed. The config file is deliberately absent: it
// records shared intent.
func ignoredPaths(cfg types.ProjectConfig, backend types.Backend) []string {
	entries := []string{
		".pyve/registry",
		".pyve/locks/",
		".pyve/bin/",
		".pyve/env/",
	}
	if backend == types.BackendVenv {
		entries = append(entries, cfg.VenvDirectory()+"/")
	}
	return entries
}

// ensureGitignore appends any missing entries to the project's
// .gitignore. Projects without a .git directory and without an existing
// .gitignore are left untouched.
func ensureGitignore(pctx paths.Context, entries []string) error {
	path := filepath.Join(pctx.ProjectDir, ".gitignore")
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if _, gitErr := os.Stat(filepath.Join(pctx.ProjectDir, ".git")); gitErr != nil {
			return nil
		}
	}

	present := make(map[string]bool)
	for _, line := range strings.Split(string(data), "\n") {
		present[strings.TrimSpace(line)] = true
	}

	var missing []string
	for _, entry := range entries {
		if !present[entry] {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var buf bytes.Buffer
	buf.Write(data)
	if len(data) > 0 && !bytes.HasSuffix(data, []byte("\n")) {
		buf.WriteByte('\n')
	}
	if !present["# pyve"] {
		buf.WriteString("# pyve\n")
	}
	for _, entry := range missing {
		buf.WriteString(entry + "\n")
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// recordInIndex mirrors the handle into the user-level index. The index
// is a convenience for "pyve list"; failures only warn.
func recordInIndex(pctx paths.Context, h types.EnvironmentHandle) {
	ix, err := index.Open(pctx.IndexPath)
	if err != nil {
		logger.Warn("environment index unavailable", zap.Error(err))
		return
	}
	defer func() { _ = ix.Close() }()
	if err := ix.Upsert(pctx.ProjectDir, h); err != nil {
		logger.Warn("could not record environment in index", zap.Error(err))
	}
}

// displayPath renders p relative to the project when it lies inside it.
func displayPath(pctx paths.Context, p string) string {
	rel, err := filepath.Rel(pctx.ProjectDir, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	return rel
}
