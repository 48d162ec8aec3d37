// Package doctor inspects a project and reports, stage by stage, what
// pyve would do with it: the config it sees, the backend it resolves,
// the tool it would use, lock-file health, and the state of the
// recorded environment. All checks are read-only.
package doctor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

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

// Check statuses.
const (
	StatusPass = "pass"
	StatusWarn = "warn"
	StatusFail = "fail"
)

// Options configure a doctor run.
type Options struct {
	Paths       paths.Context
	FlagBackend string // --backend override, resolved like any command
	Log         *zap.Logger
}

// Check is one stage verdict.
type Check struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	FixCommand string `json:"fix_command,omitempty"`
}

// Result is the full report.
type Result struct {
	Version   string                `json:"version"`
	CreatedAt string                `json:"created_at"`
	Status    string                `json:"status"`
	Checks    []Check               `json:"checks"`
	Resolved  types.ResolvedBackend `json:"-"`
}

// Failed reports whether any stage failed outright.
func (r Result) Failed() bool { return r.Status == StatusFail }

// Run executes every stage and aggregates their verdicts. Stages after
// a failed resolution still run where they can, so one report shows
// everything that needs attention.
func Run(ctx context.Context, opts Options) Result {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	pctx := opts.Paths

	cfg, cfgCheck := checkConfig(pctx)
	resolved, resCheck := checkResolution(opts.FlagBackend, cfg, pctx, log)

	checks := []Check{
		cfgCheck,
		resCheck,
		checkTool(ctx, pctx, resolved, cfg, log),
		checkLocks(pctx),
		checkEnvironment(pctx, resolved),
		checkIndex(pctx),
	}

	status := StatusPass
	for _, c := range checks {
		switch {
		case c.Status == StatusFail:
			status = StatusFail
		case c.Status == StatusWarn && status == StatusPass:
			status = StatusWarn
		}
	}

	return Result{
		Version:   pyve.Version,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Status:    status,
		Checks:    checks,
		Resolved:  resolved,
	}
}

func checkConfig(pctx paths.Context) (types.ProjectConfig, Check) {
	cfg, err := config.Load(pctx)
	if err != nil {
		return types.ProjectConfig{}, Check{
			Name:       "config",
			Status:     StatusFail,
			Message:    fmt.Sprintf("cannot read %s: %v", pctx.ConfigPath, err),
			FixCommand: "pyve init --force",
		}
	}
	if !config.Exists(pctx) {
		return cfg, Check{
			Name:       "config",
			Status:     StatusWarn,
			Message:    "project is not initialized",
			FixCommand: "pyve init",
		}
	}
	if cfg.PyveVersion != "" && cfg.PyveVersion != pyve.Version {
		return cfg, Check{
			Name:    "config",
			Status:  StatusWarn,
			Message: fmt.Sprintf("config written by pyve %s, running %s", cfg.PyveVersion, pyve.Version),
		}
	}
	return cfg, Check{
		Name:    "config",
		Status:  StatusPass,
		Message: fmt.Sprintf("config loaded from %s", pctx.ConfigPath),
	}
}

func checkResolution(flagBackend string, cfg types.ProjectConfig, pctx paths.Context, log *zap.Logger) (types.ResolvedBackend, Check) {
	signals := detect.Scan(pctx.ProjectDir)
	resolved, err := detect.Resolve(flagBackend, cfg, signals, log)
	if err != nil {
		return types.ResolvedBackend{}, Check{
			Name:    "backend",
			Status:  StatusFail,
			Message: fmt.Sprintf("backend resolution failed: %v", err),
		}
	}

	msg := fmt.Sprintf("%s (%s)", resolved.Backend, resolved.Provenance())
	if resolved.Ambiguous {
		var sources []string
		for _, s := range resolved.Signals {
			if s.Kind == types.SignalCondaFile || s.Kind == types.SignalPipFile {
				sources = append(sources, s.Source)
			}
		}
		return resolved, Check{
			Name:    "backend",
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s; both families indicated (%s), conda family wins ties", msg, strings.Join(sources, ", ")),
		}
	}
	return resolved, Check{
		Name:    "backend",
		Status:  StatusPass,
		Message: msg,
	}
}

func checkTool(ctx context.Context, pctx paths.Context, resolved types.ResolvedBackend, cfg types.ProjectConfig, log *zap.Logger) Check {
	if resolved.Backend == "" {
		return Check{Name: "tool", Status: StatusWarn, Message: "skipped: backend did not resolve"}
	}

	var (
		loc types.ToolLocation
		err error
	)
	if resolved.Backend == types.BackendMicromamba {
		loc, err = tool.Micromamba(pctx)
		if err != nil {
			return Check{
				Name:       "tool",
				Status:     StatusFail,
				Message:    fmt.Sprintf("micromamba not found (searched %s, %s, PATH)", pctx.SandboxBin, pctx.UserSandboxBin),
				FixCommand: "pyve init --auto-bootstrap",
			}
		}
	} else {
		loc, err = tool.Python(pctx, tool.PythonPin(pctx, cfg), log)
		if err != nil {
			return Check{
				Name:    "tool",
				Status:  StatusFail,
				Message: fmt.Sprintf("python interpreter not found: %v", err),
			}
		}
	}

	msg := fmt.Sprintf("%s via %s", loc.Path, loc.Origin)
	if v := tool.Probe(ctx, loc.Path); v != "" {
		msg = fmt.Sprintf("%s (%s)", msg, v)
	}
	return Check{Name: "tool", Status: StatusPass, Message: msg}
}

func checkLocks(pctx paths.Context) Check {
	states := lockfile.Check(pctx.ProjectDir)
	stale := lockfile.Stale(states)
	if len(stale) > 0 {
		var msgs []string
		for _, s := range stale {
			msgs = append(msgs, s.Message())
		}
		return Check{
			Name:    "locks",
			Status:  StatusWarn,
			Message: strings.Join(msgs, "; "),
		}
	}
	return Check{
		Name:    "locks",
		Status:  StatusPass,
		Message: fmt.Sprintf("%d lock pair(s) checked, none stale", len(states)),
	}
}

func checkEnvironment(pctx paths.Context, resolved types.ResolvedBackend) Check {
	if resolved.Backend == "" {
		return Check{Name: "environment", Status: StatusWarn, Message: "skipped: backend did not resolve"}
	}

	h, err := registry.Get(pctx, resolved.Backend)
	if err != nil {
		return Check{
			Name:       "environment",
			Status:     StatusWarn,
			Message:    fmt.Sprintf("no %s environment recorded", resolved.Backend),
			FixCommand: "pyve init",
		}
	}
	if !registry.Intact(h) {
		return Check{
			Name:       "environment",
			Status:     StatusFail,
			Message:    fmt.Sprintf("environment %s is recorded but %s is missing", h.Name, h.Prefix),
			FixCommand: "pyve init",
		}
	}
	if _, err := os.Stat(h.PythonPath()); err != nil {
		return Check{
			Name:       "environment",
			Status:     StatusWarn,
			Message:    fmt.Sprintf("environment %s has no interpreter at %s", h.Name, h.PythonPath()),
			FixCommand: "pyve purge && pyve init",
		}
	}
	return Check{
		Name:    "environment",
		Status:  StatusPass,
		Message: fmt.Sprintf("%s ready at %s", h.Name, h.Prefix),
	}
}

// checkIndex verifies the user-level index is reachable. The index is
// a convenience view, so problems here never fail the report.
func checkIndex(pctx paths.Context) Check {
	ix, err := index.Open(pctx.IndexPath)
	if err != nil {
		return Check{
			Name:    "index",
			Status:  StatusWarn,
			Message: fmt.Sprintf("user index unavailable: %v", err),
		}
	}
	defer ix.Close()

	entries, err := ix.List()
	if err != nil {
		return Check{
			Name:    "index",
			Status:  StatusWarn,
			Message: fmt.Sprintf("user index unreadable: %v", err),
		}
	}
	return Check{
		Name:    "index",
		Status:  StatusPass,
		Message: fmt.Sprintf("user index tracks %d environment(s)", len(entries)),
	}
}
