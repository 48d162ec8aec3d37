// Package tool locates the executables pyve drives (micromamba and the
// python interpreter) and can bootstrap micromamba into a sandbox when
// no installation exists.
//
// Each tool has a fixed resolution chain, probed in order:
//
//	micromamba: project sandbox (.pyve/bin), user sandbox (~/.pyve/bin), PATH
//	python:     pyenv versions, asdf installs, PATH
//
// The first hit wins and carries its origin, so callers can report
// where a tool came from.
package tool

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/pyve/internal/paths"
	"github.com/mesh-intelligence/pyve/pkg/types"
)

// MicromambaName is the tool name used in sandboxes and PATH lookups.
const MicromambaName = "micromamba"

// exeName appends the platform executable suffix.
func exeName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

// Micromamba resolves the micromamba binary. Sandboxes win over PATH so
// a project-pinned binary shadows whatever the machine has installed.
func Micromamba(pctx paths.Context) (types.ToolLocation, error) {
	sandboxes := []struct {
		dir    string
		origin types.ToolOrigin
	}{
		{pctx.SandboxBin, types.OriginProjectSandbox},
		{pctx.UserSandboxBin, types.OriginUserSandbox},
	}
	for _, s := range sandboxes {
		path := filepath.Join(s.dir, exeName(MicromambaName))
		if isExecutable(path) {
			return types.ToolLocation{Path: path, Origin: s.origin}, nil
		}
	}

	if path, err := exec.LookPath(exeName(MicromambaName)); err == nil {
		return types.ToolLocation{Path: path, Origin: types.OriginSystemPath}, nil
	}

	return types.ToolLocation{}, fmt.Errorf(
		"%w: %s (searched %s, %s, PATH)",
		types.ErrToolNotFound, MicromambaName, pctx.SandboxBin, pctx.UserSandboxBin)
}

// Python resolves the interpreter used to create venv environments.
// A non-empty pin selects a matching pyenv or asdf installation; when
// no managed installation matches, resolution falls back to PATH and
// the miss is logged.
func Python(pctx paths.Context, pin string, log *zap.Logger) (types.ToolLocation, error) {
	if pin != "" {
		if loc, ok := pyenvPython(pin); ok {
			return loc, nil
		}
		if loc, ok := asdfPython(pin); ok {
			return loc, nil
		}
		log.Debug("no managed interpreter matches the version pin; trying PATH",
			zap.String("pin", pin))
	}

	for _, name := range []string{"python3", "python"} {
		if path, err := exec.LookPath(exeName(name)); err == nil {
			return types.ToolLocation{Path: path, Origin: types.OriginSystemPath}, nil
		}
	}

	if pin != "" {
		return types.ToolLocation{}, fmt.Errorf(
			"%w: python %s (no pyenv or asdf installation matches and PATH has no interpreter)",
			types.ErrToolNotFound, pin)
	}
	return types.ToolLocation{}, fmt.Errorf(
		"%w: python (PATH has no python3 or python)", types.ErrToolNotFound)
}

// PythonPin returns the effective interpreter pin: the config value
// when set, otherwise the first line of .python-version, otherwise "".
func PythonPin(pctx paths.Context, cfg types.ProjectConfig) string {
	if cfg.Python.Version != "" {
		return cfg.Python.Version
	}
	data, err := os.ReadFile(pctx.PinPath)
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(string(data), "\n")
	return strings.TrimSpace(line)
}

// Probe runs "<path> --version" and returns the first output line, or
// "" when the tool cannot be executed. Doctor uses this to show what a
// resolved path actually is.
func Probe(ctx context.Context, path string) string {
	out, err := exec.CommandContext(ctx, path, "--version").CombinedOutput()
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line)
}

func pyenvPython(pin string) (types.ToolLocation, bool) {
	root, err := paths.PyenvRoot()
	if err != nil {
		return types.ToolLocation{}, false
	}
	version, ok := matchVersion(filepath.Join(root, "versions"), pin)
	if !ok {
		return types.ToolLocation{}, false
	}
	path := filepath.Join(root, "versions", version, "bin", exeName("python"))
	if !isExecutable(path) {
		return types.ToolLocation{}, false
	}
	return types.ToolLocation{Path: path, Origin: types.OriginPyenv}, true
}

func asdfPython(pin string) (types.ToolLocation, bool) {
	dataDir, err := paths.AsdfDataDir()
	if err != nil {
		return types.ToolLocation{}, false
	}
	installs := filepath.Join(dataDir, "installs", "python")
	version, ok := matchVersion(installs, pin)
	if !ok {
		return types.ToolLocation{}, false
	}
	path := filepath.Join(installs, version, "bin", exeName("python"))
	if !isExecutable(path) {
		return types.ToolLocation{}, false
	}
	return types.ToolLocation{Path: path, Origin: types.OriginAsdf}, true
}

// matchVersion picks the newest installed version satisfying the pin.
// "3.11" matches any 3.11.x install; "3.11.4" only itself.
func matchVersion(versionsDir, pin string) (string, bool) {
	entries, err := os.ReadDir(versionsDir)
	if err != nil {
		return "", false
	}
	var candidates []string
	for _, e := range entries {
		name := e.Name()
		if name == pin || strings.HasPrefix(name, pin+".") {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.Slice(candidates, func(i, j int) bool {
		return compareVersions(candidates[i], candidates[j]) > 0
	})
	return candidates[0], true
}

// compareVersions orders dotted numeric versions; non-numeric segments
// compare as strings so prerelease names still sort deterministically.
func compareVersions(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var sa, sb string
		if i < len(as) {
			sa = as[i]
		}
		if i < len(bs) {
			sb = bs[i]
		}
		na, errA := strconv.Atoi(sa)
		nb, errB := strconv.Atoi(sb)
		switch {
		case errA == nil && errB == nil:
			if na != nb {
				return na - nb
			}
		default:
			if c := strings.Compare(sa, sb); c != 0 {
				return c
			}
		}
	}
	return 0
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
