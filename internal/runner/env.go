package runner

import (
	"os"
	"strings"

	"github.com/mesh-intelligence/pyve/pkg/types"
)

// Variables that must never leak from the parent into a managed
// environment, regardless of backend.
var alwaysDropped = []string{"PYTHONHOME"}

// Per-family variables. Activating one family scrubs the other's.
var (
	pipVars   = []string{"VIRTUAL_ENV"}
	condaVars = []string{"CONDA_PREFIX", "CONDA_DEFAULT_ENV", "MAMBA_ROOT_PREFIX"}
)

// BuildEnv derives the child process environment from base: the
// environment's bin directories are prepended to PATH and the
// activation variables of the backend's family are set, replacing any
// inherited activation state from either family. No shell is involved;
// this is the whole of "activation".
func BuildEnv(base []string, h types.EnvironmentHandle, mambaRoot string) []string {
	dropped := make(map[string]bool)
	for _, k := range alwaysDropped {
		dropped[k] = true
	}
	for _, k := range pipVars {
		dropped[k] = true
	}
	for _, k := range condaVars {
		dropped[k] = true
	}

	sep := string(os.PathListSeparator)
	newPath := strings.Join(h.BinDirs(), sep)

	env := make([]string, 0, len(base)+4)
	pathSeen := false
	for _, kv := range base {
		key, _, ok := strings.Cut(kv, "=")
		if !ok || dropped[key] {
			continue
		}
		if key == "PATH" {
			env = append(env, "PATH="+newPath+sep+kv[len("PATH="):])
			pathSeen = true
			continue
		}
		env = append(env, kv)
	}
	if !pathSeen {
		env = append(env, "PATH="+newPath)
	}

	if h.Backend.Family() == types.FamilyConda {
		env = append(env,
			"CONDA_PREFIX="+h.Prefix,
			"CONDA_DEFAULT_ENV="+h.Name)
		if mambaRoot != "" {
			env = append(env, "MAMBA_ROOT_PREFIX="+mambaRoot)
		}
	} else {
		env = append(env, "VIRTUAL_ENV="+h.Prefix)
	}
	return env
}

// pathValue extracts PATH from an environment list.
func pathValue(env []string) string {
	for _, kv := range env {
		if v, ok := strings.CutPrefix(kv, "PATH="); ok {
			return v
		}
	}
	return ""
}
