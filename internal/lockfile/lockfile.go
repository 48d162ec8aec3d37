// Package lockfile checks dependency lock files for staleness against
// the spec files they were generated from. The check compares
// modification times only and is advisory: callers warn and proceed.
package lockfile

import (
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/pyve/pkg/types"
)

// pair names a dependency spec file and the lock files that tools in
// the ecosystem generate from it. The first lock file present wins.
type pair struct {
	spec  string
	locks []string
}

var pairs = []pair{
	{spec: "environment.yml", locks: []string{"conda-lock.yml"}},
	{spec: "environment.yaml", locks: []string{"conda-lock.yml"}},
	{spec: "pyproject.toml", locks: []string{"poetry.lock", "uv.lock", "pdm.lock"}},
	{spec: "requirements.in", locks: []string{"requirements.txt"}},
	{spec: "Pipfile", locks: []string{"Pipfile.lock"}},
}

// Check evaluates every known spec/lock pair present in projectDir and
// returns one verdict per spec file found. A spec file whose lock file
// is absent counts as in sync; generating locks is out of scope here.
func Check(projectDir string) []types.LockState {
	var states []types.LockState
	for _, p := range pairs {
		specPath := filepath.Join(projectDir, p.spec)
		specInfo, err := os.Stat(specPath)
		if err != nil || specInfo.IsDir() {
			continue
		}

		state := types.LockState{SpecFile: p.spec, InSync: true, Reason: types.LockNoLockFile}
		for _, lock := range p.locks {
			lockInfo, err := os.Stat(filepath.Join(projectDir, lock))
			if err != nil || lockInfo.IsDir() {
				continue
			}
			state.LockFile = lock
			if specInfo.ModTime().After(lockInfo.ModTime()) {
				state.InSync = false
				state.Reason = types.LockStale
			} else {
				state.Reason = types.LockInSync
			}
			break
		}
		states = append(states, state)
	}
	return states
}

// Stale filters a verdict list down to the stale entries.
func Stale(states []types.LockState) []types.LockState {
	var stale []types.LockState
	for _, s := range states {
		if !s.InSync {
			stale = append(stale, s)
		}
	}
	return stale
}
