// Package detect discovers backend signals in a project and resolves
// them into a single backend choice.
//
// Resolution precedence, strongest first: explicit --backend flag,
// backend recorded in config, conda-family indicator files, pip-family
// indicator files, then the venv default. Within indicator files the
// conda family wins ties.
package detect

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mesh-intelligence/pyve/pkg/types"
)

// indicatorRule maps a set of filename patterns to the backend they
// suggest. Rules are ordered conda first; that order is the tie-break.
type indicatorRule struct {
	kind     types.SignalKind
	backend  types.Backend
	patterns []string
}

var indicatorRules = []indicatorRule{
	{
		kind:     types.SignalCondaFile,
		backend:  types.BackendMicromamba,
		patterns: []string{"environment.yml", "environment.yaml", "conda-lock.yml"},
	},
	{
		kind:     types.SignalPipFile,
		backend:  types.BackendVenv,
		patterns: []string{"requirements.txt", "requirements-*.txt", "pyproject.toml", "setup.py"},
	},
}

// Scan inspects the top level of projectDir for indicator files and
// returns at most one signal per family, conda first. Several files of
// the same family collapse into one signal carrying the highest-ranked
// name present. Scan does not recurse; only files at the project root
// count.
func Scan(projectDir string) []types.BackendSignal {
	var signals []types.BackendSignal
	for _, rule := range indicatorRules {
		if name, ok := firstMatch(projectDir, rule.patterns); ok {
			signals = append(signals, types.BackendSignal{
				Kind:    rule.kind,
				Backend: rule.backend,
				Source:  name,
			})
		}
	}
	return signals
}

// firstMatch returns the first pattern hit, in pattern order.
func firstMatch(projectDir string, patterns []string) (string, bool) {
	for _, pattern := range patterns {
		if names := matchPattern(projectDir, pattern); len(names) > 0 {
			return names[0], true
		}
	}
	return "", false
}

// matchPattern returns project-relative names matching pattern, sorted
// by filepath.Glob. Directories never count as indicators.
func matchPattern(projectDir, pattern string) []string {
	if !strings.ContainsAny(pattern, "*?[") {
		path := filepath.Join(projectDir, pattern)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return []string{pattern}
		}
		return nil
	}

	hits, err := filepath.Glob(filepath.Join(projectDir, pattern))
	if err != nil {
		return nil
	}
	var names []string
	for _, hit := range hits {
		if info, err := os.Stat(hit); err == nil && !info.IsDir() {
			names = append(names, filepath.Base(hit))
		}
	}
	return names
}
