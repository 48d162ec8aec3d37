package types

import (
	"path/filepath"
	"runtime"
	"time"
)

// EnvironmentHandle describes one managed environment as recorded in
// the project registry.
type EnvironmentHandle struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	Backend   Backend   `yaml:"backend"`
	Prefix    string    `yaml:"prefix"`
	Python    string    `yaml:"python_version,omitempty"`
	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// BinDirs returns the executable directories of the environment in the
// order they should be prepended to PATH.
func (h EnvironmentHandle) BinDirs() []string {
	if runtime.GOOS == "windows" {
		if h.Backend == BackendMicromamba {
			return []string{h.Prefix, filepath.Join(h.Prefix, "Scripts")}
		}
		return []string{filepath.Join(h.Prefix, "Scripts")}
	}
	return []string{filepath.Join(h.Prefix, "bin")}
}

// PythonPath returns the interpreter path inside the environment.
func (h EnvironmentHandle) PythonPath() string {
	if runtime.GOOS == "windows" {
		if h.Backend == BackendMicromamba {
			return filepath.Join(h.Prefix, "python.exe")
		}
		return filepath.Join(h.Prefix, "Scripts", "python.exe")
	}
	return filepath.Join(h.Prefix, "bin", "python")
}
