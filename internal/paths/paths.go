// Package paths resolves the project-local and user-level locations
// that pyve reads and writes: the .pyve state directory, tool
// sandboxes, the version-pin file, and the roots of external version
// managers.
package paths

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Project-relative names.
const (
	ConfigDirName    = ".pyve"
	ConfigFileName   = "config"
	RegistryFileName = "registry"
	LocksDirName     = "locks"
	BinDirName       = "bin"
	EnvDirName       = "env"
	PinFileName      = ".python-version"
)

// IndexFileName is the user-level environment index database.
const IndexFileName = "index.db"

// Environment variable overrides.
const (
	EnvUserDir  = "PYVE_HOME"
	EnvPyenv    = "PYENV_ROOT"
	EnvAsdfData = "ASDF_DATA_DIR"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir func() (string, error)
}{
	homeDir: os.UserHomeDir,
}

// Context is the resolved location set for one project. All paths are
// absolute; ProjectDir has symlinks resolved so that the same physical
// directory always yields the same Context.
type Context struct {
	ProjectDir   string // canonical project root
	PyveDir      string // ProjectDir/.pyve
	ConfigPath   string // PyveDir/config
	RegistryPath string // PyveDir/registry
	LockDir      string // PyveDir/locks
	SandboxBin   string // PyveDir/bin, project tool sandbox
	PinPath      string // ProjectDir/.python-version

	UserDir        string // ~/.pyve unless PYVE_HOME overrides
	UserSandboxBin string // UserDir/bin, user tool sandbox
	IndexPath      string // UserDir/index.db
}

// NewContext resolves all locations for the given project directory.
// An empty projectDir means the current working directory. The project
// directory must exist; its canonical form (absolute, symlinks
// resolved) becomes ProjectDir.
func NewContext(projectDir string) (Context, error) {
	if projectDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return Context{}, err
		}
		projectDir = cwd
	}
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return Context{}, err
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return Context{}, fmt.Errorf("project directory %s: %w", abs, err)
	}

	userDir := os.Getenv(EnvUserDir)
	if userDir == "" {
		home, err := platformDir.homeDir()
		if err != nil {
			return Context{}, err
		}
		userDir = filepath.Join(home, ConfigDirName)
	}

	pyveDir := filepath.Join(canonical, ConfigDirName)
	return Context{
		ProjectDir:     canonical,
		PyveDir:        pyveDir,
		ConfigPath:     filepath.Join(pyveDir, ConfigFileName),
		RegistryPath:   filepath.Join(pyveDir, RegistryFileName),
		LockDir:        filepath.Join(pyveDir, LocksDirName),
		SandboxBin:     filepath.Join(pyveDir, BinDirName),
		PinPath:        filepath.Join(canonical, PinFileName),
		UserDir:        userDir,
		UserSandboxBin: filepath.Join(userDir, BinDirName),
		IndexPath:      filepath.Join(userDir, IndexFileName),
	}, nil
}

// Resolve makes a config-supplied path absolute. Relative paths are
// taken relative to the project root.
func (c Context) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.ProjectDir, p)
}

// DefaultEnvPrefix is where micromamba environments live when the
// config does not name a prefix.
func (c Context) DefaultEnvPrefix() string {
	return filepath.Join(c.PyveDir, EnvDirName)
}

// LockPath returns the advisory lock file guarding environment creation
// for one backend of this project.
func (c Context) LockPath(backend string) string {
	return filepath.Join(c.LockDir, backend+".lock")
}

// EnvName derives the environment name for this project: a sanitized
// directory basename joined with a short digest of the canonical path.
// Equal project paths always produce equal names, and distinct paths
// are kept apart by the digest even when their basenames collide.
func (c Context) EnvName() string {
	return EnvName(c.ProjectDir)
}

// EnvName derives an environment name from a canonical project path.
func EnvName(canonicalPath string) string {
	sum := sha256.Sum256([]byte(canonicalPath))
	digest := hex.EncodeToString(sum[:])[:10]

	base := sanitizeName(filepath.Base(canonicalPath))
	if base == "" {
		return "env-" + digest
	}
	return base + "-" + digest
}

// maxBaseLen bounds the readable part of an environment name so the
// whole name stays shell and filesystem friendly.
const maxBaseLen = 20

func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteByte('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if len(out) > maxBaseLen {
		out = strings.Trim(out[:maxBaseLen], "-")
	}
	return out
}

// WriteFileAtomic writes data to path via a temp file in the same
// directory followed by a rename, so readers never observe a partial
// file. The temp file is removed on failure.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Chmod(perm); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// PyenvRoot returns the pyenv installation root: $PYENV_ROOT when set,
// otherwise ~/.pyenv.
func PyenvRoot() (string, error) {
	if env := os.Getenv(EnvPyenv); env != "" {
		return filepath.Abs(env)
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".pyenv"), nil
}

// AsdfDataDir returns the asdf data directory: $ASDF_DATA_DIR when set,
// otherwise ~/.asdf.
func AsdfDataDir() (string, error) {
	if env := os.Getenv(EnvAsdfData); env != "" {
		return filepath.Abs(env)
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".asdf"), nil
}
