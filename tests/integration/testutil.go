// Package integration provides CLI integration tests for pyve. Tests
// run the real binary against throwaway projects with stubbed backend
// tools, so the whole path from argv to exit code is exercised.
package integration

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
)

var (
	// pyveBin is the path to the built pyve binary.
	pyveBin string
	// buildErr captures any build error.
	buildErr error
)

// BuildError wraps a build error with output.
type BuildError struct {
	Err    error
	Output string
}

func (e *BuildError) Error() string {
	return e.Err.Error() + ": " + e.Output
}

// FindProjectRoot finds the project root by walking up and looking for go.mod.
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

// SetPyveBin sets the path to the pyve binary (called from TestMain).
func SetPyveBin(path string) {
	pyveBin = path
}

// SetBuildErr sets the build error (called from TestMain).
func SetBuildErr(err error) {
	buildErr = err
}

// TestEnv is an isolated project: its own project directory, its own
// user dir (PYVE_HOME), and a PATH containing only the tools the test
// installed plus the system shell.
type TestEnv struct {
	t       *testing.T
	Project string
	Home    string
	Path    string
}

// NewTestEnv creates a new isolated test environment.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake backend tools are unix shell scripts")
	}
	if buildErr != nil {
		t.Fatalf("failed to build pyve: %v", buildErr)
	}
	if pyveBin == "" {
		t.Fatal("pyve binary not built (pyveBin is empty)")
	}

	tempDir := t.TempDir()
	project := filepath.Join(tempDir, "project")
	if err := os.MkdirAll(project, 0o755); err != nil {
		t.Fatalf("failed to create project dir: %v", err)
	}

	return &TestEnv{
		t:       t,
		Project: project,
		Home:    filepath.Join(tempDir, "pyve-home"),
		Path:    "/usr/bin:/bin",
	}
}

// WriteFile drops a file into the project directory.
func (e *TestEnv) WriteFile(name, content string) {
	e.t.Helper()
	if err := os.WriteFile(filepath.Join(e.Project, name), []byte(content), 0o644); err != nil {
		e.t.Fatalf("failed to write %s: %v", name, err)
	}
}

// WriteRequirements marks the project as pip-style.
func (e *TestEnv) WriteRequirements() {
	e.WriteFile("requirements.txt", "requests==2.31.0\n")
}

// WriteEnvironmentYML marks the project as conda-style.
func (e *TestEnv) WriteEnvironmentYML() {
	e.WriteFile("environment.yml", "name: demo\ndependencies:\n  - python=3.11\n")
}

// installTool writes an executable stub into a fresh bin directory and
// prepends that directory to the environment's PATH.
func (e *TestEnv) installTool(name, script string) {
	e.t.Helper()
	bin := e.t.TempDir()
	if err := os.WriteFile(filepath.Join(bin, name), []byte(script), 0o755); err != nil {
		e.t.Fatalf("failed to install fake %s: %v", name, err)
	}
	e.Path = bin + string(os.PathListSeparator) + e.Path
}

// InstallFakePython puts a python3 stub on PATH that creates the venv
// directory it is asked for.
func (e *TestEnv) InstallFakePython() {
	e.installTool("python3", `#!/bin/sh
if [ "$1" = "--version" ]; then echo "Python 3.11.9"; exit 0; fi
last=""
for a in "$@"; do last="$a"; done
mkdir -p "$last/bin"
touch "$last/bin/python"
chmod 755 "$last/bin/python"
`)
}

// InstallFakeMicromamba puts a micromamba stub on PATH that creates the
// prefix passed via --prefix.
func (e *TestEnv) InstallFakeMicromamba() {
	e.installTool("micromamba", FakeMicromambaScript)
}

// FakeMicromambaScript materializes the --prefix directory like a real
// "micromamba create" would.
const FakeMicromambaScript = `#!/bin/sh
if [ "$1" = "--version" ]; then echo "1.5.8"; exit 0; fi
prefix=""
prev=""
for a in "$@"; do
  if [ "$prev" = "--prefix" ]; then prefix="$a"; fi
  prev="$a"
done
mkdir -p "$prefix/bin"
touch "$prefix/bin/python"
chmod 755 "$prefix/bin/python"
`

// CmdResult holds the result of a pyve command execution.
type CmdResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// RunPyve executes the pyve CLI against the environment's project.
func (e *TestEnv) RunPyve(args ...string) CmdResult {
	e.t.Helper()

	allArgs := append([]string{"-C", e.Project}, args...)
	cmd := exec.Command(pyveBin, allArgs...)
	cmd.Env = append(os.Environ(),
		"PYVE_HOME="+e.Home,
		"PYENV_ROOT="+filepath.Join(e.Home, "no-pyenv"),
		"ASDF_DATA_DIR="+filepath.Join(e.Home, "no-asdf"),
		"PATH="+e.Path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			e.t.Fatalf("failed to run pyve: %v", err)
		}
	}

	return CmdResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}
}

// MustRunPyve executes the pyve CLI and fails the test on a non-zero exit.
func (e *TestEnv) MustRunPyve(args ...string) CmdResult {
	e.t.Helper()
	result := e.RunPyve(args...)
	if result.ExitCode != 0 {
		e.t.Fatalf("pyve %v failed with exit code %d:\nstdout: %s\nstderr: %s",
			args, result.ExitCode, result.Stdout, result.Stderr)
	}
	return result
}

// ProjectPath joins a path under the project directory.
func (e *TestEnv) ProjectPath(parts ...string) string {
	return filepath.Join(append([]string{e.Project}, parts...)...)
}

// CanonicalProject is the symlink-resolved project path, as pyve
// records it.
func (e *TestEnv) CanonicalProject() string {
	e.t.Helper()
	p, err := filepath.EvalSymlinks(e.Project)
	if err != nil {
		e.t.Fatalf("failed to canonicalize project: %v", err)
	}
	return p
}

// AssertExists fails the test when the path does not exist.
func (e *TestEnv) AssertExists(path string) {
	e.t.Helper()
	if _, err := os.Stat(path); err != nil {
		e.t.Errorf("expected %s to exist: %v", path, err)
	}
}

// AssertNotExists fails the test when the path exists.
func (e *TestEnv) AssertNotExists(path string) {
	e.t.Helper()
	if _, err := os.Stat(path); err == nil {
		e.t.Errorf("expected %s to be gone", path)
	}
}

// ReadProjectFile reads a file under the project directory.
func (e *TestEnv) ReadProjectFile(name string) string {
	e.t.Helper()
	data, err := os.ReadFile(filepath.Join(e.Project, name))
	if err != nil {
		e.t.Fatalf("reading %s: %v", name, err)
	}
	return string(data)
}
