// CLI integration tests for pyve: flag handling, exit codes, and the
// commands that do not need a provisioned environment.
package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// TestMain builds the pyve binary once before running tests.
func TestMain(m *testing.M) {
	projectRoot, err := FindProjectRoot()
	if err != nil {
		SetBuildErr(err)
		os.Exit(1)
	}

	tmpDir, err := os.MkdirTemp("", "pyve-test-*")
	if err != nil {
		SetBuildErr(err)
		os.Exit(1)
	}
	binPath := filepath.Join(tmpDir, "pyve")
	SetPyveBin(binPath)

	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/pyve")
	cmd.Dir = projectRoot
	if output, err := cmd.CombinedOutput(); err != nil {
		SetBuildErr(&BuildError{
			Err:    err,
			Output: string(output),
		})
		os.Exit(1)
	}

	code := m.Run()

	os.RemoveAll(tmpDir)

	os.Exit(code)
}

// TestVersion verifies version output format.
func TestVersion(t *testing.T) {
	env := NewTestEnv(t)

	result := env.MustRunPyve("version")

	if !strings.Contains(result.Stdout, "pyve v") {
		t.Errorf("version output = %q, want it to contain %q", result.Stdout, "pyve v")
	}
	if !strings.Contains(result.Stdout, "module:") {
		t.Errorf("version output = %q, want it to contain %q", result.Stdout, "module:")
	}
}

// TestUnknownBackendExitCode verifies the resolution error exit code.
func TestUnknownBackendExitCode(t *testing.T) {
	env := NewTestEnv(t)

	result := env.RunPyve("init", "--backend", "virtualenvwrapper")

	if result.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", result.ExitCode)
	}
	if !strings.Contains(result.Stderr, "virtualenvwrapper") {
		t.Errorf("stderr = %q, want the unknown backend named", result.Stderr)
	}
}

// TestRunWithoutInit verifies the guidance when no environment exists.
func TestRunWithoutInit(t *testing.T) {
	env := NewTestEnv(t)
	env.WriteRequirements()

	result := env.RunPyve("run", "true")

	if result.ExitCode != 1 {
		t.Errorf("exit code = %d, want 1", result.ExitCode)
	}
	if !strings.Contains(result.Stderr, "pyve init") {
		t.Errorf("stderr = %q, want a hint to run pyve init", result.Stderr)
	}
}

// TestMissingMicromambaExitCode verifies the tool-missing exit code and
// the bootstrap hint when stdin is not a terminal.
func TestMissingMicromambaExitCode(t *testing.T) {
	env := NewTestEnv(t)
	env.WriteEnvironmentYML()

	result := env.RunPyve("init")

	if result.ExitCode != 4 {
		t.Errorf("exit code = %d, want 4", result.ExitCode)
	}
	if !strings.Contains(result.Stderr, "--auto-bootstrap") {
		t.Errorf("stderr = %q, want an --auto-bootstrap hint", result.Stderr)
	}
}

// TestPythonPin verifies pin write and read-back.
func TestPythonPin(t *testing.T) {
	env := NewTestEnv(t)

	env.MustRunPyve("python", "3.12")

	pin := env.ReadProjectFile(".python-version")
	if pin != "3.12\n" {
		t.Errorf(".python-version = %q, want %q", pin, "3.12\n")
	}

	result := env.MustRunPyve("python")
	if strings.TrimSpace(result.Stdout) != "3.12" {
		t.Errorf("python output = %q, want 3.12", result.Stdout)
	}

	bad := env.RunPyve("python", "three")
	if bad.ExitCode != 1 {
		t.Errorf("exit code for malformed version = %d, want 1", bad.ExitCode)
	}
}

// TestDoctorOnEmptyProject verifies doctor reports without failing on
// an uninitialized project.
func TestDoctorOnEmptyProject(t *testing.T) {
	env := NewTestEnv(t)
	env.WriteRequirements()
	env.InstallFakePython()

	result := env.MustRunPyve("doctor")

	if !strings.Contains(result.Stdout, "status: warn") {
		t.Errorf("doctor output = %q, want status warn", result.Stdout)
	}
	if !strings.Contains(result.Stdout, "pyve init") {
		t.Errorf("doctor output = %q, want a pyve init fix hint", result.Stdout)
	}
}

// TestListOnFreshUser verifies list copes with an empty index.
func TestListOnFreshUser(t *testing.T) {
	env := NewTestEnv(t)

	result := env.MustRunPyve("list")

	if !strings.Contains(result.Stdout, "no environments recorded") {
		t.Errorf("list output = %q, want empty-index message", result.Stdout)
	}
}
