package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/pyve/pkg/types"
)

// fakeEnv builds an environment prefix with a bin directory and
// returns its handle.
func fakeEnv(t *testing.T, backend types.Backend) types.EnvironmentHandle {
	t.Helper()
	prefix := filepath.Join(t.TempDir(), "env")
	require.NoError(t, os.MkdirAll(filepath.Join(prefix, "bin"), 0o755))
	return types.EnvironmentHandle{
		ID:      "test-id",
		Name:    "proj-abc123",
		Backend: backend,
		Prefix:  prefix,
	}
}

func installScript(t *testing.T, h types.EnvironmentHandle, name, body string) {
	t.Helper()
	path := filepath.Join(h.Prefix, "bin", name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
}

func baseEnv() []string {
	return []string{
		"PATH=/usr/bin:/bin",
		"HOME=/home/dev",
		"PYTHONHOME=/usr",
		"VIRTUAL_ENV=/somewhere/else",
		"CONDA_PREFIX=/opt/conda",
		"CONDA_DEFAULT_ENV=base",
	}
}

func TestBuildEnv(t *testing.T) {
	t.Run("venv activation", func(t *testing.T) {
		h := fakeEnv(t, types.BackendVenv)
		env := BuildEnv(baseEnv(), h, "")

		joined := strings.Join(env, "\n")
		assert.Contains(t, joined, "VIRTUAL_ENV="+h.Prefix)
		assert.NotContains(t, joined, "CONDA_PREFIX")
		assert.NotContains(t, joined, "CONDA_DEFAULT_ENV")
		assert.NotContains(t, joined, "PYTHONHOME")
		assert.Contains(t, joined, "HOME=/home/dev")

		sep := string(os.PathListSeparator)
		path := pathValue(env)
		assert.True(t, strings.HasPrefix(path, strings.Join(h.BinDirs(), sep)+sep),
			"env bin should lead PATH, got %q", path)
		assert.Contains(t, path, "/usr/bin:/bin")
	})

	t.Run("conda activation", func(t *testing.T) {
		h := fakeEnv(t, types.BackendMicromamba)
		env := BuildEnv(baseEnv(), h, "/home/dev/.pyve")

		joined := strings.Join(env, "\n")
		assert.Contains(t, joined, "CONDA_PREFIX="+h.Prefix)
		assert.Contains(t, joined, "CONDA_DEFAULT_ENV=proj-abc123")
		assert.Contains(t, joined, "MAMBA_ROOT_PREFIX=/home/dev/.pyve")
		assert.NotContains(t, joined, "VIRTUAL_ENV")
	})

	t.Run("base without PATH still gets env bin", func(t *testing.T) {
		h := fakeEnv(t, types.BackendVenv)
		env := BuildEnv([]string{"HOME=/home/dev"}, h, "")
		assert.Equal(t, strings.Join(h.BinDirs(), string(os.PathListSeparator)), pathValue(env))
	})
}

func TestRunExitCodes(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test scripts are unix shell scripts")
	}

	t.Run("zero exit", func(t *testing.T) {
		h := fakeEnv(t, types.BackendVenv)
		installScript(t, h, "ok", "exit 0\n")

		code, err := Run(context.Background(), Invocation{
			Handle:  h,
			Argv:    []string{"ok"},
			BaseEnv: baseEnv(),
		}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, 0, code)
	})

	t.Run("non-zero exit propagates verbatim", func(t *testing.T) {
		h := fakeEnv(t, types.BackendVenv)
		installScript(t, h, "fail", "exit 42\n")

		code, err := Run(context.Background(), Invocation{
			Handle:  h,
			Argv:    []string{"fail"},
			BaseEnv: baseEnv(),
		}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, 42, code)
	})

	t.Run("missing command is 127", func(t *testing.T) {
		h := fakeEnv(t, types.BackendVenv)

		code, err := Run(context.Background(), Invocation{
			Handle:  h,
			Argv:    []string{"definitely-not-here"},
			BaseEnv: baseEnv(),
		}, zap.NewNop())
		require.Error(t, err)
		assert.Equal(t, 127, code)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("empty argv", func(t *testing.T) {
		h := fakeEnv(t, types.BackendVenv)
		_, err := Run(context.Background(), Invocation{Handle: h}, zap.NewNop())
		require.Error(t, err)
	})
}

func TestRunInjectsEnvironment(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test scripts are unix shell scripts")
	}

	h := fakeEnv(t, types.BackendVenv)
	installScript(t, h, "show-env", "echo \"venv=$VIRTUAL_ENV\"\necho \"conda=$CONDA_PREFIX\"\n")

	var out strings.Builder
	code, err := Run(context.Background(), Invocation{
		Handle:  h,
		Argv:    []string{"show-env"},
		BaseEnv: baseEnv(),
		Stdout:  &out,
		Stderr:  &out,
	}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "venv="+h.Prefix)
	assert.Contains(t, out.String(), "conda=\n")
}

func TestRunPrefersEnvBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test scripts are unix shell scripts")
	}

	// A "python" exists both in the environment and on the base PATH;
	// the environment's copy must win.
	h := fakeEnv(t, types.BackendVenv)
	installScript(t, h, "python", "echo from-env\n")

	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "python"),
		[]byte("#!/bin/sh\necho from-outside\n"), 0o755))

	var out strings.Builder
	code, err := Run(context.Background(), Invocation{
		Handle:  h,
		Argv:    []string{"python"},
		BaseEnv: []string{"PATH=" + outside + ":/usr/bin:/bin"},
		Stdout:  &out,
	}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "from-env", strings.TrimSpace(out.String()))
}

func TestFamilyIsolation(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test scripts are unix shell scripts")
	}

	t.Run("pip manager blocked in conda env", func(t *testing.T) {
		h := fakeEnv(t, types.BackendMicromamba)

		code, err := Run(context.Background(), Invocation{
			Handle:  h,
			Argv:    []string{"pip", "install", "requests"},
			BaseEnv: baseEnv(),
		}, zap.NewNop())
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrFamilyIsolation), "got %v", err)
		assert.Equal(t, 1, code)
	})

	t.Run("conda manager blocked in venv", func(t *testing.T) {
		h := fakeEnv(t, types.BackendVenv)

		_, err := Run(context.Background(), Invocation{
			Handle:  h,
			Argv:    []string{"micromamba", "install", "numpy"},
			BaseEnv: baseEnv(),
		}, zap.NewNop())
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrFamilyIsolation), "got %v", err)
	})

	t.Run("override runs the command", func(t *testing.T) {
		h := fakeEnv(t, types.BackendMicromamba)
		installScript(t, h, "pip", "echo cross\n")

		code, err := Run(context.Background(), Invocation{
			Handle:           h,
			Argv:             []string{"pip", "--version"},
			BaseEnv:          baseEnv(),
			AllowCrossFamily: true,
		}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, 0, code)
	})

	t.Run("resolution and environment must agree", func(t *testing.T) {
		h := fakeEnv(t, types.BackendVenv)

		_, err := Run(context.Background(), Invocation{
			Handle:   h,
			Resolved: types.ResolvedBackend{Backend: types.BackendMicromamba},
			Argv:     []string{"python"},
			BaseEnv:  baseEnv(),
		}, zap.NewNop())
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrFamilyIsolation), "got %v", err)
	})

	t.Run("ordinary tools pass", func(t *testing.T) {
		h := fakeEnv(t, types.BackendMicromamba)
		installScript(t, h, "python", "exit 0\n")

		code, err := Run(context.Background(), Invocation{
			Handle:   h,
			Resolved: types.ResolvedBackend{Backend: types.BackendMicromamba},
			Argv:     []string{"python"},
			BaseEnv:  baseEnv(),
		}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, 0, code)
	})
}

func TestRunCancellationTerminatesChild(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("process groups are unix specific")
	}

	h := fakeEnv(t, types.BackendVenv)
	installScript(t, h, "sleeper", "sleep 30\n")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	code, err := Run(ctx, Invocation{
		Handle:  h,
		Argv:    []string{"sleeper"},
		BaseEnv: baseEnv(),
	}, zap.NewNop())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second, "child should die on cancel")
	assert.Equal(t, 128+15, code, "SIGTERM death reports 143")
}
