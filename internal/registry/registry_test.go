package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/pyve/internal/paths"
	"github.com/mesh-intelligence/pyve/pkg/types"
)

func testContext(t *testing.T) paths.Context {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake backend tools are unix shell scripts")
	}
	dir := t.TempDir()
	t.Setenv(paths.EnvUserDir, filepath.Join(dir, "pyve-home"))
	ctx, err := paths.NewContext(dir)
	require.NoError(t, err)
	return ctx
}

// fakeTool writes a shell stub that logs its argv and materializes the
// environment directory found at argv position prefixArg.
func fakeTool(t *testing.T, name string, prefixArg int, extra string) (path, callsFile string) {
	t.Helper()
	dir := t.TempDir()
	callsFile = filepath.Join(dir, "calls")
	path = filepath.Join(dir, name)
	script := fmt.Sprintf("#!/bin/sh\necho \"$@\" >> %q\n%s\nmkdir -p \"$%d/bin\"\ntouch \"$%d/bin/python\"\nchmod 755 \"$%d/bin/python\"\n",
		callsFile, extra, prefixArg, prefixArg, prefixArg)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path, callsFile
}

func callCount(t *testing.T, callsFile string) int {
	t.Helper()
	data, err := os.ReadFile(callsFile)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return len(strings.Split(strings.TrimSpace(string(data)), "\n"))
}

func venvRequest(t *testing.T) (CreateRequest, string) {
	t.Helper()
	tool, calls := fakeTool(t, "python3", 3, "")
	req := CreateRequest{
		Backend: types.BackendVenv,
		Tool:    types.ToolLocation{Path: tool, Origin: types.OriginSystemPath},
		Python:  "3.11",
	}
	return req, calls
}

func TestGetOrCreateVenv(t *testing.T) {
	pctx := testContext(t)
	req, calls := venvRequest(t)

	h, created, err := GetOrCreate(context.Background(), pctx, req, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, h.ID)
	assert.Equal(t, types.BackendVenv, h.Backend)
	assert.Equal(t, filepath.Join(pctx.ProjectDir, ".venv"), h.Prefix)
	assert.Equal(t, "3.11", h.Python)
	assert.Equal(t, pctx.EnvName(), h.Name)
	assert.DirExists(t, h.Prefix)
	assert.FileExists(t, pctx.RegistryPath)

	// Second call reuses the record without touching the tool.
	again, created, err := GetOrCreate(context.Background(), pctx, req, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, h.ID, again.ID)
	assert.Equal(t, 1, callCount(t, calls))
}

func TestGetOrCreateMicromamba(t *testing.T) {
	pctx := testContext(t)
	require.NoError(t, os.WriteFile(filepath.Join(pctx.ProjectDir, "environment.yml"),
		[]byte("name: test\ndependencies:\n  - python=3.11\n"), 0o644))

	tool, calls := fakeTool(t, "micromamba", 4, "")
	req := CreateRequest{
		Backend: types.BackendMicromamba,
		Tool:    types.ToolLocation{Path: tool, Origin: types.OriginUserSandbox},
		Config: types.ProjectConfig{
			Micromamba: types.MicromambaConfig{
				EnvFile:  "environment.yml",
				Channels: []string{"conda-forge", "bioconda"},
			},
		},
	}

	h, created, err := GetOrCreate(context.Background(), pctx, req, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, pctx.DefaultEnvPrefix(), h.Prefix)
	assert.DirExists(t, h.Prefix)

	data, err := os.ReadFile(calls)
	require.NoError(t, err)
	argv := string(data)
	assert.Contains(t, argv, "create --yes --prefix")
	assert.Contains(t, argv, "--file "+filepath.Join(pctx.ProjectDir, "environment.yml"))
	assert.Contains(t, argv, "--channel conda-forge")
	assert.Contains(t, argv, "--channel bioconda")
}

func TestMicromambaRequiresEnvFile(t *testing.T) {
	pctx := testContext(t)
	tool, _ := fakeTool(t, "micromamba", 4, "")
	req := CreateRequest{
		Backend: types.BackendMicromamba,
		Tool:    types.ToolLocation{Path: tool},
	}

	_, _, err := GetOrCreate(context.Background(), pctx, req, zap.NewNop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrEnvCreationFailed), "got %v", err)
	assert.Contains(t, err.Error(), "environment.yml")
}

func TestCreateFailureCleansUp(t *testing.T) {
	pctx := testContext(t)
	dir := t.TempDir()
	tool := filepath.Join(dir, "python3")
	script := "#!/bin/sh\nmkdir -p \"$3\"\necho 'boom: no such package' >&2\nexit 3\n"
	require.NoError(t, os.WriteFile(tool, []byte(script), 0o755))

	req := CreateRequest{
		Backend: types.BackendVenv,
		Tool:    types.ToolLocation{Path: tool},
	}
	_, _, err := GetOrCreate(context.Background(), pctx, req, zap.NewNop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrEnvCreationFailed), "got %v", err)
	assert.Contains(t, err.Error(), "boom")

	// No partial environment, no registry record.
	assert.NoDirExists(t, filepath.Join(pctx.ProjectDir, ".venv"))
	_, err = Get(pctx, types.BackendVenv)
	assert.True(t, errors.Is(err, types.ErrEnvNotFound), "got %v", err)
}

func TestGetOrCreateHealsDeletedPrefix(t *testing.T) {
	pctx := testContext(t)
	req, calls := venvRequest(t)

	h, created, err := GetOrCreate(context.Background(), pctx, req, zap.NewNop())
	require.NoError(t, err)
	require.True(t, created)

	require.NoError(t, os.RemoveAll(h.Prefix))

	healed, created, err := GetOrCreate(context.Background(), pctx, req, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, created)
	assert.DirExists(t, healed.Prefix)
	assert.NotEqual(t, h.ID, healed.ID)
	assert.Equal(t, 2, callCount(t, calls))

	// The registry holds one record per backend, not a history.
	all, err := List(pctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestConcurrentGetOrCreate(t *testing.T) {
	pctx := testContext(t)
	tool, calls := fakeTool(t, "python3", 3, "sleep 0.2")
	req := CreateRequest{
		Backend: types.BackendVenv,
		Tool:    types.ToolLocation{Path: tool},
	}

	const workers = 4
	var wg sync.WaitGroup
	createdCount := make(chan bool, workers)
	ids := make(chan string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, created, err := GetOrCreate(context.Background(), pctx, req, zap.NewNop())
			assert.NoError(t, err)
			createdCount <- created
			ids <- h.ID
		}()
	}
	wg.Wait()
	close(createdCount)
	close(ids)

	creators := 0
	for c := range createdCount {
		if c {
			creators++
		}
	}
	assert.Equal(t, 1, creators, "exactly one caller should create")
	assert.Equal(t, 1, callCount(t, calls), "backend tool should run once")

	seen := map[string]bool{}
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, 1, "all callers should share one environment")
}

func TestBackendsCoexist(t *testing.T) {
	pctx := testContext(t)
	require.NoError(t, os.WriteFile(filepath.Join(pctx.ProjectDir, "environment.yml"),
		[]byte("name: test\n"), 0o644))

	venvReq, _ := venvRequest(t)
	mmTool, _ := fakeTool(t, "micromamba", 4, "")
	mmReq := CreateRequest{
		Backend: types.BackendMicromamba,
		Tool:    types.ToolLocation{Path: mmTool},
		Config:  types.ProjectConfig{Micromamba: types.MicromambaConfig{EnvFile: "environment.yml"}},
	}

	_, _, err := GetOrCreate(context.Background(), pctx, venvReq, zap.NewNop())
	require.NoError(t, err)
	_, _, err = GetOrCreate(context.Background(), pctx, mmReq, zap.NewNop())
	require.NoError(t, err)

	venvHandle, err := Get(pctx, types.BackendVenv)
	require.NoError(t, err)
	mmHandle, err := Get(pctx, types.BackendMicromamba)
	require.NoError(t, err)
	assert.NotEqual(t, venvHandle.Prefix, mmHandle.Prefix)

	all, err := List(pctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRemove(t *testing.T) {
	pctx := testContext(t)
	req, _ := venvRequest(t)

	h, _, err := GetOrCreate(context.Background(), pctx, req, zap.NewNop())
	require.NoError(t, err)
	require.DirExists(t, h.Prefix)

	removed, err := Remove(pctx, types.BackendVenv)
	require.NoError(t, err)
	assert.Equal(t, h.ID, removed.ID)
	assert.NoDirExists(t, h.Prefix)

	_, err = Get(pctx, types.BackendVenv)
	assert.True(t, errors.Is(err, types.ErrEnvNotFound), "got %v", err)

	_, err = Remove(pctx, types.BackendVenv)
	assert.True(t, errors.Is(err, types.ErrEnvNotFound), "got %v", err)
}

func TestConfiguredPrefixAndName(t *testing.T) {
	pctx := testContext(t)
	require.NoError(t, os.WriteFile(filepath.Join(pctx.ProjectDir, "environment.yml"),
		[]byte("name: test\n"), 0o644))

	tool, _ := fakeTool(t, "micromamba", 4, "")
	req := CreateRequest{
		Backend: types.BackendMicromamba,
		Tool:    types.ToolLocation{Path: tool},
		Config: types.ProjectConfig{
			Micromamba: types.MicromambaConfig{
				EnvName: "custom-name",
				EnvFile: "environment.yml",
				Prefix:  "envs/main",
			},
		},
	}

	h, _, err := GetOrCreate(context.Background(), pctx, req, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "custom-name", h.Name)
	assert.Equal(t, filepath.Join(pctx.ProjectDir, "envs", "main"), h.Prefix)
}
