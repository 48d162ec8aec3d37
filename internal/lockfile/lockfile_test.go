package lockfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pyve/pkg/types"
)

// writeAt creates a file and pins its mtime so ordering is explicit.
func writeAt(t *testing.T, dir, name string, mtime time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestCheck(t *testing.T) {
	base := time.Now().Add(-time.Hour)

	t.Run("no spec files yields no verdicts", func(t *testing.T) {
		assert.Empty(t, Check(t.TempDir()))
	})

	t.Run("spec without lock is in sync", func(t *testing.T) {
		dir := t.TempDir()
		writeAt(t, dir, "environment.yml", base)

		states := Check(dir)
		require.Len(t, states, 1)
		assert.True(t, states[0].InSync)
		assert.Equal(t, types.LockNoLockFile, states[0].Reason)
		assert.Empty(t, states[0].LockFile)
	})

	t.Run("lock newer than spec is in sync", func(t *testing.T) {
		dir := t.TempDir()
		writeAt(t, dir, "environment.yml", base)
		writeAt(t, dir, "conda-lock.yml", base.Add(time.Minute))

		states := Check(dir)
		require.Len(t, states, 1)
		assert.True(t, states[0].InSync)
		assert.Equal(t, types.LockInSync, states[0].Reason)
		assert.Equal(t, "conda-lock.yml", states[0].LockFile)
	})

	t.Run("spec newer than lock is stale", func(t *testing.T) {
		dir := t.TempDir()
		writeAt(t, dir, "pyproject.toml", base.Add(time.Minute))
		writeAt(t, dir, "poetry.lock", base)

		states := Check(dir)
		require.Len(t, states, 1)
		assert.False(t, states[0].InSync)
		assert.Equal(t, types.LockStale, states[0].Reason)
		assert.Equal(t, "poetry.lock", states[0].LockFile)
	})

	t.Run("equal mtimes are in sync", func(t *testing.T) {
		dir := t.TempDir()
		writeAt(t, dir, "requirements.in", base)
		writeAt(t, dir, "requirements.txt", base)

		states := Check(dir)
		require.Len(t, states, 1)
		assert.True(t, states[0].InSync)
	})

	t.Run("first present lock file wins", func(t *testing.T) {
		dir := t.TempDir()
		writeAt(t, dir, "pyproject.toml", base)
		writeAt(t, dir, "uv.lock", base.Add(time.Minute))

		states := Check(dir)
		require.Len(t, states, 1)
		assert.Equal(t, "uv.lock", states[0].LockFile)
	})

	t.Run("multiple pairs each get a verdict", func(t *testing.T) {
		dir := t.TempDir()
		writeAt(t, dir, "environment.yml", base.Add(time.Minute))
		writeAt(t, dir, "conda-lock.yml", base)
		writeAt(t, dir, "Pipfile", base)
		writeAt(t, dir, "Pipfile.lock", base.Add(time.Minute))

		states := Check(dir)
		require.Len(t, states, 2)
		stale := Stale(states)
		require.Len(t, stale, 1)
		assert.Equal(t, "environment.yml", stale[0].SpecFile)
	})
}
