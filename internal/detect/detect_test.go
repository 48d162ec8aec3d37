package detect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pyve/pkg/types"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x\n"), 0o644))
	}
}

func TestScan(t *testing.T) {
	t.Run("empty project yields no signals", func(t *testing.T) {
		assert.Empty(t, Scan(t.TempDir()))
	})

	t.Run("pip indicators collapse to one signal", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "requirements.txt", "requirements-dev.txt", "pyproject.toml")

		signals := Scan(dir)
		require.Len(t, signals, 1)
		assert.Equal(t, types.SignalPipFile, signals[0].Kind)
		assert.Equal(t, types.BackendVenv, signals[0].Backend)
		assert.Equal(t, "requirements.txt", signals[0].Source)
	})

	t.Run("lower-ranked pip file carries when alone", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "pyproject.toml")

		signals := Scan(dir)
		require.Len(t, signals, 1)
		assert.Equal(t, "pyproject.toml", signals[0].Source)
	})

	t.Run("conda lock file alone indicates conda", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "conda-lock.yml")

		signals := Scan(dir)
		require.Len(t, signals, 1)
		assert.Equal(t, types.SignalCondaFile, signals[0].Kind)
		assert.Equal(t, "conda-lock.yml", signals[0].Source)
	})

	t.Run("conda indicators come first", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "requirements.txt", "environment.yml")

		signals := Scan(dir)
		require.Len(t, signals, 2)
		assert.Equal(t, types.SignalCondaFile, signals[0].Kind)
		assert.Equal(t, "environment.yml", signals[0].Source)
		assert.Equal(t, types.SignalPipFile, signals[1].Kind)
	})

	t.Run("directories are not indicators", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(dir, "requirements.txt"), 0o755))

		assert.Empty(t, Scan(dir))
	})

	t.Run("nested files are ignored", func(t *testing.T) {
		dir := t.TempDir()
		sub := filepath.Join(dir, "sub")
		require.NoError(t, os.Mkdir(sub, 0o755))
		touch(t, sub, "environment.yml")

		assert.Empty(t, Scan(dir))
	})
}
