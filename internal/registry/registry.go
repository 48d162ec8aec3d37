// Package registry owns the per-project environment records in
// .pyve/registry and the create/reuse/remove lifecycle around them.
//
// Creation is guarded by an advisory file lock per (project, backend)
// so concurrent invocations settle on one environment: the loser of
// the race waits, re-reads the registry, and reuses the winner's
// record. A record is written only after the backend tool finishes
// successfully; failed or interrupted creation removes the partial
// environment directory and leaves the registry untouched.
package registry

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/pyve/internal/paths"
	"github.com/mesh-intelligence/pyve/pkg/types"
)

// lockRetryDelay is the poll interval while waiting on another
// process's creation lock.
const lockRetryDelay = 100 * time.Millisecond

// registryFile is the on-disk document.
type registryFile struct {
	Environments []types.EnvironmentHandle `yaml:"environments"`
}

// CreateRequest carries everything needed to materialize an
// environment when no usable record exists.
type CreateRequest struct {
	Backend types.Backend
	Tool    types.ToolLocation
	Config  types.ProjectConfig
	Python  string // interpreter pin recorded on the handle, may be empty
}

// Prefix returns the environment directory for a backend under the
// project's configuration.
func Prefix(pctx paths.Context, backend types.Backend, cfg types.ProjectConfig) string {
	if backend == types.BackendMicromamba {
		if cfg.Micromamba.Prefix != "" {
			return pctx.Resolve(cfg.Micromamba.Prefix)
		}
		return pctx.DefaultEnvPrefix()
	}
	return pctx.Resolve(cfg.VenvDirectory())
}

// EnvName returns the environment name recorded on new handles: the
// configured name when one is set, otherwise the project-derived name.
func EnvName(pctx paths.Context, backend types.Backend, cfg types.ProjectConfig) string {
	if backend == types.BackendMicromamba && cfg.Micromamba.EnvName != "" {
		return cfg.Micromamba.EnvName
	}
	return pctx.EnvName()
}

// Get returns the recorded environment for a backend.
// Returns ErrEnvNotFound when no record exists; the caller decides
// whether that means "run init" or "create now".
func Get(pctx paths.Context, backend types.Backend) (types.EnvironmentHandle, error) {
	f, err := load(pctx.RegistryPath)
	if err != nil {
		return types.EnvironmentHandle{}, err
	}
	for _, h := range f.Environments {
		if h.Backend == backend {
			return h, nil
		}
	}
	return types.EnvironmentHandle{}, fmt.Errorf("%w: backend %s", types.ErrEnvNotFound, backend)
}

// List returns every recorded environment for the project.
func List(pctx paths.Context) ([]types.EnvironmentHandle, error) {
	f, err := load(pctx.RegistryPath)
	if err != nil {
		return nil, err
	}
	return f.Environments, nil
}

// Intact reports whether the environment directory behind a handle
// still exists.
func Intact(h types.EnvironmentHandle) bool {
	info, err := os.Stat(h.Prefix)
	return err == nil && info.IsDir()
}

// GetOrCreate returns the environment for req.Backend, creating it
// when no intact record exists. The second return reports whether this
// call created the environment. Repeated calls converge on the same
// handle without re-running the backend tool.
func GetOrCreate(ctx context.Context, pctx paths.Context, req CreateRequest, log *zap.Logger) (types.EnvironmentHandle, bool, error) {
	if h, err := Get(pctx, req.Backend); err == nil && Intact(h) {
		return h, false, nil
	}

	if err := os.MkdirAll(pctx.LockDir, 0o755); err != nil {
		return types.EnvironmentHandle{}, false, fmt.Errorf("create lock dir: %w", err)
	}
	fl := flock.New(pctx.LockPath(string(req.Backend)))
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return types.EnvironmentHandle{}, false, fmt.Errorf("acquire creation lock: %w", err)
	}
	if !locked {
		return types.EnvironmentHandle{}, false, fmt.Errorf("acquire creation lock: not granted")
	}
	defer fl.Unlock()

	// Another process may have created the environment while this one
	// waited on the lock.
	if h, err := Get(pctx, req.Backend); err == nil && Intact(h) {
		return h, false, nil
	}

	h, err := create(ctx, pctx, req, log)
	if err != nil {
		return types.EnvironmentHandle{}, false, err
	}
	if err := record(pctx, h); err != nil {
		return types.EnvironmentHandle{}, false, err
	}
	return h, true, nil
}

// Remove deletes the environment directory and its registry record.
func Remove(pctx paths.Context, backend types.Backend) (types.EnvironmentHandle, error) {
	f, err := load(pctx.RegistryPath)
	if err != nil {
		return types.EnvironmentHandle{}, err
	}

	idx := -1
	for i, h := range f.Environments {
		if h.Backend == backend {
			idx = i
			break
		}
	}
	if idx < 0 {
		return types.EnvironmentHandle{}, fmt.Errorf("%w: backend %s", types.ErrEnvNotFound, backend)
	}

	removed := f.Environments[idx]
	if err := os.RemoveAll(removed.Prefix); err != nil {
		return types.EnvironmentHandle{}, fmt.Errorf("remove %s: %w", removed.Prefix, err)
	}

	f.Environments = append(f.Environments[:idx], f.Environments[idx+1:]...)
	if err := save(pctx, f); err != nil {
		return types.EnvironmentHandle{}, err
	}
	return removed, nil
}

func create(ctx context.Context, pctx paths.Context, req CreateRequest, log *zap.Logger) (types.EnvironmentHandle, error) {
	prefix := Prefix(pctx, req.Backend, req.Config)
	existedBefore := dirExists(prefix)

	cmd, err := createCommand(ctx, pctx, req, prefix)
	if err != nil {
		return types.EnvironmentHandle{}, err
	}
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	log.Info("creating environment",
		zap.String("backend", string(req.Backend)),
		zap.String("prefix", prefix),
		zap.String("tool", req.Tool.Path))

	if err := cmd.Run(); err != nil {
		if !existedBefore {
			os.RemoveAll(prefix)
		}
		return types.EnvironmentHandle{}, fmt.Errorf("%w: %s: %v: %s",
			types.ErrEnvCreationFailed, req.Backend, err, tail(output.String()))
	}

	now := time.Now().UTC()
	return types.EnvironmentHandle{
		ID:        newID(),
		Name:      EnvName(pctx, req.Backend, req.Config),
		Backend:   req.Backend,
		Prefix:    prefix,
		Python:    req.Python,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// createCommand builds the backend tool invocation that materializes
// the environment directory.
func createCommand(ctx context.Context, pctx paths.Context, req CreateRequest, prefix string) (*exec.Cmd, error) {
	switch req.Backend {
	case types.BackendMicromamba:
		envFile := pctx.Resolve(req.Config.EnvFile())
		if _, err := os.Stat(envFile); err != nil {
			return nil, fmt.Errorf("%w: environment file %s not found",
				types.ErrEnvCreationFailed, req.Config.EnvFile())
		}
		args := []string{"create", "--yes", "--prefix", prefix, "--file", envFile}
		for _, ch := range req.Config.Micromamba.Channels {
			args = append(args, "--channel", ch)
		}
		cmd := exec.CommandContext(ctx, req.Tool.Path, args...)
		cmd.Dir = pctx.ProjectDir
		cmd.Env = append(os.Environ(), "MAMBA_ROOT_PREFIX="+pctx.UserDir)
		return cmd, nil
	default:
		cmd := exec.CommandContext(ctx, req.Tool.Path, "-m", "venv", prefix)
		cmd.Dir = pctx.ProjectDir
		return cmd, nil
	}
}

func record(pctx paths.Context, h types.EnvironmentHandle) error {
	f, err := load(pctx.RegistryPath)
	if err != nil {
		return err
	}
	replaced := false
	for i := range f.Environments {
		if f.Environments[i].Backend == h.Backend {
			f.Environments[i] = h
			replaced = true
			break
		}
	}
	if !replaced {
		f.Environments = append(f.Environments, h)
	}
	return save(pctx, f)
}

func load(path string) (registryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return registryFile{}, nil
		}
		return registryFile{}, fmt.Errorf("read registry: %w", err)
	}
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return registryFile{}, fmt.Errorf("parse registry: %w", err)
	}
	return f, nil
}

func save(pctx paths.Context, f registryFile) error {
	if err := os.MkdirAll(pctx.PyveDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", pctx.PyveDir, err)
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	return paths.WriteFileAtomic(pctx.RegistryPath, data, 0o644)
}

// newID generates a UUID v7 identifier, falling back to v4 when the
// clock source fails.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// tail bounds tool output embedded in errors to its last lines.
func tail(s string) string {
	s = strings.TrimSpace(s)
	const maxLen = 500
	if len(s) > maxLen {
		s = "..." + s[len(s)-maxLen:]
	}
	return s
}
