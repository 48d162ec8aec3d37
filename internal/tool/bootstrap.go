package tool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/pyve/internal/paths"
	"github.com/mesh-intelligence/pyve/pkg/types"
)

// DefaultBootstrapURL is the release root for micromamba standalone
// builds.
const DefaultBootstrapURL = "https://github.com/mamba-org/micromamba-releases/releases"

// BootstrapOptions tune where and what Bootstrap installs.
type BootstrapOptions struct {
	Target  types.SandboxTarget // install destination; default project sandbox
	Version string              // release tag; empty means latest
	BaseURL string              // release root override, for mirrors and tests
	Client  *http.Client        // nil means http.DefaultClient
}

// Bootstrap downloads the micromamba standalone binary into the chosen
// sandbox and returns its location. The download lands in a temp file
// next to the destination and is renamed into place only when complete,
// so a failed or interrupted bootstrap leaves no half-written binary.
func Bootstrap(ctx context.Context, pctx paths.Context, opts BootstrapOptions, log *zap.Logger) (types.ToolLocation, error) {
	asset, err := standaloneAsset(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return types.ToolLocation{}, err
	}

	destDir, origin := pctx.SandboxBin, types.OriginProjectSandbox
	if opts.Target == types.SandboxUser {
		destDir, origin = pctx.UserSandboxBin, types.OriginUserSandbox
	}
	url := assetURL(opts.BaseURL, opts.Version, asset)

	log.Info("bootstrapping micromamba",
		zap.String("url", url),
		zap.String("dest", destDir))

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return types.ToolLocation{}, fmt.Errorf("%w: create sandbox: %v", types.ErrBootstrapFailed, err)
	}

	final := filepath.Join(destDir, exeName(MicromambaName))
	if err := download(ctx, opts.Client, url, final); err != nil {
		return types.ToolLocation{}, err
	}

	log.Info("micromamba installed", zap.String("path", final))
	return types.ToolLocation{Path: final, Origin: origin}, nil
}

// standaloneAsset maps the build platform to the release asset name.
func standaloneAsset(goos, goarch string) (string, error) {
	switch goos + "/" + goarch {
	case "linux/amd64":
		return "micromamba-linux-64", nil
	case "linux/arm64":
		return "micromamba-linux-aarch64", nil
	case "linux/ppc64le":
		return "micromamba-linux-ppc64le", nil
	case "darwin/amd64":
		return "micromamba-osx-64", nil
	case "darwin/arm64":
		return "micromamba-osx-arm64", nil
	case "windows/amd64":
		return "micromamba-win-64.exe", nil
	default:
		return "", fmt.Errorf("%w: %s/%s", types.ErrPlatformUnknown, goos, goarch)
	}
}

func assetURL(baseURL, version, asset string) string {
	if baseURL == "" {
		baseURL = DefaultBootstrapURL
	}
	if version == "" || version == "latest" {
		return fmt.Sprintf("%s/latest/download/%s", baseURL, asset)
	}
	return fmt.Sprintf("%s/download/%s/%s", baseURL, version, asset)
}

// download fetches url into final via a temp file in the same
// directory. The temp file is removed on any failure.
func download(ctx context.Context, client *http.Client, url, final string) (err error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrBootstrapFailed, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: download %s: %v", types.ErrBootstrapFailed, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: download %s: %s", types.ErrBootstrapFailed, url, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(final), filepath.Base(final)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrBootstrapFailed, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, resp.Body); err != nil {
		return fmt.Errorf("%w: download %s: %v", types.ErrBootstrapFailed, url, err)
	}
	if err = tmp.Chmod(0o755); err != nil {
		return fmt.Errorf("%w: %v", types.ErrBootstrapFailed, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrBootstrapFailed, err)
	}
	if err = os.Rename(tmp.Name(), final); err != nil {
		return fmt.Errorf("%w: %v", types.ErrBootstrapFailed, err)
	}
	return nil
}
