// Package config reads and writes the per-project .pyve/config file.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/pyve/internal/paths"
	"github.com/mesh-intelligence/pyve/pkg/types"
)

const configFileType = "yaml"

// Config keys with defaults applied at load time.
const (
	cfgKeyVenvDir  = "venv.directory"
	cfgKeyEnvFile  = "micromamba.env_file"
	cfgKeyChannels = "micromamba.channels"
)

// configHeader is written above the YAML document so a reader opening
// the file by hand knows what owns it.
const configHeader = "# pyve project configuration. Managed by 'pyve init'.\n"

// Exists reports whether the project has a config file. Its presence is
// what makes a project "initialized".
func Exists(ctx paths.Context) bool {
	_, err := os.Stat(ctx.ConfigPath)
	return err == nil
}

// Load reads .pyve/config. A missing file yields a zero config with
// defaults applied and no error; a file that exists but does not parse
// yields ErrConfigMalformed.
func Load(ctx paths.Context) (types.ProjectConfig, error) {
	v := viper.New()
	v.SetConfigFile(ctx.ConfigPath)
	v.SetConfigType(configFileType)
	v.SetDefault(cfgKeyVenvDir, types.DefaultVenvDirectory)
	v.SetDefault(cfgKeyEnvFile, types.DefaultEnvFile)
	v.SetDefault(cfgKeyChannels, types.DefaultChannels())

	var cfg types.ProjectConfig
	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			// Not initialized yet; defaults only.
			if uerr := v.Unmarshal(&cfg); uerr != nil {
				return types.ProjectConfig{}, uerr
			}
			return cfg, nil
		}
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			if uerr := v.Unmarshal(&cfg); uerr != nil {
				return types.ProjectConfig{}, uerr
			}
			return cfg, nil
		}
		return types.ProjectConfig{}, fmt.Errorf("%w: %v", types.ErrConfigMalformed, err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return types.ProjectConfig{}, fmt.Errorf("%w: %v", types.ErrConfigMalformed, err)
	}
	if err := cfg.Validate(); err != nil {
		return types.ProjectConfig{}, err
	}
	return cfg, nil
}

// Save writes the config atomically, creating .pyve if needed.
func Save(ctx paths.Context, cfg types.ProjectConfig) error {
	if err := os.MkdirAll(ctx.PyveDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", ctx.PyveDir, err)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return paths.WriteFileAtomic(ctx.ConfigPath, append([]byte(configHeader), data...), 0o644)
}
