package types

// Config file defaults.
const (
	DefaultVenvDirectory = ".venv"
	DefaultEnvFile       = "environment.yml"
)

// DefaultChannels is the channel list used when the config names none.
func DefaultChannels() []string { return []string{"conda-forge"} }

// ProjectConfig mirrors the .pyve/config file. All fields are optional;
// zero values mean "not configured" and defaults apply downstream.
type ProjectConfig struct {
	PyveVersion string           `yaml:"pyve_version,omitempty" mapstructure:"pyve_version"`
	Backend     string           `yaml:"backend,omitempty" mapstructure:"backend"`
	Python      PythonConfig     `yaml:"python,omitempty" mapstructure:"python"`
	Venv        VenvConfig       `yaml:"venv,omitempty" mapstructure:"venv"`
	Micromamba  MicromambaConfig `yaml:"micromamba,omitempty" mapstructure:"micromamba"`
}

// PythonConfig pins the interpreter version for venv environments.
type PythonConfig struct {
	Version string `yaml:"version,omitempty" mapstructure:"version"`
}

// VenvConfig holds venv-backend parameters.
type VenvConfig struct {
	Directory string `yaml:"directory,omitempty" mapstructure:"directory"`
}

// MicromambaConfig holds conda-family backend parameters.
type MicromambaConfig struct {
	EnvName      string   `yaml:"env_name,omitempty" mapstructure:"env_name"`
	EnvFile      string   `yaml:"env_file,omitempty" mapstructure:"env_file"`
	Channels     []string `yaml:"channels,omitempty" mapstructure:"channels"`
	Prefix       string   `yaml:"prefix,omitempty" mapstructure:"prefix"`
	BootstrapURL string   `yaml:"bootstrap_url,omitempty" mapstructure:"bootstrap_url"`
}

// Validate checks that the config is well-formed. A backend name, when
// present, must be "auto" or a supported backend.
func (c ProjectConfig) Validate() error {
	if c.Backend == "" || c.Backend == BackendAuto {
		return nil
	}
	_, err := ParseBackend(c.Backend)
	return err
}

// BackendSelection reports the configured backend. The second return is
// false when the config defers selection (empty or "auto").
func (c ProjectConfig) BackendSelection() (Backend, bool, error) {
	if c.Backend == "" || c.Backend == BackendAuto {
		return "", false, nil
	}
	b, err := ParseBackend(c.Backend)
	if err != nil {
		return "", false, err
	}
	return b, true, nil
}

// VenvDirectory returns the venv directory name, applying the default.
func (c ProjectConfig) VenvDirectory() string {
	if c.Venv.Directory != "" {
		return c.Venv.Directory
	}
	return DefaultVenvDirectory
}

// EnvFile returns the conda environment file name, applying the default.
func (c ProjectConfig) EnvFile() string {
	if c.Micromamba.EnvFile != "" {
		return c.Micromamba.EnvFile
	}
	return DefaultEnvFile
}
