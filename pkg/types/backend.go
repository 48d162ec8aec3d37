package types

import "fmt"

// Backend identifies an environment backend.
type Backend string

// Supported backend names.
const (
	BackendVenv       Backend = "venv"
	BackendMicromamba Backend = "micromamba"
)

// BackendAuto is the config value that defers backend selection to
// project signals. It is never the result of a resolution.
const BackendAuto = "auto"

// Family groups backends by package-manager lineage. Tools from one
// family must not operate on an environment of the other.
type Family string

// Backend families.
const (
	FamilyPip   Family = "pip"
	FamilyConda Family = "conda"
)

// knownBackends lists the backends that ParseBackend accepts.
var knownBackends = map[Backend]bool{
	BackendVenv:       true,
	BackendMicromamba: true,
}

// ParseBackend maps a user-supplied name to a Backend.
// Returns ErrBackendEmpty for "" and ErrBackendUnknown for names
// outside the supported set. "auto" is not a concrete backend and is
// rejected here; callers handle it before parsing.
func ParseBackend(name string) (Backend, error) {
	if name == "" {
		return "", ErrBackendEmpty
	}
	b := Backend(name)
	if !knownBackends[b] {
		return "", fmt.Errorf("%w: %q", ErrBackendUnknown, name)
	}
	return b, nil
}

// Family returns the package-manager family of the backend.
func (b Backend) Family() Family {
	if b == BackendMicromamba {
		return FamilyConda
	}
	return FamilyPip
}

// String returns the backend name.
func (b Backend) String() string { return string(b) }
