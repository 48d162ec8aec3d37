package types

import "errors"

// Backend selection errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
)

// Environment lifecycle errors.
var (
	ErrNotInitialized    = errors.New("project is not initialized")
	ErrEnvNotFound       = errors.New("environment not found")
	ErrEnvCreationFailed = errors.New("environment creation failed")
)

// ErrConfigMalformed is returned when .pyve/config exists but cannot
// be parsed.
var ErrConfigMalformed = errors.New("config file is malformed")

// Tool resolution and acquisition errors.
var (
	ErrToolNotFound      = errors.New("required tool not found")
	ErrBootstrapFailed   = errors.New("bootstrap failed")
	ErrBootstrapDeclined = errors.New("bootstrap declined")
	ErrPlatformUnknown   = errors.New("no standalone build for this platform")
)

// ErrFamilyIsolation is returned when a command from one backend family
// would run against an environment of the other family.
var ErrFamilyIsolation = errors.New("tool and environment belong to different backend families")
