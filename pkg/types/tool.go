package types

// ToolOrigin identifies which step of a resolution chain produced a
// tool path.
type ToolOrigin string

// Tool origins, in the order the resolution chains probe them.
const (
	OriginProjectSandbox ToolOrigin = "project-sandbox"
	OriginUserSandbox    ToolOrigin = "user-sandbox"
	OriginPyenv          ToolOrigin = "pyenv"
	OriginAsdf           ToolOrigin = "asdf"
	OriginSystemPath     ToolOrigin = "system"
)

// ToolLocation is a resolved executable together with where the chain
// found it. Version is filled only by explicit probes.
type ToolLocation struct {
	Path    string
	Origin  ToolOrigin
	Version string
}

// SandboxTarget selects where a bootstrapped binary is installed.
type SandboxTarget string

// Sandbox targets.
const (
	SandboxProject SandboxTarget = "project"
	SandboxUser    SandboxTarget = "user"
)
