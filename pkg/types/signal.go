package types

import "fmt"

// SignalKind classifies where a backend preference came from. Kinds are
// listed here in precedence order, strongest first.
type SignalKind string

// Signal kinds.
const (
	SignalFlag      SignalKind = "flag"
	SignalConfig    SignalKind = "config"
	SignalCondaFile SignalKind = "conda-file"
	SignalPipFile   SignalKind = "pip-file"
	SignalDefault   SignalKind = "default"
)

// BackendSignal is one observed backend preference: an explicit flag, a
// configured backend, or an indicator file found in the project.
type BackendSignal struct {
	Kind    SignalKind
	Backend Backend
	Source  string // file path for indicator signals, empty otherwise
}

// String renders the signal for logs and reports.
func (s BackendSignal) String() string {
	if s.Source != "" {
		return fmt.Sprintf("%s(%s) -> %s", s.Kind, s.Source, s.Backend)
	}
	return fmt.Sprintf("%s -> %s", s.Kind, s.Backend)
}

// ResolvedBackend is the outcome of backend resolution: the chosen
// backend, the signal that decided it, and every signal examined.
type ResolvedBackend struct {
	Backend   Backend
	Winner    BackendSignal
	Signals   []BackendSignal // precedence order, winner first
	Ambiguous bool            // both conda and pip indicators present
}

// Provenance describes why the backend was chosen, for logs and doctor
// output.
func (r ResolvedBackend) Provenance() string {
	switch r.Winner.Kind {
	case SignalFlag:
		return "explicit --backend flag"
	case SignalConfig:
		return "backend recorded in .pyve/config"
	case SignalCondaFile, SignalPipFile:
		return fmt.Sprintf("detected %s", r.Winner.Source)
	default:
		return "default"
	}
}
