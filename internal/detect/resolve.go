package detect

import (
	"go.uber.org/zap"

	"github.com/mesh-intelligence/pyve/pkg/types"
)

// Resolve picks the backend for a project. flagBackend is the value of
// an explicit --backend flag, empty when absent. The returned trace
// holds every signal considered, in precedence order with the winner
// first, so doctor can replay the decision.
//
// Resolution is pure: equal inputs always produce the same choice.
// An unknown backend name in the flag or config is an error.
func Resolve(flagBackend string, cfg types.ProjectConfig, signals []types.BackendSignal, log *zap.Logger) (types.ResolvedBackend, error) {
	var trace []types.BackendSignal

	if flagBackend != "" {
		b, err := types.ParseBackend(flagBackend)
		if err != nil {
			return types.ResolvedBackend{}, err
		}
		trace = append(trace, types.BackendSignal{Kind: types.SignalFlag, Backend: b})
	}

	if b, ok, err := cfg.BackendSelection(); err != nil {
		return types.ResolvedBackend{}, err
	} else if ok {
		trace = append(trace, types.BackendSignal{Kind: types.SignalConfig, Backend: b})
	}

	var condaSeen, pipSeen bool
	for _, s := range signals {
		switch s.Kind {
		case types.SignalCondaFile:
			condaSeen = true
		case types.SignalPipFile:
			pipSeen = true
		}
	}
	trace = append(trace, signals...)
	trace = append(trace, types.BackendSignal{Kind: types.SignalDefault, Backend: types.BackendVenv})

	winner := trace[0]
	ambiguous := condaSeen && pipSeen
	if ambiguous && winner.Kind == types.SignalCondaFile {
		log.Warn("both conda and pip indicators present; conda family wins",
			zap.String("indicator", winner.Source))
	}

	return types.ResolvedBackend{
		Backend:   winner.Backend,
		Winner:    winner,
		Signals:   trace,
		Ambiguous: ambiguous,
	}, nil
}
