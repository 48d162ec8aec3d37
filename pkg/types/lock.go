package types

import "fmt"

// LockReason explains a lock-file staleness verdict.
type LockReason string

// Lock verdicts.
const (
	LockInSync     LockReason = "in-sync"
	LockStale      LockReason = "stale"
	LockNoLockFile LockReason = "no-lock-required"
)

// LockState is the staleness verdict for one spec/lock file pair.
// The check is advisory; commands report it and proceed.
type LockState struct {
	SpecFile string
	LockFile string // empty when no lock file participates
	InSync   bool
	Reason   LockReason
}

// Message renders the verdict for warnings and doctor output.
func (s LockState) Message() string {
	switch s.Reason {
	case LockStale:
		return fmt.Sprintf("%s is newer than %s; the lock file may be stale", s.SpecFile, s.LockFile)
	case LockNoLockFile:
		return fmt.Sprintf("%s has no lock file", s.SpecFile)
	default:
		return fmt.Sprintf("%s is in sync with %s", s.LockFile, s.SpecFile)
	}
}
