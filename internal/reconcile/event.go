package reconcile

import (
	"time"

	"github.com/systmms/vaultops/internal/resource"
)

// Phase marks the lifecycle point an event reports.
type Phase string

const (
	PhaseStarted   Phase = "started"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// Action is the write decision computed for a resource after fetching its
// remote state.
type Action string

const (
	ActionCreate     Action = "creating"
	ActionUpdate     Action = "updating"
	ActionVerify     Action = "verifying"
	ActionRegenerate Action = "regenerating"
)

// Event is one progress notification. The reconciler emits at most one
// started and exactly one terminal (succeeded/failed) event per resource.
type Event struct {
	Identity resource.Identity
	Kind     resource.Kind
	Phase    Phase
	Action   Action
	Cause    error // set on failed events
}

// Result is the terminal outcome for one resource.
type Result struct {
	Identity resource.Identity
	Action   Action
	Err      error
}

// Failed reports whether the resource ended in a failed state.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Summary describes a completed apply run.
type Summary struct {
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	Elapsed   time.Duration
	Results   map[resource.Identity]Result
}

// OK reports whether every resource reached Succeeded.
func (s *Summary) OK() bool {
	return s.Failed == 0
}
