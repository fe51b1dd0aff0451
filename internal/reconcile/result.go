package reconcile

import "fmt"

// Outcome is how a tick ended.
type Outcome string

const (
	// OutcomeCompleted means the tick ran to the end. Count may be zero.
	OutcomeCompleted Outcome = "completed"
	// OutcomeAborted means configuration was missing or the commit failed.
	// Nothing was persisted.
	OutcomeAborted Outcome = "aborted"
)

// Result summarizes one tick.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Count   int     `json:"count"`
	RunID   string  `json:"run_id"`
}

func completed(runID string, n int) Result {
	return Result{Outcome: OutcomeCompleted, Count: n, RunID: runID}
}

func aborted(runID string) Result {
	return Result{Outcome: OutcomeAborted, RunID: runID}
}

func (r Result) String() string {
	return fmt.Sprintf("%s(%d)", r.Outcome, r.Count)
}
