package core

import "time"

// RunStatus tracks an asynchronous simulation request.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is a simulation request recorded for later execution by the worker.
// Debts is the snapshot taken when the request was accepted.
type Run struct {
	ID          string            `json:"id"`
	Status      RunStatus         `json:"status"`
	Strategy    Strategy          `json:"strategy"`
	Debts       []Debt            `json:"debts"`
	Output      *SimulationOutput `json:"output,omitempty"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}

// Done reports whether the run reached a terminal status.
func (r Run) Done() bool {
	return r.Status == RunCompleted || r.Status == RunFailed
}

// Complete stores the output and marks the run completed.
func (r *Run) Complete(out SimulationOutput, at time.Time) {
	r.Status = RunCompleted
	r.Output = &out
	r.Error = ""
	r.CompletedAt = &at
}

// Fail marks the run failed with reason.
func (r *Run) Fail(reason string, at time.Time) {
	r.Status = RunFailed
	r.Output = nil
	r.Error = reason
	r.CompletedAt = &at
}
