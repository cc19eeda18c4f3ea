package api

// StepStatus is the execution state of a single step within one run
type StepStatus string

const (
	StepPending          StepStatus = "pending"
	StepRunning          StepStatus = "running"
	StepAwaitingApproval StepStatus = "awaiting_approval"
	StepApproved         StepStatus = "approved"
	StepCompleted        StepStatus = "completed"
	StepFailed           StepStatus = "failed"
	StepSkipped          StepStatus = "skipped"
	StepRejected         StepStatus = "rejected"
)

// IsTerminal returns whether the status is a final state for a step
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepCompleted, StepFailed, StepSkipped, StepRejected:
		return true
	default:
		return false
	}
}

// IsFailure returns whether the status causes the run to be unsuccessful
func (s StepStatus) IsFailure() bool {
	return s == StepFailed || s == StepRejected
}
