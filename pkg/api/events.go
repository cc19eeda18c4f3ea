package api

import "time"

type (
	// EventType identifies the kind of run event
	EventType string

	// RunEvent describes a change in the state of a run. Events for one run
	// are published in the order they occur
	RunEvent struct {
		Type       EventType        `json:"type"`
		WorkflowID WorkflowID       `json:"workflowId"`
		RunID      RunID            `json:"runId"`
		StepID     StepID           `json:"stepId,omitempty"`
		Status     StepStatus       `json:"status,omitempty"`
		Attempt    int              `json:"attempt,omitempty"`
		Error      string           `json:"error,omitempty"`
		Approval   *ApprovalRequest `json:"approval,omitempty"`
		Result     *WorkflowResult  `json:"result,omitempty"`
		Timestamp  time.Time        `json:"timestamp"`
	}
)

const (
	EventRunStarted        EventType = "run_started"
	EventRunFinished       EventType = "run_finished"
	EventStepStatus        EventType = "step_status"
	EventStepRetrying      EventType = "step_retrying"
	EventApprovalRequested EventType = "approval_requested"
	EventApprovalResolved  EventType = "approval_resolved"
)
