package api

import (
	"maps"
	"slices"
	"time"
)

type (
	// StepOutput is the engine-native value recorded in the execution
	// context for each completed step
	StepOutput struct {
		Key   Name `json:"key"`
		Value any  `json:"value"`
	}

	// Fielder is implemented by values that expose named fields to the
	// reference resolver
	Fielder interface {
		Field(name string) (any, bool)
	}

	// StepRecord is the per-run provenance of a single step
	StepRecord struct {
		StepID      StepID        `json:"stepId"`
		Name        string        `json:"name,omitempty"`
		Status      StepStatus    `json:"status"`
		Capability  string        `json:"capability,omitempty"`
		Attempts    int           `json:"attempts,omitempty"`
		Output      any           `json:"output,omitempty"`
		Error       string        `json:"error,omitempty"`
		Warnings    []string      `json:"warnings,omitempty"`
		Approval    *ApprovalGate `json:"approval,omitempty"`
		StartedAt   time.Time     `json:"startedAt"`
		CompletedAt time.Time     `json:"completedAt"`
		Duration    time.Duration `json:"duration"`
	}

	// WorkflowResult is produced once per execution and owned by it
	WorkflowResult struct {
		WorkflowID       WorkflowID             `json:"workflowId"`
		RunID            RunID                  `json:"runId"`
		WorkflowName     string                 `json:"workflowName,omitempty"`
		Success          bool                   `json:"success"`
		FinalResult      any                    `json:"finalResult"`
		StepResults      map[StepID]any         `json:"stepResults"`
		FailedStep       StepID                 `json:"failedStep,omitempty"`
		Error            string                 `json:"error,omitempty"`
		CapabilitiesUsed []string               `json:"capabilitiesUsed"`
		Steps            map[StepID]*StepRecord `json:"steps"`
		StepOrder        []StepID               `json:"stepOrder"`
		Warnings         []string               `json:"warnings,omitempty"`
		Metadata         Metadata               `json:"metadata,omitempty"`
		StartedAt        time.Time              `json:"startedAt"`
		CompletedAt      time.Time              `json:"completedAt"`
		Duration         time.Duration          `json:"duration"`
		Err              error                  `json:"-"`
	}

	// ResultRecord is the flat export form of a WorkflowResult
	ResultRecord struct {
		WorkflowID       WorkflowID     `json:"workflowId"`
		RunID            RunID          `json:"runId"`
		Success          bool           `json:"success"`
		FinalResult      any            `json:"finalResult"`
		StepResults      map[StepID]any `json:"stepResults"`
		FailedStep       StepID         `json:"failedStep,omitempty"`
		Error            string         `json:"error,omitempty"`
		CapabilitiesUsed []string       `json:"capabilitiesUsed"`
		Warnings         []string       `json:"warnings,omitempty"`
		StartedAt        time.Time      `json:"startedAt"`
		CompletedAt      time.Time      `json:"completedAt"`
		DurationMS       int64          `json:"durationMs"`
	}
)

// Field returns the output value when name matches the output key. When the
// value is itself a map, its entries are also addressable by name
func (o *StepOutput) Field(name string) (any, bool) {
	if Name(name) == o.Key {
		return o.Value, true
	}
	switch v := o.Value.(type) {
	case map[string]any:
		res, ok := v[name]
		return res, ok
	case Args:
		res, ok := v[Name(name)]
		return res, ok
	case map[Name]any:
		res, ok := v[Name(name)]
		return res, ok
	default:
		return nil, false
	}
}

// NewWorkflowResult creates an empty result for a run of the definition
func NewWorkflowResult(def *WorkflowDefinition, runID RunID) *WorkflowResult {
	return &WorkflowResult{
		WorkflowID:       def.ID,
		RunID:            runID,
		WorkflowName:     def.Name,
		StepResults:      map[StepID]any{},
		CapabilitiesUsed: []string{},
		Steps:            map[StepID]*StepRecord{},
		StepOrder:        []StepID{},
	}
}

// Field exposes the exported result fields to the reference resolver
func (r *WorkflowResult) Field(name string) (any, bool) {
	switch name {
	case "workflowId":
		return r.WorkflowID, true
	case "runId":
		return r.RunID, true
	case "success":
		return r.Success, true
	case "finalResult":
		return r.FinalResult, true
	case "stepResults":
		res := make(map[string]any, len(r.StepResults))
		for k, v := range r.StepResults {
			res[string(k)] = v
		}
		return res, true
	case "failedStep":
		return string(r.FailedStep), true
	case "error":
		return r.Error, true
	default:
		return nil, false
	}
}

// Record returns the provenance record for a step, or nil
func (r *WorkflowResult) Record(id StepID) *StepRecord {
	return r.Steps[id]
}

// Export flattens the result into a ResultRecord
func (r *WorkflowResult) Export() *ResultRecord {
	return &ResultRecord{
		WorkflowID:       r.WorkflowID,
		RunID:            r.RunID,
		Success:          r.Success,
		FinalResult:      r.FinalResult,
		StepResults:      maps.Clone(r.StepResults),
		FailedStep:       r.FailedStep,
		Error:            r.Error,
		CapabilitiesUsed: slices.Clone(r.CapabilitiesUsed),
		Warnings:         slices.Clone(r.Warnings),
		StartedAt:        r.StartedAt,
		CompletedAt:      r.CompletedAt,
		DurationMS:       r.Duration.Milliseconds(),
	}
}

// IsFinished returns whether the run has completed, successfully or not
func (r *WorkflowResult) IsFinished() bool {
	return !r.CompletedAt.IsZero()
}
