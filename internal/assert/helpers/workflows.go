package helpers

import (
	"github.com/google/uuid"

	"github.com/kode4food/cadence/pkg/api"
)

// NewTestWorkflow creates a definition with a unique ID around the given
// steps
func NewTestWorkflow(steps ...*api.WorkflowStep) *api.WorkflowDefinition {
	return &api.WorkflowDefinition{
		ID:      api.WorkflowID("test-wf-" + uuid.New().String()[:8]),
		Name:    "Test Workflow",
		Version: api.DefaultVersion,
		Steps:   steps,
	}
}

// NewSimpleStep creates a step that invokes the named capability
func NewSimpleStep(id api.StepID, capability string) *api.WorkflowStep {
	return &api.WorkflowStep{
		ID:             id,
		Name:           string(id),
		CapabilityName: capability,
	}
}

// NewPassThroughStep creates a step without a capability whose output is
// its own literal arguments
func NewPassThroughStep(id api.StepID, args api.Args) *api.WorkflowStep {
	return &api.WorkflowStep{
		ID:   id,
		Name: string(id),
		Args: args,
	}
}

// NewStepWithInputs creates a capability step whose arguments are bound
// from references
func NewStepWithInputs(
	id api.StepID, capability string, inputs map[api.Name]string,
) *api.WorkflowStep {
	step := NewSimpleStep(id, capability)
	step.InputFrom = inputs
	return step
}

// NewConditionalStep creates a capability step guarded by a condition
func NewConditionalStep(
	id api.StepID, capability, condition string,
) *api.WorkflowStep {
	step := NewSimpleStep(id, capability)
	step.Condition = condition
	return step
}

// NewGatedStep creates a capability step behind an approval gate
func NewGatedStep(
	id api.StepID, capability string, level api.ApprovalLevel,
) *api.WorkflowStep {
	step := NewSimpleStep(id, capability)
	step.Approval = &api.ApprovalGate{Level: level}
	return step
}
