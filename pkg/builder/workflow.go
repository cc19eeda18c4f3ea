package builder

import (
	"slices"

	"github.com/kode4food/cadence/pkg/api"
)

// Workflow is an immutable builder for workflow definitions
type Workflow struct {
	id          api.WorkflowID
	name        string
	version     string
	description string
	steps       []*Step
}

// NewWorkflow creates a definition builder with a fresh ID
func NewWorkflow(name string) *Workflow {
	return &Workflow{
		id:      api.NewWorkflowID(),
		name:    name,
		version: api.DefaultVersion,
	}
}

func (w *Workflow) WithID(id api.WorkflowID) *Workflow {
	res := *w
	res.id = id
	return &res
}

func (w *Workflow) WithVersion(version string) *Workflow {
	res := *w
	res.version = version
	return &res
}

func (w *Workflow) WithDescription(desc string) *Workflow {
	res := *w
	res.description = desc
	return &res
}

// Then appends steps in execution order
func (w *Workflow) Then(steps ...*Step) *Workflow {
	res := *w
	res.steps = append(slices.Clone(w.steps), steps...)
	return &res
}

// Build validates and returns the definition
func (w *Workflow) Build() (*api.WorkflowDefinition, error) {
	def := &api.WorkflowDefinition{
		ID:          w.id,
		Name:        w.name,
		Version:     w.version,
		Description: w.description,
		Steps:       make([]*api.WorkflowStep, len(w.steps)),
	}
	for i, s := range w.steps {
		def.Steps[i] = s.build()
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}
