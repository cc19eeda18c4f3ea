package engine

import "github.com/kode4food/cadence/pkg/api"

// Context is the per-run execution context. It holds the run inputs under
// "input" and each completed step's output under the step's ID. Entries are
// only ever added
type Context map[string]any

// NewContext creates an execution context seeded with the run inputs
func NewContext(inputs api.Args) Context {
	if inputs == nil {
		inputs = api.Args{}
	}
	return Context{
		api.InputKey: inputs.Clone(),
	}
}

// Record stores a step's output. A step that has already recorded an output
// is left untouched. Returns whether the output was recorded
func (c Context) Record(id api.StepID, out *api.StepOutput) bool {
	if _, ok := c[string(id)]; ok {
		return false
	}
	c[string(id)] = out
	return true
}

// Inputs returns the run inputs held by the context
func (c Context) Inputs() api.Args {
	res, _ := c[api.InputKey].(api.Args)
	return res
}
