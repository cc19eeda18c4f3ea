package engine

import (
	"github.com/kode4food/cadence/pkg/api"
	"github.com/kode4food/cadence/pkg/util"
)

// StateTransitions maps states to their set of valid next states
type StateTransitions[T comparable] map[T]util.Set[T]

// StepTransitions defines the forward-only lifecycle of a step within a run
var StepTransitions = StateTransitions[api.StepStatus]{
	api.StepPending: util.SetOf(
		api.StepRunning,
		api.StepFailed,
	),
	api.StepRunning: util.SetOf(
		api.StepSkipped,
		api.StepAwaitingApproval,
		api.StepCompleted,
		api.StepFailed,
	),
	api.StepAwaitingApproval: util.SetOf(
		api.StepApproved,
		api.StepRejected,
	),
	api.StepApproved: util.SetOf(
		api.StepCompleted,
		api.StepFailed,
		api.StepSkipped,
	),
	api.StepCompleted: {},
	api.StepFailed:    {},
	api.StepSkipped:   {},
	api.StepRejected:  {},
}

// CanTransition returns whether transition from one state to another is valid
func (st StateTransitions[T]) CanTransition(from, to T) bool {
	allowed, ok := st[from]
	if !ok {
		return false
	}
	return allowed.Contains(to)
}

// IsTerminal returns true if the state has no valid transitions
func (st StateTransitions[T]) IsTerminal(state T) bool {
	allowed, ok := st[state]
	return ok && allowed.IsEmpty()
}
