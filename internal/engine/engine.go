package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kode4food/cadence/internal/config"
	"github.com/kode4food/cadence/pkg/api"
)

type (
	// Engine executes workflow definitions. A single Engine may run any
	// number of workflows concurrently, but each run is sequential and owns
	// its own context and result
	Engine struct {
		registry  Invoker
		approvals ApprovalHandler
		events    EventSink
		config    *config.Config
	}

	// Dependencies are the collaborators an Engine is built from. Only the
	// Registry is required
	Dependencies struct {
		Registry  Invoker
		Approvals ApprovalHandler
		Events    EventSink
	}

	// Invoker resolves a capability by name and invokes it, reporting how
	// long the call took
	Invoker interface {
		Invoke(
			ctx context.Context, name string, args api.Args,
		) (any, time.Duration, error)
	}

	// EventSink receives run events in the order they occur
	EventSink interface {
		Publish(*api.RunEvent)
	}

	// Outcome is delivered by ExecuteAsync once a run has finished
	Outcome struct {
		Result *api.WorkflowResult
		Err    error
	}
)

var (
	ErrMissingDependency = errors.New("missing engine dependency")
	ErrInvalidTransition = errors.New("invalid step status transition")
)

// New creates an engine from the provided configuration and dependencies.
// A nil configuration selects the defaults
func New(cfg *config.Config, deps Dependencies) (*Engine, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("%w: registry", ErrMissingDependency)
	}
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	approvals := deps.Approvals
	if approvals == nil {
		approvals = DefaultApprovalHandler
	}
	return &Engine{
		registry:  deps.Registry,
		approvals: approvals,
		events:    deps.Events,
		config:    cfg,
	}, nil
}

// Execute runs the definition to completion against the given inputs. The
// only errors returned are definition errors, raised before any step runs.
// Every other failure is reported in the returned result
func (e *Engine) Execute(
	ctx context.Context, def *api.WorkflowDefinition, inputs api.Args,
	apps ...Applier,
) (*api.WorkflowResult, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: definition is nil", api.ErrDefinition)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	opts := &Options{
		Approvals: e.approvals,
	}
	ApplyOptions(opts, apps...)
	if opts.RunID == "" {
		opts.RunID = api.NewRunID()
	}
	if opts.Approvals == nil {
		opts.Approvals = e.approvals
	}

	return newRun(e, def.Clone(), inputs, opts).execute(ctx), nil
}

// ExecuteAsync runs the definition on its own goroutine. The returned
// channel delivers exactly one Outcome and is then closed
func (e *Engine) ExecuteAsync(
	ctx context.Context, def *api.WorkflowDefinition, inputs api.Args,
	apps ...Applier,
) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		res, err := e.Execute(ctx, def, inputs, apps...)
		ch <- Outcome{Result: res, Err: err}
	}()
	return ch
}

func (e *Engine) publish(ev *api.RunEvent) {
	if e.events == nil {
		return
	}
	ev.Timestamp = time.Now()
	e.events.Publish(ev)
}
