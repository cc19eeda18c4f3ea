package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kode4food/cadence/internal/capability"
	"github.com/kode4food/cadence/pkg/api"
	"github.com/kode4food/cadence/pkg/log"
)

// run is a single execution of a definition. It is owned by the goroutine
// calling execute and is never shared
type run struct {
	engine    *Engine
	def       *api.WorkflowDefinition
	ctx       Context
	result    *api.WorkflowResult
	approvals ApprovalHandler
	meta      api.Metadata
}

func newRun(
	e *Engine, def *api.WorkflowDefinition, inputs api.Args, opts *Options,
) *run {
	res := api.NewWorkflowResult(def, opts.RunID)
	res.Metadata = opts.Metadata
	for _, step := range def.Steps {
		res.StepOrder = append(res.StepOrder, step.ID)
		res.Steps[step.ID] = &api.StepRecord{
			StepID: step.ID,
			Name:   step.Name,
			Status: api.StepPending,
		}
	}
	return &run{
		engine:    e,
		def:       def,
		ctx:       NewContext(inputs),
		result:    res,
		approvals: opts.Approvals,
		meta:      opts.Metadata,
	}
}

func (r *run) execute(ctx context.Context) *api.WorkflowResult {
	r.start()
	for _, step := range r.def.Steps {
		if err := ctx.Err(); err != nil {
			r.fail(step, api.StepFailed, canceled(err))
			break
		}
		if !r.executeStep(ctx, step) {
			break
		}
	}
	return r.finish()
}

func (r *run) start() {
	r.result.StartedAt = time.Now()
	slog.Info("Workflow run started",
		log.WorkflowID(r.result.WorkflowID),
		log.RunID(r.result.RunID),
		slog.Int("steps", len(r.def.Steps)))
	r.publish(&api.RunEvent{Type: api.EventRunStarted})
}

func (r *run) finish() *api.WorkflowResult {
	res := r.result
	res.CompletedAt = time.Now()
	res.Duration = res.CompletedAt.Sub(res.StartedAt)
	res.Success = res.FailedStep == ""
	for _, rec := range res.Steps {
		if rec.Status.IsFailure() {
			res.Success = false
		}
	}

	if res.Success {
		slog.Info("Workflow run completed",
			log.WorkflowID(res.WorkflowID),
			log.RunID(res.RunID),
			slog.Duration("duration", res.Duration))
	} else {
		slog.Warn("Workflow run failed",
			log.WorkflowID(res.WorkflowID),
			log.RunID(res.RunID),
			log.StepID(res.FailedStep),
			log.ErrorString(res.Error))
	}
	r.publish(&api.RunEvent{Type: api.EventRunFinished, Result: res})
	return res
}

// executeStep runs one step and reports whether the run should continue
func (r *run) executeStep(ctx context.Context, step *api.WorkflowStep) bool {
	rec := r.record(step.ID)
	rec.StartedAt = time.Now()
	r.transition(step.ID, api.StepRunning)

	if !r.shouldRun(step) {
		r.transition(step.ID, api.StepSkipped)
		return true
	}

	if step.Approval.RequiresDecision() {
		if err := r.approve(ctx, step); err != nil {
			r.fail(step, api.StepRejected, err)
			return false
		}
	}

	args := StepArgs(step, r.ctx)
	out, err := r.invoke(ctx, step, args)
	if err != nil {
		if step.FailurePolicy() == api.SkipStep &&
			!errors.Is(err, api.ErrRunCanceled) {
			rec.Error = err.Error()
			slog.Warn("Step failed, skipping",
				log.RunID(r.result.RunID),
				log.StepID(step.ID),
				log.Error(err))
			r.transition(step.ID, api.StepSkipped)
			return true
		}
		r.fail(step, api.StepFailed, err)
		return false
	}

	r.ctx.Record(step.ID, &api.StepOutput{
		Key:   step.OutputName(),
		Value: out,
	})
	r.result.StepResults[step.ID] = out
	r.result.FinalResult = out
	rec.Output = out
	r.transition(step.ID, api.StepCompleted)
	return true
}

// shouldRun evaluates the step's condition. Evaluation errors fail open: the
// step runs and the error is kept as a warning
func (r *run) shouldRun(step *api.WorkflowStep) bool {
	ok, err := Evaluate(step.Condition, r.ctx)
	if err == nil {
		return ok
	}
	rec := r.record(step.ID)
	rec.Warnings = append(rec.Warnings, err.Error())
	r.result.Warnings = append(r.result.Warnings,
		fmt.Sprintf("step %s: %s", step.ID, err.Error()),
	)
	slog.Warn("Condition evaluation failed, running step",
		log.RunID(r.result.RunID),
		log.StepID(step.ID),
		log.Error(err))
	return true
}

func (r *run) approve(ctx context.Context, step *api.WorkflowStep) error {
	gate := step.Approval
	rec := r.record(step.ID)
	rec.Approval = gate
	r.transition(step.ID, api.StepAwaitingApproval)

	req := &api.ApprovalRequest{
		WorkflowID:  r.result.WorkflowID,
		RunID:       r.result.RunID,
		StepID:      step.ID,
		StepName:    step.DisplayName(),
		Gate:        gate,
		RequestedAt: time.Now(),
	}
	r.publish(&api.RunEvent{
		Type:     api.EventApprovalRequested,
		StepID:   step.ID,
		Approval: snapshot(req),
	})

	err := settleGate(gate, r.approvals(ctx, req))
	ev := &api.RunEvent{
		Type:     api.EventApprovalResolved,
		StepID:   step.ID,
		Approval: snapshot(req),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	r.publish(ev)

	if err != nil {
		return err
	}
	r.transition(step.ID, api.StepApproved)
	return nil
}

// settleGate applies the handler's decision to the gate. The returned bool
// is the decision: when the handler agrees, notify and soft gates are
// approved by the system and any approvals still missing from required or
// critical gates are recorded on the handler's behalf
func settleGate(gate *api.ApprovalGate, approved bool) error {
	if !approved || gate.IsRejected() {
		gate.Reject(RejectedByHandler)
		reason := gate.RejectionReason
		if reason == "" {
			reason = RejectedByHandler
		}
		return fmt.Errorf("%w: %s", api.ErrApprovalRejected, reason)
	}

	if level := gate.EffectiveLevel(); level == api.ApprovalNotify ||
		level == api.ApprovalSoft {
		gate.Approve(api.SystemApprover)
	}
	for i := 1; !gate.IsResolved(); i++ {
		gate.Approve(api.ApproverID(fmt.Sprintf(handlerApproverFormat, i)))
	}
	return nil
}

// invoke calls the step's capability, retrying per the step's policy. The
// arguments are resolved once by the caller and reused for every attempt
func (r *run) invoke(
	ctx context.Context, step *api.WorkflowStep, args api.Args,
) (any, error) {
	if step.CapabilityName == "" {
		return args.ToMap(), nil
	}

	rec := r.record(step.ID)
	rec.Capability = step.CapabilityName
	r.result.CapabilitiesUsed = append(
		r.result.CapabilitiesUsed, step.CapabilityName,
	)

	var err error
	attempts := step.Attempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if werr := r.awaitRetry(ctx, step, attempt, err); werr != nil {
				return nil, werr
			}
		}
		rec.Attempts = attempt

		var res any
		var dur time.Duration
		res, dur, err = r.call(ctx, step, args, attempt)
		if err == nil {
			slog.Debug("Capability invoked",
				log.StepID(step.ID),
				log.Capability(step.CapabilityName),
				slog.Int("attempt", attempt),
				slog.Duration("duration", dur))
			return res, nil
		}

		slog.Warn("Capability failed",
			log.RunID(r.result.RunID),
			log.StepID(step.ID),
			log.Capability(step.CapabilityName),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			log.Error(err))
		if cerr := ctx.Err(); cerr != nil {
			return nil, canceled(cerr)
		}
		if errors.Is(err, api.ErrCapabilityNotFound) {
			break
		}
	}
	return nil, err
}

func (r *run) call(
	ctx context.Context, step *api.WorkflowStep, args api.Args, attempt int,
) (any, time.Duration, error) {
	meta := r.meta.Apply(api.Metadata{
		api.MetaWorkflowID: string(r.result.WorkflowID),
		api.MetaRunID:      string(r.result.RunID),
		api.MetaStepID:     string(step.ID),
		api.MetaAttempt:    attempt,
	})
	ctx = capability.WithMetadata(ctx, meta)

	if timeout := r.engine.config.CapabilityTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return r.engine.registry.Invoke(ctx, step.CapabilityName, args.Clone())
}

// awaitRetry waits out the configured backoff before the given attempt.
// Cancellation of the run context ends the wait with api.ErrRunCanceled
func (r *run) awaitRetry(
	ctx context.Context, step *api.WorkflowStep, attempt int, cause error,
) error {
	if err := ctx.Err(); err != nil {
		return canceled(err)
	}
	r.publish(&api.RunEvent{
		Type:    api.EventStepRetrying,
		StepID:  step.ID,
		Attempt: attempt,
		Error:   cause.Error(),
	})

	delay := RetryDelay(r.engine.config.Retry, attempt-2)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return canceled(ctx.Err())
	case <-timer.C:
		return nil
	}
}

func (r *run) fail(step *api.WorkflowStep, status api.StepStatus, err error) {
	rec := r.record(step.ID)
	rec.Error = err.Error()
	r.transition(step.ID, status)
	r.result.FailedStep = step.ID
	r.result.Error = err.Error()
	r.result.Err = err
}

func (r *run) transition(id api.StepID, to api.StepStatus) {
	rec := r.record(id)
	if !StepTransitions.CanTransition(rec.Status, to) {
		slog.Error("Invalid step transition",
			log.RunID(r.result.RunID),
			log.StepID(id),
			slog.String("from", string(rec.Status)),
			slog.String("to", string(to)),
			log.Error(ErrInvalidTransition))
		return
	}
	rec.Status = to
	if StepTransitions.IsTerminal(to) {
		rec.CompletedAt = time.Now()
		if !rec.StartedAt.IsZero() {
			rec.Duration = rec.CompletedAt.Sub(rec.StartedAt)
		}
	}
	r.publish(&api.RunEvent{
		Type:    api.EventStepStatus,
		StepID:  id,
		Status:  to,
		Attempt: rec.Attempts,
		Error:   rec.Error,
	})
}

func (r *run) record(id api.StepID) *api.StepRecord {
	return r.result.Steps[id]
}

func (r *run) publish(ev *api.RunEvent) {
	ev.WorkflowID = r.result.WorkflowID
	ev.RunID = r.result.RunID
	r.engine.publish(ev)
}

func snapshot(req *api.ApprovalRequest) *api.ApprovalRequest {
	res := *req
	res.Gate = req.Gate.Clone()
	return &res
}

func canceled(err error) error {
	return fmt.Errorf("%w: %w", api.ErrRunCanceled, err)
}
