package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/cadence/internal/capability"
	"github.com/kode4food/cadence/internal/config"
	"github.com/kode4food/cadence/internal/engine"
	"github.com/kode4food/cadence/pkg/api"
	"github.com/kode4food/cadence/pkg/builder"
)

type recordingSink struct {
	events []*api.RunEvent
	mu     sync.Mutex
}

var (
	errFlaky      = errors.New("flaky")
	errNotNumeric = errors.New("x is not numeric")
)

func (s *recordingSink) Publish(ev *api.RunEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) types() []api.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]api.EventType, len(s.events))
	for i, ev := range s.events {
		res[i] = ev.Type
	}
	return res
}

func newRegistry(t *testing.T) *capability.Registry {
	t.Helper()
	r := capability.NewRegistry()
	capability.RegisterBuiltins(r)
	require.NoError(t, r.RegisterFunc("double",
		func(_ context.Context, args api.Args) (any, error) {
			x, ok := api.ToFloat(args["x"])
			if !ok {
				return nil, fmt.Errorf("%w: %v", errNotNumeric, args["x"])
			}
			return int(x) * 2, nil
		},
	))
	return r
}

func newEngine(
	t *testing.T, r *capability.Registry, deps ...func(*engine.Dependencies),
) *engine.Engine {
	t.Helper()
	d := engine.Dependencies{Registry: r}
	for _, fn := range deps {
		fn(&d)
	}
	cfg := config.NewDefaultConfig()
	cfg.CapabilityTimeout = time.Second
	eng, err := engine.New(cfg, d)
	require.NoError(t, err)
	return eng
}

func buildWorkflow(
	t *testing.T, steps ...*builder.Step,
) *api.WorkflowDefinition {
	t.Helper()
	def, err := builder.NewWorkflow("test").Then(steps...).Build()
	require.NoError(t, err)
	return def
}

func execute(
	t *testing.T, eng *engine.Engine, def *api.WorkflowDefinition,
	apps ...engine.Applier,
) *api.WorkflowResult {
	t.Helper()
	res, err := eng.Execute(context.Background(), def, nil, apps...)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func counter(
	calls *atomic.Int32, fn func(n int32) (any, error),
) func(context.Context, api.Args) (any, error) {
	return func(context.Context, api.Args) (any, error) {
		return fn(calls.Add(1))
	}
}

func TestNewMissingDependency(t *testing.T) {
	eng, err := engine.New(nil, engine.Dependencies{})
	assert.Nil(t, eng)
	assert.ErrorIs(t, err, engine.ErrMissingDependency)

	eng, err = engine.New(nil, engine.Dependencies{
		Registry: capability.NewRegistry(),
	})
	require.NoError(t, err)
	assert.NotNil(t, eng)
}

func TestExecuteDefinitionError(t *testing.T) {
	eng := newEngine(t, newRegistry(t))
	def := &api.WorkflowDefinition{
		ID: "dup",
		Steps: []*api.WorkflowStep{
			{ID: "a", CapabilityName: "noop"},
			{ID: "a", CapabilityName: "noop"},
		},
	}

	res, err := eng.Execute(context.Background(), def, nil)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, api.ErrDefinition)
	assert.ErrorIs(t, err, api.ErrDuplicateStepID)

	res, err = eng.Execute(context.Background(), nil, nil)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, api.ErrDefinition)
}

func TestScenarioOutputWiring(t *testing.T) {
	for _, ref := range []string{"$load.result.x", "$load.x"} {
		t.Run(ref, func(t *testing.T) {
			eng := newEngine(t, newRegistry(t))
			def := buildWorkflow(t,
				builder.NewStep("load").WithCapability("noop").WithArg("x", 1),
				builder.NewStep("double").
					WithCapability("double").
					WithInput("x", ref),
			)

			res := execute(t, eng, def)
			assert.True(t, res.Success)
			assert.Empty(t, res.FailedStep)
			assert.Equal(t, map[api.StepID]any{
				"load":   map[string]any{"x": 1},
				"double": 2,
			}, res.StepResults)
			assert.Equal(t, 2, res.FinalResult)
			assert.Equal(t, []string{"noop", "double"}, res.CapabilitiesUsed)
			assert.Equal(t, []api.StepID{"load", "double"}, res.StepOrder)
			assert.Equal(t,
				api.StepCompleted, res.Record("double").Status,
			)
		})
	}
}

func TestScenarioWholeOutputReference(t *testing.T) {
	// $load.result names the whole output map, not its x entry
	eng := newEngine(t, newRegistry(t))
	def := buildWorkflow(t,
		builder.NewStep("load").WithCapability("noop").WithArg("x", 1),
		builder.NewStep("double").
			WithCapability("double").
			WithInput("x", "$load.result"),
	)

	res := execute(t, eng, def)
	assert.False(t, res.Success)
	assert.Equal(t, api.StepID("double"), res.FailedStep)
	assert.ErrorIs(t, res.Err, api.ErrCapabilityExecution)
	assert.ErrorIs(t, res.Err, errNotNumeric)
	assert.Equal(t, api.StepFailed, res.Record("double").Status)
	assert.Equal(t,
		map[api.StepID]any{"load": map[string]any{"x": 1}}, res.StepResults,
	)
}

func TestScenarioConditionSkip(t *testing.T) {
	eng := newEngine(t, newRegistry(t))
	def := buildWorkflow(t,
		builder.NewStep("load").WithCapability("noop").WithArg("x", 1),
		builder.NewStep("double").
			WithCapability("double").
			WithInput("x", "$load.x").
			WithCondition("$load.x > 5"),
	)

	res := execute(t, eng, def)
	assert.True(t, res.Success)
	assert.Equal(t, api.StepSkipped, res.Record("double").Status)
	assert.Equal(t, res.StepResults["load"], res.FinalResult)
	assert.Equal(t, map[string]any{"x": 1}, res.FinalResult)
	assert.NotContains(t, res.StepResults, api.StepID("double"))
	assert.Equal(t, []string{"noop"}, res.CapabilitiesUsed)
}

func TestSkipIsolation(t *testing.T) {
	eng := newEngine(t, newRegistry(t))
	def := buildWorkflow(t,
		builder.NewStep("first").
			WithCapability("echo").
			WithArg("value", "hello").
			WithCondition("false"),
		builder.NewStep("second").
			WithCapability("noop").
			WithArg("kept", "$input.flag").
			WithArg("gone", "$first.result").
			WithCondition("$first.result == None"),
	)

	res, err := eng.Execute(context.Background(), def, api.Args{"flag": true})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, api.StepSkipped, res.Record("first").Status)
	assert.Equal(t, api.StepCompleted, res.Record("second").Status)
	assert.Equal(t, map[string]any{"kept": true}, res.FinalResult)
	assert.NotContains(t, res.StepResults, api.StepID("first"))
}

func TestContextMonotonicity(t *testing.T) {
	r := newRegistry(t)
	require.NoError(t, r.RegisterFunc("visible",
		func(_ context.Context, args api.Args) (any, error) {
			return len(args), nil
		},
	))
	eng := newEngine(t, r)

	var steps []*builder.Step
	for i := 1; i <= 5; i++ {
		s := builder.NewStep(fmt.Sprintf("s%d", i)).WithCapability("visible")
		for j := 1; j <= 5; j++ {
			s = s.WithArg(api.Name(fmt.Sprintf("a%d", j)),
				fmt.Sprintf("$s%d", j),
			)
		}
		if i == 3 {
			s = s.WithCondition("false")
		}
		steps = append(steps, s)
	}

	res := execute(t, eng, buildWorkflow(t, steps...))
	require.True(t, res.Success)

	var seen []int
	for _, id := range res.StepOrder {
		if out, ok := res.StepResults[id]; ok {
			seen = append(seen, out.(int))
		}
	}
	assert.Equal(t, []int{0, 1, 2, 3}, seen)
	assert.IsNonDecreasing(t, seen)
	assert.Len(t, res.StepResults, 4)
}

func TestRetryBound(t *testing.T) {
	for _, maxRetries := range []int{0, 1, 3} {
		t.Run(fmt.Sprint(maxRetries), func(t *testing.T) {
			var calls atomic.Int32
			r := newRegistry(t)
			require.NoError(t, r.RegisterFunc("flaky",
				counter(&calls, func(int32) (any, error) {
					return nil, errFlaky
				}),
			))
			eng := newEngine(t, r)
			def := buildWorkflow(t,
				builder.NewStep("work").
					WithCapability("flaky").
					WithRetries(maxRetries),
				builder.NewStep("after").WithCapability("noop"),
			)

			res := execute(t, eng, def)
			assert.Equal(t, int32(maxRetries+1), calls.Load())
			assert.False(t, res.Success)
			assert.Equal(t, api.StepID("work"), res.FailedStep)
			rec := res.Record("work")
			assert.Equal(t, api.StepFailed, rec.Status)
			assert.Equal(t, maxRetries+1, rec.Attempts)
			assert.ErrorIs(t, res.Err, api.ErrCapabilityExecution)
			assert.ErrorIs(t, res.Err, errFlaky)
			assert.Equal(t, api.StepPending, res.Record("after").Status)
		})
	}
}

func TestRetryRecovers(t *testing.T) {
	var calls atomic.Int32
	var seen []api.Args
	r := newRegistry(t)
	require.NoError(t, r.RegisterFunc("flaky",
		func(_ context.Context, args api.Args) (any, error) {
			seen = append(seen, args.Clone())
			args["mutated"] = true
			if calls.Add(1) < 3 {
				return nil, errFlaky
			}
			return "ok", nil
		},
	))
	eng := newEngine(t, r)
	def := buildWorkflow(t,
		builder.NewStep("work").
			WithCapability("flaky").
			WithArg("user", "$input.user").
			WithRetries(5),
	)

	res, err := eng.Execute(context.Background(), def, api.Args{
		"user": "ada",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ok", res.FinalResult)
	assert.Equal(t, 3, res.Record("work").Attempts)
	require.Len(t, seen, 3)
	for _, args := range seen {
		assert.Equal(t, api.Args{"user": "ada"}, args)
	}
}

func TestRetryEmitsEvents(t *testing.T) {
	sink := &recordingSink{}
	r := newRegistry(t)
	eng := newEngine(t, r, func(d *engine.Dependencies) {
		d.Events = sink
	})
	def := buildWorkflow(t,
		builder.NewStep("work").WithCapability("fail").WithRetries(2),
	)

	execute(t, eng, def)
	var retries []int
	for _, ev := range sink.events {
		if ev.Type == api.EventStepRetrying {
			retries = append(retries, ev.Attempt)
		}
	}
	assert.Equal(t, []int{2, 3}, retries)
}

func TestSkipOnFailure(t *testing.T) {
	eng := newEngine(t, newRegistry(t))
	def := buildWorkflow(t,
		builder.NewStep("load").WithCapability("noop").WithArg("x", 1),
		builder.NewStep("broken").
			WithCapability("fail").
			WithArg("message", "nope").
			SkipOnFailure(),
		builder.NewStep("after").
			WithCapability("noop").
			WithArg("from", "$broken.result").
			WithArg("x", "$load.x"),
	)

	res := execute(t, eng, def)
	assert.True(t, res.Success)
	rec := res.Record("broken")
	assert.Equal(t, api.StepSkipped, rec.Status)
	assert.Contains(t, rec.Error, "nope")
	assert.Equal(t, map[string]any{"x": 1}, res.FinalResult)
	assert.Equal(t, []string{"noop", "fail", "noop"}, res.CapabilitiesUsed)
	assert.Empty(t, res.Error)
}

func TestFailAbortsRemainingSteps(t *testing.T) {
	var calls atomic.Int32
	r := newRegistry(t)
	require.NoError(t, r.RegisterFunc("count",
		counter(&calls, func(n int32) (any, error) { return n, nil }),
	))
	eng := newEngine(t, r)
	def := buildWorkflow(t,
		builder.NewStep("first").WithCapability("count"),
		builder.NewStep("broken").WithCapability("fail"),
		builder.NewStep("third").WithCapability("count"),
	)

	res := execute(t, eng, def)
	assert.False(t, res.Success)
	assert.Equal(t, api.StepID("broken"), res.FailedStep)
	assert.ErrorIs(t, res.Err, capability.ErrForcedFailure)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, api.StepPending, res.Record("third").Status)
	assert.Equal(t, int32(1), res.FinalResult)
	assert.Equal(t, []string{"count", "fail"}, res.CapabilitiesUsed)
	assert.False(t, res.CompletedAt.IsZero())
}

func TestCapabilityNotFound(t *testing.T) {
	eng := newEngine(t, newRegistry(t))
	def := buildWorkflow(t,
		builder.NewStep("ghost").WithCapability("missing").WithRetries(3),
	)

	res := execute(t, eng, def)
	assert.False(t, res.Success)
	assert.Equal(t, api.StepID("ghost"), res.FailedStep)
	assert.ErrorIs(t, res.Err, api.ErrCapabilityNotFound)
	assert.Equal(t, 1, res.Record("ghost").Attempts)
}

func TestPassThroughStep(t *testing.T) {
	eng := newEngine(t, newRegistry(t))
	def := buildWorkflow(t,
		builder.NewStep("shape").
			WithArg("user", "$input.user").
			WithArg("fixed", 7),
	)

	res, err := eng.Execute(context.Background(), def, api.Args{
		"user": "ada",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, map[string]any{"user": "ada", "fixed": 7}, res.FinalResult)
	assert.Empty(t, res.CapabilitiesUsed)
}

func TestOutputKey(t *testing.T) {
	eng := newEngine(t, newRegistry(t))
	def := buildWorkflow(t,
		builder.NewStep("total").
			WithCapability("echo").
			WithArg("value", 40).
			WithOutputKey("sum"),
		builder.NewStep("next").
			WithCapability("double").
			WithInput("x", "$total.sum"),
	)

	res := execute(t, eng, def)
	assert.True(t, res.Success)
	assert.Equal(t, 80, res.FinalResult)
}

func TestApprovalShortCircuit(t *testing.T) {
	var calls atomic.Int32
	r := newRegistry(t)
	require.NoError(t, r.RegisterFunc("count",
		counter(&calls, func(n int32) (any, error) { return n, nil }),
	))
	eng := newEngine(t, r)
	def := buildWorkflow(t,
		builder.NewStep("prepare").WithCapability("count"),
		builder.NewStep("deploy").
			WithCapability("count").
			WithApproval(api.ApprovalRequired),
		builder.NewStep("announce").WithCapability("count"),
	)

	res := execute(t, eng, def)
	assert.False(t, res.Success)
	assert.Equal(t, api.StepID("deploy"), res.FailedStep)
	assert.ErrorIs(t, res.Err, api.ErrApprovalRejected)
	assert.Equal(t, int32(1), calls.Load())

	rec := res.Record("deploy")
	assert.Equal(t, api.StepRejected, rec.Status)
	require.NotNil(t, rec.Approval)
	assert.True(t, rec.Approval.Rejected)
	assert.Equal(t, engine.RejectedByHandler, rec.Approval.RejectionReason)
	assert.Equal(t, api.StepPending, res.Record("announce").Status)
	assert.Equal(t, []string{"count"}, res.CapabilitiesUsed)
}

func TestApprovalSoftDefault(t *testing.T) {
	eng := newEngine(t, newRegistry(t))
	def := buildWorkflow(t,
		builder.NewStep("gentle").
			WithCapability("echo").
			WithArg("value", "done").
			WithApproval(api.ApprovalSoft),
	)

	res := execute(t, eng, def)
	assert.True(t, res.Success)
	rec := res.Record("gentle")
	assert.Equal(t, api.StepCompleted, rec.Status)
	assert.True(t, rec.Approval.Approved)
	assert.Equal(t,
		[]api.ApproverID{api.SystemApprover}, rec.Approval.ApprovedBy,
	)
}

func TestApprovalCriticalWithAutoApprove(t *testing.T) {
	eng := newEngine(t, newRegistry(t), func(d *engine.Dependencies) {
		d.Approvals = engine.AutoApproveHandler
	})
	def := buildWorkflow(t,
		builder.NewStep("launch").
			WithCapability("noop").
			WithCriticalApproval(2),
	)

	res := execute(t, eng, def)
	assert.True(t, res.Success)
	assert.Len(t, res.Record("launch").Approval.ApprovedBy, 2)
}

func TestApprovalHandlerDecisionApproves(t *testing.T) {
	eng := newEngine(t, newRegistry(t))
	def := buildWorkflow(t,
		builder.NewStep("deploy").
			WithCapability("noop").
			WithApproval(api.ApprovalRequired),
	)

	handler := func(context.Context, *api.ApprovalRequest) bool {
		return true
	}
	res := execute(t, eng, def, engine.WithApprovalHandler(handler))
	assert.True(t, res.Success)
	assert.Empty(t, res.FailedStep)

	rec := res.Record("deploy")
	assert.Equal(t, api.StepCompleted, rec.Status)
	assert.True(t, rec.Approval.Approved)
	assert.Equal(t,
		[]api.ApproverID{"handler-1"}, rec.Approval.ApprovedBy,
	)
}

func TestApprovalHandlerCompletesPartialGate(t *testing.T) {
	eng := newEngine(t, newRegistry(t))
	def := buildWorkflow(t,
		builder.NewStep("launch").
			WithCapability("noop").
			WithCriticalApproval(2),
	)

	handler := func(_ context.Context, req *api.ApprovalRequest) bool {
		req.Gate.Approve("alice")
		return true
	}
	res := execute(t, eng, def, engine.WithApprovalHandler(handler))
	assert.True(t, res.Success)

	rec := res.Record("launch")
	assert.Equal(t, api.StepCompleted, rec.Status)
	assert.Equal(t,
		[]api.ApproverID{"alice", "handler-1"}, rec.Approval.ApprovedBy,
	)
}

func TestApprovalHandlerCalledOncePerGate(t *testing.T) {
	var calls atomic.Int32
	var requests []*api.ApprovalRequest
	handler := func(ctx context.Context, req *api.ApprovalRequest) bool {
		calls.Add(1)
		requests = append(requests, req)
		return engine.AutoApproveHandler(ctx, req)
	}
	eng := newEngine(t, newRegistry(t))
	def := buildWorkflow(t,
		builder.NewStep("plain").WithCapability("noop"),
		builder.NewStep("none").
			WithCapability("noop").
			WithApproval(api.ApprovalNone),
		builder.NewStep("notify").
			WithCapability("noop").
			WithApproval(api.ApprovalNotify),
		builder.NewStep("critical").
			WithCapability("noop").
			WithCriticalApproval(3),
	)

	res := execute(t, eng, def,
		engine.WithApprovalHandler(handler), engine.WithRunID("run-1"),
	)
	assert.True(t, res.Success)
	assert.Equal(t, int32(2), calls.Load())
	require.Len(t, requests, 2)
	assert.Equal(t, api.StepID("notify"), requests[0].StepID)
	assert.Equal(t, api.RunID("run-1"), requests[1].RunID)
	assert.Equal(t, def.ID, requests[1].WorkflowID)
}

func TestApprovalGatesAreNotShared(t *testing.T) {
	var gates []*api.ApprovalGate
	var mu sync.Mutex
	handler := func(ctx context.Context, req *api.ApprovalRequest) bool {
		mu.Lock()
		gates = append(gates, req.Gate)
		mu.Unlock()
		assert.Empty(t, req.Gate.ApprovedBy)
		return engine.AutoApproveHandler(ctx, req)
	}
	eng := newEngine(t, newRegistry(t), func(d *engine.Dependencies) {
		d.Approvals = handler
	})
	def := buildWorkflow(t,
		builder.NewStep("gated").
			WithCapability("noop").
			WithCriticalApproval(2),
	)

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			res, err := eng.Execute(context.Background(), def, nil)
			assert.NoError(t, err)
			assert.True(t, res.Success)
		})
	}
	wg.Wait()

	require.Len(t, gates, 10)
	for i := 1; i < len(gates); i++ {
		assert.NotSame(t, gates[0], gates[i])
	}
	assert.Empty(t, def.Steps[0].Approval.ApprovedBy)
	assert.False(t, def.Steps[0].Approval.Approved)
}

func TestFailOpenCondition(t *testing.T) {
	eng := newEngine(t, newRegistry(t))
	def := buildWorkflow(t,
		builder.NewStep("risky").
			WithCapability("echo").
			WithArg("value", "ran").
			WithCondition("__import__('os').system('true')"),
	)

	res := execute(t, eng, def)
	assert.True(t, res.Success)
	rec := res.Record("risky")
	assert.Equal(t, api.StepCompleted, rec.Status)
	assert.Equal(t, "ran", res.FinalResult)
	require.Len(t, rec.Warnings, 1)
	assert.Contains(t, rec.Warnings[0], api.ErrConditionEvaluation.Error())
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "risky")
}

func TestCancelBeforeRun(t *testing.T) {
	var calls atomic.Int32
	r := newRegistry(t)
	require.NoError(t, r.RegisterFunc("count",
		counter(&calls, func(n int32) (any, error) { return n, nil }),
	))
	eng := newEngine(t, r)
	def := buildWorkflow(t,
		builder.NewStep("first").WithCapability("count"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := eng.Execute(ctx, def, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, api.StepID("first"), res.FailedStep)
	assert.ErrorIs(t, res.Err, api.ErrRunCanceled)
	assert.Equal(t, api.StepFailed, res.Record("first").Status)
	assert.Zero(t, calls.Load())
}

func TestCancelDuringRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	r := newRegistry(t)
	require.NoError(t, r.RegisterFunc("flaky",
		counter(&calls, func(int32) (any, error) {
			cancel()
			return nil, errFlaky
		}),
	))
	eng := newEngine(t, r)
	def := buildWorkflow(t,
		builder.NewStep("work").
			WithCapability("flaky").
			WithRetries(5).
			SkipOnFailure(),
		builder.NewStep("after").WithCapability("noop"),
	)

	res, err := eng.Execute(ctx, def, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, api.StepID("work"), res.FailedStep)
	assert.ErrorIs(t, res.Err, api.ErrRunCanceled)
	assert.Equal(t, api.StepPending, res.Record("after").Status)
}

func TestCapabilityTimeout(t *testing.T) {
	r := newRegistry(t)
	require.NoError(t, r.RegisterFunc("slow",
		func(ctx context.Context, _ api.Args) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	))
	cfg := config.NewDefaultConfig()
	cfg.CapabilityTimeout = 10 * time.Millisecond
	eng, err := engine.New(cfg, engine.Dependencies{Registry: r})
	require.NoError(t, err)

	def := buildWorkflow(t, builder.NewStep("wait").WithCapability("slow"))
	res := execute(t, eng, def)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}

func TestMetadataForwarded(t *testing.T) {
	var got api.Metadata
	r := newRegistry(t)
	require.NoError(t, r.RegisterFunc("inspect",
		func(ctx context.Context, _ api.Args) (any, error) {
			got = capability.MetadataFrom(ctx)
			return nil, nil
		},
	))
	eng := newEngine(t, r)
	def := buildWorkflow(t, builder.NewStep("look").WithCapability("inspect"))

	res := execute(t, eng, def,
		engine.WithRunID("run-42"),
		engine.WithMetadata(api.Metadata{"tenant": "acme"}),
	)
	assert.True(t, res.Success)
	assert.Equal(t, api.RunID("run-42"), res.RunID)
	assert.Equal(t, api.Metadata{"tenant": "acme"}, res.Metadata)
	assert.Equal(t, "acme", got["tenant"])
	assert.Equal(t, "run-42", got[api.MetaRunID])
	assert.Equal(t, "look", got[api.MetaStepID])
	assert.Equal(t, string(def.ID), got[api.MetaWorkflowID])
	assert.Equal(t, 1, got[api.MetaAttempt])
}

func TestEventsPublished(t *testing.T) {
	sink := &recordingSink{}
	eng := newEngine(t, newRegistry(t), func(d *engine.Dependencies) {
		d.Events = sink
	})
	def := buildWorkflow(t,
		builder.NewStep("load").
			WithCapability("noop").
			WithApproval(api.ApprovalNotify),
		builder.NewStep("skip").WithCondition("false"),
	)

	res := execute(t, eng, def)
	assert.Equal(t, []api.EventType{
		api.EventRunStarted,
		api.EventStepStatus,
		api.EventStepStatus,
		api.EventApprovalRequested,
		api.EventApprovalResolved,
		api.EventStepStatus,
		api.EventStepStatus,
		api.EventStepStatus,
		api.EventStepStatus,
		api.EventRunFinished,
	}, sink.types())

	var statuses []api.StepStatus
	for _, ev := range sink.events {
		assert.Equal(t, res.RunID, ev.RunID)
		assert.False(t, ev.Timestamp.IsZero())
		if ev.Type == api.EventStepStatus {
			statuses = append(statuses, ev.Status)
		}
	}
	assert.Equal(t, []api.StepStatus{
		api.StepRunning,
		api.StepAwaitingApproval,
		api.StepApproved,
		api.StepCompleted,
		api.StepRunning,
		api.StepSkipped,
	}, statuses)
	assert.Same(t, res, sink.events[len(sink.events)-1].Result)
}

func TestExecuteAsync(t *testing.T) {
	eng := newEngine(t, newRegistry(t))
	def := buildWorkflow(t,
		builder.NewStep("load").WithCapability("noop").WithArg("x", 1),
	)

	out := <-eng.ExecuteAsync(context.Background(), def, nil)
	require.NoError(t, out.Err)
	assert.True(t, out.Result.Success)

	out = <-eng.ExecuteAsync(context.Background(), &api.WorkflowDefinition{
		Steps: []*api.WorkflowStep{{ID: ""}},
	}, nil)
	assert.ErrorIs(t, out.Err, api.ErrDefinition)
	assert.Nil(t, out.Result)
}

func TestConcurrentRunsAreIndependent(t *testing.T) {
	eng := newEngine(t, newRegistry(t))
	def := buildWorkflow(t,
		builder.NewStep("double").
			WithCapability("double").
			WithInput("x", "$input.n"),
	)

	var wg sync.WaitGroup
	for i := range 25 {
		wg.Go(func() {
			res, err := eng.Execute(context.Background(), def, api.Args{
				"n": i,
			})
			assert.NoError(t, err)
			assert.Equal(t, i*2, res.FinalResult)
		})
	}
	wg.Wait()
}
