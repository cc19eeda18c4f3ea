package assert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/cadence/internal/config"
	"github.com/kode4food/cadence/pkg/api"
)

// Wrapper wraps testify assertions with workflow-specific helpers
type Wrapper struct {
	*testing.T
	*assert.Assertions
}

// DefaultRetryInterval is the default polling interval for Eventually checks
const DefaultRetryInterval = 25 * time.Millisecond

// New creates a new test assertion wrapper
func New(t *testing.T) *Wrapper {
	return &Wrapper{
		T:          t,
		Assertions: assert.New(t),
	}
}

// ConfigValid asserts that a configuration is valid
func (w *Wrapper) ConfigValid(cfg *config.Config) {
	w.Helper()
	w.NoError(cfg.Validate())
	w.True(cfg.APIPort > 0 && cfg.APIPort <= config.MaxTCPPort)
	w.True(cfg.CapabilityTimeout > 0)
}

// ConfigInvalid asserts that a configuration is invalid
func (w *Wrapper) ConfigInvalid(cfg *config.Config, contains string) {
	w.Helper()
	err := cfg.Validate()
	w.Error(err)
	if err != nil && contains != "" {
		w.Contains(err.Error(), contains)
	}
}

// RunSucceeded asserts that every step of a run either completed or was
// skipped by its condition
func (w *Wrapper) RunSucceeded(res *api.WorkflowResult) {
	w.Helper()
	if !w.NotNil(res) {
		return
	}
	w.True(res.Success, "run should succeed: %s", res.Error)
	w.Empty(res.FailedStep)
	w.NoError(res.Err)
}

// RunFailed asserts that a run failed at the given step with an error
// matching target
func (w *Wrapper) RunFailed(
	res *api.WorkflowResult, stepID api.StepID, target error,
) {
	w.Helper()
	if !w.NotNil(res) {
		return
	}
	w.False(res.Success)
	w.Equal(stepID, res.FailedStep)
	w.ErrorIs(res.Err, target)
}

// StepStatus asserts the recorded status of a step
func (w *Wrapper) StepStatus(
	res *api.WorkflowResult, stepID api.StepID, expected api.StepStatus,
) {
	w.Helper()
	rec := res.Record(stepID)
	if !w.NotNil(rec, "step should be recorded: %s", stepID) {
		return
	}
	w.Equal(expected, rec.Status, "status of step %s", stepID)
}

// StepResult asserts the output recorded for a step
func (w *Wrapper) StepResult(
	res *api.WorkflowResult, stepID api.StepID, expected any,
) {
	w.Helper()
	val, ok := res.StepResults[stepID]
	w.True(ok, "step should have a result: %s", stepID)
	w.Equal(expected, val)
}

// Eventually runs a condition repeatedly until it passes or times out
func (w *Wrapper) Eventually(
	condition func() bool, timeout time.Duration, msg string, args ...any,
) {
	w.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(DefaultRetryInterval)
	}
	w.Fail(msg, args...)
}

// EventuallyWithError runs a condition that returns an error until it
// succeeds or times out
func (w *Wrapper) EventuallyWithError(
	condition func() error, timeout time.Duration, msg string, args ...any,
) {
	w.Helper()
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		err := condition()
		if err == nil {
			return
		}
		lastErr = err
		time.Sleep(DefaultRetryInterval)
	}
	if lastErr != nil {
		w.Fail(msg+": last error: "+lastErr.Error(), args...)
		return
	}
	w.Fail(msg, args...)
}
