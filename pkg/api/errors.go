package api

import "errors"

var (
	// ErrDefinition is wrapped by every workflow definition error. These are
	// raised before any step runs
	ErrDefinition = errors.New("invalid workflow definition")

	ErrStepIDEmpty          = errors.New("step ID empty")
	ErrInvalidStepID        = errors.New("invalid step ID")
	ErrInvalidOutputKey     = errors.New("invalid output key")
	ErrDuplicateStepID      = errors.New("duplicate step ID")
	ErrInvalidFailurePolicy = errors.New("invalid failure policy")
	ErrNegativeMaxRetries   = errors.New("max retries cannot be negative")
	ErrInvalidApprovalLevel = errors.New("invalid approval level")
	ErrInvalidApprovers     = errors.New("negative required approvers")
	ErrInvalidReference     = errors.New("invalid reference")
	ErrUnknownFormat        = errors.New("unknown definition format")

	// ErrCapabilityNotFound is raised when a step names a capability that is
	// absent from the registry
	ErrCapabilityNotFound = errors.New("capability not found")

	// ErrCapabilityExecution wraps whatever error a capability returned
	ErrCapabilityExecution = errors.New("capability execution failed")

	// ErrApprovalRejected is terminal and aborts the remaining steps
	ErrApprovalRejected = errors.New("approval rejected")

	// ErrConditionEvaluation is never surfaced to callers. The engine treats
	// it as a true condition and records a warning
	ErrConditionEvaluation = errors.New("condition evaluation failed")

	// ErrRunCanceled is reported when the run context ends before a step
	ErrRunCanceled = errors.New("run canceled")
)
