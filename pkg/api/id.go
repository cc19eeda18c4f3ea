package api

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

type (
	// WorkflowID is a unique identifier for a workflow definition
	WorkflowID string

	// StepID is a unique identifier for a step within a definition
	StepID string

	// RunID uniquely identifies one execution of a workflow definition
	RunID string

	// ApproverID identifies a party that approved a gated step
	ApproverID string

	// RunStep identifies a step within a specific run
	RunStep struct {
		RunID  RunID
		StepID StepID
	}
)

// InvalidIDChars matches characters not permitted in workflow and step IDs.
// Valid characters are: letters, digits, underscore, dot, hyphen, plus, space
var InvalidIDChars = regexp.MustCompile(`[^a-zA-Z0-9_.\-+ ]`)

// NewWorkflowID generates a random workflow ID
func NewWorkflowID() WorkflowID {
	return WorkflowID(uuid.NewString())
}

// NewRunID generates a random run ID
func NewRunID() RunID {
	return RunID(uuid.NewString())
}

// SanitizeID lowercases an ID, removes invalid characters, replaces spaces
// with hyphens, and trims leading and trailing hyphens
func SanitizeID[T ~string](id T) T {
	lower := strings.ToLower(string(id))
	sanitized := InvalidIDChars.ReplaceAllString(lower, "")
	sanitized = strings.ReplaceAll(sanitized, " ", "-")
	return T(strings.Trim(sanitized, "-"))
}
