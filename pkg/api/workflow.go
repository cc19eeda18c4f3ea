package api

import (
	"encoding/json"
	"fmt"
	"maps"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kode4food/cadence/pkg/util"
)

type (
	// WorkflowDefinition is the immutable template describing one pipeline
	// of steps. Executions never mutate it
	WorkflowDefinition struct {
		ID          WorkflowID      `json:"id" yaml:"id"`
		Name        string          `json:"name" yaml:"name"`
		Version     string          `json:"version,omitempty" yaml:"version,omitempty"`
		Description string          `json:"description,omitempty" yaml:"description,omitempty"`
		Steps       []*WorkflowStep `json:"steps" yaml:"steps"`
	}

	// WorkflowStep describes one unit of work in a definition
	WorkflowStep struct {
		ID             StepID          `json:"id" yaml:"id"`
		Name           string          `json:"name,omitempty" yaml:"name,omitempty"`
		CapabilityName string          `json:"capabilityName,omitempty" yaml:"capabilityName,omitempty"`
		Args           Args            `json:"args,omitempty" yaml:"args,omitempty"`
		InputFrom      map[Name]string `json:"inputFrom,omitempty" yaml:"inputFrom,omitempty"`
		OutputKey      Name            `json:"outputKey,omitempty" yaml:"outputKey,omitempty"`
		Condition      string          `json:"condition,omitempty" yaml:"condition,omitempty"`
		OnFailure      FailurePolicy   `json:"onFailure,omitempty" yaml:"onFailure,omitempty"`
		MaxRetries     int             `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
		Approval       *ApprovalGate   `json:"approval,omitempty" yaml:"approval,omitempty"`
	}

	// FailurePolicy determines what happens when a step's capability fails
	FailurePolicy string

	// DefinitionFormat names a serialization of workflow definitions
	DefinitionFormat string
)

const (
	FailWorkflow FailurePolicy = "fail"
	SkipStep     FailurePolicy = "skip"
	RetryStep    FailurePolicy = "retry"
)

const (
	FormatJSON DefinitionFormat = "json"
	FormatYAML DefinitionFormat = "yaml"
)

// DefaultOutputKey names a step's output when no outputKey is given
const DefaultOutputKey Name = "result"

// DefaultVersion is assigned by NewWorkflow
const DefaultVersion = "1.0"

// NewWorkflow creates a definition with a freshly generated ID
func NewWorkflow(name string, steps ...*WorkflowStep) *WorkflowDefinition {
	return &WorkflowDefinition{
		ID:      NewWorkflowID(),
		Name:    name,
		Version: DefaultVersion,
		Steps:   steps,
	}
}

// IsValid returns whether the policy is one of fail, skip, or retry. An
// empty policy is treated as fail
func (p FailurePolicy) IsValid() bool {
	switch p {
	case "", FailWorkflow, SkipStep, RetryStep:
		return true
	default:
		return false
	}
}

// Validate checks the definition for structural errors. Every returned error
// wraps ErrDefinition
func (d *WorkflowDefinition) Validate() error {
	if err := d.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrDefinition, err)
	}
	return nil
}

func (d *WorkflowDefinition) validate() error {
	seen := util.Set[StepID]{}
	for i, s := range d.Steps {
		if s == nil {
			return fmt.Errorf("%w: step %d is nil", ErrStepIDEmpty, i)
		}
		if err := s.Validate(); err != nil {
			return err
		}
		if seen.Contains(s.ID) {
			return fmt.Errorf("%w: %s", ErrDuplicateStepID, s.ID)
		}
		seen.Add(s.ID)
	}
	return nil
}

// Step returns the step with the given ID, or nil
func (d *WorkflowDefinition) Step(id StepID) *WorkflowStep {
	for _, s := range d.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// StepIDs returns the step IDs in definition order
func (d *WorkflowDefinition) StepIDs() []StepID {
	res := make([]StepID, len(d.Steps))
	for i, s := range d.Steps {
		res[i] = s.ID
	}
	return res
}

// Clone returns a deep copy of the definition. Approval gates are reset to
// their template state so that the copy can be handed to a fresh run
func (d *WorkflowDefinition) Clone() *WorkflowDefinition {
	res := *d
	res.Steps = make([]*WorkflowStep, len(d.Steps))
	for i, s := range d.Steps {
		res.Steps[i] = s.Clone()
	}
	return &res
}

// Validate checks a single step for structural errors
func (s *WorkflowStep) Validate() error {
	if s.ID == "" {
		return ErrStepIDEmpty
	}
	if s.ID == InputKey || !IsReferenceSegment(string(s.ID)) {
		return fmt.Errorf("%w: %q", ErrInvalidStepID, s.ID)
	}
	if !s.OnFailure.IsValid() {
		return fmt.Errorf("%w: step %s: %q",
			ErrInvalidFailurePolicy, s.ID, s.OnFailure)
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("%w: step %s", ErrNegativeMaxRetries, s.ID)
	}
	if s.OutputKey != "" && !IsReferenceSegment(string(s.OutputKey)) {
		return fmt.Errorf("%w: step %s: %q",
			ErrInvalidOutputKey, s.ID, s.OutputKey)
	}
	if g := s.Approval; g != nil {
		if !g.Level.IsValid() {
			return fmt.Errorf("%w: step %s: %q",
				ErrInvalidApprovalLevel, s.ID, g.Level)
		}
		if g.RequiredApprovers < 0 {
			return fmt.Errorf("%w: step %s", ErrInvalidApprovers, s.ID)
		}
	}
	if err := validateArgRefs(s.Args); err != nil {
		return fmt.Errorf("step %s: %w", s.ID, err)
	}
	for name, ref := range s.InputFrom {
		if _, err := ParseReference(ref); err != nil {
			return fmt.Errorf("step %s: input %s: %w", s.ID, name, err)
		}
	}
	return nil
}

// OutputName returns the key under which the step's output is recorded
func (s *WorkflowStep) OutputName() Name {
	if s.OutputKey == "" {
		return DefaultOutputKey
	}
	return s.OutputKey
}

// FailurePolicy returns the step's failure policy, defaulting to fail
func (s *WorkflowStep) FailurePolicy() FailurePolicy {
	if s.OnFailure == "" {
		return FailWorkflow
	}
	return s.OnFailure
}

// Attempts returns how many times the step's capability may be invoked
func (s *WorkflowStep) Attempts() int {
	if s.FailurePolicy() == RetryStep {
		return s.MaxRetries + 1
	}
	return 1
}

// DisplayName returns the step's name, falling back to its ID
func (s *WorkflowStep) DisplayName() string {
	if s.Name == "" {
		return string(s.ID)
	}
	return s.Name
}

// Clone returns a deep copy of the step with a reset approval gate
func (s *WorkflowStep) Clone() *WorkflowStep {
	res := *s
	res.Args = s.Args.Clone()
	res.InputFrom = maps.Clone(s.InputFrom)
	res.Approval = s.Approval.Reset()
	return &res
}

func validateArgRefs(v any) error {
	switch v := v.(type) {
	case string:
		if IsReference(v) {
			_, err := ParseReference(v)
			return err
		}
	case Args:
		for _, elem := range v {
			if err := validateArgRefs(elem); err != nil {
				return err
			}
		}
	case map[string]any:
		for _, elem := range v {
			if err := validateArgRefs(elem); err != nil {
				return err
			}
		}
	case []any:
		for _, elem := range v {
			if err := validateArgRefs(elem); err != nil {
				return err
			}
		}
	}
	return nil
}

// FormatForPath picks a definition format from a file extension
func FormatForPath(path string) (DefinitionFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// ParseDefinition decodes and validates a workflow definition. A definition
// without an ID is assigned a fresh one
func ParseDefinition(
	data []byte, format DefinitionFormat,
) (*WorkflowDefinition, error) {
	var def WorkflowDefinition
	if err := Unmarshal(data, format, &def); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDefinition, err)
	}
	if def.ID == "" {
		def.ID = NewWorkflowID()
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Unmarshal decodes JSON or YAML data into target
func Unmarshal(data []byte, format DefinitionFormat, target any) error {
	switch format {
	case FormatJSON:
		return json.Unmarshal(data, target)
	case FormatYAML:
		return yaml.Unmarshal(data, target)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}
