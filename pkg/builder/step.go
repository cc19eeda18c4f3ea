package builder

import (
	"maps"
	"regexp"
	"strings"

	"github.com/kode4food/cadence/pkg/api"
)

// Step is an immutable builder for workflow steps
type Step struct {
	approval   *api.ApprovalGate
	args       api.Args
	inputFrom  map[api.Name]string
	id         api.StepID
	name       string
	capability string
	outputKey  api.Name
	condition  string
	onFailure  api.FailurePolicy
	maxRetries int
}

var (
	camelCaseRegex = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	delimiterRegex = regexp.MustCompile(`[\s_]+`)
)

// NewStep creates a step builder with an ID derived from the name
func NewStep(name string) *Step {
	return &Step{
		id:        api.StepID(toKebabCase(name)),
		name:      name,
		args:      api.Args{},
		inputFrom: map[api.Name]string{},
	}
}

func (s *Step) WithID(id api.StepID) *Step {
	res := *s
	res.id = id
	return &res
}

// WithCapability names the capability the step invokes. A step without one
// passes its resolved arguments through as its output
func (s *Step) WithCapability(name string) *Step {
	res := *s
	res.capability = name
	return &res
}

// WithArg sets a literal or `$reference` argument
func (s *Step) WithArg(name api.Name, value any) *Step {
	res := *s
	res.args = s.args.Set(name, value)
	return &res
}

// WithInput wires an argument to a reference. Inputs take precedence over
// args of the same name
func (s *Step) WithInput(name api.Name, ref string) *Step {
	res := *s
	res.inputFrom = maps.Clone(s.inputFrom)
	res.inputFrom[name] = ref
	return &res
}

func (s *Step) WithOutputKey(key api.Name) *Step {
	res := *s
	res.outputKey = key
	return &res
}

func (s *Step) WithCondition(expr string) *Step {
	res := *s
	res.condition = expr
	return &res
}

// SkipOnFailure marks the step skipped instead of failing the run
func (s *Step) SkipOnFailure() *Step {
	res := *s
	res.onFailure = api.SkipStep
	res.maxRetries = 0
	return &res
}

// FailOnFailure aborts the run when the step fails
func (s *Step) FailOnFailure() *Step {
	res := *s
	res.onFailure = api.FailWorkflow
	res.maxRetries = 0
	return &res
}

// WithRetries retries the step's capability up to n more times
func (s *Step) WithRetries(n int) *Step {
	res := *s
	res.onFailure = api.RetryStep
	res.maxRetries = n
	return &res
}

// WithApproval attaches an approval gate template
func (s *Step) WithApproval(level api.ApprovalLevel) *Step {
	res := *s
	res.approval = &api.ApprovalGate{Level: level}
	return &res
}

// WithCriticalApproval attaches a critical gate requiring n distinct
// approvers
func (s *Step) WithCriticalApproval(n int) *Step {
	res := *s
	res.approval = &api.ApprovalGate{
		Level:             api.ApprovalCritical,
		RequiredApprovers: n,
	}
	return &res
}

// Build validates and returns the step
func (s *Step) Build() (*api.WorkflowStep, error) {
	step := s.build()
	if err := step.Validate(); err != nil {
		return nil, err
	}
	return step, nil
}

func (s *Step) build() *api.WorkflowStep {
	step := &api.WorkflowStep{
		ID:             s.id,
		Name:           s.name,
		CapabilityName: s.capability,
		OutputKey:      s.outputKey,
		Condition:      s.condition,
		OnFailure:      s.onFailure,
		MaxRetries:     s.maxRetries,
		Approval:       s.approval.Clone(),
	}
	if len(s.args) != 0 {
		step.Args = s.args.Clone()
	}
	if len(s.inputFrom) != 0 {
		step.InputFrom = maps.Clone(s.inputFrom)
	}
	return step
}

func toKebabCase(s string) string {
	s = camelCaseRegex.ReplaceAllString(s, "$1-$2")
	s = delimiterRegex.ReplaceAllString(s, "-")
	return strings.ToLower(s)
}
