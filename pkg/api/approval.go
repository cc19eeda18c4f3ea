package api

import (
	"slices"
	"time"
)

type (
	// ApprovalLevel determines how strictly a gate blocks its step
	ApprovalLevel string

	// ApprovalGate guards a step pending one or more approvals. The gate
	// attached to a definition is a template: each run works on its own
	// fresh copy
	ApprovalGate struct {
		Level             ApprovalLevel `json:"level" yaml:"level"`
		RequiredApprovers int           `json:"requiredApprovers,omitempty" yaml:"requiredApprovers,omitempty"`
		ApprovedBy        []ApproverID  `json:"approvedBy,omitempty" yaml:"approvedBy,omitempty"`
		Approved          bool          `json:"approved,omitempty" yaml:"approved,omitempty"`
		Rejected          bool          `json:"rejected,omitempty" yaml:"rejected,omitempty"`
		RejectionReason   string        `json:"rejectionReason,omitempty" yaml:"rejectionReason,omitempty"`
	}

	// ApprovalRequest is handed to an approval decision function. Gate is
	// the run's own copy and may be approved or rejected in place
	ApprovalRequest struct {
		WorkflowID  WorkflowID    `json:"workflowId"`
		RunID       RunID         `json:"runId"`
		StepID      StepID        `json:"stepId"`
		StepName    string        `json:"stepName,omitempty"`
		Gate        *ApprovalGate `json:"gate"`
		RequestedAt time.Time     `json:"requestedAt"`
	}
)

const (
	ApprovalNone     ApprovalLevel = "none"
	ApprovalNotify   ApprovalLevel = "notify"
	ApprovalSoft     ApprovalLevel = "soft"
	ApprovalRequired ApprovalLevel = "required"
	ApprovalCritical ApprovalLevel = "critical"
)

// SystemApprover is recorded when a gate is approved without a human
const SystemApprover ApproverID = "system"

// DefaultRejectionReason is recorded when a gate is rejected without one
const DefaultRejectionReason = "rejected"

// IsValid returns whether the level is one of the known approval levels. An
// empty level is treated as none
func (l ApprovalLevel) IsValid() bool {
	switch l {
	case "", ApprovalNone, ApprovalNotify, ApprovalSoft, ApprovalRequired,
		ApprovalCritical:
		return true
	default:
		return false
	}
}

// EffectiveLevel returns the gate's level, mapping empty and nil gates to
// none
func (g *ApprovalGate) EffectiveLevel() ApprovalLevel {
	if g == nil || g.Level == "" {
		return ApprovalNone
	}
	return g.Level
}

// Threshold returns the number of distinct approvals needed before the gate
// is considered approved
func (g *ApprovalGate) Threshold() int {
	switch g.EffectiveLevel() {
	case ApprovalSoft, ApprovalRequired:
		return 1
	case ApprovalCritical:
		return max(1, g.RequiredApprovers)
	default:
		return 0
	}
}

// RequiresDecision reports whether the engine must consult an approval
// decision function before running the step
func (g *ApprovalGate) RequiresDecision() bool {
	return g.EffectiveLevel() != ApprovalNone
}

// Blocks reports whether the gate holds its step until approvals are
// recorded. None and notify gates never block
func (g *ApprovalGate) Blocks() bool {
	return g.Threshold() > 0
}

// Approve records an approval from the given approver. Approving twice with
// the same ID does not double count, and calls after the gate has been
// resolved are no-ops. Returns whether the approval was recorded
func (g *ApprovalGate) Approve(by ApproverID) bool {
	if g.IsResolved() || slices.Contains(g.ApprovedBy, by) {
		return false
	}
	g.ApprovedBy = append(g.ApprovedBy, by)
	g.Approved = len(g.ApprovedBy) >= g.Threshold()
	return true
}

// Reject resolves the gate as rejected. A rejection may be recorded at most
// once, and never after approval. Returns whether the rejection was recorded
func (g *ApprovalGate) Reject(reason string) bool {
	if g.IsResolved() {
		return false
	}
	if reason == "" {
		reason = DefaultRejectionReason
	}
	g.Rejected = true
	g.RejectionReason = reason
	return true
}

// IsResolved returns whether the gate has been approved or rejected
func (g *ApprovalGate) IsResolved() bool {
	return g.Approved || g.Rejected
}

// IsRejected returns whether a rejection has been recorded
func (g *ApprovalGate) IsRejected() bool {
	return g.Rejected
}

// Remaining returns how many more distinct approvals the gate needs
func (g *ApprovalGate) Remaining() int {
	return max(0, g.Threshold()-len(g.ApprovedBy))
}

// Clone returns a deep copy of the gate, including its run-time state
func (g *ApprovalGate) Clone() *ApprovalGate {
	if g == nil {
		return nil
	}
	res := *g
	res.ApprovedBy = slices.Clone(g.ApprovedBy)
	return &res
}

// Reset returns a copy of the gate's template fields with all run-time
// state cleared
func (g *ApprovalGate) Reset() *ApprovalGate {
	if g == nil {
		return nil
	}
	return &ApprovalGate{
		Level:             g.Level,
		RequiredApprovers: g.RequiredApprovers,
	}
}
