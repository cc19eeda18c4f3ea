package engine

import (
	"context"
	"fmt"

	"github.com/kode4food/cadence/pkg/api"
)

// ApprovalHandler decides whether a gated step may run. It receives the
// run's own copy of the gate and may record approvals or a rejection on it
// before returning. The returned bool is the decision. Handlers may block,
// for example while waiting on a human, and should honor cancellation of ctx
type ApprovalHandler func(ctx context.Context, req *api.ApprovalRequest) bool

// RejectedByHandler is the rejection reason recorded when a handler declines
// a gate without giving one
const RejectedByHandler = "rejected by approval handler"

const (
	autoApproverFormat    = "auto-%d"
	handlerApproverFormat = "handler-%d"
)

// DefaultApprovalHandler approves notify and soft gates on behalf of the
// system, and rejects required and critical gates, which need a handler
// capable of gathering real approvals
func DefaultApprovalHandler(_ context.Context, req *api.ApprovalRequest) bool {
	switch req.Gate.EffectiveLevel() {
	case api.ApprovalNone:
		return true
	case api.ApprovalNotify, api.ApprovalSoft:
		req.Gate.Approve(api.SystemApprover)
		return true
	default:
		return false
	}
}

// AutoApproveHandler approves every gate, recording as many distinct
// synthetic approvers as the gate requires. It suits unattended batch runs
func AutoApproveHandler(_ context.Context, req *api.ApprovalRequest) bool {
	g := req.Gate
	for i := 1; !g.IsResolved(); i++ {
		g.Approve(api.ApproverID(fmt.Sprintf(autoApproverFormat, i)))
	}
	return !g.IsRejected()
}
