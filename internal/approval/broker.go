package approval

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/kode4food/cadence/internal/engine"
	"github.com/kode4food/cadence/pkg/api"
	"github.com/kode4food/cadence/pkg/log"
)

type (
	// Broker parks gated steps until a human approves or rejects them. Its
	// Handler is installed as the engine's approval decision function
	Broker struct {
		pending map[gateKey]*pendingGate
		timeout time.Duration
		mu      sync.Mutex
	}

	gateKey struct {
		runID  api.RunID
		stepID api.StepID
	}

	pendingGate struct {
		req  *api.ApprovalRequest
		done chan struct{}
	}
)

const (
	TimeoutRejection  = "approval timed out"
	CanceledRejection = "approval canceled"
)

var (
	ErrApprovalNotFound    = errors.New("approval not pending")
	ErrApprovalNotRecorded = errors.New("approval not recorded")
)

// NewBroker creates a broker. A zero timeout waits indefinitely
func NewBroker(timeout time.Duration) *Broker {
	return &Broker{
		pending: map[gateKey]*pendingGate{},
		timeout: timeout,
	}
}

// Handler returns the approval decision function backed by this broker.
// Gates that do not block are settled immediately
func (b *Broker) Handler() engine.ApprovalHandler {
	return b.await
}

// Approve records an approval for a pending gate. The waiting step is
// released once the gate's threshold is met
func (b *Broker) Approve(
	runID api.RunID, stepID api.StepID, approver api.ApproverID,
) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.lookup(runID, stepID)
	if err != nil {
		return err
	}
	if !p.req.Gate.Approve(approver) {
		return fmt.Errorf("%w: %s already approved %s/%s",
			ErrApprovalNotRecorded, approver, runID, stepID)
	}
	slog.Info("Approval recorded",
		log.RunID(runID),
		log.StepID(stepID),
		slog.String("approver", string(approver)),
		slog.Int("remaining", p.req.Gate.Remaining()))
	b.release(runID, stepID, p)
	return nil
}

// Reject resolves a pending gate as rejected, releasing the waiting step
func (b *Broker) Reject(
	runID api.RunID, stepID api.StepID, reason string,
) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.lookup(runID, stepID)
	if err != nil {
		return err
	}
	p.req.Gate.Reject(reason)
	slog.Info("Approval rejected",
		log.RunID(runID),
		log.StepID(stepID),
		slog.String("reason", p.req.Gate.RejectionReason))
	b.release(runID, stepID, p)
	return nil
}

// Pending returns snapshots of the gates currently awaiting a decision,
// oldest first
func (b *Broker) Pending() []*api.ApprovalRequest {
	b.mu.Lock()
	defer b.mu.Unlock()

	res := make([]*api.ApprovalRequest, 0, len(b.pending))
	for _, p := range b.pending {
		req := *p.req
		req.Gate = p.req.Gate.Clone()
		res = append(res, &req)
	}
	slices.SortFunc(res, func(l, r *api.ApprovalRequest) int {
		if c := l.RequestedAt.Compare(r.RequestedAt); c != 0 {
			return c
		}
		if c := cmp.Compare(l.RunID, r.RunID); c != 0 {
			return c
		}
		return cmp.Compare(l.StepID, r.StepID)
	})
	return res
}

func (b *Broker) await(ctx context.Context, req *api.ApprovalRequest) bool {
	if !req.Gate.Blocks() || req.Gate.IsResolved() {
		return engine.DefaultApprovalHandler(ctx, req)
	}

	key := gateKey{runID: req.RunID, stepID: req.StepID}
	p := &pendingGate{req: req, done: make(chan struct{})}
	b.mu.Lock()
	b.pending[key] = p
	b.mu.Unlock()

	slog.Info("Awaiting approval",
		log.WorkflowID(req.WorkflowID),
		log.RunID(req.RunID),
		log.StepID(req.StepID),
		slog.String("level", string(req.Gate.EffectiveLevel())))

	var timeout <-chan time.Time
	if b.timeout > 0 {
		t := time.NewTimer(b.timeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-p.done:
	case <-ctx.Done():
		b.expire(key, p, func(g *api.ApprovalGate) {
			g.Reject(CanceledRejection)
		})
	case <-timeout:
		b.expire(key, p, func(g *api.ApprovalGate) {
			if g.EffectiveLevel() == api.ApprovalSoft {
				g.Approve(api.SystemApprover)
				return
			}
			g.Reject(TimeoutRejection)
		})
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return req.Gate.Approved
}

func (b *Broker) expire(
	key gateKey, p *pendingGate, settle func(*api.ApprovalGate),
) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending[key] != p {
		return
	}
	settle(p.req.Gate)
	delete(b.pending, key)
	slog.Warn("Approval expired",
		log.RunID(key.runID),
		log.StepID(key.stepID),
		slog.Bool("approved", p.req.Gate.Approved))
}

func (b *Broker) lookup(
	runID api.RunID, stepID api.StepID,
) (*pendingGate, error) {
	p, ok := b.pending[gateKey{runID: runID, stepID: stepID}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s",
			ErrApprovalNotFound, runID, stepID)
	}
	return p, nil
}

func (b *Broker) release(runID api.RunID, stepID api.StepID, p *pendingGate) {
	if !p.req.Gate.IsResolved() {
		return
	}
	delete(b.pending, gateKey{runID: runID, stepID: stepID})
	close(p.done)
}
