package builder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kode4food/cadence/pkg/api"
	"github.com/kode4food/cadence/pkg/log"
)

type (
	// CapabilityFunc implements a capability served over HTTP
	CapabilityFunc func(*CapabilityContext, api.Args) (any, error)

	// CapabilityContext carries the request context and the metadata the
	// engine sends along with each invocation
	CapabilityContext struct {
		context.Context
		Metadata api.Metadata
	}
)

var ErrHandlerPanic = errors.New("capability handler panicked")

// WorkflowID returns the ID of the invoking workflow, if sent
func (c *CapabilityContext) WorkflowID() api.WorkflowID {
	id, _ := api.GetMetaString[api.WorkflowID](c.Metadata, api.MetaWorkflowID)
	return id
}

// RunID returns the ID of the invoking run, if sent
func (c *CapabilityContext) RunID() api.RunID {
	id, _ := api.GetMetaString[api.RunID](c.Metadata, api.MetaRunID)
	return id
}

// StepID returns the ID of the invoking step, if sent
func (c *CapabilityContext) StepID() api.StepID {
	id, _ := api.GetMetaString[api.StepID](c.Metadata, api.MetaStepID)
	return id
}

// NewCapabilityHandler adapts fn into an HTTP handler that speaks the
// engine's capability wire format. Panics in fn are reported as failures
func NewCapabilityHandler(fn CapabilityFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req api.CapabilityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}

		cc := &CapabilityContext{
			Context:  r.Context(),
			Metadata: req.Metadata,
		}
		res := invokeWithRecovery(cc, fn, req.Arguments)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(res)
	}
}

func invokeWithRecovery(
	cc *CapabilityContext, fn CapabilityFunc, args api.Args,
) (res *api.CapabilityResponse) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Capability handler panicked",
				log.StepID(cc.StepID()),
				slog.Any("panic", r))
			res = &api.CapabilityResponse{
				Error: fmt.Errorf("%w: %v", ErrHandlerPanic, r).Error(),
			}
		}
	}()

	out, err := fn(cc, args)
	if err != nil {
		return &api.CapabilityResponse{Error: err.Error()}
	}
	return &api.CapabilityResponse{Success: true, Result: out}
}
