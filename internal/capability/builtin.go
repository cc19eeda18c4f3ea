package capability

import (
	"context"
	"fmt"

	"github.com/kode4food/cadence/pkg/api"
)

// Names of the built-in capabilities
const (
	NoopName = "noop"
	EchoName = "echo"
	FailName = "fail"
)

// Noop returns its arguments unchanged, as a plain map
var Noop = Func(func(_ context.Context, args api.Args) (any, error) {
	return args.Clone().ToMap(), nil
})

// Echo returns its "value" argument
var Echo = Func(func(_ context.Context, args api.Args) (any, error) {
	return api.CloneValue(args["value"]), nil
})

// Fail always fails, reporting its "message" argument when present
var Fail = Func(func(_ context.Context, args api.Args) (any, error) {
	if msg := args.GetString("message", ""); msg != "" {
		return nil, fmt.Errorf("%w: %s", ErrForcedFailure, msg)
	}
	return nil, ErrForcedFailure
})

// RegisterBuiltins adds the noop, echo, and fail capabilities
func RegisterBuiltins(r *Registry) {
	r.MustRegister(NoopName, Noop)
	r.MustRegister(EchoName, Echo)
	r.MustRegister(FailName, Fail)
}
