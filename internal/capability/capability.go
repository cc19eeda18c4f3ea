package capability

import (
	"context"

	"github.com/kode4food/cadence/pkg/api"
)

type (
	// Capability is a named unit of work a step delegates to. It returns a
	// value or an error and nothing else is assumed about it
	Capability interface {
		Invoke(ctx context.Context, args api.Args) (any, error)
	}

	// Func adapts an ordinary function into a Capability
	Func func(ctx context.Context, args api.Args) (any, error)

	metadataKey struct{}
)

var _ Capability = Func(nil)

func (f Func) Invoke(ctx context.Context, args api.Args) (any, error) {
	return f(ctx, args)
}

// WithMetadata attaches invocation metadata to the context so that adapters
// which forward it, such as HTTP, can pass it along
func WithMetadata(ctx context.Context, meta api.Metadata) context.Context {
	return context.WithValue(ctx, metadataKey{}, meta)
}

// MetadataFrom returns the invocation metadata attached to ctx, if any
func MetadataFrom(ctx context.Context) api.Metadata {
	meta, _ := ctx.Value(metadataKey{}).(api.Metadata)
	return meta
}
