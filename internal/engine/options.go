package engine

import "github.com/kode4food/cadence/pkg/api"

type (
	// Options contains optional parameters for a single run
	Options struct {
		RunID     api.RunID
		Approvals ApprovalHandler
		Metadata  api.Metadata
	}

	// Applier mutates Options when a run is set up
	Applier func(*Options)
)

// ApplyOptions applies option appliers in order
func ApplyOptions(opt *Options, apps ...Applier) {
	for _, app := range apps {
		app(opt)
	}
}

// WithRunID sets the run ID instead of generating one
func WithRunID(id api.RunID) Applier {
	return func(opt *Options) {
		opt.RunID = id
	}
}

// WithApprovalHandler overrides the engine's approval handler for one run
func WithApprovalHandler(h ApprovalHandler) Applier {
	return func(opt *Options) {
		opt.Approvals = h
	}
}

// WithMetadata sets metadata that is recorded on the result and forwarded
// to capabilities
func WithMetadata(meta api.Metadata) Applier {
	return func(opt *Options) {
		opt.Metadata = meta
	}
}
