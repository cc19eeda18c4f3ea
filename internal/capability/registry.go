package capability

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/kode4food/cadence/pkg/api"
)

// Registry maps capability names to implementations. It is safe for
// concurrent lookups; registration normally happens once at start-up
type Registry struct {
	caps map[string]Capability
	mu   sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		caps: map[string]Capability{},
	}
}

// Register adds a capability under name, replacing any existing entry
func (r *Registry) Register(name string, c Capability) error {
	if name == "" {
		return ErrNameEmpty
	}
	if c == nil {
		return fmt.Errorf("%w: %s", ErrNilCapability, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps[name] = c
	return nil
}

// MustRegister is Register for start-up code, panicking on error
func (r *Registry) MustRegister(name string, c Capability) {
	if err := r.Register(name, c); err != nil {
		panic(err)
	}
}

// RegisterFunc registers a plain function as a capability
func (r *Registry) RegisterFunc(
	name string, fn func(context.Context, api.Args) (any, error),
) error {
	return r.Register(name, Func(fn))
}

// Get returns the capability registered under name
func (r *Registry) Get(name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[name]
	return c, ok
}

// Names returns the registered capability names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]string, 0, len(r.caps))
	for name := range r.caps {
		res = append(res, name)
	}
	slices.Sort(res)
	return res
}

// Invoke resolves name and calls the capability, reporting how long the
// call took. A missing capability yields api.ErrCapabilityNotFound, and any
// failure of the capability itself is wrapped in api.ErrCapabilityExecution
func (r *Registry) Invoke(
	ctx context.Context, name string, args api.Args,
) (any, time.Duration, error) {
	c, ok := r.Get(name)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", api.ErrCapabilityNotFound, name)
	}

	start := time.Now()
	res, err := invokeWithRecovery(ctx, c, args)
	dur := time.Since(start)
	if err != nil {
		return nil, dur, fmt.Errorf("%w: %s: %w",
			api.ErrCapabilityExecution, name, err)
	}
	return res, dur, nil
}

func invokeWithRecovery(
	ctx context.Context, c Capability, args api.Args,
) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return c.Invoke(ctx, args)
}
