package helpers

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kode4food/cadence/internal/capability"
	"github.com/kode4food/cadence/pkg/api"
)

// MockCapability records invocations and returns canned responses. One mock
// may stand in for several capability names
type MockCapability struct {
	responses map[string]any
	errors    map[string]error
	invoked   []string
	args      map[string][]api.Args
	metadata  map[string][]api.Metadata
	invokedCh map[string]chan struct{}
	mu        sync.Mutex
}

// NewMockCapability creates a mock whose capabilities return nil until a
// response or error is configured
func NewMockCapability() *MockCapability {
	return &MockCapability{
		responses: map[string]any{},
		errors:    map[string]error{},
		args:      map[string][]api.Args{},
		metadata:  map[string][]api.Metadata{},
		invokedCh: map[string]chan struct{}{},
	}
}

// For returns a capability that records its invocations under name
func (m *MockCapability) For(name string) capability.Capability {
	return capability.Func(
		func(ctx context.Context, args api.Args) (any, error) {
			return m.invoke(ctx, name, args)
		},
	)
}

func (m *MockCapability) invoke(
	ctx context.Context, name string, args api.Args,
) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.invoked = append(m.invoked, name)
	m.args[name] = append(m.args[name], args.Clone())
	m.metadata[name] = append(m.metadata[name], capability.MetadataFrom(ctx))
	if ch, ok := m.invokedCh[name]; ok {
		select {
		case ch <- struct{}{}:
		default:
		}
	}

	if err, ok := m.errors[name]; ok {
		return nil, err
	}
	return m.responses[name], nil
}

// SetResponse configures the value returned by a capability
func (m *MockCapability) SetResponse(name string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[name] = value
}

// SetError configures a capability to fail with err
func (m *MockCapability) SetError(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[name] = err
}

// ClearError removes any configured error for a capability
func (m *MockCapability) ClearError(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.errors, name)
}

// GetInvocations returns the invoked capability names in call order
func (m *MockCapability) GetInvocations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.invoked)
}

// WasInvoked returns whether a capability was invoked
func (m *MockCapability) WasInvoked(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Contains(m.invoked, name)
}

// Invocations returns how many times a capability was invoked
func (m *MockCapability) Invocations(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.args[name])
}

// LastArgs returns the arguments of the most recent invocation
func (m *MockCapability) LastArgs(name string) api.Args {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.args[name]
	if len(entries) == 0 {
		return nil
	}
	return entries[len(entries)-1]
}

// LastMetadata returns the metadata of the most recent invocation
func (m *MockCapability) LastMetadata(name string) api.Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.metadata[name]
	if len(entries) == 0 {
		return nil
	}
	return entries[len(entries)-1]
}

// WaitForInvocation blocks until a capability is invoked or the timeout
// expires
func (m *MockCapability) WaitForInvocation(
	name string, timeout time.Duration,
) bool {
	m.mu.Lock()
	if slices.Contains(m.invoked, name) {
		m.mu.Unlock()
		return true
	}
	ch, ok := m.invokedCh[name]
	if !ok {
		ch = make(chan struct{}, 1)
		m.invokedCh[name] = ch
	}
	m.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
		return m.WasInvoked(name)
	}
}
