package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/cadence/internal/approval"
	"github.com/kode4food/cadence/internal/capability"
	"github.com/kode4food/cadence/internal/config"
	"github.com/kode4food/cadence/internal/engine"
	"github.com/kode4food/cadence/internal/events"
	"github.com/kode4food/cadence/internal/store"
	"github.com/kode4food/cadence/pkg/api"
)

// TestEnv holds all the components needed for engine and server testing
type TestEnv struct {
	Config   *config.Config
	Redis    *miniredis.Miniredis
	Store    *store.Store
	Hub      *events.Hub
	Registry *capability.Registry
	Broker   *approval.Broker
	Engine   *engine.Engine
	Mock     *MockCapability
	Cleanup  func()
}

const defaultStoreTimeout = 5 * time.Second

// NewTestConfig creates a default configuration with debug logging and
// short timeouts
func NewTestConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.LogLevel = "debug"
	cfg.CapabilityTimeout = 5 * time.Second
	cfg.ApprovalTimeout = 5 * time.Second
	cfg.ShutdownTimeout = 2 * time.Second
	cfg.Store.Prefix = "test"
	return cfg
}

// NewTestEnv creates a fully wired environment backed by an in-memory Redis.
// Finished runs are recorded in the store through the event hub, the same
// way the service does it
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)

	cfg := NewTestConfig()
	cfg.Store.Addr = server.Addr()
	st := store.New(cfg.Store)

	hub := events.NewHub()
	hub.Handle(events.FilterTypes(api.EventRunFinished),
		func(ev *api.RunEvent) error {
			ctx, cancel := context.WithTimeout(
				context.Background(), defaultStoreTimeout,
			)
			defer cancel()
			return st.SaveRun(ctx, ev.Result)
		},
	)
	hub.Start()

	reg := capability.NewRegistry()
	capability.RegisterBuiltins(reg)
	mock := NewMockCapability()

	broker := approval.NewBroker(cfg.ApprovalTimeout)
	eng, err := engine.New(cfg, engine.Dependencies{
		Registry:  reg,
		Approvals: broker.Handler(),
		Events:    hub,
	})
	require.NoError(t, err)

	env := &TestEnv{
		Config:   cfg,
		Redis:    server,
		Store:    st,
		Hub:      hub,
		Registry: reg,
		Broker:   broker,
		Engine:   eng,
		Mock:     mock,
	}
	env.Cleanup = func() {
		hub.Flush()
		_ = st.Close()
		server.Close()
	}
	return env
}

// WithTestEnv creates a test environment, executes the provided function
// with it, and ensures cleanup happens automatically
func WithTestEnv(t *testing.T, fn func(*TestEnv)) {
	t.Helper()
	env := NewTestEnv(t)
	defer env.Cleanup()
	fn(env)
}

// RegisterMock registers the environment's mock under each capability name
func (e *TestEnv) RegisterMock(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, e.Registry.Register(name, e.Mock.For(name)))
	}
}

// Execute runs a definition synchronously and fails the test on a
// definition error
func (e *TestEnv) Execute(
	t *testing.T, def *api.WorkflowDefinition, inputs api.Args,
	apps ...engine.Applier,
) *api.WorkflowResult {
	t.Helper()
	res, err := e.Engine.Execute(context.Background(), def, inputs, apps...)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}
