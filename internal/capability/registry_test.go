package capability_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/cadence/internal/capability"
	"github.com/kode4food/cadence/pkg/api"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	r := capability.NewRegistry()
	double := capability.Func(
		func(_ context.Context, args api.Args) (any, error) {
			return args.GetInt("x", 0) * 2, nil
		},
	)

	require.NoError(t, r.Register("double", double))
	c, ok := r.Get("double")
	require.True(t, ok)

	res, err := c.Invoke(context.Background(), api.Args{"x": 4})
	require.NoError(t, err)
	assert.Equal(t, 8, res)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistryRegisterErrors(t *testing.T) {
	r := capability.NewRegistry()
	assert.ErrorIs(t, r.Register("", capability.Noop), capability.ErrNameEmpty)
	assert.ErrorIs(t, r.Register("x", nil), capability.ErrNilCapability)
	assert.Panics(t, func() { r.MustRegister("", capability.Noop) })
}

func TestRegistryNames(t *testing.T) {
	r := capability.NewRegistry()
	capability.RegisterBuiltins(r)
	require.NoError(t, r.RegisterFunc("alpha",
		func(context.Context, api.Args) (any, error) { return nil, nil },
	))

	assert.Equal(t, []string{"alpha", "echo", "fail", "noop"}, r.Names())
}

func TestRegistryInvoke(t *testing.T) {
	r := capability.NewRegistry()
	capability.RegisterBuiltins(r)

	res, dur, err := r.Invoke(context.Background(), "echo", api.Args{
		"value": "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", res)
	assert.GreaterOrEqual(t, dur.Nanoseconds(), int64(0))
}

func TestRegistryInvokeNotFound(t *testing.T) {
	r := capability.NewRegistry()
	_, _, err := r.Invoke(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, api.ErrCapabilityNotFound)
	assert.NotErrorIs(t, err, api.ErrCapabilityExecution)
}

func TestRegistryInvokeWrapsErrors(t *testing.T) {
	r := capability.NewRegistry()
	cause := errors.New("disk on fire")
	require.NoError(t, r.RegisterFunc("broken",
		func(context.Context, api.Args) (any, error) { return nil, cause },
	))

	_, _, err := r.Invoke(context.Background(), "broken", nil)
	assert.ErrorIs(t, err, api.ErrCapabilityExecution)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "broken")
}

func TestRegistryInvokeRecoversPanics(t *testing.T) {
	r := capability.NewRegistry()
	require.NoError(t, r.RegisterFunc("panicky",
		func(context.Context, api.Args) (any, error) { panic("oops") },
	))

	_, _, err := r.Invoke(context.Background(), "panicky", nil)
	assert.ErrorIs(t, err, api.ErrCapabilityExecution)
	assert.ErrorIs(t, err, capability.ErrPanic)
}

func TestRegistryConcurrentReads(t *testing.T) {
	r := capability.NewRegistry()
	capability.RegisterBuiltins(r)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Go(func() {
			res, _, err := r.Invoke(context.Background(), "echo", api.Args{
				"value": i,
			})
			assert.NoError(t, err)
			assert.Equal(t, i, res)
		})
	}
	wg.Wait()
}

func TestMetadataContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, capability.MetadataFrom(ctx))

	meta := api.Metadata{api.MetaRunID: "run-1"}
	ctx = capability.WithMetadata(ctx, meta)
	assert.Equal(t, meta, capability.MetadataFrom(ctx))
}
