package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/cadence/internal/engine"
	"github.com/kode4food/cadence/pkg/api"
)

func TestEvaluateEmpty(t *testing.T) {
	ok, err := engine.Evaluate("", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = engine.Evaluate("   ", nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluate(t *testing.T) {
	ctx := testContext()
	tests := []struct {
		expr     string
		expected bool
	}{
		{"$load.x > 5", false},
		{"$load.x < 5", true},
		{"$load.x == 1", true},
		{"$load.x != 1", false},
		{"$load.x >= 1 and $count.total <= 3", true},
		{"$load.x > 1 or $count.total == 3", true},
		{"$load.x > 1 || $count.total == 4", false},
		{"$load.x == 1 && not $missing", true},
		{"!($load.x == 1)", false},
		{"not not $load.x", true},
		{"0 < $load.x < $count.total", true},
		{"0 < $count.total < $load.x", false},
		{"-$load.x == -1", true},
		{"$input.user == 'ada'", true},
		{`$input.user == "grace"`, false},
		{"$input.user > \"a\"", true},
		{"$missing == None", true},
		{"$missing == null", true},
		{"$missing", false},
		{"$load.items", true},
		{"$input.user", true},
		{"True", true},
		{"false", false},
		{"1.5 > 1", true},
		{"'' or 0", false},
		{"($load.x == 1) == true", true},
		{`'it\'s' == "it's"`, true},
		{"True == 1", true},
		{"False == 0", true},
		{"true != 1", false},
		{"$count.total > True", true},
		{"True > False", true},
		{"-True == -1", true},
		{"True == 'True'", false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			ok, err := engine.Evaluate(tt.expr, ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
		})
	}
}

func TestEvaluateShortCircuit(t *testing.T) {
	ctx := testContext()
	ok, err := engine.Evaluate("$missing and $missing > 1", ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = engine.Evaluate("$load.x or $missing > 1", ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateErrors(t *testing.T) {
	ctx := testContext()
	tests := []struct {
		expr string
		err  error
	}{
		{"__import__('os')", engine.ErrIdentifier},
		{"len($load.items) > 0", engine.ErrIdentifier},
		{"x = 1", engine.ErrIdentifier},
		{"$load.x = 1", engine.ErrAssignment},
		{"$load.x >", engine.ErrUnexpectedToken},
		{"($load.x > 1", engine.ErrUnexpectedToken},
		{"$load.x > 1)", engine.ErrUnexpectedToken},
		{"'open", engine.ErrUnterminatedString},
		{"$load.x > 1 ; 2", engine.ErrUnexpectedChar},
		{"$load. > 1", api.ErrInvalidReference},
		{"1.2.3 > 1", engine.ErrUnexpectedToken},
		{"$missing > 5", engine.ErrIncomparable},
		{"$input.user < 5", engine.ErrIncomparable},
		{"-$input.user", engine.ErrNotNumeric},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			ok, err := engine.Evaluate(tt.expr, ctx)
			assert.False(t, ok)
			assert.ErrorIs(t, err, api.ErrConditionEvaluation)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestCompileConditionCaches(t *testing.T) {
	first, err := engine.CompileCondition("$a.b == 1")
	require.NoError(t, err)
	second, err := engine.CompileCondition("$a.b == 1")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, "$a.b == 1", first.String())
}

func TestConditionReevaluatesAgainstContext(t *testing.T) {
	c, err := engine.CompileCondition("$step.ready")
	require.NoError(t, err)

	ctx := engine.NewContext(nil)
	ok, err := c.Eval(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ctx.Record("step", &api.StepOutput{
		Key: "result", Value: map[string]any{"ready": true},
	})
	ok, err = c.Eval(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
