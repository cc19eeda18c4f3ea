package api_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/cadence/pkg/api"
)

func TestArgsSet(t *testing.T) {
	var empty api.Args
	res := empty.Set("x", 1)
	assert.Equal(t, api.Args{"x": 1}, res)

	orig := api.Args{"a": 1}
	res = orig.Set("b", 2)
	assert.Equal(t, api.Args{"a": 1}, orig)
	assert.Equal(t, api.Args{"a": 1, "b": 2}, res)
}

func TestArgsMerge(t *testing.T) {
	a := api.Args{"x": 1, "y": 2}
	b := api.Args{"y": 3, "z": 4}
	res := a.Merge(b)
	assert.Equal(t, api.Args{"x": 1, "y": 3, "z": 4}, res)
	assert.Equal(t, api.Args{"x": 1, "y": 2}, a)
}

func TestArgsClone(t *testing.T) {
	orig := api.Args{
		"nested": map[string]any{"k": "v"},
		"list":   []any{1, map[string]any{"deep": true}},
	}
	clone := orig.Clone()
	assert.Equal(t, orig, clone)

	clone["nested"].(map[string]any)["k"] = "changed"
	clone["list"].([]any)[1].(map[string]any)["deep"] = false

	assert.Equal(t, "v", orig["nested"].(map[string]any)["k"])
	assert.Equal(t, true, orig["list"].([]any)[1].(map[string]any)["deep"])

	var nilArgs api.Args
	assert.Nil(t, nilArgs.Clone())
}

func TestArgsGetters(t *testing.T) {
	args := api.Args{
		"str":   "hello",
		"bool":  true,
		"int":   42,
		"float": 2.5,
		"json":  float64(7),
	}

	t.Run("string", func(t *testing.T) {
		assert.Equal(t, "hello", args.GetString("str", "x"))
		assert.Equal(t, "x", args.GetString("missing", "x"))
		assert.Equal(t, "x", args.GetString("int", "x"))
	})

	t.Run("bool", func(t *testing.T) {
		assert.True(t, args.GetBool("bool", false))
		assert.True(t, args.GetBool("missing", true))
		assert.False(t, args.GetBool("str", false))
	})

	t.Run("int", func(t *testing.T) {
		assert.Equal(t, 42, args.GetInt("int", 0))
		assert.Equal(t, 7, args.GetInt("json", 0))
		assert.Equal(t, -1, args.GetInt("str", -1))
	})

	t.Run("float", func(t *testing.T) {
		assert.Equal(t, 2.5, args.GetFloat("float", 0))
		assert.Equal(t, 42.0, args.GetFloat("int", 0))
		assert.Equal(t, 1.5, args.GetFloat("missing", 1.5))
	})
}

func TestArgsMapConversion(t *testing.T) {
	args := api.Args{"a": 1}
	m := args.ToMap()
	assert.Equal(t, map[string]any{"a": 1}, m)
	assert.Equal(t, args, api.ArgsFromMap(m))
}

func TestToFloat(t *testing.T) {
	for _, v := range []any{
		int(3), int8(3), int16(3), int32(3), int64(3),
		uint(3), uint8(3), uint16(3), uint32(3), uint64(3),
		float32(3), float64(3),
	} {
		f, ok := api.ToFloat(v)
		assert.True(t, ok)
		assert.Equal(t, 3.0, f)
	}

	_, ok := api.ToFloat("3")
	assert.False(t, ok)
}
