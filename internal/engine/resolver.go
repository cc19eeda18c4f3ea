package engine

import (
	"strconv"

	"github.com/kode4food/cadence/pkg/api"
)

// Resolve resolves a single reference string against the context. Strings
// that are not references are returned unchanged. A path that cannot be
// followed yields nil and false, never an error
func Resolve(ref string, ctx Context) (any, bool) {
	if !api.IsReference(ref) {
		return ref, true
	}
	r, err := api.ParseReference(ref)
	if err != nil {
		return ref, true
	}
	return ResolveReference(r, ctx)
}

// ResolveReference walks a parsed reference through the context. A bare step
// reference yields that step's output value. The value returned is a copy,
// so callers may modify it freely
func ResolveReference(r api.Reference, ctx Context) (any, bool) {
	val, ok := ctx[r.Root]
	if !ok {
		return nil, false
	}
	for _, seg := range r.Path {
		if val, ok = field(val, seg); !ok {
			return nil, false
		}
	}
	if out, ok := val.(*api.StepOutput); ok {
		val = out.Value
	}
	return api.CloneValue(val), true
}

// ResolveArgs resolves every reference found in args, descending into nested
// maps and slices. Arguments whose reference is absent are omitted, while
// absent references inside slices become nil
func ResolveArgs(args api.Args, ctx Context) api.Args {
	res := make(api.Args, len(args))
	for k, v := range args {
		if r, ok := resolveValue(v, ctx); ok {
			res[k] = r
		}
	}
	return res
}

// StepArgs merges a step's inputFrom references over its args and resolves
// the result against the context
func StepArgs(step *api.WorkflowStep, ctx Context) api.Args {
	merged := step.Args.Clone()
	if merged == nil {
		merged = api.Args{}
	}
	for name, ref := range step.InputFrom {
		merged[name] = ref
	}
	return ResolveArgs(merged, ctx)
}

func resolveValue(v any, ctx Context) (any, bool) {
	switch v := v.(type) {
	case string:
		return Resolve(v, ctx)
	case api.Args:
		return ResolveArgs(v, ctx), true
	case map[api.Name]any:
		return map[api.Name]any(ResolveArgs(v, ctx)), true
	case map[string]any:
		res := make(map[string]any, len(v))
		for k, elem := range v {
			if r, ok := resolveValue(elem, ctx); ok {
				res[k] = r
			}
		}
		return res, true
	case []any:
		res := make([]any, len(v))
		for i, elem := range v {
			res[i], _ = resolveValue(elem, ctx)
		}
		return res, true
	default:
		return v, true
	}
}

func field(val any, name string) (any, bool) {
	switch v := val.(type) {
	case api.Fielder:
		return v.Field(name)
	case map[string]any:
		res, ok := v[name]
		return res, ok
	case api.Args:
		res, ok := v[api.Name(name)]
		return res, ok
	case map[api.Name]any:
		res, ok := v[api.Name(name)]
		return res, ok
	case []any:
		idx, err := strconv.Atoi(name)
		if err != nil || idx < 0 || idx >= len(v) {
			return nil, false
		}
		return v[idx], true
	default:
		return nil, false
	}
}
