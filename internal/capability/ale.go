package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/kode4food/ale"
	"github.com/kode4food/ale/core/bootstrap"
	"github.com/kode4food/ale/data"
	"github.com/kode4food/ale/env"
	"github.com/kode4food/ale/eval"

	"github.com/kode4food/cadence/pkg/api"
	"github.com/kode4food/cadence/pkg/util"
)

type (
	// AleEnv compiles Ale scripts into procedures over a shared bootstrapped
	// environment
	AleEnv struct {
		env     *env.Environment
		scripts *util.Cache[string, *AleCapability]
	}

	// AleCapability calls a compiled Ale lambda whose parameters are the
	// declared argument names, in sorted order
	AleCapability struct {
		proc     data.Procedure
		argNames []string
	}
)

const (
	aleLambdaTemplate  = "(lambda (%s) %s)"
	aleScriptCacheSize = 256
)

var _ Capability = (*AleCapability)(nil)

// NewAleEnv creates an Ale environment with the core library loaded
func NewAleEnv() *AleEnv {
	e := env.NewEnvironment()
	bootstrap.Into(e)
	return &AleEnv{
		env:     e,
		scripts: util.NewCache[string, *AleCapability](aleScriptCacheSize),
	}
}

// Compile builds a capability from a script body and the names of the
// arguments it expects. Identical scripts share their compiled form
func (e *AleEnv) Compile(
	script string, names []api.Name,
) (*AleCapability, error) {
	if strings.TrimSpace(script) == "" {
		return nil, ErrScriptEmpty
	}
	argNames, err := sortedArgNames(names)
	if err != nil {
		return nil, err
	}

	key := scriptCacheKey(script, argNames)
	return e.scripts.Get(key, func() (*AleCapability, error) {
		proc, err := e.compile(script, argNames)
		if err != nil {
			return nil, err
		}
		return &AleCapability{
			proc:     proc,
			argNames: argNames,
		}, nil
	})
}

func (c *AleCapability) Invoke(
	_ context.Context, args api.Args,
) (any, error) {
	inputs := scriptArgs(args, c.argNames)
	vals := make(data.Vector, len(inputs))
	for i, in := range inputs {
		vals[i] = goToAle(in)
	}

	res, err := catchPanic(ErrAleCall,
		func() (ale.Value, error) {
			return c.proc.Call(vals...), nil
		},
	)
	if err != nil {
		return nil, err
	}
	return aleToGo(res), nil
}

func (e *AleEnv) compile(
	script string, argNames []string,
) (data.Procedure, error) {
	src := fmt.Sprintf(
		aleLambdaTemplate, strings.Join(argNames, " "), script,
	)

	return catchPanic(ErrAleCompile,
		func() (data.Procedure, error) {
			ns := e.env.GetAnonymous()
			res, err := eval.String(ns, data.String(src))
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrAleCompile, err)
			}

			proc, ok := res.(data.Procedure)
			if !ok {
				return nil, fmt.Errorf("%w, got: %T", ErrAleNotProcedure, res)
			}
			return proc, nil
		},
	)
}

func goToAle(value any) ale.Value {
	switch v := value.(type) {
	case string:
		return data.String(v)
	case bool:
		return data.Bool(v)
	case int:
		return data.Integer(v)
	case int64:
		return data.Integer(v)
	case float64:
		return data.Float(v)
	case []any:
		vec := make(data.Vector, len(v))
		for i, item := range v {
			vec[i] = goToAle(item)
		}
		return vec
	case map[string]any:
		return mapToAle(v)
	case api.Args:
		return mapToAle(v.ToMap())
	case nil:
		return data.Null
	default:
		if f, ok := api.ToFloat(v); ok {
			return data.Float(f)
		}
		return data.String(fmt.Sprintf("%v", v))
	}
}

func mapToAle(m map[string]any) *data.Object {
	obj := data.NewObject()
	for k, val := range m {
		pair := data.NewCons(data.Keyword(k), goToAle(val))
		obj = obj.Put(pair).(*data.Object)
	}
	return obj
}

func aleToGo(value ale.Value) any {
	switch v := value.(type) {
	case data.Bool:
		return bool(v)
	case data.String:
		return string(v)
	case data.Keyword:
		return string(v)
	case data.Integer:
		return int(v)
	case data.Float:
		return float64(v)
	case data.Vector:
		res := make([]any, len(v))
		for i, item := range v {
			res[i] = aleToGo(item)
		}
		return res
	case *data.List:
		return aleListToGo(v)
	case *data.Object:
		res := map[string]any{}
		for _, pair := range v.Pairs() {
			key := fmt.Sprintf("%v", aleToGo(pair.Car()))
			res[key] = aleToGo(pair.Cdr())
		}
		return res
	default:
		if value == data.Null {
			return nil
		}
		return fmt.Sprintf("%v", v)
	}
}

func aleListToGo(list *data.List) []any {
	var res []any
	for l := list; !l.IsEmpty(); {
		head, tail, ok := l.Split()
		if !ok {
			break
		}
		res = append(res, aleToGo(head))
		l = tail.(*data.List)
	}
	return res
}

func catchPanic[T any](
	baseErr error, fn func() (T, error),
) (res T, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e, ok := r.(error); ok {
			err = fmt.Errorf("%w: %w", baseErr, e)
			return
		}
		err = fmt.Errorf("%w: %v", baseErr, r)
	}()
	return fn()
}
