package capability

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/Shopify/go-lua"

	"github.com/kode4food/cadence/pkg/api"
	"github.com/kode4food/cadence/pkg/util"
)

type (
	// LuaEnv compiles and runs sandboxed Lua scripts, pooling interpreter
	// states between invocations
	LuaEnv struct {
		statePool chan *lua.State
		scripts   *util.Cache[string, *LuaCapability]
	}

	// LuaCapability runs a compiled Lua chunk. Declared arguments are bound
	// as locals and the chunk's return value becomes the capability result
	LuaCapability struct {
		env      *LuaEnv
		bytecode []byte
		argNames []string
	}
)

const (
	luaStatePoolSize    = 10
	luaScriptCacheSize  = 256
	luaGlobalTableIndex = -2
	luaArrayTableIndex  = -3
	luaMapTableIndex    = -3
	luaArgLocalTemplate = "local %s = select(%d, ...)"
	luaGlobalTableName  = "_G"
	luaSeparator        = "\n"
	luaChunkName        = "capability"
)

var luaExclude = [...]string{
	"io", "os", "debug", "package", "require", "dofile", "loadfile", "load",
}

var _ Capability = (*LuaCapability)(nil)

// NewLuaEnv creates a Lua environment with an empty state pool
func NewLuaEnv() *LuaEnv {
	return &LuaEnv{
		statePool: make(chan *lua.State, luaStatePoolSize),
		scripts: util.NewCache[string, *LuaCapability](
			luaScriptCacheSize,
		),
	}
}

// Compile builds a capability from a script and the names of the arguments
// it expects. Identical scripts share their compiled form
func (e *LuaEnv) Compile(
	script string, names []api.Name,
) (*LuaCapability, error) {
	if strings.TrimSpace(script) == "" {
		return nil, ErrScriptEmpty
	}
	argNames, err := sortedArgNames(names)
	if err != nil {
		return nil, err
	}

	key := scriptCacheKey(script, argNames)
	return e.scripts.Get(key, func() (*LuaCapability, error) {
		bytecode, err := e.compile(script, argNames)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLuaLoad, err)
		}
		return &LuaCapability{
			env:      e,
			bytecode: bytecode,
			argNames: argNames,
		}, nil
	})
}

func (c *LuaCapability) Invoke(
	_ context.Context, args api.Args,
) (any, error) {
	L := c.env.getState()
	defer c.env.returnState(L)

	c.env.setupSandbox(L)
	err := L.Load(bytes.NewReader(c.bytecode), luaChunkName, "b")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLuaLoad, err)
	}

	for _, arg := range scriptArgs(args, c.argNames) {
		goToLua(L, arg)
	}

	if err := L.ProtectedCall(len(c.argNames), 1, 0); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLuaExecution, err)
	}

	res := luaToGo(L, -1)
	L.Pop(1)
	return res, nil
}

func (e *LuaEnv) compile(script string, argNames []string) ([]byte, error) {
	argLocals := make([]string, len(argNames))
	for i, name := range argNames {
		argLocals[i] = fmt.Sprintf(luaArgLocalTemplate, name, i+1)
	}
	src := strings.Join(argLocals, luaSeparator) + luaSeparator + script

	L := lua.NewState()
	e.setupSandbox(L)

	if err := lua.LoadString(L, src); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := L.Dump(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *LuaEnv) setupSandbox(L *lua.State) {
	lua.OpenLibraries(L)
	L.Global(luaGlobalTableName)
	for _, name := range luaExclude {
		L.PushNil()
		L.SetField(luaGlobalTableIndex, name)
	}
	L.Pop(1)
}

func (e *LuaEnv) getState() *lua.State {
	select {
	case L := <-e.statePool:
		return L
	default:
		return lua.NewState()
	}
}

func (e *LuaEnv) returnState(L *lua.State) {
	L.SetTop(0)

	select {
	case e.statePool <- L:
	default:
	}
}

func goToLua(L *lua.State, value any) {
	switch v := value.(type) {
	case string:
		L.PushString(v)
	case bool:
		L.PushBoolean(v)
	case int:
		L.PushInteger(v)
	case int64:
		L.PushInteger(int(v))
	case float64:
		L.PushNumber(v)
	case []any:
		pushLuaArray(L, v)
	case map[string]any:
		pushLuaMap(L, v)
	case api.Args:
		pushLuaMap(L, v.ToMap())
	case nil:
		L.PushNil()
	default:
		if f, ok := api.ToFloat(v); ok {
			L.PushNumber(f)
			return
		}
		L.PushString(fmt.Sprintf("%v", v))
	}
}

func pushLuaArray(L *lua.State, arr []any) {
	L.CreateTable(len(arr), 0)
	for i, item := range arr {
		L.PushInteger(i + 1)
		goToLua(L, item)
		L.SetTable(luaArrayTableIndex)
	}
}

func pushLuaMap(L *lua.State, m map[string]any) {
	L.CreateTable(0, len(m))
	for k, val := range m {
		L.PushString(k)
		goToLua(L, val)
		L.SetTable(luaMapTableIndex)
	}
}

func luaNumberToGo(L *lua.State, index int) any {
	num, _ := L.ToNumber(index)
	if num == float64(int(num)) {
		return int(num)
	}
	return num
}

func luaToGo(L *lua.State, index int) any {
	switch L.TypeOf(index) {
	case lua.TypeBoolean:
		return L.ToBoolean(index)
	case lua.TypeNumber:
		return luaNumberToGo(L, index)
	case lua.TypeString:
		s, _ := L.ToString(index)
		return s
	case lua.TypeTable:
		return luaTableToGo(L, index)
	default:
		return nil
	}
}

func luaTableToGo(L *lua.State, index int) any {
	isArray := true
	length := 0

	L.PushNil()
	for L.Next(index - 1) {
		if L.TypeOf(-2) != lua.TypeNumber {
			isArray = false
			L.Pop(2)
			break
		}
		length++
		L.Pop(1)
	}

	if isArray && length > 0 {
		return luaArrayToGo(L, index, length)
	}

	res := map[string]any{}
	L.PushNil()
	for L.Next(index - 1) {
		var key string
		if L.TypeOf(-2) == lua.TypeString {
			key, _ = L.ToString(-2)
		} else {
			key = fmt.Sprintf("%v", luaToGo(L, -2))
		}
		res[key] = luaToGo(L, -1)
		L.Pop(1)
	}
	return res
}

func luaArrayToGo(L *lua.State, index, length int) []any {
	arr := make([]any, length)
	absIndex := index
	if index < 0 {
		absIndex = L.Top() + index + 1
	}
	for i := 1; i <= length; i++ {
		L.RawGetInt(absIndex, i)
		arr[i-1] = luaToGo(L, -1)
		L.Pop(1)
	}
	return arr
}
