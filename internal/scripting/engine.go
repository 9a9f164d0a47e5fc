package scripting

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// ErrNoChain is returned when no chain_<name> function is defined.
var ErrNoChain = errors.New("chain builder not defined")

// Engine wraps a single gopher-lua VM. LState is not goroutine safe, so
// every call into the VM holds mu.
type Engine struct {
	mu  sync.Mutex
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads the scripts in dir and its
// chains/ and hooks/ subdirectories. Missing directories are skipped.
func NewEngine(dir string, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	for _, sub := range []string{"", "chains", "hooks"} {
		p := filepath.Join(dir, sub)
		if err := e.loadDir(p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load scripts %s: %w", p, err)
		}
	}
	return e, nil
}

func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// HasChain reports whether chain_<name> is defined.
func (e *Engine) HasChain(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.vm.GetGlobal("chain_" + name).(*lua.LFunction)
	return ok
}

// BuildChain calls chain_<name>(payload) and returns its result, typically a
// *lua.LTable the locator can walk with TableProbe. A nil Lua result is
// returned as nil. Scripts must not keep or mutate the returned table.
func (e *Engine) BuildChain(name string, payload any) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn, ok := e.vm.GetGlobal("chain_" + name).(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("chain %q: %w", name, ErrNoChain)
	}
	if err := e.vm.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, toLua(e.vm, payload)); err != nil {
		return nil, fmt.Errorf("chain %q: %w", name, err)
	}
	ret := e.vm.Get(-1)
	e.vm.Pop(1)
	if ret == lua.LNil {
		return nil, nil
	}
	return ret, nil
}

// ResolvedContext describes a finished resolution for the on_resolved hook.
type ResolvedContext struct {
	ActorID  string
	Action   string
	Found    bool
	Strategy string
	Region   string
	X, Y, Z  int
	CellType string
}

// OnResolved calls the optional on_resolved(ctx) hook and returns its string
// verdict. A missing hook, a failing hook or a non-string result yields "".
func (e *Engine) OnResolved(ctx ResolvedContext) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn, ok := e.vm.GetGlobal("on_resolved").(*lua.LFunction)
	if !ok {
		return ""
	}
	t := e.vm.NewTable()
	t.RawSetString("actor_id", lua.LString(ctx.ActorID))
	t.RawSetString("action", lua.LString(ctx.Action))
	t.RawSetString("found", lua.LBool(ctx.Found))
	t.RawSetString("strategy", lua.LString(ctx.Strategy))
	if ctx.Found {
		t.RawSetString("region", lua.LString(ctx.Region))
		t.RawSetString("x", lua.LNumber(ctx.X))
		t.RawSetString("y", lua.LNumber(ctx.Y))
		t.RawSetString("z", lua.LNumber(ctx.Z))
	}
	if ctx.CellType != "" {
		t.RawSetString("cell_type", lua.LString(ctx.CellType))
	}

	if err := e.vm.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, t); err != nil {
		e.log.Error("lua on_resolved error", zap.Error(err))
		return ""
	}
	ret := e.vm.Get(-1)
	e.vm.Pop(1)
	if s, ok := ret.(lua.LString); ok {
		return string(s)
	}
	return ""
}

func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}

// toLua converts a decoded JSON value into Lua values.
func toLua(L *lua.LState, v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(x)
	case string:
		return lua.LString(x)
	case float64:
		return lua.LNumber(x)
	case int:
		return lua.LNumber(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return lua.LString(x.String())
		}
		return lua.LNumber(f)
	case []any:
		t := L.CreateTable(len(x), 0)
		for _, item := range x {
			t.Append(toLua(L, item))
		}
		return t
	case map[string]any:
		t := L.CreateTable(0, len(x))
		for k, item := range x {
			t.RawSetString(k, toLua(L, item))
		}
		return t
	default:
		return lua.LString(fmt.Sprint(x))
	}
}
