package scripting

import (
	"math"
	"sort"
	"strings"

	"github.com/aimloc/server/internal/locate"
	lua "github.com/yuin/gopher-lua"
)

// TableProbe lets the locator walk Lua tables. Members are the table's string
// keys in sorted order; function values are not invoked.
type TableProbe struct{}

func (TableProbe) Accepts(v any) bool {
	_, ok := v.(*lua.LTable)
	return ok
}

func (TableProbe) Leaf(any) bool { return false }

func (TableProbe) Shape(v any) string {
	t, _ := v.(*lua.LTable)
	return "lua{" + strings.Join(tableKeys(t), ",") + "}"
}

func (TableProbe) Members(v any) ([]locate.Member, error) {
	t, ok := v.(*lua.LTable)
	if !ok {
		return nil, locate.ErrNoMember
	}
	keys := tableKeys(t)
	out := make([]locate.Member, 0, len(keys))
	for _, k := range keys {
		out = append(out, locate.Member{Name: k, Type: t.RawGetString(k).Type().String()})
	}
	return out, nil
}

func (TableProbe) Int(v any, name string) (int, error) {
	lv, err := rawGet(v, name)
	if err != nil {
		return 0, err
	}
	n, ok := lv.(lua.LNumber)
	if !ok {
		return 0, locate.ErrNotInt
	}
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, locate.ErrNotInt
	}
	return int(math.Floor(f)), nil
}

func (TableProbe) Get(v any, name string) (any, error) {
	lv, err := rawGet(v, name)
	if err != nil {
		return nil, err
	}
	switch x := lv.(type) {
	case *lua.LTable:
		return x, nil
	case lua.LString:
		return string(x), nil
	case lua.LNumber:
		return float64(x), nil
	case lua.LBool:
		return bool(x), nil
	default:
		return lv, nil
	}
}

func rawGet(v any, name string) (lua.LValue, error) {
	t, ok := v.(*lua.LTable)
	if !ok {
		return nil, locate.ErrNoMember
	}
	lv := t.RawGetString(name)
	if lv == lua.LNil {
		return nil, locate.ErrNoMember
	}
	return lv, nil
}

func tableKeys(t *lua.LTable) []string {
	if t == nil {
		return nil
	}
	var keys []string
	t.ForEach(func(k, _ lua.LValue) {
		if s, ok := k.(lua.LString); ok {
			keys = append(keys, string(s))
		}
	})
	sort.Strings(keys)
	return keys
}
