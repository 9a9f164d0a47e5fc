package locate

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/aimloc/server/internal/geom"
)

var (
	ErrNoMember = errors.New("no such member")
	ErrNotInt   = errors.New("member is not an integer")
)

// Member is one named entry of a node's introspectable surface.
type Member struct {
	Name     string
	Accessor bool   // zero-argument method rather than a field/key
	Type     string // value type as reported by the probe
}

// Probe gives the locator structural access to values whose shape is not known
// at compile time. Implementations must be safe for concurrent use.
type Probe interface {
	// Accepts reports whether this probe understands v.
	Accepts(v any) bool
	// Leaf reports whether v cannot contain nested members.
	Leaf(v any) bool
	// Shape names v's concrete shape for describe-once diagnostics.
	Shape(v any) string
	// Members lists accessors first, then fields, each in introspection order.
	Members(v any) ([]Member, error)
	// Int reads a member as an integer.
	Int(v any, name string) (int, error)
	// Get reads a member as an opaque value.
	Get(v any, name string) (any, error)
}

// toInt converts numeric scalars. Fractional values are floored so world-space
// coordinates land in the cell that contains them.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			if i < math.MinInt || i > math.MaxInt {
				return 0, ErrNotInt
			}
			return int(i), nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, ErrNotInt
		}
		return floorInt(f)
	}
	rv := indirect(reflect.ValueOf(v))
	if !rv.IsValid() {
		return 0, ErrNotInt
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		if i < math.MinInt || i > math.MaxInt {
			return 0, ErrNotInt
		}
		return int(i), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt {
			return 0, ErrNotInt
		}
		return int(u), nil
	case reflect.Float32, reflect.Float64:
		return floorInt(rv.Float())
	}
	return 0, ErrNotInt
}

func floorInt(f float64) (int, error) {
	n, ok := geom.FloorInt(f)
	if !ok {
		return 0, ErrNotInt
	}
	return n, nil
}

// indirect follows pointers and interfaces. Returns the zero Value on nil.
func indirect(rv reflect.Value) reflect.Value {
	for i := 0; i < 8 && rv.IsValid(); i++ {
		switch rv.Kind() {
		case reflect.Ptr, reflect.Interface:
			if rv.IsNil() {
				return reflect.Value{}
			}
			rv = rv.Elem()
		default:
			return rv
		}
	}
	return rv
}

// ── ReflectProbe ──────────────────────────────────────────────────

// skippedAccessors are zero-arg methods that never expose structure.
var skippedAccessors = map[string]bool{
	"String":        true,
	"GoString":      true,
	"Error":         true,
	"MarshalJSON":   true,
	"MarshalText":   true,
	"MarshalBinary": true,
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// ReflectProbe walks ordinary Go values: structs (exported zero-arg methods
// and exported fields), pointers, interfaces and string-keyed maps.
type ReflectProbe struct{}

func (ReflectProbe) Accepts(v any) bool { return v != nil }

func (ReflectProbe) Leaf(v any) bool {
	rv := indirect(reflect.ValueOf(v))
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Struct:
		return false
	case reflect.Map:
		return rv.Type().Key().Kind() != reflect.String
	}
	return true
}

func (ReflectProbe) Shape(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}

func (ReflectProbe) Members(v any) ([]Member, error) {
	host := methodHost(v)
	if !host.IsValid() {
		return nil, ErrNoMember
	}
	var out []Member
	t := host.Type()
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if !accessorType(m.Name, m.Type, true) {
			continue
		}
		out = append(out, Member{Name: m.Name, Accessor: true, Type: m.Type.Out(0).String()})
	}

	rv := indirect(reflect.ValueOf(v))
	switch rv.Kind() {
	case reflect.Struct:
		st := rv.Type()
		for i := 0; i < st.NumField(); i++ {
			f := st.Field(i)
			if !f.IsExported() {
				continue
			}
			out = append(out, Member{Name: f.Name, Type: f.Type.String()})
		}
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, Member{Name: k, Type: rv.Type().Elem().String()})
		}
	}
	return out, nil
}

func (p ReflectProbe) Int(v any, name string) (int, error) {
	x, err := p.Get(v, name)
	if err != nil {
		return 0, err
	}
	return toInt(x)
}

func (ReflectProbe) Get(v any, name string) (any, error) {
	host := methodHost(v)
	if !host.IsValid() {
		return nil, ErrNoMember
	}
	if m, ok := host.Type().MethodByName(name); ok && accessorType(m.Name, m.Type, true) {
		out := host.Method(m.Index).Call(nil)
		if len(out) == 2 && !out[1].IsNil() {
			return nil, fmt.Errorf("accessor %s: %w", name, out[1].Interface().(error))
		}
		return valueOf(out[0])
	}

	rv := indirect(reflect.ValueOf(v))
	switch rv.Kind() {
	case reflect.Struct:
		sf, ok := rv.Type().FieldByName(name)
		if !ok || !sf.IsExported() {
			return nil, ErrNoMember
		}
		f, err := rv.FieldByIndexErr(sf.Index)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		return valueOf(f)
	case reflect.Map:
		kt := rv.Type().Key()
		if kt.Kind() != reflect.String {
			return nil, ErrNoMember
		}
		e := rv.MapIndex(reflect.ValueOf(name).Convert(kt))
		if !e.IsValid() {
			return nil, ErrNoMember
		}
		return valueOf(e)
	}
	return nil, ErrNoMember
}

func valueOf(rv reflect.Value) (any, error) {
	if !rv.IsValid() || !rv.CanInterface() {
		return nil, ErrNoMember
	}
	return rv.Interface(), nil
}

// methodHost returns a pointer to v's underlying value so that both value and
// pointer receiver methods are visible.
func methodHost(v any) reflect.Value {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return rv
	}
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return reflect.Value{}
		}
		return rv
	}
	p := reflect.New(rv.Type())
	p.Elem().Set(rv)
	return p
}

// accessorType reports whether a method is a zero-argument getter returning
// a value, or a value and an error. withRecv is set when t includes the receiver.
func accessorType(name string, t reflect.Type, withRecv bool) bool {
	if skippedAccessors[name] {
		return false
	}
	in := 0
	if withRecv {
		in = 1
	}
	if t.NumIn() != in || t.IsVariadic() {
		return false
	}
	switch t.NumOut() {
	case 1:
		return true
	case 2:
		return t.Out(1).Implements(errorType)
	}
	return false
}

// ── DocProbe ──────────────────────────────────────────────────────

// DocProbe walks schema-less documents as produced by encoding/json:
// map[string]any objects. Keys are reported in sorted order.
type DocProbe struct{}

func (DocProbe) Accepts(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

func (DocProbe) Leaf(any) bool { return false }

func (DocProbe) Shape(v any) string {
	m, _ := v.(map[string]any)
	return "doc{" + strings.Join(sortedKeys(m), ",") + "}"
}

func (DocProbe) Members(v any) ([]Member, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNoMember
	}
	keys := sortedKeys(m)
	out := make([]Member, 0, len(keys))
	for _, k := range keys {
		out = append(out, Member{Name: k, Type: fmt.Sprintf("%T", m[k])})
	}
	return out, nil
}

func (p DocProbe) Int(v any, name string) (int, error) {
	x, err := p.Get(v, name)
	if err != nil {
		return 0, err
	}
	return toInt(x)
}

func (DocProbe) Get(v any, name string) (any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNoMember
	}
	x, ok := m[name]
	if !ok {
		return nil, ErrNoMember
	}
	return x, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
