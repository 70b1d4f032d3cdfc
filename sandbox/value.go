package sandbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"go.starlark.net/starlark"
)

// Kind identifies the shape of a Value. The set is closed so that the
// boundary between the sandbox and the caller has a fixed, auditable set
// of representable shapes.
type Kind int

// Value kinds
const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

// String returns the kind name used in logs and error messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is the tagged variant exchanged between the caller and a sandboxed
// run. Bindings enter a run as Values and results/observed bindings leave as
// Values; live host objects, callables, and file handles have no
// representation and therefore can never cross the boundary.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	List  []Value
	Map   map[string]Value
}

// Null returns the absent value.
func Null() Value { return Value{Kind: KindNull} }

// BoolOf wraps a Go bool.
func BoolOf(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// IntOf wraps a Go int64.
func IntOf(i int64) Value { return Value{Kind: KindInt, Int: i} }

// FloatOf wraps a Go float64.
func FloatOf(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// StringOf wraps a Go string.
func StringOf(s string) Value { return Value{Kind: KindString, Str: s} }

// ListOf wraps a slice of Values.
func ListOf(vs ...Value) Value { return Value{Kind: KindList, List: vs} }

// MapOf wraps a string-keyed map of Values.
func MapOf(m map[string]Value) Value { return Value{Kind: KindMap, Map: m} }

// ToStarlark converts the Value into a freshly allocated Starlark value.
// The result shares no storage with the receiver, so a run mutating the
// converted value can never reach back into caller state.
func (v Value) ToStarlark() (starlark.Value, error) {
	switch v.Kind {
	case KindNull:
		return starlark.None, nil
	case KindBool:
		return starlark.Bool(v.Bool), nil
	case KindInt:
		return starlark.MakeInt64(v.Int), nil
	case KindFloat:
		return starlark.Float(v.Float), nil
	case KindString:
		return starlark.String(v.Str), nil
	case KindList:
		elems := make([]starlark.Value, 0, len(v.List))
		for i, e := range v.List {
			sv, err := e.ToStarlark()
			if err != nil {
				return nil, fmt.Errorf("list element %d: %w", i, err)
			}
			elems = append(elems, sv)
		}
		return starlark.NewList(elems), nil
	case KindMap:
		// Starlark dicts preserve insertion order, so insert in sorted key
		// order to keep identical requests bitwise-identical in output.
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := starlark.NewDict(len(v.Map))
		for _, k := range keys {
			sv, err := v.Map[k].ToStarlark()
			if err != nil {
				return nil, fmt.Errorf("map key %q: %w", k, err)
			}
			if err := d.SetKey(starlark.String(k), sv); err != nil {
				return nil, fmt.Errorf("map key %q: %w", k, err)
			}
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unrepresentable value kind %s", v.Kind)
	}
}

// FromStarlark converts a Starlark value back into the tagged variant.
// Values with no representation in the closed variant set (functions,
// builtins, modules, sets, non-string dict keys, integers outside int64)
// produce an error rather than an approximation.
func FromStarlark(sv starlark.Value) (Value, error) {
	switch x := sv.(type) {
	case starlark.NoneType:
		return Null(), nil
	case starlark.Bool:
		return BoolOf(bool(x)), nil
	case starlark.Int:
		i, ok := x.Int64()
		if !ok {
			return Value{}, fmt.Errorf("integer %s does not fit in 64 bits", x.String())
		}
		return IntOf(i), nil
	case starlark.Float:
		return FloatOf(float64(x)), nil
	case starlark.String:
		return StringOf(string(x)), nil
	case *starlark.List:
		out := make([]Value, 0, x.Len())
		for i := 0; i < x.Len(); i++ {
			e, err := FromStarlark(x.Index(i))
			if err != nil {
				return Value{}, fmt.Errorf("list element %d: %w", i, err)
			}
			out = append(out, e)
		}
		return ListOf(out...), nil
	case starlark.Tuple:
		out := make([]Value, 0, len(x))
		for i, sv := range x {
			e, err := FromStarlark(sv)
			if err != nil {
				return Value{}, fmt.Errorf("tuple element %d: %w", i, err)
			}
			out = append(out, e)
		}
		return ListOf(out...), nil
	case *starlark.Dict:
		out := make(map[string]Value, x.Len())
		for _, item := range x.Items() {
			k, ok := item[0].(starlark.String)
			if !ok {
				return Value{}, fmt.Errorf("dict key %s is %s, only string keys are representable",
					item[0].String(), item[0].Type())
			}
			e, err := FromStarlark(item[1])
			if err != nil {
				return Value{}, fmt.Errorf("dict key %q: %w", string(k), err)
			}
			out[string(k)] = e
		}
		return MapOf(out), nil
	default:
		return Value{}, fmt.Errorf("value of type %s is not representable across the sandbox boundary", sv.Type())
	}
}

// MarshalJSON renders the Value as natural JSON so the serving layer can
// pass results through without a translation step.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.Bool)
	case KindInt:
		return json.Marshal(v.Int)
	case KindFloat:
		return json.Marshal(v.Float)
	case KindString:
		return json.Marshal(v.Str)
	case KindList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	case KindMap:
		if v.Map == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.Map)
	default:
		return nil, fmt.Errorf("unrepresentable value kind %s", v.Kind)
	}
}

// UnmarshalJSON parses natural JSON into the tagged variant. Numbers
// without a fractional part become ints, everything else a float.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := fromJSON(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func fromJSON(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return BoolOf(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return IntOf(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("unparseable number %q", x.String())
		}
		return FloatOf(f), nil
	case string:
		return StringOf(x), nil
	case []any:
		out := make([]Value, 0, len(x))
		for i, e := range x {
			ev, err := fromJSON(e)
			if err != nil {
				return Value{}, fmt.Errorf("array element %d: %w", i, err)
			}
			out = append(out, ev)
		}
		return ListOf(out...), nil
	case map[string]any:
		out := make(map[string]Value, len(x))
		for k, e := range x {
			ev, err := fromJSON(e)
			if err != nil {
				return Value{}, fmt.Errorf("object key %q: %w", k, err)
			}
			out[k] = ev
		}
		return MapOf(out), nil
	default:
		return Value{}, fmt.Errorf("unsupported JSON shape %T", raw)
	}
}
