package policy

import (
	"fmt"
	"math"

	"go.starlark.net/starlark"
)

// minimalNames returns the primitive helpers every tier exposes. The
// interpreter's own safe core (len, range, sorted, print, ...) is always
// present; these are the additions.
func minimalNames() starlark.StringDict {
	return starlark.StringDict{
		"round": starlark.NewBuiltin("round", roundFn),
		"clamp": starlark.NewBuiltin("clamp", clampFn),
	}
}

func roundFn(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x float64
	var digits int
	if err := starlark.UnpackArgs("round", args, kwargs, "x", &x, "digits?", &digits); err != nil {
		return nil, err
	}
	if digits < 0 {
		return nil, fmt.Errorf("round: digits must be non-negative, got %d", digits)
	}
	scale := math.Pow(10, float64(digits))
	rounded := math.Round(x*scale) / scale
	if digits == 0 {
		if rounded > math.MaxInt64 || rounded < math.MinInt64 {
			return nil, fmt.Errorf("round: %g overflows", x)
		}
		return starlark.MakeInt64(int64(rounded)), nil
	}
	return starlark.Float(rounded), nil
}

func clampFn(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x, lo, hi float64
	if err := starlark.UnpackArgs("clamp", args, kwargs, "x", &x, "lo", &lo, "hi", &hi); err != nil {
		return nil, err
	}
	if lo > hi {
		return nil, fmt.Errorf("clamp: lo %g exceeds hi %g", lo, hi)
	}
	return starlark.Float(math.Min(math.Max(x, lo), hi)), nil
}

// floatSlice converts a Starlark sequence of numbers into a float slice.
func floatSlice(name string, v starlark.Value) ([]float64, error) {
	var seq starlark.Indexable
	switch x := v.(type) {
	case *starlark.List:
		seq = x
	case starlark.Tuple:
		seq = x
	default:
		return nil, fmt.Errorf("%s: want a list of numbers, got %s", name, v.Type())
	}
	out := make([]float64, 0, seq.Len())
	for i := 0; i < seq.Len(); i++ {
		f, ok := starlark.AsFloat(seq.Index(i))
		if !ok {
			return nil, fmt.Errorf("%s: element %d is %s, want a number", name, i, seq.Index(i).Type())
		}
		out = append(out, f)
	}
	return out, nil
}

// floatList renders values as a Starlark list, mapping NaN slots to None
// so warmup periods of rolling computations stay visibly absent.
func floatList(values []float64) *starlark.List {
	elems := make([]starlark.Value, len(values))
	for i, f := range values {
		if math.IsNaN(f) {
			elems[i] = starlark.None
		} else {
			elems[i] = starlark.Float(f)
		}
	}
	return starlark.NewList(elems)
}
