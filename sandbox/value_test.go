package sandbox

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestValueRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		in   Value
	}{
		{"Null", Null()},
		{"Bool", BoolOf(true)},
		{"Int", IntOf(42)},
		{"Float", FloatOf(3.25)},
		{"String", StringOf("close")},
		{"List", ListOf(IntOf(1), FloatOf(2.5), StringOf("x"))},
		{"Map", MapOf(map[string]Value{
			"open":  FloatOf(101.5),
			"close": FloatOf(102.25),
			"bars":  ListOf(IntOf(1), IntOf(2)),
		})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sv, err := tc.in.ToStarlark()
			require.NoError(t, err)

			out, err := FromStarlark(sv)
			require.NoError(t, err)
			assert.Equal(t, tc.in, out)
		})
	}
}

func TestToStarlarkMapOrderDeterministic(t *testing.T) {
	m := make(map[string]Value)
	for _, k := range []string{"h", "c", "a", "f", "b", "e", "d", "g"} {
		m[k] = IntOf(1)
	}

	// Dicts preserve insertion order, so conversion must fix the order
	// independently of Go map iteration.
	want := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for i := 0; i < 20; i++ {
		sv, err := MapOf(m).ToStarlark()
		require.NoError(t, err)
		d := sv.(*starlark.Dict)

		got := make([]string, 0, d.Len())
		for _, k := range d.Keys() {
			got = append(got, string(k.(starlark.String)))
		}
		require.Equal(t, want, got)
	}
}

func TestFromStarlarkRejectsUnrepresentable(t *testing.T) {
	t.Run("Callable", func(t *testing.T) {
		fn := starlark.NewBuiltin("f", func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			return starlark.None, nil
		})
		_, err := FromStarlark(fn)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not representable")
	})

	t.Run("HugeInt", func(t *testing.T) {
		huge := starlark.MakeBigInt(new(big.Int).Lsh(big.NewInt(1), 100))
		_, err := FromStarlark(huge)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "64 bits")
	})

	t.Run("NonStringDictKey", func(t *testing.T) {
		d := starlark.NewDict(1)
		require.NoError(t, d.SetKey(starlark.MakeInt(1), starlark.String("v")))
		_, err := FromStarlark(d)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "string keys")
	})

	t.Run("NestedCallableInList", func(t *testing.T) {
		fn := starlark.NewBuiltin("f", func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			return starlark.None, nil
		})
		_, err := FromStarlark(starlark.NewList([]starlark.Value{fn}))
		require.Error(t, err)
	})
}

func TestValueJSON(t *testing.T) {
	t.Run("Marshal", func(t *testing.T) {
		v := MapOf(map[string]Value{
			"qty":   IntOf(10),
			"price": FloatOf(99.5),
			"tags":  ListOf(StringOf("a"), Null()),
			"live":  BoolOf(false),
		})
		data, err := json.Marshal(v)
		require.NoError(t, err)
		assert.JSONEq(t, `{"qty":10,"price":99.5,"tags":["a",null],"live":false}`, string(data))
	})

	t.Run("Unmarshal", func(t *testing.T) {
		var v Value
		err := json.Unmarshal([]byte(`{"n":3,"f":1.5,"s":"x","l":[true,null]}`), &v)
		require.NoError(t, err)
		require.Equal(t, KindMap, v.Kind)
		assert.Equal(t, IntOf(3), v.Map["n"])
		assert.Equal(t, FloatOf(1.5), v.Map["f"])
		assert.Equal(t, StringOf("x"), v.Map["s"])
		assert.Equal(t, ListOf(BoolOf(true), Null()), v.Map["l"])
	})

	t.Run("IntegerStaysInt", func(t *testing.T) {
		var v Value
		require.NoError(t, json.Unmarshal([]byte(`100`), &v))
		assert.Equal(t, IntOf(100), v)
	})
}
