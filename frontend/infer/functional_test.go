package infer

import (
	"context"
	"testing"

	"github.com/cottand/tyinfer/frontend/classtable"
	"github.com/cottand/tyinfer/frontend/expr"
	"github.com/cottand/tyinfer/frontend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typeStrings(ts []types.Type) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return out
}

func TestFunctionTypeOf(t *testing.T) {
	tbl := classtable.Builtins()
	str := class(tbl, "String")
	integer := class(tbl, "Integer")

	testCases := []struct {
		name       string
		target     *types.Class
		wantParams []string
		wantReturn string
		wantOk     bool
	}{
		{
			name:       "declared method",
			target:     class(tbl, "Function", str, integer),
			wantParams: []string{"String"},
			wantReturn: "Integer",
			wantOk:     true,
		},
		{
			name:       "inherited method",
			target:     class(tbl, "UnaryOperator", str),
			wantParams: []string{"String"},
			wantReturn: "String",
			wantOk:     true,
		},
		{
			name:       "raw target is erased",
			target:     tbl.MustLookup("Function").Of(),
			wantParams: []string{"Object"},
			wantReturn: "Object",
			wantOk:     true,
		},
		{
			name:       "no parameters",
			target:     class(tbl, "Supplier", str),
			wantParams: []string{},
			wantReturn: "String",
			wantOk:     true,
		},
		{
			name:   "not a functional interface",
			target: class(tbl, "List", str),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fn, ok := FunctionTypeOf(tbl, tc.target)
			require.Equal(t, tc.wantOk, ok)
			if !ok {
				return
			}
			assert.Equal(t, tc.wantParams, typeStrings(fn.Params))
			assert.Equal(t, tc.wantReturn, fn.Return.String())
		})
	}
}

func TestNonWildcardParameterization(t *testing.T) {
	tbl := classtable.Builtins()
	integer := class(tbl, "Integer")
	number := class(tbl, "Number")

	sorter := tbl.Interface("Sorter", "T")
	sorter.TypeParams[0].Bounds = []types.Type{class(tbl, "Comparable", sorter.TypeParams[0])}
	numeric := tbl.Interface("Numeric", "T")
	numeric.TypeParams[0].Bounds = []types.Type{number}

	testCases := []struct {
		name   string
		target *types.Class
		want   string
	}{
		{
			name:   "no wildcards",
			target: class(tbl, "Function", integer, number),
			want:   "Function<Integer, Number>",
		},
		{
			name:   "super and extends",
			target: class(tbl, "Function", types.NewSuper(integer), types.NewExtends(number)),
			want:   "Function<Integer, Number>",
		},
		{
			name:   "unbounded",
			target: class(tbl, "Function", types.NewUnbounded(), types.NewUnbounded()),
			want:   "Function<Object, Object>",
		},
		{
			name:   "unbounded takes the declared bound",
			target: numeric.Of(types.NewUnbounded()),
			want:   "Numeric<Number>",
		},
		{
			name:   "extends is narrowed by the declared bound",
			target: numeric.Of(types.NewExtends(class(tbl, "Serializable"))),
			want:   "Numeric<Number>",
		},
		{
			name:   "bound mentions the class's own parameters",
			target: sorter.Of(types.NewUnbounded()),
		},
		{
			name:   "not within the declared bound",
			target: numeric.Of(types.NewSuper(class(tbl, "String"))),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NonWildcardParameterization(tbl, tc.target)
			if tc.want == "" {
				assert.False(t, ok, "got %v", got)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tc.want, got.String())
		})
	}
}

func TestGroundTargetType(t *testing.T) {
	tbl := classtable.Builtins()
	integer := class(tbl, "Integer")
	number := class(tbl, "Number")
	str := class(tbl, "String")
	function := class(tbl, "Function", types.NewSuper(integer), types.NewExtends(number))
	comparator := class(tbl, "Comparator", types.NewSuper(integer))

	testCases := []struct {
		name   string
		target *types.Class
		lambda *expr.Lambda
		want   string
	}{
		{
			name:   "implicit lambda",
			target: function,
			lambda: expr.NewLambda([]string{"x"}, expr.NewTyped(integer)),
			want:   "Function<Integer, Number>",
		},
		{
			name:   "explicit lambda",
			target: function,
			lambda: expr.NewTypedLambda([]string{"x"}, []types.Type{number}, expr.NewTyped(integer)),
			want:   "Function<Number, Number>",
		},
		{
			name:   "explicit parameters outside the wildcard",
			target: comparator,
			lambda: expr.NewTypedLambda([]string{"a", "b"}, []types.Type{str, str}, expr.NewTyped(types.Int)),
			want:   "Comparator<Integer>",
		},
		{
			name:   "explicit lambda of the wrong arity",
			target: comparator,
			lambda: expr.NewTypedLambda([]string{"a"}, []types.Type{number}, expr.NewTyped(types.Int)),
			want:   "Comparator<Integer>",
		},
		{
			name:   "no wildcards",
			target: class(tbl, "Comparator", number),
			lambda: expr.NewTypedLambda([]string{"a", "b"}, []types.Type{integer, integer}, expr.NewTyped(types.Int)),
			want:   "Comparator<Number>",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := GroundTargetType(context.Background(), tbl, tc.target, tc.lambda)
			require.True(t, ok)
			assert.Equal(t, tc.want, got.String())
		})
	}
}
