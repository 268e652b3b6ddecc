package infer

import (
	"testing"

	"github.com/cottand/tyinfer/frontend/classtable"
	"github.com/cottand/tyinfer/frontend/ilerr"
	"github.com/cottand/tyinfer/frontend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hashes(cs []Constraint) []uint64 {
	out := make([]uint64, len(cs))
	for i, c := range cs {
		out[i] = c.Hash()
	}
	return out
}

// bound is an expected bound on the first (a) or second (b) variable
type bound struct {
	onB  bool
	kind BoundKind
	t    func(a, b *types.Var) types.Type
}

func TestReduce(t *testing.T) {
	tbl := classtable.Builtins()
	str := class(tbl, "String")
	integer := class(tbl, "Integer")
	object := tbl.Object()
	list := tbl.MustLookup("List")
	arrayList := tbl.MustLookup("ArrayList")

	testCases := []struct {
		name       string
		constraint func(a, b *types.Var) Constraint
		want       func(a, b *types.Var) []Constraint
		bounds     []bound
		unchecked  bool
		wantErr    bool
	}{
		{
			name:       "equality with a variable",
			constraint: func(a, _ *types.Var) Constraint { return Equality{a, str} },
			bounds:     []bound{{kind: EqBound, t: func(_, _ *types.Var) types.Type { return str }}},
		},
		{
			name:       "equality between variables",
			constraint: func(a, b *types.Var) Constraint { return Equality{a, b} },
			bounds: []bound{
				{kind: EqBound, t: func(_, b *types.Var) types.Type { return b }},
				{onB: true, kind: EqBound, t: func(a, _ *types.Var) types.Type { return a }},
			},
		},
		{
			name:       "variable equal to a primitive",
			constraint: func(a, _ *types.Var) Constraint { return Equality{a, types.Int} },
			wantErr:    true,
		},
		{
			name:       "equality of parameterizations",
			constraint: func(a, _ *types.Var) Constraint { return Equality{list.Of(a), list.Of(str)} },
			want:       func(a, _ *types.Var) []Constraint { return []Constraint{Equality{a, str}} },
		},
		{
			name:       "unequal proper types",
			constraint: func(_, _ *types.Var) Constraint { return Equality{list.Of(str), list.Of(integer)} },
			wantErr:    true,
		},
		{
			name: "unbounded and Object-bounded wildcards are equal",
			constraint: func(_, _ *types.Var) Constraint {
				return Equality{list.Of(types.NewUnbounded()), list.Of(types.NewExtends(object))}
			},
		},
		{
			name: "equality of super wildcards",
			constraint: func(a, _ *types.Var) Constraint {
				return Equality{types.NewSuper(a), types.NewSuper(str)}
			},
			want: func(a, _ *types.Var) []Constraint { return []Constraint{Equality{a, str}} },
		},
		{
			name:       "subtype of a class",
			constraint: func(a, _ *types.Var) Constraint { return StrictSubtype{a, str} },
			bounds:     []bound{{kind: UpperBound, t: func(_, _ *types.Var) types.Type { return str }}},
		},
		{
			name:       "subtype between variables",
			constraint: func(a, b *types.Var) Constraint { return StrictSubtype{a, b} },
			bounds: []bound{
				{kind: UpperBound, t: func(_, b *types.Var) types.Type { return b }},
				{onB: true, kind: LowerBound, t: func(a, _ *types.Var) types.Type { return a }},
			},
		},
		{
			name:       "null is below every variable",
			constraint: func(a, _ *types.Var) Constraint { return StrictSubtype{types.Null, a} },
		},
		{
			name:       "only null is below null",
			constraint: func(a, _ *types.Var) Constraint { return StrictSubtype{a, types.Null} },
			wantErr:    true,
		},
		{
			name:       "subtype through a generic supertype",
			constraint: func(a, _ *types.Var) Constraint { return StrictSubtype{arrayList.Of(str), list.Of(a)} },
			want:       func(a, _ *types.Var) []Constraint { return []Constraint{Containment{str, a}} },
		},
		{
			name:       "no such supertype",
			constraint: func(a, _ *types.Var) Constraint { return StrictSubtype{str, list.Of(a)} },
			wantErr:    true,
		},
		{
			name:       "raw supertype of a parameterization",
			constraint: func(a, _ *types.Var) Constraint { return StrictSubtype{arrayList.Of(), list.Of(a)} },
			wantErr:    true,
		},
		{
			name: "subtype of an array",
			constraint: func(a, _ *types.Var) Constraint {
				return StrictSubtype{&types.Array{Elem: str}, &types.Array{Elem: a}}
			},
			want: func(a, _ *types.Var) []Constraint { return []Constraint{StrictSubtype{str, a}} },
		},
		{
			name:       "boxing on the left",
			constraint: func(a, _ *types.Var) Constraint { return Compatibility{types.Int, a} },
			want:       func(a, _ *types.Var) []Constraint { return []Constraint{Compatibility{integer, a}} },
		},
		{
			name:       "unboxing on the right",
			constraint: func(a, _ *types.Var) Constraint { return Compatibility{a, types.Int} },
			want:       func(a, _ *types.Var) []Constraint { return []Constraint{Equality{a, integer}} },
		},
		{
			name:       "unchecked conversion from a raw type",
			constraint: func(a, _ *types.Var) Constraint { return Compatibility{list.Of(), list.Of(a)} },
			unchecked:  true,
		},
		{
			name:       "compatibility becomes subtyping",
			constraint: func(a, _ *types.Var) Constraint { return Compatibility{str, a} },
			want:       func(a, _ *types.Var) []Constraint { return []Constraint{StrictSubtype{str, a}} },
		},
		{
			name:       "proper compatibility",
			constraint: func(_, _ *types.Var) Constraint { return Compatibility{types.Int, types.Long} },
		},
		{
			name:       "incompatible proper types",
			constraint: func(_, _ *types.Var) Constraint { return Compatibility{str, integer} },
			wantErr:    true,
		},
		{
			name:       "containment by a type",
			constraint: func(a, _ *types.Var) Constraint { return Containment{str, a} },
			want:       func(a, _ *types.Var) []Constraint { return []Constraint{Equality{str, a}} },
		},
		{
			name:       "containment by an extends wildcard",
			constraint: func(a, _ *types.Var) Constraint { return Containment{str, types.NewExtends(a)} },
			want:       func(a, _ *types.Var) []Constraint { return []Constraint{StrictSubtype{str, a}} },
		},
		{
			name:       "containment by a super wildcard",
			constraint: func(a, _ *types.Var) Constraint { return Containment{str, types.NewSuper(a)} },
			want:       func(a, _ *types.Var) []Constraint { return []Constraint{StrictSubtype{a, str}} },
		},
		{
			name:       "containment by an unbounded wildcard",
			constraint: func(a, _ *types.Var) Constraint { return Containment{a, types.NewUnbounded()} },
		},
		{
			name: "super wildcard in an extends wildcard",
			constraint: func(a, _ *types.Var) Constraint {
				return Containment{types.NewSuper(str), types.NewExtends(a)}
			},
			want: func(a, _ *types.Var) []Constraint { return []Constraint{Equality{object, a}} },
		},
		{
			name:       "wildcard in a type",
			constraint: func(a, _ *types.Var) Constraint { return Containment{types.NewExtends(str), a} },
			wantErr:    true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := newSession(t, tbl)
			vs := bareVars(s, "a", "b")
			a, b := vs[0], vs[1]

			out, err := tc.constraint(a, b).reduce(s)
			if tc.wantErr {
				require.Error(t, err)
				failed, ok := AsFailed(err)
				require.True(t, ok)
				assert.Equal(t, ilerr.StructuralMismatch, failed.Diagnostic.Code())
				return
			}
			require.NoError(t, err)

			var want []Constraint
			if tc.want != nil {
				want = tc.want(a, b)
			}
			assert.Equal(t, hashes(want), hashes(out), "got %v", out)
			for _, bd := range tc.bounds {
				v := s.Variable(a)
				if bd.onB {
					v = s.Variable(b)
				}
				assert.True(t, v.HasBound(bd.t(a, b), bd.kind), "%v lacks %v %v", v, bd.kind, bd.t(a, b))
			}
			if len(tc.bounds) == 0 {
				assert.Zero(t, s.version, "no bound was expected")
			}
			assert.Equal(t, tc.unchecked, s.Erased())
		})
	}
}

func TestCaptureRecordsWildcards(t *testing.T) {
	tbl := classtable.Builtins()
	str := class(tbl, "String")
	mapDecl := tbl.MustLookup("Map")
	captured := mapDecl.Of(str, types.NewExtends(class(tbl, "Number")))

	s := newSession(t, tbl)
	vars := s.captureVariables(captured)
	out, err := Capture{Vars: vars, Type: captured}.reduce(s)
	require.NoError(t, err)
	assert.Empty(t, out)

	require.Len(t, s.captures, 1)
	assert.True(t, s.Variable(vars[0]).HasBound(str, EqBound))
	assert.Nil(t, s.Variable(vars[0]).CapturedWildcard())
	assert.Equal(t, captured.Args[1], s.Variable(vars[1]).CapturedWildcard())
	assert.Contains(t, s.dependencies(vars[0].ID), vars[1].ID, "capture variables depend on each other")
}

func TestConstraintHashIsStructural(t *testing.T) {
	tbl := classtable.Builtins()
	a := Equality{class(tbl, "List", class(tbl, "String")), class(tbl, "String")}
	b := Equality{class(tbl, "List", class(tbl, "String")), class(tbl, "String")}
	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), StrictSubtype(a).Hash())
	assert.NotEqual(t, a.Hash(), Equality{a.T, a.S}.Hash())
}
