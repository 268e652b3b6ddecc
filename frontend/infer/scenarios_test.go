package infer

import (
	"context"
	"testing"

	"github.com/cottand/tyinfer/frontend/classtable"
	"github.com/cottand/tyinfer/frontend/expr"
	"github.com/cottand/tyinfer/frontend/ilerr"
	"github.com/cottand/tyinfer/frontend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityOfInteger(t *testing.T) {
	tbl := classtable.Builtins()
	id := identity()
	call := expr.NewCall(id, expr.NewTyped(class(tbl, "Integer")))

	res, err := newSession(t, tbl).InferCall(call, nil)
	require.NoError(t, err)
	assert.Equal(t, Resolved, res.State)
	assert.Empty(t, res.Diagnostics)
	assert.False(t, res.Erased)
	requireType(t, res, id.TypeParams[0], "Integer")
}

func TestPickOfUnrelatedClasses(t *testing.T) {
	tbl := classtable.Builtins()
	a := tbl.Class("A")
	b := tbl.Class("B")
	pick := method("pick", []string{"T"}, func(m *types.Method, ps []*types.TypeParam) {
		m.Params = []types.Type{ps[0], ps[0]}
		m.Return = ps[0]
	})
	call := expr.NewCall(pick, expr.NewTyped(a.Of()), expr.NewTyped(b.Of()))

	res, err := newSession(t, tbl).InferCall(call, nil)
	require.NoError(t, err)
	assert.Equal(t, Resolved, res.State)
	assert.Empty(t, res.Diagnostics)
	requireType(t, res, pick.TypeParams[0], "Object")
}

func TestIncompatibleUpperBounds(t *testing.T) {
	// String and Integer share no generic supertype here, so the upper
	// bounds are not correlated and only conflict at resolution
	tbl := classtable.New()
	str := tbl.Class("String").Of()
	integer := tbl.Class("Integer").Of()

	s := newSession(t, tbl)
	T := types.NewTypeParam("T")
	vars := s.InferenceVariables([]*types.TypeParam{T}, types.Substitutor{})
	s.AddConstraint(StrictSubtype{vars[0], str})
	s.AddConstraint(StrictSubtype{vars[0], integer})
	require.NoError(t, s.Propagate())
	require.NoError(t, s.ResolveBounds())

	v := s.Variable(vars[0])
	assert.Equal(t, "Object", v.Instantiation().String())
	require.Len(t, s.Diagnostics(), 1)
	assert.Equal(t, ilerr.IncompatibleUpperBounds, s.Diagnostics()[0].Code())
	assert.True(t, s.Erased())
}

func TestGroundTargetFromExplicitLambda(t *testing.T) {
	tbl := classtable.Builtins()
	target := class(tbl, "Comparator", types.NewSuper(class(tbl, "Integer")))
	number := class(tbl, "Number")
	l := expr.NewTypedLambda([]string{"a", "b"}, []types.Type{number, number}, expr.NewTyped(types.Int))

	ground, ok := GroundTargetType(context.Background(), tbl, target, l)
	require.True(t, ok)
	assert.Equal(t, "Comparator<Number>", ground.String())
}

func TestMutuallyDependentVariables(t *testing.T) {
	tbl := classtable.Builtins()
	comparable := tbl.MustLookup("Comparable")
	T := types.NewTypeParam("T")
	U := types.NewTypeParam("U")
	T.Bounds = []types.Type{comparable.Of(U)}
	U.Bounds = []types.Type{comparable.Of(T)}

	s := newSession(t, tbl)
	vars := s.InferenceVariables([]*types.TypeParam{T, U}, types.Substitutor{})

	order, err := s.resolutionOrder(context.Background(), s.unresolved())
	require.NoError(t, err)
	require.Len(t, order, 1)
	assert.ElementsMatch(t, []types.VarID{vars[0].ID, vars[1].ID}, order[0].members)

	require.NoError(t, s.ResolveBounds())
	yt, ok := s.Variable(vars[0]).Instantiation().(*types.TypeParam)
	require.True(t, ok, "T resolves to a fresh type variable")
	yu, ok := s.Variable(vars[1]).Instantiation().(*types.TypeParam)
	require.True(t, ok, "U resolves to a fresh type variable")
	assert.True(t, yt.Frozen)
	assert.True(t, yu.Frozen)
	assert.True(t, tbl.IsSubtype(yt, comparable.Of(yu)))
	assert.True(t, tbl.IsSubtype(yu, comparable.Of(yt)))
	assert.NotEqual(t, Failed, s.State())
}

func TestUpperBoundsCorrelatedThroughComparable(t *testing.T) {
	// with the builtin table both classes implement Comparable, so the
	// conflict shows up while propagating rather than at resolution
	tbl := classtable.Builtins()
	s := newSession(t, tbl)
	vars := s.InferenceVariables([]*types.TypeParam{types.NewTypeParam("T")}, types.Substitutor{})
	s.AddConstraint(StrictSubtype{vars[0], class(tbl, "String")})
	s.AddConstraint(StrictSubtype{vars[0], class(tbl, "Integer")})

	err := s.Propagate()
	require.Error(t, err)
	failed, ok := AsFailed(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, ilerr.StructuralMismatch, failed.Diagnostic.Code())
}

func TestSelfBoundWithoutArguments(t *testing.T) {
	tbl := classtable.Builtins()
	create := method("create", []string{"T"}, func(m *types.Method, ps []*types.TypeParam) {
		ps[0].Bounds = []types.Type{class(tbl, "Comparable", ps[0])}
		m.Return = ps[0]
	})

	s := newSession(t, tbl)
	res, err := s.InferCall(expr.NewCall(create), nil)
	require.NoError(t, err)
	assert.Equal(t, Resolved, res.State, "diagnostics: %v", res.Diagnostics)
	assert.Empty(t, res.Diagnostics)
	assert.Positive(t, s.fuel, "a rejected candidate must not run the session out of fuel")

	got, ok := res.Type(create.TypeParams[0])
	require.True(t, ok)
	fresh, ok := got.(*types.TypeParam)
	require.True(t, ok, "T resolves to a fresh type variable, got %v", got)
	assert.True(t, fresh.Frozen)
	assert.True(t, tbl.IsSubtype(fresh, class(tbl, "Comparable", fresh)))
}

func TestVariableArityWithOneElement(t *testing.T) {
	tbl := classtable.Builtins()
	asList := method("asList", []string{"T"}, func(m *types.Method, ps []*types.TypeParam) {
		m.Params = []types.Type{&types.Array{Elem: ps[0]}}
		m.Varargs = true
		m.Return = class(tbl, "List", ps[0])
	})
	integer := class(tbl, "Integer")

	testCases := []struct {
		name string
		args []expr.Expr
	}{
		{name: "one element", args: []expr.Expr{expr.NewTyped(integer)}},
		{name: "two elements", args: []expr.Expr{expr.NewTyped(integer), expr.NewTyped(integer)}},
		{name: "array", args: []expr.Expr{expr.NewTyped(&types.Array{Elem: integer})}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := newSession(t, tbl).InferCall(expr.NewCall(asList, tc.args...), nil)
			require.NoError(t, err)
			assert.Equal(t, Resolved, res.State, "diagnostics: %v", res.Diagnostics)
			assert.Empty(t, res.Diagnostics)
			requireType(t, res, asList.TypeParams[0], "Integer")
		})
	}
}

func TestWildcardArgumentIsCaptured(t *testing.T) {
	tbl := classtable.Builtins()
	first := method("first", []string{"E"}, func(m *types.Method, ps []*types.TypeParam) {
		m.Params = []types.Type{class(tbl, "List", ps[0])}
		m.Return = ps[0]
	})
	number := class(tbl, "Number")
	arg := expr.NewTyped(class(tbl, "List", types.NewExtends(number)))

	res, err := newSession(t, tbl).InferCall(expr.NewCall(first, arg), nil)
	require.NoError(t, err)
	assert.Equal(t, Resolved, res.State, "diagnostics: %v", res.Diagnostics)

	got, ok := res.Type(first.TypeParams[0])
	require.True(t, ok)
	captured, ok := got.(*types.TypeParam)
	require.True(t, ok, "E is the captured wildcard, got %v", got)
	assert.True(t, captured.Frozen)
	assert.True(t, tbl.IsSubtype(captured, number))
}
