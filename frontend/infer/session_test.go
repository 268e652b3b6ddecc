package infer

import (
	"testing"

	"github.com/cottand/tyinfer/frontend/classtable"
	"github.com/cottand/tyinfer/frontend/expr"
	"github.com/cottand/tyinfer/frontend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionQueue(t *testing.T) {
	tbl := classtable.Builtins()
	str := class(tbl, "String")
	s := newSession(t, tbl)
	a := bareVars(s, "a")[0]

	s.AddConstraint(StrictSubtype{a, str})
	s.AddConstraint(StrictSubtype{a, class(tbl, "String")})
	assert.Len(t, s.constraints, 1, "equal constraints are queued once")

	l := expr.NewLambda([]string{"x"})
	deferred := ExpressionCompatibility{Expr: l, T: a}
	s.deferConstraint(deferred)
	s.deferConstraint(deferred)
	assert.Len(t, s.deferred, 1)

	s.deferred = nil
	s.release(deferred)
	assert.Len(t, s.constraints, 2)
	s.deferConstraint(deferred)
	assert.Empty(t, s.deferred, "a released constraint is not deferred again")
}

func TestSessionClone(t *testing.T) {
	tbl := classtable.Builtins()
	str := class(tbl, "String")
	s := newSession(t, tbl)
	a := bareVars(s, "a")[0]
	s.addBound(a.ID, str, UpperBound)

	c := s.Clone()
	c.addBound(a.ID, class(tbl, "Integer"), LowerBound)
	c.instantiate(c.Variable(a), str)

	assert.Empty(t, s.Variable(a).Bounds(LowerBound))
	assert.False(t, s.Variable(a).IsResolved())
	assert.True(t, c.Variable(a).IsResolved())
	assert.NotEqual(t, s.ID(), c.ID(), "clones log under their own id")
}

func TestSessionSnapshotRestore(t *testing.T) {
	tbl := classtable.Builtins()
	s := newSession(t, tbl)
	a := bareVars(s, "a")[0]
	snap := s.snapshot()

	s.addBound(a.ID, class(tbl, "String"), EqBound)
	s.markUnchecked()
	s.restoreSnapshot(snap)

	assert.Empty(t, s.Variable(a).Bounds(EqBound))
	assert.False(t, s.Erased())
}

func TestInferenceVariables(t *testing.T) {
	tbl := classtable.Builtins()
	list := tbl.MustLookup("List")
	T := types.NewTypeParam("T")
	U := types.NewTypeParam("U", list.Of(T))

	s := newSession(t, tbl)
	vars := s.InferenceVariables([]*types.TypeParam{T, U}, types.Substitutor{})
	require.Len(t, vars, 2)
	assert.NotEqual(t, vars[0].ID, vars[1].ID)

	assert.True(t, s.Variable(vars[0]).HasBound(tbl.Object(), UpperBound), "unbounded parameters are bounded by Object")
	assert.True(t, s.Variable(vars[1]).HasBound(list.Of(vars[0]), UpperBound), "bounds are renamed to variables")
	assert.Equal(t, "List<T>", s.restoreNames(list.Of(vars[0])).String())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "partially resolved", PartiallyResolved.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "unknown", State(99).String())
}
