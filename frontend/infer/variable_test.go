package infer

import (
	"testing"

	"github.com/cottand/tyinfer/frontend/classtable"
	"github.com/cottand/tyinfer/frontend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariableBounds(t *testing.T) {
	tbl := classtable.Builtins()
	str := class(tbl, "String")
	list := tbl.MustLookup("List")
	v := newVariable(1, types.NewTypeParam("T"))

	assert.True(t, v.AddBound(str, UpperBound))
	assert.False(t, v.AddBound(class(tbl, "String"), UpperBound), "equal bounds are recorded once")
	assert.True(t, v.AddBound(str, LowerBound), "kinds are stored apart")
	assert.False(t, v.AddBound(v.Type(), EqBound), "a variable is not its own bound")
	assert.False(t, v.AddBound(types.None, EqBound))
	assert.True(t, v.AddBound(list.Of(v.Type()), UpperBound))

	assert.Len(t, v.Bounds(UpperBound), 2)
	assert.Len(t, v.Bounds(LowerBound), 1)
	assert.Empty(t, v.Bounds(EqBound))
	assert.True(t, v.HasBound(class(tbl, "String"), UpperBound))
	assert.False(t, v.HasBound(str, EqBound))
	assert.Equal(t, []types.VarID{1}, v.dependencies())

	bounds := v.Bounds(UpperBound)
	bounds[0] = tbl.Object()
	assert.Equal(t, "String", v.Bounds(UpperBound)[0].String(), "Bounds returns a copy")
}

func TestVariableInstantiatesOnce(t *testing.T) {
	tbl := classtable.Builtins()
	v := newVariable(1, types.NewTypeParam("T"))
	require.False(t, v.IsResolved())
	assert.True(t, types.IsNone(v.Instantiation()))

	assert.False(t, v.instantiate(types.None))
	assert.True(t, v.instantiate(class(tbl, "Integer")))
	assert.False(t, v.instantiate(class(tbl, "String")))
	assert.True(t, v.IsResolved())
	assert.Equal(t, "Integer", v.Instantiation().String())
}

func TestVariableCopyIsIndependent(t *testing.T) {
	tbl := classtable.Builtins()
	v := newVariable(1, types.NewTypeParam("T"))
	v.AddBound(class(tbl, "String"), UpperBound)

	c := v.copy()
	c.AddBound(class(tbl, "Integer"), UpperBound)
	c.instantiate(class(tbl, "Integer"))

	assert.Len(t, v.Bounds(UpperBound), 1)
	assert.False(t, v.HasBound(class(tbl, "Integer"), UpperBound))
	assert.False(t, v.IsResolved())
	assert.Len(t, c.Bounds(UpperBound), 2)
}

func TestComposeBounds(t *testing.T) {
	tbl := classtable.Builtins()
	integer, long := class(tbl, "Integer"), class(tbl, "Long")
	s := newSession(t, tbl)
	vs := bareVars(s, "a", "b")
	a := s.variable(vs[0].ID)
	a.AddBound(vs[1], LowerBound)
	a.AddBound(integer, LowerBound)
	a.AddBound(long, LowerBound)
	a.AddBound(class(tbl, "Number"), UpperBound)
	a.AddBound(class(tbl, "Serializable"), UpperBound)

	assert.Len(t, a.properBounds(LowerBound, s.ground), 2, "improper bounds are skipped")
	assert.True(t, types.IsNone(a.composeEquality(s.ground)))

	lower := a.composeLowerBound(tbl, s.ground)
	require.False(t, types.IsNone(lower))
	assert.True(t, tbl.IsSubtype(lower, class(tbl, "Number")), "lub(Integer, Long) is below Number, got %v", lower)

	assert.Equal(t, "Number", a.composeUpperBound(tbl, s.ground).String(), "Number is already Serializable")

	s.instantiate(s.variable(vs[1].ID), integer)
	assert.Len(t, a.properBounds(LowerBound, s.ground), 2, "grounded bounds are deduplicated")
}

func TestFresherIDsAreUnique(t *testing.T) {
	f := NewFresher()
	seen := map[types.VarID]bool{}
	for range 100 {
		id := f.next()
		require.False(t, seen[id])
		seen[id] = true
	}
}
