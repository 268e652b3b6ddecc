package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqual(t *testing.T) {
	list := &ClassDecl{Name: "List", TypeParams: []*TypeParam{NewTypeParam("E")}}
	str := &ClassDecl{Name: "String"}
	T := NewTypeParam("T")

	testCases := []struct {
		name string
		a, b Type
		want bool
	}{
		{name: "same class", a: list.Of(str.Of()), b: list.Of(str.Of()), want: true},
		{name: "different arguments", a: list.Of(str.Of()), b: list.Of(T)},
		{name: "raw and parameterized", a: list.Of(), b: list.Of(str.Of())},
		{name: "type parameters by identity", a: T, b: NewTypeParam("T")},
		{name: "declarations by identity", a: str.Of(), b: (&ClassDecl{Name: "String"}).Of()},
		{name: "variables by id", a: &Var{ID: 1, Name: "a"}, b: &Var{ID: 1, Name: "b"}, want: true},
		{name: "unbounded wildcards", a: NewUnbounded(), b: NewUnbounded(), want: true},
		{name: "wildcard kinds", a: NewExtends(T), b: NewSuper(T)},
		{name: "intersections ignore order", a: NewIntersection(T, str.Of()), b: NewIntersection(str.Of(), T), want: true},
		{name: "primitives", a: Int, b: Int, want: true},
		{name: "null", a: Null, b: Null, want: true},
		{name: "none is not null", a: None, b: Null},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Equal(tc.a, tc.b))
			if tc.want {
				assert.Equal(t, tc.a.Hash(), tc.b.Hash(), "equal types hash alike")
			}

		})
	}
}

func TestHashFollowsDeclarationIdentity(t *testing.T) {
	a := (&ClassDecl{Name: "Node"}).Of()
	b := (&ClassDecl{Name: "Node"}).Of()
	assert.NotEqual(t, a.Hash(), b.Hash())
	assert.Equal(t, a.Hash(), a.Decl.Of().Hash())
}

func TestNewIntersection(t *testing.T) {
	a := (&ClassDecl{Name: "A"}).Of()
	b := (&ClassDecl{Name: "B"}).Of()

	assert.True(t, IsNone(NewIntersection()))
	assert.Same(t, a, NewIntersection(a, a))
	inter, ok := NewIntersection(a, NewIntersection(b, a)).(*Intersection)
	require.True(t, ok)
	assert.Len(t, inter.Conjuncts, 2, "nested intersections are flattened")
	assert.Equal(t, "A & B", inter.String())
}

func TestSubstitute(t *testing.T) {
	list := &ClassDecl{Name: "List", TypeParams: []*TypeParam{NewTypeParam("E")}}
	str := (&ClassDecl{Name: "String"}).Of()
	T := NewTypeParam("T")
	v := &Var{ID: 3, Name: "T"}

	sub := NewSubstitutor().Put(T, v)
	got := Substitute(sub, &Array{Elem: list.Of(NewExtends(T))})
	assert.Equal(t, "List<? extends T'3>[]", got.String())

	sub = sub.Put(v, str)
	assert.Equal(t, "String", Substitute(sub, v).String())
	assert.Equal(t, 2, sub.Len())

	unchanged := list.Of(str)
	assert.Same(t, unchanged, Substitute(sub, unchanged), "unchanged types are shared")

	assert.Equal(t, "?", Substitute(NewSubstitutor().Put(T, NewUnbounded()), NewExtends(T)).String(),
		"a wildcard substituted into a wildcard collapses")
}

func TestSubstitutorIsPersistent(t *testing.T) {
	T, U := NewTypeParam("T"), NewTypeParam("U")
	base := NewSubstitutor().Put(T, Int)
	extended := base.Put(U, Long)

	assert.Equal(t, 1, base.Len())
	assert.Equal(t, 2, extended.Len())
	_, ok := base.Get(U)
	assert.False(t, ok)

	var zero Substitutor
	assert.Equal(t, 0, zero.Len())
	assert.Equal(t, "{}", zero.String())
	assert.Equal(t, "{T -> int, U -> long}", extended.String())
}

func TestSubstitutorHashIgnoresOrder(t *testing.T) {
	T, U := NewTypeParam("T"), NewTypeParam("U")
	a := NewSubstitutor().Put(T, Int).Put(U, Long)
	b := NewSubstitutor().Put(U, Long).Put(T, Int)
	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), NewSubstitutor().Put(T, Long).Put(U, Int).Hash())
	assert.Zero(t, Substitutor{}.Hash())
}

func TestVarsAndProper(t *testing.T) {
	list := &ClassDecl{Name: "Map", TypeParams: []*TypeParam{NewTypeParam("K"), NewTypeParam("V")}}
	a, b := &Var{ID: 1, Name: "a"}, &Var{ID: 2, Name: "b"}
	typ := list.Of(b, NewSuper(NewIntersection(a, b)))

	assert.Equal(t, []VarID{2, 1}, Vars(typ))
	assert.False(t, IsProper(typ))
	assert.True(t, IsProper(list.Of(Int, Long)))

	T := NewTypeParam("T")
	assert.True(t, MentionsParams(&Array{Elem: T}, []*TypeParam{T}))
	assert.False(t, MentionsParams(&Array{Elem: T}, []*TypeParam{NewTypeParam("T")}))
}

func TestMethodArity(t *testing.T) {
	arr := &Array{Elem: Int}
	m := &Method{Name: "f", Params: []Type{Long, arr}, Varargs: true, Return: Void}

	assert.True(t, m.IsVoid())
	assert.True(t, m.AcceptsArity(2, false))
	assert.False(t, m.AcceptsArity(3, false))
	assert.True(t, m.AcceptsArity(1, true))
	assert.True(t, m.AcceptsArity(4, true))
	assert.Equal(t, Type(Int), m.ParamType(3, true))
	assert.Equal(t, Type(arr), m.ParamType(1, false))
	assert.True(t, IsNone(m.ParamType(2, false)))
}

func TestAsSuper(t *testing.T) {
	object := &ClassDecl{Name: "Object"}
	iterable := &ClassDecl{Name: "Iterable", TypeParams: []*TypeParam{NewTypeParam("T")}}
	list := &ClassDecl{Name: "List", TypeParams: []*TypeParam{NewTypeParam("E")}}
	list.Supers = []*Class{iterable.Of(list.TypeParams[0])}
	alg := fakeAlgebra{object: object}
	str := (&ClassDecl{Name: "String"}).Of()

	found, ok := AsSuper(alg, list.Of(str), iterable)
	require.True(t, ok)
	assert.Equal(t, "Iterable<String>", found.String())

	T := NewTypeParam("T", list.Of(str))
	found, ok = AsSuper(alg, T, iterable)
	require.True(t, ok)
	assert.Equal(t, "Iterable<String>", found.String())

	_, ok = AsSuper(alg, str, iterable)
	assert.False(t, ok)
}

// fakeAlgebra only walks declared supertypes
type fakeAlgebra struct {
	Algebra
	object *ClassDecl
}

func (f fakeAlgebra) Object() *Class { return f.object.Of() }

func (f fakeAlgebra) Supertypes(c *Class) []*Class {
	var out []*Class
	for _, super := range c.Decl.Supers {
		s := Substitute(c.Bindings(), super).(*Class)
		out = append(out, s)
		out = append(out, f.Supertypes(s)...)
	}
	return out
}
