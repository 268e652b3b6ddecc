package classtable

import (
	"slices"

	"github.com/cottand/tyinfer/frontend/types"
)

// maxLubDepth bounds the recursion of lub on infinite types such as
// lub(Integer, String) = Comparable<? extends Comparable<? extends ...>>
const maxLubDepth = 2

func (t *Table) LeastUpperBound(a, b types.Type) types.Type {
	return t.lub(a, b, 0)
}

func (t *Table) lub(a, b types.Type, depth int) types.Type {
	if types.IsNone(a) {
		return b
	}
	if types.IsNone(b) {
		return a
	}
	if a == types.Null {
		return t.boxed(b)
	}
	if b == types.Null {
		return t.boxed(a)
	}
	a, b = t.boxed(a), t.boxed(b)
	if t.IsSubtype(a, b) {
		return b
	}
	if t.IsSubtype(b, a) {
		return a
	}
	if aArr, ok := a.(*types.Array); ok {
		if bArr, ok := b.(*types.Array); ok && types.IsReference(aArr.Elem) && types.IsReference(bArr.Elem) {
			return &types.Array{Elem: t.lub(aArr.Elem, bArr.Elem, depth)}
		}
		return t.Object()
	}

	candidates := t.minimalErasedCandidates(a, b)
	var result []types.Type
	for _, decl := range candidates {
		if !decl.Generic() {
			result = append(result, decl.Of())
			continue
		}
		aSuper, aOk := types.AsSuper(t, a, decl)
		bSuper, bOk := types.AsSuper(t, b, decl)
		if !aOk || !bOk || aSuper.IsRaw() || bSuper.IsRaw() {
			result = append(result, decl.Of())
			continue
		}
		args := make([]types.Type, len(decl.TypeParams))
		for i := range args {
			args[i] = t.lcta(aSuper.Args[i], bSuper.Args[i], depth)
		}
		result = append(result, decl.Of(args...))
	}
	if len(result) == 0 {
		return t.Object()
	}
	slices.SortStableFunc(result, func(x, y types.Type) int {
		return boolOrder(isInterface(x)) - boolOrder(isInterface(y))
	})
	return types.NewIntersection(result...)
}

func boolOrder(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isInterface(typ types.Type) bool {
	c, ok := typ.(*types.Class)
	return ok && c.Decl.Interface
}

func (t *Table) boxed(typ types.Type) types.Type {
	if p, ok := typ.(*types.Primitive); ok {
		if boxed, ok := t.Box(p); ok {
			return boxed
		}
	}
	return typ
}

// lcta computes the least containing type argument of two type arguments
func (t *Table) lcta(u, v types.Type, depth int) types.Type {
	if depth >= maxLubDepth {
		if types.Equal(u, v) {
			return u
		}
		return types.NewUnbounded()
	}
	uw, uWild := u.(*types.Wildcard)
	vw, vWild := v.(*types.Wildcard)
	switch {
	case !uWild && !vWild:
		if types.Equal(u, v) {
			return u
		}
		return t.extendsOrUnbounded(t.lub(u, v, depth+1))
	case uWild && !vWild:
		return t.lcta(v, u, depth)
	case !uWild:
		switch vw.Kind {
		case types.Extends:
			return t.extendsOrUnbounded(t.lub(u, vw.Bound, depth+1))
		case types.Super:
			return types.NewSuper(t.GreatestLowerBound(u, vw.Bound))
		}
		return types.NewUnbounded()
	}
	switch {
	case uw.Kind == types.Extends && vw.Kind == types.Extends:
		return t.extendsOrUnbounded(t.lub(uw.Bound, vw.Bound, depth+1))
	case uw.Kind == types.Super && vw.Kind == types.Super:
		return types.NewSuper(t.GreatestLowerBound(uw.Bound, vw.Bound))
	case uw.Kind != types.Unbounded && vw.Kind != types.Unbounded && types.Equal(uw.Bound, vw.Bound):
		return uw.Bound
	}
	return types.NewUnbounded()
}

func (t *Table) extendsOrUnbounded(bound types.Type) types.Type {
	if c, ok := bound.(*types.Class); ok && c.Decl == t.object {
		return types.NewUnbounded()
	}
	return types.NewExtends(bound)
}

// erasedSupertypes returns the declarations of typ and of all of its supertypes
func (t *Table) erasedSupertypes(typ types.Type) []*types.ClassDecl {
	var out []*types.ClassDecl
	add := func(decl *types.ClassDecl) {
		if !slices.Contains(out, decl) {
			out = append(out, decl)
		}
	}
	var visit func(typ types.Type)
	visit = func(typ types.Type) {
		switch typ := typ.(type) {
		case *types.Class:
			add(typ.Decl)
			for _, super := range t.Supertypes(typ) {
				add(super.Decl)
			}
		case *types.TypeParam:
			if len(typ.Bounds) == 0 {
				add(t.object)
			}
			for _, b := range typ.Bounds {
				visit(b)
			}
		case *types.Intersection:
			for _, c := range typ.Conjuncts {
				visit(c)
			}
		default:
			add(t.object)
		}
	}
	visit(typ)
	return out
}

func (t *Table) minimalErasedCandidates(a, b types.Type) []*types.ClassDecl {
	bSupers := t.erasedSupertypes(b)
	var shared []*types.ClassDecl
	for _, decl := range t.erasedSupertypes(a) {
		if slices.Contains(bSupers, decl) {
			shared = append(shared, decl)
		}
	}
	var minimal []*types.ClassDecl
	for _, v := range shared {
		dominated := false
		for _, w := range shared {
			if w != v && t.isSubclass(w, v) {
				dominated = true
				break
			}
		}
		if !dominated {
			minimal = append(minimal, v)
		}
	}
	return minimal
}

func (t *Table) GreatestLowerBound(a, b types.Type) types.Type {
	if types.IsNone(a) {
		return b
	}
	if types.IsNone(b) {
		return a
	}
	if t.IsSubtype(a, b) {
		return a
	}
	if t.IsSubtype(b, a) {
		return b
	}
	conjuncts := []types.Type{a, b}
	if inter, ok := types.NewIntersection(a, b).(*types.Intersection); ok {
		conjuncts = inter.Conjuncts
	}
	// drop conjuncts implied by others
	var kept []types.Type
	for i, c := range conjuncts {
		implied := false
		for j, d := range conjuncts {
			if i != j && t.IsSubtype(d, c) && !(t.IsSubtype(c, d) && j > i) {
				implied = true
				break
			}
		}
		if !implied {
			kept = append(kept, c)
		}
	}
	slices.SortStableFunc(kept, func(x, y types.Type) int {
		return boolOrder(isInterface(x)) - boolOrder(isInterface(y))
	})
	return types.NewIntersection(kept...)
}
