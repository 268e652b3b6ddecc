package classtable

import (
	"github.com/cottand/tyinfer/frontend/types"
	"github.com/hashicorp/go-set/v3"
)

// widening lists the direct primitive supertypes
var widening = map[string][]string{
	types.Byte.Name:  {types.Short.Name},
	types.Short.Name: {types.Int.Name},
	types.Char.Name:  {types.Int.Name},
	types.Int.Name:   {types.Long.Name},
	types.Long.Name:  {types.Float.Name},
	types.Float.Name: {types.Double.Name},
}

func primitiveWidens(from, to *types.Primitive) bool {
	if from.Name == to.Name {
		return true
	}
	for _, next := range widening[from.Name] {
		p, _ := types.PrimitiveNamed(next)
		if primitiveWidens(p, to) {
			return true
		}
	}
	return false
}

func (t *Table) IsSubtype(sub, super types.Type) bool {
	if types.Equal(sub, super) {
		return true
	}
	if types.IsNone(sub) || types.IsNone(super) {
		return false
	}
	if sub == types.Null {
		return types.IsReference(super)
	}
	if subPrim, ok := sub.(*types.Primitive); ok {
		superPrim, ok := super.(*types.Primitive)
		return ok && subPrim != types.Void && primitiveWidens(subPrim, superPrim)
	}
	if _, ok := super.(*types.Primitive); ok {
		return false
	}
	if superClass, ok := super.(*types.Class); ok && superClass.Decl == t.object {
		return true
	}

	switch s := sub.(type) {
	case *types.Var:
		return false
	case *types.Wildcard:
		return t.IsSubtype(t.wildcardUpper(s), super)
	case *types.Intersection:
		for _, c := range s.Conjuncts {
			if t.IsSubtype(c, super) {
				return true
			}
		}
		return false
	}

	switch sup := super.(type) {
	case *types.Var:
		return false
	case *types.Wildcard:
		if sup.Kind == types.Super {
			return t.IsSubtype(sub, sup.Bound)
		}
		return false
	case *types.Intersection:
		for _, c := range sup.Conjuncts {
			if !t.IsSubtype(sub, c) {
				return false
			}
		}
		return true
	case *types.TypeParam:
		if sp, ok := sub.(*types.TypeParam); ok && t.paramBoundedBy(sp, sup) {
			return true
		}
		if sup.Lower != nil {
			return t.IsSubtype(sub, sup.Lower)
		}
		return false
	case *types.Array:
		subArr, ok := sub.(*types.Array)
		if !ok {
			if sp, ok := sub.(*types.TypeParam); ok {
				return t.boundsSubtype(sp, super)
			}
			return false
		}
		if types.IsReference(subArr.Elem) && types.IsReference(sup.Elem) {
			return t.IsSubtype(subArr.Elem, sup.Elem)
		}
		return types.Equal(subArr.Elem, sup.Elem)
	case *types.Class:
		if sp, ok := sub.(*types.TypeParam); ok {
			return t.boundsSubtype(sp, super)
		}
		found, ok := types.AsSuper(t, sub, sup.Decl)
		if !ok {
			return false
		}
		if sup.IsRaw() || len(sup.Args) == 0 {
			return true
		}
		if found.IsRaw() {
			return false
		}
		for i := range sup.Args {
			if !t.contains(sup.Args[i], found.Args[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func (t *Table) boundsSubtype(p *types.TypeParam, super types.Type) bool {
	if len(p.Bounds) == 0 {
		return t.IsSubtype(t.Object(), super)
	}
	for _, b := range p.Bounds {
		if t.IsSubtype(b, super) {
			return true
		}
	}
	return false
}

// paramBoundedBy reports whether p reaches target through a chain of type parameter bounds
func (t *Table) paramBoundedBy(p, target *types.TypeParam) bool {
	seen := set.New[*types.TypeParam](4)
	var visit func(q *types.TypeParam) bool
	visit = func(q *types.TypeParam) bool {
		if q == target {
			return true
		}
		if !seen.Insert(q) {
			return false
		}
		for _, b := range q.Bounds {
			if bp, ok := b.(*types.TypeParam); ok && visit(bp) {
				return true
			}
		}
		return false
	}
	return visit(p)
}

func (t *Table) wildcardUpper(w *types.Wildcard) types.Type {
	if w.Kind == types.Extends {
		return w.Bound
	}
	return t.Object()
}

// contains reports whether type argument arg is contained by type argument container
func (t *Table) contains(container, arg types.Type) bool {
	w, isWildcard := container.(*types.Wildcard)
	if !isWildcard {
		return types.Equal(container, arg)
	}
	argW, argIsWildcard := arg.(*types.Wildcard)
	switch w.Kind {
	case types.Unbounded:
		return true
	case types.Extends:
		if argIsWildcard {
			if argW.Kind == types.Super {
				return t.IsSubtype(t.Object(), w.Bound)
			}
			return t.IsSubtype(t.wildcardUpper(argW), w.Bound)
		}
		return t.IsSubtype(arg, w.Bound)
	case types.Super:
		if argIsWildcard {
			return argW.Kind == types.Super && t.IsSubtype(w.Bound, argW.Bound)
		}
		return t.IsSubtype(w.Bound, arg)
	}
	return false
}

func (t *Table) IsAssignable(from, to types.Type, allowUnchecked bool) bool {
	if t.IsSubtype(from, to) {
		return true
	}
	fromPrim, fromIsPrim := from.(*types.Primitive)
	toPrim, toIsPrim := to.(*types.Primitive)
	switch {
	case fromIsPrim && toIsPrim:
		return false
	case fromIsPrim:
		boxed, ok := t.Box(fromPrim)
		return ok && t.IsSubtype(boxed, to)
	case toIsPrim:
		c, ok := from.(*types.Class)
		if !ok {
			return false
		}
		unboxed, ok := t.Unbox(c)
		return ok && primitiveWidens(unboxed, toPrim)
	}
	if !allowUnchecked {
		return false
	}
	toClass, ok := to.(*types.Class)
	if !ok || toClass.IsRaw() {
		return false
	}
	found, ok := types.AsSuper(t, from, toClass.Decl)
	return ok && found.IsRaw()
}

func (t *Table) Erasure(typ types.Type) types.Type {
	switch typ := typ.(type) {
	case *types.Class:
		if len(typ.Args) == 0 {
			return typ
		}
		return typ.Decl.Of()
	case *types.Array:
		return &types.Array{Elem: t.Erasure(typ.Elem)}
	case *types.TypeParam:
		if len(typ.Bounds) == 0 {
			return t.Object()
		}
		return t.Erasure(typ.Bounds[0])
	case *types.Intersection:
		return t.Erasure(typ.Conjuncts[0])
	case *types.Wildcard:
		if typ.Kind == types.Extends {
			return t.Erasure(typ.Bound)
		}
		return t.Object()
	case *types.Var:
		return t.Object()
	}
	return typ
}
