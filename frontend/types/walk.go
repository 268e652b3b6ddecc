package types

import (
	"iter"
)

// Map rebuilds t bottom-up. f is called on every node before its children;
// when it returns true its result replaces the node and the children are not visited.
// Nodes which are left unchanged are shared with t.
func Map(t Type, f func(Type) (Type, bool)) Type {
	if t == nil {
		return nil
	}
	if replaced, ok := f(t); ok {
		return replaced
	}
	switch t := t.(type) {
	case *Class:
		if len(t.Args) == 0 {
			return t
		}
		var args []Type
		for i, arg := range t.Args {
			mapped := Map(arg, f)
			if args == nil && mapped != arg {
				args = make([]Type, len(t.Args))
				copy(args, t.Args[:i])
			}
			if args != nil {
				args[i] = mapped
			}
		}
		if args == nil {
			return t
		}
		return &Class{Decl: t.Decl, Args: args}
	case *Array:
		elem := Map(t.Elem, f)
		if elem == t.Elem {
			return t
		}
		return &Array{Elem: elem}
	case *Wildcard:
		if t.Bound == nil {
			return t
		}
		bound := Map(t.Bound, f)
		if bound == t.Bound {
			return t
		}
		// ? extends ? and similar collapse into the substituted wildcard
		if inner, ok := bound.(*Wildcard); ok {
			if inner.Kind == t.Kind || inner.Kind == Unbounded {
				return inner
			}
			return NewUnbounded()
		}
		return &Wildcard{Kind: t.Kind, Bound: bound}
	case *Intersection:
		conjuncts := make([]Type, len(t.Conjuncts))
		changed := false
		for i, c := range t.Conjuncts {
			conjuncts[i] = Map(c, f)
			changed = changed || conjuncts[i] != c
		}
		if !changed {
			return t
		}
		return NewIntersection(conjuncts...)
	}
	return t
}

// Walk visits t and the types nested in it in pre-order. Bounds of type parameters are not visited.
func Walk(t Type) iter.Seq[Type] {
	return func(yield func(Type) bool) {
		walk(t, yield)
	}
}

func walk(t Type, yield func(Type) bool) bool {
	if t == nil {
		return true
	}
	if !yield(t) {
		return false
	}
	switch t := t.(type) {
	case *Class:
		for _, arg := range t.Args {
			if !walk(arg, yield) {
				return false
			}
		}
	case *Array:
		return walk(t.Elem, yield)
	case *Wildcard:
		return walk(t.Bound, yield)
	case *Intersection:
		for _, c := range t.Conjuncts {
			if !walk(c, yield) {
				return false
			}
		}
	}
	return true
}

// Vars returns the ids of the inference variables mentioned by t, in order of first appearance
func Vars(t Type) []VarID {
	var ids []VarID
	for node := range Walk(t) {
		if v, ok := node.(*Var); ok {
			seen := false
			for _, id := range ids {
				if id == v.ID {
					seen = true
					break
				}
			}
			if !seen {
				ids = append(ids, v.ID)
			}
		}
	}
	return ids
}

// IsProper reports whether t mentions no inference variables
func IsProper(t Type) bool {
	for node := range Walk(t) {
		if _, ok := node.(*Var); ok {
			return false
		}
	}
	return true
}

// Mentions reports whether any node of t satisfies pred
func Mentions(t Type, pred func(Type) bool) bool {
	for node := range Walk(t) {
		if pred(node) {
			return true
		}
	}
	return false
}

// MentionsParams reports whether t mentions any of params
func MentionsParams(t Type, params []*TypeParam) bool {
	return Mentions(t, func(node Type) bool {
		p, ok := node.(*TypeParam)
		if !ok {
			return false
		}
		for _, candidate := range params {
			if candidate == p {
				return true
			}
		}
		return false
	})
}
