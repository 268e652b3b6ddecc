package types

// Algebra answers the type compatibility questions inference relies on.
// Inference never implements subtyping itself; it only drives an Algebra.
type Algebra interface {
	IsSubtype(sub, super Type) bool
	// IsAssignable reports whether a value of type from can be assigned to to,
	// allowing boxing and, when allowUnchecked is set, unchecked conversion
	IsAssignable(from, to Type, allowUnchecked bool) bool
	LeastUpperBound(a, b Type) Type
	GreatestLowerBound(a, b Type) Type
	Substitute(s Substitutor, t Type) Type
	Erasure(t Type) Type
	// Supertypes enumerates the proper supertypes of c transitively, with the
	// type arguments of c substituted in. The result of a raw c is erased.
	Supertypes(c *Class) []*Class
	Box(p *Primitive) (*Class, bool)
	Unbox(c *Class) (*Primitive, bool)
	Object() *Class
	Lookup(name string) (*ClassDecl, bool)
}

// AsSuper finds the parameterization of decl among t and its supertypes.
// It understands classes, type parameters (through their bounds) and intersections.
func AsSuper(alg Algebra, t Type, decl *ClassDecl) (*Class, bool) {
	switch t := t.(type) {
	case *Class:
		if t.Decl == decl {
			return t, true
		}
		for _, super := range alg.Supertypes(t) {
			if super.Decl == decl {
				return super, true
			}
		}
	case *TypeParam:
		for _, bound := range t.Bounds {
			if found, ok := AsSuper(alg, bound, decl); ok {
				return found, true
			}
		}
		if len(t.Bounds) == 0 && alg.Object().Decl == decl {
			return alg.Object(), true
		}
	case *Intersection:
		for _, c := range t.Conjuncts {
			if found, ok := AsSuper(alg, c, decl); ok {
				return found, true
			}
		}
	case *Array:
		if alg.Object().Decl == decl {
			return alg.Object(), true
		}
	}
	return nil, false
}

// LubAll folds LeastUpperBound over ts. It returns None for an empty slice.
func LubAll(alg Algebra, ts []Type) Type {
	var acc Type = None
	for _, t := range ts {
		if IsNone(acc) {
			acc = t
			continue
		}
		acc = alg.LeastUpperBound(acc, t)
	}
	return acc
}

// GlbAll folds GreatestLowerBound over ts. It returns None for an empty slice.
func GlbAll(alg Algebra, ts []Type) Type {
	var acc Type = None
	for _, t := range ts {
		if IsNone(acc) {
			acc = t
			continue
		}
		acc = alg.GreatestLowerBound(acc, t)
	}
	return acc
}
