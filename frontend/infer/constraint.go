package infer

import (
	"fmt"
	"hash/fnv"

	"github.com/cottand/tyinfer/frontend/types"
)

// Constraint is a formula over types which reduces to bounds and to further
// constraints. Reducing to false is reported as an error.
type Constraint interface {
	fmt.Stringer
	Hash() uint64
	reduce(s *Session) ([]Constraint, error)
}

func constraintHash(kind string, parts ...uint64) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(kind))
	buf := make([]byte, 8)
	for _, p := range parts {
		for i := range buf {
			buf[i] = byte(p >> (8 * i))
		}
		_, _ = h.Write(buf)
	}
	return h.Sum64()
}

var (
	_ Constraint = Equality{}
	_ Constraint = StrictSubtype{}
	_ Constraint = Compatibility{}
	_ Constraint = Containment{}
	_ Constraint = Capture{}
)

// Equality is ‹S = T›
type Equality struct {
	S, T types.Type
}

func (c Equality) String() string { return fmt.Sprintf("‹%v = %v›", c.S, c.T) }
func (c Equality) Hash() uint64   { return constraintHash("eq", c.S.Hash(), c.T.Hash()) }

func (c Equality) reduce(s *Session) ([]Constraint, error) {
	S, T := s.ground(c.S), s.ground(c.T)
	if types.Equal(S, T) {
		return nil, nil
	}
	sv, sIsVar := S.(*types.Var)
	tv, tIsVar := T.(*types.Var)
	switch {
	case sIsVar && tIsVar:
		s.addBound(sv.ID, T, EqBound)
		s.addBound(tv.ID, S, EqBound)
		return nil, nil
	case sIsVar:
		if !types.IsReference(T) {
			return nil, mismatch(S, T, "an inference variable cannot stand for a primitive")
		}
		s.addBound(sv.ID, T, EqBound)
		return nil, nil
	case tIsVar:
		if !types.IsReference(S) {
			return nil, mismatch(S, T, "an inference variable cannot stand for a primitive")
		}
		s.addBound(tv.ID, S, EqBound)
		return nil, nil
	}
	if types.IsProper(S) && types.IsProper(T) {
		if s.equivalentWildcards(S, T) {
			return nil, nil
		}
		return nil, mismatch(S, T, "types are not equal")
	}

	switch S := S.(type) {
	case *types.Class:
		tc, ok := T.(*types.Class)
		if !ok || S.Decl != tc.Decl || len(S.Args) != len(tc.Args) {
			return nil, mismatch(S, T, "different classes")
		}
		out := make([]Constraint, len(S.Args))
		for i := range S.Args {
			out[i] = Equality{S.Args[i], tc.Args[i]}
		}
		return out, nil
	case *types.Array:
		ta, ok := T.(*types.Array)
		if !ok {
			return nil, mismatch(S, T, "only one side is an array")
		}
		return []Constraint{Equality{S.Elem, ta.Elem}}, nil
	case *types.Wildcard:
		tw, ok := T.(*types.Wildcard)
		if !ok {
			return nil, mismatch(S, T, "only one side is a wildcard")
		}
		switch {
		case S.Kind == types.Super && tw.Kind == types.Super:
			return []Constraint{Equality{S.Bound, tw.Bound}}, nil
		case S.Kind != types.Super && tw.Kind != types.Super:
			return []Constraint{Equality{s.wildcardUpper(S), s.wildcardUpper(tw)}}, nil
		}
		return nil, mismatch(S, T, "wildcards of different kinds")
	case *types.Intersection:
		ti, ok := T.(*types.Intersection)
		if !ok || len(S.Conjuncts) != len(ti.Conjuncts) {
			return nil, mismatch(S, T, "intersections of different shapes")
		}
		out := make([]Constraint, len(S.Conjuncts))
		for i := range S.Conjuncts {
			out[i] = Equality{S.Conjuncts[i], ti.Conjuncts[i]}
		}
		return out, nil
	}
	return nil, mismatch(S, T, "types are not equal")
}

// StrictSubtype is ‹S <: T›
type StrictSubtype struct {
	S, T types.Type
}

func (c StrictSubtype) String() string { return fmt.Sprintf("‹%v <: %v›", c.S, c.T) }
func (c StrictSubtype) Hash() uint64   { return constraintHash("sub", c.S.Hash(), c.T.Hash()) }

func (c StrictSubtype) reduce(s *Session) ([]Constraint, error) {
	S, T := s.ground(c.S), s.ground(c.T)
	if types.IsProper(S) && types.IsProper(T) {
		if s.alg.IsSubtype(S, T) {
			return nil, nil
		}
		return nil, mismatch(S, T, "not a subtype")
	}
	if S == types.Null {
		return nil, nil
	}
	if T == types.Null {
		return nil, mismatch(S, T, "only null is a subtype of null")
	}
	sv, sIsVar := S.(*types.Var)
	tv, tIsVar := T.(*types.Var)
	if sIsVar {
		s.addBound(sv.ID, T, UpperBound)
		if tIsVar {
			s.addBound(tv.ID, S, LowerBound)
		}
		return nil, nil
	}
	if tIsVar {
		s.addBound(tv.ID, S, LowerBound)
		return nil, nil
	}

	switch T := T.(type) {
	case *types.Class:
		if T.Decl == s.alg.Object().Decl {
			return nil, nil
		}
		found, ok := types.AsSuper(s.alg, S, T.Decl)
		if !ok {
			return nil, mismatch(S, T, fmt.Sprintf("no supertype of '%v' is a %s", S, T.Name()))
		}
		if len(T.Args) == 0 {
			return nil, nil
		}
		if found.IsRaw() {
			return nil, mismatch(S, T, "the supertype is raw")
		}
		out := make([]Constraint, len(T.Args))
		for i := range T.Args {
			out[i] = Containment{found.Args[i], T.Args[i]}
		}
		return out, nil
	case *types.Array:
		arr, ok := S.(*types.Array)
		if !ok {
			return nil, mismatch(S, T, "not an array")
		}
		if types.IsReference(arr.Elem) && types.IsReference(T.Elem) {
			return []Constraint{StrictSubtype{arr.Elem, T.Elem}}, nil
		}
		if types.Equal(arr.Elem, T.Elem) {
			return nil, nil
		}
		return nil, mismatch(S, T, "primitive array elements differ")
	case *types.TypeParam:
		if inter, ok := S.(*types.Intersection); ok {
			for _, conj := range inter.Conjuncts {
				if types.Equal(conj, T) {
					return nil, nil
				}
			}
		}
		if T.Lower != nil {
			return []Constraint{StrictSubtype{S, T.Lower}}, nil
		}
	case *types.Intersection:
		out := make([]Constraint, len(T.Conjuncts))
		for i, conj := range T.Conjuncts {
			out[i] = StrictSubtype{S, conj}
		}
		return out, nil
	}
	return nil, mismatch(S, T, "not a subtype")
}

// Compatibility is ‹S → T›, compatibility in a loose invocation context
type Compatibility struct {
	S, T types.Type
}

func (c Compatibility) String() string { return fmt.Sprintf("‹%v → %v›", c.S, c.T) }
func (c Compatibility) Hash() uint64   { return constraintHash("compat", c.S.Hash(), c.T.Hash()) }

func (c Compatibility) reduce(s *Session) ([]Constraint, error) {
	S, T := s.ground(c.S), s.ground(c.T)
	if types.IsProper(S) && types.IsProper(T) {
		if s.alg.IsAssignable(S, T, false) {
			return nil, nil
		}
		if s.alg.IsAssignable(S, T, true) {
			s.markUnchecked()
			return nil, nil
		}
		return nil, mismatch(S, T, "not assignable")
	}
	if p, ok := S.(*types.Primitive); ok {
		boxed, ok := s.alg.Box(p)
		if !ok {
			return nil, mismatch(S, T, "cannot box")
		}
		return []Constraint{Compatibility{boxed, T}}, nil
	}
	if p, ok := T.(*types.Primitive); ok {
		boxed, ok := s.alg.Box(p)
		if !ok {
			return nil, mismatch(S, T, "cannot box")
		}
		return []Constraint{Equality{S, boxed}}, nil
	}
	if t, ok := T.(*types.Class); ok && len(t.Args) > 0 {
		if _, sIsVar := S.(*types.Var); !sIsVar {
			if found, ok := types.AsSuper(s.alg, S, t.Decl); ok && found.IsRaw() {
				s.markUnchecked()
				return nil, nil
			}
		}
	}
	return []Constraint{StrictSubtype{S, T}}, nil
}

// Containment is ‹S <= T›, type argument containment
type Containment struct {
	S, T types.Type
}

func (c Containment) String() string { return fmt.Sprintf("‹%v <= %v›", c.S, c.T) }
func (c Containment) Hash() uint64   { return constraintHash("contains", c.S.Hash(), c.T.Hash()) }

func (c Containment) reduce(s *Session) ([]Constraint, error) {
	S, T := s.ground(c.S), s.ground(c.T)
	sw, sIsWildcard := S.(*types.Wildcard)
	tw, tIsWildcard := T.(*types.Wildcard)
	if !tIsWildcard {
		if sIsWildcard {
			return nil, mismatch(S, T, "a wildcard is only contained by a wildcard")
		}
		return []Constraint{Equality{S, T}}, nil
	}
	switch tw.Kind {
	case types.Unbounded:
		return nil, nil
	case types.Extends:
		switch {
		case !sIsWildcard:
			return []Constraint{StrictSubtype{S, tw.Bound}}, nil
		case sw.Kind == types.Super:
			return []Constraint{Equality{s.alg.Object(), tw.Bound}}, nil
		}
		return []Constraint{StrictSubtype{s.wildcardUpper(sw), tw.Bound}}, nil
	case types.Super:
		switch {
		case !sIsWildcard:
			return []Constraint{StrictSubtype{tw.Bound, S}}, nil
		case sw.Kind == types.Super:
			return []Constraint{StrictSubtype{tw.Bound, sw.Bound}}, nil
		}
		return nil, mismatch(S, T, "only a super wildcard is contained by a super wildcard")
	}
	return nil, mismatch(S, T, "unknown wildcard")
}

// Capture is ‹G<β1..βn> = capture(G<A1..An>)›
type Capture struct {
	Vars []*types.Var
	Type *types.Class
}

func (c Capture) String() string {
	return fmt.Sprintf("‹%v = capture(%v)›", c.Type.Decl.Of(varTypes(c.Vars)...), c.Type)
}

func (c Capture) Hash() uint64 {
	parts := []uint64{c.Type.Hash()}
	for _, v := range c.Vars {
		parts = append(parts, v.Hash())
	}
	return constraintHash("capture", parts...)
}

func (c Capture) reduce(s *Session) ([]Constraint, error) {
	s.addCapture(c.Vars, c.Type)
	return nil, nil
}

func varTypes(vars []*types.Var) []types.Type {
	out := make([]types.Type, len(vars))
	for i, v := range vars {
		out[i] = v
	}
	return out
}
