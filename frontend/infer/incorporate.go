package infer

import (
	"slices"

	"github.com/cottand/tyinfer/frontend/ilerr"
	"github.com/cottand/tyinfer/frontend/types"
)

// captureRecord remembers that vars capture the wildcards of captured
type captureRecord struct {
	vars     []types.VarID
	captured *types.Class
	// disabled records stop contributing after they were found unresolvable
	disabled bool
}

func (r *captureRecord) copy() *captureRecord {
	c := *r
	c.vars = slices.Clone(r.vars)
	return &c
}

func (s *Session) addCapture(vars []*types.Var, captured *types.Class) {
	rec := &captureRecord{captured: captured}
	for i, v := range vars {
		rec.vars = append(rec.vars, v.ID)
		variable := s.variable(v.ID)
		if i >= len(captured.Args) || variable == nil {
			continue
		}
		if w, ok := captured.Args[i].(*types.Wildcard); ok {
			variable.capture = w
		} else {
			s.addBound(v.ID, captured.Args[i], EqBound)
		}
	}
	s.captures = append(s.captures, rec)
}

// incorporate derives the constraints implied by pairs of bounds of every
// variable, and by capture records
func (s *Session) incorporate() {
	for _, rec := range s.captures {
		s.incorporateCapture(rec)
	}
	for _, v := range s.vars {
		if s.forced[v.ID] {
			continue
		}
		eqs, ups, lows := v.bounds[EqBound], v.bounds[UpperBound], v.bounds[LowerBound]
		for i, eq := range eqs {
			for _, other := range eqs[i+1:] {
				s.addConstraint(Equality{eq, other})
			}
			for _, up := range ups {
				s.addConstraint(StrictSubtype{eq, up})
			}
			for _, low := range lows {
				s.addConstraint(StrictSubtype{low, eq})
			}
		}
		for _, low := range lows {
			for _, up := range ups {
				s.addConstraint(StrictSubtype{low, up})
			}
		}
		for i, up := range ups {
			for _, other := range ups[i+1:] {
				s.correlateUpperBounds(up, other)
			}
		}
		if eq := v.composeEquality(s.ground); !types.IsNone(eq) {
			s.substituteEquality(v, eq)
		}
	}
}

// correlateUpperBounds equates the type arguments of a generic class which
// both a and b extend, where neither argument is a wildcard
func (s *Session) correlateUpperBounds(a, b types.Type) {
	a, b = s.ground(a), s.ground(b)
	if _, ok := a.(*types.Var); ok {
		return
	}
	if _, ok := b.(*types.Var); ok {
		return
	}
	for _, super := range s.superClosure(a) {
		if !super.Decl.Generic() || super.IsRaw() {
			continue
		}
		other, ok := types.AsSuper(s.alg, b, super.Decl)
		if !ok || other.IsRaw() {
			continue
		}
		for i := range super.Args {
			_, wa := super.Args[i].(*types.Wildcard)
			_, wb := other.Args[i].(*types.Wildcard)
			if !wa && !wb {
				s.addConstraint(Equality{super.Args[i], other.Args[i]})
			}
		}
	}
}

// superClosure lists the parameterized classes t is a subtype of, t included
func (s *Session) superClosure(t types.Type) []*types.Class {
	var out []*types.Class
	switch t := t.(type) {
	case *types.Class:
		out = append(out, t)
		out = append(out, s.alg.Supertypes(t)...)
	case *types.TypeParam:
		for _, b := range t.Bounds {
			out = append(out, s.superClosure(b)...)
		}
	case *types.Intersection:
		for _, c := range t.Conjuncts {
			out = append(out, s.superClosure(c)...)
		}
	}
	return out
}

// substituteEquality rewrites the bounds of other variables which mention v
// using v's proper equality bound eq
func (s *Session) substituteEquality(v *Variable, eq types.Type) {
	sub := types.NewSubstitutor().Put(v.ref, eq)
	for _, w := range s.vars {
		if w == v || s.forced[w.ID] {
			continue
		}
		for kind := range boundKinds {
			for _, b := range w.bounds[kind] {
				if !slices.Contains(types.Vars(b), v.ID) {
					continue
				}
				s.addBound(w.ID, types.Substitute(sub, b), kind)
			}
		}
	}
}

// incorporateCapture applies the bounds a captured wildcard imposes on the
// variable capturing it
func (s *Session) incorporateCapture(rec *captureRecord) {
	if rec.disabled {
		return
	}
	theta := types.NewSubstitutor()
	for i, p := range rec.captured.Decl.TypeParams {
		if i < len(rec.vars) {
			theta = theta.Put(p, s.variable(rec.vars[i]).ref)
		}
	}
	for i, arg := range rec.captured.Args {
		w, ok := arg.(*types.Wildcard)
		if !ok || i >= len(rec.vars) {
			continue
		}
		v := s.variable(rec.vars[i])
		if v.IsResolved() {
			continue
		}
		declared := s.declaredBound(rec.captured.Decl.TypeParams[i], theta)

		for _, r := range v.bounds[EqBound] {
			switch s.ground(r).(type) {
			case *types.Var, *types.TypeParam:
			default:
				s.captureUnresolvable(rec, v, w, r)
				return
			}
		}
		for _, r := range v.bounds[UpperBound] {
			switch w.Kind {
			case types.Extends:
				if s.isObject(w.Bound) {
					s.addConstraint(StrictSubtype{declared, r})
				}
				if s.isObject(declared) {
					s.addConstraint(StrictSubtype{w.Bound, r})
				}
			default:
				s.addConstraint(StrictSubtype{declared, r})
			}
		}
		for _, r := range v.bounds[LowerBound] {
			if w.Kind == types.Super {
				s.addConstraint(StrictSubtype{r, w.Bound})
				continue
			}
			ground := s.ground(r)
			if _, isVar := ground.(*types.Var); !isVar && ground != types.Null {
				s.captureUnresolvable(rec, v, w, r)
				return
			}
		}
	}
}

func (s *Session) captureUnresolvable(rec *captureRecord, v *Variable, w *types.Wildcard, bound types.Type) {
	rec.disabled = true
	s.erased = true
	s.report(ilerr.New(ilerr.NewCaptureUnresolvable{
		Var:      s.restoreNames(v.ref).String(),
		Captured: w,
		Bound:    s.restoreNames(s.ground(bound)),
	}))
}

// isFullyIncorporated mirrors bounds between variables: α <: β also means
// β :> α. It reports false when this added any bound.
func (s *Session) isFullyIncorporated() bool {
	complete := true
	for _, v := range s.vars {
		for kind := range boundKinds {
			for _, b := range v.bounds[kind] {
				other, ok := b.(*types.Var)
				if !ok {
					continue
				}
				mirrored := kind
				switch kind {
				case UpperBound:
					mirrored = LowerBound
				case LowerBound:
					mirrored = UpperBound
				}
				if s.addBound(other.ID, v.ref, mirrored) {
					complete = false
				}
			}
		}
	}
	return complete
}
