package infer

import (
	"context"
	"slices"

	"github.com/cottand/tyinfer/frontend/expr"
	"github.com/cottand/tyinfer/frontend/types"
)

// FunctionType is the signature of the single abstract method of a
// parameterized functional interface
type FunctionType struct {
	Params []types.Type
	Return types.Type
	Throws []types.Type
}

// FunctionalMethod finds the single abstract method of c, declared by c's
// class or inherited, together with the parameterization that declares it
func FunctionalMethod(alg types.Algebra, c *types.Class) (*types.Method, *types.Class, bool) {
	if c.Decl.Functional != nil {
		return c.Decl.Functional, c, true
	}
	for _, super := range alg.Supertypes(c) {
		if super.Decl.Functional != nil {
			return super.Decl.Functional, super, true
		}
	}
	return nil, nil, false
}

// FunctionTypeOf returns the function type of the functional interface c.
// The function type of a raw type is erased.
func FunctionTypeOf(alg types.Algebra, c *types.Class) (FunctionType, bool) {
	m, owner, ok := FunctionalMethod(alg, c)
	if !ok {
		return FunctionType{}, false
	}
	if owner.Decl.Generic() && owner.IsRaw() {
		fn := FunctionType{Return: alg.Erasure(m.Return)}
		for _, p := range m.Params {
			fn.Params = append(fn.Params, alg.Erasure(p))
		}
		for _, t := range m.Throws {
			fn.Throws = append(fn.Throws, alg.Erasure(t))
		}
		return fn, true
	}
	site := owner.Bindings()
	return FunctionType{
		Params: types.SubstituteAll(site, m.Params),
		Return: types.Substitute(site, m.Return),
		Throws: types.SubstituteAll(site, m.Throws),
	}, true
}

// NonWildcardParameterization replaces the wildcard arguments of the
// functional interface c: an unbounded wildcard by the declared bound of its
// parameter, ? extends U by the glb of U and that bound, and ? super L by L.
// It fails when a replaced parameter's bound mentions the class's own
// parameters, or when the result is not well formed.
func NonWildcardParameterization(alg types.Algebra, c *types.Class) (*types.Class, bool) {
	if !c.HasWildcards() {
		return c, true
	}
	params := c.Decl.TypeParams
	if len(params) != len(c.Args) {
		return nil, false
	}
	args := make([]types.Type, len(c.Args))
	for i, arg := range c.Args {
		w, ok := arg.(*types.Wildcard)
		if !ok {
			args[i] = arg
			continue
		}
		var bound types.Type = alg.Object()
		if ub := params[i].UpperBound(); ub != nil {
			if types.MentionsParams(ub, params) {
				return nil, false
			}
			bound = ub
		}
		switch w.Kind {
		case types.Unbounded:
			args[i] = bound
		case types.Extends:
			args[i] = alg.GreatestLowerBound(w.Bound, bound)
		case types.Super:
			args[i] = w.Bound
		}
	}
	out := c.Decl.Of(args...)
	if !wellFormed(alg, out) {
		return nil, false
	}
	return out, true
}

// wellFormed reports whether the proper arguments of c are within the
// declared bounds of their parameters
func wellFormed(alg types.Algebra, c *types.Class) bool {
	site := c.Bindings()
	for i, p := range c.Decl.TypeParams {
		if i >= len(c.Args) {
			break
		}
		arg := c.Args[i]
		if _, ok := arg.(*types.Wildcard); ok || !types.IsProper(arg) {
			continue
		}
		for _, b := range p.Bounds {
			b = types.Substitute(site, b)
			if types.IsProper(b) && !alg.IsSubtype(arg, b) {
				return false
			}
		}
	}
	return true
}

// GroundTargetType computes the type a lambda targeting the functional
// interface target is checked against. For an explicitly typed lambda the
// parameterization is inferred from the declared parameter types; otherwise,
// or when that fails, it is the non-wildcard parameterization.
func GroundTargetType(ctx context.Context, alg types.Algebra, target *types.Class, l *expr.Lambda) (*types.Class, bool) {
	s := NewSession(ctx, alg, Settings{})
	ground, _, ok := s.groundTarget(target, l, types.Substitutor{})
	return ground, ok
}

// groundTarget returns the ground target type of l for fi, along with
// constraints which must hold when fi still mentions inference variables
func (s *Session) groundTarget(fi *types.Class, l *expr.Lambda, env types.Substitutor) (*types.Class, []Constraint, bool) {
	if !fi.HasWildcards() {
		return fi, nil, true
	}
	if len(l.Params) == 0 || !l.ExplicitlyTyped() {
		ground, ok := NonWildcardParameterization(s.alg, fi)
		return ground, nil, ok
	}
	if ground, ok := s.inferParameterization(fi, l, env); ok {
		if types.IsProper(fi) {
			if s.alg.IsSubtype(ground, fi) {
				return ground, nil, true
			}
		} else {
			return ground, []Constraint{StrictSubtype{ground, fi}}, true
		}
	}
	ground, ok := NonWildcardParameterization(s.alg, fi)
	return ground, nil, ok
}

// inferParameterization solves the arguments of fi's class in a detached
// session, equating the explicit parameter types of l with the parameters of
// the function type
func (s *Session) inferParameterization(fi *types.Class, l *expr.Lambda, env types.Substitutor) (*types.Class, bool) {
	decl := fi.Decl
	inner := NewSession(s.ctx, s.alg, Settings{
		Fuel:    s.settings.Fuel,
		Default: s.settings.Default,
		Logger:  s.logger,
		Fresher: s.settings.Fresher,
		Tracker: s.settings.Tracker,
	})
	vars := make([]*types.Var, len(decl.TypeParams))
	for i, p := range decl.TypeParams {
		vars[i] = inner.newVariable(p).ref
	}
	fn, ok := FunctionTypeOf(s.alg, decl.Of(varTypes(vars)...))
	if !ok || len(fn.Params) != len(l.Params) {
		return nil, false
	}
	for i, p := range l.Params {
		inner.addConstraint(Equality{types.Substitute(env, p.Type), fn.Params[i]})
	}
	if err := inner.repeatInferencePhases(); err != nil {
		s.logger.Debug("lambda parameterization failed", "target", fi, "err", err)
		return nil, false
	}

	args := make([]types.Type, len(vars))
	for i, v := range vars {
		args[i] = fi.Args[i]
		eqs := inner.variable(v.ID).properBounds(EqBound, inner.ground)
		if len(eqs) > 0 {
			args[i] = eqs[0]
		}
	}
	ground := decl.Of(args...)
	if slices.ContainsFunc(args, func(t types.Type) bool { _, ok := t.(*types.Wildcard); return ok }) {
		if ground, ok = NonWildcardParameterization(s.alg, ground); !ok {
			return nil, false
		}
	}
	if !wellFormed(s.alg, ground) {
		return nil, false
	}
	return ground, true
}
