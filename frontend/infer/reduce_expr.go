package infer

import (
	"fmt"
	"slices"

	"github.com/cottand/tyinfer/frontend/expr"
	"github.com/cottand/tyinfer/frontend/ilerr"
	"github.com/cottand/tyinfer/frontend/types"
)

var (
	_ Constraint = ExpressionCompatibility{}
	_ Constraint = CheckedException{}
)

// ExpressionCompatibility is ‹e → T›. Env binds the parameter slots of the
// lambdas enclosing e.
type ExpressionCompatibility struct {
	Expr expr.Expr
	T    types.Type
	Env  types.Substitutor
}

func (c ExpressionCompatibility) String() string {
	return fmt.Sprintf("‹%s#%d → %v›", c.Expr.Shape(), c.Expr.ID(), c.T)
}

func (c ExpressionCompatibility) Hash() uint64 {
	return constraintHash("expr", uint64(c.Expr.ID()), c.T.Hash(), c.Env.Hash())
}

func (c ExpressionCompatibility) reduce(s *Session) ([]Constraint, error) {
	T := s.ground(c.T)
	switch e := c.Expr.(type) {
	case *expr.Typed:
		t := types.Substitute(c.Env, e.Type)
		if cls, ok := t.(*types.Class); ok && cls.HasWildcards() {
			if types.IsProper(cls) {
				return []Constraint{Compatibility{s.captureArgument(cls), T}}, nil
			}
			return s.captureConstraints(cls, T), nil
		}
		return []Constraint{Compatibility{t, T}}, nil
	case *expr.Paren:
		return []Constraint{ExpressionCompatibility{e.Inner, T, c.Env}}, nil
	case *expr.Conditional:
		return []Constraint{
			ExpressionCompatibility{e.Then, T, c.Env},
			ExpressionCompatibility{e.Else, T, c.Env},
		}, nil
	case *expr.Switch:
		out := make([]Constraint, len(e.Results))
		for i, r := range e.Results {
			out[i] = ExpressionCompatibility{r, T, c.Env}
		}
		return out, nil
	case *expr.Call:
		return s.reduceCall(e, T, c.Env)
	case *expr.Lambda:
		if _, ok := T.(*types.Var); ok {
			s.deferConstraint(ExpressionCompatibility{e, T, c.Env})
			return nil, nil
		}
		return s.reduceLambda(e, T, c.Env)
	case *expr.MethodRef:
		if _, ok := T.(*types.Var); ok {
			s.deferConstraint(ExpressionCompatibility{e, T, c.Env})
			return nil, nil
		}
		return s.reduceMethodRef(e, T, c.Env)
	}
	return nil, mismatch(types.None, T, fmt.Sprintf("unknown expression shape %s", c.Expr.Shape()))
}

// reduceCall merges the inference of a nested generic call into s
func (s *Session) reduceCall(call *expr.Call, target types.Type, env types.Substitutor) ([]Constraint, error) {
	if inProgress(s.ctx, call.ID()) {
		s.report(ilerr.New(ilerr.NewRecursiveCallGraph{Call: call.Method.Name}))
		s.erased = true
		return nil, nil
	}
	if _, seen := s.calls[call.ID()]; seen {
		rec := s.calls[call.ID()]
		return s.returnConstraints(s.callReturn(rec), target), nil
	}
	ret, err := s.seedCall(call, env)
	if err != nil {
		return nil, err
	}
	if call.Method.IsVoid() {
		return nil, mismatch(ret, target, fmt.Sprintf("%s returns nothing", call.Method.Name))
	}
	return s.returnConstraints(ret, target), nil
}

// callReturn is the return type of a recorded call in terms of its variables
func (s *Session) callReturn(rec *callRecord) types.Type {
	theta := rec.call.Site
	for i, p := range rec.params {
		switch {
		case i < len(rec.vars):
			theta = theta.Put(p, rec.vars[i])
		case i < len(rec.explicit):
			theta = theta.Put(p, rec.explicit[i])
		}
	}
	return types.Substitute(theta, rec.call.Method.Return)
}

// lambdaEnv binds the parameter slots of l to the parameter types of fn
func lambdaEnv(env types.Substitutor, l *expr.Lambda, fn FunctionType) types.Substitutor {
	for i, p := range l.Params {
		if p.Slot == nil {
			continue
		}
		if p.Type != nil {
			env = env.Put(p.Slot, types.Substitute(env, p.Type))
		} else if i < len(fn.Params) {
			env = env.Put(p.Slot, fn.Params[i])
		}
	}
	return env
}

func (s *Session) reduceLambda(l *expr.Lambda, target types.Type, env types.Substitutor) ([]Constraint, error) {
	fi, ok := target.(*types.Class)
	if !ok {
		return nil, mismatch(types.None, target, "a lambda needs a functional interface target")
	}
	ground, extra, ok := s.groundTarget(fi, l, env)
	if !ok {
		return nil, mismatch(types.None, target, "no valid parameterization of the functional interface")
	}
	fn, ok := FunctionTypeOf(s.alg, ground)
	if !ok {
		return nil, mismatch(types.None, target, fmt.Sprintf("%s is not a functional interface", fi.Name()))
	}
	if len(fn.Params) != len(l.Params) {
		return nil, mismatch(ground, types.None,
			fmt.Sprintf("lambda takes %d parameters, function type takes %d", len(l.Params), len(fn.Params)))
	}
	out := extra
	if l.ExplicitlyTyped() {
		for i, p := range l.Params {
			out = append(out, Equality{types.Substitute(env, p.Type), fn.Params[i]})
		}
	} else {
		for _, p := range fn.Params {
			if !types.IsProper(s.ground(p)) {
				s.deferConstraint(ExpressionCompatibility{l, target, env})
				return nil, nil
			}
		}
	}
	inner := lambdaEnv(env, l, fn)
	if isVoid(fn.Return) {
		if len(l.Returns) > 0 && !l.VoidCompatible {
			return nil, mismatch(ground, types.Void, "lambda body returns a value")
		}
		return out, nil
	}
	if len(l.Returns) == 0 {
		if l.VoidCompatible {
			return nil, mismatch(ground, fn.Return, "lambda body returns no value")
		}
		return out, nil
	}
	for _, r := range l.Returns {
		out = append(out, ExpressionCompatibility{r, fn.Return, inner})
	}
	return out, nil
}

func isVoid(t types.Type) bool {
	p, ok := t.(*types.Primitive)
	return ok && p == types.Void
}

func (s *Session) reduceMethodRef(m *expr.MethodRef, target types.Type, env types.Substitutor) ([]Constraint, error) {
	fi, ok := target.(*types.Class)
	if !ok {
		return nil, mismatch(types.None, target, "a method reference needs a functional interface target")
	}
	ground, ok := NonWildcardParameterization(s.alg, fi)
	if !ok {
		return nil, mismatch(types.None, target, "no valid parameterization of the functional interface")
	}
	fn, ok := FunctionTypeOf(s.alg, ground)
	if !ok {
		return nil, mismatch(types.None, target, fmt.Sprintf("%s is not a functional interface", fi.Name()))
	}
	qualifier := types.Substitute(env, m.Qualifier)

	if m.Exact() {
		method := m.Candidates[0]
		site := methodSite(method, qualifier, m.TypeArgs)
		params := types.SubstituteAll(site, method.Params)
		var out []Constraint
		switch {
		case len(fn.Params) == len(params)+1 && m.TypeQualified && !method.Static:
			out = append(out, StrictSubtype{fn.Params[0], qualifier})
			for i, p := range params {
				out = append(out, Compatibility{fn.Params[i+1], p})
			}
		case len(fn.Params) == len(params):
			for i, p := range params {
				out = append(out, Compatibility{fn.Params[i], p})
			}
		default:
			return nil, mismatch(ground, types.None, fmt.Sprintf("%s takes %d parameters", method.Name, len(params)))
		}
		if isVoid(fn.Return) {
			return out, nil
		}
		if method.IsVoid() {
			return nil, mismatch(ground, fn.Return, fmt.Sprintf("%s returns nothing", method.Name))
		}
		return append(out, s.returnConstraints(types.Substitute(site, method.Return), fn.Return)...), nil
	}

	method, receiver := s.selectCandidate(m, qualifier, fn)
	if method == nil {
		return nil, mismatch(ground, types.None, "no method matches the function type")
	}
	if isVoid(fn.Return) {
		return nil, nil
	}
	if method.IsVoid() {
		return nil, mismatch(ground, fn.Return, fmt.Sprintf("%s returns nothing", method.Name))
	}
	args := fn.Params
	if receiver {
		args = args[1:]
	}
	if method.Generic() && len(m.TypeArgs) == 0 {
		// the referenced method is inferred like a call whose arguments
		// have the types of the function type's parameters
		call := methodRefCall(m, method, qualifier, args)
		return s.reduceCall(call, fn.Return, env)
	}
	site := methodSite(method, qualifier, m.TypeArgs)
	return s.returnConstraints(types.Substitute(site, method.Return), fn.Return), nil
}

// methodSite binds the class type parameters of the qualifier and the
// explicit type arguments of a referenced method
func methodSite(method *types.Method, qualifier types.Type, typeArgs []types.Type) types.Substitutor {
	site := types.NewSubstitutor()
	if c, ok := qualifier.(*types.Class); ok {
		site = c.Bindings()
	}
	if len(typeArgs) == len(method.TypeParams) {
		for i, p := range method.TypeParams {
			site = site.Put(p, typeArgs[i])
		}
	}
	return site
}

// selectCandidate picks the first candidate of an inexact method reference
// which accepts the function type's parameters. receiver is set when the
// first parameter is the receiver of an instance method.
func (s *Session) selectCandidate(m *expr.MethodRef, qualifier types.Type, fn FunctionType) (*types.Method, bool) {
	accepts := func(method *types.Method, args []types.Type) bool {
		expanded := !method.AcceptsArity(len(args), false)
		if expanded && !method.AcceptsArity(len(args), true) {
			return false
		}
		site := methodSite(method, qualifier, m.TypeArgs)
		for i, arg := range args {
			param := types.Substitute(site, method.ParamType(i, expanded))
			arg = s.ground(arg)
			if types.IsProper(arg) && types.IsProper(param) && !types.MentionsParams(param, method.TypeParams) &&
				!s.alg.IsAssignable(arg, param, true) {
				return false
			}
		}
		return true
	}
	for _, method := range m.Candidates {
		if accepts(method, fn.Params) {
			return method, false
		}
		if m.TypeQualified && !method.Static && len(fn.Params) > 0 && accepts(method, fn.Params[1:]) {
			return method, true
		}
	}
	return nil, false
}

// methodRefCall builds the call a method reference stands for
func methodRefCall(m *expr.MethodRef, method *types.Method, qualifier types.Type, args []types.Type) *expr.Call {
	exprs := make([]expr.Expr, len(args))
	for i, a := range args {
		exprs[i] = expr.NewTyped(a)
	}
	call := expr.NewCall(method, exprs...)
	call.TypeArgs = m.TypeArgs
	if c, ok := qualifier.(*types.Class); ok {
		call.Site = c.Bindings()
	}
	expr.Reparent(call, m)
	return call
}

// CheckedException is ‹e →throws T› for a lambda or method reference e
type CheckedException struct {
	Expr expr.Expr
	T    types.Type
	Env  types.Substitutor
}

func (c CheckedException) String() string {
	return fmt.Sprintf("‹%s#%d →throws %v›", c.Expr.Shape(), c.Expr.ID(), c.T)
}

func (c CheckedException) Hash() uint64 {
	return constraintHash("throws", uint64(c.Expr.ID()), c.T.Hash(), c.Env.Hash())
}

func (c CheckedException) reduce(s *Session) ([]Constraint, error) {
	T := s.ground(c.T)
	fi, ok := T.(*types.Class)
	if !ok {
		if _, isVar := T.(*types.Var); isVar {
			s.deferConstraint(CheckedException{c.Expr, T, c.Env})
		}
		return nil, nil
	}
	var thrown []types.Type
	var ground *types.Class
	switch e := c.Expr.(type) {
	case *expr.Lambda:
		g, _, ok := s.groundTarget(fi, e, c.Env)
		if !ok {
			return nil, nil
		}
		ground = g
		thrown = types.SubstituteAll(c.Env, e.Thrown)
	case *expr.MethodRef:
		g, ok := NonWildcardParameterization(s.alg, fi)
		if !ok {
			return nil, nil
		}
		ground = g
		for _, m := range e.Candidates {
			thrown = append(thrown, m.Throws...)
		}
	default:
		return nil, nil
	}
	fn, ok := FunctionTypeOf(s.alg, ground)
	if !ok {
		return nil, nil
	}

	var vars []*types.Var
	var proper []types.Type
	for _, t := range fn.Throws {
		t = s.ground(t)
		if v, ok := t.(*types.Var); ok {
			vars = append(vars, v)
			if variable := s.variable(v.ID); variable != nil {
				variable.thrown = true
			}
		} else if types.IsProper(t) {
			proper = append(proper, t)
		}
	}
	var out []Constraint
	for _, x := range thrown {
		if s.unchecked(x) || slices.ContainsFunc(proper, func(p types.Type) bool { return s.alg.IsSubtype(x, p) }) {
			continue
		}
		if len(vars) == 0 {
			return nil, mismatch(x, ground, "unreported checked exception")
		}
		for _, v := range vars {
			out = append(out, StrictSubtype{x, v})
		}
	}
	return out, nil
}

// unchecked reports whether t is a RuntimeException or an Error
func (s *Session) unchecked(t types.Type) bool {
	for _, name := range []string{"RuntimeException", "Error"} {
		if decl, ok := s.alg.Lookup(name); ok && s.alg.IsSubtype(t, decl.Of()) {
			return true
		}
	}
	return false
}

// inputVars are the variables which must be resolved before c can be reduced
func (s *Session) inputVars(c Constraint) []types.VarID {
	var e expr.Expr
	var target types.Type
	switch c := c.(type) {
	case ExpressionCompatibility:
		e, target = c.Expr, c.T
	case CheckedException:
		e, target = c.Expr, c.T
		if fn, ok := s.functionTypeOf(s.ground(target)); ok {
			var ids []types.VarID
			for _, p := range append(slices.Clone(fn.Params), fn.Return) {
				ids = appendVars(ids, s.ground(p))
			}
			return s.filterUnresolved(append(ids, exprInputs(s, e, s.ground(target))...))
		}
	default:
		return nil
	}
	return s.filterUnresolved(exprInputs(s, e, s.ground(target)))
}

func exprInputs(s *Session, e expr.Expr, target types.Type) []types.VarID {
	var ids []types.VarID
	switch e := e.(type) {
	case *expr.Paren:
		return exprInputs(s, e.Inner, target)
	case *expr.Conditional:
		return append(exprInputs(s, e.Then, target), exprInputs(s, e.Else, target)...)
	case *expr.Switch:
		for _, r := range e.Results {
			ids = append(ids, exprInputs(s, r, target)...)
		}
	case *expr.Lambda:
		if v, ok := target.(*types.Var); ok {
			return []types.VarID{v.ID}
		}
		fn, ok := s.functionTypeOf(target)
		if !ok {
			return nil
		}
		if !e.ExplicitlyTyped() {
			for _, p := range fn.Params {
				ids = appendVars(ids, p)
			}
		}
		if !isVoid(fn.Return) {
			for _, r := range e.Returns {
				ids = append(ids, exprInputs(s, r, fn.Return)...)
			}
		}
	case *expr.MethodRef:
		if v, ok := target.(*types.Var); ok {
			return []types.VarID{v.ID}
		}
		if e.Exact() {
			return nil
		}
		if fn, ok := s.functionTypeOf(target); ok {
			for _, p := range fn.Params {
				ids = appendVars(ids, p)
			}
		}
	}
	return ids
}

// outputVars are the variables mentioned by the target of c which are not inputs
func (s *Session) outputVars(c Constraint) []types.VarID {
	var target types.Type
	switch c := c.(type) {
	case ExpressionCompatibility:
		target = c.T
	case CheckedException:
		target = c.T
	default:
		return nil
	}
	inputs := s.inputVars(c)
	var out []types.VarID
	for _, id := range s.filterUnresolved(types.Vars(s.ground(target))) {
		if !slices.Contains(inputs, id) {
			out = append(out, id)
		}
	}
	return out
}

func (s *Session) functionTypeOf(t types.Type) (FunctionType, bool) {
	c, ok := t.(*types.Class)
	if !ok {
		return FunctionType{}, false
	}
	ground, ok := NonWildcardParameterization(s.alg, c)
	if !ok {
		return FunctionType{}, false
	}
	return FunctionTypeOf(s.alg, ground)
}

func appendVars(ids []types.VarID, ts ...types.Type) []types.VarID {
	for _, t := range ts {
		for _, id := range types.Vars(t) {
			if !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func (s *Session) filterUnresolved(ids []types.VarID) []types.VarID {
	var out []types.VarID
	for _, id := range ids {
		if v := s.variable(id); v != nil && !v.IsResolved() && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// selectDeferred removes and returns a deferred constraint none of whose
// input variables depend on an output variable of another deferred
// constraint, together with its input variables. When every constraint is
// blocked the first one is picked.
func (s *Session) selectDeferred() (Constraint, []types.VarID) {
	pick := 0
	for i, c := range s.deferred {
		closure := s.unresolvedClosure(s.inputVars(c))
		blocked := false
		for j, other := range s.deferred {
			if i == j {
				continue
			}
			if slices.ContainsFunc(s.outputVars(other), func(id types.VarID) bool { return slices.Contains(closure, id) }) {
				blocked = true
				break
			}
		}
		if !blocked {
			pick = i
			break
		}
	}
	c := s.deferred[pick]
	s.deferred = slices.Delete(s.deferred, pick, pick+1)
	return c, s.inputVars(c)
}

// functionalExprs lists the lambdas and method references e evaluates to
func functionalExprs(e expr.Expr) []expr.Expr {
	switch e := e.(type) {
	case *expr.Paren:
		return functionalExprs(e.Inner)
	case *expr.Conditional:
		return append(functionalExprs(e.Then), functionalExprs(e.Else)...)
	case *expr.Switch:
		var out []expr.Expr
		for _, r := range e.Results {
			out = append(out, functionalExprs(r)...)
		}
		return out
	case *expr.Lambda, *expr.MethodRef:
		return []expr.Expr{e}
	}
	return nil
}
