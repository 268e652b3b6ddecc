package infer

import (
	"github.com/cottand/tyinfer/frontend/expr"
	"github.com/cottand/tyinfer/frontend/types"
)

// IsPoly reports whether the type of e depends on the type its context expects
func IsPoly(e expr.Expr) bool {
	switch e := e.(type) {
	case *expr.Lambda, *expr.MethodRef:
		return true
	case *expr.Paren:
		return IsPoly(e.Inner)
	case *expr.Conditional:
		return IsPoly(e.Then) || IsPoly(e.Else)
	case *expr.Switch:
		for _, r := range e.Results {
			if IsPoly(r) {
				return true
			}
		}
		return false
	case *expr.Call:
		// a generic call without explicit type arguments whose return type
		// mentions the method's type parameters
		return e.Method.Generic() && len(e.TypeArgs) == 0 &&
			types.MentionsParams(e.Method.Return, e.Method.TypeParams)
	}
	return false
}

// IsPertinentToApplicability reports whether argument e takes part in
// checking whether m applies, or whether its constraints wait until the
// type arguments of m are otherwise known. formal is the declared type of
// the parameter e is passed to.
func IsPertinentToApplicability(e expr.Expr, m *types.Method, explicitTypeArgs bool, formal types.Type) bool {
	switch e := e.(type) {
	case *expr.Lambda:
		if !e.ExplicitlyTyped() {
			return false
		}
		if isOwnParam(m, explicitTypeArgs, formal) {
			return false
		}
		for _, r := range e.Returns {
			if !IsPertinentToApplicability(r, m, explicitTypeArgs, nil) {
				return false
			}
		}
		return true
	case *expr.MethodRef:
		return e.Exact() && !isOwnParam(m, explicitTypeArgs, formal)
	case *expr.Paren:
		return IsPertinentToApplicability(e.Inner, m, explicitTypeArgs, formal)
	case *expr.Conditional:
		return IsPertinentToApplicability(e.Then, m, explicitTypeArgs, formal) &&
			IsPertinentToApplicability(e.Else, m, explicitTypeArgs, formal)
	case *expr.Switch:
		for _, r := range e.Results {
			if !IsPertinentToApplicability(r, m, explicitTypeArgs, formal) {
				return false
			}
		}
		return true
	}
	return true
}

// isOwnParam reports whether formal is a type parameter of the generic
// method m invoked without explicit type arguments
func isOwnParam(m *types.Method, explicitTypeArgs bool, formal types.Type) bool {
	if explicitTypeArgs || !m.Generic() {
		return false
	}
	p, ok := formal.(*types.TypeParam)
	return ok && m.OwnsParam(p)
}
