package infer

import (
	"testing"

	"github.com/cottand/tyinfer/frontend/classtable"
	"github.com/cottand/tyinfer/frontend/expr"
	"github.com/cottand/tyinfer/frontend/types"
	"github.com/stretchr/testify/assert"
)

func TestIsPoly(t *testing.T) {
	tbl := classtable.Builtins()
	str := class(tbl, "String")
	length := &types.Method{Name: "length", Return: types.Int, Receiver: str}
	toString := method("toString", nil, func(m *types.Method, _ []*types.TypeParam) { m.Return = str })
	generic := identity()
	explicit := expr.NewCall(identity(), expr.NewTyped(str))
	explicit.TypeArgs = []types.Type{str}
	unrelatedReturn := method("size", []string{"T"}, func(m *types.Method, ps []*types.TypeParam) {
		m.Params = []types.Type{ps[0]}
		m.Return = types.Int
	})

	testCases := []struct {
		name string
		e    expr.Expr
		want bool
	}{
		{name: "typed", e: expr.NewTyped(str)},
		{name: "lambda", e: expr.NewLambda(nil), want: true},
		{name: "method reference", e: expr.NewMethodRef(str, true, length), want: true},
		{name: "generic call", e: expr.NewCall(generic, expr.NewTyped(str)), want: true},
		{name: "generic call with explicit type arguments", e: explicit},
		{name: "non-generic call", e: expr.NewCall(toString)},
		{name: "return does not mention the parameters", e: expr.NewCall(unrelatedReturn, expr.NewTyped(str))},
		{name: "parenthesized lambda", e: expr.NewParen(expr.NewLambda(nil)), want: true},
		{name: "conditional with one poly branch", e: expr.NewConditional(expr.NewTyped(str), expr.NewLambda(nil)), want: true},
		{name: "conditional of standalone branches", e: expr.NewConditional(expr.NewTyped(str), expr.NewTyped(str))},
		{name: "switch", e: expr.NewSwitch(expr.NewTyped(str), expr.NewCall(identity(), expr.NewTyped(str))), want: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsPoly(tc.e))
		})
	}
}

func TestIsPertinentToApplicability(t *testing.T) {
	tbl := classtable.Builtins()
	str := class(tbl, "String")
	integer := class(tbl, "Integer")
	length := &types.Method{Name: "length", Return: types.Int, Receiver: str}
	overloadA := &types.Method{Name: "valueOf", Params: []types.Type{types.Int}, Return: str, Static: true}
	overloadB := &types.Method{Name: "valueOf", Params: []types.Type{types.Long}, Return: str, Static: true}

	m := apply(tbl)
	own := m.TypeParams[0]
	function := m.Params[1]

	implicit := func() expr.Expr { return expr.NewLambda([]string{"x"}, expr.NewTyped(str)) }
	explicitLambda := func(returns ...expr.Expr) expr.Expr {
		return expr.NewTypedLambda([]string{"x"}, []types.Type{integer}, returns...)
	}

	testCases := []struct {
		name     string
		e        expr.Expr
		formal   types.Type
		explicit bool
		want     bool
	}{
		{name: "typed", e: expr.NewTyped(str), formal: own, want: true},
		{name: "implicit lambda", e: implicit(), formal: function},
		{name: "implicit lambda with explicit type arguments", e: implicit(), formal: function, explicit: true},
		{name: "explicit lambda", e: explicitLambda(expr.NewTyped(str)), formal: function, want: true},
		{name: "explicit lambda for the method's own parameter", e: explicitLambda(expr.NewTyped(str)), formal: own},
		{
			name:     "explicit lambda for a type parameter with explicit type arguments",
			e:        explicitLambda(expr.NewTyped(str)),
			formal:   own,
			explicit: true,
			want:     true,
		},
		{name: "explicit lambda returning an implicit lambda", e: explicitLambda(implicit()), formal: function},
		{name: "exact method reference", e: expr.NewMethodRef(str, true, length), formal: function, want: true},
		{name: "exact method reference for the method's own parameter", e: expr.NewMethodRef(str, true, length), formal: own},
		{name: "inexact method reference", e: expr.NewMethodRef(str, true, overloadA, overloadB), formal: function},
		{name: "parenthesized implicit lambda", e: expr.NewParen(implicit()), formal: function},
		{
			name:   "conditional with an implicit lambda",
			e:      expr.NewConditional(explicitLambda(expr.NewTyped(str)), implicit()),
			formal: function,
		},
		{
			name:   "switch of explicit lambdas",
			e:      expr.NewSwitch(explicitLambda(expr.NewTyped(str)), explicitLambda(expr.NewTyped(integer))),
			formal: function,
			want:   true,
		},
		{name: "generic call", e: expr.NewCall(identity(), expr.NewTyped(str)), formal: own, want: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsPertinentToApplicability(tc.e, m, tc.explicit, tc.formal))
		})
	}
}
