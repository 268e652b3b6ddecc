package infer

import (
	"context"
	"testing"

	"github.com/cottand/tyinfer/frontend/classtable"
	"github.com/cottand/tyinfer/frontend/ilerr"
	"github.com/cottand/tyinfer/frontend/types"
	"github.com/stretchr/testify/require"
)

func class(tbl *classtable.Table, name string, args ...types.Type) *types.Class {
	return tbl.MustLookup(name).Of(args...)
}

// method declares a method with its own type parameters, and lets build
// fill in the signature in terms of them
func method(name string, params []string, build func(m *types.Method, ps []*types.TypeParam)) *types.Method {
	m := &types.Method{Name: name, Return: types.Void}
	for _, p := range params {
		m.TypeParams = append(m.TypeParams, types.NewTypeParam(p))
	}
	build(m, m.TypeParams)
	return m
}

// identity is <T> T id(T x)
func identity() *types.Method {
	return method("id", []string{"T"}, func(m *types.Method, ps []*types.TypeParam) {
		m.Params = []types.Type{ps[0]}
		m.Return = ps[0]
	})
}

func newSession(t *testing.T, alg types.Algebra) *Session {
	t.Helper()
	return NewSession(context.Background(), alg, DefaultSettings())
}

func requireType(t *testing.T, res *Result, p *types.TypeParam, want string) {
	t.Helper()
	got, ok := res.Type(p)
	require.True(t, ok, "%s has no instantiation in %v", p, res.Substitutor)
	require.Equal(t, want, got.String())
}

func codes(errs []ilerr.InferError) []ilerr.ErrCode {
	out := make([]ilerr.ErrCode, len(errs))
	for i, err := range errs {
		out[i] = err.Code()
	}
	return out
}
