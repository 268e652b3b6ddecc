package infer

import (
	"slices"

	"github.com/cottand/tyinfer/frontend/expr"
	"github.com/cottand/tyinfer/frontend/ilerr"
	"github.com/cottand/tyinfer/frontend/types"
)

// Result is the outcome of inferring one call. Substitutor maps the type
// parameters of the call's method to their instantiations.
type Result struct {
	Substitutor types.Substitutor
	Diagnostics []ilerr.InferError
	// Erased is set when some variable fell back to erasure or unchecked
	// conversion was needed
	Erased bool
	State  State
	// Err is the reduction failure of a Failed result
	Err error
	// Generation is the cache generation the result was computed at
	Generation uint64

	call    expr.NodeID
	records map[expr.NodeID]*callResult
}

// callResult is the saved state of one call inferred as part of a top-level call
type callResult struct {
	params []*types.TypeParam
	// bounds holds, per param, the bounds of its variable with resolved variables substituted
	bounds [][boundKinds][]types.Type
	// inst holds the instantiation of each param, or None
	inst []types.Type
	// explicit is set for calls with explicit type arguments
	explicit bool
}

// Call is the id of the call the result is for
func (r *Result) Call() expr.NodeID { return r.call }

// Type returns the instantiation of p
func (r *Result) Type(p *types.TypeParam) (types.Type, bool) {
	return r.Substitutor.Get(p)
}

func (r *Result) Failed() bool { return r.State == Failed }

// Diagnostic returns the first diagnostic, or nil
func (r *Result) Diagnostic() ilerr.InferError {
	if len(r.Diagnostics) == 0 {
		return nil
	}
	return r.Diagnostics[0]
}

// Nested reports whether call was inferred as part of r's call
func (r *Result) Nested(call expr.NodeID) bool {
	_, ok := r.records[call]
	return ok
}

func (s *Session) result(call *expr.Call) *Result {
	res := &Result{
		Diagnostics: s.errs.Errors(),
		Erased:      s.erased,
		State:       s.state,
		Generation:  s.settings.Tracker.Generation(),
		call:        call.ID(),
		records:     make(map[expr.NodeID]*callResult, len(s.calls)),
	}
	for id, rec := range s.calls {
		saved := &callResult{params: rec.params, explicit: len(rec.explicit) > 0}
		sub := types.NewSubstitutor()
		for i, p := range rec.params {
			var inst types.Type = types.None
			var bounds [boundKinds][]types.Type
			switch {
			case i < len(rec.explicit):
				inst = rec.explicit[i]
			case i < len(rec.vars):
				if v := s.variable(rec.vars[i].ID); v != nil {
					if v.IsResolved() {
						inst = s.ground(v.ref)
					}
					for kind := range boundKinds {
						for _, b := range v.bounds[kind] {
							bounds[kind] = append(bounds[kind], s.ground(b))
						}
					}
				}
			}
			if !types.IsNone(inst) {
				sub = sub.Put(p, inst)
			}
			saved.inst = append(saved.inst, inst)
			saved.bounds = append(saved.bounds, bounds)
		}
		res.records[id] = saved
		if id == call.ID() {
			res.Substitutor = sub
		}
	}
	return res
}

// matches reports whether rec was recorded for a method with params
func (rec *callResult) matches(params []*types.TypeParam) bool {
	return slices.Equal(rec.params, params)
}
