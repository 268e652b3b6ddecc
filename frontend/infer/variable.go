package infer

import (
	"slices"
	"sync/atomic"

	"github.com/cottand/tyinfer/frontend/types"
	"github.com/hashicorp/go-set/v3"
)

type BoundKind uint8

const (
	EqBound BoundKind = iota
	UpperBound
	LowerBound
	boundKinds
)

func (k BoundKind) String() string {
	switch k {
	case EqBound:
		return "="
	case UpperBound:
		return "<:"
	case LowerBound:
		return ":>"
	}
	return "?"
}

// Fresher hands out inference variable ids which are unique across every
// session sharing it, so that merged and replayed sessions never collide.
type Fresher struct {
	count atomic.Uint64
}

func NewFresher() *Fresher {
	return &Fresher{}
}

func (f *Fresher) next() types.VarID {
	return types.VarID(f.count.Add(1))
}

// Variable is an inference variable together with its bound store
type Variable struct {
	ID types.VarID
	// Param is the formal type parameter the variable stands for. Capture
	// variables stand for the type parameter of the captured class.
	Param *types.TypeParam

	bounds [boundKinds][]types.Type
	seen   [boundKinds]*set.HashSet[types.Type, uint64]

	instantiation types.Type
	// thrown is set by a 'throws α' bound
	thrown bool
	// capture is the wildcard this variable was created to capture, if any
	capture *types.Wildcard
	// declared is the declared bound of Param in terms of inference variables
	declared types.Type
	ref      *types.Var
}

func newVariable(id types.VarID, param *types.TypeParam) *Variable {
	v := &Variable{
		ID:            id,
		Param:         param,
		instantiation: types.None,
		ref:           &types.Var{ID: id, Name: param.Name},
	}
	for k := range v.seen {
		v.seen[k] = set.NewHashSet[types.Type, uint64](0)
	}
	return v
}

// Type returns the type which refers to v
func (v *Variable) Type() *types.Var { return v.ref }

func (v *Variable) String() string { return v.ref.String() }

// AddBound records 'v kind t'. A variable is never its own bound, and a bound
// is recorded once. AddBound returns true when the bound is new, meaning
// incorporation has more work to do.
func (v *Variable) AddBound(t types.Type, kind BoundKind) bool {
	if types.IsNone(t) || types.Equal(t, v.ref) {
		return false
	}
	if !v.seen[kind].Insert(t) {
		return false
	}
	v.bounds[kind] = append(v.bounds[kind], t)
	return true
}

// Bounds returns a copy of the bounds of the given kind, in insertion order
func (v *Variable) Bounds(kind BoundKind) []types.Type {
	return slices.Clone(v.bounds[kind])
}

func (v *Variable) HasBound(t types.Type, kind BoundKind) bool {
	return v.seen[kind].Contains(t)
}

// Instantiation is None until the variable is resolved
func (v *Variable) Instantiation() types.Type { return v.instantiation }

func (v *Variable) IsResolved() bool { return !types.IsNone(v.instantiation) }

// Thrown reports whether the variable appears in a throws clause
func (v *Variable) Thrown() bool { return v.thrown }

// CapturedWildcard is the wildcard the variable captures, or nil
func (v *Variable) CapturedWildcard() *types.Wildcard { return v.capture }

// instantiate sets the instantiation slot, which can only happen once
func (v *Variable) instantiate(t types.Type) bool {
	if v.IsResolved() || types.IsNone(t) {
		return false
	}
	v.instantiation = t
	return true
}

// dependencies returns the ids of the variables mentioned by any bound of v
func (v *Variable) dependencies() []types.VarID {
	var ids []types.VarID
	for kind := range boundKinds {
		for _, b := range v.bounds[kind] {
			for _, id := range types.Vars(b) {
				if !slices.Contains(ids, id) {
					ids = append(ids, id)
				}
			}
		}
	}
	return ids
}

func (v *Variable) copy() *Variable {
	c := &Variable{
		ID:            v.ID,
		Param:         v.Param,
		instantiation: v.instantiation,
		thrown:        v.thrown,
		capture:       v.capture,
		declared:      v.declared,
		ref:           v.ref,
	}
	for k := range v.bounds {
		c.bounds[k] = slices.Clone(v.bounds[k])
		c.seen[k] = v.seen[k].Copy()
	}
	return c
}

// properBounds returns the bounds of kind which mention no unresolved variable
// once ground has replaced the resolved ones
func (v *Variable) properBounds(kind BoundKind, ground func(types.Type) types.Type) []types.Type {
	var out []types.Type
	for _, b := range v.bounds[kind] {
		b = ground(b)
		if types.IsProper(b) && !slices.ContainsFunc(out, func(t types.Type) bool { return types.Equal(t, b) }) {
			out = append(out, b)
		}
	}
	return out
}

// composeEquality returns the first proper equality bound, or None
func (v *Variable) composeEquality(ground func(types.Type) types.Type) types.Type {
	eqs := v.properBounds(EqBound, ground)
	if len(eqs) == 0 {
		return types.None
	}
	return eqs[0]
}

// composeUpperBound is the greatest lower bound of the proper upper bounds, or None
func (v *Variable) composeUpperBound(alg types.Algebra, ground func(types.Type) types.Type) types.Type {
	return types.GlbAll(alg, v.properBounds(UpperBound, ground))
}

// composeLowerBound is the least upper bound of the proper lower bounds, or None
func (v *Variable) composeLowerBound(alg types.Algebra, ground func(types.Type) types.Type) types.Type {
	return types.LubAll(alg, v.properBounds(LowerBound, ground))
}
