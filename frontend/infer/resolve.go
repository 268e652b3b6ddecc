package infer

import (
	"fmt"
	"slices"

	"github.com/cottand/tyinfer/frontend/ilerr"
	"github.com/cottand/tyinfer/frontend/types"
	"github.com/cottand/tyinfer/internal/log"
	"github.com/cottand/tyinfer/util"
	"github.com/hashicorp/go-set/v3"
)

var resolutionLogger = log.DefaultLogger.With("section", "resolution")

// ResolveBounds instantiates vars and every variable they depend on. With no
// arguments it resolves every variable of the session.
func (s *Session) ResolveBounds(vars ...*types.Var) error {
	ids := make([]types.VarID, len(vars))
	for i, v := range vars {
		ids[i] = v.ID
	}
	if len(vars) == 0 {
		ids = s.unresolved()
	}
	return s.resolveVars(ids)
}

// resolveVars resolves one group of the resolution order at a time, building
// the order again after each group since instantiations change the graph
func (s *Session) resolveVars(ids []types.VarID) error {
	for {
		pending := s.unresolvedClosure(ids)
		if len(pending) == 0 {
			return nil
		}
		s.state = Resolving
		order, err := s.resolutionOrder(s.ctx, pending)
		if err != nil {
			return err
		}
		if err := s.resolveGroup(order[0]); err != nil {
			return err
		}
	}
}

// unresolvedClosure returns the unresolved variables among ids and those they
// depend on, transitively
func (s *Session) unresolvedClosure(ids []types.VarID) []types.VarID {
	var out []types.VarID
	visited := set.New[types.VarID](len(ids))
	queue := slices.Clone(ids)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if !visited.Insert(id) {
			continue
		}
		v := s.variable(id)
		if v == nil || v.IsResolved() {
			continue
		}
		out = append(out, id)
		queue = append(queue, s.dependencies(id)...)
	}
	return out
}

// liveMembers returns the unresolved variables among ids. Restoring a snapshot
// replaces every Variable, so callers fetch them again after each restore.
func (s *Session) liveMembers(ids []types.VarID) []*Variable {
	var members []*Variable
	for _, id := range ids {
		if v := s.variable(id); v != nil && !v.IsResolved() {
			members = append(members, v)
		}
	}
	return members
}

func (s *Session) resolveGroup(node *resolutionNode) error {
	members := s.liveMembers(node.members)
	if len(members) == 0 {
		return nil
	}
	if s.exhausted {
		for _, v := range members {
			s.force(v, s.fallback(v))
		}
		return nil
	}
	resolutionLogger.Debug("resolving group", "session", s.id, "members", members, "deps", node.deps, "selfLoop", node.selfLoop)

	captured := slices.ContainsFunc(members, func(v *Variable) bool { return v.capture != nil })
	if !captured {
		snap := s.snapshot()
		err := s.instantiateCandidates(members)
		if err == nil {
			return nil
		}
		if isCancelled(err) {
			return err
		}
		resolutionLogger.Debug("candidate instantiation failed", "session", s.id, "err", err)
		s.restoreSnapshot(snap)
		members = s.liveMembers(node.members)
	}

	snap := s.snapshot()
	err := s.instantiateFresh(members)
	if err == nil {
		return nil
	}
	if isCancelled(err) {
		return err
	}
	resolutionLogger.Debug("fresh type variables failed", "session", s.id, "err", err)
	s.restoreSnapshot(snap)
	for _, v := range s.liveMembers(node.members) {
		s.registerIncompatibleErrorMessage(s.unsatisfiable(v))
		s.force(v, s.fallback(v))
	}
	return nil
}

// instantiateCandidates resolves members one after the other from their
// proper bounds, so that later members see the instantiations of earlier ones
func (s *Session) instantiateCandidates(members []*Variable) error {
	ordered := slices.Clone(members)
	slices.SortStableFunc(ordered, func(a, b *Variable) int {
		return s.improperBounds(a) - s.improperBounds(b)
	})
	for _, v := range ordered {
		if v.IsResolved() {
			continue
		}
		t, forced := s.candidate(v)
		if forced {
			s.force(v, t)
			continue
		}
		s.instantiate(v, t)
		if err := s.repeatInferencePhases(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) improperBounds(v *Variable) int {
	n := 0
	for kind := range boundKinds {
		for _, b := range v.bounds[kind] {
			if !types.IsProper(s.ground(b)) {
				n++
			}
		}
	}
	return n
}

// candidate picks the instantiation of v from its bounds: a proper equality
// bound, else the lub of the lower bounds, else RuntimeException for thrown
// variables, else the glb of the upper bounds. It reports true when the
// bounds conflict and the returned type is a fallback.
func (s *Session) candidate(v *Variable) (types.Type, bool) {
	eqs := v.properBounds(EqBound, s.ground)
	lower := v.composeLowerBound(s.alg, s.ground)
	upper := v.composeUpperBound(s.alg, s.ground)

	if !types.IsNone(upper) {
		if reason := s.invalidGlb(upper); reason != "" {
			s.registerIncompatibleErrorMessage(ilerr.New(ilerr.NewIncompatibleUpperBounds{
				Var:    s.varName(v),
				Upper:  s.namedBounds(v, UpperBound),
				Reason: reason,
			}))
			return s.fallback(v), true
		}
	}
	if len(eqs) > 0 {
		eq := eqs[0]
		conflict := len(eqs) > 1 ||
			(!types.IsNone(lower) && !s.alg.IsSubtype(lower, eq)) ||
			(!types.IsNone(upper) && !s.alg.IsSubtype(eq, upper))
		if conflict {
			s.registerIncompatibleErrorMessage(s.unsatisfiable(v))
			return s.fallback(v), true
		}
		return eq, false
	}
	if !types.IsNone(lower) {
		if !types.IsNone(upper) && !s.alg.IsSubtype(lower, upper) {
			s.registerIncompatibleErrorMessage(s.unsatisfiable(v))
			return s.fallback(v), true
		}
		return lower, false
	}
	if v.thrown {
		if rte, ok := s.runtimeException(); ok && s.onlySupertypesOf(v, rte) {
			return rte, false
		}
	}
	if !types.IsNone(upper) {
		return upper, false
	}
	return s.settings.Default(s.alg, v.Param, s.ground(v.declared)), false
}

// invalidGlb explains why an intersection has no instances, or returns ""
func (s *Session) invalidGlb(t types.Type) string {
	inter, ok := t.(*types.Intersection)
	if !ok {
		return ""
	}
	var classes []string
	arrays := 0
	for _, c := range inter.Conjuncts {
		switch c := c.(type) {
		case *types.Class:
			if !c.Decl.Interface {
				classes = append(classes, c.String())
			}
		case *types.Array:
			arrays++
		}
	}
	switch {
	case len(classes) > 1:
		return fmt.Sprintf("no class can extend both %s and %s", classes[0], classes[1])
	case arrays > 0 && arrays < len(inter.Conjuncts):
		return "an array type cannot also be a class type"
	case arrays > 1:
		return "unrelated array types"
	}
	return ""
}

func (s *Session) runtimeException() (*types.Class, bool) {
	decl, ok := s.alg.Lookup("RuntimeException")
	if !ok {
		return nil, false
	}
	return decl.Of(), true
}

func (s *Session) onlySupertypesOf(v *Variable, t types.Type) bool {
	for _, up := range v.properBounds(UpperBound, s.ground) {
		if !s.alg.IsSubtype(t, up) {
			return false
		}
	}
	return true
}

func (s *Session) namedBounds(v *Variable, kind BoundKind) []types.Type {
	var out []types.Type
	for _, b := range v.bounds[kind] {
		out = append(out, s.restoreNames(s.ground(b)))
	}
	return out
}

func (s *Session) unsatisfiable(v *Variable) ilerr.InferError {
	return ilerr.New(ilerr.NewUnsatisfiableBounds{
		Var:      s.varName(v),
		Equality: s.namedBounds(v, EqBound),
		Lower:    s.namedBounds(v, LowerBound),
		Upper:    s.namedBounds(v, UpperBound),
	})
}

// fallback is the declared bound of v, or its erasure when it still depends on
// unresolved variables
func (s *Session) fallback(v *Variable) types.Type {
	if v.Param == nil || v.Param.UpperBound() == nil {
		return s.alg.Object()
	}
	declared := s.ground(v.declared)
	if !types.IsNone(declared) && types.IsProper(declared) {
		return declared
	}
	return s.alg.Erasure(v.Param.UpperBound())
}

func (s *Session) instantiate(v *Variable, t types.Type) {
	if !v.instantiate(t) {
		return
	}
	s.site = s.site.Put(v.ref, t)
	s.addBound(v.ID, t, EqBound)
	resolutionLogger.Debug("instantiated", "session", s.id, "var", v, "type", t)
}

// force instantiates v without checking t against its bounds
func (s *Session) force(v *Variable, t types.Type) {
	if !v.instantiate(t) {
		return
	}
	s.site = s.site.Put(v.ref, t)
	s.forced[v.ID] = true
	s.erased = true
	resolutionLogger.Debug("instantiated by fallback", "session", s.id, "var", v, "type", t)
}

// instantiateFresh resolves members to fresh type variables bounded by the
// members' upper and lower bounds. The fresh variables are frozen: nothing
// binds them later.
func (s *Session) instantiateFresh(members []*Variable) error {
	fresh := make([]*types.TypeParam, len(members))
	theta := types.NewSubstitutor()
	for i, v := range members {
		fresh[i] = types.NewTypeParam(s.varName(v))
		fresh[i].Frozen = true
		theta = theta.Put(v.ref, fresh[i])
	}
	memberIndex := func(t types.Type) int {
		if tv, ok := t.(*types.Var); ok {
			return slices.IndexFunc(members, func(v *Variable) bool { return v.ID == tv.ID })
		}
		return -1
	}
	subst := func(t types.Type) types.Type {
		return s.ground(types.Substitute(theta, t))
	}

	for i, v := range members {
		var uppers, lowers []types.Type
		for _, b := range v.bounds[UpperBound] {
			if j := memberIndex(b); j >= 0 {
				if !reachesParam(fresh[j], fresh[i]) {
					uppers = append(uppers, fresh[j])
				}
				continue
			}
			if t := subst(b); types.IsProper(t) {
				uppers = append(uppers, t)
			}
		}
		for _, b := range v.bounds[LowerBound] {
			if memberIndex(b) >= 0 {
				continue
			}
			if t := subst(b); types.IsProper(t) {
				lowers = append(lowers, t)
			}
		}
		if w := v.capture; w != nil {
			if declared := subst(v.declared); types.IsProper(declared) {
				uppers = append(uppers, declared)
			}
			switch w.Kind {
			case types.Extends:
				uppers = append(uppers, subst(w.Bound))
			case types.Super:
				lowers = []types.Type{subst(w.Bound)}
			}
		}

		upper := types.GlbAll(s.alg, uppers)
		if types.IsNone(upper) {
			upper = s.alg.Object()
		}
		if reason := s.invalidGlb(upper); reason != "" {
			return mismatch(s.restoreNames(v.ref), upper, reason)
		}
		lower := types.LubAll(s.alg, lowers)
		if !types.IsNone(lower) && !s.alg.IsSubtype(lower, upper) {
			return mismatch(lower, upper, "lower bound of a fresh type variable is not below its upper bound")
		}
		if inter, ok := upper.(*types.Intersection); ok {
			fresh[i].Bounds = inter.Conjuncts
		} else {
			fresh[i].Bounds = []types.Type{upper}
		}
		if !types.IsNone(lower) {
			fresh[i].Lower = lower
		}
	}

	for i, v := range members {
		s.instantiate(v, fresh[i])
	}
	return s.repeatInferencePhases()
}

// reachesParam reports whether from reaches to through bounds which are type parameters
func reachesParam(from, to *types.TypeParam) bool {
	if from == to {
		return true
	}
	seen := set.New[*types.TypeParam](4)
	var stack util.Stack[*types.TypeParam]
	stack.Push(from)
	for p, ok := stack.Pop(); ok; p, ok = stack.Pop() {
		if !seen.Insert(p) {
			continue
		}
		for _, b := range p.Bounds {
			if bp, ok := b.(*types.TypeParam); ok {
				if bp == to {
					return true
				}
				stack.Push(bp)
			}
		}
	}
	return false
}
