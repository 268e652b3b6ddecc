package infer

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/cottand/tyinfer/frontend/expr"
	"github.com/cottand/tyinfer/frontend/ilerr"
	"github.com/cottand/tyinfer/frontend/types"
	"github.com/google/uuid"
	"github.com/hashicorp/go-set/v3"
	"github.com/pkg/errors"
)

type State uint8

const (
	Seeded State = iota
	Reducing
	Incorporating
	Resolving
	Resolved
	// PartiallyResolved sessions fell back to erasure for at least one variable
	PartiallyResolved
	Failed
)

func (s State) String() string {
	switch s {
	case Seeded:
		return "seeded"
	case Reducing:
		return "reducing"
	case Incorporating:
		return "incorporating"
	case Resolving:
		return "resolving"
	case Resolved:
		return "resolved"
	case PartiallyResolved:
		return "partially resolved"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// callRecord remembers the variables a session created for one call
type callRecord struct {
	call   *expr.Call
	params []*types.TypeParam
	vars   []*types.Var
	// explicit holds the explicit type arguments of the call, if any
	explicit []types.Type
}

// Session is one inference attempt: it owns the variables, the constraint
// queue and the resolved instantiations. A Session is not safe for concurrent use.
type Session struct {
	id       string
	ctx      context.Context
	alg      types.Algebra
	settings Settings
	logger   *slog.Logger

	vars  []*Variable
	index map[types.VarID]int

	constraints []Constraint
	seen        *set.HashSet[Constraint, uint64]
	cursor      int
	// deferred constraints wait for their input variables to be resolved
	deferred []Constraint
	// released holds the hashes of deferred constraints queued again
	released map[uint64]bool

	captures []*captureRecord
	forced   map[types.VarID]bool
	calls    map[expr.NodeID]*callRecord

	// site maps resolved variables to their instantiations
	site types.Substitutor
	// restore maps variables back to the type parameters they stand for
	restore types.Substitutor

	errs         *ilerr.Errors
	incompatible bool
	erased       bool
	exhausted    bool
	state        State
	fuel         int
	version      int
}

func NewSession(ctx context.Context, alg types.Algebra, settings Settings) *Session {
	if ctx == nil {
		ctx = context.Background()
	}
	settings = settings.withDefaults()
	id := uuid.NewString()
	return &Session{
		id:       id,
		ctx:      ctx,
		alg:      alg,
		settings: settings,
		logger:   settings.Logger.With("session", id),
		index:    make(map[types.VarID]int),
		seen:     set.NewHashSet[Constraint, uint64](16),
		forced:   make(map[types.VarID]bool),
		released: make(map[uint64]bool),
		calls:    make(map[expr.NodeID]*callRecord),
		fuel:     settings.Fuel,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State { return s.state }

// Erased reports whether some variable fell back to erasure, or unchecked
// conversion was needed
func (s *Session) Erased() bool { return s.erased }

func (s *Session) Diagnostics() []ilerr.InferError { return s.errs.Errors() }

// Variables returns the variables of the session in creation order
func (s *Session) Variables() []*Variable { return slices.Clone(s.vars) }

// Variable returns the record of v, or nil if v belongs to another session
func (s *Session) Variable(v *types.Var) *Variable { return s.variable(v.ID) }

func (s *Session) variable(id types.VarID) *Variable {
	i, ok := s.index[id]
	if !ok {
		return nil
	}
	return s.vars[i]
}

// InferenceVariables creates a variable for each of params. The declared
// bounds, with site and the new variables substituted in, become upper bounds.
func (s *Session) InferenceVariables(params []*types.TypeParam, site types.Substitutor) []*types.Var {
	out := make([]*types.Var, len(params))
	theta := site
	for i, p := range params {
		out[i] = s.newVariable(p).ref
		theta = theta.Put(p, out[i])
	}
	for i, p := range params {
		v := s.variable(out[i].ID)
		v.declared = s.declaredBound(p, theta)
		if len(p.Bounds) == 0 {
			s.addBound(v.ID, s.alg.Object(), UpperBound)
		}
		for _, b := range p.Bounds {
			s.addBound(v.ID, types.Substitute(theta, b), UpperBound)
		}
	}
	return out
}

func (s *Session) newVariable(p *types.TypeParam) *Variable {
	v := newVariable(s.settings.Fresher.next(), p)
	s.index[v.ID] = len(s.vars)
	s.vars = append(s.vars, v)
	s.restore = s.restore.Put(v.ref, p)
	return v
}

// captureVariables creates the variables capturing the arguments of c
func (s *Session) captureVariables(c *types.Class) []*types.Var {
	out := make([]*types.Var, len(c.Decl.TypeParams))
	theta := types.NewSubstitutor()
	for i, p := range c.Decl.TypeParams {
		out[i] = s.newVariable(p).ref
		theta = theta.Put(p, out[i])
	}
	for i, p := range c.Decl.TypeParams {
		s.variable(out[i].ID).declared = s.declaredBound(p, theta)
	}
	return out
}

func (s *Session) declaredBound(p *types.TypeParam, theta types.Substitutor) types.Type {
	if p.UpperBound() == nil {
		return s.alg.Object()
	}
	return types.Substitute(theta, p.UpperBound())
}

// AddConstraint queues c unless an identical constraint was queued before
func (s *Session) AddConstraint(c Constraint) {
	s.addConstraint(c)
}

func (s *Session) addConstraint(c Constraint) bool {
	if !s.seen.Insert(c) {
		return false
	}
	s.constraints = append(s.constraints, c)
	return true
}

func (s *Session) deferConstraint(c Constraint) {
	if s.released[c.Hash()] {
		s.logger.Debug("dropping constraint which cannot make progress", "constraint", c)
		return
	}
	if slices.ContainsFunc(s.deferred, func(other Constraint) bool { return other.Hash() == c.Hash() }) {
		return
	}
	s.logger.Debug("deferring constraint", "constraint", c)
	s.deferred = append(s.deferred, c)
}

func (s *Session) addBound(id types.VarID, t types.Type, kind BoundKind) bool {
	v := s.variable(id)
	if v == nil || !v.AddBound(t, kind) {
		return false
	}
	s.version++
	s.logger.Debug("bound added", "var", v, "kind", kind, "bound", t)
	return true
}

// ground replaces resolved variables by their instantiations
func (s *Session) ground(t types.Type) types.Type {
	if s.site.Len() == 0 || types.IsProper(t) {
		return t
	}
	return types.Map(t, func(node types.Type) (types.Type, bool) {
		if v, ok := node.(*types.Var); ok {
			if to, ok := s.site.Get(v); ok {
				return to, true
			}
		}
		return nil, false
	})
}

// restoreNames replaces variables by the type parameters they stand for, for diagnostics
func (s *Session) restoreNames(t types.Type) types.Type {
	return types.Substitute(s.restore, t)
}

func (s *Session) varName(v *Variable) string {
	return s.restoreNames(v.ref).String()
}

func (s *Session) markUnchecked() {
	s.erased = true
}

func (s *Session) report(err ilerr.InferError) {
	s.logger.Debug("diagnostic", "err", ilerr.FormatWithCode(err))
	s.errs = s.errs.With(err)
}

// registerIncompatibleErrorMessage records the first conflict between
// bounds. Later conflicts are usually consequences of the first one.
func (s *Session) registerIncompatibleErrorMessage(err ilerr.InferError) {
	if s.incompatible {
		return
	}
	s.incompatible = true
	s.report(err)
}

func (s *Session) isObject(t types.Type) bool {
	c, ok := t.(*types.Class)
	return ok && c.Decl == s.alg.Object().Decl
}

func (s *Session) wildcardUpper(w *types.Wildcard) types.Type {
	if w.Kind == types.Extends {
		return w.Bound
	}
	return s.alg.Object()
}

// equivalentWildcards compares proper types treating ? and ? extends Object alike
func (s *Session) equivalentWildcards(a, b types.Type) bool {
	normalise := func(t types.Type) types.Type {
		return types.Map(t, func(node types.Type) (types.Type, bool) {
			if w, ok := node.(*types.Wildcard); ok && w.Kind == types.Extends && s.isObject(w.Bound) {
				return types.NewUnbounded(), true
			}
			return nil, false
		})
	}
	return types.Equal(normalise(a), normalise(b))
}

func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Propagate reduces every queued constraint and incorporates the resulting
// bounds until a fixed point is reached
func (s *Session) Propagate() error {
	return s.repeatInferencePhases()
}

func (s *Session) repeatInferencePhases() error {
	for {
		if err := s.ctx.Err(); err != nil {
			return errors.Wrap(err, "inference cancelled")
		}
		if s.fuel <= 0 {
			if !s.exhausted {
				s.exhausted = true
				s.erased = true
				s.report(ilerr.New(ilerr.NewFuelExhausted{Iterations: s.settings.Fuel}))
			}
			return nil
		}
		s.fuel--

		s.state = Reducing
		if err := s.reduceQueued(); err != nil {
			return err
		}
		version := s.version
		s.state = Incorporating
		s.incorporate()
		if s.cursor == len(s.constraints) && s.isFullyIncorporated() && version == s.version {
			return nil
		}
	}
}

func (s *Session) reduceQueued() error {
	for s.cursor < len(s.constraints) {
		c := s.constraints[s.cursor]
		s.cursor++
		out, err := c.reduce(s)
		if err != nil {
			s.logger.Debug("reduction failed", "constraint", c, "err", err)
			return err
		}
		for _, next := range out {
			s.addConstraint(next)
		}
	}
	return nil
}

// IsFullyIncorporated reports whether every bound between two variables is
// recorded on both of them
func (s *Session) IsFullyIncorporated() bool {
	return s.isFullyIncorporated()
}

// seedCall creates the variables of a generic call and queues the
// applicability constraints of its arguments. Arguments which are not
// pertinent to applicability are deferred. It returns the return type of the
// call in terms of the new variables.
func (s *Session) seedCall(call *expr.Call, env types.Substitutor) (types.Type, error) {
	return s.seedCallArity(call, env, false)
}

// seedCallArity is seedCall with the variable arity parameter expanded even
// when the argument count matches the declared parameters
func (s *Session) seedCallArity(call *expr.Call, env types.Substitutor, expand bool) (types.Type, error) {
	m := call.Method
	theta := call.Site
	rec := &callRecord{call: call, params: m.TypeParams}
	switch {
	case m.Generic() && len(call.TypeArgs) == len(m.TypeParams):
		rec.explicit = call.TypeArgs
		for i, p := range m.TypeParams {
			theta = theta.Put(p, call.TypeArgs[i])
		}
	case m.Generic():
		rec.vars = s.InferenceVariables(m.TypeParams, call.Site)
		for i, p := range m.TypeParams {
			theta = theta.Put(p, rec.vars[i])
		}
		for _, thrown := range m.Throws {
			if p, ok := thrown.(*types.TypeParam); ok && m.OwnsParam(p) {
				if v, ok := types.Substitute(theta, p).(*types.Var); ok {
					s.variable(v.ID).thrown = true
				}
			}
		}
	}
	s.calls[call.ID()] = rec

	argc := len(call.Args)
	expanded := expand || !m.AcceptsArity(argc, false)
	if expanded && !m.AcceptsArity(argc, true) {
		return nil, mismatch(types.None, types.None,
			fmt.Sprintf("%s takes %d arguments, called with %d", m.Name, len(m.Params), argc))
	}
	explicit := len(call.TypeArgs) > 0
	for i, arg := range call.Args {
		formal := m.ParamType(i, expanded)
		target := types.Substitute(theta, formal)
		c := ExpressionCompatibility{Expr: arg, T: target, Env: env}
		if IsPertinentToApplicability(arg, m, explicit, formal) {
			s.addConstraint(c)
		} else {
			s.deferConstraint(c)
		}
		for _, fn := range functionalExprs(arg) {
			s.deferConstraint(CheckedException{Expr: fn, T: target, Env: env})
		}
	}
	return types.Substitute(theta, m.Return), nil
}

// ambiguousArity reports whether call may pass its last argument either as
// the variable arity array or as its single element
func ambiguousArity(call *expr.Call) bool {
	m := call.Method
	return m.Varargs && len(call.Args) == len(m.Params)
}

// captureArgument is the capture conversion of the proper type c: every
// wildcard becomes a fresh frozen type variable bounded by the wildcard and by
// the declared bound of its parameter
func (s *Session) captureArgument(c *types.Class) *types.Class {
	args := make([]types.Type, len(c.Args))
	fresh := make([]*types.TypeParam, len(c.Args))
	theta := types.NewSubstitutor()
	for i, arg := range c.Args {
		args[i] = arg
		if _, ok := arg.(*types.Wildcard); ok {
			fresh[i] = types.NewTypeParam(fmt.Sprintf("CAP#%d", i+1))
			fresh[i].Frozen = true
			args[i] = fresh[i]
		}
		if i < len(c.Decl.TypeParams) {
			theta = theta.Put(c.Decl.TypeParams[i], args[i])
		}
	}
	for i, p := range fresh {
		if p == nil {
			continue
		}
		var uppers []types.Type
		if i < len(c.Decl.TypeParams) {
			for _, b := range c.Decl.TypeParams[i].Bounds {
				uppers = append(uppers, types.Substitute(theta, b))
			}
		}
		switch w := c.Args[i].(*types.Wildcard); w.Kind {
		case types.Extends:
			uppers = append(uppers, w.Bound)
		case types.Super:
			p.Lower = w.Bound
		}
		upper := types.GlbAll(s.alg, uppers)
		if types.IsNone(upper) {
			upper = s.alg.Object()
		}
		if inter, ok := upper.(*types.Intersection); ok {
			p.Bounds = inter.Conjuncts
		} else {
			p.Bounds = []types.Type{upper}
		}
	}
	return c.Decl.Of(args...)
}

// returnConstraints relates the return type ret of a call to the type its
// context expects. Wildcard-parameterized return types are captured first.
func (s *Session) returnConstraints(ret, target types.Type) []Constraint {
	ret = s.ground(ret)
	if s.erased {
		if c, ok := ret.(*types.Class); ok && !types.IsProper(c) {
			return []Constraint{Compatibility{s.alg.Erasure(c), target}}
		}
	}
	if c, ok := ret.(*types.Class); ok && c.HasWildcards() {
		return s.captureConstraints(c, target)
	}
	return []Constraint{Compatibility{ret, target}}
}

// captureConstraints relates the capture of the wildcard-parameterized c to
// target
func (s *Session) captureConstraints(c *types.Class, target types.Type) []Constraint {
	vars := s.captureVariables(c)
	return []Constraint{
		Capture{Vars: vars, Type: c},
		Compatibility{c.Decl.Of(varTypes(vars)...), target},
	}
}

// InferCall infers the type arguments of call in a context expecting target.
// target may be nil when the call is not in an assignment or invocation context.
// The returned error is only set on cancellation; inference failures are
// reported through the Result.
func (s *Session) InferCall(call *expr.Call, target types.Type) (*Result, error) {
	s.logger.Debug("inferring call", "method", call.Method.Name, "target", target)
	snap := s.snapshot()
	ret, err := s.seedCall(call, types.Substitutor{})
	if err == nil {
		err = s.repeatInferencePhases()
	}
	if err != nil && !isCancelled(err) && ambiguousArity(call) {
		s.logger.Debug("retrying with the variable arity parameter expanded", "err", err)
		s.restoreSnapshot(snap)
		ret, err = s.seedCallArity(call, types.Substitutor{}, true)
		if err == nil {
			err = s.repeatInferencePhases()
		}
	}
	if err != nil {
		return s.failed(call, err)
	}
	if !types.IsNone(target) && !call.Method.IsVoid() {
		if _, ok := target.(*types.Primitive); ok {
			if v, ok := s.ground(ret).(*types.Var); ok {
				if err := s.resolveVars([]types.VarID{v.ID}); err != nil {
					return s.failed(call, err)
				}
			}
		}
		for _, c := range s.returnConstraints(ret, target) {
			s.addConstraint(c)
		}
		if err := s.repeatInferencePhases(); err != nil {
			return s.failed(call, err)
		}
	}
	if err := s.solve(); err != nil {
		return s.failed(call, err)
	}
	s.state = Resolved
	if s.erased {
		s.state = PartiallyResolved
	}
	s.logger.Debug("call inferred", "method", call.Method.Name, "state", s.state, "diagnostics", s.errs)
	return s.result(call), nil
}

// solve processes deferred constraints in input variable order, then
// resolves every remaining variable
func (s *Session) solve() error {
	for {
		for len(s.deferred) > 0 {
			c, inputs := s.selectDeferred()
			if err := s.resolveVars(inputs); err != nil {
				return err
			}
			s.release(c)
			if err := s.repeatInferencePhases(); err != nil {
				return err
			}
		}
		if err := s.resolveVars(s.unresolved()); err != nil {
			return err
		}
		if len(s.deferred) == 0 {
			return nil
		}
	}
}

// release queues a deferred constraint again. It may have been reduced
// before, so the dedup set is bypassed.
func (s *Session) release(c Constraint) {
	s.released[c.Hash()] = true
	s.seen.Insert(c)
	s.constraints = append(s.constraints, c)
}

func (s *Session) unresolved() []types.VarID {
	var out []types.VarID
	for _, v := range s.vars {
		if !v.IsResolved() {
			out = append(out, v.ID)
		}
	}
	return out
}

func (s *Session) failed(call *expr.Call, err error) (*Result, error) {
	if isCancelled(err) {
		return nil, err
	}
	s.state = Failed
	if failed, ok := AsFailed(err); ok {
		s.report(failed.Diagnostic)
	} else {
		s.report(ilerr.New(ilerr.Unclassified{From: err}))
	}
	s.logger.Debug("inference failed", "method", call.Method.Name, "err", err)
	res := s.result(call)
	res.Err = err
	return res, nil
}

type snapshot struct {
	vars         []*Variable
	constraints  []Constraint
	seen         *set.HashSet[Constraint, uint64]
	cursor       int
	deferred     []Constraint
	released     map[uint64]bool
	captures     []*captureRecord
	forced       map[types.VarID]bool
	calls        map[expr.NodeID]*callRecord
	site         types.Substitutor
	restore      types.Substitutor
	errs         *ilerr.Errors
	incompatible bool
	erased       bool
	exhausted    bool
	fuel         int
}

func (s *Session) snapshot() *snapshot {
	snap := &snapshot{
		constraints:  slices.Clone(s.constraints),
		seen:         s.seen.Copy(),
		cursor:       s.cursor,
		deferred:     slices.Clone(s.deferred),
		released:     maps.Clone(s.released),
		forced:       make(map[types.VarID]bool, len(s.forced)),
		calls:        make(map[expr.NodeID]*callRecord, len(s.calls)),
		site:         s.site,
		restore:      s.restore,
		errs:         s.errs.Clone(),
		incompatible: s.incompatible,
		erased:       s.erased,
		exhausted:    s.exhausted,
		fuel:         s.fuel,
	}
	for _, v := range s.vars {
		snap.vars = append(snap.vars, v.copy())
	}
	for _, rec := range s.captures {
		snap.captures = append(snap.captures, rec.copy())
	}
	for id, forced := range s.forced {
		snap.forced[id] = forced
	}
	for id, rec := range s.calls {
		snap.calls[id] = rec
	}
	return snap
}

func (s *Session) restoreSnapshot(snap *snapshot) {
	s.vars = snap.vars
	s.index = make(map[types.VarID]int, len(snap.vars))
	for i, v := range s.vars {
		s.index[v.ID] = i
	}
	s.constraints = snap.constraints
	s.seen = snap.seen
	s.cursor = snap.cursor
	s.deferred = snap.deferred
	s.released = snap.released
	s.captures = snap.captures
	s.forced = snap.forced
	s.calls = snap.calls
	s.site = snap.site
	s.restore = snap.restore
	s.errs = snap.errs
	s.incompatible = snap.incompatible
	s.erased = snap.erased
	s.exhausted = snap.exhausted
	s.fuel = snap.fuel
	s.version++
}

// Clone returns an independent copy of s sharing its settings and context.
// The copy gets its own id.
func (s *Session) Clone() *Session {
	c := *s
	c.restoreSnapshot(s.snapshot())
	c.id = uuid.NewString()
	c.logger = s.settings.Logger.With("session", c.id)
	return &c
}
