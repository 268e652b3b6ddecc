package infer

import (
	"context"
	"strconv"

	"github.com/benbjohnson/immutable"
	"github.com/cottand/tyinfer/frontend/expr"
	"github.com/cottand/tyinfer/frontend/ilerr"
	"github.com/cottand/tyinfer/frontend/types"
	"github.com/cottand/tyinfer/internal/log"
	"github.com/hashicorp/go-set/v3"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

var containerLogger = log.DefaultLogger.With("section", "container")

// Container infers calls nested in the arguments of other generic calls
// together with their top-level call, and caches the results of top-level
// calls per generation. It is safe for concurrent use.
type Container struct {
	alg      types.Algebra
	settings Settings
	flight   singleflight.Group
}

func NewContainer(alg types.Algebra, settings Settings) *Container {
	return &Container{alg: alg, settings: settings.withDefaults()}
}

func (c *Container) Tracker() *Tracker { return c.settings.Tracker }

type inProgressKey struct{}

type nodeHasher struct{}

func (nodeHasher) Hash(id expr.NodeID) uint32  { return uint32(id ^ id>>32) }
func (nodeHasher) Equal(a, b expr.NodeID) bool { return a == b }

// inProgress reports whether the call id is being inferred further up ctx
func inProgress(ctx context.Context, id expr.NodeID) bool {
	ids, ok := ctx.Value(inProgressKey{}).(immutable.Set[expr.NodeID])
	return ok && ids.Has(id)
}

func withInProgress(ctx context.Context, id expr.NodeID) context.Context {
	ids, ok := ctx.Value(inProgressKey{}).(immutable.Set[expr.NodeID])
	if !ok {
		ids = immutable.NewSet[expr.NodeID](nodeHasher{})
	}
	return context.WithValue(ctx, inProgressKey{}, ids.Add(id))
}

// TopLevelCall walks up from call through the expressions whose type
// depends on their context, and returns the outermost call whose inference
// includes call
func TopLevelCall(call *expr.Call) (*expr.Call, error) {
	top := call
	if !IsPoly(call) {
		return top, nil
	}
	visited := set.New[expr.NodeID](8)
	visited.Insert(call.ID())
	var current expr.Expr = call
	for parent := current.Parent(); parent != nil; parent = current.Parent() {
		if !visited.Insert(parent.ID()) {
			return nil, errors.WithStack(&FailedError{Diagnostic: ilerr.New(ilerr.NewRecursiveCallGraph{Call: call.Method.Name})})
		}
		switch p := parent.(type) {
		case *expr.Paren, *expr.Conditional, *expr.Switch, *expr.Lambda:
		case *expr.Call:
			if p.ArgIndex(current) < 0 || !p.Method.Generic() || len(p.TypeArgs) > 0 {
				return top, nil
			}
			top = p
		default:
			return top, nil
		}
		current = parent
	}
	return top, nil
}

// Infer infers the type arguments of call. A call nested in the arguments of
// another generic call is inferred as part of its top-level call, and its
// result is derived from the top-level session.
func (c *Container) Infer(ctx context.Context, call *expr.Call) (*Result, error) {
	res, _, err := c.infer(ctx, call)
	return res, err
}

// Session returns a session holding the resolved variables of call, renamed
// apart from every other session
func (c *Container) Session(ctx context.Context, call *expr.Call) (*Session, error) {
	_, s, err := c.infer(ctx, call)
	return s, err
}

func (c *Container) infer(ctx context.Context, call *expr.Call) (*Result, *Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "inference cancelled")
	}
	if inProgress(ctx, call.ID()) {
		return recursiveResult(call), nil, nil
	}
	top, err := TopLevelCall(call)
	if err != nil {
		if failed, ok := AsFailed(err); ok {
			res := recursiveResult(call)
			res.Diagnostics = []ilerr.InferError{failed.Diagnostic}
			return res, nil, nil
		}
		return nil, nil, err
	}
	res, err := c.inferTop(ctx, top, false)
	if err != nil {
		return nil, nil, err
	}
	rec, ok := res.records[call.ID()]
	if !ok || !rec.matches(call.Method.TypeParams) {
		containerLogger.Debug("cached result does not cover call", "call", call.ID(), "top", top.ID())
		if res, err = c.inferTop(ctx, top, true); err != nil {
			return nil, nil, err
		}
		if rec, ok = res.records[call.ID()]; !ok || !rec.matches(call.Method.TypeParams) {
			s := c.newSession(ctx, call)
			res, err := s.InferCall(call, call.Target)
			return res, s, err
		}
	}
	s, derived, err := c.derive(ctx, res, call, rec)
	return derived, s, err
}

func recursiveResult(call *expr.Call) *Result {
	return &Result{
		State:       Failed,
		Erased:      true,
		Diagnostics: []ilerr.InferError{ilerr.New(ilerr.NewRecursiveCallGraph{Call: call.Method.Name})},
		call:        call.ID(),
	}
}

func (c *Container) newSession(ctx context.Context, call *expr.Call) *Session {
	return NewSession(withInProgress(ctx, call.ID()), c.alg, c.settings)
}

// inferTop returns the result of the top-level call top, from the cache
// unless refresh is set
func (c *Container) inferTop(ctx context.Context, top *expr.Call, refresh bool) (*Result, error) {
	key := Key{Call: top.ID()}
	generation := c.settings.Tracker.Generation()
	if c.settings.Cache != nil && !refresh {
		if res, ok := c.settings.Cache.Get(key, generation); ok {
			containerLogger.Debug("cache hit", "call", top.ID(), "generation", generation)
			return res, nil
		}
	}
	flightKey := strconv.FormatUint(uint64(top.ID()), 10) + "@" + strconv.FormatUint(generation, 10)
	v, err, shared := c.flight.Do(flightKey, func() (any, error) {
		s := c.newSession(ctx, top)
		res, err := s.InferCall(top, top.Target)
		if err != nil {
			return nil, err
		}
		res.Generation = generation
		if c.settings.Cache != nil {
			c.settings.Cache.Put(key, generation, res)
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	containerLogger.Debug("inferred top-level call", "call", top.ID(), "generation", generation, "shared", shared)
	return v.(*Result), nil
}

// derive replays the saved bounds of call into a new session with fresh
// variables, and resolves them
func (c *Container) derive(ctx context.Context, top *Result, call *expr.Call, rec *callResult) (*Session, *Result, error) {
	s := NewSession(ctx, c.alg, c.settings)
	s.errs = s.errs.With(top.Diagnostics...)
	s.erased = top.Erased
	s.state = top.State
	out := &Result{
		Diagnostics: top.Diagnostics,
		Erased:      top.Erased,
		State:       top.State,
		Err:         top.Err,
		Generation:  top.Generation,
		call:        call.ID(),
		records:     top.records,
	}
	sub := types.NewSubstitutor()
	if rec.explicit {
		for i, p := range rec.params {
			sub = sub.Put(p, rec.inst[i])
		}
		out.Substitutor = sub
		return s, out, nil
	}

	vars := make([]*types.Var, len(rec.params))
	for i, p := range rec.params {
		vars[i] = s.newVariable(p).ref
	}
	for i := range rec.params {
		for kind := range boundKinds {
			for _, b := range rec.bounds[i][kind] {
				s.addBound(vars[i].ID, b, kind)
			}
		}
	}
	if top.State != Failed {
		if err := s.Propagate(); err != nil && isCancelled(err) {
			return nil, nil, err
		}
		if err := s.ResolveBounds(vars...); err != nil && isCancelled(err) {
			return nil, nil, err
		}
	}
	for i, p := range rec.params {
		inst := rec.inst[i]
		if v := s.variable(vars[i].ID); v.IsResolved() && !s.forced[v.ID] {
			inst = v.Instantiation()
		}
		if !types.IsNone(inst) {
			sub = sub.Put(p, inst)
		}
	}
	out.Substitutor = sub
	containerLogger.Debug("derived nested call", "call", call.ID(), "top", top.call, "result", sub)
	return s, out, nil
}

// InferAll infers each of calls, stopping at the first cancellation
func (c *Container) InferAll(ctx context.Context, calls []*expr.Call) ([]*Result, error) {
	out := make([]*Result, 0, len(calls))
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "inference cancelled")
		}
		res, err := c.Infer(ctx, call)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}
