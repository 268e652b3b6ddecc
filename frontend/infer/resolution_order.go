package infer

import (
	"context"
	"slices"
	"sort"

	"github.com/cottand/tyinfer/frontend/types"
	"github.com/cottand/tyinfer/util"
	"github.com/pkg/errors"
	"github.com/xtgo/set"
)

// idSlice sorts variable ids for the xtgo/set operations
type idSlice []types.VarID

func (s idSlice) Len() int           { return len(s) }
func (s idSlice) Less(i, j int) bool { return s[i] < s[j] }
func (s idSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

func sortedIDs(ids []types.VarID) []types.VarID {
	out := slices.Clone(ids)
	sort.Sort(idSlice(out))
	return out[:set.Uniq(idSlice(out))]
}

// unionIDs and diffIDs take and return sorted, duplicate free ids
func unionIDs(a, b []types.VarID) []types.VarID {
	data := append(slices.Clone(a), b...)
	return data[:set.Union(idSlice(data), len(a))]
}

func diffIDs(a, b []types.VarID) []types.VarID {
	data := append(slices.Clone(a), b...)
	return data[:set.Diff(idSlice(data), len(a))]
}

// resolutionNode is a group of variables which must be resolved together
type resolutionNode struct {
	members []types.VarID
	// deps are the unresolved variables outside the group the members depend on
	deps []types.VarID
	// selfLoop is set when a member mentions itself in its own bounds
	selfLoop bool
}

func (n *resolutionNode) singleton() bool { return len(n.members) == 1 }

// dependencyGraph maps each pending variable to the pending variables it depends on
type dependencyGraph struct {
	ids   []types.VarID
	index map[types.VarID]int
	edges [][]int
	self  []bool
}

func (s *Session) dependencyGraph(pending []types.VarID) *dependencyGraph {
	g := &dependencyGraph{
		ids:   pending,
		index: make(map[types.VarID]int, len(pending)),
		edges: make([][]int, len(pending)),
		self:  make([]bool, len(pending)),
	}
	for i, id := range pending {
		g.index[id] = i
	}
	for i, id := range pending {
		for _, dep := range s.dependencies(id) {
			if dep == id {
				g.self[i] = true
				continue
			}
			if j, ok := g.index[dep]; ok && !slices.Contains(g.edges[i], j) {
				g.edges[i] = append(g.edges[i], j)
			}
		}
	}
	return g
}

// dependencies returns the variables id depends on: those mentioned by its
// bounds, and every variable of a capture record it belongs to
func (s *Session) dependencies(id types.VarID) []types.VarID {
	v := s.variable(id)
	if v == nil {
		return nil
	}
	deps := v.dependencies()
	for _, rec := range s.captures {
		if !slices.Contains(rec.vars, id) {
			continue
		}
		for _, other := range rec.vars {
			if other != id && !slices.Contains(deps, other) {
				deps = append(deps, other)
			}
		}
		for _, mentioned := range types.Vars(rec.captured) {
			if !slices.Contains(deps, mentioned) {
				deps = append(deps, mentioned)
			}
		}
	}
	var unresolved []types.VarID
	for _, dep := range deps {
		if w := s.variable(dep); w != nil && !w.IsResolved() {
			unresolved = append(unresolved, dep)
		}
	}
	return unresolved
}

// resolutionOrder groups pending variables into strongly connected components
// of the dependency graph, leaves first
func (s *Session) resolutionOrder(ctx context.Context, pending []types.VarID) ([]*resolutionNode, error) {
	pending = sortedIDs(pending)
	g := s.dependencyGraph(pending)

	for i, id := range g.ids {
		if len(g.edges[i]) == 0 && !g.self[i] {
			return []*resolutionNode{{members: []types.VarID{id}}}, nil
		}
	}

	state := sccState{
		indexTable: make([]int, len(g.ids)),
		lowLink:    make([]int, len(g.ids)),
		onStack:    make([]bool, len(g.ids)),
	}
	for v := range g.ids {
		if state.indexTable[v] == 0 {
			if err := g.tarjanSCC(ctx, &state, v); err != nil {
				return nil, err
			}
		}
	}

	nodes := make([]*resolutionNode, 0, len(state.sccs))
	for _, scc := range state.sccs {
		node := &resolutionNode{}
		for _, v := range scc {
			node.members = append(node.members, g.ids[v])
			node.selfLoop = node.selfLoop || g.self[v]
		}
		node.members = sortedIDs(node.members)
		for _, v := range scc {
			var deps []types.VarID
			for _, succ := range g.edges[v] {
				deps = append(deps, g.ids[succ])
			}
			node.deps = unionIDs(node.deps, sortedIDs(deps))
		}
		node.deps = diffIDs(node.deps, node.members)
		nodes = append(nodes, node)
	}
	s.logger.Debug("resolution order computed", "groups", len(nodes), "pending", len(pending))
	return nodes, nil
}

type sccState struct {
	index      int
	indexTable []int
	lowLink    []int
	onStack    []bool

	stack util.Stack[int]
	sccs  [][]int
}

// tarjanSCC emits components after every component reachable from them, so
// a component is emitted after the components it depends on
func (g *dependencyGraph) tarjanSCC(ctx context.Context, state *sccState, v int) error {
	state.index++
	state.indexTable[v] = state.index
	state.lowLink[v] = state.index
	state.stack.Push(v)
	state.onStack[v] = true

	for _, succ := range g.edges[v] {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "resolution order cancelled")
		}
		if state.indexTable[succ] == 0 {
			if err := g.tarjanSCC(ctx, state, succ); err != nil {
				return err
			}
			state.lowLink[v] = min(state.lowLink[v], state.lowLink[succ])
		} else if state.onStack[succ] {
			state.lowLink[v] = min(state.lowLink[v], state.indexTable[succ])
		}
	}

	if state.lowLink[v] == state.indexTable[v] {
		c := state.stack.PopUntil(func(succ int) bool { return succ == v })
		for _, succ := range c {
			state.onStack[succ] = false
		}
		state.sccs = append(state.sccs, c)
	}
	return nil
}
