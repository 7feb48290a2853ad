package taskgraph

import (
	"context"
	"slices"
	"sort"
)

// StageName identifies a stage within a graph.
type StageName string

// StageFunc performs the work of one stage. Long-running stages return when
// ctx is canceled.
type StageFunc func(ctx context.Context) error

type node struct {
	name StageName
	fn   StageFunc
	deps []StageName
}

// Graph is a set of stages and their dependency edges. Graphs are built once
// and are safe to Run repeatedly, but not to mutate concurrently.
type Graph struct {
	nodes []*node
	index map[StageName]int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{index: make(map[StageName]int)}
}

// Add registers a stage that starts once every stage in deps succeeded.
// Problems such as duplicates or unknown dependencies surface from Validate.
func (g *Graph) Add(name StageName, fn StageFunc, deps ...StageName) *Graph {
	if _, dup := g.index[name]; !dup {
		g.index[name] = len(g.nodes)
	}
	g.nodes = append(g.nodes, &node{name: name, fn: fn, deps: slices.Clone(deps)})
	return g
}

// Len returns the number of registered stages.
func (g *Graph) Len() int { return len(g.nodes) }

// Stages returns stage names in registration order.
func (g *Graph) Stages() []StageName {
	out := make([]StageName, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.name
	}
	return out
}

// Has reports whether name is registered.
func (g *Graph) Has(name StageName) bool {
	_, ok := g.index[name]
	return ok
}

// Deps returns the declared dependencies of name, sorted.
func (g *Graph) Deps(name StageName) []StageName {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	out := slices.Clone(g.nodes[i].deps)
	slices.Sort(out)
	return slices.Compact(out)
}

// Validate checks names, edges and acyclicity.
func (g *Graph) Validate() error {
	seen := make(map[StageName]bool, len(g.nodes))
	for _, n := range g.nodes {
		if n.name == "" {
			return invalidf("stage name cannot be empty")
		}
		if seen[n.name] {
			return invalidf("duplicate stage %q", n.name)
		}
		seen[n.name] = true
		if n.fn == nil {
			return invalidf("stage %q has no function", n.name)
		}
	}
	for _, n := range g.nodes {
		for _, d := range n.deps {
			if d == n.name {
				return invalidf("stage %q depends on itself", n.name)
			}
			if !seen[d] {
				return invalidf("stage %q depends on unknown stage %q", n.name, d)
			}
		}
	}
	if _, err := g.Levels(); err != nil {
		return err
	}
	return nil
}

// Levels groups stages into waves: every stage in level k depends only on
// stages in earlier levels. Names within a level are sorted.
func (g *Graph) Levels() ([][]StageName, error) {
	indeg := make(map[StageName]int, len(g.nodes))
	dependents := g.dependents()
	for _, n := range g.nodes {
		indeg[n.name] = len(g.Deps(n.name))
	}

	var ready []StageName
	for _, n := range g.nodes {
		if indeg[n.name] == 0 {
			ready = append(ready, n.name)
		}
	}

	var levels [][]StageName
	visited := 0
	for len(ready) > 0 {
		slices.Sort(ready)
		levels = append(levels, ready)
		visited += len(ready)
		var next []StageName
		for _, name := range ready {
			for _, d := range dependents[name] {
				indeg[d]--
				if indeg[d] == 0 {
					next = append(next, d)
				}
			}
		}
		ready = next
	}
	if visited != len(g.nodes) {
		return nil, cycleError(g.findCycle())
	}
	return levels, nil
}

// TopologicalOrder flattens Levels into one deterministic order.
func (g *Graph) TopologicalOrder() ([]StageName, error) {
	levels, err := g.Levels()
	if err != nil {
		return nil, err
	}
	out := make([]StageName, 0, len(g.nodes))
	for _, l := range levels {
		out = append(out, l...)
	}
	return out, nil
}

// dependents maps each stage to the stages that declared it as a dependency.
func (g *Graph) dependents() map[StageName][]StageName {
	out := make(map[StageName][]StageName, len(g.nodes))
	for _, n := range g.nodes {
		for _, d := range g.Deps(n.name) {
			out[d] = append(out[d], n.name)
		}
	}
	for k := range out {
		sort.Slice(out[k], func(i, j int) bool { return out[k][i] < out[k][j] })
	}
	return out
}

// findCycle returns one cycle as a closed path, found by DFS over sorted names.
func (g *Graph) findCycle() []StageName {
	const (
		white = iota
		gray
		black
	)
	names := g.Stages()
	slices.Sort(names)
	color := make(map[StageName]int, len(names))
	parent := make(map[StageName]StageName, len(names))

	var cycle []StageName
	var dfs func(u StageName) bool
	dfs = func(u StageName) bool {
		color[u] = gray
		for _, v := range g.Deps(u) {
			switch color[v] {
			case white:
				parent[v] = u
				if dfs(v) {
					return true
				}
			case gray:
				// Back edge u -> v closes the cycle v ... u -> v.
				cycle = append(cycle, v)
				for cur := u; cur != v; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}
	for _, n := range names {
		if color[n] == white && dfs(n) {
			break
		}
	}
	slices.Reverse(cycle)
	return cycle
}
