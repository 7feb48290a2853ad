package taskgraph

// Flow is a composable fragment of a graph.
type Flow interface {
	// attach adds the fragment to g so that its entry stages depend on after,
	// and returns the stages a following fragment must wait for.
	attach(g *Graph, after []StageName) []StageName
}

type step struct {
	name StageName
	fn   StageFunc
}

func (s step) attach(g *Graph, after []StageName) []StageName {
	g.Add(s.name, s.fn, after...)
	return []StageName{s.name}
}

type series []Flow

func (s series) attach(g *Graph, after []StageName) []StageName {
	for _, f := range s {
		after = f.attach(g, after)
	}
	return after
}

type parallel []Flow

func (p parallel) attach(g *Graph, after []StageName) []StageName {
	if len(p) == 0 {
		return after
	}
	var tails []StageName
	for _, f := range p {
		tails = append(tails, f.attach(g, after)...)
	}
	return tails
}

// Step is a single named stage.
func Step(name StageName, fn StageFunc) Flow { return step{name: name, fn: fn} }

// Series runs flows one after another.
func Series(flows ...Flow) Flow { return series(flows) }

// Parallel runs flows concurrently; whatever follows waits for all of them.
func Parallel(flows ...Flow) Flow { return parallel(flows) }

// Compile turns a composed flow into a validated graph.
func Compile(f Flow) (*Graph, error) {
	g := New()
	f.attach(g, nil)
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
