package graph

import (
	"sort"
)

// Graph is the frozen dependency graph. It has no mutation API, so any
// number of rules may read it concurrently without locking.
type Graph struct {
	units map[string]*Unit
	names []string

	outgoing map[string][]*Edge // from -> edges sorted by To
	incoming map[string][]*Edge // to -> edges sorted by From
	edges    []*Edge            // sorted by From, To
}

// Empty returns a graph with no units and no edges.
func Empty() *Graph {
	return freeze(nil, nil)
}

func freeze(units map[string]*Unit, edges map[edgeKey]*Edge) *Graph {
	g := &Graph{
		units:    make(map[string]*Unit, len(units)),
		names:    make([]string, 0, len(units)),
		outgoing: make(map[string][]*Edge),
		incoming: make(map[string][]*Edge),
		edges:    make([]*Edge, 0, len(edges)),
	}
	for name, u := range units {
		c := cloneUnit(u)
		g.units[name] = &c
		g.names = append(g.names, name)
	}
	sort.Strings(g.names)

	for _, e := range edges {
		c := cloneEdge(e)
		sort.Slice(c.Kinds, func(i, j int) bool { return c.Kinds[i] < c.Kinds[j] })
		g.edges = append(g.edges, &c)
	}
	sort.Slice(g.edges, func(i, j int) bool { return edgeLess(g.edges[i], g.edges[j]) })
	for _, e := range g.edges {
		g.outgoing[e.From] = append(g.outgoing[e.From], e)
		g.incoming[e.To] = append(g.incoming[e.To], e)
	}
	for name := range g.incoming {
		in := g.incoming[name]
		sort.Slice(in, func(i, j int) bool { return in[i].From < in[j].From })
	}
	return g
}

func edgeLess(a, b *Edge) bool {
	if a.From != b.From {
		return a.From < b.From
	}
	return a.To < b.To
}

func (g *Graph) UnitCount() int {
	if g == nil {
		return 0
	}
	return len(g.names)
}

func (g *Graph) EdgeCount() int {
	if g == nil {
		return 0
	}
	return len(g.edges)
}

// Unit returns a copy of the named unit.
func (g *Graph) Unit(name string) (Unit, bool) {
	if g == nil {
		return Unit{}, false
	}
	u, ok := g.units[name]
	if !ok {
		return Unit{}, false
	}
	return cloneUnit(u), true
}

// HasUnit reports whether name is a unit of the graph.
func (g *Graph) HasUnit(name string) bool {
	if g == nil {
		return false
	}
	_, ok := g.units[name]
	return ok
}

// Units returns every unit sorted by qualified name.
func (g *Graph) Units() []Unit {
	return g.UnitsMatching(nil)
}

// UnitNames returns the sorted qualified names.
func (g *Graph) UnitNames() []string {
	if g == nil {
		return nil
	}
	return append([]string(nil), g.names...)
}

// UnitsMatching returns the units accepted by match, sorted by qualified
// name. A nil match accepts every unit.
func (g *Graph) UnitsMatching(match func(Unit) bool) []Unit {
	if g == nil {
		return nil
	}
	out := make([]Unit, 0, len(g.names))
	for _, name := range g.names {
		u := g.units[name]
		if match != nil && !match(*u) {
			continue
		}
		out = append(out, cloneUnit(u))
	}
	return out
}

// Edges returns every logical edge sorted by source then target.
func (g *Graph) Edges() []Edge {
	if g == nil {
		return nil
	}
	return cloneEdges(g.edges)
}

// EdgesFrom returns the outgoing edges of name sorted by target.
func (g *Graph) EdgesFrom(name string) []Edge {
	if g == nil {
		return nil
	}
	return cloneEdges(g.outgoing[name])
}

// EdgesTo returns the incoming edges of name sorted by source.
func (g *Graph) EdgesTo(name string) []Edge {
	if g == nil {
		return nil
	}
	return cloneEdges(g.incoming[name])
}

func (g *Graph) successors(name string) []string {
	out := make([]string, 0, len(g.outgoing[name]))
	for _, e := range g.outgoing[name] {
		out = append(out, e.To)
	}
	return out
}

func cloneEdges(edges []*Edge) []Edge {
	out := make([]Edge, 0, len(edges))
	for _, e := range edges {
		out = append(out, cloneEdge(e))
	}
	return out
}
