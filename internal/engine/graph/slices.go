package graph

import (
	"context"
	"sort"
)

const condenseCheckInterval = 256

// SliceFunc maps a unit to its slice key. Units for which it reports false
// do not take part in the condensed graph.
type SliceFunc func(Unit) (string, bool)

// SliceGraph is the condensed graph over slice keys. An edge exists between
// two different slices when any member of the first depends on any member of
// the second; the smallest such unit edge is kept as witness.
type SliceGraph struct {
	slices    []string
	members   map[string][]string
	adjacency map[string][]string
	witness   map[edgeKey]Edge
}

// Condense builds the slice graph. Intra-slice edges are dropped.
func (g *Graph) Condense(slice SliceFunc) *SliceGraph {
	sg, _ := g.CondenseContext(context.Background(), slice)
	return sg
}

// CondenseContext is Condense that stops early with ctx.Err() once ctx is done.
func (g *Graph) CondenseContext(ctx context.Context, slice SliceFunc) (*SliceGraph, error) {
	sg := &SliceGraph{
		members:   make(map[string][]string),
		adjacency: make(map[string][]string),
		witness:   make(map[edgeKey]Edge),
	}
	if g == nil || slice == nil {
		return sg, nil
	}

	sliceOf := make(map[string]string, len(g.names))
	for i, name := range g.names {
		if i%condenseCheckInterval == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		key, ok := slice(*g.units[name])
		if !ok || key == "" {
			continue
		}
		sliceOf[name] = key
		if _, exists := sg.members[key]; !exists {
			sg.slices = append(sg.slices, key)
		}
		sg.members[key] = append(sg.members[key], name)
	}
	sort.Strings(sg.slices)

	// g.edges is sorted, so the first edge seen for a slice pair is the smallest.
	for i, e := range g.edges {
		if i%condenseCheckInterval == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		from, okFrom := sliceOf[e.From]
		to, okTo := sliceOf[e.To]
		if !okFrom || !okTo || from == to {
			continue
		}
		key := edgeKey{from: from, to: to}
		if _, exists := sg.witness[key]; exists {
			continue
		}
		sg.witness[key] = cloneEdge(e)
		sg.adjacency[from] = append(sg.adjacency[from], to)
	}
	for from := range sg.adjacency {
		sort.Strings(sg.adjacency[from])
	}
	return sg, nil
}

// Slices returns the sorted slice keys.
func (s *SliceGraph) Slices() []string {
	return append([]string(nil), s.slices...)
}

// Members returns the sorted unit names of a slice.
func (s *SliceGraph) Members(slice string) []string {
	return append([]string(nil), s.members[slice]...)
}

// Successors returns the sorted slices reachable in one step.
func (s *SliceGraph) Successors(slice string) []string {
	return append([]string(nil), s.adjacency[slice]...)
}

// Witness returns the representative unit edge between two slices.
func (s *SliceGraph) Witness(from, to string) (Edge, bool) {
	e, ok := s.witness[edgeKey{from: from, to: to}]
	if !ok {
		return Edge{}, false
	}
	return cloneEdge(&e), true
}

// CyclicComponents returns the strongly connected components with more than
// one slice. Intra-slice edges are never part of the condensed graph, so a
// single slice cannot form a cycle on its own.
func (s *SliceGraph) CyclicComponents() [][]string {
	out := make([][]string, 0)
	for _, comp := range StronglyConnectedComponents(s.slices, s.adjacency) {
		if len(comp) > 1 {
			out = append(out, comp)
		}
	}
	return out
}

// ShortestPath returns the shortest slice path from -> ... -> to that stays
// inside component. from == to yields the shortest cycle through from.
func (s *SliceGraph) ShortestPath(from, to string, component []string) ([]string, bool) {
	within := make(map[string]bool, len(component))
	for _, c := range component {
		within[c] = true
	}
	return shortestPath(from, to, func(n string) []string { return s.adjacency[n] }, within)
}

// ShortestCycle returns the shortest slice cycle starting and ending at start
// that stays inside component.
func (s *SliceGraph) ShortestCycle(start string, component []string) ([]string, bool) {
	return s.ShortestPath(start, start, component)
}
