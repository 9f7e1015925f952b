package graph

import "sort"

type UnitMetrics struct {
	Name   string
	FanIn  int
	FanOut int
	// Depth is the longest dependency chain below the unit, counted over the
	// component graph so cycles do not make it unbounded.
	Depth int
}

// ComputeMetrics returns fan-in, fan-out and depth for every unit, sorted by
// name. Self edges are not counted.
func (g *Graph) ComputeMetrics() []UnitMetrics {
	if g == nil {
		return nil
	}
	adjacency := make(map[string][]string, len(g.names))
	fanIn := make(map[string]int, len(g.names))
	for _, name := range g.names {
		for _, e := range g.outgoing[name] {
			if e.To == name {
				continue
			}
			adjacency[name] = append(adjacency[name], e.To)
			fanIn[e.To]++
		}
	}

	components := StronglyConnectedComponents(g.names, adjacency)
	componentOf := make(map[string]int, len(g.names))
	for id, comp := range components {
		for _, n := range comp {
			componentOf[n] = id
		}
	}
	componentEdges := make(map[int]map[int]bool, len(components))
	for _, from := range g.names {
		fc := componentOf[from]
		for _, to := range adjacency[from] {
			tc := componentOf[to]
			if fc == tc {
				continue
			}
			if componentEdges[fc] == nil {
				componentEdges[fc] = make(map[int]bool)
			}
			componentEdges[fc][tc] = true
		}
	}

	depth := make(map[int]int, len(components))
	order := topologicalOrder(len(components), componentEdges)
	for i := len(order) - 1; i >= 0; i-- {
		comp := order[i]
		best := 0
		for next := range componentEdges[comp] {
			if d := depth[next] + 1; d > best {
				best = d
			}
		}
		depth[comp] = best
	}

	out := make([]UnitMetrics, 0, len(g.names))
	for _, name := range g.names {
		out = append(out, UnitMetrics{
			Name:   name,
			FanIn:  fanIn[name],
			FanOut: len(adjacency[name]),
			Depth:  depth[componentOf[name]],
		})
	}
	return out
}

// TopFanIn returns the n most depended-on units, ties broken by name.
func TopFanIn(metrics []UnitMetrics, n int) []UnitMetrics {
	sorted := append([]UnitMetrics(nil), metrics...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].FanIn != sorted[j].FanIn {
			return sorted[i].FanIn > sorted[j].FanIn
		}
		return sorted[i].Name < sorted[j].Name
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// topologicalOrder orders the acyclic component graph with Kahn's algorithm.
func topologicalOrder(n int, edges map[int]map[int]bool) []int {
	inDegree := make([]int, n)
	for _, targets := range edges {
		for to := range targets {
			inDegree[to]++
		}
	}
	queue := make([]int, 0, n)
	for id := 0; id < n; id++ {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	order := make([]int, 0, n)
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		order = append(order, curr)
		for to := range edges[curr] {
			inDegree[to]--
			if inDegree[to] == 0 {
				queue = append(queue, to)
			}
		}
	}
	return order
}
