package graph

import "sort"

// StronglyConnectedComponents runs Tarjan's algorithm without recursion so
// very deep dependency chains cannot exhaust the goroutine stack. Nodes are
// visited in the given order and successors in adjacency order; every
// component is sorted and the component list is ordered by first member.
func StronglyConnectedComponents(nodes []string, adjacency map[string][]string) [][]string {
	type frame struct {
		node string
		next int
	}

	index := 0
	indexOf := make(map[string]int, len(nodes))
	lowLink := make(map[string]int, len(nodes))
	onStack := make(map[string]bool, len(nodes))
	stack := make([]string, 0, len(nodes))
	components := make([][]string, 0)

	visit := func(v string) {
		indexOf[v] = index
		lowLink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true
	}

	for _, root := range nodes {
		if _, seen := indexOf[root]; seen {
			continue
		}
		visit(root)
		work := []frame{{node: root}}

		for len(work) > 0 {
			top := &work[len(work)-1]
			succ := adjacency[top.node]
			if top.next < len(succ) {
				w := succ[top.next]
				top.next++
				if _, seen := indexOf[w]; !seen {
					visit(w)
					work = append(work, frame{node: w})
				} else if onStack[w] && indexOf[w] < lowLink[top.node] {
					lowLink[top.node] = indexOf[w]
				}
				continue
			}

			v := top.node
			work = work[:len(work)-1]
			if len(work) > 0 {
				parent := work[len(work)-1].node
				if lowLink[v] < lowLink[parent] {
					lowLink[parent] = lowLink[v]
				}
			}
			if lowLink[v] != indexOf[v] {
				continue
			}

			component := make([]string, 0)
			for {
				last := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[last] = false
				component = append(component, last)
				if last == v {
					break
				}
			}
			sort.Strings(component)
			components = append(components, component)
		}
	}

	sort.Slice(components, func(i, j int) bool { return components[i][0] < components[j][0] })
	return components
}

// DetectCycles returns the unit-level components that contain a cycle
// (more than one unit, or a unit depending on itself).
func (g *Graph) DetectCycles() [][]string {
	if g == nil {
		return nil
	}
	adjacency := make(map[string][]string, len(g.names))
	for _, name := range g.names {
		adjacency[name] = g.successors(name)
	}
	out := make([][]string, 0)
	for _, comp := range StronglyConnectedComponents(g.names, adjacency) {
		if len(comp) > 1 || g.hasSelfEdge(comp[0]) {
			out = append(out, comp)
		}
	}
	return out
}

func (g *Graph) hasSelfEdge(name string) bool {
	for _, e := range g.outgoing[name] {
		if e.To == name {
			return true
		}
	}
	return false
}

// FindPath returns the shortest dependency chain from -> ... -> to, visiting
// successors in name order so ties resolve deterministically.
func (g *Graph) FindPath(from, to string) ([]string, bool) {
	if g == nil || !g.HasUnit(from) || !g.HasUnit(to) {
		return nil, false
	}
	if from == to {
		return []string{from}, true
	}
	return shortestPath(from, to, g.successors, nil)
}

// shortestPath is a BFS over successor lists. When within is non-nil only
// nodes in the set are expanded. The start node may be the target, in which
// case the result is the shortest cycle through it.
func shortestPath(from, to string, successors func(string) []string, within map[string]bool) ([]string, bool) {
	queue := []string{from}
	visited := map[string]bool{}
	prev := make(map[string]string)

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		for _, next := range successors(curr) {
			if within != nil && !within[next] {
				continue
			}
			if next == to {
				path := []string{to}
				for node := curr; node != from; node = prev[node] {
					path = append(path, node)
				}
				path = append(path, from)
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path, true
			}
			if visited[next] || next == from {
				continue
			}
			visited[next] = true
			prev[next] = curr
			queue = append(queue, next)
		}
	}
	return nil, false
}
