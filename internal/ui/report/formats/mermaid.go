package formats

import (
	"fmt"
	"strconv"
	"strings"

	"guardrail/internal/engine/graph"
	"guardrail/internal/engine/rules"
	"guardrail/internal/ui/report"
)

const mermaidInit = "%%{init: {'theme': 'base', 'themeVariables': {'textColor': '#000000', 'primaryTextColor': '#000000', 'lineColor': '#333333'}, 'flowchart': {'nodeSpacing': 80, 'rankSpacing': 110, 'curve': 'basis'}}}%%\n"

type MermaidGenerator struct {
	graph *graph.Graph
	depth int
}

// NewMermaidGenerator draws g condensed to package slices of the given depth.
func NewMermaidGenerator(g *graph.Graph, depth int) *MermaidGenerator {
	if depth < 1 {
		depth = 1
	}
	return &MermaidGenerator{graph: g, depth: depth}
}

// Generate renders the slice graph. Slices on a dependency cycle and edges
// that carry a reported violation are highlighted.
func (m *MermaidGenerator) Generate(r *report.Report) string {
	sg := m.graph.Condense(func(u graph.Unit) (string, bool) {
		return rules.SliceByDepth(u, m.depth), true
	})
	slices := sg.Slices()
	ids := makeIDs(slices)

	sliceOf := make(map[string]string, m.graph.UnitCount())
	for _, s := range slices {
		for _, member := range sg.Members(s) {
			sliceOf[member] = s
		}
	}

	// componentOf only holds slices that sit on a cycle.
	componentOf := make(map[string]int)
	for id, comp := range sg.CyclicComponents() {
		for _, s := range comp {
			componentOf[s] = id
		}
	}
	violationEdges := make(map[string]int)
	if r != nil {
		for _, v := range r.Violations() {
			if v.Target == "" {
				continue
			}
			from, to := sliceOf[v.Subject], sliceOf[v.Target]
			if from == "" || to == "" || from == to {
				continue
			}
			violationEdges[from+"->"+to]++
		}
	}

	var b strings.Builder
	b.WriteString(mermaidInit)
	b.WriteString("flowchart LR\n")
	for _, s := range slices {
		b.WriteString(fmt.Sprintf("  %s[\"%s\\n(%d units)\"]\n", ids[s], escapeLabel(s), len(sg.Members(s))))
	}

	b.WriteString("\n")
	if len(slices) > 0 {
		b.WriteString("  classDef sliceNode fill:#f7fbff,stroke:#4d6480,stroke-width:1px,color:#000000;\n")
		b.WriteString("  class ")
		b.WriteString(strings.Join(toIDs(slices, ids), ","))
		b.WriteString(" sliceNode;\n")
	}
	cycleNames := make([]string, 0, len(componentOf))
	for _, s := range slices {
		if _, ok := componentOf[s]; ok {
			cycleNames = append(cycleNames, s)
		}
	}
	if len(cycleNames) > 0 {
		b.WriteString("  classDef cycleNode fill:#ffecec,stroke:#cc0000,stroke-width:2px,color:#000000;\n")
		b.WriteString("  class ")
		b.WriteString(strings.Join(toIDs(cycleNames, ids), ","))
		b.WriteString(" cycleNode;\n")
	}

	b.WriteString("\n")
	linkIndex := 0
	cycleLinks := make([]int, 0)
	violationLinks := make([]int, 0)
	for _, from := range slices {
		for _, to := range sg.Successors(from) {
			label := ""
			fc, fromOnCycle := componentOf[from]
			tc, toOnCycle := componentOf[to]
			switch {
			case fromOnCycle && toOnCycle && fc == tc:
				label = "|CYCLE|"
				cycleLinks = append(cycleLinks, linkIndex)
			case violationEdges[from+"->"+to] > 0:
				label = fmt.Sprintf("|viol:%d|", violationEdges[from+"->"+to])
				violationLinks = append(violationLinks, linkIndex)
			}
			b.WriteString(fmt.Sprintf("  %s -->%s %s\n", ids[from], label, ids[to]))
			linkIndex++
		}
	}

	if len(cycleLinks) > 0 || len(violationLinks) > 0 {
		b.WriteString("\n")
	}
	if len(cycleLinks) > 0 {
		b.WriteString(fmt.Sprintf("  linkStyle %s stroke:#cc0000,stroke-width:3px;\n", joinInts(cycleLinks)))
	}
	if len(violationLinks) > 0 {
		b.WriteString(fmt.Sprintf("  linkStyle %s stroke:#a64d00,stroke-width:2px,stroke-dasharray:5 3;\n", joinInts(violationLinks)))
	}
	b.WriteString("\n")
	b.WriteString("  subgraph legend_info[\"Legend\"]\n")
	b.WriteString(fmt.Sprintf("    legend_nodes[\"Node: package slice (depth %d)\"]\n", m.depth))
	b.WriteString("    legend_edges[\"Edge labels: CYCLE=slice cycle, viol:N=rule violations between the slices\"]\n")
	b.WriteString("  end\n")
	b.WriteString("  classDef legendNode fill:#fff8dc,stroke:#b8a24c,stroke-width:1px,color:#000000;\n")
	b.WriteString("  class legend_nodes,legend_edges legendNode;\n")
	return b.String()
}

func toIDs(names []string, ids map[string]string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, ids[name])
	}
	return out
}

func joinInts(values []int) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, strconv.Itoa(v))
	}
	return strings.Join(parts, ",")
}
