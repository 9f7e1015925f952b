package formats

import (
	"fmt"
	"strings"

	"guardrail/internal/engine/graph"
	"guardrail/internal/engine/rules"
	"guardrail/internal/ui/report"
)

type PlantUMLGenerator struct {
	graph *graph.Graph
	depth int
}

func NewPlantUMLGenerator(g *graph.Graph, depth int) *PlantUMLGenerator {
	if depth < 1 {
		depth = 1
	}
	return &PlantUMLGenerator{graph: g, depth: depth}
}

// Generate renders the same slice graph as the Mermaid diagram using
// PlantUML component syntax.
func (p *PlantUMLGenerator) Generate(r *report.Report) string {
	sg := p.graph.Condense(func(u graph.Unit) (string, bool) {
		return rules.SliceByDepth(u, p.depth), true
	})
	slices := sg.Slices()
	aliases := makeIDs(slices)

	sliceOf := make(map[string]string, p.graph.UnitCount())
	for _, s := range slices {
		for _, member := range sg.Members(s) {
			sliceOf[member] = s
		}
	}
	componentOf := make(map[string]int)
	for id, comp := range sg.CyclicComponents() {
		for _, s := range comp {
			componentOf[s] = id
		}
	}
	violationEdges := make(map[string]int)
	if r != nil {
		for _, v := range r.Violations() {
			from, to := sliceOf[v.Subject], sliceOf[v.Target]
			if v.Target == "" || from == "" || to == "" || from == to {
				continue
			}
			violationEdges[from+"->"+to]++
		}
	}

	var b strings.Builder
	b.WriteString("@startuml\n")
	b.WriteString("skinparam componentStyle rectangle\n")
	b.WriteString("skinparam linetype ortho\n")
	b.WriteString("skinparam nodesep 80\n")
	b.WriteString("skinparam ranksep 100\n")
	b.WriteString("left to right direction\n\n")

	for _, s := range slices {
		color := ""
		if _, ok := componentOf[s]; ok {
			color = " #FFECEC"
		}
		b.WriteString(fmt.Sprintf("component \"%s\\n(%d units)\" as %s%s\n", escapeLabel(s), len(sg.Members(s)), aliases[s], color))
	}

	b.WriteString("\n")
	hasCycle, hasViolation := false, false
	for _, from := range slices {
		for _, to := range sg.Successors(from) {
			arrow, label := "-->", ""
			fc, fromOnCycle := componentOf[from]
			tc, toOnCycle := componentOf[to]
			switch {
			case fromOnCycle && toOnCycle && fc == tc:
				arrow, label = "-[#red,thickness=2]->", " : CYCLE"
				hasCycle = true
			case violationEdges[from+"->"+to] > 0:
				arrow = "-[#a64d00,dashed]->"
				label = fmt.Sprintf(" : viol:%d", violationEdges[from+"->"+to])
				hasViolation = true
			}
			b.WriteString(fmt.Sprintf("%s %s %s%s\n", aliases[from], arrow, aliases[to], label))
		}
	}

	b.WriteString("\nlegend right\n")
	b.WriteString("|= Item |= Meaning |\n")
	b.WriteString(fmt.Sprintf("|Node|Package slice (depth %d) and its unit count|\n", p.depth))
	if hasCycle {
		b.WriteString("|<color:#cc0000>Red edge</color>|Slice cycle|\n")
	}
	if hasViolation {
		b.WriteString("|<color:#a64d00>Brown dashed edge</color>|Rule violations between the slices|\n")
	}
	b.WriteString("endlegend\n")
	b.WriteString("\n@enduml\n")
	return b.String()
}
