package formats

import (
	"fmt"
	"strings"

	"guardrail/internal/engine/rules"
	"guardrail/internal/ui/report"
)

// GenerateText renders the plain console report. Violations are listed under
// their rule, one per line, in report order.
func GenerateText(r *report.Report) string {
	var b strings.Builder
	for _, rr := range r.Rules {
		b.WriteString(fmt.Sprintf("[%s] %s (%s, %s)\n", strings.ToUpper(string(rr.Status)), rr.Name, rr.Kind, rr.Severity))
		if rr.Error != "" {
			b.WriteString("    " + rr.Error + "\n")
			continue
		}
		for _, v := range rr.Violations {
			b.WriteString("  - " + v.Reason)
			if loc := textLocation(v); loc != "" {
				b.WriteString(" (" + loc + ")")
			}
			b.WriteString("\n")
			for _, step := range v.Cycle {
				b.WriteString(fmt.Sprintf("      %s -> %s: %s -> %s\n", step.FromSlice, step.ToSlice, step.From, step.To))
			}
		}
	}
	if len(r.Rules) > 0 {
		b.WriteString("\n")
	}
	b.WriteString(fmt.Sprintf("%d units, %d dependencies, %d rules: %d passed, %d failed, %d warnings, %d config errors, %d timeouts\n",
		r.Graph.Units, r.Graph.Edges, r.Summary.Rules, r.Summary.Passed, r.Summary.Failed,
		r.Summary.Warnings, r.Summary.ConfigErrors, r.Summary.Timeouts))
	if r.Passed {
		b.WriteString("PASS\n")
	} else {
		b.WriteString(fmt.Sprintf("FAIL (%d violations)\n", r.TotalViolations))
	}
	return b.String()
}

func textLocation(v rules.Violation) string {
	if v.Location.File == "" {
		return ""
	}
	if v.Location.Line > 0 {
		return fmt.Sprintf("%s:%d", v.Location.File, v.Location.Line)
	}
	return v.Location.File
}
