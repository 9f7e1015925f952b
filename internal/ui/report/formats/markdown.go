package formats

import (
	"fmt"
	"strings"

	"guardrail/internal/engine/rules"
	"guardrail/internal/ui/report"
)

type MarkdownReportOptions struct {
	ProjectName string
	ProjectRoot string
	// CollapsibleSections wraps long violation tables in <details>.
	CollapsibleSections bool
}

const collapseThreshold = 10

type MarkdownGenerator struct{}

func NewMarkdownGenerator() *MarkdownGenerator {
	return &MarkdownGenerator{}
}

func (m *MarkdownGenerator) Generate(r *report.Report, opts MarkdownReportOptions) string {
	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("title: Architecture Check Report\n")
	b.WriteString("project: " + nonEmpty(opts.ProjectName, "unknown") + "\n")
	b.WriteString("version: " + nonEmpty(r.Version, "unknown") + "\n")
	b.WriteString("---\n\n")

	b.WriteString("# Architecture Check\n\n")
	b.WriteString(fmt.Sprintf("**Result:** %s\n\n", passLabel(r.Passed)))

	b.WriteString("## Summary\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("| --- | --- |\n")
	b.WriteString(fmt.Sprintf("| Units | %d |\n", r.Graph.Units))
	b.WriteString(fmt.Sprintf("| Dependencies | %d |\n", r.Graph.Edges))
	b.WriteString(fmt.Sprintf("| Unit cycles | %d |\n", r.Graph.UnitCycles))
	b.WriteString(fmt.Sprintf("| Rules | %d |\n", r.Summary.Rules))
	b.WriteString(fmt.Sprintf("| Passed | %d |\n", r.Summary.Passed))
	b.WriteString(fmt.Sprintf("| Failed | %d |\n", r.Summary.Failed))
	b.WriteString(fmt.Sprintf("| Warnings | %d |\n", r.Summary.Warnings))
	b.WriteString(fmt.Sprintf("| Configuration Errors | %d |\n", r.Summary.ConfigErrors))
	b.WriteString(fmt.Sprintf("| Timeouts | %d |\n", r.Summary.Timeouts))
	b.WriteString(fmt.Sprintf("| Violations | %d |\n\n", r.TotalViolations))

	b.WriteString("## Rules\n")
	b.WriteString("| Rule | Kind | Severity | Status | Violations |\n")
	b.WriteString("| --- | --- | --- | --- | --- |\n")
	for _, rr := range r.Rules {
		b.WriteString(fmt.Sprintf("| `%s` | %s | %s | %s | %d |\n", rr.Name, rr.Kind, rr.Severity, statusLabel(rr.Status), len(rr.Violations)))
	}
	b.WriteString("\n")

	for _, rr := range r.Rules {
		if rr.Status == rules.StatusPass {
			continue
		}
		b.WriteString(fmt.Sprintf("### %s\n", rr.Name))
		if rr.Because != "" {
			b.WriteString(fmt.Sprintf("_%s_\n\n", escapeCell(rr.Because)))
		}
		if rr.Error != "" {
			b.WriteString(fmt.Sprintf("> **%s:** %s\n\n", rr.Status, escapeCell(rr.Error)))
			continue
		}
		rows := make([]string, 0, len(rr.Violations))
		for i, v := range rr.Violations {
			rows = append(rows, fmt.Sprintf("| %d | `%s` | %s | %s | %s |\n",
				i+1, v.Subject, codeOrDash(v.Target), escapeCell(v.Reason), locationLabel(opts.ProjectRoot, v)))
		}
		m.writeTableWithCollapse(&b, "Violation details", opts.CollapsibleSections, len(rows) > collapseThreshold,
			[]string{"| # | Unit | Target | Reason | Location |\n", "| --- | --- | --- | --- | --- |\n"}, rows)
	}
	return b.String()
}

func (m *MarkdownGenerator) writeTableWithCollapse(b *strings.Builder, summary string, collapsible, collapse bool, header, rows []string) {
	if collapsible && collapse {
		b.WriteString("<details>\n")
		b.WriteString(fmt.Sprintf("<summary>%s (%d)</summary>\n\n", summary, len(rows)))
	}
	for _, h := range header {
		b.WriteString(h)
	}
	for _, row := range rows {
		b.WriteString(row)
	}
	if collapsible && collapse {
		b.WriteString("\n</details>\n")
	}
	b.WriteString("\n")
}

func passLabel(passed bool) string {
	if passed {
		return "✅ pass"
	}
	return "❌ fail"
}

func statusLabel(s rules.Status) string {
	switch s {
	case rules.StatusPass:
		return "✅ pass"
	case rules.StatusFail:
		return "❌ fail"
	case rules.StatusTimeout:
		return "⏱ timeout"
	default:
		return "⚠️ " + string(s)
	}
}

func locationLabel(projectRoot string, v rules.Violation) string {
	if v.Location.File == "" {
		return "-"
	}
	uri := relativeURI(projectRoot, v.Location.File)
	if v.Location.Line > 0 {
		return fmt.Sprintf("`%s:%d`", uri, v.Location.Line)
	}
	return "`" + uri + "`"
}
