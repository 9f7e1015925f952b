package formats

import (
	"fmt"
	"strings"

	"guardrail/internal/ui/report"
)

// GenerateTSV emits one row per violation, plus one row per rule that could
// not be evaluated, for spreadsheet and shell consumption.
func GenerateTSV(r *report.Report) string {
	var buf strings.Builder
	buf.WriteString("Rule\tKind\tSeverity\tStatus\tSubject\tTarget\tFromLayer\tToLayer\tFile\tLine\tColumn\tReason\n")
	for _, rule := range r.Rules {
		if rule.Error != "" {
			buf.WriteString(fmt.Sprintf("%s\t%s\t%s\t%s\t\t\t\t\t\t0\t0\t%s\n",
				rule.Name, rule.Kind, rule.Severity, rule.Status, tsvField(rule.Error)))
			continue
		}
		for _, v := range rule.Violations {
			buf.WriteString(fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
				rule.Name,
				rule.Kind,
				rule.Severity,
				rule.Status,
				v.Subject,
				v.Target,
				v.FromLayer,
				v.ToLayer,
				v.Location.File,
				v.Location.Line,
				v.Location.Column,
				tsvField(v.Reason),
			))
		}
	}
	return buf.String()
}

func tsvField(s string) string {
	return strings.NewReplacer("\t", " ", "\n", " ", "\r", "").Replace(s)
}
