package check

import (
	"context"

	"guardrail/internal/core/ports"
	"guardrail/internal/mcp/contracts"
)

// HandleCheck runs one architecture check. At most maxItems violations are
// listed; the counts always cover the whole report.
func HandleCheck(ctx context.Context, svc ports.ArchitectureService, in contracts.CheckInput, maxItems int) (contracts.CheckOutput, error) {
	res, err := svc.Check(ctx, ports.CheckRequest{
		FactFiles:    in.FactFiles,
		RuleFiles:    in.RuleFiles,
		Format:       in.Format,
		WriteOutputs: in.WriteOutputs,
	})
	if err != nil {
		return contracts.CheckOutput{}, err
	}
	rep := res.Report

	out := contracts.CheckOutput{
		Passed:          rep.Passed,
		ExitCode:        rep.ExitCode(),
		Units:           rep.Graph.Units,
		Edges:           rep.Graph.Edges,
		TotalViolations: rep.TotalViolations,
		Rules:           make([]contracts.RuleSummary, 0, len(rep.Rules)),
		Written:         res.Written,
	}
	if in.Format != "" {
		out.Rendered = string(res.Rendered)
	}
	for _, rr := range rep.Rules {
		out.Rules = append(out.Rules, contracts.RuleSummary{
			Name:       rr.Name,
			Kind:       string(rr.Kind),
			Severity:   string(rr.Severity),
			Status:     string(rr.Status),
			Violations: len(rr.Violations),
			Error:      rr.Error,
		})
	}
	for _, v := range rep.Violations() {
		if maxItems > 0 && len(out.Violations) >= maxItems {
			out.Truncated = true
			break
		}
		out.Violations = append(out.Violations, contracts.ViolationItem{
			Rule:    v.Rule,
			Subject: v.Subject,
			Target:  v.Target,
			Reason:  v.Reason,
			File:    v.Location.File,
			Line:    v.Location.Line,
		})
	}
	return out, nil
}
