package history

import (
	"context"

	"guardrail/internal/core/ports"
	"guardrail/internal/mcp/contracts"
	"guardrail/internal/mcp/validate"
)

func HandleTrends(ctx context.Context, svc ports.ArchitectureService, in contracts.HistoryInput, maxItems int) (contracts.HistoryOutput, error) {
	since, err := validate.ParseSince(in.Since)
	if err != nil {
		return contracts.HistoryOutput{}, err
	}
	limit := in.Limit
	if limit <= 0 || (maxItems > 0 && limit > maxItems) {
		limit = maxItems
	}
	trend, err := svc.History(ctx, since, limit)
	if err != nil {
		return contracts.HistoryOutput{}, err
	}
	out := contracts.HistoryOutput{
		ProjectKey: trend.ProjectKey,
		RunCount:   trend.RunCount,
		Points:     make([]contracts.HistoryPoint, 0, len(trend.Points)),
	}
	for _, p := range trend.Points {
		out.Points = append(out.Points, contracts.HistoryPoint{
			RunID:           p.RunID,
			Timestamp:       p.Timestamp,
			Passed:          p.Passed,
			Violations:      p.Violations,
			DeltaViolations: p.DeltaViolations,
			NewlyFailing:    p.NewlyFailing,
			Fixed:           p.Fixed,
		})
	}
	return out, nil
}
