package graph

import (
	"context"

	"guardrail/internal/core/ports"
	"guardrail/internal/mcp/contracts"
)

func HandleTrace(ctx context.Context, svc ports.ArchitectureService, in contracts.TraceInput) (contracts.TraceOutput, error) {
	res, err := svc.Trace(ctx, in.From, in.To)
	if err != nil {
		return contracts.TraceOutput{}, err
	}
	out := contracts.TraceOutput{From: res.From, To: res.To, Found: res.Found, Path: res.Path}
	for _, e := range res.Edges {
		hop := contracts.TraceHop{From: e.From, To: e.To, File: e.Location.File, Line: e.Location.Line}
		for _, k := range e.Kinds {
			hop.Kind = append(hop.Kind, string(k))
		}
		out.Hops = append(out.Hops, hop)
	}
	return out, nil
}

// HandleImpact lists the dependents of a unit. The transitive list is capped
// at the smaller of the requested limit and maxItems.
func HandleImpact(ctx context.Context, svc ports.ArchitectureService, in contracts.ImpactInput, maxItems int) (contracts.ImpactOutput, error) {
	rep, err := svc.Impact(ctx, in.Unit)
	if err != nil {
		return contracts.ImpactOutput{}, err
	}
	limit := clampLimit(in.Limit, maxItems)
	out := contracts.ImpactOutput{
		Unit:                 rep.Target,
		DirectDependents:     nonNil(rep.DirectDependents),
		TransitiveDependents: nonNil(rep.TransitiveDependents),
		TransitiveCount:      len(rep.TransitiveDependents),
	}
	if limit > 0 && len(out.TransitiveDependents) > limit {
		out.TransitiveDependents = out.TransitiveDependents[:limit]
		out.Truncated = true
	}
	if limit > 0 && len(out.DirectDependents) > limit {
		out.DirectDependents = out.DirectDependents[:limit]
		out.Truncated = true
	}
	return out, nil
}

func HandleMetrics(ctx context.Context, svc ports.ArchitectureService, in contracts.MetricsInput, maxItems int) (contracts.MetricsOutput, error) {
	metrics, err := svc.Metrics(ctx, clampLimit(in.Limit, maxItems))
	if err != nil {
		return contracts.MetricsOutput{}, err
	}
	out := contracts.MetricsOutput{Units: make([]contracts.UnitMetric, 0, len(metrics))}
	for _, m := range metrics {
		out.Units = append(out.Units, contracts.UnitMetric{Unit: m.Name, FanIn: m.FanIn, FanOut: m.FanOut, Depth: m.Depth})
	}
	return out, nil
}

func clampLimit(limit, maxItems int) int {
	if limit <= 0 || (maxItems > 0 && limit > maxItems) {
		return maxItems
	}
	return limit
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
