package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"guardrail/internal/core/errors"
	"guardrail/internal/core/ports"
	"guardrail/internal/data/facts"
	"guardrail/internal/data/history"
	"guardrail/internal/data/rulepack"
	"guardrail/internal/engine/graph"
	"guardrail/internal/engine/rules"
	"guardrail/internal/shared/observability"
	"guardrail/internal/ui/report"
	"guardrail/internal/ui/report/formats"
)

// Check loads the facts and rules, evaluates every rule and renders the
// report. Errors are returned only when no report could be produced; rule
// level problems live in the report.
func (a *App) Check(ctx context.Context, req ports.CheckRequest) (ports.CheckResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.Check")
	defer span.End()
	start := time.Now()

	cfg, paths, engine, store := a.snapshot()

	factFiles := req.FactFiles
	if len(factFiles) == 0 {
		factFiles = paths.FactFiles
	}
	if len(factFiles) == 0 {
		return ports.CheckResult{}, errors.New(errors.CodeConfiguration, "no fact files configured")
	}
	g, err := facts.BuildGraph(ctx, factFiles)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load facts")
		return ports.CheckResult{}, err
	}

	ruleFiles := req.RuleFiles
	if len(ruleFiles) == 0 {
		ruleFiles = paths.RuleFiles
	}
	loaded, err := rulepack.LoadAll(ruleFiles)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load rules")
		return ports.CheckResult{}, err
	}
	ruleset := make([]rules.Rule, 0, len(cfg.Rules)+len(loaded))
	ruleset = append(ruleset, cfg.Rules...)
	ruleset = append(ruleset, loaded...)
	span.SetAttributes(
		attribute.Int("graph.units", g.UnitCount()),
		attribute.Int("graph.edges", g.EdgeCount()),
		attribute.Int("rules.count", len(ruleset)),
	)

	results, err := engine.Evaluate(ctx, g, ruleset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluate")
		return ports.CheckResult{}, err
	}

	rep := report.Build(results, g, report.Options{FailOnWarn: cfg.Engine.FailOnWarn})
	rep.Duration = time.Since(start)
	observability.RunDuration.Observe(rep.Duration.Seconds())
	span.SetAttributes(
		attribute.Int("report.violations", rep.TotalViolations),
		attribute.Bool("report.passed", rep.Passed),
	)

	a.stateMu.Lock()
	a.graph = g
	a.last = rep
	a.stateMu.Unlock()

	format := strings.TrimSpace(req.Format)
	if format == "" {
		format = cfg.Output.Format
	}
	rendered, err := formats.Render(format, rep, paths.ProjectRoot)
	if err != nil {
		return ports.CheckResult{}, errors.Wrap(err, errors.CodeValidation, "render report")
	}
	result := ports.CheckResult{Report: rep, Graph: g, Rendered: rendered}

	if req.WriteOutputs {
		written, err := writeOutputs(cfg, paths, rep, g)
		if err != nil {
			return result, err
		}
		result.Written = written
	}

	if req.RecordHistory && store != nil {
		if err := store.SaveRun(ctx, runFromReport(rep)); err != nil {
			// History failures are logged; the report is still returned.
			slog.Warn("failed to record run history", "run_id", rep.RunID, "error", err)
		}
	}

	slog.Info("check complete",
		"run_id", rep.RunID,
		"units", rep.Graph.Units,
		"rules", rep.Summary.Rules,
		"violations", rep.TotalViolations,
		"passed", rep.Passed,
		"duration", rep.Duration,
	)
	return result, nil
}

func runFromReport(rep *report.Report) history.Run {
	run := history.Run{
		RunID:        rep.RunID,
		Timestamp:    rep.GeneratedAt,
		Duration:     rep.Duration,
		Passed:       rep.Passed,
		ExitCode:     rep.ExitCode(),
		Units:        rep.Graph.Units,
		Edges:        rep.Graph.Edges,
		Rules:        rep.Summary.Rules,
		Violations:   rep.TotalViolations,
		Failed:       rep.Summary.Failed,
		Warnings:     rep.Summary.Warnings,
		ConfigErrors: rep.Summary.ConfigErrors,
		Timeouts:     rep.Summary.Timeouts,
		Outcomes:     make([]history.RuleOutcome, 0, len(rep.Rules)),
	}
	for _, rr := range rep.Rules {
		run.Outcomes = append(run.Outcomes, history.RuleOutcome{
			Rule:       rr.Name,
			Kind:       string(rr.Kind),
			Severity:   string(rr.Severity),
			Status:     string(rr.Status),
			Violations: len(rr.Violations),
		})
	}
	return run
}

// Trace finds the shortest dependency chain from one unit to another in the
// graph of the last check, loading the configured facts if no check ran yet.
func (a *App) Trace(ctx context.Context, from, to string) (ports.TraceResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.Trace", trace.WithAttributes(
		attribute.String("trace.from", from),
		attribute.String("trace.to", to),
	))
	defer span.End()

	g, err := a.currentGraph(ctx)
	if err != nil {
		return ports.TraceResult{}, err
	}
	for _, name := range []string{from, to} {
		if !g.HasUnit(name) {
			return ports.TraceResult{}, errors.AddContext(
				errors.Newf(errors.CodeNotFound, "unit %q not found", name), errors.CtxUnit, name)
		}
	}

	result := ports.TraceResult{From: from, To: to}
	path, ok := g.FindPath(from, to)
	if !ok {
		return result, nil
	}
	result.Found = true
	result.Path = path
	for i := 0; i+1 < len(path); i++ {
		for _, e := range g.EdgesFrom(path[i]) {
			if e.To == path[i+1] {
				result.Edges = append(result.Edges, e)
				break
			}
		}
	}
	return result, nil
}

// Impact lists the units that depend on unit, directly or transitively.
func (a *App) Impact(ctx context.Context, unit string) (graph.ImpactReport, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.Impact", trace.WithAttributes(attribute.String("unit", unit)))
	defer span.End()

	g, err := a.currentGraph(ctx)
	if err != nil {
		return graph.ImpactReport{}, err
	}
	rep, err := g.Impact(unit)
	if err != nil {
		return graph.ImpactReport{}, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "impact analysis"), errors.CtxUnit, unit)
	}
	return rep, nil
}

// Metrics returns per-unit coupling metrics ordered by fan-in. A
// non-positive limit returns every unit.
func (a *App) Metrics(ctx context.Context, limit int) ([]graph.UnitMetrics, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.Metrics")
	defer span.End()

	g, err := a.currentGraph(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	return graph.TopFanIn(g.ComputeMetrics(), limit), nil
}

// History summarizes the recorded runs since the given time.
func (a *App) History(ctx context.Context, since time.Time, limit int) (history.TrendReport, error) {
	_, _, _, store := a.snapshot()
	if store == nil {
		return history.TrendReport{}, errors.New(errors.CodeConfiguration, "run history is not enabled")
	}
	runs, err := store.LoadRuns(ctx, since, limit)
	if err != nil {
		return history.TrendReport{}, errors.Wrap(err, errors.CodeInternal, "load run history")
	}
	if len(runs) == 0 {
		return history.TrendReport{}, errors.New(errors.CodeNotFound, "no runs recorded")
	}
	return history.BuildTrendReport(runs[0].ProjectKey, runs)
}

func (a *App) currentGraph(ctx context.Context) (*graph.Graph, error) {
	if g := a.Graph(); g != nil {
		return g, nil
	}
	paths := a.Paths()
	if len(paths.FactFiles) == 0 {
		return nil, errors.New(errors.CodeConfiguration, "no fact files configured")
	}
	g, err := facts.BuildGraph(ctx, paths.FactFiles)
	if err != nil {
		return nil, fmt.Errorf("load facts: %w", err)
	}
	a.stateMu.Lock()
	if a.graph == nil {
		a.graph = g
	}
	a.stateMu.Unlock()
	return g, nil
}
