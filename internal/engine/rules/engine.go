package rules

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"guardrail/internal/core/errors"
	"guardrail/internal/engine/graph"
	"guardrail/internal/shared/observability"
)

const checkpointInterval = 256

// checkpoint polls ctx every checkpointInterval iterations.
func checkpoint(ctx context.Context, i int) error {
	if i%checkpointInterval != 0 {
		return nil
	}
	return ctx.Err()
}

type Options struct {
	// Parallelism bounds concurrent rule evaluations; values below 1 mean
	// one rule at a time.
	Parallelism int
	// RuleTimeout bounds each rule separately. Zero disables the limit.
	RuleTimeout time.Duration
}

// Engine evaluates a caller-supplied list of rules against one frozen graph.
// It keeps no state between calls.
type Engine struct {
	opts Options

	// dispatch is replaced in tests to simulate slow rules.
	dispatch func(ctx context.Context, g *graph.Graph, r Rule) ([]Violation, error)
}

func NewEngine(opts Options) *Engine {
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	return &Engine{opts: opts, dispatch: evaluate}
}

// Evaluate runs every rule and returns one result per rule ordered by rule
// name. Configuration errors and timeouts are confined to the rule they
// belong to. The returned error is only set when ctx itself is cancelled.
func (e *Engine) Evaluate(ctx context.Context, g *graph.Graph, rules []Rule) ([]Result, error) {
	ctx, span := observability.Tracer.Start(ctx, "rules.Evaluate", trace.WithAttributes(
		attribute.Int("rules", len(rules)),
		attribute.Int("units", g.UnitCount()),
	))
	defer span.End()

	if g == nil {
		g = graph.Empty()
	}
	results := make([]Result, len(rules))
	duplicate := duplicateNames(rules)

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(e.opts.Parallelism)
	for i := range rules {
		rule := rules[i]
		if err := gctx.Err(); err != nil {
			break
		}
		grp.Go(func() error {
			if duplicate[i] {
				results[i] = configError(rule, errors.AddContext(
					errors.Newf(errors.CodeConfiguration, "rule name %q is used more than once", rule.Name),
					errors.CtxRule, rule.Name))
				record(results[i])
				return nil
			}
			results[i] = e.evaluateOne(gctx, g, rule)
			return nil
		})
	}
	_ = grp.Wait()
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, errors.Wrap(err, errors.CodeTimeout, "evaluation cancelled")
	}

	order := make([]int, len(results))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return results[order[a]].Rule < results[order[b]].Rule })
	sorted := make([]Result, 0, len(results))
	for _, idx := range order {
		sorted = append(sorted, results[idx])
	}
	return sorted, nil
}

func duplicateNames(rules []Rule) map[int]bool {
	seen := make(map[string]bool, len(rules))
	out := make(map[int]bool)
	for i, r := range rules {
		name := strings.TrimSpace(r.Name)
		if seen[name] {
			out[i] = true
		}
		seen[name] = true
	}
	return out
}

func (e *Engine) evaluateOne(ctx context.Context, g *graph.Graph, rule Rule) Result {
	ctx, span := observability.Tracer.Start(ctx, "rules.evaluateOne", trace.WithAttributes(
		attribute.String("rule", rule.Name),
		attribute.String("kind", string(rule.Kind)),
	))
	defer span.End()

	if e.opts.RuleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.RuleTimeout)
		defer cancel()
	}

	type outcome struct {
		violations []Violation
		err        error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		vs, err := e.dispatch(ctx, g, rule)
		done <- outcome{violations: vs, err: err}
	}()

	var res Result
	select {
	case out := <-done:
		res = finish(rule, out.violations, out.err)
	case <-ctx.Done():
		res = finish(rule, nil, ctx.Err())
	}
	res.Duration = time.Since(start)

	if !res.Clean() {
		span.SetStatus(codes.Error, res.Err.Error())
	}
	span.SetAttributes(attribute.String("status", string(res.Status)), attribute.Int("violations", len(res.Violations)))
	record(res)
	slog.Debug("rule evaluated",
		"rule", res.Rule,
		"kind", res.Kind,
		"status", res.Status,
		"violations", len(res.Violations),
		"duration", res.Duration)
	return res
}

func finish(rule Rule, violations []Violation, err error) Result {
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || errors.IsCode(err, errors.CodeTimeout) {
			res := newResult(rule, StatusTimeout)
			res.Err = errors.AddContext(errors.Wrap(err, errors.CodeTimeout, "rule evaluation timed out"), errors.CtxRule, rule.Name)
			return res
		}
		if stderrors.Is(err, context.Canceled) {
			res := newResult(rule, StatusTimeout)
			res.Err = errors.AddContext(errors.Wrap(err, errors.CodeTimeout, "rule evaluation cancelled"), errors.CtxRule, rule.Name)
			return res
		}
		return configError(rule, err)
	}
	if len(violations) == 0 {
		return newResult(rule, StatusPass)
	}
	because := strings.TrimSpace(rule.Because)
	for i := range violations {
		violations[i].Rule = rule.Name
		violations[i].Kind = rule.Kind
		if because != "" {
			violations[i].Reason = fmt.Sprintf("%s, because %s", violations[i].Reason, because)
		}
	}
	sortViolations(violations)
	res := newResult(rule, StatusFail)
	res.Violations = violations
	return res
}

func newResult(rule Rule, status Status) Result {
	return Result{
		Rule:     rule.Name,
		Kind:     rule.Kind,
		Severity: rule.SeverityLevel(),
		Because:  rule.Because,
		Status:   status,
	}
}

func configError(rule Rule, err error) Result {
	res := newResult(rule, StatusConfigError)
	if !errors.IsCode(err, errors.CodeConfiguration) && errors.CodeOf(err) != errors.CodeInternal {
		err = errors.Wrap(err, errors.CodeConfiguration, "invalid rule")
	}
	res.Err = errors.AddContext(err, errors.CtxRule, rule.Name)
	return res
}

func record(res Result) {
	kind := string(res.Kind)
	observability.RuleEvaluationsTotal.WithLabelValues(kind, string(res.Status)).Inc()
	if n := len(res.Violations); n > 0 {
		observability.RuleViolationsTotal.WithLabelValues(kind).Add(float64(n))
	}
	if res.Duration > 0 {
		observability.RuleEvaluationDuration.WithLabelValues(kind).Observe(res.Duration.Seconds())
	}
}

// evaluate is the single dispatcher from rule variant to evaluator. Rule
// setup errors come back as configuration errors.
func evaluate(ctx context.Context, g *graph.Graph, rule Rule) ([]Violation, error) {
	if strings.TrimSpace(rule.Name) == "" {
		return nil, errors.New(errors.CodeConfiguration, "rule has an empty name")
	}
	if _, ok := ParseSeverity(rule.Severity); !ok {
		return nil, errors.Newf(errors.CodeConfiguration, "unknown severity %q", rule.Severity)
	}
	include := func(graph.Unit) bool { return true }
	if rule.ExcludeTests {
		include = func(u graph.Unit) bool { return !u.Test }
	}

	switch rule.Kind {
	case KindLayered:
		r, err := compileLayered(ctx, rule.Layered, g, include)
		if err != nil {
			return nil, err
		}
		return r.evaluate(ctx, g, include)
	case KindCycles:
		r, err := compileCycles(rule.Cycles, include)
		if err != nil {
			return nil, err
		}
		return r.evaluate(ctx, g)
	case KindForbidden:
		r, err := compileForbidden(rule.Forbidden)
		if err != nil {
			return nil, err
		}
		return r.evaluate(ctx, g, include)
	case KindAttribute:
		r, err := compileAttribute(rule.Attribute)
		if err != nil {
			return nil, err
		}
		return r.evaluate(ctx, g, include)
	default:
		return nil, errors.Newf(errors.CodeConfiguration, "unknown rule kind %q", rule.Kind)
	}
}

// Validate compiles every rule against an empty graph so configuration
// errors that do not depend on graph contents surface before facts are read.
func Validate(rules []Rule) error {
	empty := graph.Empty()
	problems := make([]string, 0)
	for i, r := range rules {
		if _, err := evaluate(context.Background(), empty, r); err != nil {
			name := r.Name
			if strings.TrimSpace(name) == "" {
				name = fmt.Sprintf("#%d", i)
			}
			problems = append(problems, fmt.Sprintf("%s: %v", name, err))
		}
	}
	for i := range duplicateNames(rules) {
		problems = append(problems, fmt.Sprintf("%s: duplicate rule name", rules[i].Name))
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return errors.Newf(errors.CodeConfiguration, "invalid rules: %s", strings.Join(problems, "; "))
	}
	return nil
}
