// Package report aggregates rule results into one Report value. It renders
// nothing and writes nowhere; see the formats subpackage for that.
package report

import (
	"time"

	"github.com/google/uuid"

	"guardrail/internal/engine/graph"
	"guardrail/internal/engine/rules"
	"guardrail/internal/shared/version"
)

// Process exit codes.
const (
	ExitPass        = 0
	ExitViolations  = 1
	ExitConfigError = 2
	ExitUsage       = 3
)

type GraphSummary struct {
	Units int `json:"units"`
	Edges int `json:"edges"`
	// UnitCycles counts unit-level dependency cycles regardless of rules.
	UnitCycles int `json:"unit_cycles"`
}

type RuleReport struct {
	Name       string            `json:"name"`
	Kind       rules.Kind        `json:"kind"`
	Severity   rules.Severity    `json:"severity"`
	Because    string            `json:"because,omitempty"`
	Status     rules.Status      `json:"status"`
	Passed     bool              `json:"passed"`
	Error      string            `json:"error,omitempty"`
	Violations []rules.Violation `json:"violations"`
}

type Summary struct {
	Rules        int `json:"rules"`
	Passed       int `json:"passed"`
	Failed       int `json:"failed"`
	Warnings     int `json:"warnings"`
	ConfigErrors int `json:"config_errors"`
	Timeouts     int `json:"timeouts"`
}

// Report is the aggregated outcome of one run. RunID and GeneratedAt are
// excluded from the serialized form so repeated runs render identically.
type Report struct {
	RunID       string        `json:"-"`
	GeneratedAt time.Time     `json:"-"`
	Duration    time.Duration `json:"-"`

	Tool            string       `json:"tool"`
	Version         string       `json:"version"`
	Passed          bool         `json:"passed"`
	TotalViolations int          `json:"total_violations"`
	Graph           GraphSummary `json:"graph"`
	Summary         Summary      `json:"summary"`
	Rules           []RuleReport `json:"rules"`
}

type Options struct {
	// FailOnWarn makes warn-severity violations fail the run.
	FailOnWarn bool
}

// Build aggregates results, which are expected in rule-name order as
// returned by the engine.
func Build(results []rules.Result, g *graph.Graph, opts Options) *Report {
	r := &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Tool:        "guardrail",
		Version:     version.Version,
		Passed:      true,
		Graph:       GraphSummary{Units: g.UnitCount(), Edges: g.EdgeCount(), UnitCycles: len(g.DetectCycles())},
		Rules:       make([]RuleReport, 0, len(results)),
	}
	for _, res := range results {
		rr := RuleReport{
			Name:       res.Rule,
			Kind:       res.Kind,
			Severity:   res.Severity,
			Because:    res.Because,
			Status:     res.Status,
			Passed:     res.Status == rules.StatusPass,
			Violations: append([]rules.Violation{}, res.Violations...),
		}
		if res.Err != nil {
			rr.Error = res.Err.Error()
		}
		r.Rules = append(r.Rules, rr)
		r.TotalViolations += len(res.Violations)

		r.Summary.Rules++
		switch res.Status {
		case rules.StatusPass:
			r.Summary.Passed++
		case rules.StatusFail:
			if res.Severity == rules.SeverityWarn && !opts.FailOnWarn {
				r.Summary.Warnings++
				continue
			}
			r.Summary.Failed++
			r.Passed = false
		case rules.StatusConfigError:
			r.Summary.ConfigErrors++
			r.Passed = false
		case rules.StatusTimeout:
			r.Summary.Timeouts++
			r.Passed = false
		}
	}
	return r
}

// ExitCode maps the report to the process exit code. A rule that did not
// complete cleanly outranks violations.
func (r *Report) ExitCode() int {
	switch {
	case r.Summary.ConfigErrors > 0 || r.Summary.Timeouts > 0:
		return ExitConfigError
	case r.Summary.Failed > 0:
		return ExitViolations
	default:
		return ExitPass
	}
}

// Violations returns every violation in report order.
func (r *Report) Violations() []rules.Violation {
	out := make([]rules.Violation, 0, r.TotalViolations)
	for _, rr := range r.Rules {
		out = append(out, rr.Violations...)
	}
	return out
}

// Rule returns the named rule's entry.
func (r *Report) Rule(name string) (RuleReport, bool) {
	for _, rr := range r.Rules {
		if rr.Name == name {
			return rr, true
		}
	}
	return RuleReport{}, false
}
