package report

import (
	"testing"

	"guardrail/internal/core/errors"
	"guardrail/internal/engine/graph"
	"guardrail/internal/engine/rules"
)

func violation(rule, subject string) rules.Violation {
	return rules.Violation{Rule: rule, Kind: rules.KindForbidden, Subject: subject, Reason: "x"}
}

func TestBuild_Statuses(t *testing.T) {
	results := []rules.Result{
		{Rule: "a", Kind: rules.KindCycles, Severity: rules.SeverityError, Status: rules.StatusPass},
		{Rule: "b", Kind: rules.KindForbidden, Severity: rules.SeverityWarn, Status: rules.StatusFail, Violations: []rules.Violation{violation("b", "x.Y")}},
	}
	r := Build(results, graph.Empty(), Options{})
	if !r.Passed || r.ExitCode() != ExitPass {
		t.Fatalf("warn-only violations must not fail the run: %+v", r.Summary)
	}
	if r.TotalViolations != 1 || r.Summary.Warnings != 1 {
		t.Fatalf("unexpected summary %+v", r.Summary)
	}
	if rr, ok := r.Rule("b"); !ok || rr.Passed {
		t.Fatalf("rule b must report passed=false, got %+v", rr)
	}

	r = Build(results, graph.Empty(), Options{FailOnWarn: true})
	if r.Passed || r.ExitCode() != ExitViolations {
		t.Fatalf("fail_on_warn should fail the run, got exit %d", r.ExitCode())
	}
}

func TestBuild_ConfigErrorOutranksViolations(t *testing.T) {
	results := []rules.Result{
		{Rule: "a", Severity: rules.SeverityError, Status: rules.StatusFail, Violations: []rules.Violation{violation("a", "x.Y")}},
		{Rule: "b", Severity: rules.SeverityError, Status: rules.StatusConfigError, Err: errors.New(errors.CodeConfiguration, "layer matches no units")},
	}
	r := Build(results, graph.Empty(), Options{})
	if r.ExitCode() != ExitConfigError {
		t.Fatalf("expected exit %d, got %d", ExitConfigError, r.ExitCode())
	}
	if rr, _ := r.Rule("b"); rr.Error == "" {
		t.Fatal("expected error text for config_error rule")
	}

	timeout := []rules.Result{{Rule: "t", Status: rules.StatusTimeout, Err: errors.New(errors.CodeTimeout, "timed out")}}
	if code := Build(timeout, graph.Empty(), Options{}).ExitCode(); code != ExitConfigError {
		t.Fatalf("expected timeout to map to %d, got %d", ExitConfigError, code)
	}
}

func TestBuild_EmptyIsPass(t *testing.T) {
	r := Build(nil, graph.Empty(), Options{})
	if !r.Passed || r.ExitCode() != ExitPass || len(r.Violations()) != 0 {
		t.Fatalf("expected pass, got %+v", r)
	}
	if r.RunID == "" {
		t.Fatal("expected run id")
	}
}
