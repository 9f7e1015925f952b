package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"guardrail/internal/core/config"
	"guardrail/internal/core/errors"
	"guardrail/internal/core/ports"
	"guardrail/internal/data/history"
	"guardrail/internal/ui/report"
)

const factsJSONL = `{"unit":{"name":"app.controller.OrderController","tags":["Controller"]}}
{"unit":{"name":"app.service.OrderService","tags":["Service"]}}
{"unit":{"name":"app.repository.OrderRepository"}}
{"depends_on":{"source":"app.controller.OrderController","target":"app.service.OrderService","kind":"field"}}
{"depends_on":{"source":"app.controller.OrderController","target":"app.repository.OrderRepository","kind":"call","file":"src/OrderController.java","line":42}}
{"depends_on":{"source":"app.service.OrderService","target":"app.repository.OrderRepository","kind":"field"}}
`

const rulesTOML = `
[[rules]]
name = "layers"
kind = "layered"
because = "controllers go through services"

[rules.layered]
allow = { controller = ["service"], service = ["repository"] }

[[rules.layered.layers]]
name = "controller"
match = { package = ["..controller.."] }

[[rules.layered.layers]]
name = "service"
match = { package = ["..service.."] }

[[rules.layered.layers]]
name = "repository"
match = { package = ["..repository.."] }
`

type fixture struct {
	root  string
	facts string
	rules string
	app   *App
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	factsPath := filepath.Join(root, "facts.jsonl")
	rulesPath := filepath.Join(root, "rules.toml")
	if err := os.WriteFile(factsPath, []byte(factsJSONL), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(rulesPath, []byte(rulesTOML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Paths.ProjectRoot = root
	cfg.Facts.Files = []string{"facts.jsonl"}
	cfg.RuleFiles = []string{"rules.toml"}
	cfg.Output.JSON = "out/report.json"
	cfg.Output.SARIF = "out/report.sarif"
	cfg.Output.Mermaid = "out/slices.mmd"
	cfg.Output.PlantUML = "out/slices.puml"
	paths, err := config.ResolvePaths(cfg, root)
	if err != nil {
		t.Fatalf("ResolvePaths failed: %v", err)
	}
	a, err := New(cfg, paths)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return fixture{root: root, facts: factsPath, rules: rulesPath, app: a}
}

func TestCheck_ReportsLayerViolation(t *testing.T) {
	f := newFixture(t)
	res, err := f.app.Check(context.Background(), ports.CheckRequest{Format: "text"})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	rep := res.Report
	if rep.Passed || rep.ExitCode() != report.ExitViolations {
		t.Fatalf("expected failing report, got exit %d", rep.ExitCode())
	}
	if rep.TotalViolations != 1 {
		t.Fatalf("expected 1 violation, got %d", rep.TotalViolations)
	}
	v := rep.Violations()[0]
	if v.Subject != "app.controller.OrderController" || v.Target != "app.repository.OrderRepository" {
		t.Fatalf("unexpected violation %+v", v)
	}
	if !strings.Contains(v.Reason, "because controllers go through services") {
		t.Fatalf("reason lacks because text: %q", v.Reason)
	}
	if !strings.Contains(string(res.Rendered), "[FAIL] layers") {
		t.Fatalf("unexpected rendered output:\n%s", res.Rendered)
	}
	if f.app.Graph() == nil || f.app.LastReport() != rep {
		t.Fatal("expected graph and report to be retained")
	}
}

func TestCheck_WritesConfiguredOutputs(t *testing.T) {
	f := newFixture(t)
	res, err := f.app.Check(context.Background(), ports.CheckRequest{WriteOutputs: true})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if len(res.Written) != 4 {
		t.Fatalf("expected 4 written outputs, got %v", res.Written)
	}
	for _, rel := range []string{"out/report.json", "out/report.sarif", "out/slices.mmd", "out/slices.puml"} {
		if _, err := os.Stat(filepath.Join(f.root, rel)); err != nil {
			t.Fatalf("expected %s to exist: %v", rel, err)
		}
	}
}

func TestCheck_DanglingFactsFailFast(t *testing.T) {
	f := newFixture(t)
	if err := os.WriteFile(f.facts, []byte(`{"depends_on":{"source":"a.A","target":"b.B"}}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := f.app.Check(context.Background(), ports.CheckRequest{})
	if !errors.IsCode(err, errors.CodeConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCheck_RequestOverridesInputs(t *testing.T) {
	f := newFixture(t)
	empty := filepath.Join(f.root, "empty.toml")
	if err := os.WriteFile(empty, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := f.app.Check(context.Background(), ports.CheckRequest{RuleFiles: []string{empty}})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !res.Report.Passed || res.Report.Summary.Rules != 0 {
		t.Fatalf("expected no rules to pass, got %+v", res.Report.Summary)
	}
}

func TestTraceImpactMetrics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tr, err := f.app.Trace(ctx, "app.controller.OrderController", "app.repository.OrderRepository")
	if err != nil {
		t.Fatalf("Trace failed: %v", err)
	}
	if !tr.Found || len(tr.Path) != 2 || len(tr.Edges) != 1 || tr.Edges[0].Location.Line != 42 {
		t.Fatalf("unexpected trace %+v", tr)
	}

	back, err := f.app.Trace(ctx, "app.repository.OrderRepository", "app.controller.OrderController")
	if err != nil || back.Found {
		t.Fatalf("expected no reverse path, got %+v, %v", back, err)
	}

	if _, err := f.app.Trace(ctx, "missing.Unit", "app.service.OrderService"); !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	impact, err := f.app.Impact(ctx, "app.repository.OrderRepository")
	if err != nil {
		t.Fatalf("Impact failed: %v", err)
	}
	if len(impact.DirectDependents) != 2 {
		t.Fatalf("unexpected impact %+v", impact)
	}

	metrics, err := f.app.Metrics(ctx, 1)
	if err != nil {
		t.Fatalf("Metrics failed: %v", err)
	}
	if len(metrics) != 1 || metrics[0].Name != "app.repository.OrderRepository" || metrics[0].FanIn != 2 {
		t.Fatalf("unexpected metrics %+v", metrics)
	}
}

func TestCheck_RecordsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.app.History(ctx, time.Time{}, 0); !errors.IsCode(err, errors.CodeConfiguration) {
		t.Fatalf("expected history to be disabled, got %v", err)
	}

	store, err := history.Open(filepath.Join(f.root, "history.db"), 0)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	f.app.AttachHistory(history.NewAdapter(store, "demo"))

	for i := 0; i < 2; i++ {
		if _, err := f.app.Check(ctx, ports.CheckRequest{RecordHistory: true}); err != nil {
			t.Fatalf("Check failed: %v", err)
		}
	}
	trend, err := f.app.History(ctx, time.Time{}, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if trend.RunCount != 2 || trend.ProjectKey != "demo" || trend.Points[1].DeltaViolations != 0 {
		t.Fatalf("unexpected trend %+v", trend)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	if h := f.app.Health(); h.Status != "degraded" {
		t.Fatalf("expected degraded before first check, got %+v", h)
	}
	if _, err := f.app.Check(context.Background(), ports.CheckRequest{}); err != nil {
		t.Fatal(err)
	}
	if h := f.app.Health(); h.Status != "up" || !strings.Contains(h.Components["graph"], "3 units") {
		t.Fatalf("unexpected health %+v", h)
	}
}

func TestWatchService_RerunsOnRuleChange(t *testing.T) {
	f := newFixture(t)
	cfg := f.app.Config()
	cfg.Watch.Debounce = 50 * time.Millisecond
	cfg.Watch.MaxRunsPerMinute = 0

	var (
		mu      sync.Mutex
		updates []ports.WatchUpdate
	)
	got := make(chan struct{}, 8)
	svc := f.app.WatchService()
	svc.Subscribe(func(u ports.WatchUpdate) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
		got <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-got // initial run

	if err := os.WriteFile(f.rules, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-got:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for re-evaluation")
	}

	mu.Lock()
	defer mu.Unlock()
	if updates[0].Report == nil || updates[0].Report.Passed {
		t.Fatalf("expected failing initial report, got %+v", updates[0])
	}
	last := updates[len(updates)-1]
	if last.Err != nil || last.Report == nil || !last.Report.Passed || len(last.Changed) == 0 {
		t.Fatalf("expected passing report after rules were cleared, got %+v", last)
	}
}

func TestCheck_BrokenInlineRuleIsConfinedToThatRule(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "facts.jsonl"), []byte(factsJSONL), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Parse([]byte(`
version = 1

[facts]
files = ["facts.jsonl"]

[[rules]]
name = "broken"
kind = "nope"

[[rules]]
name = "no-controller-to-repository"
kind = "forbidden"

[rules.forbidden]
from = { package = ["..controller.."] }
to = { package = ["..repository.."] }
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	cfg.Paths.ProjectRoot = root
	paths, err := config.ResolvePaths(cfg, root)
	if err != nil {
		t.Fatalf("ResolvePaths failed: %v", err)
	}
	a, err := New(cfg, paths)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	res, err := a.Check(context.Background(), ports.CheckRequest{})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	rep := res.Report
	if rep.ExitCode() != report.ExitConfigError {
		t.Fatalf("expected exit %d, got %d", report.ExitConfigError, rep.ExitCode())
	}
	broken, ok := rep.Rule("broken")
	if !ok || broken.Status != "config_error" || !strings.Contains(broken.Error, "unknown rule kind") {
		t.Fatalf("unexpected broken rule report %+v", broken)
	}
	good, ok := rep.Rule("no-controller-to-repository")
	if !ok || good.Status != "fail" || len(good.Violations) != 1 {
		t.Fatalf("sibling rule should still be evaluated, got %+v", good)
	}
}
