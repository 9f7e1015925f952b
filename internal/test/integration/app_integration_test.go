package integration

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardrail/internal/core/app"
	"guardrail/internal/core/config"
	"guardrail/internal/core/ports"
	"guardrail/internal/data/history"
	"guardrail/internal/mcp/contracts"
	mcpruntime "guardrail/internal/mcp/runtime"
	"guardrail/internal/ui/report"
)

func repoRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", ".."))
}

// newExampleApp loads the shipped example configuration with outputs and the
// history database redirected into a temp dir.
func newExampleApp(t *testing.T, parallelism int) (*app.App, string) {
	t.Helper()
	root := repoRoot(t)
	cfg, err := config.Load(filepath.Join(root, "data", "config", "guardrail.toml"))
	require.NoError(t, err)

	out := t.TempDir()
	cfg.Paths.ProjectRoot = root
	cfg.Output.Paths.Root = out
	cfg.Engine.Parallelism = parallelism
	cfg.DB.Path = filepath.Join(out, "history.db")

	paths, err := config.ResolvePaths(cfg, root)
	require.NoError(t, err)
	a, err := app.New(cfg, paths)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, out
}

func TestFullPipelineIntegration(t *testing.T) {
	a, out := newExampleApp(t, 4)
	ctx := context.Background()

	res, err := a.Check(ctx, ports.CheckRequest{WriteOutputs: true})
	require.NoError(t, err)
	rep := res.Report

	assert.False(t, rep.Passed)
	assert.Equal(t, report.ExitViolations, rep.ExitCode())
	assert.Equal(t, 8, rep.Graph.Units)
	assert.Equal(t, 5, rep.Summary.Rules)
	assert.Equal(t, 4, rep.TotalViolations)

	layers, ok := rep.Rule("layers")
	require.True(t, ok)
	require.Len(t, layers.Violations, 2)
	assert.Equal(t, "shop.persistence.AuditLog", layers.Violations[0].Subject)
	assert.Equal(t, "shop.web.CheckoutController", layers.Violations[1].Subject)
	assert.Equal(t, 41, layers.Violations[1].Location.Line)

	leaf, ok := rep.Rule("persistence-is-leaf")
	require.True(t, ok)
	assert.Len(t, leaf.Violations, 1)
	assert.Equal(t, 1, rep.Summary.Warnings)

	cycles, ok := rep.Rule("no-slice-cycles")
	require.True(t, ok)
	require.Len(t, cycles.Violations, 1)
	assert.Equal(t, []string{"domain", "persistence"}, cycles.Violations[0].Slices)

	for _, name := range []string{"controllers-are-tagged", "repositories-live-in-persistence"} {
		rr, ok := rep.Rule(name)
		require.True(t, ok, name)
		assert.True(t, rr.Passed, name)
	}

	require.Len(t, res.Written, 6)
	for _, rel := range []string{"data/reports/guardrail.json", "data/reports/guardrail.md", "data/reports/guardrail.sarif", "data/reports/violations.tsv", "data/reports/slices.mmd", "data/reports/slices.puml"} {
		_, err := os.Stat(filepath.Join(out, rel))
		assert.NoError(t, err, rel)
	}
}

func TestReportIsDeterministicAcrossParallelism(t *testing.T) {
	ctx := context.Background()
	var rendered [][]byte
	for _, p := range []int{1, 8, 1} {
		a, _ := newExampleApp(t, p)
		res, err := a.Check(ctx, ports.CheckRequest{Format: "json"})
		require.NoError(t, err)
		rendered = append(rendered, res.Rendered)
	}
	assert.Equal(t, string(rendered[0]), string(rendered[1]))
	assert.Equal(t, string(rendered[0]), string(rendered[2]))
}

func TestHistoryTrendAcrossRuns(t *testing.T) {
	a, _ := newExampleApp(t, 2)
	ctx := context.Background()

	store, err := history.Open(a.Paths().DBPath, 0)
	require.NoError(t, err)
	a.AttachHistory(history.NewAdapter(store, "example-shop"))

	for i := 0; i < 3; i++ {
		_, err := a.Check(ctx, ports.CheckRequest{RecordHistory: true})
		require.NoError(t, err)
	}

	trend, err := a.History(ctx, a.LastReport().GeneratedAt.AddDate(0, 0, -1), 0)
	require.NoError(t, err)
	assert.Equal(t, "example-shop", trend.ProjectKey)
	assert.Equal(t, 3, trend.RunCount)
	for _, p := range trend.Points {
		assert.Equal(t, 4, p.Violations)
		assert.Zero(t, p.DeltaViolations)
	}
}

func TestMCPToolsOverApp(t *testing.T) {
	a, _ := newExampleApp(t, 4)
	ctx := context.Background()

	server, err := mcpruntime.New(a.Config(), mcpruntime.Dependencies{Service: a})
	require.NoError(t, err)

	out, err := server.HandleToolCall(ctx, contracts.ToolCheck, map[string]any{"format": "sarif"})
	require.NoError(t, err)
	check := out.(contracts.CheckOutput)
	assert.Equal(t, 4, check.TotalViolations)
	assert.Contains(t, check.Rendered, `"version": "2.1.0"`)

	out, err = server.HandleToolCall(ctx, contracts.ToolTrace, map[string]any{
		"from": "shop.web.CartController",
		"to":   "shop.persistence.AuditLog",
	})
	require.NoError(t, err)
	trace := out.(contracts.TraceOutput)
	require.True(t, trace.Found)
	assert.Equal(t, []string{
		"shop.web.CartController",
		"shop.domain.CartService",
		"shop.persistence.CartRepository",
		"shop.persistence.AuditLog",
	}, trace.Path)

	_, err = server.HandleToolCall(ctx, contracts.ToolImpact, map[string]any{"unit": "shop.nowhere.Ghost"})
	require.Error(t, err)
}
