package runtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardrail/internal/core/config"
	"guardrail/internal/core/errors"
	"guardrail/internal/core/ports"
	"guardrail/internal/data/history"
	"guardrail/internal/engine/graph"
	"guardrail/internal/engine/rules"
	"guardrail/internal/mcp/contracts"
	"guardrail/internal/ui/report"
)

type fakeService struct {
	lastCheck ports.CheckRequest
	metrics   func(ctx context.Context, limit int) ([]graph.UnitMetrics, error)
}

func (f *fakeService) Check(_ context.Context, req ports.CheckRequest) (ports.CheckResult, error) {
	f.lastCheck = req
	results := []rules.Result{
		{Rule: "layers", Kind: rules.KindLayered, Severity: rules.SeverityError, Status: rules.StatusFail, Violations: []rules.Violation{
			{Rule: "layers", Subject: "app.web.A", Target: "app.store.Repo", Reason: "web may not access store", Location: graph.Location{File: "src/A.java", Line: 3}},
			{Rule: "layers", Subject: "app.web.B", Target: "app.store.Repo", Reason: "web may not access store"},
		}},
		{Rule: "no-cycles", Kind: rules.KindCycles, Severity: rules.SeverityError, Status: rules.StatusPass},
	}
	rep := report.Build(results, graph.Empty(), report.Options{})
	return ports.CheckResult{Report: rep, Rendered: []byte("rendered")}, nil
}

func (f *fakeService) Trace(_ context.Context, from, to string) (ports.TraceResult, error) {
	if from == "missing" {
		return ports.TraceResult{}, errors.AddContext(errors.New(errors.CodeNotFound, "unit not found"), errors.CtxUnit, from)
	}
	return ports.TraceResult{
		From: from, To: to, Found: true, Path: []string{from, to},
		Edges: []graph.Edge{{From: from, To: to, Kinds: []graph.RelationKind{"import"}, Location: graph.Location{File: "x.go", Line: 7}}},
	}, nil
}

func (f *fakeService) Impact(_ context.Context, unit string) (graph.ImpactReport, error) {
	return graph.ImpactReport{Target: unit, DirectDependents: []string{"b"}, TransitiveDependents: []string{"b", "c", "d"}}, nil
}

func (f *fakeService) Metrics(ctx context.Context, limit int) ([]graph.UnitMetrics, error) {
	if f.metrics != nil {
		return f.metrics(ctx, limit)
	}
	return []graph.UnitMetrics{{Name: "a", FanIn: 3, FanOut: 1, Depth: 2}}, nil
}

func (f *fakeService) History(context.Context, time.Time, int) (history.TrendReport, error) {
	return history.TrendReport{}, errors.New(errors.CodeConfiguration, "run history is not enabled")
}

func (f *fakeService) WatchService() ports.WatchService { return nil }

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.MCP.MaxResponseItems = 1
	cfg.MCP.RequestTimeout = time.Second
	return cfg
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, Dependencies{Service: &fakeService{}})
	require.Error(t, err)

	_, err = New(testConfig(), Dependencies{})
	require.Error(t, err)

	cfg := testConfig()
	cfg.MCP.Transport = "sse"
	_, err = New(cfg, Dependencies{Service: &fakeService{}})
	require.Error(t, err)
}

func TestTools_Names(t *testing.T) {
	names := make([]string, 0)
	for _, tool := range Tools() {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{
		contracts.ToolCheck, contracts.ToolTrace, contracts.ToolImpact, contracts.ToolMetrics, contracts.ToolHistory,
	}, names)
}

func TestHandleToolCall_CheckTruncatesViolations(t *testing.T) {
	svc := &fakeService{}
	s, err := New(testConfig(), Dependencies{Service: svc})
	require.NoError(t, err)

	out, err := s.HandleToolCall(context.Background(), contracts.ToolCheck, map[string]any{
		"format":     "JSON",
		"fact_files": []any{"facts.jsonl", " facts.jsonl ", ""},
	})
	require.NoError(t, err)

	res, ok := out.(contracts.CheckOutput)
	require.True(t, ok)
	assert.False(t, res.Passed)
	assert.Equal(t, report.ExitViolations, res.ExitCode)
	assert.Equal(t, 2, res.TotalViolations)
	require.Len(t, res.Violations, 1)
	assert.True(t, res.Truncated)
	assert.Equal(t, "src/A.java", res.Violations[0].File)
	require.Len(t, res.Rules, 2)
	assert.Equal(t, "fail", res.Rules[0].Status)
	assert.Equal(t, "rendered", res.Rendered)

	assert.Equal(t, []string{"facts.jsonl"}, svc.lastCheck.FactFiles)
	assert.Equal(t, "json", svc.lastCheck.Format)
}

func TestHandleToolCall_RejectsBadArguments(t *testing.T) {
	s, err := New(testConfig(), Dependencies{Service: &fakeService{}})
	require.NoError(t, err)

	_, err = s.HandleToolCall(context.Background(), contracts.ToolTrace, map[string]any{"from": "a"})
	require.Error(t, err)
	assert.Equal(t, contracts.ErrorInvalidArgument, toToolError(err).Code)

	_, err = s.HandleToolCall(context.Background(), contracts.ToolCheck, map[string]any{"format": "html"})
	require.Error(t, err)

	_, err = s.HandleToolCall(context.Background(), "scan", nil)
	require.Error(t, err)
}

func TestHandleToolCall_ImpactClampsToMaxItems(t *testing.T) {
	s, err := New(testConfig(), Dependencies{Service: &fakeService{}})
	require.NoError(t, err)

	out, err := s.HandleToolCall(context.Background(), contracts.ToolImpact, map[string]any{"unit": "a", "limit": 10})
	require.NoError(t, err)
	res := out.(contracts.ImpactOutput)
	assert.Equal(t, 3, res.TransitiveCount)
	assert.Equal(t, []string{"b"}, res.TransitiveDependents)
	assert.True(t, res.Truncated)
}

func TestToolHandler_WrapsResult(t *testing.T) {
	s, err := New(testConfig(), Dependencies{Service: &fakeService{}})
	require.NoError(t, err)

	var req mcp.CallToolRequest
	req.Params.Name = contracts.ToolTrace
	req.Params.Arguments = map[string]any{"from": "a", "to": "b"}

	res, err := s.toolHandler(contracts.ToolTrace)(context.Background(), req)
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)

	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	var payload struct {
		Version string                `json:"version"`
		Tool    string                `json:"tool"`
		Result  contracts.TraceOutput `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &payload))
	assert.Equal(t, contracts.ContractVersion, payload.Version)
	assert.True(t, payload.Result.Found)
	require.Len(t, payload.Result.Hops, 1)
	assert.Equal(t, []string{"import"}, payload.Result.Hops[0].Kind)
	assert.Equal(t, 7, payload.Result.Hops[0].Line)
}

func TestToolHandler_ErrorResults(t *testing.T) {
	s, err := New(testConfig(), Dependencies{Service: &fakeService{}})
	require.NoError(t, err)

	cases := []struct {
		tool string
		args map[string]any
		code string
	}{
		{contracts.ToolTrace, map[string]any{"from": "missing", "to": "b"}, contracts.ErrorNotFound},
		{contracts.ToolHistory, map[string]any{}, contracts.ErrorConfiguration},
		{contracts.ToolHistory, map[string]any{"since": "yesterday"}, contracts.ErrorInvalidArgument},
	}
	for _, tc := range cases {
		var req mcp.CallToolRequest
		req.Params.Name = tc.tool
		req.Params.Arguments = tc.args

		res, err := s.toolHandler(tc.tool)(context.Background(), req)
		require.NoError(t, err)
		require.True(t, res.IsError, tc.tool)

		text := res.Content[0].(mcp.TextContent)
		var toolErr contracts.ToolError
		require.NoError(t, json.Unmarshal([]byte(text.Text), &toolErr))
		assert.Equal(t, tc.code, toolErr.Code, tc.tool)
	}
}

func TestHandleToolCall_RequestTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.MCP.RequestTimeout = 20 * time.Millisecond
	svc := &fakeService{metrics: func(ctx context.Context, _ int) ([]graph.UnitMetrics, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	s, err := New(cfg, Dependencies{Service: svc})
	require.NoError(t, err)

	_, err = s.HandleToolCall(context.Background(), contracts.ToolMetrics, nil)
	require.Error(t, err)
	assert.Equal(t, contracts.ErrorUnavailable, toToolError(err).Code)
}
