package runtime

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"guardrail/internal/core/config"
	"guardrail/internal/core/errors"
	"guardrail/internal/core/ports"
	"guardrail/internal/mcp/contracts"
	"guardrail/internal/mcp/tools/check"
	"guardrail/internal/mcp/tools/graph"
	"guardrail/internal/mcp/tools/history"
	"guardrail/internal/mcp/validate"
)

type Dependencies struct {
	Service ports.ArchitectureService
	Logger  *slog.Logger
}

type Server struct {
	cfg    config.MCP
	deps   Dependencies
	server *server.MCPServer
}

func New(cfg *config.Config, deps Dependencies) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Service == nil {
		return nil, fmt.Errorf("architecture service dependency is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.MCP.Transport != "" && cfg.MCP.Transport != "stdio" {
		return nil, fmt.Errorf("unsupported mcp transport %q", cfg.MCP.Transport)
	}

	s := &Server{cfg: cfg.MCP, deps: deps}
	s.server = server.NewMCPServer(
		cfg.MCP.ServerName,
		cfg.MCP.ServerVersion,
		server.WithToolCapabilities(false),
	)
	for _, tool := range Tools() {
		s.server.AddTool(tool, s.toolHandler(tool.Name))
	}
	return s, nil
}

// Tools describes every tool the server exposes.
func Tools() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool(contracts.ToolCheck,
			mcp.WithDescription("Evaluate the architecture rules against the dependency facts and report violations"),
			mcp.WithArray("fact_files",
				mcp.Description("Fact files to load instead of the configured ones"),
				mcp.Items(map[string]any{"type": "string"}),
			),
			mcp.WithArray("rule_files",
				mcp.Description("Rule files to load instead of the configured ones"),
				mcp.Items(map[string]any{"type": "string"}),
			),
			mcp.WithString("format",
				mcp.Description("Also return the report rendered as text, json, markdown, sarif or tsv"),
				mcp.Enum("text", "json", "markdown", "sarif", "tsv"),
			),
			mcp.WithBoolean("write_outputs",
				mcp.Description("Write the configured output files (default: false)"),
			),
		),
		mcp.NewTool(contracts.ToolTrace,
			mcp.WithDescription("Find the shortest dependency chain from one unit to another"),
			mcp.WithString("from",
				mcp.Required(),
				mcp.Description("Fully qualified name of the depending unit"),
			),
			mcp.WithString("to",
				mcp.Required(),
				mcp.Description("Fully qualified name of the unit depended upon"),
			),
		),
		mcp.NewTool(contracts.ToolImpact,
			mcp.WithDescription("List the units that depend on a unit, directly and transitively"),
			mcp.WithString("unit",
				mcp.Required(),
				mcp.Description("Fully qualified unit name"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum dependents to return"),
			),
		),
		mcp.NewTool(contracts.ToolMetrics,
			mcp.WithDescription("Report fan-in, fan-out and depth for the most depended-upon units"),
			mcp.WithNumber("limit",
				mcp.Description("Maximum units to return"),
			),
		),
		mcp.NewTool(contracts.ToolHistory,
			mcp.WithDescription("Show violation trends across recorded check runs"),
			mcp.WithString("since",
				mcp.Description("RFC3339 timestamp, YYYY-MM-DD date or a duration such as 168h"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum runs to include"),
			),
		),
	}
}

// Run serves the tools over stdio until the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.deps.Logger.Info("mcp server starting", "name", s.cfg.ServerName, "transport", "stdio")
	stdio := server.NewStdioServer(s.server)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) MCPServer() *server.MCPServer {
	return s.server
}

func (s *Server) toolHandler(tool string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out, err := s.HandleToolCall(ctx, tool, request.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(encodeToolError(toToolError(err))), nil
		}
		data, err := json.MarshalIndent(wrapToolResult(tool, out), "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

// HandleToolCall validates the arguments and dispatches one call under the
// configured request timeout.
func (s *Server) HandleToolCall(ctx context.Context, tool string, raw map[string]any) (any, error) {
	input, err := validate.ParseToolArgs(tool, raw)
	if err != nil {
		return nil, err
	}
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	out, err := s.dispatch(ctx, tool, input)
	if err != nil {
		s.deps.Logger.Warn("mcp tool failed", "tool", tool, "error", err)
		return nil, err
	}
	s.deps.Logger.Debug("mcp tool completed", "tool", tool, "duration", time.Since(start))
	return out, nil
}

func (s *Server) dispatch(ctx context.Context, tool string, input any) (any, error) {
	maxItems := s.cfg.MaxResponseItems
	svc := s.deps.Service
	switch tool {
	case contracts.ToolCheck:
		return check.HandleCheck(ctx, svc, input.(contracts.CheckInput), maxItems)
	case contracts.ToolTrace:
		return graph.HandleTrace(ctx, svc, input.(contracts.TraceInput))
	case contracts.ToolImpact:
		return graph.HandleImpact(ctx, svc, input.(contracts.ImpactInput), maxItems)
	case contracts.ToolMetrics:
		return graph.HandleMetrics(ctx, svc, input.(contracts.MetricsInput), maxItems)
	case contracts.ToolHistory:
		return history.HandleTrends(ctx, svc, input.(contracts.HistoryInput), maxItems)
	default:
		return nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: fmt.Sprintf("unsupported tool: %s", tool)}
	}
}

func wrapToolResult(tool string, payload any) any {
	return map[string]any{
		"version": contracts.ContractVersion,
		"tool":    tool,
		"result":  payload,
	}
}

func toToolError(err error) contracts.ToolError {
	var toolErr contracts.ToolError
	if stderrors.As(err, &toolErr) {
		return toolErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) || errors.IsCode(err, errors.CodeTimeout) {
		return contracts.ToolError{Code: contracts.ErrorUnavailable, Message: "request timed out"}
	}

	msg := err.Error()
	code := contracts.ErrorInternal
	switch errors.CodeOf(err) {
	case errors.CodeNotFound:
		code = contracts.ErrorNotFound
	case errors.CodeValidation:
		code = contracts.ErrorInvalidArgument
	case errors.CodeConfiguration:
		code = contracts.ErrorConfiguration
	default:
		if strings.Contains(strings.ToLower(msg), "not found") {
			code = contracts.ErrorNotFound
		}
	}
	return contracts.ToolError{Code: code, Message: msg}
}

func encodeToolError(e contracts.ToolError) string {
	data, err := json.Marshal(e)
	if err != nil {
		return e.Message
	}
	return string(data)
}
