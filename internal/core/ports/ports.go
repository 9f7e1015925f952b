package ports

import (
	"context"
	"time"

	"guardrail/internal/data/history"
	"guardrail/internal/engine/graph"
	"guardrail/internal/ui/report"
)

// HistoryStore abstracts run persistence for trend reporting. It is bound to
// one project.
type HistoryStore interface {
	SaveRun(ctx context.Context, run history.Run) error
	LoadRuns(ctx context.Context, since time.Time, limit int) ([]history.Run, error)
}

// CheckRequest overrides the configured inputs for one check. Empty fields
// fall back to the configuration.
type CheckRequest struct {
	FactFiles []string
	RuleFiles []string
	// Format selects the rendered form returned in CheckResult.Rendered.
	Format string
	// WriteOutputs writes every configured output file.
	WriteOutputs bool
	// RecordHistory saves the run summary when a history store is attached.
	RecordHistory bool
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Report   *report.Report
	Graph    *graph.Graph
	Rendered []byte
	Written  []string
}

// TraceResult is the shortest dependency chain between two units.
type TraceResult struct {
	From  string       `json:"from"`
	To    string       `json:"to"`
	Found bool         `json:"found"`
	Path  []string     `json:"path,omitempty"`
	Edges []graph.Edge `json:"edges,omitempty"`
}

// WatchUpdate is emitted after every re-evaluation in watch mode.
type WatchUpdate struct {
	Changed []string
	Report  *report.Report
	Err     error
}

// WatchService exposes the watch lifecycle for driving adapters.
type WatchService interface {
	Start(ctx context.Context) error
	Subscribe(handler func(WatchUpdate))
	Close() error
}

// ArchitectureService is the driving-port surface used by the CLI and the
// MCP server.
type ArchitectureService interface {
	Check(ctx context.Context, req CheckRequest) (CheckResult, error)
	Trace(ctx context.Context, from, to string) (TraceResult, error)
	Impact(ctx context.Context, unit string) (graph.ImpactReport, error)
	Metrics(ctx context.Context, limit int) ([]graph.UnitMetrics, error)
	History(ctx context.Context, since time.Time, limit int) (history.TrendReport, error)
	WatchService() WatchService
}
