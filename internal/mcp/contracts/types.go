package contracts

import "time"

const ContractVersion = "v1"

const (
	ToolCheck   = "check_architecture"
	ToolTrace   = "trace_dependency"
	ToolImpact  = "impact"
	ToolMetrics = "metrics"
	ToolHistory = "history"
)

type CheckInput struct {
	FactFiles []string `json:"fact_files,omitempty"`
	RuleFiles []string `json:"rule_files,omitempty"`
	Format    string   `json:"format,omitempty"`
	// WriteOutputs also writes the configured output files.
	WriteOutputs bool `json:"write_outputs,omitempty"`
}

type RuleSummary struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Severity   string `json:"severity"`
	Status     string `json:"status"`
	Violations int    `json:"violations"`
	Error      string `json:"error,omitempty"`
}

type ViolationItem struct {
	Rule    string `json:"rule"`
	Subject string `json:"subject"`
	Target  string `json:"target,omitempty"`
	Reason  string `json:"reason"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

type CheckOutput struct {
	Passed          bool            `json:"passed"`
	ExitCode        int             `json:"exit_code"`
	Units           int             `json:"units"`
	Edges           int             `json:"edges"`
	TotalViolations int             `json:"total_violations"`
	Rules           []RuleSummary   `json:"rules"`
	Violations      []ViolationItem `json:"violations,omitempty"`
	Truncated       bool            `json:"truncated,omitempty"`
	Rendered        string          `json:"rendered,omitempty"`
	Written         []string        `json:"written,omitempty"`
}

type TraceInput struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type TraceHop struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Kind []string `json:"kind,omitempty"`
	File string   `json:"file,omitempty"`
	Line int      `json:"line,omitempty"`
}

type TraceOutput struct {
	From  string     `json:"from"`
	To    string     `json:"to"`
	Found bool       `json:"found"`
	Path  []string   `json:"path,omitempty"`
	Hops  []TraceHop `json:"hops,omitempty"`
}

type ImpactInput struct {
	Unit  string `json:"unit"`
	Limit int    `json:"limit,omitempty"`
}

type ImpactOutput struct {
	Unit                 string   `json:"unit"`
	DirectDependents     []string `json:"direct_dependents"`
	TransitiveDependents []string `json:"transitive_dependents"`
	TransitiveCount      int      `json:"transitive_count"`
	Truncated            bool     `json:"truncated,omitempty"`
}

type MetricsInput struct {
	Limit int `json:"limit,omitempty"`
}

type UnitMetric struct {
	Unit   string `json:"unit"`
	FanIn  int    `json:"fan_in"`
	FanOut int    `json:"fan_out"`
	Depth  int    `json:"depth"`
}

type MetricsOutput struct {
	Units []UnitMetric `json:"units"`
}

type HistoryInput struct {
	Since string `json:"since,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

type HistoryPoint struct {
	RunID           string    `json:"run_id"`
	Timestamp       time.Time `json:"timestamp"`
	Passed          bool      `json:"passed"`
	Violations      int       `json:"violations"`
	DeltaViolations int       `json:"delta_violations"`
	NewlyFailing    []string  `json:"newly_failing,omitempty"`
	Fixed           []string  `json:"fixed,omitempty"`
}

type HistoryOutput struct {
	ProjectKey string         `json:"project_key"`
	RunCount   int            `json:"run_count"`
	Points     []HistoryPoint `json:"points"`
}

// ToolError is returned to clients as the text of an error result.
type ToolError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e ToolError) Error() string {
	return e.Message
}

const (
	ErrorInvalidArgument = "invalid_argument"
	ErrorNotFound        = "not_found"
	ErrorConfiguration   = "configuration"
	ErrorInternal        = "internal"
	ErrorUnavailable     = "unavailable"
)
