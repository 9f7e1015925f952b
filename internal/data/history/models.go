package history

import "time"

const SchemaVersion = 1

// RuleOutcome is the stored summary of one rule in a run.
type RuleOutcome struct {
	Rule       string `json:"rule"`
	Kind       string `json:"kind"`
	Severity   string `json:"severity"`
	Status     string `json:"status"`
	Violations int    `json:"violations"`
}

// Run is the persisted summary of one check. Violation details are not
// stored; the rendered report is the place for those.
type Run struct {
	RunID         string        `json:"run_id"`
	ProjectKey    string        `json:"project_key"`
	SchemaVersion int           `json:"schema_version"`
	Timestamp     time.Time     `json:"timestamp"`
	Duration      time.Duration `json:"duration"`
	Passed        bool          `json:"passed"`
	ExitCode      int           `json:"exit_code"`
	Units         int           `json:"units"`
	Edges         int           `json:"edges"`
	Rules         int           `json:"rules"`
	Violations    int           `json:"violations"`
	Failed        int           `json:"failed"`
	Warnings      int           `json:"warnings"`
	ConfigErrors  int           `json:"config_errors"`
	Timeouts      int           `json:"timeouts"`
	Outcomes      []RuleOutcome `json:"outcomes,omitempty"`
}

type TrendPoint struct {
	RunID           string    `json:"run_id"`
	Timestamp       time.Time `json:"timestamp"`
	Passed          bool      `json:"passed"`
	Violations      int       `json:"violations"`
	DeltaViolations int       `json:"delta_violations"`
	DeltaUnits      int       `json:"delta_units"`
	DeltaEdges      int       `json:"delta_edges"`
	// NewlyFailing lists rules that passed in the previous run.
	NewlyFailing []string `json:"newly_failing,omitempty"`
	// Fixed lists rules that failed in the previous run and pass now.
	Fixed []string `json:"fixed,omitempty"`
}

type TrendReport struct {
	ProjectKey string       `json:"project_key"`
	Since      time.Time    `json:"since"`
	Until      time.Time    `json:"until"`
	RunCount   int          `json:"run_count"`
	Points     []TrendPoint `json:"points"`
}
