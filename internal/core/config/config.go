package config

import (
	"time"

	"guardrail/internal/engine/rules"
)

type Config struct {
	Version       int           `toml:"version"`
	Paths         Paths         `toml:"paths"`
	Facts         Facts         `toml:"facts"`
	RuleFiles     []string      `toml:"rule_files"`
	Rules         []rules.Rule  `toml:"rules"`
	Engine        Engine        `toml:"engine"`
	Output        Output        `toml:"output"`
	DB            Database      `toml:"db"`
	Watch         Watch         `toml:"watch"`
	MCP           MCP           `toml:"mcp"`
	Observability Observability `toml:"observability"`
}

type Paths struct {
	ProjectRoot string `toml:"project_root"`
	ConfigDir   string `toml:"config_dir"`
	StateDir    string `toml:"state_dir"`
	DatabaseDir string `toml:"database_dir"`
}

// Facts lists the analyzer output files. Relative paths resolve against the
// project root.
type Facts struct {
	Files []string `toml:"files"`
}

type Engine struct {
	Parallelism int           `toml:"parallelism"`
	RuleTimeout time.Duration `toml:"rule_timeout"`
	// FailOnWarn turns warn-severity violations into failures.
	FailOnWarn bool `toml:"fail_on_warn"`
}

type Output struct {
	// Format is what the check prints to stdout: text, json, markdown, sarif or tsv.
	Format   string `toml:"format"`
	JSON     string `toml:"json"`
	Markdown string `toml:"markdown"`
	SARIF    string `toml:"sarif"`
	Text     string `toml:"text"`
	TSV      string `toml:"tsv"`
	Mermaid  string `toml:"mermaid"`
	PlantUML string `toml:"plantuml"`

	// MermaidDepth is the package depth both diagrams condense units to.
	MermaidDepth int         `toml:"mermaid_depth"`
	Paths        OutputPaths `toml:"paths"`
}

type OutputPaths struct {
	Root string `toml:"root"`
}

type Database struct {
	Enabled     bool          `toml:"enabled"`
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
	// Project namespaces run history when one database serves several repos.
	Project string `toml:"project"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
	// MaxRunsPerMinute throttles re-evaluation under bursts of changes.
	MaxRunsPerMinute int `toml:"max_runs_per_minute"`
}

type MCP struct {
	ServerName       string        `toml:"server_name"`
	ServerVersion    string        `toml:"server_version"`
	Transport        string        `toml:"transport"`
	MaxResponseItems int           `toml:"max_response_items"`
	RequestTimeout   time.Duration `toml:"request_timeout"`
}

type Observability struct {
	Enabled       bool   `toml:"enabled"`
	Port          int    `toml:"port"`
	OTLPEndpoint  string `toml:"otlp_endpoint"`
	EnableTracing bool   `toml:"enable_tracing"`
	EnableMetrics bool   `toml:"enable_metrics"`
	ServiceName   string `toml:"service_name"`
}
