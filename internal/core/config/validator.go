package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"guardrail/internal/engine/rules"
)

var outputFormats = map[string]bool{"text": true, "json": true, "markdown": true, "sarif": true, "tsv": true}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateEngine(cfg *Config) error {
	if cfg.Engine.Parallelism < 1 {
		return fmt.Errorf("engine.parallelism must be >= 1, got %d", cfg.Engine.Parallelism)
	}
	if cfg.Engine.RuleTimeout < 0 {
		return fmt.Errorf("engine.rule_timeout must not be negative")
	}
	return nil
}

func validateFacts(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Facts.Files))
	for i, f := range cfg.Facts.Files {
		if f == "" {
			return fmt.Errorf("facts.files[%d] must not be empty", i)
		}
		clean := filepath.Clean(f)
		if seen[clean] {
			return fmt.Errorf("duplicate facts file %q", f)
		}
		seen[clean] = true
	}
	return nil
}

func validateRuleFiles(cfg *Config) error {
	for i, f := range cfg.RuleFiles {
		switch strings.ToLower(filepath.Ext(f)) {
		case ".toml", ".yaml", ".yml":
		default:
			return fmt.Errorf("rule_files[%d] %q must end in .toml, .yaml or .yml", i, f)
		}
	}
	return nil
}

// warnInvalidRules logs setup problems in the inline rules. They do not fail
// the config: the engine reports each broken rule as config_error and still
// evaluates its siblings.
func warnInvalidRules(cfg *Config) {
	if len(cfg.Rules) == 0 {
		return
	}
	if err := rules.Validate(cfg.Rules); err != nil {
		slog.Warn("inline rules have configuration errors", "error", err)
	}
}

func validateOutput(cfg *Config) error {
	if !outputFormats[cfg.Output.Format] {
		return fmt.Errorf("output.format must be one of: text, json, markdown, sarif, tsv; got %q", cfg.Output.Format)
	}

	outputs := make(map[string]string)
	checkConflict := func(path, name string) error {
		if strings.TrimSpace(path) == "" {
			return nil
		}
		path = filepath.Clean(path)
		if owner, exists := outputs[path]; exists {
			return fmt.Errorf("output conflict: %s and %s share the same path %q", owner, name, path)
		}
		outputs[path] = name
		return nil
	}
	if err := checkConflict(cfg.Output.Text, "output.text"); err != nil {
		return err
	}
	if err := checkConflict(cfg.Output.JSON, "output.json"); err != nil {
		return err
	}
	if err := checkConflict(cfg.Output.Markdown, "output.markdown"); err != nil {
		return err
	}
	if err := checkConflict(cfg.Output.SARIF, "output.sarif"); err != nil {
		return err
	}
	if err := checkConflict(cfg.Output.TSV, "output.tsv"); err != nil {
		return err
	}
	if err := checkConflict(cfg.Output.Mermaid, "output.mermaid"); err != nil {
		return err
	}
	if err := checkConflict(cfg.Output.PlantUML, "output.plantuml"); err != nil {
		return err
	}
	if cfg.Output.MermaidDepth < 1 {
		return fmt.Errorf("output.mermaid_depth must be >= 1, got %d", cfg.Output.MermaidDepth)
	}
	return nil
}

func validateDatabase(cfg *Config) error {
	if strings.TrimSpace(cfg.DB.Path) == "" {
		return fmt.Errorf("db.path must not be empty")
	}
	if strings.TrimSpace(cfg.DB.Project) == "" {
		return fmt.Errorf("db.project must not be empty")
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	if cfg.Watch.MaxRunsPerMinute < 0 {
		return fmt.Errorf("watch.max_runs_per_minute must not be negative")
	}
	return nil
}

func validateMCP(cfg *Config) error {
	if cfg.MCP.Transport != "stdio" {
		return fmt.Errorf("mcp.transport must be stdio, got %q", cfg.MCP.Transport)
	}
	if strings.TrimSpace(cfg.MCP.ServerName) == "" {
		return fmt.Errorf("mcp.server_name must not be empty")
	}
	if cfg.MCP.MaxResponseItems < 1 {
		return fmt.Errorf("mcp.max_response_items must be >= 1")
	}
	return nil
}

func validateObservability(cfg *Config) error {
	if cfg.Observability.Port < 1 || cfg.Observability.Port > 65535 {
		return fmt.Errorf("observability.port must be between 1 and 65535, got %d", cfg.Observability.Port)
	}
	if cfg.Observability.EnableTracing && strings.TrimSpace(cfg.Observability.OTLPEndpoint) == "" {
		return fmt.Errorf("observability.otlp_endpoint is required when observability.enable_tracing is true")
	}
	return nil
}

// Validate runs every check and returns all problems found.
func Validate(cfg *Config) []error {
	var errs []error
	checks := []func(*Config) error{
		validateVersion,
		validateEngine,
		validateFacts,
		validateRuleFiles,
		validateOutput,
		validateDatabase,
		validateWatch,
		validateMCP,
		validateObservability,
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
