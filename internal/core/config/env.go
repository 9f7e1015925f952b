package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: GUARDRAIL_[SECTION]_[KEY] (e.g., GUARDRAIL_ENGINE_PARALLELISM).
func ApplyEnvOverrides(cfg *Config) {
	// Paths
	setEnvString(&cfg.Paths.ProjectRoot, "GUARDRAIL_PATHS_PROJECT_ROOT")
	setEnvString(&cfg.Paths.ConfigDir, "GUARDRAIL_PATHS_CONFIG_DIR")
	setEnvString(&cfg.Paths.StateDir, "GUARDRAIL_PATHS_STATE_DIR")
	setEnvString(&cfg.Paths.DatabaseDir, "GUARDRAIL_PATHS_DATABASE_DIR")

	// Inputs
	setEnvList(&cfg.Facts.Files, "GUARDRAIL_FACTS_FILES")
	setEnvList(&cfg.RuleFiles, "GUARDRAIL_RULE_FILES")

	// Engine
	setEnvInt(&cfg.Engine.Parallelism, "GUARDRAIL_ENGINE_PARALLELISM")
	setEnvDuration(&cfg.Engine.RuleTimeout, "GUARDRAIL_ENGINE_RULE_TIMEOUT")
	setEnvBool(&cfg.Engine.FailOnWarn, "GUARDRAIL_ENGINE_FAIL_ON_WARN")

	// Output
	setEnvString(&cfg.Output.Format, "GUARDRAIL_OUTPUT_FORMAT")

	// Database
	setEnvBool(&cfg.DB.Enabled, "GUARDRAIL_DB_ENABLED")
	setEnvString(&cfg.DB.Path, "GUARDRAIL_DB_PATH")
	setEnvDuration(&cfg.DB.BusyTimeout, "GUARDRAIL_DB_BUSY_TIMEOUT")
	setEnvString(&cfg.DB.Project, "GUARDRAIL_DB_PROJECT")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "GUARDRAIL_WATCH_DEBOUNCE")
	setEnvInt(&cfg.Watch.MaxRunsPerMinute, "GUARDRAIL_WATCH_MAX_RUNS_PER_MINUTE")

	// MCP
	setEnvString(&cfg.MCP.ServerName, "GUARDRAIL_MCP_SERVER_NAME")
	setEnvInt(&cfg.MCP.MaxResponseItems, "GUARDRAIL_MCP_MAX_RESPONSE_ITEMS")
	setEnvDuration(&cfg.MCP.RequestTimeout, "GUARDRAIL_MCP_REQUEST_TIMEOUT")

	// Observability
	setEnvBool(&cfg.Observability.Enabled, "GUARDRAIL_OBSERVABILITY_ENABLED")
	setEnvInt(&cfg.Observability.Port, "GUARDRAIL_OBSERVABILITY_PORT")
	setEnvString(&cfg.Observability.OTLPEndpoint, "GUARDRAIL_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvBool(&cfg.Observability.EnableTracing, "GUARDRAIL_OBSERVABILITY_ENABLE_TRACING")
	setEnvBool(&cfg.Observability.EnableMetrics, "GUARDRAIL_OBSERVABILITY_ENABLE_METRICS")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

// setEnvList splits on the OS path list separator.
func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		parts := strings.Split(val, string(os.PathListSeparator))
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*target = out
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
