package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"guardrail/internal/core/errors"
	"guardrail/internal/engine/rules"
	"guardrail/internal/shared/version"
)

// Load reads, defaults, overrides from the environment and validates a
// configuration file. All failures carry CodeConfiguration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeConfiguration, "read config"), errors.CtxPath, path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	return cfg, nil
}

// Parse is Load without the file system.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConfiguration, "parse config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, errors.Newf(errors.CodeConfiguration, "unknown config keys: %s", strings.Join(keys, ", "))
	}

	applyDefaults(&cfg)
	ApplyEnvOverrides(&cfg)
	normalize(&cfg)

	if errs := Validate(&cfg); len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		return nil, errors.Newf(errors.CodeConfiguration, "invalid config: %s", strings.Join(msgs, "; "))
	}
	warnInvalidRules(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	ApplyEnvOverrides(&cfg)
	normalize(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Paths.ConfigDir) == "" {
		cfg.Paths.ConfigDir = "data/config"
	}
	if strings.TrimSpace(cfg.Paths.StateDir) == "" {
		cfg.Paths.StateDir = "data/state"
	}
	if strings.TrimSpace(cfg.Paths.DatabaseDir) == "" {
		cfg.Paths.DatabaseDir = "data/database"
	}

	if cfg.Engine.Parallelism == 0 {
		cfg.Engine.Parallelism = 4
	}
	if cfg.Engine.RuleTimeout == 0 {
		cfg.Engine.RuleTimeout = 30 * time.Second
	}

	if strings.TrimSpace(cfg.Output.Format) == "" {
		cfg.Output.Format = "text"
	}
	if cfg.Output.MermaidDepth == 0 {
		cfg.Output.MermaidDepth = 1
	}

	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = "history.db"
	}
	if cfg.DB.BusyTimeout <= 0 {
		cfg.DB.BusyTimeout = 5 * time.Second
	}
	if strings.TrimSpace(cfg.DB.Project) == "" {
		cfg.DB.Project = "default"
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.MaxRunsPerMinute == 0 {
		cfg.Watch.MaxRunsPerMinute = 30
	}

	if strings.TrimSpace(cfg.MCP.ServerName) == "" {
		cfg.MCP.ServerName = "guardrail"
	}
	if strings.TrimSpace(cfg.MCP.ServerVersion) == "" {
		cfg.MCP.ServerVersion = version.Version
	}
	if strings.TrimSpace(cfg.MCP.Transport) == "" {
		cfg.MCP.Transport = "stdio"
	}
	if cfg.MCP.MaxResponseItems == 0 {
		cfg.MCP.MaxResponseItems = 200
	}
	if cfg.MCP.RequestTimeout <= 0 {
		cfg.MCP.RequestTimeout = 30 * time.Second
	}

	if cfg.Observability.Port == 0 {
		cfg.Observability.Port = 9464
	}
	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "guardrail"
	}
}

func normalize(cfg *Config) {
	cfg.Output.Format = strings.ToLower(strings.TrimSpace(cfg.Output.Format))
	cfg.MCP.Transport = strings.ToLower(strings.TrimSpace(cfg.MCP.Transport))
	for i := range cfg.Facts.Files {
		cfg.Facts.Files[i] = strings.TrimSpace(cfg.Facts.Files[i])
	}
	for i := range cfg.RuleFiles {
		cfg.RuleFiles[i] = strings.TrimSpace(cfg.RuleFiles[i])
	}
	for i := range cfg.Rules {
		cfg.Rules[i].Name = strings.TrimSpace(cfg.Rules[i].Name)
		cfg.Rules[i].Kind = rules.Kind(strings.ToLower(strings.TrimSpace(string(cfg.Rules[i].Kind))))
	}
}
