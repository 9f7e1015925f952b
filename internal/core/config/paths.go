package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigCandidates are tried in order when no --config flag is given.
var DefaultConfigCandidates = []string{
	"data/config/guardrail.toml",
	"guardrail.toml",
}

type ResolvedPaths struct {
	ProjectRoot string
	ConfigDir   string
	StateDir    string
	DatabaseDir string
	DBPath      string
	OutputRoot  string
	FactFiles   []string
	RuleFiles   []string
}

// ResolvePaths anchors every configured path at the project root, which is
// either configured or detected from cwd.
func ResolvePaths(cfg *Config, cwd string) (ResolvedPaths, error) {
	if strings.TrimSpace(cwd) == "" {
		return ResolvedPaths{}, fmt.Errorf("cwd must not be empty")
	}

	projectRoot := strings.TrimSpace(cfg.Paths.ProjectRoot)
	if projectRoot != "" {
		projectRoot = ResolveRelative(cwd, projectRoot)
	} else {
		root, err := DetectProjectRoot([]string{cwd})
		if err != nil {
			return ResolvedPaths{}, err
		}
		projectRoot = root
	}

	configDir := ResolveRelative(projectRoot, cfg.Paths.ConfigDir)
	databaseDir := ResolveRelative(projectRoot, cfg.Paths.DatabaseDir)

	dbPath := strings.TrimSpace(cfg.DB.Path)
	if filepath.IsAbs(dbPath) {
		dbPath = filepath.Clean(dbPath)
	} else {
		dbPath = filepath.Join(databaseDir, dbPath)
	}

	outputRoot := strings.TrimSpace(cfg.Output.Paths.Root)
	if outputRoot == "" {
		outputRoot = projectRoot
	} else {
		outputRoot = ResolveRelative(projectRoot, outputRoot)
	}

	resolved := ResolvedPaths{
		ProjectRoot: filepath.Clean(projectRoot),
		ConfigDir:   filepath.Clean(configDir),
		StateDir:    ResolveRelative(projectRoot, cfg.Paths.StateDir),
		DatabaseDir: filepath.Clean(databaseDir),
		DBPath:      filepath.Clean(dbPath),
		OutputRoot:  filepath.Clean(outputRoot),
	}
	for _, f := range cfg.Facts.Files {
		resolved.FactFiles = append(resolved.FactFiles, ResolveRelative(projectRoot, f))
	}
	for _, f := range cfg.RuleFiles {
		resolved.RuleFiles = append(resolved.RuleFiles, ResolveRelative(projectRoot, f))
	}
	return resolved, nil
}

// OutputPath resolves a report output path against the output root.
func (p ResolvedPaths) OutputPath(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return ResolveRelative(p.OutputRoot, raw)
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

// DetectProjectRoot walks up from each candidate until it finds a directory
// holding one of the project markers; it falls back to the working directory.
func DetectProjectRoot(candidates []string) (string, error) {
	markers := []string{
		"data/config/guardrail.toml",
		"guardrail.toml",
		".git",
		"go.mod",
	}

	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}

		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		root := abs
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			root = filepath.Dir(abs)
		}

		for {
			for _, marker := range markers {
				if _, err := os.Stat(filepath.Join(root, marker)); err == nil {
					return filepath.Clean(root), nil
				}
			}
			parent := filepath.Dir(root)
			if parent == root {
				break
			}
			root = parent
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Clean(cwd), nil
}
