// Package app wires fact loading, rule evaluation, reporting and history into
// the operations the CLI and MCP adapters drive.
package app

import (
	"io"
	"sync"

	"guardrail/internal/core/config"
	"guardrail/internal/core/ports"
	"guardrail/internal/engine/graph"
	"guardrail/internal/engine/rules"
	"guardrail/internal/ui/report"
)

type App struct {
	mu         sync.RWMutex
	config     *config.Config
	paths      config.ResolvedPaths
	configPath string
	engine     *rules.Engine

	history ports.HistoryStore

	// graph and last belong to the most recent successful check.
	stateMu sync.RWMutex
	graph   *graph.Graph
	last    *report.Report

	watchMu sync.Mutex
	watch   *watchService
}

var _ ports.ArchitectureService = (*App)(nil)

func New(cfg *config.Config, paths config.ResolvedPaths) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	return &App{
		config: cfg,
		paths:  paths,
		engine: newEngine(cfg),
	}, nil
}

func newEngine(cfg *config.Config) *rules.Engine {
	return rules.NewEngine(rules.Options{
		Parallelism: cfg.Engine.Parallelism,
		RuleTimeout: cfg.Engine.RuleTimeout,
	})
}

// SetConfigPath records the file the configuration came from so watch mode
// can reload it.
func (a *App) SetConfigPath(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.configPath = path
}

// AttachHistory enables run persistence for checks that request it.
func (a *App) AttachHistory(store ports.HistoryStore) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = store
}

// Reconfigure swaps in a reloaded configuration for subsequent checks.
func (a *App) Reconfigure(cfg *config.Config, paths config.ResolvedPaths) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.config = cfg
	a.paths = paths
	a.engine = newEngine(cfg)
}

func (a *App) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}

func (a *App) Paths() config.ResolvedPaths {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.paths
}

// Graph returns the graph of the last successful check, or nil.
func (a *App) Graph() *graph.Graph {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	return a.graph
}

// LastReport returns the report of the last successful check, or nil.
func (a *App) LastReport() *report.Report {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	return a.last
}

func (a *App) snapshot() (*config.Config, config.ResolvedPaths, *rules.Engine, ports.HistoryStore) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config, a.paths, a.engine, a.history
}

func (a *App) Close() error {
	a.watchMu.Lock()
	w := a.watch
	a.watch = nil
	a.watchMu.Unlock()
	if w != nil {
		_ = w.Close()
	}

	a.mu.Lock()
	store := a.history
	a.history = nil
	a.mu.Unlock()
	if closer, ok := store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
