package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"guardrail/internal/core/config"
	"guardrail/internal/core/ports"
	"guardrail/internal/core/watcher"
	"guardrail/internal/shared/util"
)

type watchService struct {
	app *App

	mu       sync.Mutex
	handlers []func(ports.WatchUpdate)
	active   *watcher.Watcher
	ctx      context.Context
}

// WatchService returns the app's single watch service.
func (a *App) WatchService() ports.WatchService {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()
	if a.watch == nil {
		a.watch = &watchService{app: a}
	}
	return a.watch
}

func (s *watchService) Subscribe(handler func(ports.WatchUpdate)) {
	if handler == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
}

// Start runs one check, then re-runs it whenever a fact, rule or config file
// changes, until ctx is done.
func (s *watchService) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if err := s.watchInputs(); err != nil {
		return err
	}
	s.runCheck(ctx, nil)

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	return nil
}

func (s *watchService) watchInputs() error {
	cfg, paths, _, _ := s.app.snapshot()
	s.app.mu.RLock()
	configPath := s.app.configPath
	s.app.mu.RUnlock()

	targets := make([]string, 0, len(paths.FactFiles)+len(paths.RuleFiles)+1)
	targets = append(targets, paths.FactFiles...)
	targets = append(targets, paths.RuleFiles...)
	if configPath != "" {
		targets = append(targets, configPath)
	}

	w, err := watcher.NewWatcher(cfg.Watch.Debounce, nil, nil, s.handleChanges)
	if err != nil {
		return err
	}
	if cfg.Watch.MaxRunsPerMinute > 0 {
		w.SetLimiter(util.NewLimiter(float64(cfg.Watch.MaxRunsPerMinute)/60, 1))
	}
	if err := w.Watch(targets); err != nil {
		_ = w.Close()
		return err
	}

	s.mu.Lock()
	previous := s.active
	s.active = w
	s.mu.Unlock()
	if previous != nil {
		_ = previous.Close()
	}
	slog.Info("watching inputs", "files", len(targets))
	return nil
}

func (s *watchService) handleChanges(changed []string) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	s.app.mu.RLock()
	configPath := s.app.configPath
	s.app.mu.RUnlock()
	if configPath != "" && containsPath(changed, configPath) {
		if err := s.reloadConfig(configPath); err != nil {
			slog.Error("config reload failed", "path", configPath, "error", err)
			s.emit(ports.WatchUpdate{Changed: changed, Err: err})
			return
		}
		if err := s.watchInputs(); err != nil {
			slog.Error("failed to rewatch inputs", "error", err)
		}
	}
	s.runCheck(ctx, changed)
}

func (s *watchService) reloadConfig(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	paths, err := config.ResolvePaths(cfg, cwd)
	if err != nil {
		return err
	}
	s.app.Reconfigure(cfg, paths)
	slog.Info("config reloaded", "path", path, "rules", len(cfg.Rules))
	return nil
}

func (s *watchService) runCheck(ctx context.Context, changed []string) {
	cfg := s.app.Config()
	res, err := s.app.Check(ctx, ports.CheckRequest{
		WriteOutputs:  true,
		RecordHistory: cfg.DB.Enabled,
	})
	if err != nil {
		slog.Error("watch check failed", "error", err)
	}
	s.emit(ports.WatchUpdate{Changed: changed, Report: res.Report, Err: err})
}

func (s *watchService) emit(update ports.WatchUpdate) {
	s.mu.Lock()
	handlers := append([]func(ports.WatchUpdate){}, s.handlers...)
	s.mu.Unlock()
	for _, h := range handlers {
		h(update)
	}
}

func (s *watchService) Close() error {
	s.mu.Lock()
	w := s.active
	s.active = nil
	s.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Close()
}

func containsPath(paths []string, target string) bool {
	want, err := filepath.Abs(target)
	if err != nil {
		want = target
	}
	for _, p := range paths {
		if filepath.Clean(p) == filepath.Clean(want) {
			return true
		}
	}
	return false
}
