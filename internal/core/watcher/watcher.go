// Package watcher reports debounced changes to fact, rule and config files.
package watcher

import (
	"crypto/sha256"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"guardrail/internal/shared/observability"
	"guardrail/internal/shared/util"
)

// DefaultExtensions are the input formats a check reads.
var DefaultExtensions = []string{".jsonl", ".ndjson", ".json", ".toml", ".yaml", ".yml"}

type Watcher struct {
	fsWatcher    *fsnotify.Watcher
	debounce     time.Duration
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
	extFilters   map[string]bool
	limiter      *util.Limiter
	onChange     func([]string)
	callbackMu   sync.Mutex

	// roots are watched recursively; files are single watched paths whose
	// parent directory is watched so editor rename-and-replace is seen.
	stateMu sync.RWMutex
	roots   []string
	files   map[string]bool
	hashes  map[string][sha256.Size]byte

	pending   map[string]time.Time
	pendingMu sync.Mutex
	timer     *time.Timer
	closed    bool
}

func NewWatcher(debounce time.Duration, excludeDirs, excludeFiles []string, onChange func([]string)) (*Watcher, error) {
	if onChange == nil {
		return nil, os.ErrInvalid
	}

	compiledDirs, err := compileAll(excludeDirs)
	if err != nil {
		return nil, err
	}
	compiledFiles, err := compileAll(excludeFiles)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher:    fsw,
		debounce:     debounce,
		excludeDirs:  compiledDirs,
		excludeFiles: compiledFiles,
		onChange:     onChange,
		files:        make(map[string]bool),
		hashes:       make(map[string][sha256.Size]byte),
		pending:      make(map[string]time.Time),
	}
	w.SetExtensions(DefaultExtensions)
	return w, nil
}

func compileAll(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// SetExtensions limits files under recursively watched directories to the
// given extensions. Explicitly watched files always pass.
func (w *Watcher) SetExtensions(extensions []string) {
	filter := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		filter[normalized] = true
	}
	w.stateMu.Lock()
	w.extFilters = filter
	w.stateMu.Unlock()
}

// SetLimiter throttles change callbacks. Throttled changes stay pending and
// are retried after the next debounce interval.
func (w *Watcher) SetLimiter(l *util.Limiter) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.limiter = l
}

func (w *Watcher) SetDebounce(debounce time.Duration) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.debounce = debounce
}

// Watch registers files and directories and starts the event loop.
func (w *Watcher) Watch(paths []string) error {
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return err
		}
		if info.IsDir() {
			w.stateMu.Lock()
			w.roots = append(w.roots, abs)
			w.stateMu.Unlock()
			if err := w.watchRecursive(abs, true); err != nil {
				return err
			}
			continue
		}
		if err := w.fsWatcher.Add(filepath.Dir(abs)); err != nil {
			return err
		}
		w.stateMu.Lock()
		w.files[abs] = true
		w.stateMu.Unlock()
		w.rememberHash(abs)
	}

	go w.run()
	return nil
}

// watchRecursive adds root and its subdirectories. With remember set, the
// files already present become the baseline for content comparison.
func (w *Watcher) watchRecursive(root string, remember bool) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != root && w.shouldExcludeDir(path) {
				return filepath.SkipDir
			}
			return w.fsWatcher.Add(path)
		}
		if remember && !w.shouldExcludeFile(path) {
			w.rememberHash(path)
		}
		return nil
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()

			if event.Op&fsnotify.Create == fsnotify.Create {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					if w.underRoot(event.Name) && !w.shouldExcludeDir(event.Name) {
						if err := w.watchRecursive(event.Name, false); err != nil {
							slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
						} else {
							w.enqueueExistingFiles(event.Name)
						}
					}
					continue
				}
			}

			if w.shouldExcludeFile(event.Name) {
				continue
			}

			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create ||
				event.Op&fsnotify.Remove == fsnotify.Remove ||
				event.Op&fsnotify.Rename == fsnotify.Rename {
				w.scheduleChange(event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = time.Now()
	w.resetTimerLocked()
}

func (w *Watcher) resetTimerLocked() {
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flushChanges)
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	if !w.limiter.Allow(1) {
		slog.Debug("watch re-run throttled", "pending", len(w.pending))
		w.resetTimerLocked()
		w.pendingMu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]time.Time)
	w.pendingMu.Unlock()

	changed := make([]string, 0, len(paths))
	for _, path := range paths {
		if w.contentChanged(path) {
			changed = append(changed, path)
		}
	}
	if len(changed) == 0 {
		return
	}
	sort.Strings(changed)

	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	w.onChange(changed)
}

// contentChanged compares the file against its last seen digest. Writes that
// leave the bytes unchanged do not count; removals always do.
func (w *Watcher) contentChanged(path string) bool {
	data, err := os.ReadFile(path)
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	if err != nil {
		delete(w.hashes, path)
		return true
	}
	sum := sha256.Sum256(data)
	if prev, ok := w.hashes[path]; ok && prev == sum {
		return false
	}
	w.hashes[path] = sum
	return true
}

func (w *Watcher) rememberHash(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	w.stateMu.Lock()
	w.hashes[path] = sha256.Sum256(data)
	w.stateMu.Unlock()
}

func (w *Watcher) underRoot(path string) bool {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	for _, root := range w.roots {
		if util.HasPathPrefix(filepath.ToSlash(path), filepath.ToSlash(root)) {
			return true
		}
	}
	return false
}

func (w *Watcher) shouldExcludeDir(path string) bool {
	base := filepath.Base(path)
	for _, g := range w.excludeDirs {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (w *Watcher) shouldExcludeFile(path string) bool {
	w.stateMu.RLock()
	explicit := w.files[path]
	filters := w.extFilters
	w.stateMu.RUnlock()
	if explicit {
		return false
	}
	if !w.underRoot(path) {
		return true
	}

	base := strings.ToLower(filepath.Base(path))
	if len(filters) > 0 && !filters[strings.ToLower(filepath.Ext(base))] {
		return true
	}
	for _, g := range w.excludeFiles {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	return w.fsWatcher.Close()
}

func (w *Watcher) enqueueExistingFiles(root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		if w.shouldExcludeFile(path) {
			return nil
		}
		w.scheduleChange(path)
		return nil
	})
}
