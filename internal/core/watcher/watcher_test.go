package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"guardrail/internal/shared/util"
)

func waitFor(t *testing.T, ch <-chan []string, want string, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case paths := <-ch:
			for _, p := range paths {
				if p == want {
					return
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for change to %s", want)
		}
	}
}

func expectQuiet(t *testing.T, ch <-chan []string, d time.Duration) {
	t.Helper()
	select {
	case paths := <-ch:
		t.Fatalf("unexpected change event: %v", paths)
	case <-time.After(d):
	}
}

func absTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.Abs(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestNewWatcher_RejectsNilCallback(t *testing.T) {
	w, err := NewWatcher(100*time.Millisecond, nil, nil, nil)
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when callback is invalid")
	}
}

func TestWatcher_DirectoryFiltersAndNestedDirs(t *testing.T) {
	tmpDir := absTempDir(t)
	changed := make(chan []string, 8)
	w, err := NewWatcher(50*time.Millisecond, []string{"exclude_dir"}, []string{"*.bak.toml"}, func(paths []string) {
		changed <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	facts := filepath.Join(tmpDir, "facts.jsonl")
	if err := os.WriteFile(facts, []byte(`{"unit":{"name":"a.A"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, facts, 2*time.Second)

	if err := os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "rules.bak.toml"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	expectQuiet(t, changed, 300*time.Millisecond)

	subdir := filepath.Join(tmpDir, "nested")
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(subdir, "more.yaml")
	if err := os.WriteFile(nested, []byte("units: []"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, nested, 2*time.Second)
}

func TestWatcher_ExplicitFileIgnoresSiblings(t *testing.T) {
	tmpDir := absTempDir(t)
	rules := filepath.Join(tmpDir, "rules.toml")
	if err := os.WriteFile(rules, []byte("# v1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	changed := make(chan []string, 8)
	w, err := NewWatcher(50*time.Millisecond, nil, nil, func(paths []string) {
		changed <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch([]string{rules}); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(tmpDir, "other.toml"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	expectQuiet(t, changed, 300*time.Millisecond)

	if err := os.WriteFile(rules, []byte("# v2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, rules, 2*time.Second)
}

func TestWatcher_IdenticalContentIsIgnored(t *testing.T) {
	tmpDir := absTempDir(t)
	target := filepath.Join(tmpDir, "facts.jsonl")
	content := []byte(`{"unit":{"name":"a.A"}}` + "\n")
	if err := os.WriteFile(target, content, 0o644); err != nil {
		t.Fatal(err)
	}

	changed := make(chan []string, 8)
	w, err := NewWatcher(50*time.Millisecond, nil, nil, func(paths []string) {
		changed <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(target, content, 0o644); err != nil {
		t.Fatal(err)
	}
	expectQuiet(t, changed, 300*time.Millisecond)

	if err := os.WriteFile(target, append(content, []byte(`{"unit":{"name":"b.B"}}`+"\n")...), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, target, 2*time.Second)
}

func TestWatcher_RenameTriggersChange(t *testing.T) {
	tmpDir := absTempDir(t)
	changed := make(chan []string, 8)
	w, err := NewWatcher(100*time.Millisecond, nil, nil, func(paths []string) {
		changed <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	oldPath := filepath.Join(tmpDir, "old.yaml")
	newPath := filepath.Join(tmpDir, "new.yaml")
	if err := os.WriteFile(oldPath, []byte("units: []"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, newPath, 2*time.Second)
}

func TestWatcher_LimiterDefersChanges(t *testing.T) {
	tmpDir := absTempDir(t)
	changed := make(chan []string, 8)
	w, err := NewWatcher(20*time.Millisecond, nil, nil, func(paths []string) {
		changed <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	// One token, refilled five times a second.
	w.SetLimiter(util.NewLimiter(5, 1))
	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	first := filepath.Join(tmpDir, "a.json")
	second := filepath.Join(tmpDir, "b.json")
	if err := os.WriteFile(first, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, first, 2*time.Second)
	if err := os.WriteFile(second, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	// The second change is delayed by the limiter, not dropped.
	waitFor(t, changed, second, 2*time.Second)
}

func TestWatcher_ShouldExcludeFile(t *testing.T) {
	w, err := NewWatcher(10*time.Millisecond, nil, []string{"*.tmp.json"}, func([]string) {})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	root := absTempDir(t)
	w.roots = []string{root}
	w.SetExtensions([]string{"jsonl"})

	if !w.shouldExcludeFile(filepath.Join(root, "facts.yaml")) {
		t.Fatal("expected .yaml to be excluded when only .jsonl is enabled")
	}
	if w.shouldExcludeFile(filepath.Join(root, "facts.jsonl")) {
		t.Fatal("expected .jsonl to pass")
	}
	if !w.shouldExcludeFile(filepath.Join(filepath.Dir(root), "elsewhere.jsonl")) {
		t.Fatal("expected files outside watched roots to be excluded")
	}
}
