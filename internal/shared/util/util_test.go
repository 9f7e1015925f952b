package util

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestNormalizePatternPath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Empty", input: "", expected: ""},
		{name: "Dot", input: ".", expected: ""},
		{name: "Trim", input: "  ./foo/bar  ", expected: "foo/bar"},
		{name: "Relative", input: "foo/../bar", expected: "bar"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizePatternPath(tc.input); got != tc.expected {
				t.Fatalf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestHasPathPrefix(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		path     string
		prefix   string
		expected bool
	}{
		{name: "Exact", path: "foo/bar", prefix: "foo/bar", expected: true},
		{name: "Nested", path: "foo/bar/baz", prefix: "foo/bar", expected: true},
		{name: "Neighbor", path: "foo/barista", prefix: "foo/bar", expected: false},
		{name: "Shorter", path: "foo", prefix: "foo/bar", expected: false},
		{name: "MixedSeparators", path: `foo\bar\baz`, prefix: "foo/bar", expected: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := HasPathPrefix(tc.path, tc.prefix); got != tc.expected {
				t.Fatalf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestSplitPackage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input    string
		expected []string
	}{
		{input: "", expected: nil},
		{input: "com.acme.web", expected: []string{"com", "acme", "web"}},
		{input: "src/domain/model", expected: []string{"src", "domain", "model"}},
		{input: "..odd..path.", expected: []string{"odd", "path"}},
	}
	for _, tc := range cases {
		if got := SplitPackage(tc.input); !reflect.DeepEqual(got, tc.expected) {
			t.Fatalf("SplitPackage(%q) = %v, want %v", tc.input, got, tc.expected)
		}
	}
}

func TestQualifiedNameParts(t *testing.T) {
	t.Parallel()

	if got := PackageOf("com.acme.web.Controller"); got != "com.acme.web" {
		t.Fatalf("unexpected package %q", got)
	}
	if got := PackageOf("Root"); got != "" {
		t.Fatalf("expected empty package, got %q", got)
	}
	if got := SimpleName("com.acme.web.Controller"); got != "Controller" {
		t.Fatalf("unexpected simple name %q", got)
	}
}

func TestSortedUnique(t *testing.T) {
	t.Parallel()

	got := SortedUnique([]string{"b", " a", "", "b", "c"})
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected result %v", got)
	}
}

func TestWriteFileWithDirs(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "nested", "out", "report.txt")
	if err := WriteFileWithDirs(target, []byte("ok"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "ok" {
		t.Fatalf("unexpected content %q", string(data))
	}
}
