// Package facts feeds analyzer output into a graph.Builder. Facts arrive as
// JSON Lines ({"unit": {...}} / {"depends_on": {...}}) or as a TOML or YAML
// document with "units" and "dependencies" arrays.
package facts

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"guardrail/internal/core/errors"
	"guardrail/internal/engine/graph"
)

const maxLineBytes = 4 * 1024 * 1024

// Document is the TOML/YAML fact layout.
type Document struct {
	Units        []graph.UnitFact       `toml:"units" yaml:"units"`
	Dependencies []graph.DependencyFact `toml:"dependencies" yaml:"dependencies"`
}

// ReadJSONL applies one fact per non-blank line.
func ReadJSONL(ctx context.Context, r io.Reader, b *graph.Builder) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line, applied := 0, 0
	for scanner.Scan() {
		line++
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return applied, err
			}
		}
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var f graph.Fact
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return applied, errors.AddContext(errors.Wrap(err, errors.CodeConfiguration, "malformed fact"), "line", line)
		}
		if err := b.Apply(f); err != nil {
			return applied, errors.AddContext(err, "line", line)
		}
		applied++
	}
	if err := scanner.Err(); err != nil {
		return applied, errors.Wrap(err, errors.CodeConfiguration, "read facts")
	}
	return applied, nil
}

// ApplyDocument adds every unit, then every dependency, of a decoded document.
func ApplyDocument(doc Document, b *graph.Builder) (int, error) {
	applied := 0
	for i, u := range doc.Units {
		if err := b.AddUnit(u); err != nil {
			return applied, errors.AddContext(err, "units", i)
		}
		applied++
	}
	for i, d := range doc.Dependencies {
		if err := b.AddDependency(d); err != nil {
			return applied, errors.AddContext(err, "dependencies", i)
		}
		applied++
	}
	return applied, nil
}

// LoadFile applies the facts of one file, choosing the format by extension.
// Anything other than .toml, .yaml and .yml is read as JSON Lines.
func LoadFile(ctx context.Context, path string, b *graph.Builder) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.AddContext(errors.Wrap(err, errors.CodeConfiguration, "open facts"), errors.CtxPath, path)
	}
	defer f.Close()

	var n int
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var doc Document
		if _, err = toml.NewDecoder(f).Decode(&doc); err != nil {
			err = errors.Wrap(err, errors.CodeConfiguration, "parse toml facts")
			break
		}
		n, err = ApplyDocument(doc, b)
	case ".yaml", ".yml":
		var doc Document
		if err = yaml.NewDecoder(f).Decode(&doc); err != nil && !stderrors.Is(err, io.EOF) {
			err = errors.Wrap(err, errors.CodeConfiguration, "parse yaml facts")
			break
		}
		n, err = ApplyDocument(doc, b)
	default:
		n, err = ReadJSONL(ctx, f, b)
	}
	if err != nil {
		return n, errors.AddContext(err, errors.CtxPath, path)
	}
	return n, nil
}

// BuildGraph loads every file into one builder and freezes the result.
// Dependencies may reference units declared in any of the files.
func BuildGraph(ctx context.Context, paths []string) (*graph.Graph, error) {
	b := graph.NewBuilder()
	for _, p := range paths {
		n, err := LoadFile(ctx, p, b)
		if err != nil {
			return nil, err
		}
		slog.Debug("facts loaded", "path", p, "facts", n)
	}
	return b.Build()
}
