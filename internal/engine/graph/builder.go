package graph

import (
	"fmt"
	"sort"
	"strings"

	"guardrail/internal/core/errors"
	"guardrail/internal/shared/observability"
	"guardrail/internal/shared/util"
)

// UnitFact declares one unit. Package defaults to the dotted prefix of Name.
type UnitFact struct {
	Name    string   `json:"name" toml:"name" yaml:"name"`
	Package string   `json:"package,omitempty" toml:"package" yaml:"package"`
	Tags    []string `json:"tags,omitempty" toml:"tags" yaml:"tags"`
	Kind    string   `json:"kind,omitempty" toml:"kind" yaml:"kind"`
	Test    bool     `json:"test,omitempty" toml:"test" yaml:"test"`
	File    string   `json:"file,omitempty" toml:"file" yaml:"file"`
	Line    int      `json:"line,omitempty" toml:"line" yaml:"line"`
}

// DependencyFact declares that Source depends on Target.
type DependencyFact struct {
	Source string `json:"source" toml:"source" yaml:"source"`
	Target string `json:"target" toml:"target" yaml:"target"`
	Kind   string `json:"kind,omitempty" toml:"kind" yaml:"kind"`
	File   string `json:"file,omitempty" toml:"file" yaml:"file"`
	Line   int    `json:"line,omitempty" toml:"line" yaml:"line"`
	Column int    `json:"column,omitempty" toml:"column" yaml:"column"`
}

// Fact is one record of the analyzer stream; exactly one field is set.
type Fact struct {
	Unit      *UnitFact       `json:"unit,omitempty"`
	DependsOn *DependencyFact `json:"depends_on,omitempty"`
}

type edgeKey struct {
	from string
	to   string
}

// Builder accumulates facts and produces a frozen Graph. Facts may arrive in
// any order; dangling dependencies are reported by Build.
type Builder struct {
	units   map[string]*Unit
	edges   map[edgeKey]*Edge
	pending []DependencyFact
}

func NewBuilder() *Builder {
	return &Builder{
		units: make(map[string]*Unit),
		edges: make(map[edgeKey]*Edge),
	}
}

// Apply routes a fact to AddUnit or AddDependency.
func (b *Builder) Apply(f Fact) error {
	switch {
	case f.Unit != nil && f.DependsOn != nil:
		return errors.New(errors.CodeValidation, "fact must declare either a unit or a dependency, not both")
	case f.Unit != nil:
		return b.AddUnit(*f.Unit)
	case f.DependsOn != nil:
		return b.AddDependency(*f.DependsOn)
	default:
		return errors.New(errors.CodeValidation, "empty fact")
	}
}

// AddUnit declares a unit. Re-declaring a unit merges its tags; a conflicting
// kind is a configuration error.
func (b *Builder) AddUnit(f UnitFact) error {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return errors.New(errors.CodeConfiguration, "unit fact has an empty name")
	}
	pkg := strings.TrimSpace(f.Package)
	if pkg == "" {
		pkg = util.PackageOf(name)
	}
	kind := ParseUnitKind(f.Kind)

	if existing, ok := b.units[name]; ok {
		if strings.TrimSpace(f.Kind) != "" && existing.Kind != kind {
			err := errors.Newf(errors.CodeConfiguration, "unit declared with conflicting kinds %q and %q", existing.Kind, kind)
			return errors.AddContext(err, errors.CtxUnit, name)
		}
		existing.Tags = util.SortedUnique(append(existing.Tags, f.Tags...))
		existing.Test = existing.Test || f.Test
		if existing.Location.File == "" && f.File != "" {
			existing.Location = Location{File: f.File, Line: f.Line}
		}
		return nil
	}

	b.units[name] = &Unit{
		Name:     name,
		Package:  util.SplitPackage(pkg),
		Tags:     util.SortedUnique(f.Tags),
		Kind:     kind,
		Test:     f.Test,
		Location: Location{File: f.File, Line: f.Line},
	}
	return nil
}

// AddDependency records a dependency. Endpoints are resolved in Build so the
// analyzer may emit dependencies before the units they reference.
func (b *Builder) AddDependency(f DependencyFact) error {
	f.Source = strings.TrimSpace(f.Source)
	f.Target = strings.TrimSpace(f.Target)
	if f.Source == "" || f.Target == "" {
		return errors.New(errors.CodeConfiguration, "dependency fact requires both source and target")
	}
	b.pending = append(b.pending, f)
	return nil
}

// Build resolves all dependencies and freezes the graph. Every dangling
// dependency is listed in a single configuration error.
func (b *Builder) Build() (*Graph, error) {
	dangling := make([]string, 0)
	for _, dep := range b.pending {
		missing := make([]string, 0, 2)
		if _, ok := b.units[dep.Source]; !ok {
			missing = append(missing, dep.Source)
		}
		if _, ok := b.units[dep.Target]; !ok {
			missing = append(missing, dep.Target)
		}
		if len(missing) > 0 {
			dangling = append(dangling, fmt.Sprintf("%s -> %s (undeclared: %s)", dep.Source, dep.Target, strings.Join(missing, ", ")))
			continue
		}

		key := edgeKey{from: dep.Source, to: dep.Target}
		kind := ParseRelationKind(dep.Kind)
		edge, ok := b.edges[key]
		if !ok {
			edge = &Edge{
				From:     dep.Source,
				To:       dep.Target,
				Location: Location{File: dep.File, Line: dep.Line, Column: dep.Column},
			}
			b.edges[key] = edge
		}
		if !edge.HasKind(kind) {
			edge.Kinds = append(edge.Kinds, kind)
		}
	}
	if len(dangling) > 0 {
		sort.Strings(dangling)
		err := errors.Newf(errors.CodeConfiguration, "%d dependency fact(s) reference undeclared units: %s", len(dangling), strings.Join(dangling, "; "))
		return nil, err
	}

	g := freeze(b.units, b.edges)
	observability.GraphUnits.Set(float64(g.UnitCount()))
	observability.GraphEdges.Set(float64(g.EdgeCount()))
	return g, nil
}
