package predicate

import (
	"fmt"
	"regexp"
	"strings"

	"guardrail/internal/core/errors"
	"guardrail/internal/engine/graph"
	"guardrail/internal/shared/util"
)

// Spec is the plain-data form of a unit predicate. Every populated field must
// hold for a unit to match; list fields match when any element does.
type Spec struct {
	// Everything matches every unit; it cannot be combined with other fields.
	Everything bool `json:"everything,omitempty" toml:"everything" yaml:"everything"`

	Package    []string `json:"package,omitempty" toml:"package" yaml:"package"`
	Glob       []string `json:"glob,omitempty" toml:"glob" yaml:"glob"`
	Name       []string `json:"name,omitempty" toml:"name" yaml:"name"`
	NamePrefix []string `json:"name_prefix,omitempty" toml:"name_prefix" yaml:"name_prefix"`
	NameSuffix []string `json:"name_suffix,omitempty" toml:"name_suffix" yaml:"name_suffix"`
	NameRegex  string   `json:"name_regex,omitempty" toml:"name_regex" yaml:"name_regex"`
	Tag        []string `json:"tag,omitempty" toml:"tag" yaml:"tag"`
	Kind       []string `json:"kind,omitempty" toml:"kind" yaml:"kind"`
	Test       *bool    `json:"test,omitempty" toml:"test" yaml:"test"`

	All []Spec `json:"all,omitempty" toml:"all" yaml:"all"`
	Any []Spec `json:"any,omitempty" toml:"any" yaml:"any"`
	Not *Spec  `json:"not,omitempty" toml:"not" yaml:"not"`
}

// IsZero reports whether no field is populated.
func (s Spec) IsZero() bool {
	return !s.Everything && len(s.Package) == 0 && len(s.Glob) == 0 && len(s.Name) == 0 &&
		len(s.NamePrefix) == 0 && len(s.NameSuffix) == 0 && strings.TrimSpace(s.NameRegex) == "" &&
		len(s.Tag) == 0 && len(s.Kind) == 0 && s.Test == nil &&
		len(s.All) == 0 && len(s.Any) == 0 && s.Not == nil
}

// Predicate is a compiled, side-effect-free unit filter.
type Predicate struct {
	match func(graph.Unit) bool
	desc  string
}

// Match evaluates the predicate. The zero Predicate matches nothing.
func (p Predicate) Match(u graph.Unit) bool {
	if p.match == nil {
		return false
	}
	return p.match(u)
}

func (p Predicate) String() string {
	return p.desc
}

// Func returns the predicate as a plain function, e.g. for graph.UnitsMatching.
func (p Predicate) Func() func(graph.Unit) bool {
	return p.Match
}

// Compile validates a spec and builds its predicate. An empty spec is a
// configuration error: a predicate that silently matches everything or
// nothing is almost always a typo.
func Compile(spec Spec) (Predicate, error) {
	if spec.IsZero() {
		return Predicate{}, errors.New(errors.CodeConfiguration, "predicate is empty")
	}
	if spec.Everything {
		if !spec.withoutEverything().IsZero() {
			return Predicate{}, errors.New(errors.CodeConfiguration, "predicate 'everything' cannot be combined with other conditions")
		}
		return Predicate{match: func(graph.Unit) bool { return true }, desc: "any unit"}, nil
	}

	parts := make([]Predicate, 0, 8)

	if len(spec.Package) > 0 {
		patterns := make([]*PackagePattern, 0, len(spec.Package))
		for _, raw := range spec.Package {
			p, err := CompilePackagePattern(raw)
			if err != nil {
				return Predicate{}, err
			}
			patterns = append(patterns, p)
		}
		parts = append(parts, Predicate{
			desc: describeList("package", spec.Package),
			match: func(u graph.Unit) bool {
				for _, p := range patterns {
					if p.Match(u.Package) {
						return true
					}
				}
				return false
			},
		})
	}

	if len(spec.Glob) > 0 {
		type compiled struct {
			match func(string) bool
		}
		globs := make([]compiled, 0, len(spec.Glob))
		for _, raw := range spec.Glob {
			g, err := compileGlob(util.NormalizePatternPath(strings.ReplaceAll(raw, ".", "/")), '/')
			if err != nil {
				return Predicate{}, err
			}
			globs = append(globs, compiled{match: g.Match})
		}
		parts = append(parts, Predicate{
			desc: describeList("glob", spec.Glob),
			match: func(u graph.Unit) bool {
				name := strings.ReplaceAll(u.Name, ".", "/")
				for _, g := range globs {
					if g.match(name) {
						return true
					}
				}
				return false
			},
		})
	}

	if len(spec.Name) > 0 {
		names := make(map[string]bool, len(spec.Name))
		for _, n := range spec.Name {
			names[strings.TrimSpace(n)] = true
		}
		parts = append(parts, Predicate{
			desc:  describeList("name", spec.Name),
			match: func(u graph.Unit) bool { return names[u.Name] },
		})
	}

	if len(spec.NamePrefix) > 0 {
		prefixes := append([]string(nil), spec.NamePrefix...)
		parts = append(parts, Predicate{
			desc: describeList("simple name starting with", prefixes),
			match: func(u graph.Unit) bool {
				simple := util.SimpleName(u.Name)
				for _, p := range prefixes {
					if strings.HasPrefix(simple, p) {
						return true
					}
				}
				return false
			},
		})
	}

	if len(spec.NameSuffix) > 0 {
		suffixes := append([]string(nil), spec.NameSuffix...)
		parts = append(parts, Predicate{
			desc: describeList("simple name ending with", suffixes),
			match: func(u graph.Unit) bool {
				simple := util.SimpleName(u.Name)
				for _, s := range suffixes {
					if strings.HasSuffix(simple, s) {
						return true
					}
				}
				return false
			},
		})
	}

	if raw := strings.TrimSpace(spec.NameRegex); raw != "" {
		re, err := regexp.Compile(raw)
		if err != nil {
			return Predicate{}, errors.Wrap(err, errors.CodeConfiguration, fmt.Sprintf("invalid name_regex %q", raw))
		}
		parts = append(parts, Predicate{
			desc:  fmt.Sprintf("name matching /%s/", raw),
			match: func(u graph.Unit) bool { return re.MatchString(u.Name) },
		})
	}

	if len(spec.Tag) > 0 {
		tags := append([]string(nil), spec.Tag...)
		parts = append(parts, Predicate{
			desc: describeList("tagged", tags),
			match: func(u graph.Unit) bool {
				for _, t := range tags {
					if u.HasTag(t) {
						return true
					}
				}
				return false
			},
		})
	}

	if len(spec.Kind) > 0 {
		kinds := make(map[graph.UnitKind]bool, len(spec.Kind))
		for _, k := range spec.Kind {
			kinds[graph.ParseUnitKind(k)] = true
		}
		parts = append(parts, Predicate{
			desc:  describeList("kind", spec.Kind),
			match: func(u graph.Unit) bool { return kinds[u.Kind] },
		})
	}

	if spec.Test != nil {
		want := *spec.Test
		desc := "test unit"
		if !want {
			desc = "non-test unit"
		}
		parts = append(parts, Predicate{desc: desc, match: func(u graph.Unit) bool { return u.Test == want }})
	}

	if len(spec.All) > 0 {
		sub, err := compileAll(spec.All)
		if err != nil {
			return Predicate{}, err
		}
		parts = append(parts, And(sub...))
	}

	if len(spec.Any) > 0 {
		sub, err := compileAll(spec.Any)
		if err != nil {
			return Predicate{}, err
		}
		parts = append(parts, Or(sub...))
	}

	if spec.Not != nil {
		sub, err := Compile(*spec.Not)
		if err != nil {
			return Predicate{}, err
		}
		parts = append(parts, Not(sub))
	}

	if len(parts) == 1 {
		return parts[0], nil
	}
	return And(parts...), nil
}

func compileAll(specs []Spec) ([]Predicate, error) {
	out := make([]Predicate, 0, len(specs))
	for i, s := range specs {
		p, err := Compile(s)
		if err != nil {
			return nil, errors.AddContext(err, "index", i)
		}
		out = append(out, p)
	}
	return out, nil
}

func (s Spec) withoutEverything() Spec {
	c := s
	c.Everything = false
	return c
}

// And matches when every predicate matches.
func And(preds ...Predicate) Predicate {
	descs := make([]string, 0, len(preds))
	for _, p := range preds {
		descs = append(descs, p.desc)
	}
	return Predicate{
		desc: strings.Join(descs, " and "),
		match: func(u graph.Unit) bool {
			for _, p := range preds {
				if !p.Match(u) {
					return false
				}
			}
			return true
		},
	}
}

// Or matches when any predicate matches.
func Or(preds ...Predicate) Predicate {
	descs := make([]string, 0, len(preds))
	for _, p := range preds {
		descs = append(descs, p.desc)
	}
	return Predicate{
		desc: "(" + strings.Join(descs, " or ") + ")",
		match: func(u graph.Unit) bool {
			for _, p := range preds {
				if p.Match(u) {
					return true
				}
			}
			return false
		},
	}
}

// Not negates a predicate.
func Not(p Predicate) Predicate {
	return Predicate{
		desc:  "not (" + p.desc + ")",
		match: func(u graph.Unit) bool { return !p.Match(u) },
	}
}

func describeList(label string, values []string) string {
	if len(values) == 1 {
		return fmt.Sprintf("%s %q", label, values[0])
	}
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, fmt.Sprintf("%q", v))
	}
	return fmt.Sprintf("%s in [%s]", label, strings.Join(quoted, ", "))
}
