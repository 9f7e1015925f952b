package graph

import (
	"sort"
	"strings"
)

type UnitKind string

const (
	KindClass     UnitKind = "class"
	KindInterface UnitKind = "interface"
	KindOther     UnitKind = "other"
)

// ParseUnitKind maps analyzer-specific kind names onto the three kinds rules
// can filter on. Unknown names fall back to KindOther.
func ParseUnitKind(raw string) UnitKind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "class", "struct", "record", "type":
		return KindClass
	case "interface", "trait", "protocol":
		return KindInterface
	default:
		return KindOther
	}
}

type RelationKind string

const (
	RelationField       RelationKind = "field"
	RelationParameter   RelationKind = "parameter"
	RelationInheritance RelationKind = "inheritance"
	RelationCall        RelationKind = "call"
	RelationImport      RelationKind = "import"
	RelationOther       RelationKind = "other"
)

func ParseRelationKind(raw string) RelationKind {
	switch kind := RelationKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case RelationField, RelationParameter, RelationInheritance, RelationCall, RelationImport:
		return kind
	case "extends", "implements":
		return RelationInheritance
	default:
		return RelationOther
	}
}

type Location struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// Unit is one analyzable code module. Tags hold annotations and other static
// attributes attached by the analyzer; they are kept sorted.
type Unit struct {
	Name     string
	Package  []string
	Tags     []string
	Kind     UnitKind
	Test     bool
	Location Location
}

// PackagePath joins the package segments with dots.
func (u Unit) PackagePath() string {
	return strings.Join(u.Package, ".")
}

// HasTag reports whether the unit carries the exact tag.
func (u Unit) HasTag(tag string) bool {
	i := sort.SearchStrings(u.Tags, tag)
	return i < len(u.Tags) && u.Tags[i] == tag
}

// Edge is the logical dependency between two units. Every relation kind seen
// for the pair is remembered; Location is the first one reported.
type Edge struct {
	From     string
	To       string
	Kinds    []RelationKind
	Location Location
}

// HasKind reports whether the pair was related through kind.
func (e Edge) HasKind(kind RelationKind) bool {
	for _, k := range e.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func cloneUnit(u *Unit) Unit {
	c := *u
	c.Package = append([]string(nil), u.Package...)
	c.Tags = append([]string(nil), u.Tags...)
	return c
}

func cloneEdge(e *Edge) Edge {
	c := *e
	c.Kinds = append([]RelationKind(nil), e.Kinds...)
	return c
}
