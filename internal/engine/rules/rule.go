package rules

import (
	"strings"

	"guardrail/internal/engine/predicate"
)

type Kind string

const (
	KindLayered   Kind = "layered"
	KindCycles    Kind = "cycles"
	KindForbidden Kind = "forbidden"
	KindAttribute Kind = "attribute"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
)

// ParseSeverity accepts "error" (default), "warn" and "warning".
func ParseSeverity(raw string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "error":
		return SeverityError, true
	case "warn", "warning":
		return SeverityWarn, true
	default:
		return "", false
	}
}

// Rule is one declarative rule. Kind selects which of the kind-specific
// sections is read; the others are ignored.
type Rule struct {
	Name     string `json:"name" toml:"name" yaml:"name"`
	Kind     Kind   `json:"kind" toml:"kind" yaml:"kind"`
	Severity string `json:"severity,omitempty" toml:"severity" yaml:"severity"`
	Because  string `json:"because,omitempty" toml:"because" yaml:"because"`

	// ExcludeTests drops test units, and every edge touching them, before
	// the rule is evaluated.
	ExcludeTests bool `json:"exclude_tests,omitempty" toml:"exclude_tests" yaml:"exclude_tests"`

	Layered   *LayeredSpec   `json:"layered,omitempty" toml:"layered" yaml:"layered"`
	Cycles    *CycleSpec     `json:"cycles,omitempty" toml:"cycles" yaml:"cycles"`
	Forbidden *ForbiddenSpec `json:"forbidden,omitempty" toml:"forbidden" yaml:"forbidden"`
	Attribute *AttributeSpec `json:"attribute,omitempty" toml:"attribute" yaml:"attribute"`
}

// SeverityLevel returns the parsed severity, treating unknown values as error.
// Unknown values are rejected by the engine before evaluation.
func (r Rule) SeverityLevel() Severity {
	if s, ok := ParseSeverity(r.Severity); ok {
		return s
	}
	return SeverityError
}

type LayerSpec struct {
	Name  string         `json:"name" toml:"name" yaml:"name"`
	Match predicate.Spec `json:"match" toml:"match" yaml:"match"`
}

// LayeredSpec describes ordered layers and which layers each may depend on.
// A layer without an Allow entry may not depend on any other layer.
type LayeredSpec struct {
	Layers []LayerSpec          `json:"layers" toml:"layers" yaml:"layers"`
	Allow  map[string][]string `json:"allow,omitempty" toml:"allow" yaml:"allow"`

	// StrictMembership reports every unit matching more than one layer.
	StrictMembership bool `json:"strict_membership,omitempty" toml:"strict_membership" yaml:"strict_membership"`
	// AllowUnlayeredTargets lets layered units depend on units outside every
	// layer. Defaults to true.
	AllowUnlayeredTargets *bool `json:"allow_unlayered_targets,omitempty" toml:"allow_unlayered_targets" yaml:"allow_unlayered_targets"`
}

func (s *LayeredSpec) allowsUnlayeredTargets() bool {
	return s.AllowUnlayeredTargets == nil || *s.AllowUnlayeredTargets
}

// CycleSpec selects how units are grouped into slices. Slice is a package
// pattern with one capture group ("com.acme.(*).."); without it units are
// sliced by the first SliceDepth package segments (default 1). Units with no
// package form a slice of their own.
type CycleSpec struct {
	Slice      string `json:"slice,omitempty" toml:"slice" yaml:"slice"`
	SliceDepth int    `json:"slice_depth,omitempty" toml:"slice_depth" yaml:"slice_depth"`
}

// ForbiddenSpec flags every edge whose source matches From and whose target
// matches To, self-edges included.
type ForbiddenSpec struct {
	From   predicate.Spec `json:"from" toml:"from" yaml:"from"`
	To     predicate.Spec `json:"to" toml:"to" yaml:"to"`
	Reason string         `json:"reason,omitempty" toml:"reason" yaml:"reason"`
	// Relations restricts the rule to edges carrying one of these relation
	// kinds. Empty means any relation.
	Relations []string `json:"relations,omitempty" toml:"relations" yaml:"relations"`
}

type AttributeSpec struct {
	Subject      predicate.Spec   `json:"subject" toml:"subject" yaml:"subject"`
	Required     predicate.Spec   `json:"required" toml:"required" yaml:"required"`
	Alternatives []predicate.Spec `json:"alternatives,omitempty" toml:"alternatives" yaml:"alternatives"`
}
