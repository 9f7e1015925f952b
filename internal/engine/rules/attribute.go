package rules

import (
	"context"
	"fmt"
	"strings"

	"guardrail/internal/core/errors"
	"guardrail/internal/engine/graph"
	"guardrail/internal/engine/predicate"
)

type attributeRule struct {
	subject  predicate.Predicate
	accepted []predicate.Predicate
}

func compileAttribute(spec *AttributeSpec) (*attributeRule, error) {
	if spec == nil {
		return nil, errors.New(errors.CodeConfiguration, "attribute rule has no subject/required section")
	}
	subject, err := predicate.Compile(spec.Subject)
	if err != nil {
		return nil, errors.AddContext(err, "predicate", "subject")
	}
	required, err := predicate.Compile(spec.Required)
	if err != nil {
		return nil, errors.AddContext(err, "predicate", "required")
	}
	r := &attributeRule{subject: subject, accepted: []predicate.Predicate{required}}
	for i, alt := range spec.Alternatives {
		p, err := predicate.Compile(alt)
		if err != nil {
			return nil, errors.AddContext(err, "predicate", fmt.Sprintf("alternatives[%d]", i))
		}
		r.accepted = append(r.accepted, p)
	}
	return r, nil
}

func (r *attributeRule) evaluate(ctx context.Context, g *graph.Graph, include func(graph.Unit) bool) ([]Violation, error) {
	violations := make([]Violation, 0)
	for i, u := range g.UnitsMatching(include) {
		if err := checkpoint(ctx, i); err != nil {
			return nil, err
		}
		if !r.subject.Match(u) || r.satisfied(u) {
			continue
		}
		violations = append(violations, Violation{
			Subject:  u.Name,
			Reason:   fmt.Sprintf("%s does not satisfy %s", u.Name, r.describe()),
			Location: u.Location,
		})
	}
	return violations, nil
}

func (r *attributeRule) satisfied(u graph.Unit) bool {
	for _, p := range r.accepted {
		if p.Match(u) {
			return true
		}
	}
	return false
}

func (r *attributeRule) describe() string {
	parts := make([]string, 0, len(r.accepted))
	for _, p := range r.accepted {
		parts = append(parts, p.String())
	}
	return strings.Join(parts, " or ")
}
