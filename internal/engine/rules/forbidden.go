package rules

import (
	"context"
	"fmt"

	"guardrail/internal/core/errors"
	"guardrail/internal/engine/graph"
	"guardrail/internal/engine/predicate"
)

type forbiddenRule struct {
	from      predicate.Predicate
	to        predicate.Predicate
	reason    string
	relations map[graph.RelationKind]bool
}

func compileForbidden(spec *ForbiddenSpec) (*forbiddenRule, error) {
	if spec == nil {
		return nil, errors.New(errors.CodeConfiguration, "forbidden rule has no from/to section")
	}
	from, err := predicate.Compile(spec.From)
	if err != nil {
		return nil, errors.AddContext(err, "predicate", "from")
	}
	to, err := predicate.Compile(spec.To)
	if err != nil {
		return nil, errors.AddContext(err, "predicate", "to")
	}
	r := &forbiddenRule{from: from, to: to, reason: spec.Reason}
	if len(spec.Relations) > 0 {
		r.relations = make(map[graph.RelationKind]bool, len(spec.Relations))
		for _, raw := range spec.Relations {
			r.relations[graph.ParseRelationKind(raw)] = true
		}
	}
	return r, nil
}

func (r *forbiddenRule) matchesRelation(e graph.Edge) bool {
	if r.relations == nil {
		return true
	}
	for _, k := range e.Kinds {
		if r.relations[k] {
			return true
		}
	}
	return false
}

func (r *forbiddenRule) evaluate(ctx context.Context, g *graph.Graph, include func(graph.Unit) bool) ([]Violation, error) {
	violations := make([]Violation, 0)
	for _, source := range g.UnitsMatching(include) {
		if !r.from.Match(source) {
			continue
		}
		for i, e := range g.EdgesFrom(source.Name) {
			if err := checkpoint(ctx, i); err != nil {
				return nil, err
			}
			if !r.matchesRelation(e) {
				continue
			}
			target, ok := g.Unit(e.To)
			if !ok || !include(target) || !r.to.Match(target) {
				continue
			}
			reason := r.reason
			if reason == "" {
				reason = fmt.Sprintf("%s must not depend on %s", e.From, e.To)
			} else {
				reason = fmt.Sprintf("%s must not depend on %s: %s", e.From, e.To, reason)
			}
			violations = append(violations, Violation{
				Subject:  e.From,
				Target:   e.To,
				Reason:   reason,
				Location: e.Location,
			})
		}
	}
	return violations, nil
}
