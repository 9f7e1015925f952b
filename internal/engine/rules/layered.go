package rules

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"guardrail/internal/core/errors"
	"guardrail/internal/engine/graph"
	"guardrail/internal/engine/predicate"
)

type compiledLayer struct {
	name  string
	match predicate.Predicate
}

type layeredRule struct {
	layers           []compiledLayer
	allow            map[string]map[string]bool
	strict           bool
	unlayeredTargets bool
}

func compileLayered(ctx context.Context, spec *LayeredSpec, g *graph.Graph, include func(graph.Unit) bool) (*layeredRule, error) {
	if spec == nil || len(spec.Layers) == 0 {
		return nil, errors.New(errors.CodeConfiguration, "layered rule declares no layers")
	}
	r := &layeredRule{
		layers:           make([]compiledLayer, 0, len(spec.Layers)),
		allow:            make(map[string]map[string]bool, len(spec.Allow)),
		strict:           spec.StrictMembership,
		unlayeredTargets: spec.allowsUnlayeredTargets(),
	}

	defined := make(map[string]bool, len(spec.Layers))
	for _, l := range spec.Layers {
		name := strings.TrimSpace(l.Name)
		if name == "" {
			return nil, errors.New(errors.CodeConfiguration, "layer has an empty name")
		}
		if defined[name] {
			return nil, errors.AddContext(errors.New(errors.CodeConfiguration, "duplicate layer name"), errors.CtxLayer, name)
		}
		defined[name] = true
		p, err := predicate.Compile(l.Match)
		if err != nil {
			return nil, errors.AddContext(err, errors.CtxLayer, name)
		}
		r.layers = append(r.layers, compiledLayer{name: name, match: p})
	}

	for from, targets := range spec.Allow {
		from = strings.TrimSpace(from)
		if !defined[from] {
			return nil, errors.AddContext(errors.Newf(errors.CodeConfiguration, "allow-list references undefined layer %q", from), errors.CtxLayer, from)
		}
		set := make(map[string]bool, len(targets))
		for _, to := range targets {
			to = strings.TrimSpace(to)
			if !defined[to] {
				return nil, errors.AddContext(errors.Newf(errors.CodeConfiguration, "allow-list references undefined layer %q", to), errors.CtxLayer, from)
			}
			set[to] = true
		}
		r.allow[from] = set
	}

	// A layer that matches nothing on a populated graph is almost always a
	// mistyped pattern.
	if g.UnitCount() > 0 {
		units := g.UnitsMatching(include)
		for _, l := range r.layers {
			found := false
			for i, u := range units {
				if err := checkpoint(ctx, i); err != nil {
					return nil, err
				}
				if l.match.Match(u) {
					found = true
					break
				}
			}
			if !found {
				err := errors.Newf(errors.CodeConfiguration, "layer predicate (%s) matches no units", l.match)
				return nil, errors.AddContext(err, errors.CtxLayer, l.name)
			}
		}
	}
	return r, nil
}

func (r *layeredRule) evaluate(ctx context.Context, g *graph.Graph, include func(graph.Unit) bool) ([]Violation, error) {
	membership := make(map[string][]string)
	for _, u := range g.UnitsMatching(include) {
		for _, l := range r.layers {
			if l.match.Match(u) {
				membership[u.Name] = append(membership[u.Name], l.name)
			}
		}
	}

	violations := make([]Violation, 0)
	if r.strict {
		names := make([]string, 0, len(membership))
		for name, layers := range membership {
			if len(layers) > 1 {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			violations = append(violations, Violation{
				Subject: name,
				Reason:  fmt.Sprintf("%s belongs to more than one layer: %s", name, strings.Join(membership[name], ", ")),
			})
		}
	}

	for i, e := range g.Edges() {
		if err := checkpoint(ctx, i); err != nil {
			return nil, err
		}
		fromLayers, ok := membership[e.From]
		if !ok || e.From == e.To {
			continue
		}
		if !include(mustUnit(g, e.To)) {
			continue
		}
		toLayers := membership[e.To]
		if len(toLayers) == 0 {
			if r.unlayeredTargets {
				continue
			}
			for _, from := range fromLayers {
				violations = append(violations, Violation{
					Subject:   e.From,
					Target:    e.To,
					FromLayer: from,
					Reason:    fmt.Sprintf("%s (layer %q) depends on %s, which belongs to no layer", e.From, from, e.To),
					Location:  e.Location,
				})
			}
			continue
		}
		for _, from := range fromLayers {
			for _, to := range toLayers {
				if from == to || r.allow[from][to] {
					continue
				}
				violations = append(violations, Violation{
					Subject:   e.From,
					Target:    e.To,
					FromLayer: from,
					ToLayer:   to,
					Reason:    fmt.Sprintf("%s (layer %q) may not depend on %s (layer %q)", e.From, from, e.To, to),
					Location:  e.Location,
				})
			}
		}
	}
	return violations, nil
}

func mustUnit(g *graph.Graph, name string) graph.Unit {
	u, _ := g.Unit(name)
	return u
}
