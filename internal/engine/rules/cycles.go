package rules

import (
	"context"
	"fmt"
	"strings"

	"guardrail/internal/core/errors"
	"guardrail/internal/engine/graph"
	"guardrail/internal/engine/predicate"
)

const defaultSliceDepth = 1

type cycleRule struct {
	slice graph.SliceFunc
}

func compileCycles(spec *CycleSpec, include func(graph.Unit) bool) (*cycleRule, error) {
	if spec == nil {
		spec = &CycleSpec{}
	}
	if spec.SliceDepth < 0 {
		return nil, errors.Newf(errors.CodeConfiguration, "slice_depth must be positive, got %d", spec.SliceDepth)
	}

	if raw := strings.TrimSpace(spec.Slice); raw != "" {
		if spec.SliceDepth > 0 {
			return nil, errors.New(errors.CodeConfiguration, "slice and slice_depth are mutually exclusive")
		}
		pattern, err := predicate.CompilePackagePattern(raw)
		if err != nil {
			return nil, err
		}
		if !pattern.HasCapture() {
			return nil, errors.Newf(errors.CodeConfiguration, "slice pattern %q needs a capture group such as (*)", raw)
		}
		return &cycleRule{slice: func(u graph.Unit) (string, bool) {
			if !include(u) {
				return "", false
			}
			return pattern.Capture(u.Package)
		}}, nil
	}

	depth := spec.SliceDepth
	if depth == 0 {
		depth = defaultSliceDepth
	}
	return &cycleRule{slice: func(u graph.Unit) (string, bool) {
		if !include(u) {
			return "", false
		}
		return SliceByDepth(u, depth), true
	}}, nil
}

// SliceByDepth keys a unit by its first depth package segments. A unit
// without a package is its own slice.
func SliceByDepth(u graph.Unit, depth int) string {
	if len(u.Package) == 0 {
		return u.Name
	}
	if len(u.Package) < depth {
		depth = len(u.Package)
	}
	return strings.Join(u.Package[:depth], ".")
}

func (r *cycleRule) evaluate(ctx context.Context, g *graph.Graph) ([]Violation, error) {
	sg, err := g.CondenseContext(ctx, r.slice)
	if err != nil {
		return nil, err
	}
	violations := make([]Violation, 0)
	for i, comp := range sg.CyclicComponents() {
		if err := checkpoint(ctx, i); err != nil {
			return nil, err
		}
		walk, err := closedWalk(ctx, sg, comp)
		if err != nil {
			return nil, err
		}
		steps := make([]Step, 0, len(walk)-1)
		for j := 0; j+1 < len(walk); j++ {
			w, ok := sg.Witness(walk[j], walk[j+1])
			if !ok {
				return nil, errors.Newf(errors.CodeInternal, "missing witness edge %s -> %s", walk[j], walk[j+1])
			}
			steps = append(steps, Step{
				FromSlice: walk[j],
				ToSlice:   walk[j+1],
				From:      w.From,
				To:        w.To,
				Location:  w.Location,
			})
		}
		violations = append(violations, Violation{
			Subject:  steps[0].From,
			Target:   steps[0].To,
			Slices:   append([]string(nil), comp...),
			Cycle:    steps,
			Reason:   describeCycle(comp, steps),
			Location: steps[0].Location,
		})
	}
	return violations, nil
}

// closedWalk returns a walk that starts and ends at the first slice of comp
// and visits every slice of comp, so each named slice has a witness step.
// Slices are reached in name order along shortest paths.
func closedWalk(ctx context.Context, sg *graph.SliceGraph, comp []string) ([]string, error) {
	start := comp[0]
	walk := []string{start}
	visited := map[string]bool{start: true}
	current := start
	for i, target := range comp {
		if err := checkpoint(ctx, i); err != nil {
			return nil, err
		}
		if visited[target] {
			continue
		}
		path, ok := sg.ShortestPath(current, target, comp)
		if !ok {
			return nil, errors.Newf(errors.CodeInternal, "no path %s -> %s inside cyclic component", current, target)
		}
		for _, s := range path[1:] {
			visited[s] = true
		}
		walk = append(walk, path[1:]...)
		current = target
	}
	back, ok := sg.ShortestPath(current, start, comp)
	if !ok {
		return nil, errors.Newf(errors.CodeInternal, "no path %s -> %s inside cyclic component", current, start)
	}
	return append(walk, back[1:]...), nil
}

func describeCycle(slices []string, steps []Step) string {
	var b strings.Builder
	fmt.Fprintf(&b, "cycle between slices [%s]: ", strings.Join(slices, ", "))
	for i, s := range steps {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s -> %s (%s -> %s)", s.FromSlice, s.ToSlice, s.From, s.To)
	}
	return b.String()
}
